package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// Export is the user's financial data as one JSON document.
type Export struct {
	ExportedAt   time.Time                        `json:"exported_at"`
	User         domain.User                      `json:"user"`
	Profile      *domain.UserProfile              `json:"profile,omitempty"`
	Accounts     []domain.BankAccount             `json:"accounts"`
	Categories   []domain.Category                `json:"categories"`
	Transactions []domain.Transaction             `json:"transactions"`
	Budgets      []domain.Budget                  `json:"budgets"`
	Goals        []domain.BudgetGoal              `json:"goals"`
	Summaries    []domain.MonthlyFinancialSummary `json:"monthly_summaries"`
}

// Export gathers the user's data. Users who turned data export off get
// ErrForbidden. Account numbers are masked.
func (s *Service) Export(ctx context.Context, userID int64) (Export, error) {
	pref, err := s.store.GetPreference(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Export{}, err
	}
	if err == nil && !pref.AllowDataExport {
		return Export{}, domain.ErrForbidden
	}

	out := Export{ExportedAt: s.now()}
	if out.User, err = s.store.GetUser(ctx, userID); err != nil {
		return Export{}, err
	}
	switch p, err := s.store.GetProfile(ctx, userID); {
	case err == nil:
		out.Profile = &p
	case !errors.Is(err, domain.ErrNotFound):
		return Export{}, err
	}
	if out.Accounts, err = s.store.ListAccounts(ctx, userID); err != nil {
		return Export{}, err
	}
	for i := range out.Accounts {
		out.Accounts[i].AccountNumber = domain.MaskedNumber(out.Accounts[i].AccountNumber)
		if out.Accounts[i].IBAN != "" {
			out.Accounts[i].IBAN = domain.MaskedNumber(out.Accounts[i].IBAN)
		}
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return Export{}, err
	}
	out.Categories = []domain.Category{}
	for _, c := range cats {
		if c.OwnedBy(userID) {
			out.Categories = append(out.Categories, c)
		}
	}
	if out.Transactions, err = s.store.TransactionsBetween(ctx, userID, time.Time{}, out.ExportedAt.AddDate(100, 0, 0)); err != nil {
		return Export{}, err
	}
	if out.Budgets, err = s.store.ListBudgets(ctx, userID, ""); err != nil {
		return Export{}, err
	}
	if out.Goals, err = s.store.ListGoals(ctx, userID); err != nil {
		return Export{}, err
	}
	if out.Summaries, err = s.store.ListMonthlySummaries(ctx, userID); err != nil {
		return Export{}, err
	}
	return out, nil
}
