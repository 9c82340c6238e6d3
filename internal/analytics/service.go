// Package analytics derives monthly summaries, spending patterns, insights
// and budget predictions from a user's transactions.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type Store interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetProfile(ctx context.Context, userID int64) (domain.UserProfile, error)
	GetPreference(ctx context.Context, userID int64) (domain.UserPreference, error)
	GetAnalyticsConfig(ctx context.Context, userID int64) (domain.AnalyticsConfiguration, error)

	// TransactionsBetween returns transactions dated in [from, to).
	TransactionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.Transaction, error)
	ListCategories(ctx context.Context, userID int64) ([]domain.Category, error)
	ListAccounts(ctx context.Context, userID int64) ([]domain.BankAccount, error)
	// ListBudgets returns budgets with their period and items loaded.
	ListBudgets(ctx context.Context, userID int64, status domain.BudgetStatus) ([]domain.Budget, error)
	ListGoals(ctx context.Context, userID int64) ([]domain.BudgetGoal, error)
	GoalContributionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.GoalContribution, error)

	UpsertMonthlySummary(ctx context.Context, s *domain.MonthlyFinancialSummary) error
	GetMonthlySummary(ctx context.Context, userID int64, year, month int) (domain.MonthlyFinancialSummary, error)
	ListMonthlySummaries(ctx context.Context, userID int64) ([]domain.MonthlyFinancialSummary, error)

	ReplacePatterns(ctx context.Context, userID int64, patterns []domain.SpendingPattern) error
	ListPatterns(ctx context.Context, userID int64) ([]domain.SpendingPattern, error)

	CreateInsight(ctx context.Context, in *domain.FinancialInsight) error
	GetInsight(ctx context.Context, userID, id int64) (domain.FinancialInsight, error)
	UpdateInsight(ctx context.Context, in *domain.FinancialInsight) error
	ListInsights(ctx context.Context, userID int64) ([]domain.FinancialInsight, error)
	DeleteExpiredInsights(ctx context.Context, now time.Time) (int64, error)

	UpsertPrediction(ctx context.Context, p *domain.BudgetPrediction) error
	ListPredictions(ctx context.Context, userID int64) ([]domain.BudgetPrediction, error)
	DeletePredictionsBefore(ctx context.Context, userID int64, cutoff time.Time) (int64, error)
}

type Notifier interface {
	Emit(ctx context.Context, n domain.Notification)
}

type Service struct {
	store    Store
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastMonthly time.Time
}

// NewService builds the analytics service. notifier may be nil.
func NewService(store Store, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{store: store, notifier: notifier, log: log, now: time.Now}
}

func (s *Service) config(ctx context.Context, userID int64) (domain.AnalyticsConfiguration, error) {
	cfg, err := s.store.GetAnalyticsConfig(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultAnalyticsConfiguration(userID), nil
	}
	return cfg, err
}

// monthStart is the first day of t's month in UTC.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// completed keeps completed transactions of the given type; an empty type
// keeps income and expenses.
func completed(txs []domain.Transaction, typ domain.TransactionType) []domain.Transaction {
	var out []domain.Transaction
	for _, t := range txs {
		if t.Status != domain.StatusCompleted {
			continue
		}
		if typ == "" && t.Type == domain.TypeTransfer {
			continue
		}
		if typ != "" && t.Type != typ {
			continue
		}
		out = append(out, t)
	}
	return out
}

func categoryNames(cats []domain.Category) map[int64]string {
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}

const uncategorized = "Uncategorized"

func nameOf(id *int64, names map[int64]string) string {
	if id == nil {
		return uncategorized
	}
	if n, ok := names[*id]; ok {
		return n
	}
	return uncategorized
}
