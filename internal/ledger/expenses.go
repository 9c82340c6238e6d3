package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// ExpenseInput is a new shared expense. PaidBy and the split requests name
// ledger member ids; PaidBy defaults to the caller.
type ExpenseInput struct {
	domain.SharedExpense
	SplitRequests []domain.SplitRequest `json:"split_requests"`
	// RecordTransaction also books the amount as the payer's personal expense.
	RecordTransaction bool `json:"record_transaction"`
}

func (s *Service) Expenses(ctx context.Context, userID int64, ledgerID string) ([]domain.SharedExpense, error) {
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, ledgerID)
}

func (s *Service) Expense(ctx context.Context, userID int64, ledgerID string, id int64) (domain.SharedExpense, error) {
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleViewer); err != nil {
		return domain.SharedExpense{}, err
	}
	return s.store.GetExpense(ctx, ledgerID, id)
}

// AddExpense stores a shared expense split between members. It starts
// pending when the ledger requires approval.
func (s *Service) AddExpense(ctx context.Context, userID int64, ledgerID string, in ExpenseInput) (domain.SharedExpense, error) {
	l, me, err := s.access(ctx, ledgerID, userID, domain.RoleMember)
	if err != nil {
		return domain.SharedExpense{}, err
	}
	if l.Status != domain.LedgerActive {
		return domain.SharedExpense{}, domain.Invalid("ledger", "is not active")
	}
	members, err := s.store.ListMembers(ctx, ledgerID)
	if err != nil {
		return domain.SharedExpense{}, err
	}
	active := map[int64]domain.LedgerMember{}
	var ids []int64
	for _, m := range members {
		if m.Status == domain.MemberActive {
			active[m.ID] = m
			ids = append(ids, m.ID)
		}
	}

	e := in.SharedExpense
	e.ID = 0
	e.LedgerID = ledgerID
	e.CreatedBy = userID
	e.ApprovedBy, e.ApprovedAt, e.TransactionID = nil, nil, nil
	if e.Currency == "" {
		e.Currency = l.Currency
	}
	if !strings.EqualFold(e.Currency, l.Currency) {
		return domain.SharedExpense{}, fmt.Errorf("%w: ledger uses %s", domain.ErrCurrencyMismatch, l.Currency)
	}
	e.Currency = l.Currency
	if e.PaidBy == 0 {
		e.PaidBy = me.ID
	}
	payer, ok := active[e.PaidBy]
	if !ok {
		return domain.SharedExpense{}, domain.Invalid("paid_by", "must be an active member")
	}
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = domain.DateOnly(s.now())
	}
	if err := e.Validate(); err != nil {
		return domain.SharedExpense{}, err
	}
	for _, r := range in.SplitRequests {
		if _, ok := active[r.MemberID]; !ok {
			return domain.SharedExpense{}, domain.Invalid("splits", "every member must be active in the ledger")
		}
	}
	splits, err := domain.ComputeSplits(e.SplitMethod, e.Amount, ids, in.SplitRequests)
	if err != nil {
		return domain.SharedExpense{}, err
	}
	// The payer's own share needs no payment.
	now := s.now()
	for i := range splits {
		if splits[i].MemberID == e.PaidBy {
			splits[i].IsSettled, splits[i].SettledAt, splits[i].SettlementMethod = true, &now, "paid"
		}
	}
	e.Splits = splits

	e.Status = domain.ExpenseApproved
	if l.RequireApproval {
		e.Status = domain.ExpensePending
	}

	if in.RecordTransaction && s.txs != nil {
		lid := ledgerID
		t, err := s.txs.Create(ctx, payer.UserID, domain.Transaction{
			Type:            domain.TypeExpense,
			Amount:          e.Amount,
			Currency:        e.Currency,
			Description:     e.Description,
			CategoryID:      e.CategoryID,
			Tags:            e.Tags,
			TransactionDate: e.ExpenseDate,
			Status:          domain.StatusCompleted,
			IsManualEntry:   true,
			LocationName:    e.Location,
			Notes:           e.Notes,
			SharedLedgerID:  &lid,
		})
		if err != nil {
			return domain.SharedExpense{}, err
		}
		e.TransactionID = &t.ID
	}

	if err := s.store.CreateExpense(ctx, &e); err != nil {
		if e.TransactionID != nil {
			if derr := s.txs.Delete(ctx, payer.UserID, *e.TransactionID); derr != nil {
				s.log.Error().Err(derr).Int64("transaction_id", *e.TransactionID).Msg("remove transaction of failed shared expense")
			}
		}
		return domain.SharedExpense{}, err
	}
	s.activity(ctx, ledgerID, userID, domain.ActivityExpenseAdded,
		fmt.Sprintf("%s added %q (%s %s)", me.Name(), e.Description, e.Amount.StringFixed(2), e.Currency),
		map[string]any{"expense_id": e.ID})
	s.refreshStats(ctx, ledgerID)
	s.notifyExpense(ctx, l, me, e, members)
	return e, nil
}

// notifyExpense tells the other members who share the expense and asked for
// expense notifications.
func (s *Service) notifyExpense(ctx context.Context, l domain.SharedLedger, by domain.LedgerMember, e domain.SharedExpense, members []domain.LedgerMember) {
	if s.notifier == nil {
		return
	}
	share := map[int64]string{}
	for _, sp := range e.Splits {
		share[sp.MemberID] = sp.Amount.StringFixed(2)
	}
	for _, m := range members {
		amount, ok := share[m.ID]
		if !ok || m.UserID == by.UserID || m.Status != domain.MemberActive || !m.NotifyOnExpense {
			continue
		}
		s.notifier.Emit(ctx, domain.Notification{
			UserID:   m.UserID,
			Type:     domain.NotifySharedExpense,
			Title:    "New shared expense in " + l.Name,
			Message:  fmt.Sprintf("%s added %q. Your share is %s %s.", by.Name(), e.Description, amount, e.Currency),
			Priority: domain.PriorityLow,
			Data:     map[string]any{"ledger_id": l.ID, "expense_id": e.ID},
		})
	}
}

// Approve and Reject decide on a pending expense. Admins only.
func (s *Service) Approve(ctx context.Context, userID int64, ledgerID string, id int64) (domain.SharedExpense, error) {
	return s.decide(ctx, userID, ledgerID, id, domain.ExpenseApproved)
}

func (s *Service) Reject(ctx context.Context, userID int64, ledgerID string, id int64) (domain.SharedExpense, error) {
	return s.decide(ctx, userID, ledgerID, id, domain.ExpenseRejected)
}

func (s *Service) decide(ctx context.Context, userID int64, ledgerID string, id int64, to domain.ExpenseStatus) (domain.SharedExpense, error) {
	_, me, err := s.access(ctx, ledgerID, userID, domain.RoleAdmin)
	if err != nil {
		return domain.SharedExpense{}, err
	}
	e, err := s.store.GetExpense(ctx, ledgerID, id)
	if err != nil {
		return domain.SharedExpense{}, err
	}
	if e.Status != domain.ExpensePending {
		return domain.SharedExpense{}, domain.ErrAlreadyProcessed
	}
	now := s.now()
	e.Status = to
	e.ApprovedBy, e.ApprovedAt = &userID, &now
	if err := s.store.UpdateExpense(ctx, &e); err != nil {
		return domain.SharedExpense{}, err
	}
	s.activity(ctx, ledgerID, userID, domain.ActivityExpenseUpdated,
		fmt.Sprintf("%s marked %q %s", me.Name(), e.Description, to), map[string]any{"expense_id": e.ID})
	s.refreshStats(ctx, ledgerID)
	return e, nil
}

// DeleteExpense removes an unsettled expense. The creator or an admin may
// delete it.
func (s *Service) DeleteExpense(ctx context.Context, userID int64, ledgerID string, id int64) error {
	_, me, err := s.access(ctx, ledgerID, userID, domain.RoleMember)
	if err != nil {
		return err
	}
	e, err := s.store.GetExpense(ctx, ledgerID, id)
	if err != nil {
		return err
	}
	if e.CreatedBy != userID && !me.Can(domain.RoleAdmin) {
		return domain.ErrInsufficientRole
	}
	if e.Status == domain.ExpenseSettled {
		return domain.Invalid("status", "settled expenses cannot be deleted")
	}
	if err := s.store.DeleteExpense(ctx, ledgerID, id); err != nil {
		return err
	}
	s.activity(ctx, ledgerID, userID, domain.ActivityExpenseDeleted,
		fmt.Sprintf("%s deleted %q", me.Name(), e.Description), map[string]any{"expense_id": e.ID})
	s.refreshStats(ctx, ledgerID)
	return nil
}
