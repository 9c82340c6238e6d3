package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (s *Service) Payments(ctx context.Context, userID int64, ledgerID string) ([]domain.SharedPayment, error) {
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, ledgerID)
}

// CreatePayment records money sent from one member to another. The sender
// defaults to the caller; only the sender or an admin may record it.
// SplitIDs name the sender's unsettled splits the payment covers.
func (s *Service) CreatePayment(ctx context.Context, userID int64, ledgerID string, p domain.SharedPayment) (domain.SharedPayment, error) {
	l, me, err := s.access(ctx, ledgerID, userID, domain.RoleMember)
	if err != nil {
		return domain.SharedPayment{}, err
	}
	if p.FromMemberID == 0 {
		p.FromMemberID = me.ID
	}
	if p.FromMemberID != me.ID && !me.Can(domain.RoleAdmin) {
		return domain.SharedPayment{}, domain.ErrInsufficientRole
	}
	members, err := s.store.ListMembers(ctx, ledgerID)
	if err != nil {
		return domain.SharedPayment{}, err
	}
	var from, to *domain.LedgerMember
	for i := range members {
		m := &members[i]
		if m.Status != domain.MemberActive {
			continue
		}
		switch m.ID {
		case p.FromMemberID:
			from = m
		case p.ToMemberID:
			to = m
		}
	}
	if p.Currency == "" {
		p.Currency = l.Currency
	}
	if !strings.EqualFold(p.Currency, l.Currency) {
		return domain.SharedPayment{}, fmt.Errorf("%w: ledger uses %s", domain.ErrCurrencyMismatch, l.Currency)
	}
	p.Currency = l.Currency
	if p.PaymentDate.IsZero() {
		p.PaymentDate = domain.DateOnly(s.now())
	}
	if err := p.Validate(); err != nil {
		return domain.SharedPayment{}, err
	}
	if from == nil || to == nil {
		return domain.SharedPayment{}, domain.Invalid("members", "sender and receiver must be active members")
	}
	if len(p.SplitIDs) > 0 {
		if err := s.checkPaymentSplits(ctx, ledgerID, p); err != nil {
			return domain.SharedPayment{}, err
		}
	}
	p.ID = 0
	p.LedgerID = ledgerID
	p.IsConfirmed, p.ConfirmedBy, p.ConfirmedAt = false, nil, nil
	if err := s.store.CreatePayment(ctx, &p); err != nil {
		return domain.SharedPayment{}, err
	}
	s.activity(ctx, ledgerID, userID, domain.ActivityPaymentMade,
		fmt.Sprintf("%s paid %s %s %s", from.Name(), to.Name(), p.Amount.StringFixed(2), p.Currency),
		map[string]any{"payment_id": p.ID})
	if s.notifier != nil && to.NotifyOnPayment {
		s.notifier.Emit(ctx, domain.Notification{
			UserID:   to.UserID,
			Type:     domain.NotifyPaymentReminder,
			Title:    "Payment to confirm in " + l.Name,
			Message:  fmt.Sprintf("%s recorded a payment of %s %s to you.", from.Name(), p.Amount.StringFixed(2), p.Currency),
			Priority: domain.PriorityMedium,
			Data:     map[string]any{"ledger_id": l.ID, "payment_id": p.ID},
		})
	}
	return p, nil
}

// checkPaymentSplits requires every split to belong to the sender, be
// unsettled and sit on a counted expense of the ledger.
func (s *Service) checkPaymentSplits(ctx context.Context, ledgerID string, p domain.SharedPayment) error {
	expenses, err := s.store.ListExpenses(ctx, ledgerID)
	if err != nil {
		return err
	}
	owned := map[int64]bool{}
	for _, e := range expenses {
		if !e.Status.Counts() {
			continue
		}
		for _, sp := range e.Splits {
			if sp.MemberID == p.FromMemberID && !sp.IsSettled {
				owned[sp.ID] = true
			}
		}
	}
	seen := map[int64]bool{}
	for _, id := range p.SplitIDs {
		if !owned[id] || seen[id] {
			return domain.Invalid("split_ids", fmt.Sprintf("split %d is not an open share of the sender", id))
		}
		seen[id] = true
	}
	return nil
}

// ConfirmPayment is done by the receiver or an admin. It settles the covered
// splits and every expense left with no open split.
func (s *Service) ConfirmPayment(ctx context.Context, userID int64, ledgerID string, id int64) (domain.SharedPayment, error) {
	_, me, err := s.access(ctx, ledgerID, userID, domain.RoleViewer)
	if err != nil {
		return domain.SharedPayment{}, err
	}
	p, err := s.store.GetPayment(ctx, ledgerID, id)
	if err != nil {
		return domain.SharedPayment{}, err
	}
	if p.ToMemberID != me.ID && !me.Can(domain.RoleAdmin) {
		return domain.SharedPayment{}, domain.ErrInsufficientRole
	}
	if p.IsConfirmed {
		return domain.SharedPayment{}, domain.ErrAlreadyProcessed
	}

	expenses, err := s.store.ListExpenses(ctx, ledgerID)
	if err != nil {
		return domain.SharedPayment{}, err
	}
	settled := settledExpenses(expenses, p.SplitIDs)

	now := s.now()
	p.IsConfirmed = true
	p.ConfirmedBy, p.ConfirmedAt = &userID, &now
	if err := s.store.ConfirmPayment(ctx, &p, settled); err != nil {
		return domain.SharedPayment{}, err
	}
	s.activity(ctx, ledgerID, userID, domain.ActivityPaymentConfirmed,
		fmt.Sprintf("%s confirmed a payment of %s %s", me.Name(), p.Amount.StringFixed(2), p.Currency),
		map[string]any{"payment_id": p.ID})
	if len(settled) > 0 {
		s.activity(ctx, ledgerID, userID, domain.ActivitySettlementComplete,
			fmt.Sprintf("%d expense(s) fully settled", len(settled)), map[string]any{"expense_ids": settled})
	}
	s.refreshStats(ctx, ledgerID)
	return p, nil
}

// settledExpenses returns the counted, not yet settled expenses whose splits
// are all settled once splitIDs are.
func settledExpenses(expenses []domain.SharedExpense, splitIDs []int64) []int64 {
	if len(splitIDs) == 0 {
		return nil
	}
	covered := make(map[int64]bool, len(splitIDs))
	for _, id := range splitIDs {
		covered[id] = true
	}
	var out []int64
	for _, e := range expenses {
		if e.Status != domain.ExpenseApproved || len(e.Splits) == 0 {
			continue
		}
		touched, open := false, false
		for _, sp := range e.Splits {
			switch {
			case covered[sp.ID]:
				touched = true
			case !sp.IsSettled:
				open = true
			}
		}
		if touched && !open {
			out = append(out, e.ID)
		}
	}
	return out
}
