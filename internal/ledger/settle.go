package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// Balances computes every member's net position from the counted expenses
// and the confirmed payments. The balances sum to zero.
func Balances(members []domain.LedgerMember, expenses []domain.SharedExpense, payments []domain.SharedPayment) []domain.MemberBalance {
	idx := make(map[int64]int, len(members))
	out := make([]domain.MemberBalance, 0, len(members))
	add := func(id int64, name string) int {
		if i, ok := idx[id]; ok {
			return i
		}
		idx[id] = len(out)
		out = append(out, domain.MemberBalance{MemberID: id, Name: name,
			Paid: decimal.Zero, Share: decimal.Zero, PaymentsSent: decimal.Zero, PaymentsRecvd: decimal.Zero})
		return len(out) - 1
	}
	for _, m := range members {
		add(m.ID, m.Name())
	}

	for _, e := range expenses {
		if !e.Status.Counts() {
			continue
		}
		i := add(e.PaidBy, "")
		out[i].Paid = out[i].Paid.Add(e.Amount)
		for _, sp := range e.Splits {
			j := add(sp.MemberID, "")
			out[j].Share = out[j].Share.Add(sp.Amount)
		}
	}
	for _, p := range payments {
		if !p.IsConfirmed {
			continue
		}
		i := add(p.FromMemberID, "")
		out[i].PaymentsSent = out[i].PaymentsSent.Add(p.Amount)
		j := add(p.ToMemberID, "")
		out[j].PaymentsRecvd = out[j].PaymentsRecvd.Add(p.Amount)
	}
	for i := range out {
		b := &out[i]
		b.Balance = b.Paid.Sub(b.Share).Add(b.PaymentsSent).Sub(b.PaymentsRecvd)
	}
	return out
}

// SettlementPlan pairs the largest debtor with the largest creditor until
// every balance is zero. It yields at most n-1 transfers.
func SettlementPlan(balances []domain.MemberBalance) []domain.Transfer {
	type pos struct {
		id     int64
		amount decimal.Decimal
	}
	var debtors, creditors []pos
	for _, b := range balances {
		switch b.Balance.Sign() {
		case 1:
			creditors = append(creditors, pos{b.MemberID, b.Balance})
		case -1:
			debtors = append(debtors, pos{b.MemberID, b.Balance.Neg()})
		}
	}
	byAmount := func(p []pos) func(i, j int) bool {
		return func(i, j int) bool {
			if c := p[i].amount.Cmp(p[j].amount); c != 0 {
				return c > 0
			}
			return p[i].id < p[j].id
		}
	}

	var plan []domain.Transfer
	for len(debtors) > 0 && len(creditors) > 0 {
		sort.SliceStable(debtors, byAmount(debtors))
		sort.SliceStable(creditors, byAmount(creditors))
		d, c := &debtors[0], &creditors[0]
		amt := decimal.Min(d.amount, c.amount)
		plan = append(plan, domain.Transfer{FromMemberID: d.id, ToMemberID: c.id, Amount: amt})
		d.amount = d.amount.Sub(amt)
		c.amount = c.amount.Sub(amt)
		if d.amount.IsZero() {
			debtors = debtors[1:]
		}
		if c.amount.IsZero() {
			creditors = creditors[1:]
		}
	}
	return plan
}

func (s *Service) positions(ctx context.Context, ledgerID string) ([]domain.MemberBalance, error) {
	members, err := s.store.ListMembers(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpenses(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	return Balances(members, expenses, payments), nil
}

func (s *Service) Balances(ctx context.Context, userID int64, ledgerID string) ([]domain.MemberBalance, error) {
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.positions(ctx, ledgerID)
}

func (s *Service) Settlement(ctx context.Context, userID int64, ledgerID string) ([]domain.Transfer, error) {
	if _, _, err := s.access(ctx, ledgerID, userID, domain.RoleViewer); err != nil {
		return nil, err
	}
	balances, err := s.positions(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	return SettlementPlan(balances), nil
}
