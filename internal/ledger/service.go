// Package ledger implements shared ledgers: membership and invites, shared
// expenses with their splits, payments between members and settlement.
package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type Store interface {
	// CreateLedger stores the ledger and its first admin member together.
	CreateLedger(ctx context.Context, l *domain.SharedLedger, admin *domain.LedgerMember) error
	GetLedger(ctx context.Context, id string) (domain.SharedLedger, error)
	GetLedgerByInviteCode(ctx context.Context, code string) (domain.SharedLedger, error)
	ListLedgers(ctx context.Context, userID int64) ([]domain.SharedLedger, error)
	UpdateLedger(ctx context.Context, l *domain.SharedLedger) error
	UpdateLedgerStats(ctx context.Context, id string, totalExpenses decimal.Decimal, totalMembers int) error

	ListMembers(ctx context.Context, ledgerID string) ([]domain.LedgerMember, error)
	GetMember(ctx context.Context, ledgerID string, userID int64) (domain.LedgerMember, error)
	CreateMember(ctx context.Context, m *domain.LedgerMember) error
	UpdateMember(ctx context.Context, m *domain.LedgerMember) error

	CreateInvite(ctx context.Context, inv *domain.LedgerInvite) error
	GetInvite(ctx context.Context, ledgerID string, id int64) (domain.LedgerInvite, error)
	GetInviteByToken(ctx context.Context, token string) (domain.LedgerInvite, error)
	ListInvites(ctx context.Context, ledgerID string) ([]domain.LedgerInvite, error)
	UpdateInvite(ctx context.Context, inv *domain.LedgerInvite) error

	// CreateExpense stores the expense and its splits together.
	CreateExpense(ctx context.Context, e *domain.SharedExpense) error
	GetExpense(ctx context.Context, ledgerID string, id int64) (domain.SharedExpense, error)
	// ListExpenses returns the ledger's expenses with their splits, newest first.
	ListExpenses(ctx context.Context, ledgerID string) ([]domain.SharedExpense, error)
	UpdateExpense(ctx context.Context, e *domain.SharedExpense) error
	DeleteExpense(ctx context.Context, ledgerID string, id int64) error

	CreatePayment(ctx context.Context, p *domain.SharedPayment) error
	GetPayment(ctx context.Context, ledgerID string, id int64) (domain.SharedPayment, error)
	ListPayments(ctx context.Context, ledgerID string) ([]domain.SharedPayment, error)
	// ConfirmPayment stores the confirmation, settles the payment's splits with
	// its method and marks the given expenses settled in one transaction.
	ConfirmPayment(ctx context.Context, p *domain.SharedPayment, settledExpenses []int64) error

	AddActivity(ctx context.Context, a *domain.LedgerActivity) error
	ListActivity(ctx context.Context, ledgerID string, limit int) ([]domain.LedgerActivity, error)

	GetUser(ctx context.Context, id int64) (domain.User, error)
}

type TransactionCreator interface {
	Create(ctx context.Context, userID int64, t domain.Transaction) (domain.Transaction, error)
	Delete(ctx context.Context, userID, id int64) error
}

type Notifier interface {
	Emit(ctx context.Context, n domain.Notification)
}

type Service struct {
	store    Store
	txs      TransactionCreator
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewService builds the ledger service. txs and notifier may be nil.
func NewService(store Store, txs TransactionCreator, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{store: store, txs: txs, notifier: notifier, log: log, now: time.Now}
}

// access loads the ledger and the caller's membership. Users without an
// active membership get ErrNotFound; members below min get
// ErrInsufficientRole.
func (s *Service) access(ctx context.Context, ledgerID string, userID int64, min domain.MemberRole) (domain.SharedLedger, domain.LedgerMember, error) {
	m, err := s.store.GetMember(ctx, ledgerID, userID)
	if err != nil {
		return domain.SharedLedger{}, domain.LedgerMember{}, err
	}
	if m.Status != domain.MemberActive {
		return domain.SharedLedger{}, domain.LedgerMember{}, domain.ErrNotFound
	}
	if !m.Can(min) {
		return domain.SharedLedger{}, domain.LedgerMember{}, fmt.Errorf("%w: %s role required", domain.ErrInsufficientRole, min)
	}
	l, err := s.store.GetLedger(ctx, ledgerID)
	if err != nil {
		return domain.SharedLedger{}, domain.LedgerMember{}, err
	}
	return l, m, nil
}

func (s *Service) activity(ctx context.Context, ledgerID string, userID int64, typ domain.ActivityType, desc string, data map[string]any) {
	a := domain.LedgerActivity{LedgerID: ledgerID, UserID: userID, Type: typ, Description: desc, Data: data, CreatedAt: s.now()}
	if err := s.store.AddActivity(ctx, &a); err != nil {
		s.log.Warn().Err(err).Str("ledger_id", ledgerID).Str("activity", string(typ)).Msg("record ledger activity")
	}
}

// refreshStats recomputes the cached expense total and member count.
func (s *Service) refreshStats(ctx context.Context, ledgerID string) {
	expenses, err := s.store.ListExpenses(ctx, ledgerID)
	if err == nil {
		var members []domain.LedgerMember
		members, err = s.store.ListMembers(ctx, ledgerID)
		if err == nil {
			total := decimal.Zero
			for _, e := range expenses {
				if e.Status.Counts() {
					total = total.Add(e.Amount)
				}
			}
			active := 0
			for _, m := range members {
				if m.Status == domain.MemberActive {
					active++
				}
			}
			err = s.store.UpdateLedgerStats(ctx, ledgerID, total, active)
		}
	}
	if err != nil {
		s.log.Warn().Err(err).Str("ledger_id", ledgerID).Msg("refresh ledger stats")
	}
}

const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newInviteCode draws InviteCodeLength characters from A-Z0-9.
func newInviteCode() (string, error) {
	// 252 is the largest multiple of 36 below 256; larger bytes are redrawn.
	const limit = 252
	out := make([]byte, 0, domain.InviteCodeLength)
	buf := make([]byte, 2*domain.InviteCodeLength)
	for len(out) < domain.InviteCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b < limit && len(out) < domain.InviteCodeLength {
				out = append(out, inviteAlphabet[int(b)%len(inviteAlphabet)])
			}
		}
	}
	return string(out), nil
}

// newToken returns a random version 4 UUID.
func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:]), nil
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
