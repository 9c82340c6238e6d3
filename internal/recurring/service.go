// Package recurring materialises recurring transaction templates into
// transactions, either on demand or from the scheduler.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// maxCatchUp bounds how many missed occurrences one run creates per template.
const maxCatchUp = 366

type Store interface {
	ListRecurring(ctx context.Context, userID int64) ([]domain.RecurringTransaction, error)
	GetRecurring(ctx context.Context, userID, id int64) (domain.RecurringTransaction, error)
	CreateRecurring(ctx context.Context, r *domain.RecurringTransaction) error
	UpdateRecurring(ctx context.Context, r *domain.RecurringTransaction) error
	DeleteRecurring(ctx context.Context, userID, id int64) error
	// ListDueRecurring returns active auto-create templates due on or before day.
	ListDueRecurring(ctx context.Context, day time.Time) ([]domain.RecurringTransaction, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

// TransactionCreator stores a materialised transaction and removes it again
// when the template could not be advanced.
type TransactionCreator interface {
	Create(ctx context.Context, userID int64, t domain.Transaction) (domain.Transaction, error)
	Delete(ctx context.Context, userID, id int64) error
}

type Service struct {
	store Store
	txs   TransactionCreator
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store Store, txs TransactionCreator, log zerolog.Logger) *Service {
	return &Service{store: store, txs: txs, log: log, now: time.Now}
}

func (s *Service) List(ctx context.Context, userID int64) ([]domain.RecurringTransaction, error) {
	return s.store.ListRecurring(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id int64) (domain.RecurringTransaction, error) {
	return s.store.GetRecurring(ctx, userID, id)
}

func (s *Service) Create(ctx context.Context, userID int64, r domain.RecurringTransaction) (domain.RecurringTransaction, error) {
	r.ID = 0
	r.UserID = userID
	r.TotalCreated = 0
	r.LastCreatedDate = nil
	r.IsActive = true
	if r.Currency == "" {
		r.Currency = s.defaultCurrency(ctx, userID)
	}
	r.Currency = strings.ToUpper(r.Currency)
	r.StartDate = domain.DateOnly(r.StartDate)
	r.NextDueDate = r.StartDate
	if err := r.Validate(); err != nil {
		return domain.RecurringTransaction{}, err
	}
	if err := s.store.CreateRecurring(ctx, &r); err != nil {
		return domain.RecurringTransaction{}, err
	}
	return r, nil
}

// Update replaces the template fields. The schedule restarts from the start
// date only if nothing has been created yet.
func (s *Service) Update(ctx context.Context, userID, id int64, in domain.RecurringTransaction) (domain.RecurringTransaction, error) {
	cur, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return domain.RecurringTransaction{}, err
	}
	in.ID, in.UserID = cur.ID, cur.UserID
	in.TotalCreated, in.LastCreatedDate = cur.TotalCreated, cur.LastCreatedDate
	in.CreatedAt = cur.CreatedAt
	if in.Currency == "" {
		in.Currency = cur.Currency
	}
	in.Currency = strings.ToUpper(in.Currency)
	in.StartDate = domain.DateOnly(in.StartDate)
	if cur.TotalCreated == 0 {
		in.NextDueDate = in.StartDate
	} else {
		in.NextDueDate = cur.NextDueDate
	}
	if err := in.Validate(); err != nil {
		return domain.RecurringTransaction{}, err
	}
	if err := s.store.UpdateRecurring(ctx, &in); err != nil {
		return domain.RecurringTransaction{}, err
	}
	return in, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return s.store.DeleteRecurring(ctx, userID, id)
}

// RunNow materialises the next occurrence of a template immediately.
func (s *Service) RunNow(ctx context.Context, userID, id int64) (domain.Transaction, error) {
	r, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !r.IsActive {
		return domain.Transaction{}, domain.Invalid("recurring", "template is inactive")
	}
	return s.materialise(ctx, &r)
}

// RunDue materialises every missed occurrence of the due templates and
// returns how many transactions were created. Failures of one template do not
// stop the others.
func (s *Service) RunDue(ctx context.Context) (int, error) {
	today := domain.DateOnly(s.now())
	due, err := s.store.ListDueRecurring(ctx, today)
	if err != nil {
		return 0, err
	}
	created := 0
	for i := range due {
		r := &due[i]
		for n := 0; n < maxCatchUp && r.Due(today); n++ {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			if _, err := s.materialise(ctx, r); err != nil {
				s.log.Error().Err(err).Int64("recurring_id", r.ID).Int64("user_id", r.UserID).Msg("materialise recurring transaction")
				break
			}
			created++
		}
	}
	return created, nil
}

// materialise creates the transaction for r.NextDueDate and advances the
// template. A template whose next date passes its end date is deactivated.
func (s *Service) materialise(ctx context.Context, r *domain.RecurringTransaction) (domain.Transaction, error) {
	due := r.NextDueDate
	t, err := s.txs.Create(ctx, r.UserID, domain.Transaction{
		Type:            r.Type,
		Amount:          r.Amount,
		Currency:        r.Currency,
		Description:     r.Description,
		CategoryID:      r.CategoryID,
		MerchantID:      r.MerchantID,
		Tags:            r.Tags,
		FromAccountID:   r.FromAccountID,
		ToAccountID:     r.ToAccountID,
		TransactionDate: due,
		IsRecurring:     true,
		IsManualEntry:   false,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			r.IsActive = false
			if uerr := s.store.UpdateRecurring(ctx, r); uerr != nil {
				s.log.Error().Err(uerr).Int64("recurring_id", r.ID).Msg("deactivate recurring template")
			}
		}
		return domain.Transaction{}, err
	}

	prev := *r
	r.TotalCreated++
	r.LastCreatedDate = &due
	r.NextDueDate = step(due, r.Frequency, r.StartDate.Day())
	if r.EndDate != nil && domain.DateOnly(r.NextDueDate).After(domain.DateOnly(*r.EndDate)) {
		r.IsActive = false
	}
	if err := s.store.UpdateRecurring(ctx, r); err != nil {
		*r = prev
		// The template still points at due, so the occurrence must not stay.
		if derr := s.txs.Delete(ctx, r.UserID, t.ID); derr != nil {
			s.log.Error().Err(derr).Int64("recurring_id", r.ID).Int64("transaction_id", t.ID).
				Time("due", due).Msg("template not advanced and transaction not removed, occurrence will repeat")
		}
		return domain.Transaction{}, fmt.Errorf("advance recurring template: %w", err)
	}
	return t, nil
}

func (s *Service) defaultCurrency(ctx context.Context, userID int64) string {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil || u.PreferredCurrency == "" {
		return domain.DefaultCurrency
	}
	return u.PreferredCurrency
}
