package recurring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextDueDate(t *testing.T) {
	cases := []struct {
		from time.Time
		freq domain.Frequency
		want time.Time
	}{
		{day(2024, 1, 31), domain.FrequencyDaily, day(2024, 2, 1)},
		{day(2024, 1, 31), domain.FrequencyWeekly, day(2024, 2, 7)},
		{day(2024, 1, 31), domain.FrequencyBiWeekly, day(2024, 2, 14)},
		{day(2024, 1, 31), domain.FrequencyMonthly, day(2024, 2, 29)},
		{day(2023, 1, 31), domain.FrequencyMonthly, day(2023, 2, 28)},
		{day(2024, 11, 30), domain.FrequencyQuarterly, day(2025, 2, 28)},
		{day(2024, 8, 31), domain.FrequencySemiAnnual, day(2025, 2, 28)},
		{day(2024, 2, 29), domain.FrequencyAnnual, day(2025, 2, 28)},
	}
	for _, c := range cases {
		if got := NextDueDate(c.from, c.freq); !got.Equal(c.want) {
			t.Errorf("NextDueDate(%s, %s) = %s, want %s", c.from.Format("2006-01-02"), c.freq, got.Format("2006-01-02"), c.want.Format("2006-01-02"))
		}
	}
}

func TestMonthlyStepReturnsToAnchorDay(t *testing.T) {
	d := day(2024, 1, 31)
	var got []int
	for i := 0; i < 3; i++ {
		d = step(d, domain.FrequencyMonthly, 31)
		got = append(got, d.Day())
	}
	if got[0] != 29 || got[1] != 31 || got[2] != 30 {
		t.Errorf("days = %v, want [29 31 30]", got)
	}
}

type memStore struct {
	templates map[int64]domain.RecurringTransaction
	updateErr error
}

func (m *memStore) ListRecurring(context.Context, int64) ([]domain.RecurringTransaction, error) {
	var out []domain.RecurringTransaction
	for _, r := range m.templates {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) GetRecurring(_ context.Context, userID, id int64) (domain.RecurringTransaction, error) {
	r, ok := m.templates[id]
	if !ok || r.UserID != userID {
		return r, domain.ErrNotFound
	}
	return r, nil
}

func (m *memStore) CreateRecurring(_ context.Context, r *domain.RecurringTransaction) error {
	r.ID = int64(len(m.templates) + 1)
	m.templates[r.ID] = *r
	return nil
}

func (m *memStore) UpdateRecurring(_ context.Context, r *domain.RecurringTransaction) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.templates[r.ID] = *r
	return nil
}

func (m *memStore) DeleteRecurring(_ context.Context, _, id int64) error {
	delete(m.templates, id)
	return nil
}

func (m *memStore) ListDueRecurring(_ context.Context, today time.Time) ([]domain.RecurringTransaction, error) {
	var out []domain.RecurringTransaction
	for _, r := range m.templates {
		if r.IsActive && r.AutoCreate && !r.NextDueDate.After(today) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	return domain.User{ID: id, PreferredCurrency: "USD"}, nil
}

type txRecorder struct {
	created []domain.Transaction
	deleted []int64
	err     error
}

func (r *txRecorder) Create(_ context.Context, userID int64, t domain.Transaction) (domain.Transaction, error) {
	if r.err != nil {
		return domain.Transaction{}, r.err
	}
	t.UserID = userID
	t.ID = int64(len(r.created) + 1)
	r.created = append(r.created, t)
	return t, nil
}

func (r *txRecorder) Delete(_ context.Context, _, id int64) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func newService(now time.Time) (*Service, *memStore, *txRecorder) {
	store := &memStore{templates: map[int64]domain.RecurringTransaction{}}
	txs := &txRecorder{}
	svc := NewService(store, txs, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc, store, txs
}

func rent(start time.Time) domain.RecurringTransaction {
	return domain.RecurringTransaction{
		Name:        "Rent",
		Type:        domain.TypeExpense,
		Amount:      decimal.NewFromInt(45000),
		Description: "Monthly rent",
		Frequency:   domain.FrequencyMonthly,
		StartDate:   start,
		AutoCreate:  true,
	}
}

func TestCreateDefaults(t *testing.T) {
	svc, _, _ := newService(day(2024, 1, 1))
	r, err := svc.Create(context.Background(), 1, rent(day(2024, 1, 31)))
	if err != nil {
		t.Fatal(err)
	}
	if !r.NextDueDate.Equal(day(2024, 1, 31)) || r.Currency != "USD" || !r.IsActive {
		t.Errorf("got %+v", r)
	}
}

func TestRunDueCatchesUp(t *testing.T) {
	svc, store, txs := newService(day(2024, 4, 15))
	ctx := context.Background()
	in := rent(day(2024, 1, 31))
	end := day(2024, 3, 31)
	in.EndDate = &end
	r, _ := svc.Create(ctx, 1, in)

	n, err := svc.RunDue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(txs.created) != 3 {
		t.Fatalf("created %d transactions, want 3", n)
	}
	wantDates := []time.Time{day(2024, 1, 31), day(2024, 2, 29), day(2024, 3, 31)}
	for i, tx := range txs.created {
		if !tx.TransactionDate.Equal(wantDates[i]) || !tx.IsRecurring || tx.IsManualEntry {
			t.Errorf("transaction %d = %+v", i, tx)
		}
	}
	got := store.templates[r.ID]
	if got.IsActive || got.TotalCreated != 3 || !got.LastCreatedDate.Equal(day(2024, 3, 31)) {
		t.Errorf("template after run = %+v", got)
	}

	if n, _ := svc.RunDue(ctx); n != 0 {
		t.Errorf("second run created %d", n)
	}
}

func TestRunNow(t *testing.T) {
	svc, store, txs := newService(day(2024, 1, 1))
	ctx := context.Background()
	r, _ := svc.Create(ctx, 1, rent(day(2024, 2, 1)))

	if _, err := svc.RunNow(ctx, 1, r.ID); err != nil {
		t.Fatal(err)
	}
	if len(txs.created) != 1 || !store.templates[r.ID].NextDueDate.Equal(day(2024, 3, 1)) {
		t.Errorf("run now did not advance the template: %+v", store.templates[r.ID])
	}
	if _, err := svc.RunNow(ctx, 2, r.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("other user ran the template: %v", err)
	}
}

func TestInvalidTemplateIsDeactivated(t *testing.T) {
	svc, store, txs := newService(day(2024, 3, 1))
	ctx := context.Background()
	r, _ := svc.Create(ctx, 1, rent(day(2024, 2, 1)))
	txs.err = domain.Invalid("category_id", "is not a visible category")

	if n, _ := svc.RunDue(ctx); n != 0 {
		t.Errorf("created %d", n)
	}
	if store.templates[r.ID].IsActive {
		t.Error("template kept active after an invalid materialisation")
	}
}

func TestFailedAdvanceRemovesTransaction(t *testing.T) {
	svc, store, txs := newService(day(2024, 3, 1))
	ctx := context.Background()
	r, _ := svc.Create(ctx, 1, rent(day(2024, 2, 1)))
	store.updateErr = errors.New("connection reset")

	if n, _ := svc.RunDue(ctx); n != 0 {
		t.Errorf("created %d", n)
	}
	if len(txs.created) != 1 || len(txs.deleted) != 1 || txs.deleted[0] != txs.created[0].ID {
		t.Fatalf("created %v, deleted %v", txs.created, txs.deleted)
	}
	if got := store.templates[r.ID]; !got.NextDueDate.Equal(day(2024, 2, 1)) || got.TotalCreated != 0 {
		t.Errorf("template changed: %+v", got)
	}

	store.updateErr = nil
	if _, err := svc.RunNow(ctx, 1, r.ID); err != nil {
		t.Fatal(err)
	}
	if got := store.templates[r.ID]; !got.NextDueDate.Equal(day(2024, 3, 1)) || got.TotalCreated != 1 {
		t.Errorf("template after retry: %+v", got)
	}
}
