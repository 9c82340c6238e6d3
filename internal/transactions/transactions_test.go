package transactions

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/categorize"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type memStore struct {
	cats      []domain.Category
	merchants []domain.Merchant
	txs       []domain.Transaction
	splits    map[int64][]domain.TransactionSplit
	samples   []domain.TrainingSample
	pref      domain.UserPreference
	cfg       domain.AnalyticsConfiguration
}

func newMemStore() *memStore {
	owner := int64(1)
	return &memStore{
		cats: []domain.Category{
			{ID: 1, Name: "Groceries", Type: domain.CategoryExpense, IsSystemDefault: true, IsActive: true},
			{ID: 2, Name: "Salary", Type: domain.CategoryIncome, IsSystemDefault: true, IsActive: true},
			{ID: 3, Name: "Snacks", Type: domain.CategoryExpense, UserID: &owner, ParentID: ptr(1), IsActive: true},
			{ID: 4, Name: "Hidden", Type: domain.CategoryExpense, UserID: ptr(2), IsActive: true},
		},
		splits: map[int64][]domain.TransactionSplit{},
		pref:   domain.UserPreference{UserID: 1, AutoCategorizeTransactions: true},
		cfg:    domain.DefaultAnalyticsConfiguration(1),
	}
}

func ptr(v int64) *int64 { return &v }

func (m *memStore) ListCategories(_ context.Context, userID int64) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range m.cats {
		if c.UserID == nil || *c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetCategory(_ context.Context, id int64) (domain.Category, error) {
	for _, c := range m.cats {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Category{}, domain.ErrNotFound
}

func (m *memStore) CreateCategory(_ context.Context, c *domain.Category) error {
	c.ID = int64(len(m.cats) + 1)
	m.cats = append(m.cats, *c)
	return nil
}

func (m *memStore) UpdateCategory(_ context.Context, c *domain.Category) error {
	for i := range m.cats {
		if m.cats[i].ID == c.ID {
			m.cats[i] = *c
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) ListMerchants(_ context.Context, userID int64) ([]domain.Merchant, error) {
	return m.merchants, nil
}

func (m *memStore) GetMerchant(_ context.Context, userID, id int64) (domain.Merchant, error) {
	for _, mm := range m.merchants {
		if mm.ID == id && mm.UserID == userID {
			return mm, nil
		}
	}
	return domain.Merchant{}, domain.ErrNotFound
}

func (m *memStore) FindMerchantByName(_ context.Context, userID int64, name string) (domain.Merchant, error) {
	for _, mm := range m.merchants {
		if mm.UserID == userID && strings.EqualFold(mm.Name, name) {
			return mm, nil
		}
	}
	return domain.Merchant{}, domain.ErrNotFound
}

func (m *memStore) CreateMerchant(_ context.Context, mm *domain.Merchant) error {
	mm.ID = int64(len(m.merchants) + 1)
	m.merchants = append(m.merchants, *mm)
	return nil
}

func (m *memStore) UpdateMerchant(_ context.Context, mm *domain.Merchant) error {
	for i := range m.merchants {
		if m.merchants[i].ID == mm.ID {
			m.merchants[i] = *mm
		}
	}
	return nil
}

func (m *memStore) RecordMerchantExpense(_ context.Context, id int64, amount decimal.Decimal, at time.Time) error {
	for i := range m.merchants {
		if m.merchants[i].ID == id {
			m.merchants[i].RecordExpense(amount, at)
		}
	}
	return nil
}

func (m *memStore) ListTransactions(_ context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error) {
	var all []domain.Transaction
	for _, t := range m.txs {
		if t.UserID != f.UserID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		all = append(all, t)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].TransactionDate.After(all[j].TransactionDate) })
	end := f.Offset() + f.PageSize
	if end > len(all) {
		end = len(all)
	}
	if f.Offset() >= len(all) {
		return nil, len(all), nil
	}
	return all[f.Offset():end], len(all), nil
}

func (m *memStore) GetTransaction(_ context.Context, userID, id int64) (domain.Transaction, error) {
	for _, t := range m.txs {
		if t.ID == id && t.UserID == userID {
			return t, nil
		}
	}
	return domain.Transaction{}, domain.ErrNotFound
}

func (m *memStore) CreateTransaction(_ context.Context, t *domain.Transaction) error {
	t.ID = int64(len(m.txs) + 1)
	m.txs = append(m.txs, *t)
	return nil
}

func (m *memStore) UpdateTransaction(_ context.Context, t *domain.Transaction) error {
	for i := range m.txs {
		if m.txs[i].ID == t.ID {
			m.txs[i] = *t
		}
	}
	return nil
}

func (m *memStore) DeleteTransaction(_ context.Context, userID, id int64) error {
	for i, t := range m.txs {
		if t.ID == id && t.UserID == userID {
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) ListSplits(_ context.Context, id int64) ([]domain.TransactionSplit, error) {
	return m.splits[id], nil
}

func (m *memStore) ReplaceSplits(_ context.Context, id int64, splits []domain.TransactionSplit) error {
	m.splits[id] = splits
	return nil
}

func (m *memStore) CreateTrainingSample(_ context.Context, s *domain.TrainingSample) error {
	m.samples = append(m.samples, *s)
	return nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	return domain.User{ID: id, PreferredCurrency: "LKR"}, nil
}

func (m *memStore) GetPreference(context.Context, int64) (domain.UserPreference, error) {
	return m.pref, nil
}

func (m *memStore) GetAnalyticsConfig(context.Context, int64) (domain.AnalyticsConfiguration, error) {
	return m.cfg, nil
}

type fixedCategorizer struct {
	sug   categorize.Suggestion
	calls int
}

func (f *fixedCategorizer) Suggest(context.Context, categorize.Input) (categorize.Suggestion, error) {
	f.calls++
	return f.sug, nil
}

type budgetSpy struct{ checked []domain.Transaction }

func (b *budgetSpy) CheckTransaction(_ context.Context, t domain.Transaction) error {
	b.checked = append(b.checked, t)
	return nil
}

type notifierSpy struct{ sent []domain.Notification }

func (n *notifierSpy) Emit(_ context.Context, note domain.Notification) {
	n.sent = append(n.sent, note)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func expense(amount, desc string) domain.Transaction {
	return domain.Transaction{
		Type:            domain.TypeExpense,
		Amount:          d(amount),
		Description:     desc,
		TransactionDate: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateDefaultsAndSideEffects(t *testing.T) {
	store := newMemStore()
	budgets := &budgetSpy{}
	notes := &notifierSpy{}
	svc := NewService(store, nil, budgets, notes, zerolog.Nop())

	in := expense("1500.00", "Weekly shop")
	in.MerchantName = "Keells"
	in.Tags = " Food, food ,weekly"
	got, err := svc.Create(context.Background(), 1, in)
	if err != nil {
		t.Fatal(err)
	}
	if got.Currency != "LKR" || got.Status != domain.StatusCompleted || got.Tags != "food,weekly" {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.MerchantID == nil || len(store.merchants) != 1 {
		t.Fatalf("merchant not created: %+v", store.merchants)
	}
	m := store.merchants[0]
	if m.TotalTransactions != 1 || !m.TotalAmountSpent.Equal(d("1500")) || m.FirstTransactionDate == nil {
		t.Errorf("merchant stats not updated: %+v", m)
	}
	if len(budgets.checked) != 1 {
		t.Errorf("budget check ran %d times", len(budgets.checked))
	}
	if len(notes.sent) != 1 || notes.sent[0].Type != domain.NotifyTransaction {
		t.Errorf("large transaction alert missing: %+v", notes.sent)
	}

	if _, err := svc.Create(context.Background(), 1, expense("20", "Tea")); err != nil {
		t.Fatal(err)
	}
	if len(notes.sent) != 1 {
		t.Error("alert sent for a small transaction")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil, nil, zerolog.Nop())
	ctx := context.Background()

	hidden := expense("10", "x")
	hidden.CategoryID = ptr(4)
	if _, err := svc.Create(ctx, 1, hidden); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("foreign category accepted: %v", err)
	}
	if _, err := svc.Create(ctx, 1, expense("0.001", "x")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("sub-cent amount accepted: %v", err)
	}
	transfer := expense("10", "move")
	transfer.Type = domain.TypeTransfer
	transfer.FromAccountID, transfer.ToAccountID = ptr(1), ptr(1)
	if _, err := svc.Create(ctx, 1, transfer); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("transfer to the same account accepted: %v", err)
	}
}

func TestAutoCategorisation(t *testing.T) {
	store := newMemStore()
	cat := &fixedCategorizer{sug: categorize.Suggestion{CategoryID: ptr(1), CategoryName: "Groceries", Confidence: 0.9, Source: categorize.SourceKeyword}}
	svc := NewService(store, cat, nil, nil, zerolog.Nop())
	ctx := context.Background()

	got, err := svc.Create(ctx, 1, expense("10", "cargills"))
	if err != nil {
		t.Fatal(err)
	}
	if got.CategoryID == nil || *got.CategoryID != 1 || !got.IsAutoCategorized || got.NeedsReview {
		t.Errorf("confident suggestion not applied: %+v", got)
	}

	cat.sug.Confidence = 0.6
	got, _ = svc.Create(ctx, 1, expense("10", "cargills"))
	if got.CategoryID != nil || !got.NeedsReview || got.ConfidenceScore == nil || *got.ConfidenceScore != 0.6 {
		t.Errorf("weak suggestion should flag for review: %+v", got)
	}

	store.pref.AutoCategorizeTransactions = false
	calls := cat.calls
	svc.Create(ctx, 1, expense("10", "cargills"))
	if cat.calls != calls {
		t.Error("categoriser ran although the user disabled it")
	}
}

func TestRecategoriseRecordsSample(t *testing.T) {
	store := newMemStore()
	cat := &fixedCategorizer{sug: categorize.Suggestion{CategoryID: ptr(1), Confidence: 0.9}}
	svc := NewService(store, cat, nil, nil, zerolog.Nop())
	ctx := context.Background()

	tx, _ := svc.Create(ctx, 1, expense("10", "Chocolate bar"))
	upd := tx
	upd.CategoryID = ptr(3)
	got, err := svc.Update(ctx, 1, tx.ID, upd)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsAutoCategorized || len(store.samples) != 1 {
		t.Fatalf("correction not recorded: %+v samples=%d", got, len(store.samples))
	}
	s := store.samples[0]
	if s.CategoryID != 3 || s.PredictedCategoryID == nil || *s.PredictedCategoryID != 1 || len(s.Features) == 0 {
		t.Errorf("sample = %+v", s)
	}

	if _, err := svc.Update(ctx, 2, tx.ID, upd); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("other user updated the transaction: %v", err)
	}
}

func TestReplaceSplits(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil, zerolog.Nop())
	ctx := context.Background()
	tx, _ := svc.Create(ctx, 1, expense("100.00", "Supermarket"))

	bad := []domain.TransactionSplit{{CategoryID: 1, Amount: d("60")}, {CategoryID: 3, Amount: d("30")}}
	if _, err := svc.ReplaceSplits(ctx, 1, tx.ID, bad); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("splits not adding up accepted: %v", err)
	}
	good := []domain.TransactionSplit{{CategoryID: 1, Amount: d("60")}, {CategoryID: 3, Amount: d("40")}}
	got, err := svc.ReplaceSplits(ctx, 1, tx.ID, good)
	if err != nil || len(got) != 2 || got[0].TransactionID != tx.ID {
		t.Fatalf("replace: %v %+v", err, got)
	}

	upd := tx
	upd.Amount = d("120")
	if _, err := svc.Update(ctx, 1, tx.ID, upd); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("amount change breaking splits accepted: %v", err)
	}
}

func TestCategoryRules(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil, zerolog.Nop())
	ctx := context.Background()

	views, err := svc.ListCategories(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 3 {
		t.Fatalf("visible categories = %d", len(views))
	}
	for _, v := range views {
		if v.ID == 3 && v.FullPath != "Groceries > Snacks" {
			t.Errorf("full path = %q", v.FullPath)
		}
	}

	if _, err := svc.UpdateCategory(ctx, 1, 1, domain.Category{Name: "Food", Type: domain.CategoryExpense}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("system category edited: %v", err)
	}
	child, err := svc.CreateCategory(ctx, 1, domain.Category{Name: "Chips", Type: domain.CategoryExpense, ParentID: ptr(3)})
	if err != nil {
		t.Fatal(err)
	}
	loop := domain.Category{Name: "Snacks", Type: domain.CategoryExpense, ParentID: &child.ID, IsActive: true}
	if _, err := svc.UpdateCategory(ctx, 1, 3, loop); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("cycle accepted: %v", err)
	}
}

func TestExportImportCSV(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil, zerolog.Nop())
	ctx := context.Background()

	input := "date,TYPE,Amount,Description,Category,Merchant\n" +
		"2024-03-01,expense,250.50,Lunch,Snacks,Pilawoos\n" +
		"2024-03-02,income,100000,March salary,salary,\n" +
		"03/04/2024,expense,10,Bad date,,\n" +
		"2024-03-05,expense,10,Unknown category,Yachts,\n"
	res, err := svc.Import(ctx, 1, strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 || len(res.Errors) != 2 || res.Errors[0].Row != 4 || res.Errors[1].Row != 5 {
		t.Fatalf("result = %+v", res)
	}
	if !store.txs[0].IsManualEntry || store.txs[0].MerchantID == nil {
		t.Errorf("imported row = %+v", store.txs[0])
	}

	for i := range store.txs {
		if store.txs[i].CategoryID != nil {
			c, _ := store.GetCategory(ctx, *store.txs[i].CategoryID)
			store.txs[i].CategoryName = c.Name
		}
	}
	var buf bytes.Buffer
	if err := svc.Export(ctx, 1, &buf); err != nil {
		t.Fatal(err)
	}
	want := "Date,Type,Amount,Description,Category,Merchant\n" +
		"2024-03-02,income,100000.00,March salary,Salary,\n" +
		"2024-03-01,expense,250.50,Lunch,Snacks,Pilawoos\n"
	if buf.String() != want {
		t.Errorf("export:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestImportRejectsMissingColumns(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil, nil, zerolog.Nop())
	if _, err := svc.Import(context.Background(), 1, strings.NewReader("Date,Amount\n")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("got %v", err)
	}
}
