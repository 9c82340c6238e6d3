package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type memStore struct {
	periods   []domain.BudgetPeriod
	budgets   map[int64]domain.Budget
	txs       []domain.Transaction
	splits    map[int64][]domain.TransactionSplit
	templates map[int64]domain.BudgetTemplate
	goals     map[int64]domain.BudgetGoal
	contribs  []domain.GoalContribution
	alerts    int
}

func newMemStore() *memStore {
	return &memStore{
		budgets:   map[int64]domain.Budget{},
		splits:    map[int64][]domain.TransactionSplit{},
		templates: map[int64]domain.BudgetTemplate{},
		goals:     map[int64]domain.BudgetGoal{},
	}
}

func (m *memStore) ListPeriods(context.Context, bool) ([]domain.BudgetPeriod, error) {
	return m.periods, nil
}

func (m *memStore) GetPeriod(_ context.Context, id int64) (domain.BudgetPeriod, error) {
	for _, p := range m.periods {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.BudgetPeriod{}, domain.ErrNotFound
}

func (m *memStore) CreatePeriod(_ context.Context, p *domain.BudgetPeriod) error {
	p.ID = int64(len(m.periods) + 1)
	m.periods = append(m.periods, *p)
	return nil
}

func (m *memStore) EnsurePeriod(ctx context.Context, p *domain.BudgetPeriod) error {
	for _, e := range m.periods {
		if e.PeriodType == p.PeriodType && e.StartDate.Equal(p.StartDate) && e.EndDate.Equal(p.EndDate) {
			*p = e
			return nil
		}
	}
	return m.CreatePeriod(ctx, p)
}

func (m *memStore) ListBudgets(_ context.Context, userID int64, status domain.BudgetStatus) ([]domain.Budget, error) {
	var out []domain.Budget
	for _, b := range m.budgets {
		if b.UserID == userID && (status == "" || b.Status == status) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) ListBudgetsOn(_ context.Context, userID int64, day time.Time) ([]domain.Budget, error) {
	var out []domain.Budget
	for _, b := range m.budgets {
		if b.UserID == userID && b.Status == domain.BudgetActive && b.Period.Contains(day) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) GetBudget(_ context.Context, userID, id int64) (domain.Budget, error) {
	b, ok := m.budgets[id]
	if !ok || b.UserID != userID {
		return domain.Budget{}, domain.ErrNotFound
	}
	b.Items = append([]domain.BudgetItem(nil), b.Items...)
	return b, nil
}

func (m *memStore) CreateBudget(_ context.Context, b *domain.Budget) error {
	b.ID = int64(len(m.budgets) + 1)
	for i := range b.Items {
		b.Items[i].ID = b.ID*100 + int64(i)
		b.Items[i].BudgetID = b.ID
	}
	m.budgets[b.ID] = *b
	return nil
}

func (m *memStore) UpdateBudget(_ context.Context, b *domain.Budget) error {
	m.budgets[b.ID] = *b
	return nil
}

func (m *memStore) DeleteBudget(_ context.Context, _, id int64) error {
	delete(m.budgets, id)
	return nil
}

func (m *memStore) SaveBudgetTotals(_ context.Context, b *domain.Budget) error {
	m.budgets[b.ID] = *b
	return nil
}

func (m *memStore) MarkBudgetAlertSent(_ context.Context, id int64, at time.Time) error {
	b := m.budgets[id]
	b.AlertSentAt = &at
	m.budgets[id] = b
	m.alerts++
	return nil
}

func (m *memStore) RolloverBudget(ctx context.Context, prev, next *domain.Budget) error {
	m.budgets[prev.ID] = *prev
	return m.CreateBudget(ctx, next)
}

func (m *memStore) CreateBudgetItem(_ context.Context, it *domain.BudgetItem) error {
	b := m.budgets[it.BudgetID]
	it.ID = it.BudgetID*100 + int64(len(b.Items))
	b.Items = append(b.Items, *it)
	m.budgets[it.BudgetID] = b
	return nil
}

func (m *memStore) UpdateBudgetItem(_ context.Context, it *domain.BudgetItem) error {
	b := m.budgets[it.BudgetID]
	for i := range b.Items {
		if b.Items[i].ID == it.ID {
			b.Items[i] = *it
		}
	}
	return nil
}

func (m *memStore) DeleteBudgetItem(_ context.Context, budgetID, itemID int64) error {
	return nil
}

func (m *memStore) TransactionsBetween(_ context.Context, userID int64, from, to time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range m.txs {
		if t.UserID == userID && !t.TransactionDate.Before(from) && t.TransactionDate.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) SplitsFor(_ context.Context, ids []int64) (map[int64][]domain.TransactionSplit, error) {
	out := map[int64][]domain.TransactionSplit{}
	for _, id := range ids {
		if s, ok := m.splits[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (m *memStore) ListTemplates(context.Context, int64) ([]domain.BudgetTemplate, error) {
	var out []domain.BudgetTemplate
	for _, t := range m.templates {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) GetTemplate(_ context.Context, id int64) (domain.BudgetTemplate, error) {
	t, ok := m.templates[id]
	if !ok {
		return t, domain.ErrNotFound
	}
	return t, nil
}

func (m *memStore) CreateTemplate(_ context.Context, t *domain.BudgetTemplate) error {
	t.ID = int64(len(m.templates) + 1)
	m.templates[t.ID] = *t
	return nil
}

func (m *memStore) IncrementTemplateUse(_ context.Context, id int64) error {
	t := m.templates[id]
	t.TimesUsed++
	m.templates[id] = t
	return nil
}

func (m *memStore) ListGoals(_ context.Context, userID int64) ([]domain.BudgetGoal, error) {
	var out []domain.BudgetGoal
	for _, g := range m.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) GetGoal(_ context.Context, userID, id int64) (domain.BudgetGoal, error) {
	g, ok := m.goals[id]
	if !ok || g.UserID != userID {
		return g, domain.ErrNotFound
	}
	return g, nil
}

func (m *memStore) CreateGoal(_ context.Context, g *domain.BudgetGoal) error {
	g.ID = int64(len(m.goals) + 1)
	m.goals[g.ID] = *g
	return nil
}

func (m *memStore) UpdateGoal(_ context.Context, g *domain.BudgetGoal) error {
	m.goals[g.ID] = *g
	return nil
}

func (m *memStore) DeleteGoal(_ context.Context, _, id int64) error {
	delete(m.goals, id)
	return nil
}

func (m *memStore) AddGoalContribution(_ context.Context, g *domain.BudgetGoal, c *domain.GoalContribution) error {
	m.goals[g.ID] = *g
	c.ID = int64(len(m.contribs) + 1)
	m.contribs = append(m.contribs, *c)
	return nil
}

func (m *memStore) ListGoalContributions(context.Context, int64) ([]domain.GoalContribution, error) {
	return m.contribs, nil
}

func (m *memStore) ListCategories(context.Context, int64) ([]domain.Category, error) {
	return []domain.Category{
		{ID: 1, Name: "Groceries", Type: domain.CategoryExpense},
		{ID: 2, Name: "Transport", Type: domain.CategoryExpense},
		{ID: 3, Name: "Dining", Type: domain.CategoryExpense},
	}, nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	return domain.User{ID: id, PreferredCurrency: "LKR"}, nil
}

type notifierSpy struct{ sent []domain.Notification }

func (n *notifierSpy) Emit(_ context.Context, note domain.Notification) {
	n.sent = append(n.sent, note)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time { return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC) }

func ptr(v int64) *int64 { return &v }

func setup(t *testing.T) (*Service, *memStore, *notifierSpy) {
	t.Helper()
	store := newMemStore()
	notes := &notifierSpy{}
	svc := NewService(store, notes, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }
	return svc, store, notes
}

func expenseTx(id int64, cat int64, amount string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID: id, UserID: 1, Type: domain.TypeExpense, Status: domain.StatusCompleted,
		Amount: d(amount), Currency: "LKR", CategoryID: ptr(cat), TransactionDate: at,
	}
}

func TestSpentByCategory(t *testing.T) {
	p, _ := domain.CalendarPeriod(domain.PeriodMonthly, day(2024, 3, 10))
	cancelled := expenseTx(5, 1, "999", day(2024, 3, 5))
	cancelled.Status = domain.StatusCancelled
	usd := expenseTx(6, 1, "5", day(2024, 3, 5))
	usd.Currency = "USD"
	income := expenseTx(7, 1, "50", day(2024, 3, 5))
	income.Type = domain.TypeIncome

	txs := []domain.Transaction{
		expenseTx(1, 1, "100", day(2024, 3, 1)),
		expenseTx(2, 1, "50", time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC)),
		expenseTx(3, 1, "70", day(2024, 4, 1)),
		expenseTx(4, 1, "300", day(2024, 3, 20)),
		cancelled, usd, income,
	}
	splits := map[int64][]domain.TransactionSplit{
		4: {{CategoryID: 2, Amount: d("200")}, {CategoryID: 3, Amount: d("100")}},
	}
	got := SpentByCategory(p, "LKR", txs, splits)
	if !got[1].Equal(d("150")) || !got[2].Equal(d("200")) || !got[3].Equal(d("100")) {
		t.Errorf("spent = %v", got)
	}
}

func newBudget(t *testing.T, svc *Service, store *memStore) domain.Budget {
	t.Helper()
	p, err := svc.CurrentPeriod(context.Background(), domain.PeriodMonthly)
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Create(context.Background(), 1, domain.Budget{
		Name:          "Household",
		PeriodID:      p.ID,
		TotalAmount:   d("1000"),
		AllowRollover: true,
		Items: []domain.BudgetItem{
			{CategoryID: 1, BudgetedAmount: d("600")},
			{CategoryID: 2, BudgetedAmount: d("400")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCreateBudgetDefaults(t *testing.T) {
	svc, store, _ := setup(t)
	b := newBudget(t, svc, store)
	if b.Currency != "LKR" || b.AlertThreshold != 80 || b.RolloverLimit != 10 || b.Status != domain.BudgetActive {
		t.Errorf("defaults = %+v", b)
	}
	if b.Period.Name != "March 2024" || b.Items[0].CategoryName != "Groceries" {
		t.Errorf("period or item names missing: %+v", b)
	}

	_, err := svc.Create(context.Background(), 1, domain.Budget{
		Name: "Dup", PeriodID: b.PeriodID, TotalAmount: d("10"),
		Items: []domain.BudgetItem{{CategoryID: 1, BudgetedAmount: d("5")}, {CategoryID: 1, BudgetedAmount: d("5")}},
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate category accepted: %v", err)
	}
}

func TestCheckTransactionAlertsOnce(t *testing.T) {
	svc, store, notes := setup(t)
	ctx := context.Background()
	b := newBudget(t, svc, store)

	store.txs = append(store.txs, expenseTx(1, 1, "500", day(2024, 3, 10)))
	if err := svc.CheckTransaction(ctx, store.txs[0]); err != nil {
		t.Fatal(err)
	}
	if len(notes.sent) != 0 {
		t.Fatal("alert below threshold")
	}

	store.txs = append(store.txs, expenseTx(2, 2, "350", day(2024, 3, 11)))
	svc.CheckTransaction(ctx, store.txs[1])
	if len(notes.sent) != 1 || notes.sent[0].Priority != domain.PriorityMedium || notes.sent[0].Type != domain.NotifyBudgetAlert {
		t.Fatalf("alert = %+v", notes.sent)
	}
	got := store.budgets[b.ID]
	if got.PercentageUsed != 85 || !got.TotalSpent.Equal(d("850")) || got.AlertSentAt == nil {
		t.Errorf("budget after check = %+v", got)
	}

	store.txs = append(store.txs, expenseTx(3, 2, "300", day(2024, 3, 12)))
	svc.CheckTransaction(ctx, store.txs[2])
	if len(notes.sent) != 1 || store.alerts != 1 {
		t.Errorf("alert fired twice: %d", len(notes.sent))
	}
}

func TestExceededAlertIsHighPriority(t *testing.T) {
	svc, store, notes := setup(t)
	b := newBudget(t, svc, store)
	store.txs = append(store.txs, expenseTx(1, 1, "1200", day(2024, 3, 2)))
	svc.CheckTransaction(context.Background(), store.txs[0])
	if len(notes.sent) != 1 || notes.sent[0].Priority != domain.PriorityHigh || *notes.sent[0].RelatedBudgetID != b.ID {
		t.Errorf("alert = %+v", notes.sent)
	}
}

func TestRollover(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	b := newBudget(t, svc, store)
	store.txs = append(store.txs, expenseTx(1, 1, "500", day(2024, 3, 2)))

	next, err := svc.Rollover(ctx, 1, b.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !next.TotalAmount.Equal(d("1050")) || next.Period.Name != "April 2024" || len(next.Items) != 2 {
		t.Errorf("next budget = %+v", next)
	}
	if !next.Items[0].SpentAmount.IsZero() {
		t.Error("spent copied into the new period")
	}
	if store.budgets[b.ID].Status != domain.BudgetCompleted {
		t.Error("original budget not completed")
	}
	if _, err := svc.Rollover(ctx, 1, b.ID, 0); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Errorf("second rollover: %v", err)
	}
}

func TestFromTemplate(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	tpl, err := svc.CreateTemplate(ctx, 1, domain.BudgetTemplate{
		Name: "50/30",
		Items: []domain.BudgetTemplateItem{
			{CategoryID: 1, Percentage: d("50")},
			{CategoryID: 3, Percentage: d("33.3")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	p, _ := svc.CurrentPeriod(ctx, domain.PeriodMonthly)
	b, err := svc.FromTemplate(ctx, 1, tpl.ID, p.ID, d("1234.56"), "")
	if err != nil {
		t.Fatal(err)
	}
	if b.Name != "50/30 - March 2024" || !b.Items[0].BudgetedAmount.Equal(d("617.28")) || !b.Items[1].BudgetedAmount.Equal(d("411.11")) {
		t.Errorf("budget = %+v", b)
	}
	if store.templates[tpl.ID].TimesUsed != 1 {
		t.Error("template use not counted")
	}
	if _, err := svc.FromTemplate(ctx, 2, tpl.ID, p.ID, d("10"), ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("private template used by another user: %v", err)
	}
}

func TestGoalContribution(t *testing.T) {
	svc, store, notes := setup(t)
	ctx := context.Background()
	g, err := svc.CreateGoal(ctx, 1, domain.BudgetGoal{
		Name: "Emergency fund", GoalType: domain.GoalEmergencyFund,
		TargetAmount: d("1000"), TargetDate: day(2024, 9, 15),
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.MonthsRemaining != 6 || !g.RequiredMonthlyContribution.Equal(d("166.67")) {
		t.Errorf("derived = %+v", g)
	}

	v, err := svc.Contribute(ctx, 1, g.ID, d("400"), "March", nil)
	if err != nil || v.ProgressPercentage != 40 || len(notes.sent) != 0 {
		t.Fatalf("contribution: %v %+v", err, v)
	}
	v, _ = svc.Contribute(ctx, 1, g.ID, d("700"), "bonus", nil)
	if v.Status != domain.GoalCompleted || v.ProgressPercentage != 100 || v.CompletionDate == nil {
		t.Errorf("goal not completed: %+v", v)
	}
	if len(notes.sent) != 1 || notes.sent[0].Type != domain.NotifyGoalUpdate || len(store.contribs) != 2 {
		t.Errorf("notifications=%d contributions=%d", len(notes.sent), len(store.contribs))
	}
	if _, err := svc.Contribute(ctx, 1, g.ID, d("1"), "", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("contribution to completed goal: %v", err)
	}
}
