package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type memStore struct {
	layout   *domain.DashboardLayout
	widgets  []domain.DashboardWidget
	accounts []domain.BankAccount
	txs      []domain.Transaction
	cats     []domain.Category
	goals    []domain.BudgetGoal
	notes    []domain.Notification
	saves    int
}

func (m *memStore) GetLayout(context.Context, int64) (domain.DashboardLayout, error) {
	if m.layout == nil {
		return domain.DashboardLayout{}, domain.ErrNotFound
	}
	return *m.layout, nil
}

func (m *memStore) CreateLayout(_ context.Context, l *domain.DashboardLayout, widgets []domain.DashboardWidget) error {
	l.ID = 1
	m.layout = l
	for _, w := range widgets {
		w.ID = int64(len(m.widgets) + 1)
		m.widgets = append(m.widgets, w)
	}
	return nil
}

func (m *memStore) UpdateLayout(_ context.Context, l *domain.DashboardLayout) error {
	m.layout = l
	return nil
}

func (m *memStore) ListWidgets(context.Context, int64) ([]domain.DashboardWidget, error) {
	return append([]domain.DashboardWidget(nil), m.widgets...), nil
}

func (m *memStore) GetWidget(_ context.Context, _ int64, id int64) (domain.DashboardWidget, error) {
	for _, w := range m.widgets {
		if w.ID == id {
			return w, nil
		}
	}
	return domain.DashboardWidget{}, domain.ErrNotFound
}

func (m *memStore) CreateWidget(_ context.Context, w *domain.DashboardWidget) error {
	w.ID = int64(len(m.widgets) + 1)
	m.widgets = append(m.widgets, *w)
	return nil
}

func (m *memStore) UpdateWidget(_ context.Context, w *domain.DashboardWidget) error {
	for i := range m.widgets {
		if m.widgets[i].ID == w.ID {
			m.widgets[i] = *w
		}
	}
	return nil
}

func (m *memStore) SaveWidgetData(_ context.Context, id int64, data map[string]any, at time.Time) error {
	m.saves++
	for i := range m.widgets {
		if m.widgets[i].ID == id {
			m.widgets[i].CachedData, m.widgets[i].LastUpdated = data, &at
		}
	}
	return nil
}

func (m *memStore) ListAccounts(context.Context, int64) ([]domain.BankAccount, error) {
	return m.accounts, nil
}

func (m *memStore) ListTransactions(_ context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error) {
	out := m.txs
	if len(out) > f.PageSize {
		out = out[:f.PageSize]
	}
	return out, len(m.txs), nil
}

func (m *memStore) TransactionsBetween(_ context.Context, _ int64, from, to time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range m.txs {
		if !t.TransactionDate.Before(from) && t.TransactionDate.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) ListCategories(context.Context, int64) ([]domain.Category, error) {
	return m.cats, nil
}

func (m *memStore) ListGoals(context.Context, int64) ([]domain.BudgetGoal, error) {
	return m.goals, nil
}

func (m *memStore) ListNotifications(_ context.Context, f domain.NotificationFilter) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range m.notes {
		if f.Undismissed && n.IsDismissed {
			continue
		}
		if f.MinPriority != "" && n.Priority.Rank() < f.MinPriority.Rank() {
			continue
		}
		out = append(out, n)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

type budgetStub struct {
	budgets []domain.Budget
}

func (b budgetStub) ActiveOn(context.Context, int64, time.Time) ([]domain.Budget, error) {
	return b.budgets, nil
}

var now = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func ptr(v int64) *int64 { return &v }

func tx(typ domain.TransactionType, amount string, on time.Time, cat *int64) domain.Transaction {
	return domain.Transaction{Type: typ, Amount: decimal.RequireFromString(amount), TransactionDate: on,
		Status: domain.StatusCompleted, CategoryID: cat, Currency: "LKR"}
}

func newService(store *memStore) *Service {
	svc := NewService(store, budgetStub{budgets: []domain.Budget{{ID: 7, Name: "March", TotalAmount: decimal.NewFromInt(500)}}}, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

func sampleStore() *memStore {
	return &memStore{
		accounts: []domain.BankAccount{
			{ID: 1, AccountName: "Salary", Status: domain.AccountActive, CurrentBalance: decimal.NewFromInt(1500)},
			{ID: 2, AccountName: "Old", Status: domain.AccountClosed, CurrentBalance: decimal.NewFromInt(999)},
		},
		cats: []domain.Category{{ID: 1, Name: "Groceries"}, {ID: 2, Name: "Rent"}},
		txs: []domain.Transaction{
			tx(domain.TypeIncome, "2000", day(2024, 3, 1), nil),
			tx(domain.TypeExpense, "300", day(2024, 3, 5), ptr(1)),
			tx(domain.TypeExpense, "50.50", day(2024, 3, 19), ptr(1)),
			tx(domain.TypeExpense, "900", day(2024, 3, 2), ptr(2)),
			tx(domain.TypeExpense, "20", day(2024, 3, 10), nil),
			tx(domain.TypeExpense, "400", day(2024, 2, 10), ptr(2)),
			tx(domain.TypeIncome, "1800", day(2023, 4, 1), nil),
			{Type: domain.TypeExpense, Amount: decimal.NewFromInt(77), TransactionDate: day(2024, 3, 6), Status: domain.StatusCancelled},
		},
		notes: []domain.Notification{
			{ID: 1, Priority: domain.PriorityHigh},
			{ID: 2, Priority: domain.PriorityLow},
			{ID: 3, Priority: domain.PriorityUrgent, IsDismissed: true},
		},
	}
}

func TestLayoutCreatesDefaults(t *testing.T) {
	store := &memStore{}
	svc := newService(store)
	widgets, err := svc.Widgets(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(widgets) != 4 || store.layout == nil || store.layout.GridColumns != 12 {
		t.Fatalf("defaults not created: %d widgets, layout %+v", len(widgets), store.layout)
	}
	if widgets[0].WidgetType != domain.WidgetAccountBalance || widgets[0].Size != domain.SizeLarge {
		t.Errorf("first widget = %+v", widgets[0])
	}
	if _, err := svc.Widgets(context.Background(), 1); err != nil || len(store.widgets) != 4 {
		t.Errorf("defaults created twice: %d", len(store.widgets))
	}

	in := domain.DefaultLayout(1)
	in.Theme = "neon"
	if _, err := svc.SaveLayout(context.Background(), 1, in); err == nil {
		t.Error("unknown theme accepted")
	}
}

func TestRefreshUsesCache(t *testing.T) {
	store := sampleStore()
	svc := newService(store)
	ctx := context.Background()
	w, err := svc.AddWidget(ctx, 1, domain.DashboardWidget{WidgetType: domain.WidgetMonthlySummary, Title: "Month"})
	if err != nil {
		t.Fatal(err)
	}
	if w.RefreshInterval != domain.DefaultRefreshInterval {
		t.Errorf("refresh interval = %d", w.RefreshInterval)
	}

	got, err := svc.Refresh(ctx, 1, w.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if !got.CachedData["expenses"].(decimal.Decimal).Equal(decimal.RequireFromString("1270.50")) {
		t.Errorf("monthly expenses = %v", got.CachedData["expenses"])
	}
	if _, err := svc.Refresh(ctx, 1, w.ID, false); err != nil || store.saves != 1 {
		t.Errorf("fresh cache recomputed: saves=%d err=%v", store.saves, err)
	}
	if _, err := svc.Refresh(ctx, 1, w.ID, true); err != nil || store.saves != 2 {
		t.Errorf("forced refresh skipped: saves=%d err=%v", store.saves, err)
	}
}

func TestWidgetData(t *testing.T) {
	svc := newService(sampleStore())
	ctx := context.Background()

	data, err := svc.compute(ctx, 1, domain.WidgetAccountBalance, now)
	if err != nil {
		t.Fatal(err)
	}
	if !data["total_balance"].(decimal.Decimal).Equal(decimal.NewFromInt(1500)) {
		t.Errorf("total balance = %v", data["total_balance"])
	}

	data, _ = svc.compute(ctx, 1, domain.WidgetSpendingByCategory, now)
	cats := data["categories"].([]domain.CategoryTotal)
	if len(cats) != 3 || cats[0].CategoryName != "Rent" || cats[2].CategoryName != uncategorized {
		t.Errorf("categories = %+v", cats)
	}

	data, _ = svc.compute(ctx, 1, domain.WidgetCashFlow, now)
	days := data["days"].([]DayNet)
	if len(days) != 30 || days[29].Date != "2024-03-20" || !days[28].Net.Equal(decimal.RequireFromString("-50.50")) {
		t.Errorf("cash flow tail = %+v %+v", days[28], days[29])
	}

	data, _ = svc.compute(ctx, 1, domain.WidgetAlerts, now)
	if alerts := data["alerts"].([]domain.Notification); len(alerts) != 1 || alerts[0].ID != 1 {
		t.Errorf("alerts = %+v", alerts)
	}

	data, _ = svc.compute(ctx, 1, domain.WidgetSpendingTrends, now)
	trend := data["categories"].(map[string][]decimal.Decimal)
	if rent := trend["Rent"]; len(rent) != 3 || !rent[1].Equal(decimal.NewFromInt(400)) || !rent[2].Equal(decimal.NewFromInt(900)) {
		t.Errorf("rent trend = %v", rent)
	}

	data, _ = svc.compute(ctx, 1, domain.WidgetBudgetStatus, now)
	if b := data["budgets"].([]map[string]any); len(b) != 1 || b[0]["id"] != int64(7) {
		t.Errorf("budgets = %+v", b)
	}
}

func TestSummary(t *testing.T) {
	svc := newService(sampleStore())
	sum, err := svc.Summary(context.Background(), 1, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Start.Equal(day(2024, 3, 1)) || !sum.End.Equal(day(2024, 3, 20)) {
		t.Errorf("range = %s..%s", sum.Start, sum.End)
	}
	if !sum.Income.Equal(decimal.NewFromInt(2000)) || !sum.Net.Equal(decimal.RequireFromString("729.50")) || sum.Count != 5 {
		t.Errorf("totals = %+v", sum)
	}
	if len(sum.MonthlyTrend) != 12 || sum.MonthlyTrend[0].Month != "2023-04" || sum.MonthlyTrend[11].Month != "2024-03" {
		t.Fatalf("trend months = %+v", sum.MonthlyTrend)
	}
	if !sum.MonthlyTrend[0].Income.Equal(decimal.NewFromInt(1800)) || !sum.MonthlyTrend[10].Expenses.Equal(decimal.NewFromInt(400)) {
		t.Errorf("trend values = %+v", sum.MonthlyTrend)
	}

	from, to := day(2024, 3, 10), day(2024, 3, 1)
	if _, err := svc.Summary(context.Background(), 1, &from, &to); err == nil {
		t.Error("inverted range accepted")
	}
}

func TestOverview(t *testing.T) {
	store := sampleStore()
	svc := newService(store)
	ov, err := svc.Overview(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ov.Widgets) != 4 || ov.Widgets[0].CachedData == nil {
		t.Errorf("widgets not refreshed: %+v", ov.Widgets)
	}
	if len(ov.Notifications) != 2 {
		t.Errorf("notifications = %+v", ov.Notifications)
	}
	if !ov.MonthNet.Equal(decimal.RequireFromString("729.50")) || !ov.TotalBalance.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("overview figures = %+v", ov)
	}
}
