package httpapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/budget"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type budgetStore struct {
	budget.Store
	periods  map[int64]domain.BudgetPeriod
	budgets  map[int64]domain.Budget
	goals    map[int64]domain.BudgetGoal
	contribs []domain.GoalContribution
	nextID   int64
}

func newBudgetStore() *budgetStore {
	return &budgetStore{
		periods: map[int64]domain.BudgetPeriod{7: {
			ID: 7, Name: "March 2024", PeriodType: domain.PeriodMonthly, IsActive: true,
			StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		}},
		budgets: map[int64]domain.Budget{},
		goals:   map[int64]domain.BudgetGoal{},
	}
}

func (m *budgetStore) GetUser(context.Context, int64) (domain.User, error) {
	return domain.User{PreferredCurrency: "EUR"}, nil
}

func (m *budgetStore) GetPeriod(_ context.Context, id int64) (domain.BudgetPeriod, error) {
	p, ok := m.periods[id]
	if !ok {
		return domain.BudgetPeriod{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *budgetStore) CreateBudget(_ context.Context, b *domain.Budget) error {
	m.nextID++
	b.ID = m.nextID
	m.budgets[b.ID] = *b
	return nil
}

func (m *budgetStore) GetBudget(_ context.Context, userID, id int64) (domain.Budget, error) {
	b, ok := m.budgets[id]
	if !ok || b.UserID != userID {
		return domain.Budget{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *budgetStore) UpdateBudget(_ context.Context, b *domain.Budget) error {
	m.budgets[b.ID] = *b
	return nil
}

func (m *budgetStore) DeleteBudget(_ context.Context, userID, id int64) error {
	if _, err := m.GetBudget(context.Background(), userID, id); err != nil {
		return err
	}
	delete(m.budgets, id)
	return nil
}

func (m *budgetStore) UpdateBudgetItem(_ context.Context, it *domain.BudgetItem) error {
	b := m.budgets[it.BudgetID]
	for i := range b.Items {
		if b.Items[i].ID == it.ID {
			b.Items[i] = *it
		}
	}
	return nil
}

func (m *budgetStore) CreateGoal(_ context.Context, g *domain.BudgetGoal) error {
	m.nextID++
	g.ID = m.nextID
	m.goals[g.ID] = *g
	return nil
}

func (m *budgetStore) GetGoal(_ context.Context, userID, id int64) (domain.BudgetGoal, error) {
	g, ok := m.goals[id]
	if !ok || g.UserID != userID {
		return domain.BudgetGoal{}, domain.ErrNotFound
	}
	return g, nil
}

func (m *budgetStore) UpdateGoal(_ context.Context, g *domain.BudgetGoal) error {
	m.goals[g.ID] = *g
	return nil
}

func (m *budgetStore) DeleteGoal(_ context.Context, userID, id int64) error {
	if _, err := m.GetGoal(context.Background(), userID, id); err != nil {
		return err
	}
	delete(m.goals, id)
	return nil
}

func (m *budgetStore) AddGoalContribution(_ context.Context, g *domain.BudgetGoal, c *domain.GoalContribution) error {
	m.goals[g.ID] = *g
	c.ID = int64(len(m.contribs) + 1)
	m.contribs = append(m.contribs, *c)
	return nil
}

func TestBudgetRoutes(t *testing.T) {
	store := newBudgetStore()
	srv, _ := newTestServer(t, Services{Budgets: budget.NewService(store, nil, zerolog.Nop())})

	resp := do(t, http.MethodPost, srv.URL+"/api/budgets", "1", strings.NewReader(
		`{"name":"groceries","period_id":7,"total_amount":"400","description":"food only"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}
	var created domain.Budget
	decodeJSON(t, resp, &created)
	if created.Currency != "EUR" || created.Status != domain.BudgetActive || created.RolloverLimit != domain.DefaultRolloverLimit {
		t.Fatalf("created = %+v", created)
	}

	if resp := do(t, http.MethodPost, srv.URL+"/api/budgets", "1", strings.NewReader(
		`{"name":"x","period_id":99,"total_amount":"10"}`)); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown period: status = %d, want 400", resp.StatusCode)
	}

	sent := time.Now()
	b := store.budgets[1]
	b.AlertSentAt = &sent
	store.budgets[1] = b

	// A changed threshold re-arms the alert; the rest keeps its stored values.
	resp = do(t, http.MethodPut, srv.URL+"/api/budgets/1", "1", strings.NewReader(`{"alert_threshold":90}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status = %d, want 200", resp.StatusCode)
	}
	var updated domain.Budget
	decodeJSON(t, resp, &updated)
	if updated.AlertThreshold != 90 || updated.AlertSentAt != nil {
		t.Errorf("alert = %d sent %v", updated.AlertThreshold, updated.AlertSentAt)
	}
	if updated.Name != "groceries" || updated.Description != "food only" || !updated.TotalAmount.Equal(decimal.NewFromInt(400)) {
		t.Errorf("updated = %+v", updated)
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/api/budgets/1", "2", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("other user's delete: status = %d, want 404", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/api/budgets/1", "1", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", resp.StatusCode)
	}
	if _, ok := store.budgets[1]; ok {
		t.Error("budget still stored after delete")
	}
}

func TestBudgetItemUpdateKeepsOmittedFields(t *testing.T) {
	store := newBudgetStore()
	store.budgets[1] = domain.Budget{ID: 1, UserID: 1, Name: "home", Items: []domain.BudgetItem{{
		ID: 4, BudgetID: 1, CategoryID: 2, BudgetedAmount: decimal.NewFromInt(120),
		SpentAmount: decimal.NewFromInt(30), IsFlexible: true, Notes: "weekly shop",
	}}}
	srv, _ := newTestServer(t, Services{Budgets: budget.NewService(store, nil, zerolog.Nop())})

	resp := do(t, http.MethodPut, srv.URL+"/api/budgets/1/items/4", "1", strings.NewReader(`{"budgeted_amount":"150"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var it domain.BudgetItem
	decodeJSON(t, resp, &it)
	if !it.BudgetedAmount.Equal(decimal.NewFromInt(150)) || !it.RemainingAmount.Equal(decimal.NewFromInt(120)) {
		t.Errorf("amounts = %s remaining %s", it.BudgetedAmount, it.RemainingAmount)
	}
	if !it.IsFlexible || it.Notes != "weekly shop" {
		t.Errorf("omitted fields reset: %+v", it)
	}

	if resp := do(t, http.MethodPut, srv.URL+"/api/budgets/1/items/9", "1", strings.NewReader(`{}`)); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown item: status = %d, want 404", resp.StatusCode)
	}
}

func TestGoalRoutes(t *testing.T) {
	store := newBudgetStore()
	srv, _ := newTestServer(t, Services{Budgets: budget.NewService(store, nil, zerolog.Nop())})

	resp := do(t, http.MethodPost, srv.URL+"/api/budget-goals", "1", strings.NewReader(
		`{"name":"bike","goal_type":"savings","target_amount":"300","target_date":"2030-06-01T00:00:00Z"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}
	var created domain.GoalView
	decodeJSON(t, resp, &created)
	if created.Currency != "EUR" || created.Priority != 5 || !created.RemainingAmount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("created = %+v", created)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/budget-goals/1", "1", strings.NewReader(`{"priority":2}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status = %d, want 200", resp.StatusCode)
	}
	var updated domain.GoalView
	decodeJSON(t, resp, &updated)
	if updated.Priority != 2 || updated.Name != "bike" || updated.GoalType != domain.GoalSavings {
		t.Errorf("updated = %+v", updated)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/budget-goals/1/contributions", "1", strings.NewReader(`{"amount":"300"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("contribute: status = %d, want 201", resp.StatusCode)
	}
	var done domain.GoalView
	decodeJSON(t, resp, &done)
	if done.Status != domain.GoalCompleted || done.ProgressPercentage != 100 {
		t.Errorf("after contribution = %+v", done)
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/api/budget-goals/1", "1", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", resp.StatusCode)
	}
}
