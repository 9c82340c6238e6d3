package httpapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/analytics"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type analyticsStore struct {
	analytics.Store
	txs       []domain.Transaction
	summaries map[int]domain.MonthlyFinancialSummary
	insights  map[int64]domain.FinancialInsight
}

func (m *analyticsStore) TransactionsBetween(_ context.Context, userID int64, from, to time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range m.txs {
		if t.UserID == userID && !t.TransactionDate.Before(from) && t.TransactionDate.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *analyticsStore) ListCategories(context.Context, int64) ([]domain.Category, error) {
	return []domain.Category{{ID: 1, Name: "Salary"}, {ID: 2, Name: "Rent"}}, nil
}

func (m *analyticsStore) ListBudgets(context.Context, int64, domain.BudgetStatus) ([]domain.Budget, error) {
	return nil, nil
}

func (m *analyticsStore) ListGoals(context.Context, int64) ([]domain.BudgetGoal, error) {
	return nil, nil
}

func (m *analyticsStore) GoalContributionsBetween(context.Context, int64, time.Time, time.Time) ([]domain.GoalContribution, error) {
	return nil, nil
}

func (m *analyticsStore) ListInsights(_ context.Context, userID int64) ([]domain.FinancialInsight, error) {
	var out []domain.FinancialInsight
	for _, in := range m.insights {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	return out, nil
}

func (m *analyticsStore) GetInsight(_ context.Context, userID, id int64) (domain.FinancialInsight, error) {
	in, ok := m.insights[id]
	if !ok || in.UserID != userID {
		return domain.FinancialInsight{}, domain.ErrNotFound
	}
	return in, nil
}

func (m *analyticsStore) UpdateInsight(_ context.Context, in *domain.FinancialInsight) error {
	m.insights[in.ID] = *in
	return nil
}

func (m *analyticsStore) UpsertMonthlySummary(_ context.Context, s *domain.MonthlyFinancialSummary) error {
	key := s.Year*100 + s.Month
	if prev, ok := m.summaries[key]; ok {
		s.ID = prev.ID
	} else {
		s.ID = int64(len(m.summaries) + 1)
	}
	m.summaries[key] = *s
	return nil
}

func TestAnalyticsRoutes(t *testing.T) {
	salary, rent := int64(1), int64(2)
	march := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &analyticsStore{
		txs: []domain.Transaction{
			{ID: 1, UserID: 1, Type: domain.TypeIncome, Amount: decimal.NewFromInt(3000), CategoryID: &salary, Status: domain.StatusCompleted, TransactionDate: march},
			{ID: 2, UserID: 1, Type: domain.TypeExpense, Amount: decimal.NewFromInt(1200), CategoryID: &rent, Status: domain.StatusCompleted, TransactionDate: march},
			{ID: 3, UserID: 2, Type: domain.TypeExpense, Amount: decimal.NewFromInt(50), Status: domain.StatusCompleted, TransactionDate: march},
		},
		summaries: map[int]domain.MonthlyFinancialSummary{},
		insights: map[int64]domain.FinancialInsight{
			7: {ID: 7, UserID: 1, InsightType: domain.InsightSpendingAlert, Title: "Rent is high", Priority: domain.PriorityHigh, GeneratedAt: march},
		},
	}
	srv, _ := newTestServer(t, Services{Analytics: analytics.NewService(store, nil, zerolog.Nop())})

	resp := do(t, http.MethodPost, srv.URL+"/api/analytics/summaries/2024/3", "1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate summary: status = %d, want 200", resp.StatusCode)
	}
	var s domain.MonthlyFinancialSummary
	decodeJSON(t, resp, &s)
	if !s.NetIncome.Equal(decimal.NewFromInt(1800)) || s.TopExpenseCategory != "Rent" || s.SavingsRate != 60 {
		t.Errorf("summary = %+v", s)
	}
	if len(store.summaries) != 1 {
		t.Errorf("%d stored summaries, want 1", len(store.summaries))
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/analytics/summaries/2024/13", "1", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("month 13: status = %d, want 400", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/insights/7/feedback", "1", strings.NewReader(`{"feedback":"helpful"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feedback: status = %d, want 200", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/insights/7/feedback", "1", strings.NewReader(`{"feedback":"meh"}`)); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown feedback: status = %d, want 400", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/insights/7/dismiss", "2", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("other user's insight: status = %d, want 404", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/insights/7/dismiss", "1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dismiss: status = %d, want 200", resp.StatusCode)
	}
	var in domain.FinancialInsight
	decodeJSON(t, resp, &in)
	if !in.IsDismissed || !in.IsRead || in.Feedback != domain.FeedbackHelpful {
		t.Errorf("dismissed insight = %+v", in)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/insights", "1", nil)
	var listed []domain.FinancialInsight
	decodeJSON(t, resp, &listed)
	if len(listed) != 0 {
		t.Errorf("dismissed insight still listed: %+v", listed)
	}
}
