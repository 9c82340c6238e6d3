package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const (
	recentLimit = 10
	alertLimit  = 10
)

// compute builds the data of one widget type at now.
func (s *Service) compute(ctx context.Context, userID int64, typ domain.WidgetType, now time.Time) (map[string]any, error) {
	today := domain.DateOnly(now)
	end := tomorrow(now)

	switch typ {
	case domain.WidgetAccountBalance:
		accounts, err := s.store.ListAccounts(ctx, userID)
		if err != nil {
			return nil, err
		}
		total := decimal.Zero
		items := []map[string]any{}
		for _, a := range accounts {
			if a.Status != domain.AccountActive {
				continue
			}
			total = total.Add(a.CurrentBalance)
			items = append(items, map[string]any{
				"id":       a.ID,
				"name":     a.AccountName,
				"bank":     a.BankName,
				"balance":  a.CurrentBalance,
				"currency": a.Currency,
			})
		}
		return map[string]any{"accounts": items, "total_balance": total}, nil

	case domain.WidgetMonthlySummary:
		from, _ := monthBounds(now)
		txs, err := s.store.TransactionsBetween(ctx, userID, from, end)
		if err != nil {
			return nil, err
		}
		t := totalsOf(txs)
		return map[string]any{
			"income":            t.Income,
			"expenses":          t.Expenses,
			"net":               t.Income.Sub(t.Expenses),
			"transaction_count": t.Count,
		}, nil

	case domain.WidgetSpendingByCategory:
		txs, err := s.store.TransactionsBetween(ctx, userID, today.AddDate(0, 0, -30), end)
		if err != nil {
			return nil, err
		}
		names, err := s.categoryNames(ctx, userID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"categories": byCategory(txs, names, topCategories)}, nil

	case domain.WidgetIncomeVsExpenses:
		from, _ := monthBounds(now)
		from = from.AddDate(0, -5, 0)
		txs, err := s.store.TransactionsBetween(ctx, userID, from, end)
		if err != nil {
			return nil, err
		}
		return map[string]any{"months": monthlyTrend(txs, now, 6)}, nil

	case domain.WidgetBudgetStatus:
		items := []map[string]any{}
		if s.budgets != nil {
			budgets, err := s.budgets.ActiveOn(ctx, userID, today)
			if err != nil {
				return nil, err
			}
			for _, b := range budgets {
				items = append(items, map[string]any{
					"id":              b.ID,
					"name":            b.Name,
					"total_amount":    b.TotalAmount,
					"total_spent":     b.TotalSpent,
					"total_remaining": b.TotalRemaining,
					"percentage_used": b.PercentageUsed,
					"currency":        b.Currency,
				})
			}
		}
		return map[string]any{"budgets": items}, nil

	case domain.WidgetRecentTransactions:
		txs, _, err := s.store.ListTransactions(ctx, domain.TransactionFilter{UserID: userID, Page: 1, PageSize: recentLimit})
		if err != nil {
			return nil, err
		}
		return map[string]any{"transactions": txs}, nil

	case domain.WidgetFinancialGoals:
		goals, err := s.store.ListGoals(ctx, userID)
		if err != nil {
			return nil, err
		}
		views := []domain.GoalView{}
		for _, g := range goals {
			if g.Status == domain.GoalActive {
				views = append(views, domain.NewGoalView(g, today))
			}
		}
		return map[string]any{"goals": views}, nil

	case domain.WidgetCashFlow:
		from := today.AddDate(0, 0, -29)
		txs, err := s.store.TransactionsBetween(ctx, userID, from, end)
		if err != nil {
			return nil, err
		}
		return map[string]any{"days": dailyNet(txs, from, 30)}, nil

	case domain.WidgetSpendingTrends:
		from, _ := monthBounds(now)
		from = from.AddDate(0, -2, 0)
		txs, err := s.store.TransactionsBetween(ctx, userID, from, end)
		if err != nil {
			return nil, err
		}
		names, err := s.categoryNames(ctx, userID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"months": monthLabels(from, 3), "categories": categoryTrend(txs, names, from, 3)}, nil

	case domain.WidgetAlerts:
		notes, err := s.store.ListNotifications(ctx, domain.NotificationFilter{
			UserID:      userID,
			Undismissed: true,
			MinPriority: domain.PriorityHigh,
			Limit:       alertLimit,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"alerts": notes}, nil
	}
	return nil, domain.Invalid("widget_type", "is not valid")
}

type DayNet struct {
	Date     string          `json:"date"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// dailyNet returns one entry per day for n days starting at from.
func dailyNet(txs []domain.Transaction, from time.Time, n int) []DayNet {
	out := make([]DayNet, n)
	for i := range out {
		out[i] = DayNet{Date: from.AddDate(0, 0, i).Format(time.DateOnly), Income: decimal.Zero, Expenses: decimal.Zero, Net: decimal.Zero}
	}
	for _, tx := range txs {
		if tx.Status != domain.StatusCompleted {
			continue
		}
		i := int(domain.DateOnly(tx.TransactionDate).Sub(from).Hours() / 24)
		if i < 0 || i >= n {
			continue
		}
		switch tx.Type {
		case domain.TypeIncome:
			out[i].Income = out[i].Income.Add(tx.Amount)
		case domain.TypeExpense:
			out[i].Expenses = out[i].Expenses.Add(tx.Amount)
		}
		out[i].Net = out[i].Income.Sub(out[i].Expenses)
	}
	return out
}

func monthLabels(from time.Time, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = from.AddDate(0, i, 0).Format("2006-01")
	}
	return out
}

// categoryTrend maps each category name to its expense total per month.
func categoryTrend(txs []domain.Transaction, names map[int64]string, from time.Time, n int) map[string][]decimal.Decimal {
	out := map[string][]decimal.Decimal{}
	for _, tx := range txs {
		if !isExpense(tx) {
			continue
		}
		d := tx.TransactionDate
		i := (d.Year()-from.Year())*12 + int(d.Month()) - int(from.Month())
		if i < 0 || i >= n {
			continue
		}
		name := uncategorized
		if tx.CategoryID != nil {
			if cn, ok := names[*tx.CategoryID]; ok {
				name = cn
			}
		}
		series, ok := out[name]
		if !ok {
			series = make([]decimal.Decimal, n)
			for j := range series {
				series[j] = decimal.Zero
			}
			out[name] = series
		}
		series[i] = series[i].Add(tx.Amount)
	}
	return out
}
