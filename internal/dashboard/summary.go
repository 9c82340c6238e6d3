package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const (
	topCategories = 10
	trendMonths   = 12
	uncategorized = "Uncategorized"
)

type totals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Count    int
}

// totalsOf adds up completed income and expenses. Transfers only count
// towards Count.
func totalsOf(txs []domain.Transaction) totals {
	t := totals{Income: decimal.Zero, Expenses: decimal.Zero}
	for _, tx := range txs {
		if tx.Status != domain.StatusCompleted {
			continue
		}
		t.Count++
		switch tx.Type {
		case domain.TypeIncome:
			t.Income = t.Income.Add(tx.Amount)
		case domain.TypeExpense:
			t.Expenses = t.Expenses.Add(tx.Amount)
		}
	}
	return t
}

func isExpense(tx domain.Transaction) bool {
	return tx.Type == domain.TypeExpense && tx.Status == domain.StatusCompleted
}

// monthBounds returns the first day of t's month and of the next one.
func monthBounds(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, 0)
}

func tomorrow(t time.Time) time.Time {
	return domain.DateOnly(t).AddDate(0, 0, 1)
}

// byCategory groups completed expenses by category, largest total first.
// limit <= 0 keeps every category.
func byCategory(txs []domain.Transaction, names map[int64]string, limit int) []domain.CategoryTotal {
	idx := map[int64]int{}
	var out []domain.CategoryTotal
	for _, tx := range txs {
		if !isExpense(tx) {
			continue
		}
		var key int64
		if tx.CategoryID != nil {
			key = *tx.CategoryID
		}
		i, ok := idx[key]
		if !ok {
			ct := domain.CategoryTotal{CategoryName: uncategorized, Total: decimal.Zero}
			if tx.CategoryID != nil {
				id := *tx.CategoryID
				ct.CategoryID = &id
				if n, ok := names[id]; ok {
					ct.CategoryName = n
				}
			}
			i = len(out)
			idx[key] = i
			out = append(out, ct)
		}
		out[i].Total = out[i].Total.Add(tx.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].CategoryName < out[j].CategoryName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type MonthTotal struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// monthlyTrend buckets txs into the n calendar months ending with last's
// month, oldest first.
func monthlyTrend(txs []domain.Transaction, last time.Time, n int) []MonthTotal {
	first, _ := monthBounds(last)
	first = first.AddDate(0, -(n - 1), 0)
	out := make([]MonthTotal, n)
	for i := range out {
		out[i] = MonthTotal{Month: first.AddDate(0, i, 0).Format("2006-01"), Income: decimal.Zero, Expenses: decimal.Zero}
	}
	for _, tx := range txs {
		if tx.Status != domain.StatusCompleted {
			continue
		}
		d := tx.TransactionDate
		i := (d.Year()-first.Year())*12 + int(d.Month()) - int(first.Month())
		if i < 0 || i >= n {
			continue
		}
		switch tx.Type {
		case domain.TypeIncome:
			out[i].Income = out[i].Income.Add(tx.Amount)
		case domain.TypeExpense:
			out[i].Expenses = out[i].Expenses.Add(tx.Amount)
		}
	}
	return out
}

type Summary struct {
	Start         time.Time              `json:"start_date"`
	End           time.Time              `json:"end_date"`
	Income        decimal.Decimal        `json:"total_income"`
	Expenses      decimal.Decimal        `json:"total_expenses"`
	Net           decimal.Decimal        `json:"net_income"`
	Count         int                    `json:"transaction_count"`
	TopCategories []domain.CategoryTotal `json:"top_categories"`
	MonthlyTrend  []MonthTotal           `json:"monthly_trend"`
}

// Summary reports the figures between start and end inclusive, which default
// to the start of the month and today, plus the twelve-month trend ending
// with end's month.
func (s *Service) Summary(ctx context.Context, userID int64, start, end *time.Time) (Summary, error) {
	now := s.now()
	from, _ := monthBounds(now)
	to := domain.DateOnly(now)
	if start != nil {
		from = domain.DateOnly(*start)
	}
	if end != nil {
		to = domain.DateOnly(*end)
	}
	if to.Before(from) {
		return Summary{}, domain.Invalid("end_date", "must not be before start_date")
	}

	txs, err := s.store.TransactionsBetween(ctx, userID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return Summary{}, err
	}
	names, err := s.categoryNames(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	trendFrom, trendTo := monthBounds(to)
	trendFrom = trendFrom.AddDate(0, -(trendMonths - 1), 0)
	history, err := s.store.TransactionsBetween(ctx, userID, trendFrom, trendTo)
	if err != nil {
		return Summary{}, err
	}

	t := totalsOf(txs)
	return Summary{
		Start:         from,
		End:           to,
		Income:        t.Income,
		Expenses:      t.Expenses,
		Net:           t.Income.Sub(t.Expenses),
		Count:         t.Count,
		TopCategories: byCategory(txs, names, topCategories),
		MonthlyTrend:  monthlyTrend(history, to, trendMonths),
	}, nil
}

func (s *Service) categoryNames(ctx context.Context, userID int64) (map[int64]string, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}
