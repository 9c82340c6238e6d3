package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
	"github.com/iuliailies/moneytrack-backend/internal/money"
)

const historyMonths = 6

// forecast predicts the next value of monthly totals as their mean with a
// 95% interval clamped at zero. Accuracy is one minus the coefficient of
// variation.
func forecast(totals []decimal.Decimal) (pred, lower, upper decimal.Decimal, accuracy float64) {
	xs := floats(totals)
	m, sd := mean(xs), stddev(xs)
	margin := 0.0
	if len(xs) > 0 {
		margin = 1.96 * sd / math.Sqrt(float64(len(xs)))
	}
	if m > 0 {
		accuracy = round(math.Max(0, math.Min(1, 1-sd/m)), 3)
	}
	pred = money.Round2(decimal.NewFromFloat(m))
	lower = money.Round2(decimal.NewFromFloat(math.Max(0, m-margin)))
	upper = money.Round2(decimal.NewFromFloat(m + margin))
	return pred, lower, upper, accuracy
}

// predictMonth builds the predictions for target from the expenses of the
// historyMonths months before it.
func predictMonth(userID int64, txs []domain.Transaction, names map[int64]string, target time.Time, now time.Time) []domain.BudgetPrediction {
	from := target.AddDate(0, -historyMonths, 0)
	expenses := completed(txs, domain.TypeExpense)
	overall := zeros(historyMonths)
	type cat struct {
		id     *int64
		name   string
		totals []decimal.Decimal
		n      int
	}
	perCat := map[string]*cat{}
	var order []string
	for _, t := range expenses {
		i := monthIndex(from, t.TransactionDate)
		if i < 0 || i >= historyMonths {
			continue
		}
		overall[i] = overall[i].Add(t.Amount)
		name := nameOf(t.CategoryID, names)
		c, ok := perCat[name]
		if !ok {
			c = &cat{id: t.CategoryID, name: name, totals: zeros(historyMonths)}
			perCat[name] = c
			order = append(order, name)
		}
		c.totals[i] = c.totals[i].Add(t.Amount)
		c.n++
	}
	sort.Strings(order)

	var out []domain.BudgetPrediction
	mk := func(typ domain.PredictionType, id *int64, name string, totals []decimal.Decimal, n int) {
		pred, lo, hi, acc := forecast(totals)
		out = append(out, domain.BudgetPrediction{
			UserID:          userID,
			PredictionType:  typ,
			CategoryID:      id,
			CategoryName:    name,
			PredictionMonth: target,
			PredictedAmount: pred,
			LowerBound:      lo,
			UpperBound:      hi,
			ModelAccuracy:   acc,
			SampleSize:      n,
			CreatedAt:       now,
		})
	}
	for _, name := range order {
		c := perCat[name]
		mk(domain.PredictExpenseForecast, c.id, c.name, c.totals, c.n)
	}
	if len(expenses) > 0 {
		n := 0
		for _, c := range perCat {
			n += c.n
		}
		mk(domain.PredictMonthlyBudget, nil, "", overall, n)
	}
	return out
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}

// GeneratePredictions forecasts the current calendar month from the six
// complete months before it.
func (s *Service) GeneratePredictions(ctx context.Context, userID int64) ([]domain.BudgetPrediction, error) {
	cfg, err := s.config(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cfg.EnablePredictiveBudgeting {
		return []domain.BudgetPrediction{}, nil
	}
	now := s.now()
	target := monthStart(now)
	txs, err := s.store.TransactionsBetween(ctx, userID, target.AddDate(0, -historyMonths, 0), target)
	if err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	preds := predictMonth(userID, txs, categoryNames(cats), target, now)
	for i := range preds {
		if err := s.store.UpsertPrediction(ctx, &preds[i]); err != nil {
			return nil, err
		}
	}
	return preds, nil
}

// RecordActuals fills in the actual amount and error of the predictions made
// for the month starting at month.
func (s *Service) RecordActuals(ctx context.Context, userID int64, month time.Time) (int, error) {
	preds, err := s.store.ListPredictions(ctx, userID)
	if err != nil {
		return 0, err
	}
	from := monthStart(month)
	txs, err := s.store.TransactionsBetween(ctx, userID, from, from.AddDate(0, 1, 0))
	if err != nil {
		return 0, err
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return 0, err
	}
	names := categoryNames(cats)
	actual := map[string]decimal.Decimal{}
	expenses := completed(txs, domain.TypeExpense)
	for _, b := range group(expenses, byCategory(names)) {
		actual[b.name] = b.total
	}
	total := sum(expenses)

	n := 0
	for i := range preds {
		p := &preds[i]
		if !p.PredictionMonth.Equal(from) || p.ActualAmount.Valid {
			continue
		}
		switch p.PredictionType {
		case domain.PredictMonthlyBudget:
			p.CalculateError(total)
		default:
			a, ok := actual[p.CategoryName]
			if !ok {
				a = decimal.Zero
			}
			p.CalculateError(a)
		}
		if err := s.store.UpsertPrediction(ctx, p); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Service) Predictions(ctx context.Context, userID int64) ([]domain.BudgetPrediction, error) {
	return s.store.ListPredictions(ctx, userID)
}
