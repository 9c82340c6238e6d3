package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
	"github.com/iuliailies/moneytrack-backend/internal/money"
)

const (
	DefaultWindowMonths = 6
	maxWindowMonths     = 24
	minAnomalySamples   = 5
	minMerchantVisits   = 2
)

// window is the run of complete calendar months before now.
func window(now time.Time, months int) (time.Time, time.Time) {
	to := monthStart(now)
	return to.AddDate(0, -months, 0), to
}

// detectPatterns finds the spending patterns of expenses dated in
// [from, from+months).
func detectPatterns(userID int64, txs []domain.Transaction, names map[int64]string, from time.Time, months int, now time.Time) []domain.SpendingPattern {
	expenses := completed(txs, domain.TypeExpense)
	to := from.AddDate(0, months, 0)
	base := domain.SpendingPattern{UserID: userID, AnalysisFrom: from, AnalysisTo: to.AddDate(0, 0, -1), CreatedAt: now}
	var out []domain.SpendingPattern
	if len(expenses) == 0 {
		return out
	}

	type series struct {
		id     *int64
		name   string
		totals []decimal.Decimal
		amts   []float64
		txs    []domain.Transaction
	}
	byCat := map[string]*series{}
	var order []string
	for _, t := range expenses {
		name := nameOf(t.CategoryID, names)
		sr, ok := byCat[name]
		if !ok {
			sr = &series{id: t.CategoryID, name: name, totals: make([]decimal.Decimal, months)}
			for i := range sr.totals {
				sr.totals[i] = decimal.Zero
			}
			byCat[name] = sr
			order = append(order, name)
		}
		if i := monthIndex(from, t.TransactionDate); i >= 0 && i < months {
			sr.totals[i] = sr.totals[i].Add(t.Amount)
		}
		f, _ := t.Amount.Float64()
		sr.amts = append(sr.amts, f)
		sr.txs = append(sr.txs, t)
	}
	sort.Strings(order)

	total := sum(expenses)
	for _, name := range order {
		sr := byCat[name]
		n := len(sr.txs)

		ys := floats(sr.totals)
		m, sl := mean(ys), slope(ys)
		trend := direction(sl, m)
		p := base
		p.PatternType = domain.PatternMonthlyTrend
		p.CategoryID, p.CategoryName = sr.id, sr.name
		p.Trend = trend
		p.Description = fmt.Sprintf("%s spending is %s", sr.name, trend)
		p.Data = map[string]any{"monthly_totals": sr.totals, "slope": round(sl, 2), "mean": round(m, 2)}
		p.ConfidenceScore, p.SampleSize = round(domain.PatternConfidence(n), 3), n
		out = append(out, p)

		catTotal := sum(sr.txs)
		share := money.Percent(catTotal, total)
		p = base
		p.PatternType = domain.PatternCategoryPreference
		p.CategoryID, p.CategoryName = sr.id, sr.name
		p.Description = fmt.Sprintf("%s takes %.1f%% of your spending", sr.name, share)
		p.Data = map[string]any{"share": share, "total": catTotal}
		p.ConfidenceScore, p.SampleSize = round(domain.PatternConfidence(n), 3), n
		out = append(out, p)

		if n >= minAnomalySamples {
			for i, t := range sr.txs {
				// Each expense is measured against the others in its category.
				others := make([]float64, 0, n-1)
				others = append(others, sr.amts[:i]...)
				others = append(others, sr.amts[i+1:]...)
				am, sd := mean(others), stddev(others)
				if sr.amts[i] <= am+3*math.Max(sd, 0.1*am) {
					continue
				}
				p = base
				p.PatternType = domain.PatternAnomaly
				p.CategoryID, p.CategoryName = sr.id, sr.name
				p.Description = fmt.Sprintf("Unusually large %s expense of %s on %s", sr.name, t.Amount.StringFixed(2), t.TransactionDate.Format(time.DateOnly))
				p.Data = map[string]any{"transaction_id": t.ID, "amount": t.Amount, "mean": round(am, 2), "stddev": round(sd, 2)}
				p.ConfidenceScore, p.SampleSize = round(domain.PatternConfidence(n), 3), n
				out = append(out, p)
			}
		}
	}

	visits := group(expenses, func(t domain.Transaction) (*int64, string) { return t.MerchantID, t.MerchantName })
	for _, v := range visits {
		if v.name == "" || v.count < minMerchantVisits {
			continue
		}
		perMonth := round(float64(v.count)/float64(months), 2)
		p := base
		p.PatternType = domain.PatternMerchantFrequency
		p.Description = fmt.Sprintf("You visit %s %.1f times a month", v.name, perMonth)
		p.Data = map[string]any{"merchant": v.name, "visits": v.count, "visits_per_month": perMonth, "total": v.total}
		p.ConfidenceScore, p.SampleSize = round(domain.PatternConfidence(v.count), 3), v.count
		out = append(out, p)
	}

	weekdays := make([]decimal.Decimal, 7)
	counts := make([]int, 7)
	for i := range weekdays {
		weekdays[i] = decimal.Zero
	}
	for _, t := range expenses {
		wd := t.TransactionDate.Weekday()
		weekdays[wd] = weekdays[wd].Add(t.Amount)
		counts[wd]++
	}
	busiest := time.Sunday
	dist := map[string]any{}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		dist[wd.String()] = map[string]any{"total": weekdays[wd], "count": counts[wd]}
		if weekdays[wd].GreaterThan(weekdays[busiest]) {
			busiest = wd
		}
	}
	p := base
	p.PatternType = domain.PatternTimeBased
	p.Description = fmt.Sprintf("You spend the most on %ss", busiest)
	p.Data = map[string]any{"weekdays": dist, "busiest_day": busiest.String()}
	p.ConfidenceScore, p.SampleSize = round(domain.PatternConfidence(len(expenses)), 3), len(expenses)
	out = append(out, p)
	return out
}

// GeneratePatterns analyses the given number of complete months before now
// and replaces the stored patterns. months <= 0 means DefaultWindowMonths.
func (s *Service) GeneratePatterns(ctx context.Context, userID int64, months int) ([]domain.SpendingPattern, error) {
	if months <= 0 {
		months = DefaultWindowMonths
	}
	if months > maxWindowMonths {
		return nil, domain.Invalid("months", fmt.Sprintf("must be at most %d", maxWindowMonths))
	}
	now := s.now()
	from, to := window(now, months)
	txs, err := s.store.TransactionsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	patterns := detectPatterns(userID, txs, categoryNames(cats), from, months, now)
	if err := s.store.ReplacePatterns(ctx, userID, patterns); err != nil {
		return nil, err
	}
	return patterns, nil
}

func (s *Service) Patterns(ctx context.Context, userID int64) ([]domain.SpendingPattern, error) {
	return s.store.ListPatterns(ctx, userID)
}
