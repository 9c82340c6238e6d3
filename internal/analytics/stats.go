package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func floats(ds []decimal.Decimal) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i], _ = d.Float64()
	}
	return out
}

func mean(xs []float64) float64 {
	m, err := stats.Mean(xs)
	if err != nil {
		return 0
	}
	return m
}

// stddev is the sample standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(xs)
	if err != nil {
		return 0
	}
	return sd
}

// slope is the least squares slope of ys over x = 0..n-1.
func slope(ys []float64) float64 {
	if len(ys) < 2 {
		return 0
	}
	series := make(stats.Series, len(ys))
	for i, y := range ys {
		series[i] = stats.Coordinate{X: float64(i), Y: y}
	}
	fit, err := stats.LinearRegression(series)
	if err != nil {
		return 0
	}
	return fit[1].Y - fit[0].Y
}

// direction classifies a slope against 5% of the mean.
func direction(slope, mean float64) domain.TrendDirection {
	switch {
	case slope > 0.05*mean:
		return domain.TrendIncreasing
	case slope < -0.05*mean:
		return domain.TrendDecreasing
	}
	return domain.TrendStable
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// changePercent is the change from prev to cur in percent, 0 when prev is 0.
func changePercent(prev, cur decimal.Decimal) float64 {
	if prev.IsZero() {
		return 0
	}
	f, _ := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Float64()
	return round(f, 2)
}

type bucket struct {
	id    *int64
	name  string
	total decimal.Decimal
	count int
}

// group sums amounts per key, largest total first, ties by name.
func group(txs []domain.Transaction, key func(domain.Transaction) (*int64, string)) []bucket {
	idx := map[string]int{}
	var out []bucket
	for _, t := range txs {
		id, name := key(t)
		i, ok := idx[name]
		if !ok {
			i = len(out)
			idx[name] = i
			out = append(out, bucket{id: id, name: name, total: decimal.Zero})
		}
		out[i].total = out[i].total.Add(t.Amount)
		out[i].count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].total.Cmp(out[j].total); c != 0 {
			return c > 0
		}
		return out[i].name < out[j].name
	})
	return out
}

func byCategory(names map[int64]string) func(domain.Transaction) (*int64, string) {
	return func(t domain.Transaction) (*int64, string) {
		return t.CategoryID, nameOf(t.CategoryID, names)
	}
}

func sum(txs []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// monthIndex is the position of t in the months starting at from.
func monthIndex(from, t time.Time) int {
	return (t.Year()-from.Year())*12 + int(t.Month()) - int(from.Month())
}
