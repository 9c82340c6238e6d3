// Package money holds the currency-aware amount type and the cent-exact
// splitting helpers used by budgets and shared ledgers.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is returned when two amounts of different currencies meet.
var ErrCurrencyMismatch = errors.New("currency mismatch")

var currencyRE = regexp.MustCompile(`^[A-Z]{3}$`)

// Cent is the smallest unit every stored amount is rounded to.
var Cent = decimal.New(1, -2)

// Money is an amount in a single currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Parse reads a plain decimal string like "1250.50".
func Parse(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Money{Amount: d, Currency: currency}, nil
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// Cmp compares two amounts of the same currency like decimal.Cmp.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, ErrCurrencyMismatch
	}
	return m.Amount.Cmp(other.Amount), nil
}

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

// ValidCurrency reports whether code is a three letter upper-case ISO code.
func ValidCurrency(code string) bool {
	return currencyRE.MatchString(code)
}

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// AtLeastCent reports whether d >= 0.01.
func AtLeastCent(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Cent)
}

// WholeCents reports whether d has at most two decimal places.
func WholeCents(d decimal.Decimal) bool {
	return d.Equal(Round2(d))
}

func Sum(ds ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}

// Percent returns part/whole*100, or 0 when whole is zero.
func Percent(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	f, _ := part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return f
}

// SplitEqual divides total into n parts that add up exactly to total.
// Leftover cents go one each to the first parts.
func SplitEqual(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	weights := make([]decimal.Decimal, n)
	for i := range weights {
		weights[i] = decimal.NewFromInt(1)
	}
	parts, _ := SplitWeighted(total, weights)
	return parts
}

// SplitWeighted divides total proportionally to weights using the largest
// remainder method on cents. The parts always add up exactly to total.
func SplitWeighted(total decimal.Decimal, weights []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(weights) == 0 {
		return nil, errors.New("no weights")
	}
	sumW := decimal.Zero
	for _, w := range weights {
		if w.IsNegative() {
			return nil, errors.New("negative weight")
		}
		sumW = sumW.Add(w)
	}
	if sumW.IsZero() {
		return nil, errors.New("weights sum to zero")
	}

	cents := total.Round(2).Shift(2).IntPart()
	type rem struct {
		idx  int
		frac decimal.Decimal
	}
	parts := make([]int64, len(weights))
	rems := make([]rem, len(weights))
	var assigned int64
	for i, w := range weights {
		exact := decimal.NewFromInt(cents).Mul(w).Div(sumW)
		floor := exact.Floor()
		parts[i] = floor.IntPart()
		assigned += parts[i]
		rems[i] = rem{idx: i, frac: exact.Sub(floor)}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac.GreaterThan(rems[b].frac)
	})
	for left := cents - assigned; left > 0; left-- {
		r := rems[int(cents-assigned-left)%len(rems)]
		parts[r.idx]++
	}

	out := make([]decimal.Decimal, len(parts))
	for i, c := range parts {
		out[i] = decimal.New(c, -2)
	}
	return out, nil
}
