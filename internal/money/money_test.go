package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSplitEqual(t *testing.T) {
	tests := []struct {
		total string
		n     int
		want  []string
	}{
		{"100.00", 3, []string{"33.34", "33.33", "33.33"}},
		{"10.00", 4, []string{"2.5", "2.5", "2.5", "2.5"}},
		{"0.05", 3, []string{"0.02", "0.02", "0.01"}},
		{"1500", 1, []string{"1500"}},
	}

	for _, tt := range tests {
		got := SplitEqual(d(tt.total), tt.n)
		if len(got) != len(tt.want) {
			t.Fatalf("SplitEqual(%s, %d) returned %d parts", tt.total, tt.n, len(got))
		}
		sum := Sum(got...)
		if !sum.Equal(d(tt.total)) {
			t.Errorf("SplitEqual(%s, %d) sums to %s", tt.total, tt.n, sum)
		}
		for i := range got {
			if !got[i].Equal(d(tt.want[i])) {
				t.Errorf("SplitEqual(%s, %d)[%d] = %s, want %s", tt.total, tt.n, i, got[i], tt.want[i])
			}
		}
	}

	if SplitEqual(d("10"), 0) != nil {
		t.Error("expected nil for zero parts")
	}
}

func TestSplitWeighted(t *testing.T) {
	got, err := SplitWeighted(d("100.00"), []decimal.Decimal{d("1"), d("2"), d("3")})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"16.67", "33.33", "50"}
	for i := range want {
		if !got[i].Equal(d(want[i])) {
			t.Errorf("part %d = %s, want %s", i, got[i], want[i])
		}
	}
	if !Sum(got...).Equal(d("100")) {
		t.Errorf("parts sum to %s", Sum(got...))
	}

	if _, err := SplitWeighted(d("10"), []decimal.Decimal{d("0"), d("0")}); err == nil {
		t.Error("expected error for zero weights")
	}
	if _, err := SplitWeighted(d("10"), []decimal.Decimal{d("-1"), d("2")}); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := New(d("10.50"), "LKR")
	b := New(d("0.25"), "LKR")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatal(err)
	}
	if sum.String() != "10.75 LKR" {
		t.Errorf("got %s", sum)
	}

	diff, err := b.Sub(a)
	if err != nil {
		t.Fatal(err)
	}
	if !diff.IsNegative() {
		t.Errorf("expected negative, got %s", diff)
	}

	if _, err := a.Add(New(d("1"), "USD")); err != ErrCurrencyMismatch {
		t.Errorf("got %v, want ErrCurrencyMismatch", err)
	}

	if c, err := a.Cmp(b); err != nil || c != 1 {
		t.Errorf("Cmp = %d, %v", c, err)
	}
	if _, err := a.Cmp(New(d("1"), "USD")); err != ErrCurrencyMismatch {
		t.Errorf("Cmp across currencies: %v", err)
	}
}

func TestPercentAndValidation(t *testing.T) {
	if p := Percent(d("80"), d("200")); p != 40 {
		t.Errorf("Percent = %v", p)
	}
	if p := Percent(d("1"), decimal.Zero); p != 0 {
		t.Errorf("Percent with zero whole = %v", p)
	}
	if !ValidCurrency("LKR") || ValidCurrency("lkr") || ValidCurrency("EURO") {
		t.Error("currency validation mismatch")
	}
	if AtLeastCent(d("0.009")) || !AtLeastCent(d("0.01")) {
		t.Error("AtLeastCent mismatch")
	}
	if _, err := Parse("abc", "LKR"); err == nil {
		t.Error("expected parse error")
	}
}
