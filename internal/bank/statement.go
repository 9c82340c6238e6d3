package bank

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// Message is one bank SMS or statement line.
type Message struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

type BalanceImport struct {
	Account domain.BankAccount `json:"account"`
	Applied int                `json:"applied"`
	Ignored int                `json:"ignored"`
}

func balanceRE(currency string) *regexp.Regexp {
	return regexp.MustCompile(`Balance:\s([0-9,]*\.?[0-9]*)\s` + regexp.QuoteMeta(currency))
}

// ParseBalance extracts the balance from a "Balance: 12,345.67 LKR" message.
func ParseBalance(text, currency string) (decimal.Decimal, bool) {
	m := balanceRE(currency).FindStringSubmatch(text)
	if len(m) < 2 {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// ImportBalances updates a manually tracked account from bank messages.
// Messages older than the last recorded balance, or without a balance, are
// ignored; the newest balance wins.
func (s *Service) ImportBalances(ctx context.Context, userID, accountID int64, msgs []Message) (BalanceImport, error) {
	acc, err := s.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return BalanceImport{}, err
	}
	if acc.IsAPIConnected {
		return BalanceImport{}, domain.Invalid("account", "is synced from the bank API")
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].ReceivedAt.Before(msgs[j].ReceivedAt) })
	res := BalanceImport{}
	for _, m := range msgs {
		if m.ReceivedAt.IsZero() || !m.ReceivedAt.After(acc.LastUpdated) {
			res.Ignored++
			continue
		}
		bal, ok := ParseBalance(m.Text, acc.Currency)
		if !ok {
			res.Ignored++
			continue
		}
		acc.CurrentBalance = bal
		acc.AvailableBalance = bal
		acc.LastUpdated = m.ReceivedAt
		res.Applied++
	}
	if res.Applied > 0 {
		if err := s.store.UpdateAccount(ctx, &acc); err != nil {
			return BalanceImport{}, fmt.Errorf("update balance: %w", err)
		}
	}
	res.Account = acc
	return res, nil
}
