package budget

import (
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// SpentByCategory sums completed expenses in currency inside period by
// category. Split transactions count towards their split categories instead
// of the parent category.
func SpentByCategory(p domain.BudgetPeriod, currency string, txs []domain.Transaction, splits map[int64][]domain.TransactionSplit) map[int64]decimal.Decimal {
	out := map[int64]decimal.Decimal{}
	for _, t := range txs {
		if t.Type != domain.TypeExpense || t.Status != domain.StatusCompleted {
			continue
		}
		if currency != "" && t.Currency != currency {
			continue
		}
		if !p.Contains(t.TransactionDate) {
			continue
		}
		if ss := splits[t.ID]; len(ss) > 0 {
			for _, sp := range ss {
				out[sp.CategoryID] = out[sp.CategoryID].Add(sp.Amount)
			}
			continue
		}
		if t.CategoryID != nil {
			out[*t.CategoryID] = out[*t.CategoryID].Add(t.Amount)
		}
	}
	return out
}

func transactionIDs(txs []domain.Transaction) []int64 {
	ids := make([]int64, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID)
	}
	return ids
}
