package analytics

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
	"github.com/iuliailies/moneytrack-backend/internal/money"
)

const breakdownSize = 5

// monthData is everything a monthly summary is computed from.
type monthData struct {
	Year, Month   int
	Txs           []domain.Transaction
	PrevTxs       []domain.Transaction
	Names         map[int64]string
	Budgets       []domain.Budget
	Goals         []domain.BudgetGoal
	Contributions []domain.GoalContribution
	Insights      []domain.FinancialInsight
	Now           time.Time
}

// buildSummary computes the summary of one month. Only completed
// transactions count.
func buildSummary(userID int64, d monthData) domain.MonthlyFinancialSummary {
	from, to := domain.MonthRange(d.Year, d.Month)
	s := domain.MonthlyFinancialSummary{UserID: userID, Year: d.Year, Month: d.Month, GeneratedAt: d.Now}

	income := completed(d.Txs, domain.TypeIncome)
	expenses := completed(d.Txs, domain.TypeExpense)
	all := completed(d.Txs, "")

	s.TotalIncome = sum(income)
	sources := group(income, byCategory(d.Names))
	s.IncomeSourcesCount = len(sources)
	if len(sources) > 0 {
		s.PrimaryIncomeSource = sources[0].name
	}

	s.TotalExpenses = sum(expenses)
	s.FixedExpenses = decimal.Zero
	for _, t := range expenses {
		if t.IsRecurring {
			s.FixedExpenses = s.FixedExpenses.Add(t.Amount)
		}
	}
	s.VariableExpenses = s.TotalExpenses.Sub(s.FixedExpenses)
	cats := group(expenses, byCategory(d.Names))
	s.TopExpenseAmount = decimal.Zero
	if len(cats) > 0 {
		s.TopExpenseCategory = cats[0].name
		s.TopExpenseAmount = cats[0].total
	}
	s.CategoryBreakdown = []domain.CategoryTotal{}
	for i, c := range cats {
		if i == breakdownSize {
			break
		}
		s.CategoryBreakdown = append(s.CategoryBreakdown, domain.CategoryTotal{CategoryID: c.id, CategoryName: c.name, Total: c.total, Count: c.count})
	}

	s.NetIncome = s.TotalIncome.Sub(s.TotalExpenses)
	if s.TotalIncome.IsPositive() {
		s.SavingsRate = round(money.Percent(s.NetIncome, s.TotalIncome), 2)
	}
	s.TransactionCount = len(all)
	s.AverageTransactionAmount = decimal.Zero
	if len(all) > 0 {
		s.AverageTransactionAmount = money.Round2(sum(all).Div(decimal.NewFromInt(int64(len(all)))))
	}
	s.MostFrequentMerchant = mostFrequentMerchant(all)

	s.TotalBudgeted = decimal.Zero
	s.OverBudgetCategories = []string{}
	items, within := 0, 0
	for _, b := range d.Budgets {
		if b.Period == nil || !b.Period.Overlaps(from, to) {
			continue
		}
		s.TotalBudgeted = s.TotalBudgeted.Add(b.TotalAmount)
		for _, it := range b.Items {
			items++
			if it.IsOverBudget() {
				s.OverBudgetCategories = append(s.OverBudgetCategories, it.CategoryName)
			} else {
				within++
			}
		}
	}
	if items > 0 {
		s.BudgetAdherenceRate = round(float64(within)/float64(items)*100, 2)
	}

	s.IncomeChangePercent = changePercent(sum(completed(d.PrevTxs, domain.TypeIncome)), s.TotalIncome)
	s.ExpenseChangePercent = changePercent(sum(completed(d.PrevTxs, domain.TypeExpense)), s.TotalExpenses)

	asOf := to.AddDate(0, 0, -1)
	if d.Now.Before(asOf) {
		asOf = d.Now
	}
	for _, g := range d.Goals {
		if g.Status != domain.GoalActive {
			continue
		}
		s.ActiveGoalsCount++
		if g.OnTrack(asOf) {
			s.GoalsOnTrack++
		}
	}
	s.GoalContributions = decimal.Zero
	for _, c := range d.Contributions {
		if !c.ContributedAt.Before(from) && c.ContributedAt.Before(to) {
			s.GoalContributions = s.GoalContributions.Add(c.Amount)
		}
	}
	for _, in := range d.Insights {
		if in.GeneratedAt.Before(from) || !in.GeneratedAt.Before(to) {
			continue
		}
		s.InsightsGenerated++
		if in.Priority.Rank() >= domain.PriorityHigh.Rank() {
			s.HighPriorityInsights++
		}
	}
	return s
}

func mostFrequentMerchant(txs []domain.Transaction) string {
	counts := map[string]int{}
	for _, t := range txs {
		if t.MerchantName != "" {
			counts[t.MerchantName]++
		}
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// GenerateMonthlySummary computes and stores the summary of one month.
// Running it again replaces the stored figures.
func (s *Service) GenerateMonthlySummary(ctx context.Context, userID int64, year, month int) (domain.MonthlyFinancialSummary, error) {
	if month < 1 || month > 12 || year < 2000 || year > 2100 {
		return domain.MonthlyFinancialSummary{}, domain.Invalid("month", "is out of range")
	}
	from, to := domain.MonthRange(year, month)
	d := monthData{Year: year, Month: month, Now: s.now()}
	var err error
	if d.Txs, err = s.store.TransactionsBetween(ctx, userID, from, to); err != nil {
		return domain.MonthlyFinancialSummary{}, err
	}
	if d.PrevTxs, err = s.store.TransactionsBetween(ctx, userID, from.AddDate(0, -1, 0), from); err != nil {
		return domain.MonthlyFinancialSummary{}, err
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return domain.MonthlyFinancialSummary{}, err
	}
	d.Names = categoryNames(cats)
	if d.Budgets, err = s.store.ListBudgets(ctx, userID, ""); err != nil {
		return domain.MonthlyFinancialSummary{}, err
	}
	if d.Goals, err = s.store.ListGoals(ctx, userID); err != nil {
		return domain.MonthlyFinancialSummary{}, err
	}
	if d.Contributions, err = s.store.GoalContributionsBetween(ctx, userID, from, to); err != nil {
		return domain.MonthlyFinancialSummary{}, err
	}
	if d.Insights, err = s.store.ListInsights(ctx, userID); err != nil {
		return domain.MonthlyFinancialSummary{}, err
	}

	out := buildSummary(userID, d)
	if err := s.store.UpsertMonthlySummary(ctx, &out); err != nil {
		return domain.MonthlyFinancialSummary{}, err
	}
	return out, nil
}

// MonthlySummary returns the stored summary, generating it when missing.
func (s *Service) MonthlySummary(ctx context.Context, userID int64, year, month int) (domain.MonthlyFinancialSummary, error) {
	out, err := s.store.GetMonthlySummary(ctx, userID, year, month)
	if errors.Is(err, domain.ErrNotFound) {
		return s.GenerateMonthlySummary(ctx, userID, year, month)
	}
	return out, err
}
