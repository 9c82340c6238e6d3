package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const (
	targetSavingsRate    = 20
	comparativeThreshold = 30
)

// insightInput is what the insight rules look at.
type insightInput struct {
	Config    domain.AnalyticsConfiguration
	Today     time.Time
	Budgets   []domain.Budget
	Goals     []domain.BudgetGoal
	Patterns  []domain.SpendingPattern
	Current   []domain.Transaction // month to date
	LastMonth []domain.Transaction
	Before    []domain.Transaction // the month before LastMonth
	Names     map[int64]string
}

// buildInsights applies every enabled rule.
func buildInsights(in insightInput) []domain.FinancialInsight {
	cfg := in.Config
	var out []domain.FinancialInsight
	add := func(i domain.FinancialInsight) { out = append(out, i) }

	if cfg.EnableSpendingAlerts {
		for _, b := range in.Budgets {
			if b.Status != domain.BudgetActive || b.Period == nil || !b.Period.Contains(in.Today) {
				continue
			}
			if b.PercentageUsed < float64(cfg.SpendingAlertThreshold) {
				continue
			}
			prio := domain.PriorityMedium
			if b.PercentageUsed >= 100 {
				prio = domain.PriorityHigh
			}
			id := b.ID
			add(domain.FinancialInsight{
				InsightType:    domain.InsightSpendingAlert,
				Title:          fmt.Sprintf("%s is at %.0f%%", b.Name, b.PercentageUsed),
				Description:    fmt.Sprintf("You have spent %s of %s %s budgeted.", b.TotalSpent.StringFixed(2), b.TotalAmount.StringFixed(2), b.Currency),
				Priority:       prio,
				RelevanceScore: clamp01(b.PercentageUsed / 100),
				BudgetID:       &id,
				Data:           map[string]any{"percentage_used": b.PercentageUsed},
			})
		}
	}

	if cfg.EnableTrendAnalysis {
		for _, p := range in.Patterns {
			if p.PatternType != domain.PatternMonthlyTrend || p.Trend != domain.TrendIncreasing {
				continue
			}
			add(domain.FinancialInsight{
				InsightType:    domain.InsightTrendAnalysis,
				Title:          p.CategoryName + " spending is rising",
				Description:    fmt.Sprintf("Your %s spending has been increasing over the last months.", p.CategoryName),
				Priority:       domain.PriorityMedium,
				RelevanceScore: p.ConfidenceScore,
				CategoryID:     p.CategoryID,
				Data:           p.Data,
			})
		}
	}

	lastIncome := sum(completed(in.LastMonth, domain.TypeIncome))
	lastExpenses := sum(completed(in.LastMonth, domain.TypeExpense))
	if cfg.EnableSavingsSuggestions && lastIncome.IsPositive() {
		net := lastIncome.Sub(lastExpenses)
		target := lastIncome.Mul(decimal.NewFromInt(targetSavingsRate)).Div(decimal.NewFromInt(100))
		if net.LessThan(target) {
			gap := target.Sub(net).Round(2)
			rate, _ := net.Div(lastIncome).Mul(decimal.NewFromInt(100)).Float64()
			add(domain.FinancialInsight{
				InsightType:      domain.InsightSavingsOpportunity,
				Title:            "Room to save more",
				Description:      fmt.Sprintf("Last month you saved %.1f%% of your income. Cutting %s would reach %d%%.", rate, gap.StringFixed(2), targetSavingsRate),
				Priority:         domain.PriorityMedium,
				RelevanceScore:   clamp01(1 - rate/targetSavingsRate),
				PotentialSavings: decimal.NewNullDecimal(gap),
				Data:             map[string]any{"savings_rate": round(rate, 2)},
			})
		}
	}

	if cfg.EnableCashFlowWarnings {
		income := sum(completed(in.Current, domain.TypeIncome))
		expenses := sum(completed(in.Current, domain.TypeExpense))
		if expenses.GreaterThan(income) {
			add(domain.FinancialInsight{
				InsightType:    domain.InsightCashFlowWarning,
				Title:          "Spending exceeds income this month",
				Description:    fmt.Sprintf("Expenses of %s are above income of %s so far this month.", expenses.StringFixed(2), income.StringFixed(2)),
				Priority:       domain.PriorityHigh,
				RelevanceScore: 0.9,
				Data:           map[string]any{"income": income, "expenses": expenses},
			})
		}
	}

	if cfg.EnableGoalTracking {
		for _, g := range in.Goals {
			if g.Status != domain.GoalActive || g.OnTrack(in.Today) {
				continue
			}
			id := g.ID
			add(domain.FinancialInsight{
				InsightType:    domain.InsightGoalProgress,
				Title:          g.Name + " is behind schedule",
				Description:    fmt.Sprintf("Contribute %s a month to reach it by %s.", g.RequiredMonthlyContribution(in.Today).StringFixed(2), g.TargetDate.Format(time.DateOnly)),
				Priority:       domain.PriorityMedium,
				RelevanceScore: clamp01(1 - g.ProgressPercentage()/100),
				GoalID:         &id,
				Data:           map[string]any{"progress_percentage": g.ProgressPercentage()},
			})
		}
	}

	if cfg.EnableComparativeAnalysis {
		prev := map[string]decimal.Decimal{}
		for _, b := range group(completed(in.Before, domain.TypeExpense), byCategory(in.Names)) {
			prev[b.name] = b.total
		}
		for _, b := range group(completed(in.LastMonth, domain.TypeExpense), byCategory(in.Names)) {
			p, ok := prev[b.name]
			if !ok || !p.IsPositive() {
				continue
			}
			change := changePercent(p, b.total)
			if change <= comparativeThreshold {
				continue
			}
			add(domain.FinancialInsight{
				InsightType:    domain.InsightComparativeAnalysis,
				Title:          fmt.Sprintf("%s up %.0f%%", b.name, change),
				Description:    fmt.Sprintf("You spent %s on %s last month against %s the month before.", b.total.StringFixed(2), b.name, p.StringFixed(2)),
				Priority:       domain.PriorityLow,
				RelevanceScore: clamp01(change / 100),
				CategoryID:     b.id,
				Data:           map[string]any{"previous": p, "current": b.total, "change_percent": change},
			})
		}
	}
	return out
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return round(x, 3)
}

// active reports whether the insight is still shown at now.
func active(in domain.FinancialInsight, now time.Time) bool {
	return !in.IsDismissed && (in.ExpiresAt == nil || now.Before(*in.ExpiresAt))
}

func sameSubject(a, b domain.FinancialInsight) bool {
	eq := func(x, y *int64) bool { return (x == nil && y == nil) || (x != nil && y != nil && *x == *y) }
	return a.InsightType == b.InsightType && eq(a.CategoryID, b.CategoryID) && eq(a.BudgetID, b.BudgetID) && eq(a.GoalID, b.GoalID)
}

// sortInsights orders by priority, then relevance, newest first.
func sortInsights(ins []domain.FinancialInsight) {
	sort.SliceStable(ins, func(i, j int) bool {
		a, b := ins[i], ins[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		return a.GeneratedAt.After(b.GeneratedAt)
	})
}

// GenerateInsights runs the rules and stores the new insights. An insight
// whose subject already has an active insight of the same type is skipped.
func (s *Service) GenerateInsights(ctx context.Context, userID int64) ([]domain.FinancialInsight, error) {
	cfg, err := s.config(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today := domain.DateOnly(now)
	cur := monthStart(now)
	last := cur.AddDate(0, -1, 0)
	in := insightInput{Config: cfg, Today: today}

	if in.Current, err = s.store.TransactionsBetween(ctx, userID, cur, today.AddDate(0, 0, 1)); err != nil {
		return nil, err
	}
	if in.LastMonth, err = s.store.TransactionsBetween(ctx, userID, last, cur); err != nil {
		return nil, err
	}
	if in.Before, err = s.store.TransactionsBetween(ctx, userID, last.AddDate(0, -1, 0), last); err != nil {
		return nil, err
	}
	if in.Budgets, err = s.store.ListBudgets(ctx, userID, domain.BudgetActive); err != nil {
		return nil, err
	}
	if in.Goals, err = s.store.ListGoals(ctx, userID); err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	in.Names = categoryNames(cats)
	if cfg.EnableTrendAnalysis {
		from, to := window(now, DefaultWindowMonths)
		txs, err := s.store.TransactionsBetween(ctx, userID, from, to)
		if err != nil {
			return nil, err
		}
		in.Patterns = detectPatterns(userID, txs, in.Names, from, DefaultWindowMonths, now)
	}

	existing, err := s.store.ListInsights(ctx, userID)
	if err != nil {
		return nil, err
	}
	expires := now.AddDate(0, 0, cfg.KeepInsightsForDays)
	var created []domain.FinancialInsight
	for _, ins := range buildInsights(in) {
		dup := false
		for _, e := range existing {
			if active(e, now) && sameSubject(e, ins) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		ins.UserID = userID
		ins.GeneratedAt = now
		ins.ExpiresAt = &expires
		if err := s.store.CreateInsight(ctx, &ins); err != nil {
			return nil, err
		}
		created = append(created, ins)
		existing = append(existing, ins)
		s.announce(ctx, cfg, ins)
	}
	sortInsights(created)
	return created, nil
}

// announce pushes high priority insights when the user wants them as they
// happen.
func (s *Service) announce(ctx context.Context, cfg domain.AnalyticsConfiguration, in domain.FinancialInsight) {
	if s.notifier == nil || cfg.InsightNotificationFrequency != domain.InsightImmediate {
		return
	}
	if in.Priority.Rank() < domain.PriorityHigh.Rank() {
		return
	}
	s.notifier.Emit(ctx, domain.Notification{
		UserID:          in.UserID,
		Type:            domain.NotifyInsight,
		Title:           in.Title,
		Message:         in.Description,
		Priority:        in.Priority,
		RelatedBudgetID: in.BudgetID,
		RelatedGoalID:   in.GoalID,
		Data:            map[string]any{"insight_id": in.ID, "insight_type": string(in.InsightType)},
	})
}

// Insights lists the active insights in display order.
func (s *Service) Insights(ctx context.Context, userID int64) ([]domain.FinancialInsight, error) {
	all, err := s.store.ListInsights(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := []domain.FinancialInsight{}
	for _, in := range all {
		if active(in, now) {
			out = append(out, in)
		}
	}
	sortInsights(out)
	return out, nil
}

func (s *Service) updateInsight(ctx context.Context, userID, id int64, change func(*domain.FinancialInsight) error) (domain.FinancialInsight, error) {
	in, err := s.store.GetInsight(ctx, userID, id)
	if err != nil {
		return domain.FinancialInsight{}, err
	}
	if err := change(&in); err != nil {
		return domain.FinancialInsight{}, err
	}
	if err := s.store.UpdateInsight(ctx, &in); err != nil {
		return domain.FinancialInsight{}, err
	}
	return in, nil
}

func (s *Service) MarkInsightRead(ctx context.Context, userID, id int64) (domain.FinancialInsight, error) {
	return s.updateInsight(ctx, userID, id, func(in *domain.FinancialInsight) error {
		in.IsRead = true
		return nil
	})
}

func (s *Service) DismissInsight(ctx context.Context, userID, id int64) (domain.FinancialInsight, error) {
	return s.updateInsight(ctx, userID, id, func(in *domain.FinancialInsight) error {
		in.IsRead, in.IsDismissed = true, true
		return nil
	})
}

func (s *Service) ActOnInsight(ctx context.Context, userID, id int64) (domain.FinancialInsight, error) {
	return s.updateInsight(ctx, userID, id, func(in *domain.FinancialInsight) error {
		in.IsRead, in.IsActedUpon = true, true
		return nil
	})
}

func (s *Service) InsightFeedback(ctx context.Context, userID, id int64, fb domain.InsightFeedback) (domain.FinancialInsight, error) {
	if !fb.Valid() {
		return domain.FinancialInsight{}, domain.Invalid("feedback", "must be helpful, not_helpful or irrelevant")
	}
	return s.updateInsight(ctx, userID, id, func(in *domain.FinancialInsight) error {
		in.Feedback = fb
		return nil
	})
}
