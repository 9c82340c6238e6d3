package budget

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

func (s *Service) Goals(ctx context.Context, userID int64) ([]domain.GoalView, error) {
	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := domain.DateOnly(s.now())
	out := make([]domain.GoalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, domain.NewGoalView(g, today))
	}
	return out, nil
}

func (s *Service) Goal(ctx context.Context, userID, id int64) (domain.GoalView, error) {
	g, err := s.store.GetGoal(ctx, userID, id)
	if err != nil {
		return domain.GoalView{}, err
	}
	return domain.NewGoalView(g, domain.DateOnly(s.now())), nil
}

func (s *Service) CreateGoal(ctx context.Context, userID int64, g domain.BudgetGoal) (domain.GoalView, error) {
	g.ID = 0
	g.UserID = userID
	g.CompletionDate = nil
	if g.Currency == "" {
		g.Currency = s.defaultCurrency(ctx, userID)
	}
	g.Currency = strings.ToUpper(g.Currency)
	if g.StartDate.IsZero() {
		g.StartDate = domain.DateOnly(s.now())
	}
	if err := g.Validate(); err != nil {
		return domain.GoalView{}, err
	}
	if err := s.store.CreateGoal(ctx, &g); err != nil {
		return domain.GoalView{}, err
	}
	return domain.NewGoalView(g, domain.DateOnly(s.now())), nil
}

func (s *Service) UpdateGoal(ctx context.Context, userID, id int64, in domain.BudgetGoal) (domain.GoalView, error) {
	cur, err := s.store.GetGoal(ctx, userID, id)
	if err != nil {
		return domain.GoalView{}, err
	}
	cur.Name = in.Name
	cur.Description = in.Description
	cur.GoalType = in.GoalType
	cur.TargetAmount = in.TargetAmount
	cur.MonthlyContribution = in.MonthlyContribution
	cur.TargetDate = in.TargetDate
	if in.Status != "" {
		cur.Status = in.Status
	}
	cur.Priority = in.Priority
	cur.LinkedAccountID = in.LinkedAccountID
	cur.AutoContribute = in.AutoContribute
	cur.ContributionFrequency = in.ContributionFrequency
	if err := cur.Validate(); err != nil {
		return domain.GoalView{}, err
	}
	if cur.Status == domain.GoalCompleted && cur.CompletionDate == nil {
		now := s.now()
		cur.CompletionDate = &now
	}
	if err := s.store.UpdateGoal(ctx, &cur); err != nil {
		return domain.GoalView{}, err
	}
	return domain.NewGoalView(cur, domain.DateOnly(s.now())), nil
}

func (s *Service) DeleteGoal(ctx context.Context, userID, id int64) error {
	return s.store.DeleteGoal(ctx, userID, id)
}

// Contribute adds money to a goal and completes it once the target is met.
func (s *Service) Contribute(ctx context.Context, userID, goalID int64, amount decimal.Decimal, description string, transactionID *int64) (domain.GoalView, error) {
	g, err := s.store.GetGoal(ctx, userID, goalID)
	if err != nil {
		return domain.GoalView{}, err
	}
	now := s.now()
	completed, err := g.AddContribution(amount, now)
	if err != nil {
		return domain.GoalView{}, err
	}
	c := domain.GoalContribution{
		GoalID:        g.ID,
		Amount:        amount,
		Description:   strings.TrimSpace(description),
		TransactionID: transactionID,
		ContributedAt: now,
	}
	if err := s.store.AddGoalContribution(ctx, &g, &c); err != nil {
		return domain.GoalView{}, err
	}
	if completed {
		id := g.ID
		s.emit(ctx, domain.Notification{
			UserID:        g.UserID,
			Type:          domain.NotifyGoalUpdate,
			Title:         "Goal reached",
			Message:       fmt.Sprintf("You reached your goal %q of %s %s.", g.Name, g.Currency, g.TargetAmount.StringFixed(2)),
			Priority:      domain.PriorityMedium,
			Data:          map[string]any{"current_amount": g.CurrentAmount.StringFixed(2)},
			RelatedGoalID: &id,
		})
	}
	return domain.NewGoalView(g, domain.DateOnly(now)), nil
}

func (s *Service) Contributions(ctx context.Context, userID, goalID int64) ([]domain.GoalContribution, error) {
	if _, err := s.store.GetGoal(ctx, userID, goalID); err != nil {
		return nil, err
	}
	return s.store.ListGoalContributions(ctx, goalID)
}
