package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/money"
)

type GoalType string

const (
	GoalSavings       GoalType = "savings"
	GoalDebtPayoff    GoalType = "debt_payoff"
	GoalInvestment    GoalType = "investment"
	GoalEmergencyFund GoalType = "emergency_fund"
	GoalVacation      GoalType = "vacation"
	GoalHomePurchase  GoalType = "home_purchase"
	GoalEducation     GoalType = "education"
	GoalRetirement    GoalType = "retirement"
	GoalOther         GoalType = "other"
)

func (g GoalType) Valid() bool {
	switch g {
	case GoalSavings, GoalDebtPayoff, GoalInvestment, GoalEmergencyFund, GoalVacation,
		GoalHomePurchase, GoalEducation, GoalRetirement, GoalOther:
		return true
	}
	return false
}

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalPaused    GoalStatus = "paused"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
)

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalPaused, GoalCompleted, GoalCancelled:
		return true
	}
	return false
}

type ContributionFrequency string

const (
	ContributeWeekly    ContributionFrequency = "weekly"
	ContributeMonthly   ContributionFrequency = "monthly"
	ContributeQuarterly ContributionFrequency = "quarterly"
)

func (c ContributionFrequency) Valid() bool {
	switch c {
	case ContributeWeekly, ContributeMonthly, ContributeQuarterly:
		return true
	}
	return false
}

type BudgetGoal struct {
	ID                    int64                 `json:"id"`
	UserID                int64                 `json:"user_id"`
	Name                  string                `json:"name"`
	Description           string                `json:"description"`
	GoalType              GoalType              `json:"goal_type"`
	TargetAmount          decimal.Decimal       `json:"target_amount"`
	CurrentAmount         decimal.Decimal       `json:"current_amount"`
	MonthlyContribution   decimal.Decimal       `json:"monthly_contribution"`
	Currency              string                `json:"currency"`
	StartDate             time.Time             `json:"start_date"`
	TargetDate            time.Time             `json:"target_date"`
	CompletionDate        *time.Time            `json:"completion_date,omitempty"`
	Status                GoalStatus            `json:"status"`
	Priority              int                   `json:"priority"`
	LinkedAccountID       *int64                `json:"linked_account_id,omitempty"`
	AutoContribute        bool                  `json:"auto_contribute"`
	ContributionFrequency ContributionFrequency `json:"contribution_frequency"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

func (g *BudgetGoal) Validate() error {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" || len([]rune(g.Name)) > 200 {
		return Invalid("name", "must be 1-200 characters")
	}
	if !g.GoalType.Valid() {
		return Invalid("goal_type", "is not valid")
	}
	if !money.AtLeastCent(g.TargetAmount) {
		return Invalid("target_amount", "must be at least 0.01")
	}
	if g.CurrentAmount.IsNegative() {
		return Invalid("current_amount", "must not be negative")
	}
	if !money.ValidCurrency(g.Currency) {
		return Invalid("currency", "must be a 3 letter code")
	}
	if g.TargetDate.IsZero() {
		return Invalid("target_date", "is required")
	}
	if g.StartDate.IsZero() {
		g.StartDate = DateOnly(time.Now())
	}
	if g.Status == "" {
		g.Status = GoalActive
	}
	if !g.Status.Valid() {
		return Invalid("status", "is not valid")
	}
	if g.Priority == 0 {
		g.Priority = 5
	}
	if g.Priority < 1 || g.Priority > 10 {
		return Invalid("priority", "must be between 1 and 10")
	}
	if g.ContributionFrequency == "" {
		g.ContributionFrequency = ContributeMonthly
	}
	if !g.ContributionFrequency.Valid() {
		return Invalid("contribution_frequency", "is not valid")
	}
	return nil
}

// ProgressPercentage is capped at 100.
func (g BudgetGoal) ProgressPercentage() float64 {
	p := money.Percent(g.CurrentAmount, g.TargetAmount)
	if p > 100 {
		return 100
	}
	return p
}

func (g BudgetGoal) RemainingAmount() decimal.Decimal {
	r := g.TargetAmount.Sub(g.CurrentAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// MonthsRemaining counts calendar months from today to the target date.
func (g BudgetGoal) MonthsRemaining(today time.Time) int {
	if !DateOnly(g.TargetDate).After(DateOnly(today)) {
		return 0
	}
	return (g.TargetDate.Year()-today.Year())*12 + int(g.TargetDate.Month()) - int(today.Month())
}

func (g BudgetGoal) RequiredMonthlyContribution(today time.Time) decimal.Decimal {
	months := g.MonthsRemaining(today)
	if months <= 0 {
		return decimal.Zero
	}
	return money.Round2(g.RemainingAmount().Div(decimal.NewFromInt(int64(months))))
}

// OnTrack reports whether the saved amount keeps pace with a linear plan
// from start to target date.
func (g BudgetGoal) OnTrack(today time.Time) bool {
	total := DateOnly(g.TargetDate).Sub(DateOnly(g.StartDate))
	if total <= 0 {
		return !g.CurrentAmount.LessThan(g.TargetAmount)
	}
	elapsed := DateOnly(today).Sub(DateOnly(g.StartDate))
	if elapsed < 0 {
		return true
	}
	if elapsed > total {
		elapsed = total
	}
	expected := g.TargetAmount.Mul(decimal.NewFromFloat(elapsed.Hours() / total.Hours()))
	return !g.CurrentAmount.LessThan(money.Round2(expected))
}

// AddContribution adds amount and completes the goal once the target is
// reached. It reports whether this call completed the goal.
func (g *BudgetGoal) AddContribution(amount decimal.Decimal, now time.Time) (bool, error) {
	if !money.AtLeastCent(amount) {
		return false, Invalid("amount", "must be at least 0.01")
	}
	if g.Status == GoalCompleted || g.Status == GoalCancelled {
		return false, Invalid("status", "goal is "+string(g.Status))
	}
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	if g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
		g.Status = GoalCompleted
		g.CompletionDate = &now
		return true, nil
	}
	return false, nil
}

// GoalView adds the derived metrics to a goal.
type GoalView struct {
	BudgetGoal
	ProgressPercentage          float64         `json:"progress_percentage"`
	RemainingAmount             decimal.Decimal `json:"remaining_amount"`
	MonthsRemaining             int             `json:"months_remaining"`
	RequiredMonthlyContribution decimal.Decimal `json:"required_monthly_contribution"`
}

func NewGoalView(g BudgetGoal, today time.Time) GoalView {
	return GoalView{
		BudgetGoal:                  g,
		ProgressPercentage:          g.ProgressPercentage(),
		RemainingAmount:             g.RemainingAmount(),
		MonthsRemaining:             g.MonthsRemaining(today),
		RequiredMonthlyContribution: g.RequiredMonthlyContribution(today),
	}
}

type GoalContribution struct {
	ID            int64           `json:"id"`
	GoalID        int64           `json:"goal_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	TransactionID *int64          `json:"transaction_id,omitempty"`
	ContributedAt time.Time       `json:"contributed_at"`
}
