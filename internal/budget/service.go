// Package budget implements budget periods, budgets with per category items,
// spending alerts, rollover, templates and savings goals.
package budget

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type Store interface {
	ListPeriods(ctx context.Context, activeOnly bool) ([]domain.BudgetPeriod, error)
	GetPeriod(ctx context.Context, id int64) (domain.BudgetPeriod, error)
	CreatePeriod(ctx context.Context, p *domain.BudgetPeriod) error
	// EnsurePeriod stores p unless a period with the same type and dates
	// exists, and fills in the id either way.
	EnsurePeriod(ctx context.Context, p *domain.BudgetPeriod) error

	ListBudgets(ctx context.Context, userID int64, status domain.BudgetStatus) ([]domain.Budget, error)
	// ListBudgetsOn returns the active budgets whose period contains day.
	ListBudgetsOn(ctx context.Context, userID int64, day time.Time) ([]domain.Budget, error)
	GetBudget(ctx context.Context, userID, id int64) (domain.Budget, error)
	CreateBudget(ctx context.Context, b *domain.Budget) error
	UpdateBudget(ctx context.Context, b *domain.Budget) error
	DeleteBudget(ctx context.Context, userID, id int64) error
	// SaveBudgetTotals stores the cached totals of a budget and its items.
	SaveBudgetTotals(ctx context.Context, b *domain.Budget) error
	MarkBudgetAlertSent(ctx context.Context, id int64, at time.Time) error
	// RolloverBudget creates next and completes prev in one transaction.
	RolloverBudget(ctx context.Context, prev, next *domain.Budget) error

	CreateBudgetItem(ctx context.Context, it *domain.BudgetItem) error
	UpdateBudgetItem(ctx context.Context, it *domain.BudgetItem) error
	DeleteBudgetItem(ctx context.Context, budgetID, itemID int64) error

	TransactionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.Transaction, error)
	SplitsFor(ctx context.Context, transactionIDs []int64) (map[int64][]domain.TransactionSplit, error)

	ListTemplates(ctx context.Context, userID int64) ([]domain.BudgetTemplate, error)
	GetTemplate(ctx context.Context, id int64) (domain.BudgetTemplate, error)
	CreateTemplate(ctx context.Context, t *domain.BudgetTemplate) error
	IncrementTemplateUse(ctx context.Context, id int64) error

	ListGoals(ctx context.Context, userID int64) ([]domain.BudgetGoal, error)
	GetGoal(ctx context.Context, userID, id int64) (domain.BudgetGoal, error)
	CreateGoal(ctx context.Context, g *domain.BudgetGoal) error
	UpdateGoal(ctx context.Context, g *domain.BudgetGoal) error
	DeleteGoal(ctx context.Context, userID, id int64) error
	// AddGoalContribution stores the updated goal and the contribution together.
	AddGoalContribution(ctx context.Context, g *domain.BudgetGoal, c *domain.GoalContribution) error
	ListGoalContributions(ctx context.Context, goalID int64) ([]domain.GoalContribution, error)

	ListCategories(ctx context.Context, userID int64) ([]domain.Category, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

type Notifier interface {
	Emit(ctx context.Context, n domain.Notification)
}

type Service struct {
	store    Store
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewService builds the budget service. notifier may be nil.
func NewService(store Store, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{store: store, notifier: notifier, log: log, now: time.Now}
}

func (s *Service) emit(ctx context.Context, n domain.Notification) {
	if s.notifier != nil {
		s.notifier.Emit(ctx, n)
	}
}

func (s *Service) defaultCurrency(ctx context.Context, userID int64) string {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil || u.PreferredCurrency == "" {
		return domain.DefaultCurrency
	}
	return u.PreferredCurrency
}

func (s *Service) Periods(ctx context.Context, activeOnly bool) ([]domain.BudgetPeriod, error) {
	return s.store.ListPeriods(ctx, activeOnly)
}

// CreatePeriod stores a period. Calendar types are snapped to their calendar
// bounds; custom periods keep the given dates.
func (s *Service) CreatePeriod(ctx context.Context, p domain.BudgetPeriod) (domain.BudgetPeriod, error) {
	if p.PeriodType != domain.PeriodCustom {
		return s.EnsurePeriod(ctx, p.PeriodType, p.StartDate)
	}
	p.ID = 0
	p.StartDate = domain.DateOnly(p.StartDate)
	p.EndDate = domain.DateOnly(p.EndDate)
	p.IsActive = true
	if err := p.Validate(); err != nil {
		return domain.BudgetPeriod{}, err
	}
	if err := s.store.CreatePeriod(ctx, &p); err != nil {
		return domain.BudgetPeriod{}, err
	}
	return p, nil
}

// EnsurePeriod returns the stored calendar period of type pt containing day,
// creating it when missing.
func (s *Service) EnsurePeriod(ctx context.Context, pt domain.PeriodType, day time.Time) (domain.BudgetPeriod, error) {
	if day.IsZero() {
		day = s.now()
	}
	p, err := domain.CalendarPeriod(pt, day)
	if err != nil {
		return domain.BudgetPeriod{}, err
	}
	if err := s.store.EnsurePeriod(ctx, &p); err != nil {
		return domain.BudgetPeriod{}, err
	}
	return p, nil
}

// CurrentPeriod is the calendar period of type pt containing today.
func (s *Service) CurrentPeriod(ctx context.Context, pt domain.PeriodType) (domain.BudgetPeriod, error) {
	return s.EnsurePeriod(ctx, pt, s.now())
}

func (s *Service) period(ctx context.Context, id int64) (domain.BudgetPeriod, error) {
	p, err := s.store.GetPeriod(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.BudgetPeriod{}, domain.Invalid("period_id", "does not exist")
	}
	return p, err
}
