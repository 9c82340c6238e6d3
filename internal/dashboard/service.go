// Package dashboard builds the widget grid and the financial overview shown
// on a user's home screen.
package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type Store interface {
	GetLayout(ctx context.Context, userID int64) (domain.DashboardLayout, error)
	// CreateLayout stores the layout and its starting widgets together.
	CreateLayout(ctx context.Context, l *domain.DashboardLayout, widgets []domain.DashboardWidget) error
	UpdateLayout(ctx context.Context, l *domain.DashboardLayout) error

	ListWidgets(ctx context.Context, userID int64) ([]domain.DashboardWidget, error)
	GetWidget(ctx context.Context, userID, id int64) (domain.DashboardWidget, error)
	CreateWidget(ctx context.Context, w *domain.DashboardWidget) error
	UpdateWidget(ctx context.Context, w *domain.DashboardWidget) error
	SaveWidgetData(ctx context.Context, id int64, data map[string]any, at time.Time) error

	ListAccounts(ctx context.Context, userID int64) ([]domain.BankAccount, error)
	ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error)
	// TransactionsBetween returns transactions dated in [from, to).
	TransactionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.Transaction, error)
	ListCategories(ctx context.Context, userID int64) ([]domain.Category, error)
	ListGoals(ctx context.Context, userID int64) ([]domain.BudgetGoal, error)
	ListNotifications(ctx context.Context, f domain.NotificationFilter) ([]domain.Notification, error)
}

// Budgets yields the budgets running on a day with up to date totals.
type Budgets interface {
	ActiveOn(ctx context.Context, userID int64, day time.Time) ([]domain.Budget, error)
}

type Service struct {
	store   Store
	budgets Budgets
	log     zerolog.Logger
	now     func() time.Time
}

// NewService builds the dashboard. budgets may be nil, leaving the budget
// widget empty.
func NewService(store Store, budgets Budgets, log zerolog.Logger) *Service {
	return &Service{store: store, budgets: budgets, log: log, now: time.Now}
}

// Layout returns the user's layout, creating it with the default widgets on
// first access.
func (s *Service) Layout(ctx context.Context, userID int64) (domain.DashboardLayout, error) {
	l, err := s.store.GetLayout(ctx, userID)
	if !errors.Is(err, domain.ErrNotFound) {
		return l, err
	}
	l = domain.DefaultLayout(userID)
	err = s.store.CreateLayout(ctx, &l, domain.DefaultWidgets(userID))
	if errors.Is(err, domain.ErrConflict) {
		return s.store.GetLayout(ctx, userID)
	}
	return l, err
}

func (s *Service) SaveLayout(ctx context.Context, userID int64, in domain.DashboardLayout) (domain.DashboardLayout, error) {
	l, err := s.Layout(ctx, userID)
	if err != nil {
		return domain.DashboardLayout{}, err
	}
	l.GridColumns = in.GridColumns
	l.GridMargin = in.GridMargin
	l.Theme = in.Theme
	l.SidebarCollapsed = in.SidebarCollapsed
	l.ShowHelpTips = in.ShowHelpTips
	l.LayoutConfig = in.LayoutConfig
	if err := l.Validate(); err != nil {
		return domain.DashboardLayout{}, err
	}
	if err := s.store.UpdateLayout(ctx, &l); err != nil {
		return domain.DashboardLayout{}, err
	}
	return l, nil
}

func (s *Service) Widgets(ctx context.Context, userID int64) ([]domain.DashboardWidget, error) {
	if _, err := s.Layout(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListWidgets(ctx, userID)
}

func (s *Service) AddWidget(ctx context.Context, userID int64, w domain.DashboardWidget) (domain.DashboardWidget, error) {
	if _, err := s.Layout(ctx, userID); err != nil {
		return domain.DashboardWidget{}, err
	}
	w.ID = 0
	w.UserID = userID
	w.CachedData, w.LastUpdated = nil, nil
	if err := w.Validate(); err != nil {
		return domain.DashboardWidget{}, err
	}
	if err := s.store.CreateWidget(ctx, &w); err != nil {
		return domain.DashboardWidget{}, err
	}
	return w, nil
}

func (s *Service) Widget(ctx context.Context, userID, id int64) (domain.DashboardWidget, error) {
	return s.store.GetWidget(ctx, userID, id)
}

func (s *Service) UpdateWidget(ctx context.Context, userID, id int64, in domain.DashboardWidget) (domain.DashboardWidget, error) {
	w, err := s.store.GetWidget(ctx, userID, id)
	if err != nil {
		return domain.DashboardWidget{}, err
	}
	w.Title = in.Title
	if in.Size != "" {
		w.Size = in.Size
	}
	w.PositionX, w.PositionY = in.PositionX, in.PositionY
	w.Configuration = in.Configuration
	w.IsVisible = in.IsVisible
	if in.RefreshInterval > 0 {
		w.RefreshInterval = in.RefreshInterval
	}
	if err := w.Validate(); err != nil {
		return domain.DashboardWidget{}, err
	}
	if err := s.store.UpdateWidget(ctx, &w); err != nil {
		return domain.DashboardWidget{}, err
	}
	return w, nil
}

// Refresh recomputes a widget's data unless the cache is still fresh and
// force is false.
func (s *Service) Refresh(ctx context.Context, userID, id int64, force bool) (domain.DashboardWidget, error) {
	w, err := s.store.GetWidget(ctx, userID, id)
	if err != nil {
		return domain.DashboardWidget{}, err
	}
	if err := s.refresh(ctx, &w, force); err != nil {
		return domain.DashboardWidget{}, err
	}
	return w, nil
}

func (s *Service) refresh(ctx context.Context, w *domain.DashboardWidget, force bool) error {
	now := s.now()
	if !force && w.Fresh(now) {
		return nil
	}
	data, err := s.compute(ctx, w.UserID, w.WidgetType, now)
	if err != nil {
		return err
	}
	if err := s.store.SaveWidgetData(ctx, w.ID, data, now); err != nil {
		return err
	}
	w.CachedData, w.LastUpdated = data, &now
	return nil
}

// Overview is the home screen payload.
type Overview struct {
	Layout        domain.DashboardLayout   `json:"layout"`
	Widgets       []domain.DashboardWidget `json:"widgets"`
	Notifications []domain.Notification    `json:"recent_notifications"`
	MonthIncome   decimal.Decimal          `json:"monthly_income"`
	MonthExpenses decimal.Decimal          `json:"monthly_expenses"`
	MonthNet      decimal.Decimal          `json:"monthly_net"`
	TotalBalance  decimal.Decimal          `json:"total_balance"`
}

// Overview refreshes the stale visible widgets and gathers the month's
// figures. A widget that fails to refresh keeps its old data.
func (s *Service) Overview(ctx context.Context, userID int64) (Overview, error) {
	layout, err := s.Layout(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	widgets, err := s.store.ListWidgets(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	visible := widgets[:0]
	for _, w := range widgets {
		if !w.IsVisible {
			continue
		}
		if err := s.refresh(ctx, &w, false); err != nil {
			s.log.Warn().Err(err).Int64("widget_id", w.ID).Str("widget_type", string(w.WidgetType)).Msg("refresh widget")
		}
		visible = append(visible, w)
	}

	notes, err := s.store.ListNotifications(ctx, domain.NotificationFilter{UserID: userID, Undismissed: true, Limit: 5})
	if err != nil {
		return Overview{}, err
	}

	now := s.now()
	from, _ := monthBounds(now)
	txs, err := s.store.TransactionsBetween(ctx, userID, from, tomorrow(now))
	if err != nil {
		return Overview{}, err
	}
	t := totalsOf(txs)

	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	balance := decimal.Zero
	for _, a := range accounts {
		if a.Status == domain.AccountActive {
			balance = balance.Add(a.CurrentBalance)
		}
	}

	return Overview{
		Layout:        layout,
		Widgets:       visible,
		Notifications: notes,
		MonthIncome:   t.Income,
		MonthExpenses: t.Expenses,
		MonthNet:      t.Income.Sub(t.Expenses),
		TotalBalance:  balance,
	}, nil
}
