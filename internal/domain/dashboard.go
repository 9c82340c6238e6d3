package domain

import (
	"strings"
	"time"
)

type WidgetType string

const (
	WidgetAccountBalance     WidgetType = "account_balance"
	WidgetMonthlySummary     WidgetType = "monthly_summary"
	WidgetSpendingByCategory WidgetType = "spending_by_category"
	WidgetIncomeVsExpenses   WidgetType = "income_vs_expenses"
	WidgetBudgetStatus       WidgetType = "budget_status"
	WidgetRecentTransactions WidgetType = "recent_transactions"
	WidgetFinancialGoals     WidgetType = "financial_goals"
	WidgetCashFlow           WidgetType = "cash_flow"
	WidgetSpendingTrends     WidgetType = "spending_trends"
	WidgetAlerts             WidgetType = "alerts"
)

func (w WidgetType) Valid() bool {
	switch w {
	case WidgetAccountBalance, WidgetMonthlySummary, WidgetSpendingByCategory, WidgetIncomeVsExpenses,
		WidgetBudgetStatus, WidgetRecentTransactions, WidgetFinancialGoals, WidgetCashFlow,
		WidgetSpendingTrends, WidgetAlerts:
		return true
	}
	return false
}

type WidgetSize string

const (
	SizeSmall      WidgetSize = "small"
	SizeMedium     WidgetSize = "medium"
	SizeLarge      WidgetSize = "large"
	SizeWide       WidgetSize = "wide"
	SizeExtraLarge WidgetSize = "extra_large"
)

func (s WidgetSize) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge, SizeWide, SizeExtraLarge:
		return true
	}
	return false
}

const DefaultRefreshInterval = 300

type DashboardWidget struct {
	ID              int64          `json:"id"`
	UserID          int64          `json:"user_id"`
	WidgetType      WidgetType     `json:"widget_type"`
	Title           string         `json:"title"`
	Size            WidgetSize     `json:"size"`
	PositionX       int            `json:"position_x"`
	PositionY       int            `json:"position_y"`
	Configuration   map[string]any `json:"configuration,omitempty"`
	IsVisible       bool           `json:"is_visible"`
	RefreshInterval int            `json:"refresh_interval"`
	CachedData      map[string]any `json:"cached_data,omitempty"`
	LastUpdated     *time.Time     `json:"last_updated,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (w *DashboardWidget) Validate() error {
	if !w.WidgetType.Valid() {
		return Invalid("widget_type", "is not valid")
	}
	if strings.TrimSpace(w.Title) == "" {
		return Invalid("title", "is required")
	}
	if w.Size == "" {
		w.Size = SizeMedium
	}
	if !w.Size.Valid() {
		return Invalid("size", "is not valid")
	}
	if w.PositionX < 0 || w.PositionY < 0 {
		return Invalid("position", "must not be negative")
	}
	if w.RefreshInterval <= 0 {
		w.RefreshInterval = DefaultRefreshInterval
	}
	return nil
}

// Fresh reports whether the cached data is still within the refresh interval.
func (w DashboardWidget) Fresh(now time.Time) bool {
	if w.LastUpdated == nil || w.CachedData == nil {
		return false
	}
	return now.Sub(*w.LastUpdated) < time.Duration(w.RefreshInterval)*time.Second
}

// DefaultWidgets is the set every new layout starts with.
func DefaultWidgets(userID int64) []DashboardWidget {
	mk := func(t WidgetType, title string, size WidgetSize, x, y int) DashboardWidget {
		return DashboardWidget{UserID: userID, WidgetType: t, Title: title, Size: size,
			PositionX: x, PositionY: y, IsVisible: true, RefreshInterval: DefaultRefreshInterval}
	}
	return []DashboardWidget{
		mk(WidgetAccountBalance, "Account Balances", SizeLarge, 0, 0),
		mk(WidgetMonthlySummary, "Monthly Summary", SizeMedium, 2, 0),
		mk(WidgetSpendingByCategory, "Spending by Category", SizeMedium, 0, 2),
		mk(WidgetRecentTransactions, "Recent Transactions", SizeWide, 2, 2),
	}
}

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
	ThemeAuto  Theme = "auto"
)

type DashboardLayout struct {
	ID               int64          `json:"id"`
	UserID           int64          `json:"user_id"`
	GridColumns      int            `json:"grid_columns"`
	GridMargin       int            `json:"grid_margin"`
	Theme            Theme          `json:"theme"`
	SidebarCollapsed bool           `json:"sidebar_collapsed"`
	ShowHelpTips     bool           `json:"show_help_tips"`
	LayoutConfig     map[string]any `json:"layout_config,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func DefaultLayout(userID int64) DashboardLayout {
	return DashboardLayout{UserID: userID, GridColumns: 12, GridMargin: 10, Theme: ThemeLight, ShowHelpTips: true}
}

func (l *DashboardLayout) Validate() error {
	if l.GridColumns < 1 || l.GridColumns > 24 {
		return Invalid("grid_columns", "must be between 1 and 24")
	}
	if l.GridMargin < 0 {
		return Invalid("grid_margin", "must not be negative")
	}
	switch l.Theme {
	case ThemeDark, ThemeLight, ThemeAuto:
	default:
		return Invalid("theme", "must be dark, light or auto")
	}
	return nil
}

type UserPreference struct {
	UserID                     int64           `json:"user_id"`
	CurrencyDisplay            string          `json:"currency_display"`
	DateFormat                 string          `json:"date_format"`
	NumberFormat               string          `json:"number_format"`
	DefaultTransactionType     TransactionType `json:"default_transaction_type"`
	AutoCategorizeTransactions bool            `json:"auto_categorize_transactions"`
	RequireReceiptUpload       bool            `json:"require_receipt_upload"`
	EmailNotifications         bool            `json:"email_notifications"`
	PushNotifications          bool            `json:"push_notifications"`
	SMSNotifications           bool            `json:"sms_notifications"`
	DefaultBudgetPeriod        PeriodType      `json:"default_budget_period"`
	BudgetAlertPercentage      int             `json:"budget_alert_percentage"`
	ShareAnalytics             bool            `json:"share_analytics"`
	AllowDataExport            bool            `json:"allow_data_export"`
	Language                   string          `json:"language"`
	Timezone                   string          `json:"timezone"`
	UpdatedAt                  time.Time       `json:"updated_at"`
}

func DefaultPreference(userID int64, timezone string) UserPreference {
	return UserPreference{
		UserID:                     userID,
		CurrencyDisplay:            "symbol",
		DateFormat:                 "DD/MM/YYYY",
		NumberFormat:               "1,234.56",
		DefaultTransactionType:     TypeExpense,
		AutoCategorizeTransactions: true,
		EmailNotifications:         true,
		PushNotifications:          true,
		DefaultBudgetPeriod:        PeriodMonthly,
		BudgetAlertPercentage:      DefaultAlertThreshold,
		AllowDataExport:            true,
		Language:                   "en",
		Timezone:                   timezone,
	}
}

func (p *UserPreference) Validate() error {
	switch p.CurrencyDisplay {
	case "symbol", "code", "both":
	default:
		return Invalid("currency_display", "must be symbol, code or both")
	}
	switch p.DateFormat {
	case "DD/MM/YYYY", "MM/DD/YYYY", "YYYY-MM-DD":
	default:
		return Invalid("date_format", "is not supported")
	}
	if !p.DefaultTransactionType.Valid() {
		return Invalid("default_transaction_type", "is not valid")
	}
	if !p.DefaultBudgetPeriod.Valid() {
		return Invalid("default_budget_period", "is not valid")
	}
	if p.BudgetAlertPercentage < 1 || p.BudgetAlertPercentage > 100 {
		return Invalid("budget_alert_percentage", "must be between 1 and 100")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return Invalid("timezone", "is unknown")
	}
	return nil
}
