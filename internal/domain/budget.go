package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/money"
)

type PeriodType string

const (
	PeriodWeekly     PeriodType = "weekly"
	PeriodMonthly    PeriodType = "monthly"
	PeriodQuarterly  PeriodType = "quarterly"
	PeriodSemiAnnual PeriodType = "semi_annual"
	PeriodAnnual     PeriodType = "annual"
	PeriodCustom     PeriodType = "custom"
)

func (p PeriodType) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodSemiAnnual, PeriodAnnual, PeriodCustom:
		return true
	}
	return false
}

type BudgetPeriod struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	PeriodType PeriodType `json:"period_type"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (p *BudgetPeriod) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return Invalid("name", "is required")
	}
	if !p.PeriodType.Valid() {
		return Invalid("period_type", "is not valid")
	}
	if p.EndDate.Before(p.StartDate) {
		return Invalid("end_date", "must not be before start_date")
	}
	return nil
}

// Contains reports whether day t falls inside the period, both ends included.
func (p BudgetPeriod) Contains(t time.Time) bool {
	d := DateOnly(t)
	return !d.Before(DateOnly(p.StartDate)) && !d.After(DateOnly(p.EndDate))
}

// Overlaps reports whether the period shares at least one day with [from, to).
func (p BudgetPeriod) Overlaps(from, to time.Time) bool {
	return DateOnly(p.StartDate).Before(to) && !DateOnly(p.EndDate).Before(DateOnly(from))
}

// CalendarPeriod returns the unsaved calendar period of the given type that
// contains day. Weeks start on Monday. Custom periods have no calendar form.
func CalendarPeriod(pt PeriodType, day time.Time) (BudgetPeriod, error) {
	d := DateOnly(day)
	y, m, _ := d.Date()
	var start, end time.Time
	var name string
	switch pt {
	case PeriodWeekly:
		offset := (int(d.Weekday()) + 6) % 7
		start = d.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 6)
		_, week := start.ISOWeek()
		name = fmt.Sprintf("Week %d %d", week, start.Year())
	case PeriodMonthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
		name = start.Format("January 2006")
	case PeriodQuarterly:
		q := (int(m) - 1) / 3
		start = time.Date(y, time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 3, -1)
		name = fmt.Sprintf("Q%d %d", q+1, y)
	case PeriodSemiAnnual:
		h := (int(m) - 1) / 6
		start = time.Date(y, time.Month(h*6+1), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 6, -1)
		name = fmt.Sprintf("H%d %d", h+1, y)
	case PeriodAnnual:
		start = time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC)
		name = fmt.Sprintf("%d", y)
	default:
		return BudgetPeriod{}, Invalid("period_type", "has no calendar form")
	}
	return BudgetPeriod{Name: name, PeriodType: pt, StartDate: start, EndDate: end, IsActive: true}, nil
}

type BudgetStatus string

const (
	BudgetActive    BudgetStatus = "active"
	BudgetPaused    BudgetStatus = "paused"
	BudgetCompleted BudgetStatus = "completed"
	BudgetDraft     BudgetStatus = "draft"
)

func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetActive, BudgetPaused, BudgetCompleted, BudgetDraft:
		return true
	}
	return false
}

type AlertType string

const (
	AlertNone  AlertType = "none"
	AlertEmail AlertType = "email"
	AlertSMS   AlertType = "sms"
	AlertBoth  AlertType = "both"
	AlertPush  AlertType = "push"
)

func (a AlertType) Valid() bool {
	switch a {
	case AlertNone, AlertEmail, AlertSMS, AlertBoth, AlertPush:
		return true
	}
	return false
}

const (
	DefaultAlertThreshold = 80
	DefaultRolloverLimit  = 10
)

type Budget struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	PeriodID       int64           `json:"period_id"`
	Period         *BudgetPeriod   `json:"period,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	Status         BudgetStatus    `json:"status"`
	IsShared       bool            `json:"is_shared"`
	AlertType      AlertType       `json:"alert_type"`
	AlertThreshold int             `json:"alert_threshold"`
	AllowRollover  bool            `json:"allow_rollover"`
	RolloverLimit  int             `json:"rollover_limit"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
	PercentageUsed float64         `json:"percentage_used"`
	LastCalculated *time.Time      `json:"last_calculated,omitempty"`
	AlertSentAt    *time.Time      `json:"alert_sent_at,omitempty"`
	Items          []BudgetItem    `json:"items,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (b *Budget) Validate() error {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" || len([]rune(b.Name)) > 200 {
		return Invalid("name", "must be 1-200 characters")
	}
	if !money.AtLeastCent(b.TotalAmount) {
		return Invalid("total_amount", "must be at least 0.01")
	}
	if !money.ValidCurrency(b.Currency) {
		return Invalid("currency", "must be a 3 letter code")
	}
	if b.Status == "" {
		b.Status = BudgetActive
	}
	if !b.Status.Valid() {
		return Invalid("status", "is not valid")
	}
	if b.AlertType == "" {
		b.AlertType = AlertPush
	}
	if !b.AlertType.Valid() {
		return Invalid("alert_type", "is not valid")
	}
	if b.AlertThreshold == 0 {
		b.AlertThreshold = DefaultAlertThreshold
	}
	if b.AlertThreshold < 1 || b.AlertThreshold > 100 {
		return Invalid("alert_threshold", "must be between 1 and 100")
	}
	if b.RolloverLimit < 0 || b.RolloverLimit > 100 {
		return Invalid("rollover_limit", "must be between 0 and 100")
	}
	return nil
}

// Recompute refreshes the cached totals from the items.
func (b *Budget) Recompute(now time.Time) {
	spent := decimal.Zero
	for i := range b.Items {
		b.Items[i].Recompute()
		spent = spent.Add(b.Items[i].SpentAmount)
	}
	b.TotalSpent = spent
	b.TotalRemaining = b.TotalAmount.Sub(spent)
	b.PercentageUsed = money.Percent(spent, b.TotalAmount)
	b.LastCalculated = &now
}

// RolloverAmount is the share of the unspent amount carried into the next
// period: RolloverLimit percent of it.
func (b Budget) RolloverAmount() decimal.Decimal {
	if !b.AllowRollover {
		return decimal.Zero
	}
	unspent := b.TotalAmount.Sub(b.TotalSpent)
	if !unspent.IsPositive() {
		return decimal.Zero
	}
	return money.Round2(unspent.Mul(decimal.NewFromInt(int64(b.RolloverLimit))).Div(decimal.NewFromInt(100)))
}

type BudgetItem struct {
	ID              int64           `json:"id"`
	BudgetID        int64           `json:"budget_id"`
	CategoryID      int64           `json:"category_id"`
	CategoryName    string          `json:"category_name,omitempty"`
	BudgetedAmount  decimal.Decimal `json:"budgeted_amount"`
	SpentAmount     decimal.Decimal `json:"spent_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PercentageUsed  float64         `json:"percentage_used"`
	IsFlexible      bool            `json:"is_flexible"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (i *BudgetItem) Validate() error {
	if i.CategoryID == 0 {
		return Invalid("category_id", "is required")
	}
	if !money.AtLeastCent(i.BudgetedAmount) {
		return Invalid("budgeted_amount", "must be at least 0.01")
	}
	return nil
}

func (i *BudgetItem) Recompute() {
	i.RemainingAmount = i.BudgetedAmount.Sub(i.SpentAmount)
	i.PercentageUsed = money.Percent(i.SpentAmount, i.BudgetedAmount)
}

func (i BudgetItem) IsOverBudget() bool {
	return i.SpentAmount.GreaterThan(i.BudgetedAmount)
}

// Variance is budgeted minus spent; negative when over budget.
func (i BudgetItem) Variance() decimal.Decimal {
	return i.BudgetedAmount.Sub(i.SpentAmount)
}

type BudgetTemplate struct {
	ID              int64                `json:"id"`
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	CreatedBy       *int64               `json:"created_by,omitempty"`
	IsPublic        bool                 `json:"is_public"`
	IsSystemDefault bool                 `json:"is_system_default"`
	TimesUsed       int                  `json:"times_used"`
	Items           []BudgetTemplateItem `json:"items"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type BudgetTemplateItem struct {
	ID         int64           `json:"id"`
	TemplateID int64           `json:"template_id"`
	CategoryID int64           `json:"category_id"`
	Percentage decimal.Decimal `json:"percentage"`
	Notes      string          `json:"notes"`
}

var minTemplatePercent = decimal.New(1, -1)

func (t *BudgetTemplate) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return Invalid("name", "is required")
	}
	total := decimal.Zero
	seen := map[int64]bool{}
	hundred := decimal.NewFromInt(100)
	for _, it := range t.Items {
		if it.Percentage.LessThan(minTemplatePercent) || it.Percentage.GreaterThan(hundred) {
			return Invalid("percentage", "must be between 0.1 and 100")
		}
		if seen[it.CategoryID] {
			return Invalid("items", "category listed twice")
		}
		seen[it.CategoryID] = true
		total = total.Add(it.Percentage)
	}
	if total.GreaterThan(hundred) {
		return Invalid("items", "percentages must not exceed 100")
	}
	return nil
}

// VisibleTo reports whether the user may apply the template.
func (t BudgetTemplate) VisibleTo(userID int64) bool {
	return t.IsPublic || t.IsSystemDefault || (t.CreatedBy != nil && *t.CreatedBy == userID)
}

// Allocate turns the template percentages into budget items for total.
func (t BudgetTemplate) Allocate(total decimal.Decimal) []BudgetItem {
	items := make([]BudgetItem, 0, len(t.Items))
	for _, it := range t.Items {
		amount := money.Round2(it.Percentage.Div(decimal.NewFromInt(100)).Mul(total))
		items = append(items, BudgetItem{CategoryID: it.CategoryID, BudgetedAmount: amount, Notes: it.Notes})
	}
	return items
}
