package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/money"
)

type Frequency string

const (
	FrequencyDaily      Frequency = "daily"
	FrequencyWeekly     Frequency = "weekly"
	FrequencyBiWeekly   Frequency = "bi_weekly"
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencySemiAnnual Frequency = "semi_annual"
	FrequencyAnnual     Frequency = "annual"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencySemiAnnual, FrequencyAnnual:
		return true
	}
	return false
}

// RecurringTransaction is a template materialised into transactions on a
// schedule.
type RecurringTransaction struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Name            string          `json:"name"`
	Type            TransactionType `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	CategoryID      *int64          `json:"category_id,omitempty"`
	MerchantID      *int64          `json:"merchant_id,omitempty"`
	Tags            string          `json:"tags"`
	FromAccountID   *int64          `json:"from_account_id,omitempty"`
	ToAccountID     *int64          `json:"to_account_id,omitempty"`
	Frequency       Frequency       `json:"frequency"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	NextDueDate     time.Time       `json:"next_due_date"`
	IsActive        bool            `json:"is_active"`
	AutoCreate      bool            `json:"auto_create"`
	TotalCreated    int             `json:"total_created"`
	LastCreatedDate *time.Time      `json:"last_created_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (r *RecurringTransaction) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || len([]rune(r.Name)) > 200 {
		return Invalid("name", "must be 1-200 characters")
	}
	if !r.Type.Valid() {
		return Invalid("type", "must be income, expense or transfer")
	}
	if !money.AtLeastCent(r.Amount) {
		return Invalid("amount", "must be at least 0.01")
	}
	if !money.ValidCurrency(r.Currency) {
		return Invalid("currency", "must be a 3 letter code")
	}
	if strings.TrimSpace(r.Description) == "" {
		return Invalid("description", "is required")
	}
	if !r.Frequency.Valid() {
		return Invalid("frequency", "is not valid")
	}
	if r.StartDate.IsZero() {
		return Invalid("start_date", "is required")
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return Invalid("end_date", "must not be before start_date")
	}
	if r.NextDueDate.IsZero() {
		r.NextDueDate = r.StartDate
	}
	r.Tags = NormalizeTags(r.Tags)
	return nil
}

// Due reports whether an occurrence is due on day today.
func (r RecurringTransaction) Due(today time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.EndDate != nil && DateOnly(r.NextDueDate).After(DateOnly(*r.EndDate)) {
		return false
	}
	return !DateOnly(r.NextDueDate).After(DateOnly(today))
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
