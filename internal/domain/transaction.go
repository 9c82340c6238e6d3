package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/money"
)

type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
	StatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

type Transaction struct {
	ID                int64               `json:"id"`
	UserID            int64               `json:"user_id"`
	Type              TransactionType     `json:"type"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          string              `json:"currency"`
	Description       string              `json:"description"`
	CategoryID        *int64              `json:"category_id,omitempty"`
	CategoryName      string              `json:"category_name,omitempty"`
	MerchantID        *int64              `json:"merchant_id,omitempty"`
	MerchantName      string              `json:"merchant_name,omitempty"`
	Tags              string              `json:"tags"`
	FromAccountID     *int64              `json:"from_account_id,omitempty"`
	ToAccountID       *int64              `json:"to_account_id,omitempty"`
	TransactionDate   time.Time           `json:"transaction_date"`
	ValueDate         *time.Time          `json:"value_date,omitempty"`
	Status            TransactionStatus   `json:"status"`
	BankTransactionID *int64              `json:"bank_transaction_id,omitempty"`
	IsManualEntry     bool                `json:"is_manual_entry"`
	IsRecurring       bool                `json:"is_recurring"`
	ConfidenceScore   *float64            `json:"confidence_score,omitempty"`
	IsAutoCategorized bool                `json:"is_auto_categorized"`
	NeedsReview       bool                `json:"needs_review"`
	Latitude          decimal.NullDecimal `json:"latitude"`
	Longitude         decimal.NullDecimal `json:"longitude"`
	LocationName      string              `json:"location_name"`
	ReferenceNumber   string              `json:"reference_number"`
	ReceiptPath       string              `json:"receipt_path"`
	Notes             string              `json:"notes"`
	SharedLedgerID    *string             `json:"shared_ledger_id,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Validate normalises tags and checks the amount, type and account rules.
func (t *Transaction) Validate() error {
	if !t.Type.Valid() {
		return Invalid("type", "must be income, expense or transfer")
	}
	if !money.AtLeastCent(t.Amount) {
		return Invalid("amount", "must be at least 0.01")
	}
	if !money.WholeCents(t.Amount) {
		return Invalid("amount", "must have at most 2 decimal places")
	}
	if !money.ValidCurrency(t.Currency) {
		return Invalid("currency", "must be a 3 letter code")
	}
	t.Description = strings.TrimSpace(t.Description)
	if t.Description == "" {
		return Invalid("description", "is required")
	}
	if t.Status == "" {
		t.Status = StatusCompleted
	}
	if !t.Status.Valid() {
		return Invalid("status", "is not valid")
	}
	if t.Type == TypeTransfer {
		if t.FromAccountID == nil || t.ToAccountID == nil {
			return Invalid("accounts", "transfer needs both from and to account")
		}
		if *t.FromAccountID == *t.ToAccountID {
			return Invalid("accounts", "transfer accounts must differ")
		}
	}
	if t.TransactionDate.IsZero() {
		t.TransactionDate = time.Now().UTC()
	}
	t.Tags = NormalizeTags(t.Tags)
	if len(t.Tags) > 500 {
		return Invalid("tags", "must be at most 500 characters")
	}
	return nil
}

type TransactionSplit struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	CategoryID    int64           `json:"category_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ValidateSplits checks every split is at least a cent and that they add up
// to the transaction amount.
func ValidateSplits(amount decimal.Decimal, splits []TransactionSplit) error {
	total := decimal.Zero
	for _, s := range splits {
		if !money.AtLeastCent(s.Amount) {
			return Invalid("splits", "amount must be at least 0.01")
		}
		if !money.WholeCents(s.Amount) {
			return Invalid("splits", "amount must have at most 2 decimal places")
		}
		total = total.Add(s.Amount)
	}
	if len(splits) > 0 && !total.Equal(amount) {
		return Invalid("splits", "must add up to the transaction amount")
	}
	return nil
}

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	UserID     int64
	CategoryID *int64
	Type       TransactionType
	Status     TransactionStatus
	AccountID  *int64
	Search     string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize applies paging defaults.
func (f *TransactionFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type TransactionPage struct {
	Items    []Transaction `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}
