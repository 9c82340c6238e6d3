package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Merchant struct {
	ID                   int64           `json:"id"`
	UserID               int64           `json:"user_id"`
	Name                 string          `json:"name"`
	CategoryID           *int64          `json:"category_id,omitempty"`
	Email                string          `json:"email"`
	Phone                string          `json:"phone"`
	Website              string          `json:"website"`
	AddressLine1         string          `json:"address_line1"`
	AddressLine2         string          `json:"address_line2"`
	City                 string          `json:"city"`
	State                string          `json:"state"`
	PostalCode           string          `json:"postal_code"`
	Country              string          `json:"country"`
	MerchantCategoryCode string          `json:"merchant_category_code"`
	BusinessType         string          `json:"business_type"`
	TotalTransactions    int             `json:"total_transactions"`
	TotalAmountSpent     decimal.Decimal `json:"total_amount_spent"`
	FirstTransactionDate *time.Time      `json:"first_transaction_date,omitempty"`
	LastTransactionDate  *time.Time      `json:"last_transaction_date,omitempty"`
	IsFavorite           bool            `json:"is_favorite"`
	Notes                string          `json:"notes"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (m *Merchant) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" || len([]rune(m.Name)) > 200 {
		return Invalid("name", "must be 1-200 characters")
	}
	if m.Email != "" {
		if _, err := mail.ParseAddress(m.Email); err != nil {
			return Invalid("email", "is not a valid address")
		}
	}
	if len(m.MerchantCategoryCode) > 10 {
		return Invalid("merchant_category_code", "must be at most 10 characters")
	}
	return nil
}

// RecordExpense updates the spending statistics with one expense.
func (m *Merchant) RecordExpense(amount decimal.Decimal, at time.Time) {
	m.TotalTransactions++
	m.TotalAmountSpent = m.TotalAmountSpent.Add(amount)
	if m.FirstTransactionDate == nil {
		first := at
		m.FirstTransactionDate = &first
	}
	last := at
	m.LastTransactionDate = &last
}
