package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/money"
)

type BankCode string

const (
	BankNSB        BankCode = "NSB"
	BankPeoples    BankCode = "PEOPLES"
	BankSampath    BankCode = "SAMPATH"
	BankCommercial BankCode = "COMMERCIAL"
	BankBOC        BankCode = "BOC"
	BankHNB        BankCode = "HNB"
	BankDFCC       BankCode = "DFCC"
	BankNDB        BankCode = "NDB"
	BankSeylan     BankCode = "SEYLAN"
	BankUnion      BankCode = "UNION"
	BankOther      BankCode = "OTHER"
)

func (c BankCode) Valid() bool {
	switch c {
	case BankNSB, BankPeoples, BankSampath, BankCommercial, BankBOC, BankHNB,
		BankDFCC, BankNDB, BankSeylan, BankUnion, BankOther:
		return true
	}
	return false
}

type Bank struct {
	ID                     int64     `json:"id"`
	Name                   string    `json:"name"`
	Code                   BankCode  `json:"code"`
	APIEndpoint            string    `json:"api_endpoint"`
	IsActive               bool      `json:"is_active"`
	SupportsAPIIntegration bool      `json:"supports_api_integration"`
	APIVersion             string    `json:"api_version"`
	APIDocumentationURL    string    `json:"api_documentation_url"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type AccountType string

const (
	AccountSavings    AccountType = "savings"
	AccountCurrent    AccountType = "current"
	AccountFixed      AccountType = "fixed"
	AccountCredit     AccountType = "credit"
	AccountLoan       AccountType = "loan"
	AccountInvestment AccountType = "investment"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountSavings, AccountCurrent, AccountFixed, AccountCredit, AccountLoan, AccountInvestment:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountInactive  AccountStatus = "inactive"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountActive, AccountInactive, AccountSuspended, AccountClosed:
		return true
	}
	return false
}

const DefaultSyncFrequency = 300

type BankAccount struct {
	ID                   int64           `json:"id"`
	UserID               int64           `json:"user_id"`
	BankID               int64           `json:"bank_id"`
	BankName             string          `json:"bank_name,omitempty"`
	BankCode             BankCode        `json:"bank_code,omitempty"`
	AccountNumber        string          `json:"account_number"`
	AccountName          string          `json:"account_name"`
	AccountType          AccountType     `json:"account_type"`
	Currency             string          `json:"currency"`
	CurrentBalance       decimal.Decimal `json:"current_balance"`
	AvailableBalance     decimal.Decimal `json:"available_balance"`
	LastUpdated          time.Time       `json:"last_updated"`
	IsAPIConnected       bool            `json:"is_api_connected"`
	EncryptedCredentials string          `json:"-"`
	LastSyncAt           *time.Time      `json:"last_sync_at,omitempty"`
	SyncFrequency        int             `json:"sync_frequency"`
	Status               AccountStatus   `json:"status"`
	IsPrimary            bool            `json:"is_primary"`
	IsHidden             bool            `json:"is_hidden"`
	BranchCode           string          `json:"branch_code"`
	SwiftCode            string          `json:"swift_code"`
	IBAN                 string          `json:"iban"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (a *BankAccount) Validate() error {
	a.AccountNumber = strings.TrimSpace(a.AccountNumber)
	if a.AccountNumber == "" || len(a.AccountNumber) > 50 {
		return Invalid("account_number", "must be 1-50 characters")
	}
	if strings.TrimSpace(a.AccountName) == "" {
		return Invalid("account_name", "is required")
	}
	if !a.AccountType.Valid() {
		return Invalid("account_type", "is not valid")
	}
	if !money.ValidCurrency(a.Currency) {
		return Invalid("currency", "must be a 3 letter code")
	}
	if a.Status == "" {
		a.Status = AccountActive
	}
	if !a.Status.Valid() {
		return Invalid("status", "is not valid")
	}
	if a.SyncFrequency <= 0 {
		a.SyncFrequency = DefaultSyncFrequency
	}
	return nil
}

// MaskedNumber keeps only the last four digits.
func MaskedNumber(number string) string {
	if len(number) <= 4 {
		return strings.Repeat("*", 4-len(number)) + number
	}
	return "****" + number[len(number)-4:]
}

// Display renders "<bank> - ****1234".
func (a BankAccount) Display() string {
	return a.BankName + " - " + MaskedNumber(a.AccountNumber)
}

// SyncDue reports whether the account should be synced at now.
func (a BankAccount) SyncDue(now time.Time) bool {
	if !a.IsAPIConnected || a.Status != AccountActive {
		return false
	}
	if a.LastSyncAt == nil {
		return true
	}
	return now.Sub(*a.LastSyncAt) >= time.Duration(a.SyncFrequency)*time.Second
}

type BankTransactionType string

const (
	BankDebit  BankTransactionType = "debit"
	BankCredit BankTransactionType = "credit"
)

// BankTransaction is a raw record received from a bank API.
type BankTransaction struct {
	ID               int64               `json:"id"`
	AccountID        int64               `json:"account_id"`
	TransactionID    string              `json:"transaction_id"`
	ReferenceNumber  string              `json:"reference_number"`
	TransactionType  BankTransactionType `json:"transaction_type"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency"`
	Description      string              `json:"description"`
	TransactionDate  time.Time           `json:"transaction_date"`
	ValueDate        time.Time           `json:"value_date"`
	BalanceAfter     decimal.NullDecimal `json:"balance_after"`
	MerchantName     string              `json:"merchant_name"`
	MerchantCategory string              `json:"merchant_category"`
	Location         string              `json:"location"`
	IsProcessed      bool                `json:"is_processed"`
	ProcessedAt      *time.Time          `json:"processed_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type APICallStatus string

const (
	APISuccess     APICallStatus = "success"
	APIError       APICallStatus = "error"
	APITimeout     APICallStatus = "timeout"
	APIRateLimited APICallStatus = "rate_limited"
)

// APILog records one call to a bank API.
type APILog struct {
	BankCode     BankCode       `json:"bank_code" bson:"bank_code"`
	UserID       int64          `json:"user_id" bson:"user_id"`
	Endpoint     string         `json:"endpoint" bson:"endpoint"`
	Method       string         `json:"method" bson:"method"`
	StatusCode   int            `json:"status_code" bson:"status_code"`
	Status       APICallStatus  `json:"status" bson:"status"`
	RequestData  map[string]any `json:"request_data,omitempty" bson:"request_data,omitempty"`
	ResponseData map[string]any `json:"response_data,omitempty" bson:"response_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty" bson:"error_message,omitempty"`
	ResponseTime float64        `json:"response_time" bson:"response_time"`
	Timestamp    time.Time      `json:"timestamp" bson:"timestamp"`
}

// SyncStatus summarises the sync state of one account.
type SyncStatus struct {
	AccountID      int64      `json:"account_id"`
	Display        string     `json:"display"`
	IsAPIConnected bool       `json:"is_api_connected"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	SyncDue        bool       `json:"sync_due"`
}

// SyncResult reports the outcome of syncing one account.
type SyncResult struct {
	AccountID int64  `json:"account_id"`
	Fetched   int    `json:"fetched"`
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
	Error     string `json:"error,omitempty"`
}
