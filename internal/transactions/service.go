// Package transactions owns categories, merchants and the transaction
// ledger of a user, including splits and CSV import/export.
package transactions

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/categorize"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type Store interface {
	ListCategories(ctx context.Context, userID int64) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error

	ListMerchants(ctx context.Context, userID int64) ([]domain.Merchant, error)
	GetMerchant(ctx context.Context, userID, id int64) (domain.Merchant, error)
	FindMerchantByName(ctx context.Context, userID int64, name string) (domain.Merchant, error)
	CreateMerchant(ctx context.Context, m *domain.Merchant) error
	UpdateMerchant(ctx context.Context, m *domain.Merchant) error
	RecordMerchantExpense(ctx context.Context, merchantID int64, amount decimal.Decimal, at time.Time) error

	ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error)
	GetTransaction(ctx context.Context, userID, id int64) (domain.Transaction, error)
	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id int64) error
	ListSplits(ctx context.Context, transactionID int64) ([]domain.TransactionSplit, error)
	ReplaceSplits(ctx context.Context, transactionID int64, splits []domain.TransactionSplit) error

	CreateTrainingSample(ctx context.Context, s *domain.TrainingSample) error
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetPreference(ctx context.Context, userID int64) (domain.UserPreference, error)
	GetAnalyticsConfig(ctx context.Context, userID int64) (domain.AnalyticsConfiguration, error)
}

type Categorizer interface {
	Suggest(ctx context.Context, in categorize.Input) (categorize.Suggestion, error)
}

// BudgetChecker re-evaluates the budgets a new expense may push over their
// alert threshold.
type BudgetChecker interface {
	CheckTransaction(ctx context.Context, t domain.Transaction) error
}

type Notifier interface {
	Emit(ctx context.Context, n domain.Notification)
}

type Service struct {
	store      Store
	categorize Categorizer
	budgets    BudgetChecker
	notifier   Notifier
	log        zerolog.Logger
	now        func() time.Time
}

// NewService wires the transaction service. budgets and notifier may be nil.
func NewService(store Store, categorizer Categorizer, budgets BudgetChecker, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{store: store, categorize: categorizer, budgets: budgets, notifier: notifier, log: log, now: time.Now}
}
