// Package bank manages bank accounts, their API credentials and the sync of
// bank activity into transactions.
package bank

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/audit"
	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// DefaultWorkers bounds concurrent account syncs.
const DefaultWorkers = 3

type Store interface {
	ListBanks(ctx context.Context) ([]domain.Bank, error)
	GetBank(ctx context.Context, id int64) (domain.Bank, error)
	GetBankByCode(ctx context.Context, code domain.BankCode) (domain.Bank, error)

	ListAccounts(ctx context.Context, userID int64) ([]domain.BankAccount, error)
	GetAccount(ctx context.Context, userID, id int64) (domain.BankAccount, error)
	CreateAccount(ctx context.Context, a *domain.BankAccount) error
	UpdateAccount(ctx context.Context, a *domain.BankAccount) error
	DeleteAccount(ctx context.Context, userID, id int64) error
	// SetPrimaryAccount marks one account primary and unsets the others.
	SetPrimaryAccount(ctx context.Context, userID, id int64) error
	// ListConnectedAccounts returns active API connected accounts of all users.
	ListConnectedAccounts(ctx context.Context) ([]domain.BankAccount, error)

	// InsertBankTransaction stores a raw record unless the account already has
	// one with the same bank transaction id. It reports whether a row was added.
	InsertBankTransaction(ctx context.Context, bt *domain.BankTransaction) (bool, error)
	MarkBankTransactionProcessed(ctx context.Context, id int64, at time.Time) error
	ListBankTransactions(ctx context.Context, accountID int64, limit int) ([]domain.BankTransaction, error)
}

type TransactionCreator interface {
	Create(ctx context.Context, userID int64, t domain.Transaction) (domain.Transaction, error)
}

type Service struct {
	store   Store
	vault   *Vault
	client  Client
	sink    audit.Sink
	txs     TransactionCreator
	log     zerolog.Logger
	workers int
	now     func() time.Time
}

func NewService(store Store, vault *Vault, client Client, sink audit.Sink, txs TransactionCreator, workers int, log zerolog.Logger) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{store: store, vault: vault, client: client, sink: sink, txs: txs, workers: workers, log: log, now: time.Now}
}

func (s *Service) Banks(ctx context.Context) ([]domain.Bank, error) {
	return s.store.ListBanks(ctx)
}

func (s *Service) Accounts(ctx context.Context, userID int64) ([]domain.BankAccount, error) {
	return s.store.ListAccounts(ctx, userID)
}

func (s *Service) Account(ctx context.Context, userID, id int64) (domain.BankAccount, error) {
	return s.store.GetAccount(ctx, userID, id)
}

// CreateAccount adds a manually tracked account. The bank may be given by id
// or code.
func (s *Service) CreateAccount(ctx context.Context, userID int64, a domain.BankAccount) (domain.BankAccount, error) {
	b, err := s.resolveBank(ctx, a)
	if err != nil {
		return domain.BankAccount{}, err
	}
	a.ID = 0
	a.UserID = userID
	a.BankID, a.BankName, a.BankCode = b.ID, b.Name, b.Code
	a.Currency = strings.ToUpper(a.Currency)
	a.IsAPIConnected = false
	a.EncryptedCredentials = ""
	a.LastSyncAt = nil
	a.LastUpdated = s.now()
	if err := a.Validate(); err != nil {
		return domain.BankAccount{}, err
	}
	primary := a.IsPrimary
	a.IsPrimary = false
	if err := s.store.CreateAccount(ctx, &a); err != nil {
		return domain.BankAccount{}, err
	}
	if primary {
		if err := s.store.SetPrimaryAccount(ctx, userID, a.ID); err != nil {
			return domain.BankAccount{}, err
		}
		a.IsPrimary = true
	}
	return a, nil
}

func (s *Service) resolveBank(ctx context.Context, a domain.BankAccount) (domain.Bank, error) {
	var (
		b   domain.Bank
		err error
	)
	switch {
	case a.BankID != 0:
		b, err = s.store.GetBank(ctx, a.BankID)
	case a.BankCode != "":
		if !a.BankCode.Valid() {
			return domain.Bank{}, domain.Invalid("bank_code", "is not a known bank")
		}
		b, err = s.store.GetBankByCode(ctx, a.BankCode)
	default:
		return domain.Bank{}, domain.Invalid("bank", "is required")
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Bank{}, domain.Invalid("bank", "does not exist")
	}
	if err != nil {
		return domain.Bank{}, err
	}
	if !b.IsActive {
		return domain.Bank{}, domain.Invalid("bank", "is not active")
	}
	return b, nil
}

// UpdateAccount changes the descriptive fields of an account. Connection
// state and sync bookkeeping are left alone.
func (s *Service) UpdateAccount(ctx context.Context, userID, id int64, in domain.BankAccount) (domain.BankAccount, error) {
	cur, err := s.store.GetAccount(ctx, userID, id)
	if err != nil {
		return domain.BankAccount{}, err
	}
	cur.AccountName = in.AccountName
	cur.AccountType = in.AccountType
	if in.Status != "" {
		cur.Status = in.Status
	}
	if in.SyncFrequency > 0 {
		cur.SyncFrequency = in.SyncFrequency
	}
	cur.IsHidden = in.IsHidden
	cur.BranchCode, cur.SwiftCode, cur.IBAN = in.BranchCode, in.SwiftCode, in.IBAN
	if !cur.IsAPIConnected {
		cur.CurrentBalance = in.CurrentBalance
		cur.AvailableBalance = in.AvailableBalance
		cur.LastUpdated = s.now()
	}
	if err := cur.Validate(); err != nil {
		return domain.BankAccount{}, err
	}
	if err := s.store.UpdateAccount(ctx, &cur); err != nil {
		return domain.BankAccount{}, err
	}
	if in.IsPrimary && !cur.IsPrimary {
		if err := s.store.SetPrimaryAccount(ctx, userID, id); err != nil {
			return domain.BankAccount{}, err
		}
		cur.IsPrimary = true
	}
	return cur, nil
}

func (s *Service) DeleteAccount(ctx context.Context, userID, id int64) error {
	return s.store.DeleteAccount(ctx, userID, id)
}

func (s *Service) SetPrimary(ctx context.Context, userID, id int64) error {
	if _, err := s.store.GetAccount(ctx, userID, id); err != nil {
		return err
	}
	return s.store.SetPrimaryAccount(ctx, userID, id)
}

// Connect stores encrypted API credentials for an account of a bank that
// supports API integration.
func (s *Service) Connect(ctx context.Context, userID, accountID int64, creds Credentials) (domain.BankAccount, error) {
	acc, err := s.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return domain.BankAccount{}, err
	}
	b, err := s.store.GetBank(ctx, acc.BankID)
	if err != nil {
		return domain.BankAccount{}, err
	}
	if !b.SupportsAPIIntegration || b.APIEndpoint == "" {
		return domain.BankAccount{}, domain.Invalid("bank", b.Name+" does not support API integration")
	}
	if strings.TrimSpace(creds.Token) == "" {
		return domain.BankAccount{}, domain.Invalid("credentials", "token is required")
	}
	sealed, err := s.vault.Encrypt(creds)
	if err != nil {
		return domain.BankAccount{}, err
	}
	acc.EncryptedCredentials = sealed
	acc.IsAPIConnected = true
	if err := s.store.UpdateAccount(ctx, &acc); err != nil {
		return domain.BankAccount{}, err
	}
	s.security(ctx, audit.EventCredentialsConnect, acc)
	return acc, nil
}

func (s *Service) Disconnect(ctx context.Context, userID, accountID int64) (domain.BankAccount, error) {
	acc, err := s.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return domain.BankAccount{}, err
	}
	acc.EncryptedCredentials = ""
	acc.IsAPIConnected = false
	if err := s.store.UpdateAccount(ctx, &acc); err != nil {
		return domain.BankAccount{}, err
	}
	s.security(ctx, audit.EventCredentialsRemoved, acc)
	return acc, nil
}

func (s *Service) security(ctx context.Context, kind audit.EventKind, acc domain.BankAccount) {
	err := s.sink.RecordSecurityEvent(ctx, audit.SecurityEvent{
		Kind:      kind,
		UserID:    acc.UserID,
		Detail:    map[string]any{"account_id": acc.ID, "bank_code": string(acc.BankCode)},
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("record security event")
	}
}

func (s *Service) BankTransactions(ctx context.Context, userID, accountID int64, limit int) ([]domain.BankTransaction, error) {
	if _, err := s.store.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListBankTransactions(ctx, accountID, limit)
}

// SyncStatus lists the sync state of every account of the user.
func (s *Service) SyncStatus(ctx context.Context, userID int64) ([]domain.SyncStatus, error) {
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.SyncStatus, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, domain.SyncStatus{
			AccountID:      a.ID,
			Display:        a.Display(),
			IsAPIConnected: a.IsAPIConnected,
			LastSyncAt:     a.LastSyncAt,
			SyncDue:        a.SyncDue(now),
		})
	}
	return out, nil
}

func nullOr(v decimal.NullDecimal, fallback decimal.Decimal) decimal.Decimal {
	if v.Valid {
		return v.Decimal
	}
	return fallback
}
