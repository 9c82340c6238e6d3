package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const bankColumns = `id, name, code, api_endpoint, is_active, supports_api_integration, api_version,
	api_documentation_url, created_at, updated_at`

func scanBank(r pgx.Row) (domain.Bank, error) {
	var b domain.Bank
	err := r.Scan(&b.ID, &b.Name, &b.Code, &b.APIEndpoint, &b.IsActive, &b.SupportsAPIIntegration, &b.APIVersion,
		&b.APIDocumentationURL, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (p *Postgres) ListBanks(ctx context.Context) ([]domain.Bank, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+bankColumns+` FROM banks WHERE is_active ORDER BY name`)
	return collect("list banks", rows, err, scanBank)
}

func (p *Postgres) GetBank(ctx context.Context, id int64) (domain.Bank, error) {
	return one("get bank", p.pool.QueryRow(ctx, `SELECT `+bankColumns+` FROM banks WHERE id = $1`, id), scanBank)
}

func (p *Postgres) GetBankByCode(ctx context.Context, code domain.BankCode) (domain.Bank, error) {
	return one("get bank by code", p.pool.QueryRow(ctx, `SELECT `+bankColumns+` FROM banks WHERE code = $1`, code), scanBank)
}

const accountSelect = `
	SELECT a.id, a.user_id, a.bank_id, b.name, b.code, a.account_number, a.account_name, a.account_type,
		a.currency, a.current_balance, a.available_balance, a.last_updated, a.is_api_connected,
		a.encrypted_credentials, a.last_sync_at, a.sync_frequency, a.status, a.is_primary, a.is_hidden,
		a.branch_code, a.swift_code, a.iban, a.created_at, a.updated_at
	FROM bank_accounts a JOIN banks b ON b.id = a.bank_id`

func scanAccount(r pgx.Row) (domain.BankAccount, error) {
	var a domain.BankAccount
	err := r.Scan(&a.ID, &a.UserID, &a.BankID, &a.BankName, &a.BankCode, &a.AccountNumber, &a.AccountName, &a.AccountType,
		&a.Currency, &a.CurrentBalance, &a.AvailableBalance, &a.LastUpdated, &a.IsAPIConnected,
		&a.EncryptedCredentials, &a.LastSyncAt, &a.SyncFrequency, &a.Status, &a.IsPrimary, &a.IsHidden,
		&a.BranchCode, &a.SwiftCode, &a.IBAN, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (p *Postgres) ListAccounts(ctx context.Context, userID int64) ([]domain.BankAccount, error) {
	rows, err := p.pool.Query(ctx, accountSelect+` WHERE a.user_id = $1 ORDER BY a.is_primary DESC, b.name, a.account_name`, userID)
	return collect("list accounts", rows, err, scanAccount)
}

func (p *Postgres) GetAccount(ctx context.Context, userID, id int64) (domain.BankAccount, error) {
	return one("get account", p.pool.QueryRow(ctx, accountSelect+` WHERE a.user_id = $1 AND a.id = $2`, userID, id), scanAccount)
}

// ListConnectedAccounts returns active API connected accounts of all users.
func (p *Postgres) ListConnectedAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	rows, err := p.pool.Query(ctx, accountSelect+` WHERE a.is_api_connected AND a.status = 'active' ORDER BY a.id`)
	return collect("list connected accounts", rows, err, scanAccount)
}

func (p *Postgres) CreateAccount(ctx context.Context, a *domain.BankAccount) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO bank_accounts (user_id, bank_id, account_number, account_name, account_type, currency,
			current_balance, available_balance, last_updated, is_api_connected, encrypted_credentials,
			last_sync_at, sync_frequency, status, is_primary, is_hidden, branch_code, swift_code, iban)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at`,
		a.UserID, a.BankID, a.AccountNumber, a.AccountName, a.AccountType, a.Currency,
		a.CurrentBalance, a.AvailableBalance, a.LastUpdated, a.IsAPIConnected, a.EncryptedCredentials,
		a.LastSyncAt, a.SyncFrequency, a.Status, a.IsPrimary, a.IsHidden, a.BranchCode, a.SwiftCode, a.IBAN,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return wrap("create account", err)
}

func (p *Postgres) UpdateAccount(ctx context.Context, a *domain.BankAccount) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE bank_accounts SET account_name = $3, account_type = $4, currency = $5, current_balance = $6,
			available_balance = $7, last_updated = $8, is_api_connected = $9, encrypted_credentials = $10,
			last_sync_at = $11, sync_frequency = $12, status = $13, is_primary = $14, is_hidden = $15,
			branch_code = $16, swift_code = $17, iban = $18, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at`,
		a.UserID, a.ID, a.AccountName, a.AccountType, a.Currency, a.CurrentBalance,
		a.AvailableBalance, a.LastUpdated, a.IsAPIConnected, a.EncryptedCredentials,
		a.LastSyncAt, a.SyncFrequency, a.Status, a.IsPrimary, a.IsHidden,
		a.BranchCode, a.SwiftCode, a.IBAN,
	).Scan(&a.UpdatedAt)
	return wrap("update account", err)
}

func (p *Postgres) DeleteAccount(ctx context.Context, userID, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM bank_accounts WHERE user_id = $1 AND id = $2`, userID, id)
	return affected("delete account", tag, err)
}

// SetPrimaryAccount marks one account primary and unsets the others.
func (p *Postgres) SetPrimaryAccount(ctx context.Context, userID, id int64) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE bank_accounts SET is_primary = TRUE, updated_at = now() WHERE user_id = $1 AND id = $2`, userID, id)
		if err := affected("set primary account", tag, err); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE bank_accounts SET is_primary = FALSE, updated_at = now() WHERE user_id = $1 AND id <> $2 AND is_primary`, userID, id)
		return wrap("unset primary accounts", err)
	})
}

// InsertBankTransaction stores a raw record unless the account already has
// one with the same bank transaction id. It reports whether a row was added.
func (p *Postgres) InsertBankTransaction(ctx context.Context, bt *domain.BankTransaction) (bool, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO bank_transactions (account_id, transaction_id, reference_number, transaction_type,
			amount, currency, description, transaction_date, value_date, balance_after, merchant_name,
			merchant_category, location, is_processed, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (account_id, transaction_id) DO NOTHING
		RETURNING id, created_at, updated_at`,
		bt.AccountID, bt.TransactionID, bt.ReferenceNumber, bt.TransactionType,
		bt.Amount, bt.Currency, bt.Description, bt.TransactionDate, bt.ValueDate, bt.BalanceAfter, bt.MerchantName,
		bt.MerchantCategory, bt.Location, bt.IsProcessed, bt.ProcessedAt,
	).Scan(&bt.ID, &bt.CreatedAt, &bt.UpdatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrap("insert bank transaction", err)
	}
	return true, nil
}

func (p *Postgres) MarkBankTransactionProcessed(ctx context.Context, id int64, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE bank_transactions SET is_processed = TRUE, processed_at = $2, updated_at = now()
		WHERE id = $1`, id, at)
	return affected("mark bank transaction processed", tag, err)
}

func (p *Postgres) ListBankTransactions(ctx context.Context, accountID int64, limit int) ([]domain.BankTransaction, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, account_id, transaction_id, reference_number, transaction_type, amount, currency,
			description, transaction_date, value_date, balance_after, merchant_name, merchant_category,
			location, is_processed, processed_at, created_at, updated_at
		FROM bank_transactions WHERE account_id = $1
		ORDER BY transaction_date DESC, id DESC LIMIT $2`, accountID, limit)
	return collect("list bank transactions", rows, err, func(r pgx.Row) (domain.BankTransaction, error) {
		var bt domain.BankTransaction
		err := r.Scan(&bt.ID, &bt.AccountID, &bt.TransactionID, &bt.ReferenceNumber, &bt.TransactionType, &bt.Amount, &bt.Currency,
			&bt.Description, &bt.TransactionDate, &bt.ValueDate, &bt.BalanceAfter, &bt.MerchantName, &bt.MerchantCategory,
			&bt.Location, &bt.IsProcessed, &bt.ProcessedAt, &bt.CreatedAt, &bt.UpdatedAt)
		return bt, err
	})
}
