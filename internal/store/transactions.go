package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const transactionSelect = `
	SELECT t.id, t.user_id, t.type, t.amount, t.currency, t.description, t.category_id,
		COALESCE(c.name, ''), t.merchant_id, COALESCE(m.name, ''), t.tags, t.from_account_id,
		t.to_account_id, t.transaction_date, t.value_date, t.status, t.bank_transaction_id,
		t.is_manual_entry, t.is_recurring, t.confidence_score, t.is_auto_categorized, t.needs_review,
		t.latitude, t.longitude, t.location_name, t.reference_number, t.receipt_path, t.notes,
		t.shared_ledger_id, t.created_at, t.updated_at
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN merchants m ON m.id = t.merchant_id`

func scanTransaction(r pgx.Row) (domain.Transaction, error) {
	var t domain.Transaction
	err := r.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Currency, &t.Description, &t.CategoryID,
		&t.CategoryName, &t.MerchantID, &t.MerchantName, &t.Tags, &t.FromAccountID,
		&t.ToAccountID, &t.TransactionDate, &t.ValueDate, &t.Status, &t.BankTransactionID,
		&t.IsManualEntry, &t.IsRecurring, &t.ConfidenceScore, &t.IsAutoCategorized, &t.NeedsReview,
		&t.Latitude, &t.Longitude, &t.LocationName, &t.ReferenceNumber, &t.ReceiptPath, &t.Notes,
		&t.SharedLedgerID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// ListTransactions returns one page of the filtered transactions, newest
// first, and the total number of matches. From and To are days, both
// included.
func (p *Postgres) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error) {
	f.Normalize()
	where := []string{"t.user_id = $1"}
	args := []any{f.UserID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CategoryID != nil {
		add("t.category_id = $%d", *f.CategoryID)
	}
	if f.Type != "" {
		add("t.type = $%d", f.Type)
	}
	if f.Status != "" {
		add("t.status = $%d", f.Status)
	}
	if f.AccountID != nil {
		add("(t.from_account_id = $%[1]d OR t.to_account_id = $%[1]d)", *f.AccountID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add(`(t.description ILIKE $%[1]d ESCAPE '\' OR t.notes ILIKE $%[1]d ESCAPE '\'
			OR t.tags ILIKE $%[1]d ESCAPE '\' OR m.name ILIKE $%[1]d ESCAPE '\')`, containsPattern(s))
	}
	if f.From != nil {
		add("t.transaction_date >= $%d", domain.DateOnly(*f.From))
	}
	if f.To != nil {
		add("t.transaction_date < $%d", domain.DateOnly(*f.To).AddDate(0, 0, 1))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	err := p.pool.QueryRow(ctx, `
		SELECT count(*) FROM transactions t LEFT JOIN merchants m ON m.id = t.merchant_id`+cond, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, wrap("count transactions", err)
	}

	args = append(args, f.PageSize, f.Offset())
	rows, err := p.pool.Query(ctx, transactionSelect+cond+fmt.Sprintf(`
		ORDER BY t.transaction_date DESC, t.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	txs, err := collect("list transactions", rows, err, scanTransaction)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// TransactionsBetween returns the user's transactions dated in [from, to),
// oldest first.
func (p *Postgres) TransactionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := p.pool.Query(ctx, transactionSelect+`
		WHERE t.user_id = $1 AND t.transaction_date >= $2 AND t.transaction_date < $3
		ORDER BY t.transaction_date, t.id`, userID, from, to)
	return collect("transactions between", rows, err, scanTransaction)
}

func (p *Postgres) GetTransaction(ctx context.Context, userID, id int64) (domain.Transaction, error) {
	return one("get transaction", p.pool.QueryRow(ctx,
		transactionSelect+` WHERE t.user_id = $1 AND t.id = $2`, userID, id), scanTransaction)
}

func (p *Postgres) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, amount, currency, description, category_id, merchant_id,
			tags, from_account_id, to_account_id, transaction_date, value_date, status, bank_transaction_id,
			is_manual_entry, is_recurring, confidence_score, is_auto_categorized, needs_review, latitude,
			longitude, location_name, reference_number, receipt_path, notes, shared_ledger_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26)
		RETURNING id, created_at, updated_at`,
		t.UserID, t.Type, t.Amount, t.Currency, t.Description, t.CategoryID, t.MerchantID,
		t.Tags, t.FromAccountID, t.ToAccountID, t.TransactionDate, t.ValueDate, t.Status, t.BankTransactionID,
		t.IsManualEntry, t.IsRecurring, t.ConfidenceScore, t.IsAutoCategorized, t.NeedsReview, t.Latitude,
		t.Longitude, t.LocationName, t.ReferenceNumber, t.ReceiptPath, t.Notes, t.SharedLedgerID,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return wrap("create transaction", err)
}

func (p *Postgres) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE transactions SET type = $3, amount = $4, currency = $5, description = $6, category_id = $7,
			merchant_id = $8, tags = $9, from_account_id = $10, to_account_id = $11, transaction_date = $12,
			value_date = $13, status = $14, is_recurring = $15, confidence_score = $16,
			is_auto_categorized = $17, needs_review = $18, latitude = $19, longitude = $20,
			location_name = $21, reference_number = $22, receipt_path = $23, notes = $24,
			shared_ledger_id = $25, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at`,
		t.UserID, t.ID, t.Type, t.Amount, t.Currency, t.Description, t.CategoryID,
		t.MerchantID, t.Tags, t.FromAccountID, t.ToAccountID, t.TransactionDate,
		t.ValueDate, t.Status, t.IsRecurring, t.ConfidenceScore,
		t.IsAutoCategorized, t.NeedsReview, t.Latitude, t.Longitude,
		t.LocationName, t.ReferenceNumber, t.ReceiptPath, t.Notes,
		t.SharedLedgerID,
	).Scan(&t.UpdatedAt)
	return wrap("update transaction", err)
}

func (p *Postgres) DeleteTransaction(ctx context.Context, userID, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND id = $2`, userID, id)
	return affected("delete transaction", tag, err)
}

func scanSplit(r pgx.Row) (domain.TransactionSplit, error) {
	var s domain.TransactionSplit
	err := r.Scan(&s.ID, &s.TransactionID, &s.CategoryID, &s.Amount, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const splitColumns = `id, transaction_id, category_id, amount, description, created_at, updated_at`

func (p *Postgres) ListSplits(ctx context.Context, transactionID int64) ([]domain.TransactionSplit, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+splitColumns+` FROM transaction_splits WHERE transaction_id = $1 ORDER BY id`, transactionID)
	return collect("list splits", rows, err, scanSplit)
}

// SplitsFor returns the splits of the given transactions keyed by
// transaction id.
func (p *Postgres) SplitsFor(ctx context.Context, transactionIDs []int64) (map[int64][]domain.TransactionSplit, error) {
	out := map[int64][]domain.TransactionSplit{}
	if len(transactionIDs) == 0 {
		return out, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT `+splitColumns+` FROM transaction_splits WHERE transaction_id = ANY($1) ORDER BY id`, transactionIDs)
	splits, err := collect("splits for", rows, err, scanSplit)
	if err != nil {
		return nil, err
	}
	for _, s := range splits {
		out[s.TransactionID] = append(out[s.TransactionID], s)
	}
	return out, nil
}

// ReplaceSplits swaps the transaction's splits for the given ones. An empty
// list removes the split.
func (p *Postgres) ReplaceSplits(ctx context.Context, transactionID int64, splits []domain.TransactionSplit) error {
	return wrap("replace splits", p.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM transaction_splits WHERE transaction_id = $1`, transactionID); err != nil {
			return err
		}
		for i := range splits {
			s := &splits[i]
			s.TransactionID = transactionID
			err := tx.QueryRow(ctx, `
				INSERT INTO transaction_splits (transaction_id, category_id, amount, description)
				VALUES ($1, $2, $3, $4)
				RETURNING id, created_at, updated_at`,
				transactionID, s.CategoryID, s.Amount, s.Description,
			).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern is a LIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
