package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const recurringColumns = `id, user_id, name, type, amount, currency, description, category_id, merchant_id,
	tags, from_account_id, to_account_id, frequency, start_date, end_date, next_due_date, is_active,
	auto_create, total_created, last_created_date, created_at, updated_at`

func scanRecurring(r pgx.Row) (domain.RecurringTransaction, error) {
	var rt domain.RecurringTransaction
	err := r.Scan(&rt.ID, &rt.UserID, &rt.Name, &rt.Type, &rt.Amount, &rt.Currency, &rt.Description, &rt.CategoryID, &rt.MerchantID,
		&rt.Tags, &rt.FromAccountID, &rt.ToAccountID, &rt.Frequency, &rt.StartDate, &rt.EndDate, &rt.NextDueDate, &rt.IsActive,
		&rt.AutoCreate, &rt.TotalCreated, &rt.LastCreatedDate, &rt.CreatedAt, &rt.UpdatedAt)
	return rt, err
}

func (p *Postgres) ListRecurring(ctx context.Context, userID int64) ([]domain.RecurringTransaction, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+recurringColumns+` FROM recurring_transactions WHERE user_id = $1 ORDER BY next_due_date, id`, userID)
	return collect("list recurring", rows, err, scanRecurring)
}

func (p *Postgres) GetRecurring(ctx context.Context, userID, id int64) (domain.RecurringTransaction, error) {
	return one("get recurring", p.pool.QueryRow(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transactions WHERE user_id = $1 AND id = $2`, userID, id), scanRecurring)
}

// ListDueRecurring returns active auto-create templates of every user due
// on or before day.
func (p *Postgres) ListDueRecurring(ctx context.Context, day time.Time) ([]domain.RecurringTransaction, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+recurringColumns+` FROM recurring_transactions
		WHERE is_active AND auto_create AND next_due_date <= $1
		ORDER BY next_due_date, id`, domain.DateOnly(day))
	return collect("list due recurring", rows, err, scanRecurring)
}

func (p *Postgres) CreateRecurring(ctx context.Context, r *domain.RecurringTransaction) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO recurring_transactions (user_id, name, type, amount, currency, description, category_id,
			merchant_id, tags, from_account_id, to_account_id, frequency, start_date, end_date, next_due_date,
			is_active, auto_create, total_created, last_created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at`,
		r.UserID, r.Name, r.Type, r.Amount, r.Currency, r.Description, r.CategoryID,
		r.MerchantID, r.Tags, r.FromAccountID, r.ToAccountID, r.Frequency, r.StartDate, r.EndDate, r.NextDueDate,
		r.IsActive, r.AutoCreate, r.TotalCreated, r.LastCreatedDate,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	return wrap("create recurring", err)
}

func (p *Postgres) UpdateRecurring(ctx context.Context, r *domain.RecurringTransaction) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE recurring_transactions SET name = $3, type = $4, amount = $5, currency = $6,
			description = $7, category_id = $8, merchant_id = $9, tags = $10, from_account_id = $11,
			to_account_id = $12, frequency = $13, start_date = $14, end_date = $15, next_due_date = $16,
			is_active = $17, auto_create = $18, total_created = $19, last_created_date = $20,
			updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at`,
		r.UserID, r.ID, r.Name, r.Type, r.Amount, r.Currency,
		r.Description, r.CategoryID, r.MerchantID, r.Tags, r.FromAccountID,
		r.ToAccountID, r.Frequency, r.StartDate, r.EndDate, r.NextDueDate,
		r.IsActive, r.AutoCreate, r.TotalCreated, r.LastCreatedDate,
	).Scan(&r.UpdatedAt)
	return wrap("update recurring", err)
}

func (p *Postgres) DeleteRecurring(ctx context.Context, userID, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM recurring_transactions WHERE user_id = $1 AND id = $2`, userID, id)
	return affected("delete recurring", tag, err)
}
