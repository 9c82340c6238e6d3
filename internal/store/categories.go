package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const categoryColumns = `id, name, type, parent_id, icon, color, description, keywords, user_id,
	is_system_default, is_active, created_at, updated_at`

func scanCategory(r pgx.Row) (domain.Category, error) {
	var c domain.Category
	err := r.Scan(&c.ID, &c.Name, &c.Type, &c.ParentID, &c.Icon, &c.Color, &c.Description, &c.Keywords, &c.UserID,
		&c.IsSystemDefault, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListCategories returns the user's own categories and the system ones.
func (p *Postgres) ListCategories(ctx context.Context, userID int64) ([]domain.Category, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = $1 OR user_id IS NULL
		ORDER BY type, name`, userID)
	return collect("list categories", rows, err, scanCategory)
}

func (p *Postgres) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	return one("get category", p.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id), scanCategory)
}

func (p *Postgres) CreateCategory(ctx context.Context, c *domain.Category) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO categories (name, type, parent_id, icon, color, description, keywords, user_id,
			is_system_default, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Type, c.ParentID, c.Icon, c.Color, c.Description, c.Keywords, c.UserID,
		c.IsSystemDefault, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return wrap("create category", err)
}

func (p *Postgres) UpdateCategory(ctx context.Context, c *domain.Category) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE categories SET name = $2, type = $3, parent_id = $4, icon = $5, color = $6,
			description = $7, keywords = $8, is_active = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Name, c.Type, c.ParentID, c.Icon, c.Color, c.Description, c.Keywords, c.IsActive,
	).Scan(&c.UpdatedAt)
	return wrap("update category", err)
}

const merchantColumns = `id, user_id, name, category_id, email, phone, website, address_line1,
	address_line2, city, state, postal_code, country, merchant_category_code, business_type,
	total_transactions, total_amount_spent, first_transaction_date, last_transaction_date,
	is_favorite, notes, created_at, updated_at`

func scanMerchant(r pgx.Row) (domain.Merchant, error) {
	var m domain.Merchant
	err := r.Scan(&m.ID, &m.UserID, &m.Name, &m.CategoryID, &m.Email, &m.Phone, &m.Website, &m.AddressLine1,
		&m.AddressLine2, &m.City, &m.State, &m.PostalCode, &m.Country, &m.MerchantCategoryCode, &m.BusinessType,
		&m.TotalTransactions, &m.TotalAmountSpent, &m.FirstTransactionDate, &m.LastTransactionDate,
		&m.IsFavorite, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (p *Postgres) ListMerchants(ctx context.Context, userID int64) ([]domain.Merchant, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE user_id = $1 ORDER BY name`, userID)
	return collect("list merchants", rows, err, scanMerchant)
}

func (p *Postgres) GetMerchant(ctx context.Context, userID, id int64) (domain.Merchant, error) {
	return one("get merchant", p.pool.QueryRow(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE user_id = $1 AND id = $2`, userID, id), scanMerchant)
}

// FindMerchantByName matches the name case-insensitively.
func (p *Postgres) FindMerchantByName(ctx context.Context, userID int64, name string) (domain.Merchant, error) {
	return one("find merchant", p.pool.QueryRow(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE user_id = $1 AND lower(name) = lower($2)`, userID, name), scanMerchant)
}

func (p *Postgres) CreateMerchant(ctx context.Context, m *domain.Merchant) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO merchants (user_id, name, category_id, email, phone, website, address_line1,
			address_line2, city, state, postal_code, country, merchant_category_code, business_type,
			is_favorite, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, total_transactions, total_amount_spent, created_at, updated_at`,
		m.UserID, m.Name, m.CategoryID, m.Email, m.Phone, m.Website, m.AddressLine1,
		m.AddressLine2, m.City, m.State, m.PostalCode, m.Country, m.MerchantCategoryCode, m.BusinessType,
		m.IsFavorite, m.Notes,
	).Scan(&m.ID, &m.TotalTransactions, &m.TotalAmountSpent, &m.CreatedAt, &m.UpdatedAt)
	return wrap("create merchant", err)
}

func (p *Postgres) UpdateMerchant(ctx context.Context, m *domain.Merchant) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE merchants SET name = $3, category_id = $4, email = $5, phone = $6, website = $7,
			address_line1 = $8, address_line2 = $9, city = $10, state = $11, postal_code = $12,
			country = $13, merchant_category_code = $14, business_type = $15, is_favorite = $16,
			notes = $17, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at`,
		m.UserID, m.ID, m.Name, m.CategoryID, m.Email, m.Phone, m.Website,
		m.AddressLine1, m.AddressLine2, m.City, m.State, m.PostalCode,
		m.Country, m.MerchantCategoryCode, m.BusinessType, m.IsFavorite,
		m.Notes,
	).Scan(&m.UpdatedAt)
	return wrap("update merchant", err)
}

// RecordMerchantExpense adds one expense to the merchant's statistics.
func (p *Postgres) RecordMerchantExpense(ctx context.Context, merchantID int64, amount decimal.Decimal, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE merchants SET total_transactions = total_transactions + 1,
			total_amount_spent = total_amount_spent + $2,
			first_transaction_date = COALESCE(first_transaction_date, $3::date),
			last_transaction_date = $3::date, updated_at = now()
		WHERE id = $1`, merchantID, amount, at)
	return affected("record merchant expense", tag, err)
}

func (p *Postgres) CreateTrainingSample(ctx context.Context, s *domain.TrainingSample) error {
	if s.Features == nil {
		s.Features = []string{}
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO training_samples (user_id, description, amount, merchant_name, category_id,
			predicted_category_id, predicted_confidence, features, is_validated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		s.UserID, s.Description, s.Amount, s.MerchantName, s.CategoryID,
		s.PredictedCategoryID, s.PredictedConfidence, s.Features, s.IsValidated,
	).Scan(&s.ID, &s.CreatedAt)
	return wrap("create training sample", err)
}

// ListTrainingSamples returns the user's newest samples first.
func (p *Postgres) ListTrainingSamples(ctx context.Context, userID int64, limit int) ([]domain.TrainingSample, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, description, amount, merchant_name, category_id, predicted_category_id,
			predicted_confidence, features, is_validated, created_at
		FROM training_samples WHERE user_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	return collect("list training samples", rows, err, func(r pgx.Row) (domain.TrainingSample, error) {
		var s domain.TrainingSample
		err := r.Scan(&s.ID, &s.UserID, &s.Description, &s.Amount, &s.MerchantName, &s.CategoryID, &s.PredictedCategoryID,
			&s.PredictedConfidence, &s.Features, &s.IsValidated, &s.CreatedAt)
		return s, err
	})
}
