package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const userColumns = `id, username, email, first_name, last_name, password_hash, phone_number,
	date_of_birth, preferred_currency, timezone, monthly_income, financial_goals, risk_tolerance,
	is_profile_public, enable_notifications, enable_email_alerts, enable_sms_alerts, is_verified,
	verification_token, telegram_chat_id, created_at, updated_at`

func scanUser(r pgx.Row) (domain.User, error) {
	var u domain.User
	err := r.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.PhoneNumber,
		&u.DateOfBirth, &u.PreferredCurrency, &u.Timezone, &u.MonthlyIncome, &u.FinancialGoals, &u.RiskTolerance,
		&u.IsProfilePublic, &u.EnableNotifications, &u.EnableEmailAlerts, &u.EnableSMSAlerts, &u.IsVerified,
		&u.VerificationToken, &u.TelegramChatID, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser stores the user with an empty profile and the given
// preferences and analytics configuration.
func (p *Postgres) CreateUser(ctx context.Context, u *domain.User, pref domain.UserPreference, cfg domain.AnalyticsConfiguration) error {
	return wrap("create user", p.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (username, email, first_name, last_name, password_hash, phone_number,
				date_of_birth, preferred_currency, timezone, monthly_income, financial_goals, risk_tolerance,
				is_profile_public, enable_notifications, enable_email_alerts, enable_sms_alerts, is_verified,
				verification_token, telegram_chat_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			RETURNING id, created_at, updated_at`,
			u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.PhoneNumber,
			u.DateOfBirth, u.PreferredCurrency, u.Timezone, u.MonthlyIncome, u.FinancialGoals, u.RiskTolerance,
			u.IsProfilePublic, u.EnableNotifications, u.EnableEmailAlerts, u.EnableSMSAlerts, u.IsVerified,
			u.VerificationToken, u.TelegramChatID,
		).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO user_profiles (user_id) VALUES ($1)`, u.ID); err != nil {
			return err
		}
		pref.UserID = u.ID
		if err := upsertPreference(ctx, tx, &pref); err != nil {
			return err
		}
		cfg.UserID = u.ID
		return upsertAnalyticsConfig(ctx, tx, &cfg)
	}))
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return one("get user", p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), scanUser)
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return one("get user by email", p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email), scanUser)
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return one("get user by username", p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username), scanUser)
}

func (p *Postgres) GetUserByVerificationToken(ctx context.Context, token string) (domain.User, error) {
	return one("get user by token", p.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE verification_token = $1 AND verification_token <> ''`, token), scanUser)
}

func (p *Postgres) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	return collect("list user ids", rows, err, func(r pgx.Row) (int64, error) {
		var id int64
		return id, r.Scan(&id)
	})
}

func (p *Postgres) UpdateUser(ctx context.Context, u *domain.User) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE users SET username = $2, email = $3, first_name = $4, last_name = $5, password_hash = $6,
			phone_number = $7, date_of_birth = $8, preferred_currency = $9, timezone = $10, monthly_income = $11,
			financial_goals = $12, risk_tolerance = $13, is_profile_public = $14, enable_notifications = $15,
			enable_email_alerts = $16, enable_sms_alerts = $17, is_verified = $18, verification_token = $19,
			telegram_chat_id = $20, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash,
		u.PhoneNumber, u.DateOfBirth, u.PreferredCurrency, u.Timezone, u.MonthlyIncome,
		u.FinancialGoals, u.RiskTolerance, u.IsProfilePublic, u.EnableNotifications,
		u.EnableEmailAlerts, u.EnableSMSAlerts, u.IsVerified, u.VerificationToken,
		u.TelegramChatID,
	).Scan(&u.UpdatedAt)
	return wrap("update user", err)
}

func (p *Postgres) GetProfile(ctx context.Context, userID int64) (domain.UserProfile, error) {
	var pr domain.UserProfile
	err := p.pool.QueryRow(ctx, `
		SELECT user_id, bio, location, website, occupation, company, investment_experience,
			allow_friend_requests, allow_expense_sharing, created_at, updated_at
		FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(&pr.UserID, &pr.Bio, &pr.Location, &pr.Website, &pr.Occupation, &pr.Company, &pr.InvestmentExperience,
		&pr.AllowFriendRequests, &pr.AllowExpenseSharing, &pr.CreatedAt, &pr.UpdatedAt)
	return pr, wrap("get profile", err)
}

func (p *Postgres) UpdateProfile(ctx context.Context, pr *domain.UserProfile) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO user_profiles (user_id, bio, location, website, occupation, company,
			investment_experience, allow_friend_requests, allow_expense_sharing)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET bio = EXCLUDED.bio, location = EXCLUDED.location,
			website = EXCLUDED.website, occupation = EXCLUDED.occupation, company = EXCLUDED.company,
			investment_experience = EXCLUDED.investment_experience,
			allow_friend_requests = EXCLUDED.allow_friend_requests,
			allow_expense_sharing = EXCLUDED.allow_expense_sharing, updated_at = now()
		RETURNING created_at, updated_at`,
		pr.UserID, pr.Bio, pr.Location, pr.Website, pr.Occupation, pr.Company,
		pr.InvestmentExperience, pr.AllowFriendRequests, pr.AllowExpenseSharing,
	).Scan(&pr.CreatedAt, &pr.UpdatedAt)
	return wrap("update profile", err)
}

func (p *Postgres) GetPreference(ctx context.Context, userID int64) (domain.UserPreference, error) {
	var pr domain.UserPreference
	err := p.pool.QueryRow(ctx, `
		SELECT user_id, currency_display, date_format, number_format, default_transaction_type,
			auto_categorize_transactions, require_receipt_upload, email_notifications, push_notifications,
			sms_notifications, default_budget_period, budget_alert_percentage, share_analytics,
			allow_data_export, language, timezone, updated_at
		FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(&pr.UserID, &pr.CurrencyDisplay, &pr.DateFormat, &pr.NumberFormat, &pr.DefaultTransactionType,
		&pr.AutoCategorizeTransactions, &pr.RequireReceiptUpload, &pr.EmailNotifications, &pr.PushNotifications,
		&pr.SMSNotifications, &pr.DefaultBudgetPeriod, &pr.BudgetAlertPercentage, &pr.ShareAnalytics,
		&pr.AllowDataExport, &pr.Language, &pr.Timezone, &pr.UpdatedAt)
	return pr, wrap("get preference", err)
}

func (p *Postgres) UpdatePreference(ctx context.Context, pr *domain.UserPreference) error {
	return wrap("update preference", upsertPreference(ctx, p.pool, pr))
}

func upsertPreference(ctx context.Context, q querier, pr *domain.UserPreference) error {
	return q.QueryRow(ctx, `
		INSERT INTO user_preferences (user_id, currency_display, date_format, number_format,
			default_transaction_type, auto_categorize_transactions, require_receipt_upload,
			email_notifications, push_notifications, sms_notifications, default_budget_period,
			budget_alert_percentage, share_analytics, allow_data_export, language, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (user_id) DO UPDATE SET currency_display = EXCLUDED.currency_display,
			date_format = EXCLUDED.date_format, number_format = EXCLUDED.number_format,
			default_transaction_type = EXCLUDED.default_transaction_type,
			auto_categorize_transactions = EXCLUDED.auto_categorize_transactions,
			require_receipt_upload = EXCLUDED.require_receipt_upload,
			email_notifications = EXCLUDED.email_notifications,
			push_notifications = EXCLUDED.push_notifications,
			sms_notifications = EXCLUDED.sms_notifications,
			default_budget_period = EXCLUDED.default_budget_period,
			budget_alert_percentage = EXCLUDED.budget_alert_percentage,
			share_analytics = EXCLUDED.share_analytics, allow_data_export = EXCLUDED.allow_data_export,
			language = EXCLUDED.language, timezone = EXCLUDED.timezone, updated_at = now()
		RETURNING updated_at`,
		pr.UserID, pr.CurrencyDisplay, pr.DateFormat, pr.NumberFormat,
		pr.DefaultTransactionType, pr.AutoCategorizeTransactions, pr.RequireReceiptUpload,
		pr.EmailNotifications, pr.PushNotifications, pr.SMSNotifications, pr.DefaultBudgetPeriod,
		pr.BudgetAlertPercentage, pr.ShareAnalytics, pr.AllowDataExport, pr.Language, pr.Timezone,
	).Scan(&pr.UpdatedAt)
}

func (p *Postgres) GetAnalyticsConfig(ctx context.Context, userID int64) (domain.AnalyticsConfiguration, error) {
	var c domain.AnalyticsConfiguration
	err := p.pool.QueryRow(ctx, `
		SELECT user_id, enable_spending_alerts, enable_trend_analysis, enable_savings_suggestions,
			enable_goal_tracking, enable_cash_flow_warnings, enable_comparative_analysis,
			spending_alert_threshold, large_transaction_threshold, enable_auto_categorization,
			categorization_confidence_threshold, enable_predictive_budgeting,
			insight_notification_frequency, keep_insights_for_days, keep_predictions_for_days, updated_at
		FROM analytics_configurations WHERE user_id = $1`, userID,
	).Scan(&c.UserID, &c.EnableSpendingAlerts, &c.EnableTrendAnalysis, &c.EnableSavingsSuggestions,
		&c.EnableGoalTracking, &c.EnableCashFlowWarnings, &c.EnableComparativeAnalysis,
		&c.SpendingAlertThreshold, &c.LargeTransactionThreshold, &c.EnableAutoCategorization,
		&c.CategorizationConfidence, &c.EnablePredictiveBudgeting,
		&c.InsightNotificationFrequency, &c.KeepInsightsForDays, &c.KeepPredictionsForDays, &c.UpdatedAt)
	return c, wrap("get analytics config", err)
}

func (p *Postgres) UpdateAnalyticsConfig(ctx context.Context, c *domain.AnalyticsConfiguration) error {
	return wrap("update analytics config", upsertAnalyticsConfig(ctx, p.pool, c))
}

func upsertAnalyticsConfig(ctx context.Context, q querier, c *domain.AnalyticsConfiguration) error {
	return q.QueryRow(ctx, `
		INSERT INTO analytics_configurations (user_id, enable_spending_alerts, enable_trend_analysis,
			enable_savings_suggestions, enable_goal_tracking, enable_cash_flow_warnings,
			enable_comparative_analysis, spending_alert_threshold, large_transaction_threshold,
			enable_auto_categorization, categorization_confidence_threshold, enable_predictive_budgeting,
			insight_notification_frequency, keep_insights_for_days, keep_predictions_for_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id) DO UPDATE SET enable_spending_alerts = EXCLUDED.enable_spending_alerts,
			enable_trend_analysis = EXCLUDED.enable_trend_analysis,
			enable_savings_suggestions = EXCLUDED.enable_savings_suggestions,
			enable_goal_tracking = EXCLUDED.enable_goal_tracking,
			enable_cash_flow_warnings = EXCLUDED.enable_cash_flow_warnings,
			enable_comparative_analysis = EXCLUDED.enable_comparative_analysis,
			spending_alert_threshold = EXCLUDED.spending_alert_threshold,
			large_transaction_threshold = EXCLUDED.large_transaction_threshold,
			enable_auto_categorization = EXCLUDED.enable_auto_categorization,
			categorization_confidence_threshold = EXCLUDED.categorization_confidence_threshold,
			enable_predictive_budgeting = EXCLUDED.enable_predictive_budgeting,
			insight_notification_frequency = EXCLUDED.insight_notification_frequency,
			keep_insights_for_days = EXCLUDED.keep_insights_for_days,
			keep_predictions_for_days = EXCLUDED.keep_predictions_for_days, updated_at = now()
		RETURNING updated_at`,
		c.UserID, c.EnableSpendingAlerts, c.EnableTrendAnalysis,
		c.EnableSavingsSuggestions, c.EnableGoalTracking, c.EnableCashFlowWarnings,
		c.EnableComparativeAnalysis, c.SpendingAlertThreshold, c.LargeTransactionThreshold,
		c.EnableAutoCategorization, c.CategorizationConfidence, c.EnablePredictiveBudgeting,
		c.InsightNotificationFrequency, c.KeepInsightsForDays, c.KeepPredictionsForDays,
	).Scan(&c.UpdatedAt)
}
