package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const summaryColumns = `id, user_id, year, month, total_income, income_sources_count, primary_income_source,
	total_expenses, fixed_expenses, variable_expenses, top_expense_category, top_expense_amount,
	net_income, savings_rate, transaction_count, average_transaction_amount, most_frequent_merchant,
	total_budgeted, budget_adherence_rate, over_budget_categories, category_breakdown,
	income_change_percent, expense_change_percent, active_goals_count, goals_on_track,
	goal_contributions, insights_generated, high_priority_insights, generated_at`

func scanSummary(r pgx.Row) (domain.MonthlyFinancialSummary, error) {
	var s domain.MonthlyFinancialSummary
	err := r.Scan(&s.ID, &s.UserID, &s.Year, &s.Month, &s.TotalIncome, &s.IncomeSourcesCount, &s.PrimaryIncomeSource,
		&s.TotalExpenses, &s.FixedExpenses, &s.VariableExpenses, &s.TopExpenseCategory, &s.TopExpenseAmount,
		&s.NetIncome, &s.SavingsRate, &s.TransactionCount, &s.AverageTransactionAmount, &s.MostFrequentMerchant,
		&s.TotalBudgeted, &s.BudgetAdherenceRate, &s.OverBudgetCategories, &s.CategoryBreakdown,
		&s.IncomeChangePercent, &s.ExpenseChangePercent, &s.ActiveGoalsCount, &s.GoalsOnTrack,
		&s.GoalContributions, &s.InsightsGenerated, &s.HighPriorityInsights, &s.GeneratedAt)
	return s, err
}

// UpsertMonthlySummary replaces the stored summary of the same month.
func (p *Postgres) UpsertMonthlySummary(ctx context.Context, s *domain.MonthlyFinancialSummary) error {
	if s.OverBudgetCategories == nil {
		s.OverBudgetCategories = []string{}
	}
	if s.CategoryBreakdown == nil {
		s.CategoryBreakdown = []domain.CategoryTotal{}
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO monthly_summaries (user_id, year, month, total_income, income_sources_count,
			primary_income_source, total_expenses, fixed_expenses, variable_expenses, top_expense_category,
			top_expense_amount, net_income, savings_rate, transaction_count, average_transaction_amount,
			most_frequent_merchant, total_budgeted, budget_adherence_rate, over_budget_categories,
			category_breakdown, income_change_percent, expense_change_percent, active_goals_count,
			goals_on_track, goal_contributions, insights_generated, high_priority_insights, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28)
		ON CONFLICT (user_id, year, month) DO UPDATE SET
			total_income = EXCLUDED.total_income,
			income_sources_count = EXCLUDED.income_sources_count,
			primary_income_source = EXCLUDED.primary_income_source,
			total_expenses = EXCLUDED.total_expenses,
			fixed_expenses = EXCLUDED.fixed_expenses,
			variable_expenses = EXCLUDED.variable_expenses,
			top_expense_category = EXCLUDED.top_expense_category,
			top_expense_amount = EXCLUDED.top_expense_amount,
			net_income = EXCLUDED.net_income,
			savings_rate = EXCLUDED.savings_rate,
			transaction_count = EXCLUDED.transaction_count,
			average_transaction_amount = EXCLUDED.average_transaction_amount,
			most_frequent_merchant = EXCLUDED.most_frequent_merchant,
			total_budgeted = EXCLUDED.total_budgeted,
			budget_adherence_rate = EXCLUDED.budget_adherence_rate,
			over_budget_categories = EXCLUDED.over_budget_categories,
			category_breakdown = EXCLUDED.category_breakdown,
			income_change_percent = EXCLUDED.income_change_percent,
			expense_change_percent = EXCLUDED.expense_change_percent,
			active_goals_count = EXCLUDED.active_goals_count,
			goals_on_track = EXCLUDED.goals_on_track,
			goal_contributions = EXCLUDED.goal_contributions,
			insights_generated = EXCLUDED.insights_generated,
			high_priority_insights = EXCLUDED.high_priority_insights,
			generated_at = EXCLUDED.generated_at
		RETURNING id`,
		s.UserID, s.Year, s.Month, s.TotalIncome, s.IncomeSourcesCount,
		s.PrimaryIncomeSource, s.TotalExpenses, s.FixedExpenses, s.VariableExpenses, s.TopExpenseCategory,
		s.TopExpenseAmount, s.NetIncome, s.SavingsRate, s.TransactionCount, s.AverageTransactionAmount,
		s.MostFrequentMerchant, s.TotalBudgeted, s.BudgetAdherenceRate, s.OverBudgetCategories,
		s.CategoryBreakdown, s.IncomeChangePercent, s.ExpenseChangePercent, s.ActiveGoalsCount,
		s.GoalsOnTrack, s.GoalContributions, s.InsightsGenerated, s.HighPriorityInsights, s.GeneratedAt,
	).Scan(&s.ID)
	return wrap("upsert monthly summary", err)
}

func (p *Postgres) GetMonthlySummary(ctx context.Context, userID int64, year, month int) (domain.MonthlyFinancialSummary, error) {
	return one("get monthly summary", p.pool.QueryRow(ctx, `
		SELECT `+summaryColumns+` FROM monthly_summaries
		WHERE user_id = $1 AND year = $2 AND month = $3`, userID, year, month), scanSummary)
}

func (p *Postgres) ListMonthlySummaries(ctx context.Context, userID int64) ([]domain.MonthlyFinancialSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+summaryColumns+` FROM monthly_summaries WHERE user_id = $1
		ORDER BY year DESC, month DESC`, userID)
	return collect("list monthly summaries", rows, err, scanSummary)
}

const patternColumns = `id, user_id, pattern_type, category_id, category_name, description, trend, data,
	confidence_score, sample_size, analysis_from, analysis_to, created_at`

// ReplacePatterns drops the user's stored patterns and saves the new set.
func (p *Postgres) ReplacePatterns(ctx context.Context, userID int64, patterns []domain.SpendingPattern) error {
	return wrap("replace patterns", p.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM spending_patterns WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for i := range patterns {
			sp := &patterns[i]
			sp.UserID = userID
			err := tx.QueryRow(ctx, `
				INSERT INTO spending_patterns (user_id, pattern_type, category_id, category_name, description,
					trend, data, confidence_score, sample_size, analysis_from, analysis_to, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				RETURNING id`,
				sp.UserID, sp.PatternType, sp.CategoryID, sp.CategoryName, sp.Description,
				sp.Trend, sp.Data, sp.ConfidenceScore, sp.SampleSize, sp.AnalysisFrom, sp.AnalysisTo, sp.CreatedAt,
			).Scan(&sp.ID)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

func (p *Postgres) ListPatterns(ctx context.Context, userID int64) ([]domain.SpendingPattern, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+patternColumns+` FROM spending_patterns WHERE user_id = $1
		ORDER BY confidence_score DESC, id`, userID)
	return collect("list patterns", rows, err, func(r pgx.Row) (domain.SpendingPattern, error) {
		var sp domain.SpendingPattern
		err := r.Scan(&sp.ID, &sp.UserID, &sp.PatternType, &sp.CategoryID, &sp.CategoryName, &sp.Description, &sp.Trend, &sp.Data,
			&sp.ConfidenceScore, &sp.SampleSize, &sp.AnalysisFrom, &sp.AnalysisTo, &sp.CreatedAt)
		return sp, err
	})
}

const insightColumns = `id, user_id, insight_type, title, description, priority, relevance_score, data,
	category_id, budget_id, goal_id, potential_savings, is_read, is_dismissed, is_acted_upon, feedback,
	generated_at, expires_at`

func scanInsight(r pgx.Row) (domain.FinancialInsight, error) {
	var in domain.FinancialInsight
	err := r.Scan(&in.ID, &in.UserID, &in.InsightType, &in.Title, &in.Description, &in.Priority, &in.RelevanceScore, &in.Data,
		&in.CategoryID, &in.BudgetID, &in.GoalID, &in.PotentialSavings, &in.IsRead, &in.IsDismissed, &in.IsActedUpon, &in.Feedback,
		&in.GeneratedAt, &in.ExpiresAt)
	return in, err
}

func (p *Postgres) CreateInsight(ctx context.Context, in *domain.FinancialInsight) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO financial_insights (user_id, insight_type, title, description, priority, relevance_score,
			data, category_id, budget_id, goal_id, potential_savings, is_read, is_dismissed, is_acted_upon,
			feedback, generated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		in.UserID, in.InsightType, in.Title, in.Description, in.Priority, in.RelevanceScore,
		in.Data, in.CategoryID, in.BudgetID, in.GoalID, in.PotentialSavings, in.IsRead, in.IsDismissed, in.IsActedUpon,
		in.Feedback, in.GeneratedAt, in.ExpiresAt,
	).Scan(&in.ID)
	return wrap("create insight", err)
}

func (p *Postgres) GetInsight(ctx context.Context, userID, id int64) (domain.FinancialInsight, error) {
	return one("get insight", p.pool.QueryRow(ctx,
		`SELECT `+insightColumns+` FROM financial_insights WHERE user_id = $1 AND id = $2`, userID, id), scanInsight)
}

// UpdateInsight stores the user's reaction to an insight.
func (p *Postgres) UpdateInsight(ctx context.Context, in *domain.FinancialInsight) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE financial_insights SET is_read = $3, is_dismissed = $4, is_acted_upon = $5, feedback = $6
		WHERE user_id = $1 AND id = $2`,
		in.UserID, in.ID, in.IsRead, in.IsDismissed, in.IsActedUpon, in.Feedback)
	return affected("update insight", tag, err)
}

func (p *Postgres) ListInsights(ctx context.Context, userID int64) ([]domain.FinancialInsight, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+insightColumns+` FROM financial_insights WHERE user_id = $1
		ORDER BY generated_at DESC, id DESC`, userID)
	return collect("list insights", rows, err, scanInsight)
}

func (p *Postgres) DeleteExpiredInsights(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM financial_insights WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, wrap("delete expired insights", err)
	}
	return tag.RowsAffected(), nil
}

const predictionColumns = `id, user_id, prediction_type, category_id, category_name, prediction_month,
	predicted_amount, lower_bound, upper_bound, model_accuracy, sample_size, actual_amount,
	prediction_error, created_at`

// UpsertPrediction replaces the prediction for the same type, category and
// month.
func (p *Postgres) UpsertPrediction(ctx context.Context, bp *domain.BudgetPrediction) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO budget_predictions (user_id, prediction_type, category_id, category_name, prediction_month,
			predicted_amount, lower_bound, upper_bound, model_accuracy, sample_size, actual_amount,
			prediction_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, prediction_type, category_name, prediction_month) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			predicted_amount = EXCLUDED.predicted_amount,
			lower_bound = EXCLUDED.lower_bound,
			upper_bound = EXCLUDED.upper_bound,
			model_accuracy = EXCLUDED.model_accuracy,
			sample_size = EXCLUDED.sample_size,
			actual_amount = EXCLUDED.actual_amount,
			prediction_error = EXCLUDED.prediction_error
		RETURNING id, created_at`,
		bp.UserID, bp.PredictionType, bp.CategoryID, bp.CategoryName, domain.DateOnly(bp.PredictionMonth),
		bp.PredictedAmount, bp.LowerBound, bp.UpperBound, bp.ModelAccuracy, bp.SampleSize, bp.ActualAmount,
		bp.PredictionError, bp.CreatedAt,
	).Scan(&bp.ID, &bp.CreatedAt)
	return wrap("upsert prediction", err)
}

func (p *Postgres) ListPredictions(ctx context.Context, userID int64) ([]domain.BudgetPrediction, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+predictionColumns+` FROM budget_predictions WHERE user_id = $1
		ORDER BY prediction_month DESC, prediction_type, category_name`, userID)
	return collect("list predictions", rows, err, func(r pgx.Row) (domain.BudgetPrediction, error) {
		var bp domain.BudgetPrediction
		err := r.Scan(&bp.ID, &bp.UserID, &bp.PredictionType, &bp.CategoryID, &bp.CategoryName, &bp.PredictionMonth,
			&bp.PredictedAmount, &bp.LowerBound, &bp.UpperBound, &bp.ModelAccuracy, &bp.SampleSize, &bp.ActualAmount,
			&bp.PredictionError, &bp.CreatedAt)
		return bp, err
	})
}

func (p *Postgres) DeletePredictionsBefore(ctx context.Context, userID int64, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM budget_predictions WHERE user_id = $1 AND created_at < $2`, userID, cutoff)
	if err != nil {
		return 0, wrap("delete predictions", err)
	}
	return tag.RowsAffected(), nil
}
