package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const periodColumns = `id, name, period_type, start_date, end_date, is_active, created_at, updated_at`

func scanPeriod(r pgx.Row) (domain.BudgetPeriod, error) {
	var p domain.BudgetPeriod
	err := r.Scan(&p.ID, &p.Name, &p.PeriodType, &p.StartDate, &p.EndDate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (p *Postgres) ListPeriods(ctx context.Context, activeOnly bool) ([]domain.BudgetPeriod, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+periodColumns+` FROM budget_periods
		WHERE is_active OR NOT $1
		ORDER BY start_date DESC, id`, activeOnly)
	return collect("list periods", rows, err, scanPeriod)
}

func (p *Postgres) GetPeriod(ctx context.Context, id int64) (domain.BudgetPeriod, error) {
	return one("get period", p.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM budget_periods WHERE id = $1`, id), scanPeriod)
}

func (p *Postgres) CreatePeriod(ctx context.Context, bp *domain.BudgetPeriod) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO budget_periods (name, period_type, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		bp.Name, bp.PeriodType, bp.StartDate, bp.EndDate, bp.IsActive,
	).Scan(&bp.ID, &bp.CreatedAt, &bp.UpdatedAt)
	return wrap("create period", err)
}

// EnsurePeriod reuses the stored period with the same type and dates.
func (p *Postgres) EnsurePeriod(ctx context.Context, bp *domain.BudgetPeriod) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO budget_periods (name, period_type, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (period_type, start_date, end_date) DO UPDATE SET name = budget_periods.name
		RETURNING id, name, is_active, created_at, updated_at`,
		bp.Name, bp.PeriodType, bp.StartDate, bp.EndDate, bp.IsActive,
	).Scan(&bp.ID, &bp.Name, &bp.IsActive, &bp.CreatedAt, &bp.UpdatedAt)
	return wrap("ensure period", err)
}

const budgetSelect = `
	SELECT b.id, b.user_id, b.name, b.description, b.period_id, b.total_amount, b.currency, b.status,
		b.is_shared, b.alert_type, b.alert_threshold, b.allow_rollover, b.rollover_limit, b.total_spent,
		b.total_remaining, b.percentage_used, b.last_calculated, b.alert_sent_at, b.created_at, b.updated_at,
		p.id, p.name, p.period_type, p.start_date, p.end_date, p.is_active, p.created_at, p.updated_at
	FROM budgets b JOIN budget_periods p ON p.id = b.period_id`

func scanBudget(r pgx.Row) (domain.Budget, error) {
	var b domain.Budget
	var p domain.BudgetPeriod
	err := r.Scan(&b.ID, &b.UserID, &b.Name, &b.Description, &b.PeriodID, &b.TotalAmount, &b.Currency, &b.Status,
		&b.IsShared, &b.AlertType, &b.AlertThreshold, &b.AllowRollover, &b.RolloverLimit, &b.TotalSpent,
		&b.TotalRemaining, &b.PercentageUsed, &b.LastCalculated, &b.AlertSentAt, &b.CreatedAt, &b.UpdatedAt,
		&p.ID, &p.Name, &p.PeriodType, &p.StartDate, &p.EndDate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	b.Period = &p
	return b, err
}

const itemSelect = `
	SELECT i.id, i.budget_id, i.category_id, c.name, i.budgeted_amount, i.spent_amount,
		i.remaining_amount, i.percentage_used, i.is_flexible, i.notes, i.created_at, i.updated_at
	FROM budget_items i JOIN categories c ON c.id = i.category_id`

func scanItem(r pgx.Row) (domain.BudgetItem, error) {
	var it domain.BudgetItem
	err := r.Scan(&it.ID, &it.BudgetID, &it.CategoryID, &it.CategoryName, &it.BudgetedAmount, &it.SpentAmount,
		&it.RemainingAmount, &it.PercentageUsed, &it.IsFlexible, &it.Notes, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// withItems loads the items of every budget in one query.
func (p *Postgres) withItems(ctx context.Context, budgets []domain.Budget) ([]domain.Budget, error) {
	if len(budgets) == 0 {
		return budgets, nil
	}
	ids := make([]int64, len(budgets))
	for i, b := range budgets {
		ids[i] = b.ID
	}
	rows, err := p.pool.Query(ctx, itemSelect+` WHERE i.budget_id = ANY($1) ORDER BY i.id`, ids)
	items, err := collect("list budget items", rows, err, scanItem)
	if err != nil {
		return nil, err
	}
	byBudget := map[int64][]domain.BudgetItem{}
	for _, it := range items {
		byBudget[it.BudgetID] = append(byBudget[it.BudgetID], it)
	}
	for i := range budgets {
		budgets[i].Items = byBudget[budgets[i].ID]
	}
	return budgets, nil
}

// ListBudgets returns the user's budgets with the given status, or all of
// them when status is empty.
func (p *Postgres) ListBudgets(ctx context.Context, userID int64, status domain.BudgetStatus) ([]domain.Budget, error) {
	rows, err := p.pool.Query(ctx, budgetSelect+`
		WHERE b.user_id = $1 AND ($2::text = '' OR b.status = $2)
		ORDER BY p.start_date DESC, b.name`, userID, string(status))
	budgets, err := collect("list budgets", rows, err, scanBudget)
	if err != nil {
		return nil, err
	}
	return p.withItems(ctx, budgets)
}

func (p *Postgres) ListBudgetsOn(ctx context.Context, userID int64, day time.Time) ([]domain.Budget, error) {
	rows, err := p.pool.Query(ctx, budgetSelect+`
		WHERE b.user_id = $1 AND b.status = 'active' AND p.start_date <= $2 AND p.end_date >= $2
		ORDER BY b.id`, userID, domain.DateOnly(day))
	budgets, err := collect("list budgets on", rows, err, scanBudget)
	if err != nil {
		return nil, err
	}
	return p.withItems(ctx, budgets)
}

func (p *Postgres) GetBudget(ctx context.Context, userID, id int64) (domain.Budget, error) {
	b, err := one("get budget", p.pool.QueryRow(ctx, budgetSelect+` WHERE b.user_id = $1 AND b.id = $2`, userID, id), scanBudget)
	if err != nil {
		return b, err
	}
	out, err := p.withItems(ctx, []domain.Budget{b})
	if err != nil {
		return domain.Budget{}, err
	}
	return out[0], nil
}

func insertBudget(ctx context.Context, q querier, b *domain.Budget) error {
	err := q.QueryRow(ctx, `
		INSERT INTO budgets (user_id, name, description, period_id, total_amount, currency, status,
			is_shared, alert_type, alert_threshold, allow_rollover, rollover_limit, total_spent,
			total_remaining, percentage_used, last_calculated, alert_sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`,
		b.UserID, b.Name, b.Description, b.PeriodID, b.TotalAmount, b.Currency, b.Status,
		b.IsShared, b.AlertType, b.AlertThreshold, b.AllowRollover, b.RolloverLimit, b.TotalSpent,
		b.TotalRemaining, b.PercentageUsed, b.LastCalculated, b.AlertSentAt,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range b.Items {
		b.Items[i].BudgetID = b.ID
		if err := insertItem(ctx, q, &b.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertItem(ctx context.Context, q querier, it *domain.BudgetItem) error {
	return q.QueryRow(ctx, `
		INSERT INTO budget_items (budget_id, category_id, budgeted_amount, spent_amount, remaining_amount,
			percentage_used, is_flexible, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		it.BudgetID, it.CategoryID, it.BudgetedAmount, it.SpentAmount, it.RemainingAmount,
		it.PercentageUsed, it.IsFlexible, it.Notes,
	).Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
}

// CreateBudget stores the budget and its items together.
func (p *Postgres) CreateBudget(ctx context.Context, b *domain.Budget) error {
	return wrap("create budget", p.inTx(ctx, func(tx pgx.Tx) error {
		return insertBudget(ctx, tx, b)
	}))
}

// UpdateBudget stores the header fields only. Items have their own calls.
func (p *Postgres) UpdateBudget(ctx context.Context, b *domain.Budget) error {
	return wrap("update budget", updateBudget(ctx, p.pool, b))
}

func updateBudget(ctx context.Context, q querier, b *domain.Budget) error {
	return q.QueryRow(ctx, `
		UPDATE budgets SET name = $3, description = $4, period_id = $5, total_amount = $6, currency = $7,
			status = $8, is_shared = $9, alert_type = $10, alert_threshold = $11, allow_rollover = $12,
			rollover_limit = $13, alert_sent_at = $14, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at`,
		b.UserID, b.ID, b.Name, b.Description, b.PeriodID, b.TotalAmount, b.Currency,
		b.Status, b.IsShared, b.AlertType, b.AlertThreshold, b.AllowRollover,
		b.RolloverLimit, b.AlertSentAt,
	).Scan(&b.UpdatedAt)
}

func (p *Postgres) DeleteBudget(ctx context.Context, userID, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM budgets WHERE user_id = $1 AND id = $2`, userID, id)
	return affected("delete budget", tag, err)
}

func (p *Postgres) SaveBudgetTotals(ctx context.Context, b *domain.Budget) error {
	return wrap("save budget totals", p.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE budgets SET total_spent = $2, total_remaining = $3, percentage_used = $4,
				last_calculated = $5, alert_sent_at = $6
			WHERE id = $1`,
			b.ID, b.TotalSpent, b.TotalRemaining, b.PercentageUsed, b.LastCalculated, b.AlertSentAt)
		if err != nil {
			return err
		}
		for _, it := range b.Items {
			_, err := tx.Exec(ctx, `
				UPDATE budget_items SET spent_amount = $2, remaining_amount = $3, percentage_used = $4
				WHERE id = $1`, it.ID, it.SpentAmount, it.RemainingAmount, it.PercentageUsed)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

func (p *Postgres) MarkBudgetAlertSent(ctx context.Context, id int64, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `UPDATE budgets SET alert_sent_at = $2 WHERE id = $1`, id, at)
	return affected("mark budget alert sent", tag, err)
}

func (p *Postgres) RolloverBudget(ctx context.Context, prev, next *domain.Budget) error {
	return wrap("rollover budget", p.inTx(ctx, func(tx pgx.Tx) error {
		if err := updateBudget(ctx, tx, prev); err != nil {
			return err
		}
		return insertBudget(ctx, tx, next)
	}))
}

func (p *Postgres) CreateBudgetItem(ctx context.Context, it *domain.BudgetItem) error {
	return wrap("create budget item", insertItem(ctx, p.pool, it))
}

func (p *Postgres) UpdateBudgetItem(ctx context.Context, it *domain.BudgetItem) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE budget_items SET category_id = $3, budgeted_amount = $4, is_flexible = $5, notes = $6,
			updated_at = now()
		WHERE budget_id = $1 AND id = $2
		RETURNING updated_at`,
		it.BudgetID, it.ID, it.CategoryID, it.BudgetedAmount, it.IsFlexible, it.Notes,
	).Scan(&it.UpdatedAt)
	return wrap("update budget item", err)
}

func (p *Postgres) DeleteBudgetItem(ctx context.Context, budgetID, itemID int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM budget_items WHERE budget_id = $1 AND id = $2`, budgetID, itemID)
	return affected("delete budget item", tag, err)
}

const templateColumns = `id, name, description, created_by, is_public, is_system_default, times_used,
	created_at, updated_at`

func scanTemplate(r pgx.Row) (domain.BudgetTemplate, error) {
	var t domain.BudgetTemplate
	err := r.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.IsPublic, &t.IsSystemDefault, &t.TimesUsed,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (p *Postgres) withTemplateItems(ctx context.Context, templates []domain.BudgetTemplate) ([]domain.BudgetTemplate, error) {
	if len(templates) == 0 {
		return templates, nil
	}
	ids := make([]int64, len(templates))
	for i, t := range templates {
		ids[i] = t.ID
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, template_id, category_id, percentage, notes
		FROM budget_template_items WHERE template_id = ANY($1) ORDER BY id`, ids)
	items, err := collect("list template items", rows, err, func(r pgx.Row) (domain.BudgetTemplateItem, error) {
		var it domain.BudgetTemplateItem
		err := r.Scan(&it.ID, &it.TemplateID, &it.CategoryID, &it.Percentage, &it.Notes)
		return it, err
	})
	if err != nil {
		return nil, err
	}
	byTemplate := map[int64][]domain.BudgetTemplateItem{}
	for _, it := range items {
		byTemplate[it.TemplateID] = append(byTemplate[it.TemplateID], it)
	}
	for i := range templates {
		templates[i].Items = byTemplate[templates[i].ID]
	}
	return templates, nil
}

// ListTemplates returns the system, public and the user's own templates.
func (p *Postgres) ListTemplates(ctx context.Context, userID int64) ([]domain.BudgetTemplate, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+templateColumns+` FROM budget_templates
		WHERE is_system_default OR is_public OR created_by = $1
		ORDER BY is_system_default DESC, times_used DESC, name`, userID)
	templates, err := collect("list templates", rows, err, scanTemplate)
	if err != nil {
		return nil, err
	}
	return p.withTemplateItems(ctx, templates)
}

func (p *Postgres) GetTemplate(ctx context.Context, id int64) (domain.BudgetTemplate, error) {
	t, err := one("get template", p.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM budget_templates WHERE id = $1`, id), scanTemplate)
	if err != nil {
		return t, err
	}
	out, err := p.withTemplateItems(ctx, []domain.BudgetTemplate{t})
	if err != nil {
		return domain.BudgetTemplate{}, err
	}
	return out[0], nil
}

func (p *Postgres) CreateTemplate(ctx context.Context, t *domain.BudgetTemplate) error {
	return wrap("create template", p.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO budget_templates (name, description, created_by, is_public, is_system_default)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, times_used, created_at, updated_at`,
			t.Name, t.Description, t.CreatedBy, t.IsPublic, t.IsSystemDefault,
		).Scan(&t.ID, &t.TimesUsed, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range t.Items {
			it := &t.Items[i]
			it.TemplateID = t.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO budget_template_items (template_id, category_id, percentage, notes)
				VALUES ($1, $2, $3, $4) RETURNING id`,
				it.TemplateID, it.CategoryID, it.Percentage, it.Notes,
			).Scan(&it.ID)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

func (p *Postgres) IncrementTemplateUse(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `UPDATE budget_templates SET times_used = times_used + 1 WHERE id = $1`, id)
	return affected("increment template use", tag, err)
}

const goalColumns = `id, user_id, name, description, goal_type, target_amount, current_amount,
	monthly_contribution, currency, start_date, target_date, completion_date, status, priority,
	linked_account_id, auto_contribute, contribution_frequency, created_at, updated_at`

func scanGoal(r pgx.Row) (domain.BudgetGoal, error) {
	var g domain.BudgetGoal
	err := r.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &g.GoalType, &g.TargetAmount, &g.CurrentAmount,
		&g.MonthlyContribution, &g.Currency, &g.StartDate, &g.TargetDate, &g.CompletionDate, &g.Status, &g.Priority,
		&g.LinkedAccountID, &g.AutoContribute, &g.ContributionFrequency, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (p *Postgres) ListGoals(ctx context.Context, userID int64) ([]domain.BudgetGoal, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+goalColumns+` FROM budget_goals WHERE user_id = $1
		ORDER BY priority DESC, target_date, id`, userID)
	return collect("list goals", rows, err, scanGoal)
}

func (p *Postgres) GetGoal(ctx context.Context, userID, id int64) (domain.BudgetGoal, error) {
	return one("get goal", p.pool.QueryRow(ctx,
		`SELECT `+goalColumns+` FROM budget_goals WHERE user_id = $1 AND id = $2`, userID, id), scanGoal)
}

func (p *Postgres) CreateGoal(ctx context.Context, g *domain.BudgetGoal) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO budget_goals (user_id, name, description, goal_type, target_amount, current_amount,
			monthly_contribution, currency, start_date, target_date, completion_date, status, priority,
			linked_account_id, auto_contribute, contribution_frequency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`,
		g.UserID, g.Name, g.Description, g.GoalType, g.TargetAmount, g.CurrentAmount,
		g.MonthlyContribution, g.Currency, g.StartDate, g.TargetDate, g.CompletionDate, g.Status, g.Priority,
		g.LinkedAccountID, g.AutoContribute, g.ContributionFrequency,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	return wrap("create goal", err)
}

func (p *Postgres) UpdateGoal(ctx context.Context, g *domain.BudgetGoal) error {
	return wrap("update goal", updateGoal(ctx, p.pool, g))
}

func updateGoal(ctx context.Context, q querier, g *domain.BudgetGoal) error {
	return q.QueryRow(ctx, `
		UPDATE budget_goals SET name = $3, description = $4, goal_type = $5, target_amount = $6,
			current_amount = $7, monthly_contribution = $8, currency = $9, start_date = $10,
			target_date = $11, completion_date = $12, status = $13, priority = $14,
			linked_account_id = $15, auto_contribute = $16, contribution_frequency = $17,
			updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at`,
		g.UserID, g.ID, g.Name, g.Description, g.GoalType, g.TargetAmount,
		g.CurrentAmount, g.MonthlyContribution, g.Currency, g.StartDate,
		g.TargetDate, g.CompletionDate, g.Status, g.Priority,
		g.LinkedAccountID, g.AutoContribute, g.ContributionFrequency,
	).Scan(&g.UpdatedAt)
}

func (p *Postgres) DeleteGoal(ctx context.Context, userID, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM budget_goals WHERE user_id = $1 AND id = $2`, userID, id)
	return affected("delete goal", tag, err)
}

func (p *Postgres) AddGoalContribution(ctx context.Context, g *domain.BudgetGoal, c *domain.GoalContribution) error {
	return wrap("add goal contribution", p.inTx(ctx, func(tx pgx.Tx) error {
		if err := updateGoal(ctx, tx, g); err != nil {
			return err
		}
		c.GoalID = g.ID
		return tx.QueryRow(ctx, `
			INSERT INTO goal_contributions (goal_id, amount, description, transaction_id, contributed_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			c.GoalID, c.Amount, c.Description, c.TransactionID, c.ContributedAt,
		).Scan(&c.ID)
	}))
}

const contributionColumns = `c.id, c.goal_id, c.amount, c.description, c.transaction_id, c.contributed_at`

func scanContribution(r pgx.Row) (domain.GoalContribution, error) {
	var c domain.GoalContribution
	err := r.Scan(&c.ID, &c.GoalID, &c.Amount, &c.Description, &c.TransactionID, &c.ContributedAt)
	return c, err
}

func (p *Postgres) ListGoalContributions(ctx context.Context, goalID int64) ([]domain.GoalContribution, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+contributionColumns+` FROM goal_contributions c
		WHERE c.goal_id = $1 ORDER BY c.contributed_at DESC, c.id DESC`, goalID)
	return collect("list goal contributions", rows, err, scanContribution)
}

// GoalContributionsBetween returns contributions to any of the user's goals
// made in [from, to).
func (p *Postgres) GoalContributionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.GoalContribution, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+contributionColumns+` FROM goal_contributions c
		JOIN budget_goals g ON g.id = c.goal_id
		WHERE g.user_id = $1 AND c.contributed_at >= $2 AND c.contributed_at < $3
		ORDER BY c.contributed_at, c.id`, userID, from, to)
	return collect("goal contributions between", rows, err, scanContribution)
}
