package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const layoutColumns = `id, user_id, grid_columns, grid_margin, theme, sidebar_collapsed, show_help_tips,
	layout_config, created_at, updated_at`

func scanLayout(r pgx.Row) (domain.DashboardLayout, error) {
	var l domain.DashboardLayout
	err := r.Scan(&l.ID, &l.UserID, &l.GridColumns, &l.GridMargin, &l.Theme, &l.SidebarCollapsed, &l.ShowHelpTips,
		&l.LayoutConfig, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (p *Postgres) GetLayout(ctx context.Context, userID int64) (domain.DashboardLayout, error) {
	return one("get layout", p.pool.QueryRow(ctx,
		`SELECT `+layoutColumns+` FROM dashboard_layouts WHERE user_id = $1`, userID), scanLayout)
}

func (p *Postgres) CreateLayout(ctx context.Context, l *domain.DashboardLayout, widgets []domain.DashboardWidget) error {
	return wrap("create layout", p.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO dashboard_layouts (user_id, grid_columns, grid_margin, theme, sidebar_collapsed,
				show_help_tips, layout_config)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at`,
			l.UserID, l.GridColumns, l.GridMargin, l.Theme, l.SidebarCollapsed,
			l.ShowHelpTips, l.LayoutConfig,
		).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range widgets {
			if err := insertWidget(ctx, tx, &widgets[i]); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (p *Postgres) UpdateLayout(ctx context.Context, l *domain.DashboardLayout) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE dashboard_layouts SET grid_columns = $2, grid_margin = $3, theme = $4,
			sidebar_collapsed = $5, show_help_tips = $6, layout_config = $7, updated_at = now()
		WHERE user_id = $1
		RETURNING updated_at`,
		l.UserID, l.GridColumns, l.GridMargin, l.Theme,
		l.SidebarCollapsed, l.ShowHelpTips, l.LayoutConfig,
	).Scan(&l.UpdatedAt)
	return wrap("update layout", err)
}

const widgetColumns = `id, user_id, widget_type, title, size, position_x, position_y, configuration,
	is_visible, refresh_interval, cached_data, last_updated, created_at, updated_at`

func scanWidget(r pgx.Row) (domain.DashboardWidget, error) {
	var w domain.DashboardWidget
	err := r.Scan(&w.ID, &w.UserID, &w.WidgetType, &w.Title, &w.Size, &w.PositionX, &w.PositionY, &w.Configuration,
		&w.IsVisible, &w.RefreshInterval, &w.CachedData, &w.LastUpdated, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (p *Postgres) ListWidgets(ctx context.Context, userID int64) ([]domain.DashboardWidget, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+widgetColumns+` FROM dashboard_widgets WHERE user_id = $1
		ORDER BY position_y, position_x, id`, userID)
	return collect("list widgets", rows, err, scanWidget)
}

func (p *Postgres) GetWidget(ctx context.Context, userID, id int64) (domain.DashboardWidget, error) {
	return one("get widget", p.pool.QueryRow(ctx,
		`SELECT `+widgetColumns+` FROM dashboard_widgets WHERE user_id = $1 AND id = $2`, userID, id), scanWidget)
}

func insertWidget(ctx context.Context, q querier, w *domain.DashboardWidget) error {
	return q.QueryRow(ctx, `
		INSERT INTO dashboard_widgets (user_id, widget_type, title, size, position_x, position_y,
			configuration, is_visible, refresh_interval)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		w.UserID, w.WidgetType, w.Title, w.Size, w.PositionX, w.PositionY,
		w.Configuration, w.IsVisible, w.RefreshInterval,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

func (p *Postgres) CreateWidget(ctx context.Context, w *domain.DashboardWidget) error {
	return wrap("create widget", insertWidget(ctx, p.pool, w))
}

func (p *Postgres) UpdateWidget(ctx context.Context, w *domain.DashboardWidget) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE dashboard_widgets SET title = $3, size = $4, position_x = $5, position_y = $6,
			configuration = $7, is_visible = $8, refresh_interval = $9, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at`,
		w.UserID, w.ID, w.Title, w.Size, w.PositionX, w.PositionY,
		w.Configuration, w.IsVisible, w.RefreshInterval,
	).Scan(&w.UpdatedAt)
	return wrap("update widget", err)
}

// SaveWidgetData caches the computed widget payload.
func (p *Postgres) SaveWidgetData(ctx context.Context, id int64, data map[string]any, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE dashboard_widgets SET cached_data = $2, last_updated = $3 WHERE id = $1`, id, data, at)
	return affected("save widget data", tag, err)
}
