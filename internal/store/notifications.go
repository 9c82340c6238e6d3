package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const notificationColumns = `id, user_id, notification_type, title, message, priority, data,
	related_transaction_id, related_budget_id, related_goal_id, is_read, is_dismissed, read_at,
	dismissed_at, sent_via_email, sent_via_push, sent_via_sms, created_at`

func scanNotification(r pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	err := r.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Priority, &n.Data,
		&n.RelatedTransactionID, &n.RelatedBudgetID, &n.RelatedGoalID, &n.IsRead, &n.IsDismissed, &n.ReadAt,
		&n.DismissedAt, &n.SentViaEmail, &n.SentViaPush, &n.SentViaSMS, &n.CreatedAt)
	return n, err
}

const priorityRank = `CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'urgent' THEN 4 ELSE 0 END`

func (p *Postgres) CreateNotification(ctx context.Context, n *domain.Notification) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, notification_type, title, message, priority, data,
			related_transaction_id, related_budget_id, related_goal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		n.UserID, n.Type, n.Title, n.Message, n.Priority, n.Data,
		n.RelatedTransactionID, n.RelatedBudgetID, n.RelatedGoalID,
	).Scan(&n.ID, &n.CreatedAt)
	return wrap("create notification", err)
}

// ListNotifications returns the newest matching notifications first. A zero
// Limit returns all of them.
func (p *Postgres) ListNotifications(ctx context.Context, f domain.NotificationFilter) ([]domain.Notification, error) {
	where := []string{"user_id = $1"}
	args := []any{f.UserID}
	if f.UnreadOnly {
		where = append(where, "NOT is_read")
	}
	if f.Undismissed {
		where = append(where, "NOT is_dismissed")
	}
	if f.MinPriority != "" {
		args = append(args, f.MinPriority.Rank())
		where = append(where, fmt.Sprintf("%s >= $%d", priorityRank, len(args)))
	}
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := p.pool.Query(ctx, q, args...)
	return collect("list notifications", rows, err, scanNotification)
}

func (p *Postgres) MarkNotificationRead(ctx context.Context, userID, id int64, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE user_id = $1 AND id = $2`, userID, id, at)
	return affected("mark notification read", tag, err)
}

// MarkAllNotificationsRead reports how many unread notifications it marked.
func (p *Postgres) MarkAllNotificationsRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT is_read`, userID, at)
	if err != nil {
		return 0, wrap("mark all notifications read", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) DismissNotification(ctx context.Context, userID, id int64, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE notifications SET is_dismissed = TRUE, dismissed_at = COALESCE(dismissed_at, $3)
		WHERE user_id = $1 AND id = $2`, userID, id, at)
	return affected("dismiss notification", tag, err)
}

func (p *Postgres) SetNotificationDelivery(ctx context.Context, id int64, email, push, sms bool) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE notifications SET sent_via_email = $2, sent_via_push = $3, sent_via_sms = $4
		WHERE id = $1`, id, email, push, sms)
	return affected("set notification delivery", tag, err)
}
