package domain

import "time"

type NotificationType string

const (
	NotifyBudgetAlert     NotificationType = "budget_alert"
	NotifyGoalUpdate      NotificationType = "goal_update"
	NotifyTransaction     NotificationType = "transaction_alert"
	NotifySystemUpdate    NotificationType = "system_update"
	NotifySharedExpense   NotificationType = "shared_expense"
	NotifyPaymentReminder NotificationType = "payment_reminder"
	NotifyInsight         NotificationType = "insight"
	NotifySecurity        NotificationType = "security"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities from low (1) to urgent (4).
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

type Notification struct {
	ID                   int64            `json:"id"`
	UserID               int64            `json:"user_id"`
	Type                 NotificationType `json:"notification_type"`
	Title                string           `json:"title"`
	Message              string           `json:"message"`
	Priority             Priority         `json:"priority"`
	Data                 map[string]any   `json:"data,omitempty"`
	RelatedTransactionID *int64           `json:"related_transaction_id,omitempty"`
	RelatedBudgetID      *int64           `json:"related_budget_id,omitempty"`
	RelatedGoalID        *int64           `json:"related_goal_id,omitempty"`
	IsRead               bool             `json:"is_read"`
	IsDismissed          bool             `json:"is_dismissed"`
	ReadAt               *time.Time       `json:"read_at,omitempty"`
	DismissedAt          *time.Time       `json:"dismissed_at,omitempty"`
	SentViaEmail         bool             `json:"sent_via_email"`
	SentViaPush          bool             `json:"sent_via_push"`
	SentViaSMS           bool             `json:"sent_via_sms"`
	CreatedAt            time.Time        `json:"created_at"`
}

type NotificationFilter struct {
	UserID     int64
	UnreadOnly bool
	// Undismissed hides dismissed notifications.
	Undismissed bool
	MinPriority Priority
	Limit       int
}
