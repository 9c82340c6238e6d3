// Package notify persists user notifications and fans them out to the
// message broker and Telegram.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type Store interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, f domain.NotificationFilter) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	DismissNotification(ctx context.Context, userID, id int64, at time.Time) error
	SetNotificationDelivery(ctx context.Context, id int64, email, push, sms bool) error
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetPreference(ctx context.Context, userID int64) (domain.UserPreference, error)
}

type Service struct {
	store     Store
	publisher Publisher
	chat      ChatSender
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires the notifier. chat may be nil when Telegram is not
// configured.
func NewService(store Store, publisher Publisher, chat ChatSender, log zerolog.Logger) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{store: store, publisher: publisher, chat: chat, log: log, now: time.Now}
}

// Notify stores n and then delivers it. Delivery failures are logged and
// never returned.
func (s *Service) Notify(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if n.Priority == "" {
		n.Priority = domain.PriorityMedium
	}
	n.CreatedAt = s.now().UTC()

	user, err := s.store.GetUser(ctx, n.UserID)
	if err != nil {
		return n, err
	}
	pref, err := s.store.GetPreference(ctx, n.UserID)
	if err != nil {
		pref = domain.DefaultPreference(n.UserID, user.Timezone)
	}

	if err := s.store.CreateNotification(ctx, &n); err != nil {
		return n, err
	}

	if user.EnableNotifications {
		msg := Message{
			NotificationID: n.ID,
			UserID:         n.UserID,
			Type:           n.Type,
			Title:          n.Title,
			Message:        n.Message,
			Priority:       n.Priority,
			Data:           n.Data,
			CreatedAt:      n.CreatedAt,
		}
		if user.EnableEmailAlerts && pref.EmailNotifications {
			msg.Email = user.Email
		}
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.log.Error().Err(err).Int64("user_id", n.UserID).Msg("failed to publish notification")
		} else {
			n.SentViaEmail = msg.Email != ""
		}
	}

	if s.chat != nil && user.TelegramChatID != 0 && pref.PushNotifications {
		if err := s.chat.SendMessage(user.TelegramChatID, formatChat(n.Title, n.Message)); err != nil {
			s.log.Error().Err(err).Int64("user_id", n.UserID).Msg("failed to send telegram notification")
		} else {
			n.SentViaPush = true
		}
	}

	if n.SentViaEmail || n.SentViaPush {
		if err := s.store.SetNotificationDelivery(ctx, n.ID, n.SentViaEmail, n.SentViaPush, n.SentViaSMS); err != nil {
			s.log.Warn().Err(err).Int64("notification_id", n.ID).Msg("failed to record delivery")
		}
	}
	return n, nil
}

// Emit is Notify for callers that only log failures.
func (s *Service) Emit(ctx context.Context, n domain.Notification) {
	if _, err := s.Notify(ctx, n); err != nil {
		s.log.Error().Err(err).Int64("user_id", n.UserID).Str("type", string(n.Type)).Msg("failed to store notification")
	}
}

const defaultListLimit = 50

func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}
	return s.store.ListNotifications(ctx, domain.NotificationFilter{UserID: userID, UnreadOnly: unreadOnly, Limit: limit})
}

// Alerts returns the undismissed notifications at or above min priority.
func (s *Service) Alerts(ctx context.Context, userID int64, min domain.Priority, limit int) ([]domain.Notification, error) {
	return s.store.ListNotifications(ctx, domain.NotificationFilter{UserID: userID, Undismissed: true, MinPriority: min, Limit: limit})
}

func (s *Service) MarkRead(ctx context.Context, userID, id int64) error {
	return s.store.MarkNotificationRead(ctx, userID, id, s.now().UTC())
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID, s.now().UTC())
}

func (s *Service) Dismiss(ctx context.Context, userID, id int64) error {
	return s.store.DismissNotification(ctx, userID, id, s.now().UTC())
}
