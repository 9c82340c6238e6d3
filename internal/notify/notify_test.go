package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type fakeStore struct {
	user     domain.User
	pref     *domain.UserPreference
	created  []domain.Notification
	delivery map[int64][3]bool
	readAll  int64
}

func (f *fakeStore) CreateNotification(_ context.Context, n *domain.Notification) error {
	n.ID = int64(len(f.created) + 1)
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeStore) ListNotifications(_ context.Context, flt domain.NotificationFilter) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range f.created {
		if n.UserID != flt.UserID || (flt.UnreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, userID, id int64, at time.Time) error {
	for i := range f.created {
		if f.created[i].ID == id && f.created[i].UserID == userID {
			f.created[i].IsRead = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeStore) MarkAllNotificationsRead(context.Context, int64, time.Time) (int64, error) {
	return f.readAll, nil
}

func (f *fakeStore) DismissNotification(context.Context, int64, int64, time.Time) error { return nil }

func (f *fakeStore) SetNotificationDelivery(_ context.Context, id int64, email, push, sms bool) error {
	if f.delivery == nil {
		f.delivery = map[int64][3]bool{}
	}
	f.delivery[id] = [3]bool{email, push, sms}
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	if id != f.user.ID {
		return domain.User{}, domain.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeStore) GetPreference(_ context.Context, userID int64) (domain.UserPreference, error) {
	if f.pref == nil {
		return domain.UserPreference{}, domain.ErrNotFound
	}
	return *f.pref, nil
}

type fakePublisher struct {
	msgs []Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, m Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, m)
	return nil
}

type fakeChat struct {
	sent map[int64]string
}

func (c *fakeChat) SendMessage(chatID int64, text string) error {
	if c.sent == nil {
		c.sent = map[int64]string{}
	}
	c.sent[chatID] = text
	return nil
}

func TestNotifyDeliversToBrokerAndTelegram(t *testing.T) {
	store := &fakeStore{user: domain.User{ID: 7, Email: "nimal@example.com", EnableNotifications: true, EnableEmailAlerts: true, TelegramChatID: 99}}
	pub := &fakePublisher{}
	chat := &fakeChat{}
	svc := NewService(store, pub, chat, zerolog.Nop())

	n, err := svc.Notify(context.Background(), domain.Notification{UserID: 7, Type: domain.NotifyBudgetAlert, Title: "Budget", Message: "80% used"})
	if err != nil {
		t.Fatal(err)
	}
	if n.ID == 0 || n.Priority != domain.PriorityMedium {
		t.Errorf("notification not stored with defaults: %+v", n)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Email != "nimal@example.com" || pub.msgs[0].NotificationID != n.ID {
		t.Errorf("published %+v", pub.msgs)
	}
	if chat.sent[99] == "" {
		t.Error("telegram message not sent")
	}
	if got := store.delivery[n.ID]; !got[0] || !got[1] {
		t.Errorf("delivery flags %v", got)
	}
}

func TestNotifyDeliveryFailureIsNotAnError(t *testing.T) {
	store := &fakeStore{user: domain.User{ID: 1, EnableNotifications: true}}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewService(store, pub, nil, zerolog.Nop())

	if _, err := svc.Notify(context.Background(), domain.Notification{UserID: 1, Title: "x"}); err != nil {
		t.Fatalf("delivery failure leaked: %v", err)
	}
	if len(store.created) != 1 {
		t.Error("notification must still be stored")
	}
}

func TestNotifyRespectsUserSwitches(t *testing.T) {
	off := domain.DefaultPreference(1, "UTC")
	off.PushNotifications = false
	store := &fakeStore{user: domain.User{ID: 1, TelegramChatID: 5}, pref: &off}
	pub := &fakePublisher{}
	chat := &fakeChat{}
	svc := NewService(store, pub, chat, zerolog.Nop())

	if _, err := svc.Notify(context.Background(), domain.Notification{UserID: 1, Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(pub.msgs) != 0 || len(chat.sent) != 0 {
		t.Error("disabled channels were used")
	}
}

func TestNotifyUnknownUser(t *testing.T) {
	svc := NewService(&fakeStore{user: domain.User{ID: 1}}, nil, nil, zerolog.Nop())
	if _, err := svc.Notify(context.Background(), domain.Notification{UserID: 2}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	store := &fakeStore{user: domain.User{ID: 3}}
	svc := NewService(store, nil, nil, zerolog.Nop())
	n, _ := svc.Notify(context.Background(), domain.Notification{UserID: 3, Title: "hi"})

	if err := svc.MarkRead(context.Background(), 3, n.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkRead(context.Background(), 4, n.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Error("other user's notification marked read")
	}
	unread, _ := svc.List(context.Background(), 3, true, 0)
	if len(unread) != 0 {
		t.Errorf("unread = %d", len(unread))
	}
}
