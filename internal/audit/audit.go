// Package audit keeps the append-only trail of bank API calls and security
// events.
package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type EventKind string

const (
	EventLoginSuccess       EventKind = "login_success"
	EventLoginFailure       EventKind = "login_failure"
	EventPasswordChanged    EventKind = "password_changed"
	EventCredentialsConnect EventKind = "credentials_connected"
	EventCredentialsRemoved EventKind = "credentials_disconnected"
	EventRegistered         EventKind = "registered"
)

type SecurityEvent struct {
	Kind      EventKind      `json:"kind" bson:"kind"`
	UserID    int64          `json:"user_id" bson:"user_id"`
	Detail    map[string]any `json:"detail,omitempty" bson:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
}

// Filter narrows Recent. Zero values match everything.
type Filter struct {
	UserID   int64
	BankCode domain.BankCode
	Status   domain.APICallStatus
}

type Sink interface {
	RecordAPICall(ctx context.Context, entry domain.APILog) error
	RecordSecurityEvent(ctx context.Context, ev SecurityEvent) error
	Recent(ctx context.Context, f Filter, limit int) ([]domain.APILog, error)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordAPICall(context.Context, domain.APILog) error       { return nil }
func (NopSink) RecordSecurityEvent(context.Context, SecurityEvent) error { return nil }
func (NopSink) Recent(context.Context, Filter, int) ([]domain.APILog, error) {
	return []domain.APILog{}, nil
}

// MemorySink keeps entries in memory.
type MemorySink struct {
	mu     sync.Mutex
	calls  []domain.APILog
	events []SecurityEvent
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) RecordAPICall(_ context.Context, entry domain.APILog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, entry)
	return nil
}

func (m *MemorySink) RecordSecurityEvent(_ context.Context, ev SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemorySink) Recent(_ context.Context, f Filter, limit int) ([]domain.APILog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.APILog{}
	for _, c := range m.calls {
		if f.matches(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemorySink) Events() []SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SecurityEvent(nil), m.events...)
}

func (f Filter) matches(c domain.APILog) bool {
	if f.UserID != 0 && c.UserID != f.UserID {
		return false
	}
	if f.BankCode != "" && c.BankCode != f.BankCode {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}
