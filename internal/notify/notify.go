// Package notify is the port through which budget alerts leave the engine.
package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ledger/internal/log"
)

// Notification is a user-facing message. DelaySeconds, when set, asks the
// transport to hold delivery for that long.
type Notification struct {
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Payload      map[string]any `json:"payload,omitempty"`
	DelaySeconds *int           `json:"delaySeconds,omitempty"`
}

// Handle identifies a scheduled notification.
type Handle string

func NewHandle() Handle {
	return Handle(uuid.NewString())
}

// Notifier schedules notifications for delivery.
type Notifier interface {
	Schedule(ctx context.Context, n Notification) (Handle, error)
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogNotifier{logger: logger.WithComponent(log.ComponentAlerts)}
}

func (l *LogNotifier) Schedule(ctx context.Context, n Notification) (Handle, error) {
	h := NewHandle()
	args := []any{"handle", h, "title", n.Title, "body", n.Body}
	if n.DelaySeconds != nil {
		args = append(args, "delay_seconds", *n.DelaySeconds)
	}
	for k, v := range n.Payload {
		args = append(args, "payload_"+k, v)
	}
	l.logger.InfoContext(ctx, "Notification scheduled", args...)
	return h, nil
}

// Recorder keeps every scheduled notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

func (r *Recorder) Schedule(_ context.Context, n Notification) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	r.sent = append(r.sent, n)
	return NewHandle(), nil
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}
