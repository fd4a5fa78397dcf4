package notify

import (
	"context"
	"errors"
	"testing"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	h1, err := r.Schedule(context.Background(), Notification{Title: "a"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	h2, _ := r.Schedule(context.Background(), Notification{Title: "b"})
	if h1 == "" || h1 == h2 {
		t.Fatalf("handles should be unique, got %q and %q", h1, h2)
	}
	if sent := r.Sent(); len(sent) != 2 || sent[1].Title != "b" {
		t.Fatalf("unexpected notifications: %+v", sent)
	}

	r.Err = errors.New("denied")
	if _, err := r.Schedule(context.Background(), Notification{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogNotifier(t *testing.T) {
	delay := 5
	h, err := NewLogNotifier(nil).Schedule(context.Background(), Notification{
		Title: "Budget warning", Body: "75%", DelaySeconds: &delay,
		Payload: map[string]any{"categoryId": "food"},
	})
	if err != nil || h == "" {
		t.Fatalf("Schedule = %q, %v", h, err)
	}
}
