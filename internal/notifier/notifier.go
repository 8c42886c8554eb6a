package notifier

import (
	"context"
	"sync"
)

// Notifier delivers a preformatted message to the operator
// ⭐ SSOT: 모든 알림은 이 인터페이스를 통해서만 발송
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Nop drops every message
type Nop struct{}

// Send implements Notifier
func (Nop) Send(context.Context, string) error { return nil }

// Recorder keeps every message in memory. Used by dry runs and tests.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Send implements Notifier
func (r *Recorder) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
	return nil
}

// Messages returns a copy of the recorded messages in send order
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}
