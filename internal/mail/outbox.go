package mail

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/logging"
)

// outboxLimit caps how many messages an Outbox retains.
const outboxLimit = 100

// Outbox is an in-memory Sender. It logs the envelope of each message (never
// the body, which carries tokens) and keeps the most recent messages for
// inspection. It is used when SMTP is disabled and in tests.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	logger   *logging.Logger
	err      error
}

// NewOutbox returns an empty Outbox. A nil logger disables logging.
func NewOutbox(logger *logging.Logger) *Outbox {
	return &Outbox{logger: logger}
}

// Send records msg after checking it would render for SMTP. If FailWith has been set, the message is dropped and
// that error is returned wrapped in ErrDelivery.
func (o *Outbox) Send(ctx context.Context, msg Message) error {
	if _, err := build("", msg); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, o.err)
	}

	o.messages = append(o.messages, msg)
	if len(o.messages) > outboxLimit {
		o.messages = o.messages[len(o.messages)-outboxLimit:]
	}

	if o.logger != nil {
		o.logger.InfoContext(ctx, "mail queued to outbox", "to", msg.To, "subject", msg.Subject)
	}
	return nil
}

// FailWith makes subsequent sends fail with err. Passing nil restores
// normal delivery.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Messages returns a copy of the retained messages, oldest first.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

// Last returns the newest message and whether there is one.
func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.messages) == 0 {
		return Message{}, false
	}
	return o.messages[len(o.messages)-1], true
}

// Reset drops all retained messages.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
}
