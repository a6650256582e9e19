package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// ErrDelivery wraps every failure to hand a message to the mail system.
var ErrDelivery = errors.New("mail delivery failed")

// Message is a single HTML mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// build renders msg for the wire. Addresses are parsed as RFC 5322
// mailboxes, so a recipient smuggling extra header lines is rejected here.
// An empty from leaves the sender unset.
func build(from string, msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if from != "" {
		if err := m.From(from); err != nil {
			return nil, fmt.Errorf("%w: invalid sender: %w", ErrDelivery, err)
		}
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("%w: invalid recipient: %w", ErrDelivery, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	return m, nil
}
