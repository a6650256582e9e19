package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/config"
)

const defaultTimeout = 10 * time.Second

// SMTPSender delivers mail through an SMTP relay. STARTTLS is used whenever
// the relay offers it.
type SMTPSender struct {
	host    string
	from    string
	timeout time.Duration
	opts    []gomail.Option
}

// NewSMTPSender returns a sender for the relay described by cfg.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTLSConfig(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}),
		gomail.WithDialContextFunc(dialWithDeadline),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	return &SMTPSender{
		host:    cfg.Host,
		from:    cfg.From,
		timeout: timeout,
		opts:    opts,
	}
}

// Send delivers msg. The whole exchange is bounded by the configured timeout
// and by ctx, whichever ends first.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := build(s.from, msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.host, s.opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

// dialWithDeadline carries the context deadline onto the connection so a
// relay that stops answering mid-conversation cannot stall a send.
func dialWithDeadline(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline) //nolint:errcheck // best effort, the read fails on its own otherwise
	}
	return conn, nil
}
