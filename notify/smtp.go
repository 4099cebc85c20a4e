package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier delivers email messages through an SMTP relay.
type SMTPNotifier struct {
	Addr string
	From string
	Auth smtp.Auth

	sendMail sendMailFunc
}

var _ goVerify.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier returns a notifier for the relay at addr ("host:port").
// With a non-empty username it authenticates with PLAIN auth.
func NewSMTPNotifier(addr, from, username, password string) (*SMTPNotifier, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("smtp: invalid address %q: %w", addr, err)
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("smtp: sender address required")
	}
	n := &SMTPNotifier{
		Addr:     addr,
		From:     from,
		sendMail: smtp.SendMail,
	}
	if username != "" {
		n.Auth = smtp.PlainAuth("", username, password, host)
	}
	return n, nil
}

// Send delivers msg. It honours ctx cancellation, but an SMTP exchange
// already in flight runs to completion in the background.
func (n *SMTPNotifier) Send(ctx context.Context, msg goVerify.Message) error {
	if msg.Channel != goVerify.ChannelEmail {
		return goVerify.ErrNotifierUnavailable
	}
	if strings.ContainsAny(msg.Destination, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return errors.New("smtp: header injection rejected")
	}

	send := n.sendMail
	if send == nil {
		send = smtp.SendMail
	}
	payload := n.compose(msg)

	done := make(chan error, 1)
	go func() {
		done <- send(n.Addr, n.Auth, n.From, []string{msg.Destination}, payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *SMTPNotifier) compose(msg goVerify.Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + n.From + "\r\n")
	b.WriteString("To: " + msg.Destination + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
