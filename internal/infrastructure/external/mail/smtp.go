package mail

import (
	"context"
	"fmt"
	"io"
	netmail "net/mail"

	gomail "gopkg.in/gomail.v2"

	"github.com/meetpoll-team/meetpoll/internal/usecase/invite"
)

// SMTPSender delivers invite emails over SMTP
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender creates an SMTP mail sender
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers one email with an optional calendar attachment. A malformed
// recipient address or a permanent SMTP rejection comes back as
// *invite.PermanentError so the dispatcher skips retries.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string, attachment *invite.Attachment) error {
	if _, err := netmail.ParseAddress(to); err != nil {
		return &invite.PermanentError{Err: fmt.Errorf("invalid recipient address %q: %w", to, err)}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if attachment != nil {
		m.Attach(attachment.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(attachment.Content)
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {attachment.MimeType},
			}))
	}

	// gomail has no context support; run the send aside and race it
	// against cancellation.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return &invite.PermanentError{Err: err}
		}
		return err
	}
}
