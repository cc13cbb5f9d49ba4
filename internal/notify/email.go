package notify

import (
	"context"

	gomail "gopkg.in/gomail.v2"

	"github.com/dmarquez/pcitrack/internal/model"
)

// EmailChannel delivers notifications over SMTP.
type EmailChannel struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailChannel builds an SMTP channel.
func NewEmailChannel(host string, port int, username, password, from string) *EmailChannel {
	return &EmailChannel{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (c *EmailChannel) Name() model.NotificationChannel { return model.ChannelEmail }

// Send delivers a single message. gomail has no context support; the
// dispatcher bounds the call with its own timeout.
func (c *EmailChannel) Send(_ context.Context, recipient, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return c.dialer.DialAndSend(m)
}
