// Package notifx renders templated emails and sends them through a
// provider.
package notifx

import (
	"context"
	"net/mail"
)

// EmailSender delivers one message and returns the provider's message id.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) (string, error)
}

// Client pairs a provider with a template registry.
type Client struct {
	provider  EmailSender
	templates *TemplateRegistry
	from      string
}

type ClientOption func(*Client)

// WithFrom sets the sender used when a message has none. A non empty name
// is rendered as "name <address>".
func WithFrom(address, name string) ClientOption {
	return func(c *Client) {
		if name == "" {
			c.from = address
			return
		}
		c.from = (&mail.Address{Name: name, Address: address}).String()
	}
}

func NewClient(provider EmailSender, opts ...ClientOption) *Client {
	c := &Client{provider: provider, templates: NewTemplateRegistry()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterTemplate parses and stores a named template.
func (c *Client) RegisterTemplate(name string, t EmailTemplate) error {
	return c.templates.Register(name, t)
}

// SendEmail validates msg and sends it.
func (c *Client) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	if msg.From == "" {
		msg.From = c.from
	}
	if len(msg.To) == 0 {
		return "", notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "no recipients")
	}
	for _, to := range msg.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return "", notifxErrors.NewWithCause(ErrInvalidMessage, err).WithDetail("to", to)
		}
	}
	if msg.Subject == "" {
		return "", notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "empty subject")
	}
	return c.provider.SendEmail(ctx, msg)
}

// Send renders templateName with data and sends it to the recipients.
func (c *Client) Send(ctx context.Context, templateName string, data any, to ...string) (string, error) {
	rendered, err := c.templates.Render(templateName, data)
	if err != nil {
		return "", err
	}
	return c.SendEmail(ctx, EmailMessage{
		To:       to,
		Subject:  rendered.Subject,
		TextBody: rendered.TextBody,
		HTMLBody: rendered.HTMLBody,
		Tags:     map[string]string{"template": templateName},
	})
}
