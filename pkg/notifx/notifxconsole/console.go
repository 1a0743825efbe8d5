// Package notifxconsole logs emails instead of sending them.
package notifxconsole

import (
	"context"
	"strings"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/notifx"
)

// ConsoleProvider writes emails to the log. It is meant for development,
// where reset links are read from the terminal.
type ConsoleProvider struct {
	logger *logx.Logger
}

var _ notifx.EmailSender = (*ConsoleProvider)(nil)

// NewConsoleProvider logs through logger, or the default logger when nil.
func NewConsoleProvider(logger *logx.Logger) *ConsoleProvider {
	return &ConsoleProvider{logger: logger}
}

func (p *ConsoleProvider) SendEmail(_ context.Context, msg notifx.EmailMessage) (string, error) {
	logger := p.logger
	if logger == nil {
		logger = logx.GetDefaultLogger()
	}
	id := kernel.NewNonce()

	entry := logger.WithFields(logx.Fields{
		"message_id": id,
		"from":       msg.From,
		"to":         strings.Join(msg.To, ", "),
		"subject":    msg.Subject,
	})
	for k, v := range msg.Tags {
		entry = entry.WithField("tag_"+k, v)
	}
	if msg.TextBody != "" {
		entry = entry.WithField("text", msg.TextBody)
	}
	entry.Info("notifx/console: email sent")

	if msg.HTMLBody != "" {
		logger.WithField("message_id", id).Debugf("notifx/console: html body:\n%s", msg.HTMLBody)
	}
	return id, nil
}
