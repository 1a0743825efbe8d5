package notifxconsole

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/notifx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleProviderLogsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := logx.NewLogger(&logx.Config{Level: logx.LevelInfo, Format: logx.FormatJSON, Output: &buf})
	p := NewConsoleProvider(logger)

	id, err := p.SendEmail(context.Background(), notifx.EmailMessage{
		From:     "noreply@example.com",
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  "Reset your password",
		TextBody: "token: abc",
		Tags:     map[string]string{"template": "reset_password"},
	})
	require.NoError(t, err)
	assert.Len(t, id, 32)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "notifx/console: email sent", line["msg"])
	assert.Equal(t, "a@example.com, b@example.com", line["to"])
	assert.Equal(t, "token: abc", line["text"])
	assert.Equal(t, "reset_password", line["tag_template"])
	assert.Equal(t, id, line["message_id"])
}
