package notifx

import (
	"context"
	"errors"
	"testing"

	"github.com/mojzu/mz/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) SendEmail(_ context.Context, msg EmailMessage) (string, error) {
	c.sent = append(c.sent, msg)
	return "msg-1", c.err
}

var welcome = EmailTemplate{
	Subject: "Welcome to {{.Service}}",
	Text:    "Hello {{.Name}}, visit {{.URL}}",
	HTML:    `<p>Hello {{.Name}}, <a href="{{.URL}}">continue</a></p>`,
}

type welcomeData struct {
	Service, Name, URL string
}

func TestTemplateRender(t *testing.T) {
	r := NewTemplateRegistry()
	require.NoError(t, r.Register("welcome", welcome))

	out, err := r.Render("welcome", welcomeData{Service: "mz", Name: "<Ada>", URL: "https://example.com/?a=1&b=2"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome to mz", out.Subject)
	assert.Equal(t, "Hello <Ada>, visit https://example.com/?a=1&b=2", out.TextBody)
	assert.Contains(t, out.HTMLBody, "Hello &lt;Ada&gt;")

	_, err = r.Render("missing", nil)
	assert.True(t, errx.IsCode(err, ErrTemplateNotFound))

	_, err = r.Render("welcome", map[string]string{"Service": "mz"})
	assert.True(t, errx.IsCode(err, ErrTemplateRender))
}

func TestTemplateRegisterRejectsInvalid(t *testing.T) {
	r := NewTemplateRegistry()

	err := r.Register("empty", EmailTemplate{Subject: "hi"})
	assert.True(t, errx.IsCode(err, ErrTemplateParse))

	err = r.Register("broken", EmailTemplate{Subject: "{{.Name", Text: "x"})
	assert.True(t, errx.IsCode(err, ErrTemplateParse))
}

func TestClientSend(t *testing.T) {
	sender := &captureSender{}
	c := NewClient(sender, WithFrom("noreply@example.com", "mz"))
	require.NoError(t, c.RegisterTemplate("welcome", welcome))

	id, err := c.Send(context.Background(), "welcome", welcomeData{Service: "mz", Name: "Ada", URL: "u"}, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, `"mz" <noreply@example.com>`, msg.From)
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	assert.Equal(t, "Welcome to mz", msg.Subject)
	assert.Equal(t, "welcome", msg.Tags["template"])
}

func TestClientValidatesMessage(t *testing.T) {
	sender := &captureSender{}
	c := NewClient(sender)
	ctx := context.Background()

	_, err := c.SendEmail(ctx, EmailMessage{Subject: "x"})
	assert.True(t, errx.IsCode(err, ErrInvalidMessage))

	_, err = c.SendEmail(ctx, EmailMessage{To: []string{"not an address"}, Subject: "x"})
	assert.True(t, errx.IsCode(err, ErrInvalidMessage))

	_, err = c.SendEmail(ctx, EmailMessage{To: []string{"a@example.com"}})
	assert.True(t, errx.IsCode(err, ErrInvalidMessage))

	assert.Empty(t, sender.sent)
}

func TestClientPropagatesProviderError(t *testing.T) {
	sender := &captureSender{err: SendFailed(errors.New("throttled"))}
	c := NewClient(sender)

	_, err := c.SendEmail(context.Background(), EmailMessage{To: []string{"a@example.com"}, Subject: "x", TextBody: "y"})
	assert.True(t, errx.IsCode(err, ErrSendFailed))
}
