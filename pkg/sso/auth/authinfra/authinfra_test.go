package authinfra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mojzu/mz/pkg/jobx"
	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/notifx"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/auth"
	"github.com/mojzu/mz/pkg/sso/ssoinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	mu   sync.Mutex
	sent []notifx.EmailMessage
	err  error
}

func (o *outbox) SendEmail(_ context.Context, msg notifx.EmailMessage) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return "", o.err
	}
	o.sent = append(o.sent, msg)
	return "msg-1", nil
}

type pipeline struct {
	jobs     *jobx.Client
	outbox   *outbox
	notifier *QueueNotifier
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	box := &outbox{}
	email := notifx.NewClient(box, notifx.WithFrom("noreply@example.com", "mz"))
	require.NoError(t, RegisterTemplates(email))

	jobs := jobx.NewClient(jobx.NewMemoryQueue(),
		jobx.WithMaxAttempts(1),
		jobx.WithRetryBackoff(0),
		jobx.WithDequeueTimeout(10*time.Millisecond),
	)
	NewNotifyWorker(email).Register(jobs)
	return &pipeline{jobs: jobs, outbox: box, notifier: NewQueueNotifier(jobs)}
}

func (p *pipeline) drain(t *testing.T) {
	t.Helper()
	found, err := p.jobs.ProcessOne(context.Background())
	require.NoError(t, err)
	require.True(t, found)
}

var (
	testService = sso.Service{ID: "svc-1", Name: "Example", URL: "https://app.example.com/callback", Enabled: true}
	testUser    = sso.User{ID: "user-1", Name: "Ada", Email: "ada@example.com", Enabled: true}
	testMeta    = sso.AuditMeta{UserAgent: "curl/8.0", Remote: "10.0.0.1"}
)

func TestResetPasswordDelivered(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	err := p.notifier.ResetPassword(ctx, auth.ResetPasswordMessage{
		Service: testService,
		User:    testUser,
		Token:   "tok.en",
		Audit:   testMeta,
	})
	require.NoError(t, err)
	p.drain(t)

	require.Len(t, p.outbox.sent, 1)
	msg := p.outbox.sent[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	assert.Equal(t, "Example: Reset password request", msg.Subject)
	assert.Contains(t, msg.TextBody, "https://app.example.com/callback?token=tok.en&type=reset_password")
	assert.Contains(t, msg.TextBody, "10.0.0.1")
	assert.Equal(t, TemplateResetPassword, msg.Tags["template"])
}

func TestUpdateEmailGoesToOldAddress(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	user := testUser
	user.Email = "new@example.com"
	err := p.notifier.UpdateEmail(ctx, auth.UpdateEmailMessage{
		Service:     testService,
		User:        user,
		OldEmail:    "ada@example.com",
		RevokeToken: "revoke",
		Audit:       testMeta,
	})
	require.NoError(t, err)
	p.drain(t)

	require.Len(t, p.outbox.sent, 1)
	msg := p.outbox.sent[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	assert.Contains(t, msg.TextBody, "from ada@example.com to new@example.com")
	assert.Contains(t, msg.TextBody, "type=update_email_revoke")
}

func TestUpdatePasswordDelivered(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	err := p.notifier.UpdatePassword(ctx, auth.UpdatePasswordMessage{
		Service:     testService,
		User:        testUser,
		RevokeToken: "revoke",
		Audit:       testMeta,
	})
	require.NoError(t, err)
	p.drain(t)

	require.Len(t, p.outbox.sent, 1)
	assert.Equal(t, "Example: Password changed", p.outbox.sent[0].Subject)
}

func TestDeliveryFailureMarksJobDead(t *testing.T) {
	p := newPipeline(t)
	p.outbox.err = errors.New("smtp down")
	ctx := context.Background()

	job, err := jobx.NewJob(JobUpdatePassword, auth.UpdatePasswordMessage{Service: testService, User: testUser})
	require.NoError(t, err)
	id, err := p.jobs.Enqueue(ctx, job)
	require.NoError(t, err)
	p.drain(t)

	info, err := p.jobs.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobx.JobStatusDead, info.Status)
	assert.Contains(t, info.Error, "smtp down")
}

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(context.Context, jobx.Job) (string, error) {
	return "", errors.New("queue unavailable")
}

func TestQueueNotifierReturnsEnqueueError(t *testing.T) {
	n := NewQueueNotifier(failingEnqueuer{})
	err := n.ResetPassword(context.Background(), auth.ResetPasswordMessage{Service: testService, User: testUser})
	assert.EqualError(t, err, "queue unavailable")
}

func TestCallbackURL(t *testing.T) {
	assert.Equal(t, "https://a.example/cb?keep=1&token=t&type=x", callbackURL("https://a.example/cb?keep=1", "x", "t"))
	assert.Equal(t, "?token=t&type=x", callbackURL("", "x", "t"))
}

func TestAuditSinkLogsAndStores(t *testing.T) {
	prev := logx.GetDefaultLogger()
	t.Cleanup(func() { logx.SetDefaultLogger(prev) })
	var buf bytes.Buffer
	logx.SetDefaultLogger(logx.NewLogger(&logx.Config{Level: logx.LevelInfo, Format: logx.FormatJSON, Output: &buf}))

	driver := ssoinfra.NewMemoryDriver()
	sink := NewLogxAuditSink(driver)

	forwarded := "203.0.113.9"
	b := sso.NewAuditBuilder(sso.AuditMeta{UserAgent: "curl/8.0", Remote: "10.0.0.1", Forwarded: &forwarded})
	b.Service(&testService).User(&testUser)
	audit, err := b.Build("auth_local_login", nil, time.Now())
	require.NoError(t, err)

	sink.Record(context.Background(), audit, sso.ErrUserPasswordIncorrect())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Audit: auth_local_login", line["msg"])
	assert.Equal(t, "svc-1", line["service_id"])
	assert.Equal(t, "user-1", line["user_id"])
	assert.Equal(t, "203.0.113.9", line["forwarded"])
	assert.Equal(t, false, line["success"])
	assert.Equal(t, "SSO_USER_PASSWORD_INCORRECT", line["error_code"])

	stored := driver.Audits()
	require.Len(t, stored, 1)
	assert.Equal(t, audit.ID, stored[0].ID)
	assert.Equal(t, kernel.ServiceID("svc-1"), *stored[0].ServiceID)
}
