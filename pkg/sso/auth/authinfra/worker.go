package authinfra

import (
	"context"
	"net/url"

	"github.com/mojzu/mz/pkg/jobx"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/auth"
)

// Sender is the part of *notifx.Client the worker needs.
type Sender interface {
	Send(ctx context.Context, templateName string, data any, to ...string) (string, error)
}

// NotifyWorker delivers the jobs queued by QueueNotifier.
type NotifyWorker struct {
	email Sender
}

func NewNotifyWorker(email Sender) *NotifyWorker {
	return &NotifyWorker{email: email}
}

// Register installs the handlers on client.
func (w *NotifyWorker) Register(client *jobx.Client) {
	client.Register(JobResetPassword, w.handleResetPassword)
	client.Register(JobUpdateEmail, w.handleUpdateEmail)
	client.Register(JobUpdatePassword, w.handleUpdatePassword)
}

func (w *NotifyWorker) handleResetPassword(ctx context.Context, job *jobx.JobInfo) error {
	var msg auth.ResetPasswordMessage
	if err := job.Decode(&msg); err != nil {
		return err
	}
	data := newEmailData(msg.Service, msg.User, msg.Audit, "reset_password", msg.Token)
	return w.send(ctx, job, TemplateResetPassword, data, msg.User.Email)
}

// handleUpdateEmail writes to the old address, the one that may have been
// taken over.
func (w *NotifyWorker) handleUpdateEmail(ctx context.Context, job *jobx.JobInfo) error {
	var msg auth.UpdateEmailMessage
	if err := job.Decode(&msg); err != nil {
		return err
	}
	data := newEmailData(msg.Service, msg.User, msg.Audit, "update_email_revoke", msg.RevokeToken)
	data.OldEmail = msg.OldEmail
	return w.send(ctx, job, TemplateUpdateEmail, data, msg.OldEmail)
}

func (w *NotifyWorker) handleUpdatePassword(ctx context.Context, job *jobx.JobInfo) error {
	var msg auth.UpdatePasswordMessage
	if err := job.Decode(&msg); err != nil {
		return err
	}
	data := newEmailData(msg.Service, msg.User, msg.Audit, "update_password_revoke", msg.RevokeToken)
	return w.send(ctx, job, TemplateUpdatePassword, data, msg.User.Email)
}

func (w *NotifyWorker) send(ctx context.Context, job *jobx.JobInfo, template string, data emailData, to string) error {
	id, err := w.email.Send(ctx, template, data, to)
	if err != nil {
		return err
	}
	logx.WithFields(logx.Fields{
		"job_id":     job.ID,
		"template":   template,
		"message_id": id,
	}).Info("authinfra: notification delivered")
	return nil
}

func newEmailData(service sso.Service, user sso.User, meta sso.AuditMeta, kind, token string) emailData {
	return emailData{
		ServiceName: service.Name,
		UserName:    user.Name,
		Email:       user.Email,
		URL:         callbackURL(service.URL, kind, token),
		Token:       token,
		Remote:      meta.Remote,
		UserAgent:   meta.UserAgent,
	}
}

// callbackURL appends type and token query parameters to the service URL.
func callbackURL(base, kind, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "?" + url.Values{"type": {kind}, "token": {token}}.Encode()
	}
	q := u.Query()
	q.Set("type", kind)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
