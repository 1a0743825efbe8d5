// Package authinfra connects the auth flows to jobx, notifx and logging.
package authinfra

import (
	"context"

	"github.com/mojzu/mz/pkg/jobx"
	"github.com/mojzu/mz/pkg/sso/auth"
)

// Job types carrying notifications.
const (
	JobResetPassword  = "notify.reset_password"
	JobUpdateEmail    = "notify.update_email"
	JobUpdatePassword = "notify.update_password"
)

// Enqueuer is the part of *jobx.Client the notifier needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job jobx.Job) (string, error)
}

// QueueNotifier hands messages to the job queue. Delivery happens later in
// a NotifyWorker.
type QueueNotifier struct {
	jobs Enqueuer
}

var _ auth.Notifier = (*QueueNotifier)(nil)

func NewQueueNotifier(jobs Enqueuer) *QueueNotifier {
	return &QueueNotifier{jobs: jobs}
}

func (n *QueueNotifier) ResetPassword(ctx context.Context, msg auth.ResetPasswordMessage) error {
	return n.enqueue(ctx, JobResetPassword, msg)
}

func (n *QueueNotifier) UpdateEmail(ctx context.Context, msg auth.UpdateEmailMessage) error {
	return n.enqueue(ctx, JobUpdateEmail, msg)
}

func (n *QueueNotifier) UpdatePassword(ctx context.Context, msg auth.UpdatePasswordMessage) error {
	return n.enqueue(ctx, JobUpdatePassword, msg)
}

func (n *QueueNotifier) enqueue(ctx context.Context, jobType string, msg any) error {
	job, err := jobx.NewJob(jobType, msg)
	if err != nil {
		return err
	}
	_, err = n.jobs.Enqueue(ctx, job)
	return err
}
