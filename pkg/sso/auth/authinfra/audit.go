package authinfra

import (
	"context"

	"github.com/mojzu/mz/pkg/errx"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/auth"
)

// LogxAuditSink writes audit records to the log and, when a store is set,
// to the database.
type LogxAuditSink struct {
	store sso.AuditStore
}

var _ auth.AuditSink = (*LogxAuditSink)(nil)

func NewLogxAuditSink(store sso.AuditStore) *LogxAuditSink {
	return &LogxAuditSink{store: store}
}

func (s *LogxAuditSink) Record(ctx context.Context, audit *sso.Audit, outcome error) {
	fields := logx.Fields{
		"audit_id":   audit.ID,
		"audit_type": audit.Type,
		"remote":     audit.Meta.Remote,
		"user_agent": audit.Meta.UserAgent,
		"success":    outcome == nil,
	}
	if audit.Meta.Forwarded != nil {
		fields["forwarded"] = *audit.Meta.Forwarded
	}
	if audit.KeyID != nil {
		fields["key_id"] = *audit.KeyID
	}
	if audit.ServiceID != nil {
		fields["service_id"] = *audit.ServiceID
	}
	if audit.UserID != nil {
		fields["user_id"] = *audit.UserID
	}
	if audit.UserKeyID != nil {
		fields["user_key_id"] = *audit.UserKeyID
	}
	if e, ok := errx.CodeOf(outcome); ok {
		fields["error_code"] = e.Code
	}
	logx.WithFields(fields).Info("Audit: " + audit.Type)

	if s.store == nil {
		return
	}
	if err := s.store.AuditCreate(ctx, audit); err != nil {
		logx.WithError(err).WithField("audit_id", audit.ID).Error("authinfra: failed to store audit record")
	}
}
