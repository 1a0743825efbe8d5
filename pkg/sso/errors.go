package sso

import (
	"net/http"

	"github.com/mojzu/mz/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("SSO")

var (
	CodeKeyUndefined          = ErrRegistry.Register("KEY_UNDEFINED", errx.TypeAuthorization, http.StatusUnauthorized, "Key undefined")
	CodeKeyNotFound           = ErrRegistry.Register("KEY_NOT_FOUND", errx.TypeAuthorization, http.StatusUnauthorized, "Key not found")
	CodeKeyDisabled           = ErrRegistry.Register("KEY_DISABLED", errx.TypeForbidden, http.StatusForbidden, "Key disabled")
	CodeKeyRevoked            = ErrRegistry.Register("KEY_REVOKED", errx.TypeForbidden, http.StatusForbidden, "Key revoked")
	CodeKeyServiceUndefined   = ErrRegistry.Register("KEY_SERVICE_UNDEFINED", errx.TypeForbidden, http.StatusForbidden, "Key is not scoped to a service")
	CodeServiceNotFound       = ErrRegistry.Register("SERVICE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Service not found")
	CodeServiceDisabled       = ErrRegistry.Register("SERVICE_DISABLED", errx.TypeForbidden, http.StatusForbidden, "Service disabled")
	CodeUserNotFound          = ErrRegistry.Register("USER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeUserDisabled          = ErrRegistry.Register("USER_DISABLED", errx.TypeForbidden, http.StatusForbidden, "User disabled")
	CodeUserPasswordUndefined = ErrRegistry.Register("USER_PASSWORD_UNDEFINED", errx.TypeValidation, http.StatusBadRequest, "User has no password")
	CodeUserPasswordIncorrect = ErrRegistry.Register("USER_PASSWORD_INCORRECT", errx.TypeValidation, http.StatusBadRequest, "User password incorrect")
	CodeUserEmailConflict     = ErrRegistry.Register("USER_EMAIL_CONFLICT", errx.TypeConflict, http.StatusConflict, "User email already in use")
	CodeCsrfNotFoundOrUsed    = ErrRegistry.Register("CSRF_NOT_FOUND_OR_USED", errx.TypeValidation, http.StatusBadRequest, "CSRF key not found or already used")
	CodeJwtInvalidOrExpired   = ErrRegistry.Register("JWT_INVALID_OR_EXPIRED", errx.TypeValidation, http.StatusBadRequest, "Token invalid or expired")
	CodeTotpInvalid           = ErrRegistry.Register("TOTP_INVALID", errx.TypeValidation, http.StatusBadRequest, "TOTP code invalid")
	CodeTotpSecretInvalid     = ErrRegistry.Register("TOTP_SECRET_INVALID", errx.TypeInternal, http.StatusInternalServerError, "TOTP secret is not valid base32")
	CodePwnedDisabled         = ErrRegistry.Register("PWNED_PASSWORDS_DISABLED", errx.TypeInternal, http.StatusInternalServerError, "Pwned passwords check disabled")
	CodeNotifySend            = ErrRegistry.Register("NOTIFY_SEND_ERROR", errx.TypeExternal, http.StatusInternalServerError, "Notification could not be queued")
	CodeDriver                = ErrRegistry.Register("DRIVER", errx.TypeInternal, http.StatusInternalServerError, "Storage driver error")
	CodeAuditNotFound         = ErrRegistry.Register("AUDIT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Audit not found")
	CodeAuditFinalized        = ErrRegistry.Register("AUDIT_FINALIZED", errx.TypeInternal, http.StatusInternalServerError, "Audit already finalized")
	CodeInvalidRequest        = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Invalid request")
	CodeForbidden             = ErrRegistry.Register("FORBIDDEN", errx.TypeForbidden, http.StatusForbidden, "Forbidden")
)

func ErrKeyUndefined() *errx.Error          { return ErrRegistry.New(CodeKeyUndefined) }
func ErrKeyNotFound() *errx.Error           { return ErrRegistry.New(CodeKeyNotFound) }
func ErrKeyDisabled() *errx.Error           { return ErrRegistry.New(CodeKeyDisabled) }
func ErrKeyRevoked() *errx.Error            { return ErrRegistry.New(CodeKeyRevoked) }
func ErrKeyServiceUndefined() *errx.Error   { return ErrRegistry.New(CodeKeyServiceUndefined) }
func ErrServiceNotFound() *errx.Error       { return ErrRegistry.New(CodeServiceNotFound) }
func ErrServiceDisabled() *errx.Error       { return ErrRegistry.New(CodeServiceDisabled) }
func ErrUserNotFound() *errx.Error          { return ErrRegistry.New(CodeUserNotFound) }
func ErrUserDisabled() *errx.Error          { return ErrRegistry.New(CodeUserDisabled) }
func ErrUserPasswordUndefined() *errx.Error { return ErrRegistry.New(CodeUserPasswordUndefined) }
func ErrUserPasswordIncorrect() *errx.Error { return ErrRegistry.New(CodeUserPasswordIncorrect) }
func ErrUserEmailConflict() *errx.Error     { return ErrRegistry.New(CodeUserEmailConflict) }
func ErrCsrfNotFoundOrUsed() *errx.Error    { return ErrRegistry.New(CodeCsrfNotFoundOrUsed) }
func ErrJwtInvalidOrExpired() *errx.Error   { return ErrRegistry.New(CodeJwtInvalidOrExpired) }
func ErrTotpInvalid() *errx.Error           { return ErrRegistry.New(CodeTotpInvalid) }
func ErrPwnedDisabled() *errx.Error         { return ErrRegistry.New(CodePwnedDisabled) }
func ErrAuditNotFound() *errx.Error         { return ErrRegistry.New(CodeAuditNotFound) }
func ErrAuditFinalized() *errx.Error        { return ErrRegistry.New(CodeAuditFinalized) }
func ErrForbidden() *errx.Error             { return ErrRegistry.New(CodeForbidden) }

func ErrTotpSecretInvalid(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeTotpSecretInvalid, cause)
}

func ErrNotifySend(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeNotifySend, cause)
}

func ErrInvalidRequest(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidRequest).WithDetail("reason", reason)
}

// DriverError wraps a storage fault. Errors that already carry an SSO code are
// returned unchanged so lookups can report their own kinds.
func DriverError(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := errx.CodeOf(err); ok && e.ErrorCode() != nil {
		return err
	}
	return ErrRegistry.NewWithCause(CodeDriver, err)
}

// IsCode reports whether err carries code.
func IsCode(err error, code *errx.ErrorCode) bool {
	return errx.IsCode(err, code)
}
