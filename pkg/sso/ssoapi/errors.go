package ssoapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mojzu/mz/pkg/errx"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/sso"
)

// concealed errors would tell a caller which emails, keys or tokens exist.
// They are all answered with the same body.
var concealed = []*errx.ErrorCode{
	sso.CodeKeyUndefined,
	sso.CodeKeyNotFound,
	sso.CodeKeyDisabled,
	sso.CodeKeyRevoked,
	sso.CodeKeyServiceUndefined,
	sso.CodeServiceNotFound,
	sso.CodeServiceDisabled,
	sso.CodeUserNotFound,
	sso.CodeUserDisabled,
	sso.CodeUserPasswordIncorrect,
	sso.CodeUserPasswordUndefined,
	sso.CodeUserEmailConflict,
	sso.CodeCsrfNotFoundOrUsed,
	sso.CodeJwtInvalidOrExpired,
	sso.CodeTotpInvalid,
	sso.CodeAuditNotFound,
}

var (
	bodyBadRequest = errx.Response{Code: "BAD_REQUEST", Message: "Bad request"}
	bodyForbidden  = errx.Response{Code: "FORBIDDEN", Message: "Forbidden"}
)

// forbidden marks an authentication failure. Storage faults stay as they
// are so they surface as 500s.
func forbidden(err error) error {
	if sso.IsCode(err, sso.CodeDriver) {
		return err
	}
	return sso.ErrRegistry.NewWithCause(sso.CodeForbidden, err)
}

// ErrorHandler renders handler errors. Failed authentication is a bare 403,
// the concealed set a bare 400, the rest goes through errx.FiberHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	switch {
	case sso.IsCode(err, sso.CodeForbidden):
		return c.Status(fiber.StatusForbidden).JSON(bodyForbidden)
	case isConcealed(err):
		return c.Status(fiber.StatusBadRequest).JSON(bodyBadRequest)
	}
	if statusOf(err) >= fiber.StatusInternalServerError {
		logx.WithFields(logx.Fields{
			"path":   c.Path(),
			"method": c.Method(),
		}).WithError(err).Error("ssoapi: request failed")
	}
	return errx.FiberHandler(c, err)
}

// statusOf returns the status ErrorHandler answers err with.
func statusOf(err error) int {
	if sso.IsCode(err, sso.CodeForbidden) {
		return fiber.StatusForbidden
	}
	if isConcealed(err) {
		return fiber.StatusBadRequest
	}
	if e, ok := errx.CodeOf(err); ok {
		return e.HTTPStatus
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func isConcealed(err error) bool {
	e, ok := errx.CodeOf(err)
	if !ok {
		return false
	}
	for _, code := range concealed {
		if e.Code == code.Code {
			return true
		}
	}
	return false
}

// auditData is stored with each audit record.
func auditData(err error) map[string]any {
	if err == nil {
		return map[string]any{"status": fiber.StatusOK}
	}
	data := map[string]any{"status": statusOf(err)}
	if e, ok := errx.CodeOf(err); ok {
		data["code"] = e.Code
	}
	return data
}
