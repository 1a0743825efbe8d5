package errx

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Response is the JSON body written for an error.
type Response struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// FiberHandler renders errors returned by fiber handlers. Fiber's own errors
// keep their status, everything else that is not an *Error becomes a 500.
func FiberHandler(c *fiber.Ctx, err error) error {
	if e, ok := CodeOf(err); ok {
		return c.Status(e.HTTPStatus).JSON(Response{
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
		})
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(Response{Code: "HTTP", Message: fe.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Code:    string(TypeInternal),
		Message: "internal error",
	})
}
