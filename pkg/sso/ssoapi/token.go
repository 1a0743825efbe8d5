package ssoapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/mojzu/mz/pkg/kernel"
)

type keyRequest struct {
	Key string `json:"key"`
}

type totpRequest struct {
	UserID kernel.UserID `json:"user_id"`
	Totp   string        `json:"totp"`
}

type csrfCreateRequest struct {
	ExpiresS int64 `json:"expires_s"`
}

func (h *Handler) tokenVerify(c *fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	partial, err := h.svc.TokenVerify(c.UserContext(), auditOf(c), serviceOf(c), token)
	if err != nil {
		return err
	}
	return c.JSON(response{Data: partial})
}

func (h *Handler) tokenRefresh(c *fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	tok, err := h.svc.TokenRefresh(c.UserContext(), auditOf(c), serviceOf(c), token)
	if err != nil {
		return err
	}
	return c.JSON(response{Data: tok})
}

func (h *Handler) tokenRevoke(c *fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	if err := h.svc.TokenRevoke(c.UserContext(), auditOf(c), serviceOf(c), token); err != nil {
		return err
	}
	return ok(c)
}

func (h *Handler) keyVerify(c *fiber.Ctx) error {
	value, err := parseKey(c)
	if err != nil {
		return err
	}
	userKey, err := h.svc.KeyVerify(c.UserContext(), auditOf(c), serviceOf(c), value)
	if err != nil {
		return err
	}
	return c.JSON(response{Data: userKey})
}

func (h *Handler) keyRevoke(c *fiber.Ctx) error {
	value, err := parseKey(c)
	if err != nil {
		return err
	}
	if err := h.svc.KeyRevoke(c.UserContext(), auditOf(c), serviceOf(c), value); err != nil {
		return err
	}
	return ok(c)
}

func (h *Handler) totpVerify(c *fiber.Ctx) error {
	var req totpRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := required(field("user_id", string(req.UserID)), field("totp", req.Totp)); err != nil {
		return err
	}
	if err := h.svc.TotpVerify(c.UserContext(), auditOf(c), serviceOf(c), req.UserID, req.Totp); err != nil {
		return err
	}
	return ok(c)
}

// csrfCreate accepts an empty body, which uses the default expiry.
func (h *Handler) csrfCreate(c *fiber.Ctx) error {
	var req csrfCreateRequest
	if len(c.Body()) > 0 {
		if err := parse(c, &req); err != nil {
			return err
		}
	}
	entry, err := h.svc.CsrfCreate(c.UserContext(), auditOf(c), serviceOf(c), time.Duration(req.ExpiresS)*time.Second)
	if err != nil {
		return err
	}
	return c.JSON(response{Data: entry})
}

func (h *Handler) csrfVerify(c *fiber.Ctx) error {
	key := utils.CopyString(c.Query("key"))
	if err := required(field("key", key)); err != nil {
		return err
	}
	if err := h.svc.CsrfVerify(c.UserContext(), auditOf(c), serviceOf(c), key); err != nil {
		return err
	}
	return ok(c)
}

func parseKey(c *fiber.Ctx) (string, error) {
	var req keyRequest
	if err := parse(c, &req); err != nil {
		return "", err
	}
	if err := required(field("key", req.Key)); err != nil {
		return "", err
	}
	return req.Key, nil
}
