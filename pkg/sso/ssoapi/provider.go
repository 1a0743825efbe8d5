package ssoapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mojzu/mz/pkg/sso/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *Handler) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := required(field("email", req.Email), field("password", req.Password)); err != nil {
		return err
	}
	tok, meta, err := h.svc.Login(c.UserContext(), auditOf(c), serviceOf(c), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(response{Data: tok, Meta: meta})
}

func (h *Handler) resetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := required(field("email", req.Email)); err != nil {
		return err
	}
	if err := h.svc.ResetPassword(c.UserContext(), auditOf(c), serviceOf(c), req.Email); err != nil {
		return err
	}
	return ok(c)
}

func (h *Handler) resetPasswordConfirm(c *fiber.Ctx) error {
	var req resetPasswordConfirmRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := required(field("token", req.Token), field("password", req.Password)); err != nil {
		return err
	}
	meta, err := h.svc.ResetPasswordConfirm(c.UserContext(), auditOf(c), serviceOf(c), req.Token, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(response{Meta: meta})
}

func (h *Handler) updateEmail(c *fiber.Ctx) error {
	var req auth.UpdateEmailRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := required(field("password", req.Password), field("new_email", req.NewEmail)); err != nil {
		return err
	}
	if err := h.svc.UpdateEmail(c.UserContext(), auditOf(c), serviceOf(c), req); err != nil {
		return err
	}
	return ok(c)
}

func (h *Handler) updateEmailRevoke(c *fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	if err := h.svc.UpdateEmailRevoke(c.UserContext(), auditOf(c), serviceOf(c), token); err != nil {
		return err
	}
	return ok(c)
}

func (h *Handler) updatePassword(c *fiber.Ctx) error {
	var req auth.UpdatePasswordRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := required(field("password", req.Password), field("new_password", req.NewPassword)); err != nil {
		return err
	}
	meta, err := h.svc.UpdatePassword(c.UserContext(), auditOf(c), serviceOf(c), req)
	if err != nil {
		return err
	}
	return c.JSON(response{Meta: meta})
}

func (h *Handler) updatePasswordRevoke(c *fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	if err := h.svc.UpdatePasswordRevoke(c.UserContext(), auditOf(c), serviceOf(c), token); err != nil {
		return err
	}
	return ok(c)
}

func parseToken(c *fiber.Ctx) (string, error) {
	var req tokenRequest
	if err := parse(c, &req); err != nil {
		return "", err
	}
	if err := required(field("token", req.Token)); err != nil {
		return "", err
	}
	return req.Token, nil
}
