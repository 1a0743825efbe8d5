// Package ssoapi serves the auth and admin operations over HTTP with fiber.
package ssoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/auth"
)

const (
	localsAudit   = "audit"
	localsService = "service"
	localsAuth    = "auth"
)

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// Handler holds the HTTP handlers.
type Handler struct {
	svc      *auth.Service
	sink     auth.AuditSink
	recorder RequestRecorder
	metrics  http.Handler
	now      func() time.Time
}

type Option func(*Handler)

// WithRecorder reports request counts and latencies to r.
func WithRecorder(r RequestRecorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(metrics http.Handler) Option {
	return func(h *Handler) { h.metrics = metrics }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func NewHandler(svc *auth.Service, sink auth.AuditSink, opts ...Option) *Handler {
	h := &Handler{svc: svc, sink: sink, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	return h
}

// RegisterRoutes mounts the API under /v1.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	if h.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.metrics))
	}

	v1 := app.Group("/v1", h.observe)
	v1.Get("/ping", h.ping)

	a := v1.Group("/auth", h.audited, h.requireService)
	a.Post("/provider/local/login", h.login)
	a.Post("/provider/local/reset-password", h.resetPassword)
	a.Post("/provider/local/reset-password/confirm", h.resetPasswordConfirm)
	a.Post("/provider/local/update-email", h.updateEmail)
	a.Post("/provider/local/update-email/revoke", h.updateEmailRevoke)
	a.Post("/provider/local/update-password", h.updatePassword)
	a.Post("/provider/local/update-password/revoke", h.updatePasswordRevoke)
	a.Post("/token/verify", h.tokenVerify)
	a.Post("/token/refresh", h.tokenRefresh)
	a.Post("/token/revoke", h.tokenRevoke)
	a.Post("/key/verify", h.keyVerify)
	a.Post("/key/revoke", h.keyRevoke)
	a.Post("/totp", h.totpVerify)
	a.Post("/csrf", h.csrfCreate)
	a.Get("/csrf", h.csrfVerify)

	v1.Get("/service", h.admin(h.serviceList)...)
	v1.Post("/service", h.admin(h.serviceCreate)...)
	v1.Get("/service/:id", h.admin(h.serviceRead)...)
	v1.Patch("/service/:id", h.admin(h.serviceUpdate)...)
	v1.Delete("/service/:id", h.admin(h.serviceDelete)...)

	v1.Get("/user", h.admin(h.userList)...)
	v1.Post("/user", h.admin(h.userCreate)...)
	v1.Get("/user/:id", h.admin(h.userRead)...)
	v1.Patch("/user/:id", h.admin(h.userUpdate)...)
	v1.Delete("/user/:id", h.admin(h.userDelete)...)

	v1.Get("/key", h.admin(h.keyList)...)
	v1.Post("/key", h.admin(h.keyCreate)...)
	v1.Get("/key/:id", h.admin(h.keyRead)...)
	v1.Patch("/key/:id", h.admin(h.keyUpdate)...)
	v1.Delete("/key/:id", h.admin(h.keyDelete)...)

	v1.Get("/audit", h.admin(h.auditList)...)
	v1.Get("/audit/:id", h.admin(h.auditRead)...)
}

// admin chains the middleware of the administrative routes. They accept a
// root key or a service key.
func (h *Handler) admin(handler fiber.Handler) []fiber.Handler {
	return []fiber.Handler{h.audited, h.requireCaller, handler}
}

func (h *Handler) ping(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// ============================================================================
// Middleware
// ============================================================================

func (h *Handler) observe(c *fiber.Ctx) error {
	if h.recorder == nil {
		return c.Next()
	}
	start := h.now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status = statusOf(err)
	}
	h.recorder.RecordHTTPRequest(c.Method(), utils.CopyString(c.Route().Path), status, h.now().Sub(start))
	return err
}

// audited gives the request an audit builder and records the finished audit
// whether or not the handler succeeded.
func (h *Handler) audited(c *fiber.Ctx) error {
	audit := sso.NewAuditBuilder(requestMeta(c))
	c.Locals(localsAudit, audit)

	err := c.Next()

	if h.sink != nil {
		record, buildErr := audit.Build(utils.CopyString(c.Path()), auditData(err), h.now())
		if buildErr == nil {
			h.sink.Record(c.UserContext(), record, err)
		}
	}
	return err
}

// requireService authenticates the presented key as a service key.
func (h *Handler) requireService(c *fiber.Ctx) error {
	service, err := h.svc.Keys().AuthenticateService(c.UserContext(), auditOf(c), authorization(c))
	if err != nil {
		return forbidden(err)
	}
	c.Locals(localsService, service)
	return c.Next()
}

// requireCaller accepts a root key or a service key.
func (h *Handler) requireCaller(c *fiber.Ctx) error {
	ac, service, err := h.svc.Keys().AuthContext(c.UserContext(), auditOf(c), authorization(c))
	if err != nil {
		return forbidden(err)
	}
	c.Locals(localsAuth, ac)
	c.Locals(localsService, service)
	c.SetUserContext(kernel.WithAuthContext(c.UserContext(), ac))
	return c.Next()
}

// ============================================================================
// Request helpers
// ============================================================================

// authorization returns the key presented in the Authorization header, with
// or without a Bearer prefix.
func authorization(c *fiber.Ctx) *string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		header = strings.TrimSpace(header[7:])
	}
	if header == "" {
		return nil
	}
	value := utils.CopyString(header)
	return &value
}

func requestMeta(c *fiber.Ctx) sso.AuditMeta {
	meta := sso.AuditMeta{
		UserAgent: utils.CopyString(c.Get(fiber.HeaderUserAgent)),
		Remote:    utils.CopyString(c.IP()),
	}
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		forwarded := utils.CopyString(fwd)
		meta.Forwarded = &forwarded
	}
	return meta
}

func auditOf(c *fiber.Ctx) *sso.AuditBuilder {
	audit, _ := c.Locals(localsAudit).(*sso.AuditBuilder)
	return audit
}

func serviceOf(c *fiber.Ctx) *sso.Service {
	service, _ := c.Locals(localsService).(*sso.Service)
	return service
}

func callerOf(c *fiber.Ctx) *kernel.AuthContext {
	ac, _ := c.Locals(localsAuth).(*kernel.AuthContext)
	return ac
}

// parse decodes the JSON body into v.
func parse(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return sso.ErrInvalidRequest("malformed body")
	}
	return nil
}

// pagination reads the page and page_size query parameters.
func pagination(c *fiber.Ctx) kernel.PaginationOptions {
	return kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", kernel.DefaultPageSize),
	}.Normalize()
}

// query returns an optional query parameter.
func query(c *fiber.Ctx, name string) *string {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	v = utils.CopyString(v)
	return &v
}

func param(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}

// required returns InvalidRequest naming the first empty field.
func required(fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return sso.ErrInvalidRequest(f[0] + " is required")
		}
	}
	return nil
}

func field(name, value string) [2]string {
	return [2]string{name, value}
}

// response is the envelope of every successful JSON body.
type response struct {
	Data any `json:"data,omitempty"`
	Meta any `json:"meta,omitempty"`
}

func ok(c *fiber.Ctx) error {
	return c.JSON(response{})
}
