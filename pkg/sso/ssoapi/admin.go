package ssoapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/auth"
)

// keyView adds the scope columns to a key. Value is only set in the create
// response, the one place a key's value is returned.
type keyView struct {
	*sso.Key
	Value     string            `json:"value,omitempty"`
	ServiceID *kernel.ServiceID `json:"service_id,omitempty"`
	UserID    *kernel.UserID    `json:"user_id,omitempty"`
}

func newKeyView(k *sso.Key) keyView {
	serviceID, userID := sso.ScopeColumns(k.Scope)
	return keyView{Key: k, ServiceID: serviceID, UserID: userID}
}

func newCreatedKey(k *sso.Key) keyView {
	v := newKeyView(k)
	v.Value = k.Value
	return v
}

func paged[T any](c *fiber.Ctx, p kernel.Paginated[T]) error {
	return c.JSON(response{Data: p.Items, Meta: p.Page})
}

// ============================================================================
// Service
// ============================================================================

func (h *Handler) serviceList(c *fiber.Ctx) error {
	p, err := h.svc.ServiceList(c.UserContext(), auditOf(c), callerOf(c), pagination(c))
	if err != nil {
		return err
	}
	return paged(c, p)
}

func (h *Handler) serviceCreate(c *fiber.Ctx) error {
	var req auth.ServiceCreateRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := required(field("name", req.Name)); err != nil {
		return err
	}
	service, err := h.svc.ServiceCreate(c.UserContext(), auditOf(c), callerOf(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(response{Data: service})
}

func (h *Handler) serviceRead(c *fiber.Ctx) error {
	service, err := h.svc.ServiceRead(c.UserContext(), auditOf(c), callerOf(c), kernel.ServiceID(param(c)))
	if err != nil {
		return err
	}
	return c.JSON(response{Data: service})
}

func (h *Handler) serviceUpdate(c *fiber.Ctx) error {
	var req auth.ServiceUpdateRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	service, err := h.svc.ServiceUpdate(c.UserContext(), auditOf(c), callerOf(c), kernel.ServiceID(param(c)), req)
	if err != nil {
		return err
	}
	return c.JSON(response{Data: service})
}

func (h *Handler) serviceDelete(c *fiber.Ctx) error {
	if err := h.svc.ServiceDelete(c.UserContext(), auditOf(c), callerOf(c), kernel.ServiceID(param(c))); err != nil {
		return err
	}
	return ok(c)
}

// ============================================================================
// User
// ============================================================================

func (h *Handler) userList(c *fiber.Ctx) error {
	p, err := h.svc.UserList(c.UserContext(), auditOf(c), callerOf(c), pagination(c))
	if err != nil {
		return err
	}
	return paged(c, p)
}

func (h *Handler) userCreate(c *fiber.Ctx) error {
	var req auth.UserCreateRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := required(field("name", req.Name), field("email", req.Email)); err != nil {
		return err
	}
	user, meta, err := h.svc.UserCreate(c.UserContext(), auditOf(c), callerOf(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(response{Data: user, Meta: meta})
}

func (h *Handler) userRead(c *fiber.Ctx) error {
	user, err := h.svc.UserRead(c.UserContext(), auditOf(c), callerOf(c), kernel.UserID(param(c)))
	if err != nil {
		return err
	}
	return c.JSON(response{Data: user})
}

func (h *Handler) userUpdate(c *fiber.Ctx) error {
	var req auth.UserUpdateRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	user, err := h.svc.UserUpdate(c.UserContext(), auditOf(c), callerOf(c), kernel.UserID(param(c)), req)
	if err != nil {
		return err
	}
	return c.JSON(response{Data: user})
}

func (h *Handler) userDelete(c *fiber.Ctx) error {
	if err := h.svc.UserDelete(c.UserContext(), auditOf(c), callerOf(c), kernel.UserID(param(c))); err != nil {
		return err
	}
	return ok(c)
}

// ============================================================================
// Key
// ============================================================================

func (h *Handler) keyList(c *fiber.Ctx) error {
	req := auth.KeyListRequest{PaginationOptions: pagination(c)}
	if v := query(c, "service_id"); v != nil {
		id := kernel.ServiceID(*v)
		req.ServiceID = &id
	}
	if v := query(c, "user_id"); v != nil {
		id := kernel.UserID(*v)
		req.UserID = &id
	}
	p, err := h.svc.KeyList(c.UserContext(), auditOf(c), callerOf(c), req)
	if err != nil {
		return err
	}
	views := make([]keyView, 0, len(p.Items))
	for i := range p.Items {
		views = append(views, newKeyView(&p.Items[i]))
	}
	return c.JSON(response{Data: views, Meta: p.Page})
}

func (h *Handler) keyCreate(c *fiber.Ctx) error {
	var req auth.KeyCreateRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := required(field("name", req.Name), field("type", string(req.Type))); err != nil {
		return err
	}
	k, err := h.svc.KeyCreate(c.UserContext(), auditOf(c), callerOf(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(response{Data: newCreatedKey(k)})
}

func (h *Handler) keyRead(c *fiber.Ctx) error {
	k, err := h.svc.KeyRead(c.UserContext(), auditOf(c), callerOf(c), kernel.KeyID(param(c)))
	if err != nil {
		return err
	}
	return c.JSON(response{Data: newKeyView(k)})
}

func (h *Handler) keyUpdate(c *fiber.Ctx) error {
	var req auth.KeyUpdateRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	k, err := h.svc.KeyUpdate(c.UserContext(), auditOf(c), callerOf(c), kernel.KeyID(param(c)), req)
	if err != nil {
		return err
	}
	return c.JSON(response{Data: newKeyView(k)})
}

func (h *Handler) keyDelete(c *fiber.Ctx) error {
	if err := h.svc.KeyDelete(c.UserContext(), auditOf(c), callerOf(c), kernel.KeyID(param(c))); err != nil {
		return err
	}
	return ok(c)
}

// ============================================================================
// Audit
// ============================================================================

func (h *Handler) auditList(c *fiber.Ctx) error {
	req := auth.AuditListRequest{PaginationOptions: pagination(c)}
	if v := query(c, "service_id"); v != nil {
		id := kernel.ServiceID(*v)
		req.ServiceID = &id
	}
	if v := query(c, "user_id"); v != nil {
		id := kernel.UserID(*v)
		req.UserID = &id
	}
	if v := query(c, "type"); v != nil {
		req.Type = *v
	}
	p, err := h.svc.AuditList(c.UserContext(), auditOf(c), callerOf(c), req)
	if err != nil {
		return err
	}
	return paged(c, p)
}

func (h *Handler) auditRead(c *fiber.Ctx) error {
	record, err := h.svc.AuditRead(c.UserContext(), auditOf(c), callerOf(c), param(c))
	if err != nil {
		return err
	}
	return c.JSON(response{Data: record})
}
