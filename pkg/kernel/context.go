package kernel

import "context"

// AuthContext describes who authenticated the current request.
// A nil ServiceID means the caller presented a root key.
type AuthContext struct {
	KeyID     KeyID      `json:"key_id"`
	ServiceID *ServiceID `json:"service_id,omitempty"`
}

// IsRoot reports whether the caller holds root authority.
func (ac *AuthContext) IsRoot() bool {
	return ac != nil && ac.ServiceID == nil
}

// CanAccessService reports whether the caller may act on behalf of id.
func (ac *AuthContext) CanAccessService(id ServiceID) bool {
	if ac == nil {
		return false
	}
	return ac.IsRoot() || *ac.ServiceID == id
}

type ContextKey string

const (
	AuthContextKey ContextKey = "auth_context"
	RequestIDKey   ContextKey = "request_id"
)

// WithAuthContext returns a copy of ctx carrying ac.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// AuthFromContext returns the AuthContext stored in ctx, if any.
func AuthFromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return ac, ok && ac != nil
}
