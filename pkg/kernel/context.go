package kernel

// ============================================================================
// Context Types
// ============================================================================

// AuthContext is the authenticated caller attached to each dashboard request
type AuthContext struct {
	UserID   UserID   `json:"user_id"`
	TenantID TenantID `json:"tenant_id"`
	IsAdmin  bool     `json:"is_admin"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
}

// IsValid reports whether the context carries both a user and a tenant
func (a *AuthContext) IsValid() bool {
	return !a.UserID.IsEmpty() && !a.TenantID.IsEmpty()
}

// ============================================================================
// Context Keys
// ============================================================================

type ContextKey string

const (
	AuthContextKey   ContextKey = "auth_context"
	TenantContextKey ContextKey = "tenant_id"
	RequestIDKey     ContextKey = "request_id"
)
