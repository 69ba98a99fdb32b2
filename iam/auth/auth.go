package auth

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
)

// ============================================================================
// Token Types
// ============================================================================

// TokenClaims representa los claims de un JWT emitido por el proveedor de identidad
type TokenClaims struct {
	UserID    kernel.UserID   `json:"user_id"`
	TenantID  kernel.TenantID `json:"tenant_id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	IsAdmin   bool            `json:"is_admin"`
	IssuedAt  time.Time       `json:"iat"`
	ExpiresAt time.Time       `json:"exp"`
}

// ToAuthContext convierte los claims en el contexto de autenticación
func (t *TokenClaims) ToAuthContext() *kernel.AuthContext {
	return &kernel.AuthContext{
		UserID:   t.UserID,
		TenantID: t.TenantID,
		IsAdmin:  t.IsAdmin,
		Email:    t.Email,
		Name:     t.Name,
	}
}

// ============================================================================
// Error Registry - Errores específicos de Auth
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

// Códigos de error
var (
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Error al generar token")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Error al validar token")
	CodeMissingTenant         = ErrRegistry.Register("MISSING_TENANT", errx.TypeAuthorization, http.StatusUnauthorized, "Token sin tenant")
	CodeInvalidServiceKey     = ErrRegistry.Register("INVALID_SERVICE_KEY", errx.TypeAuthorization, http.StatusUnauthorized, "Clave de servicio inválida")
)

// Helper functions para crear errores
func ErrTokenGenerationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenGenerationFailed)
}

func ErrTokenValidationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenValidationFailed)
}

func ErrMissingTenant() *errx.Error {
	return ErrRegistry.New(CodeMissingTenant)
}

func ErrInvalidServiceKey() *errx.Error {
	return ErrRegistry.New(CodeInvalidServiceKey)
}
