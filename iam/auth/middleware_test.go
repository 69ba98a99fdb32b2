package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(svc TokenService) *fiber.App {
	app := fiber.New()
	mw := NewAuthMiddleware(svc)
	app.Get("/me", mw.Authenticate(), func(c *fiber.Ctx) error {
		authCtx, ok := GetAuthContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendString(authCtx.TenantID.String())
	})
	app.Get("/admin", mw.Authenticate(), mw.RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Post("/internal", RequireServiceKey("s3cret"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", time.Minute, "idp")

	token, err := svc.GenerateAccessToken("user-1", "tenant-1", map[string]any{"email": "a@b.c", "is_admin": true})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, kernel.UserID("user-1"), claims.UserID)
	assert.Equal(t, kernel.TenantID("tenant-1"), claims.TenantID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.True(t, claims.IsAdmin)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	svc := NewJWTService("secret", time.Minute, "idp")

	other := NewJWTService("other-secret", time.Minute, "idp")
	forged, err := other.GenerateAccessToken("user-1", "tenant-1", nil)
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(forged)
	assert.Error(t, err)

	wrongIssuer := NewJWTService("secret", time.Minute, "someone-else")
	token, err := wrongIssuer.GenerateAccessToken("user-1", "tenant-1", nil)
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(token)
	assert.Error(t, err)

	noTenant, err := svc.GenerateAccessToken("user-1", "", nil)
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(noTenant)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		UserID:   "user-1",
		TenantID: "tenant-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(signed)
	assert.Error(t, err)
}

func TestAuthenticateMiddleware(t *testing.T) {
	svc := NewJWTService("secret", time.Minute, "")
	app := newTestApp(svc)

	token, err := svc.GenerateAccessToken("user-1", "tenant-1", nil)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireServiceKey(t *testing.T) {
	app := newTestApp(NewJWTService("secret", time.Minute, ""))

	req := httptest.NewRequest("POST", "/internal", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("POST", "/internal", nil)
	req.Header.Set(ServiceKeyHeader, "s3cret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
