package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tironinho/lancaster-backend/cmd/config"
	"github.com/tironinho/lancaster-backend/internal/auth"
)

func testApp() *fiber.App {
	app := fiber.New()
	app.Get("/protected", AuthMiddleware, func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uuid.UUID)
		return c.JSON(fiber.Map{"userID": userID})
	})
	app.Get("/admin", AuthMiddleware, AdminMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	app := testApp()

	req := httptest.NewRequest("GET", "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	config.JWTSecret = "test-secret"
	app := testApp()

	token, err := auth.GenerateToken(uuid.New(), "user@example.com", false)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_CookieToken(t *testing.T) {
	config.JWTSecret = "test-secret"
	app := testApp()

	token, err := auth.GenerateToken(uuid.New(), "user@example.com", false)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_BadToken(t *testing.T) {
	config.JWTSecret = "test-secret"
	app := testApp()

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAdminMiddleware(t *testing.T) {
	config.JWTSecret = "test-secret"
	app := testApp()

	userToken, err := auth.GenerateToken(uuid.New(), "user@example.com", false)
	require.NoError(t, err)
	adminToken, err := auth.GenerateToken(uuid.New(), "admin@example.com", true)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
