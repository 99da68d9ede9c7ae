package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply-bot/models"
	"autoreply-bot/services"
)

const testSecret = "middleware-secret"

func tokenFor(t *testing.T, role models.UserRole) string {
	t.Helper()
	token, err := services.NewAuthService(nil, testSecret, time.Hour).IssueToken(&models.User{Username: "mona", Role: role})
	require.NoError(t, err)
	return token
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", RequireAuth(testSecret), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("username").(string) + ":" + c.Locals("role").(string))
	})
	app.Get("/admin", RequireAuth(testSecret), RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/open-admin", RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestRequireAuth(t *testing.T) {
	app := protectedApp()
	token := tokenFor(t, models.RoleAgent)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, status(t, app, req))

	// websocket clients pass the token in the query
	req = httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)
	assert.Equal(t, http.StatusOK, status(t, app, req))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status(t, app, req))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, status(t, app, req))
}

func TestRequireRole(t *testing.T) {
	app := protectedApp()

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, models.RoleAdmin))
	assert.Equal(t, http.StatusOK, status(t, app, req))

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, models.RoleAgent))
	assert.Equal(t, http.StatusForbidden, status(t, app, req))

	// without RequireAuth there is no role in locals
	req = httptest.NewRequest(http.MethodGet, "/open-admin", nil)
	assert.Equal(t, http.StatusForbidden, status(t, app, req))
}
