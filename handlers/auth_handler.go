package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"autoreply-bot/models"
	"autoreply-bot/services"
)

// Authenticator verifies credentials and issues tokens
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, *models.User, error)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Status string       `json:"status"`
	Token  string       `json:"token"`
	User   *models.User `json:"user"`
}

// AuthHandler serves the login endpoint
type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid request body",
		})
	}

	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Username and password are required",
		})
	}

	token, user, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid credentials",
		})
	}
	if err != nil {
		slog.Error("Login failed", "error", err, "username", req.Username)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Login failed",
		})
	}

	slog.Info("User logged in", "username", user.Username)
	return c.JSON(LoginResponse{Status: "success", Token: token, User: user})
}

// CurrentUser returns the identity carried by the request token
func (h *AuthHandler) CurrentUser(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "success",
		"username": c.Locals("username"),
		"role":     c.Locals("role"),
	})
}
