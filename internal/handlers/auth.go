package handlers

import (
	"database/sql"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/tironinho/lancaster-backend/internal/auth"
	"github.com/tironinho/lancaster-backend/internal/logger"
	"github.com/tironinho/lancaster-backend/internal/models"
	"go.uber.org/zap"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name,omitempty"`
	Email   string    `json:"email"`
	IsAdmin bool      `json:"is_admin"`
}

func (h *Handlers) Register(c *fiber.Ctx) error {
	var request RegisterRequest
	ctx, cancel := requestContext()
	defer cancel()

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_payload",
		})
	}
	if request.Name == "" || request.Email == "" || request.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_payload",
		})
	}

	_, err := h.store.GetUserByEmail(ctx, request.Email)
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "email_in_use",
		})
	}
	if !errors.Is(err, sql.ErrNoRows) {
		logger.Log.Error("Error while querying user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "register_failed",
		})
	}

	hashedPassword, err := auth.HashPassword(request.Password)
	if err != nil {
		logger.Log.Error("Error hashing password", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "register_failed",
		})
	}

	user := models.User{
		ID:           uuid.New(),
		Name:         request.Name,
		Email:        request.Email,
		PasswordHash: hashedPassword,
	}

	if err = h.store.CreateUser(ctx, user); err != nil {
		logger.Log.Error("Error creating user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "register_failed",
		})
	}

	token, err := auth.GenerateToken(user.ID, user.Email, false)
	if err != nil {
		logger.Log.Error("Error generating token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "register_failed",
		})
	}

	setAuthCookie(c, token)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":    true,
		"token": token,
		"user": UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
	})
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	var request LoginRequest
	ctx, cancel := requestContext()
	defer cancel()

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_payload",
		})
	}
	if request.Email == "" || request.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_payload",
		})
	}

	user, err := h.store.GetUserByEmail(ctx, request.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Log.Error("Error while querying user", zap.Error(err))
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid_credentials",
		})
	}

	if !auth.CheckPassword(request.Password, user.PasswordHash) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid_credentials",
		})
	}

	token, err := auth.GenerateToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		logger.Log.Error("Error generating token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "login_failed",
		})
	}

	setAuthCookie(c, token)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":    true,
		"token": token,
		"user": UserResponse{
			ID:      user.ID,
			Name:    user.Name,
			Email:   user.Email,
			IsAdmin: user.IsAdmin,
		},
	})
}

func (h *Handlers) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

func (h *Handlers) Me(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	email, _ := c.Locals("email").(string)
	isAdmin, _ := c.Locals("isAdmin").(bool)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok": true,
		"user": UserResponse{
			ID:      userID,
			Email:   email,
			IsAdmin: isAdmin,
		},
	})
}

func setAuthCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  time.Now().Add(auth.TokenExp),
		HTTPOnly: true,
	})
}
