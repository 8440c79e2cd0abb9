package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/tironinho/lancaster-backend/internal/logger"
	"go.uber.org/zap"
)

type AdminReservationResponse struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DrawID      int64     `json:"draw_id"`
	Numbers     []int     `json:"numbers"`
	AmountCents int       `json:"amount_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *Handlers) AdminListReservations(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	status := c.Query("status")
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := c.QueryInt("pageSize", 50)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > 200 {
		pageSize = 200
	}
	offset := (page - 1) * pageSize

	reservations, total, err := h.store.ListReservations(ctx, status, pageSize, offset)
	if err != nil {
		logger.Log.Error("Error listing reservations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "admin_list_failed",
		})
	}

	response := make([]AdminReservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		response = append(response, AdminReservationResponse{
			ID:          reservation.ID,
			UserID:      reservation.UserID,
			Email:       reservation.Email,
			DrawID:      reservation.DrawID,
			Numbers:     reservation.Numbers,
			AmountCents: len(reservation.Numbers) * h.priceCents,
			Status:      reservation.Status,
			CreatedAt:   reservation.CreatedAt,
			ExpiresAt:   reservation.ExpiresAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"reservations": response,
		"total":        total,
	})
}
