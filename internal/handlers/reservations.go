package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/tironinho/lancaster-backend/internal/logger"
	"github.com/tironinho/lancaster-backend/internal/raffle"
	"go.uber.org/zap"
)

type ReserveRequest struct {
	Numbers []int `json:"numbers" validate:"required"`
}

type ReservationResponse struct {
	ID          uuid.UUID `json:"id"`
	DrawID      int64     `json:"draw_id"`
	Numbers     []int     `json:"numbers"`
	AmountCents int       `json:"amount_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *Handlers) CreateReservation(c *fiber.Ctx) error {
	var request ReserveRequest
	ctx, cancel := requestContext()
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no_numbers",
		})
	}

	reservation, err := h.manager.ReserveNumbers(ctx, userID, request.Numbers)
	if err != nil {
		var unavailable *raffle.NumberUnavailableError
		switch {
		case errors.Is(err, raffle.ErrNoNumbers):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "no_numbers",
			})
		case errors.Is(err, raffle.ErrNumberOutOfRange):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid_numbers",
			})
		case errors.Is(err, raffle.ErrNoOpenDraw):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "no_open_draw",
			})
		case errors.As(err, &unavailable):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "unavailable",
				"n":     unavailable.N,
			})
		default:
			logger.Log.Error("Error creating reservation", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "reserve_failed",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"reservationId": reservation.ID,
		"drawId":        reservation.DrawID,
		"expiresAt":     reservation.ExpiresAt,
	})
}

func (h *Handlers) CancelReservation(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	reservationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_reservation_id",
		})
	}

	err = h.manager.CancelReservation(ctx, reservationID, userID)
	if err != nil {
		switch {
		case errors.Is(err, raffle.ErrReservationNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "not_found",
			})
		case errors.Is(err, raffle.ErrNotOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		case errors.Is(err, raffle.ErrAlreadyPaid):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "already_paid",
			})
		default:
			logger.Log.Error("Error cancelling reservation", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "cancel_failed",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

func (h *Handlers) GetMyReservations(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	reservations, err := h.store.GetUserReservations(ctx, userID)
	if err != nil {
		logger.Log.Error("Error getting user reservations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "me_list_failed",
		})
	}

	response := make([]ReservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		response = append(response, ReservationResponse{
			ID:          reservation.ID,
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
	})
}
