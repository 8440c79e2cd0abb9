package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/tironinho/lancaster-backend/internal/logger"
	"github.com/tironinho/lancaster-backend/internal/models"
	"github.com/tironinho/lancaster-backend/internal/payments"
	"go.uber.org/zap"
)

type CreatePixRequest struct {
	ReservationID string `json:"reservationId" validate:"required"`
}

func (h *Handlers) CreatePixPayment(c *fiber.Ctx) error {
	var request CreatePixRequest
	ctx, cancel := requestContext()
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	if err := c.BodyParser(&request); err != nil || request.ReservationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "reservation_id_required",
		})
	}

	reservationID, err := uuid.Parse(request.ReservationID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "reservation_id_required",
		})
	}

	reservation, err := h.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "reservation_not_found",
			})
		}
		logger.Log.Error("Error getting reservation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "payment_failed",
		})
	}

	if reservation.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "forbidden",
		})
	}
	if reservation.Status != models.ReservationActive && reservation.Status != models.ReservationPending {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "reservation status " + reservation.Status,
		})
	}

	email, _ := c.Locals("email").(string)
	amountCents := len(reservation.Numbers) * h.priceCents

	charge, err := h.provider.CreatePixPayment(ctx, payments.CreatePixRequest{
		AmountCents:   amountCents,
		Description:   "Reserva " + reservation.ID.String(),
		ReservationID: reservation.ID,
		PayerEmail:    email,
	})
	if err != nil {
		logger.Log.Error("Error creating pix payment", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "provider_unavailable",
		})
	}

	err = h.store.UpsertPayment(ctx, models.Payment{
		ID:            charge.ID,
		ReservationID: reservation.ID,
		Status:        charge.Status,
		AmountCents:   amountCents,
		Payload:       charge.Raw,
	})
	if err != nil {
		logger.Log.Error("Error persisting payment", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "payment_failed",
		})
	}

	if err = h.store.SetReservationPayment(ctx, reservation.ID, charge.ID); err != nil {
		logger.Log.Error("Error linking payment to reservation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "payment_failed",
		})
	}

	_, err = h.store.SetReservationStatus(ctx, reservation.ID, models.ReservationPending,
		models.ReservationActive, models.ReservationPending)
	if err != nil {
		logger.Log.Error("Error updating reservation status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "payment_failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":             charge.ID,
		"status":         charge.Status,
		"qr_code":        charge.QRCode,
		"qr_code_base64": charge.QRCodeBase64,
		"expires_in":     charge.ExpiresIn,
	})
}

func (h *Handlers) GetPaymentStatus(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	paymentID := c.Params("id")

	charge, err := h.provider.GetPayment(ctx, paymentID)
	if err != nil {
		logger.Log.Error("Error polling payment", zap.String("paymentID", paymentID), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "provider_unavailable",
		})
	}

	err = h.bridge.OnPaymentUpdate(ctx, charge.ID, charge.Status, charge.Raw)
	if err != nil {
		if errors.Is(err, payments.ErrPaymentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "payment_not_found",
			})
		}
		logger.Log.Error("Error applying payment update", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "payment_status_failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"paymentId":     charge.ID,
		"status":        charge.Status,
		"status_detail": charge.StatusDetail,
	})
}

type webhookNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// PaymentWebhook is always acknowledged with 200: the internal transition
// is idempotent and a missed event is re-derived by the next status poll,
// while a non-2xx response would only trigger provider redelivery storms.
func (h *Handlers) PaymentWebhook(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	var notification webhookNotification
	if err := c.BodyParser(&notification); err != nil {
		logger.Log.Warn("Webhook with unparseable body", zap.Error(err))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}

	paymentID := notification.Data.ID.String()
	if paymentID == "" {
		paymentID = c.Query("data.id", c.Query("id"))
	}

	if notification.Type != "" && notification.Type != "payment" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
	if paymentID == "" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}

	charge, err := h.provider.GetPayment(ctx, paymentID)
	if err != nil {
		logger.Log.Warn("Webhook: provider poll failed",
			zap.String("paymentID", paymentID), zap.Error(err))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}

	if err = h.bridge.OnPaymentUpdate(ctx, charge.ID, charge.Status, charge.Raw); err != nil {
		logger.Log.Warn("Webhook: payment update failed",
			zap.String("paymentID", paymentID), zap.Error(err))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
