package handlers

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tironinho/lancaster-backend/internal/logger"
	"go.uber.org/zap"
)

type NumberResponse struct {
	N      int    `json:"n"`
	Status string `json:"status"`
}

func (h *Handlers) GetNumbers(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	draw, err := h.store.OpenDraw(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"drawId":  nil,
				"numbers": []NumberResponse{},
			})
		}
		logger.Log.Error("Error getting open draw", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "numbers_failed",
		})
	}

	slots, err := h.store.DrawNumbers(ctx, draw.ID)
	if err != nil {
		logger.Log.Error("Error getting draw numbers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "numbers_failed",
		})
	}

	numbers := make([]NumberResponse, 0, len(slots))
	for _, slot := range slots {
		numbers = append(numbers, NumberResponse{N: slot.N, Status: slot.Status})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"drawId":  draw.ID,
		"numbers": numbers,
	})
}

func (h *Handlers) GetCurrentDraw(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	draw, err := h.store.OpenDraw(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusOK).JSON(nil)
		}
		logger.Log.Error("Error getting open draw", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "draw_failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":        draw.ID,
		"status":    draw.Status,
		"opened_at": draw.OpenedAt,
		"closed_at": draw.ClosedAt,
	})
}

func (h *Handlers) GetDrawNumbers(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	drawID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || drawID <= 0 {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"numbers": []NumberResponse{},
		})
	}

	slots, err := h.store.DrawNumbers(ctx, drawID)
	if err != nil {
		logger.Log.Error("Error getting draw numbers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "numbers_failed",
		})
	}

	numbers := make([]NumberResponse, 0, len(slots))
	for _, slot := range slots {
		numbers = append(numbers, NumberResponse{N: slot.N, Status: slot.Status})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"numbers": numbers,
	})
}
