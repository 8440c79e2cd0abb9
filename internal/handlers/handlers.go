package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/tironinho/lancaster-backend/internal/payments"
	"github.com/tironinho/lancaster-backend/internal/raffle"
	"github.com/tironinho/lancaster-backend/internal/storage"
)

const requestTimeout = 10 * time.Second

// Handlers carries the injected collaborators for every route.
type Handlers struct {
	store      *storage.Storage
	manager    *raffle.Manager
	bridge     *payments.Bridge
	provider   payments.Provider
	priceCents int
}

func New(store *storage.Storage, manager *raffle.Manager, bridge *payments.Bridge, provider payments.Provider, priceCents int) *Handlers {
	return &Handlers{
		store:      store,
		manager:    manager,
		bridge:     bridge,
		provider:   provider,
		priceCents: priceCents,
	}
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	userID, ok := c.Locals("userID").(uuid.UUID)
	return userID, ok
}

func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok": true,
		"ts": time.Now().UTC(),
	})
}
