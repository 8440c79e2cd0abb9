package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/tironinho/lancaster-backend/cmd/config"
	"github.com/tironinho/lancaster-backend/internal/handlers"
	"github.com/tironinho/lancaster-backend/internal/logger"
	"github.com/tironinho/lancaster-backend/internal/middleware"
	"github.com/tironinho/lancaster-backend/internal/payments"
	"github.com/tironinho/lancaster-backend/internal/raffle"
	"github.com/tironinho/lancaster-backend/internal/storage"
	"github.com/tironinho/lancaster-backend/internal/workers"
	"go.uber.org/zap"
)

func main() {
	config.ParseFlags()

	if err := logger.Initialize(config.LogLevel); err != nil {
		panic(err)
	}

	store, err := storage.New(config.DatabaseURI)
	if err != nil {
		logger.Log.Fatal("Failed to init storage", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	err = store.Bootstrap(ctx, config.DrawSize, config.AdminEmail, config.AdminPassword)
	cancel()
	if err != nil {
		logger.Log.Fatal("Failed to bootstrap storage", zap.Error(err))
	}

	manager := raffle.NewManager(store, config.DrawSize, time.Duration(config.ReservationTTLMin)*time.Minute)
	bridge := payments.NewBridge(store, config.DrawSize)
	provider := payments.NewMercadoPago(config.MercadoPagoBaseURL, config.MercadoPagoToken)

	workers.InitSweeper(manager)

	h := handlers.New(store, manager, bridge, provider, config.PriceCents)

	if err := run(h); err != nil {
		logger.Log.Fatal("Failed to run server", zap.Error(err))
	}
}

func run(h *handlers.Handlers) error {
	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.CORSOrigin,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
	}))

	app.Get("/health", h.Health)

	app.Post("/api/auth/register", h.Register)
	app.Post("/api/auth/login", h.Login)
	app.Post("/api/auth/logout", h.Logout)
	app.Get("/api/auth/me", middleware.AuthMiddleware, h.Me)

	app.Get("/api/numbers", h.GetNumbers)
	app.Get("/api/draws/current", h.GetCurrentDraw)
	app.Get("/api/draws/:id/numbers", h.GetDrawNumbers)

	app.Post("/api/payments/webhook", h.PaymentWebhook)

	authRoutes := app.Group("/api", middleware.AuthMiddleware)
	authRoutes.Post("/reservations", h.CreateReservation)
	authRoutes.Delete("/reservations/:id", h.CancelReservation)
	authRoutes.Get("/me/reservations", h.GetMyReservations)
	authRoutes.Post("/payments/pix", h.CreatePixPayment)
	authRoutes.Get("/payments/:id/status", h.GetPaymentStatus)

	adminRoutes := app.Group("/api/admin", middleware.AuthMiddleware, middleware.AdminMiddleware)
	adminRoutes.Get("/reservations", h.AdminListReservations)

	logger.Log.Info("Running server", zap.String("address", config.RunAddress))
	return app.Listen(config.RunAddress)
}
