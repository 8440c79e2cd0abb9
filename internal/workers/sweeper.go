package workers

import (
	"context"
	"time"

	"github.com/tironinho/lancaster-backend/internal/logger"
	"github.com/tironinho/lancaster-backend/internal/raffle"
	"go.uber.org/zap"
)

const SweepInterval = time.Minute

// InitSweeper starts the background expiry sweep. The lazy sweep before
// each reservation attempt is what guarantees correctness; this ticker only
// bounds how long a stale reservation can sit on its slots between
// requests.
func InitSweeper(manager *raffle.Manager) {
	go startSweeper(manager)

	logger.Log.Info("Expiry sweeper started")
}

func startSweeper(manager *raffle.Manager) {
	ticker := time.NewTicker(SweepInterval)
	for range ticker.C {
		sweep(manager)
	}
}

func sweep(manager *raffle.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := manager.ExpireStale(ctx); err != nil {
		logger.Log.Error("Expiry sweep failed", zap.Error(err))
	}
}
