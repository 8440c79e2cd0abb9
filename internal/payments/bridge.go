package payments

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tironinho/lancaster-backend/internal/logger"
	"github.com/tironinho/lancaster-backend/internal/models"
	"go.uber.org/zap"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Store is the query contract the bridge needs. Every transition it drives
// is a conditional write, which is what makes webhook redelivery safe.
type Store interface {
	GetPayment(ctx context.Context, id string) (models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id, status string, payload []byte, paidAt *time.Time) error
	GetReservation(ctx context.Context, id uuid.UUID) (models.Reservation, error)
	SetReservationStatus(ctx context.Context, id uuid.UUID, to string, from ...string) (bool, error)
	MarkNumbersSold(ctx context.Context, drawID int64, numbers []int, reservationID uuid.UUID) (int64, error)
	ReleaseNumbers(ctx context.Context, drawID int64, numbers []int, reservationID uuid.UUID) error
	SoldCount(ctx context.Context, drawID int64) (int, error)
	CloseDraw(ctx context.Context, drawID int64) (bool, error)
	CreateDraw(ctx context.Context, size int) (models.Draw, error)
}

// Bridge translates provider payment statuses into reservation-state
// transitions.
type Bridge struct {
	store    Store
	drawSize int
	now      func() time.Time
}

func NewBridge(store Store, drawSize int) *Bridge {
	return &Bridge{
		store:    store,
		drawSize: drawSize,
		now:      time.Now,
	}
}

// OnPaymentUpdate applies the state transition for a payment's new provider
// status. Invoking it again with the same (paymentID, status) pair yields
// the same end state.
func (b *Bridge) OnPaymentUpdate(ctx context.Context, paymentID, status string, payload []byte) error {
	payment, err := b.store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentNotFound
		}
		return err
	}

	var paidAt *time.Time
	if status == models.PaymentApproved {
		now := b.now()
		paidAt = &now
	}
	if err = b.store.UpdatePaymentStatus(ctx, paymentID, status, payload, paidAt); err != nil {
		return err
	}

	reservation, err := b.store.GetReservation(ctx, payment.ReservationID)
	if err != nil {
		return err
	}

	switch status {
	case models.PaymentApproved:
		return b.applyApproved(ctx, reservation)
	case models.PaymentRejected, models.PaymentCancelled, models.PaymentExpired:
		return b.applyFailed(ctx, reservation, status)
	default:
		// Intermediate provider statuses only refresh the cached payment.
		return nil
	}
}

func (b *Bridge) applyApproved(ctx context.Context, reservation models.Reservation) error {
	flipped, err := b.store.SetReservationStatus(ctx, reservation.ID, models.ReservationPaid,
		models.ReservationActive, models.ReservationPending)
	if err != nil {
		return err
	}

	sold, err := b.store.MarkNumbersSold(ctx, reservation.DrawID, reservation.Numbers, reservation.ID)
	if err != nil {
		return err
	}

	if flipped && sold < int64(len(reservation.Numbers)) {
		// A late approval: some slots no longer reference this reservation
		// (released by the sweep and possibly re-sold). The slots are not
		// stolen back; this needs manual reconciliation.
		logger.Log.Warn("Approved payment lost slots to expiry",
			zap.String("reservationID", reservation.ID.String()),
			zap.Int64("sold", sold),
			zap.Int("requested", len(reservation.Numbers)))
	}

	return b.maybeRollover(ctx, reservation.DrawID)
}

func (b *Bridge) applyFailed(ctx context.Context, reservation models.Reservation, status string) error {
	if reservation.Status == models.ReservationPaid {
		// Paid is terminal and wins any race with a stale failure event.
		return nil
	}

	to := models.ReservationCancelled
	if status == models.PaymentExpired {
		to = models.ReservationExpired
	}

	if _, err := b.store.SetReservationStatus(ctx, reservation.ID, to,
		models.ReservationActive, models.ReservationPending); err != nil {
		return err
	}

	return b.store.ReleaseNumbers(ctx, reservation.DrawID, reservation.Numbers, reservation.ID)
}

// maybeRollover closes the draw once its full inventory is sold and opens
// the successor. The close is conditional on the draw still being open, so
// two concurrent triggers cannot both create a new draw.
func (b *Bridge) maybeRollover(ctx context.Context, drawID int64) error {
	sold, err := b.store.SoldCount(ctx, drawID)
	if err != nil {
		return err
	}
	if sold < b.drawSize {
		return nil
	}

	closed, err := b.store.CloseDraw(ctx, drawID)
	if err != nil {
		return err
	}
	if !closed {
		return nil
	}

	draw, err := b.store.CreateDraw(ctx, b.drawSize)
	if err != nil {
		return err
	}

	logger.Log.Info("Draw rolled over",
		zap.Int64("closedDrawID", drawID),
		zap.Int64("newDrawID", draw.ID))

	return nil
}
