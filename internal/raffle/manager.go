// Package raffle implements the reservation lifecycle for numbered draw
// slots: available -> reserved -> sold, with TTL expiry returning slots to
// available. Correctness under concurrent requests comes from the store's
// conditional writes, never from in-process locking.
package raffle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tironinho/lancaster-backend/internal/logger"
	"github.com/tironinho/lancaster-backend/internal/models"
	"github.com/tironinho/lancaster-backend/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrNoOpenDraw          = errors.New("no open draw")
	ErrNoNumbers           = errors.New("no numbers requested")
	ErrNumberOutOfRange    = errors.New("number out of range")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrNotOwner            = errors.New("reservation owned by another user")
	ErrAlreadyPaid         = errors.New("reservation already paid")
)

// NumberUnavailableError names the offending number so the client can adjust
// its request.
type NumberUnavailableError struct {
	N int
}

func (e *NumberUnavailableError) Error() string {
	return fmt.Sprintf("number %d unavailable", e.N)
}

// Store is the narrow query contract the manager needs from the inventory
// store. Claim and release must be conditional writes evaluated by the
// storage engine at write time.
type Store interface {
	OpenDraw(ctx context.Context) (models.Draw, error)
	NumberStatuses(ctx context.Context, drawID int64, numbers []int) ([]models.Slot, error)
	ClaimReservation(ctx context.Context, reservation models.Reservation) error
	ReleaseNumbers(ctx context.Context, drawID int64, numbers []int, reservationID uuid.UUID) error
	ExpireStaleReservations(ctx context.Context, now time.Time) ([]models.Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (models.Reservation, error)
	SetReservationStatus(ctx context.Context, id uuid.UUID, to string, from ...string) (bool, error)
}

type Manager struct {
	store    Store
	drawSize int
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(store Store, drawSize int, ttl time.Duration) *Manager {
	return &Manager{
		store:    store,
		drawSize: drawSize,
		ttl:      ttl,
		now:      time.Now,
	}
}

// ReserveNumbers claims the requested numbers in the open draw for userID.
// Either every number transitions to reserved under the new reservation or
// none do. The availability pre-check only exists to name the offending
// number early; the claim itself is conditioned on status at write time, so
// of two racing requests exactly one wins.
func (m *Manager) ReserveNumbers(ctx context.Context, userID uuid.UUID, numbers []int) (models.Reservation, error) {
	if err := m.ExpireStale(ctx); err != nil {
		return models.Reservation{}, err
	}

	draw, err := m.store.OpenDraw(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Reservation{}, ErrNoOpenDraw
		}
		return models.Reservation{}, err
	}

	nums, err := m.normalize(numbers)
	if err != nil {
		return models.Reservation{}, err
	}

	if err = m.checkAvailable(ctx, draw.ID, nums); err != nil {
		return models.Reservation{}, err
	}

	reservation := models.Reservation{
		ID:        uuid.New(),
		UserID:    userID,
		DrawID:    draw.ID,
		Numbers:   nums,
		Status:    models.ReservationActive,
		ExpiresAt: m.now().Add(m.ttl),
	}

	err = m.store.ClaimReservation(ctx, reservation)
	if err != nil {
		if errors.Is(err, storage.ErrNumbersTaken) {
			// Lost the race after the pre-check passed. Re-read to name
			// the number that got away.
			if checkErr := m.checkAvailable(ctx, draw.ID, nums); checkErr != nil {
				return models.Reservation{}, checkErr
			}
			return models.Reservation{}, &NumberUnavailableError{N: nums[0]}
		}
		return models.Reservation{}, err
	}

	logger.Log.Info("Reservation created",
		zap.String("reservationID", reservation.ID.String()),
		zap.Int64("drawID", draw.ID),
		zap.Ints("numbers", nums),
		zap.Time("expiresAt", reservation.ExpiresAt))

	return reservation, nil
}

// ExpireStale sweeps reservations whose deadline has passed. Safe to run
// concurrently from any number of callers: both the status flip and the
// slot release are conditioned, so repeats are no-ops.
func (m *Manager) ExpireStale(ctx context.Context) error {
	expired, err := m.store.ExpireStaleReservations(ctx, m.now())
	if err != nil {
		return err
	}

	for _, reservation := range expired {
		logger.Log.Info("Reservation expired",
			zap.String("reservationID", reservation.ID.String()),
			zap.Ints("numbers", reservation.Numbers))
	}

	return nil
}

// CancelReservation releases the reservation's slots and marks it
// cancelled. Paid reservations are terminal and cannot be cancelled.
func (m *Manager) CancelReservation(ctx context.Context, id, userID uuid.UUID) error {
	reservation, err := m.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReservationNotFound
		}
		return err
	}

	if reservation.UserID != userID {
		return ErrNotOwner
	}
	if reservation.Status == models.ReservationPaid {
		return ErrAlreadyPaid
	}

	ok, err := m.store.SetReservationStatus(ctx, id, models.ReservationCancelled,
		models.ReservationActive, models.ReservationPending)
	if err != nil {
		return err
	}
	if !ok {
		// Already expired or cancelled; the conditioned release below is
		// still safe to repeat.
		logger.Log.Info("Cancel on non-active reservation",
			zap.String("reservationID", id.String()),
			zap.String("status", reservation.Status))
	}

	return m.store.ReleaseNumbers(ctx, reservation.DrawID, reservation.Numbers, reservation.ID)
}

func (m *Manager) normalize(numbers []int) ([]int, error) {
	if len(numbers) == 0 {
		return nil, ErrNoNumbers
	}

	seen := make(map[int]bool, len(numbers))
	nums := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if n < 0 || n >= m.drawSize {
			return nil, ErrNumberOutOfRange
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		nums = append(nums, n)
	}

	return nums, nil
}

func (m *Manager) checkAvailable(ctx context.Context, drawID int64, numbers []int) error {
	slots, err := m.store.NumberStatuses(ctx, drawID, numbers)
	if err != nil {
		return err
	}

	byNumber := make(map[int]models.Slot, len(slots))
	for _, slot := range slots {
		byNumber[slot.N] = slot
	}

	for _, n := range numbers {
		slot, ok := byNumber[n]
		if !ok {
			return ErrNumberOutOfRange
		}
		if slot.Status != models.SlotAvailable {
			return &NumberUnavailableError{N: n}
		}
	}

	return nil
}
