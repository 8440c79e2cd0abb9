package payments

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tironinho/lancaster-backend/internal/models"
)

type mockStore struct {
	mu           sync.Mutex
	nextDrawID   int64
	draws        map[int64]*models.Draw
	slots        map[int64]map[int]*models.Slot
	reservations map[uuid.UUID]*models.Reservation
	payments     map[string]*models.Payment
}

func newMockStore() *mockStore {
	return &mockStore{
		draws:        make(map[int64]*models.Draw),
		slots:        make(map[int64]map[int]*models.Slot),
		reservations: make(map[uuid.UUID]*models.Reservation),
		payments:     make(map[string]*models.Payment),
	}
}

func (s *mockStore) addOpenDraw(size int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDrawID++
	id := s.nextDrawID
	s.draws[id] = &models.Draw{ID: id, Status: models.DrawOpen, OpenedAt: time.Now()}
	s.slots[id] = make(map[int]*models.Slot, size)
	for n := 0; n < size; n++ {
		s.slots[id][n] = &models.Slot{DrawID: id, N: n, Status: models.SlotAvailable}
	}
	return id
}

// addReservation seeds a reservation holding its numbers as reserved slots,
// plus a pending payment linked to it.
func (s *mockStore) addReservation(drawID int64, numbers []int, status, paymentID string) *models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	reservation := &models.Reservation{
		ID:        id,
		UserID:    uuid.New(),
		DrawID:    drawID,
		Numbers:   numbers,
		Status:    status,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
	s.reservations[id] = reservation

	for _, n := range numbers {
		s.slots[drawID][n].Status = models.SlotReserved
		s.slots[drawID][n].ReservationID = &id
	}

	if paymentID != "" {
		s.payments[paymentID] = &models.Payment{
			ID:            paymentID,
			ReservationID: id,
			Status:        models.PaymentPending,
		}
	}

	return reservation
}

func (s *mockStore) slotStatus(drawID int64, n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[drawID][n].Status
}

func (s *mockStore) setSlot(drawID int64, n int, status string, reservationID *uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[drawID][n].Status = status
	s.slots[drawID][n].ReservationID = reservationID
}

func (s *mockStore) reservationStatus(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservations[id].Status
}

func (s *mockStore) openDrawCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, draw := range s.draws {
		if draw.Status == models.DrawOpen {
			count++
		}
	}
	return count
}

func (s *mockStore) GetPayment(_ context.Context, id string) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return models.Payment{}, sql.ErrNoRows
	}
	return *payment, nil
}

func (s *mockStore) UpdatePaymentStatus(_ context.Context, id, status string, payload []byte, paidAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment, ok := s.payments[id]; ok {
		payment.Status = status
		if payload != nil {
			payment.Payload = payload
		}
		if paidAt != nil {
			payment.PaidAt = paidAt
		}
	}
	return nil
}

func (s *mockStore) GetReservation(_ context.Context, id uuid.UUID) (models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return models.Reservation{}, sql.ErrNoRows
	}
	return *reservation, nil
}

func (s *mockStore) SetReservationStatus(_ context.Context, id uuid.UUID, to string, from ...string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if reservation.Status == status {
			reservation.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *mockStore) MarkNumbersSold(_ context.Context, drawID int64, numbers []int, reservationID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sold int64
	for _, n := range numbers {
		slot, ok := s.slots[drawID][n]
		if !ok {
			continue
		}
		if slot.Status == models.SlotReserved && slot.ReservationID != nil && *slot.ReservationID == reservationID {
			slot.Status = models.SlotSold
			slot.ReservationID = nil
			sold++
		}
	}
	return sold, nil
}

func (s *mockStore) ReleaseNumbers(_ context.Context, drawID int64, numbers []int, reservationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range numbers {
		slot, ok := s.slots[drawID][n]
		if !ok {
			continue
		}
		if slot.Status == models.SlotReserved && slot.ReservationID != nil && *slot.ReservationID == reservationID {
			slot.Status = models.SlotAvailable
			slot.ReservationID = nil
		}
	}
	return nil
}

func (s *mockStore) SoldCount(_ context.Context, drawID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, slot := range s.slots[drawID] {
		if slot.Status == models.SlotSold {
			count++
		}
	}
	return count, nil
}

func (s *mockStore) CloseDraw(_ context.Context, drawID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draw, ok := s.draws[drawID]
	if !ok || draw.Status != models.DrawOpen {
		return false, nil
	}
	draw.Status = models.DrawClosed
	now := time.Now()
	draw.ClosedAt = &now
	return true, nil
}

func (s *mockStore) CreateDraw(_ context.Context, size int) (models.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDrawID++
	id := s.nextDrawID
	s.draws[id] = &models.Draw{ID: id, Status: models.DrawOpen, OpenedAt: time.Now()}
	s.slots[id] = make(map[int]*models.Slot, size)
	for n := 0; n < size; n++ {
		s.slots[id][n] = &models.Slot{DrawID: id, N: n, Status: models.SlotAvailable}
	}
	return *s.draws[id], nil
}
