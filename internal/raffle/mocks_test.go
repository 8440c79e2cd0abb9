package raffle

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tironinho/lancaster-backend/internal/models"
	"github.com/tironinho/lancaster-backend/internal/storage"
)

// mockStore mirrors the conditional-write semantics of the Postgres
// storage: claims are all-or-nothing and every release checks the slot
// still references the releasing reservation.
type mockStore struct {
	mu           sync.Mutex
	nextDrawID   int64
	draws        map[int64]*models.Draw
	slots        map[int64]map[int]*models.Slot
	reservations map[uuid.UUID]*models.Reservation
}

func newMockStore() *mockStore {
	return &mockStore{
		draws:        make(map[int64]*models.Draw),
		slots:        make(map[int64]map[int]*models.Slot),
		reservations: make(map[uuid.UUID]*models.Reservation),
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

func (s *mockStore) OpenDraw(_ context.Context) (models.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.Draw
	for _, draw := range s.draws {
		if draw.Status == models.DrawOpen && (latest == nil || draw.ID > latest.ID) {
			latest = draw
		}
	}
	if latest == nil {
		return models.Draw{}, sql.ErrNoRows
	}
	return *latest, nil
}

func (s *mockStore) NumberStatuses(_ context.Context, drawID int64, numbers []int) ([]models.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var slots []models.Slot
	for _, n := range numbers {
		if slot, ok := s.slots[drawID][n]; ok {
			slots = append(slots, *slot)
		}
	}
	return slots, nil
}

func (s *mockStore) ClaimReservation(_ context.Context, reservation models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range reservation.Numbers {
		slot, ok := s.slots[reservation.DrawID][n]
		if !ok || slot.Status != models.SlotAvailable {
			return storage.ErrNumbersTaken
		}
	}

	id := reservation.ID
	for _, n := range reservation.Numbers {
		slot := s.slots[reservation.DrawID][n]
		slot.Status = models.SlotReserved
		slot.ReservationID = &id
	}

	stored := reservation
	s.reservations[reservation.ID] = &stored
	return nil
}

func (s *mockStore) ReleaseNumbers(_ context.Context, drawID int64, numbers []int, reservationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked(drawID, numbers, reservationID)
	return nil
}

func (s *mockStore) releaseLocked(drawID int64, numbers []int, reservationID uuid.UUID) {
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
}

func (s *mockStore) ExpireStaleReservations(_ context.Context, now time.Time) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []models.Reservation
	for _, reservation := range s.reservations {
		if reservation.Status == models.ReservationActive && reservation.ExpiresAt.Before(now) {
			reservation.Status = models.ReservationExpired
			expired = append(expired, *reservation)
			s.releaseLocked(reservation.DrawID, reservation.Numbers, reservation.ID)
		}
	}
	return expired, nil
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
