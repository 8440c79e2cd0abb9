package models

import (
	"time"

	"github.com/google/uuid"
)

// Slot statuses.
var (
	SlotAvailable = "available"
	SlotReserved  = "reserved"
	SlotSold      = "sold"
)

// Reservation statuses.
var (
	ReservationActive    = "active"
	ReservationPending   = "pending"
	ReservationPaid      = "paid"
	ReservationExpired   = "expired"
	ReservationCancelled = "cancelled"
)

// Draw statuses.
var (
	DrawOpen   = "open"
	DrawClosed = "closed"
)

// Payment statuses as reported by the provider.
var (
	PaymentApproved  = "approved"
	PaymentPending   = "pending"
	PaymentRejected  = "rejected"
	PaymentCancelled = "cancelled"
	PaymentExpired   = "expired"
)

type User struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	CreatedAt    time.Time `db:"created_at"`
}

type Draw struct {
	ID       int64      `db:"id"`
	Status   string     `db:"status"`
	OpenedAt time.Time  `db:"opened_at"`
	ClosedAt *time.Time `db:"closed_at"`
}

// Slot is one numbered unit of inventory within a draw.
// ReservationID is non-nil exactly while Status is "reserved".
type Slot struct {
	DrawID        int64      `db:"draw_id"`
	N             int        `db:"n"`
	Status        string     `db:"status"`
	ReservationID *uuid.UUID `db:"reservation_id"`
}

type Reservation struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	DrawID    int64     `db:"draw_id"`
	Numbers   []int     `db:"numbers"`
	Status    string    `db:"status"`
	ExpiresAt time.Time `db:"expires_at"`
	PaymentID *string   `db:"payment_id"`
	CreatedAt time.Time `db:"created_at"`
}

type Payment struct {
	ID            string     `db:"id"`
	ReservationID uuid.UUID  `db:"reservation_id"`
	Status        string     `db:"status"`
	AmountCents   int        `db:"amount_cents"`
	Payload       []byte     `db:"payload"`
	CreatedAt     time.Time  `db:"created_at"`
	PaidAt        *time.Time `db:"paid_at"`
}
