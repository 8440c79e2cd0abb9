package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"github.com/tironinho/lancaster-backend/internal/auth"
	"github.com/tironinho/lancaster-backend/internal/logger"
	"github.com/tironinho/lancaster-backend/internal/models"
	"go.uber.org/zap"
)

var (
	ErrConnectionFailed    = errors.New("db connection failed")
	ErrCreatingTableFailed = errors.New("creating table failed")

	// ErrNumbersTaken means the conditional claim updated fewer rows than
	// requested: another reservation got there first.
	ErrNumbersTaken = errors.New("numbers already taken")
)

// Storage is the injected handle over the Postgres inventory store. All
// state transitions are expressed as conditional writes so the database
// stays the sole arbiter of concurrent claims.
type Storage struct {
	db *sql.DB
}

func New(databaseURI string) (*Storage, error) {
	if databaseURI == "" {
		return nil, ErrConnectionFailed
	}

	db, err := sql.Open("pgx", databaseURI)
	if err != nil {
		logger.Log.Error("Error opening database connection", zap.Error(err))
		return nil, ErrConnectionFailed
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap creates the schema if absent, guarantees one open draw with a
// full slot range and optionally seeds an admin user.
func (s *Storage) Bootstrap(ctx context.Context, drawSize int, adminEmail, adminPassword string) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY NOT NULL,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS draws (
			id SERIAL PRIMARY KEY NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			opened_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			closed_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS numbers (
			draw_id INT NOT NULL REFERENCES draws(id) ON DELETE CASCADE,
			n SMALLINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'available',
			reservation_id UUID,
			PRIMARY KEY (draw_id, n)
		);`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id UUID PRIMARY KEY NOT NULL,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			draw_id INT NOT NULL REFERENCES draws(id) ON DELETE CASCADE,
			numbers INT[] NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			expires_at TIMESTAMPTZ NOT NULL,
			payment_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY NOT NULL,
			reservation_id UUID NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			amount_cents INT NOT NULL DEFAULT 0,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			paid_at TIMESTAMPTZ
		);`,
	}

	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, table); err != nil {
			logger.Log.Error("Error creating table", zap.Error(err))
			return ErrCreatingTableFailed
		}
	}

	if err := s.ensureOpenDraw(ctx, drawSize); err != nil {
		return err
	}

	if adminEmail != "" && adminPassword != "" {
		if err := s.seedAdmin(ctx, adminEmail, adminPassword); err != nil {
			return err
		}
	}

	return nil
}

func (s *Storage) ensureOpenDraw(ctx context.Context, drawSize int) error {
	_, err := s.OpenDraw(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = s.CreateDraw(ctx, drawSize)
	return err
}

func (s *Storage) seedAdmin(ctx context.Context, email, password string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1));
	`, email).Scan(&exists)
	if err != nil || exists {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, is_admin) VALUES ($1, $2, $3, $4, TRUE);
	`, uuid.New(), "Admin", email, hash)
	return err
}

// --- users ---

func (s *Storage) CreateUser(ctx context.Context, user models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, is_admin) VALUES ($1, $2, $3, $4, $5);
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.IsAdmin)
	return err
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, is_admin, created_at
		  FROM users WHERE LOWER(email) = LOWER($1);
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

// --- draws ---

func (s *Storage) OpenDraw(ctx context.Context) (models.Draw, error) {
	var draw models.Draw

	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, opened_at, closed_at
		  FROM draws WHERE status = 'open' ORDER BY id DESC LIMIT 1;
	`).Scan(&draw.ID, &draw.Status, &draw.OpenedAt, &draw.ClosedAt)
	if err != nil {
		return models.Draw{}, err
	}

	return draw, nil
}

// CreateDraw opens a fresh draw with a full range of available slots.
func (s *Storage) CreateDraw(ctx context.Context, size int) (models.Draw, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Draw{}, err
	}

	var draw models.Draw
	draw.Status = models.DrawOpen

	err = tx.QueryRowContext(ctx, `
		INSERT INTO draws (status) VALUES ('open') RETURNING id, opened_at;
	`).Scan(&draw.ID, &draw.OpenedAt)
	if err != nil {
		tx.Rollback()
		return models.Draw{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO numbers (draw_id, n, status)
		SELECT $1, g, 'available' FROM generate_series(0, $2 - 1) AS g;
	`, draw.ID, size)
	if err != nil {
		tx.Rollback()
		return models.Draw{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Draw{}, err
	}

	return draw, nil
}

// CloseDraw flips the draw open -> closed. Returns false when some other
// caller already closed it, so only one rollover proceeds.
func (s *Storage) CloseDraw(ctx context.Context, drawID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE draws SET status = 'closed', closed_at = NOW()
		 WHERE id = $1 AND status = 'open';
	`, drawID)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// --- slots ---

func (s *Storage) DrawNumbers(ctx context.Context, drawID int64) ([]models.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT draw_id, n, status, reservation_id
		  FROM numbers WHERE draw_id = $1 ORDER BY n ASC;
	`, drawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSlots(rows)
}

func (s *Storage) NumberStatuses(ctx context.Context, drawID int64, numbers []int) ([]models.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT draw_id, n, status, reservation_id
		  FROM numbers WHERE draw_id = $1 AND n = ANY($2) ORDER BY n ASC;
	`, drawID, pq.Array(intsToInt64(numbers)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSlots(rows)
}

func (s *Storage) SoldCount(ctx context.Context, drawID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::INT FROM numbers WHERE draw_id = $1 AND status = 'sold';
	`, drawID).Scan(&count)
	return count, err
}

// ClaimReservation inserts the reservation row and claims its slots in one
// transaction. The claim is a single conditional bulk update evaluated by
// the database at write time; fewer affected rows than requested means a
// losing race and the whole transaction rolls back.
func (s *Storage) ClaimReservation(ctx context.Context, reservation models.Reservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, user_id, draw_id, numbers, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`, reservation.ID, reservation.UserID, reservation.DrawID,
		pq.Array(intsToInt64(reservation.Numbers)), reservation.Status, reservation.ExpiresAt)
	if err != nil {
		tx.Rollback()
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE numbers SET status = 'reserved', reservation_id = $1
		 WHERE draw_id = $2 AND n = ANY($3) AND status = 'available';
	`, reservation.ID, reservation.DrawID, pq.Array(intsToInt64(reservation.Numbers)))
	if err != nil {
		tx.Rollback()
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}

	if affected != int64(len(reservation.Numbers)) {
		tx.Rollback()
		return ErrNumbersTaken
	}

	return tx.Commit()
}

// ReleaseNumbers returns slots to available, but only those still owned by
// the given reservation. A slot that has meanwhile been sold or re-reserved
// is left untouched.
func (s *Storage) ReleaseNumbers(ctx context.Context, drawID int64, numbers []int, reservationID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE numbers SET status = 'available', reservation_id = NULL
		 WHERE draw_id = $1 AND n = ANY($2)
		   AND status = 'reserved' AND reservation_id = $3;
	`, drawID, pq.Array(intsToInt64(numbers)), reservationID)
	return err
}

// MarkNumbersSold transitions reserved slots to sold, conditioned on the
// slot still referencing the paying reservation. Returns how many rows
// actually flipped so the caller can spot a late approval that lost its
// slots to the expiry sweep.
func (s *Storage) MarkNumbersSold(ctx context.Context, drawID int64, numbers []int, reservationID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE numbers SET status = 'sold', reservation_id = NULL
		 WHERE draw_id = $1 AND n = ANY($2)
		   AND status = 'reserved' AND reservation_id = $3;
	`, drawID, pq.Array(intsToInt64(numbers)), reservationID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// --- reservations ---

func (s *Storage) GetReservation(ctx context.Context, id uuid.UUID) (models.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, draw_id, numbers, status, expires_at, payment_id, created_at
		  FROM reservations WHERE id = $1;
	`, id)

	return scanReservation(row)
}

func (s *Storage) GetUserReservations(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, draw_id, numbers, status, expires_at, payment_id, created_at
		  FROM reservations WHERE user_id = $1 ORDER BY created_at DESC;
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}

	return reservations, rows.Err()
}

type AdminReservation struct {
	models.Reservation
	Email string
}

func (s *Storage) ListReservations(ctx context.Context, status string, limit, offset int) ([]AdminReservation, int, error) {
	var total int
	countQuery := `SELECT COUNT(*)::INT FROM reservations`
	args := []any{}
	if status != "" {
		countQuery += ` WHERE status = $1`
		args = append(args, status)
	}
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT r.id, r.user_id, r.draw_id, r.numbers, r.status, r.expires_at, r.payment_id, r.created_at, u.email
		  FROM reservations r
		  JOIN users u ON u.id = r.user_id`
	if status != "" {
		listQuery += ` WHERE r.status = $1`
	}
	listQuery += ` ORDER BY r.created_at DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reservations []AdminReservation
	for rows.Next() {
		var r AdminReservation
		var numbers pq.Int64Array
		err = rows.Scan(&r.ID, &r.UserID, &r.DrawID, &numbers, &r.Status, &r.ExpiresAt, &r.PaymentID, &r.CreatedAt, &r.Email)
		if err != nil {
			return nil, 0, err
		}
		r.Numbers = int64sToInt(numbers)
		reservations = append(reservations, r)
	}

	return reservations, total, rows.Err()
}

// SetReservationStatus transitions a reservation to a new status only if its
// current status is one of from. Returns whether the transition happened,
// which makes repeat deliveries of the same payment event no-ops.
func (s *Storage) SetReservationStatus(ctx context.Context, id uuid.UUID, to string, from ...string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET status = $2 WHERE id = $1 AND status = ANY($3);
	`, id, to, pq.Array(from))
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (s *Storage) SetReservationPayment(ctx context.Context, id uuid.UUID, paymentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET payment_id = $2 WHERE id = $1;
	`, id, paymentID)
	return err
}

// ExpireStaleReservations flips every active reservation past its deadline
// to expired and releases its still-owned slots, all in one transaction so
// a crash cannot strand reserved slots behind an already-expired
// reservation.
func (s *Storage) ExpireStaleReservations(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		UPDATE reservations SET status = 'expired'
		 WHERE status = 'active' AND expires_at < $1
		 RETURNING id, user_id, draw_id, numbers, status, expires_at, payment_id, created_at;
	`, now)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	var expired []models.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			tx.Rollback()
			return nil, err
		}
		expired = append(expired, reservation)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		tx.Rollback()
		return nil, err
	}
	rows.Close()

	for _, reservation := range expired {
		_, err = tx.ExecContext(ctx, `
			UPDATE numbers SET status = 'available', reservation_id = NULL
			 WHERE draw_id = $1 AND n = ANY($2)
			   AND status = 'reserved' AND reservation_id = $3;
		`, reservation.DrawID, pq.Array(intsToInt64(reservation.Numbers)), reservation.ID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return expired, nil
}

// --- payments ---

func (s *Storage) UpsertPayment(ctx context.Context, payment models.Payment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, reservation_id, status, amount_cents, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, payload = EXCLUDED.payload;
	`, payment.ID, payment.ReservationID, payment.Status, payment.AmountCents, payment.Payload)
	return err
}

func (s *Storage) GetPayment(ctx context.Context, id string) (models.Payment, error) {
	var payment models.Payment

	err := s.db.QueryRowContext(ctx, `
		SELECT id, reservation_id, status, amount_cents, payload, created_at, paid_at
		  FROM payments WHERE id = $1;
	`, id).Scan(&payment.ID, &payment.ReservationID, &payment.Status, &payment.AmountCents,
		&payment.Payload, &payment.CreatedAt, &payment.PaidAt)
	if err != nil {
		return models.Payment{}, err
	}

	return payment, nil
}

func (s *Storage) UpdatePaymentStatus(ctx context.Context, id, status string, payload []byte, paidAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $2, payload = COALESCE($3, payload), paid_at = COALESCE($4, paid_at)
		 WHERE id = $1;
	`, id, status, payload, paidAt)
	return err
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (models.Reservation, error) {
	var reservation models.Reservation
	var numbers pq.Int64Array

	err := row.Scan(&reservation.ID, &reservation.UserID, &reservation.DrawID, &numbers,
		&reservation.Status, &reservation.ExpiresAt, &reservation.PaymentID, &reservation.CreatedAt)
	if err != nil {
		return models.Reservation{}, err
	}

	reservation.Numbers = int64sToInt(numbers)
	return reservation, nil
}

func scanSlots(rows *sql.Rows) ([]models.Slot, error) {
	var slots []models.Slot
	for rows.Next() {
		var slot models.Slot
		if err := rows.Scan(&slot.DrawID, &slot.N, &slot.Status, &slot.ReservationID); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func intsToInt64(numbers []int) []int64 {
	out := make([]int64, len(numbers))
	for i, n := range numbers {
		out[i] = int64(n)
	}
	return out
}

func int64sToInt(numbers []int64) []int {
	out := make([]int, len(numbers))
	for i, n := range numbers {
		out[i] = int(n)
	}
	return out
}
