package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventGraph/internal/config"
	"eventGraph/internal/models"
	"eventGraph/internal/storage"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Storage struct {
	DB *sql.DB
}

func InitDB(dbCfg *config.Database) (*Storage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.User,
		dbCfg.Password,
		dbCfg.DBName,
		dbCfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	return &Storage{DB: db}, nil
}

// Migrate creates the tables when missing. There are no foreign keys:
// references are checked when a record is created and never afterwards.
func (s *Storage) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			created_events TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL CHECK (price >= 0),
			date TIMESTAMPTZ NOT NULL,
			creator TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_created_at ON bookings(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.DB.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

func (s *Storage) SaveUser(ctx context.Context, email, passwordHash string) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	user := models.User{
		ID:            uuid.NewString(),
		Email:         email,
		Password:      passwordHash,
		CreatedEvents: []string{},
	}

	query := `
		INSERT INTO users (id, email, password)
		VALUES ($1, $2, $3)`

	_, err := s.DB.ExecContext(ctx, query, user.ID, user.Email, user.Password)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `
		SELECT id, email, password, created_events
		FROM users
		WHERE email = $1`

	var user models.User
	err := s.DB.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		pq.Array(&user.CreatedEvents),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UsersByIDs returns the users that exist among ids, in no particular order.
func (s *Storage) UsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	const op = "storage.postgres.UsersByIDs"

	query := `
		SELECT id, email, password, created_events
		FROM users
		WHERE id = ANY($1)`

	rows, err := s.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err = rows.Scan(
			&user.ID,
			&user.Email,
			&user.Password,
			pq.Array(&user.CreatedEvents),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan user: %w", op, err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: error iterating users: %w", op, err)
	}

	return users, nil
}

// SaveEvent stores the event and appends its id to the creator's created events.
func (s *Storage) SaveEvent(ctx context.Context, event models.Event) (models.Event, error) {
	const op = "storage.postgres.SaveEvent"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Event{}, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, event.Creator).Scan(&exists)
	if err != nil {
		return models.Event{}, fmt.Errorf("%s: failed to check creator: %w", op, err)
	}

	if !exists {
		return models.Event{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	event.ID = uuid.NewString()

	insertQuery := `
		INSERT INTO events (id, title, description, price, date, creator)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.ExecContext(ctx, insertQuery,
		event.ID,
		event.Title,
		event.Description,
		event.Price,
		event.Date,
		event.Creator,
	)
	if err != nil {
		return models.Event{}, fmt.Errorf("%s: failed to create event: %w", op, err)
	}

	updateQuery := `
		UPDATE users
		SET created_events = array_append(created_events, $1)
		WHERE id = $2`

	_, err = tx.ExecContext(ctx, updateQuery, event.ID, event.Creator)
	if err != nil {
		return models.Event{}, fmt.Errorf("%s: failed to update creator: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return models.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	return event, nil
}

func (s *Storage) Events(ctx context.Context) ([]models.Event, error) {
	const op = "storage.postgres.Events"

	query := `
		SELECT id, title, description, price, date, creator
		FROM events
		ORDER BY created_at ASC`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanEvents(op, rows)
}

// EventsByIDs returns the events that exist among ids, in no particular order.
func (s *Storage) EventsByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	const op = "storage.postgres.EventsByIDs"

	query := `
		SELECT id, title, description, price, date, creator
		FROM events
		WHERE id = ANY($1)`

	rows, err := s.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanEvents(op, rows)
}

func scanEvents(op string, rows *sql.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var event models.Event
		err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Description,
			&event.Price,
			&event.Date,
			&event.Creator,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan event: %w", op, err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: error iterating events: %w", op, err)
	}

	return events, nil
}

func (s *Storage) SaveBooking(ctx context.Context, userID, eventID string) (models.Booking, error) {
	const op = "storage.postgres.SaveBooking"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: failed to check event: %w", op, err)
	}

	if !exists {
		return models.Booking{}, fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking := models.Booking{
		ID:        uuid.NewString(),
		User:      userID,
		Event:     eventID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	insertQuery := `
		INSERT INTO bookings (id, user_id, event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = tx.ExecContext(ctx, insertQuery,
		booking.ID,
		booking.User,
		booking.Event,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: failed to create booking: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

func (s *Storage) Bookings(ctx context.Context) ([]models.Booking, error) {
	const op = "storage.postgres.Bookings"

	query := `
		SELECT id, user_id, event_id, created_at, updated_at
		FROM bookings
		ORDER BY created_at ASC`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var booking models.Booking
		err = rows.Scan(
			&booking.ID,
			&booking.User,
			&booking.Event,
			&booking.CreatedAt,
			&booking.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan booking: %w", op, err)
		}
		bookings = append(bookings, booking)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: error iterating bookings: %w", op, err)
	}

	return bookings, nil
}

func (s *Storage) Booking(ctx context.Context, id string) (models.Booking, error) {
	const op = "storage.postgres.Booking"

	query := `
		SELECT id, user_id, event_id, created_at, updated_at
		FROM bookings
		WHERE id = $1`

	var booking models.Booking
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.User,
		&booking.Event,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Booking{}, fmt.Errorf("%s: %w", op, storage.ErrBookingNotFound)
		}
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteBooking"

	result, err := s.DB.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrBookingNotFound)
	}

	return nil
}
