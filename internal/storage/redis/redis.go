// Package redis keeps users, events and bookings as JSON documents in Redis.
//
// Layout:
//
//	user:<id>           user document
//	user:email:<email>  id of the user owning the address
//	event:<id>          event document
//	booking:<id>        booking document
//	events, bookings    ids in insertion order
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eventGraph/internal/config"
	"eventGraph/internal/models"
	"eventGraph/internal/storage"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	eventsList   = "events"
	bookingsList = "bookings"

	maxTxRetries = 3
)

type Storage struct {
	client *redis.Client
}

func New(ctx context.Context, cfg *config.Redis) (*Storage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewWithClient(client), nil
}

func NewWithClient(client *redis.Client) *Storage {
	return &Storage{client: client}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func userKey(id string) string     { return "user:" + id }
func emailKey(email string) string { return "user:email:" + email }
func eventKey(id string) string    { return "event:" + id }
func bookingKey(id string) string  { return "booking:" + id }

func (s *Storage) SaveUser(ctx context.Context, email, passwordHash string) (models.User, error) {
	const op = "storage.redis.SaveUser"

	user := models.User{
		ID:            uuid.NewString(),
		Email:         email,
		Password:      passwordHash,
		CreatedEvents: []string{},
	}

	doc, err := json.Marshal(user)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	// The email index and the document are written together or not at all.
	ok, err := s.client.MSetNX(ctx, emailKey(email), user.ID, userKey(user.ID), doc).Result()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}

	return user, nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.redis.UserByEmail"

	id, err := s.client.Get(ctx, emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	var user models.User
	if err = s.getJSON(ctx, s.client, userKey(id), &user); err != nil {
		if errors.Is(err, redis.Nil) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	const op = "storage.redis.UsersByIDs"

	users, err := mget[models.User](ctx, s.client, keys(ids, userKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// SaveEvent stores the event and appends its id to the creator's created
// events. The creator document is watched so concurrent appends are not lost.
func (s *Storage) SaveEvent(ctx context.Context, event models.Event) (models.Event, error) {
	const op = "storage.redis.SaveEvent"

	event.ID = uuid.NewString()
	creatorKey := userKey(event.Creator)

	txf := func(tx *redis.Tx) error {
		var creator models.User
		if err := s.getJSON(ctx, tx, creatorKey, &creator); err != nil {
			if errors.Is(err, redis.Nil) {
				return storage.ErrUserNotFound
			}
			return err
		}

		creator.CreatedEvents = append(creator.CreatedEvents, event.ID)

		eventDoc, err := json.Marshal(event)
		if err != nil {
			return err
		}

		creatorDoc, err := json.Marshal(creator)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, eventKey(event.ID), eventDoc, 0)
			pipe.RPush(ctx, eventsList, event.ID)
			pipe.Set(ctx, creatorKey, creatorDoc, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, creatorKey)
		if err == nil {
			return event, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return models.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Event{}, fmt.Errorf("%s: %w", op, redis.TxFailedErr)
}

func (s *Storage) Events(ctx context.Context) ([]models.Event, error) {
	const op = "storage.redis.Events"

	ids, err := s.client.LRange(ctx, eventsList, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	events, err := mget[models.Event](ctx, s.client, keys(ids, eventKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return events, nil
}

func (s *Storage) EventsByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	const op = "storage.redis.EventsByIDs"

	events, err := mget[models.Event](ctx, s.client, keys(ids, eventKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return events, nil
}

func (s *Storage) SaveBooking(ctx context.Context, userID, eventID string) (models.Booking, error) {
	const op = "storage.redis.SaveBooking"

	n, err := s.client.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
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

	doc, err := json.Marshal(booking)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, bookingKey(booking.ID), doc, 0)
		pipe.RPush(ctx, bookingsList, booking.ID)
		return nil
	})
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

func (s *Storage) Bookings(ctx context.Context) ([]models.Booking, error) {
	const op = "storage.redis.Bookings"

	ids, err := s.client.LRange(ctx, bookingsList, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookings, err := mget[models.Booking](ctx, s.client, keys(ids, bookingKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func (s *Storage) Booking(ctx context.Context, id string) (models.Booking, error) {
	const op = "storage.redis.Booking"

	var booking models.Booking
	if err := s.getJSON(ctx, s.client, bookingKey(id), &booking); err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Booking{}, fmt.Errorf("%s: %w", op, storage.ErrBookingNotFound)
		}
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	const op = "storage.redis.DeleteBooking"

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, bookingKey(id))
		pipe.LRem(ctx, bookingsList, 0, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if del.Val() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrBookingNotFound)
	}

	return nil
}

func (s *Storage) getJSON(ctx context.Context, c redis.Cmdable, key string, dst any) error {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func keys(ids []string, keyFn func(string) string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, keyFn(id))
	}
	return out
}

// mget fetches documents in one round trip, skipping keys that do not exist.
func mget[T any](ctx context.Context, c *redis.Client, keys []string) ([]T, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}

		var item T
		if err = json.Unmarshal([]byte(s), &item); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", keys[i], err)
		}
		out = append(out, item)
	}

	return out, nil
}
