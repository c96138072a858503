package graph

import (
	"context"

	"eventGraph/internal/models"
)

//go:generate go run github.com/vektra/mockery/v2@v2.51.1 --name=Storage
type Storage interface {
	SaveUser(ctx context.Context, email, passwordHash string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	SaveEvent(ctx context.Context, event models.Event) (models.Event, error)
	Events(ctx context.Context) ([]models.Event, error)
	EventsByIDs(ctx context.Context, ids []string) ([]models.Event, error)
	SaveBooking(ctx context.Context, userID, eventID string) (models.Booking, error)
	Bookings(ctx context.Context) ([]models.Booking, error)
	Booking(ctx context.Context, id string) (models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}
