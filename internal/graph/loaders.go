package graph

import (
	"context"
	"fmt"

	"eventGraph/internal/lib/loader"
	"eventGraph/internal/models"
	"eventGraph/internal/storage"
)

type ctxKey struct{}

// Loaders are the batching caches of a single request.
type Loaders struct {
	Users  *loader.Loader[string, models.User]
	Events *loader.Loader[string, models.Event]
}

// BatchLoader is the part of Storage the loaders read through.
type BatchLoader interface {
	UsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	EventsByIDs(ctx context.Context, ids []string) ([]models.Event, error)
}

func NewLoaders(ctx context.Context, store BatchLoader, cfg loader.Config) *Loaders {
	users := loader.New(ctx, cfg, store.UsersByIDs, func(u models.User) string { return u.ID }).
		OnMissing(func(id string) error { return fmt.Errorf("%w: %s", storage.ErrUserNotFound, id) })

	events := loader.New(ctx, cfg, store.EventsByIDs, func(e models.Event) string { return e.ID }).
		OnMissing(func(id string) error { return fmt.Errorf("%w: %s", storage.ErrEventNotFound, id) })

	return &Loaders{
		Users:  users,
		Events: events,
	}
}

func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func LoadersFrom(ctx context.Context) (*Loaders, bool) {
	l, ok := ctx.Value(ctxKey{}).(*Loaders)
	return l, ok && l != nil
}
