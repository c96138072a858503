package graph

import (
	"context"

	"eventGraph/internal/transform"

	"github.com/graph-gophers/graphql-go"
)

// Field resolvers. Relations are only resolved when the query selects them.

type eventResolver struct {
	root *Resolver
	ev   transform.Event
}

func (r *Resolver) event(ev transform.Event) *eventResolver {
	return &eventResolver{root: r, ev: ev}
}

func (e *eventResolver) ID() graphql.ID      { return graphql.ID(e.ev.ID) }
func (e *eventResolver) Title() string       { return e.ev.Title }
func (e *eventResolver) Description() string { return e.ev.Description }
func (e *eventResolver) Price() float64      { return e.ev.Price }
func (e *eventResolver) Date() string        { return e.ev.Date }

func (e *eventResolver) Creator(ctx context.Context) (*userResolver, error) {
	ls, err := e.root.loaders(ctx)
	if err != nil {
		return nil, err
	}

	u, err := e.ev.Creator.Resolve(ctx, ls.Users)
	if err != nil {
		return nil, storeError(e.root.log, err)
	}

	return e.root.user(transform.TransformUser(u)), nil
}

type userResolver struct {
	root *Resolver
	u    transform.User
}

func (r *Resolver) user(u transform.User) *userResolver {
	return &userResolver{root: r, u: u}
}

func (u *userResolver) ID() graphql.ID    { return graphql.ID(u.u.ID) }
func (u *userResolver) Email() string     { return u.u.Email }
func (u *userResolver) Password() *string { return nil }

func (u *userResolver) CreatedEvents(ctx context.Context) (*[]*eventResolver, error) {
	ls, err := u.root.loaders(ctx)
	if err != nil {
		return nil, err
	}

	events, err := u.u.CreatedEvents.Resolve(ctx, ls.Events)
	if err != nil {
		return nil, storeError(u.root.log, err)
	}

	out := make([]*eventResolver, 0, len(events))
	for _, e := range events {
		out = append(out, u.root.event(transform.TransformEvent(e)))
	}

	return &out, nil
}

type bookingResolver struct {
	root *Resolver
	b    transform.Booking
}

func (r *Resolver) booking(b transform.Booking) *bookingResolver {
	return &bookingResolver{root: r, b: b}
}

func (b *bookingResolver) ID() graphql.ID    { return graphql.ID(b.b.ID) }
func (b *bookingResolver) CreatedAt() string { return b.b.CreatedAt }
func (b *bookingResolver) UpdatedAt() string { return b.b.UpdatedAt }

func (b *bookingResolver) Event(ctx context.Context) (*eventResolver, error) {
	ls, err := b.root.loaders(ctx)
	if err != nil {
		return nil, err
	}

	ev, err := b.b.Event.Resolve(ctx, ls.Events)
	if err != nil {
		return nil, storeError(b.root.log, err)
	}

	return b.root.event(transform.TransformEvent(ev)), nil
}

func (b *bookingResolver) User(ctx context.Context) (*userResolver, error) {
	ls, err := b.root.loaders(ctx)
	if err != nil {
		return nil, err
	}

	u, err := b.b.User.Resolve(ctx, ls.Users)
	if err != nil {
		return nil, storeError(b.root.log, err)
	}

	return b.root.user(transform.TransformUser(u)), nil
}

type authDataResolver struct {
	userID     string
	token      string
	expiration int32
}

func (a *authDataResolver) UserID() graphql.ID     { return graphql.ID(a.userID) }
func (a *authDataResolver) Token() string          { return a.token }
func (a *authDataResolver) TokenExpiration() int32 { return a.expiration }
