package graph

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"eventGraph/internal/lib/api/response"
	"eventGraph/internal/lib/auth"
	"eventGraph/internal/lib/logger/sl"
	"eventGraph/internal/models"
	"eventGraph/internal/storage"
	"eventGraph/internal/transform"

	"github.com/go-playground/validator/v10"
	"github.com/graph-gophers/graphql-go"
	"golang.org/x/crypto/bcrypt"
)

// Resolver serves both RootQuery and RootMutation.
type Resolver struct {
	log        *slog.Logger
	store      Storage
	tokens     TokenIssuer
	validate   *validator.Validate
	bcryptCost int
}

type EventInput struct {
	Title       string  `validate:"required"`
	Description string  `validate:"required"`
	Price       float64 `validate:"gte=0"`
	Date        string  `validate:"required"`
}

type UserInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

func (r *Resolver) Events(ctx context.Context) ([]*eventResolver, error) {
	events, err := r.store.Events(ctx)
	if err != nil {
		return nil, storeError(r.log, err)
	}

	if ls, ok := LoadersFrom(ctx); ok {
		for _, e := range events {
			ls.Events.Prime(e.ID, e)
		}
	}

	out := make([]*eventResolver, 0, len(events))
	for _, e := range events {
		out = append(out, r.event(transform.TransformEvent(e)))
	}

	return out, nil
}

func (r *Resolver) Bookings(ctx context.Context) (*[]*bookingResolver, error) {
	if !auth.FromContext(ctx).IsAuth {
		return nil, errUnauthenticated
	}

	bookings, err := r.store.Bookings(ctx)
	if err != nil {
		return nil, storeError(r.log, err)
	}

	out := make([]*bookingResolver, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, r.booking(transform.TransformBooking(b)))
	}

	return &out, nil
}

func (r *Resolver) Login(ctx context.Context, args struct {
	Email    string
	Password string
}) (*authDataResolver, error) {
	log := r.log.With(slog.String("op", "graph.Login"))

	user, err := r.store.UserByEmail(ctx, args.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, newError(CodeUnauthenticated, "user does not exist")
		}
		return nil, storeError(log, err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(args.Password)); err != nil {
		return nil, newError(CodeUnauthenticated, "password is incorrect")
	}

	token, err := r.tokens.NewToken(user.ID, user.Email)
	if err != nil {
		log.Error("failed to issue token", sl.Err(err))
		return nil, newError(CodeInternal, "internal error")
	}

	return &authDataResolver{
		userID:     user.ID,
		token:      token,
		expiration: expirationHours(r.tokens.TTL()),
	}, nil
}

func (r *Resolver) CreateUser(ctx context.Context, args struct{ UserInput UserInput }) (*userResolver, error) {
	log := r.log.With(slog.String("op", "graph.CreateUser"))

	in := args.UserInput
	if err := r.validateInput(in); err != nil {
		return nil, err
	}

	_, err := r.store.UserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, newError(CodeConflict, "user exists already")
	case !errors.Is(err, storage.ErrUserNotFound):
		return nil, storeError(log, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), r.bcryptCost)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, newError(CodeInternal, "internal error")
	}

	user, err := r.store.SaveUser(ctx, in.Email, string(hash))
	if err != nil {
		return nil, storeError(log, err)
	}

	log.Info("user created", slog.String("user_id", user.ID))

	return r.user(transform.TransformUser(user)), nil
}

func (r *Resolver) CreateEvent(ctx context.Context, args struct{ EventInput EventInput }) (*eventResolver, error) {
	log := r.log.With(slog.String("op", "graph.CreateEvent"))

	caller := auth.FromContext(ctx)
	if !caller.IsAuth {
		return nil, errUnauthenticated
	}

	in := args.EventInput
	if err := r.validateInput(in); err != nil {
		return nil, err
	}

	date, err := transform.ParseDate(in.Date)
	if err != nil {
		return nil, newError(CodeValidation, "field Date is not a valid timestamp")
	}

	event, err := r.store.SaveEvent(ctx, models.Event{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Date:        date,
		Creator:     caller.UserID,
	})
	if err != nil {
		return nil, storeError(log, err)
	}

	if ls, ok := LoadersFrom(ctx); ok {
		// the creator document changed
		ls.Users.Clear(caller.UserID)
		ls.Events.Prime(event.ID, event)
	}

	log.Info("event created", slog.String("event_id", event.ID), slog.String("creator", caller.UserID))

	return r.event(transform.TransformEvent(event)), nil
}

func (r *Resolver) BookEvent(ctx context.Context, args struct{ EventID graphql.ID }) (*bookingResolver, error) {
	log := r.log.With(slog.String("op", "graph.BookEvent"))

	caller := auth.FromContext(ctx)
	if !caller.IsAuth {
		return nil, errUnauthenticated
	}

	ls, err := r.loaders(ctx)
	if err != nil {
		return nil, err
	}

	event, err := ls.Events.Load(ctx, string(args.EventID))
	if err != nil {
		return nil, storeError(log, err)
	}

	booking, err := r.store.SaveBooking(ctx, caller.UserID, event.ID)
	if err != nil {
		return nil, storeError(log, err)
	}

	log.Info("event booked", slog.String("booking_id", booking.ID), slog.String("event_id", event.ID))

	view := transform.TransformBooking(booking)
	view.Event = transform.Resolved(event.ID, event)

	return r.booking(view), nil
}

func (r *Resolver) CancelBooking(ctx context.Context, args struct{ BookingID graphql.ID }) (*eventResolver, error) {
	log := r.log.With(slog.String("op", "graph.CancelBooking"))

	if !auth.FromContext(ctx).IsAuth {
		return nil, errUnauthenticated
	}

	ls, err := r.loaders(ctx)
	if err != nil {
		return nil, err
	}

	booking, err := r.store.Booking(ctx, string(args.BookingID))
	if err != nil {
		return nil, storeError(log, err)
	}

	event, err := ls.Events.Load(ctx, booking.Event)
	if err != nil {
		return nil, storeError(log, err)
	}

	if err = r.store.DeleteBooking(ctx, booking.ID); err != nil {
		return nil, storeError(log, err)
	}

	log.Info("booking cancelled", slog.String("booking_id", booking.ID))

	return r.event(transform.TransformEvent(event)), nil
}

// expirationHours rounds up so a TTL under an hour never reports 0.
func expirationHours(ttl time.Duration) int32 {
	return int32(math.Ceil(ttl.Hours()))
}

func (r *Resolver) validateInput(in interface{}) error {
	if err := r.validate.Struct(in); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			return newError(CodeValidation, response.ValidationError(validateErr).Error)
		}
		return newError(CodeValidation, "invalid input")
	}

	return nil
}

func (r *Resolver) loaders(ctx context.Context) (*Loaders, error) {
	ls, ok := LoadersFrom(ctx)
	if !ok {
		r.log.Error("request has no loaders attached")
		return nil, newError(CodeInternal, "internal error")
	}

	return ls, nil
}
