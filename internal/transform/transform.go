// Package transform maps stored records onto the shapes the public API exposes.
//
// Identifiers become plain string ids, timestamps are rendered with DateToString
// and references to other entities become Refs that are resolved lazily
// through the request's loaders.
package transform

import (
	"fmt"
	"time"

	"eventGraph/internal/models"
)

const dateLayout = "2006-01-02T15:04:05.000Z"

type Event struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       float64          `json:"price"`
	Date        string           `json:"date"`
	Creator     Ref[models.User] `json:"creator"`
}

// User never carries the password hash.
type User struct {
	ID            string                `json:"id"`
	Email         string                `json:"email"`
	CreatedEvents RefList[models.Event] `json:"createdEvents"`
}

type Booking struct {
	ID        string            `json:"id"`
	User      Ref[models.User]  `json:"user"`
	Event     Ref[models.Event] `json:"event"`
	CreatedAt string            `json:"createdAt"`
	UpdatedAt string            `json:"updatedAt"`
}

func TransformEvent(e models.Event) Event {
	return Event{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Price:       e.Price,
		Date:        DateToString(e.Date),
		Creator:     Deferred[models.User](e.Creator),
	}
}

func TransformEvents(events []models.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		out = append(out, TransformEvent(e))
	}
	return out
}

func TransformUser(u models.User) User {
	return User{
		ID:            u.ID,
		Email:         u.Email,
		CreatedEvents: DeferredList[models.Event](u.CreatedEvents),
	}
}

func TransformBooking(b models.Booking) Booking {
	return Booking{
		ID:        b.ID,
		User:      Deferred[models.User](b.User),
		Event:     Deferred[models.Event](b.Event),
		CreatedAt: DateToString(b.CreatedAt),
		UpdatedAt: DateToString(b.UpdatedAt),
	}
}

// DateToString renders t in UTC with millisecond precision, e.g.
// 2024-01-01T10:00:00.000Z.
func DateToString(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate accepts RFC 3339 timestamps with or without fractional seconds.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.UTC(), nil
}
