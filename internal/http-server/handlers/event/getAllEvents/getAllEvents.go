package getAllEvents

import (
	"context"
	"log/slog"
	"net/http"

	"eventGraph/internal/lib/api/response"
	"eventGraph/internal/lib/logger/sl"
	"eventGraph/internal/models"
	"eventGraph/internal/transform"

	"github.com/go-chi/render"
)

type EventsResponse struct {
	response.Response
	Events []transform.Event `json:"events"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.51.1 --name=EventsGetter
type EventsGetter interface {
	Events(ctx context.Context) ([]models.Event, error)
}

func New(log *slog.Logger, eventsGetter EventsGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.event.getAllEvents.New"

		log := log.With(slog.String("op", op))

		events, err := eventsGetter.Events(r.Context())
		if err != nil {
			log.Error("failed to get events", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to get events"))
			return
		}

		log.Info("events retrieved successfully", slog.Int("count", len(events)))

		responseOK(w, r, transform.TransformEvents(events))
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, events []transform.Event) {
	render.JSON(w, r, EventsResponse{
		Response: response.OK(),
		Events:   events,
	})
}
