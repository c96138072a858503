package getEventInfo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"eventGraph/internal/lib/api/response"
	"eventGraph/internal/lib/logger/sl"
	"eventGraph/internal/models"
	"eventGraph/internal/storage"
	"eventGraph/internal/transform"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type EventInfoResponse struct {
	response.Response
	Event *transform.Event `json:"event"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.51.1 --name=EventGetter
type EventGetter interface {
	EventsByIDs(ctx context.Context, ids []string) ([]models.Event, error)
}

func New(log *slog.Logger, info EventGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.event.getEventInfo.New"

		log := log.With(slog.String("op", op))

		eventID := chi.URLParam(r, "id")
		if eventID == "" {
			log.Error("event id is required")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("event id is required"))
			return
		}

		log = log.With(slog.String("event_id", eventID))

		events, err := info.EventsByIDs(r.Context(), []string{eventID})
		if err == nil && len(events) == 0 {
			err = storage.ErrEventNotFound
		}
		if err != nil {
			if errors.Is(err, storage.ErrEventNotFound) {
				log.Info("event not found")
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("event not found"))
				return
			}

			log.Error("failed to get event information", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to get event information"))
			return
		}

		log.Info("event info successfully received")

		event := transform.TransformEvent(events[0])
		responseOK(w, r, &event)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, event *transform.Event) {
	render.JSON(w, r, EventInfoResponse{
		Response: response.OK(),
		Event:    event,
	})
}
