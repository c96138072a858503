package graphql

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"eventGraph/internal/lib/api/response"
	"eventGraph/internal/lib/logger/sl"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/graph-gophers/graphql-go"
)

type Request struct {
	Query         string                 `json:"query" validate:"required"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.51.1 --name=Executor
type Executor interface {
	Exec(ctx context.Context, queryString string, operationName string, variables map[string]interface{}) *graphql.Response
}

func New(log *slog.Logger, executor Executor) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.graphql.New"

		log := log.With(slog.String("op", op))

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if errors.Is(err, io.EOF) {
			log.Error("request body is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("empty request"))
			return
		}
		if err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))
			return
		}

		if err = validate.Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		resp := executor.Exec(r.Context(), req.Query, req.OperationName, req.Variables)

		if len(resp.Errors) > 0 {
			log.Debug("query resolved with errors",
				slog.String("operation", req.OperationName),
				slog.Int("errors", len(resp.Errors)),
			)
		}

		render.JSON(w, r, resp)
	}
}
