// Package mwauth resolves the bearer token of a request into an auth.Identity.
// Requests without a valid token pass through unauthenticated; resolvers
// decide what needs a caller.
package mwauth

import (
	"log/slog"
	"net/http"
	"strings"

	"eventGraph/internal/lib/auth"
	"eventGraph/internal/lib/logger/sl"
)

const bearerPrefix = "Bearer "

//go:generate go run github.com/vektra/mockery/v2@v2.51.1 --name=TokenParser
type TokenParser interface {
	Parse(token string) (string, error)
}

func New(log *slog.Logger, parser TokenParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := log.With(
			slog.String("component", "middleware/auth"),
		)

		fn := func(w http.ResponseWriter, r *http.Request) {
			id := auth.Identity{}

			if token, ok := bearerToken(r); ok {
				userID, err := parser.Parse(token)
				if err != nil {
					log.Debug("rejected bearer token", sl.Err(err))
				} else {
					id = auth.Identity{IsAuth: true, UserID: userID}
				}
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		}

		return http.HandlerFunc(fn)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}

	return token, true
}
