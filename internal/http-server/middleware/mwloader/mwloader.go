package mwloader

import (
	"net/http"

	"eventGraph/internal/graph"
	"eventGraph/internal/lib/loader"
)

// New attaches a fresh set of batching loaders to every request, so nothing
// cached while resolving one request is visible to another.
func New(store graph.BatchLoader, cfg loader.Config) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = graph.WithLoaders(ctx, graph.NewLoaders(ctx, store, cfg))

			next.ServeHTTP(w, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}
