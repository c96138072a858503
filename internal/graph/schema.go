package graph

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"eventGraph/internal/lib/loader"

	"github.com/go-playground/validator/v10"
	"github.com/graph-gophers/graphql-go"
	"golang.org/x/crypto/bcrypt"
)

//go:embed schema.graphql
var schemaSDL string

type TokenIssuer interface {
	NewToken(userID, email string) (string, error)
	TTL() time.Duration
}

type Config struct {
	BcryptCost     int
	MaxParallelism int
	// MaxBatch is the loaders' batch size. Parallelism is raised to at least
	// this so a whole batch of related lookups can be in flight together.
	MaxBatch int
}

// NewSchema parses the API schema and binds it to resolvers backed by store.
func NewSchema(log *slog.Logger, store Storage, tokens TokenIssuer, cfg Config) (*graphql.Schema, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	root := &Resolver{
		log:        log.With(slog.String("component", "graph")),
		store:      store,
		tokens:     tokens,
		validate:   validator.New(),
		bcryptCost: cfg.BcryptCost,
	}

	opts := []graphql.SchemaOpt{
		graphql.Logger(panicLogger{log: log}),
		graphql.MaxParallelism(parallelism(cfg)),
	}

	schema, err := graphql.ParseSchema(schemaSDL, root, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	return schema, nil
}

// parallelism bounds how many list items and field resolvers run at once.
// Every resolver waiting on a loader holds one slot, so a lower limit would
// split a batch into several sequential store calls.
func parallelism(cfg Config) int {
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = loader.DefaultMaxBatch
	}

	return max(cfg.MaxParallelism, maxBatch)
}

type panicLogger struct {
	log *slog.Logger
}

func (l panicLogger) LogPanic(_ context.Context, value interface{}) {
	l.log.Error("panic while resolving", slog.Any("panic", value))
}
