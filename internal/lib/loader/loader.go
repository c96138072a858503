// Package loader implements a request-scoped batching cache.
//
// A Loader collects point lookups issued while a request is being resolved,
// coalesces lookups of the same kind into one bulk fetch and memoizes the
// outcome by key for the rest of the loader's life. Build one Loader per
// inbound request; nothing here is meant to be shared between requests.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultWait     = 2 * time.Millisecond
	DefaultMaxBatch = 100
)

var ErrNotFound = errors.New("not found")

// FetchFunc loads the values for keys in one round trip. Values may be
// returned in any order and keys without a value may simply be omitted.
type FetchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, error)

type Config struct {
	// Wait is how long a batch stays open after its first key is registered.
	Wait time.Duration
	// MaxBatch dispatches a batch early once it holds this many keys.
	MaxBatch int
}

type Loader[K comparable, V any] struct {
	ctx      context.Context
	fetch    FetchFunc[K, V]
	keyOf    func(V) K
	missing  func(K) error
	wait     time.Duration
	maxBatch int

	mu      sync.Mutex
	cache   map[K]*entry[V]
	pending *batch[K, V]
}

type entry[V any] struct {
	done  chan struct{}
	value V
	err   error
}

type batch[K comparable, V any] struct {
	keys    []K
	entries []*entry[V]
	timer   *time.Timer
}

// New returns a Loader whose fetches run with ctx. keyOf extracts the key of
// a fetched value and is what results are matched back by.
func New[K comparable, V any](ctx context.Context, cfg Config, fetch FetchFunc[K, V], keyOf func(V) K) *Loader[K, V] {
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}

	return &Loader[K, V]{
		ctx:      ctx,
		fetch:    fetch,
		keyOf:    keyOf,
		missing:  defaultMissing[K],
		wait:     cfg.Wait,
		maxBatch: cfg.MaxBatch,
		cache:    make(map[K]*entry[V]),
	}
}

func defaultMissing[K comparable](key K) error {
	return fmt.Errorf("%w: %v", ErrNotFound, key)
}

// OnMissing sets the error reported for keys the fetch did not return.
// It must be called before the first Load.
func (l *Loader[K, V]) OnMissing(fn func(K) error) *Loader[K, V] {
	l.missing = fn
	return l
}

// Load returns the value for key, joining an in-flight or completed lookup
// when there is one.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	return l.enqueue(key).wait(ctx)
}

// LoadMany returns values in the order of keys. All keys are registered
// before waiting so they share batches. The first error wins.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) ([]V, error) {
	entries := make([]*entry[V], len(keys))
	for i, key := range keys {
		entries[i] = l.enqueue(key)
	}

	values := make([]V, len(keys))
	for i, e := range entries {
		v, err := e.wait(ctx)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	return values, nil
}

// Prime stores value under key unless key is already known.
func (l *Loader[K, V]) Prime(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache[key]; ok {
		return
	}

	e := &entry[V]{done: make(chan struct{}), value: value}
	close(e.done)
	l.cache[key] = e
}

// Clear forgets key so the next Load fetches it again.
func (l *Loader[K, V]) Clear(key K) {
	l.mu.Lock()
	delete(l.cache, key)
	l.mu.Unlock()
}

func (l *Loader[K, V]) enqueue(key K) *entry[V] {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.cache[key]; ok {
		return e
	}

	e := &entry[V]{done: make(chan struct{})}
	l.cache[key] = e

	b := l.pending
	if b == nil {
		b = &batch[K, V]{}
		l.pending = b
		b.timer = time.AfterFunc(l.wait, func() { l.flush(b) })
	}

	b.keys = append(b.keys, key)
	b.entries = append(b.entries, e)

	if len(b.keys) >= l.maxBatch {
		b.timer.Stop()
		l.pending = nil
		go l.dispatch(b)
	}

	return e
}

func (l *Loader[K, V]) flush(b *batch[K, V]) {
	l.mu.Lock()
	if l.pending != b {
		// already dispatched on size
		l.mu.Unlock()
		return
	}
	l.pending = nil
	l.mu.Unlock()

	l.dispatch(b)
}

func (l *Loader[K, V]) dispatch(b *batch[K, V]) {
	values, err := l.run(b.keys)
	if err != nil {
		l.mu.Lock()
		for i, key := range b.keys {
			if l.cache[key] == b.entries[i] {
				delete(l.cache, key)
			}
		}
		l.mu.Unlock()

		for _, e := range b.entries {
			e.err = err
			close(e.done)
		}
		return
	}

	byKey := make(map[K]V, len(values))
	for _, v := range values {
		byKey[l.keyOf(v)] = v
	}

	for i, key := range b.keys {
		e := b.entries[i]
		if v, ok := byKey[key]; ok {
			e.value = v
		} else {
			e.err = l.missing(key)
		}
		close(e.done)
	}
}

func (l *Loader[K, V]) run(keys []K) (values []V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader: fetch panicked: %v", r)
		}
	}()

	return l.fetch(l.ctx, keys)
}

func (e *entry[V]) wait(ctx context.Context) (V, error) {
	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
