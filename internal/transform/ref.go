package transform

import (
	"context"
	"encoding/json"
)

// Source is where deferred references are resolved, normally a request loader.
type Source[T any] interface {
	Load(ctx context.Context, id string) (T, error)
	LoadMany(ctx context.Context, ids []string) ([]T, error)
}

// Ref points at another entity. It is either resolved, holding the value,
// or deferred, holding only the id until Resolve is called.
type Ref[T any] struct {
	id    string
	value *T
}

func Resolved[T any](id string, value T) Ref[T] {
	return Ref[T]{id: id, value: &value}
}

func Deferred[T any](id string) Ref[T] {
	return Ref[T]{id: id}
}

func (r Ref[T]) ID() string {
	return r.id
}

func (r Ref[T]) IsResolved() bool {
	return r.value != nil
}

func (r Ref[T]) Resolve(ctx context.Context, src Source[T]) (T, error) {
	if r.value != nil {
		return *r.value, nil
	}
	return src.Load(ctx, r.id)
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.id)
}

// RefList is the one-to-many form of Ref. It is always deferred.
type RefList[T any] struct {
	ids []string
}

func DeferredList[T any](ids []string) RefList[T] {
	return RefList[T]{ids: append([]string(nil), ids...)}
}

func (r RefList[T]) IDs() []string {
	return r.ids
}

func (r RefList[T]) Resolve(ctx context.Context, src Source[T]) ([]T, error) {
	if len(r.ids) == 0 {
		return []T{}, nil
	}
	return src.LoadMany(ctx, r.ids)
}

func (r RefList[T]) MarshalJSON() ([]byte, error) {
	if r.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.ids)
}
