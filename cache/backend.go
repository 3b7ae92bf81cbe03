package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Backend is the key-value store holding rendered output.
//
// A zero timeout means the backend default. Implementations report
// unavailability as a miss; callers never depend on the cache for
// correctness.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, timeout time.Duration) error
	DeleteMany(ctx context.Context, keys []string) error
}

// PrefixDeleter is implemented by backends able to flush a key namespace.
type PrefixDeleter interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// NopBackend never stores anything.
type NopBackend struct{}

func (NopBackend) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (NopBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NopBackend) DeleteMany(context.Context, []string) error { return nil }

// FetchFn loads a value from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// GetOrFetch reads key from b as msgpack, falling back to fetch on a miss
// or an undecodable entry. Fetched values are written back; write failures
// are ignored.
func GetOrFetch[T any](ctx context.Context, b Backend, key string, timeout time.Duration, fetch FetchFn[T]) (T, error) {
	if data, ok := b.Get(ctx, key); ok {
		var cached T
		if err := msgpack.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}
	if data, err := msgpack.Marshal(value); err == nil {
		_ = b.Set(ctx, key, data, timeout)
	}
	return value, nil
}
