package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// SturdycBackend stores rendered output in a sharded sturdyc client.
type SturdycBackend struct {
	client *sturdyc.Client[entry]
	ttl    time.Duration
	now    func() time.Time
}

// NewSturdycBackend creates a new sturdyc cache backend.
// It validates the configuration and initializes a sturdyc client with the provided settings.
//
// The constructor translates Config parameters to sturdyc initialization:
// - Capacity, NumShards, TTL, EvictionPercentage are passed to sturdyc.New()
// - Other options are applied via ToSturdycOptions()
func NewSturdycBackend(cfg Config) (*SturdycBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycBackend{client: client, ttl: cfg.TTL, now: time.Now}, nil
}

// Get returns the stored bytes for key. Entries past their own timeout are
// removed and reported as a miss.
func (s *SturdycBackend) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok := s.client.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		s.client.Delete(key)
		return nil, false
	}
	return e.Value, true
}

// Set stores value under key. A zero timeout uses the client TTL; longer
// timeouts are capped by it.
func (s *SturdycBackend) Set(ctx context.Context, key string, value []byte, timeout time.Duration) error {
	s.client.Set(key, newEntry(value, timeout, s.ttl, s.now()))
	return nil
}

// DeleteMany removes multiple entries from the cache using the provided keys.
func (s *SturdycBackend) DeleteMany(ctx context.Context, keys []string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	return nil
}

// DeleteByPrefix removes all entries from the cache that have keys starting with the given prefix.
func (s *SturdycBackend) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Size returns the number of stored entries.
func (s *SturdycBackend) Size() int {
	return s.client.Size()
}
