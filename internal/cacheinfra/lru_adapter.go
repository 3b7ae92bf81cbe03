package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUBackend stores rendered output in a size-bounded expirable LRU.
type LRUBackend struct {
	lru *expirable.LRU[string, entry]
	ttl time.Duration
	now func() time.Time
}

// NewLRUBackend creates an LRU backend holding at most cfg.Capacity entries
// for at most cfg.TTL each. NumShards and EvictionPercentage are not used
// but still validated so both backends share one configuration.
func NewLRUBackend(cfg Config) (*LRUBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LRUBackend{
		lru: expirable.NewLRU[string, entry](cfg.Capacity, nil, cfg.TTL),
		ttl: cfg.TTL,
		now: time.Now,
	}, nil
}

func (l *LRUBackend) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok := l.lru.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(l.now()) {
		l.lru.Remove(key)
		return nil, false
	}
	return e.Value, true
}

func (l *LRUBackend) Set(ctx context.Context, key string, value []byte, timeout time.Duration) error {
	l.lru.Add(key, newEntry(value, timeout, l.ttl, l.now()))
	return nil
}

func (l *LRUBackend) DeleteMany(ctx context.Context, keys []string) error {
	for _, key := range keys {
		l.lru.Remove(key)
	}
	return nil
}

func (l *LRUBackend) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range l.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			l.lru.Remove(key)
		}
	}
	return nil
}

func (l *LRUBackend) Size() int {
	return l.lru.Len()
}
