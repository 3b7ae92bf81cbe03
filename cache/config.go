package cache

import (
	"time"

	"github.com/goliatone/go-content-placeholders/internal/cacheinfra"
)

// BackendKind selects the in-process backend implementation.
type BackendKind string

const (
	BackendSturdyc BackendKind = "sturdyc"
	BackendLRU     BackendKind = "lru"
	// BackendNone disables output caching storage entirely.
	BackendNone BackendKind = "none"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend            BackendKind
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	cfg := convertFromInternal(cacheinfra.DefaultConfig())
	cfg.Backend = BackendSturdyc
	return cfg
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone:
		return nil
	case BackendSturdyc, BackendLRU, "":
	default:
		return &cacheinfra.ConfigError{Field: "Backend", Message: "must be one of sturdyc, lru, none"}
	}
	return c.toInternal().Validate()
}

// NewBackend constructs the configured backend.
func NewBackend(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendNone:
		return NopBackend{}, nil
	case BackendLRU:
		b, err := cacheinfra.NewLRUBackend(cfg.toInternal())
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		b, err := cacheinfra.NewSturdycBackend(cfg.toInternal())
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
