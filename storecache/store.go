package storecache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/content"
)

// KeyPrefix prefixes every key written by the decorator.
const KeyPrefix = "placeholderobj"

var _ content.Repository = (*Store)(nil)

// Store decorates a content.Repository with read-through caching of
// placeholder lookups. Item reads and writes pass through.
type Store struct {
	base    content.Repository
	backend cache.Backend
	ttl     time.Duration

	// keys tracks the cached keys per parent for invalidation.
	keys sync.Map
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the timeout of cached lookups. Zero uses the backend default.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New wraps base.
func New(base content.Repository, backend cache.Backend, opts ...Option) *Store {
	s := &Store{base: base, backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceholderBySlot returns the placeholder of parent named slot, cached.
func (s *Store) PlaceholderBySlot(ctx context.Context, parent content.ParentRef, slot string) (*content.Placeholder, error) {
	if bypassed(ctx) {
		return s.base.PlaceholderBySlot(ctx, parent, slot)
	}
	key := parentKey(parent, "slot", slot)
	s.track(parent, key)
	return cache.GetOrFetch(ctx, s.backend, key, s.ttl, func(ctx context.Context) (*content.Placeholder, error) {
		return s.base.PlaceholderBySlot(ctx, parent, slot)
	})
}

// Placeholder returns a placeholder by id, cached.
func (s *Store) Placeholder(ctx context.Context, id int64) (*content.Placeholder, error) {
	if bypassed(ctx) {
		return s.base.Placeholder(ctx, id)
	}
	key := KeyPrefix + ".id." + strconv.FormatInt(id, 10)
	ph, err := cache.GetOrFetch(ctx, s.backend, key, s.ttl, func(ctx context.Context) (*content.Placeholder, error) {
		return s.base.Placeholder(ctx, id)
	})
	if err == nil && ph != nil {
		s.track(ph.Parent, key)
	}
	return ph, err
}

// Placeholders returns the placeholders of parent, cached.
func (s *Store) Placeholders(ctx context.Context, parent content.ParentRef) ([]*content.Placeholder, error) {
	if bypassed(ctx) {
		return s.base.Placeholders(ctx, parent)
	}
	key := parentKey(parent, "all")
	s.track(parent, key)
	return cache.GetOrFetch(ctx, s.backend, key, s.ttl, func(ctx context.Context) ([]*content.Placeholder, error) {
		return s.base.Placeholders(ctx, parent)
	})
}

func (s *Store) PlaceholderItems(ctx context.Context, placeholder *content.Placeholder, filter content.ItemFilter) ([]content.Item, error) {
	return s.base.PlaceholderItems(ctx, placeholder, filter)
}

func (s *Store) Items(ctx context.Context, ids []int64) ([]content.Item, error) {
	return s.base.Items(ctx, ids)
}

func (s *Store) RealInstances(ctx context.Context, items []content.Item) ([]*content.Instance, error) {
	return s.base.RealInstances(ctx, items)
}

// CreatePlaceholder creates a placeholder and drops the cached lookups of
// its parent.
func (s *Store) CreatePlaceholder(ctx context.Context, parent content.ParentRef, slot string, role content.Role, title string) (*content.Placeholder, error) {
	ph, err := s.base.CreatePlaceholder(ctx, parent, slot, role, title)
	if err == nil {
		s.Invalidate(ctx, parent)
	}
	return ph, err
}

// DeletePlaceholder deletes a placeholder and drops the cached lookups of
// its parent.
func (s *Store) DeletePlaceholder(ctx context.Context, id int64) error {
	ph, lookupErr := s.base.Placeholder(ctx, id)
	err := s.base.DeletePlaceholder(ctx, id)
	if err == nil {
		if lookupErr == nil && ph != nil {
			s.Invalidate(ctx, ph.Parent)
		}
		_ = s.backend.DeleteMany(ctx, []string{KeyPrefix + ".id." + strconv.FormatInt(id, 10)})
	}
	return err
}

func (s *Store) CreateItem(ctx context.Context, placeholder *content.Placeholder, item content.Item, data any) (content.Item, error) {
	return s.base.CreateItem(ctx, placeholder, item, data)
}

func (s *Store) SaveItem(ctx context.Context, item content.Item, data any) (content.Item, error) {
	return s.base.SaveItem(ctx, item, data)
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	return s.base.DeleteItem(ctx, id)
}

// Invalidate drops every cached lookup of parent.
func (s *Store) Invalidate(ctx context.Context, parent content.ParentRef) {
	value, ok := s.keys.LoadAndDelete(parent)
	if !ok {
		return
	}
	set := value.(*keySet)
	_ = s.backend.DeleteMany(ctx, set.list())
}

func (s *Store) track(parent content.ParentRef, key string) {
	value, _ := s.keys.LoadOrStore(parent, &keySet{})
	value.(*keySet).add(key)
}

type keySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (k *keySet) add(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.keys == nil {
		k.keys = make(map[string]struct{})
	}
	k.keys[key] = struct{}{}
}

func (k *keySet) list() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, 0, len(k.keys))
	for key := range k.keys {
		out = append(out, key)
	}
	return out
}

func parentKey(parent content.ParentRef, parts ...string) string {
	all := append([]string{KeyPrefix, strconv.FormatInt(parent.TypeID, 10), strconv.FormatInt(parent.ID, 10)}, parts...)
	return strings.Join(all, cache.KeySeparator)
}
