// Package storecache provides a caching decorator for content stores.
//
// # Overview
//
// Store wraps a content.Repository and caches placeholder lookups in a
// cache.Backend. Rendering a page looks its placeholders up by parent and
// slot on every request, while placeholders themselves rarely change.
//
// # Cached vs Pass-through Operations
//
// Cached:
//   - PlaceholderBySlot, Placeholder, Placeholders
//
// Pass-through:
//   - PlaceholderItems, Items, RealInstances
//   - every write
//
// Item lists are not cached here; their rendered output is cached by the
// rendering package instead.
//
// # Invalidation
//
// Keys are tracked per parent. CreatePlaceholder and DeletePlaceholder drop
// every cached lookup of the affected parent. Lookup errors, including
// content.ErrNotFound, are never cached.
//
//	store := storecache.New(persistence, backend, storecache.WithTTL(time.Minute))
//	ph, err := store.PlaceholderBySlot(ctx, parent, "main")
package storecache
