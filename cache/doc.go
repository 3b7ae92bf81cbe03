// Package cache defines the output cache backend contract and the cache key
// formats shared with other deployments reading the same cache.
//
// # Overview
//
// This package exports:
//
//   - Backend: Get, Set with a per-entry timeout, and DeleteMany over bytes
//   - Config and NewBackend: builds the sturdyc or LRU implementation
//   - Key functions: ItemKey, PlaceholderKey, OutputKey and OutputKeys
//   - GetOrFetch: a typed read-through helper encoding values as msgpack
//
// # Key Formats
//
// Keys are byte-stable:
//
//	contentitem.@<slot>.<type>.<id>                 rendered item
//	placeholder.<parent-type>.<parent-id>.<slot>.<language>   merged placeholder
//
// Plugins caching per site append "-s<site>" to the item key, plugins
// caching per language append ".<language>", where languages outside the
// plugin's supported set share the "unsupported" bucket. A placeholder with no
// language is stored under "None".
//
//	key, ok := cache.ItemKey("main", "TextItem", 12)
//	// contentitem.@main.TextItem.12, true
//	key = cache.OutputKey(key, cache.Scope{PerSite: true}, 2, "en")
//	// contentitem.@main.TextItem.12-s2
//
// Unsaved items (id 0) have no key and are never cached.
//
// # Invalidation
//
// OutputKeys returns every key one item may have been stored under: all sites
// times all supported languages plus the "unsupported" and "None" buckets,
// and the merged placeholder keys for every language. The fan-out grows with
// sites and languages; that is the price of per-site and per-language
// caching.
//
// # Error Handling
//
// The cache is an optimization. Backends report unavailability as a miss and
// callers ignore write failures.
package cache
