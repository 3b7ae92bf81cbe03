// Package rendering turns placeholders and item lists into merged output.
//
// # Pipeline
//
// One render pass runs these stages in order:
//
//  1. An empty item list short-circuits to a cacheable HTML comment.
//  2. Edit mode marks the pass uncachable.
//  3. Each saved item of a caching plugin is looked up in the output cache.
//  4. Cache misses are upcast to their concrete payload in one store call.
//  5. Misses are rendered. Errors, panics, skips and redirects are recorded
//     per item and never abort the pass.
//  6. Fresh cacheable output is written back to the cache.
//  7. Outputs are merged in the original order, directly or through a
//     template. Items without a payload or plugin render as a comment.
//
// Engine.RenderPlaceholder adds a cache of the merged output and the
// fallback language policy on top of the pipe.
//
// # Search
//
// Engine.RenderPlaceholderSearchText renders only plugins declaring search
// output or search fields, strips markup and never uses the cache.
//
// # Invalidation
//
// Engine.ItemCacheKeys enumerates every key an item output may live under,
// across sites and languages. Engine.InvalidateItem deletes them all.
package rendering
