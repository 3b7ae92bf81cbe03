package rendering

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
)

// ErrFlushUnsupported is returned by FlushOutput for backends unable to
// delete by prefix.
var ErrFlushUnsupported = errors.New("rendering: cache backend cannot flush by prefix")

// ItemCacheKeys returns every key the output of item may be stored under:
// the item keys for its slot and for free lists, expanded over the plugin
// cache scope, and the merged placeholder keys for the item language and for
// no language.
func (e *Engine) ItemCacheKeys(ctx context.Context, item content.Item) ([]string, error) {
	if !item.Saved() {
		return nil, nil
	}
	plug, err := e.resolver.PluginByTypeID(item.TypeID)
	if err != nil {
		return nil, err
	}
	placeholder, err := e.placeholderOf(ctx, item)
	if err != nil {
		return nil, err
	}

	scope := e.scopeOf(plug.CachePolicy())
	typeName := plug.Model().Name

	seen := make(map[string]struct{})
	var keys []string
	add := func(list ...string) {
		for _, k := range list {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	slots := []string{content.GlobalSlotName}
	if placeholder != nil {
		slots = []string{placeholder.Slot, content.GlobalSlotName}
	}
	for _, slot := range slots {
		base, ok := cache.ItemKey(slot, typeName, item.ID)
		if !ok {
			continue
		}
		add(cache.OutputKeys(base, scope, e.settings.SiteIDs, e.settings.SiteID, placeholder)...)
	}
	add(mergedKeys(placeholder, item)...)
	return keys, nil
}

func (e *Engine) placeholderOf(ctx context.Context, item content.Item) (*content.Placeholder, error) {
	if item.Orphaned() {
		return nil, nil
	}
	placeholder, err := e.store.Placeholder(ctx, item.PlaceholderID)
	if errors.Is(err, content.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load placeholder %d: %w", item.PlaceholderID, err)
	}
	return placeholder, nil
}

// mergedKeys returns the merged placeholder keys holding item. Output merged
// without a parent language holds items of every language.
func mergedKeys(placeholder *content.Placeholder, item content.Item) []string {
	if placeholder == nil {
		return nil
	}
	return []string{cache.PlaceholderKeyFor(placeholder, item.LanguageCode), cache.PlaceholderKeyFor(placeholder, "")}
}

// InvalidateItem removes the cached output of item and of its placeholder.
// Items of an unregistered type only have their placeholder output removed.
func (e *Engine) InvalidateItem(ctx context.Context, item content.Item) error {
	keys, err := e.ItemCacheKeys(ctx, item)
	if errors.Is(err, plugin.ErrPluginNotFound) {
		var placeholder *content.Placeholder
		if placeholder, err = e.placeholderOf(ctx, item); err == nil {
			keys = mergedKeys(placeholder, item)
		}
	}
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	e.logger.Debug("invalidate content item output", "item_id", item.ID, "keys", len(keys))
	return e.backend.DeleteMany(ctx, keys)
}

// InvalidatePlaceholder removes the merged output of a placeholder for the
// given languages. No language removes the entry written without one.
func (e *Engine) InvalidatePlaceholder(ctx context.Context, placeholder *content.Placeholder, languages ...string) error {
	if placeholder == nil {
		return errNilPlaceholder
	}
	if len(languages) == 0 {
		languages = []string{""}
	}
	keys := make([]string, 0, len(languages))
	for _, lang := range languages {
		keys = append(keys, cache.PlaceholderKeyFor(placeholder, lang))
	}
	return e.backend.DeleteMany(ctx, keys)
}

// FlushOutput removes every cached item and placeholder output.
func (e *Engine) FlushOutput(ctx context.Context) error {
	deleter, ok := e.backend.(cache.PrefixDeleter)
	if !ok {
		return ErrFlushUnsupported
	}
	for _, prefix := range []string{cache.ItemKeyPrefix + cache.KeySeparator, cache.PlaceholderKeyPrefix + cache.KeySeparator} {
		if err := deleter.DeleteByPrefix(ctx, prefix); err != nil {
			return fmt.Errorf("flush %s: %w", prefix, err)
		}
	}
	return nil
}
