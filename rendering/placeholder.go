package rendering

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/content"
)

var errNilPlaceholder = errors.New("rendering: nil placeholder")

// RenderPlaceholder renders the items of a placeholder. With placeholder
// caching enabled the merged output is read from and written to the cache,
// keyed by parent, slot and parent language. Output rendered from the
// fallback language is never cached. In edit mode the cache is bypassed and
// the output is wrapped for the frontend editor.
//
// Registering Output.Media with RegisterFrontendMedia is left to the caller.
func (e *Engine) RenderPlaceholder(ctx context.Context, placeholder *content.Placeholder, opts ...RenderOption) (content.Output, error) {
	if placeholder == nil {
		return content.Output{}, errNilPlaceholder
	}
	cfg := newRenderConfig(opts)
	pipe := e.NewPipe(ctx)

	tryCache := e.mayCachePlaceholders() && cfg.mergeCachable() && !pipe.editMode
	if tryCache {
		if out, ok := e.CachedPlaceholderOutput(ctx, placeholder.Parent, placeholder.Slot, cfg.parentLanguage); ok {
			return out, nil
		}
	}

	items, isFallback, err := e.placeholderItems(ctx, placeholder, cfg)
	if err != nil {
		return content.Output{}, err
	}

	out, err := pipe.RenderItems(ctx, placeholder, items, opts...)
	if err != nil {
		return content.Output{}, err
	}
	if isFallback {
		out.Cacheable = false
	}

	if tryCache && out.Cacheable {
		e.storePlaceholderOutput(ctx, cache.PlaceholderKeyFor(placeholder, cfg.parentLanguage), out)
	}
	if pipe.editMode {
		out.HTML = wrapPlaceholder(placeholder, out.HTML)
	}
	return out, nil
}

// RenderContentItems renders a free list of base items, outside any
// placeholder. Their cache keys use the global slot name.
func (e *Engine) RenderContentItems(ctx context.Context, items []content.Item, opts ...RenderOption) (content.Output, error) {
	if len(items) == 0 {
		return content.NewOutput(emptyItemsComment, content.Media{}), nil
	}
	pipe := e.NewPipe(ctx)
	out, err := pipe.RenderItems(ctx, nil, items, opts...)
	if err != nil {
		return content.Output{}, err
	}
	if pipe.editMode {
		out.HTML = wrapAnonymous(out.HTML)
	}
	return out, nil
}

// RenderContentInstances renders concrete items as given, typically unsaved
// previews. The cache is not read.
func (e *Engine) RenderContentInstances(ctx context.Context, instances []*content.Instance, opts ...RenderOption) (content.Output, error) {
	if len(instances) == 0 {
		return content.NewOutput(emptyItemsComment, content.Media{}), nil
	}
	pipe := e.NewPipe(ctx)
	out, err := pipe.RenderInstances(ctx, nil, instances, opts...)
	if err != nil {
		return content.Output{}, err
	}
	if pipe.editMode {
		out.HTML = wrapAnonymous(out.HTML)
	}
	return out, nil
}

// placeholderItems loads the items of placeholder in the parent language,
// or in the fallback language when there are none. isFallback reports the
// second case.
func (e *Engine) placeholderItems(ctx context.Context, placeholder *content.Placeholder, cfg renderConfig) (items []content.Item, isFallback bool, err error) {
	filter := e.itemFilter(cfg, cfg.parentLanguage)
	items, err = e.store.PlaceholderItems(ctx, placeholder, filter)
	if err != nil {
		return nil, false, fmt.Errorf("load items of placeholder %q: %w", placeholder.Slot, err)
	}

	fallback := cfg.fallback
	if fallback == "" && cfg.useDefaultFallback {
		fallback = e.settings.DefaultLanguage
	}
	if len(items) == 0 && fallback != "" && fallback != filter.Language {
		filter.Language = fallback
		items, err = e.store.PlaceholderItems(ctx, placeholder, filter)
		if err != nil {
			return nil, false, fmt.Errorf("load fallback items of placeholder %q: %w", placeholder.Slot, err)
		}
		return items, true, nil
	}
	return items, false, nil
}

func (e *Engine) itemFilter(cfg renderConfig, language string) content.ItemFilter {
	filter := content.ItemFilter{Parent: cfg.parent}
	if cfg.limitParentLanguage {
		filter.Language = language
	}
	return filter
}

func (e *Engine) storePlaceholderOutput(ctx context.Context, key string, out content.Output) {
	data, err := content.EncodeOutput(out)
	if err != nil {
		e.logger.Debug("encode placeholder output", "key", key, "error", err)
		return
	}
	if err := e.backend.Set(ctx, key, data, out.CacheTimeout); err != nil {
		e.logger.Debug("cache placeholder output", "key", key, "error", err)
	}
}
