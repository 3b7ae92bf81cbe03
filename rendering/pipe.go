package rendering

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
	"github.com/goliatone/go-content-placeholders/reqctx"
)

// Pipe renders item lists for one request. It is not safe for concurrent
// use; create one per request with Engine.NewPipe.
type Pipe struct {
	engine   *Engine
	language string
	editMode bool
	search   bool
}

// Language returns the active request language.
func (p *Pipe) Language() string {
	return p.language
}

// EditMode reports whether output is wrapped for the frontend editor.
func (p *Pipe) EditMode() bool {
	return p.editMode
}

// RenderItems renders base items in order. Cached output is used where the
// plugin allows it; the remaining items are upcast in one store call.
func (p *Pipe) RenderItems(ctx context.Context, placeholder *content.Placeholder, items []content.Item, opts ...RenderOption) (content.Output, error) {
	cfg := newRenderConfig(opts)
	t := p.newTracker(placeholder)
	if len(items) == 0 {
		return p.emptyOutput(t), nil
	}
	if p.editMode {
		t.SetUncachable()
	}

	p.readCached(ctx, t, items)

	if remaining := t.Remaining(); len(remaining) > 0 {
		instances, err := p.engine.store.RealInstances(ctx, remaining)
		if err != nil {
			return content.Output{}, fmt.Errorf("load items of placeholder %q: %w", t.Slot(), err)
		}
		t.SetRemainingInstances(instances)
	}

	p.renderRemaining(ctx, t)
	return p.merge(t, cfg)
}

// RenderInstances renders concrete items as given, without reading the
// cache. Unsaved items are rendered but never cached.
func (p *Pipe) RenderInstances(ctx context.Context, placeholder *content.Placeholder, instances []*content.Instance, opts ...RenderOption) (content.Output, error) {
	cfg := newRenderConfig(opts)
	t := p.newTracker(placeholder)
	if len(instances) == 0 {
		return p.emptyOutput(t), nil
	}
	if p.editMode {
		t.SetUncachable()
	}
	t.AddRemainingList(instances)
	p.renderRemaining(ctx, t)
	return p.merge(t, cfg)
}

func (p *Pipe) newTracker(placeholder *content.Placeholder) *ResultTracker {
	if p.search {
		return newSearchTracker(placeholder)
	}
	return NewResultTracker(placeholder)
}

func (p *Pipe) emptyOutput(t *ResultTracker) content.Output {
	if p.search {
		return content.Output{}
	}
	return content.NewOutput(emptyPlaceholderComment(t.Slot()), content.Media{})
}

func (p *Pipe) useCache() bool {
	return p.engine.settings.CacheOutput && !p.search
}

// readCached registers every item and satisfies what it can from the cache.
func (p *Pipe) readCached(ctx context.Context, t *ResultTracker, items []content.Item) {
	e := p.engine
	for _, item := range items {
		t.AddOrdering(item)
		if !p.useCache() || !item.Saved() {
			t.AddRemaining(item)
			continue
		}

		plug, err := e.resolver.PluginByTypeID(item.TypeID)
		if err != nil {
			inst := &content.Instance{Item: item}
			t.SetUnresolved(inst, err)
			e.logger.Debug("content item plugin not found",
				"slot", t.Slot(), "item_id", item.ID, "type_id", item.TypeID, "error", err)
			continue
		}

		policy := plug.CachePolicy()
		if !policy.CacheOutput() {
			t.AddRemaining(item)
			continue
		}
		t.AddPluginTimeout(policy)

		key, ok := p.itemKey(t.Slot(), plug, item)
		if !ok {
			t.AddRemaining(item)
			continue
		}

		out, hit := p.cachedItem(ctx, key, t.Slot(), item)
		inst := &content.Instance{Item: item}
		if hit && e.settings.Debug && p.templateChanged(ctx, plug, inst, key) {
			hit = false
		}
		e.observer.ItemCacheLookup(plug.Name(), hit)
		if !hit {
			t.AddRemaining(item)
			continue
		}
		t.AddTimeout(out.CacheTimeout)
		out.HTML = p.wrapItem(plug, item, out.HTML)
		t.StoreOutput(inst, out)
	}
}

func (p *Pipe) cachedItem(ctx context.Context, key, slot string, item content.Item) (content.Output, bool) {
	data, ok := p.engine.backend.Get(ctx, key)
	if !ok {
		return content.Output{}, false
	}
	out, ok := content.DecodeOutput(data)
	if !ok {
		p.engine.logger.Debug("flushed cached output in old format",
			"slot", slot, "item_id", item.ID, "key", key)
	}
	return out, ok
}

// renderRemaining renders every instance not satisfied from the cache.
func (p *Pipe) renderRemaining(ctx context.Context, t *ResultTracker) {
	e := p.engine
	for _, inst := range t.RemainingInstances() {
		plug, err := e.resolver.PluginByTypeID(inst.TypeID)
		if err != nil {
			t.SetUnresolved(inst, err)
			e.logger.Debug("content item plugin not found",
				"slot", t.Slot(), "item_id", inst.ID, "type_id", inst.TypeID, "error", err)
			continue
		}

		start := time.Now()
		outcome := p.renderItem(ctx, t, plug, inst)
		e.observer.ItemRendered(plug.Name(), outcome, time.Since(start))
	}
}

func (p *Pipe) renderItem(ctx context.Context, t *ResultTracker, plug plugin.Plugin, inst *content.Instance) Outcome {
	out, outcome, err := p.produce(ctx, plug, inst)
	switch outcome {
	case OutcomeFailed:
		t.StoreException(inst, err)
		p.engine.logger.Error("content item failed to render",
			"slot", t.Slot(), "item_id", inst.ID, "plugin", plug.Name(), "error", err)
	case OutcomeSkipped:
		t.SetSkipped(inst)
	case OutcomeRedirect:
		t.SetRedirect(*out.Redirect)
		t.StoreOutput(inst, content.Output{})
	default:
		if !p.search {
			p.tryCache(ctx, t, plug, inst, out)
		}
		t.AddTimeout(out.CacheTimeout)
		out.HTML = p.wrapItem(plug, inst.Item, out.HTML)
		t.StoreOutput(inst, out)
	}
	return outcome
}

// produce runs the plugin and normalizes its result.
func (p *Pipe) produce(ctx context.Context, plug plugin.Plugin, inst *content.Instance) (content.Output, Outcome, error) {
	if p.search {
		return p.produceSearch(ctx, plug, inst)
	}
	return p.produceOutput(ctx, plug, inst)
}

func (p *Pipe) produceOutput(ctx context.Context, plug plugin.Plugin, inst *content.Instance) (content.Output, Outcome, error) {
	ctx = reqctx.WithLanguage(ctx, p.renderLanguage(plug.CachePolicy(), inst.Item))
	res, err := callPlugin(ctx, plug, inst)
	if err != nil {
		return content.Output{}, OutcomeFailed, err
	}
	switch res.Kind() {
	case plugin.KindSkip:
		return content.Output{}, OutcomeSkipped, nil
	case plugin.KindRedirect:
		return res.OutputFor(plug, inst), OutcomeRedirect, nil
	}
	return res.OutputFor(plug, inst), OutcomeRendered, nil
}

func callPlugin(ctx context.Context, plug plugin.Plugin, inst *content.Instance) (res plugin.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", plug.Name(), r)
		}
	}()
	return plug.Render(ctx, inst)
}

// renderLanguage picks the language an item is rendered in.
func (p *Pipe) renderLanguage(policy plugin.CachePolicy, item content.Item) string {
	if policy.IgnoreItemLanguage || (policy.CacheOutput() && policy.PerLanguage) {
		return p.language
	}
	if item.LanguageCode != "" {
		return item.LanguageCode
	}
	return p.language
}

// tryCache stores fresh output and updates the aggregate cacheability.
func (p *Pipe) tryCache(ctx context.Context, t *ResultTracker, plug plugin.Plugin, inst *content.Instance, out content.Output) {
	e := p.engine
	policy := plug.CachePolicy()
	if !out.Cacheable || !policy.CacheOutput() {
		t.SetUncachable()
		e.logger.Debug("content item output is not cacheable",
			"slot", t.Slot(), "item_id", inst.ID, "plugin", plug.Name())
		return
	}
	if policy.PerSite {
		t.SetUncachable()
	}
	if !e.settings.CacheOutput {
		return
	}

	key, ok := p.itemKey(t.Slot(), plug, inst.Item)
	if !ok {
		// Unsaved output has no key, so the aggregate cannot be stored either.
		t.SetUncachable()
		return
	}
	timeout := out.CacheTimeout
	if timeout == content.DefaultTimeout {
		timeout = policy.Timeout
	}
	data, err := content.EncodeOutput(out)
	if err != nil {
		e.logger.Debug("encode content item output", "key", key, "error", err)
		return
	}
	if err := e.backend.Set(ctx, key, data, timeout); err != nil {
		e.logger.Debug("cache content item output", "key", key, "error", err)
		return
	}
	if e.settings.Debug {
		p.writeTemplateStamp(ctx, plug, inst, key, timeout)
	}
}

func (p *Pipe) itemKey(slot string, plug plugin.Plugin, item content.Item) (string, bool) {
	base, ok := cache.ItemKey(slot, plug.Model().Name, item.ID)
	if !ok {
		return "", false
	}
	return cache.OutputKey(base, p.engine.scopeOf(plug.CachePolicy()), p.engine.settings.SiteID, p.language), true
}

func (p *Pipe) templateStamp(plug plugin.Plugin, inst *content.Instance) (int64, bool) {
	name := plugin.TemplateOf(plug, inst)
	if name == "" || p.engine.templates == nil {
		return 0, false
	}
	mtime, err := p.engine.templates.ModTime(name)
	if err != nil {
		return 0, false
	}
	return mtime.UnixNano(), true
}

// templateChanged reports whether the template of a cached item changed
// since the output was written.
func (p *Pipe) templateChanged(ctx context.Context, plug plugin.Plugin, inst *content.Instance, key string) bool {
	stamp, ok := p.templateStamp(plug, inst)
	if !ok {
		return false
	}
	data, ok := p.engine.backend.Get(ctx, cache.DebugStatKey(key))
	if !ok {
		return true
	}
	var cached int64
	if err := msgpack.Unmarshal(data, &cached); err != nil {
		return true
	}
	return cached != stamp
}

func (p *Pipe) writeTemplateStamp(ctx context.Context, plug plugin.Plugin, inst *content.Instance, key string, timeout time.Duration) {
	stamp, ok := p.templateStamp(plug, inst)
	if !ok {
		return
	}
	data, err := msgpack.Marshal(stamp)
	if err != nil {
		return
	}
	_ = p.engine.backend.Set(ctx, cache.DebugStatKey(key), data, timeout)
}

func (p *Pipe) wrapItem(plug plugin.Plugin, item content.Item, fragment string) string {
	if !p.editMode {
		return fragment
	}
	return wrapItem(plug.Model().Name, item.ID, fragment)
}

// merge joins the tracked output in order.
func (p *Pipe) merge(t *ResultTracker, cfg renderConfig) (content.Output, error) {
	if p.search {
		return p.mergeSearch(t), nil
	}

	e := p.engine
	var media content.Media
	parts := make([]MergedItem, 0, len(t.ordering))
	for _, entry := range t.Output(e.settings.Debug) {
		var fragment string
		switch entry.State {
		case StateRendered:
			fragment = entry.Output.HTML
			media.Merge(entry.Output.Media)
		case StateFailed:
			fragment = errorComment(entry.Err)
		case StateSkipped:
			continue
		default:
			typeName := p.missingTypeName(entry)
			e.logger.Warn("missing derived model for content item",
				"slot", t.Slot(), "item_id", entry.Item.ID, "type", typeName)
			fragment = missingComment(entry.Item.ID, typeName)
		}
		parts = append(parts, MergedItem{Item: entry.Item, HTML: template.HTML(fragment)})
	}

	var fragment string
	if cfg.template != "" {
		if e.templates == nil {
			return content.Output{}, fmt.Errorf("render template %s: no template renderer configured", cfg.template)
		}
		var buf bytes.Buffer
		data := MergeData{
			ContentItems: parts,
			Placeholder:  t.Placeholder(),
			Parent:       cfg.parent,
			EditMode:     p.editMode,
		}
		if err := e.templates.Render(&buf, cfg.template, data); err != nil {
			return content.Output{}, fmt.Errorf("render template %s: %w", cfg.template, err)
		}
		fragment = buf.String()
	} else {
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(string(part.HTML))
		}
		fragment = b.String()
	}

	if !cfg.mergeCachable() {
		t.SetUncachable()
	}
	return content.Output{
		HTML:         fragment,
		Media:        media,
		Cacheable:    t.Cacheable(),
		CacheTimeout: t.Timeout(),
		Redirect:     t.Redirect(),
	}, nil
}

func (p *Pipe) missingTypeName(entry Entry) string {
	if entry.Err != nil && errors.Is(entry.Err, plugin.ErrPluginNotFound) {
		return staleTypeName
	}
	plug, err := p.engine.resolver.PluginByTypeID(entry.Item.TypeID)
	if err != nil {
		return staleTypeName
	}
	return plug.Model().Name
}
