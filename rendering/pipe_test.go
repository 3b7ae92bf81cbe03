package rendering_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/pkg/testsupport"
	"github.com/goliatone/go-content-placeholders/plugin"
	"github.com/goliatone/go-content-placeholders/rendering"
	"github.com/goliatone/go-content-placeholders/reqctx"
)

var page = content.ParentRef{TypeID: 1, ID: 1}

type fixture struct {
	t        *testing.T
	store    *testsupport.MemoryStore
	backend  *testsupport.RecordingBackend
	registry *plugin.Registry
	text     *testsupport.TextPlugin
	observer *countingObserver
	engine   *rendering.Engine
	ph       *content.Placeholder
	sort     int
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	settings  rendering.Settings
	policy    plugin.CachePolicy
	templates rendering.TemplateRenderer
	template  string
}

func withSettings(fn func(*rendering.Settings)) fixtureOption {
	return func(c *fixtureConfig) { fn(&c.settings) }
}

func withTextPolicy(p plugin.CachePolicy) fixtureOption {
	return func(c *fixtureConfig) { c.policy = p }
}

func withTemplates(tr rendering.TemplateRenderer, itemTemplate string) fixtureOption {
	return func(c *fixtureConfig) {
		c.templates = tr
		c.template = itemTemplate
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{settings: rendering.DefaultSettings()}
	for _, opt := range opts {
		opt(&cfg)
	}

	text := testsupport.NewTextPlugin(cfg.policy)
	text.Template = cfg.template

	registry := plugin.NewRegistry()
	registry.MustRegister(
		text,
		testsupport.NewFailingPlugin(),
		testsupport.NewDynamicPlugin(),
		testsupport.NewSkipPlugin(),
		testsupport.NewRedirectPlugin(),
		testsupport.NewPanicPlugin(),
	)

	store := testsupport.NewMemoryStore()
	backend := testsupport.NewRecordingBackend()
	observer := &countingObserver{}

	engineOpts := []rendering.EngineOption{
		rendering.WithBackend(backend),
		rendering.WithSettings(cfg.settings),
		rendering.WithObserver(observer),
	}
	if cfg.templates != nil {
		engineOpts = append(engineOpts, rendering.WithTemplates(cfg.templates))
	}
	engine := rendering.NewEngine(registry, store, engineOpts...)

	ph, err := store.CreatePlaceholder(context.Background(), page, "main", content.RoleMain, "Main")
	require.NoError(t, err)

	return &fixture{
		t:        t,
		store:    store,
		backend:  backend,
		registry: registry,
		text:     text,
		observer: observer,
		engine:   engine,
		ph:       ph,
	}
}

func (f *fixture) add(typeID int64, lang string, data any) content.Item {
	f.t.Helper()
	f.sort++
	item, err := f.store.CreateItem(context.Background(), f.ph, content.Item{
		TypeID:       typeID,
		LanguageCode: lang,
		SortOrder:    f.sort,
	}, data)
	require.NoError(f.t, err)
	return item
}

func (f *fixture) addText(text string) content.Item {
	return f.add(testsupport.TextTypeID, "", &testsupport.TextItem{Text: text})
}

func (f *fixture) render(ctx context.Context, opts ...rendering.RenderOption) content.Output {
	f.t.Helper()
	out, err := f.engine.RenderPlaceholder(ctx, f.ph, opts...)
	require.NoError(f.t, err)
	return out
}

func itemKey(slot string, id int64) string {
	key, _ := cache.ItemKey(slot, "TestTextItem", id)
	return key
}

type countingObserver struct {
	mu               sync.Mutex
	itemHits         int
	itemMisses       int
	placeholderHits  int
	placeholderMiss  int
	rendered         map[rendering.Outcome]int
	renderedByPlugin map[string]int
}

func (o *countingObserver) ItemCacheLookup(_ string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.itemHits++
	} else {
		o.itemMisses++
	}
}

func (o *countingObserver) PlaceholderCacheLookup(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.placeholderHits++
	} else {
		o.placeholderMiss++
	}
}

func (o *countingObserver) ItemRendered(name string, outcome rendering.Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rendered == nil {
		o.rendered = make(map[rendering.Outcome]int)
		o.renderedByPlugin = make(map[string]int)
	}
	o.rendered[outcome]++
	o.renderedByPlugin[name]++
}

func TestRenderPlaceholder_MergesInOrder(t *testing.T) {
	f := newFixture(t)
	f.addText("Item1!")
	f.addText("Item2!")

	out := f.render(context.Background())

	assert.Equal(t, "<b>Item1!</b><b>Item2!</b>", out.HTML)
	assert.True(t, out.Cacheable)
	assert.Nil(t, out.Redirect)
}

func TestRenderPlaceholder_EmptyPlaceholder(t *testing.T) {
	f := newFixture(t)

	out := f.render(context.Background())

	assert.Equal(t, "<!-- no items in placeholder 'main' -->", out.HTML)
	assert.True(t, out.Cacheable)
	assert.Zero(t, f.store.RealInstancesCalls())
}

func TestRenderItems_EmptySlotIsEscaped(t *testing.T) {
	f := newFixture(t)
	pipe := f.engine.NewPipe(context.Background())

	out, err := pipe.RenderItems(context.Background(), &content.Placeholder{Slot: "<x>"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "<!-- no items in placeholder '&lt;x&gt;' -->", out.HTML)
}

func TestRenderPlaceholder_IsIdempotentAndReadsLess(t *testing.T) {
	f := newFixture(t)
	f.addText("a")
	f.addText("b")

	first := f.render(context.Background())
	second := f.render(context.Background())

	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, int64(2), f.text.Renders())
	assert.Equal(t, int64(1), f.store.RealInstancesCalls())
	assert.Equal(t, 2, f.observer.itemHits)
	assert.Equal(t, 2, f.observer.itemMisses)
}

func TestRenderPlaceholder_PlaceholderCacheSkipsItemQuery(t *testing.T) {
	f := newFixture(t, withSettings(func(s *rendering.Settings) { s.CachePlaceholderOutput = true }))
	f.addText("a")

	first := f.render(context.Background())
	second := f.render(context.Background())

	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, int64(1), f.store.PlaceholderItemsCalls())
	assert.True(t, f.backend.Has(cache.PlaceholderKeyFor(f.ph, "")))
	assert.Equal(t, 1, f.observer.placeholderHits)

	cached, ok := f.engine.CachedPlaceholderOutput(context.Background(), page, "main", "")
	require.True(t, ok)
	assert.Equal(t, "<b>a</b>", cached.HTML)
}

func TestRenderPlaceholder_MixedHitsKeepOrder(t *testing.T) {
	f := newFixture(t)
	f.addText("one")
	middle := f.addText("two")
	f.addText("three")

	first := f.render(context.Background())
	require.NoError(t, f.backend.DeleteMany(context.Background(), []string{itemKey("main", middle.ID)}))
	upcastBefore := f.store.UpcastItems()

	second := f.render(context.Background())

	assert.Equal(t, "<b>one</b><b>two</b><b>three</b>", first.HTML)
	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, int64(1), f.store.UpcastItems()-upcastBefore)
}

func TestRenderPlaceholder_UncachablePropagates(t *testing.T) {
	f := newFixture(t, withSettings(func(s *rendering.Settings) { s.CachePlaceholderOutput = true }))
	f.addText("a")
	dynamic := f.add(testsupport.DynamicTypeID, "", &testsupport.TextItem{})

	out := f.render(context.Background())

	assert.Equal(t, fmt.Sprintf("<b>a</b><i>dynamic %d</i>", dynamic.ID), out.HTML)
	assert.False(t, out.Cacheable)
	assert.False(t, f.backend.Has(cache.PlaceholderKeyFor(f.ph, "")))
}

func TestRenderPlaceholder_PerSiteDisqualifiesAggregate(t *testing.T) {
	f := newFixture(t,
		withTextPolicy(plugin.CachePolicy{PerSite: true}),
		withSettings(func(s *rendering.Settings) {
			s.CachePlaceholderOutput = true
			s.SiteID = 2
		}),
	)
	item := f.addText("a")

	out := f.render(context.Background())

	assert.False(t, out.Cacheable)
	assert.True(t, f.backend.Has(itemKey("main", item.ID)+"-s2"))
}

func TestRenderPlaceholder_FallbackLanguageIsNotCached(t *testing.T) {
	f := newFixture(t, withSettings(func(s *rendering.Settings) { s.CachePlaceholderOutput = true }))
	f.add(testsupport.TextTypeID, "en", &testsupport.TextItem{Text: "hello"})
	f.add(testsupport.TextTypeID, "en", &testsupport.TextItem{Text: "world"})

	out := f.render(context.Background(),
		rendering.WithParentLanguage("fr"),
		rendering.WithFallbackLanguage("en"),
	)

	assert.Equal(t, "<b>hello</b><b>world</b>", out.HTML)
	assert.False(t, out.Cacheable)
	assert.False(t, f.backend.Has(cache.PlaceholderKeyFor(f.ph, "fr")))
}

func TestRenderPlaceholder_DefaultFallback(t *testing.T) {
	f := newFixture(t)
	f.add(testsupport.TextTypeID, "en", &testsupport.TextItem{Text: "hello"})

	limited := f.render(context.Background(), rendering.WithParentLanguage("nl"))
	fallback := f.render(context.Background(), rendering.WithParentLanguage("nl"), rendering.WithDefaultFallback())
	unlimited := f.render(context.Background(), rendering.WithParentLanguage("nl"), rendering.WithoutParentLanguageLimit())

	assert.Equal(t, "<!-- no items in placeholder 'main' -->", limited.HTML)
	assert.Equal(t, "<b>hello</b>", fallback.HTML)
	assert.False(t, fallback.Cacheable)
	assert.Equal(t, "<b>hello</b>", unlimited.HTML)
	assert.True(t, unlimited.Cacheable)
}

func TestRenderPlaceholder_StaleItems(t *testing.T) {
	f := newFixture(t)
	stale := f.add(999, "", &testsupport.TextItem{Text: "gone"})
	dropped := f.addText("dropped")
	f.store.DropPayload(dropped.ID)
	f.addText("ok")

	out := f.render(context.Background())

	assert.Equal(t,
		fmt.Sprintf("<!-- Missing derived model for ContentItem #%d: content type is stale. -->\n", stale.ID)+
			fmt.Sprintf("<!-- Missing derived model for ContentItem #%d: TestTextItem. -->\n", dropped.ID)+
			"<b>ok</b>",
		out.HTML)
}

func TestRenderPlaceholder_StaleItemWithoutCache(t *testing.T) {
	f := newFixture(t, withSettings(func(s *rendering.Settings) { s.CacheOutput = false }))
	stale := f.add(999, "", &testsupport.TextItem{Text: "gone"})

	out := f.render(context.Background())

	assert.Equal(t, fmt.Sprintf("<!-- Missing derived model for ContentItem #%d: content type is stale. -->\n", stale.ID), out.HTML)
	assert.Empty(t, f.backend.Keys())
}

func TestRenderPlaceholder_FailuresAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.add(testsupport.FailingTypeID, "", &testsupport.TextItem{})
	f.add(testsupport.PanicTypeID, "", &testsupport.TextItem{})
	f.addText("survivor")

	out := f.render(context.Background())

	assert.Equal(t, "<b>survivor</b>", out.HTML)
	assert.Equal(t, 2, f.observer.rendered[rendering.OutcomeFailed])
}

func TestRenderPlaceholder_DebugShowsErrors(t *testing.T) {
	f := newFixture(t, withSettings(func(s *rendering.Settings) { s.Debug = true }))
	f.add(testsupport.FailingTypeID, "", &testsupport.TextItem{})
	f.addText("survivor")

	out := f.render(context.Background())

	assert.Equal(t, "<!-- error: render failed -->\n<b>survivor</b>", out.HTML)
}

func TestRenderPlaceholder_SkipContributesNothing(t *testing.T) {
	f := newFixture(t)
	f.add(testsupport.SkipTypeID, "", &testsupport.TextItem{})
	f.addText("a")

	out := f.render(context.Background())

	assert.Equal(t, "<b>a</b>", out.HTML)
	assert.Equal(t, 1, f.observer.rendered[rendering.OutcomeSkipped])
}

func TestRenderPlaceholder_Redirect(t *testing.T) {
	f := newFixture(t)
	f.addText("a")
	f.add(testsupport.RedirectTypeID, "", &testsupport.TextItem{Text: "/elsewhere"})

	out := f.render(context.Background())

	require.NotNil(t, out.Redirect)
	assert.Equal(t, "/elsewhere", out.Redirect.URL)
	assert.Equal(t, 301, out.Redirect.StatusOrDefault())
	assert.False(t, out.Cacheable)
}

func TestRenderPlaceholder_EditMode(t *testing.T) {
	f := newFixture(t, withSettings(func(s *rendering.Settings) { s.CachePlaceholderOutput = true }))
	item := f.addText("a")
	ctx := reqctx.WithEditMode(context.Background(), true)

	out := f.render(ctx)

	assert.Equal(t,
		fmt.Sprintf(`<div class="cp-editable-placeholder" id="cp-editable-placeholder-main" data-placeholder-id="%d" data-placeholder-slot="main">`, f.ph.ID)+
			fmt.Sprintf(`<div class="cp-editable-contentitem" data-itemtype="TestTextItem" data-item-id="%d"><b>a</b></div>`+"\n", item.ID)+
			"</div>\n",
		out.HTML)
	assert.False(t, out.Cacheable)
	assert.False(t, f.backend.Has(cache.PlaceholderKeyFor(f.ph, "")))
}

func TestRenderPlaceholder_TimeoutFolding(t *testing.T) {
	f := newFixture(t, withTextPolicy(plugin.CachePolicy{Timeout: time.Minute}))
	item := f.addText("a")

	out := f.render(context.Background())

	assert.Equal(t, time.Minute, out.CacheTimeout)
	timeout, ok := f.backend.Timeout(itemKey("main", item.ID))
	require.True(t, ok)
	assert.Equal(t, time.Minute, timeout)
}

func TestRenderPlaceholder_TimeoutFoldingOnCacheHit(t *testing.T) {
	f := newFixture(t, withTextPolicy(plugin.CachePolicy{Timeout: time.Minute}))
	item := f.addText("a")
	cached := content.NewOutput("<b>cached</b>", content.Media{})
	cached.CacheTimeout = 10 * time.Second
	data, err := content.EncodeOutput(cached)
	require.NoError(t, err)
	f.backend.Put(itemKey("main", item.ID), data)

	out := f.render(context.Background())

	assert.Equal(t, "<b>cached</b>", out.HTML)
	assert.Zero(t, f.text.Renders())
	assert.Equal(t, 10*time.Second, out.CacheTimeout)
}

func TestRenderPlaceholder_PerLanguageKeys(t *testing.T) {
	f := newFixture(t,
		withTextPolicy(plugin.CachePolicy{PerLanguage: true}),
		withSettings(func(s *rendering.Settings) { s.Languages = []string{"en", "nl"} }),
	)
	item := f.addText("a")

	f.render(reqctx.WithLanguage(context.Background(), "nl"))
	f.render(reqctx.WithLanguage(context.Background(), "fr"))

	assert.True(t, f.backend.Has(itemKey("main", item.ID)+".nl"))
	assert.True(t, f.backend.Has(itemKey("main", item.ID)+".unsupported"))
}

func TestRenderPlaceholder_LegacyCacheEntryIsAMiss(t *testing.T) {
	f := newFixture(t)
	item := f.addText("fresh")
	f.backend.Put(itemKey("main", item.ID), []byte("<b>stale plain string</b>"))

	out := f.render(context.Background())

	assert.Equal(t, "<b>fresh</b>", out.HTML)
	assert.Equal(t, int64(1), f.text.Renders())
}

func TestRenderPlaceholder_MergeTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"merge.html": {Data: []byte(`{{range .ContentItems}}<li data-id="{{.Item.ID}}">{{.HTML}}</li>{{end}}`)},
	}
	f := newFixture(t,
		withTemplates(rendering.NewFSTemplates(fsys, false), ""),
		withSettings(func(s *rendering.Settings) { s.CachePlaceholderOutput = true }),
	)
	item := f.addText("a")

	out := f.render(context.Background(), rendering.WithTemplate("merge.html"))
	assert.Equal(t, fmt.Sprintf(`<li data-id="%d"><b>a</b></li>`, item.ID), out.HTML)
	assert.False(t, out.Cacheable)

	forced := f.render(context.Background(), rendering.WithTemplate("merge.html"), rendering.WithCachable(true))
	assert.True(t, forced.Cacheable)
	assert.True(t, f.backend.Has(cache.PlaceholderKeyFor(f.ph, "")))
}

func TestRenderPlaceholder_MissingTemplateIsAnError(t *testing.T) {
	f := newFixture(t, withTemplates(rendering.NewFSTemplates(fstest.MapFS{}, false), ""))
	f.addText("a")

	_, err := f.engine.RenderPlaceholder(context.Background(), f.ph, rendering.WithTemplate("nope.html"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.html")
}

func TestRenderPlaceholder_DebugTemplateChangeInvalidates(t *testing.T) {
	fsys := fstest.MapFS{
		"text.html": {Data: []byte("x"), ModTime: time.Unix(1000, 0)},
	}
	f := newFixture(t,
		withTemplates(rendering.NewFSTemplates(fsys, true), "text.html"),
		withSettings(func(s *rendering.Settings) { s.Debug = true }),
	)
	item := f.addText("a")

	f.render(context.Background())
	f.render(context.Background())
	require.Equal(t, int64(1), f.text.Renders())
	assert.True(t, f.backend.Has(cache.DebugStatKey(itemKey("main", item.ID))))

	fsys["text.html"].ModTime = time.Unix(2000, 0)
	f.render(context.Background())
	assert.Equal(t, int64(2), f.text.Renders())
}

func TestRenderContentItems(t *testing.T) {
	f := newFixture(t)
	item := f.addText("free")

	empty, err := f.engine.RenderContentItems(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "<!-- no items to render -->", empty.HTML)

	out, err := f.engine.RenderContentItems(context.Background(), []content.Item{item})
	require.NoError(t, err)
	assert.Equal(t, "<b>free</b>", out.HTML)
	assert.True(t, f.backend.Has(itemKey(content.GlobalSlotName, item.ID)))

	edit, err := f.engine.RenderContentItems(reqctx.WithEditMode(context.Background(), true), []content.Item{item})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(edit.HTML, `<div class="cp-editable-placeholder"><div class="cp-editable-contentitem"`))
}

func TestRenderContentInstances_UnsavedPreview(t *testing.T) {
	f := newFixture(t)
	preview := &content.Instance{
		Item: content.Item{TypeID: testsupport.TextTypeID},
		Data: &testsupport.TextItem{Text: "preview"},
	}

	out, err := f.engine.RenderContentInstances(context.Background(), []*content.Instance{preview})

	require.NoError(t, err)
	assert.Equal(t, "<b>preview</b>", out.HTML)
	assert.False(t, out.Cacheable)
	assert.Empty(t, f.backend.Keys())
}

func TestRenderPlaceholder_NilPlaceholder(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RenderPlaceholder(context.Background(), nil)
	assert.Error(t, err)
}
