package di

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
	"github.com/goliatone/go-content-placeholders/plugins/text"
	"github.com/goliatone/go-content-placeholders/rendering"
)

// QuoteItem is the payload of the quote plugin used by the integration tests.
type QuoteItem struct {
	Text string `msgpack:"text"`
}

type quotePlugin struct {
	plugin.Base
	renders atomic.Int64
}

func quoteBase() plugin.Base {
	return plugin.Base{
		PluginName:   "quote",
		ContentModel: content.Model{Name: "QuoteItem", TypeID: 50, New: func() any { return &QuoteItem{} }},
		Search:       plugin.SearchPolicy{Fields: []string{"text"}},
	}
}

func (q *quotePlugin) Render(_ context.Context, inst *content.Instance) (plugin.Result, error) {
	q.renders.Add(1)
	return plugin.HTML("<blockquote>" + html.EscapeString(inst.Data.(*QuoteItem).Text) + "</blockquote>"), nil
}

var page = content.ParentRef{TypeID: 5, ID: 1}

func setupPlaceholder(t *testing.T, c *Container) *content.Placeholder {
	t.Helper()
	ph, err := c.Repository().CreatePlaceholder(context.Background(), page, "main", content.RoleMain, "Main")
	if err != nil {
		t.Fatalf("CreatePlaceholder() failed: %v", err)
	}
	return ph
}

func addText(t *testing.T, c *Container, ph *content.Placeholder, sort int, body string) content.Item {
	t.Helper()
	item, err := c.Repository().CreateItem(context.Background(), ph, content.Item{TypeID: text.TypeID, SortOrder: sort}, &text.Item{Text: body})
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	return item
}

func render(t *testing.T, c *Container, ph *content.Placeholder, opts ...rendering.RenderOption) string {
	t.Helper()
	out, err := c.Engine().RenderPlaceholder(context.Background(), ph, opts...)
	if err != nil {
		t.Fatalf("RenderPlaceholder() failed: %v", err)
	}
	return out.HTML
}

func TestIntegration_InvalidateOnSave(t *testing.T) {
	c := newTestContainer(t, nil)
	ph := setupPlaceholder(t, c)
	item := addText(t, c, ph, 1, "<p>One</p>")

	if got, want := render(t, c, ph), "<div class=\"text\"><p>One</p></div>\n"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	key, _ := cache.ItemKey("main", text.ModelName, item.ID)
	if _, ok := c.Backend().Get(context.Background(), key); !ok {
		t.Fatalf("expected item output cached under %s", key)
	}

	if _, err := c.Repository().SaveItem(context.Background(), item, &text.Item{Text: "<p>Two</p>"}); err != nil {
		t.Fatalf("SaveItem() failed: %v", err)
	}
	if _, ok := c.Backend().Get(context.Background(), key); ok {
		t.Fatal("expected item output to be invalidated on save")
	}
	if got, want := render(t, c, ph), "<div class=\"text\"><p>Two</p></div>\n"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestIntegration_PlaceholderCacheInvalidation(t *testing.T) {
	c := newTestContainer(t, map[string]any{"rendering.cache_placeholder_output": true})
	ph := setupPlaceholder(t, c)
	addText(t, c, ph, 1, "a")

	if got := render(t, c, ph, rendering.WithParentLanguage("en")); got != "<div class=\"text\">a</div>\n" {
		t.Fatalf("unexpected output %q", got)
	}
	key := cache.PlaceholderKeyFor(ph, "en")
	if _, ok := c.Backend().Get(context.Background(), key); !ok {
		t.Fatalf("expected merged output cached under %s", key)
	}
	if _, ok := c.Engine().CachedPlaceholderOutput(context.Background(), page, "main", "en"); !ok {
		t.Fatal("expected CachedPlaceholderOutput hit")
	}

	addText(t, c, ph, 2, "b")
	if _, ok := c.Backend().Get(context.Background(), key); ok {
		t.Fatal("expected merged output to be invalidated by a new item")
	}
	want := "<div class=\"text\">a</div>\n<div class=\"text\">b</div>\n"
	if got := render(t, c, ph, rendering.WithParentLanguage("en")); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestIntegration_DeletePlaceholder(t *testing.T) {
	c := newTestContainer(t, map[string]any{"rendering.cache_placeholder_output": true})
	ph := setupPlaceholder(t, c)
	item := addText(t, c, ph, 1, "a")
	render(t, c, ph)

	if _, err := c.Repository().PlaceholderBySlot(context.Background(), page, "main"); err != nil {
		t.Fatalf("PlaceholderBySlot() failed: %v", err)
	}
	if err := c.Repository().DeletePlaceholder(context.Background(), ph.ID); err != nil {
		t.Fatalf("DeletePlaceholder() failed: %v", err)
	}

	if _, err := c.Repository().PlaceholderBySlot(context.Background(), page, "main"); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, ok := c.Backend().Get(context.Background(), cache.PlaceholderKeyFor(ph, "")); ok {
		t.Error("expected merged output of the deleted placeholder to be removed")
	}

	items, err := c.Repository().Items(context.Background(), []int64{item.ID})
	if err != nil {
		t.Fatalf("Items() failed: %v", err)
	}
	if len(items) != 1 || !items[0].Orphaned() {
		t.Errorf("expected the item to survive orphaned, got %+v", items)
	}
}

func TestIntegration_MergeTemplate(t *testing.T) {
	templates := fstest.MapFS{
		"list.html": {Data: []byte(`<ul>{{range .ContentItems}}<li>{{.HTML}}</li>{{end}}</ul>`)},
	}
	c := newTestContainer(t, nil, WithTemplatesFS(templates))
	ph := setupPlaceholder(t, c)
	addText(t, c, ph, 1, "a")

	out, err := c.Engine().RenderPlaceholder(context.Background(), ph, rendering.WithTemplate("list.html"))
	if err != nil {
		t.Fatalf("RenderPlaceholder() failed: %v", err)
	}
	if want := "<ul><li><div class=\"text\">a</div>\n</li></ul>"; out.HTML != want {
		t.Errorf("expected %q, got %q", want, out.HTML)
	}
	if out.Cacheable {
		t.Error("expected templated output to be uncachable by default")
	}
}

func TestIntegration_SearchText(t *testing.T) {
	quote := &quotePlugin{Base: quoteBase()}
	c := newTestContainer(t, nil, WithPlugins(func(r plugin.Registrar) error { return r.Register(quote) }))
	ph := setupPlaceholder(t, c)
	addText(t, c, ph, 1, "<p>Hello <strong>world</strong></p>")
	if _, err := c.Repository().CreateItem(context.Background(), ph, content.Item{TypeID: 50, SortOrder: 2}, &QuoteItem{Text: "Quoted"}); err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}

	got, err := c.Engine().RenderPlaceholderSearchText(context.Background(), ph)
	if err != nil {
		t.Fatalf("RenderPlaceholderSearchText() failed: %v", err)
	}
	if want := "Hello world Quoted"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if quote.renders.Load() != 0 {
		t.Error("expected field-indexed plugin not to render")
	}
}

func TestIntegration_ConcurrentRenders(t *testing.T) {
	quote := &quotePlugin{Base: quoteBase()}
	c := newTestContainer(t, nil, WithPlugins(func(r plugin.Registrar) error { return r.Register(quote) }))
	ph := setupPlaceholder(t, c)
	for i := 0; i < 5; i++ {
		if _, err := c.Repository().CreateItem(context.Background(), ph, content.Item{TypeID: 50, SortOrder: i}, &QuoteItem{Text: fmt.Sprint(i)}); err != nil {
			t.Fatalf("CreateItem() failed: %v", err)
		}
	}
	want := render(t, c, ph)
	rendersAfterWarmup := quote.renders.Load()

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Engine().RenderPlaceholder(context.Background(), ph)
			if err != nil {
				errs <- err
				return
			}
			if out.HTML != want {
				errs <- fmt.Errorf("expected %q, got %q", want, out.HTML)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if got := quote.renders.Load(); got != rendersAfterWarmup {
		t.Errorf("expected cached renders only, plugin ran %d more times", got-rendersAfterWarmup)
	}
}

func BenchmarkRenderPlaceholder_Cached(b *testing.B) {
	c, err := NewContainerWithDefaults(context.Background(), WithLogOutput(nopWriter{}))
	if err != nil {
		b.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	ph, err := c.Repository().CreatePlaceholder(ctx, page, "main", content.RoleMain, "")
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := c.Repository().CreateItem(ctx, ph, content.Item{TypeID: text.TypeID, SortOrder: i}, &text.Item{Text: fmt.Sprintf("<p>%d</p>", i)}); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Engine().RenderPlaceholder(ctx, ph); err != nil {
			b.Fatal(err)
		}
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
