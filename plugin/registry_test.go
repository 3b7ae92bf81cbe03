package plugin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-content-placeholders/content"
)

type noteItem struct {
	Title string `msgpack:"title"`
	Body  string `msgpack:"body"`
	Count int    `msgpack:"count"`
}

type notePlugin struct {
	Base
}

func (notePlugin) Render(_ context.Context, item *content.Instance) (Result, error) {
	return HTML(item.Data.(*noteItem).Body), nil
}

func newNote(name, model string, typeID int64) *notePlugin {
	return &notePlugin{Base: Base{
		PluginName: name,
		ContentModel: content.Model{
			Name:   model,
			TypeID: typeID,
			New:    func() any { return &noteItem{} },
		},
	}}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(newNote("Note", "NoteItem", 7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byName, err := reg.PluginByName("NOTE")
	if err != nil {
		t.Fatalf("expected lookup by name to succeed, got %v", err)
	}
	byModel, err := reg.PluginByModel("NoteItem")
	if err != nil {
		t.Fatalf("expected lookup by model to succeed, got %v", err)
	}
	byType, err := reg.PluginByTypeID(7)
	if err != nil {
		t.Fatalf("expected lookup by type id to succeed, got %v", err)
	}
	if byName != byModel || byModel != byType {
		t.Error("expected every lookup to return the same plugin value")
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newNote("note", "NoteItem", 1))

	err := reg.Register(newNote("note", "OtherItem", 2))
	if !errors.Is(err, ErrPluginAlreadyRegistered) {
		t.Fatalf("expected ErrPluginAlreadyRegistered, got %v", err)
	}
}

func TestRegistry_DuplicateModelNamesBothPlugins(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newNote("note", "NoteItem", 1))

	err := reg.Register(newNote("memo", "NoteItem", 1))
	if !errors.Is(err, ErrModelAlreadyRegistered) {
		t.Fatalf("expected ErrModelAlreadyRegistered, got %v", err)
	}
	var modelErr *ModelAlreadyRegisteredError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected *ModelAlreadyRegisteredError, got %T", err)
	}
	if modelErr.Existing != "note" || modelErr.Plugin != "memo" {
		t.Errorf("expected existing=note plugin=memo, got existing=%s plugin=%s", modelErr.Existing, modelErr.Plugin)
	}
	if !strings.Contains(err.Error(), "note") || !strings.Contains(err.Error(), "memo") {
		t.Errorf("expected message to name both plugins, got %q", err.Error())
	}
}

func TestRegistry_DuplicateTypeID(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newNote("note", "NoteItem", 1))

	err := reg.Register(newNote("memo", "MemoItem", 1))
	if !errors.Is(err, ErrInvalidPlugin) {
		t.Fatalf("expected ErrInvalidPlugin, got %v", err)
	}
}

func TestRegistry_InvalidDeclarations(t *testing.T) {
	tests := []struct {
		name   string
		plugin Plugin
	}{
		{name: "nil plugin", plugin: nil},
		{name: "empty name", plugin: newNote("", "NoteItem", 1)},
		{name: "name with dots", plugin: newNote("my.note", "NoteItem", 1)},
		{name: "empty model", plugin: newNote("note", "", 1)},
		{name: "zero type id", plugin: newNote("note", "NoteItem", 0)},
		{name: "no constructor", plugin: &notePlugin{Base: Base{
			PluginName:   "note",
			ContentModel: content.Model{Name: "NoteItem", TypeID: 1},
		}}},
		{name: "constructor returns nil", plugin: &notePlugin{Base: Base{
			PluginName:   "note",
			ContentModel: content.Model{Name: "NoteItem", TypeID: 1, New: func() any { return nil }},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.plugin)
			if !errors.Is(err, ErrInvalidPlugin) {
				t.Errorf("expected ErrInvalidPlugin, got %v", err)
			}
		})
	}
}

func TestRegistry_NotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.PluginByTypeID(99)
	if !errors.Is(err, ErrPluginNotFound) {
		t.Fatalf("expected ErrPluginNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "#99") {
		t.Errorf("expected message to name the content type, got %q", err.Error())
	}
	if _, err := reg.PluginByName("missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound by name, got %v", err)
	}
	if _, err := reg.PluginByModel("Missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound by model, got %v", err)
	}
}

func TestRegistry_DiscoveryRunsOnceUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(WithDiscovery(func(r Registrar) error {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return r.Register(newNote("note", "NoteItem", 1))
	}))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plugins, err := reg.Plugins()
			if err == nil && len(plugins) != 1 {
				err = errors.New("discovery not complete when lookup returned")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected discovery to run once, ran %d times", got)
	}
}

func TestRegistry_DiscoveryRegistersThroughRegistrar(t *testing.T) {
	reg := NewRegistry(WithDiscovery(func(r Registrar) error {
		if _, ok := r.(*Registry); ok {
			return errors.New("hook was handed the locked registry")
		}
		if err := r.Register(newNote("note", "NoteItem", 1)); err != nil {
			return err
		}
		return r.Register(newNote("memo", "MemoItem", 2))
	}))

	plugins, err := reg.Plugins()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if _, err := reg.PluginByTypeID(2); err != nil {
		t.Errorf("expected discovered plugin to resolve, got %v", err)
	}
}

func TestRegistry_DiscoveryErrorIsSticky(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry(WithDiscovery(func(Registrar) error { return boom }))

	if _, err := reg.Plugins(); !errors.Is(err, boom) {
		t.Fatalf("expected discovery error, got %v", err)
	}
	if err := reg.EnsureLoaded(); !errors.Is(err, boom) {
		t.Errorf("expected discovery error on later calls, got %v", err)
	}
}

func TestRegistry_Freeze(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newNote("note", "NoteItem", 1))
	if err := reg.Freeze(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := reg.Register(newNote("memo", "MemoItem", 2))
	if !errors.Is(err, ErrRegistryFrozen) {
		t.Errorf("expected ErrRegistryFrozen, got %v", err)
	}
}

func TestRegistry_TypeIndexRebuiltAfterRegister(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newNote("note", "NoteItem", 1))
	if _, err := reg.PluginByTypeID(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg.MustRegister(newNote("memo", "MemoItem", 2))
	if _, err := reg.PluginByTypeID(2); err != nil {
		t.Errorf("expected new plugin in type index, got %v", err)
	}
}

func TestRegistry_AllowedPlugins(t *testing.T) {
	reg := NewRegistry(WithSlotConfig(map[string][]string{
		"sidebar": {"note"},
		"broken":  {"note", "unknown"},
	}))
	reg.MustRegister(newNote("note", "NoteItem", 1), newNote("memo", "MemoItem", 2))

	all, err := reg.AllowedPlugins("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected unconfigured slot to allow 2 plugins, got %d", len(all))
	}

	sidebar, err := reg.AllowedPlugins("sidebar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sidebar) != 1 || sidebar[0].Name() != "note" {
		t.Errorf("expected only note in sidebar, got %v", sidebar)
	}

	_, err = reg.AllowedPlugins("broken")
	if !errors.Is(err, ErrPluginNotFound) || !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected not found error naming the slot, got %v", err)
	}
}

func TestRegistry_DecodeEncode(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newNote("note", "NoteItem", 3))

	data, err := reg.Encode(&noteItem{Title: "t", Body: "<p>b</p>"})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	v, err := reg.Decode(3, data)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	item, ok := v.(*noteItem)
	if !ok {
		t.Fatalf("expected *noteItem, got %T", v)
	}
	if item.Body != "<p>b</p>" {
		t.Errorf("expected body to round-trip, got %q", item.Body)
	}

	if _, err := reg.Decode(4, data); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound for unknown type, got %v", err)
	}
}

func TestResult_OutputFor(t *testing.T) {
	p := newNote("note", "NoteItem", 1)
	p.Cache = CachePolicy{Timeout: time.Minute}
	p.Media = content.NewMedia([]string{"static.js"})
	inst := &content.Instance{Item: content.Item{ID: 1}, Data: &noteItem{}}

	legacy := HTML("<i>x</i>").OutputFor(p, inst)
	if !legacy.Cacheable || legacy.CacheTimeout != time.Minute {
		t.Errorf("expected plugin defaults on bare html, got cacheable=%v timeout=%v", legacy.Cacheable, legacy.CacheTimeout)
	}
	if len(legacy.Media.JS) != 1 {
		t.Errorf("expected static media, got %v", legacy.Media.JS)
	}

	structured := Output(content.Output{HTML: "y", Media: content.NewMedia([]string{"dyn.js"})}).OutputFor(p, inst)
	if got := strings.Join(structured.Media.JS, ","); got != "static.js,dyn.js" {
		t.Errorf("expected static media first, got %s", got)
	}
	if structured.Cacheable {
		t.Error("expected structured output to keep its own cacheable flag")
	}

	redirect := RedirectTo("/login", 0).OutputFor(p, inst)
	if redirect.Redirect == nil || redirect.Redirect.URL != "/login" || redirect.Cacheable {
		t.Errorf("expected uncachable redirect output, got %+v", redirect)
	}

	p.Cache.Disabled = true
	if HTML("z").OutputFor(p, inst).Cacheable {
		t.Error("expected bare html of a non-caching plugin to be uncachable")
	}
}

type labelled string

func (l labelled) String() string { return "label:" + string(l) }

func TestFieldValues(t *testing.T) {
	type payload struct {
		Title   string   `msgpack:"title"`
		Summary string   `msgpack:"summary,omitempty"`
		Tag     labelled `msgpack:"tag"`
		Count   int
		hidden  string
	}
	data := &payload{Title: "Hello", Summary: "<b>World</b>", Tag: "x", Count: 3, hidden: "secret"}

	got := FieldValues(data, []string{"Title", "summary", "tag", "Count", "hidden", "missing"})
	want := []string{"Hello", "<b>World</b>", "label:x", "", "", ""}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if vals := FieldValues(nil, []string{"Title"}); vals[0] != "" {
		t.Errorf("expected empty value for nil payload, got %q", vals[0])
	}
}
