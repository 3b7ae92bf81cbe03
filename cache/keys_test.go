package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/pkg/testsupport"
)

// keyScenario is one fixture row of testdata/keys.json.
type keyScenario struct {
	Name     string `json:"name"`
	Slot     string `json:"slot"`
	Type     string `json:"type"`
	ID       int64  `json:"id"`
	PerSite  bool   `json:"perSite"`
	PerLang  bool   `json:"perLanguage"`
	Site     int64  `json:"site"`
	Language string `json:"language"`
	Expected string `json:"expectedKey"`
}

func TestItemKey_Fixtures(t *testing.T) {
	var scenarios []keyScenario
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("keys.json"), &scenarios)
	if len(scenarios) == 0 {
		t.Fatal("expected fixture scenarios")
	}

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			base, ok := ItemKey(sc.Slot, sc.Type, sc.ID)
			if !ok {
				t.Fatalf("expected key for saved item %d", sc.ID)
			}
			scope := Scope{PerSite: sc.PerSite, PerLanguage: sc.PerLang, Languages: []string{"en", "nl"}}
			got := OutputKey(base, scope, sc.Site, sc.Language)
			if got != sc.Expected {
				t.Errorf("OutputKey() = %v, want %v", got, sc.Expected)
			}
		})
	}
}

func TestItemKey_UnsavedItem(t *testing.T) {
	if key, ok := ItemKey("main", "TextItem", 0); ok || key != "" {
		t.Errorf("expected no key for unsaved item, got %q", key)
	}
}

func TestItemKey_RoundTripAndSensitivity(t *testing.T) {
	key1, _ := ItemKey("main", "TextItem", 5)
	key2, _ := ItemKey("main", "TextItem", 5)
	if key1 != key2 {
		t.Errorf("expected stable key, got %q and %q", key1, key2)
	}

	variants := []struct {
		slot, typ string
		id        int64
	}{
		{"sidebar", "TextItem", 5},
		{"main", "RawHTMLItem", 5},
		{"main", "TextItem", 6},
	}
	for _, v := range variants {
		other, _ := ItemKey(v.slot, v.typ, v.id)
		if other == key1 {
			t.Errorf("expected %+v to change the key, got %q", v, other)
		}
	}
}

func TestPlaceholderKey(t *testing.T) {
	parent := content.ParentRef{TypeID: 11, ID: 42}

	if got, want := PlaceholderKey(parent, "main", "en"), "placeholder.11.42.main.en"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got, want := PlaceholderKey(parent, "main", ""), "placeholder.11.42.main.None"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got, want := PlaceholderKey(content.ParentRef{}, "footer", "nl"), "placeholder.0.0.footer.nl"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	ph := &content.Placeholder{Slot: "main", Parent: parent}
	if PlaceholderKeyFor(ph, "en") != PlaceholderKey(parent, "main", "en") {
		t.Error("expected PlaceholderKeyFor to match PlaceholderKey")
	}
}

func TestOutputKeys_PlainPlugin(t *testing.T) {
	keys := OutputKeys("contentitem.@main.TextItem.1", Scope{}, []int64{1, 2}, 1, nil)
	if len(keys) != 1 || keys[0] != "contentitem.@main.TextItem.1" {
		t.Errorf("expected only the base key, got %v", keys)
	}
}

func TestOutputKeys_PerSiteAddsCurrentSite(t *testing.T) {
	keys := OutputKeys("k", Scope{PerSite: true}, []int64{1, 2}, 3, nil)
	want := []string{"k-s1", "k-s2", "k-s3"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, keys)
	}
}

func TestOutputKeys_FanOut(t *testing.T) {
	ph := &content.Placeholder{Slot: "main", Parent: content.ParentRef{TypeID: 7, ID: 9}}
	scope := Scope{PerSite: true, PerLanguage: true, Languages: []string{"en", "fr"}}

	keys := OutputKeys("k", scope, []int64{1, 2}, 1, ph)

	// 4 languages (en, fr, unsupported, None): 4 placeholder keys plus 2 sites x 4 languages.
	if len(keys) != 4+2*4 {
		t.Fatalf("expected 12 keys, got %d: %v", len(keys), keys)
	}
	expected := []string{
		"placeholder.7.9.main.en",
		"placeholder.7.9.main.None",
		"k-s1.en",
		"k-s2.fr",
		"k-s1.unsupported",
		"k-s2.None",
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	for _, k := range expected {
		if !set[k] {
			t.Errorf("expected key set to contain %q", k)
		}
	}

	written := OutputKey("k", scope, 2, "de")
	if !set[written] {
		t.Errorf("expected written key %q to be part of the invalidation set", written)
	}
}

func TestOutputKeys_IgnoreItemLanguageWidensKeys(t *testing.T) {
	scope := Scope{IgnoreItemLanguage: true, Languages: []string{"en"}}
	if got := OutputKey("k", scope, 1, "en"); got != "k" {
		t.Errorf("expected stored key without language, got %q", got)
	}
	keys := OutputKeys("k", scope, nil, 1, nil)
	want := "k,k.en,k.unsupported,k.None"
	if strings.Join(keys, ",") != want {
		t.Errorf("expected %s, got %v", want, keys)
	}
}

func TestDebugStatKey(t *testing.T) {
	if got := DebugStatKey("k"); got != "k.debug-stat" {
		t.Errorf("expected k.debug-stat, got %q", got)
	}
}

type mapBackend struct {
	data map[string][]byte
}

func (m *mapBackend) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mapBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mapBackend) DeleteMany(_ context.Context, keys []string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestGetOrFetch(t *testing.T) {
	ctx := context.Background()
	b := &mapBackend{data: map[string][]byte{}}
	calls := 0
	fetch := func(context.Context) (content.Placeholder, error) {
		calls++
		return content.Placeholder{ID: 3, Slot: "main"}, nil
	}

	first, err := GetOrFetch(ctx, b, "ph", 0, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := GetOrFetch(ctx, b, "ph", 0, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}
	if first != second || second.Slot != "main" {
		t.Errorf("expected cached value to match, got %+v and %+v", first, second)
	}

	b.data["broken"] = []byte{0xc1}
	if _, err := GetOrFetch(ctx, b, "broken", 0, fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected undecodable entry to refetch, got %d calls", calls)
	}

	boom := errors.New("boom")
	_, err = GetOrFetch(ctx, b, "failing", 0, func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected fetch error, got %v", err)
	}
	if _, ok := b.data["failing"]; ok {
		t.Error("expected failed fetch not to be cached")
	}
}

func TestConfig_ValidateAndNewBackend(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend != BackendSturdyc {
		t.Errorf("expected default backend sturdyc, got %q", cfg.Backend)
	}
	for _, kind := range []BackendKind{BackendSturdyc, BackendLRU, BackendNone} {
		cfg.Backend = kind
		b, err := NewBackend(cfg)
		if err != nil {
			t.Errorf("expected %s backend, got error %v", kind, err)
			continue
		}
		if b == nil {
			t.Errorf("expected non-nil %s backend", kind)
		}
	}

	cfg.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown backend to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Capacity = 0
	if _, err := NewBackend(cfg); err == nil {
		t.Error("expected invalid capacity to be rejected")
	}
}
