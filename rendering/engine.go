package rendering

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
	"github.com/goliatone/go-content-placeholders/reqctx"
)

// Resolver maps a stored content type id to its plugin.
// *plugin.Registry implements it.
type Resolver interface {
	PluginByTypeID(typeID int64) (plugin.Plugin, error)
}

// Settings are the process-wide rendering switches.
type Settings struct {
	// CacheOutput enables item output caching.
	CacheOutput bool
	// CachePlaceholderOutput additionally caches merged placeholder output.
	// It has no effect without CacheOutput.
	CachePlaceholderOutput bool
	// Debug renders error comments for failed items and discards cached
	// items whose template file changed.
	Debug bool
	// SiteID is the current site, SiteIDs every known site.
	SiteID  int64
	SiteIDs []int64
	// DefaultLanguage is the active language when the request sets none and
	// the target of WithDefaultFallback.
	DefaultLanguage string
	// Languages are the language codes cached separately by per-language
	// plugins that declare none.
	Languages []string
}

// DefaultSettings enables item caching only.
func DefaultSettings() Settings {
	return Settings{
		CacheOutput:     true,
		SiteID:          1,
		SiteIDs:         []int64{1},
		DefaultLanguage: "en",
		Languages:       []string{"en"},
	}
}

// Outcome labels the result of rendering one item.
type Outcome string

const (
	OutcomeRendered Outcome = "rendered"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRedirect Outcome = "redirect"
)

// Observer receives render and cache events.
type Observer interface {
	ItemCacheLookup(plugin string, hit bool)
	PlaceholderCacheLookup(hit bool)
	ItemRendered(plugin string, outcome Outcome, elapsed time.Duration)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ItemCacheLookup(string, bool) {}

func (NopObserver) PlaceholderCacheLookup(bool) {}

func (NopObserver) ItemRendered(string, Outcome, time.Duration) {}

// Engine holds the long-lived collaborators of the rendering pipeline.
// It is safe for concurrent use; per-request state lives in Pipe.
type Engine struct {
	resolver  Resolver
	store     content.Store
	backend   cache.Backend
	settings  Settings
	templates TemplateRenderer
	logger    *slog.Logger
	observer  Observer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBackend sets the output cache backend. The default stores nothing.
func WithBackend(b cache.Backend) EngineOption {
	return func(e *Engine) {
		if b != nil {
			e.backend = b
		}
	}
}

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) EngineOption {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithTemplates sets the renderer used for merge templates and the debug
// template stamp check.
func WithTemplates(t TemplateRenderer) EngineOption {
	return func(e *Engine) {
		e.templates = t
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine creates an engine resolving plugins through resolver and
// loading items from store.
func NewEngine(resolver Resolver, store content.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver: resolver,
		store:    store,
		backend:  cache.NopBackend{},
		settings: DefaultSettings(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the engine settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Backend returns the output cache backend.
func (e *Engine) Backend() cache.Backend {
	return e.backend
}

// Store returns the item store.
func (e *Engine) Store() content.Store {
	return e.store
}

// NewPipe captures the request state of ctx: the active language and the
// edit mode flag.
func (e *Engine) NewPipe(ctx context.Context) *Pipe {
	return &Pipe{
		engine:   e,
		language: reqctx.LanguageOr(ctx, e.settings.DefaultLanguage),
		editMode: reqctx.IsEditMode(ctx),
	}
}

// mayCachePlaceholders reports whether merged placeholder output is cached.
func (e *Engine) mayCachePlaceholders() bool {
	return e.settings.CacheOutput && e.settings.CachePlaceholderOutput
}

func (e *Engine) scopeOf(policy plugin.CachePolicy) cache.Scope {
	return cache.Scope{
		PerSite:            policy.PerSite,
		PerLanguage:        policy.PerLanguage,
		IgnoreItemLanguage: policy.IgnoreItemLanguage,
		Languages:          policy.Languages(e.settings.Languages),
	}
}

// CachedPlaceholderOutput returns the cached merged output of a placeholder
// without loading the placeholder itself.
func (e *Engine) CachedPlaceholderOutput(ctx context.Context, parent content.ParentRef, slot, language string) (content.Output, bool) {
	if !e.mayCachePlaceholders() {
		return content.Output{}, false
	}
	data, ok := e.backend.Get(ctx, cache.PlaceholderKey(parent, slot, language))
	if !ok {
		e.observer.PlaceholderCacheLookup(false)
		return content.Output{}, false
	}
	out, ok := content.DecodeOutput(data)
	e.observer.PlaceholderCacheLookup(ok)
	return out, ok
}
