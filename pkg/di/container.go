package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/internal/observability"
	"github.com/goliatone/go-content-placeholders/internal/persistence"
	"github.com/goliatone/go-content-placeholders/pkg/config"
	"github.com/goliatone/go-content-placeholders/plugin"
	"github.com/goliatone/go-content-placeholders/plugins/builtin"
	"github.com/goliatone/go-content-placeholders/rendering"
	"github.com/goliatone/go-content-placeholders/storecache"
)

// Container wires the long-lived services of the placeholder engine. Every
// service is a singleton created by NewContainer and released by Close.
type Container struct {
	settings *config.Settings
	logger   *slog.Logger
	gatherer *prometheus.Registry
	metrics  *observability.Metrics
	backend  cache.Backend
	plugins  *plugin.Registry
	db       *bun.DB
	store    *persistence.Store
	cached   *storecache.Store
	engine   *rendering.Engine
}

type options struct {
	logOutput   io.Writer
	discovery   []plugin.DiscoveryFunc
	noBuiltins  bool
	templatesFS fs.FS
}

// Option customizes NewContainer.
type Option func(*options)

// WithLogOutput sets the writer of the logger. The default is stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// WithPlugins adds discovery hooks run next to the bundled plugins.
func WithPlugins(fns ...plugin.DiscoveryFunc) Option {
	return func(o *options) {
		o.discovery = append(o.discovery, fns...)
	}
}

// WithoutBuiltinPlugins skips registering the bundled plugins.
func WithoutBuiltinPlugins() Option {
	return func(o *options) {
		o.noBuiltins = true
	}
}

// WithTemplatesFS reads merge and plugin templates from fsys instead of the
// configured templates directory.
func WithTemplatesFS(fsys fs.FS) Option {
	return func(o *options) {
		o.templatesFS = fsys
	}
}

// NewContainer creates every service from settings. The database schema is
// migrated when settings.Database.Migrate is set.
func NewContainer(ctx context.Context, settings *config.Settings, opts ...Option) (*Container, error) {
	if settings == nil {
		return nil, errors.New("di: nil settings")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{settings: settings}
	c.logger = observability.NewLogger(observability.LogConfig{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		Output: o.logOutput,
	})

	c.gatherer = prometheus.NewRegistry()
	c.gatherer.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics("placeholders", c.gatherer)
	if err != nil {
		return nil, err
	}
	c.metrics = metrics

	backend, err := cache.NewBackend(settings.CacheBackendConfig())
	if err != nil {
		return nil, fmt.Errorf("cache backend: %w", err)
	}
	c.backend = backend

	discovery := o.discovery
	if !o.noBuiltins {
		discovery = append([]plugin.DiscoveryFunc{builtin.Discover}, discovery...)
	}
	c.plugins = plugin.NewRegistry(
		plugin.WithDiscovery(discovery...),
		plugin.WithSlotConfig(settings.Placeholders),
	)
	if err := c.plugins.Freeze(); err != nil {
		return nil, fmt.Errorf("plugin discovery: %w", err)
	}

	db, err := persistence.Open(settings.PersistenceConfig())
	if err != nil {
		return nil, err
	}
	c.db = db
	c.store = persistence.NewStore(db, c.plugins,
		persistence.WithDefaultLanguage(settings.Rendering.DefaultLanguage),
		persistence.WithLogger(c.logger),
	)
	if settings.Database.Migrate {
		if err := c.store.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	c.cached = storecache.New(c.store, backend, storecache.WithTTL(settings.Cache.PlaceholderTTL))

	engineOpts := []rendering.EngineOption{
		rendering.WithBackend(backend),
		rendering.WithSettings(settings.RenderingSettings()),
		rendering.WithLogger(c.logger),
		rendering.WithObserver(metrics),
	}
	templates := o.templatesFS
	if templates == nil && settings.Rendering.TemplatesDir != "" {
		templates = os.DirFS(settings.Rendering.TemplatesDir)
	}
	if templates != nil {
		engineOpts = append(engineOpts, rendering.WithTemplates(rendering.NewFSTemplates(templates, settings.Rendering.TemplateReload)))
	}
	c.engine = rendering.NewEngine(c.plugins, c.cached, engineOpts...)

	c.store.OnChange(c.invalidate)
	return c, nil
}

// NewContainerWithDefaults creates a container on the default settings with
// a private in-memory database.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	v, err := config.New("")
	if err != nil {
		return nil, err
	}
	v.Set("database.dsn", ":memory:")
	v.Set("database.max_open_conns", 1)
	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, settings, opts...)
}

// invalidate drops cached output affected by a committed write.
func (c *Container) invalidate(ctx context.Context, event persistence.ChangeEvent) error {
	switch event.Kind {
	case persistence.ItemSaved, persistence.ItemDeleted:
		return c.engine.InvalidateItem(ctx, event.Item)
	case persistence.PlaceholderDeleted:
		if event.Placeholder == nil {
			return nil
		}
		languages := append([]string{""}, c.settings.Rendering.Languages...)
		return c.engine.InvalidatePlaceholder(ctx, event.Placeholder, languages...)
	}
	return nil
}

func (c *Container) Settings() *config.Settings {
	return c.settings
}

func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Gatherer returns the prometheus registry holding the engine metrics.
func (c *Container) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

func (c *Container) Metrics() *observability.Metrics {
	return c.metrics
}

func (c *Container) Backend() cache.Backend {
	return c.backend
}

func (c *Container) Plugins() *plugin.Registry {
	return c.plugins
}

// Store returns the database store, for maintenance queries.
func (c *Container) Store() *persistence.Store {
	return c.store
}

// Repository returns the store used for rendering and content edits. Its
// placeholder lookups are cached.
func (c *Container) Repository() content.Repository {
	return c.cached
}

func (c *Container) Engine() *rendering.Engine {
	return c.engine
}

// Close releases the database.
func (c *Container) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
