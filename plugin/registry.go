package plugin

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-content-placeholders/content"
)

var (
	pluginNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	modelNamePattern  = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Registrar accepts plugin registrations. Discovery hooks receive one.
type Registrar interface {
	Register(p Plugin) error
}

// DiscoveryFunc registers the plugins of one package. Hooks run once, on the
// first lookup, while the registry lock is held. A hook must register only
// through the Registrar it is given: calling a lookup or Register on the
// Registry itself from inside a hook deadlocks.
type DiscoveryFunc func(r Registrar) error

// Option configures a Registry.
type Option func(*Registry)

// WithDiscovery adds discovery hooks.
func WithDiscovery(fns ...DiscoveryFunc) Option {
	return func(r *Registry) {
		r.discovery = append(r.discovery, fns...)
	}
}

// WithSlotConfig restricts the plugins allowed per placeholder slot.
func WithSlotConfig(slots map[string][]string) Option {
	return func(r *Registry) {
		r.slots = make(map[string][]string, len(slots))
		for slot, names := range slots {
			r.slots[slot] = append([]string(nil), names...)
		}
	}
}

// Registry maps plugin names, model names and content type ids to the
// registered plugin values.
//
// The lifecycle is explicit: construct, register (directly or through
// discovery hooks), then optionally Freeze. Lookups are safe for concurrent
// use and trigger discovery exactly once.
type Registry struct {
	mu        sync.Mutex
	loaded    atomic.Bool
	loadErr   error
	frozen    atomic.Bool
	discovery []DiscoveryFunc
	slots     map[string][]string

	plugins *xsync.MapOf[string, Plugin]
	models  *xsync.MapOf[string, string]
	typeIDs *xsync.MapOf[int64, string]

	// typeIndex is built on first PluginByTypeID and replaced, never
	// mutated, when the registry changes.
	typeIndex atomic.Pointer[map[int64]Plugin]
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		plugins: xsync.NewMapOf[string, Plugin](),
		models:  xsync.NewMapOf[string, string](),
		typeIDs: xsync.NewMapOf[int64, string](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds p to the registry.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(p)
}

// MustRegister is Register that panics on error, for static setup code.
func (r *Registry) MustRegister(plugins ...Plugin) {
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

// register requires r.mu.
func (r *Registry) register(p Plugin) error {
	if r.frozen.Load() {
		return ErrRegistryFrozen
	}
	if p == nil {
		return &ConfigError{Field: "plugin", Message: "cannot be nil"}
	}
	name := strings.ToLower(p.Name())
	model := p.Model()
	if err := validateDeclaration(name, model); err != nil {
		return err
	}
	if model.New() == nil {
		return &ConfigError{Plugin: name, Field: "Model.New", Message: "must return a value"}
	}

	if _, exists := r.plugins.Load(name); exists {
		return &AlreadyRegisteredError{Name: name}
	}
	if existing, exists := r.models.Load(model.Name); exists {
		return &ModelAlreadyRegisteredError{Model: model.Name, Existing: existing, Plugin: name}
	}
	if existing, exists := r.typeIDs.Load(model.TypeID); exists {
		return &ConfigError{
			Plugin:  name,
			Field:   "Model.TypeID",
			Message: fmt.Sprintf("content type #%d is already used by plugin %q", model.TypeID, existing),
		}
	}

	r.plugins.Store(name, p)
	r.models.Store(model.Name, name)
	r.typeIDs.Store(model.TypeID, name)
	r.typeIndex.Store(nil)
	return nil
}

type declaration struct {
	Name   string
	Model  string
	TypeID int64
	HasNew bool
}

func validateDeclaration(name string, model content.Model) error {
	d := declaration{Name: name, Model: model.Name, TypeID: model.TypeID, HasNew: model.New != nil}
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Match(pluginNamePattern)),
		validation.Field(&d.Model, validation.Required, validation.Match(modelNamePattern)),
		validation.Field(&d.TypeID, validation.Required),
		validation.Field(&d.HasNew, validation.Required.Error("model constructor is required")),
	)
	if err != nil {
		return &ConfigError{Plugin: name, Field: "declaration", Message: err.Error()}
	}
	return nil
}

type unlockedRegistrar struct {
	r *Registry
}

func (u unlockedRegistrar) Register(p Plugin) error {
	return u.r.register(p)
}

// EnsureLoaded runs the discovery hooks once. Concurrent first callers block
// until discovery completes; later calls return the first result. It must not
// be reached from inside a DiscoveryFunc.
func (r *Registry) EnsureLoaded() error {
	if r.loaded.Load() {
		return r.loadErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded.Load() {
		return r.loadErr
	}

	reg := unlockedRegistrar{r: r}
	var errs []error
	for _, fn := range r.discovery {
		if err := fn(reg); err != nil {
			errs = append(errs, err)
		}
	}
	r.loadErr = errors.Join(errs...)
	r.loaded.Store(true)
	return r.loadErr
}

// Freeze loads the registry and rejects later registrations.
func (r *Registry) Freeze() error {
	err := r.EnsureLoaded()
	r.frozen.Store(true)
	return err
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Plugins returns every registered plugin ordered by name.
func (r *Registry) Plugins() ([]Plugin, error) {
	if err := r.EnsureLoaded(); err != nil {
		return nil, err
	}
	names := make([]string, 0, r.plugins.Size())
	r.plugins.Range(func(name string, _ Plugin) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)

	out := make([]Plugin, 0, len(names))
	for _, name := range names {
		if p, ok := r.plugins.Load(name); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// PluginByName resolves a plugin by registry name, case-insensitively.
func (r *Registry) PluginByName(name string) (Plugin, error) {
	if err := r.EnsureLoaded(); err != nil {
		return nil, err
	}
	p, ok := r.plugins.Load(strings.ToLower(name))
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return p, nil
}

// PluginsByName resolves several names, failing on the first unknown one.
func (r *Registry) PluginsByName(names ...string) ([]Plugin, error) {
	out := make([]Plugin, 0, len(names))
	for _, name := range names {
		p, err := r.PluginByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// PluginByModel resolves the plugin owning a model name.
func (r *Registry) PluginByModel(model string) (Plugin, error) {
	if err := r.EnsureLoaded(); err != nil {
		return nil, err
	}
	name, ok := r.models.Load(model)
	if !ok {
		return nil, &NotFoundError{Model: model}
	}
	p, ok := r.plugins.Load(name)
	if !ok {
		return nil, &NotFoundError{Model: model}
	}
	return p, nil
}

// PluginByTypeID resolves the plugin owning a stored content type id.
func (r *Registry) PluginByTypeID(typeID int64) (Plugin, error) {
	if err := r.EnsureLoaded(); err != nil {
		return nil, err
	}
	index := r.typeIndex.Load()
	if index == nil {
		index = r.buildTypeIndex()
	}
	p, ok := (*index)[typeID]
	if !ok {
		return nil, &NotFoundError{TypeID: typeID}
	}
	return p, nil
}

func (r *Registry) buildTypeIndex() *map[int64]Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index := r.typeIndex.Load(); index != nil {
		return index
	}
	index := make(map[int64]Plugin, r.plugins.Size())
	r.plugins.Range(func(_ string, p Plugin) bool {
		index[p.Model().TypeID] = p
		return true
	})
	r.typeIndex.Store(&index)
	return &index
}

// AllowedPlugins returns the plugins usable in slot. Slots without a
// configuration allow every plugin.
func (r *Registry) AllowedPlugins(slot string) ([]Plugin, error) {
	names, configured := r.slots[slot]
	if !configured {
		return r.Plugins()
	}
	plugins, err := r.PluginsByName(names...)
	if err != nil {
		return nil, fmt.Errorf("placeholder slot %q configuration: %w", slot, err)
	}
	return plugins, nil
}

// Models returns the models of every registered plugin ordered by plugin name.
func (r *Registry) Models() ([]content.Model, error) {
	plugins, err := r.Plugins()
	if err != nil {
		return nil, err
	}
	out := make([]content.Model, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, p.Model())
	}
	return out, nil
}

// TypeIDs returns the content type ids of every registered plugin.
func (r *Registry) TypeIDs() ([]int64, error) {
	models, err := r.Models()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.TypeID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Decode implements content.Decoder for stored msgpack payloads.
func (r *Registry) Decode(typeID int64, data []byte) (any, error) {
	p, err := r.PluginByTypeID(typeID)
	if err != nil {
		return nil, err
	}
	v := p.Model().New()
	if err := msgpack.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", p.Model().Name, err)
	}
	return v, nil
}

// Encode implements content.Encoder.
func (r *Registry) Encode(data any) ([]byte, error) {
	return msgpack.Marshal(data)
}
