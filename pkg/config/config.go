// Package config loads the settings of the placeholder service using viper.
//
// Values come from, in order of precedence, PLACEHOLDERS_ environment
// variables (PLACEHOLDERS_RENDERING_DEBUG, PLACEHOLDERS_CACHE_BACKEND, ...),
// a YAML file and the defaults below.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/internal/persistence"
	"github.com/goliatone/go-content-placeholders/rendering"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLACEHOLDERS"

type Settings struct {
	Rendering RenderingConfig `mapstructure:"rendering"`
	// Placeholders maps a slot name to the plugin names allowed in it.
	Placeholders map[string][]string `mapstructure:"placeholders"`
	Cache        CacheConfig         `mapstructure:"cache"`
	Database     DatabaseConfig      `mapstructure:"database"`
	Log          LogConfig           `mapstructure:"log"`
	Server       ServerConfig        `mapstructure:"server"`
}

type RenderingConfig struct {
	CacheOutput            bool     `mapstructure:"cache_output"`
	CachePlaceholderOutput bool     `mapstructure:"cache_placeholder_output"`
	Debug                  bool     `mapstructure:"debug"`
	SiteID                 int64    `mapstructure:"site_id"`
	SiteIDs                []int64  `mapstructure:"site_ids"`
	DefaultLanguage        string   `mapstructure:"default_language"`
	Languages              []string `mapstructure:"languages"`
	TemplatesDir           string   `mapstructure:"templates_dir"`
	TemplateReload         bool     `mapstructure:"template_reload"`
}

type CacheConfig struct {
	Backend            string        `mapstructure:"backend"`
	Capacity           int           `mapstructure:"capacity"`
	NumShards          int           `mapstructure:"num_shards"`
	TTL                time.Duration `mapstructure:"ttl"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval"`
	// PlaceholderTTL bounds cached placeholder lookups.
	PlaceholderTTL time.Duration `mapstructure:"placeholder_ttl"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	Migrate      bool   `mapstructure:"migrate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SetDefaults registers the default of every key on v. Keys must be known to
// v for environment overrides to apply during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("rendering.cache_output", true)
	v.SetDefault("rendering.cache_placeholder_output", false)
	v.SetDefault("rendering.debug", false)
	v.SetDefault("rendering.site_id", 1)
	v.SetDefault("rendering.site_ids", []int64{1})
	v.SetDefault("rendering.default_language", "en")
	v.SetDefault("rendering.languages", []string{"en"})
	v.SetDefault("rendering.templates_dir", "")
	v.SetDefault("rendering.template_reload", false)

	v.SetDefault("placeholders", map[string][]string{})

	def := cache.DefaultConfig()
	v.SetDefault("cache.backend", string(def.Backend))
	v.SetDefault("cache.capacity", def.Capacity)
	v.SetDefault("cache.num_shards", def.NumShards)
	v.SetDefault("cache.ttl", def.TTL)
	v.SetDefault("cache.eviction_percentage", def.EvictionPercentage)
	v.SetDefault("cache.eviction_interval", def.EvictionInterval)
	v.SetDefault("cache.placeholder_ttl", time.Minute)

	v.SetDefault("database.driver", persistence.DriverSQLite)
	v.SetDefault("database.dsn", "file:placeholders.db?_foreign_keys=1")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.migrate", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

// New returns a viper instance with defaults and environment binding. A
// non-empty file is read as YAML; a missing file is an error.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	if v == nil {
		return nil, errors.New("config: nil viper instance")
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &s, nil
}

// LoadFile is New followed by Load.
func LoadFile(file string) (*Settings, error) {
	v, err := New(file)
	if err != nil {
		return nil, err
	}
	return Load(v)
}

// RenderingSettings converts the rendering section for the engine.
func (s *Settings) RenderingSettings() rendering.Settings {
	r := s.Rendering
	return rendering.Settings{
		CacheOutput:            r.CacheOutput,
		CachePlaceholderOutput: r.CachePlaceholderOutput,
		Debug:                  r.Debug,
		SiteID:                 r.SiteID,
		SiteIDs:                append([]int64(nil), r.SiteIDs...),
		DefaultLanguage:        r.DefaultLanguage,
		Languages:              append([]string(nil), r.Languages...),
	}
}

// CacheBackendConfig converts the cache section for cache.NewBackend.
func (s *Settings) CacheBackendConfig() cache.Config {
	c := s.Cache
	return cache.Config{
		Backend:            cache.BackendKind(c.Backend),
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

// PersistenceConfig converts the database section for persistence.Open.
func (s *Settings) PersistenceConfig() persistence.Config {
	d := s.Database
	return persistence.Config{
		Driver:       d.Driver,
		DSN:          d.DSN,
		MaxOpenConns: d.MaxOpenConns,
		MaxIdleConns: d.MaxIdleConns,
	}
}
