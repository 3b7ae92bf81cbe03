package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/language"

	"github.com/goliatone/go-content-placeholders/cache"
	"github.com/goliatone/go-content-placeholders/internal/persistence"
)

var pluginNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Validate checks every section.
func (s *Settings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Rendering),
		validation.Field(&s.Placeholders, validation.By(validSlotConfig)),
		validation.Field(&s.Cache),
		validation.Field(&s.Database),
		validation.Field(&s.Log),
		validation.Field(&s.Server),
	)
}

func (r RenderingConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SiteID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.SiteIDs, validation.Required, validation.Each(validation.Min(int64(1))), validation.By(containsSite(r.SiteID))),
		validation.Field(&r.DefaultLanguage, validation.Required, validation.By(languageCode)),
		validation.Field(&r.Languages, validation.Each(validation.By(languageCode))),
	)
}

func (c CacheConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(
			string(cache.BackendSturdyc), string(cache.BackendLRU), string(cache.BackendNone),
		)),
		validation.Field(&c.PlaceholderTTL, validation.Min(0)),
	)
	if err != nil {
		return err
	}
	return c.backendConfig().Validate()
}

func (c CacheConfig) backendConfig() cache.Config {
	return cache.Config{
		Backend:            cache.BackendKind(c.Backend),
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(persistence.DriverSQLite, persistence.DriverPostgres)),
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
		validation.Field(&d.MaxIdleConns, validation.Min(0)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
	)
}

func languageCode(value any) error {
	code, _ := value.(string)
	if code == "" {
		return nil
	}
	if _, err := language.Parse(code); err != nil {
		return fmt.Errorf("invalid language code %q", code)
	}
	return nil
}

func containsSite(site int64) validation.RuleFunc {
	return func(value any) error {
		ids, _ := value.([]int64)
		for _, id := range ids {
			if id == site {
				return nil
			}
		}
		return fmt.Errorf("must contain site_id %d", site)
	}
}

func validSlotConfig(value any) error {
	slots, _ := value.(map[string][]string)
	var errs []string
	for slot, names := range slots {
		if len(names) == 0 {
			errs = append(errs, fmt.Sprintf("slot %q allows no plugins", slot))
		}
		for _, name := range names {
			if !pluginNamePattern.MatchString(strings.ToLower(name)) {
				errs = append(errs, fmt.Sprintf("slot %q: invalid plugin name %q", slot, name))
			}
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
