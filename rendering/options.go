package rendering

import "github.com/goliatone/go-content-placeholders/content"

// RenderOption tunes one render call.
type RenderOption func(*renderConfig)

type renderConfig struct {
	template string
	cachable *bool

	parent              content.ParentRef
	parentLanguage      string
	limitParentLanguage bool

	fallback           string
	useDefaultFallback bool
}

func newRenderConfig(opts []RenderOption) renderConfig {
	cfg := renderConfig{limitParentLanguage: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// mergeCachable applies the default of caching only template-less merges.
func (c renderConfig) mergeCachable() bool {
	if c.cachable != nil {
		return *c.cachable
	}
	return c.template == ""
}

// WithTemplate merges item output through the named template, which receives
// a MergeData value. Such output is not cached unless WithCachable(true) is
// also given.
func WithTemplate(name string) RenderOption {
	return func(c *renderConfig) {
		c.template = name
	}
}

// WithCachable overrides whether the merged output may be cached.
func WithCachable(cachable bool) RenderOption {
	return func(c *renderConfig) {
		c.cachable = &cachable
	}
}

// WithParent restricts placeholder items to those owned by parent.
func WithParent(parent content.ParentRef) RenderOption {
	return func(c *renderConfig) {
		c.parent = parent
	}
}

// WithParentLanguage sets the language of the parent object. Items in other
// languages are left out and the placeholder cache is keyed by it.
func WithParentLanguage(language string) RenderOption {
	return func(c *renderConfig) {
		c.parentLanguage = language
	}
}

// WithoutParentLanguageLimit keeps items in every language.
func WithoutParentLanguageLimit() RenderOption {
	return func(c *renderConfig) {
		c.limitParentLanguage = false
	}
}

// WithFallbackLanguage renders the items of language when the placeholder
// has none in the parent language.
func WithFallbackLanguage(language string) RenderOption {
	return func(c *renderConfig) {
		c.fallback = language
	}
}

// WithDefaultFallback falls back to the engine default language.
func WithDefaultFallback() RenderOption {
	return func(c *renderConfig) {
		c.useDefaultFallback = true
	}
}
