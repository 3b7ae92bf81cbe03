package plugin

import (
	"context"
	"time"

	"github.com/goliatone/go-content-placeholders/content"
)

// Plugin renders one content item type. A single value is registered per
// plugin and shared by every render, so implementations must be safe for
// concurrent use.
type Plugin interface {
	// Name is the unique registry name. It is lower-cased on registration.
	Name() string
	// Model declares the content item type owned by the plugin.
	Model() content.Model
	// CachePolicy declares how rendered output may be cached.
	CachePolicy() CachePolicy
	// Render produces the output for one concrete item. A returned error
	// marks the item as failed without aborting the placeholder.
	Render(ctx context.Context, item *content.Instance) (Result, error)
}

// CachePolicy is the cache scope declared by a plugin.
type CachePolicy struct {
	// Disabled turns off output caching for dynamic plugins.
	Disabled bool
	// PerSite stores output per site id. Placeholders containing such items
	// are never cached as a whole.
	PerSite bool
	// PerLanguage stores output per active request language.
	PerLanguage bool
	// IgnoreItemLanguage renders in the request language instead of the
	// item language.
	IgnoreItemLanguage bool
	// Timeout overrides the backend default when non-zero.
	Timeout time.Duration
	// SupportedLanguages lists the language codes cached separately. Nil
	// uses the languages configured for the engine.
	SupportedLanguages []string
}

// CacheOutput reports whether rendered output may be cached at all.
func (c CachePolicy) CacheOutput() bool {
	return !c.Disabled
}

// Languages returns SupportedLanguages, or defaults when none are declared.
func (c CachePolicy) Languages(defaults []string) []string {
	if c.SupportedLanguages != nil {
		return c.SupportedLanguages
	}
	return defaults
}

// SearchPolicy declares what a plugin contributes to search indexing.
type SearchPolicy struct {
	// Output indexes the full rendered output, stripped of markup.
	Output bool
	// Fields names payload fields whose text is indexed.
	Fields []string
}

// Indexed reports whether the plugin contributes anything to search text.
func (s SearchPolicy) Indexed() bool {
	return s.Output || len(s.Fields) > 0
}

// Searchable is implemented by plugins taking part in search indexing.
type Searchable interface {
	SearchPolicy() SearchPolicy
}

// MediaProvider is implemented by plugins declaring static frontend assets.
// The assets are placed ahead of any media the render call returns.
type MediaProvider interface {
	FrontendMedia(item *content.Instance) content.Media
}

// TemplateProvider is implemented by plugins rendering through a template
// file. In debug mode cached output is discarded when the file changes.
type TemplateProvider interface {
	RenderTemplate(item *content.Instance) string
}

// Base carries the declarative parts of a plugin. Embed it and implement
// Render.
//
//	type Quote struct{ plugin.Base }
//
//	func (Quote) Render(ctx context.Context, item *content.Instance) (plugin.Result, error) {
//		q := item.Data.(*QuoteItem)
//		return plugin.HTML("<blockquote>" + html.EscapeString(q.Text) + "</blockquote>"), nil
//	}
type Base struct {
	PluginName   string
	ContentModel content.Model
	Cache        CachePolicy
	Search       SearchPolicy
	Media        content.Media
	Template     string
}

func (b Base) Name() string {
	return b.PluginName
}

func (b Base) Model() content.Model {
	return b.ContentModel
}

func (b Base) CachePolicy() CachePolicy {
	return b.Cache
}

func (b Base) SearchPolicy() SearchPolicy {
	return b.Search
}

func (b Base) FrontendMedia(*content.Instance) content.Media {
	return b.Media
}

func (b Base) RenderTemplate(*content.Instance) string {
	return b.Template
}

// SearchPolicyOf returns the search policy of p, the zero policy when p does
// not implement Searchable.
func SearchPolicyOf(p Plugin) SearchPolicy {
	if s, ok := p.(Searchable); ok {
		return s.SearchPolicy()
	}
	return SearchPolicy{}
}

// FrontendMediaOf returns the static media of p for item.
func FrontendMediaOf(p Plugin, item *content.Instance) content.Media {
	if m, ok := p.(MediaProvider); ok {
		return m.FrontendMedia(item)
	}
	return content.Media{}
}

// TemplateOf returns the render template path of p for item, if any.
func TemplateOf(p Plugin, item *content.Instance) string {
	if t, ok := p.(TemplateProvider); ok {
		return t.RenderTemplate(item)
	}
	return ""
}
