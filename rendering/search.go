package rendering

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
	"github.com/goliatone/go-content-placeholders/reqctx"
)

// NewSearchPipe returns a pipe producing plain text for search indexing.
// It never touches the output cache and ignores edit mode.
func (e *Engine) NewSearchPipe(language string) *Pipe {
	if language == "" {
		language = e.settings.DefaultLanguage
	}
	return &Pipe{engine: e, language: language, search: true}
}

// RenderPlaceholderSearchText returns the indexable text of a placeholder.
// Items are selected like RenderPlaceholder does, fallback language
// included. The render language is taken from the context.
func (e *Engine) RenderPlaceholderSearchText(ctx context.Context, placeholder *content.Placeholder, opts ...RenderOption) (string, error) {
	if placeholder == nil {
		return "", errNilPlaceholder
	}
	pipe := e.NewSearchPipe(reqctx.Language(ctx))

	items, _, err := e.placeholderItems(ctx, placeholder, newRenderConfig(opts))
	if err != nil {
		return "", err
	}
	out, err := pipe.RenderItems(ctx, placeholder, items, opts...)
	if err != nil {
		return "", err
	}
	return out.HTML, nil
}

func (p *Pipe) produceSearch(ctx context.Context, plug plugin.Plugin, inst *content.Instance) (content.Output, Outcome, error) {
	policy := plugin.SearchPolicyOf(plug)
	if !policy.Indexed() {
		return content.Output{}, OutcomeSkipped, nil
	}

	var out content.Output
	if policy.Output {
		rendered, outcome, err := p.produceOutput(ctx, plug, inst)
		if outcome != OutcomeRendered {
			return rendered, outcome, err
		}
		out = rendered
	}
	if len(policy.Fields) > 0 {
		texts := make([]string, 0, len(policy.Fields)+1)
		if out.HTML != "" {
			texts = append(texts, out.HTML)
		}
		for _, value := range plugin.FieldValues(inst.Data, policy.Fields) {
			if text := stripTags(value); text != "" {
				texts = append(texts, text)
			}
		}
		out.HTML = strings.Join(texts, " ")
	}
	out.Cacheable = false
	return out, OutcomeRendered, nil
}

func (p *Pipe) mergeSearch(t *ResultTracker) content.Output {
	texts := make([]string, 0, len(t.ordering))
	for _, entry := range t.Output(false) {
		if entry.State != StateRendered || entry.Output.HTML == "" {
			continue
		}
		texts = append(texts, entry.Output.HTML)
	}
	return content.Output{HTML: strings.Join(texts, " ")}
}

// stripTags returns the text content of an HTML fragment with whitespace
// runs collapsed to single spaces.
func stripTags(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
