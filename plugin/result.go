package plugin

import (
	"github.com/goliatone/go-content-placeholders/content"
)

// Kind tells which variant a Result holds.
type Kind int

const (
	// KindOutput carries a structured content.Output.
	KindOutput Kind = iota
	// KindHTML carries a bare HTML string that still needs the plugin defaults.
	KindHTML
	// KindRedirect asks the caller to redirect the client.
	KindRedirect
	// KindSkip contributes nothing to the placeholder.
	KindSkip
)

func (k Kind) String() string {
	switch k {
	case KindOutput:
		return "output"
	case KindHTML:
		return "html"
	case KindRedirect:
		return "redirect"
	case KindSkip:
		return "skip"
	}
	return "unknown"
}

// Result is the outcome of Plugin.Render.
type Result struct {
	kind     Kind
	output   content.Output
	html     string
	redirect content.Redirect
}

// Output returns a result carrying a structured output.
func Output(o content.Output) Result {
	return Result{kind: KindOutput, output: o}
}

// HTML returns a result carrying a bare fragment. Cacheability and timeout
// come from the plugin cache policy.
func HTML(html string) Result {
	return Result{kind: KindHTML, html: html}
}

// RedirectTo returns a redirect request. A zero status means 302.
func RedirectTo(url string, status int) Result {
	return Result{kind: KindRedirect, redirect: content.Redirect{URL: url, Status: status}}
}

// Skip returns a result contributing nothing.
func Skip() Result {
	return Result{kind: KindSkip}
}

// Kind returns the variant of r.
func (r Result) Kind() Kind {
	return r.kind
}

// Redirect returns the redirect request, if r is one.
func (r Result) Redirect() (content.Redirect, bool) {
	return r.redirect, r.kind == KindRedirect
}

// OutputFor turns r into the output stored for item. Static frontend media of
// p is placed ahead of the media returned by the render call. A redirect
// becomes an empty, uncachable output carrying the redirect.
func (r Result) OutputFor(p Plugin, item *content.Instance) content.Output {
	static := FrontendMediaOf(p, item)
	switch r.kind {
	case KindOutput:
		out := r.output
		if !static.Empty() {
			out.Media = out.Media.Prepend(static)
		}
		return out
	case KindHTML:
		policy := p.CachePolicy()
		return content.Output{
			HTML:         r.html,
			Media:        static.Clone(),
			Cacheable:    policy.CacheOutput(),
			CacheTimeout: policy.Timeout,
		}
	case KindRedirect:
		redirect := r.redirect
		return content.Output{Redirect: &redirect}
	}
	return content.Output{}
}
