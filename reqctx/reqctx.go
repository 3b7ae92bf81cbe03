// Package reqctx carries request-scoped rendering state in a context.Context:
// the active language, the edit mode flag, the frontend media accumulator,
// the request id and the originating *http.Request.
package reqctx

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-content-placeholders/content"
)

type (
	languageKey    struct{}
	editModeKey    struct{}
	mediaKey       struct{}
	requestIDKey   struct{}
	httpRequestKey struct{}
)

// WithLanguage sets the active language for the request.
func WithLanguage(ctx context.Context, language string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, languageKey{}, language)
}

// Language returns the active language, or "" when none was set.
func Language(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	lang, _ := ctx.Value(languageKey{}).(string)
	return lang
}

// LanguageOr returns the active language, or fallback when none was set.
func LanguageOr(ctx context.Context, fallback string) string {
	if lang := Language(ctx); lang != "" {
		return lang
	}
	return fallback
}

// WithEditMode enables or disables frontend edit mode. In edit mode output
// is wrapped with editor markers and never cached.
func WithEditMode(ctx context.Context, enabled bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, editModeKey{}, enabled)
}

// IsEditMode reports whether edit mode is active.
func IsEditMode(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	on, _ := ctx.Value(editModeKey{}).(bool)
	return on
}

// MediaAccumulator collects the frontend media of everything rendered in
// one request. It is append-only.
type MediaAccumulator struct {
	mu    sync.Mutex
	media content.Media
}

// Add merges media, skipping assets already present.
func (a *MediaAccumulator) Add(media content.Media) {
	if a == nil || media.Empty() {
		return
	}
	a.mu.Lock()
	a.media.Merge(media)
	a.mu.Unlock()
}

// Media returns a copy of the collected media.
func (a *MediaAccumulator) Media() content.Media {
	if a == nil {
		return content.Media{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.media.Clone()
}

// WithFrontendMedia installs a fresh accumulator owned by the request.
func WithFrontendMedia(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, mediaKey{}, &MediaAccumulator{})
}

// FrontendMedia returns the accumulator of the request, or nil.
func FrontendMedia(ctx context.Context) *MediaAccumulator {
	if ctx == nil {
		return nil
	}
	acc, _ := ctx.Value(mediaKey{}).(*MediaAccumulator)
	return acc
}

// WithRequestID tags the context with id, generating one when empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithHTTPRequest stores the originating request for plugins needing it.
func WithHTTPRequest(ctx context.Context, r *http.Request) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, httpRequestKey{}, r)
}

// HTTPRequest returns the originating request, or nil.
func HTTPRequest(ctx context.Context) *http.Request {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(httpRequestKey{}).(*http.Request)
	return r
}
