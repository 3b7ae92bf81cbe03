package rendering

import (
	"context"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/reqctx"
)

// RegisterFrontendMedia adds media to the accumulator of the request. It is
// a no-op when the context carries none.
func RegisterFrontendMedia(ctx context.Context, media content.Media) {
	reqctx.FrontendMedia(ctx).Add(media)
}

// FrontendMedia returns everything registered during the request.
func FrontendMedia(ctx context.Context) content.Media {
	return reqctx.FrontendMedia(ctx).Media()
}
