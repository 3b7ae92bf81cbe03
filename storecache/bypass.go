package storecache

import "context"

type bypassKey struct{}

// WithBypass makes lookups on ctx skip the cache, for callers that must see
// their own writes.
func WithBypass(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bypassKey{}, true)
}

func bypassed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	on, _ := ctx.Value(bypassKey{}).(bool)
	return on
}
