package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/goliatone/go-content-placeholders/reqctx"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// requestContext tags the request context with its id and the originating
// request.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := reqctx.WithRequestID(c.Request.Context(), c.GetHeader(RequestIDHeader))
		ctx = reqctx.WithHTTPRequest(ctx, c.Request)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, reqctx.RequestID(ctx))
		c.Next()
	}
}

// activeLanguage sets the request language from the lang query parameter,
// else from Accept-Language matched against the configured languages.
func activeLanguage(languages []string, fallback string) gin.HandlerFunc {
	tags := make([]language.Tag, 0, len(languages)+1)
	codes := make([]string, 0, len(languages)+1)
	for _, code := range append([]string{fallback}, languages...) {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		codes = append(codes, code)
	}
	matcher := language.NewMatcher(tags)

	return func(c *gin.Context) {
		lang := c.Query("lang")
		if lang == "" && len(codes) > 0 {
			if accept := c.GetHeader("Accept-Language"); accept != "" {
				if parsed, _, err := language.ParseAcceptLanguage(accept); err == nil && len(parsed) > 0 {
					_, idx, conf := matcher.Match(parsed...)
					if conf != language.No {
						lang = codes[idx]
					}
				}
			}
		}
		if lang != "" {
			c.Request = c.Request.WithContext(reqctx.WithLanguage(c.Request.Context(), lang))
		}
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"request_id", reqctx.RequestID(c.Request.Context()),
		)
	}
}
