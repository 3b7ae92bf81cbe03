package content

import (
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// DefaultTimeout asks the cache backend to apply its own default expiry.
const DefaultTimeout time.Duration = 0

// Redirect is a request from a plugin to send the client elsewhere instead of
// rendering the page.
type Redirect struct {
	URL    string
	Status int
}

// StatusOrDefault returns Status, or 302 when unset.
func (r Redirect) StatusOrDefault() int {
	if r.Status == 0 {
		return http.StatusFound
	}
	return r.Status
}

// Output is the rendered result of one item or of a whole placeholder.
type Output struct {
	HTML         string
	Media        Media
	Cacheable    bool
	CacheTimeout time.Duration
	Redirect     *Redirect
}

// NewOutput returns a cacheable output using the backend default timeout.
func NewOutput(html string, media Media) Output {
	return Output{
		HTML:         html,
		Media:        media,
		Cacheable:    true,
		CacheTimeout: DefaultTimeout,
	}
}

// String returns the HTML fragment.
func (o Output) String() string {
	return o.HTML
}

// outputFormat is bumped whenever the cached representation changes.
// Entries written with another format decode as a miss.
const outputFormat = 2

type outputEnvelope struct {
	Format  int    `msgpack:"f"`
	HTML    string `msgpack:"h"`
	Media   Media  `msgpack:"m"`
	Timeout int64  `msgpack:"t"`
}

// EncodeOutput serializes an output for the cache backend.
// Redirects are never cached and are dropped.
func EncodeOutput(o Output) ([]byte, error) {
	return msgpack.Marshal(&outputEnvelope{
		Format:  outputFormat,
		HTML:    o.HTML,
		Media:   o.Media,
		Timeout: int64(o.CacheTimeout),
	})
}

// DecodeOutput reads an output written by EncodeOutput. ok is false for
// payloads in any other format, including plain strings written by older
// releases.
func DecodeOutput(data []byte) (Output, bool) {
	if len(data) == 0 {
		return Output{}, false
	}
	var env outputEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Output{}, false
	}
	if env.Format != outputFormat {
		return Output{}, false
	}
	return Output{
		HTML:         env.HTML,
		Media:        env.Media,
		Cacheable:    true,
		CacheTimeout: time.Duration(env.Timeout),
	}, true
}
