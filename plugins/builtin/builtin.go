// Package builtin registers the bundled plugins.
package builtin

import (
	"github.com/goliatone/go-content-placeholders/plugin"
	"github.com/goliatone/go-content-placeholders/plugins/rawhtml"
	"github.com/goliatone/go-content-placeholders/plugins/text"
)

// Discover is a plugin.DiscoveryFunc registering every bundled plugin.
func Discover(r plugin.Registrar) error {
	for _, p := range []plugin.Plugin{text.New(), rawhtml.New()} {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}
