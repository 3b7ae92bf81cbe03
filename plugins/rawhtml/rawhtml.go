// Package rawhtml renders stored HTML verbatim, for embed codes of online
// widgets.
package rawhtml

import (
	"context"
	"fmt"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
)

const (
	Name      = "rawhtml"
	ModelName = "RawHtmlItem"
	TypeID    = int64(2)
)

type Item struct {
	HTML string `msgpack:"html"`
}

type Plugin struct{ plugin.Base }

// New returns the raw HTML plugin. Embedded widgets often differ per
// language, so output is cached per language.
func New() *Plugin {
	return &Plugin{Base: plugin.Base{
		PluginName:   Name,
		ContentModel: content.Model{Name: ModelName, TypeID: TypeID, New: func() any { return &Item{} }},
		Cache:        plugin.CachePolicy{PerLanguage: true},
		Search:       plugin.SearchPolicy{Output: true},
	}}
}

func (Plugin) Render(_ context.Context, inst *content.Instance) (plugin.Result, error) {
	item, ok := inst.Data.(*Item)
	if !ok {
		return plugin.Result{}, fmt.Errorf("rawhtml: unexpected payload %T", inst.Data)
	}
	return plugin.HTML(item.HTML), nil
}
