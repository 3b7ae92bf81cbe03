// Package text renders WYSIWYG HTML text items.
package text

import (
	"context"
	"fmt"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
)

const (
	Name      = "text"
	ModelName = "TextItem"
	TypeID    = int64(1)
)

// Item is a snippet of HTML text. Final holds the filtered text when it
// differs from Text; older items carry none.
type Item struct {
	Text  string  `msgpack:"text"`
	Final *string `msgpack:"text_final,omitempty"`
}

// HTML returns the text to display.
func (i *Item) HTML() string {
	if i.Final != nil {
		return *i.Final
	}
	return i.Text
}

// Plugin renders an Item inside a div so the next item starts below it.
type Plugin struct{ plugin.Base }

// New returns the text plugin. Its output is cached and the text field is
// indexed for search.
func New() *Plugin {
	return &Plugin{Base: plugin.Base{
		PluginName:   Name,
		ContentModel: content.Model{Name: ModelName, TypeID: TypeID, New: func() any { return &Item{} }},
		Search:       plugin.SearchPolicy{Fields: []string{"text"}},
	}}
}

func (Plugin) Render(_ context.Context, inst *content.Instance) (plugin.Result, error) {
	item, ok := inst.Data.(*Item)
	if !ok {
		return plugin.Result{}, fmt.Errorf("text: unexpected payload %T", inst.Data)
	}
	return plugin.HTML(`<div class="text">` + item.HTML() + "</div>\n"), nil
}
