package testsupport

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync/atomic"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
)

const (
	TextTypeID     int64 = 101
	FailingTypeID  int64 = 102
	DynamicTypeID  int64 = 103
	SkipTypeID     int64 = 104
	RedirectTypeID int64 = 105
	PanicTypeID    int64 = 106
)

// TextItem is the payload of the fake text plugin.
type TextItem struct {
	Text  string `msgpack:"text"`
	Title string `msgpack:"title"`
}

// ErrRender is returned by FailingPlugin.
var ErrRender = errors.New("render failed")

// TextPlugin renders <b>Text</b> and counts its renders.
type TextPlugin struct {
	plugin.Base
	renders atomic.Int64
}

// NewTextPlugin returns a cacheable text plugin applying policy.
func NewTextPlugin(policy plugin.CachePolicy) *TextPlugin {
	return &TextPlugin{Base: plugin.Base{
		PluginName:   "testtext",
		ContentModel: content.Model{Name: "TestTextItem", TypeID: TextTypeID, New: func() any { return &TextItem{} }},
		Cache:        policy,
		Search:       plugin.SearchPolicy{Fields: []string{"Title", "text"}},
	}}
}

func (p *TextPlugin) Render(_ context.Context, item *content.Instance) (plugin.Result, error) {
	p.renders.Add(1)
	data, ok := item.Data.(*TextItem)
	if !ok {
		return plugin.Result{}, fmt.Errorf("unexpected payload %T", item.Data)
	}
	return plugin.HTML("<b>" + html.EscapeString(data.Text) + "</b>"), nil
}

// Renders returns how often Render ran.
func (p *TextPlugin) Renders() int64 {
	return p.renders.Load()
}

// FailingPlugin always returns ErrRender.
type FailingPlugin struct{ plugin.Base }

func NewFailingPlugin() *FailingPlugin {
	return &FailingPlugin{Base: plugin.Base{
		PluginName:   "testfailing",
		ContentModel: content.Model{Name: "TestFailingItem", TypeID: FailingTypeID, New: func() any { return &TextItem{} }},
	}}
}

func (FailingPlugin) Render(context.Context, *content.Instance) (plugin.Result, error) {
	return plugin.Result{}, ErrRender
}

// DynamicPlugin returns uncachable output.
type DynamicPlugin struct{ plugin.Base }

func NewDynamicPlugin() *DynamicPlugin {
	return &DynamicPlugin{Base: plugin.Base{
		PluginName:   "testdynamic",
		ContentModel: content.Model{Name: "TestDynamicItem", TypeID: DynamicTypeID, New: func() any { return &TextItem{} }},
		Search:       plugin.SearchPolicy{Output: true},
	}}
}

func (DynamicPlugin) Render(_ context.Context, item *content.Instance) (plugin.Result, error) {
	out := content.Output{HTML: fmt.Sprintf("<i>dynamic %d</i>", item.ID)}
	return plugin.Output(out), nil
}

// SkipPlugin contributes nothing.
type SkipPlugin struct{ plugin.Base }

func NewSkipPlugin() *SkipPlugin {
	return &SkipPlugin{Base: plugin.Base{
		PluginName:   "testskip",
		ContentModel: content.Model{Name: "TestSkipItem", TypeID: SkipTypeID, New: func() any { return &TextItem{} }},
	}}
}

func (SkipPlugin) Render(context.Context, *content.Instance) (plugin.Result, error) {
	return plugin.Skip(), nil
}

// RedirectPlugin redirects to the payload text.
type RedirectPlugin struct{ plugin.Base }

func NewRedirectPlugin() *RedirectPlugin {
	return &RedirectPlugin{Base: plugin.Base{
		PluginName:   "testredirect",
		ContentModel: content.Model{Name: "TestRedirectItem", TypeID: RedirectTypeID, New: func() any { return &TextItem{} }},
	}}
}

func (RedirectPlugin) Render(_ context.Context, item *content.Instance) (plugin.Result, error) {
	return plugin.RedirectTo(item.Data.(*TextItem).Text, 301), nil
}

// PanicPlugin panics while rendering.
type PanicPlugin struct{ plugin.Base }

func NewPanicPlugin() *PanicPlugin {
	return &PanicPlugin{Base: plugin.Base{
		PluginName:   "testpanic",
		ContentModel: content.Model{Name: "TestPanicItem", TypeID: PanicTypeID, New: func() any { return &TextItem{} }},
	}}
}

func (PanicPlugin) Render(context.Context, *content.Instance) (plugin.Result, error) {
	panic("boom")
}
