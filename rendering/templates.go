package rendering

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/goliatone/go-content-placeholders/content"
)

// TemplateRenderer renders merge templates and reports template file stamps.
type TemplateRenderer interface {
	Render(w io.Writer, name string, data any) error
	ModTime(name string) (time.Time, error)
}

// MergedItem pairs an item with its rendered fragment.
type MergedItem struct {
	Item content.Item
	HTML template.HTML
}

// MergeData is passed to merge templates.
type MergeData struct {
	ContentItems []MergedItem
	Placeholder  *content.Placeholder
	Parent       content.ParentRef
	EditMode     bool
}

// FSTemplates loads html/template files from a file system. Parsed
// templates are kept unless Reload is set.
type FSTemplates struct {
	fsys   fs.FS
	reload bool

	mu     sync.Mutex
	parsed map[string]*template.Template
}

// NewFSTemplates creates a renderer reading from fsys. With reload every
// render parses the file again.
func NewFSTemplates(fsys fs.FS, reload bool) *FSTemplates {
	return &FSTemplates{fsys: fsys, reload: reload, parsed: make(map[string]*template.Template)}
}

func (t *FSTemplates) Render(w io.Writer, name string, data any) error {
	tmpl, err := t.lookup(name)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, data)
}

func (t *FSTemplates) ModTime(name string) (time.Time, error) {
	info, err := fs.Stat(t.fsys, name)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (t *FSTemplates) lookup(name string) (*template.Template, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tmpl, ok := t.parsed[name]; ok && !t.reload {
		return tmpl, nil
	}
	tmpl, err := template.ParseFS(t.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	t.parsed[name] = tmpl
	return tmpl, nil
}
