package content

import (
	"html"
	"sort"
	"strings"
)

// Media lists the CSS and JavaScript assets a rendered fragment depends on.
// CSS paths are grouped by medium ("all", "screen", "print", ...).
type Media struct {
	CSS map[string][]string `msgpack:"css,omitempty"`
	JS  []string            `msgpack:"js,omitempty"`
}

// NewMedia builds a Media value from JS paths and "all" medium CSS paths.
func NewMedia(js []string, css ...string) Media {
	m := Media{}
	m.AddJS(js...)
	m.AddCSS("all", css...)
	return m
}

// Empty reports whether no assets are declared.
func (m Media) Empty() bool {
	if len(m.JS) > 0 {
		return false
	}
	for _, paths := range m.CSS {
		if len(paths) > 0 {
			return false
		}
	}
	return true
}

// AddJS appends scripts that are not present yet, keeping declaration order.
func (m *Media) AddJS(paths ...string) {
	for _, p := range paths {
		if p == "" || contains(m.JS, p) {
			continue
		}
		m.JS = append(m.JS, p)
	}
}

// AddCSS appends stylesheets for a medium that are not present yet.
func (m *Media) AddCSS(medium string, paths ...string) {
	if medium == "" {
		medium = "all"
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if m.CSS == nil {
			m.CSS = make(map[string][]string)
		}
		if contains(m.CSS[medium], p) {
			continue
		}
		m.CSS[medium] = append(m.CSS[medium], p)
	}
}

// Merge adds every asset of other to m.
func (m *Media) Merge(other Media) {
	for _, medium := range other.mediums() {
		m.AddCSS(medium, other.CSS[medium]...)
	}
	m.AddJS(other.JS...)
}

// Prepend returns a Media with other's assets ahead of m's assets.
func (m Media) Prepend(other Media) Media {
	out := Media{}
	out.Merge(other)
	out.Merge(m)
	return out
}

// Clone returns a deep copy.
func (m Media) Clone() Media {
	out := Media{}
	out.Merge(m)
	return out
}

// HTML renders the link and script tags for the assets.
func (m Media) HTML() string {
	var b strings.Builder
	for _, medium := range m.mediums() {
		for _, p := range m.CSS[medium] {
			b.WriteString(`<link href="`)
			b.WriteString(html.EscapeString(p))
			b.WriteString(`" type="text/css" media="`)
			b.WriteString(html.EscapeString(medium))
			b.WriteString(`" rel="stylesheet">`)
			b.WriteByte('\n')
		}
	}
	for _, p := range m.JS {
		b.WriteString(`<script src="`)
		b.WriteString(html.EscapeString(p))
		b.WriteString(`"></script>`)
		b.WriteByte('\n')
	}
	return b.String()
}

func (m Media) mediums() []string {
	mediums := make([]string, 0, len(m.CSS))
	for medium := range m.CSS {
		mediums = append(mediums, medium)
	}
	sort.Strings(mediums)
	return mediums
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
