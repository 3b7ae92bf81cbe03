package rendering

import (
	"fmt"
	"html"

	"github.com/goliatone/go-content-placeholders/content"
)

const (
	emptyItemsComment = "<!-- no items to render -->"
	staleTypeName     = "content type is stale"
)

func emptyPlaceholderComment(slot string) string {
	return fmt.Sprintf("<!-- no items in placeholder '%s' -->", html.EscapeString(slot))
}

func missingComment(id int64, typeName string) string {
	return fmt.Sprintf("<!-- Missing derived model for ContentItem #%d: %s. -->\n", id, typeName)
}

func errorComment(err error) string {
	return fmt.Sprintf("<!-- error: %s -->\n", html.EscapeString(err.Error()))
}

// wrapPlaceholder marks placeholder output for the frontend editor.
func wrapPlaceholder(p *content.Placeholder, fragment string) string {
	if p == nil {
		return wrapAnonymous(fragment)
	}
	slot := html.EscapeString(p.Slot)
	return fmt.Sprintf(
		`<div class="cp-editable-placeholder" id="cp-editable-placeholder-%s" data-placeholder-id="%d" data-placeholder-slot="%s">%s</div>`+"\n",
		slot, p.ID, slot, fragment,
	)
}

func wrapAnonymous(fragment string) string {
	return `<div class="cp-editable-placeholder">` + fragment + "</div>\n"
}

func wrapItem(typeName string, id int64, fragment string) string {
	return fmt.Sprintf(
		`<div class="cp-editable-contentitem" data-itemtype="%s" data-item-id="%d">%s</div>`+"\n",
		html.EscapeString(typeName), id, fragment,
	)
}
