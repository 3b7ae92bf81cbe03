package persistence

import (
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-placeholders/content"
)

type placeholderRow struct {
	bun.BaseModel `bun:"table:content_placeholders,alias:p"`

	ID         int64  `bun:"id,pk,autoincrement"`
	ParentType int64  `bun:"parent_type,notnull"`
	ParentID   int64  `bun:"parent_id,notnull"`
	Slot       string `bun:"slot,notnull"`
	Role       string `bun:"role,notnull"`
	Title      string `bun:"title"`
}

func (r *placeholderRow) toPlaceholder() *content.Placeholder {
	return &content.Placeholder{
		ID:     r.ID,
		Slot:   r.Slot,
		Role:   content.Role(r.Role),
		Parent: content.ParentRef{TypeID: r.ParentType, ID: r.ParentID},
		Title:  r.Title,
	}
}

// itemRow is the base record. Its payload lives in itemDataRow.
type itemRow struct {
	bun.BaseModel `bun:"table:content_items,alias:i"`

	ID            int64  `bun:"id,pk,autoincrement"`
	TypeID        int64  `bun:"type_id,notnull"`
	ParentType    int64  `bun:"parent_type,notnull"`
	ParentID      int64  `bun:"parent_id,notnull"`
	PlaceholderID int64  `bun:"placeholder_id,nullzero"`
	SortOrder     int    `bun:"sort_order"`
	LanguageCode  string `bun:"language_code"`
}

func newItemRow(item content.Item) *itemRow {
	return &itemRow{
		ID:            item.ID,
		TypeID:        item.TypeID,
		ParentType:    item.Parent.TypeID,
		ParentID:      item.Parent.ID,
		PlaceholderID: item.PlaceholderID,
		SortOrder:     item.SortOrder,
		LanguageCode:  item.LanguageCode,
	}
}

func (r *itemRow) toItem() content.Item {
	return content.Item{
		ID:            r.ID,
		TypeID:        r.TypeID,
		Parent:        content.ParentRef{TypeID: r.ParentType, ID: r.ParentID},
		PlaceholderID: r.PlaceholderID,
		SortOrder:     r.SortOrder,
		LanguageCode:  r.LanguageCode,
	}
}

type itemDataRow struct {
	bun.BaseModel `bun:"table:content_item_data,alias:d"`

	ItemID  int64  `bun:"item_id,pk"`
	TypeID  int64  `bun:"type_id,notnull"`
	Payload []byte `bun:"payload"`
}

func toItems(rows []itemRow) []content.Item {
	items := make([]content.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].toItem()
	}
	return items
}
