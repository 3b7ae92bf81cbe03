// Package persistence stores placeholders and content items with bun.
//
// Items are split over a base table, read while rendering to decide cache
// hits, and a payload table read only for cache misses:
//
//	content_placeholders  id, parent_type, parent_id, slot, role, title
//	content_items         id, type_id, parent_type, parent_id, placeholder_id, sort_order, language_code
//	content_item_data     item_id, type_id, payload (msgpack)
//
// Both sqlite3 and postgres are supported.
package persistence
