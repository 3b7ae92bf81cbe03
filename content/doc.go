// Package content defines the domain model shared by the plugin registry,
// the rendering pipeline and the persistence layer.
//
// # Overview
//
// A parent object (a page, an article, any record) exposes named
// placeholders. Each Placeholder holds an ordered list of content items.
// Items are polymorphic: every Item is a base record carrying a discriminant
// (TypeID) plus an opaque payload. The payload is only decoded into its
// concrete model when the item has to be rendered, producing an Instance.
//
//	base := content.Item{ID: 12, TypeID: 3, SortOrder: 1, LanguageCode: "en"}
//	inst := &content.Instance{Item: base, Data: &text.Item{Text: "<p>Hi</p>"}}
//
// The base record identity (Item.ID) is the only stable join key used for
// cache lookups and result tracking.
//
// # Collaborators
//
// Store describes what the rendering pipeline needs from persistence:
// fetching base items by identity or by placeholder, and upcasting a set of
// base items into their concrete Instances in one call. Decoder is the
// variant-aware payload deserializer, implemented by the plugin registry.
//
// # Output
//
// Output is the rendered result of one item or one placeholder. It travels
// through the cache in a versioned msgpack envelope (see EncodeOutput and
// DecodeOutput); payloads written in an older format decode as a miss.
package content
