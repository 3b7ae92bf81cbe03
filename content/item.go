package content

// Item is the non-polymorphic base record of a content item.
// An ID of 0 marks an item that has not been persisted yet; such items are
// never cached.
type Item struct {
	ID            int64     `msgpack:"id"`
	TypeID        int64     `msgpack:"type"`
	Parent        ParentRef `msgpack:"parent"`
	PlaceholderID int64     `msgpack:"placeholder"`
	SortOrder     int       `msgpack:"sort"`
	LanguageCode  string    `msgpack:"lang"`
}

// Saved reports whether the item has a persisted identity.
func (i Item) Saved() bool {
	return i.ID != 0
}

// Orphaned reports whether the item lost its placeholder.
func (i Item) Orphaned() bool {
	return i.PlaceholderID == 0
}

// Instance is an item upcast to its concrete model. Data holds the decoded
// payload, typically a pointer to the plugin model struct.
type Instance struct {
	Item
	Data any
}

// Model describes a concrete content item type. Name is the type name used
// in cache keys and diagnostics, TypeID the stored discriminant. New returns
// an empty payload value the stored bytes are decoded into.
type Model struct {
	Name   string
	TypeID int64
	New    func() any
}

// Valid reports whether the model is fully declared.
func (m Model) Valid() bool {
	return m.Name != "" && m.TypeID != 0 && m.New != nil
}
