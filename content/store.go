package content

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a placeholder or item does not exist.
var ErrNotFound = errors.New("content: not found")

// ItemFilter narrows the items of a placeholder.
type ItemFilter struct {
	// Parent restricts items to a parent object. The zero value keeps every
	// item of the placeholder.
	Parent ParentRef
	// Language restricts items to one language code. Empty keeps all.
	Language string
}

// Store is the read side of persistence used while rendering.
type Store interface {
	// PlaceholderBySlot returns the placeholder of parent named slot, or
	// ErrNotFound.
	PlaceholderBySlot(ctx context.Context, parent ParentRef, slot string) (*Placeholder, error)
	Placeholder(ctx context.Context, id int64) (*Placeholder, error)
	Placeholders(ctx context.Context, parent ParentRef) ([]*Placeholder, error)

	// PlaceholderItems returns the base records of a placeholder ordered by
	// sort order then id. Payloads are not read.
	PlaceholderItems(ctx context.Context, placeholder *Placeholder, filter ItemFilter) ([]Item, error)
	// Items returns base records by identity, ordered by sort order then id.
	Items(ctx context.Context, ids []int64) ([]Item, error)
	// RealInstances upcasts base records in one round trip. Records whose
	// payload is gone or no longer decodes are left out of the result.
	RealInstances(ctx context.Context, items []Item) ([]*Instance, error)
}

// Writer is the write side of persistence.
type Writer interface {
	CreatePlaceholder(ctx context.Context, parent ParentRef, slot string, role Role, title string) (*Placeholder, error)
	// DeletePlaceholder removes the placeholder and orphans its items.
	DeletePlaceholder(ctx context.Context, id int64) error

	// CreateItem stores a new item bound to placeholder with its payload.
	CreateItem(ctx context.Context, placeholder *Placeholder, item Item, data any) (Item, error)
	SaveItem(ctx context.Context, item Item, data any) (Item, error)
	DeleteItem(ctx context.Context, id int64) error
}

// Repository combines both sides.
type Repository interface {
	Store
	Writer
}

// Decoder turns a stored payload into the concrete model value of typeID.
type Decoder interface {
	Decode(typeID int64, data []byte) (any, error)
}

// Encoder is the inverse of Decoder.
type Encoder interface {
	Encode(data any) ([]byte, error)
}
