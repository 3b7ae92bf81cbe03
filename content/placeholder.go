package content

import "fmt"

// Role is the coarse purpose of a placeholder within its parent layout.
// Layout switches use it to move items between placeholders.
type Role string

const (
	RoleMain    Role = "m"
	RoleSidebar Role = "s"
	RoleRelated Role = "r"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMain, RoleSidebar, RoleRelated:
		return true
	}
	return false
}

// Label returns the admin label of the role.
func (r Role) Label() string {
	switch r {
	case RoleMain:
		return "Main content"
	case RoleSidebar:
		return "Sidebar content"
	case RoleRelated:
		return "Related content"
	}
	return string(r)
}

// ParentRef is a polymorphic reference to the object owning placeholders
// and items. The zero value refers to no parent (global placeholders).
type ParentRef struct {
	TypeID int64 `msgpack:"t"`
	ID     int64 `msgpack:"i"`
}

// IsZero reports whether the reference points to no parent.
func (p ParentRef) IsZero() bool {
	return p.TypeID == 0 && p.ID == 0
}

func (p ParentRef) String() string {
	if p.IsZero() {
		return "global"
	}
	return fmt.Sprintf("%d#%d", p.TypeID, p.ID)
}

// Placeholder is a named region of a parent object.
// (Parent.TypeID, Parent.ID, Slot) is unique.
type Placeholder struct {
	ID     int64     `msgpack:"id"`
	Slot   string    `msgpack:"slot"`
	Role   Role      `msgpack:"role"`
	Parent ParentRef `msgpack:"parent"`
	Title  string    `msgpack:"title"`
}

// GlobalSlotName is used in cache keys and diagnostics when items are
// rendered without a placeholder.
const GlobalSlotName = "@global@"

// SlotName returns the slot of p, or GlobalSlotName when p is nil.
func SlotName(p *Placeholder) string {
	if p == nil {
		return GlobalSlotName
	}
	return p.Slot
}

func (p *Placeholder) String() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Slot
}
