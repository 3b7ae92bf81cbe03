package testsupport

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-content-placeholders/content"
)

// MemoryStore is an in-memory content.Repository counting its reads.
type MemoryStore struct {
	mu           sync.Mutex
	nextID       int64
	placeholders map[int64]*content.Placeholder
	items        map[int64]content.Item
	payloads     map[int64]any

	placeholderItemsCalls atomic.Int64
	realInstancesCalls    atomic.Int64
	upcastItems           atomic.Int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		placeholders: make(map[int64]*content.Placeholder),
		items:        make(map[int64]content.Item),
		payloads:     make(map[int64]any),
	}
}

// PlaceholderItemsCalls returns how often item lists were read.
func (s *MemoryStore) PlaceholderItemsCalls() int64 {
	return s.placeholderItemsCalls.Load()
}

// RealInstancesCalls returns how often payloads were read.
func (s *MemoryStore) RealInstancesCalls() int64 {
	return s.realInstancesCalls.Load()
}

// UpcastItems returns the number of items upcast so far.
func (s *MemoryStore) UpcastItems() int64 {
	return s.upcastItems.Load()
}

// DropPayload removes the payload of an item, leaving its base record.
func (s *MemoryStore) DropPayload(id int64) {
	s.mu.Lock()
	delete(s.payloads, id)
	s.mu.Unlock()
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreatePlaceholder(_ context.Context, parent content.ParentRef, slot string, role content.Role, title string) (*content.Placeholder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.placeholders {
		if p.Parent == parent && p.Slot == slot {
			cp := *p
			return &cp, nil
		}
	}
	p := &content.Placeholder{ID: s.id(), Slot: slot, Role: role, Parent: parent, Title: title}
	s.placeholders[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) DeletePlaceholder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.placeholders[id]; !ok {
		return content.ErrNotFound
	}
	delete(s.placeholders, id)
	for itemID, item := range s.items {
		if item.PlaceholderID == id {
			item.PlaceholderID = 0
			s.items[itemID] = item
		}
	}
	return nil
}

func (s *MemoryStore) CreateItem(_ context.Context, placeholder *content.Placeholder, item content.Item, data any) (content.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	if placeholder != nil {
		item.PlaceholderID = placeholder.ID
		if item.Parent.IsZero() {
			item.Parent = placeholder.Parent
		}
	}
	s.items[item.ID] = item
	s.payloads[item.ID] = data
	return item, nil
}

func (s *MemoryStore) SaveItem(_ context.Context, item content.Item, data any) (content.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return content.Item{}, content.ErrNotFound
	}
	s.items[item.ID] = item
	s.payloads[item.ID] = data
	return item, nil
}

func (s *MemoryStore) DeleteItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return content.ErrNotFound
	}
	delete(s.items, id)
	delete(s.payloads, id)
	return nil
}

func (s *MemoryStore) PlaceholderBySlot(_ context.Context, parent content.ParentRef, slot string) (*content.Placeholder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.placeholders {
		if p.Parent == parent && p.Slot == slot {
			cp := *p
			return &cp, nil
		}
	}
	return nil, content.ErrNotFound
}

func (s *MemoryStore) Placeholder(_ context.Context, id int64) (*content.Placeholder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.placeholders[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Placeholders(_ context.Context, parent content.ParentRef) ([]*content.Placeholder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*content.Placeholder
	for _, p := range s.placeholders {
		if p.Parent == parent {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PlaceholderItems(_ context.Context, placeholder *content.Placeholder, filter content.ItemFilter) ([]content.Item, error) {
	s.placeholderItemsCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []content.Item
	for _, item := range s.items {
		if item.PlaceholderID != placeholder.ID {
			continue
		}
		if !filter.Parent.IsZero() && item.Parent != filter.Parent {
			continue
		}
		if filter.Language != "" && item.LanguageCode != filter.Language {
			continue
		}
		out = append(out, item)
	}
	sortItems(out)
	return out, nil
}

func (s *MemoryStore) Items(_ context.Context, ids []int64) ([]content.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]content.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out = append(out, item)
		}
	}
	sortItems(out)
	return out, nil
}

// RealInstances returns instances in input order, leaving out items without
// a payload.
func (s *MemoryStore) RealInstances(_ context.Context, items []content.Item) ([]*content.Instance, error) {
	s.realInstancesCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*content.Instance, 0, len(items))
	for _, item := range items {
		data, ok := s.payloads[item.ID]
		if !ok {
			continue
		}
		out = append(out, &content.Instance{Item: item, Data: data})
	}
	s.upcastItems.Add(int64(len(out)))
	return out, nil
}

func sortItems(items []content.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
}
