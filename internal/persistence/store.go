package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-placeholders/content"
)

var _ content.Repository = (*Store)(nil)

// Codec converts item payloads to and from their stored bytes.
// *plugin.Registry implements it.
type Codec interface {
	content.Decoder
	content.Encoder
}

// ChangeKind tells what a ChangeEvent reports.
type ChangeKind int

const (
	ItemSaved ChangeKind = iota
	ItemDeleted
	PlaceholderDeleted
)

// ChangeEvent is passed to change hooks after a successful write.
type ChangeEvent struct {
	Kind        ChangeKind
	Item        content.Item
	Placeholder *content.Placeholder
}

// ChangeHook observes writes. Hooks run synchronously after the write has
// been committed; their errors are logged.
type ChangeHook func(ctx context.Context, event ChangeEvent) error

// Store is a content.Repository on a bun database.
type Store struct {
	db              *bun.DB
	codec           Codec
	defaultLanguage string
	logger          *slog.Logger

	mu    sync.RWMutex
	hooks []ChangeHook
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultLanguage sets the language of new items that declare none and
// whose placeholder parent gives none either.
func WithDefaultLanguage(language string) Option {
	return func(s *Store) {
		s.defaultLanguage = language
	}
}

// WithLogger sets the logger used for hook failures and undecodable rows.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns a store on db encoding payloads with codec.
func NewStore(db *bun.DB, codec Codec, opts ...Option) *Store {
	s := &Store{
		db:     db,
		codec:  codec,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database.
func (s *Store) DB() *bun.DB {
	return s.db
}

// OnChange registers a hook run after every item write and placeholder
// deletion.
func (s *Store) OnChange(hook ChangeHook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

func (s *Store) notify(ctx context.Context, event ChangeEvent) {
	s.mu.RLock()
	hooks := append([]ChangeHook(nil), s.hooks...)
	s.mu.RUnlock()
	for _, hook := range hooks {
		if err := hook(ctx, event); err != nil {
			s.logger.Warn("content change hook failed", "item_id", event.Item.ID, "error", err)
		}
	}
}

// Migrate creates the tables and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{(*placeholderRow)(nil), (*itemRow)(nil), (*itemDataRow)(nil)}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		unique  bool
		columns []string
	}{
		{(*placeholderRow)(nil), "content_placeholders_parent_slot", true, []string{"parent_type", "parent_id", "slot"}},
		{(*itemRow)(nil), "content_items_placeholder_order", false, []string{"placeholder_id", "sort_order"}},
		{(*itemRow)(nil), "content_items_parent", false, []string{"parent_type", "parent_id"}},
	}
	for _, idx := range indexes {
		q := s.db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

func (s *Store) CreatePlaceholder(ctx context.Context, parent content.ParentRef, slot string, role content.Role, title string) (*content.Placeholder, error) {
	if slot == "" {
		return nil, errors.New("placeholder slot is required")
	}
	if role == "" {
		role = content.RoleMain
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid placeholder role %q", role)
	}
	row := &placeholderRow{
		ParentType: parent.TypeID,
		ParentID:   parent.ID,
		Slot:       slot,
		Role:       string(role),
		Title:      title,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, fmt.Errorf("create placeholder %q: %w", slot, err)
	}
	return row.toPlaceholder(), nil
}

// DeletePlaceholder removes a placeholder. Its items stay, orphaned.
func (s *Store) DeletePlaceholder(ctx context.Context, id int64) error {
	ph, err := s.Placeholder(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model((*itemRow)(nil)).
			Set("placeholder_id = NULL").
			Where("placeholder_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*placeholderRow)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete placeholder %d: %w", id, err)
	}
	s.notify(ctx, ChangeEvent{Kind: PlaceholderDeleted, Placeholder: ph})
	return nil
}

func (s *Store) PlaceholderBySlot(ctx context.Context, parent content.ParentRef, slot string) (*content.Placeholder, error) {
	row := new(placeholderRow)
	err := s.db.NewSelect().Model(row).
		Where("parent_type = ?", parent.TypeID).
		Where("parent_id = ?", parent.ID).
		Where("slot = ?", slot).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toPlaceholder(), nil
}

func (s *Store) Placeholder(ctx context.Context, id int64) (*content.Placeholder, error) {
	row := new(placeholderRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return row.toPlaceholder(), nil
}

func (s *Store) Placeholders(ctx context.Context, parent content.ParentRef) ([]*content.Placeholder, error) {
	var rows []placeholderRow
	err := s.db.NewSelect().Model(&rows).
		Where("parent_type = ?", parent.TypeID).
		Where("parent_id = ?", parent.ID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*content.Placeholder, len(rows))
	for i := range rows {
		out[i] = rows[i].toPlaceholder()
	}
	return out, nil
}

// CreateItem stores a new item in placeholder. The item inherits the
// placeholder parent and, when it has no language, the default language.
func (s *Store) CreateItem(ctx context.Context, placeholder *content.Placeholder, item content.Item, data any) (content.Item, error) {
	if placeholder == nil {
		return content.Item{}, errors.New("content item requires a placeholder")
	}
	item.ID = 0
	item.PlaceholderID = placeholder.ID
	if item.Parent.IsZero() {
		item.Parent = placeholder.Parent
	}
	if item.LanguageCode == "" {
		item.LanguageCode = s.defaultLanguage
	}
	payload, err := s.codec.Encode(data)
	if err != nil {
		return content.Item{}, fmt.Errorf("encode content item payload: %w", err)
	}

	row := newItemRow(item)
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&itemDataRow{ItemID: row.ID, TypeID: row.TypeID, Payload: payload}).Exec(ctx)
		return err
	})
	if err != nil {
		return content.Item{}, fmt.Errorf("create content item: %w", err)
	}
	saved := row.toItem()
	s.notify(ctx, ChangeEvent{Kind: ItemSaved, Item: saved, Placeholder: placeholder})
	return saved, nil
}

// SaveItem updates the base record and payload of an existing item.
func (s *Store) SaveItem(ctx context.Context, item content.Item, data any) (content.Item, error) {
	if !item.Saved() {
		return content.Item{}, errors.New("content item is not saved")
	}
	previous, err := s.item(ctx, item.ID)
	if err != nil {
		return content.Item{}, err
	}
	payload, err := s.codec.Encode(data)
	if err != nil {
		return content.Item{}, fmt.Errorf("encode content item payload: %w", err)
	}

	row := newItemRow(item)
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model(row).WherePK().Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&itemDataRow{ItemID: row.ID, TypeID: row.TypeID, Payload: payload}).
			On("CONFLICT (item_id) DO UPDATE").
			Set("type_id = EXCLUDED.type_id").
			Set("payload = EXCLUDED.payload").
			Exec(ctx)
		return err
	})
	if err != nil {
		return content.Item{}, fmt.Errorf("save content item %d: %w", item.ID, err)
	}
	// The previous placement may be cached as well.
	if previous.PlaceholderID != item.PlaceholderID || previous.LanguageCode != item.LanguageCode {
		s.notify(ctx, ChangeEvent{Kind: ItemSaved, Item: previous})
	}
	s.notify(ctx, ChangeEvent{Kind: ItemSaved, Item: item})
	return item, nil
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	item, err := s.item(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*itemDataRow)(nil)).Where("item_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*itemRow)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete content item %d: %w", id, err)
	}
	s.notify(ctx, ChangeEvent{Kind: ItemDeleted, Item: item})
	return nil
}

func (s *Store) item(ctx context.Context, id int64) (content.Item, error) {
	row := new(itemRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return content.Item{}, notFound(err)
	}
	return row.toItem(), nil
}

// PlaceholderItems returns the base records of placeholder ordered by sort
// order then id.
func (s *Store) PlaceholderItems(ctx context.Context, placeholder *content.Placeholder, filter content.ItemFilter) ([]content.Item, error) {
	var rows []itemRow
	q := s.db.NewSelect().Model(&rows).Where("placeholder_id = ?", placeholder.ID)
	if !filter.Parent.IsZero() {
		q = q.Where("parent_type = ?", filter.Parent.TypeID).Where("parent_id = ?", filter.Parent.ID)
	}
	if filter.Language != "" {
		q = q.Where("language_code = ?", filter.Language)
	}
	if err := q.Order("sort_order ASC", "id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

func (s *Store) Items(ctx context.Context, ids []int64) ([]content.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []itemRow
	err := s.db.NewSelect().Model(&rows).
		Where("id IN (?)", bun.In(ids)).
		Order("sort_order ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

// RealInstances loads and decodes the payloads of items in one query.
// Items without a payload row, or whose payload no longer decodes, are left
// out.
func (s *Store) RealInstances(ctx context.Context, items []content.Item) ([]*content.Instance, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.Saved() {
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []itemDataRow
	if err := s.db.NewSelect().Model(&rows).Where("item_id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("load content item payloads: %w", err)
	}
	payloads := make(map[int64]itemDataRow, len(rows))
	for _, row := range rows {
		payloads[row.ItemID] = row
	}

	out := make([]*content.Instance, 0, len(items))
	for _, item := range items {
		row, ok := payloads[item.ID]
		if !ok || row.TypeID != item.TypeID {
			continue
		}
		data, err := s.codec.Decode(item.TypeID, row.Payload)
		if err != nil {
			s.logger.Debug("content item payload does not decode", "item_id", item.ID, "type_id", item.TypeID, "error", err)
			continue
		}
		out = append(out, &content.Instance{Item: item, Data: data})
	}
	return out, nil
}

// StaleItems returns items whose type is not in known.
func (s *Store) StaleItems(ctx context.Context, known []int64) ([]content.Item, error) {
	var rows []itemRow
	q := s.db.NewSelect().Model(&rows)
	if len(known) > 0 {
		q = q.Where("type_id NOT IN (?)", bun.In(known))
	}
	if err := q.Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

// UnreferencedItems returns items of parentType whose parent id is not in
// live.
func (s *Store) UnreferencedItems(ctx context.Context, parentType int64, live []int64) ([]content.Item, error) {
	var rows []itemRow
	q := s.db.NewSelect().Model(&rows).Where("parent_type = ?", parentType)
	if len(live) > 0 {
		q = q.Where("parent_id NOT IN (?)", bun.In(live))
	}
	if err := q.Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

// ParentTypes returns the distinct parent types owning items.
func (s *Store) ParentTypes(ctx context.Context) ([]int64, error) {
	var types []int64
	err := s.db.NewSelect().Model((*itemRow)(nil)).
		ColumnExpr("DISTINCT parent_type").
		Where("parent_type <> 0").
		Order("parent_type ASC").
		Scan(ctx, &types)
	return types, err
}

// PlaceholderParents returns the ids of parents of parentType owning at
// least one placeholder.
func (s *Store) PlaceholderParents(ctx context.Context, parentType int64) ([]int64, error) {
	var ids []int64
	err := s.db.NewSelect().Model((*placeholderRow)(nil)).
		ColumnExpr("DISTINCT parent_id").
		Where("parent_type = ?", parentType).
		Order("parent_id ASC").
		Scan(ctx, &ids)
	return ids, err
}

// DeleteItems removes items by id.
func (s *Store) DeleteItems(ctx context.Context, ids []int64) (int, error) {
	deleted := 0
	for _, id := range ids {
		if err := s.DeleteItem(ctx, id); err != nil {
			if errors.Is(err, content.ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return content.ErrNotFound
	}
	return err
}
