// Package storage persists content records, field value trees, taxonomy
// terms, and relations in PostgreSQL. It implements the collaborator
// contracts the reconciliation engine depends on.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/strata-cms/strata/internal/database"
	"github.com/strata-cms/strata/internal/field"
)

// FieldStore accumulates field value changes for one content record and
// writes them out in a single transaction on Flush. It implements the
// reconciliation engine's persistence collaborator.
type FieldStore struct {
	db        *database.DB
	contentID int64
	tree      *field.Tree

	pending map[int]*field.Value
	removed map[int]*field.Value
}

// NewFieldStore creates a store bound to one record's field tree.
func NewFieldStore(db *database.DB, contentID int64, tree *field.Tree) *FieldStore {
	return &FieldStore{
		db:        db,
		contentID: contentID,
		tree:      tree,
		pending:   map[int]*field.Value{},
		removed:   map[int]*field.Value{},
	}
}

// Persist queues a created or updated value for the next Flush.
func (s *FieldStore) Persist(_ context.Context, v *field.Value) error {
	if v.ID == 0 {
		return nil
	}
	delete(s.removed, v.ID)
	s.pending[v.ID] = v
	return nil
}

// Remove queues a discarded value for deletion on the next Flush.
func (s *FieldStore) Remove(_ context.Context, v *field.Value) error {
	if v.ID == 0 {
		return nil
	}
	delete(s.pending, v.ID)
	s.removed[v.ID] = v
	return nil
}

// Flush writes all queued deletions and upserts in one transaction and
// resets the queues.
func (s *FieldStore) Flush(ctx context.Context) error {
	if len(s.pending) == 0 && len(s.removed) == 0 {
		return nil
	}

	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning field flush: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range sortedIDs(s.removed) {
		_, err := tx.Exec(ctx,
			`DELETE FROM fields WHERE content_id = $1 AND field_id = $2`,
			s.contentID, id)
		if err != nil {
			return fmt.Errorf("deleting field %d: %w", id, err)
		}
	}

	for _, id := range sortedIDs(s.pending) {
		v := s.pending[id]
		parentID, position := s.placement(v)

		payload, err := json.Marshal(v.Raw())
		if err != nil {
			return fmt.Errorf("encoding field %q: %w", v.Name, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO fields (content_id, field_id, parent_id, name, type, locale, sort_order, value)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (content_id, field_id) DO UPDATE SET
				parent_id = EXCLUDED.parent_id,
				name = EXCLUDED.name,
				type = EXCLUDED.type,
				locale = EXCLUDED.locale,
				sort_order = EXCLUDED.sort_order,
				value = EXCLUDED.value`,
			s.contentID, v.ID, parentID, v.Name, string(v.Type), v.Locale, position, payload)
		if err != nil {
			return fmt.Errorf("upserting field %q: %w", v.Name, err)
		}

		if err := s.writeTranslations(ctx, tx, v); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing field flush: %w", err)
	}

	s.pending = map[int]*field.Value{}
	s.removed = map[int]*field.Value{}
	return nil
}

func (s *FieldStore) writeTranslations(ctx context.Context, tx pgx.Tx, v *field.Value) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM field_translations WHERE content_id = $1 AND field_id = $2`,
		s.contentID, v.ID)
	if err != nil {
		return fmt.Errorf("clearing translations of field %q: %w", v.Name, err)
	}

	translations := v.Translations()
	locales := make([]string, 0, len(translations))
	for locale := range translations {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	for _, locale := range locales {
		payload, err := json.Marshal(translations[locale])
		if err != nil {
			return fmt.Errorf("encoding %s translation of field %q: %w", locale, v.Name, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO field_translations (content_id, field_id, locale, value)
			VALUES ($1, $2, $3, $4)`,
			s.contentID, v.ID, locale, payload)
		if err != nil {
			return fmt.Errorf("inserting %s translation of field %q: %w", locale, v.Name, err)
		}
	}
	return nil
}

// placement resolves a value's parent id and position among its siblings.
func (s *FieldStore) placement(v *field.Value) (int, int) {
	parent := s.tree.Parent(v)

	var siblings []*field.Value
	parentID := 0
	if parent == nil {
		siblings = s.tree.Root()
	} else {
		parentID = parent.ID
		siblings = s.tree.Children(parent)
	}

	for i, sibling := range siblings {
		if sibling.ID == v.ID {
			return parentID, i
		}
	}
	return parentID, 0
}

func sortedIDs(m map[int]*field.Value) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
