package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strata-cms/strata/internal/content"
	"github.com/strata-cms/strata/internal/database"
	"github.com/strata-cms/strata/internal/field"
	"github.com/strata-cms/strata/internal/schema"
	"github.com/strata-cms/strata/internal/search"
)

// ErrNotFound is returned when a content record does not exist.
var ErrNotFound = errors.New("content record not found")

// ContentStore persists content records and rebuilds their field trees.
type ContentStore struct {
	db       *database.DB
	registry *schema.Registry
}

// NewContentStore creates a store resolving definitions from the registry.
func NewContentStore(db *database.DB, registry *schema.Registry) *ContentStore {
	return &ContentStore{db: db, registry: registry}
}

// Create inserts a new record and assigns its id.
func (s *ContentStore) Create(ctx context.Context, rec *content.Content) error {
	err := s.db.Pool().QueryRow(ctx, `
		INSERT INTO content (content_type, status, author_id, created_at, modified_at, published_at, depublished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		rec.ContentType, string(rec.Status), nullableString(rec.AuthorID),
		rec.CreatedAt, rec.ModifiedAt, rec.PublishedAt, rec.DepublishedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("inserting %s record: %w", rec.ContentType, err)
	}
	return nil
}

// Save updates the record's scalar attributes and rewrites its taxonomy and
// relation links.
func (s *ContentStore) Save(ctx context.Context, rec *content.Content) error {
	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning content save: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE content
		SET status = $2, modified_at = $3, published_at = $4, depublished_at = $5
		WHERE id = $1`,
		rec.ID, string(rec.Status), rec.ModifiedAt, rec.PublishedAt, rec.DepublishedAt)
	if err != nil {
		return fmt.Errorf("updating record %d: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := s.syncTaxonomy(ctx, tx, rec); err != nil {
		return err
	}
	if err := s.syncRelations(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing content save: %w", err)
	}
	return nil
}

// syncTaxonomy replaces the record's term attachments, creating any terms
// not yet known.
func (s *ContentStore) syncTaxonomy(ctx context.Context, tx pgx.Tx, rec *content.Content) error {
	_, err := tx.Exec(ctx, `DELETE FROM content_taxonomy WHERE content_id = $1`, rec.ID)
	if err != nil {
		return fmt.Errorf("clearing taxonomy of record %d: %w", rec.ID, err)
	}

	names := make([]string, 0, len(rec.Taxonomies))
	for name := range rec.Taxonomies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, slug := range rec.Taxonomies[name] {
			var termID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO taxonomy_terms (taxonomy, slug)
				VALUES ($1, $2)
				ON CONFLICT (taxonomy, slug) DO UPDATE SET slug = EXCLUDED.slug
				RETURNING id`,
				name, slug).Scan(&termID)
			if err != nil {
				return fmt.Errorf("ensuring term %s/%s: %w", name, slug, err)
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO content_taxonomy (content_id, term_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING`,
				rec.ID, termID)
			if err != nil {
				return fmt.Errorf("attaching term %s/%s: %w", name, slug, err)
			}
		}
	}
	return nil
}

// syncRelations drops every relation touching the record, in both
// directions, and recreates the submitted outgoing links.
func (s *ContentStore) syncRelations(ctx context.Context, tx pgx.Tx, rec *content.Content) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM relations WHERE from_id = $1 OR to_id = $1`, rec.ID)
	if err != nil {
		return fmt.Errorf("clearing relations of record %d: %w", rec.ID, err)
	}

	names := make([]string, 0, len(rec.Relations))
	for name := range rec.Relations {
		names = append(names, name)
	}
	sort.Strings(names)

	position := 0
	for _, name := range names {
		for _, toID := range rec.Relations[name] {
			_, err := tx.Exec(ctx, `
				INSERT INTO relations (from_id, to_id, position)
				VALUES ($1, $2, $3)`,
				rec.ID, toID, position)
			if err != nil {
				return fmt.Errorf("linking record %d to %d: %w", rec.ID, toID, err)
			}
			position++
		}
	}
	return nil
}

// GetByID loads a record with its field tree, taxonomy, and relations.
func (s *ContentStore) GetByID(ctx context.Context, id int64) (*content.Content, error) {
	var (
		contentType string
		status      string
		authorID    *string
		createdAt   time.Time
		modifiedAt  time.Time
		publishedAt *time.Time
		depublished *time.Time
	)
	err := s.db.Pool().QueryRow(ctx, `
		SELECT content_type, status, author_id, created_at, modified_at, published_at, depublished_at
		FROM content WHERE id = $1`, id,
	).Scan(&contentType, &status, &authorID, &createdAt, &modifiedAt, &publishedAt, &depublished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading record %d: %w", id, err)
	}

	ct, ok := s.registry.Get(contentType)
	if !ok {
		return nil, fmt.Errorf("record %d has unknown content type %q", id, contentType)
	}

	tree, err := s.loadFields(ctx, id, &ct)
	if err != nil {
		return nil, err
	}

	rec := content.Restore(&ct, tree)
	rec.ID = id
	rec.Status = schema.Status(status)
	rec.CreatedAt = createdAt
	rec.ModifiedAt = modifiedAt
	rec.PublishedAt = publishedAt
	rec.DepublishedAt = depublished
	if authorID != nil {
		rec.AuthorID = *authorID
	}

	if err := s.loadTaxonomy(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindOneByID resolves a related record, yielding nil for missing ids. It
// implements the reconciliation engine's record lookup collaborator.
func (s *ContentStore) FindOneByID(ctx context.Context, id int64) (*content.Content, error) {
	rec, err := s.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// List returns one page of records of a content type, newest first, with
// the total count. A non-blank query narrows the page to records whose
// field values match it.
func (s *ContentStore) List(ctx context.Context, contentType, query string, page, perPage int) ([]*content.Content, int, error) {
	where := `WHERE content_type = $1`
	args := []any{contentType}
	if clause, searchArgs := search.BuildClause(query, len(args)+1); clause != "" {
		where += " AND " + clause
		args = append(args, searchArgs...)
	}

	var total int
	err := s.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM content `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting %s records: %w", contentType, err)
	}

	if page < 1 {
		page = 1
	}
	limitArgs := append(args, perPage, (page-1)*perPage)
	rows, err := s.db.Pool().Query(ctx, fmt.Sprintf(`
		SELECT id FROM content
		%s
		ORDER BY modified_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2),
		limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s records: %w", contentType, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, 0, fmt.Errorf("scanning %s ids: %w", contentType, err)
	}

	records := make([]*content.Content, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, nil
}

// Delete removes a record; field, taxonomy, and relation rows cascade.
func (s *ContentStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Pool().Exec(ctx, `DELETE FROM content WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type fieldRow struct {
	FieldID   int
	ParentID  int
	Name      string
	Type      string
	Locale    string
	SortOrder int
	Value     []byte
}

// loadFields rebuilds the record's field tree: values first, then the
// hierarchy in stored sibling order, then translations.
func (s *ContentStore) loadFields(ctx context.Context, id int64, ct *schema.ContentType) (*field.Tree, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT field_id, parent_id, name, type, locale, sort_order, value
		FROM fields
		WHERE content_id = $1
		ORDER BY parent_id, sort_order, field_id`, id)
	if err != nil {
		return nil, fmt.Errorf("loading fields of record %d: %w", id, err)
	}
	frows, err := pgx.CollectRows(rows, pgx.RowToStructByPos[fieldRow])
	if err != nil {
		return nil, fmt.Errorf("scanning fields of record %d: %w", id, err)
	}

	tree := field.NewTree(ct)
	byID := make(map[int]fieldRow, len(frows))
	values := make(map[int]*field.Value, len(frows))
	for _, row := range frows {
		byID[row.FieldID] = row
	}

	for _, row := range frows {
		var raw any
		if len(row.Value) > 0 {
			if err := json.Unmarshal(row.Value, &raw); err != nil {
				return nil, fmt.Errorf("decoding field %q of record %d: %w", row.Name, id, err)
			}
		}
		def := definitionFor(ct, byID, row)
		v := tree.RestoreValue(row.FieldID, def, row.Name,
			schema.FieldType(row.Type), row.Locale, row.SortOrder, raw)
		values[row.FieldID] = v
	}

	// Rows are ordered by (parent, sort_order), so attaching in row order
	// reproduces each parent's child ordering.
	for _, row := range frows {
		v := values[row.FieldID]
		if row.ParentID == 0 {
			tree.AttachRoot(v)
			continue
		}
		parent, ok := values[row.ParentID]
		if !ok {
			return nil, fmt.Errorf("field %q of record %d references missing parent %d",
				row.Name, id, row.ParentID)
		}
		tree.Attach(parent, v)
	}

	if err := s.loadTranslations(ctx, id, values); err != nil {
		return nil, err
	}
	return tree, nil
}

func (s *ContentStore) loadTranslations(ctx context.Context, id int64, values map[int]*field.Value) error {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT field_id, locale, value
		FROM field_translations
		WHERE content_id = $1`, id)
	if err != nil {
		return fmt.Errorf("loading translations of record %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			fieldID int
			locale  string
			payload []byte
		)
		if err := rows.Scan(&fieldID, &locale, &payload); err != nil {
			return fmt.Errorf("scanning translation of record %d: %w", id, err)
		}
		v, ok := values[fieldID]
		if !ok {
			continue
		}
		var raw any
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &raw); err != nil {
				return fmt.Errorf("decoding %s translation of field %q: %w", locale, v.Name, err)
			}
		}
		v.SetTranslation(locale, raw)
	}
	return rows.Err()
}

func (s *ContentStore) loadTaxonomy(ctx context.Context, rec *content.Content) error {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT t.taxonomy, t.slug
		FROM taxonomy_terms t
		JOIN content_taxonomy ct ON ct.term_id = t.id
		WHERE ct.content_id = $1
		ORDER BY t.taxonomy, t.slug`, rec.ID)
	if err != nil {
		return fmt.Errorf("loading taxonomy of record %d: %w", rec.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var taxonomy, slug string
		if err := rows.Scan(&taxonomy, &slug); err != nil {
			return fmt.Errorf("scanning taxonomy of record %d: %w", rec.ID, err)
		}
		rec.Taxonomies[taxonomy] = append(rec.Taxonomies[taxonomy], slug)
	}
	return rows.Err()
}

func (s *ContentStore) loadRelations(ctx context.Context, rec *content.Content) error {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT c.content_type, r.to_id
		FROM relations r
		JOIN content c ON c.id = r.to_id
		WHERE r.from_id = $1
		ORDER BY r.position`, rec.ID)
	if err != nil {
		return fmt.Errorf("loading relations of record %d: %w", rec.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			contentType string
			toID        int64
		)
		if err := rows.Scan(&contentType, &toID); err != nil {
			return fmt.Errorf("scanning relations of record %d: %w", rec.ID, err)
		}
		rec.Relations[contentType] = append(rec.Relations[contentType], toID)
	}
	return rows.Err()
}

// definitionFor resolves a stored field's current definition by walking up
// its parent chain. Fields no longer declared resolve to nil.
func definitionFor(ct *schema.ContentType, rows map[int]fieldRow, row fieldRow) *schema.FieldDefinition {
	if row.ParentID == 0 {
		return ct.Field(row.Name)
	}
	parent, ok := rows[row.ParentID]
	if !ok {
		return nil
	}
	parentDef := definitionFor(ct, rows, parent)
	if parentDef == nil {
		return nil
	}
	return parentDef.Field(row.Name)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
