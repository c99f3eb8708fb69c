// Package media handles uploaded files for the Strata admin API: accepting
// uploads against the configured extension list, storing them on disk,
// serving them back, and rendering image thumbnails on demand.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strata-cms/strata/internal/database"
)

// ErrNotFound is returned when a media record does not exist.
var ErrNotFound = errors.New("media not found")

// Media is one uploaded file. Filename is the generated name the file is
// stored and served under; OriginalName is what the uploader called it.
// Width and Height are set for decodable images only.
type Media struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Width        *int      `json:"width,omitempty"`
	Height       *int      `json:"height,omitempty"`
	UploadedBy   *string   `json:"uploaded_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const mediaColumns = `id, filename, original_name, mime_type, size, width, height, uploaded_by, created_at`

// Repository persists media records.
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

func scanMedia(row pgx.CollectableRow) (*Media, error) {
	m := &Media{}
	err := row.Scan(&m.ID, &m.Filename, &m.OriginalName, &m.MimeType,
		&m.Size, &m.Width, &m.Height, &m.UploadedBy, &m.CreatedAt)
	return m, err
}

// Insert stores a new record and fills in the generated id and timestamp.
func (r *Repository) Insert(ctx context.Context, m *Media) error {
	err := r.db.Pool().QueryRow(ctx,
		`INSERT INTO media (filename, original_name, mime_type, size, width, height, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		m.Filename, m.OriginalName, m.MimeType, m.Size, m.Width, m.Height, m.UploadedBy,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting media record: %w", err)
	}
	return nil
}

// FindByID looks a record up by its id. The id is compared textually so a
// malformed value reads as absent rather than a query error.
func (r *Repository) FindByID(ctx context.Context, id string) (*Media, error) {
	return r.findOne(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE id::text = $1`, id)
}

// FindByFilename looks a record up by its generated filename.
func (r *Repository) FindByFilename(ctx context.Context, filename string) (*Media, error) {
	return r.findOne(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE filename = $1`, filename)
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (*Media, error) {
	rows, err := r.db.Pool().Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying media: %w", err)
	}

	m, err := pgx.CollectOneRow(rows, scanMedia)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning media record: %w", err)
	}
	return m, nil
}

// List returns one page of records, newest first, with the total count.
func (r *Repository) List(ctx context.Context, page, perPage int) ([]*Media, int, error) {
	var total int
	if err := r.db.Pool().QueryRow(ctx, `SELECT count(*) FROM media`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting media: %w", err)
	}
	if total == 0 {
		return []*Media{}, 0, nil
	}

	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+mediaColumns+` FROM media
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("listing media: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanMedia)
	if err != nil {
		return nil, 0, fmt.Errorf("scanning media rows: %w", err)
	}
	return items, total, nil
}

// Delete removes a record, reporting ErrNotFound when nothing matched.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM media WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
