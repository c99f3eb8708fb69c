// Package audit records significant admin actions in the audit_log table.
// Events are written asynchronously so logging never blocks a request.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strata-cms/strata/internal/database"
)

// Entry is one row of the audit log.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	ActorID    *string        `json:"actor_id,omitempty"`
	Resource   *string        `json:"resource,omitempty"`
	ResourceID *string        `json:"resource_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filters narrows an audit listing. Empty fields match everything.
type Filters struct {
	Action   string
	Resource string
}

// Repository reads and writes the audit_log table.
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes one event. Empty ActorID, Resource, and ResourceID values
// are stored as NULL.
func (r *Repository) Insert(ctx context.Context, event Event) error {
	var payloadJSON []byte
	if event.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("encoding audit payload: %w", err)
		}
	}

	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO audit_log (action, actor_id, resource, resource_id, payload)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.Action,
		nullIfEmpty(event.ActorID),
		nullIfEmpty(event.Resource),
		nullIfEmpty(event.ResourceID),
		nullableJSON(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// List returns one page of entries matching the filters, newest first,
// with the total count. Pagination parameters must already be clamped.
func (r *Repository) List(ctx context.Context, filters Filters, page, perPage int) ([]*Entry, int, error) {
	// Column names are constants; only filter values are parameterized.
	var conditions []string
	var args []any
	paramIdx := 1

	if filters.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", paramIdx))
		args = append(args, filters.Action)
		paramIdx++
	}
	if filters.Resource != "" {
		conditions = append(conditions, fmt.Sprintf("resource = $%d", paramIdx))
		args = append(args, filters.Resource)
		paramIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_log %s", whereClause)
	var total int
	if err := r.db.Pool().QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	offset := (page - 1) * perPage
	selectQuery := fmt.Sprintf(
		`SELECT id, action, actor_id, resource, resource_id, payload, created_at
		 FROM audit_log %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`,
		whereClause, paramIdx, paramIdx+1,
	)
	args = append(args, perPage, offset)

	rows, err := r.db.Pool().Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Entry, error) {
		var e Entry
		var payloadJSON []byte
		if err := row.Scan(&e.ID, &e.Action, &e.ActorID, &e.Resource, &e.ResourceID, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if payloadJSON != nil {
			if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
				return nil, fmt.Errorf("decoding audit payload: %w", err)
			}
		}
		return &e, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scanning audit entries: %w", err)
	}

	return entries, total, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
