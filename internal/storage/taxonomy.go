package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/strata-cms/strata/internal/database"
	"github.com/strata-cms/strata/internal/reconcile"
	"github.com/strata-cms/strata/internal/text"
)

// TaxonomyStore resolves taxonomy terms for the reconciliation engine.
type TaxonomyStore struct {
	db *database.DB
}

// NewTaxonomyStore creates a term store on the given database.
func NewTaxonomyStore(db *database.DB) *TaxonomyStore {
	return &TaxonomyStore{db: db}
}

// FindOneBy returns the term with the given taxonomy and slug, or nil when
// no such term exists.
func (s *TaxonomyStore) FindOneBy(ctx context.Context, taxonomy, slug string) (*reconcile.Term, error) {
	var name string
	err := s.db.Pool().QueryRow(ctx,
		`SELECT name FROM taxonomy_terms WHERE taxonomy = $1 AND slug = $2`,
		taxonomy, slug,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up term %s/%s: %w", taxonomy, slug, err)
	}
	return &reconcile.Term{Taxonomy: taxonomy, Slug: slug, Name: name}, nil
}

// Factory creates a fresh, not-yet-persisted term with a humanized display
// name. The term row is written when the owning record is saved.
func (s *TaxonomyStore) Factory(taxonomy, slug string) *reconcile.Term {
	return &reconcile.Term{
		Taxonomy: taxonomy,
		Slug:     text.Slugify(slug),
		Name:     text.Humanize(slug),
	}
}
