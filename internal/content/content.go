// Package content models a single content record: its lifecycle status,
// timestamps, authorship, taxonomy assignments, relations, and the field
// value tree holding the record's editable data.
package content

import (
	"fmt"
	"time"

	"github.com/strata-cms/strata/internal/field"
	"github.com/strata-cms/strata/internal/schema"
)

// Content is one record of a content type.
type Content struct {
	ID          int64
	ContentType string

	Status        schema.Status
	CreatedAt     time.Time
	ModifiedAt    time.Time
	PublishedAt   *time.Time
	DepublishedAt *time.Time

	// AuthorID is the creating admin's id, empty for system-created records.
	AuthorID string

	// Taxonomies maps a taxonomy name to the assigned term slugs.
	Taxonomies map[string][]string

	// Relations maps a related content type slug to related record ids.
	Relations map[string][]int64

	definition *schema.ContentType
	fields     *field.Tree
}

// New creates an empty record of the given content type with the type's
// default status and an empty field tree.
func New(ct *schema.ContentType) *Content {
	now := time.Now()
	return &Content{
		ContentType: ct.Slug,
		Status:      ct.DefaultStatus,
		CreatedAt:   now,
		ModifiedAt:  now,
		Taxonomies:  map[string][]string{},
		Relations:   map[string][]int64{},
		definition:  ct,
		fields:      field.NewTree(ct),
	}
}

// Restore rebuilds a record loaded from storage around the given definition
// and field tree.
func Restore(ct *schema.ContentType, fields *field.Tree) *Content {
	c := New(ct)
	if fields != nil {
		c.fields = fields
	}
	return c
}

// Definition returns the content type this record belongs to.
func (c *Content) Definition() *schema.ContentType {
	return c.definition
}

// Fields returns the record's field value tree.
func (c *Content) Fields() *field.Tree {
	return c.fields
}

// GetField returns the named top-level field value, or nil when unset.
func (c *Content) GetField(name string) *field.Value {
	return c.fields.Get(name)
}

// HasField reports whether the record holds a value for the named field.
func (c *Content) HasField(name string) bool {
	return c.fields.Has(name, false)
}

// SetStatus updates the record status. Unknown statuses are rejected so a
// malformed submission cannot take a record out of the lifecycle.
func (c *Content) SetStatus(status schema.Status) error {
	if !schema.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	c.Status = status
	c.ModifiedAt = time.Now()
	return nil
}

// Touch bumps the modification timestamp.
func (c *Content) Touch() {
	c.ModifiedAt = time.Now()
}

// IsPublished reports whether the record is currently visible to the public
// site: published outright, or timed with a publication date in the past.
func (c *Content) IsPublished(now time.Time) bool {
	switch c.Status {
	case schema.StatusPublished:
		return true
	case schema.StatusTimed:
		return c.PublishedAt != nil && !c.PublishedAt.After(now)
	default:
		return false
	}
}
