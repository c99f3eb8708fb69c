// Package field implements the runtime field value tree of a content
// record: typed field values materialized from content type definitions,
// with composite values (set, collection) owning ordered child values.
//
// Values are stored arena-style, addressed by integer id. Composite values
// hold ordered lists of child ids and children keep a non-owning id
// reference to their parent, so ownership flows strictly parent to children
// and bulk teardown is a cascade over id lookups.
package field

import (
	"github.com/strata-cms/strata/internal/schema"
)

// Value is one field value of a content record. Its type tag is stamped
// from the definition at creation time; the payload interpretation depends
// on that tag.
type Value struct {
	// ID addresses the value inside its Tree. Zero means detached (used for
	// ephemeral hydration views).
	ID int

	// Name is the field name, unique among siblings.
	Name string

	// Type is the type tag copied from the definition.
	Type schema.FieldType

	// Locale is set only on values of translatable fields.
	Locale string

	// SortOrder is the position among siblings in a composite parent.
	SortOrder int

	raw          any
	def          *schema.FieldDefinition
	translations map[string]any
}

// Definition returns the field definition this value was created from.
// May be nil for values hydrated without a live definition.
func (v *Value) Definition() *schema.FieldDefinition {
	return v.def
}

// SetDefinition attaches a definition to the value and stamps its type tag,
// making definition-derived defaults available without re-parsing.
func (v *Value) SetDefinition(def *schema.FieldDefinition) {
	v.def = def
	if def != nil {
		v.Type = def.Type
	}
}

// Raw returns the stored payload without type-specific hydration.
func (v *Value) Raw() any {
	return v.raw
}

// rootID is the pseudo-parent of top-level values.
const rootID = 0

// Tree is the arena of field values belonging to one content record.
type Tree struct {
	contentType *schema.ContentType

	nextID   int
	nodes    map[int]*Value
	parents  map[int]int
	children map[int][]int
}

// NewTree creates an empty field value tree for a record of the given
// content type. The content type may be nil for detached trees.
func NewTree(ct *schema.ContentType) *Tree {
	return &Tree{
		contentType: ct,
		nextID:      1,
		nodes:       map[int]*Value{},
		parents:     map[int]int{},
		children:    map[int][]int{},
	}
}

// ContentType returns the definition of the owning record, if any.
func (t *Tree) ContentType() *schema.ContentType {
	return t.contentType
}

// Create allocates a new value from the given definition. The value is not
// yet attached anywhere; use Attach or AttachRoot. An unknown type tag
// produces a generic value rather than an error.
func (t *Tree) Create(def *schema.FieldDefinition, name string) *Value {
	v := &Value{
		ID:   t.nextID,
		Name: name,
	}
	t.nextID++

	v.SetDefinition(def)
	if name == "" && def != nil {
		v.Name = def.Name
	}

	t.nodes[v.ID] = v
	return v
}

// RestoreValue recreates a stored value with its persisted id, type tag,
// and payload. The stored tag is kept even when the current definition
// disagrees, so stale values remain detectable. The value is not attached;
// callers rebuild the hierarchy afterwards with Attach or AttachRoot once
// all parents exist.
func (t *Tree) RestoreValue(id int, def *schema.FieldDefinition, name string, typ schema.FieldType, locale string, sortOrder int, raw any) *Value {
	v := &Value{
		ID:        id,
		Name:      name,
		Type:      typ,
		Locale:    locale,
		SortOrder: sortOrder,
		raw:       raw,
		def:       def,
	}
	t.nodes[id] = v
	if id >= t.nextID {
		t.nextID = id + 1
	}
	return v
}

// AttachRoot appends the value to the record's top-level field list.
func (t *Tree) AttachRoot(v *Value) {
	t.attach(rootID, v)
}

// Attach appends child to the parent composite's ordered child list. A
// child belongs to exactly one parent; attaching an already-attached value
// moves it.
func (t *Tree) Attach(parent, child *Value) {
	t.attach(parent.ID, child)
}

func (t *Tree) attach(parentID int, child *Value) {
	if prev, ok := t.parents[child.ID]; ok {
		t.children[prev] = removeID(t.children[prev], child.ID)
	}
	t.parents[child.ID] = parentID
	t.children[parentID] = append(t.children[parentID], child.ID)
}

// Root returns the record's top-level values in attachment order.
func (t *Tree) Root() []*Value {
	return t.resolve(t.children[rootID])
}

// Children returns the ordered child values of a composite value.
func (t *Tree) Children(v *Value) []*Value {
	return t.resolve(t.children[v.ID])
}

// Parent returns the owning composite of v, or nil when v is a top-level
// value. The relationship is navigational only.
func (t *Tree) Parent(v *Value) *Value {
	pid, ok := t.parents[v.ID]
	if !ok || pid == rootID {
		return nil
	}
	return t.nodes[pid]
}

// Get returns the top-level value with the given name, or nil.
func (t *Tree) Get(name string) *Value {
	for _, id := range t.children[rootID] {
		if v := t.nodes[id]; v != nil && v.Name == name {
			return v
		}
	}
	return nil
}

// Has reports whether a top-level value with the given name exists. With
// matchType set it additionally requires the stored type tag to match what
// the definition implies, which is how stale values are detected after a
// content type change.
func (t *Tree) Has(name string, matchType bool) bool {
	v := t.Get(name)
	if v == nil {
		return false
	}
	if !matchType {
		return true
	}

	if t.contentType == nil {
		return true
	}
	def := t.contentType.Field(name)
	return def != nil && def.Type == v.Type
}

// Remove detaches v from its parent and removes it and all its descendants
// from the tree. The removed values are returned, depth-first, so callers
// can hand them to the persistence layer for deletion.
func (t *Tree) Remove(v *Value) []*Value {
	if pid, ok := t.parents[v.ID]; ok {
		t.children[pid] = removeID(t.children[pid], v.ID)
	}
	return t.destroy(v)
}

// RemoveChildren removes all children of a composite value, cascading to
// grandchildren, and returns the removed values.
func (t *Tree) RemoveChildren(v *Value) []*Value {
	var removed []*Value
	for _, child := range t.Children(v) {
		removed = append(removed, t.destroy(child)...)
	}
	t.children[v.ID] = nil
	return removed
}

// All returns every value in the tree, in no particular order.
func (t *Tree) All() []*Value {
	out := make([]*Value, 0, len(t.nodes))
	for _, v := range t.nodes {
		out = append(out, v)
	}
	return out
}

func (t *Tree) destroy(v *Value) []*Value {
	removed := []*Value{v}
	for _, id := range t.children[v.ID] {
		if child := t.nodes[id]; child != nil {
			removed = append(removed, t.destroy(child)...)
		}
	}
	delete(t.children, v.ID)
	delete(t.parents, v.ID)
	delete(t.nodes, v.ID)
	return removed
}

func (t *Tree) resolve(ids []int) []*Value {
	out := make([]*Value, 0, len(ids))
	for _, id := range ids {
		if v := t.nodes[id]; v != nil {
			out = append(out, v)
		}
	}
	return out
}

func removeID(ids []int, id int) []int {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
