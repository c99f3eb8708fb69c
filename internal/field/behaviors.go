package field

import (
	"fmt"
	"sort"

	"github.com/strata-cms/strata/internal/schema"
	"github.com/strata-cms/strata/internal/text"
)

// SetValue applies a submitted payload to v, dispatching on its type tag.
// Unknown tags get the generic leaf behavior.
func (t *Tree) SetValue(v *Value, raw any) {
	switch v.Type {
	case schema.FieldTypeSlug:
		t.setSlug(v, raw)
	case schema.FieldTypeSet:
		if fields, ok := raw.([]*Value); ok {
			t.SetChildren(v, fields)
			return
		}
		v.raw = raw
	default:
		v.raw = sanitized(v.def, raw)
	}
}

// setSlug implements the slug field update: a sequence payload collapses to
// its first element, the result is slugified, and a purely numeric slug is
// prefixed with the owning content type's singular slug unless numeric slugs
// are explicitly allowed. The prefix keeps slugs distinguishable from raw
// numeric record ids.
func (t *Tree) setSlug(v *Value, raw any) {
	s := firstString(raw)
	s = text.Slugify(s)

	allowNumeric := v.def != nil && v.def.AllowNumeric
	if text.IsNumeric(s) && !allowNumeric && t.contentType != nil {
		s = t.contentType.SingularSlug + "-" + s
	}

	v.raw = s
}

// SetChildren replaces a set value's children with the given fields: they
// are re-keyed by name, fields not declared in the definition are dropped,
// and the survivors are re-sorted into the definition's declared order.
// Declared fields absent from the input remain unset. Replaced children are
// destroyed and returned for persistence cleanup.
func (t *Tree) SetChildren(v *Value, fields []*Value) []*Value {
	if v.def == nil {
		return nil
	}

	byName := make(map[string]*Value, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	keep := make(map[int]bool, len(fields))
	var ordered []*Value
	for i := range v.def.Fields {
		child, ok := byName[v.def.Fields[i].Name]
		if !ok {
			continue
		}
		child.SetDefinition(&v.def.Fields[i])
		ordered = append(ordered, child)
		keep[child.ID] = true
	}

	var removed []*Value
	for _, old := range t.Children(v) {
		if !keep[old.ID] {
			removed = append(removed, t.destroy(old)...)
		}
	}

	t.children[v.ID] = nil
	for _, child := range ordered {
		t.attach(v.ID, child)
	}

	return removed
}

// Child returns the named child of a set value, materializing the set's
// children from its definition on first access. Names outside the
// definition yield nil.
func (t *Tree) Child(v *Value, name string) *Value {
	t.materializeSet(v)
	for _, child := range t.Children(v) {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// materializeSet lazily constructs one child per definition entry, in
// definition order, for a set value that has none yet.
func (t *Tree) materializeSet(v *Value) {
	if v.Type != schema.FieldTypeSet || v.def == nil {
		return
	}
	if len(t.children[v.ID]) > 0 {
		return
	}

	for i := range v.def.Fields {
		child := t.Create(&v.def.Fields[i], v.def.Fields[i].Name)
		t.attach(v.ID, child)
	}
}

// Hydrated returns the value as consumers should see it: set values yield
// their ordered children (materialized from the definition when absent),
// filelist and imagelist values yield ephemeral per-file field values, and
// everything else yields the stored payload.
func (t *Tree) Hydrated(v *Value) any {
	switch v.Type {
	case schema.FieldTypeSet:
		t.materializeSet(v)
		return t.Children(v)
	case schema.FieldTypeFilelist:
		return fileViews(v, schema.FieldTypeFile)
	case schema.FieldTypeImagelist:
		return fileViews(v, schema.FieldTypeImage)
	default:
		return v.raw
	}
}

// fileViews projects the raw stored filename entries into detached
// single-file values: a read-only hydration view, not the stored
// representation.
func fileViews(v *Value, itemType schema.FieldType) []*Value {
	var out []*Value

	appendView := func(name string, file any) {
		out = append(out, &Value{
			Name: name,
			Type: itemType,
			raw:  file,
		})
	}

	switch raw := v.raw.(type) {
	case []any:
		for i, file := range raw {
			appendView(fmt.Sprintf("%d", i), file)
		}
	case []string:
		for i, file := range raw {
			appendView(fmt.Sprintf("%d", i), file)
		}
	case map[string]any:
		for _, key := range sortedKeys(raw) {
			appendView(key, raw[key])
		}
	}

	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// firstString extracts a string from a scalar or the first element of a
// sequence payload.
func firstString(raw any) string {
	switch val := raw.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
