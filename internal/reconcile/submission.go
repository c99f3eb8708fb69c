// Package reconcile applies an edit-form submission to a content record's
// field value tree: it computes the insertions, updates, and removals that
// bring the tree in sync with the submitted data, respecting declaration
// order, locales, and type compatibility.
package reconcile

import (
	"net/url"
	"strings"
)

// Submission is the decoded shape of an edit-form post.
type Submission struct {
	Status        string
	PublishedAt   string
	DepublishedAt string

	// Fields holds simple top-level field payloads by field name.
	Fields map[string]any

	// Sets holds nested payloads of set fields: set name to child name to
	// payload.
	Sets map[string]map[string]any

	// Collections holds the submitted instances and explicit ordering of
	// collection fields, by collection name.
	Collections map[string]CollectionInput

	// Taxonomy holds the submitted term lists per taxonomy name. Payloads
	// may be plain lists or JSON-encoded arrays.
	Taxonomy map[string]any

	// Relationship is the submitted list of related record ids.
	Relationship []string

	// CollectionKeys maps a collection name to existing child value ids and
	// the ordering key each occupied in the form, used to carry translations
	// across a collection rebuild.
	CollectionKeys map[string]map[string]string
}

// CollectionInput is one collection field's submitted state.
type CollectionInput struct {
	// Order lists the opaque ordering keys in their submitted sequence.
	Order []string

	// Items maps a child field name to its instances keyed by ordering key.
	Items map[string]map[string]any
}

// DecodeForm expands a flat form post using the bracketed naming convention
// (fields[title], sets[contact][email], collections[blocks][heading][k1],
// collections[blocks][order][], taxonomy[tags][], relationship[]) into a
// structured Submission. Unknown top-level keys are ignored.
func DecodeForm(form url.Values) Submission {
	sub := Submission{
		Fields:         map[string]any{},
		Sets:           map[string]map[string]any{},
		Collections:    map[string]CollectionInput{},
		Taxonomy:       map[string]any{},
		CollectionKeys: map[string]map[string]string{},
	}

	for key, values := range form {
		path := splitFormKey(key)
		if len(path) == 0 || len(values) == 0 {
			continue
		}

		switch path[0] {
		case "status":
			sub.Status = values[0]
		case "publishedAt":
			sub.PublishedAt = values[0]
		case "depublishedAt":
			sub.DepublishedAt = values[0]
		case "fields":
			if len(path) >= 2 {
				sub.Fields[path[1]] = formValue(path[2:], values)
			}
		case "sets":
			if len(path) >= 3 {
				set := sub.Sets[path[1]]
				if set == nil {
					set = map[string]any{}
					sub.Sets[path[1]] = set
				}
				set[path[2]] = formValue(path[3:], values)
			}
		case "collections":
			decodeCollectionKey(&sub, path, values)
		case "taxonomy":
			if len(path) >= 2 {
				sub.Taxonomy[path[1]] = formValue(path[2:], values)
			}
		case "relationship":
			sub.Relationship = append(sub.Relationship, values...)
		case "keys-collections":
			if len(path) >= 3 {
				keys := sub.CollectionKeys[path[1]]
				if keys == nil {
					keys = map[string]string{}
					sub.CollectionKeys[path[1]] = keys
				}
				keys[path[2]] = values[0]
			}
		}
	}

	return sub
}

// decodeCollectionKey handles collections[name][order][] and
// collections[name][childName][orderKey] form entries.
func decodeCollectionKey(sub *Submission, path []string, values []string) {
	if len(path) < 3 {
		return
	}
	name := path[1]
	input := sub.Collections[name]

	if path[2] == "order" {
		input.Order = append(input.Order, values...)
		sub.Collections[name] = input
		return
	}

	if len(path) < 4 {
		return
	}
	if input.Items == nil {
		input.Items = map[string]map[string]any{}
	}
	instances := input.Items[path[2]]
	if instances == nil {
		instances = map[string]any{}
		input.Items[path[2]] = instances
	}
	instances[path[3]] = formValue(path[4:], values)
	sub.Collections[name] = input
}

// formValue picks the scalar or list representation of a form entry: a
// trailing empty bracket or multiple submitted values yield a list.
func formValue(rest []string, values []string) any {
	multi := len(values) > 1
	for _, seg := range rest {
		if seg == "" {
			multi = true
		}
	}
	if multi {
		out := make([]any, len(values))
		for i, v := range values {
			out[i] = v
		}
		return out
	}
	return values[0]
}

// splitFormKey splits a bracketed form key into its path segments. A
// trailing "[]" yields an empty final segment.
func splitFormKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return []string{key}
	}

	path := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return path
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return path
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return path
}
