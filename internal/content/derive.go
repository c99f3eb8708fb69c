package content

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/strata-cms/strata/internal/schema"
)

// titleFieldNames are the field names tried, in order, when deriving a
// display title for a record.
var titleFieldNames = []string{"title", "name", "caption", "subject", "heading"}

// excerptLength caps derived excerpts, in runes.
const excerptLength = 280

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// ComputeTitle derives a display title: the first well-known title field
// with a value, then the first textual field, then a generic fallback
// naming the record.
func (c *Content) ComputeTitle() string {
	for _, name := range titleFieldNames {
		if s := c.fieldString(name); s != "" {
			return s
		}
	}

	if c.definition != nil {
		for _, def := range c.definition.Fields {
			if !textualType(def.Type) {
				continue
			}
			if s := c.fieldString(def.Name); s != "" {
				return s
			}
		}
	}

	name := c.ContentType
	if c.definition != nil && c.definition.SingularName != "" {
		name = c.definition.SingularName
	}
	return fmt.Sprintf("%s #%d", name, c.ID)
}

// ComputeExcerpt derives a plain-text excerpt from the first long-form
// textual field, with markup stripped and the result truncated on a word
// boundary.
func (c *Content) ComputeExcerpt() string {
	if c.definition == nil {
		return ""
	}

	for _, def := range c.definition.Fields {
		switch def.Type {
		case schema.FieldTypeTextarea, schema.FieldTypeHTML, schema.FieldTypeMarkdown:
			if s := c.fieldString(def.Name); s != "" {
				return truncate(stripTags(s), excerptLength)
			}
		}
	}
	return ""
}

// ComputeEditLink returns the admin path for editing this record.
func (c *Content) ComputeEditLink() string {
	return fmt.Sprintf("/admin/content/%s/%d", c.ContentType, c.ID)
}

// fieldString returns the named field's payload as a string, or "".
func (c *Content) fieldString(name string) string {
	v := c.fields.Get(name)
	if v == nil {
		return ""
	}
	s, _ := v.Raw().(string)
	return strings.TrimSpace(s)
}

func textualType(t schema.FieldType) bool {
	switch t {
	case schema.FieldTypeText, schema.FieldTypeTextarea, schema.FieldTypeHTML, schema.FieldTypeMarkdown:
		return true
	}
	return false
}

func stripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most max runes, cutting back to the last full
// word and appending an ellipsis when anything was removed.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	cut := string(runes[:max])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
