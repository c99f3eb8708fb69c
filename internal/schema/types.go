// Package schema handles loading, parsing, and normalizing the YAML content
// type definitions that drive the Strata CMS: which content types exist,
// which fields they carry, and how those fields behave at runtime.
package schema

// FieldType is the type tag of a content field.
type FieldType string

// Supported field types. Composite types (set, collection) own nested child
// definitions; everything else is a leaf.
const (
	FieldTypeText           FieldType = "text"
	FieldTypeTextarea       FieldType = "textarea"
	FieldTypeHTML           FieldType = "html"
	FieldTypeMarkdown       FieldType = "markdown"
	FieldTypeSlug           FieldType = "slug"
	FieldTypeSelect         FieldType = "select"
	FieldTypeNumber         FieldType = "number"
	FieldTypeDate           FieldType = "date"
	FieldTypeCheckbox       FieldType = "checkbox"
	FieldTypeEmail          FieldType = "email"
	FieldTypeEmbed          FieldType = "embed"
	FieldTypeImage          FieldType = "image"
	FieldTypeImagelist      FieldType = "imagelist"
	FieldTypeFile           FieldType = "file"
	FieldTypeFilelist       FieldType = "filelist"
	FieldTypeSet            FieldType = "set"
	FieldTypeCollection     FieldType = "collection"
	FieldTypeRepeater       FieldType = "repeater"
	FieldTypeTaxonomy       FieldType = "taxonomy"
	FieldTypeRelation       FieldType = "relation"
	FieldTypeTemplateselect FieldType = "templateselect"
)

// KnownFieldTypes is the closed set of type tags with dedicated runtime
// behavior. Tags outside this set fall back to a generic field value; they
// are tolerated, not rejected, so that schema drift between config versions
// does not break existing records.
var KnownFieldTypes = map[FieldType]bool{
	FieldTypeText:           true,
	FieldTypeTextarea:       true,
	FieldTypeHTML:           true,
	FieldTypeMarkdown:       true,
	FieldTypeSlug:           true,
	FieldTypeSelect:         true,
	FieldTypeNumber:         true,
	FieldTypeDate:           true,
	FieldTypeCheckbox:       true,
	FieldTypeEmail:          true,
	FieldTypeEmbed:          true,
	FieldTypeImage:          true,
	FieldTypeImagelist:      true,
	FieldTypeFile:           true,
	FieldTypeFilelist:       true,
	FieldTypeSet:            true,
	FieldTypeCollection:     true,
	FieldTypeRepeater:       true,
	FieldTypeTaxonomy:       true,
	FieldTypeRelation:       true,
	FieldTypeTemplateselect: true,
}

// Status is the publication state of a content record.
type Status string

// The closed status enumeration. Anything else is invalid and is either
// defaulted (parser) or ignored (reconciliation).
const (
	StatusPublished Status = "published"
	StatusHeld      Status = "held"
	StatusTimed     Status = "timed"
	StatusDraft     Status = "draft"
)

// ValidStatus reports whether s is a member of the status enumeration.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPublished, StatusHeld, StatusTimed, StatusDraft:
		return true
	}
	return false
}

// FieldDefinition is the normalized configuration of one field of a content
// type. It is built once by the parser and treated as read-only afterwards.
type FieldDefinition struct {
	// Name is the canonicalized field key, unique within its parent.
	Name string

	// Type is the field's type tag. Always non-empty after a successful parse.
	Type FieldType

	// Label is the display string, defaulted to a title-cased Name.
	Label string

	// Group is the editing tab this field appears under. Fields without an
	// explicit group inherit the group of the preceding field.
	Group string

	// AllowHTML permits raw HTML in the stored value. Defaults to true for
	// html and markdown fields.
	AllowHTML bool

	// Sanitise runs the stored value through the HTML sanitizer on update.
	// Defaults to true for text, textarea, html, and markdown fields.
	Sanitise bool

	// Localize marks the field as translatable; localized field values carry
	// the edit locale, all others never do.
	Localize bool

	// AllowNumeric permits purely numeric slug values. Only meaningful on
	// slug fields.
	AllowNumeric bool

	// Uses lists the source fields a slug field is generated from.
	Uses []string

	// Extensions is the allowed file extension list for file and image
	// fields, defaulted from the globally accepted file types.
	Extensions []string

	// Values holds the option-key to option-label mapping for select fields.
	Values map[string]string

	// Default is the configured default value, if any.
	Default any

	// Fields holds the ordered child definitions for composite types.
	Fields []FieldDefinition
}

// Field returns the child definition with the given name, or nil.
func (d *FieldDefinition) Field(name string) *FieldDefinition {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// IsComposite reports whether the definition's type owns child field values.
func (d *FieldDefinition) IsComposite() bool {
	return d.Type == FieldTypeSet || d.Type == FieldTypeCollection
}

// Relation is the configuration of one relation a content type may hold to
// another content type.
type Relation struct {
	// Multiple allows more than one related record.
	Multiple bool

	// Limit caps the number of candidate records offered in the picker.
	Limit int

	// Order is the sort applied to candidate records.
	Order string
}

// ContentType is the fully normalized definition of one content type. It is
// built once per parse cycle and must not be mutated afterwards; instances
// are shared across requests without locking.
type ContentType struct {
	// Key is the raw configuration key this content type was parsed from,
	// kept for error reporting.
	Key string

	// Slug and Name identify the content type in the plural; each is derived
	// from the other when only one is configured.
	Slug string
	Name string

	// SingularSlug and SingularName are the singular pair, derived the same way.
	SingularSlug string
	SingularName string

	// ShowOnDashboard and ShowInMenu control backend visibility. Both default
	// to true.
	ShowOnDashboard bool
	ShowInMenu      bool

	// DefaultStatus is the status assigned to new records. Always a member of
	// the status enumeration.
	DefaultStatus Status

	// Viewless content types have no public detail or listing pages.
	Viewless bool

	// IconOne and IconMany are FontAwesome icon names for the backend menu.
	IconOne  string
	IconMany string

	// AllowNumericSlugs permits purely numeric record slugs.
	AllowNumericSlugs bool

	// Singleton content types hold exactly one record; pagination is forced
	// to one record per page.
	Singleton bool

	// RecordTemplate and ListingTemplate are the template filenames used for
	// rendering, derived from the slugs when not configured.
	RecordTemplate  string
	ListingTemplate string

	// ListingRecords and RecordsPerPage control listing pagination.
	ListingRecords int
	RecordsPerPage int

	// Locales lists the locales records of this type can be translated into.
	Locales []string

	// Fields is the ordered field mapping.
	Fields []FieldDefinition

	// Groups is the ordered set of field groups encountered while parsing,
	// plus a synthetic "Relations" group when taxonomies or relations exist.
	Groups []string

	// Sort is the default listing sort: a field name or one of createdAt,
	// modifiedAt, publishedAt, optionally prefixed with "-". Falls back to
	// "id" when the configured target is unknown.
	Sort string

	// Taxonomy lists the taxonomy types attachable to records of this type.
	Taxonomy []string

	// Relations maps related content type slugs to their relation config.
	Relations map[string]Relation
}

// Field returns the top-level field definition with the given name, or nil.
func (ct *ContentType) Field(name string) *FieldDefinition {
	for i := range ct.Fields {
		if ct.Fields[i].Name == name {
			return &ct.Fields[i]
		}
	}
	return nil
}

// HasField reports whether a top-level field with the given name is defined.
func (ct *ContentType) HasField(name string) bool {
	return ct.Field(name) != nil
}
