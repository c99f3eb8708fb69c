package schema

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/strata-cms/strata/internal/text"
)

// Defaults carries the global configuration values the parser falls back to
// when a content type leaves them unset.
type Defaults struct {
	// ListingRecords is the default number of records on a listing page.
	ListingRecords int

	// RecordsPerPage is the default backend pagination size.
	RecordsPerPage int

	// AcceptFileTypes is the global allow-list of file extensions for file
	// and image fields.
	AcceptFileTypes []string
}

// ConfigurationError reports a structurally invalid content type or field
// definition. The message names the offending content type key and setting
// so a configuration author can fix it without reading code.
type ConfigurationError struct {
	// ContentType is the raw configuration key of the content type the
	// error was found in, when known.
	ContentType string

	// Message describes the missing or invalid setting.
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.ContentType != "" {
		return fmt.Sprintf("content type %q: %s", e.ContentType, e.Message)
	}
	return e.Message
}

// defaultGroup is the field group used when no field declares one.
const defaultGroup = "content"

// imageExtensions is the fixed-order extension candidate list for image
// fields; the effective default is its intersection with the globally
// accepted file types.
var imageExtensions = []string{"gif", "jpg", "jpeg", "png", "svg"}

// compositeWhitelist lists the types whose nested `fields` block is parsed
// into child definitions. Nested fields on any other type are ignored and
// the field is treated as a leaf.
var compositeWhitelist = map[FieldType]bool{
	FieldTypeSet:        true,
	FieldTypeCollection: true,
}

// childBlacklist lists the types that must not appear inside a composite
// field. Children declaring one of these are dropped silently.
var childBlacklist = map[FieldType]bool{
	FieldTypeRepeater:       true,
	FieldTypeSlug:           true,
	FieldTypeTemplateselect: true,
}

// ParseBytes parses raw contenttypes YAML into the normalized content type
// map, keyed by slug.
func ParseBytes(data []byte, defaults Defaults) (map[string]ContentType, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing contenttypes YAML: %w", err)
	}
	return Parse(&root, defaults)
}

// Parse normalizes a parsed YAML document into a map of content type
// definitions keyed by slug. Top-level keys starting with "__" are treated
// as documentation and skipped, as are keys whose value is not a mapping.
// Any structurally invalid content type aborts the whole parse.
func Parse(root *yaml.Node, defaults Defaults) (map[string]ContentType, error) {
	entries, ok := mappingEntries(resolve(root))
	if !ok {
		return map[string]ContentType{}, nil
	}

	contentTypes := make(map[string]ContentType, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.key, "__") {
			continue
		}
		if _, isMap := mappingEntries(e.node); !isMap {
			continue
		}

		ct, err := parseContentType(e.key, e.node, defaults)
		if err != nil {
			return nil, err
		}
		contentTypes[ct.Slug] = ct
	}

	return contentTypes, nil
}

// parseContentType normalizes a single content type mapping. The defaulting
// steps run in a fixed order; later steps may read values established by
// earlier ones but never re-trigger them.
func parseContentType(key string, node *yaml.Node, defaults Defaults) (ContentType, error) {
	entries, _ := mappingEntries(node)
	get := lookupFunc(entries)

	name, hasName := scalarString(get("name"))
	slugValue, hasSlug := scalarString(get("slug"))
	if !hasName && !hasSlug {
		return ContentType{}, &ConfigurationError{
			ContentType: key,
			Message:     "neither \"name\" nor \"slug\" is set",
		}
	}

	singularName, hasSingularName := scalarString(get("singular_name"))
	singularSlug, hasSingularSlug := scalarString(get("singular_slug"))
	if !hasSingularName && !hasSingularSlug {
		return ContentType{}, &ConfigurationError{
			ContentType: key,
			Message:     "neither \"singular_name\" nor \"singular_slug\" is set",
		}
	}

	fieldsNode := get("fields")
	if fieldsNode == nil {
		return ContentType{}, &ConfigurationError{
			ContentType: key,
			Message:     "no \"fields\" are set",
		}
	}

	// Resolve each slug/name pair bidirectionally.
	if !hasSlug {
		slugValue = text.Slugify(name)
	}
	if !hasName {
		name = text.Humanize(slugValue)
	}
	if !hasSingularSlug {
		singularSlug = text.Slugify(singularName)
	}
	if !hasSingularName {
		singularName = text.Humanize(singularSlug)
	}

	ct := ContentType{
		Key:               key,
		Slug:              slugValue,
		Name:              name,
		SingularSlug:      singularSlug,
		SingularName:      singularName,
		ShowOnDashboard:   boolOr(get("show_on_dashboard"), true),
		ShowInMenu:        boolOr(get("show_in_menu"), true),
		Viewless:          boolOr(get("viewless"), false),
		AllowNumericSlugs: boolOr(get("allow_numeric_slugs"), false),
		Singleton:         boolOr(get("singleton"), false),
	}

	status, _ := scalarString(get("default_status"))
	if ValidStatus(Status(status)) {
		ct.DefaultStatus = Status(status)
	} else {
		ct.DefaultStatus = StatusPublished
	}

	ct.IconOne = normalizeIcon(get("icon_one"), "fa-file")
	ct.IconMany = normalizeIcon(get("icon_many"), "fa-copy")

	if tmpl, ok := scalarString(get("record_template")); ok {
		ct.RecordTemplate = tmpl
	} else {
		ct.RecordTemplate = ct.SingularSlug + ".html"
	}
	if tmpl, ok := scalarString(get("listing_template")); ok {
		ct.ListingTemplate = tmpl
	} else {
		ct.ListingTemplate = ct.Slug + ".html"
	}

	// A singleton overrides any configured pagination.
	if ct.Singleton {
		ct.ListingRecords = 1
		ct.RecordsPerPage = 1
	} else {
		ct.ListingRecords = intOr(get("listing_records"), defaults.ListingRecords)
		ct.RecordsPerPage = intOr(get("records_per_page"), defaults.RecordsPerPage)
	}

	ct.Locales = stringList(get("locales"))

	fields, groups, err := parseFields(fieldsNode, defaults)
	if err != nil {
		if cfgErr, ok := err.(*ConfigurationError); ok && cfgErr.ContentType == "" {
			cfgErr.ContentType = key
		}
		return ContentType{}, err
	}
	ct.Fields = fields
	ct.Groups = groups

	ct.Sort = determineSort(&ct, get("sort"))

	ct.Taxonomy = stringList(get("taxonomy"))
	ct.Relations = parseRelations(get("relations"))

	if len(ct.Taxonomy) > 0 || len(ct.Relations) > 0 {
		ct.Groups = append(ct.Groups, "Relations")
	}

	return ct, nil
}

// parseFields walks a content type's fields mapping in declaration order.
// The current group is threaded through explicitly: a field that declares a
// group switches it for all subsequent fields, a field that doesn't inherits
// it. Returns the parsed fields and the ordered set of groups encountered.
func parseFields(node *yaml.Node, defaults Defaults) ([]FieldDefinition, []string, error) {
	entries, ok := mappingEntries(node)
	if !ok {
		return nil, nil, &ConfigurationError{Message: "\"fields\" is not a mapping"}
	}

	currentGroup := defaultGroup
	var fields []FieldDefinition
	var groups []string

	for _, e := range entries {
		def, newGroup, err := parseField(e.key, e.node, defaults, currentGroup)
		if err != nil {
			return nil, nil, err
		}
		currentGroup = newGroup
		groups = appendUnique(groups, currentGroup)
		fields = append(fields, def)
	}

	return fields, groups, nil
}

// parseField normalizes a single field definition. It returns the updated
// current group alongside the definition.
func parseField(rawKey string, node *yaml.Node, defaults Defaults, currentGroup string) (FieldDefinition, string, error) {
	name := text.SafeKey(rawKey)

	entries, ok := mappingEntries(node)
	if !ok {
		return FieldDefinition{}, currentGroup, &ConfigurationError{
			Message: fmt.Sprintf("field %q has no \"type\" set", name),
		}
	}
	get := lookupFunc(entries)

	typ, _ := scalarString(get("type"))
	if typ == "" {
		return FieldDefinition{}, currentGroup, &ConfigurationError{
			Message: fmt.Sprintf("field %q has no \"type\" set", name),
		}
	}

	def := FieldDefinition{
		Name: name,
		Type: FieldType(typ),
	}

	switch def.Type {
	case FieldTypeFile, FieldTypeFilelist:
		def.Extensions = stringList(get("extensions"))
		if len(def.Extensions) == 0 {
			def.Extensions = append([]string(nil), defaults.AcceptFileTypes...)
		}
	case FieldTypeImage, FieldTypeImagelist:
		def.Extensions = stringList(get("extensions"))
		if len(def.Extensions) == 0 {
			def.Extensions = intersect(imageExtensions, defaults.AcceptFileTypes)
		}
	case FieldTypeSelect:
		def.Values = parseSelectValues(get("values"))
	}

	if label, ok := scalarString(get("label")); ok && label != "" {
		def.Label = label
	} else {
		def.Label = text.TitleCase(name)
	}

	if v, ok := boolValue(get("allow_html")); ok {
		def.AllowHTML = v
	} else {
		def.AllowHTML = def.Type == FieldTypeHTML || def.Type == FieldTypeMarkdown
	}

	if v, ok := boolValue(get("sanitise")); ok {
		def.Sanitise = v
	} else {
		switch def.Type {
		case FieldTypeText, FieldTypeTextarea, FieldTypeHTML, FieldTypeMarkdown:
			def.Sanitise = true
		}
	}

	def.Localize = boolOr(get("localize"), false)
	def.AllowNumeric = boolOr(get("allow_numeric"), false)
	def.Uses = stringList(get("uses"))

	if d := get("default"); d != nil {
		var v any
		if err := d.Decode(&v); err == nil {
			def.Default = v
		}
	}

	newGroup := currentGroup
	if g, ok := scalarString(get("group")); ok && g != "" {
		def.Group = g
		newGroup = g
	} else {
		def.Group = currentGroup
	}

	if childNode := get("fields"); childNode != nil && compositeWhitelist[def.Type] {
		children, err := parseChildFields(childNode, defaults, newGroup)
		if err != nil {
			return FieldDefinition{}, currentGroup, err
		}
		def.Fields = children
	}

	return def, newGroup, nil
}

// parseChildFields parses the nested fields of a composite definition,
// silently dropping children whose declared type is blacklisted inside
// composites. Child group declarations do not leak into the parent's group
// sequence.
func parseChildFields(node *yaml.Node, defaults Defaults, group string) ([]FieldDefinition, error) {
	entries, ok := mappingEntries(node)
	if !ok {
		return nil, nil
	}

	var children []FieldDefinition
	for _, e := range entries {
		childEntries, isMap := mappingEntries(e.node)
		if !isMap {
			return nil, &ConfigurationError{
				Message: fmt.Sprintf("field %q has no \"type\" set", text.SafeKey(e.key)),
			}
		}

		childType, _ := scalarString(lookupFunc(childEntries)("type"))
		if childBlacklist[FieldType(childType)] {
			continue
		}

		child, _, err := parseField(e.key, e.node, defaults, group)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	return children, nil
}

// sortReplacements maps legacy sort spellings onto the canonical timestamp
// names.
var sortReplacements = map[string]string{
	"created":     "createdAt",
	"createdat":   "createdAt",
	"datecreated": "createdAt",
	"datechanged": "modifiedAt",
	"modified":    "modifiedAt",
	"modifiedat":  "modifiedAt",
	"datepublish": "publishedAt",
	"published":   "publishedAt",
	"publishedat": "publishedAt",
}

// determineSort resolves the configured sort to a known field name or
// timestamp, preserving a leading "-" for descending order. Unknown targets
// fall back to "id".
func determineSort(ct *ContentType, node *yaml.Node) string {
	sort, ok := scalarString(node)
	if !ok || sort == "" {
		return "id"
	}

	descending := strings.HasPrefix(sort, "-")
	target := strings.TrimPrefix(sort, "-")

	if replacement, found := sortReplacements[strings.ToLower(target)]; found {
		target = replacement
	}

	switch target {
	case "createdAt", "modifiedAt", "publishedAt":
	default:
		if !ct.HasField(target) {
			return "id"
		}
	}

	if descending {
		return "-" + target
	}
	return target
}

// parseRelations normalizes the relations mapping, re-keying every relation
// by its slugified name. A slug-keyed duplicate wins over its non-slug
// spelling.
func parseRelations(node *yaml.Node) map[string]Relation {
	entries, ok := mappingEntries(node)
	if !ok || len(entries) == 0 {
		return map[string]Relation{}
	}

	relations := make(map[string]Relation, len(entries))
	for _, e := range entries {
		rel := Relation{}
		if relEntries, isMap := mappingEntries(e.node); isMap {
			get := lookupFunc(relEntries)
			rel.Multiple = boolOr(get("multiple"), false)
			rel.Limit = intOr(get("limit"), 0)
			rel.Order, _ = scalarString(get("order"))
		}

		// Relations are keyed by slug; a later declaration of the same
		// relation under a different spelling overwrites the earlier one.
		relations[text.Slugify(e.key)] = rel
	}

	return relations
}

// parseSelectValues accepts either a key/label mapping or a bare sequence;
// a bare sequence maps every entry onto itself.
func parseSelectValues(node *yaml.Node) map[string]string {
	node = resolve(node)
	if node == nil {
		return nil
	}

	if entries, ok := mappingEntries(node); ok {
		values := make(map[string]string, len(entries))
		for _, e := range entries {
			label, _ := scalarString(e.node)
			values[e.key] = label
		}
		return values
	}

	if node.Kind == yaml.SequenceNode {
		values := make(map[string]string, len(node.Content))
		for _, item := range node.Content {
			if v, ok := scalarString(item); ok {
				values[v] = v
			}
		}
		return values
	}

	return nil
}

// --- YAML node helpers ---

// entry is one key/value pair of a YAML mapping, in document order.
type entry struct {
	key  string
	node *yaml.Node
}

// resolve unwraps document and alias nodes.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

// mappingEntries returns the ordered key/value pairs of a mapping node.
func mappingEntries(n *yaml.Node) ([]entry, bool) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, false
	}

	entries := make([]entry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		entries = append(entries, entry{key: n.Content[i].Value, node: n.Content[i+1]})
	}
	return entries, true
}

// lookupFunc returns a key lookup over mapping entries. Missing keys yield nil.
func lookupFunc(entries []entry) func(string) *yaml.Node {
	return func(key string) *yaml.Node {
		for _, e := range entries {
			if e.key == key {
				return e.node
			}
		}
		return nil
	}
}

// scalarString returns the string value of a scalar node. The second return
// is false when the node is missing or not a scalar.
func scalarString(n *yaml.Node) (string, bool) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

// boolValue returns the boolean value of a scalar node, with presence.
func boolValue(n *yaml.Node) (bool, bool) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return false, false
	}
	var v bool
	if err := n.Decode(&v); err != nil {
		return false, false
	}
	return v, true
}

// boolOr returns the node's boolean value or the given default.
func boolOr(n *yaml.Node, def bool) bool {
	if v, ok := boolValue(n); ok {
		return v
	}
	return def
}

// intOr returns the node's integer value or the given default.
func intOr(n *yaml.Node, def int) int {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return def
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return def
	}
	return v
}

// stringList coerces a node to a string slice, wrapping a bare scalar into a
// single-element slice.
func stringList(n *yaml.Node) []string {
	n = resolve(n)
	if n == nil {
		return nil
	}

	if n.Kind == yaml.ScalarNode {
		if n.Value == "" {
			return nil
		}
		return []string{n.Value}
	}

	if n.Kind == yaml.SequenceNode {
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if v, ok := scalarString(item); ok {
				out = append(out, v)
			}
		}
		return out
	}

	return nil
}

// normalizeIcon applies the "fa:" to "fa-" prefix normalization, falling back
// to the given default icon name.
func normalizeIcon(n *yaml.Node, def string) string {
	icon, ok := scalarString(n)
	if !ok || icon == "" {
		return def
	}
	return strings.ReplaceAll(icon, "fa:", "fa-")
}

// intersect returns the members of ordered that also appear in allowed,
// preserving the order of the first argument.
func intersect(ordered, allowed []string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}

	var out []string
	for _, o := range ordered {
		if allowedSet[o] {
			out = append(out, o)
		}
	}
	return out
}

// appendUnique appends s to list if not already present.
func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
