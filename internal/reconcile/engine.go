package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/strata-cms/strata/internal/content"
	"github.com/strata-cms/strata/internal/field"
	"github.com/strata-cms/strata/internal/schema"
)

// FieldRepository is the persistence collaborator: the engine hands it
// created or updated field values and values discarded during
// reconciliation, and never touches storage itself.
type FieldRepository interface {
	Persist(ctx context.Context, v *field.Value) error
	Remove(ctx context.Context, v *field.Value) error
	Flush(ctx context.Context) error
}

// Term is a taxonomy term resolved by the taxonomy collaborator.
type Term struct {
	Taxonomy string
	Slug     string
	Name     string
}

// TaxonomyLookup resolves taxonomy terms by (taxonomy, slug). FindOneBy
// returns nil without error when no such term exists; Factory creates a
// fresh, not-yet-persisted term.
type TaxonomyLookup interface {
	FindOneBy(ctx context.Context, taxonomy, slug string) (*Term, error)
	Factory(taxonomy, slug string) *Term
}

// RecordLookup resolves related content records by id. A missing record
// yields nil without error.
type RecordLookup interface {
	FindOneByID(ctx context.Context, id int64) (*content.Content, error)
}

// Engine reconciles a content record's field value tree with a submitted
// edit form.
type Engine struct {
	repo       FieldRepository
	taxonomies TaxonomyLookup
	records    RecordLookup
	logger     *slog.Logger
}

// NewEngine wires an engine to its collaborators.
func NewEngine(repo FieldRepository, taxonomies TaxonomyLookup, records RecordLookup, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:       repo,
		taxonomies: taxonomies,
		records:    records,
		logger:     logger,
	}
}

// timeFormats are the accepted submitted timestamp layouts, tried in order.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Apply reconciles the record with the submission and returns the mutated
// record. Applying the same submission twice yields the same final tree.
// Processing order matters: scalar attributes first, then simple fields,
// sets, collections, taxonomy, and relations.
func (e *Engine) Apply(ctx context.Context, rec *content.Content, sub Submission, locale string) (*content.Content, error) {
	if err := e.applyAttributes(rec, sub); err != nil {
		return nil, err
	}
	if err := e.applyFields(ctx, rec, sub, locale); err != nil {
		return nil, err
	}
	if err := e.applySets(ctx, rec, sub, locale); err != nil {
		return nil, err
	}
	if err := e.applyCollections(ctx, rec, sub, locale); err != nil {
		return nil, err
	}
	if err := e.applyTaxonomy(ctx, rec, sub); err != nil {
		return nil, err
	}
	if err := e.applyRelations(ctx, rec, sub); err != nil {
		return nil, err
	}

	rec.Touch()
	if err := e.repo.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flushing reconciled fields: %w", err)
	}
	return rec, nil
}

// applyAttributes updates status and the publish window. An invalid status
// is ignored, keeping the prior one; blank timestamps clear to null.
func (e *Engine) applyAttributes(rec *content.Content, sub Submission) error {
	if sub.Status != "" {
		status := schema.Status(sub.Status)
		if schema.ValidStatus(status) {
			rec.Status = status
		} else {
			e.logger.Debug("ignoring invalid status", "status", sub.Status)
		}
	}

	publishedAt, err := parseTime(sub.PublishedAt)
	if err != nil {
		return fmt.Errorf("parsing publishedAt: %w", err)
	}
	rec.PublishedAt = publishedAt

	depublishedAt, err := parseTime(sub.DepublishedAt)
	if err != nil {
		return fmt.Errorf("parsing depublishedAt: %w", err)
	}
	rec.DepublishedAt = depublishedAt

	return nil
}

func (e *Engine) applyFields(ctx context.Context, rec *content.Content, sub Submission, locale string) error {
	ct := rec.Definition()

	// Definition order keeps the resulting tree deterministic regardless of
	// submission map iteration.
	for i := range ct.Fields {
		def := &ct.Fields[i]
		raw, ok := sub.Fields[def.Name]
		if !ok {
			continue
		}

		v, err := e.fieldToUpdate(ctx, rec, def.Name, def)
		if err != nil {
			return err
		}
		if err := e.updateField(ctx, rec.Fields(), v, raw, locale); err != nil {
			return err
		}
	}

	for name := range sub.Fields {
		if ct.Field(name) == nil {
			e.logger.Debug("ignoring field without definition",
				"contentType", ct.Slug, "field", name)
		}
	}
	return nil
}

func (e *Engine) applySets(ctx context.Context, rec *content.Content, sub Submission, locale string) error {
	ct := rec.Definition()

	for _, name := range sortedNames(sub.Sets) {
		def := ct.Field(name)
		if def == nil || def.Type != schema.FieldTypeSet {
			e.logger.Debug("ignoring submitted set without definition",
				"contentType", ct.Slug, "set", name)
			continue
		}

		v, err := e.fieldToUpdate(ctx, rec, name, def)
		if err != nil {
			return err
		}
		if err := e.updateField(ctx, rec.Fields(), v, sub.Sets[name], locale); err != nil {
			return err
		}
	}
	return nil
}

// applyCollections rebuilds every submitted collection from scratch: all
// existing children of every collection field are torn down first, then the
// submitted instances are recreated in the order given by the submission's
// explicit order list. Localized payloads survive the rebuild through the
// translations bookkeeping.
func (e *Engine) applyCollections(ctx context.Context, rec *content.Content, sub Submission, locale string) error {
	tree := rec.Fields()
	tm := newTranslationsManager(rec, sub.CollectionKeys)

	for _, v := range tree.Root() {
		if v.Type != schema.FieldTypeCollection {
			continue
		}
		for _, removed := range tree.RemoveChildren(v) {
			if err := e.repo.Remove(ctx, removed); err != nil {
				return fmt.Errorf("removing collection child %q: %w", removed.Name, err)
			}
		}
	}

	ct := rec.Definition()
	names := make([]string, 0, len(sub.Collections))
	for name := range sub.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := ct.Field(name)
		if def == nil || def.Type != schema.FieldTypeCollection {
			e.logger.Debug("ignoring submitted collection without definition",
				"contentType", ct.Slug, "collection", name)
			continue
		}

		coll, err := e.fieldToUpdate(ctx, rec, name, def)
		if err != nil {
			return err
		}

		input := sub.Collections[name]
		for pos, orderKey := range input.Order {
			childName, raw, ok := instanceForKey(input, orderKey)
			if !ok {
				continue
			}
			childDef := def.Field(childName)
			if childDef == nil {
				e.logger.Debug("ignoring collection instance without definition",
					"collection", name, "field", childName)
				continue
			}

			child := tree.Create(childDef, childName)
			child.SortOrder = pos
			tree.Attach(coll, child)
			if err := e.updateField(ctx, tree, child, raw, locale); err != nil {
				return err
			}
			tm.apply(child, name, orderKey)
		}
	}
	return nil
}

func (e *Engine) applyTaxonomy(ctx context.Context, rec *content.Content, sub Submission) error {
	for _, name := range sortedNames(sub.Taxonomy) {
		slugs := filterEmpty(decodeList(sub.Taxonomy[name]))

		delete(rec.Taxonomies, name)
		for _, s := range slugs {
			term, err := e.taxonomies.FindOneBy(ctx, name, s)
			if err != nil {
				return fmt.Errorf("looking up taxonomy %s/%s: %w", name, s, err)
			}
			if term == nil {
				term = e.taxonomies.Factory(name, s)
			}
			rec.Taxonomies[name] = append(rec.Taxonomies[name], term.Slug)
		}
	}
	return nil
}

// applyRelations replaces the record's relations wholesale: every existing
// relation goes, and a fresh link is created per surviving submitted id.
// Ids pointing at missing records are skipped.
func (e *Engine) applyRelations(ctx context.Context, rec *content.Content, sub Submission) error {
	if sub.Relationship == nil {
		return nil
	}

	rec.Relations = map[string][]int64{}
	for _, raw := range filterEmpty(decodeStringList(sub.Relationship)) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			e.logger.Debug("ignoring non-numeric relation id", "id", raw)
			continue
		}

		other, err := e.records.FindOneByID(ctx, id)
		if err != nil {
			return fmt.Errorf("looking up related record %d: %w", id, err)
		}
		if other == nil {
			continue
		}
		rec.Relations[other.ContentType] = append(rec.Relations[other.ContentType], other.ID)
	}
	return nil
}

// fieldToUpdate finds the record's top-level value of the given name or
// creates one. An existing value whose type tag no longer matches the
// definition is discarded first, so a definition change never leaves a
// mismatched value attached to the record.
func (e *Engine) fieldToUpdate(ctx context.Context, rec *content.Content, name string, def *schema.FieldDefinition) (*field.Value, error) {
	tree := rec.Fields()

	v := tree.Get(name)
	if v != nil && !tree.Has(name, true) {
		for _, removed := range tree.Remove(v) {
			if err := e.repo.Remove(ctx, removed); err != nil {
				return nil, fmt.Errorf("removing stale field %q: %w", removed.Name, err)
			}
		}
		v = nil
	}

	if v == nil {
		v = tree.Create(def, name)
		tree.AttachRoot(v)
	}
	return v, nil
}

// updateField applies a payload to a value: locale first for translatable
// definitions, then embedded-JSON detection, then either recursion into set
// children or a plain value set, and finally persistence.
func (e *Engine) updateField(ctx context.Context, tree *field.Tree, v *field.Value, raw any, locale string) error {
	if def := v.Definition(); def != nil && def.Localize {
		v.SetLocale(locale)
	}

	raw = decodeEmbeddedJSON(raw)

	if v.Type == schema.FieldTypeSet {
		children, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("set field %q: expected nested payload, got %T", v.Name, raw)
		}
		def := v.Definition()

		for _, name := range sortedNames(children) {
			child := tree.Child(v, name)
			if child == nil {
				e.logger.Debug("ignoring set child without definition",
					"set", v.Name, "field", name)
				continue
			}
			if def != nil {
				child.SetDefinition(def.Field(name))
			}
			if err := e.updateField(ctx, tree, child, children[name], locale); err != nil {
				return err
			}
		}
	} else {
		tree.SetValue(v, raw)
	}

	if err := e.repo.Persist(ctx, v); err != nil {
		return fmt.Errorf("persisting field %q: %w", v.Name, err)
	}
	return nil
}

// instanceForKey finds which submitted child field owns the given ordering
// key. Child names are scanned in sorted order so a duplicated key resolves
// deterministically.
func instanceForKey(input CollectionInput, orderKey string) (string, any, bool) {
	names := make([]string, 0, len(input.Items))
	for name := range input.Items {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if raw, ok := input.Items[name][orderKey]; ok {
			return name, raw, true
		}
	}
	return "", nil, false
}

// decodeEmbeddedJSON detects a list payload whose first element is itself a
// JSON array and replaces the payload with the decoded form. Edit forms
// post multi-value widgets this way.
func decodeEmbeddedJSON(raw any) any {
	first, ok := firstElement(raw)
	if !ok {
		return raw
	}
	s, ok := first.(string)
	if !ok {
		return raw
	}

	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") {
		return raw
	}

	var decoded []any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return raw
	}
	return decoded
}

func firstElement(raw any) (any, bool) {
	switch val := raw.(type) {
	case []any:
		if len(val) > 0 {
			return val[0], true
		}
	case []string:
		if len(val) > 0 {
			return val[0], true
		}
	}
	return nil, false
}

// decodeList accepts a plain list, a scalar, or a JSON-encoded array and
// yields the flat string entries.
func decodeList(raw any) []string {
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		trimmed := strings.TrimSpace(val)
		if strings.HasPrefix(trimmed, "[") {
			var decoded []any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return decodeAnyList(decoded)
			}
		}
		return []string{val}
	case []string:
		return val
	case []any:
		return decodeAnyList(val)
	default:
		return []string{fmt.Sprint(val)}
	}
}

func decodeAnyList(vals []any) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

// decodeStringList flattens entries that may themselves be JSON arrays.
func decodeStringList(vals []string) []string {
	var out []string
	for _, v := range vals {
		out = append(out, decodeList(v)...)
	}
	return out
}

func filterEmpty(vals []string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func sortedNames[M map[string]V, V any](m M) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseTime parses a submitted timestamp, clearing to null on blank input.
func parseTime(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", s)
}
