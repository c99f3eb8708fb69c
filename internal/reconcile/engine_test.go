package reconcile

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/strata-cms/strata/internal/content"
	"github.com/strata-cms/strata/internal/field"
	"github.com/strata-cms/strata/internal/schema"
)

// fakeRepository records persisted and removed values in call order.
type fakeRepository struct {
	persisted []*field.Value
	removed   []*field.Value
	flushes   int
}

func (r *fakeRepository) Persist(_ context.Context, v *field.Value) error {
	r.persisted = append(r.persisted, v)
	return nil
}

func (r *fakeRepository) Remove(_ context.Context, v *field.Value) error {
	r.removed = append(r.removed, v)
	return nil
}

func (r *fakeRepository) Flush(context.Context) error {
	r.flushes++
	return nil
}

// fakeTaxonomies resolves only the terms it was seeded with; Factory counts
// the creations it was asked for.
type fakeTaxonomies struct {
	known   map[string]bool
	created []string
}

func (f *fakeTaxonomies) FindOneBy(_ context.Context, taxonomy, slug string) (*Term, error) {
	if f.known[taxonomy+"/"+slug] {
		return &Term{Taxonomy: taxonomy, Slug: slug}, nil
	}
	return nil, nil
}

func (f *fakeTaxonomies) Factory(taxonomy, slug string) *Term {
	f.created = append(f.created, taxonomy+"/"+slug)
	return &Term{Taxonomy: taxonomy, Slug: slug}
}

// fakeRecords resolves related records from a fixed id set.
type fakeRecords struct {
	records map[int64]*content.Content
}

func (f *fakeRecords) FindOneByID(_ context.Context, id int64) (*content.Content, error) {
	return f.records[id], nil
}

func articlesType() *schema.ContentType {
	return &schema.ContentType{
		Key:           "articles",
		Slug:          "articles",
		SingularSlug:  "article",
		SingularName:  "Article",
		DefaultStatus: schema.StatusDraft,
		Fields: []schema.FieldDefinition{
			{Name: "title", Type: schema.FieldTypeText},
			{Name: "teaser", Type: schema.FieldTypeTextarea, Localize: true},
			{
				Name: "contact",
				Type: schema.FieldTypeSet,
				Fields: []schema.FieldDefinition{
					{Name: "email", Type: schema.FieldTypeEmail},
					{Name: "phone", Type: schema.FieldTypeText},
				},
			},
			{
				Name: "blocks",
				Type: schema.FieldTypeCollection,
				Fields: []schema.FieldDefinition{
					{Name: "heading", Type: schema.FieldTypeText},
					{Name: "paragraph", Type: schema.FieldTypeTextarea},
				},
			},
		},
		Taxonomy: []string{"tags"},
	}
}

func newTestEngine() (*Engine, *fakeRepository, *fakeTaxonomies, *fakeRecords) {
	repo := &fakeRepository{}
	taxonomies := &fakeTaxonomies{known: map[string]bool{}}
	records := &fakeRecords{records: map[int64]*content.Content{}}
	return NewEngine(repo, taxonomies, records, nil), repo, taxonomies, records
}

// treeState summarizes a tree for comparison: top-level names with payloads
// and ordered child payloads.
func treeState(tree *field.Tree) map[string]any {
	state := map[string]any{}
	for _, v := range tree.Root() {
		if children := tree.Children(v); len(children) > 0 {
			var childState []any
			for _, c := range children {
				childState = append(childState, map[string]any{c.Name: c.Raw()})
			}
			state[v.Name] = childState
			continue
		}
		state[v.Name] = v.Raw()
	}
	return state
}

func TestApply_SimpleFields(t *testing.T) {
	engine, repo, _, _ := newTestEngine()
	rec := content.New(articlesType())

	sub := Submission{
		Status: "published",
		Fields: map[string]any{"title": "First Post"},
	}
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	if rec.Status != schema.StatusPublished {
		t.Errorf("Status = %q, want published", rec.Status)
	}
	if got := rec.GetField("title").Raw(); got != "First Post" {
		t.Errorf("title = %v, want First Post", got)
	}
	if len(repo.persisted) == 0 {
		t.Error("expected the field to be handed to the repository")
	}
	if repo.flushes != 1 {
		t.Errorf("flushes = %d, want 1", repo.flushes)
	}
}

func TestApply_InvalidStatusKeepsPrior(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	rec := content.New(articlesType())
	rec.Status = schema.StatusHeld

	sub := Submission{Status: "archived"}
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if rec.Status != schema.StatusHeld {
		t.Errorf("Status = %q, want held", rec.Status)
	}
}

func TestApply_Timestamps(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	rec := content.New(articlesType())

	sub := Submission{PublishedAt: "2026-03-01T09:30"}
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if rec.PublishedAt == nil || !rec.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", rec.PublishedAt, want)
	}

	// A blank value clears the timestamp.
	if _, err := engine.Apply(context.Background(), rec, Submission{}, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if rec.PublishedAt != nil {
		t.Errorf("PublishedAt = %v, want nil", rec.PublishedAt)
	}

	if _, err := engine.Apply(context.Background(), rec, Submission{PublishedAt: "soon"}, ""); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}

func TestApply_StaleTypeDiscardedAndRecreated(t *testing.T) {
	engine, repo, _, _ := newTestEngine()
	rec := content.New(articlesType())

	// A value created under an older definition with a different type.
	stale := rec.Fields().Create(&schema.FieldDefinition{Name: "title", Type: schema.FieldTypeNumber}, "title")
	rec.Fields().AttachRoot(stale)

	sub := Submission{Fields: map[string]any{"title": "Fresh"}}
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	v := rec.GetField("title")
	if v.Type != schema.FieldTypeText {
		t.Errorf("type = %q, want text", v.Type)
	}
	if v.Raw() != "Fresh" {
		t.Errorf("payload = %v, want Fresh", v.Raw())
	}
	if len(repo.removed) != 1 || repo.removed[0] != stale {
		t.Errorf("stale value should be handed to the repository for removal")
	}
}

func TestApply_SetChildren(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	rec := content.New(articlesType())

	sub := Submission{
		Sets: map[string]map[string]any{
			"contact": {"phone": "555-0100", "email": "hi@example.org"},
		},
	}
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	set := rec.GetField("contact")
	tree := rec.Fields()
	if got := tree.Child(set, "email").Raw(); got != "hi@example.org" {
		t.Errorf("email = %v", got)
	}
	if got := tree.Child(set, "phone").Raw(); got != "555-0100" {
		t.Errorf("phone = %v", got)
	}
}

func TestApply_CollectionRebuild(t *testing.T) {
	engine, repo, _, _ := newTestEngine()
	rec := content.New(articlesType())
	tree := rec.Fields()
	ct := rec.Definition()

	// Prior collection with three children.
	coll := tree.Create(ct.Field("blocks"), "blocks")
	tree.AttachRoot(coll)
	for _, name := range []string{"heading", "paragraph", "heading"} {
		child := tree.Create(ct.Field("blocks").Field(name), name)
		tree.Attach(coll, child)
	}

	sub := Submission{
		Collections: map[string]CollectionInput{
			"blocks": {
				Order: []string{"k2", "k1"},
				Items: map[string]map[string]any{
					"heading":   {"k1": "Closing"},
					"paragraph": {"k2": "Opening text"},
				},
			},
		},
	}
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	children := tree.Children(rec.GetField("blocks"))
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if children[0].Name != "paragraph" || children[0].Raw() != "Opening text" {
		t.Errorf("first child = %s/%v", children[0].Name, children[0].Raw())
	}
	if children[1].Name != "heading" || children[1].Raw() != "Closing" {
		t.Errorf("second child = %s/%v", children[1].Name, children[1].Raw())
	}
	if children[0].SortOrder != 0 || children[1].SortOrder != 1 {
		t.Errorf("sort orders = %d, %d", children[0].SortOrder, children[1].SortOrder)
	}

	// The three prior children were queued for removal.
	if len(repo.removed) != 3 {
		t.Errorf("removed = %d values, want 3", len(repo.removed))
	}
}

func TestApply_Idempotent(t *testing.T) {
	engine, _, _, _ := newTestEngine()

	sub := Submission{
		Status: "published",
		Fields: map[string]any{"title": "Stable"},
		Sets: map[string]map[string]any{
			"contact": {"email": "a@b.c"},
		},
		Collections: map[string]CollectionInput{
			"blocks": {
				Order: []string{"x", "y"},
				Items: map[string]map[string]any{
					"heading":   {"x": "One"},
					"paragraph": {"y": "Two"},
				},
			},
		},
	}

	rec := content.New(articlesType())
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("first Apply error: %v", err)
	}
	first := treeState(rec.Fields())

	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("second Apply error: %v", err)
	}
	second := treeState(rec.Fields())

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("tree changed between identical applies (-first +second):\n%s", diff)
	}
}

func TestApply_LocalePropagation(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	rec := content.New(articlesType())

	sub := Submission{Fields: map[string]any{
		"title":  "Hello",
		"teaser": "English teaser",
	}}
	if _, err := engine.Apply(context.Background(), rec, sub, "en"); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	if got := rec.GetField("teaser").Locale; got != "en" {
		t.Errorf("localized field locale = %q, want en", got)
	}
	if got := rec.GetField("title").Locale; got != "" {
		t.Errorf("non-localized field locale = %q, want empty", got)
	}

	// Editing another locale leaves the first locale's payload intact.
	sub.Fields["teaser"] = "Nederlandse teaser"
	if _, err := engine.Apply(context.Background(), rec, sub, "nl"); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	teaser := rec.GetField("teaser")
	if raw, ok := teaser.Translation("en"); !ok || raw != "English teaser" {
		t.Errorf("en payload = %v, %v; want English teaser", raw, ok)
	}
	if teaser.Raw() != "Nederlandse teaser" {
		t.Errorf("nl payload = %v", teaser.Raw())
	}
}

func TestApply_TranslationsSurviveCollectionRebuild(t *testing.T) {
	engine, _, _, _ := newTestEngine()

	localizedBlocks := &schema.ContentType{
		Slug: "articles", SingularSlug: "article", DefaultStatus: schema.StatusDraft,
		Fields: []schema.FieldDefinition{
			{
				Name: "blocks",
				Type: schema.FieldTypeCollection,
				Fields: []schema.FieldDefinition{
					{Name: "heading", Type: schema.FieldTypeText, Localize: true},
				},
			},
		},
	}
	rec := content.New(localizedBlocks)
	tree := rec.Fields()

	sub := Submission{
		Collections: map[string]CollectionInput{
			"blocks": {
				Order: []string{"k1"},
				Items: map[string]map[string]any{"heading": {"k1": "Hello"}},
			},
		},
	}
	if _, err := engine.Apply(context.Background(), rec, sub, "en"); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	child := tree.Children(rec.GetField("blocks"))[0]
	child.SetTranslation("nl", "Hallo")
	childID := child.ID

	// Re-submit in English with the bookkeeping key naming the old child.
	sub.CollectionKeys = map[string]map[string]string{
		"blocks": {strconv.Itoa(childID): "k1"},
	}
	sub.Collections["blocks"].Items["heading"]["k1"] = "Hello again"
	if _, err := engine.Apply(context.Background(), rec, sub, "en"); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	rebuilt := tree.Children(rec.GetField("blocks"))[0]
	if rebuilt.ID == childID {
		t.Fatal("rebuild should create a fresh value")
	}
	if raw, ok := rebuilt.Translation("nl"); !ok || raw != "Hallo" {
		t.Errorf("nl payload = %v, %v; want Hallo", raw, ok)
	}
	if rebuilt.Raw() != "Hello again" {
		t.Errorf("en payload = %v", rebuilt.Raw())
	}
}

func TestApply_Taxonomy(t *testing.T) {
	engine, _, taxonomies, _ := newTestEngine()
	taxonomies.known["tags/go"] = true
	rec := content.New(articlesType())
	rec.Taxonomies["tags"] = []string{"old"}

	sub := Submission{Taxonomy: map[string]any{
		"tags": `["go","", "new-term"]`,
	}}
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	if diff := cmp.Diff([]string{"go", "new-term"}, rec.Taxonomies["tags"]); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tags/new-term"}, taxonomies.created); diff != "" {
		t.Errorf("created terms mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_RelationsReplacedAndMissingSkipped(t *testing.T) {
	engine, _, _, records := newTestEngine()

	other := content.New(&schema.ContentType{
		Slug: "pages", SingularSlug: "page", DefaultStatus: schema.StatusDraft,
	})
	other.ID = 9
	records.records[9] = other

	rec := content.New(articlesType())
	rec.Relations["pages"] = []int64{1, 2}

	sub := Submission{Relationship: []string{"9", "404"}}
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	if diff := cmp.Diff(map[string][]int64{"pages": {9}}, rec.Relations); diff != "" {
		t.Errorf("relations mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_EmbeddedJSONDecoded(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	rec := content.New(articlesType())

	sub := Submission{Fields: map[string]any{
		"title": []any{`["alpha","beta"]`},
	}}
	if _, err := engine.Apply(context.Background(), rec, sub, ""); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	got, ok := rec.GetField("title").Raw().([]any)
	if !ok {
		t.Fatalf("expected decoded list, got %T", rec.GetField("title").Raw())
	}
	if diff := cmp.Diff([]any{"alpha", "beta"}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

