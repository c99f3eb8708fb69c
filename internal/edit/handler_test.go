package edit

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/strata-cms/strata/internal/content"
	"github.com/strata-cms/strata/internal/field"
	"github.com/strata-cms/strata/internal/schema"
)

func articlesType() *schema.ContentType {
	return &schema.ContentType{
		Slug:         "articles",
		SingularSlug: "article",
		SingularName: "Article",
		Name:         "Articles",
		DefaultStatus: schema.StatusDraft,
		Fields: []schema.FieldDefinition{
			{Name: "title", Type: schema.FieldTypeText, Sanitise: true},
			{Name: "teaser", Type: schema.FieldTypeTextarea, Sanitise: true},
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
					{Name: "paragraph", Type: schema.FieldTypeHTML, AllowHTML: true},
				},
			},
		},
	}
}

func TestFieldsJSON(t *testing.T) {
	ct := articlesType()
	rec := content.New(ct)
	tree := rec.Fields()

	title := tree.Create(ct.Field("title"), "title")
	tree.SetValue(title, "Hello")
	tree.AttachRoot(title)

	contactDef := ct.Field("contact")
	contact := tree.Create(contactDef, "contact")
	tree.AttachRoot(contact)
	email := tree.Create(contactDef.Field("email"), "email")
	tree.SetValue(email, "a@b.test")
	tree.Attach(contact, email)

	blocksDef := ct.Field("blocks")
	blocks := tree.Create(blocksDef, "blocks")
	tree.AttachRoot(blocks)
	heading := tree.Create(blocksDef.Field("heading"), "heading")
	tree.SetValue(heading, "First")
	tree.Attach(blocks, heading)
	para := tree.Create(blocksDef.Field("paragraph"), "paragraph")
	tree.SetValue(para, "<p>Body</p>")
	tree.Attach(blocks, para)

	got := fieldsJSON(rec)
	want := map[string]any{
		"title": "Hello",
		"contact": map[string]any{
			"email": "a@b.test",
		},
		"blocks": []map[string]any{
			{"name": "heading", "type": "text", "value": "First"},
			{"name": "paragraph", "type": "html", "value": "<p>Body</p>"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fieldsJSON mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldsJSON_SkipsUnsetFields(t *testing.T) {
	ct := articlesType()
	rec := content.New(ct)

	tree := rec.Fields()
	title := tree.Create(ct.Field("title"), "title")
	tree.SetValue(title, "Only title")
	tree.AttachRoot(title)

	got := fieldsJSON(rec)
	if len(got) != 1 {
		t.Fatalf("expected 1 rendered field, got %d: %v", len(got), got)
	}
	if got["title"] != "Only title" {
		t.Errorf("title = %v, want %q", got["title"], "Only title")
	}
}

func TestBuildResponse(t *testing.T) {
	ct := articlesType()
	rec := content.New(ct)
	rec.ID = 7

	tree := rec.Fields()
	title := tree.Create(ct.Field("title"), "title")
	tree.SetValue(title, "A headline")
	tree.AttachRoot(title)

	resp := buildResponse(rec)

	if resp.ID != 7 || resp.ContentType != "articles" {
		t.Errorf("identity = %d/%s, want 7/articles", resp.ID, resp.ContentType)
	}
	if resp.Status != schema.StatusDraft {
		t.Errorf("Status = %q, want draft", resp.Status)
	}
	if resp.Title != "A headline" {
		t.Errorf("Title = %q, want %q", resp.Title, "A headline")
	}
	if resp.EditLink != "/admin/content/articles/7" {
		t.Errorf("EditLink = %q", resp.EditLink)
	}
	if resp.Fields["title"] != "A headline" {
		t.Errorf("Fields[title] = %v", resp.Fields["title"])
	}
}

func TestFieldJSON_FilelistRendersPerFileEntries(t *testing.T) {
	ct := &schema.ContentType{
		Slug:         "downloads",
		SingularSlug: "download",
		Fields: []schema.FieldDefinition{
			{Name: "attachments", Type: schema.FieldTypeFilelist},
			{Name: "gallery", Type: schema.FieldTypeImagelist},
		},
	}
	tree := field.NewTree(ct)

	attachments := tree.Create(ct.Field("attachments"), "attachments")
	tree.SetValue(attachments, []string{"manual.pdf", "notes.txt"})
	tree.AttachRoot(attachments)

	gallery := tree.Create(ct.Field("gallery"), "gallery")
	tree.SetValue(gallery, map[string]any{"b": "second.jpg", "a": "first.jpg"})
	tree.AttachRoot(gallery)

	wantFiles := []any{"manual.pdf", "notes.txt"}
	if diff := cmp.Diff(wantFiles, fieldJSON(tree, attachments)); diff != "" {
		t.Errorf("filelist rendering mismatch (-want +got):\n%s", diff)
	}

	// Map-backed lists come out in key order.
	wantImages := []any{"first.jpg", "second.jpg"}
	if diff := cmp.Diff(wantImages, fieldJSON(tree, gallery)); diff != "" {
		t.Errorf("imagelist rendering mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldJSON_LeafLocale(t *testing.T) {
	ct := articlesType()
	tree := field.NewTree(ct)

	teaser := tree.Create(ct.Field("teaser"), "teaser")
	tree.SetValue(teaser, "plain text")
	tree.AttachRoot(teaser)

	if got := fieldJSON(tree, teaser); got != "plain text" {
		t.Errorf("fieldJSON leaf = %v, want %q", got, "plain text")
	}
}
