package contenttypes

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/strata-cms/strata/internal/schema"
)

func TestBuildResponse(t *testing.T) {
	ct := schema.ContentType{
		Slug:            "articles",
		Name:            "Articles",
		SingularSlug:    "article",
		SingularName:    "Article",
		DefaultStatus:   schema.StatusDraft,
		ShowOnDashboard: true,
		ShowInMenu:      true,
		Sort:            "-publishedAt",
		ListingRecords:  6,
		RecordsPerPage:  10,
		Locales:         []string{"en", "nl"},
		Groups:          []string{"Content", "Meta"},
		Taxonomy:        []string{"tags", "categories"},
		Relations: map[string]schema.Relation{
			"pages":   {Multiple: true},
			"authors": {},
		},
		Fields: []schema.FieldDefinition{
			{
				Name:     "title",
				Type:     schema.FieldTypeText,
				Label:    "Title",
				Group:    "Content",
				Sanitise: true,
				Localize: true,
			},
			{
				Name:  "blocks",
				Type:  schema.FieldTypeCollection,
				Label: "Blocks",
				Fields: []schema.FieldDefinition{
					{Name: "heading", Type: schema.FieldTypeText, Label: "Heading"},
					{Name: "body", Type: schema.FieldTypeHTML, Label: "Body", AllowHTML: true},
				},
			},
		},
	}

	resp := buildResponse(&ct, 42)

	if resp.Slug != "articles" || resp.Name != "Articles" {
		t.Errorf("identity = %q/%q, want articles/Articles", resp.Slug, resp.Name)
	}
	if resp.SingularSlug != "article" || resp.SingularName != "Article" {
		t.Errorf("singular = %q/%q, want article/Article", resp.SingularSlug, resp.SingularName)
	}
	if resp.DefaultStatus != schema.StatusDraft {
		t.Errorf("DefaultStatus = %q, want draft", resp.DefaultStatus)
	}
	if resp.RecordCount != 42 {
		t.Errorf("RecordCount = %d, want 42", resp.RecordCount)
	}
	if diff := cmp.Diff([]string{"authors", "pages"}, resp.Relations); diff != "" {
		t.Errorf("relations not sorted (-want +got):\n%s", diff)
	}

	if len(resp.Fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(resp.Fields))
	}

	title := resp.Fields[0]
	if title.Name != "title" || title.Type != schema.FieldTypeText {
		t.Errorf("Fields[0] = %s/%s, want title/text", title.Name, title.Type)
	}
	if !title.Sanitise || !title.Localize {
		t.Error("Fields[0] should keep sanitise and localize flags")
	}

	blocks := resp.Fields[1]
	if len(blocks.Fields) != 2 {
		t.Fatalf("collection children = %d, want 2", len(blocks.Fields))
	}
	if blocks.Fields[1].Name != "body" || !blocks.Fields[1].AllowHTML {
		t.Errorf("collection child = %+v, want body with allow_html", blocks.Fields[1])
	}
}

func TestBuildResponseEmptyFields(t *testing.T) {
	ct := schema.ContentType{Slug: "empty", Name: "Empty"}

	resp := buildResponse(&ct, 0)

	if len(resp.Fields) != 0 {
		t.Errorf("len(Fields) = %d, want 0", len(resp.Fields))
	}
	if len(resp.Relations) != 0 {
		t.Errorf("len(Relations) = %d, want 0", len(resp.Relations))
	}
	if resp.RecordCount != 0 {
		t.Errorf("RecordCount = %d, want 0", resp.RecordCount)
	}
}
