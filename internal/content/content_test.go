package content

import (
	"strings"
	"testing"
	"time"

	"github.com/strata-cms/strata/internal/schema"
)

func pagesType() *schema.ContentType {
	return &schema.ContentType{
		Key:           "pages",
		Slug:          "pages",
		SingularSlug:  "page",
		Name:          "Pages",
		SingularName:  "Page",
		DefaultStatus: schema.StatusDraft,
		Fields: []schema.FieldDefinition{
			{Name: "heading", Type: schema.FieldTypeText},
			{Name: "body", Type: schema.FieldTypeHTML, AllowHTML: true},
		},
	}
}

// setField attaches a top-level field value with the given payload.
func setField(t *testing.T, c *Content, name string, payload any) {
	t.Helper()
	ct := c.Definition()
	v := c.Fields().Create(ct.Field(name), name)
	c.Fields().AttachRoot(v)
	c.Fields().SetValue(v, payload)
}

func TestNew_AppliesDefaultStatus(t *testing.T) {
	c := New(pagesType())
	if c.Status != schema.StatusDraft {
		t.Errorf("Status = %q, want %q", c.Status, schema.StatusDraft)
	}
	if c.ContentType != "pages" {
		t.Errorf("ContentType = %q, want %q", c.ContentType, "pages")
	}
}

func TestSetStatus_RejectsUnknown(t *testing.T) {
	c := New(pagesType())

	if err := c.SetStatus(schema.StatusPublished); err != nil {
		t.Fatalf("SetStatus(published) error: %v", err)
	}
	if err := c.SetStatus(schema.Status("archived")); err == nil {
		t.Error("expected error for unknown status")
	}
	if c.Status != schema.StatusPublished {
		t.Errorf("rejected status should leave the record at %q, got %q",
			schema.StatusPublished, c.Status)
	}
}

func TestIsPublished(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name        string
		status      schema.Status
		publishedAt *time.Time
		want        bool
	}{
		{"published", schema.StatusPublished, nil, true},
		{"draft", schema.StatusDraft, nil, false},
		{"held", schema.StatusHeld, &past, false},
		{"timed past", schema.StatusTimed, &past, true},
		{"timed future", schema.StatusTimed, &future, false},
		{"timed without date", schema.StatusTimed, nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(pagesType())
			c.Status = tc.status
			c.PublishedAt = tc.publishedAt
			if got := c.IsPublished(now); got != tc.want {
				t.Errorf("IsPublished = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestComputeTitle_WellKnownFieldWins(t *testing.T) {
	c := New(pagesType())
	setField(t, c, "heading", "About Us")
	setField(t, c, "body", "<p>Some body</p>")

	if got := c.ComputeTitle(); got != "About Us" {
		t.Errorf("ComputeTitle = %q, want %q", got, "About Us")
	}
}

func TestComputeTitle_FallsBackToRecordName(t *testing.T) {
	c := New(pagesType())
	c.ID = 42

	if got := c.ComputeTitle(); got != "Page #42" {
		t.Errorf("ComputeTitle = %q, want %q", got, "Page #42")
	}
}

func TestComputeTitle_FirstTextualFieldWhenNoTitleField(t *testing.T) {
	ct := &schema.ContentType{
		Slug: "notes", SingularSlug: "note", SingularName: "Note",
		DefaultStatus: schema.StatusDraft,
		Fields: []schema.FieldDefinition{
			{Name: "summary", Type: schema.FieldTypeText},
		},
	}
	c := New(ct)
	v := c.Fields().Create(ct.Field("summary"), "summary")
	c.Fields().AttachRoot(v)
	c.Fields().SetValue(v, "A short note")

	if got := c.ComputeTitle(); got != "A short note" {
		t.Errorf("ComputeTitle = %q, want %q", got, "A short note")
	}
}

func TestComputeExcerpt_StripsMarkupAndTruncates(t *testing.T) {
	c := New(pagesType())
	long := strings.Repeat("lorem ipsum dolor ", 30)
	setField(t, c, "body", "<p>"+long+"</p>")

	got := c.ComputeExcerpt()
	if strings.Contains(got, "<p>") {
		t.Errorf("markup survived: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("long excerpt should end with an ellipsis: %q", got)
	}
	if len([]rune(got)) > excerptLength+1 {
		t.Errorf("excerpt too long: %d runes", len([]rune(got)))
	}
}

func TestComputeExcerpt_ShortBodyKeptWhole(t *testing.T) {
	c := New(pagesType())
	setField(t, c, "body", "<p>Hello <em>world</em></p>")

	if got := c.ComputeExcerpt(); got != "Hello world" {
		t.Errorf("ComputeExcerpt = %q, want %q", got, "Hello world")
	}
}

func TestComputeEditLink(t *testing.T) {
	c := New(pagesType())
	c.ID = 7

	if got := c.ComputeEditLink(); got != "/admin/content/pages/7" {
		t.Errorf("ComputeEditLink = %q, want %q", got, "/admin/content/pages/7")
	}
}
