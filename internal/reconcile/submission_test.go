package reconcile

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeForm(t *testing.T) {
	form := url.Values{
		"status":                               {"published"},
		"publishedAt":                          {"2026-03-01T09:30"},
		"depublishedAt":                        {""},
		"fields[title]":                        {"Hello"},
		"fields[images][]":                     {"a.jpg", "b.jpg"},
		"sets[contact][email]":                 {"hi@example.org"},
		"collections[blocks][order][]":         {"k2", "k1"},
		"collections[blocks][heading][k1]":     {"Closing"},
		"collections[blocks][paragraph][k2]":   {"Opening"},
		"taxonomy[tags][]":                     {"go", "cms"},
		"relationship[]":                       {"9", "12"},
		"keys-collections[blocks][4]":          {"k1"},
		"unknown[whatever]":                    {"ignored"},
		"collections[broken]":                  {"too short"},
	}

	got := DecodeForm(form)

	want := Submission{
		Status:      "published",
		PublishedAt: "2026-03-01T09:30",
		Fields: map[string]any{
			"title":  "Hello",
			"images": []any{"a.jpg", "b.jpg"},
		},
		Sets: map[string]map[string]any{
			"contact": {"email": "hi@example.org"},
		},
		Collections: map[string]CollectionInput{
			"blocks": {
				Order: []string{"k2", "k1"},
				Items: map[string]map[string]any{
					"heading":   {"k1": "Closing"},
					"paragraph": {"k2": "Opening"},
				},
			},
		},
		Taxonomy: map[string]any{
			"tags": []any{"go", "cms"},
		},
		Relationship: []string{"9", "12"},
		CollectionKeys: map[string]map[string]string{
			"blocks": {"4": "k1"},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeForm mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeForm_SingleTaxonomyValueStaysScalar(t *testing.T) {
	got := DecodeForm(url.Values{"taxonomy[tags]": {`["go"]`}})

	if got.Taxonomy["tags"] != `["go"]` {
		t.Errorf("tags = %v, want the raw JSON string", got.Taxonomy["tags"])
	}
}

func TestSplitFormKey(t *testing.T) {
	tests := []struct {
		key  string
		want []string
	}{
		{"status", []string{"status"}},
		{"fields[title]", []string{"fields", "title"}},
		{"fields[images][]", []string{"fields", "images", ""}},
		{"collections[blocks][heading][k1]", []string{"collections", "blocks", "heading", "k1"}},
		{"broken[unclosed", []string{"broken"}},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, splitFormKey(tc.key)); diff != "" {
				t.Errorf("splitFormKey(%q) mismatch (-want +got):\n%s", tc.key, diff)
			}
		})
	}
}
