package media

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"defaults", "", 1, 20},
		{"page only", "page=4", 4, 20},
		{"per_page only", "per_page=12", 1, 12},
		{"both", "page=2&per_page=40", 2, 40},
		{"garbage page", "page=later", 1, 20},
		{"negative page", "page=-2", 1, 20},
		{"per_page capped", "per_page=1000", 1, 100},
		{"zero values", "page=0&per_page=0", 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			page, perPage := parsePagination(r)
			if page != tt.wantPage || perPage != tt.wantPerPage {
				t.Errorf("parsePagination = %d/%d, want %d/%d",
					page, perPage, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

func TestInlineSafe(t *testing.T) {
	inline := []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	for _, mt := range inline {
		if !inlineSafe(mt) {
			t.Errorf("inlineSafe(%q) = false, want true", mt)
		}
	}

	// SVG can carry script and must never render inline from the media root.
	attachment := []string{"image/svg+xml", "application/pdf", "text/plain", "application/zip"}
	for _, mt := range attachment {
		if inlineSafe(mt) {
			t.Errorf("inlineSafe(%q) = true, want false", mt)
		}
	}
}

func TestHeaderSafe(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"quotes stripped", `my "file".pdf`, "my file.pdf"},
		{"backslash stripped", `dir\file.pdf`, "dirfile.pdf"},
		{"newline stripped", "evil\r\nheader.pdf", "evilheader.pdf"},
		{"nothing left", `"\`, "download"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := headerSafe(tt.in); got != tt.want {
				t.Errorf("headerSafe(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
