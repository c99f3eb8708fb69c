package media

import (
	"errors"
	"strings"
	"testing"
)

func TestNewServiceNormalizesAcceptList(t *testing.T) {
	s := NewService(nil, nil, nil, []string{"JPG", ".png", " pdf ", "", "."})

	for _, ext := range []string{"jpg", "png", "pdf", ".jpg", "PNG"} {
		if !s.Accepts(ext) {
			t.Errorf("Accepts(%q) = false, want true", ext)
		}
	}
	for _, ext := range []string{"exe", "html", ""} {
		if s.Accepts(ext) {
			t.Errorf("Accepts(%q) = true, want false", ext)
		}
	}
}

func TestCheckContentRefusesHTML(t *testing.T) {
	payload := []byte("<!DOCTYPE html><html><body><script>alert(1)</script></body></html>")

	err := checkContent("txt", payload)
	if err == nil {
		t.Fatal("expected HTML payload to be refused")
	}
	if !IsRejected(err) {
		t.Errorf("error = %v, want a rejection", err)
	}
}

func TestCheckContentRefusesMislabeledImage(t *testing.T) {
	// A plain text payload claiming to be a PNG.
	err := checkContent("png", []byte("just some prose, no pixels here"))
	if !IsRejected(err) {
		t.Fatalf("error = %v, want a rejection", err)
	}
	if !strings.Contains(err.Error(), "png") {
		t.Errorf("rejection reason %q should name the extension", err.Error())
	}
}

func TestCheckContentAcceptsRealPNG(t *testing.T) {
	pngHeader := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if err := checkContent("png", pngHeader); err != nil {
		t.Errorf("checkContent rejected a PNG header: %v", err)
	}
}

func TestCheckContentNonImagePassesSniff(t *testing.T) {
	if err := checkContent("txt", []byte("plain notes\n")); err != nil {
		t.Errorf("checkContent rejected plain text: %v", err)
	}
}

func TestMimeForExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"jpg", "image/jpeg"},
		{"jpeg", "image/jpeg"},
		{"png", "image/png"},
		{"svg", "image/svg+xml"},
		{"pdf", "application/pdf"},
		{"md", "text/markdown"},
		{"mp3", "audio/mpeg"},
		{"zip", "application/zip"},
		{"zzz", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := mimeForExt(tt.ext); got != tt.want {
				t.Errorf("mimeForExt(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestDefaultAcceptListIsFullyMapped(t *testing.T) {
	// Every extension the default configuration accepts must resolve to a
	// concrete MIME type, not the octet-stream fallback.
	defaults := []string{"gif", "jpg", "jpeg", "png", "svg", "pdf", "mp3", "txt", "md", "doc", "docx", "zip"}
	for _, ext := range defaults {
		if mimeForExt(ext) == "application/octet-stream" {
			t.Errorf("default extension %q has no MIME mapping", ext)
		}
	}
}

func TestRandomName(t *testing.T) {
	name := randomName("png")

	if len(name) != 32+len(".png") {
		t.Fatalf("name length = %d: %q", len(name), name)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Fatalf("name %q should end in .png", name)
	}
	for _, c := range name[:32] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("name %q has non-hex character %q", name, c)
		}
	}
	if !safeName(name) {
		t.Errorf("generated name %q should pass the store's name check", name)
	}

	if randomName("png") == name {
		t.Error("two generated names should not collide")
	}
}

func TestRenderable(t *testing.T) {
	for _, mt := range []string{"image/jpeg", "image/png", "image/gif", "image/webp"} {
		if !renderable(mt) {
			t.Errorf("renderable(%q) = false, want true", mt)
		}
	}
	for _, mt := range []string{"image/svg+xml", "application/pdf", "text/plain", ""} {
		if renderable(mt) {
			t.Errorf("renderable(%q) = true, want false", mt)
		}
	}
}

func TestEncodeFormat(t *testing.T) {
	tests := []struct {
		mimeType string
		want     string
	}{
		{"image/jpeg", "JPEG"},
		{"image/png", "PNG"},
		{"image/gif", "GIF"},
		{"image/webp", "PNG"},
		{"application/pdf", "JPEG"},
	}

	for _, tt := range tests {
		if got := encodeFormat(tt.mimeType); got.String() != tt.want {
			t.Errorf("encodeFormat(%q) = %v, want %v", tt.mimeType, got, tt.want)
		}
	}
}

func TestRejected(t *testing.T) {
	err := error(&Rejected{Reason: "files of type \"exe\" are not accepted"})
	if !IsRejected(err) {
		t.Error("IsRejected should match *Rejected")
	}
	if IsRejected(ErrNotFound) {
		t.Error("IsRejected should not match unrelated errors")
	}

	var rej *Rejected
	if !errors.As(err, &rej) || rej.Reason == "" {
		t.Error("rejection should carry its reason")
	}
}
