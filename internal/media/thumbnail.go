package media

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"

	"github.com/strata-cms/strata/internal/server"
)

// Thumbnail dimensions are clamped so a crafted URL cannot request an
// arbitrarily large render.
const (
	maxThumbWidth  = 2000
	maxThumbHeight = 2000
)

// Thumbnail handles GET /thumbs/{spec}/{filename}, where spec is a
// "{width}x{height}" pair, e.g. /thumbs/400x300/a1b2.jpg. The thumbnail is
// rendered on demand from the stored original: scaled to cover the target
// box and center-cropped to its exact dimensions.
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	width, height, err := parseThumbSpec(chi.URLParam(r, "spec"))
	if err != nil {
		server.Error(w, http.StatusBadRequest, "INVALID_THUMB_SPEC", err.Error(), nil)
		return
	}

	m, path, ok := h.locate(w, r)
	if !ok {
		return
	}

	if !renderable(m.MimeType) {
		server.Error(w, http.StatusBadRequest, "NOT_AN_IMAGE",
			"thumbnails can only be generated for images", nil)
		return
	}

	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			server.Error(w, http.StatusNotFound, "NOT_FOUND", "media file missing from disk", nil)
			return
		}
		slog.Error("thumbnail source open failed", "filename", m.Filename, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		slog.Warn("thumbnail source decode failed", "filename", m.Filename, "error", err)
		server.Error(w, http.StatusUnprocessableEntity, "DECODE_ERROR",
			"stored image could not be decoded", nil)
		return
	}

	thumb := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, encodeFormat(m.MimeType)); err != nil {
		slog.Error("thumbnail encode failed", "filename", m.Filename, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	contentType := m.MimeType
	if m.MimeType == "image/webp" {
		// WebP cannot be encoded; thumbnails come back as PNG.
		contentType = "image/png"
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// parseThumbSpec parses a "{width}x{height}" pair, clamping both axes to
// the render limits.
func parseThumbSpec(spec string) (width, height int, err error) {
	parts := strings.SplitN(spec, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("spec must be of the form {width}x{height}")
	}

	width, err = strconv.Atoi(parts[0])
	if err != nil || width < 1 {
		return 0, 0, fmt.Errorf("invalid thumbnail width %q", parts[0])
	}
	height, err = strconv.Atoi(parts[1])
	if err != nil || height < 1 {
		return 0, 0, fmt.Errorf("invalid thumbnail height %q", parts[1])
	}

	if width > maxThumbWidth {
		width = maxThumbWidth
	}
	if height > maxThumbHeight {
		height = maxThumbHeight
	}
	return width, height, nil
}
