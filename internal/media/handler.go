package media

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/strata-cms/strata/internal/auth"
	"github.com/strata-cms/strata/internal/server"
)

// multipartLimit caps the whole upload request body: the file limit plus
// headroom for the other form parts.
const multipartLimit = maxUploadBytes + 1<<20

// Handler exposes the media service over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Upload handles POST /admin/api/media, expecting the file in a multipart
// "file" part.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, multipartLimit)
	if err := r.ParseMultipartForm(multipartLimit); err != nil {
		server.Error(w, http.StatusBadRequest, "INVALID_UPLOAD",
			"could not parse multipart body", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		server.Error(w, http.StatusBadRequest, "MISSING_FILE",
			"multipart body must carry a 'file' part", nil)
		return
	}
	defer file.Close()

	m, err := h.service.Upload(r.Context(), header, auth.AdminIDFromContext(r.Context()))
	if err != nil {
		var rej *Rejected
		if errors.As(err, &rej) {
			server.Error(w, http.StatusBadRequest, "UPLOAD_REJECTED", rej.Reason, nil)
			return
		}
		slog.Error("media upload failed", "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	server.JSON(w, http.StatusCreated, m)
}

// List handles GET /admin/api/media.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	items, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		slog.Error("media list failed", "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	server.Paginated(w, items, server.PaginationMeta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// Delete handles DELETE /admin/api/media/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.service.Delete(r.Context(), id, auth.AdminIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			server.Error(w, http.StatusNotFound, "NOT_FOUND", "media not found", nil)
			return
		}
		slog.Error("media delete failed", "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	server.JSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// Serve handles GET /media/{filename}, streaming the stored file. Anything
// a browser might execute or script (including SVG) goes out as an
// attachment rather than inline.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	m, path, ok := h.locate(w, r)
	if !ok {
		return
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			server.Error(w, http.StatusNotFound, "NOT_FOUND", "media file missing from disk", nil)
			return
		}
		slog.Error("media stat failed", "filename", m.Filename, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	if !inlineSafe(m.MimeType) {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="%s"`, headerSafe(m.OriginalName)))
	}
	w.Header().Set("Content-Type", m.MimeType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	http.ServeFile(w, r, path)
}

// locate resolves the route's filename to its record and on-disk path,
// writing the error response itself when that fails.
func (h *Handler) locate(w http.ResponseWriter, r *http.Request) (*Media, string, bool) {
	filename := chi.URLParam(r, "filename")

	m, err := h.service.Find(r.Context(), filename)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			server.Error(w, http.StatusNotFound, "NOT_FOUND", "media not found", nil)
		} else {
			slog.Error("media lookup failed", "error", err)
			server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"an internal error occurred", nil)
		}
		return nil, "", false
	}

	path, err := h.service.files.Path(m.Filename)
	if err != nil {
		server.Error(w, http.StatusBadRequest, "INVALID_FILENAME", "invalid filename", nil)
		return nil, "", false
	}
	return m, path, true
}

// inlineSafe reports whether the MIME type may render inline. SVG is an
// image type but can carry script, so it is excluded.
func inlineSafe(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") && mimeType != "image/svg+xml"
}

// headerSafe strips the characters that would break a quoted
// Content-Disposition filename.
func headerSafe(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return "download"
	}
	return name
}

// parsePagination reads page/per_page with defaults of 1 and 20, capping
// per_page at 100.
func parsePagination(r *http.Request) (page, perPage int) {
	page, perPage = 1, 20
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && n > 0 {
		perPage = min(n, 100)
	}
	return page, perPage
}
