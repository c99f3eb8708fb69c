// Package edit serves the content editing API: listing, loading, creating,
// updating, and deleting content records. Submitted edit forms are decoded
// and applied to the record's field tree by the reconciliation engine.
package edit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strata-cms/strata/internal/audit"
	"github.com/strata-cms/strata/internal/auth"
	"github.com/strata-cms/strata/internal/content"
	"github.com/strata-cms/strata/internal/database"
	"github.com/strata-cms/strata/internal/field"
	"github.com/strata-cms/strata/internal/reconcile"
	"github.com/strata-cms/strata/internal/schema"
	"github.com/strata-cms/strata/internal/server"
	"github.com/strata-cms/strata/internal/storage"
)

// editLocaleField is the form field naming the locale an edit applies to.
const editLocaleField = "_edit_locale"

// Handler serves the admin content API and the public read API.
type Handler struct {
	db           *database.DB
	registry     *schema.Registry
	store        *storage.ContentStore
	taxonomies   *storage.TaxonomyStore
	auditService *audit.Service
}

// NewHandler creates a content edit handler. The audit service is
// optional; a nil service skips audit events.
func NewHandler(db *database.DB, registry *schema.Registry, store *storage.ContentStore, taxonomies *storage.TaxonomyStore, auditService *audit.Service) *Handler {
	return &Handler{
		db:           db,
		registry:     registry,
		store:        store,
		taxonomies:   taxonomies,
		auditService: auditService,
	}
}

// recordResponse is one content record in API responses.
type recordResponse struct {
	ID            int64               `json:"id"`
	ContentType   string              `json:"content_type"`
	Status        schema.Status       `json:"status"`
	Title         string              `json:"title"`
	Excerpt       string              `json:"excerpt,omitempty"`
	EditLink      string              `json:"edit_link"`
	AuthorID      string              `json:"author_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	ModifiedAt    time.Time           `json:"modified_at"`
	PublishedAt   *time.Time          `json:"published_at,omitempty"`
	DepublishedAt *time.Time          `json:"depublished_at,omitempty"`
	Taxonomies    map[string][]string `json:"taxonomies"`
	Relations     map[string][]int64  `json:"relations"`
	Fields        map[string]any      `json:"fields"`
}

// List handles GET /admin/api/content/{contentType}. The optional q
// parameter narrows the listing to records whose field values match it.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.resolveType(w, r)
	if !ok {
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	perPage := ct.RecordsPerPage
	if ct.Singleton {
		perPage = 1
	}

	records, total, err := h.store.List(r.Context(), ct.Slug, r.URL.Query().Get("q"), page, perPage)
	if err != nil {
		slog.Error("content list failed", "content_type", ct.Slug, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	responses := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, buildResponse(rec))
	}

	totalPages := 0
	if perPage > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	server.Paginated(w, responses, server.PaginationMeta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get handles GET /admin/api/content/{contentType}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.resolveType(w, r)
	if !ok {
		return
	}
	rec, ok := h.loadRecord(w, r, ct)
	if !ok {
		return
	}
	server.JSON(w, http.StatusOK, buildResponse(rec))
}

// Create handles POST /admin/api/content/{contentType}. The body is an
// edit form submission; the record is created empty first so field rows
// can reference its id, then the submission is applied.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.resolveType(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		server.Error(w, http.StatusBadRequest, "INVALID_FORM", "failed to parse form body", nil)
		return
	}

	rec := content.New(ct)
	rec.AuthorID = auth.AdminIDFromContext(r.Context())
	if err := h.store.Create(r.Context(), rec); err != nil {
		slog.Error("content create failed", "content_type", ct.Slug, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	if !h.applySubmission(w, r, rec) {
		return
	}

	h.logAudit(r, audit.Event{
		Action:     "content.create",
		Resource:   ct.Slug,
		ResourceID: strconv.FormatInt(rec.ID, 10),
	})
	server.JSON(w, http.StatusCreated, buildResponse(rec))
}

// Update handles PUT /admin/api/content/{contentType}/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.resolveType(w, r)
	if !ok {
		return
	}
	rec, ok := h.loadRecord(w, r, ct)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		server.Error(w, http.StatusBadRequest, "INVALID_FORM", "failed to parse form body", nil)
		return
	}

	if !h.applySubmission(w, r, rec) {
		return
	}

	h.logAudit(r, audit.Event{
		Action:     "content.update",
		Resource:   ct.Slug,
		ResourceID: strconv.FormatInt(rec.ID, 10),
	})
	server.JSON(w, http.StatusOK, buildResponse(rec))
}

// statusRequest is the JSON body for status changes.
type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles POST /admin/api/content/{contentType}/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.resolveType(w, r)
	if !ok {
		return
	}
	rec, ok := h.loadRecord(w, r, ct)
	if !ok {
		return
	}

	var req statusRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body", nil)
		return
	}

	if err := rec.SetStatus(schema.Status(req.Status)); err != nil {
		server.Error(w, http.StatusUnprocessableEntity, "INVALID_STATUS", err.Error(), nil)
		return
	}
	if err := h.store.Save(r.Context(), rec); err != nil {
		slog.Error("content status save failed", "id", rec.ID, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	h.logAudit(r, audit.Event{
		Action:     "content.status",
		Resource:   ct.Slug,
		ResourceID: strconv.FormatInt(rec.ID, 10),
		Payload:    map[string]any{"status": req.Status},
	})
	server.JSON(w, http.StatusOK, buildResponse(rec))
}

// Delete handles DELETE /admin/api/content/{contentType}/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.resolveType(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		server.Error(w, http.StatusBadRequest, "INVALID_ID", "id must be an integer", nil)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			server.Error(w, http.StatusNotFound, "NOT_FOUND", "record not found", nil)
			return
		}
		slog.Error("content delete failed", "id", id, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	h.logAudit(r, audit.Event{
		Action:     "content.delete",
		Resource:   ct.Slug,
		ResourceID: strconv.FormatInt(id, 10),
	})
	server.JSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// PublicList handles GET /api/{contentType}. Viewless content types have
// no public listing; unpublished records are filtered out.
func (h *Handler) PublicList(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.resolveType(w, r)
	if !ok {
		return
	}
	if ct.Viewless {
		server.Error(w, http.StatusNotFound, "NOT_FOUND", "content type not found", nil)
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	perPage := ct.ListingRecords
	if ct.Singleton {
		perPage = 1
	}

	records, total, err := h.store.List(r.Context(), ct.Slug, r.URL.Query().Get("q"), page, perPage)
	if err != nil {
		slog.Error("public content list failed", "content_type", ct.Slug, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return
	}

	now := time.Now()
	responses := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		if !rec.IsPublished(now) {
			continue
		}
		responses = append(responses, buildResponse(rec))
	}

	totalPages := 0
	if perPage > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	server.Paginated(w, responses, server.PaginationMeta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// PublicGet handles GET /api/{contentType}/{id}. Unpublished records and
// viewless content types yield 404.
func (h *Handler) PublicGet(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.resolveType(w, r)
	if !ok {
		return
	}
	if ct.Viewless {
		server.Error(w, http.StatusNotFound, "NOT_FOUND", "content type not found", nil)
		return
	}
	rec, ok := h.loadRecord(w, r, ct)
	if !ok {
		return
	}
	if !rec.IsPublished(time.Now()) {
		server.Error(w, http.StatusNotFound, "NOT_FOUND", "record not found", nil)
		return
	}
	server.JSON(w, http.StatusOK, buildResponse(rec))
}

// applySubmission decodes the parsed form and runs it through the
// reconciliation engine, then saves the record's scalar attributes and
// links. Reports success; failures have already been written to w.
func (h *Handler) applySubmission(w http.ResponseWriter, r *http.Request, rec *content.Content) bool {
	sub := reconcile.DecodeForm(r.PostForm)
	locale := r.PostForm.Get(editLocaleField)

	repo := storage.NewFieldStore(h.db, rec.ID, rec.Fields())
	engine := reconcile.NewEngine(repo, h.taxonomies, h.store, nil)

	if _, err := engine.Apply(r.Context(), rec, sub, locale); err != nil {
		slog.Error("content submission failed", "id", rec.ID, "error", err)
		server.Error(w, http.StatusUnprocessableEntity, "SUBMISSION_ERROR", err.Error(), nil)
		return false
	}
	if err := h.store.Save(r.Context(), rec); err != nil {
		slog.Error("content save failed", "id", rec.ID, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return false
	}
	return true
}

// resolveType resolves the {contentType} URL parameter against the
// registry, writing a 404 when unknown.
func (h *Handler) resolveType(w http.ResponseWriter, r *http.Request) (*schema.ContentType, bool) {
	slug := chi.URLParam(r, "contentType")
	ct, ok := h.registry.Get(slug)
	if !ok {
		server.Error(w, http.StatusNotFound, "NOT_FOUND", "content type not found", nil)
		return nil, false
	}
	return &ct, true
}

// loadRecord loads the record named by the {id} URL parameter, verifying
// it belongs to the resolved content type.
func (h *Handler) loadRecord(w http.ResponseWriter, r *http.Request, ct *schema.ContentType) (*content.Content, bool) {
	id, err := parseID(r)
	if err != nil {
		server.Error(w, http.StatusBadRequest, "INVALID_ID", "id must be an integer", nil)
		return nil, false
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			server.Error(w, http.StatusNotFound, "NOT_FOUND", "record not found", nil)
			return nil, false
		}
		slog.Error("content load failed", "id", id, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"an internal error occurred", nil)
		return nil, false
	}
	if rec.ContentType != ct.Slug {
		server.Error(w, http.StatusNotFound, "NOT_FOUND", "record not found", nil)
		return nil, false
	}
	return rec, true
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) logAudit(r *http.Request, event audit.Event) {
	if h.auditService == nil {
		return
	}
	event.ActorID = auth.AdminIDFromContext(r.Context())
	h.auditService.Log(r.Context(), event)
}

// buildResponse renders a record with its derived title, excerpt, and
// field payloads.
func buildResponse(rec *content.Content) recordResponse {
	return recordResponse{
		ID:            rec.ID,
		ContentType:   rec.ContentType,
		Status:        rec.Status,
		Title:         rec.ComputeTitle(),
		Excerpt:       rec.ComputeExcerpt(),
		EditLink:      rec.ComputeEditLink(),
		AuthorID:      rec.AuthorID,
		CreatedAt:     rec.CreatedAt,
		ModifiedAt:    rec.ModifiedAt,
		PublishedAt:   rec.PublishedAt,
		DepublishedAt: rec.DepublishedAt,
		Taxonomies:    rec.Taxonomies,
		Relations:     rec.Relations,
		Fields:        fieldsJSON(rec),
	}
}

// fieldsJSON renders the record's top-level fields in definition order.
func fieldsJSON(rec *content.Content) map[string]any {
	tree := rec.Fields()
	out := make(map[string]any)
	for _, def := range rec.Definition().Fields {
		v := tree.Get(def.Name)
		if v == nil {
			continue
		}
		out[def.Name] = fieldJSON(tree, v)
	}
	return out
}

// fieldJSON renders one field value: sets become child maps, collections
// become ordered item lists, and leaves yield their hydrated payload, so
// filelist and imagelist values surface as per-file entries rather than the
// stored representation.
func fieldJSON(tree *field.Tree, v *field.Value) any {
	switch v.Type {
	case schema.FieldTypeSet:
		children := map[string]any{}
		for _, child := range tree.Children(v) {
			children[child.Name] = fieldJSON(tree, child)
		}
		return children
	case schema.FieldTypeCollection:
		items := make([]map[string]any, 0, len(tree.Children(v)))
		for _, child := range tree.Children(v) {
			items = append(items, map[string]any{
				"name":  child.Name,
				"type":  string(child.Type),
				"value": fieldJSON(tree, child),
			})
		}
		return items
	case schema.FieldTypeFilelist, schema.FieldTypeImagelist:
		views, _ := tree.Hydrated(v).([]*field.Value)
		files := make([]any, 0, len(views))
		for _, view := range views {
			files = append(files, view.Raw())
		}
		return files
	default:
		return tree.Hydrated(v)
	}
}
