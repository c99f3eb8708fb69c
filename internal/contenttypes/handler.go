// Package contenttypes exposes the parsed content type definitions to the
// admin UI: which types exist, their field layout, and their record counts.
package contenttypes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/strata-cms/strata/internal/database"
	"github.com/strata-cms/strata/internal/schema"
	"github.com/strata-cms/strata/internal/server"
)

// FieldResponse summarizes one field definition for the admin UI.
type FieldResponse struct {
	Name         string           `json:"name"`
	Type         schema.FieldType `json:"type"`
	Label        string           `json:"label"`
	Group        string           `json:"group,omitempty"`
	Localize     bool             `json:"localize,omitempty"`
	AllowHTML    bool             `json:"allow_html,omitempty"`
	Sanitise     bool             `json:"sanitise,omitempty"`
	AllowNumeric bool             `json:"allow_numeric,omitempty"`
	Uses         []string         `json:"uses,omitempty"`
	Extensions   []string         `json:"extensions,omitempty"`
	Default      any              `json:"default,omitempty"`
	Fields       []FieldResponse  `json:"fields,omitempty"`
}

// ContentTypeResponse is one content type in the introspection API.
type ContentTypeResponse struct {
	Slug            string          `json:"slug"`
	Name            string          `json:"name"`
	SingularSlug    string          `json:"singular_slug"`
	SingularName    string          `json:"singular_name"`
	DefaultStatus   schema.Status   `json:"default_status"`
	Viewless        bool            `json:"viewless"`
	Singleton       bool            `json:"singleton"`
	ShowOnDashboard bool            `json:"show_on_dashboard"`
	ShowInMenu      bool            `json:"show_in_menu"`
	IconOne         string          `json:"icon_one,omitempty"`
	IconMany        string          `json:"icon_many,omitempty"`
	Sort            string          `json:"sort"`
	ListingRecords  int             `json:"listing_records"`
	RecordsPerPage  int             `json:"records_per_page"`
	Locales         []string        `json:"locales,omitempty"`
	Groups          []string        `json:"groups,omitempty"`
	Taxonomy        []string        `json:"taxonomy,omitempty"`
	Relations       []string        `json:"relations,omitempty"`
	Fields          []FieldResponse `json:"fields"`
	RecordCount     int             `json:"record_count"`
}

// Handler serves content type introspection and schema reloading.
type Handler struct {
	db       *database.DB
	registry *schema.Registry
}

func NewHandler(db *database.DB, registry *schema.Registry) *Handler {
	return &Handler{db: db, registry: registry}
}

// List handles GET /admin/api/content-types. The listing is not paginated;
// installations have at most a few dozen content types.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	types := h.registry.All()

	slugs := make([]string, 0, len(types))
	for slug := range types {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	responses := make([]ContentTypeResponse, 0, len(slugs))
	for _, slug := range slugs {
		ct := types[slug]
		count, err := h.countRecords(r.Context(), slug)
		if err != nil {
			// A failed count degrades to zero rather than failing the listing.
			slog.Error("failed to count records", "content_type", slug, "error", err)
			count = 0
		}
		responses = append(responses, buildResponse(&ct, count))
	}

	server.JSON(w, http.StatusOK, responses)
}

// Get handles GET /admin/api/content-types/{slug}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	ct, ok := h.registry.Get(slug)
	if !ok {
		server.Error(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("content type '%s' not found", slug), nil)
		return
	}

	count, err := h.countRecords(r.Context(), slug)
	if err != nil {
		slog.Error("failed to count records", "content_type", slug, "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"failed to retrieve record count", nil)
		return
	}

	server.JSON(w, http.StatusOK, buildResponse(&ct, count))
}

// Reload handles POST /admin/api/content-types/reload. A parse failure
// leaves the previous definitions in place.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Load(); err != nil {
		slog.Error("content type reload failed", "error", err)
		server.Error(w, http.StatusUnprocessableEntity, "RELOAD_FAILED", err.Error(), nil)
		return
	}

	slog.Info("content type definitions reloaded", "count", len(h.registry.All()))
	server.JSON(w, http.StatusOK, map[string]any{
		"message": "content types reloaded",
		"count":   len(h.registry.All()),
	})
}

func (h *Handler) countRecords(ctx context.Context, slug string) (int, error) {
	var count int
	err := h.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM content WHERE content_type = $1`, slug,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records of %s: %w", slug, err)
	}
	return count, nil
}

func buildResponse(ct *schema.ContentType, recordCount int) ContentTypeResponse {
	relations := make([]string, 0, len(ct.Relations))
	for name := range ct.Relations {
		relations = append(relations, name)
	}
	sort.Strings(relations)

	return ContentTypeResponse{
		Slug:            ct.Slug,
		Name:            ct.Name,
		SingularSlug:    ct.SingularSlug,
		SingularName:    ct.SingularName,
		DefaultStatus:   ct.DefaultStatus,
		Viewless:        ct.Viewless,
		Singleton:       ct.Singleton,
		ShowOnDashboard: ct.ShowOnDashboard,
		ShowInMenu:      ct.ShowInMenu,
		IconOne:         ct.IconOne,
		IconMany:        ct.IconMany,
		Sort:            ct.Sort,
		ListingRecords:  ct.ListingRecords,
		RecordsPerPage:  ct.RecordsPerPage,
		Locales:         ct.Locales,
		Groups:          ct.Groups,
		Taxonomy:        ct.Taxonomy,
		Relations:       relations,
		Fields:          buildFields(ct.Fields),
		RecordCount:     recordCount,
	}
}

func buildFields(defs []schema.FieldDefinition) []FieldResponse {
	fields := make([]FieldResponse, len(defs))
	for i, d := range defs {
		fields[i] = FieldResponse{
			Name:         d.Name,
			Type:         d.Type,
			Label:        d.Label,
			Group:        d.Group,
			Localize:     d.Localize,
			AllowHTML:    d.AllowHTML,
			Sanitise:     d.Sanitise,
			AllowNumeric: d.AllowNumeric,
			Uses:         d.Uses,
			Extensions:   d.Extensions,
			Default:      d.Default,
		}
		if len(d.Fields) > 0 {
			fields[i].Fields = buildFields(d.Fields)
		}
	}
	return fields
}
