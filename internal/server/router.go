package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/strata-cms/strata/internal/database"
)

// AuthHandler is the authentication handler surface the router needs,
// decoupled from the concrete auth implementation.
type AuthHandler interface {
	Login(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
}

// ContentHandler serves the admin content editing API and the public
// read API.
type ContentHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	UpdateStatus(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	PublicList(w http.ResponseWriter, r *http.Request)
	PublicGet(w http.ResponseWriter, r *http.Request)
}

// ContentTypesHandler serves content type introspection and reloading.
type ContentTypesHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Reload(w http.ResponseWriter, r *http.Request)
}

// MediaHandler serves uploads, listings, deletion, files, and thumbnails.
type MediaHandler interface {
	Upload(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	Serve(w http.ResponseWriter, r *http.Request)
	Thumbnail(w http.ResponseWriter, r *http.Request)
}

// AuditHandler serves the audit log listing.
type AuditHandler interface {
	List(w http.ResponseWriter, r *http.Request)
}

// Dependencies holds the injectable handlers used by the route tree.
type Dependencies struct {
	DB             *database.DB
	DevMode        bool
	AuthHandler    AuthHandler
	AuthMiddleware func(http.Handler) http.Handler
	Content        ContentHandler
	ContentTypes   ContentTypesHandler
	Media          MediaHandler
	Audit          AuditHandler
}

// NewRouter builds the chi router with the full route tree and middleware
// stack.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(deps.DevMode))

	r.Get("/health", healthHandler(deps))

	// Public read API.
	r.Route("/api", func(r chi.Router) {
		r.Get("/{contentType}", deps.Content.PublicList)
		r.Get("/{contentType}/{id}", deps.Content.PublicGet)
	})

	// Admin API.
	r.Route("/admin/api", func(r chi.Router) {
		r.Use(requireJSON)

		// Auth routes stay outside the auth middleware.
		r.Post("/auth/login", deps.AuthHandler.Login)
		r.Post("/auth/refresh", deps.AuthHandler.Refresh)
		r.Post("/auth/logout", deps.AuthHandler.Logout)

		r.Group(func(r chi.Router) {
			if deps.AuthMiddleware != nil {
				r.Use(deps.AuthMiddleware)
			}

			r.Get("/auth/me", deps.AuthHandler.Me)

			r.Get("/content-types", deps.ContentTypes.List)
			r.Post("/content-types/reload", deps.ContentTypes.Reload)
			r.Get("/content-types/{slug}", deps.ContentTypes.Get)

			r.Route("/content/{contentType}", func(r chi.Router) {
				r.Get("/", deps.Content.List)
				r.Post("/", deps.Content.Create)
				r.Get("/{id}", deps.Content.Get)
				r.Put("/{id}", deps.Content.Update)
				r.Post("/{id}/status", deps.Content.UpdateStatus)
				r.Delete("/{id}", deps.Content.Delete)
			})

			r.Route("/media", func(r chi.Router) {
				r.Post("/", deps.Media.Upload)
				r.Get("/", deps.Media.List)
				r.Delete("/{id}", deps.Media.Delete)
			})

			r.Get("/audit-log", deps.Audit.List)
		})
	})

	// Public media serving.
	r.Get("/media/{filename}", deps.Media.Serve)
	r.Get("/thumbs/{spec}/{filename}", deps.Media.Thumbnail)

	return r
}

// corsMiddleware configures CORS. Dev mode allows the local admin UI
// origins; production is same-origin only.
func corsMiddleware(devMode bool) func(http.Handler) http.Handler {
	var allowedOrigins []string
	if devMode {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// healthHandler reports process health including database connectivity.
func healthHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(r.Context()); err != nil {
			Error(w, http.StatusServiceUnavailable, "DB_UNHEALTHY", "database health check failed", nil)
			return
		}
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
