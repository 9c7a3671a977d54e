package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"github.com/brandforge/guidegen/internal/config"
	"github.com/brandforge/guidegen/internal/importer"
	"github.com/brandforge/guidegen/internal/rewrite"
	"github.com/brandforge/guidegen/internal/section"
	"github.com/brandforge/guidegen/internal/store"
)

// Server is the HTTP API for the style guide section engine.
type Server struct {
	router   chi.Router
	store    *store.Store
	engine   *section.Engine
	resolver *rewrite.Resolver
	imports  *importer.Pipeline
	md       goldmark.Markdown
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(st *store.Store, engine *section.Engine, resolver *rewrite.Resolver, imports *importer.Pipeline, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		store:    st,
		engine:   engine,
		resolver: resolver,
		imports:  imports,
		md:       goldmark.New(),
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleCreateDocument)
		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
		r.Get("/api/documents/{docID}/preview", s.handlePreview)

		r.Get("/api/documents/{docID}/sections", s.handleListSections)
		r.Post("/api/documents/{docID}/sections", s.handleInsertSection)
		r.Get("/api/documents/{docID}/editable", s.handleGetEditable)
		r.Put("/api/documents/{docID}/editable", s.handleMergeEditable)

		r.Post("/api/documents/{docID}/rewrite", s.handleRewrite)
		r.Get("/api/stats/rewrite", s.handleRewriteStats)

		r.Post("/api/documents/import", s.handleImport)
		r.Get("/api/imports/{jobID}", s.handleImportStatus)

		r.Put("/api/users/{userID}/tier", s.handleSetTier)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// loadDocument fetches the document named in the route, writing the error
// response itself when the document cannot be served.
func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) (*store.Document, bool) {
	docID := chi.URLParam(r, "docID")
	doc, err := s.store.GetDocument(r.Context(), docID)
	if err != nil {
		jsonError(w, "failed to load document: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if doc == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return nil, false
	}
	return doc, true
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func jsonResponse(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonResponse(w, code, map[string]string{"error": msg})
}
