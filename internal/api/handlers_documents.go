package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type createDocumentRequest struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled Brand Guide"
	}

	doc, err := s.store.CreateDocument(r.Context(), req.UserID, title, req.Content)
	if err != nil {
		jsonError(w, "failed to create document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}
	docs, err := s.store.ListDocuments(r.Context(), userID)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.store.DeleteDocument(r.Context(), docID); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"deleted": docID})
}

// handlePreview renders the document (or the caller's editable subset of it)
// as HTML.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}

	source := doc.Content
	if r.URL.Query().Get("view") == "editable" {
		tier, err := s.store.UserTier(r.Context(), r.URL.Query().Get("user_id"))
		if err != nil {
			jsonError(w, "failed to resolve tier: "+err.Error(), http.StatusInternalServerError)
			return
		}
		source, _ = s.engine.BuildEditableSubset(s.engine.Parse(doc.Content), tier)
	}

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(source), &buf); err != nil {
		jsonError(w, "failed to render preview: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
