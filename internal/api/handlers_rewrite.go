package api

import (
	"errors"
	"net/http"

	"github.com/brandforge/guidegen/internal/rewrite"
)

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	var req rewrite.Request
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.resolver.Submit(r.Context(), doc.ID, doc.Content, req)
	if err != nil {
		var svcErr *rewrite.ServiceError
		switch {
		case errors.Is(err, rewrite.ErrEmptyInstruction),
			errors.Is(err, rewrite.ErrNoSectionSelected):
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, rewrite.ErrInFlight):
			jsonError(w, err.Error(), http.StatusConflict)
		case errors.As(err, &svcErr):
			jsonError(w, "rewrite service: "+svcErr.Message, http.StatusBadGateway)
		default:
			jsonError(w, "rewrite failed: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if err := s.store.SaveContent(r.Context(), doc.ID, out.Document); err != nil {
		jsonError(w, "failed to save document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"doc_id": doc.ID,
		"scope":  out.Scope,
		"state":  out.State,
	})
}

func (s *Server) handleRewriteStats(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.resolver.Stats().Snapshot())
}
