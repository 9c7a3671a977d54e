package api

import (
	"net/http"

	"github.com/brandforge/guidegen/internal/catalog"
)

// sectionView is a Section plus the lock state the UI needs to gray out
// tier-gated sections.
type sectionView struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Level   int    `json:"level"`
	MinTier string `json:"min_tier"`
	Locked  bool   `json:"locked"`
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	tier, err := s.store.UserTier(r.Context(), doc.UserID)
	if err != nil {
		jsonError(w, "failed to load user tier: "+err.Error(), http.StatusInternalServerError)
		return
	}

	secs := s.engine.Parse(doc.Content)
	views := make([]sectionView, 0, len(secs))
	for _, sec := range secs {
		views = append(views, sectionView{
			ID:      sec.ID,
			Title:   sec.Title,
			Level:   sec.Level,
			MinTier: sec.MinTier.String(),
			Locked:  sec.ID == catalog.CoverID || !tier.AtLeast(sec.MinTier),
		})
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"doc_id":   doc.ID,
		"tier":     tier.String(),
		"sections": views,
	})
}

type insertSectionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleInsertSection(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	var req insertSectionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated := s.engine.InsertCustomSection(doc.Content, req.Title)
	inserted := updated != doc.Content
	if inserted {
		if err := s.store.SaveContent(r.Context(), doc.ID, updated); err != nil {
			jsonError(w, "failed to save document: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"doc_id":   doc.ID,
		"inserted": inserted,
	})
}

func (s *Server) handleGetEditable(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	tier, err := s.store.UserTier(r.Context(), doc.UserID)
	if err != nil {
		jsonError(w, "failed to load user tier: "+err.Error(), http.StatusInternalServerError)
		return
	}

	subset, ids := s.engine.BuildEditableSubset(s.engine.Parse(doc.Content), tier)
	jsonResponse(w, http.StatusOK, map[string]any{
		"doc_id":      doc.ID,
		"tier":        tier.String(),
		"content":     subset,
		"section_ids": ids,
	})
}

type mergeEditableRequest struct {
	Content string `json:"content"`
	// SectionIDs is the id list handed out by the corresponding GET. When
	// omitted the server recomputes it from the stored document, which is
	// only safe if the document has not changed since the subset was built.
	SectionIDs []string `json:"section_ids,omitempty"`
}

func (s *Server) handleMergeEditable(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	var req mergeEditableRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	tier, err := s.store.UserTier(r.Context(), doc.UserID)
	if err != nil {
		jsonError(w, "failed to load user tier: "+err.Error(), http.StatusInternalServerError)
		return
	}
	_, unlocked := s.engine.BuildEditableSubset(s.engine.Parse(doc.Content), tier)

	ids := unlocked
	if len(req.SectionIDs) > 0 {
		// The client's id list orders the merge, but only ids that are
		// actually unlocked for the owner's tier may be replaced.
		allowed := make(map[string]bool, len(unlocked))
		for _, id := range unlocked {
			allowed[id] = true
		}
		ids = make([]string, 0, len(req.SectionIDs))
		for _, id := range req.SectionIDs {
			if allowed[id] {
				ids = append(ids, id)
			}
		}
	}

	merged, replaced := s.engine.MergeEditableIntoFull(doc.Content, req.Content, ids)
	if replaced != len(ids) {
		s.log.Warn("editable merge drift",
			"doc_id", doc.ID,
			"expected", len(ids),
			"replaced", replaced)
	}
	if err := s.store.SaveContent(r.Context(), doc.ID, merged); err != nil {
		jsonError(w, "failed to save document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"doc_id":   doc.ID,
		"replaced": replaced,
	})
}
