package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brandforge/guidegen/internal/catalog"
	"github.com/brandforge/guidegen/internal/importer"
)

// handleImport accepts a multipart upload and queues it for conversion. The
// response carries the job id; callers poll /api/imports/{jobID} for the
// resulting document.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid multipart request: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !importer.IsSupported(header.Filename) {
		jsonError(w, "unsupported file format: "+header.Filename, http.StatusUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "failed to read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	job := importer.NewJob(userID, header.Filename, r.FormValue("title"), data)
	if err := s.imports.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.log.Info("import queued", "job_id", job.ID, "filename", header.Filename, "bytes", len(data))
	jsonResponse(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"status_url": "/api/imports/" + job.ID,
	})
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	job := s.imports.Get(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "import job not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, job.Snapshot())
}

type setTierRequest struct {
	Tier string `json:"tier"`
}

// handleSetTier updates a user's subscription tier. Billing webhooks call
// this after a plan change.
func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	var req setTierRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	tier := catalog.ParseTier(req.Tier)
	if tier.String() != req.Tier {
		jsonError(w, "unknown tier: "+req.Tier, http.StatusBadRequest)
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := s.store.SetUserTier(r.Context(), userID, tier); err != nil {
		jsonError(w, "failed to set tier: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"user_id": userID,
		"tier":    tier.String(),
	})
}
