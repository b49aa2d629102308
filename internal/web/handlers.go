package web

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerkit/importer/internal/importer"
	"github.com/ledgerkit/importer/internal/logging"
)

// handleHealth reports liveness and the current job load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":      "ok",
		"active_jobs": s.service.ActiveJobs(),
	})
}

// handlePreview parses an uploaded file and returns detected headers, a
// suggested column mapping, and the first rows. Nothing is persisted.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	data, format, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	result, err := s.service.Preview(data, format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("file previewed",
		"format", format, "total_rows", result.TotalRows)
	writeJSON(w, result)
}

// validateRequest is the JSON body for full-file validation.
type validateRequest struct {
	Rows       []importer.ParsedRow   `json:"rows"`
	Mapping    importer.FieldMapping  `json:"mapping"`
	RecordType importer.RecordType    `json:"recordType"`
	Options    importer.ImportOptions `json:"options"`
}

// handleValidate runs validation against a confirmed mapping without
// starting a job.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondBadRequest(w, r, "invalid JSON body")
		return
	}

	report, err := s.service.Validate(req.Rows, req.Mapping, req.RecordType, req.Options)
	if err != nil {
		s.respondBadRequest(w, r, err.Error())
		return
	}

	writeJSON(w, report)
}

// startImportRequest is the JSON body for job submission. Rows come from a
// prior preview; the mapping is the caller-confirmed version of the detected
// one.
type startImportRequest struct {
	Rows    []importer.ParsedRow   `json:"rows"`
	Mapping importer.FieldMapping  `json:"mapping"`
	Options importer.ImportOptions `json:"options"`
}

// handleStartImport creates an asynchronous import job and returns its ID.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	recordType := importer.RecordType(chi.URLParam(r, "recordType"))
	if !recordType.Valid() {
		s.respondBadRequest(w, r, "record type must be income or expense")
		return
	}

	var req startImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondBadRequest(w, r, "invalid JSON body")
		return
	}

	jobID, err := s.service.StartJob(r.Context(), req.Rows, req.Mapping, recordType, owner, req.Options)
	if err != nil {
		switch {
		case err == importer.ErrTooManyJobs:
			s.respondError(w, r, err)
		default:
			s.respondBadRequest(w, r, err.Error())
		}
		return
	}

	logging.FromContext(r.Context()).Info("import job started",
		"job_id", jobID, "record_type", recordType, "rows", len(req.Rows))
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

// handleListJobs returns the owner's recent jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	jobs, err := s.service.ListJobs(r.Context(), owner)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*importer.ImportJob{}
	}
	writeJSON(w, map[string]any{"jobs": jobs})
}

// handleJobStatus returns the current snapshot of one job.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	job, err := s.service.JobStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if job.OwnerID != owner {
		s.respondError(w, r, importer.ErrJobNotFound)
		return
	}
	writeJSON(w, job)
}

// handleCancelJob requests cancellation of a running job.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	jobID := chi.URLParam(r, "jobID")

	job, err := s.service.JobStatus(r.Context(), jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if job.OwnerID != owner {
		s.respondError(w, r, importer.ErrJobNotFound)
		return
	}

	cancelled, err := s.service.CancelJob(r.Context(), jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("job cancellation requested",
		"job_id", jobID, "accepted", cancelled)
	writeJSON(w, map[string]bool{"cancelled": cancelled})
}

// readUpload extracts the uploaded file bytes and format from a multipart
// request. On failure it writes the error response and returns ok=false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (data []byte, format string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxFileSize)

	if err := r.ParseMultipartForm(s.maxFileSize); err != nil {
		s.respondBadRequest(w, r, "file too large or invalid form")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondBadRequest(w, r, "no file provided")
		return nil, "", false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		s.respondErrorStatus(w, r, http.StatusInternalServerError, "failed to read file", "INTERNAL")
		return nil, "", false
	}

	// An explicit format field wins over the filename extension.
	format = r.FormValue("format")
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	}
	if format == "" {
		s.respondBadRequest(w, r, "cannot determine file format, pass a format field or a file extension")
		return nil, "", false
	}

	return data, strings.ToLower(format), true
}
