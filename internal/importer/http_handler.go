package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Linh3694/frappe-erp-sub001/internal/auth"
	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

// Handler exposes the import pipeline over HTTP:
//
//	POST /imports                      multipart upload, queues a job
//	GET  /imports/status?job_id=...    job status snapshot
//	POST /imports/cancel?job_id=...    cancellation request
//	GET  /imports/template?schema=...  blank spreadsheet template
//	GET  /imports/errors/{job_id}      generated error report
//	GET  /files/{id}                   stored-file download
type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/files/"):
		h.handleFileDownload(w, r)
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/errors/"):
		h.handleErrorReport(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/status"):
		h.handleStatus(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/template"):
		h.handleTemplate(w, r)
	case r.Method == http.MethodGet:
		h.handleListActive(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/cancel"):
		h.handleCancel(w, r)
	case r.Method == http.MethodPost:
		h.handleQueue(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	schemaName := strings.TrimSpace(r.FormValue("schema"))
	if schemaName == "" {
		http.Error(w, "schema is required", http.StatusBadRequest)
		return
	}

	campusID, err := resolveRequestCampus(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := auth.EnforceCampusScope(r.Context(), campusID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	req := ImportRequest{
		SchemaName: schemaName,
		CampusID:   campusID,
		FileName:   header.Filename,
		FileData:   data,
		Options: domain.ImportOptions{
			UpdateIfExists: parseBoolForm(r.FormValue("update_if_exists")),
			DryRun:         parseBoolForm(r.FormValue("dry_run")),
		},
	}

	job, err := h.service.StartImport(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r.URL.Query().Get("job_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	job, err := h.service.GetStatus(r.Context(), jobID)
	if err != nil {
		http.Error(w, fmt.Sprintf("job not found: %v", err), http.StatusNotFound)
		return
	}
	if err := auth.EnforceCampusScope(r.Context(), job.CampusID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, statusPayload(job))
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	campusID, err := resolveRequestCampus(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := auth.EnforceCampusScope(r.Context(), campusID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	jobs, err := h.service.ListActive(r.Context(), campusID)
	if err != nil {
		http.Error(w, fmt.Sprintf("list jobs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r.URL.Query().Get("job_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	job, err := h.service.GetStatus(r.Context(), jobID)
	if err != nil {
		http.Error(w, fmt.Sprintf("job not found: %v", err), http.StatusNotFound)
		return
	}
	if err := auth.EnforceCampusScope(r.Context(), job.CampusID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	cancelled, err := h.service.Cancel(r.Context(), jobID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	schemaName := strings.TrimSpace(r.URL.Query().Get("schema"))
	schema, err := domain.SchemaByName(schemaName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := BuildTemplate(schema)
	if err != nil {
		http.Error(w, fmt.Sprintf("build template: %v", err), http.StatusInternalServerError)
		return
	}
	fileName := fmt.Sprintf("%s-import-template.xlsx", schema.Name)
	serveWorkbook(w, fileName, data)
}

func (h *Handler) handleErrorReport(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx == -1 || idx == len(path)-1 {
		http.Error(w, "missing job identifier", http.StatusBadRequest)
		return
	}
	jobID, err := parseJobID(path[idx+1:])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	job, err := h.service.GetStatus(r.Context(), jobID)
	if err != nil {
		http.Error(w, fmt.Sprintf("job not found: %v", err), http.StatusNotFound)
		return
	}
	if err := auth.EnforceCampusScope(r.Context(), job.CampusID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	reader, meta, err := h.service.OpenErrorReport(r.Context(), jobID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.FileName))
	if meta.ByteSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.ByteSize, 10))
	}
	_, _ = io.Copy(w, reader)
}

func (h *Handler) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx == -1 || idx == len(path)-1 {
		http.Error(w, "missing file identifier", http.StatusBadRequest)
		return
	}
	fileID, err := uuid.Parse(path[idx+1:])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid file identifier: %v", err), http.StatusBadRequest)
		return
	}
	reader, meta, err := h.service.OpenFile(r.Context(), fileID)
	if err != nil {
		http.Error(w, fmt.Sprintf("file not found: %v", err), http.StatusNotFound)
		return
	}
	defer reader.Close()

	// Private files belong to a job; the campus scope of the request must
	// match the owning job's.
	if meta.Visibility == domain.FileVisibilityPrivate && meta.OwnerSchema == "import_jobs" && meta.OwnerID != uuid.Nil {
		job, jobErr := h.service.GetStatus(r.Context(), meta.OwnerID)
		if jobErr == nil {
			if scopeErr := auth.EnforceCampusScope(r.Context(), job.CampusID); scopeErr != nil {
				http.Error(w, scopeErr.Error(), http.StatusForbidden)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.FileName))
	if meta.ByteSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.ByteSize, 10))
	}
	_, _ = io.Copy(w, reader)
}

// statusPayload shapes the status response, adding the derived percentage.
func statusPayload(job domain.ImportJob) map[string]any {
	return map[string]any{
		"job":                 job,
		"progress_percentage": job.ProgressPercentage(),
	}
}

// resolveRequestCampus reads the campus from the form or query, falling back
// to the authenticated scope.
func resolveRequestCampus(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.FormValue("campus_id"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("campus_id"))
	}
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid campus_id: %w", err)
		}
		return id, nil
	}
	if id, ok := auth.CampusIDFromContext(r.Context()); ok {
		return id, nil
	}
	return uuid.Nil, errors.New("campus_id is required")
}

func parseJobID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, errors.New("job_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job_id: %w", err)
	}
	return id, nil
}

func parseBoolForm(raw string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && parsed
}

func serveWorkbook(w http.ResponseWriter, fileName string, data []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
