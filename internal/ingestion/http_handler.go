package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rpattn/salesingest/internal/auth"
	"github.com/rpattn/salesingest/internal/domain"
	"github.com/rpattn/salesingest/internal/middleware"
	"github.com/rpattn/salesingest/internal/repository"
	"github.com/rpattn/salesingest/internal/storage"
	"github.com/rpattn/salesingest/internal/tabular"
)

// DefaultMaxUploadBytes bounds a multipart upload body.
const DefaultMaxUploadBytes int64 = 16 << 20

type Handler struct {
	service        *Service
	maxUploadBytes int64
}

// NewHTTPHandler builds the upload API router. Every /api route is gated by
// the tenant header.
func NewHTTPHandler(service *Service, tenants repository.TenantRepository, maxUploadBytes int64) http.Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	h := &Handler{service: service, maxUploadBytes: maxUploadBytes}

	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware)
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.TenantMiddleware(tenants))
		r.Post("/uploads", h.handleUpload)
		r.Post("/uploads/{uploadID}/mapping", h.handleMapping)
		r.Get("/mapping", h.handleGetMapping)
		r.Get("/audit", h.handleAudit)
	})
	return r
}

type outcomeResponse struct {
	Message string `json:"message"`
	Outcome
}

type mappingPayload struct {
	RequiredMapping       map[string]string `json:"required_mapping"`
	OptionalMapping       map[string]string `json:"optional_mapping"`
	SystemOptionalMapping map[string]string `json:"system_optional_mapping"`
}

type errorResponse struct {
	Error          string          `json:"error"`
	Details        string          `json:"details,omitempty"`
	MissingColumns []domain.Column `json:"missing_required_columns,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:   "File too large",
				Details: fmt.Sprintf("limit is %d bytes", tooLarge.Limit),
			})
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No file provided", Details: err.Error()})
		}
		return
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No file selected"})
		return
	}

	outcome, err := h.service.Detect(r.Context(), DetectRequest{
		TenantID: tenantID,
		FileName: header.Filename,
		Data:     file,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if outcome.State == domain.UploadStateMappingPending {
		writeJSON(w, http.StatusOK, outcomeResponse{Message: "Column mapping required", Outcome: outcome})
		return
	}
	writeJSON(w, http.StatusCreated, outcomeResponse{
		Message: "File uploaded and processed using saved mapping",
		Outcome: outcome,
	})
}

func (h *Handler) handleMapping(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}
	uploadID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "uploadID")))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid upload id", Details: err.Error()})
		return
	}

	defer r.Body.Close()
	var payload mappingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid payload", Details: err.Error()})
		return
	}

	req := CommitRequest{TenantID: tenantID, UploadID: uploadID}
	for _, part := range []struct {
		name   string
		raw    map[string]string
		target *domain.ColumnMapping
	}{
		{"required_mapping", payload.RequiredMapping, &req.Required},
		{"optional_mapping", payload.OptionalMapping, &req.Optional},
		{"system_optional_mapping", payload.SystemOptionalMapping, &req.SystemOptional},
	} {
		parsed, err := domain.ParseColumnMapping(part.raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "Invalid " + part.name,
				Details: err.Error(),
			})
			return
		}
		*part.target = parsed
	}

	outcome, err := h.service.Commit(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcomeResponse{
		Message: "Mapping saved and data processed successfully",
		Outcome: outcome,
	})
}

func (h *Handler) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}
	stored, err := h.service.StoredMapping(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}

	var page [2]int
	for i, name := range []string{"limit", "offset"} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid " + name, Details: raw})
			return
		}
		page[i] = n
	}

	entries, err := h.service.AuditTrail(r.Context(), tenantID, page[0], page[1])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var (
		incomplete *domain.IncompleteMappingError
		missing    *domain.MissingColumnsError
		unreadable *domain.UnreadableSourceError
	)
	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:          "Required columns must be mapped",
			Details:        err.Error(),
			MissingColumns: incomplete.Missing,
		})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Mapped columns not found in file", Details: err.Error()})
	case errors.As(err, &unreadable):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unreadable file", Details: err.Error()})
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Only CSV or XLSX files are allowed", Details: err.Error()})
	case errors.Is(err, domain.ErrUnknownColumn):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid mapping", Details: err.Error()})
	case errors.Is(err, domain.ErrMappingNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "No saved mapping", Details: err.Error()})
	case errors.Is(err, domain.ErrUploadNotFound), errors.Is(err, storage.ErrArtifactNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Upload not found", Details: err.Error()})
	case errors.Is(err, auth.ErrTenantScope):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Forbidden", Details: err.Error()})
	case errors.Is(err, domain.ErrUploadTenantMismatch):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Upload belongs to another company", Details: err.Error()})
	case errors.Is(err, domain.ErrTenantInactive):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Company is suspended. Uploads are blocked.", Details: err.Error()})
	case errors.Is(err, domain.ErrUploadFinished):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Upload already processed", Details: err.Error()})
	default:
		log.Printf("[HTTP] ingestion failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Details: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
