package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/scones-unlimited/image-workflows/internal/cache"
	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/exporter"
	"github.com/scones-unlimited/image-workflows/internal/service"
)

// ExecutionServiceInterface defines the execution service methods
type ExecutionServiceInterface interface {
	Create(ctx context.Context, req *domain.CreateExecutionRequest) (*domain.Execution, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	List(ctx context.Context, params domain.ExecutionListParams) ([]*domain.Execution, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	GetStats(ctx context.Context) (*domain.ExecutionStats, error)
}

// ExecutionHandler handles execution-related HTTP requests
type ExecutionHandler struct {
	executions ExecutionServiceInterface
	cache      cache.Cache
}

// NewExecutionHandler creates a new ExecutionHandler
func NewExecutionHandler(executions ExecutionServiceInterface) *ExecutionHandler {
	return &ExecutionHandler{
		executions: executions,
	}
}

// NewExecutionHandlerWithCache creates a new ExecutionHandler with caching support
func NewExecutionHandlerWithCache(executions ExecutionServiceInterface, c cache.Cache) *ExecutionHandler {
	return &ExecutionHandler{
		executions: executions,
		cache:      c,
	}
}

// invalidateExecutionCache invalidates all execution-related cache entries
func (h *ExecutionHandler) invalidateExecutionCache(ctx context.Context) {
	if h.cache == nil {
		return
	}

	if err := h.cache.DeleteByPattern(ctx, cache.KeyPrefixExecutions+":*"); err != nil {
		log.Printf("[ExecutionHandler] Warning: failed to invalidate execution list cache: %v", err)
	}

	if err := h.cache.Delete(ctx, cache.KeyPrefixDashboardStats); err != nil {
		log.Printf("[ExecutionHandler] Warning: failed to invalidate stats cache: %v", err)
	}
}

// CreateExecutionRequest represents the request body for creating an execution
type CreateExecutionRequest struct {
	Name         string  `json:"name"`
	S3Bucket     string  `json:"s3_bucket"`
	S3Key        string  `json:"s3_key"`
	EndpointName string  `json:"endpoint_name,omitempty"`
	Threshold    float64 `json:"threshold"`
	Priority     int     `json:"priority"`
}

// Create handles POST /api/v2/executions
func (h *ExecutionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CreateExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// Validate required fields
	if req.S3Bucket == "" {
		RenderError(w, http.StatusBadRequest, "S3 bucket is required")
		return
	}
	if req.S3Key == "" {
		RenderError(w, http.StatusBadRequest, "S3 key is required")
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		RenderError(w, http.StatusBadRequest, "Threshold must be between 0 and 1")
		return
	}

	exec, err := h.executions.Create(r.Context(), &domain.CreateExecutionRequest{
		Name:         req.Name,
		S3Bucket:     req.S3Bucket,
		S3Key:        req.S3Key,
		EndpointName: req.EndpointName,
		Threshold:    req.Threshold,
		Priority:     req.Priority,
	})
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to create execution: "+err.Error())
		return
	}

	h.invalidateExecutionCache(r.Context())

	RenderJSON(w, http.StatusCreated, exec)
}

// List handles GET /api/v2/executions
func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	params := domain.ExecutionListParams{}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.ExecutionStatus(status)
		params.Status = &s
	}

	if workerID := r.URL.Query().Get("worker_id"); workerID != "" {
		params.WorkerID = &workerID
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	perPage := 20
	if pp := r.URL.Query().Get("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 && v <= 100 {
			perPage = v
		}
	}

	params.Limit = perPage
	params.Offset = (page - 1) * perPage

	// Try cache first (only for unfiltered first pages)
	cacheKey := ""
	if h.cache != nil && params.Status == nil && params.WorkerID == nil {
		cacheKey = fmt.Sprintf("%s:page:%d:%d", cache.KeyPrefixExecutions, page, perPage)
		if data, err := h.cache.Get(r.Context(), cacheKey); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}

	execs, total, err := h.executions.List(r.Context(), params)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to list executions: "+err.Error())
		return
	}

	response := NewPaginatedResponse(execs, total, page, perPage)

	if cacheKey != "" {
		if data, err := json.Marshal(response); err == nil {
			if err := h.cache.Set(r.Context(), cacheKey, data, cache.TTLExecutionsList); err != nil {
				log.Printf("[ExecutionHandler] Warning: failed to cache execution list: %v", err)
			}
		}
	}

	RenderJSON(w, http.StatusOK, response)
}

// GetByID handles GET /api/v2/executions/{id}
func (h *ExecutionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := parseExecutionID(r)
	if err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid execution ID")
		return
	}

	exec, err := h.executions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrExecutionNotFound) {
			RenderError(w, http.StatusNotFound, "Execution not found")
			return
		}
		RenderError(w, http.StatusInternalServerError, "Failed to get execution: "+err.Error())
		return
	}

	RenderJSON(w, http.StatusOK, exec)
}

// Delete handles DELETE /api/v2/executions/{id}
func (h *ExecutionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := parseExecutionID(r)
	if err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid execution ID")
		return
	}

	if err := h.executions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrExecutionNotFound) {
			RenderError(w, http.StatusNotFound, "Execution not found")
			return
		}
		RenderError(w, http.StatusInternalServerError, "Failed to delete execution: "+err.Error())
		return
	}

	h.invalidateExecutionCache(r.Context())

	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /api/v2/executions/{id}/cancel
func (h *ExecutionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := parseExecutionID(r)
	if err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid execution ID")
		return
	}

	exec, err := h.executions.Cancel(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExecutionNotFound):
			RenderError(w, http.StatusNotFound, "Execution not found")
		case errors.Is(err, service.ErrExecutionNotCancellable):
			RenderError(w, http.StatusConflict, "Execution cannot be cancelled")
		default:
			RenderError(w, http.StatusInternalServerError, "Failed to cancel execution: "+err.Error())
		}
		return
	}

	h.invalidateExecutionCache(r.Context())

	RenderJSON(w, http.StatusOK, exec)
}

// GetStats handles GET /api/v2/executions/stats
func (h *ExecutionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.executions.GetStats(r.Context())
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to get stats: "+err.Error())
		return
	}

	RenderJSON(w, http.StatusOK, stats)
}

// Download handles GET /api/v2/executions/download
func (h *ExecutionHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	params := domain.ExecutionListParams{Limit: 10000}
	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.ExecutionStatus(status)
		params.Status = &s
	}

	execs, _, err := h.executions.List(r.Context(), params)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to list executions: "+err.Error())
		return
	}

	columns := exporter.SelectColumns(r.URL.Query().Get("columns"))

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=executions.csv")
		if err := exporter.WriteCSV(w, execs, columns); err != nil {
			log.Printf("error writing CSV export: %v", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=executions.xlsx")
		if err := exporter.WriteXLSX(w, execs, columns); err != nil {
			log.Printf("error writing XLSX export: %v", err)
		}
	default:
		RenderError(w, http.StatusBadRequest, "Invalid format. Use 'csv' or 'xlsx'")
	}
}

// parseExecutionID extracts the execution ID from the request path
func parseExecutionID(r *http.Request) (uuid.UUID, error) {
	idStr := r.PathValue("id")
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("missing execution ID")
	}
	return uuid.Parse(idStr)
}
