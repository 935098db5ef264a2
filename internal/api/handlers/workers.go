package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// WorkerServiceInterface defines the worker service methods
type WorkerServiceInterface interface {
	Register(ctx context.Context, workerID string) (*domain.Worker, error)
	Heartbeat(ctx context.Context, hb *domain.WorkerHeartbeat) error
	List(ctx context.Context, params domain.WorkerListParams) ([]*domain.Worker, error)
	GetByID(ctx context.Context, id string) (*domain.Worker, error)
	GetStats(ctx context.Context) (*domain.WorkerStats, error)
	ClaimExecution(ctx context.Context, workerID string) (*domain.Execution, error)
	ReleaseExecution(ctx context.Context, execID uuid.UUID, workerID string) error
	CompleteExecution(ctx context.Context, execID uuid.UUID, workerID string, result domain.ExecutionResult) error
	FailExecution(ctx context.Context, execID uuid.UUID, workerID string, errMsg string) error
	Unregister(ctx context.Context, workerID string) error
}

// WorkerHandler handles worker-related HTTP requests
type WorkerHandler struct {
	workers WorkerServiceInterface
}

// NewWorkerHandler creates a new WorkerHandler
func NewWorkerHandler(workers WorkerServiceInterface) *WorkerHandler {
	return &WorkerHandler{
		workers: workers,
	}
}

// RegisterRequest represents the request body for worker registration
type RegisterRequest struct {
	WorkerID string `json:"worker_id"`
}

// HeartbeatRequest represents the request body for worker heartbeat
type HeartbeatRequest struct {
	WorkerID           string              `json:"worker_id"`
	Hostname           string              `json:"hostname,omitempty"`
	Status             domain.WorkerStatus `json:"status"`
	CurrentExecutionID *uuid.UUID          `json:"current_execution_id,omitempty"`
	CPUPercent         float64             `json:"cpu_percent,omitempty"`
	MemPercent         float64             `json:"mem_percent,omitempty"`
}

// CompleteExecutionRequest represents the request body for completing an execution
type CompleteExecutionRequest struct {
	ExecutionID uuid.UUID              `json:"execution_id"`
	Result      domain.ExecutionResult `json:"result"`
}

// FailExecutionRequest represents the request body for failing an execution
type FailExecutionRequest struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	Message     string    `json:"message"`
}

// ReleaseExecutionRequest represents the request body for releasing an execution
type ReleaseExecutionRequest struct {
	ExecutionID uuid.UUID `json:"execution_id"`
}

// Register handles POST /api/v2/workers/register
func (h *WorkerHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.WorkerID == "" {
		RenderError(w, http.StatusBadRequest, "Worker ID is required")
		return
	}

	worker, err := h.workers.Register(r.Context(), req.WorkerID)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to register worker: "+err.Error())
		return
	}

	RenderJSON(w, http.StatusCreated, worker)
}

// Heartbeat handles POST /api/v2/workers/heartbeat
func (h *WorkerHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.WorkerID == "" {
		RenderError(w, http.StatusBadRequest, "Worker ID is required")
		return
	}

	hb := &domain.WorkerHeartbeat{
		WorkerID:           req.WorkerID,
		Hostname:           req.Hostname,
		Status:             req.Status,
		CurrentExecutionID: req.CurrentExecutionID,
		CPUPercent:         req.CPUPercent,
		MemPercent:         req.MemPercent,
	}

	if err := h.workers.Heartbeat(r.Context(), hb); err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to update heartbeat: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClaimExecution handles POST /api/v2/workers/{id}/claim
func (h *WorkerHandler) ClaimExecution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	workerID := r.PathValue("id")
	if workerID == "" {
		RenderError(w, http.StatusBadRequest, "Worker ID is required")
		return
	}

	exec, err := h.workers.ClaimExecution(r.Context(), workerID)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to claim execution: "+err.Error())
		return
	}

	if exec == nil {
		// No pending executions
		RenderJSON(w, http.StatusOK, map[string]interface{}{
			"execution": nil,
		})
		return
	}

	RenderJSON(w, http.StatusOK, map[string]interface{}{
		"execution": exec,
	})
}

// CompleteExecution handles POST /api/v2/workers/{id}/complete
func (h *WorkerHandler) CompleteExecution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	workerID := r.PathValue("id")
	if workerID == "" {
		RenderError(w, http.StatusBadRequest, "Worker ID is required")
		return
	}

	var req CompleteExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.workers.CompleteExecution(r.Context(), req.ExecutionID, workerID, req.Result); err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to complete execution: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FailExecution handles POST /api/v2/workers/{id}/fail
func (h *WorkerHandler) FailExecution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	workerID := r.PathValue("id")
	if workerID == "" {
		RenderError(w, http.StatusBadRequest, "Worker ID is required")
		return
	}

	var req FailExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.workers.FailExecution(r.Context(), req.ExecutionID, workerID, req.Message); err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to fail execution: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReleaseExecution handles POST /api/v2/workers/{id}/release
func (h *WorkerHandler) ReleaseExecution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	workerID := r.PathValue("id")
	if workerID == "" {
		RenderError(w, http.StatusBadRequest, "Worker ID is required")
		return
	}

	var req ReleaseExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.workers.ReleaseExecution(r.Context(), req.ExecutionID, workerID); err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to release execution: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/v2/workers
func (h *WorkerHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	params := domain.WorkerListParams{}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.WorkerStatus(status)
		params.Status = &s
	}

	workers, err := h.workers.List(r.Context(), params)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to list workers: "+err.Error())
		return
	}

	RenderJSON(w, http.StatusOK, workers)
}

// GetByID handles GET /api/v2/workers/{id}
func (h *WorkerHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	workerID := r.PathValue("id")
	if workerID == "" {
		RenderError(w, http.StatusBadRequest, "Worker ID is required")
		return
	}

	worker, err := h.workers.GetByID(r.Context(), workerID)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to get worker: "+err.Error())
		return
	}

	if worker == nil {
		RenderError(w, http.StatusNotFound, "Worker not found")
		return
	}

	RenderJSON(w, http.StatusOK, worker)
}

// GetStats handles GET /api/v2/workers/stats
func (h *WorkerHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.workers.GetStats(r.Context())
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to get stats: "+err.Error())
		return
	}

	RenderJSON(w, http.StatusOK, stats)
}

// Unregister handles DELETE /api/v2/workers/{id}
func (h *WorkerHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	workerID := r.PathValue("id")
	if workerID == "" {
		RenderError(w, http.StatusBadRequest, "Worker ID is required")
		return
	}

	if err := h.workers.Unregister(r.Context(), workerID); err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to unregister worker: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
