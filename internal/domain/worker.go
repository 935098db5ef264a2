package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkerStatus represents the status of a pipeline worker
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusOffline WorkerStatus = "offline"
)

// Worker represents a pipeline worker instance
type Worker struct {
	ID                   string       `json:"id"`
	Hostname             string       `json:"hostname"`
	Status               WorkerStatus `json:"status"`
	CurrentExecutionID   *uuid.UUID   `json:"current_execution_id,omitempty"`
	CurrentExecutionName *string      `json:"current_execution_name,omitempty"` // Populated via join

	// Stats
	ExecutionsCompleted int `json:"executions_completed"`
	ImagesProcessed     int `json:"images_processed"`

	// System metrics from the last heartbeat
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`

	// Heartbeat
	LastHeartbeat time.Time `json:"last_heartbeat"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsOnline returns true if the worker has sent a heartbeat recently
func (w *Worker) IsOnline(timeout time.Duration) bool {
	return time.Since(w.LastHeartbeat) < timeout
}

// WorkerHeartbeat is the request from a worker to update its status
type WorkerHeartbeat struct {
	WorkerID           string       `json:"worker_id"`
	Hostname           string       `json:"hostname"`
	Status             WorkerStatus `json:"status"`
	CurrentExecutionID *uuid.UUID   `json:"current_execution_id,omitempty"`
	CPUPercent         float64      `json:"cpu_percent,omitempty"`
	MemPercent         float64      `json:"mem_percent,omitempty"`
}

// WorkerStats contains aggregated worker statistics
type WorkerStats struct {
	TotalWorkers  int `json:"total_workers"`
	OnlineWorkers int `json:"online_workers"`
	BusyWorkers   int `json:"busy_workers"`
	IdleWorkers   int `json:"idle_workers"`
}

// WorkerListParams are parameters for listing workers
type WorkerListParams struct {
	Status *WorkerStatus
	Limit  int
	Offset int
}

// HeartbeatTimeout is the duration after which a worker is considered offline
const HeartbeatTimeout = 30 * time.Second

// HeartbeatInterval is how often workers should send heartbeats
const HeartbeatInterval = 10 * time.Second
