package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultThreshold is the confidence cutoff applied by the filter step
// when an execution does not specify one.
const DefaultThreshold = 0.70

// ExecutionStatus represents the status of a workflow execution
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusQueued    ExecutionStatus = "queued"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal returns true if the execution is in a terminal state
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// CanCancel returns true if the execution can be cancelled
func (s ExecutionStatus) CanCancel() bool {
	return s == ExecutionStatusPending || s == ExecutionStatusQueued || s == ExecutionStatusRunning
}

// Execution represents a single run of the image classification workflow
type Execution struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Status   ExecutionStatus `json:"status"`
	Priority int             `json:"priority"`

	// Configuration
	Config ExecutionConfig `json:"config"`

	// Result
	Result ExecutionResult `json:"result"`

	// Worker assignment
	WorkerID *string `json:"worker_id,omitempty"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error info
	ErrorMessage *string `json:"error_message,omitempty"`
}

// ExecutionConfig contains the workflow input configuration
type ExecutionConfig struct {
	S3Bucket     string  `json:"s3_bucket"`
	S3Key        string  `json:"s3_key"`
	EndpointName string  `json:"endpoint_name"`
	Threshold    float64 `json:"threshold"`
}

// ExecutionResult contains the workflow output
type ExecutionResult struct {
	Inferences []string `json:"inferences,omitempty"`
	TopScore   float64  `json:"top_score"`
	Passed     bool     `json:"passed"`
}

// CreateExecutionRequest is the request to create a new execution
type CreateExecutionRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=255"`
	S3Bucket     string  `json:"s3_bucket" validate:"required"`
	S3Key        string  `json:"s3_key" validate:"required"`
	EndpointName string  `json:"endpoint_name,omitempty"`
	Threshold    float64 `json:"threshold" validate:"min=0,max=1"`
	Priority     int     `json:"priority" validate:"min=0,max=100"`
}

// ToExecution converts a CreateExecutionRequest to an Execution
func (r *CreateExecutionRequest) ToExecution() *Execution {
	now := time.Now().UTC()

	config := ExecutionConfig{
		S3Bucket:     r.S3Bucket,
		S3Key:        r.S3Key,
		EndpointName: r.EndpointName,
		Threshold:    r.Threshold,
	}

	if config.Threshold == 0 {
		config.Threshold = DefaultThreshold
	}

	name := r.Name
	if name == "" {
		name = r.S3Key
	}

	return &Execution{
		ID:        uuid.New(),
		Name:      name,
		Status:    ExecutionStatusPending,
		Priority:  r.Priority,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateExecutionRequest is the request to update an execution (cancel)
type UpdateExecutionRequest struct {
	Status *ExecutionStatus `json:"status,omitempty"`
}

// ExecutionListParams are parameters for listing executions
type ExecutionListParams struct {
	Status   *ExecutionStatus
	WorkerID *string
	Limit    int
	Offset   int
	OrderBy  string
	OrderDir string
}

// ExecutionStats contains aggregated execution statistics
type ExecutionStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
