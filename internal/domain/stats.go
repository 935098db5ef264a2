package domain

// DashboardStats aggregates statistics for the dashboard endpoint
type DashboardStats struct {
	Executions *ExecutionStats `json:"executions"`
	Workers    *WorkerStats    `json:"workers"`

	// Aggregates over completed executions
	ImagesProcessed int     `json:"images_processed"`
	PassRate        float64 `json:"pass_rate"`
}
