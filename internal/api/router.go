package api

import (
	"net/http"

	"github.com/scones-unlimited/image-workflows/internal/api/handlers"
)

// Router sets up all API routes
type Router struct {
	mux        *http.ServeMux
	executions *handlers.ExecutionHandler
	workers    *handlers.WorkerHandler
	stats      *handlers.StatsHandler
}

// NewRouter creates a new Router
func NewRouter(
	executions *handlers.ExecutionHandler,
	workers *handlers.WorkerHandler,
	stats *handlers.StatsHandler,
) *Router {
	return &Router{
		mux:        http.NewServeMux(),
		executions: executions,
		workers:    workers,
		stats:      stats,
	}
}

// ServeStatic serves frontend files from dir at the root path. Must be
// called before Setup.
func (r *Router) ServeStatic(dir string) {
	r.mux.Handle("/", http.FileServer(http.Dir(dir)))
}

// Setup configures all routes
func (r *Router) Setup(token string) http.Handler {
	// Stats endpoint
	r.mux.HandleFunc("/api/v2/stats", r.stats.GetDashboardStats)

	// Execution endpoints
	r.mux.HandleFunc("/api/v2/executions", r.handleExecutions)
	r.mux.HandleFunc("/api/v2/executions/stats", r.executions.GetStats)
	r.mux.HandleFunc("/api/v2/executions/download", r.executions.Download)
	r.mux.HandleFunc("/api/v2/executions/{id}", r.handleExecution)
	r.mux.HandleFunc("/api/v2/executions/{id}/cancel", r.executions.Cancel)

	// Worker endpoints
	r.mux.HandleFunc("/api/v2/workers", r.workers.List)
	r.mux.HandleFunc("/api/v2/workers/register", r.workers.Register)
	r.mux.HandleFunc("/api/v2/workers/heartbeat", r.workers.Heartbeat)
	r.mux.HandleFunc("/api/v2/workers/stats", r.workers.GetStats)
	r.mux.HandleFunc("/api/v2/workers/{id}", r.handleWorker)
	r.mux.HandleFunc("/api/v2/workers/{id}/claim", r.workers.ClaimExecution)
	r.mux.HandleFunc("/api/v2/workers/{id}/complete", r.workers.CompleteExecution)
	r.mux.HandleFunc("/api/v2/workers/{id}/fail", r.workers.FailExecution)
	r.mux.HandleFunc("/api/v2/workers/{id}/release", r.workers.ReleaseExecution)

	// Apply middleware
	return Chain(r.mux,
		Recovery,
		Logger,
		CORS,
		SecurityHeaders,
		Auth(token),
	)
}

// handleExecutions routes requests for /api/v2/executions
func (r *Router) handleExecutions(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.executions.List(w, req)
	case http.MethodPost:
		r.executions.Create(w, req)
	default:
		handlers.RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleExecution routes requests for /api/v2/executions/{id}
func (r *Router) handleExecution(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.executions.GetByID(w, req)
	case http.MethodDelete:
		r.executions.Delete(w, req)
	default:
		handlers.RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleWorker routes requests for /api/v2/workers/{id}
func (r *Router) handleWorker(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.workers.GetByID(w, req)
	case http.MethodDelete:
		r.workers.Unregister(w, req)
	default:
		handlers.RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
