package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/scones-unlimited/image-workflows/internal/cache"
	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// StatsServiceInterface defines the stats service methods
type StatsServiceInterface interface {
	GetStats(ctx context.Context) (*domain.DashboardStats, error)
}

// StatsHandler handles statistics-related HTTP requests
type StatsHandler struct {
	stats StatsServiceInterface
	cache cache.Cache
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(stats StatsServiceInterface) *StatsHandler {
	return &StatsHandler{
		stats: stats,
	}
}

// NewStatsHandlerWithCache creates a new StatsHandler with caching support
func NewStatsHandlerWithCache(stats StatsServiceInterface, c cache.Cache) *StatsHandler {
	return &StatsHandler{
		stats: stats,
		cache: c,
	}
}

// GetDashboardStats handles GET /api/v2/stats
func (h *StatsHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.cache != nil {
		if data, err := h.cache.Get(r.Context(), cache.KeyPrefixDashboardStats); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}

	stats, err := h.stats.GetStats(r.Context())
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to get stats: "+err.Error())
		return
	}

	if h.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := h.cache.Set(r.Context(), cache.KeyPrefixDashboardStats, data, cache.TTLStats); err != nil {
				log.Printf("[StatsHandler] Warning: failed to cache stats: %v", err)
			}
		}
	}

	RenderJSON(w, http.StatusOK, stats)
}
