package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visage-id/visage/internal/cache"
	"github.com/visage-id/visage/internal/database"
	"github.com/visage-id/visage/internal/index"
	"github.com/visage-id/visage/internal/vision"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db       *pgxpool.Pool
	cache    cache.ResultCache
	index    IndexInspector
	provider vision.Provider
	logger   *slog.Logger
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(db *pgxpool.Pool, cache cache.ResultCache, index IndexInspector, provider vision.Provider, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:       db,
		cache:    cache,
		index:    index,
		provider: provider,
		logger:   logger,
	}
}

// HealthResponse represents the liveness response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ComponentHealth is one probe of the detailed report
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CacheHealth reports the active cache tier and its reachability
type CacheHealth struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Error  string `json:"error,omitempty"`
}

// ProviderHealth reports vision backend readiness and GPU usage
type ProviderHealth struct {
	Status         string `json:"status"`
	Name           string `json:"name"`
	Backend        string `json:"backend,omitempty"`
	Ready          bool   `json:"ready"`
	GPUActive      bool   `json:"gpu_active"`
	GPUMemoryUsed  uint64 `json:"gpu_memory_used,omitempty"`
	GPUMemoryTotal uint64 `json:"gpu_memory_total,omitempty"`
	Error          string `json:"error,omitempty"`
}

// DetailedHealthResponse aggregates the component probes
type DetailedHealthResponse struct {
	Status   string          `json:"status"`
	Database ComponentHealth `json:"database"`
	Cache    CacheHealth     `json:"cache"`
	Index    index.Stats     `json:"index"`
	Provider ProviderHealth  `json:"provider"`
}

// Health GET /health - liveness
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
	})
}

// Detailed GET /health/detailed - probes every component
func (h *HealthHandler) Detailed(c *fiber.Ctx) error {
	resp := DetailedHealthResponse{
		Status: "ok",
		Index:  h.index.Stats(),
	}

	// 1. Database ping
	resp.Database.Status = "ok"
	if err := database.HealthCheck(c.Context(), h.db); err != nil {
		resp.Database.Status = "down"
		resp.Database.Error = err.Error()
		resp.Status = "degraded"
	}

	// 2. Cache tier
	resp.Cache.Status = "ok"
	resp.Cache.Mode = h.cache.Mode()
	if err := h.cache.Ping(c.Context()); err != nil {
		resp.Cache.Status = "down"
		resp.Cache.Error = err.Error()
		resp.Status = "degraded"
	}

	// 3. Vision provider
	resp.Provider.Name = h.provider.Name()
	status, err := h.provider.Status(c.Context())
	switch {
	case err != nil:
		resp.Provider.Status = "down"
		resp.Provider.Error = err.Error()
		resp.Status = "degraded"
	case !status.Ready:
		resp.Provider.Status = "not_ready"
		resp.Provider.Backend = status.Backend
		resp.Status = "degraded"
	default:
		resp.Provider.Status = "ok"
		resp.Provider.Ready = true
		resp.Provider.Backend = status.Backend
		resp.Provider.GPUActive = status.GPUActive
		resp.Provider.GPUMemoryUsed = status.GPUMemoryUsed
		resp.Provider.GPUMemoryTotal = status.GPUMemoryTotal
	}

	code := fiber.StatusOK
	if resp.Status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(resp)
}
