package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"

	"culturehub-api/internal/repository"
	"culturehub-api/pkg/response"
)

// Counter reports how many records a collection holds.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Purger removes expired trade codes on demand.
type Purger interface {
	RunNow(ctx context.Context) (int64, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store       repository.Store
	sites       Counter
	purger      Purger
	storeType   string
	catalogType string
	cacheType   string
	startTime   time.Time
	logger      *zap.Logger
}

// AdminConfig holds the dependencies of the admin handler.
type AdminConfig struct {
	Store       repository.Store
	Sites       Counter
	Purger      Purger
	StoreType   string
	CatalogType string
	CacheType   string
	Logger      *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	return &AdminHandler{
		store:       cfg.Store,
		sites:       cfg.Sites,
		purger:      cfg.Purger,
		storeType:   cfg.StoreType,
		catalogType: cfg.CatalogType,
		cacheType:   cfg.CacheType,
		startTime:   time.Now(),
		logger:      cfg.Logger,
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType
	stats["catalog_type"] = h.catalogType
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	counters := map[string]Counter{
		"sites":       h.sites,
		"accounts":    h.store.Accounts(),
		"trade_codes": h.store.TradeCodes(),
		"reviews":     h.store.Reviews(),
		"transfers":   h.store.Transfers(),
	}
	counts := make(map[string]interface{}, len(counters))
	for name, c := range counters {
		if c == nil {
			continue
		}
		n, err := c.Count(ctx)
		if err != nil {
			h.logger.Warn("count failed", zap.String("collection", name), zap.Error(err))
			counts[name] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
			continue
		}
		counts[name] = n
	}
	stats["counts"] = counts

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// PurgeTradeCodes handles POST /api/v1/admin/trade-codes/purge
func (h *AdminHandler) PurgeTradeCodes(w http.ResponseWriter, r *http.Request) {
	removed, err := h.purger.RunNow(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, map[string]int64{"removed": removed})
}
