package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
	"culturehub-api/internal/service"
	"culturehub-api/pkg/apierror"
	"culturehub-api/pkg/response"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// SiteHandler serves the public catalog.
type SiteHandler struct {
	catalog       *service.CatalogService
	defaultRadius float64
	logger        *zap.Logger
}

// NewSiteHandler creates a new site handler.
func NewSiteHandler(catalog *service.CatalogService, defaultRadius float64, logger *zap.Logger) *SiteHandler {
	return &SiteHandler{
		catalog:       catalog,
		defaultRadius: defaultRadius,
		logger:        logger,
	}
}

// List handles GET /sites?category=&limit=&offset=
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultPageSize)
	if err != nil {
		response.Error(w, err)
		return
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		response.Error(w, err)
		return
	}

	sites, err := h.catalog.ListEligible(r.Context(), repository.SiteFilter{
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.List(w, sites, limit, offset)
}

// Nearby handles GET /sites/nearby?lat=&lon=&radius=
func (h *SiteHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lon") == "" {
		response.Error(w, apierror.ValidationError("lat and lon are required"))
		return
	}
	lat, err := floatQuery(r, "lat", 0)
	if err != nil {
		response.Error(w, err)
		return
	}
	lon, err := floatQuery(r, "lon", 0)
	if err != nil {
		response.Error(w, err)
		return
	}
	radius, err := floatQuery(r, "radius", h.defaultRadius)
	if err != nil {
		response.Error(w, err)
		return
	}

	sites, err := h.catalog.Nearby(r.Context(), model.Point{Lon: lon, Lat: lat}, radius)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, sites)
}

// Get handles GET /sites/{id}
func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	site, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, site)
}
