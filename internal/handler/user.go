package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"culturehub-api/internal/model"
	"culturehub-api/internal/service"
	"culturehub-api/pkg/apierror"
	"culturehub-api/pkg/response"
)

// UserHandler serves the authenticated account's own resources.
type UserHandler struct {
	accounts      *service.AccountService
	collector     *service.CollectorService
	collection    *service.CollectionService
	defaultRadius float64
	logger        *zap.Logger
}

// NewUserHandler creates a new user handler. defaultRadius is used when a
// request does not name a collection radius.
func NewUserHandler(
	accounts *service.AccountService,
	collector *service.CollectorService,
	collection *service.CollectionService,
	defaultRadius float64,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		accounts:      accounts,
		collector:     collector,
		collection:    collection,
		defaultRadius: defaultRadius,
		logger:        logger,
	}
}

// ProfileRequest represents the request body for profile updates. Omitted
// fields are left unchanged.
type ProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// LocationRequest represents the request body for location updates.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Radius    *float64 `json:"radius,omitempty"`
}

// LocationResponse is returned after a location update.
type LocationResponse struct {
	Location     *model.Point `json:"current_location"`
	VisitedSites []model.Site `json:"visited_sites"`
}

// SiteRequest names a site in a request body.
type SiteRequest struct {
	SiteID string `json:"siteId"`
}

// Me handles GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, account)
}

// UpdateProfile handles PUT /users/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	account, err := h.accounts.UpdateProfile(r.Context(), id, service.ProfileUpdate{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, account)
}

// UpdateLocation handles PUT /users/location. The new location replaces the
// old one and nearby sites are collected right away.
func (h *UserHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req LocationRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		response.Error(w, apierror.ValidationError("latitude and longitude are required"))
		return
	}
	radius := h.defaultRadius
	if req.Radius != nil {
		radius = *req.Radius
	}
	if err := h.collector.ValidateRadius(radius); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.UpdateLocation(r.Context(), id, model.Point{Lon: *req.Longitude, Lat: *req.Latitude})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	visited, err := h.collector.Collect(r.Context(), id, radius)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.OK(w, LocationResponse{
		Location:     account.Location,
		VisitedSites: visited,
	})
}

// VisitedSites handles GET /users/visited-sites?radius=
func (h *UserHandler) VisitedSites(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	radius, err := floatQuery(r, "radius", h.defaultRadius)
	if err != nil {
		response.Error(w, err)
		return
	}

	visited, err := h.collector.Collect(r.Context(), id, radius)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, visited)
}

// Favorites handles GET /users/favorites
func (h *UserHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	sites, err := h.collection.Favorites(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, sites)
}

// AddFavorite handles POST /users/favorites
func (h *UserHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req SiteRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.SiteID == "" {
		response.Error(w, apierror.ValidationError("siteId is required"))
		return
	}

	sites, err := h.collection.AddFavorite(r.Context(), id, req.SiteID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, sites)
}

// RemoveFavorite handles DELETE /users/favorites/{siteId}
func (h *UserHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	sites, err := h.collection.RemoveFavorite(r.Context(), id, chi.URLParam(r, "siteId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, sites)
}

// Catch handles POST /users/catch
func (h *UserHandler) Catch(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req SiteRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.SiteID == "" {
		response.Error(w, apierror.ValidationError("siteId is required"))
		return
	}

	entry, err := h.collection.Catch(r.Context(), id, req.SiteID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, entry)
}

// Inventory handles GET /users/inventory
func (h *UserHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	items, err := h.collection.Inventory(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, items)
}

// floatQuery parses an optional float query parameter.
func floatQuery(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apierror.ValidationError(name+" must be a number", apierror.FieldError{Field: name, Message: "not a number"})
	}
	return v, nil
}

// intQuery parses an optional non-negative integer query parameter.
func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apierror.ValidationError(name+" must be a non-negative integer", apierror.FieldError{Field: name, Message: "invalid"})
	}
	return v, nil
}
