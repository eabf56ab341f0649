package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"culturehub-api/internal/service"
	"culturehub-api/pkg/apierror"
	"culturehub-api/pkg/response"
)

// ReviewHandler handles site reviews.
type ReviewHandler struct {
	reviews *service.ReviewService
	logger  *zap.Logger
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(reviews *service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews: reviews,
		logger:  logger,
	}
}

// ReviewRequest represents the request body for creating or editing a review.
type ReviewRequest struct {
	SiteID  string `json:"siteId,omitempty"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// ListBySite handles GET /reviews/site/{siteId}
func (h *ReviewHandler) ListBySite(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListBySite(r.Context(), chi.URLParam(r, "siteId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, reviews)
}

// Create handles POST /reviews
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.SiteID == "" {
		response.Error(w, apierror.ValidationError("siteId is required"))
		return
	}

	review, err := h.reviews.Create(r.Context(), id, req.SiteID, service.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, review)
}

// Update handles PUT /reviews/{id}
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	review, err := h.reviews.Update(r.Context(), id, chi.URLParam(r, "id"), service.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, review)
}

// Delete handles DELETE /reviews/{id}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	if err := h.reviews.Delete(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.NoContent(w)
}
