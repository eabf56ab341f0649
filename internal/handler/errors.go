package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"culturehub-api/internal/middleware"
	"culturehub-api/internal/model"
	"culturehub-api/pkg/apierror"
	"culturehub-api/pkg/response"
)

// toAPIError maps a domain error to its HTTP representation. The second
// return value is false for errors that have no mapping.
func toAPIError(err error) (*apierror.Error, bool) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	switch {
	case errors.Is(err, model.ErrNoLocationSaved):
		return apierror.New(http.StatusBadRequest, apierror.CodeNoLocationSaved, err.Error()), true
	case errors.Is(err, model.ErrInvalidOrExpiredCode):
		return apierror.New(http.StatusBadRequest, apierror.CodeInvalidOrExpiredCode, err.Error()), true
	case errors.Is(err, model.ErrInsufficientInventory):
		return apierror.New(http.StatusBadRequest, apierror.CodeInsufficientInventory, err.Error()), true
	case errors.Is(err, model.ErrIneligible):
		return apierror.New(http.StatusBadRequest, apierror.CodeIneligibleSite, err.Error()), true
	case errors.Is(err, model.ErrValidation):
		return apierror.ValidationError(err.Error()), true
	case errors.Is(err, model.ErrUnauthorized):
		return apierror.Unauthorized(err.Error()), true
	case errors.Is(err, model.ErrForbidden):
		return apierror.Forbidden(err.Error()), true
	case errors.Is(err, model.ErrNotFound):
		return apierror.NotFound(err.Error()), true
	case errors.Is(err, model.ErrConflict):
		return apierror.Conflict(err.Error()), true
	case errors.Is(err, model.ErrTransient):
		return apierror.ServiceUnavailable(""), true
	}
	return nil, false
}

// writeError sends err to the client. Unmapped errors become a generic 500
// and are logged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	apiErr, ok := toAPIError(err)
	if !ok {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		)
		apiErr = apierror.InternalError("")
	} else if apiErr.StatusCode == http.StatusServiceUnavailable {
		logger.Warn("storage unavailable", zap.String("path", r.URL.Path), zap.Error(err))
	}
	response.Error(w, apiErr)
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	return nil
}

// accountID returns the authenticated account or writes a 401.
func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		response.Error(w, apierror.Unauthorized(""))
		return "", false
	}
	return session.AccountID, true
}
