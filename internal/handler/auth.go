package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"culturehub-api/internal/middleware"
	"culturehub-api/internal/model"
	"culturehub-api/internal/service"
	"culturehub-api/pkg/apierror"
	"culturehub-api/pkg/response"
)

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	accounts *service.AccountService
	sessions *service.SessionService
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accounts *service.AccountService, sessions *service.SessionService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRequest represents the request body for account creation.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Token     string         `json:"token"`
	ExpiresIn int            `json:"expires_in"`
	Account   *model.Account `json:"account"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	var details []apierror.FieldError
	if strings.TrimSpace(req.Name) == "" {
		details = append(details, apierror.FieldError{Field: "name", Message: "name is required"})
	}
	if strings.TrimSpace(req.Email) == "" {
		details = append(details, apierror.FieldError{Field: "email", Message: "email is required"})
	}
	if req.Password == "" {
		details = append(details, apierror.FieldError{Field: "password", Message: "password is required"})
	}
	if len(details) > 0 {
		response.Error(w, apierror.ValidationError("missing required fields", details...))
		return
	}

	account, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.issue(r, account)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, resp)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		response.Error(w, apierror.ValidationError("email and password are required"))
		return
	}

	account, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.issue(r, account)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, resp)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetToken(r.Context())
	if token == "" {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	if err := h.sessions.Revoke(r.Context(), token); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.OK(w, map[string]string{"status": "revoked"})
}

func (h *AuthHandler) issue(r *http.Request, account *model.Account) (*SessionResponse, error) {
	token, session, err := h.sessions.Issue(r.Context(), account)
	if err != nil {
		return nil, err
	}
	return &SessionResponse{
		Token:     token,
		ExpiresIn: int(session.ExpiresAt.Sub(session.CreatedAt).Seconds()),
		Account:   account,
	}, nil
}
