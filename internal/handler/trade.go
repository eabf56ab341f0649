package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"culturehub-api/internal/service"
	"culturehub-api/pkg/apierror"
	"culturehub-api/pkg/response"
)

// TradeHandler handles trade codes and trades between accounts.
type TradeHandler struct {
	trades *service.TradeService
	logger *zap.Logger
}

// NewTradeHandler creates a new trade handler.
func NewTradeHandler(trades *service.TradeService, logger *zap.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

// TradeCodeResponse is returned when a code is generated.
type TradeCodeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeRequest carries a trade code.
type CodeRequest struct {
	Code string `json:"code"`
}

// RecipientResponse identifies the account a trade code belongs to.
type RecipientResponse struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

// TradeRequest represents the request body for executing a trade.
type TradeRequest struct {
	Code   string `json:"code"`
	SiteID string `json:"siteId"`
}

// GenerateCode handles POST /trade-codes
func (h *TradeHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	code, err := h.trades.GenerateCode(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, TradeCodeResponse{
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt,
	})
}

// LookupCode handles POST /trade-codes/lookup
func (h *TradeHandler) LookupCode(w http.ResponseWriter, r *http.Request) {
	if _, ok := accountID(w, r); !ok {
		return
	}

	var req CodeRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.Code == "" {
		response.Error(w, apierror.ValidationError("code is required"))
		return
	}

	account, err := h.trades.RedeemCode(r.Context(), req.Code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, RecipientResponse{
		AccountID: account.ID,
		Name:      account.Name,
	})
}

// Execute handles POST /trades
func (h *TradeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req TradeRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.Code == "" || req.SiteID == "" {
		response.Error(w, apierror.ValidationError("code and siteId are required"))
		return
	}

	transfer, err := h.trades.ExecuteTrade(r.Context(), id, req.Code, req.SiteID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, transfer)
}

// History handles GET /trades
func (h *TradeHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	transfers, err := h.trades.History(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, transfers)
}
