package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Number wraps a single numeric value, matching the platform's request
// encoding for prices.
type Number struct {
	Value float64 `json:"value"`
}

// InitializeRequest is the body of POST /api/v1/initialize.
type InitializeRequest struct {
	AccountID int64  `json:"accountId"`
	Password  string `json:"password"`
	Server    string `json:"server"`
	Path      string `json:"path"`
}

// TradeRequest is the platform's open-trade instruction.
type TradeRequest struct {
	Instrument     string  `json:"instrument"`
	Quantity       float64 `json:"quantity"`
	EntryPrice     Number  `json:"entryPrice"`
	StopLoss       Number  `json:"stopLoss"`
	TakeProfit     Number  `json:"takeProfit"`
	RiskPercentage float64 `json:"riskPercentage"`
	RiskRatio      float64 `json:"riskRatio"`
	BalanceToRisk  float64 `json:"balanceToRisk"`
	IsLong         bool    `json:"isLong"`
	OpenTime       string  `json:"openTime,omitempty"`
}

// statusResponse is the generic status/message envelope used by the
// non-data endpoints.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeFailure(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, statusResponse{Status: "failed", Message: message})
}
