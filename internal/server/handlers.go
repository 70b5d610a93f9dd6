package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mt5-adapter-go/internal/models"
	"mt5-adapter-go/internal/pricing"
	"mt5-adapter-go/internal/reconcile"
	"mt5-adapter-go/internal/terminal"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TerminalAPI is the slice of the bridge client the handlers use directly.
// The reconciliation engine holds its own narrower view of the client.
type TerminalAPI interface {
	Initialize(req *terminal.InitializeRequest) error
	AccountInfo(login int64) (*terminal.AccountInfo, error)
	QueryOpenPosition(ticket int64) (*terminal.RawPosition, error)
	SymbolTick(symbol string) (*terminal.Tick, error)
	SendOrder(req *terminal.OrderSendRequest) (*terminal.OrderSendResult, error)
}

// Handler holds dependencies for the API endpoints.
type Handler struct {
	logger   *zap.Logger
	db       *gorm.DB
	client   TerminalAPI
	sessions *terminal.SessionManager
	agg      *reconcile.Aggregator
	registry *reconcile.Registry

	streamInterval time.Duration
	streamBuffer   int
	windowStart    time.Time
}

// NewHandler creates a new Handler.
func NewHandler(
	logger *zap.Logger,
	db *gorm.DB,
	client TerminalAPI,
	sessions *terminal.SessionManager,
	agg *reconcile.Aggregator,
	registry *reconcile.Registry,
	streamInterval time.Duration,
	streamBuffer int,
	windowStart time.Time,
) *Handler {
	return &Handler{
		logger:         logger,
		db:             db,
		client:         client,
		sessions:       sessions,
		agg:            agg,
		registry:       registry,
		streamInterval: streamInterval,
		streamBuffer:   streamBuffer,
		windowStart:    windowStart,
	}
}

// RegisterRoutes registers all authenticated API routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/initialize", h.InitializeHandler)
	mux.HandleFunc("GET /api/v1/accounts/{accountId}", h.AccountHandler)
	mux.HandleFunc("GET /api/v1/trades/{accountId}", h.TradesHandler)
	mux.HandleFunc("POST /api/v1/trades/open/{accountId}", h.OpenTradeHandler)
	mux.HandleFunc("POST /api/v1/trades/close/{accountId}/{ticket}", h.CloseTradeHandler)
	mux.HandleFunc("GET /api/v1/transactions/{accountId}/stream", h.StreamHandler)
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("accountId"), 10, 64)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "Invalid account id")
		return 0, false
	}
	return id, true
}

// requireSession writes a failure response and returns false when the
// account has never been initialized on this adapter.
func (h *Handler) requireSession(w http.ResponseWriter, accountID int64, status int) bool {
	if h.sessions.Initialized(accountID) {
		return true
	}
	h.logger.Error("Account has no terminal session", zap.Int64("login", accountID))
	h.writeFailure(w, status,
		fmt.Sprintf("MT5 instance not initialized for account %d", accountID))
	return false
}

// InitializeHandler logs an account into its terminal and records the
// session.
func (h *Handler) InitializeHandler(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch {
	case req.AccountID == 0:
		h.writeFailure(w, http.StatusBadRequest, "Missing accountId")
		return
	case req.Password == "":
		h.writeFailure(w, http.StatusBadRequest, "Missing password")
		return
	case req.Server == "":
		h.writeFailure(w, http.StatusBadRequest, "Missing server")
		return
	case req.Path == "":
		h.writeFailure(w, http.StatusBadRequest, "Missing path")
		return
	}

	h.logger.Info("Initializing terminal account", zap.Int64("login", req.AccountID))

	err := h.client.Initialize(&terminal.InitializeRequest{
		Login:    req.AccountID,
		Password: req.Password,
		Server:   req.Server,
		Path:     req.Path,
	})
	if err != nil {
		h.logger.Error("Terminal initialization failed", zap.Int64("login", req.AccountID), zap.Error(err))
		h.writeFailure(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to initialize MT5 instance: %v", err))
		return
	}

	h.sessions.Register(req.AccountID, req.Server, req.Path)

	// Remember the account (without credentials) across restarts.
	account := models.TerminalAccount{Login: req.AccountID, Server: req.Server, Path: req.Path}
	if err := h.db.Where(models.TerminalAccount{Login: req.AccountID}).
		Assign(models.TerminalAccount{Server: req.Server, Path: req.Path}).
		FirstOrCreate(&account).Error; err != nil {
		// The session is live either way; persistence is best effort.
		h.logger.Error("Failed to persist terminal account", zap.Int64("login", req.AccountID), zap.Error(err))
	}

	h.writeJSON(w, http.StatusOK, statusResponse{
		Status:  "initialized",
		Message: fmt.Sprintf("Successfully initialized account with id: %d", req.AccountID),
	})
}

// AccountHandler returns the terminal's account summary.
func (h *Handler) AccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if !h.requireSession(w, accountID, http.StatusNotFound) {
		return
	}

	info, err := h.client.AccountInfo(accountID)
	if err != nil {
		h.logger.Error("Failed to fetch account info", zap.Int64("login", accountID), zap.Error(err))
		h.writeFailure(w, http.StatusBadGateway,
			fmt.Sprintf("Failed to fetch account information: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// TradesHandler returns the reconciled trade list for the account.
func (h *Handler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if !h.requireSession(w, accountID, http.StatusNotFound) {
		return
	}

	trades, err := h.agg.Aggregate(accountID, h.windowStart)
	if err != nil {
		h.logger.Error("Trade aggregation failed", zap.Int64("login", accountID), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, reconcile.ErrUpstreamQuery) {
			status = http.StatusBadGateway
		}
		h.writeFailure(w, status, fmt.Sprintf("Failed to get trades: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"trades": trades,
	})
}

// OpenTradeHandler derives an executable order from the platform's risk
// parameters and submits it at market.
func (h *Handler) OpenTradeHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if !h.requireSession(w, accountID, http.StatusNotFound) {
		return
	}

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Instrument == "" {
		h.writeFailure(w, http.StatusBadRequest, "Missing instrument")
		return
	}

	tick, err := h.client.SymbolTick(req.Instrument)
	if err != nil {
		h.writeFailure(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch tick: %v", err))
		return
	}
	if tick == nil {
		h.writeFailure(w, http.StatusNotFound,
			fmt.Sprintf("Invalid Instrument/Symbol for accountId: %d", accountID))
		return
	}

	plan := pricing.Derive(pricing.Request{
		IsLong:         req.IsLong,
		EntryPrice:     req.EntryPrice.Value,
		StopLoss:       req.StopLoss.Value,
		RiskRatio:      req.RiskRatio,
		RiskPercentage: req.RiskPercentage,
		BalanceToRisk:  req.BalanceToRisk,
	}, tick.Bid, tick.Ask)

	if plan.Volume <= 0 {
		h.writeFailure(w, http.StatusBadRequest, "Derived volume is zero; check risk parameters")
		return
	}

	side := terminal.OrderTypeSell
	if req.IsLong {
		side = terminal.OrderTypeBuy
	}

	result, err := h.client.SendOrder(&terminal.OrderSendRequest{
		Action:     terminal.TradeActionDeal,
		Symbol:     req.Instrument,
		Volume:     plan.Volume,
		Side:       side,
		Price:      plan.Price,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
	})
	if err != nil {
		h.logger.Error("Failed to open trade", zap.Int64("login", accountID), zap.Error(err))
		h.writeFailure(w, http.StatusBadGateway, fmt.Sprintf("Failed to open trade: %v", err))
		return
	}
	if !result.Done() {
		h.writeFailure(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to open trade: [%d] %s", result.Retcode, result.Comment))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// CloseTradeHandler closes an open position at market with the opposite
// side order.
func (h *Handler) CloseTradeHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if !h.requireSession(w, accountID, http.StatusNotFound) {
		return
	}

	ticket, err := strconv.ParseInt(r.PathValue("ticket"), 10, 64)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "Invalid trade ticket")
		return
	}

	pos, err := h.client.QueryOpenPosition(ticket)
	if err != nil {
		h.writeFailure(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch position: %v", err))
		return
	}
	if pos == nil {
		h.writeFailure(w, http.StatusNotFound, fmt.Sprintf("Trade %d not found", ticket))
		return
	}

	closeSide := terminal.OrderTypeBuy
	if pos.Side == terminal.OrderTypeBuy {
		closeSide = terminal.OrderTypeSell
	}

	result, err := h.client.SendOrder(&terminal.OrderSendRequest{
		Action:    terminal.TradeActionDeal,
		Symbol:    pos.Symbol,
		Volume:    pos.Volume,
		Side:      closeSide,
		Position:  ticket,
		Deviation: 20,
	})
	if err != nil {
		h.logger.Error("Failed to close trade", zap.Int64("ticket", ticket), zap.Error(err))
		h.writeFailure(w, http.StatusBadGateway, fmt.Sprintf("Failed to close trade: %v", err))
		return
	}
	if !result.Done() {
		h.writeFailure(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to close trade: [%d] %s", result.Retcode, result.Comment))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}
