package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"mt5-adapter-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientInterface defines the interface for the terminal bridge client.
type ClientInterface interface {
	Initialize(req *InitializeRequest) error
	AccountInfo(login int64) (*AccountInfo, error)
	QueryOrders(login int64, start, end time.Time) ([]RawOrder, error)
	QueryOpenPosition(ticket int64) (*RawPosition, error)
	QueryOpenPositions(login int64) ([]RawPosition, error)
	QueryDeals(logicalTradeID int64) ([]RawDeal, error)
	SymbolTick(symbol string) (*Tick, error)
	SendOrder(req *OrderSendRequest) (*OrderSendResult, error)
}

// Client talks to the MT5 terminal bridge over HTTP.
// It implements the ClientInterface.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// bridgeError is the error envelope returned by the bridge on failure.
type bridgeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a new terminal bridge client.
func NewClient(cfg *config.Terminal, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)

	// rate.Limit is requests per second toward the bridge.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}
}

// doRequest handles request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing bridge request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			var envelope bridgeError
			if unmarshalErr := unmarshalInto(resp.Body(), &envelope); unmarshalErr == nil && envelope.Message != "" {
				return nil, fmt.Errorf("bridge error code %d: %s", envelope.Code, envelope.Message)
			}
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Bridge request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

func unmarshalInto(body []byte, v any) error {
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(body, v)
}

// Initialize logs the given account into its terminal via the bridge.
func (c *Client) Initialize(initReq *InitializeRequest) error {
	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(initReq)
	ctx := context.Background()

	_, err := c.doRequest(ctx, "POST", "/initialize", req)
	if err != nil {
		c.logger.Error("Failed to initialize terminal session",
			zap.Int64("login", initReq.Login), zap.Error(err))
		return fmt.Errorf("failed to initialize terminal session for %d: %w", initReq.Login, err)
	}
	return nil
}

// AccountInfo fetches the terminal account summary.
func (c *Client) AccountInfo(login int64) (*AccountInfo, error) {
	req := c.client.R().
		SetQueryParam("login", strconv.FormatInt(login, 10)).
		SetResult(&AccountInfo{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/account-info", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}

	return resp.Result().(*AccountInfo), nil
}

// QueryOrders fetches all historical orders for the account completed in
// [start, end). The bridge reports "no orders" as an empty list; any
// error return is a genuine query failure.
func (c *Client) QueryOrders(login int64, start, end time.Time) ([]RawOrder, error) {
	var orders []RawOrder

	req := c.client.R().
		SetQueryParams(map[string]string{
			"login": strconv.FormatInt(login, 10),
			"from":  strconv.FormatInt(start.Unix(), 10),
			"to":    strconv.FormatInt(end.Unix(), 10),
		}).
		SetResult(&orders)
	ctx := context.Background()

	_, err := c.doRequest(ctx, "GET", "/history-orders", req)
	if err != nil {
		return nil, fmt.Errorf("failed to query history orders: %w", err)
	}

	return orders, nil
}

// QueryOpenPosition fetches the open position with the given ticket.
// Returns (nil, nil) when the terminal reports no such position.
func (c *Client) QueryOpenPosition(ticket int64) (*RawPosition, error) {
	var positions []RawPosition

	req := c.client.R().
		SetQueryParam("ticket", strconv.FormatInt(ticket, 10)).
		SetResult(&positions)
	ctx := context.Background()

	_, err := c.doRequest(ctx, "GET", "/positions", req)
	if err != nil {
		return nil, fmt.Errorf("failed to query open position %d: %w", ticket, err)
	}

	if len(positions) == 0 {
		return nil, nil
	}
	return &positions[0], nil
}

// QueryOpenPositions fetches all currently-open positions for the account.
func (c *Client) QueryOpenPositions(login int64) ([]RawPosition, error) {
	var positions []RawPosition

	req := c.client.R().
		SetQueryParam("login", strconv.FormatInt(login, 10)).
		SetResult(&positions)
	ctx := context.Background()

	_, err := c.doRequest(ctx, "GET", "/positions", req)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}

	return positions, nil
}

// QueryDeals fetches the settlement deals recorded for a logical trade.
func (c *Client) QueryDeals(logicalTradeID int64) ([]RawDeal, error) {
	var deals []RawDeal

	req := c.client.R().
		SetQueryParam("position", strconv.FormatInt(logicalTradeID, 10)).
		SetResult(&deals)
	ctx := context.Background()

	_, err := c.doRequest(ctx, "GET", "/history-deals", req)
	if err != nil {
		return nil, fmt.Errorf("failed to query deals for position %d: %w", logicalTradeID, err)
	}

	return deals, nil
}

// SymbolTick fetches the latest bid/ask for a symbol.
// Returns (nil, nil) when the symbol is unknown to the terminal.
func (c *Client) SymbolTick(symbol string) (*Tick, error) {
	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetResult(&Tick{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/tick", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get tick for %s: %w", symbol, err)
	}

	tick := resp.Result().(*Tick)
	if tick.Symbol == "" {
		return nil, nil
	}
	return tick, nil
}

// SendOrder submits a market order to the terminal.
func (c *Client) SendOrder(orderReq *OrderSendRequest) (*OrderSendResult, error) {
	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(orderReq).
		SetResult(&OrderSendResult{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "POST", "/order-send", req)
	if err != nil {
		c.logger.Error("Failed to send order",
			zap.String("symbol", orderReq.Symbol),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send order: %w", err)
	}

	result := resp.Result().(*OrderSendResult)
	c.logger.Info("Order request executed", zap.Any("result", result))
	return result, nil
}
