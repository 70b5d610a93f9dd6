package terminal

// Order side values as reported by the terminal bridge. These mirror the
// MT5 ORDER_TYPE_BUY / ORDER_TYPE_SELL constants; any other value is an
// unsupported record for this adapter.
const (
	OrderTypeBuy  = 0
	OrderTypeSell = 1

	// TradeRetcodeDone is the bridge retcode for a fully executed order.
	TradeRetcodeDone = 10009

	TradeActionDeal = "DEAL"
)

// RawOrder is one broker order record from the terminal's order history.
// Two orders, one per side, together make up one closed logical trade.
type RawOrder struct {
	Ticket         int64   `json:"ticket"`
	LogicalTradeID int64   `json:"position_id"`
	Symbol         string  `json:"symbol"`
	Side           int     `json:"type"`
	InitialVolume  float64 `json:"volume_initial"`
	FillPrice      float64 `json:"price_current"`
	CompletionTime int64   `json:"time_done"`
	StopLoss       float64 `json:"sl"`
	TakeProfit     float64 `json:"tp"`
}

// RawPosition is a currently-open position snapshot.
type RawPosition struct {
	Ticket        int64   `json:"ticket"`
	Symbol        string  `json:"symbol"`
	Side          int     `json:"type"`
	Volume        float64 `json:"volume"`
	OpenPrice     float64 `json:"price_open"`
	OpenTime      int64   `json:"time"`
	StopLoss      float64 `json:"sl"`
	TakeProfit    float64 `json:"tp"`
	RunningProfit float64 `json:"profit"`
	Swap          float64 `json:"swap"`
	Commission    float64 `json:"commission"`
}

// RawDeal is a settlement record carrying the realized result of one
// order within a logical trade.
type RawDeal struct {
	OrderTicket    int64   `json:"order"`
	LogicalTradeID int64   `json:"position_id"`
	Profit         float64 `json:"profit"`
	Swap           float64 `json:"swap"`
	Commission     float64 `json:"commission"`
}

// AccountInfo is the terminal's account summary, passed through to API
// consumers unchanged.
type AccountInfo struct {
	Login          int64   `json:"login"`
	Name           string  `json:"name"`
	Server         string  `json:"server"`
	Company        string  `json:"company"`
	Currency       string  `json:"currency"`
	CurrencyDigits int     `json:"currency_digits"`
	Balance        float64 `json:"balance"`
	Equity         float64 `json:"equity"`
	Credit         float64 `json:"credit"`
	Profit         float64 `json:"profit"`
	Margin         float64 `json:"margin"`
	MarginFree     float64 `json:"margin_free"`
	MarginLevel    float64 `json:"margin_level"`
	Leverage       int     `json:"leverage"`
	LimitOrders    int     `json:"limit_orders"`
	TradeAllowed   bool    `json:"trade_allowed"`
	TradeExpert    bool    `json:"trade_expert"`
}

// Tick is the latest bid/ask quote for a symbol.
type Tick struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"`
}

// OrderSendRequest is a market order instruction for the terminal.
type OrderSendRequest struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	Side       int     `json:"type"`
	Price      float64 `json:"price,omitempty"`
	StopLoss   float64 `json:"sl,omitempty"`
	TakeProfit float64 `json:"tp,omitempty"`
	// Position closes an existing logical trade when set.
	Position  int64 `json:"position,omitempty"`
	Deviation int   `json:"deviation,omitempty"`
}

// OrderSendResult is the terminal's execution report for an order request.
type OrderSendResult struct {
	Retcode int     `json:"retcode"`
	Deal    int64   `json:"deal"`
	Order   int64   `json:"order"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Comment string  `json:"comment"`
}

// Done reports whether the order was fully executed.
func (r *OrderSendResult) Done() bool {
	return r.Retcode == TradeRetcodeDone
}

// InitializeRequest carries terminal login credentials.
type InitializeRequest struct {
	Login    int64  `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
	Path     string `json:"path"`
}
