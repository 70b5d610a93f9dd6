package reconcile

import "math"

// Trade is one logical trade reconciled from the terminal's raw order,
// position, and deal records. It is rebuilt from scratch on every poll;
// nothing mutates a Trade in place. LogicalTradeID is the identity key
// and is unique within one account's snapshot.
type Trade struct {
	LogicalTradeID int64   `json:"position_id"`
	Symbol         string  `json:"symbol"`
	TotalVolume    float64 `json:"total_volume"`
	IsLong         bool    `json:"is_long"`
	IsOpen         bool    `json:"is_open"`

	OpenOrderTicket int64   `json:"open_order_ticket"`
	OpenPrice       float64 `json:"open_order_price"`
	OpenTime        int64   `json:"open_order_time"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`

	// Profit is realized P&L including swap and commission once closed,
	// and the running equivalent while the trade is still open.
	Profit float64 `json:"profit"`

	// Close-side fields are only set once both order halves exist.
	CloseOrderTicket *int64   `json:"close_order_ticket,omitempty"`
	ClosePrice       *float64 `json:"close_order_price,omitempty"`
	CloseTime        *int64   `json:"close_order_time,omitempty"`
}

// ClosedEvent is emitted for a trade observed open in one snapshot and
// closed in the next.
type ClosedEvent struct {
	LogicalTradeID int64   `json:"position_id"`
	Profit         float64 `json:"profit"`
	ClosePrice     float64 `json:"close_order_price"`
}

// Round2 rounds a monetary value to 2 decimal places, half away from
// zero, matching what the terminal itself displays.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
