package reconcile

import (
	"fmt"
	"sort"
	"time"

	"mt5-adapter-go/internal/terminal"

	"go.uber.org/zap"
)

// querySlack extends the order query window past "now" so that orders
// completed near the boundary are never dropped by clock skew between
// the terminal and this process. One day is comfortably above any skew
// observed in practice.
const querySlack = 24 * time.Hour

// DataSource is the slice of the terminal bridge the aggregator consumes.
type DataSource interface {
	QueryOrders(login int64, start, end time.Time) ([]terminal.RawOrder, error)
	QueryOpenPosition(ticket int64) (*terminal.RawPosition, error)
	QueryDeals(logicalTradeID int64) ([]terminal.RawDeal, error)
}

// Aggregator reconciles raw order, position, and deal records into
// logical trades.
type Aggregator struct {
	src    DataSource
	logger *zap.Logger

	// strictOrphans fails the whole aggregation when a bucket has no
	// recognised order side; otherwise such buckets are logged and
	// skipped so partial results stay available for monitoring.
	strictOrphans bool
}

// NewAggregator creates a new Aggregator over the given data source.
func NewAggregator(src DataSource, logger *zap.Logger, strictOrphans bool) *Aggregator {
	return &Aggregator{
		src:           src,
		logger:        logger,
		strictOrphans: strictOrphans,
	}
}

// orderBucket holds the order halves observed for one logical trade.
type orderBucket struct {
	buy  *terminal.RawOrder
	sell *terminal.RawOrder
}

// Aggregate builds the full trade snapshot for an account from orders
// completed in [windowStart, now+slack). The snapshot is ordered by
// logical trade id so repeated calls compare field for field.
func (a *Aggregator) Aggregate(login int64, windowStart time.Time) ([]Trade, error) {
	end := time.Now().Add(querySlack)

	orders, err := a.src.QueryOrders(login, windowStart, end)
	if err != nil {
		return nil, fmt.Errorf("%w: history orders for account %d: %v", ErrUpstreamQuery, login, err)
	}

	// Group order halves by logical trade id.
	buckets := make(map[int64]*orderBucket)
	ids := make([]int64, 0, len(orders))
	for i := range orders {
		order := &orders[i]
		bucket, ok := buckets[order.LogicalTradeID]
		if !ok {
			bucket = &orderBucket{}
			buckets[order.LogicalTradeID] = bucket
			ids = append(ids, order.LogicalTradeID)
		}

		switch order.Side {
		case terminal.OrderTypeBuy:
			bucket.buy = order
		case terminal.OrderTypeSell:
			bucket.sell = order
		default:
			if a.strictOrphans {
				return nil, fmt.Errorf("%w: order %d has side %d", ErrUnsupportedRecord, order.Ticket, order.Side)
			}
			a.logger.Warn("Skipping order with unsupported side",
				zap.Int64("ticket", order.Ticket),
				zap.Int64("position_id", order.LogicalTradeID),
				zap.Int("side", order.Side),
			)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	trades := make([]Trade, 0, len(buckets))
	for _, id := range ids {
		bucket := buckets[id]

		if bucket.buy == nil && bucket.sell == nil {
			// Every order in the bucket had an unsupported side.
			if a.strictOrphans {
				return nil, fmt.Errorf("%w: logical trade %d has no recognised order side", ErrUnsupportedRecord, id)
			}
			a.logger.Warn("Skipping logical trade with no recognised order side", zap.Int64("position_id", id))
			continue
		}

		var trade Trade
		if bucket.buy != nil && bucket.sell != nil {
			trade, err = a.closedTrade(id, bucket.buy, bucket.sell)
		} else {
			trade, err = a.openTrade(id, bucket)
		}
		if err != nil {
			return nil, err
		}

		trades = append(trades, trade)
	}

	return trades, nil
}

// openTrade resolves a single-sided bucket against its live position.
// A missing position here means the terminal's history and position
// views disagree, which is worth aborting the whole snapshot for.
func (a *Aggregator) openTrade(id int64, bucket *orderBucket) (Trade, error) {
	order := bucket.buy
	if order == nil {
		order = bucket.sell
	}

	pos, err := a.src.QueryOpenPosition(order.Ticket)
	if err != nil {
		return Trade{}, fmt.Errorf("%w: open position %d: %v", ErrUpstreamQuery, order.Ticket, err)
	}
	if pos == nil {
		return Trade{}, fmt.Errorf("%w: no open position found for ticket %d (logical trade %d)", ErrUpstreamQuery, order.Ticket, id)
	}

	return Trade{
		LogicalTradeID:  id,
		Symbol:          order.Symbol,
		TotalVolume:     order.InitialVolume,
		IsLong:          pos.Side == terminal.OrderTypeBuy,
		IsOpen:          true,
		OpenOrderTicket: pos.Ticket,
		OpenPrice:       pos.OpenPrice,
		OpenTime:        pos.OpenTime,
		StopLoss:        pos.StopLoss,
		TakeProfit:      pos.TakeProfit,
		Profit:          Round2(pos.RunningProfit + pos.Swap + pos.Commission),
	}, nil
}

// closedTrade combines both order halves and attaches the realized
// profit from the deal settled against the closing order.
func (a *Aggregator) closedTrade(id int64, buy, sell *terminal.RawOrder) (Trade, error) {
	// The side that completed first opened the trade.
	isLong := buy.CompletionTime < sell.CompletionTime

	opening, closing := sell, buy
	if isLong {
		opening, closing = buy, sell
	}

	deals, err := a.src.QueryDeals(id)
	if err != nil {
		return Trade{}, fmt.Errorf("%w: deals for logical trade %d: %v", ErrUpstreamQuery, id, err)
	}

	var profit float64
	found := false
	for i := range deals {
		if deals[i].OrderTicket == closing.Ticket {
			profit = Round2(deals[i].Profit + deals[i].Swap + deals[i].Commission)
			found = true
			break
		}
	}
	if !found {
		return Trade{}, fmt.Errorf("%w: logical trade %d, closing ticket %d", ErrProfitReconciliation, id, closing.Ticket)
	}

	closeTicket := closing.Ticket
	closePrice := closing.FillPrice
	closeTime := closing.CompletionTime

	return Trade{
		LogicalTradeID:   id,
		Symbol:           opening.Symbol,
		TotalVolume:      opening.InitialVolume,
		IsLong:           isLong,
		IsOpen:           false,
		OpenOrderTicket:  opening.Ticket,
		OpenPrice:        opening.FillPrice,
		OpenTime:         opening.CompletionTime,
		StopLoss:         opening.StopLoss,
		TakeProfit:       opening.TakeProfit,
		Profit:           profit,
		CloseOrderTicket: &closeTicket,
		ClosePrice:       &closePrice,
		CloseTime:        &closeTime,
	}, nil
}
