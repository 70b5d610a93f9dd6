// Package pricing derives executable order values from the platform's
// risk parameters. The platform computes its trade setup against its own
// data feed, which does not line up tick for tick with the broker's, so
// the requested entry is re-anchored at the current market price while
// the stop distance and risk ratio are preserved.
package pricing

import "math"

// Request carries the platform's intended trade setup.
type Request struct {
	IsLong         bool
	EntryPrice     float64
	StopLoss       float64
	RiskRatio      float64
	RiskPercentage float64
	BalanceToRisk  float64
}

// Plan is the broker-executable trade derived from a Request.
type Plan struct {
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Volume     float64
}

// Derive re-anchors the platform's setup at the current bid/ask. Longs
// fill at the ask, shorts at the bid. The stop keeps the requested
// distance from entry, the take profit sits at that distance times the
// risk ratio, and volume is sized so the stop loses exactly the risked
// amount.
func Derive(req Request, bid, ask float64) Plan {
	price := bid
	if req.IsLong {
		price = ask
	}

	stopDistance := math.Abs(req.EntryPrice - req.StopLoss)
	profitDistance := stopDistance * req.RiskRatio

	var stopLoss, takeProfit float64
	if req.IsLong {
		stopLoss = price - stopDistance
		takeProfit = price + profitDistance
	} else {
		stopLoss = price + stopDistance
		takeProfit = price - profitDistance
	}

	riskAmount := req.BalanceToRisk * req.RiskPercentage

	var volume float64
	if stopDistance > 0 {
		// TODO: pip value conversion per symbol; this assumes a 10-unit
		// pip value like the platform's adapter contract does today.
		volume = riskAmount / (stopDistance * 10)
	}

	return Plan{
		Price:      price,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Volume:     volume,
	}
}
