package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerive_Long(t *testing.T) {
	// Platform wanted in at 1.1000 with the stop at 1.0950 (50 pips of
	// price distance); market has moved to ask 1.1010.
	plan := Derive(Request{
		IsLong:         true,
		EntryPrice:     1.1000,
		StopLoss:       1.0950,
		RiskRatio:      2,
		RiskPercentage: 0.01,
		BalanceToRisk:  10000,
	}, 1.1008, 1.1010)

	assert.Equal(t, 1.1010, plan.Price)
	assert.InDelta(t, 1.0960, plan.StopLoss, 1e-9)
	assert.InDelta(t, 1.1110, plan.TakeProfit, 1e-9)
	// risk amount 100 over a 0.005 stop distance at 10 units per pip
	assert.InDelta(t, 2000.0, plan.Volume, 1e-6)
}

func TestDerive_Short(t *testing.T) {
	plan := Derive(Request{
		IsLong:         false,
		EntryPrice:     1.1000,
		StopLoss:       1.1050,
		RiskRatio:      3,
		RiskPercentage: 0.02,
		BalanceToRisk:  5000,
	}, 1.0990, 1.0992)

	assert.Equal(t, 1.0990, plan.Price)
	assert.InDelta(t, 1.1040, plan.StopLoss, 1e-9)
	assert.InDelta(t, 1.0840, plan.TakeProfit, 1e-9)
	assert.InDelta(t, 2000.0, plan.Volume, 1e-6)
}

func TestDerive_ZeroStopDistance(t *testing.T) {
	// Entry on top of the stop cannot size a position.
	plan := Derive(Request{
		IsLong:        true,
		EntryPrice:    1.1,
		StopLoss:      1.1,
		BalanceToRisk: 10000,
	}, 1.1, 1.1)

	assert.Equal(t, 0.0, plan.Volume)
}
