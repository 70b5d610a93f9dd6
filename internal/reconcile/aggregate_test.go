package reconcile

import (
	"errors"
	"testing"
	"time"

	"mt5-adapter-go/internal/terminal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockDataSource is a mock implementation of the DataSource interface.
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) QueryOrders(login int64, start, end time.Time) ([]terminal.RawOrder, error) {
	args := m.Called(login, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]terminal.RawOrder), args.Error(1)
}

func (m *MockDataSource) QueryOpenPosition(ticket int64) (*terminal.RawPosition, error) {
	args := m.Called(ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*terminal.RawPosition), args.Error(1)
}

func (m *MockDataSource) QueryDeals(logicalTradeID int64) ([]terminal.RawDeal, error) {
	args := m.Called(logicalTradeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]terminal.RawDeal), args.Error(1)
}

var windowStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func buyOrder(ticket, position, done int64) terminal.RawOrder {
	return terminal.RawOrder{
		Ticket:         ticket,
		LogicalTradeID: position,
		Symbol:         "EURUSD",
		Side:           terminal.OrderTypeBuy,
		InitialVolume:  0.5,
		FillPrice:      1.1000,
		CompletionTime: done,
		StopLoss:       1.0900,
		TakeProfit:     1.1200,
	}
}

func sellOrder(ticket, position, done int64) terminal.RawOrder {
	return terminal.RawOrder{
		Ticket:         ticket,
		LogicalTradeID: position,
		Symbol:         "EURUSD",
		Side:           terminal.OrderTypeSell,
		InitialVolume:  0.5,
		FillPrice:      1.1150,
		CompletionTime: done,
		StopLoss:       1.0900,
		TakeProfit:     1.1200,
	}
}

func TestAggregate_ClosedLongTrade(t *testing.T) {
	// Arrange: buy completed before sell, deal settled against the sell.
	src := new(MockDataSource)
	src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return([]terminal.RawOrder{
		buyOrder(100, 1, 100),
		sellOrder(200, 1, 200),
	}, nil)
	src.On("QueryDeals", int64(1)).Return([]terminal.RawDeal{
		{OrderTicket: 200, LogicalTradeID: 1, Profit: 10, Swap: -1, Commission: -2},
	}, nil)

	agg := NewAggregator(src, zap.NewNop(), false)

	// Act
	trades, err := agg.Aggregate(42, windowStart)

	// Assert
	assert.NoError(t, err)
	assert.Len(t, trades, 1)

	trade := trades[0]
	assert.Equal(t, int64(1), trade.LogicalTradeID)
	assert.False(t, trade.IsOpen)
	assert.True(t, trade.IsLong)
	assert.Equal(t, 7.00, trade.Profit)
	assert.Equal(t, int64(100), trade.OpenOrderTicket)
	assert.Equal(t, 1.1000, trade.OpenPrice)
	assert.Equal(t, int64(100), trade.OpenTime)
	if assert.NotNil(t, trade.CloseOrderTicket) {
		assert.Equal(t, int64(200), *trade.CloseOrderTicket)
	}
	if assert.NotNil(t, trade.ClosePrice) {
		assert.Equal(t, 1.1150, *trade.ClosePrice)
	}
	if assert.NotNil(t, trade.CloseTime) {
		assert.Equal(t, int64(200), *trade.CloseTime)
	}
	src.AssertExpectations(t)
}

func TestAggregate_ClosedShortTrade(t *testing.T) {
	// Sell completed first, so the trade is short and the buy closes it.
	src := new(MockDataSource)
	src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return([]terminal.RawOrder{
		buyOrder(100, 7, 300),
		sellOrder(200, 7, 150),
	}, nil)
	src.On("QueryDeals", int64(7)).Return([]terminal.RawDeal{
		{OrderTicket: 999, LogicalTradeID: 7, Profit: 500, Swap: 0, Commission: 0},
		{OrderTicket: 100, LogicalTradeID: 7, Profit: -3.456, Swap: 0.1, Commission: -0.2},
	}, nil)

	agg := NewAggregator(src, zap.NewNop(), false)

	trades, err := agg.Aggregate(42, windowStart)

	assert.NoError(t, err)
	assert.Len(t, trades, 1)
	assert.False(t, trades[0].IsLong)
	assert.False(t, trades[0].IsOpen)
	// Profit comes only from the deal matching the closing buy ticket.
	assert.Equal(t, -3.56, trades[0].Profit)
	assert.Equal(t, int64(200), trades[0].OpenOrderTicket)
	if assert.NotNil(t, trades[0].CloseOrderTicket) {
		assert.Equal(t, int64(100), *trades[0].CloseOrderTicket)
	}
}

func TestAggregate_OpenTrade(t *testing.T) {
	src := new(MockDataSource)
	src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return([]terminal.RawOrder{
		buyOrder(300, 5, 400),
	}, nil)
	src.On("QueryOpenPosition", int64(300)).Return(&terminal.RawPosition{
		Ticket:        300,
		Symbol:        "EURUSD",
		Side:          terminal.OrderTypeBuy,
		OpenPrice:     1.1005,
		OpenTime:      401,
		StopLoss:      1.0900,
		TakeProfit:    1.1200,
		RunningProfit: 5,
		Swap:          0.5,
		Commission:    -0.2,
	}, nil)

	agg := NewAggregator(src, zap.NewNop(), false)

	trades, err := agg.Aggregate(42, windowStart)

	assert.NoError(t, err)
	assert.Len(t, trades, 1)

	trade := trades[0]
	assert.True(t, trade.IsOpen)
	assert.True(t, trade.IsLong)
	assert.Equal(t, 5.30, trade.Profit)
	assert.Equal(t, int64(300), trade.OpenOrderTicket)
	assert.Equal(t, 1.1005, trade.OpenPrice)
	assert.Nil(t, trade.CloseOrderTicket)
	assert.Nil(t, trade.ClosePrice)
	assert.Nil(t, trade.CloseTime)
	src.AssertExpectations(t)
}

func TestAggregate_OpenTradeMissingPosition(t *testing.T) {
	// An order half with no live position is an inconsistent terminal
	// state, fatal to the whole snapshot.
	src := new(MockDataSource)
	src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return([]terminal.RawOrder{
		sellOrder(300, 5, 400),
	}, nil)
	src.On("QueryOpenPosition", int64(300)).Return(nil, nil)

	agg := NewAggregator(src, zap.NewNop(), false)

	trades, err := agg.Aggregate(42, windowStart)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamQuery))
	assert.Nil(t, trades)
}

func TestAggregate_MissingProfitDeal(t *testing.T) {
	src := new(MockDataSource)
	src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return([]terminal.RawOrder{
		buyOrder(100, 1, 100),
		sellOrder(200, 1, 200),
	}, nil)
	src.On("QueryDeals", int64(1)).Return([]terminal.RawDeal{
		{OrderTicket: 100, LogicalTradeID: 1, Profit: 1},
	}, nil)

	agg := NewAggregator(src, zap.NewNop(), false)

	trades, err := agg.Aggregate(42, windowStart)

	// Profit must never silently default to zero.
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrProfitReconciliation))
	assert.Nil(t, trades)
}

func TestAggregate_QueryFailure(t *testing.T) {
	src := new(MockDataSource)
	src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return(nil, errors.New("bridge down"))

	agg := NewAggregator(src, zap.NewNop(), false)

	trades, err := agg.Aggregate(42, windowStart)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamQuery))
	assert.Nil(t, trades)
}

func TestAggregate_EmptyHistoryIsNotAnError(t *testing.T) {
	src := new(MockDataSource)
	src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return([]terminal.RawOrder{}, nil)

	agg := NewAggregator(src, zap.NewNop(), false)

	trades, err := agg.Aggregate(42, windowStart)

	assert.NoError(t, err)
	assert.Empty(t, trades)
}

func TestAggregate_UnsupportedSide(t *testing.T) {
	unknown := terminal.RawOrder{
		Ticket:         900,
		LogicalTradeID: 9,
		Symbol:         "EURUSD",
		Side:           6, // balance operation, not a trade side
		CompletionTime: 10,
	}

	t.Run("LaxSkipsBucket", func(t *testing.T) {
		src := new(MockDataSource)
		src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return([]terminal.RawOrder{
			unknown,
			buyOrder(100, 1, 100),
			sellOrder(200, 1, 200),
		}, nil)
		src.On("QueryDeals", int64(1)).Return([]terminal.RawDeal{
			{OrderTicket: 200, LogicalTradeID: 1, Profit: 2},
		}, nil)

		agg := NewAggregator(src, zap.NewNop(), false)

		trades, err := agg.Aggregate(42, windowStart)

		assert.NoError(t, err)
		assert.Len(t, trades, 1)
		assert.Equal(t, int64(1), trades[0].LogicalTradeID)
	})

	t.Run("StrictFails", func(t *testing.T) {
		src := new(MockDataSource)
		src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return([]terminal.RawOrder{unknown}, nil)

		agg := NewAggregator(src, zap.NewNop(), true)

		trades, err := agg.Aggregate(42, windowStart)

		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedRecord))
		assert.Nil(t, trades)
	})
}

func TestAggregate_Idempotent(t *testing.T) {
	src := new(MockDataSource)
	src.On("QueryOrders", int64(42), windowStart, mock.Anything).Return([]terminal.RawOrder{
		buyOrder(100, 2, 100),
		sellOrder(200, 2, 200),
		buyOrder(300, 1, 50),
		sellOrder(400, 1, 60),
	}, nil)
	src.On("QueryDeals", int64(1)).Return([]terminal.RawDeal{
		{OrderTicket: 400, LogicalTradeID: 1, Profit: 1.115},
	}, nil)
	src.On("QueryDeals", int64(2)).Return([]terminal.RawDeal{
		{OrderTicket: 200, LogicalTradeID: 2, Profit: -4},
	}, nil)

	agg := NewAggregator(src, zap.NewNop(), false)

	first, err := agg.Aggregate(42, windowStart)
	assert.NoError(t, err)
	second, err := agg.Aggregate(42, windowStart)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	// Snapshot order is deterministic: ascending logical trade id.
	assert.Equal(t, int64(1), first[0].LogicalTradeID)
	assert.Equal(t, int64(2), first[1].LogicalTradeID)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 7.00, Round2(10+(-1)+(-2)))
	assert.Equal(t, 5.30, Round2(5+0.5-0.2))
	assert.Equal(t, 1.13, Round2(1.126))
	assert.Equal(t, 1.12, Round2(1.124))
	assert.Equal(t, -1.13, Round2(-1.126))
	assert.Equal(t, 0.00, Round2(0))
}
