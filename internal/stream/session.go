// Package stream drives the per-connection transaction stream: a fixed
// cadence polling loop that reconciles the account's trades each tick
// and pushes one message per newly closed trade, or a heartbeat when
// nothing closed.
package stream

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"mt5-adapter-go/internal/reconcile"

	"go.uber.org/zap"
)

// State is the lifecycle state of a streaming session.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateClosed
	StateErrored
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateClosed:
		return "CLOSED"
	case StateErrored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// Message is one frame on the transaction stream. Exactly one of the
// three shapes is populated: a CLOSE event, a heartbeat, or a terminal
// ERROR before the stream shuts down.
type Message struct {
	Type           string   `json:"type,omitempty"`
	LogicalTradeID *int64   `json:"position_id,omitempty"`
	Profit         *float64 `json:"profit,omitempty"`
	ClosePrice     *float64 `json:"close_order_price,omitempty"`
	Heartbeat      bool     `json:"heartbeat,omitempty"`
	Error          string   `json:"message,omitempty"`
}

func closeMessage(ev reconcile.ClosedEvent) Message {
	id, profit, price := ev.LogicalTradeID, ev.Profit, ev.ClosePrice
	return Message{
		Type:           "CLOSE",
		LogicalTradeID: &id,
		Profit:         &profit,
		ClosePrice:     &price,
	}
}

// Aggregator produces the current trade snapshot for an account.
type Aggregator interface {
	Aggregate(login int64, windowStart time.Time) ([]reconcile.Trade, error)
}

// SessionChecker reports whether an account has an active terminal session.
type SessionChecker interface {
	Initialized(login int64) bool
}

// Session is one account's streaming loop, owned by a single client
// connection. Messages are delivered over a bounded channel; when the
// consumer stalls, the loop blocks on the send instead of buffering.
type Session struct {
	login       int64
	agg         Aggregator
	registry    *reconcile.Registry
	sessions    SessionChecker
	interval    time.Duration
	windowStart time.Time
	logger      *zap.Logger

	out   chan Message
	state atomic.Int32
}

// NewSession creates a streaming session for the account. bufferSize
// bounds the number of undelivered messages held in memory.
func NewSession(
	login int64,
	agg Aggregator,
	registry *reconcile.Registry,
	sessions SessionChecker,
	interval time.Duration,
	windowStart time.Time,
	bufferSize int,
	logger *zap.Logger,
) *Session {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Session{
		login:       login,
		agg:         agg,
		registry:    registry,
		sessions:    sessions,
		interval:    interval,
		windowStart: windowStart,
		logger:      logger.Named("stream").With(zap.Int64("login", login)),
		out:         make(chan Message, bufferSize),
	}
}

// Messages returns the channel the session emits on. It is closed when
// the session leaves STREAMING for good.
func (s *Session) Messages() <-chan Message {
	return s.out
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run executes the session until the context is cancelled or a cycle
// fails. Cancellation takes effect at the next safe point: an in-flight
// message send is always completed or abandoned whole, never split.
//
// Note that the registry starts empty for a fresh connection, so trades
// that closed between process start (or a reconnect) and the first poll
// are never reported. The stream is at-least-once with gaps at
// reconnect boundaries, by contract.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.out)

	s.setState(StateConnecting)
	if !s.sessions.Initialized(s.login) {
		s.setState(StateErrored)
		err := fmt.Errorf("%w: %d", reconcile.ErrSessionNotInitialized, s.login)
		s.emit(ctx, Message{Type: "ERROR", Error: err.Error()})
		return err
	}

	s.setState(StateStreaming)
	s.logger.Info("Transaction stream started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateClosed)
			s.logger.Info("Transaction stream closed by client")
			return nil
		case <-ticker.C:
			if err := s.cycle(ctx); err != nil {
				s.setState(StateErrored)
				s.logger.Error("Stream cycle failed", zap.Error(err))
				s.emit(ctx, Message{Type: "ERROR", Error: err.Error()})
				return err
			}
		}
	}
}

// cycle performs one poll: aggregate, swap the registry snapshot, diff,
// emit. A query failure is terminal for the session; a broken poll must
// not look like a quiet stream to the client.
func (s *Session) cycle(ctx context.Context) error {
	curr, err := s.agg.Aggregate(s.login, s.windowStart)
	if err != nil {
		return err
	}

	prev := s.registry.Exchange(s.login, curr)
	events := reconcile.Diff(prev, curr)

	if len(events) == 0 {
		s.emit(ctx, Message{Heartbeat: true})
		return nil
	}

	s.logger.Info("Trades closed since previous poll", zap.Int("count", len(events)))
	for _, ev := range events {
		if !s.emit(ctx, closeMessage(ev)) {
			return nil // client gone; Run observes ctx.Done next
		}
	}
	return nil
}

// emit delivers one message, blocking until the consumer accepts it or
// the context dies. Reports whether the message was delivered.
func (s *Session) emit(ctx context.Context, msg Message) bool {
	select {
	case s.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
