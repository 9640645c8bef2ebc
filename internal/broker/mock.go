package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"trade-intent-lab/internal/domain"
)

// AckFunc receives the outcome of every completed mock order. The gate
// daemon wires it to the decision log so broker acknowledgments appear in
// the audit trail through an independent store handle.
type AckFunc func(symbol string, action domain.Action, orderID string, ok bool, reason string)

// Mock is an in-memory broker that fills orders instantly without touching
// any exchange. Used for dry runs and tests.
type Mock struct {
	mu        sync.Mutex
	positions map[string]*Position
	ack       AckFunc

	// Test knobs.
	failReason string        // when set, PlaceOrder fails with this reason
	delay      time.Duration // simulated backend latency
}

// MockOption configures a Mock broker.
type MockOption func(*Mock)

// WithAck installs an acknowledgment callback.
func WithAck(fn AckFunc) MockOption {
	return func(m *Mock) { m.ack = fn }
}

// NewMock creates a mock broker.
func NewMock(opts ...MockOption) *Mock {
	m := &Mock{positions: make(map[string]*Position)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Compile-time interface check.
var _ Broker = (*Mock)(nil)

// FailNext makes subsequent PlaceOrder calls fail with the given reason.
// Pass an empty string to restore normal fills.
func (m *Mock) FailNext(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReason = reason
}

// SetDelay injects artificial latency before each PlaceOrder completes.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// PlaceOrder fills the order immediately and updates the simulated position
// book. Honors context cancellation while the injected delay elapses.
func (m *Mock) PlaceOrder(ctx context.Context, symbol string, action domain.Action, orderType OrderType, quantity int) (*OrderResult, error) {
	m.mu.Lock()
	delay := m.delay
	failReason := m.failReason
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if msg := ValidateOrder(symbol, action, quantity); msg != "" {
		return &OrderResult{Success: false, Reason: msg}, nil
	}

	if failReason != "" {
		m.notify(symbol, action, "", false, failReason)
		return &OrderResult{Success: false, Reason: failReason}, nil
	}

	orderID := "MOCK-" + uuid.NewString()

	m.mu.Lock()
	pos, exists := m.positions[symbol]
	if !exists {
		pos = &Position{Symbol: symbol, Action: domain.ActionBuy}
		m.positions[symbol] = pos
	}
	switch action {
	case domain.ActionBuy:
		pos.Quantity += quantity
	case domain.ActionSell:
		pos.Quantity -= quantity
		if pos.Quantity < 0 {
			pos.Quantity = 0
		}
	}
	m.mu.Unlock()

	m.notify(symbol, action, orderID, true, "")

	return &OrderResult{
		Success: true,
		OrderID: orderID,
		Reason:  "order placed (mock)",
		Context: map[string]any{
			"broker":     "MOCK",
			"order_type": string(orderType),
			"quantity":   quantity,
		},
	}, nil
}

// CancelOrder always succeeds in mock mode.
func (m *Mock) CancelOrder(_ context.Context, orderID string) (*OrderResult, error) {
	return &OrderResult{Success: true, OrderID: orderID, Reason: "order cancelled (mock)"}, nil
}

// GetPositions returns the simulated open positions.
func (m *Mock) GetPositions(_ context.Context) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Position
	for _, pos := range m.positions {
		if pos.Quantity > 0 {
			result = append(result, *pos)
		}
	}
	return result, nil
}

// GetCash reports a fixed balance; mock fills never consume funds.
func (m *Mock) GetCash(_ context.Context) (float64, error) {
	return 1_000_000, nil
}

func (m *Mock) notify(symbol string, action domain.Action, orderID string, ok bool, reason string) {
	if m.ack != nil {
		m.ack(symbol, action, orderID, ok, reason)
	}
}
