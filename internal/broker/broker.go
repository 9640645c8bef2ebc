// Package broker defines the execution-backend capability consumed by the
// admission pipeline, and a mock implementation for dry runs. The pipeline
// depends only on PlaceOrder's result shape.
package broker

import (
	"context"
	"fmt"

	"trade-intent-lab/internal/domain"
)

// OrderType is the execution style requested from the backend.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderResult is the normalized outcome of a backend call.
type OrderResult struct {
	Success bool
	OrderID string         // backend-assigned identifier, set on success
	Reason  string         // failure reason or informational note
	Context map[string]any // backend-specific detail
}

// Position is an open holding reported by the backend.
type Position struct {
	Symbol        string
	Action        domain.Action
	Quantity      int
	AvgPrice      float64
	CurrentPrice  float64
	UnrealizedPnL float64
}

// Broker is the minimal surface the admission pipeline needs from an
// execution backend.
type Broker interface {
	// PlaceOrder submits an order. A failed submission is reported in the
	// result, not as an error; errors mean the call itself did not complete
	// (timeout, transport) and are treated the same as a failed result.
	PlaceOrder(ctx context.Context, symbol string, action domain.Action, orderType OrderType, quantity int) (*OrderResult, error)

	// CancelOrder cancels a previously placed order.
	CancelOrder(ctx context.Context, orderID string) (*OrderResult, error)

	// GetPositions returns currently open positions.
	GetPositions(ctx context.Context) ([]Position, error)

	// GetCash returns the available cash balance.
	GetCash(ctx context.Context) (float64, error)
}

// ValidateOrder performs the order checks common to all backends.
// Returns an empty string when the order is valid.
func ValidateOrder(symbol string, action domain.Action, quantity int) string {
	if action != domain.ActionBuy && action != domain.ActionSell {
		return fmt.Sprintf("invalid action: %s", action)
	}
	if quantity <= 0 {
		return fmt.Sprintf("invalid quantity: %d", quantity)
	}
	if symbol == "" {
		return "invalid symbol: empty"
	}
	return ""
}
