package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrOrderNotFound is returned when cancelling an order the venue no longer knows.
var ErrOrderNotFound = errors.New("order not found")

// OrderSide defines the order direction (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OpenOrder is a resting order as reported by the venue.
type OpenOrder struct {
	ID            string          `json:"id"`
	ClientOrderID string          `json:"clientOrderId"`
	ContractID    string          `json:"contractId"`
	Side          OrderSide       `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
}

// OrderRequest describes a new limit order.
type OrderRequest struct {
	ContractID    string
	ClientOrderID string
	Side          OrderSide
	Price         decimal.Decimal
	Size          decimal.Decimal
}

// Position is the net open position for a contract. NetSize is signed, negative for short.
type Position struct {
	ContractID string
	NetSize    decimal.Decimal
}

// Client defines the account gateway and ticker the controller consumes.
// Implementations only move data; sanity checks on the values (such as balance glitches)
// belong to the caller.
type Client interface {
	// GetTicker returns the latest mark (or last) price for the contract.
	GetTicker(ctx context.Context, contractID string) (float64, error)

	// GetBalance returns the settlement-currency (USDT) balance of the account.
	GetBalance(ctx context.Context) (float64, error)

	// GetOpenOrders lists resting orders of the given contract only.
	GetOpenOrders(ctx context.Context, contractID string) ([]OpenOrder, error)

	// CreateOrder submits a new limit order.
	CreateOrder(ctx context.Context, req *OrderRequest) (*OpenOrder, error)

	// CancelOrder cancels one resting order.
	CancelOrder(ctx context.Context, orderID string) error

	// CancelAllOrders cancels every resting order of the contract.
	CancelAllOrders(ctx context.Context, contractID string) error

	// GetPosition returns the net position of the contract.
	GetPosition(ctx context.Context, contractID string) (*Position, error)
}
