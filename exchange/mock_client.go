package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"captain_grid_go/logs"

	"github.com/shopspring/decimal"
)

//
// In-memory venue for simulation mode and tests
//

// Ensure MockClient implements Client interface
var _ Client = (*MockClient)(nil)

// Operation names accepted by MockClient.SetError.
const (
	OpTicker     = "ticker"
	OpBalance    = "balance"
	OpOpenOrders = "open_orders"
	OpCreate     = "create"
	OpCancel     = "cancel"
	OpCancelAll  = "cancel_all"
	OpPosition   = "position"
)

// MockClient is a mock implementation of the exchange.Client interface.
// Orders rest until the simulated price crosses them, at which point they fill and move
// the net position. It does not model matching priority or partial fills.
type MockClient struct {
	mu          sync.RWMutex
	price       float64
	balance     float64
	position    decimal.Decimal
	openOrders  map[string]*OpenOrder
	nextOrderID int64
	errs        map[string]error
	calls       []string

	walkStep float64 // relative random-walk step per ticker read, 0 disables
	rng      *rand.Rand
}

// NewMockClient creates a new mock client with a fixed price and balance.
func NewMockClient(price, balance float64) *MockClient {
	return &MockClient{
		price:       price,
		balance:     balance,
		position:    decimal.Zero,
		openOrders:  make(map[string]*OpenOrder),
		nextOrderID: 1,
		errs:        make(map[string]error),
	}
}

// EnableRandomWalk makes every ticker read move the price by up to ±step (relative).
func (c *MockClient) EnableRandomWalk(step float64, seed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.walkStep = step
	c.rng = rand.New(rand.NewSource(seed))
	logs.Infof("[Mock Client] Random-walk price simulation enabled, step ±%.4f%%", step*100)
}

// SetPrice moves the simulated market price and fills any crossed orders.
func (c *MockClient) SetPrice(price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.price = price
	c.matchCrossed_noLock()
}

// SetBalance overrides the reported balance.
func (c *MockClient) SetBalance(balance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance = balance
}

// SetPosition overrides the net position.
func (c *MockClient) SetPosition(netSize float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = decimal.NewFromFloat(netSize)
}

// SetError makes every call of the given operation fail with err until cleared with nil.
func (c *MockClient) SetError(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.errs, op)
		return
	}
	c.errs[op] = err
}

// AddOpenOrder seeds a resting order, e.g. one left over from a previous run.
func (c *MockClient) AddOpenOrder(o OpenOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o.ID == "" {
		o.ID = c.newID_noLock()
	}
	c.openOrders[o.ID] = &o
}

// Calls returns the operations invoked so far, in order.
func (c *MockClient) Calls() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.calls...)
}

// ResetCalls clears the recorded call log.
func (c *MockClient) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// Orders returns a snapshot of resting orders sorted by price.
func (c *MockClient) Orders() []OpenOrder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedOrders_noLock("")
}

func (c *MockClient) enter_noLock(op string) error {
	c.calls = append(c.calls, op)
	return c.errs[op]
}

func (c *MockClient) newID_noLock() string {
	id := strconv.FormatInt(c.nextOrderID, 10)
	c.nextOrderID++
	return id
}

func (c *MockClient) sortedOrders_noLock(contractID string) []OpenOrder {
	orders := make([]OpenOrder, 0, len(c.openOrders))
	for _, o := range c.openOrders {
		if contractID == "" || o.ContractID == contractID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Price.Equal(orders[j].Price) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].Price.LessThan(orders[j].Price)
	})
	return orders
}

// matchCrossed_noLock fills buys at or above the market and sells at or below it.
func (c *MockClient) matchCrossed_noLock() {
	market := decimal.NewFromFloat(c.price)
	for id, o := range c.openOrders {
		switch {
		case o.Side == Buy && market.LessThanOrEqual(o.Price):
			c.position = c.position.Add(o.Size)
		case o.Side == Sell && market.GreaterThanOrEqual(o.Price):
			c.position = c.position.Sub(o.Size)
		default:
			continue
		}
		logs.Debugf("[Mock Client] Filled %s %s @ %s", o.Side, o.Size, o.Price)
		delete(c.openOrders, id)
	}
}

func (c *MockClient) GetTicker(ctx context.Context, contractID string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter_noLock(OpTicker); err != nil {
		return 0, err
	}
	if c.walkStep > 0 && c.rng != nil {
		c.price *= 1 + (c.rng.Float64()*2-1)*c.walkStep
		c.matchCrossed_noLock()
	}
	return c.price, nil
}

func (c *MockClient) GetBalance(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter_noLock(OpBalance); err != nil {
		return 0, err
	}
	return c.balance, nil
}

func (c *MockClient) GetOpenOrders(ctx context.Context, contractID string) ([]OpenOrder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter_noLock(OpOpenOrders); err != nil {
		return nil, err
	}
	return c.sortedOrders_noLock(contractID), nil
}

func (c *MockClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OpenOrder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter_noLock(OpCreate); err != nil {
		return nil, err
	}
	if !req.Size.IsPositive() || !req.Price.IsPositive() {
		return nil, fmt.Errorf("invalid order: price %s size %s", req.Price, req.Size)
	}
	o := &OpenOrder{
		ID:            c.newID_noLock(),
		ClientOrderID: req.ClientOrderID,
		ContractID:    req.ContractID,
		Side:          req.Side,
		Price:         req.Price,
		Size:          req.Size,
	}
	c.openOrders[o.ID] = o
	placed := *o
	return &placed, nil
}

func (c *MockClient) CancelOrder(ctx context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter_noLock(OpCancel); err != nil {
		return err
	}
	if _, ok := c.openOrders[orderID]; !ok {
		return fmt.Errorf("cancel %s: %w", orderID, ErrOrderNotFound)
	}
	delete(c.openOrders, orderID)
	return nil
}

func (c *MockClient) CancelAllOrders(ctx context.Context, contractID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter_noLock(OpCancelAll); err != nil {
		return err
	}
	for id, o := range c.openOrders {
		if o.ContractID == contractID {
			delete(c.openOrders, id)
		}
	}
	return nil
}

func (c *MockClient) GetPosition(ctx context.Context, contractID string) (*Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter_noLock(OpPosition); err != nil {
		return nil, err
	}
	return &Position{ContractID: contractID, NetSize: c.position}, nil
}
