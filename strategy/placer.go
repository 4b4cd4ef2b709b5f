// strategy/placer.go
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"captain_grid_go/exchange"
	"captain_grid_go/logs"
	"captain_grid_go/risk"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Placement summarizes one ladder replacement.
type Placement struct {
	Placed     int // orders accepted by the venue
	Forced     int // levels placed at the minimum lot
	Skipped    int // levels dropped by the planner
	Suppressed int // orders withheld by a risk bias
	Failed     int // create calls that returned an error
}

// Placer turns a Plan into resting orders using cancel-then-create.
type Placer struct {
	client      exchange.Client
	contractID  string
	settleDelay time.Duration
}

func NewPlacer(client exchange.Client, contractID string, settleDelay time.Duration) *Placer {
	return &Placer{client: client, contractID: contractID, settleDelay: settleDelay}
}

// CancelAll cancels every resting order of the contract. When the bulk cancel fails it
// falls back to cancelling the listed orders one by one; orders already gone are ignored.
func (p *Placer) CancelAll(ctx context.Context) error {
	err := p.client.CancelAllOrders(ctx, p.contractID)
	if err == nil {
		return nil
	}
	logs.Warnf("[Grid] Bulk cancel failed (%v), cancelling orders one by one", err)

	orders, listErr := p.client.GetOpenOrders(ctx, p.contractID)
	if listErr != nil {
		return fmt.Errorf("cancel all orders for %s: %w", p.contractID, multierr.Append(err, listErr))
	}
	for _, o := range orders {
		if cerr := p.client.CancelOrder(ctx, o.ID); cerr != nil && !errors.Is(cerr, exchange.ErrOrderNotFound) {
			return fmt.Errorf("cancel order %s for %s: %w", o.ID, p.contractID, cerr)
		}
	}
	return nil
}

// Replace cancels the current ladder, waits for the cancels to settle and places plan.
// If the cancel fails nothing is placed. Individual create failures are counted in
// Placement.Failed and the first one is returned after the remaining orders were tried.
func (p *Placer) Replace(ctx context.Context, plan Plan, bias risk.Bias) (Placement, error) {
	result := Placement{Forced: plan.Forced, Skipped: plan.Skipped}
	if err := p.CancelAll(ctx); err != nil {
		return result, err
	}
	if p.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(p.settleDelay):
		}
	}

	var firstErr error
	for _, level := range plan.Levels {
		for _, side := range []exchange.OrderSide{exchange.Buy, exchange.Sell} {
			if (side == exchange.Buy && bias.SuppressBuy) || (side == exchange.Sell && bias.SuppressSell) {
				result.Suppressed++
				continue
			}
			price := level.Buy
			if side == exchange.Sell {
				price = level.Sell
			}
			if err := p.place(ctx, side, price, level.Size); err != nil {
				logs.Errorf("[Grid] Failed to place level %d %s %s @ %s: %v", level.Index, side, level.Size, price, err)
				result.Failed++
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			result.Placed++
		}
	}

	logs.Infof("[Grid] Phase %d ladder around %s (interval %s): placed %d, forced %d, skipped %d, suppressed %d, failed %d",
		plan.Phase, plan.Center, plan.Interval, result.Placed, result.Forced, result.Skipped, result.Suppressed, result.Failed)
	return result, firstErr
}

func (p *Placer) place(ctx context.Context, side exchange.OrderSide, price, size decimal.Decimal) error {
	req := &exchange.OrderRequest{
		ContractID:    p.contractID,
		ClientOrderID: uuid.NewString(),
		Side:          side,
		Price:         price,
		Size:          size,
	}
	order, err := p.client.CreateOrder(ctx, req)
	if err != nil {
		return err
	}
	logs.Debugf("[Grid] Placed %s %s @ %s (id %s, client id %s)", side, size, price, order.ID, req.ClientOrderID)
	return nil
}
