// engine/controller.go
// Package engine holds the control cycle. One Controller owns all mutable bot state;
// it is driven from a single goroutine and is not safe for concurrent use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"captain_grid_go/config"
	"captain_grid_go/exchange"
	"captain_grid_go/investment"
	"captain_grid_go/logs"
	"captain_grid_go/market"
	"captain_grid_go/metrics"
	"captain_grid_go/notify"
	"captain_grid_go/profit"
	"captain_grid_go/risk"
	"captain_grid_go/state"
	"captain_grid_go/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// ReasonConsecutiveErrors is the pause reason used when too many cycles failed in a row.
const ReasonConsecutiveErrors = "consecutive errors"

// ErrStalePrice means every price source failed and only the last known price was available.
var ErrStalePrice = errors.New("price is stale")

// PriceSource quotes the traded instrument. *market.PriceFeed satisfies it.
type PriceSource interface {
	CurrentPrice(ctx context.Context) (market.Quote, error)
}

// Controller runs one control cycle per poll.
type Controller struct {
	cfg      *config.Config
	client   exchange.Client
	prices   PriceSource
	history  *market.PriceHistory
	tracker  *strategy.PhaseTracker
	planner  *strategy.Planner
	placer   *strategy.Placer
	guard    *risk.Guard
	exposure *investment.Manager
	pause    *state.PauseController
	ledger   *profit.Accountant
	metrics  *metrics.Metrics

	plan              *strategy.Plan // nil when no ladder is resting
	lastBalance       float64
	consecutiveErrors int
}

// New wires a controller. notifier and m may be nil.
func New(cfg *config.Config, client exchange.Client, prices PriceSource, notifier notify.Notifier, m *metrics.Metrics) *Controller {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	settle := time.Duration(cfg.Grid.CancelSettleDelayMs) * time.Millisecond
	placer := strategy.NewPlacer(client, cfg.ContractID, settle)

	c := &Controller{
		cfg:         cfg,
		client:      client,
		prices:      prices,
		history:     market.NewPriceHistory(historyRetention(cfg)),
		planner:     strategy.NewPlanner(cfg.Grid),
		placer:      placer,
		guard:       risk.NewGuard(cfg.Risk, cfg.InitialBalance, cfg.ContractID),
		exposure:    investment.NewManager(client, cfg.ContractID, cfg.Risk.MaxNetPosition),
		pause:       state.NewPauseController(cfg.Resume, placer, notifier),
		ledger:      profit.NewAccountant(cfg.InitialBalance, time.Now()),
		metrics:     m,
		lastBalance: cfg.InitialBalance,
	}
	c.tracker = strategy.NewPhaseTracker(strategy.NewPhaseClassifier(cfg.Grid.Phases), func(from, to int, balance float64) {
		notify.BestEffort(context.Background(), notifier, fmt.Sprintf("📈 Phase %d -> %d (balance %.2f USDT)", from, to, balance))
	})
	return c
}

// historyRetention covers the longer of the decline and stability windows plus one poll.
func historyRetention(cfg *config.Config) time.Duration {
	decline := time.Duration(cfg.Risk.GradualDeclineWindowS) * time.Second
	stability := time.Duration(cfg.Resume.StabilityWindowMinutes) * time.Minute
	poll := time.Duration(cfg.Risk.VolatilityCheckIntervalS) * time.Second
	if decline > stability {
		return decline + poll
	}
	return stability + poll
}

// Prepare verifies connectivity and clears any ladder left by a previous run.
// Trading state is rebuilt from live queries, never from disk.
func (c *Controller) Prepare(ctx context.Context) error {
	balance, err := c.client.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("connectivity check failed: %w", err)
	}
	logs.Infof("[Engine] Connected. Settled balance %.4f USDT (initial %.4f)", balance, c.cfg.InitialBalance)

	orders, err := c.client.GetOpenOrders(ctx, c.cfg.ContractID)
	if err != nil {
		return fmt.Errorf("failed to list open orders at startup: %w", err)
	}
	if len(orders) > 0 {
		logs.Warnf("[Engine] Found %d resting orders from a previous run, cancelling them.", len(orders))
		if err := c.placer.CancelAll(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunCycle performs one poll. Transient failures are logged and counted, never returned
// as fatal; reaching max consecutive errors pauses trading.
func (c *Controller) RunCycle(ctx context.Context, now time.Time) {
	err := c.cycle(ctx, now)
	c.metrics.ObserveCycle(err == nil)
	if err == nil {
		c.consecutiveErrors = 0
		c.metrics.SetConsecutiveErrors(0)
		return
	}

	c.consecutiveErrors++
	c.metrics.SetConsecutiveErrors(c.consecutiveErrors)
	logs.Errorf("[Engine] Cycle failed (%d/%d consecutive): %v", c.consecutiveErrors, c.cfg.Normal.MaxConsecutiveErrors, err)
	if c.consecutiveErrors >= c.cfg.Normal.MaxConsecutiveErrors {
		c.consecutiveErrors = 0
		c.metrics.SetConsecutiveErrors(0)
		c.trip(ctx, ReasonConsecutiveErrors, now)
	}
}

func (c *Controller) cycle(ctx context.Context, now time.Time) error {
	quote, err := c.prices.CurrentPrice(ctx)
	if err != nil {
		return fmt.Errorf("price fetch: %w", err)
	}
	if quote.Stale {
		return fmt.Errorf("%w: all sources failed, last %.2f", ErrStalePrice, quote.Price)
	}
	if err := c.history.Record(now, quote.Price); err != nil {
		return fmt.Errorf("record price: %w", err)
	}
	price := quote.Price
	c.metrics.SetPrice(price)

	balance, err := c.balance(ctx)
	if err != nil {
		return err
	}
	phase := c.tracker.Observe(balance)
	c.metrics.SetPhase(phase)

	if c.pause.IsPaused() {
		resumed, err := c.tryResume(ctx, now, balance)
		if err != nil || !resumed {
			return err
		}
		c.guard.Rebase(price)
		return c.replaceAfterResume(ctx, price)
	}
	return c.active(ctx, now, price, balance)
}

// replaceAfterResume places a fresh ladder in the resume cycle. Mandatory detectors wait
// for the next cycle; only the advisory side biases apply here.
func (c *Controller) replaceAfterResume(ctx context.Context, price float64) error {
	orders, err := c.client.GetOpenOrders(ctx, c.cfg.ContractID)
	if err != nil {
		return fmt.Errorf("open orders fetch: %w", err)
	}
	bias, _ := c.guard.CheckImbalance(orders)

	exposureBias, exposureErr := c.exposure.CheckAndUpdate(ctx)
	if exposureErr != nil {
		logs.Errorf("[Engine] %v", exposureErr)
	}
	return multierr.Append(exposureErr, c.rebalance(ctx, price, bias.Merge(exposureBias)))
}

// balance reads the settled balance. Readings below zero or above the glitch multiple of
// the initial balance are API glitches: the last valid value is reused.
func (c *Controller) balance(ctx context.Context) (float64, error) {
	balance, err := c.client.GetBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("balance fetch: %w", err)
	}
	ceiling := c.cfg.InitialBalance * c.cfg.Risk.BalanceGlitchMultiplier
	if balance < 0 || balance > ceiling {
		logs.Warnf("[Engine] Balance %.4f outside [0, %.4f], keeping last valid %.4f", balance, ceiling, c.lastBalance)
		return c.lastBalance, nil
	}
	c.lastBalance = balance
	c.ledger.RecordEquity(balance)
	c.metrics.SetBalance(balance)
	return balance, nil
}

func (c *Controller) tryResume(ctx context.Context, now time.Time, balance float64) (bool, error) {
	window := time.Duration(c.cfg.Resume.StabilityWindowMinutes) * time.Minute
	stability, ok := market.Range(c.history.Since(now.Add(-window)))

	d := c.pause.Evaluate(now, state.ResumeInput{Balance: balance, Stability: stability, StabilityOK: ok})
	if !d.Resume {
		logs.Debugf("[Pause] Still paused after %s: %s", d.Elapsed.Truncate(time.Second), d.Reason)
		return false, nil
	}
	if !c.pause.Resume(ctx, now, d) {
		return false, nil
	}
	c.metrics.SetPaused(false)
	c.metrics.ObserveResume(d.Forced)
	c.consecutiveErrors = 0
	c.plan = nil
	return true, nil
}

func (c *Controller) active(ctx context.Context, now time.Time, price, balance float64) error {
	orders, err := c.client.GetOpenOrders(ctx, c.cfg.ContractID)
	if err != nil {
		return fmt.Errorf("open orders fetch: %w", err)
	}

	// exposure failures are counted but do not block the detectors
	exposureBias, exposureErr := c.exposure.CheckAndUpdate(ctx)
	if exposureErr != nil {
		logs.Errorf("[Engine] %v", exposureErr)
	}

	verdict := c.guard.Evaluate(risk.Input{
		Now:        now,
		Price:      price,
		History:    c.history,
		Equity:     balance,
		OpenOrders: orders,
	})
	if verdict.Tripped {
		logs.Warnf("[Engine] %s", verdict.Description())
		return multierr.Append(exposureErr, c.trip(ctx, verdict.Reason(), now))
	}

	if !c.needsRebalance(price, orders) {
		return exposureErr
	}
	bias := verdict.Bias.Merge(exposureBias)
	return multierr.Append(exposureErr, c.rebalance(ctx, price, bias))
}

// needsRebalance is true with no resting ladder or once price left the center by more
// than two intervals.
func (c *Controller) needsRebalance(price float64, orders []exchange.OpenOrder) bool {
	if c.plan == nil || len(orders) == 0 {
		return true
	}
	drift := math.Abs(price - c.plan.Center.InexactFloat64())
	return drift > 2*c.plan.Interval.InexactFloat64()
}

func (c *Controller) rebalance(ctx context.Context, price float64, bias risk.Bias) error {
	phase := c.tracker.Current()
	plan, err := c.planner.Plan(phase, decimal.NewFromFloat(price), decimal.NewFromFloat(c.cfg.Grid.OrderSizeUSDT))
	if err != nil {
		return fmt.Errorf("plan phase %d ladder: %w", phase, err)
	}

	placement, err := c.placer.Replace(ctx, plan, bias)
	c.metrics.ObservePlacement(placement.Placed, placement.Suppressed, placement.Failed, placement.Forced, placement.Skipped)
	if placement.Placed > 0 {
		c.plan = &plan
	} else {
		c.plan = nil
	}
	if err != nil {
		return fmt.Errorf("place ladder: %w", err)
	}
	return nil
}

func (c *Controller) trip(ctx context.Context, reason string, now time.Time) error {
	wasPaused := c.pause.IsPaused()
	err := c.pause.Trip(ctx, reason, now)
	c.plan = nil
	if !wasPaused {
		c.metrics.ObserveTrip(reason)
		c.metrics.SetPaused(true)
	}
	return err
}

// CancelAll removes the ladder, used on shutdown.
func (c *Controller) CancelAll(ctx context.Context) error {
	c.plan = nil
	return c.placer.CancelAll(ctx)
}

// Summary returns the session equity summary.
func (c *Controller) Summary() profit.Summary { return c.ledger.GetSummary() }

// Snapshot is a read-only view for heartbeats and tests.
type Snapshot struct {
	Status            state.Status
	Pause             state.PauseInfo
	Phase             int
	Balance           float64
	Center            decimal.Decimal
	Interval          decimal.Decimal
	Levels            int
	Forced            bool
	ConsecutiveErrors int
}

func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Status:            c.pause.Status(),
		Pause:             c.pause.Info(),
		Phase:             c.tracker.Current(),
		Balance:           c.lastBalance,
		ConsecutiveErrors: c.consecutiveErrors,
	}
	if c.plan != nil {
		s.Center = c.plan.Center
		s.Interval = c.plan.Interval
		s.Levels = len(c.plan.Levels)
		s.Forced = c.plan.Forced > 0
	}
	return s
}

func (s Snapshot) String() string {
	if s.Status == state.Paused {
		return fmt.Sprintf("%s (%s since %s), phase %d, balance %.4f USDT",
			s.Status, s.Pause.Reason, s.Pause.Since.Format(time.RFC3339), s.Phase, s.Balance)
	}
	return fmt.Sprintf("%s, phase %d, balance %.4f USDT, center %s, interval %s, levels %d, forced %t, errors %d",
		s.Status, s.Phase, s.Balance, s.Center, s.Interval, s.Levels, s.Forced, s.ConsecutiveErrors)
}

// Heartbeat summarizes the controller state for the periodic heartbeat log.
func (c *Controller) Heartbeat() string { return c.Snapshot().String() }
