// risk/guard.go
package risk

import (
	"math"
	"time"

	"captain_grid_go/config"
	"captain_grid_go/exchange"
	"captain_grid_go/logs"
	"captain_grid_go/market"
)

// Input is everything one evaluation looks at.
type Input struct {
	Now        time.Time
	Price      float64
	History    *market.PriceHistory
	Equity     float64
	OpenOrders []exchange.OpenOrder
}

// Guard runs the detectors in fixed order: volatility, gradual decline, loss limit
// (mandatory stops, first trip wins) and position imbalance (advisory).
type Guard struct {
	cfg            *config.RiskConfig
	initialBalance float64
	contractID     string
	prevPrice      float64
}

func NewGuard(cfg *config.RiskConfig, initialBalance float64, contractID string) *Guard {
	return &Guard{cfg: cfg, initialBalance: initialBalance, contractID: contractID}
}

// Evaluate runs all detectors against in.
func (g *Guard) Evaluate(in Input) Verdict {
	if tripped, rate := g.CheckVolatility(in.Price); tripped {
		return g.trip(DetectorVolatility, rate, g.cfg.VolatilityThreshold)
	}
	if tripped, rate := g.CheckDecline(in.Now, in.Price, in.History); tripped {
		return g.trip(DetectorDecline, rate, g.cfg.GradualDeclineThreshold)
	}
	if tripped, rate := g.CheckLoss(in.Equity); tripped {
		return g.trip(DetectorLossLimit, rate, g.cfg.LossLimit)
	}

	bias, imbalance := g.CheckImbalance(in.OpenOrders)
	v := Verdict{Bias: bias, Imbalance: imbalance}
	if bias.Any() {
		v.Detector = DetectorImbalance
		logs.Warnf("[Risk] Order imbalance %d reached limit %d, %s", imbalance, g.cfg.PositionImbalanceLimit, bias)
	}
	return v
}

func (g *Guard) trip(d Detector, rate, threshold float64) Verdict {
	logs.Warnf("[Risk] !!! %s detector tripped: rate %.4f%% >= threshold %.4f%%", d, rate*100, threshold*100)
	return Verdict{Tripped: true, Detector: d, Rate: rate}
}

// CheckVolatility compares price with the previously checked price and remembers it.
// The comparison is inclusive: a move of exactly the threshold trips.
func (g *Guard) CheckVolatility(price float64) (bool, float64) {
	prev := g.prevPrice
	g.prevPrice = price
	if prev <= 0 {
		return false, 0
	}
	rate := math.Abs(price-prev) / prev
	return rate >= g.cfg.VolatilityThreshold, rate
}

// Rebase sets the reference for the next volatility check, used after a resume so the
// pre-pause price does not count as a single-poll move.
func (g *Guard) Rebase(price float64) { g.prevPrice = price }

// CheckDecline measures the fall from the newest sample at or before the window start.
// The newest one is used because the history purges all older samples but that anchor.
// The rate is positive for falls; rises give a negative rate and never trip. Without a
// sample old enough the check does not trip.
func (g *Guard) CheckDecline(now time.Time, price float64, history *market.PriceHistory) (bool, float64) {
	if history == nil {
		return false, 0
	}
	window := time.Duration(g.cfg.GradualDeclineWindowS) * time.Second
	ref, ok := history.At(now.Add(-window))
	if !ok || ref.Price <= 0 {
		return false, 0
	}
	rate := (ref.Price - price) / ref.Price
	return rate >= g.cfg.GradualDeclineThreshold, rate
}

// CheckLoss compares equity (settled balance) with the initial balance.
func (g *Guard) CheckLoss(equity float64) (bool, float64) {
	if g.initialBalance <= 0 {
		return false, 0
	}
	rate := (g.initialBalance - equity) / g.initialBalance
	return rate >= g.cfg.LossLimit, rate
}

// CheckImbalance counts open orders of the traded contract only. A net-long skew at or
// past the limit suppresses buys; a net-short skew at or past it suppresses sells.
func (g *Guard) CheckImbalance(orders []exchange.OpenOrder) (Bias, int) {
	imbalance := 0
	for _, o := range orders {
		if o.ContractID != g.contractID {
			continue
		}
		switch o.Side {
		case exchange.Buy:
			imbalance++
		case exchange.Sell:
			imbalance--
		}
	}
	limit := g.cfg.PositionImbalanceLimit
	return Bias{
		SuppressBuy:  imbalance >= limit,
		SuppressSell: imbalance <= -limit,
	}, imbalance
}
