// strategy/grid.go
package strategy

import (
	"errors"
	"fmt"

	"captain_grid_go/config"
	"captain_grid_go/utils"

	"github.com/shopspring/decimal"
)

// ErrUnknownPhase is returned when the phase has no row in the configuration table.
var ErrUnknownPhase = errors.New("unknown phase")

// Level is one rung of the ladder: a buy below and a sell above the center.
type Level struct {
	Index  int
	Buy    decimal.Decimal
	Sell   decimal.Decimal
	Size   decimal.Decimal
	Forced bool // size raised to the venue minimum under the force policy
}

// Plan is a symmetric ladder around Center.
type Plan struct {
	Phase    int
	Count    int
	Interval decimal.Decimal
	Center   decimal.Decimal
	Levels   []Level
	Forced   int
	Skipped  int
}

// Planner builds ladders from the per-phase table. It has no side effects.
type Planner struct {
	cfg     *config.GridConfig
	minSize decimal.Decimal
}

func NewPlanner(cfg *config.GridConfig) *Planner {
	return &Planner{
		cfg:     cfg,
		minSize: decimal.NewFromFloat(cfg.MinOrderSize),
	}
}

// Plan computes the ladder for phase around center with budget USDT of notional per level.
//
// Levels whose size falls below the venue minimum are skipped, unless the force policy is
// on and nothing has been planned yet: then that level is placed at the minimum size and
// planning stops, so at most one forced level exists per plan.
func (p *Planner) Plan(phase int, center, budget decimal.Decimal) (Plan, error) {
	row, ok := p.cfg.Phase(phase)
	if !ok {
		return Plan{}, fmt.Errorf("%w: %d", ErrUnknownPhase, phase)
	}
	if !center.IsPositive() {
		return Plan{}, fmt.Errorf("center price must be positive, got %s", center)
	}
	if !budget.IsPositive() {
		return Plan{}, fmt.Errorf("order budget must be positive, got %s", budget)
	}

	c := utils.RoundPrice(center, p.cfg.PricePrecision)
	interval := utils.RoundPrice(c.Mul(decimal.NewFromFloat(row.IntervalPct)), p.cfg.PricePrecision)
	if !interval.IsPositive() {
		return Plan{}, fmt.Errorf("interval %.6f%% of %s rounds to zero at price precision %d", row.IntervalPct*100, c, p.cfg.PricePrecision)
	}
	size := utils.TruncateSize(budget.Div(c), p.cfg.SizePrecision)
	belowMin := size.LessThan(p.minSize)

	plan := Plan{
		Phase:    phase,
		Count:    row.GridCount,
		Interval: interval,
		Center:   c,
		Levels:   make([]Level, 0, row.GridCount),
	}
	for i := 1; i <= row.GridCount; i++ {
		offset := interval.Mul(decimal.NewFromInt(int64(i)))
		level := Level{Index: i, Buy: c.Sub(offset), Sell: c.Add(offset), Size: size}
		if !level.Buy.IsPositive() {
			plan.Skipped++
			continue
		}
		if belowMin {
			if p.cfg.ForceMinOrder && len(plan.Levels) == 0 {
				level.Size = p.minSize
				level.Forced = true
				plan.Levels = append(plan.Levels, level)
				plan.Forced = 1
				plan.Skipped += row.GridCount - i
				break
			}
			plan.Skipped++
			continue
		}
		plan.Levels = append(plan.Levels, level)
	}
	return plan, nil
}
