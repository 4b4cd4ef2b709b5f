package strategy

import (
	"testing"

	"captain_grid_go/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGridConfig() *config.GridConfig {
	return &config.GridConfig{
		OrderSizeUSDT:  5,
		MinOrderSize:   0.001,
		ForceMinOrder:  true,
		PricePrecision: 1,
		SizePrecision:  3,
		Phases:         testPhases(),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPlanner_SymmetricLadder(t *testing.T) {
	p := NewPlanner(testGridConfig())

	plan, err := p.Plan(2, dec("50000"), dec("100"))
	require.NoError(t, err)

	assert.Equal(t, 3, plan.Count)
	assert.True(t, plan.Interval.Equal(dec("30")), "interval %s", plan.Interval)
	require.Len(t, plan.Levels, 3)
	assert.True(t, plan.Levels[0].Buy.Equal(dec("49970")))
	assert.True(t, plan.Levels[0].Sell.Equal(dec("50030")))
	assert.True(t, plan.Levels[2].Buy.Equal(dec("49910")))
	assert.True(t, plan.Levels[2].Sell.Equal(dec("50090")))
	assert.True(t, plan.Levels[0].Size.Equal(dec("0.002")), "size %s", plan.Levels[0].Size)
	assert.Zero(t, plan.Forced)
	assert.Zero(t, plan.Skipped)

	for _, l := range plan.Levels {
		assert.True(t, l.Buy.Add(l.Sell).Equal(plan.Center.Mul(decimal.NewFromInt(2))), "level %d", l.Index)
		assert.True(t, l.Buy.LessThan(plan.Center))
		assert.True(t, l.Sell.GreaterThan(plan.Center))
	}
}

func TestPlanner_CenterRoundedToPricePrecision(t *testing.T) {
	p := NewPlanner(testGridConfig())

	plan, err := p.Plan(1, dec("50000.06"), dec("100"))
	require.NoError(t, err)
	assert.True(t, plan.Center.Equal(dec("50000.1")), "center %s", plan.Center)
	assert.True(t, plan.Interval.Equal(dec("30")))
	assert.True(t, plan.Levels[0].Buy.Equal(dec("49970.1")))
}

func TestPlanner_ForcesSingleMinimumLevel(t *testing.T) {
	p := NewPlanner(testGridConfig())

	plan, err := p.Plan(1, dec("50000"), dec("3"))
	require.NoError(t, err)

	require.Len(t, plan.Levels, 1)
	assert.True(t, plan.Levels[0].Forced)
	assert.True(t, plan.Levels[0].Size.Equal(dec("0.001")))
	assert.True(t, plan.Levels[0].Buy.Equal(dec("49970")))
	assert.Equal(t, 1, plan.Forced)
	assert.Equal(t, 1, plan.Skipped)
}

func TestPlanner_ForcesAtMostOneLevelInWideLadder(t *testing.T) {
	p := NewPlanner(testGridConfig())

	plan, err := p.Plan(3, dec("50000"), dec("3"))
	require.NoError(t, err)

	assert.Equal(t, 4, plan.Count)
	require.Len(t, plan.Levels, 1)
	assert.True(t, plan.Levels[0].Forced)
	assert.Equal(t, 1, plan.Levels[0].Index)
	assert.Equal(t, 1, plan.Forced)
	assert.Equal(t, 3, plan.Skipped)
}

func TestPlanner_SkipsUndersizedWithoutForce(t *testing.T) {
	cfg := testGridConfig()
	cfg.ForceMinOrder = false
	p := NewPlanner(cfg)

	plan, err := p.Plan(3, dec("50000"), dec("3"))
	require.NoError(t, err)
	assert.Empty(t, plan.Levels)
	assert.Equal(t, 4, plan.Skipped)
	assert.Zero(t, plan.Forced)
}

func TestPlanner_SkipsNonPositiveBuyLevels(t *testing.T) {
	cfg := testGridConfig()
	cfg.Phases = []config.PhaseConfig{{Phase: 1, Threshold: 0, GridCount: 4, IntervalPct: 0.3}}
	cfg.MinOrderSize = 0.1
	p := NewPlanner(cfg)

	plan, err := p.Plan(1, dec("100"), dec("100"))
	require.NoError(t, err)
	// interval 30: buys at 70, 40, 10, -20
	require.Len(t, plan.Levels, 3)
	assert.Equal(t, 1, plan.Skipped)
}

func TestPlanner_Errors(t *testing.T) {
	p := NewPlanner(testGridConfig())

	_, err := p.Plan(7, dec("50000"), dec("5"))
	assert.ErrorIs(t, err, ErrUnknownPhase)

	_, err = p.Plan(1, dec("0"), dec("5"))
	assert.Error(t, err)

	_, err = p.Plan(1, dec("50000"), dec("0"))
	assert.Error(t, err)

	_, err = p.Plan(1, dec("10"), dec("5"))
	assert.Error(t, err, "interval rounds to zero")
}
