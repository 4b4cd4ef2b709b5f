package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	m := New()
	m.SetPhase(2)
	m.SetBalance(21.5)
	m.SetPaused(true)
	m.ObserveCycle(true)
	m.ObserveCycle(false)
	m.ObserveTrip("loss limit")
	m.ObserveResume(true)
	m.ObservePlacement(4, 2, 0, 1, 1)

	body := scrape(t, m)
	assert.Contains(t, body, "captain_grid_phase 2")
	assert.Contains(t, body, "captain_grid_balance_usdt 21.5")
	assert.Contains(t, body, "captain_grid_paused 1")
	assert.Contains(t, body, `captain_grid_cycles_total{result="error"} 1`)
	assert.Contains(t, body, `captain_grid_trips_total{reason="loss limit"} 1`)
	assert.Contains(t, body, `captain_grid_resumes_total{mode="forced"} 1`)
	assert.Contains(t, body, `captain_grid_orders_total{outcome="placed"} 4`)
	assert.Contains(t, body, `captain_grid_levels_total{outcome="forced"} 1`)
	assert.Contains(t, body, "captain_grid_rebalances_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetPhase(1)
		m.SetPaused(false)
		m.ObserveCycle(true)
		m.ObserveTrip("volatility")
		m.ObservePlacement(1, 0, 0, 0, 0)
	})
}
