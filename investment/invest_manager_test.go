package investment

import (
	"context"
	"errors"
	"testing"

	"captain_grid_go/exchange"
	"captain_grid_go/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "10000001"

func TestManager_SuppressesSideThatGrowsExposure(t *testing.T) {
	client := exchange.NewMockClient(50000, 17.18)
	m := NewManager(client, contract, 0.01)
	ctx := context.Background()

	bias, err := m.CheckAndUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, risk.Bias{}, bias)
	assert.False(t, m.IsLimitExceeded())

	client.SetPosition(0.012)
	bias, err = m.CheckAndUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, risk.Bias{SuppressBuy: true}, bias)
	assert.True(t, m.IsLimitExceeded())

	client.SetPosition(-0.01)
	bias, err = m.CheckAndUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, risk.Bias{SuppressSell: true}, bias)

	client.SetPosition(0.004)
	bias, err = m.CheckAndUpdate(ctx)
	require.NoError(t, err)
	assert.False(t, bias.Any())
	assert.False(t, m.IsLimitExceeded())
}

func TestManager_DisabledLimitSkipsQuery(t *testing.T) {
	client := exchange.NewMockClient(50000, 17.18)
	client.SetPosition(5)
	m := NewManager(client, contract, 0)

	bias, err := m.CheckAndUpdate(context.Background())
	require.NoError(t, err)
	assert.False(t, bias.Any())
	assert.Empty(t, client.Calls())
}

func TestManager_PositionErrorIsReturned(t *testing.T) {
	client := exchange.NewMockClient(50000, 17.18)
	client.SetError(exchange.OpPosition, errors.New("503"))
	m := NewManager(client, contract, 0.01)

	_, err := m.CheckAndUpdate(context.Background())
	assert.Error(t, err)
}
