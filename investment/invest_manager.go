// investment/invest_manager.go
package investment

import (
	"context"
	"fmt"

	"captain_grid_go/exchange"
	"captain_grid_go/logs"
	"captain_grid_go/risk"

	"github.com/shopspring/decimal"
)

// IClient defines the client interface required by this module, convenient for testing
type IClient interface {
	GetPosition(ctx context.Context, contractID string) (*exchange.Position, error)
}

// Manager watches the net position of the traded contract against a size limit.
// Over the limit it suppresses the ladder side that would grow the exposure.
type Manager struct {
	client          IClient
	contractID      string
	limit           decimal.Decimal
	isLimitExceeded bool
}

// NewManager creates a new exposure manager. A limit of 0 disables the check.
func NewManager(client IClient, contractID string, maxNetPosition float64) *Manager {
	return &Manager{
		client:     client,
		contractID: contractID,
		limit:      decimal.NewFromFloat(maxNetPosition),
	}
}

// CheckAndUpdate reads the net position and returns the side suppression to apply.
func (m *Manager) CheckAndUpdate(ctx context.Context) (risk.Bias, error) {
	if !m.limit.IsPositive() {
		if m.isLimitExceeded {
			m.isLimitExceeded = false
			logs.Infof("[Exposure] Net position limit removed, resuming both sides.")
		}
		return risk.Bias{}, nil
	}

	pos, err := m.client.GetPosition(ctx, m.contractID)
	if err != nil {
		return risk.Bias{}, fmt.Errorf("get position for %s: %w", m.contractID, err)
	}

	bias := risk.Bias{
		SuppressBuy:  pos.NetSize.GreaterThanOrEqual(m.limit),
		SuppressSell: pos.NetSize.LessThanOrEqual(m.limit.Neg()),
	}
	switch {
	case bias.Any() && !m.isLimitExceeded:
		logs.Warnf("[Exposure] Net position %s has reached limit ±%s, %s", pos.NetSize, m.limit, bias)
	case !bias.Any() && m.isLimitExceeded:
		logs.Infof("[Exposure] Net position %s back within limit ±%s, resuming both sides.", pos.NetSize, m.limit)
	}
	m.isLimitExceeded = bias.Any()
	return bias, nil
}

// IsLimitExceeded reports the outcome of the last check.
func (m *Manager) IsLimitExceeded() bool {
	return m.isLimitExceeded
}
