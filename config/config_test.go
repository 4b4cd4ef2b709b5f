package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSample(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("config.yaml")
	require.NoError(t, err)
	return data
}

func TestLoadConfig_Sample(t *testing.T) {
	cfg, err := LoadConfig("config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "BTC-USDT", cfg.Symbol)
	assert.Equal(t, "10000001", cfg.ContractID)
	assert.Equal(t, 17.18, cfg.InitialBalance)
	require.Len(t, cfg.Grid.Phases, 3)
	assert.Equal(t, 20.0, cfg.Grid.Phases[1].Threshold)
	assert.Equal(t, 0.0006, cfg.Grid.Phases[0].IntervalPct)
	assert.Equal(t, 45, cfg.Resume.CooldownMinutes)
	assert.Equal(t, 75, cfg.Resume.MaxCooldownMinutes)
	assert.True(t, cfg.Resume.ForceResumeAfterMax)
	assert.Equal(t, 10.0, cfg.Risk.BalanceGlitchMultiplier)

	p, ok := cfg.Grid.Phase(3)
	require.True(t, ok)
	assert.Equal(t, 4, p.GridCount)
	_, ok = cfg.Grid.Phase(4)
	assert.False(t, ok)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestParse_RejectsInvalidTables(t *testing.T) {
	base := string(loadSample(t))

	tests := []struct {
		name    string
		old     string
		new     string
		wantErr string
	}{
		{"loss limit above one", "loss_limit: 0.50", "loss_limit: 1.5", "loss_limit"},
		{"thresholds not increasing", "threshold: 30.0", "threshold: 15.0", "must be greater than"},
		{"grid count too large", "grid_count: 4", "grid_count: 21", "grid_count must be 1-20"},
		{"max cooldown below cooldown", "max_cooldown_minutes: 75", "max_cooldown_minutes: 30", "max_cooldown_minutes"},
		{"unknown version", "version: 1", "version: 2", "unsupported config version"},
		{"unknown key", "compress: true", "compress: true\n  colour: red", "field colour not found"},
		{"missing symbol", `symbol: "BTC-USDT"`, `symbol: ""`, "'symbol'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(base, tt.old, tt.new, 1)
			require.NotEqual(t, base, doc, "fixture substitution did not apply")
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvConfig_Validate(t *testing.T) {
	t.Setenv("EDGEX_BASE_URL", "https://testnet.edgex.exchange")
	t.Setenv("EDGEX_ACCOUNT_ID", " 678726936080866030 ")
	t.Setenv("EDGEX_API_SECRET", "0xabcdef0123456789")
	t.Setenv("SLACK_WEBHOOK_URL", "")

	env := LoadEnvConfig()
	require.NoError(t, env.Validate())
	assert.Equal(t, "678726936080866030", env.AccountID)
	assert.True(t, env.IsTestnet())

	env.AccountID = "abc"
	assert.Error(t, env.Validate())
	env.AccountID = "1"
	env.ApiSecret = ""
	assert.Error(t, env.Validate())
}

func TestLoadEnvConfig_DefaultBaseURL(t *testing.T) {
	t.Setenv("EDGEX_BASE_URL", "")
	env := LoadEnvConfig()
	assert.Equal(t, "https://pro.edgex.exchange", env.BaseURL)
	assert.False(t, env.IsTestnet())
}
