// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// CurrentVersion is the configuration table layout this build understands.
const CurrentVersion = 1

// PhaseConfig is one row of the phase table: the equity threshold at which the phase
// starts, how many levels per side it places and the spacing as a fraction of price.
type PhaseConfig struct {
	Phase       int     `yaml:"phase"`
	Threshold   float64 `yaml:"threshold"`
	GridCount   int     `yaml:"grid_count"`
	IntervalPct float64 `yaml:"interval_pct"`
}

// GridConfig holds configuration for ladder planning and placement.
type GridConfig struct {
	OrderSizeUSDT       float64       `yaml:"order_size_usdt"`
	MinOrderSize        float64       `yaml:"min_order_size"`
	ForceMinOrder       bool          `yaml:"force_min_order"`
	PricePrecision      int           `yaml:"price_precision"`
	SizePrecision       int           `yaml:"size_precision"`
	CancelSettleDelayMs int           `yaml:"cancel_settle_delay_ms"`
	Phases              []PhaseConfig `yaml:"phases"`
}

// RiskConfig holds the thresholds of the risk detectors.
type RiskConfig struct {
	VolatilityThreshold      float64 `yaml:"volatility_threshold"`
	VolatilityCheckIntervalS int     `yaml:"volatility_check_interval_seconds"`
	GradualDeclineThreshold  float64 `yaml:"gradual_decline_threshold"`
	GradualDeclineWindowS    int     `yaml:"gradual_decline_window_seconds"`
	LossLimit                float64 `yaml:"loss_limit"`
	PositionImbalanceLimit   int     `yaml:"position_imbalance_limit"`
	MaxNetPosition           float64 `yaml:"max_net_position"`
	BalanceGlitchMultiplier  float64 `yaml:"balance_glitch_multiplier"`
}

// ResumeConfig holds the cooldown and resume gating parameters.
type ResumeConfig struct {
	CooldownMinutes        int     `yaml:"cooldown_minutes"`
	MaxCooldownMinutes     int     `yaml:"max_cooldown_minutes"`
	StabilityWindowMinutes int     `yaml:"stability_window_minutes"`
	StabilityThreshold     float64 `yaml:"stability_threshold"`
	MinResumeBalance       float64 `yaml:"min_resume_balance"`
	ForceResumeAfterMax    bool    `yaml:"force_resume_after_max"`
}

// LogConfig holds the configuration for logging.
type LogConfig struct {
	LogLevel   string `yaml:"log_level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// NormalConfig holds all general, non-strategy-specific configuration.
type NormalConfig struct {
	HTTPTimeoutSeconds       int    `yaml:"http_timeout_seconds"`
	HeartbeatIntervalMinutes int    `yaml:"heartbeat_interval_minutes"`
	MaxConsecutiveErrors     int    `yaml:"max_consecutive_errors"` // trips when the failure count reaches it
	LogDirectory             string `yaml:"log_directory"`
	MetricsAddr              string `yaml:"metrics_addr"`
	FallbackTickerURL        string `yaml:"fallback_ticker_url"`
	FallbackTickerSymbol     string `yaml:"fallback_ticker_symbol"`
	CancelOnExit             bool   `yaml:"cancel_on_exit"`
}

// Config is the top-level configuration structure.
type Config struct {
	Version        int           `yaml:"version"`
	Symbol         string        `yaml:"symbol"`
	ContractID     string        `yaml:"contract_id"`
	UseSimulation  bool          `yaml:"use_simulation"`
	InitialBalance float64       `yaml:"initial_balance"`
	Grid           *GridConfig   `yaml:"grid"`
	Risk           *RiskConfig   `yaml:"risk"`
	Resume         *ResumeConfig `yaml:"resume"`
	Normal         *NormalConfig `yaml:"normal_config"`
	Logs           *LogConfig    `yaml:"logs"`
}

// NewConfig creates a Config with its nested blocks allocated and only non-strategy defaults set.
// Every threshold must come from config.yaml; Validate rejects zero values.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Grid:    &GridConfig{},
		Risk: &RiskConfig{
			BalanceGlitchMultiplier: 10,
		},
		Resume: &ResumeConfig{},
		Normal: &NormalConfig{
			FallbackTickerURL:    "https://api.binance.com",
			FallbackTickerSymbol: "BTCUSDT",
		},
		Logs: &LogConfig{},
	}
}

// LoadConfig loads configuration from a given path, applies defaults, and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s, program cannot run without a config file", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the logical consistency and completeness of the entire configuration.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("Config error: unsupported config version %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.Symbol == "" {
		return fmt.Errorf("Critical config missing: 'symbol' must be explicitly specified in config.yaml")
	}
	if c.ContractID == "" {
		return fmt.Errorf("Critical config missing: 'contract_id' must be explicitly specified in config.yaml")
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("Critical config missing: 'initial_balance' must be positive")
	}
	if c.Grid == nil || c.Risk == nil || c.Resume == nil || c.Normal == nil || c.Logs == nil {
		return fmt.Errorf("Critical config missing: 'grid', 'risk', 'resume', 'normal_config' and 'logs' blocks must all be provided")
	}
	if err := c.Grid.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Resume.validate(); err != nil {
		return err
	}

	if c.Normal.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("Critical config missing: 'normal_config.http_timeout_seconds' must be positive")
	}
	if c.Normal.HeartbeatIntervalMinutes <= 0 {
		return fmt.Errorf("Critical config missing: 'normal_config.heartbeat_interval_minutes' must be positive")
	}
	if c.Normal.MaxConsecutiveErrors <= 0 {
		return fmt.Errorf("Critical config missing: 'normal_config.max_consecutive_errors' must be positive")
	}
	if c.Normal.LogDirectory == "" {
		return fmt.Errorf("Critical config missing: 'normal_config.log_directory' must be specified (e.g., 'logs')")
	}

	if c.Logs.LogLevel == "" {
		return fmt.Errorf("Critical config missing: 'logs.log_level' must be specified (e.g., 'info', 'debug')")
	}
	if c.Logs.MaxSizeMB <= 0 || c.Logs.MaxBackups <= 0 || c.Logs.MaxAgeDays <= 0 {
		return fmt.Errorf("Critical config missing: 'logs.max_size_mb', 'logs.max_backups' and 'logs.max_age_days' must be positive")
	}
	return nil
}

func (g *GridConfig) validate() error {
	if g.OrderSizeUSDT <= 0 {
		return fmt.Errorf("Critical config missing: 'grid.order_size_usdt' must be positive")
	}
	if g.MinOrderSize <= 0 {
		return fmt.Errorf("Critical config missing: 'grid.min_order_size' must be positive")
	}
	if g.PricePrecision < 0 || g.SizePrecision < 0 {
		return fmt.Errorf("Config error: 'grid.price_precision' and 'grid.size_precision' cannot be negative")
	}
	if g.CancelSettleDelayMs < 0 {
		return fmt.Errorf("Config error: 'grid.cancel_settle_delay_ms' cannot be negative")
	}
	if len(g.Phases) == 0 {
		return fmt.Errorf("Critical config missing: 'grid.phases' table must contain at least phase 1")
	}
	for i, p := range g.Phases {
		if p.Phase != i+1 {
			return fmt.Errorf("Config error: grid.phases[%d] must be phase %d, got %d", i, i+1, p.Phase)
		}
		if i == 0 && p.Threshold != 0 {
			return fmt.Errorf("Config error: phase 1 threshold must be 0, got %.4f", p.Threshold)
		}
		if i > 0 && p.Threshold <= g.Phases[i-1].Threshold {
			return fmt.Errorf("Config error: phase %d threshold (%.4f) must be greater than phase %d threshold (%.4f)",
				p.Phase, p.Threshold, p.Phase-1, g.Phases[i-1].Threshold)
		}
		if p.GridCount < 1 || p.GridCount > 20 {
			return fmt.Errorf("Config error: phase %d grid_count must be 1-20, got %d", p.Phase, p.GridCount)
		}
		if p.IntervalPct <= 0 || p.IntervalPct >= 1 {
			return fmt.Errorf("Config error: phase %d interval_pct must be in (0, 1), got %f", p.Phase, p.IntervalPct)
		}
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.VolatilityThreshold <= 0 {
		return fmt.Errorf("Critical config missing: 'risk.volatility_threshold' must be positive")
	}
	if r.VolatilityCheckIntervalS <= 0 {
		return fmt.Errorf("Critical config missing: 'risk.volatility_check_interval_seconds' must be positive")
	}
	if r.GradualDeclineThreshold <= 0 || r.GradualDeclineWindowS <= 0 {
		return fmt.Errorf("Critical config missing: 'risk.gradual_decline_threshold' and 'risk.gradual_decline_window_seconds' must be positive")
	}
	if r.LossLimit <= 0 || r.LossLimit > 1 {
		return fmt.Errorf("Config error: 'risk.loss_limit' must be in (0, 1], got %f", r.LossLimit)
	}
	if r.PositionImbalanceLimit <= 0 {
		return fmt.Errorf("Critical config missing: 'risk.position_imbalance_limit' must be positive")
	}
	if r.MaxNetPosition < 0 {
		return fmt.Errorf("Config error: 'risk.max_net_position' cannot be negative")
	}
	if r.BalanceGlitchMultiplier <= 1 {
		return fmt.Errorf("Config error: 'risk.balance_glitch_multiplier' must be greater than 1")
	}
	return nil
}

func (r *ResumeConfig) validate() error {
	if r.CooldownMinutes <= 0 {
		return fmt.Errorf("Critical config missing: 'resume.cooldown_minutes' must be positive")
	}
	if r.MaxCooldownMinutes < r.CooldownMinutes {
		return fmt.Errorf("Config error: resume.max_cooldown_minutes (%d) must not be less than cooldown_minutes (%d)",
			r.MaxCooldownMinutes, r.CooldownMinutes)
	}
	if r.StabilityWindowMinutes <= 0 || r.StabilityThreshold <= 0 {
		return fmt.Errorf("Critical config missing: 'resume.stability_window_minutes' and 'resume.stability_threshold' must be positive")
	}
	if r.MinResumeBalance < 0 {
		return fmt.Errorf("Config error: 'resume.min_resume_balance' cannot be negative")
	}
	return nil
}

// Phase returns the table row for phase n.
func (g *GridConfig) Phase(n int) (PhaseConfig, bool) {
	if n < 1 || n > len(g.Phases) {
		return PhaseConfig{}, false
	}
	return g.Phases[n-1], true
}

// EnvConfig carries the venue endpoint and credentials, which never live in config.yaml.
type EnvConfig struct {
	BaseURL      string
	AccountID    string
	ApiSecret    string
	SlackWebhook string
}

// LoadEnvConfig reads credentials from the process environment (populated from .env by main).
func LoadEnvConfig() *EnvConfig {
	baseURL := os.Getenv("EDGEX_BASE_URL")
	if baseURL == "" {
		baseURL = "https://pro.edgex.exchange"
	}
	return &EnvConfig{
		BaseURL:      baseURL,
		AccountID:    strings.TrimSpace(os.Getenv("EDGEX_ACCOUNT_ID")),
		ApiSecret:    strings.TrimSpace(os.Getenv("EDGEX_API_SECRET")),
		SlackWebhook: os.Getenv("SLACK_WEBHOOK_URL"),
	}
}

// Validate checks the credentials required for live trading.
func (e *EnvConfig) Validate() error {
	if e.AccountID == "" {
		return fmt.Errorf("EDGEX_ACCOUNT_ID is not set, check your .env file")
	}
	id, err := strconv.ParseUint(e.AccountID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("EDGEX_ACCOUNT_ID must be a positive integer, got %q", e.AccountID)
	}
	if e.ApiSecret == "" {
		return fmt.Errorf("EDGEX_API_SECRET is not set, check your .env file")
	}
	if len(e.ApiSecret) < 10 {
		return fmt.Errorf("EDGEX_API_SECRET looks malformed (too short)")
	}
	return nil
}

// IsTestnet reports whether the configured endpoint is a testnet.
func (e *EnvConfig) IsTestnet() bool {
	return strings.Contains(strings.ToLower(e.BaseURL), "testnet")
}
