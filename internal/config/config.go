// Package config loads RegimeFlow's engine configuration from a YAML file
// with environment-variable overrides, and carries the strategy-scoped
// key/value parameter bag that StrategyContext exposes via GetAs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level engine configuration. Maps directly to the YAML
// file structure; every field has a mapstructure tag so viper can bind env
// vars and YAML keys alike.
type Config struct {
	Mode     string         `mapstructure:"mode"` // "backtest" or "live"
	Symbols  []string       `mapstructure:"symbols"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Live     LiveConfig     `mapstructure:"live"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Regime   RegimeConfig   `mapstructure:"regime"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BacktestConfig locates historical data and bounds the simulated window.
type BacktestConfig struct {
	DataDir        string    `mapstructure:"data_dir"`
	Start          time.Time `mapstructure:"start"`
	End            time.Time `mapstructure:"end"`
	InitialCapital float64   `mapstructure:"initial_capital"`
	Currency       string    `mapstructure:"currency"`
}

// LiveConfig wires the live engine to its broker and message-queue backends,
// recognizing every option named in §6: broker selection, order/position
// reconciliation cadence, rate and loss limits, reconnect backoff, and the
// optional message-queue bridge.
type LiveConfig struct {
	Broker       string        `mapstructure:"broker"`
	BrokerURL    string        `mapstructure:"broker_url"`
	BrokerAPIKey string        `mapstructure:"broker_api_key"`
	Paper        bool          `mapstructure:"paper"`

	MaxOrdersPerMinute int     `mapstructure:"max_orders_per_minute"` // 0 disables
	MaxOrdersPerSecond int     `mapstructure:"max_orders_per_second"` // 0 = use broker's hint
	MaxOrderValue      float64 `mapstructure:"max_order_value"`       // 0 disables

	DailyLossLimit    float64 `mapstructure:"daily_loss_limit"`
	DailyLossLimitPct float64 `mapstructure:"daily_loss_limit_pct"`

	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`

	Reconnect ReconnectConfig `mapstructure:"reconnect"`

	OrderReconcileInterval    time.Duration `mapstructure:"order_reconcile_interval"`
	PositionReconcileInterval time.Duration `mapstructure:"position_reconcile_interval"`
	AccountRefreshInterval    time.Duration `mapstructure:"account_refresh_interval"`

	EnableMessageQueue bool          `mapstructure:"enable_message_queue"`
	MessageQueue       MessageQueue  `mapstructure:"message_queue"`

	RegimeRetrainInterval   time.Duration `mapstructure:"regime_retrain_interval"`
	RegimeRetrainMinSamples int           `mapstructure:"regime_retrain_min_samples"`
	RegimeFeatureWindow     int           `mapstructure:"regime_feature_window"`

	AuditLogPath string `mapstructure:"audit_log_path"`
}

// ReconnectConfig bounds the broker reconnect backoff loop (§6, §9 S6).
type ReconnectConfig struct {
	Enabled     bool  `mapstructure:"enabled"`
	InitialMs   int64 `mapstructure:"initial_ms"`
	MaxMs       int64 `mapstructure:"max_ms"`
	MaxAttempts int   `mapstructure:"max_attempts"` // 0 = unlimited
}

// MessageQueue configures the optional MQ bridge (§6).
type MessageQueue struct {
	Type               string `mapstructure:"type"` // "zeromq" | "kafka" | "redis"
	PublishEndpoint    string `mapstructure:"publish_endpoint"`
	SubscribeEndpoint  string `mapstructure:"subscribe_endpoint"`
	Topic              string `mapstructure:"topic"`
	PollTimeoutMs      int64  `mapstructure:"poll_timeout_ms"`
	ReconnectInitialMs int64  `mapstructure:"reconnect_initial_ms"`
	ReconnectMaxMs     int64  `mapstructure:"reconnect_max_ms"`
}

// RiskConfig mirrors risk.Config/risk.KillSwitch's tunables so they can be
// set from YAML instead of hardcoded at construction.
type RiskConfig struct {
	MaxOrderSize      float64 `mapstructure:"max_order_size"`
	MaxOrderValue     float64 `mapstructure:"max_order_value"`
	MaxPositionSize   float64 `mapstructure:"max_position_size"`
	MaxDailyVolume    float64 `mapstructure:"max_daily_volume"`
	PriceBandPercent  float64 `mapstructure:"price_band_percent"`
	DailyLossLimit    float64 `mapstructure:"daily_loss_limit"`
	DailyLossLimitPct float64 `mapstructure:"daily_loss_limit_pct"`
}

// RegimeConfig tunes the default threshold.Tracker.
type RegimeConfig struct {
	Window       int     `mapstructure:"window"`
	BullReturn   float64 `mapstructure:"bull_return"`
	BearReturn   float64 `mapstructure:"bear_return"`
	CrisisReturn float64 `mapstructure:"crisis_return"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// Load reads cfg from a YAML file, applying REGIMEFLOW_-prefixed env var
// overrides for any key (dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("REGIMEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Mode != "backtest" && c.Mode != "live" {
		return fmt.Errorf("mode must be \"backtest\" or \"live\", got %q", c.Mode)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must list at least one symbol")
	}
	if c.Mode == "backtest" && c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if c.Mode == "live" && c.Live.BrokerURL == "" {
		return fmt.Errorf("live.broker_url is required in live mode")
	}
	return nil
}

// Params is a hierarchical, dotted-path key/value bag for strategy-specific
// parameters, backed by viper so strategies can read arbitrary typed values
// without the engine config schema knowing about them in advance.
type Params struct {
	v *viper.Viper
}

// NewParams wraps a plain map (e.g. parsed from a strategy's own YAML
// block) as a Params bag.
func NewParams(values map[string]any) *Params {
	v := viper.New()
	for key, val := range values {
		v.Set(key, val)
	}
	return &Params{v: v}
}

// GetAs retrieves key (a plain key or dotted path) as T, reporting ok=false
// if the key is absent or holds an incompatible type.
func GetAs[T any](p *Params, key string) (T, bool) {
	var zero T
	if p == nil || !p.v.IsSet(key) {
		return zero, false
	}
	val, ok := p.v.Get(key).(T)
	if !ok {
		return zero, false
	}
	return val, true
}
