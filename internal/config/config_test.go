package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRequiresKnownMode(t *testing.T) {
	cfg := &Config{Mode: "sideways", Symbols: []string{"AAPL"}}
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresAtLeastOneSymbol(t *testing.T) {
	cfg := &Config{Mode: "backtest", Backtest: BacktestConfig{InitialCapital: 1000}}
	require.Error(t, cfg.Validate())
}

func TestValidateBacktestRequiresInitialCapital(t *testing.T) {
	cfg := &Config{Mode: "backtest", Symbols: []string{"AAPL"}}
	require.Error(t, cfg.Validate())

	cfg.Backtest.InitialCapital = 100_000
	require.NoError(t, cfg.Validate())
}

func TestValidateLiveRequiresBrokerURL(t *testing.T) {
	cfg := &Config{Mode: "live", Symbols: []string{"AAPL"}}
	require.Error(t, cfg.Validate())

	cfg.Live.BrokerURL = "wss://broker.example.com"
	require.NoError(t, cfg.Validate())
}

func TestGetAsReturnsTypedValueAndOkFlag(t *testing.T) {
	p := NewParams(map[string]any{
		"threshold":      0.5,
		"nested.enabled": true,
	})

	v, ok := GetAs[float64](p, "threshold")
	require.True(t, ok)
	require.Equal(t, 0.5, v)

	b, ok := GetAs[bool](p, "nested.enabled")
	require.True(t, ok)
	require.True(t, b)

	_, ok = GetAs[string](p, "missing")
	require.False(t, ok)

	_, ok = GetAs[string](p, "threshold")
	require.False(t, ok, "wrong type should report !ok")
}

func TestGetAsOnNilParamsReportsNotOk(t *testing.T) {
	_, ok := GetAs[int](nil, "anything")
	require.False(t, ok)
}
