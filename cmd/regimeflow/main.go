// Command regimeflow runs a deterministic backtest: it loads historical
// bar/tick/book data from --data-dir, replays it through the event-driven
// engine (portfolio mark-to-market, regime tracking, and — if a strategy
// is wired in by a caller that forks this command — order submission),
// and prints the resulting equity curve summary.
//
// Concrete strategy implementations are out of scope for this module (see
// SPEC_FULL.md's non-goals); this entrypoint runs the engine in
// replay-only mode, which is still useful on its own for regime-labeling
// historical data and sanity-checking a data directory.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/regimeflow/regimeflow/internal/backtest"
	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/config"
	"github.com/regimeflow/regimeflow/internal/databuild"
	"github.com/regimeflow/regimeflow/internal/dataload"
	"github.com/regimeflow/regimeflow/internal/engine/generator"
	"github.com/regimeflow/regimeflow/internal/regime/threshold"
	"github.com/regimeflow/regimeflow/internal/risk"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	dataDir := flag.String("data-dir", "", "directory of per-symbol .bars.rgf/.ticks.rgf/.books.rgf files (overrides backtest.data_dir)")
	aggregateBars := flag.Bool("aggregate-bars", false, "synthesize bars from ticks for symbols with a ticks file but no bars file")
	aggregateSeconds := flag.Int64("aggregate-seconds", 60, "bar interval in seconds when --aggregate-bars is set")
	flag.Parse()

	if p := os.Getenv("REGIMEFLOW_CONFIG"); p != "" {
		*configPath = p
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "regimeflow: load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "regimeflow: invalid config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	dir := cfg.Backtest.DataDir
	if *dataDir != "" {
		dir = *dataDir
	}
	if dir == "" {
		log.Fatal().Msg("no data directory: set backtest.data_dir in the config or pass --data-dir")
	}

	agg := dataload.AggregateConfig{}
	if *aggregateBars {
		agg = dataload.AggregateConfig{
			Enabled:   true,
			Trigger:   databuild.TriggerTime,
			Threshold: float64(clock.Seconds(*aggregateSeconds).Microseconds()),
		}
	}

	reg := symbol.New()
	set, err := dataload.Load(dir, cfg.Symbols, reg, agg)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("failed to load backtest data")
	}
	defer set.Close()

	eng := backtest.New(cfg.Backtest.InitialCapital, cfg.Backtest.Currency, log)

	tracker := threshold.New(threshold.Config{
		Window:       cfg.Regime.Window,
		BullReturn:   cfg.Regime.BullReturn,
		BearReturn:   cfg.Regime.BearReturn,
		CrisisReturn: cfg.Regime.CrisisReturn,
	})
	eng.SetRegimeTracker(tracker)

	riskChecker := risk.NewChecker(risk.Config{
		MaxOrderSize:     cfg.Risk.MaxOrderSize,
		MaxOrderValue:    cfg.Risk.MaxOrderValue,
		MaxPositionSize:  cfg.Risk.MaxPositionSize,
		MaxDailyVolume:   cfg.Risk.MaxDailyVolume,
		PriceBandPercent: cfg.Risk.PriceBandPercent,
	})
	eng.OnPreSubmit(riskChecker.PreSubmit)

	killSwitch := risk.NewKillSwitch(cfg.Risk.DailyLossLimit, cfg.Risk.DailyLossLimitPct)
	killSwitch.StartDay(cfg.Backtest.InitialCapital)
	eng.OnPreSubmit(killSwitch.PreSubmit(func() float64 {
		curve := eng.Portfolio().EquityCurve()
		if len(curve) == 0 {
			return cfg.Backtest.InitialCapital
		}
		equity, _ := curve[len(curve)-1].Equity.Float64()
		return equity
	}))

	var bars generator.BarIterator
	if set.Bars != nil {
		bars = set.Bars
	}
	var ticks generator.TickIterator
	if set.Ticks != nil {
		ticks = set.Ticks
	}
	var books generator.BookIterator
	if set.Books != nil {
		books = set.Books
	}

	genCfg := generator.Config{
		EmitStartOfDay:      true,
		EmitEndOfDay:        true,
		EmitRegimeCheck:     true,
		RegimeCheckInterval: clock.Seconds(3600),
	}
	if err := eng.LoadData(bars, ticks, books, genCfg); err != nil {
		log.Fatal().Err(err).Msg("failed to enqueue backtest data")
	}

	log.Info().Str("data_dir", dir).Strs("symbols", cfg.Symbols).Msg("starting backtest")
	eng.Run()

	results := eng.Results()
	log.Info().
		Float64("final_equity", results.FinalEquity).
		Int("snapshots", len(results.EquityCurve)).
		Int("fills", len(results.Fills)).
		Str("regime", results.Regime.Regime.String()).
		Msg("backtest complete")

	fmt.Printf("final equity: %.2f %s\n", results.FinalEquity, cfg.Backtest.Currency)
	fmt.Printf("fills: %d  snapshots: %d  ending regime: %s\n", len(results.Fills), len(results.EquityCurve), results.Regime.Regime.String())
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var w = os.Stdout
	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
