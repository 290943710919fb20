// Command regimeflow-live runs the live trading engine against a real or
// paper broker: it connects, subscribes to market data for every configured
// symbol, and drives order entry, reconciliation, and the regime tracker
// off the wall clock instead of a replayed file, blocking until it
// receives SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/regimeflow/regimeflow/internal/config"
	"github.com/regimeflow/regimeflow/internal/live"
	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/live/broker/mqbroker"
	"github.com/regimeflow/regimeflow/internal/live/broker/paperbroker"
	"github.com/regimeflow/regimeflow/internal/live/broker/wsbroker"
	"github.com/regimeflow/regimeflow/internal/live/mq/redismq"
	"github.com/regimeflow/regimeflow/internal/portfolio"
	"github.com/regimeflow/regimeflow/internal/regime/threshold"
	"github.com/regimeflow/regimeflow/internal/risk"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	if p := os.Getenv("REGIMEFLOW_CONFIG"); p != "" {
		*configPath = p
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "regimeflow-live: load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "regimeflow-live: invalid config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	reg := symbol.New()
	adapter, err := buildBroker(cfg.Live, cfg.Backtest.InitialCapital, reg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build broker adapter")
	}

	pf := portfolio.New(cfg.Backtest.InitialCapital, cfg.Backtest.Currency)

	eng := live.New(cfg.Live, adapter, pf, log)

	riskChecker := risk.NewChecker(risk.Config{
		MaxOrderSize:     cfg.Risk.MaxOrderSize,
		MaxOrderValue:    cfg.Risk.MaxOrderValue,
		MaxPositionSize:  cfg.Risk.MaxPositionSize,
		MaxDailyVolume:   cfg.Risk.MaxDailyVolume,
		PriceBandPercent: cfg.Risk.PriceBandPercent,
	})
	eng.SetRiskChecker(riskChecker)

	tracker := threshold.New(threshold.Config{
		Window:       cfg.Regime.Window,
		BullReturn:   cfg.Regime.BullReturn,
		BearReturn:   cfg.Regime.BearReturn,
		CrisisReturn: cfg.Regime.CrisisReturn,
	})
	eng.SetRegimeTracker(tracker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start live engine")
	}

	ids := make([]symbol.ID, 0, len(cfg.Symbols))
	for _, name := range cfg.Symbols {
		ids = append(ids, reg.Intern(name))
	}
	if err := eng.SubscribeMarketData(ids); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe market data")
	}

	log.Info().Str("broker", cfg.Live.Broker).Bool("paper", cfg.Live.Paper).Strs("symbols", cfg.Symbols).
		Msg("regimeflow-live started")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping engine")

	if err := eng.Stop(); err != nil {
		log.Error().Err(err).Msg("error during engine shutdown")
	}
}

// buildBroker constructs the broker.Adapter the live engine talks to: a
// paperbroker.Broker for simulated fills, or a wsbroker.Broker dialing
// cfg.BrokerURL for a real venue, optionally wrapped in mqbroker.Broker so
// market data is bridged through a durable queue instead of the broker's
// own socket (§6's message-queue bridge).
func buildBroker(cfg config.LiveConfig, startingCash float64, reg *symbol.Registry, log zerolog.Logger) (broker.Adapter, error) {
	var adapter broker.Adapter
	if cfg.Paper {
		adapter = paperbroker.New(startingCash, 0)
	} else {
		if cfg.BrokerURL == "" {
			return nil, fmt.Errorf("regimeflow-live: live.broker_url required when live.paper is false")
		}
		adapter = wsbroker.New(cfg.BrokerURL, reg, live.ReconnectConfig{
			Enabled:     cfg.Reconnect.Enabled,
			Initial:     time.Duration(cfg.Reconnect.InitialMs) * time.Millisecond,
			Max:         time.Duration(cfg.Reconnect.MaxMs) * time.Millisecond,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		}, log)
	}

	if !cfg.EnableMessageQueue {
		return adapter, nil
	}
	if cfg.MessageQueue.Type != "redis" {
		return nil, fmt.Errorf("regimeflow-live: unsupported message_queue.type %q (only \"redis\" is wired)", cfg.MessageQueue.Type)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.MessageQueue.SubscribeEndpoint})
	pollTimeout := time.Duration(cfg.MessageQueue.PollTimeoutMs) * time.Millisecond
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	queue := redismq.New(client, cfg.MessageQueue.Topic, "regimeflow-live", "regimeflow-live-1", pollTimeout)

	return mqbroker.New(adapter, queue, reg, log), nil
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
