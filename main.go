package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dnldd/mtbridge/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt, syscall.SIGTERM}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)
	defer signal.Stop(interrupt)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case sig := <-interrupt:
			log.Info().Msgf("received %s, shutting down", sig)
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Msgf("loading config: %v", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Error().Msgf("parsing log level: %v", err)
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridgeCfg := service.BridgeConfig{
		TerminalsConfig:      cfg.TerminalsConfig,
		BridgeURL:            cfg.BridgeURL,
		Backtest:             cfg.Backtest,
		BacktestDataFilepath: cfg.BacktestDataFilepath,
		HealthCheckInterval:  time.Duration(cfg.HealthCheckInterval) * time.Second,
		CallTimeout:          time.Duration(cfg.CallTimeout) * time.Second,
		Host:                 cfg.Host,
		Port:                 cfg.Port,
		AdminAPIKey:          cfg.AdminAPIKey,
		Debug:                level <= zerolog.DebugLevel,
	}
	bridge, err := service.NewBridge(&bridgeCfg)
	if err != nil {
		log.Error().Msgf("creating bridge service: %v", err)
		os.Exit(1)
	}

	go handleTermination(ctx, cancel)

	err = bridge.Run(ctx)
	if err != nil {
		log.Error().Msgf("running bridge service: %v", err)
		os.Exit(1)
	}
}
