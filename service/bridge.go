package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/mtbridge/api"
	"github.com/dnldd/mtbridge/fetch"
	"github.com/dnldd/mtbridge/health"
	"github.com/dnldd/mtbridge/indicator"
	"github.com/dnldd/mtbridge/priceaction"
	"github.com/dnldd/mtbridge/shared"
	"github.com/dnldd/mtbridge/terminal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// disconnectTimeout bounds disconnecting every terminal on shutdown.
	disconnectTimeout = time.Second * 30
)

// BridgeConfig represents the configuration struct for the bridge service.
type BridgeConfig struct {
	// TerminalsConfig is the filepath to the terminal list.
	TerminalsConfig string
	// BridgeURL is the base url of the terminal bridge.
	BridgeURL string
	// Backtest is the backtesting flag, terminals are served from historic data when set.
	Backtest bool
	// BacktestDataFilepath is the filepath to the backtest data.
	BacktestDataFilepath string
	// HealthCheckInterval is the time between terminal health checks.
	HealthCheckInterval time.Duration
	// CallTimeout is the deadline for a single terminal call.
	CallTimeout time.Duration
	// SideBars is the fractal detection window on each side of a bar.
	SideBars int
	// Host is the http listening host.
	Host string
	// Port is the http listening port.
	Port int
	// AdminAPIKey guards the admin routes.
	AdminAPIKey string
	// Debug enables debug http routing output.
	Debug bool
}

// Validate asserts the config sane inputs.
func (cfg *BridgeConfig) Validate() error {
	var errs error

	if cfg.TerminalsConfig == "" {
		errs = errors.Join(errs, fmt.Errorf("terminals config filepath cannot be an empty string"))
	}
	if cfg.Backtest {
		if cfg.BacktestDataFilepath == "" {
			errs = errors.Join(errs, fmt.Errorf("backtest data filepath cannot be an empty string"))
		}
	} else if cfg.BridgeURL == "" {
		errs = errors.Join(errs, fmt.Errorf("bridge url cannot be an empty string"))
	}
	if cfg.HealthCheckInterval < 0 {
		errs = errors.Join(errs, fmt.Errorf("health check interval cannot be negative"))
	}
	if cfg.CallTimeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("call timeout cannot be negative"))
	}

	return errs
}

// Bridge represents the terminal bridge and indicator service.
type Bridge struct {
	cfg      *BridgeConfig
	registry *terminal.Registry
	monitor  *health.Monitor
	server   *api.Server
	logger   *zerolog.Logger
}

// NewBridge initializes a new bridge service.
func NewBridge(cfg *BridgeConfig) (*Bridge, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating bridge config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "mtbridge").Logger()

	records, err := terminal.LoadRecords(cfg.TerminalsConfig)
	if err != nil {
		return nil, fmt.Errorf("loading terminals config: %w", err)
	}

	var newTerminal func(rec terminal.Record) (shared.Terminal, error)
	switch cfg.Backtest {
	case true:
		historicDataLogger := logger.With().Str("component", "historicdata").Logger()
		historicData, err := fetch.NewHistoricData(&fetch.HistoricDataConfig{
			FilePath: cfg.BacktestDataFilepath,
			Logger:   &historicDataLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating historic data: %w", err)
		}

		newTerminal = func(rec terminal.Record) (shared.Terminal, error) {
			return historicData.NewTerminal(), nil
		}
	case false:
		newTerminal = func(rec terminal.Record) (shared.Terminal, error) {
			return fetch.NewBridgeClient(&fetch.BridgeConfig{
				BaseURL:    cfg.BridgeURL,
				TerminalID: rec.ID,
				Timeout:    cfg.CallTimeout,
			})
		}
	}

	registryLogger := logger.With().Str("component", "registry").Logger()
	registry, err := terminal.NewRegistry(&terminal.RegistryConfig{
		Records:     records,
		NewTerminal: newTerminal,
		CallTimeout: cfg.CallTimeout,
		Logger:      &registryLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	fetcherLogger := logger.With().Str("component", "fetcher").Logger()
	fetcher, err := fetch.NewFetcher(&fetch.FetcherConfig{Logger: &fetcherLogger})
	if err != nil {
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}

	synthesizer, err := priceaction.NewSynthesizer(priceaction.DefaultLineConfig())
	if err != nil {
		return nil, fmt.Errorf("creating line synthesizer: %w", err)
	}

	readerLogger := logger.With().Str("component", "reader").Logger()
	reader, err := indicator.NewReader(&indicator.ReaderConfig{
		Lookup:      registry,
		Fetcher:     fetcher,
		Synthesizer: synthesizer,
		SideBars:    cfg.SideBars,
		Logger:      &readerLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating indicator reader: %w", err)
	}

	monitorLogger := logger.With().Str("component", "healthmonitor").Logger()
	monitor, err := health.NewMonitor(&health.MonitorConfig{
		Pool:     registry,
		Interval: cfg.HealthCheckInterval,
		Logger:   &monitorLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating health monitor: %w", err)
	}

	serverLogger := logger.With().Str("component", "api").Logger()
	server, err := api.NewServer(&api.ServerConfig{
		Host:        cfg.Host,
		Port:        cfg.Port,
		AdminAPIKey: cfg.AdminAPIKey,
		Pool:        registry,
		Reader:      reader,
		Debug:       cfg.Debug,
		Logger:      &serverLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating api server: %w", err)
	}

	service := &Bridge{
		cfg:      cfg,
		registry: registry,
		monitor:  monitor,
		server:   server,
		logger:   &logger,
	}

	return service, nil
}

// Run handles the lifecycle processes of the bridge service.
//
// It connects every terminal, starts the health monitor and serves http until
// the provided context is cancelled. Terminals are disconnected on return.
func (b *Bridge) Run(ctx context.Context) error {
	connected := b.registry.ConnectAll(ctx)
	if connected == 0 {
		b.logger.Warn().Msgf("no terminals connected out of %d, serving degraded", b.registry.Len())
	}

	err := b.monitor.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting health monitor: %w", err)
	}

	serveErr := b.server.Run(ctx)

	b.monitor.Stop()

	disconnectCtx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	b.registry.DisconnectAll(disconnectCtx)

	if serveErr != nil {
		return serveErr
	}

	b.logger.Info().Msg("bridge service stopped")

	return nil
}
