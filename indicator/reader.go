package indicator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dnldd/mtbridge/fetch"
	"github.com/dnldd/mtbridge/priceaction"
	"github.com/dnldd/mtbridge/shared"
	"github.com/dnldd/mtbridge/terminal"
	"github.com/rs/zerolog"
)

// Lookup defines the connection lookup requirements of the reader.
type Lookup interface {
	// LookupBySymbol returns the connection serving the provided symbol.
	LookupBySymbol(ctx context.Context, symbol string) (*terminal.Connection, error)
}

// ReaderConfig represents the configuration for the indicator reader.
type ReaderConfig struct {
	// Lookup resolves symbols to terminal connections.
	Lookup Lookup
	// Fetcher retrieves bar series from connections.
	Fetcher *fetch.Fetcher
	// Synthesizer derives lines from fractals.
	Synthesizer *priceaction.Synthesizer
	// SideBars is the fractal detection window on each side of a bar.
	SideBars int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ReaderConfig) Validate() error {
	var errs error

	if cfg.Lookup == nil {
		errs = errors.Join(errs, fmt.Errorf("lookup cannot be nil"))
	}
	if cfg.Fetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("fetcher cannot be nil"))
	}
	if cfg.Synthesizer == nil {
		errs = errors.Join(errs, fmt.Errorf("synthesizer cannot be nil"))
	}
	if cfg.SideBars < 0 {
		errs = errors.Join(errs, fmt.Errorf("side bars cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Result represents the indicator data derived for a symbol and timeframe.
type Result struct {
	TerminalID string
	Symbol     string
	Timeframe  string
	Bars       []shared.Bar
	Fractals   shared.Fractals
	Horizontal shared.HorizontalLines
	Diagonal   shared.DiagonalLines
}

// Reader runs the lookup, fetch, detect and synthesize pipeline.
type Reader struct {
	cfg *ReaderConfig
}

// NewReader initializes a new indicator reader.
func NewReader(cfg *ReaderConfig) (*Reader, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating reader config: %w", err)
	}

	if cfg.SideBars == 0 {
		cfg.SideBars = priceaction.DefaultSideBars
	}

	return &Reader{cfg: cfg}, nil
}

// Read fetches the most recent bars for the provided symbol and derives its
// fractals and lines.
//
// Unknown symbols return shared.ErrSymbolNotConfigured and connections still
// down after the lookup reconnect return shared.ErrTerminalUnavailable. Fetch
// failures are returned as *shared.DataFetchError.
func (r *Reader) Read(ctx context.Context, symbol string, timeframe string, count int) (*Result, error) {
	conn, err := r.cfg.Lookup.LookupBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if conn.State() != terminal.Connected {
		status := conn.Status()
		return nil, fmt.Errorf("%w: terminal %s for %s is %s: %s", shared.ErrTerminalUnavailable,
			status.TerminalID, symbol, status.State, status.Error)
	}

	bars, err := r.cfg.Fetcher.Fetch(ctx, conn, symbol, timeframe, count)
	if err != nil {
		return nil, err
	}

	fractals := priceaction.DetectFractals(bars, r.cfg.SideBars)
	if fractals.Insufficient {
		r.cfg.Logger.Warn().Msgf("%d %s %s bars are too few for fractal detection with %d side bars",
			len(bars), symbol, timeframe, r.cfg.SideBars)
	}

	result := &Result{
		TerminalID: conn.ID(),
		Symbol:     symbol,
		Timeframe:  timeframe,
		Bars:       bars,
		Fractals:   fractals,
		Horizontal: r.cfg.Synthesizer.Horizontal(fractals, bars[len(bars)-1].Time),
		Diagonal:   r.cfg.Synthesizer.Diagonal(fractals),
	}

	r.cfg.Logger.Debug().Msgf("read %s %s: %d bars, %d peaks, %d bottoms", symbol, timeframe,
		len(bars), len(fractals.Peaks), len(fractals.Bottoms))

	return result, nil
}
