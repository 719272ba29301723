package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dnldd/mtbridge/shared"
	"github.com/rs/zerolog"
)

const (
	// DefaultMinBars is the default minimum number of bars a fetch must return.
	DefaultMinBars = 1
)

// RateSource defines the requirements for a locked source of terminal bars.
type RateSource interface {
	// ID returns the source identifier.
	ID() string
	// FetchRates requests the most recent bars while holding the source lock.
	FetchRates(ctx context.Context, symbol string, timeframe shared.Timeframe, count int) ([]shared.Bar, error)
}

// FetcherConfig represents the configuration for the market data fetcher.
type FetcherConfig struct {
	// MinBars is the minimum number of bars a fetch must return.
	MinBars int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *FetcherConfig) Validate() error {
	var errs error

	if cfg.MinBars < 0 {
		errs = errors.Join(errs, fmt.Errorf("minimum bars cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Fetcher retrieves bar series from terminal connections.
type Fetcher struct {
	cfg *FetcherConfig
}

// NewFetcher initializes a new market data fetcher.
func NewFetcher(cfg *FetcherConfig) (*Fetcher, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating fetcher config: %w", err)
	}

	if cfg.MinBars == 0 {
		cfg.MinBars = DefaultMinBars
	}

	return &Fetcher{cfg: cfg}, nil
}

// normalize orders bars oldest first and drops duplicate times, keeping the last occurrence.
func normalize(bars []shared.Bar) []shared.Bar {
	sorted := make([]shared.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	out := sorted[:0]
	for idx := range sorted {
		if len(out) > 0 && out[len(out)-1].Time == sorted[idx].Time {
			out[len(out)-1] = sorted[idx]
			continue
		}
		out = append(out, sorted[idx])
	}

	return out
}

// Fetch retrieves the most recent count bars for the provided symbol and timeframe.
//
// The source lock is held only for the terminal call. The returned series is
// ordered oldest first with strictly increasing times.
func (f *Fetcher) Fetch(ctx context.Context, src RateSource, symbol string, timeframe string, count int) ([]shared.Bar, error) {
	tf, err := shared.ParseTimeframe(timeframe)
	if err != nil {
		return nil, &shared.DataFetchError{Symbol: symbol, Timeframe: timeframe, Err: err}
	}

	if count < 1 {
		return nil, &shared.DataFetchError{
			Symbol:    symbol,
			Timeframe: timeframe,
			Err:       fmt.Errorf("bar count must be positive, got %d", count),
		}
	}

	bars, err := src.FetchRates(ctx, symbol, tf, count)
	if err != nil {
		f.cfg.Logger.Error().Msgf("fetching %s %s rates from %s: %v", symbol, timeframe, src.ID(), err)
		return nil, &shared.DataFetchError{Symbol: symbol, Timeframe: timeframe, Err: err}
	}

	if len(bars) == 0 {
		return nil, &shared.DataFetchError{Symbol: symbol, Timeframe: timeframe, Err: shared.ErrNoData}
	}

	bars = normalize(bars)
	if len(bars) < f.cfg.MinBars {
		return nil, &shared.DataFetchError{
			Symbol:    symbol,
			Timeframe: timeframe,
			Err:       fmt.Errorf("%w: got %d, need %d", shared.ErrInsufficientData, len(bars), f.cfg.MinBars),
		}
	}

	f.cfg.Logger.Debug().Msgf("fetched %d %s %s bars from %s", len(bars), symbol, timeframe, src.ID())

	return bars, nil
}
