package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/dnldd/mtbridge/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// staticSource is a rate source returning fixed bars.
type staticSource struct {
	bars      []shared.Bar
	err       error
	calls     int
	timeframe shared.Timeframe
	count     int
}

func (s *staticSource) ID() string {
	return "static"
}

func (s *staticSource) FetchRates(ctx context.Context, symbol string, timeframe shared.Timeframe, count int) ([]shared.Bar, error) {
	s.calls++
	s.timeframe = timeframe
	s.count = count
	return s.bars, s.err
}

func TestFetcher(t *testing.T) {
	ctx := context.Background()

	// Ensure a fetcher config cannot have negative minimum bars.
	_, err := NewFetcher(&FetcherConfig{MinBars: -1, Logger: &log.Logger})
	assert.Error(t, err)

	fetcher, err := NewFetcher(&FetcherConfig{Logger: &log.Logger})
	assert.NoError(t, err)
	assert.Equal(t, fetcher.cfg.MinBars, DefaultMinBars)

	// Ensure invalid timeframes are rejected before reaching the terminal.
	src := &staticSource{}
	_, err = fetcher.Fetch(ctx, src, "XAUUSD", "W1", 100)
	assert.True(t, errors.Is(err, shared.ErrInvalidTimeframe))
	var fetchErr *shared.DataFetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, src.calls, 0)

	// Ensure non positive bar counts are rejected.
	_, err = fetcher.Fetch(ctx, src, "XAUUSD", "H1", 0)
	assert.Error(t, err)
	assert.Equal(t, src.calls, 0)

	// Ensure empty results are reported as no data.
	_, err = fetcher.Fetch(ctx, src, "XAUUSD", "H1", 100)
	assert.True(t, errors.Is(err, shared.ErrNoData))
	assert.Equal(t, src.timeframe, shared.H1)
	assert.Equal(t, src.count, 100)

	// Ensure terminal errors are wrapped as data fetch errors.
	src.err = shared.ErrTerminalUnavailable
	_, err = fetcher.Fetch(ctx, src, "XAUUSD", "H1", 100)
	assert.True(t, errors.Is(err, shared.ErrTerminalUnavailable))
	assert.True(t, errors.As(err, &fetchErr))
	src.err = nil

	// Ensure bars are ordered oldest first without duplicate times.
	src.bars = []shared.Bar{
		{Time: 300, High: 3, Low: 1},
		{Time: 100, High: 1, Low: 1},
		{Time: 200, High: 2, Low: 1},
		{Time: 300, High: 4, Low: 1},
	}
	bars, err := fetcher.Fetch(ctx, src, "XAUUSD", "H1", 4)
	assert.NoError(t, err)
	want := []shared.Bar{
		{Time: 100, High: 1, Low: 1},
		{Time: 200, High: 2, Low: 1},
		{Time: 300, High: 4, Low: 1},
	}
	if !cmp.Equal(bars, want) {
		t.Fatalf("unexpected bars: %s", cmp.Diff(want, bars))
	}

	// Ensure results below the required minimum are rejected.
	strict, err := NewFetcher(&FetcherConfig{MinBars: 5, Logger: &log.Logger})
	assert.NoError(t, err)
	_, err = strict.Fetch(ctx, src, "XAUUSD", "H1", 4)
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))
}
