package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dnldd/mtbridge/shared"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// HistoricDataConfig represents the historic data source configuration.
type HistoricDataConfig struct {
	// FilePath is the filepath to the historic market data, json or csv.
	FilePath string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *HistoricDataConfig) Validate() error {
	var errs error

	if cfg.FilePath == "" {
		errs = errors.Join(errs, fmt.Errorf("historic data filepath cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// csvBar is a single historic bar row.
type csvBar struct {
	Symbol    string  `csv:"symbol"`
	Timeframe string  `csv:"timeframe"`
	Time      int64   `csv:"time"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    uint64  `csv:"volume"`
}

// seriesKey identifies a historic bar series.
type seriesKey struct {
	symbol    string
	timeframe shared.Timeframe
}

// HistoricData represents historic market data loaded once and shared by
// simulated terminals.
type HistoricData struct {
	cfg    *HistoricDataConfig
	series map[seriesKey][]shared.Bar
}

// loadHistoricJSON loads series from json of the form {"SYMBOL":{"H1":[bars...]}}.
func loadHistoricJSON(data []byte) (map[seriesKey][]shared.Bar, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("malformed historic data json")
	}

	series := make(map[seriesKey][]shared.Bar)
	var err error
	gjson.ParseBytes(data).ForEach(func(symbol, timeframes gjson.Result) bool {
		timeframes.ForEach(func(name, entries gjson.Result) bool {
			var tf shared.Timeframe
			tf, err = shared.ParseTimeframe(name.String())
			if err != nil {
				return false
			}

			var bars []shared.Bar
			bars, err = shared.ParseBars(entries.Array())
			if err != nil {
				err = fmt.Errorf("parsing %s %s bars: %w", symbol.String(), name.String(), err)
				return false
			}

			series[seriesKey{symbol: symbol.String(), timeframe: tf}] = bars
			return true
		})

		return err == nil
	})
	if err != nil {
		return nil, err
	}

	return series, nil
}

// loadHistoricCSV loads series from csv rows of symbol, timeframe and bar fields.
func loadHistoricCSV(data []byte) (map[seriesKey][]shared.Bar, error) {
	var rows []*csvBar
	err := gocsv.UnmarshalBytes(data, &rows)
	if err != nil {
		return nil, fmt.Errorf("parsing historic data csv: %w", err)
	}

	series := make(map[seriesKey][]shared.Bar)
	for _, row := range rows {
		tf, err := shared.ParseTimeframe(row.Timeframe)
		if err != nil {
			return nil, err
		}

		key := seriesKey{symbol: row.Symbol, timeframe: tf}
		series[key] = append(series[key], shared.Bar{
			Time:   row.Time,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}

	return series, nil
}

// NewHistoricData initializes a new historic data source.
func NewHistoricData(cfg *HistoricDataConfig) (*HistoricData, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating historic data config: %w", err)
	}

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reading historic data from file with path '%s': %v", cfg.FilePath, err)
	}

	var series map[seriesKey][]shared.Bar
	switch strings.ToLower(filepath.Ext(cfg.FilePath)) {
	case ".csv":
		series, err = loadHistoricCSV(data)
	default:
		series, err = loadHistoricJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("loading historic data: %w", err)
	}

	for key := range series {
		bars := series[key]
		sort.SliceStable(bars, func(i, j int) bool {
			return bars[i].Time < bars[j].Time
		})
	}

	cfg.Logger.Info().Msgf("loaded %d historic series from %s", len(series), cfg.FilePath)

	return &HistoricData{cfg: cfg, series: series}, nil
}

// Bars returns the historic bars for the provided symbol and timeframe.
func (h *HistoricData) Bars(symbol string, timeframe shared.Timeframe) []shared.Bar {
	return h.series[seriesKey{symbol: symbol, timeframe: timeframe}]
}

// NewTerminal creates a simulated terminal serving the historic data.
func (h *HistoricData) NewTerminal() *HistoricTerminal {
	return &HistoricTerminal{data: h}
}

// HistoricTerminal represents a simulated terminal backed by historic data.
type HistoricTerminal struct {
	data        *HistoricData
	initialized bool
	creds       *shared.Credentials
}

// Ensure the HistoricTerminal implements the Terminal interface.
var _ shared.Terminal = (*HistoricTerminal)(nil)

// Initialize prepares the simulated terminal.
func (t *HistoricTerminal) Initialize(ctx context.Context) error {
	t.initialized = true
	return nil
}

// Login records the session credentials.
func (t *HistoricTerminal) Login(ctx context.Context, creds shared.Credentials) error {
	if !t.initialized {
		return errors.New("terminal not initialized")
	}

	t.creds = &creds
	return nil
}

// AccountInfo returns the session account, or nothing when logged out.
func (t *HistoricTerminal) AccountInfo(ctx context.Context) (*shared.AccountInfo, error) {
	if t.creds == nil {
		return nil, nil
	}

	return &shared.AccountInfo{
		Login:    t.creds.Login,
		Server:   t.creds.Server,
		Currency: "USD",
	}, nil
}

// CopyRates returns up to count of the most recent historic bars.
func (t *HistoricTerminal) CopyRates(ctx context.Context, symbol string, timeframe shared.Timeframe, count int) ([]shared.Bar, error) {
	if t.creds == nil {
		return nil, errors.New("terminal not logged in")
	}

	bars := t.data.Bars(symbol, timeframe)
	if count < len(bars) {
		bars = bars[len(bars)-count:]
	}

	out := make([]shared.Bar, len(bars))
	copy(out, bars)

	return out, nil
}

// Shutdown ends the simulated session.
func (t *HistoricTerminal) Shutdown(ctx context.Context) error {
	t.initialized = false
	t.creds = nil
	return nil
}
