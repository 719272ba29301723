package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrSymbolNotConfigured is returned when no terminal serves a symbol.
	ErrSymbolNotConfigured = errors.New("symbol not configured")
	// ErrTerminalNotFound is returned when no terminal has the requested id.
	ErrTerminalNotFound = errors.New("terminal not found")
	// ErrTerminalUnavailable is returned when a terminal is not connected.
	ErrTerminalUnavailable = errors.New("terminal unavailable")
	// ErrTerminalTimeout is returned when a terminal call exceeds its deadline.
	ErrTerminalTimeout = errors.New("terminal call timed out")
	// ErrCallAbandoned is returned when a caller gives up on a terminal call.
	ErrCallAbandoned = errors.New("terminal call abandoned by caller")
	// ErrInvalidTimeframe is returned for unsupported timeframes.
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	// ErrNoData is returned when a terminal returns no bars.
	ErrNoData = errors.New("no data returned")
	// ErrInsufficientData is returned when a terminal returns fewer bars than required.
	ErrInsufficientData = errors.New("insufficient data returned")
	// ErrInvalidConfig is returned for malformed or missing configuration.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrTierSymbol is returned when a tier has no access to a symbol.
	ErrTierSymbol = errors.New("symbol requires PRO tier")
	// ErrTierTimeframe is returned when a tier has no access to a timeframe.
	ErrTierTimeframe = errors.New("timeframe requires PRO tier")
)

// DataFetchError represents a failed market data fetch.
type DataFetchError struct {
	Symbol    string
	Timeframe string
	Err       error
}

// Error returns the error message.
func (e *DataFetchError) Error() string {
	return fmt.Sprintf("fetching %s %s data: %v", e.Symbol, e.Timeframe, e.Err)
}

// Unwrap returns the underlying error.
func (e *DataFetchError) Unwrap() error {
	return e.Err
}
