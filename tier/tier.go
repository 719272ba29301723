package tier

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dnldd/mtbridge/shared"
)

// Tier represents a subscription tier.
type Tier string

const (
	Free Tier = "FREE"
	Pro  Tier = "PRO"
)

var (
	freeSymbols = []string{"BTCUSD", "EURUSD", "USDJPY", "US30", "XAUUSD"}
	proSymbols  = []string{
		"AUDJPY", "AUDUSD", "BTCUSD", "ETHUSD", "EURUSD", "GBPJPY", "GBPUSD", "NDX100",
		"NZDUSD", "US30", "USDCAD", "USDCHF", "USDJPY", "XAGUSD", "XAUUSD",
	}
	freeTimeframes = []string{shared.H1.String(), shared.H4.String(), shared.D1.String()}
)

// AccessError represents a tier access denial.
type AccessError struct {
	// Message is the user facing denial message.
	Message string
	// Err is the underlying tier sentinel error.
	Err error
}

// Error returns the denial message.
func (e *AccessError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AccessError) Unwrap() error {
	return e.Err
}

// Parse returns the tier named by the provided header value. Unknown or empty
// values resolve to the free tier.
func Parse(name string) Tier {
	if Tier(strings.ToUpper(strings.TrimSpace(name))) == Pro {
		return Pro
	}

	return Free
}

// Symbols returns the symbols accessible to the tier.
func (t Tier) Symbols() []string {
	if t == Pro {
		return slices.Clone(proSymbols)
	}

	return slices.Clone(freeSymbols)
}

// Timeframes returns the timeframes accessible to the tier.
func (t Tier) Timeframes() []string {
	if t == Pro {
		names := make([]string, 0, len(shared.Timeframes))
		for _, tf := range shared.Timeframes {
			names = append(names, tf.String())
		}
		return names
	}

	return slices.Clone(freeTimeframes)
}

// ValidateSymbol asserts the tier can access the provided symbol.
func (t Tier) ValidateSymbol(symbol string) error {
	if slices.Contains(t.Symbols(), symbol) {
		return nil
	}

	if t == Pro {
		return &AccessError{
			Message: fmt.Sprintf("%s is not a valid symbol", symbol),
			Err:     shared.ErrTierSymbol,
		}
	}

	return &AccessError{
		Message: fmt.Sprintf("FREE tier cannot access %s. Accessible symbols: %s. "+
			"Upgrade to PRO for access to all %d symbols.", symbol,
			strings.Join(freeSymbols, ", "), len(proSymbols)),
		Err: shared.ErrTierSymbol,
	}
}

// ValidateTimeframe asserts the tier can access the provided timeframe.
func (t Tier) ValidateTimeframe(timeframe string) error {
	if slices.Contains(t.Timeframes(), timeframe) {
		return nil
	}

	if t == Pro {
		return &AccessError{
			Message: fmt.Sprintf("%s is not a valid timeframe", timeframe),
			Err:     shared.ErrTierTimeframe,
		}
	}

	return &AccessError{
		Message: fmt.Sprintf("FREE tier cannot access %s timeframe. Accessible timeframes: %s. "+
			"Upgrade to PRO for access to all %d timeframes.", timeframe,
			strings.Join(freeTimeframes, ", "), len(shared.Timeframes)),
		Err: shared.ErrTierTimeframe,
	}
}

// ValidateChart asserts the tier can access the symbol and timeframe pair,
// checking the symbol first.
func (t Tier) ValidateChart(symbol string, timeframe string) error {
	err := t.ValidateSymbol(symbol)
	if err != nil {
		return err
	}

	return t.ValidateTimeframe(timeframe)
}
