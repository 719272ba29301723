package shared

import (
	"fmt"
	"time"
)

// Timeframe represents the market data time period.
type Timeframe int

const (
	M5 Timeframe = iota
	M15
	M30
	H1
	H2
	H4
	H8
	H12
	D1
)

// Timeframes lists all supported timeframes in ascending duration.
var Timeframes = []Timeframe{M5, M15, M30, H1, H2, H4, H8, H12, D1}

// String stringifies the provided timeframe.
func (t Timeframe) String() string {
	switch t {
	case M5:
		return "M5"
	case M15:
		return "M15"
	case M30:
		return "M30"
	case H1:
		return "H1"
	case H2:
		return "H2"
	case H4:
		return "H4"
	case H8:
		return "H8"
	case H12:
		return "H12"
	case D1:
		return "D1"
	default:
		return "unknown"
	}
}

// Duration returns the time period covered by a single bar of the timeframe.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case M5:
		return time.Minute * 5
	case M15:
		return time.Minute * 15
	case M30:
		return time.Minute * 30
	case H1:
		return time.Hour
	case H2:
		return time.Hour * 2
	case H4:
		return time.Hour * 4
	case H8:
		return time.Hour * 8
	case H12:
		return time.Hour * 12
	case D1:
		return time.Hour * 24
	default:
		return 0
	}
}

// ParseTimeframe parses the provided timeframe name.
func ParseTimeframe(name string) (Timeframe, error) {
	for _, tf := range Timeframes {
		if tf.String() == name {
			return tf, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, name)
}
