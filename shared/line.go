package shared

import (
	"strings"
)

// Direction represents the direction of a diagonal line.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// String stringifies the provided direction.
func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return "unknown"
	}
}

// MarshalText encodes the direction as an upper case label.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(strings.ToUpper(d.String())), nil
}

// LinePoint represents a time and price coordinate.
type LinePoint struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// DiagonalLine represents a trend line through two fractal points.
type DiagonalLine struct {
	Start LinePoint `json:"start"`
	End   LinePoint `json:"end"`
	// Slope is the price change per second.
	Slope        float64   `json:"slope"`
	AngleDegrees float64   `json:"angle"`
	TouchCount   int       `json:"touches"`
	Score        float64   `json:"score"`
	Direction    Direction `json:"direction"`
}

// DiagonalLines groups diagonal lines by direction.
type DiagonalLines struct {
	Ascending  []DiagonalLine `json:"ascending"`
	Descending []DiagonalLine `json:"descending"`
}
