package shared

import (
	"strings"
)

// FractalKind represents the type of local price extremum.
type FractalKind int

const (
	Peak FractalKind = iota
	Bottom
)

// String stringifies the provided fractal kind.
func (k FractalKind) String() string {
	switch k {
	case Peak:
		return "peak"
	case Bottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// MarshalText encodes the fractal kind as an upper case label.
func (k FractalKind) MarshalText() ([]byte, error) {
	return []byte(strings.ToUpper(k.String())), nil
}

// FractalPoint represents a local price extremum in a bar series.
type FractalPoint struct {
	Time int64 `json:"time"`
	// Value is the bar high for peaks and the bar low for bottoms.
	Value float64 `json:"price"`
	// BarIndex is the position of the bar in the source series.
	BarIndex int         `json:"index"`
	Kind     FractalKind `json:"-"`
}

// Fractals represents the fractal points detected in a bar series.
type Fractals struct {
	Peaks   []FractalPoint `json:"peaks"`
	Bottoms []FractalPoint `json:"bottoms"`
	// Insufficient marks a series too short for the detection window.
	Insufficient bool `json:"insufficient,omitempty"`
}
