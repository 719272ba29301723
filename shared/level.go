package shared

import (
	"strings"
)

// LevelKind represents the type of level.
type LevelKind int

const (
	Support LevelKind = iota
	Resistance
)

// String stringifies the provided level kind.
func (l LevelKind) String() string {
	switch l {
	case Support:
		return "support"
	case Resistance:
		return "resistance"
	default:
		return "unknown"
	}
}

// MarshalText encodes the level kind as an upper case label.
func (l LevelKind) MarshalText() ([]byte, error) {
	return []byte(strings.ToUpper(l.String())), nil
}

// HorizontalLine represents a support or resistance level formed by clustered fractals.
type HorizontalLine struct {
	// Price is the mean price of the clustered fractals.
	Price      float64   `json:"price"`
	StartTime  int64     `json:"start_time"`
	EndTime    int64     `json:"end_time"`
	Kind       LevelKind `json:"type"`
	TouchCount int       `json:"touches"`
	Score      float64   `json:"score"`
}

// HorizontalLines groups horizontal lines by level kind.
type HorizontalLines struct {
	Resistance []HorizontalLine `json:"resistance"`
	Support    []HorizontalLine `json:"support"`
}
