package priceaction

import (
	"errors"
	"fmt"
	"math"

	"github.com/dnldd/mtbridge/shared"
)

// LineConfig represents the line synthesis parameters.
type LineConfig struct {
	// TolerancePercent is the maximum deviation, as a percentage of price, for a touch.
	TolerancePercent float64
	// MinTouches is the minimum number of touches for a line.
	MinTouches int
	// MinAngleDegrees is the minimum normalized angle of a diagonal line.
	MinAngleDegrees float64
	// MaxAngleDegrees is the maximum normalized angle of a diagonal line.
	MaxAngleDegrees float64
	// MaxPoints is the number of most recent fractals considered for diagonals.
	MaxPoints int
	// MaxLines is the number of lines kept per side or direction.
	MaxLines int
	// RecentPoints is the number of most recent fractals earning a recency bonus.
	RecentPoints int
}

// DefaultLineConfig returns the default line synthesis parameters.
func DefaultLineConfig() LineConfig {
	return LineConfig{
		TolerancePercent: 1.5,
		MinTouches:       2,
		MinAngleDegrees:  0.5,
		MaxAngleDegrees:  60,
		MaxPoints:        50,
		MaxLines:         3,
		RecentPoints:     5,
	}
}

// Validate asserts the config sane inputs.
func (cfg *LineConfig) Validate() error {
	var errs error

	if cfg.TolerancePercent <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tolerance percent must be positive"))
	}
	if cfg.MinTouches < 1 {
		errs = errors.Join(errs, fmt.Errorf("minimum touches must be at least one"))
	}
	if cfg.MinAngleDegrees < 0 || cfg.MaxAngleDegrees > 90 || cfg.MinAngleDegrees > cfg.MaxAngleDegrees {
		errs = errors.Join(errs, fmt.Errorf("angle bounds must satisfy 0 <= min <= max <= 90"))
	}
	if cfg.MaxPoints < 2 {
		errs = errors.Join(errs, fmt.Errorf("maximum points must be at least two"))
	}
	if cfg.MaxLines < 1 {
		errs = errors.Join(errs, fmt.Errorf("maximum lines must be at least one"))
	}
	if cfg.RecentPoints < 0 {
		errs = errors.Join(errs, fmt.Errorf("recent points cannot be negative"))
	}

	return errs
}

// withinTolerance checks whether value lies within tolerance percent of ref.
func withinTolerance(value float64, ref float64, tolerancePercent float64) bool {
	if ref == 0 {
		return value == 0
	}

	return math.Abs(value-ref)/math.Abs(ref)*100 <= tolerancePercent
}

// Synthesizer derives horizontal and diagonal lines from fractals.
//
// It holds no state besides its parameters and is safe for concurrent use.
type Synthesizer struct {
	cfg LineConfig
}

// NewSynthesizer initializes a new line synthesizer.
func NewSynthesizer(cfg LineConfig) (*Synthesizer, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating line config: %w", err)
	}

	return &Synthesizer{cfg: cfg}, nil
}

// Horizontal synthesizes support and resistance lines ending at the provided time.
func (s *Synthesizer) Horizontal(fractals shared.Fractals, endTime int64) shared.HorizontalLines {
	return HorizontalLines(fractals, endTime, s.cfg)
}

// Diagonal synthesizes ascending and descending trend lines.
func (s *Synthesizer) Diagonal(fractals shared.Fractals) shared.DiagonalLines {
	return DiagonalLines(fractals, s.cfg)
}
