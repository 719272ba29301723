package priceaction

import (
	"github.com/dnldd/mtbridge/shared"
)

const (
	// DefaultSideBars is the default number of bars compared on each side of a fractal.
	DefaultSideBars = 35
)

// isPeak checks whether the bar at idx has a high strictly above every bar on
// its left and at or above every bar on its right.
func isPeak(bars []shared.Bar, idx int, sideBars int) bool {
	high := bars[idx].High
	for j := 1; j <= sideBars; j++ {
		if high <= bars[idx-j].High {
			return false
		}
	}
	for j := 1; j <= sideBars; j++ {
		if high < bars[idx+j].High {
			return false
		}
	}

	return true
}

// isBottom checks whether the bar at idx has a low strictly below every bar on
// its left and at or below every bar on its right.
func isBottom(bars []shared.Bar, idx int, sideBars int) bool {
	low := bars[idx].Low
	for j := 1; j <= sideBars; j++ {
		if low >= bars[idx-j].Low {
			return false
		}
	}
	for j := 1; j <= sideBars; j++ {
		if low > bars[idx+j].Low {
			return false
		}
	}

	return true
}

// DetectFractals finds the peaks and bottoms in the provided bar series.
//
// A series shorter than 2*sideBars+1 yields no fractals and is flagged
// insufficient. A bar qualifying as both a peak and a bottom is reported as a peak.
func DetectFractals(bars []shared.Bar, sideBars int) shared.Fractals {
	fractals := shared.Fractals{
		Peaks:   []shared.FractalPoint{},
		Bottoms: []shared.FractalPoint{},
	}

	if sideBars < 1 || len(bars) < 2*sideBars+1 {
		fractals.Insufficient = true
		return fractals
	}

	for idx := sideBars; idx <= len(bars)-1-sideBars; idx++ {
		switch {
		case isPeak(bars, idx, sideBars):
			fractals.Peaks = append(fractals.Peaks, shared.FractalPoint{
				Time:     bars[idx].Time,
				Value:    bars[idx].High,
				BarIndex: idx,
				Kind:     shared.Peak,
			})
		case isBottom(bars, idx, sideBars):
			fractals.Bottoms = append(fractals.Bottoms, shared.FractalPoint{
				Time:     bars[idx].Time,
				Value:    bars[idx].Low,
				BarIndex: idx,
				Kind:     shared.Bottom,
			})
		}
	}

	return fractals
}
