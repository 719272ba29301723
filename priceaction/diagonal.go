package priceaction

import (
	"math"
	"sort"

	"github.com/dnldd/mtbridge/shared"
	"github.com/montanaflynn/stats"
)

const (
	// angleScale scales the hourly normalized slope before deriving its angle.
	angleScale = 10
	// maxLengthHours caps the line length contributing to a diagonal's score.
	maxLengthHours = 100
	// lengthScore is the score awarded per hour of line length.
	lengthScore = 0.1
	// recencyScore is the score awarded to lines ending at a recent fractal.
	recencyScore = 50
)

// PairAngle returns the normalized angle in degrees of the line through the
// provided points. The angle is symmetric in the order of the points.
func PairAngle(p1 shared.FractalPoint, p2 shared.FractalPoint) float64 {
	hours := float64(p2.Time-p1.Time) / 3600
	if hours == 0 {
		return 90
	}

	avg, err := stats.Mean(stats.Float64Data{p1.Value, p2.Value})
	if err != nil || avg == 0 {
		return 90
	}

	normalizedSlope := ((p2.Value - p1.Value) / avg) / hours

	return math.Abs(math.Atan(normalizedSlope*angleScale) * 180 / math.Pi)
}

// mergePoints merges peaks and bottoms into a single time ordered sequence,
// keeping the most recent limit points.
func mergePoints(fractals shared.Fractals, limit int) []shared.FractalPoint {
	points := make([]shared.FractalPoint, 0, len(fractals.Peaks)+len(fractals.Bottoms))
	points = append(points, fractals.Peaks...)
	points = append(points, fractals.Bottoms...)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time < points[j].Time
	})

	if len(points) > limit {
		points = points[len(points)-limit:]
	}

	return points
}

// countTouches counts the points lying within tolerance of the line through p1
// with the provided slope, relative to each point's own price.
func countTouches(points []shared.FractalPoint, p1 shared.FractalPoint, slope float64, tolerancePercent float64) int {
	var touches int
	for idx := range points {
		expected := p1.Value + slope*float64(points[idx].Time-p1.Time)
		if math.Abs(points[idx].Value-expected) <= math.Abs(points[idx].Value)*tolerancePercent/100 {
			touches++
		}
	}

	return touches
}

// DiagonalLines synthesizes ascending and descending trend lines from fractal pairs.
func DiagonalLines(fractals shared.Fractals, cfg LineConfig) shared.DiagonalLines {
	points := mergePoints(fractals, cfg.MaxPoints)

	ascending := make([]shared.DiagonalLine, 0)
	descending := make([]shared.DiagonalLine, 0)
	recentFrom := len(points) - cfg.RecentPoints

	for i := range points {
		p1 := points[i]
		for j := i + 1; j < len(points); j++ {
			p2 := points[j]
			if p2.Time <= p1.Time {
				continue
			}

			angle := PairAngle(p1, p2)
			if angle < cfg.MinAngleDegrees || angle > cfg.MaxAngleDegrees {
				continue
			}

			slope := (p2.Value - p1.Value) / float64(p2.Time-p1.Time)
			touches := countTouches(points, p1, slope, cfg.TolerancePercent)
			if touches < cfg.MinTouches {
				continue
			}

			lengthHours := float64(p2.Time-p1.Time) / 3600
			score := float64(touches*touchScore) + math.Min(lengthHours, maxLengthHours)*lengthScore
			if j >= recentFrom {
				score += recencyScore
			}

			line := shared.DiagonalLine{
				Start:        shared.LinePoint{Time: p1.Time, Price: p1.Value},
				End:          shared.LinePoint{Time: p2.Time, Price: p2.Value},
				Slope:        slope,
				AngleDegrees: angle,
				TouchCount:   touches,
				Score:        score,
			}

			if p2.Value > p1.Value {
				line.Direction = shared.Ascending
				ascending = append(ascending, line)
				continue
			}

			line.Direction = shared.Descending
			descending = append(descending, line)
		}
	}

	return shared.DiagonalLines{
		Ascending:  topLines(ascending, cfg.MaxLines),
		Descending: topLines(descending, cfg.MaxLines),
	}
}

// topLines returns up to limit lines ordered by descending score.
func topLines(lines []shared.DiagonalLine, limit int) []shared.DiagonalLine {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Score > lines[j].Score
	})

	if len(lines) > limit {
		lines = lines[:limit]
	}

	return lines
}
