package priceaction

import (
	"math/rand"
	"testing"

	"github.com/dnldd/mtbridge/shared"
	"github.com/peterldowns/testy/assert"
)

func TestPairAngle(t *testing.T) {
	p1 := point(0, 100, shared.Bottom)
	p2 := point(20, 120, shared.Bottom)

	// Ensure the angle is independent of the order of the points.
	assert.True(t, approxEqual(PairAngle(p1, p2), PairAngle(p2, p1)))
	assert.GreaterThan(t, PairAngle(p1, p2), 5.0)
	assert.LessThanOrEqual(t, PairAngle(p1, p2), 5.3)

	// Ensure level and coincident pairs are bounded.
	assert.Equal(t, PairAngle(p1, point(10, 100, shared.Peak)), float64(0))
	assert.Equal(t, PairAngle(p1, p1), float64(90))
}

func TestDiagonalLines(t *testing.T) {
	cfg := DefaultLineConfig()

	fractals := shared.Fractals{
		Peaks: []shared.FractalPoint{
			point(5, 150, shared.Peak),
			point(15, 140, shared.Peak),
			point(25, 130, shared.Peak),
		},
		Bottoms: []shared.FractalPoint{
			point(0, 100, shared.Bottom),
			point(10, 110, shared.Bottom),
			point(20, 120, shared.Bottom),
		},
	}

	lines := DiagonalLines(fractals, cfg)

	// Ensure ascending lines come from rising pairs and descending from falling pairs.
	assert.GreaterThan(t, len(lines.Ascending), 0)
	assert.GreaterThan(t, len(lines.Descending), 0)
	assert.LessThanOrEqual(t, len(lines.Ascending), cfg.MaxLines)
	assert.LessThanOrEqual(t, len(lines.Descending), cfg.MaxLines)

	for _, line := range lines.Ascending {
		assert.Equal(t, line.Direction, shared.Ascending)
		assert.GreaterThan(t, line.End.Price, line.Start.Price)
		assert.GreaterThan(t, line.Slope, 0.0)
		assert.GreaterThan(t, line.End.Time, line.Start.Time)
	}
	for _, line := range lines.Descending {
		assert.Equal(t, line.Direction, shared.Descending)
		assert.GreaterThan(t, line.Start.Price, line.End.Price)
	}

	// Ensure the best ascending line runs through every bottom.
	best := lines.Ascending[0]
	assert.Equal(t, best.TouchCount, 3)
	assert.Equal(t, best.Start.Price, float64(100))
	assert.Equal(t, best.End.Price, float64(120))
	for idx := 1; idx < len(lines.Ascending); idx++ {
		assert.True(t, lines.Ascending[idx-1].Score >= lines.Ascending[idx].Score)
	}

	// Ensure score combines touches, capped length and the recency bonus.
	assert.True(t, approxEqual(best.Score, 3*25+20*0.1+50))
}

func TestDiagonalLinesRejections(t *testing.T) {
	cfg := DefaultLineConfig()

	// Ensure level pairs are rejected by the minimum angle.
	flat := DiagonalLines(shared.Fractals{
		Bottoms: []shared.FractalPoint{point(0, 100, shared.Bottom), point(10, 100, shared.Bottom)},
	}, cfg)
	assert.Equal(t, len(flat.Ascending), 0)
	assert.Equal(t, len(flat.Descending), 0)

	// Ensure steep pairs are rejected by the maximum angle.
	steep := DiagonalLines(shared.Fractals{
		Peaks: []shared.FractalPoint{point(0, 100, shared.Peak), point(1, 200, shared.Peak)},
	}, cfg)
	assert.Equal(t, len(steep.Ascending), 0)

	// Ensure pairs below the minimum touches are rejected.
	strict := cfg
	strict.MinTouches = 3
	sparse := DiagonalLines(shared.Fractals{
		Bottoms: []shared.FractalPoint{point(0, 100, shared.Bottom), point(10, 110, shared.Bottom)},
	}, strict)
	assert.Equal(t, len(sparse.Ascending), 0)

	// Ensure empty input yields empty output.
	empty := DiagonalLines(shared.Fractals{}, cfg)
	assert.True(t, empty.Ascending != nil)
	assert.Equal(t, len(empty.Ascending), 0)
}

func TestDiagonalAngleBounds(t *testing.T) {
	cfg := DefaultLineConfig()
	rng := rand.New(rand.NewSource(11))

	for range 10 {
		var fractals shared.Fractals
		for idx := range 80 {
			p := point(int64(idx*3), 100+rng.Float64()*40, shared.Peak)
			if idx%2 == 0 {
				p.Kind = shared.Bottom
				fractals.Bottoms = append(fractals.Bottoms, p)
				continue
			}
			fractals.Peaks = append(fractals.Peaks, p)
		}

		lines := DiagonalLines(fractals, cfg)

		// Ensure every returned line respects the angle bounds.
		for _, line := range append(lines.Ascending, lines.Descending...) {
			if line.AngleDegrees < cfg.MinAngleDegrees || line.AngleDegrees > cfg.MaxAngleDegrees {
				t.Fatalf("line angle %f outside bounds", line.AngleDegrees)
			}
			if line.TouchCount < cfg.MinTouches {
				t.Fatalf("line touches %d below minimum", line.TouchCount)
			}
		}

		// Ensure only the most recent points are considered.
		merged := mergePoints(fractals, cfg.MaxPoints)
		assert.Equal(t, len(merged), cfg.MaxPoints)
		for _, line := range append(lines.Ascending, lines.Descending...) {
			assert.True(t, line.Start.Time >= merged[0].Time)
		}
	}
}

// uptrend creates a monotonic uptrend with periodic pullbacks in the lows.
func uptrend(n int) []shared.Bar {
	bars := make([]shared.Bar, 0, n)
	for idx := range n {
		high := 100 + float64(idx)
		low := high - 1
		if idx%10 == 5 {
			low = high - 5
		}

		bars = append(bars, shared.Bar{
			Time:   1700000000 + int64(idx)*hour,
			Open:   low + 0.5,
			High:   high,
			Low:    low,
			Close:  high - 0.5,
			Volume: 100,
		})
	}

	return bars
}

func TestUptrendLines(t *testing.T) {
	bars := uptrend(200)

	fractals := DetectFractals(bars, 3)
	assert.Equal(t, len(fractals.Peaks), 0)
	assert.Equal(t, len(fractals.Bottoms), 20)

	synth, err := NewSynthesizer(DefaultLineConfig())
	assert.NoError(t, err)

	// Ensure a monotonic uptrend yields ascending lines only.
	diagonal := synth.Diagonal(fractals)
	assert.GreaterThan(t, len(diagonal.Ascending), 0)
	assert.Equal(t, len(diagonal.Descending), 0)
	for _, line := range diagonal.Ascending {
		assert.GreaterThan(t, line.Slope, 0.0)
	}

	horizontal := synth.Horizontal(fractals, bars[len(bars)-1].Time)
	assert.Equal(t, len(horizontal.Resistance), 0)
}

func TestNewSynthesizer(t *testing.T) {
	// Ensure invalid parameters are rejected.
	cfg := DefaultLineConfig()
	cfg.TolerancePercent = 0
	_, err := NewSynthesizer(cfg)
	assert.Error(t, err)

	cfg = DefaultLineConfig()
	cfg.MinAngleDegrees = 70
	_, err = NewSynthesizer(cfg)
	assert.Error(t, err)

	cfg = DefaultLineConfig()
	cfg.MaxLines = 0
	_, err = NewSynthesizer(cfg)
	assert.Error(t, err)

	_, err = NewSynthesizer(DefaultLineConfig())
	assert.NoError(t, err)
}
