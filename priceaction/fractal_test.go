package priceaction

import (
	"testing"

	"github.com/dnldd/mtbridge/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
)

// barsFromHighs creates bars with the provided highs and lows one below them.
func barsFromHighs(highs []float64) []shared.Bar {
	bars := make([]shared.Bar, 0, len(highs))
	for idx, high := range highs {
		bars = append(bars, shared.Bar{
			Time:  int64(1700000000 + idx*3600),
			Open:  high - 0.5,
			High:  high,
			Low:   high - 1,
			Close: high - 0.5,
		})
	}

	return bars
}

func TestDetectFractals(t *testing.T) {
	tests := []struct {
		name     string
		bars     []shared.Bar
		sideBars int
		peaks    []int
		bottoms  []int
	}{
		{
			"equal highs, right side may tie",
			barsFromHighs([]float64{10, 12, 15, 15, 11}),
			2,
			[]int{2},
			[]int{},
		},
		{
			"equal highs, left side must be strict",
			barsFromHighs([]float64{10, 12, 15, 15, 11, 9}),
			2,
			[]int{2},
			[]int{},
		},
		{
			"single peak and bottom",
			barsFromHighs([]float64{10, 11, 14, 11, 10, 8, 6, 8, 9}),
			2,
			[]int{2},
			[]int{6},
		},
		{
			"outside bar is a peak only",
			[]shared.Bar{
				{Time: 1, High: 5, Low: 4},
				{Time: 2, High: 6, Low: 3},
				{Time: 3, High: 10, Low: 1},
				{Time: 4, High: 6, Low: 3},
				{Time: 5, High: 5, Low: 4},
			},
			2,
			[]int{2},
			[]int{},
		},
		{
			"flat series",
			barsFromHighs([]float64{5, 5, 5, 5, 5, 5, 5}),
			2,
			[]int{},
			[]int{},
		},
		{
			"monotonic series",
			barsFromHighs([]float64{1, 2, 3, 4, 5, 6, 7}),
			2,
			[]int{},
			[]int{},
		},
	}

	for _, test := range tests {
		fractals := DetectFractals(test.bars, test.sideBars)
		if fractals.Insufficient {
			t.Errorf("%s: unexpected insufficient flag", test.name)
		}

		peaks := make([]int, 0, len(fractals.Peaks))
		for _, p := range fractals.Peaks {
			peaks = append(peaks, p.BarIndex)
			if p.Value != test.bars[p.BarIndex].High || p.Time != test.bars[p.BarIndex].Time || p.Kind != shared.Peak {
				t.Errorf("%s: peak does not match its bar: %+v", test.name, p)
			}
		}
		bottoms := make([]int, 0, len(fractals.Bottoms))
		for _, b := range fractals.Bottoms {
			bottoms = append(bottoms, b.BarIndex)
			if b.Value != test.bars[b.BarIndex].Low || b.Kind != shared.Bottom {
				t.Errorf("%s: bottom does not match its bar: %+v", test.name, b)
			}
		}

		if !cmp.Equal(peaks, test.peaks) {
			t.Errorf("%s: unexpected peaks: %s", test.name, cmp.Diff(test.peaks, peaks))
		}
		if !cmp.Equal(bottoms, test.bottoms) {
			t.Errorf("%s: unexpected bottoms: %s", test.name, cmp.Diff(test.bottoms, bottoms))
		}
	}
}

func TestDetectFractalsInsufficient(t *testing.T) {
	// Ensure series shorter than the detection window yield no fractals.
	fractals := DetectFractals(barsFromHighs([]float64{10, 12, 15, 12}), 2)
	assert.True(t, fractals.Insufficient)
	assert.Equal(t, len(fractals.Peaks), 0)
	assert.Equal(t, len(fractals.Bottoms), 0)
	assert.True(t, fractals.Peaks != nil)
	assert.True(t, fractals.Bottoms != nil)

	fractals = DetectFractals(nil, DefaultSideBars)
	assert.True(t, fractals.Insufficient)

	// Ensure a non positive window yields no fractals.
	fractals = DetectFractals(barsFromHighs([]float64{10, 12, 15, 12, 10}), 0)
	assert.True(t, fractals.Insufficient)
	assert.Equal(t, len(fractals.Peaks), 0)
}

func TestDetectFractalsDeterministic(t *testing.T) {
	highs := make([]float64, 0, 300)
	for idx := range 300 {
		highs = append(highs, 100+float64((idx*37)%23)-float64((idx*11)%7))
	}
	bars := barsFromHighs(highs)

	// Ensure detection on identical input yields identical output.
	first := DetectFractals(bars, 3)
	for range 5 {
		next := DetectFractals(bars, 3)
		if !cmp.Equal(first, next) {
			t.Fatalf("detection is not deterministic: %s", cmp.Diff(first, next))
		}
	}

	// Ensure fractals are chronologically ordered.
	for idx := 1; idx < len(first.Peaks); idx++ {
		assert.GreaterThan(t, first.Peaks[idx].Time, first.Peaks[idx-1].Time)
	}
	for idx := 1; idx < len(first.Bottoms); idx++ {
		assert.GreaterThan(t, first.Bottoms[idx].Time, first.Bottoms[idx-1].Time)
	}
}
