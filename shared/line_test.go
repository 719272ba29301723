package shared

import (
	"encoding/json"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestDirectionString(t *testing.T) {
	assert.Equal(t, Ascending.String(), "ascending")
	assert.Equal(t, Descending.String(), "descending")
	assert.Equal(t, Direction(5).String(), "unknown")
}

func TestFractalKindString(t *testing.T) {
	assert.Equal(t, Peak.String(), "peak")
	assert.Equal(t, Bottom.String(), "bottom")
	assert.Equal(t, FractalKind(5).String(), "unknown")
}

func TestDiagonalLineJSON(t *testing.T) {
	// Ensure diagonal lines encode their direction as an upper case label.
	line := DiagonalLine{
		Start:        LinePoint{Time: 0, Price: 100},
		End:          LinePoint{Time: 3600, Price: 101},
		Slope:        1.0 / 3600,
		AngleDegrees: 5.7,
		TouchCount:   2,
		Score:        50.1,
		Direction:    Ascending,
	}

	b, err := json.Marshal(line)
	assert.NoError(t, err)

	var decoded map[string]any
	err = json.Unmarshal(b, &decoded)
	assert.NoError(t, err)
	assert.Equal(t, decoded["direction"], any("ASCENDING"))
	assert.Equal(t, decoded["touches"], any(float64(2)))
}
