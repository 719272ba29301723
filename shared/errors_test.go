package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestDataFetchError(t *testing.T) {
	// Ensure data fetch errors unwrap to their cause.
	err := fmt.Errorf("reading: %w", &DataFetchError{
		Symbol:    "XAUUSD",
		Timeframe: "H1",
		Err:       ErrNoData,
	})
	assert.True(t, errors.Is(err, ErrNoData))
	assert.False(t, errors.Is(err, ErrInsufficientData))

	var fetchErr *DataFetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, fetchErr.Symbol, "XAUUSD")
	assert.Equal(t, fetchErr.Error(), "fetching XAUUSD H1 data: no data returned")
}
