package shared

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Bar represents a single OHLCV sample for a fixed time period.
type Bar struct {
	// Time is the bar open time in seconds since epoch.
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume uint64  `json:"volume"`
}

// Timestamp returns the bar time as a UTC time.
func (b *Bar) Timestamp() time.Time {
	return time.Unix(b.Time, 0).UTC()
}

// ParseBars parses bars from the provided json data.
//
// The volume is read from "tick_volume" when present and "volume" otherwise.
func ParseBars(data []gjson.Result) ([]Bar, error) {
	bars := make([]Bar, 0, len(data))
	for idx := range data {
		entry := data[idx]
		if !entry.Get("time").Exists() {
			return nil, fmt.Errorf("bar at index %d has no time", idx)
		}

		bar := Bar{
			Time:  entry.Get("time").Int(),
			Open:  entry.Get("open").Float(),
			High:  entry.Get("high").Float(),
			Low:   entry.Get("low").Float(),
			Close: entry.Get("close").Float(),
		}

		volume := entry.Get("tick_volume")
		if !volume.Exists() {
			volume = entry.Get("volume")
		}
		bar.Volume = volume.Uint()

		if bar.High < bar.Low {
			return nil, fmt.Errorf("bar at %d has high %f below low %f", bar.Time, bar.High, bar.Low)
		}

		bars = append(bars, bar)
	}

	return bars, nil
}
