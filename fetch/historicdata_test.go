package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnldd/mtbridge/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func TestHistoricData(t *testing.T) {
	ctx := context.Background()

	// Ensure historic data requires a file path.
	_, err := NewHistoricData(&HistoricDataConfig{Logger: &log.Logger})
	assert.Error(t, err)

	// Ensure missing files are reported.
	_, err = NewHistoricData(&HistoricDataConfig{FilePath: "../testdata/missing.json", Logger: &log.Logger})
	assert.Error(t, err)

	// Ensure historic data can be loaded from json.
	historicData, err := NewHistoricData(&HistoricDataConfig{
		FilePath: "../testdata/historicdata.json",
		Logger:   &log.Logger,
	})
	assert.NoError(t, err)
	assert.Equal(t, len(historicData.Bars("XAUUSD", shared.H1)), 12)
	assert.Equal(t, len(historicData.Bars("EURUSD", shared.H4)), 2)
	assert.Equal(t, len(historicData.Bars("EURUSD", shared.H1)), 0)

	term := historicData.NewTerminal()

	// Ensure a simulated terminal must be logged in before serving data.
	_, err = term.CopyRates(ctx, "XAUUSD", shared.H1, 5)
	assert.Error(t, err)
	info, err := term.AccountInfo(ctx)
	assert.NoError(t, err)
	assert.True(t, info == nil)

	err = term.Login(ctx, shared.Credentials{Server: "s", Login: 7})
	assert.Error(t, err)

	assert.NoError(t, term.Initialize(ctx))
	assert.NoError(t, term.Login(ctx, shared.Credentials{Server: "s", Login: 7}))

	info, err = term.AccountInfo(ctx)
	assert.NoError(t, err)
	assert.Equal(t, info.Login, uint64(7))

	// Ensure the most recent bars are served.
	bars, err := term.CopyRates(ctx, "XAUUSD", shared.H1, 5)
	assert.NoError(t, err)
	assert.Equal(t, len(bars), 5)
	assert.Equal(t, bars[4].Time, int64(1700000000+11*3600))

	bars, err = term.CopyRates(ctx, "XAUUSD", shared.H1, 500)
	assert.NoError(t, err)
	assert.Equal(t, len(bars), 12)

	// Ensure a shut down terminal stops serving data.
	assert.NoError(t, term.Shutdown(ctx))
	_, err = term.CopyRates(ctx, "XAUUSD", shared.H1, 5)
	assert.Error(t, err)
}

func TestHistoricDataCSV(t *testing.T) {
	// Ensure historic data can be loaded from csv and is ordered oldest first.
	historicData, err := NewHistoricData(&HistoricDataConfig{
		FilePath: "../testdata/historicdata.csv",
		Logger:   &log.Logger,
	})
	assert.NoError(t, err)

	bars := historicData.Bars("BTCUSD", shared.D1)
	assert.Equal(t, len(bars), 5)
	for idx := 1; idx < len(bars); idx++ {
		assert.GreaterThan(t, bars[idx].Time, bars[idx-1].Time)
	}
	assert.Equal(t, bars[0].Volume, uint64(14))

	// Ensure unsupported timeframes in historic data are rejected.
	path := filepath.Join(t.TempDir(), "bad.csv")
	err = os.WriteFile(path, []byte("symbol,timeframe,time,open,high,low,close,volume\nBTCUSD,W1,1,1,1,1,1,1\n"), 0o600)
	assert.NoError(t, err)
	_, err = NewHistoricData(&HistoricDataConfig{FilePath: path, Logger: &log.Logger})
	assert.Error(t, err)
}
