package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/dnldd/mtbridge/shared"
	"github.com/dnldd/mtbridge/terminal"
	"github.com/dnldd/mtbridge/tier"
	"github.com/gin-gonic/gin"
)

const (
	// DefaultBars is the default number of bars requested for indicators.
	DefaultBars = 1000
	// MinBars is the minimum number of bars requested for indicators.
	MinBars = 100
	// MaxBars is the maximum number of bars requested for indicators.
	MaxBars = 5000
)

// failure builds an unsuccessful response body.
func failure(message string) gin.H {
	return gin.H{"success": false, "error": message}
}

// clamp bounds the provided value to [low, high].
func clamp(value int, low int, high int) int {
	return min(max(value, low), high)
}

// requestTier returns the tier named by the request tier header.
func requestTier(c *gin.Context) tier.Tier {
	return tier.Parse(c.GetHeader(TierHeader))
}

// metadata describes the request an indicator response answers.
type metadata struct {
	Symbol       string `json:"symbol"`
	Timeframe    string `json:"timeframe"`
	Tier         string `json:"tier"`
	BarsReturned int    `json:"bars_returned"`
	TerminalID   string `json:"terminal_id"`
}

// indicatorData is the indicator response payload.
type indicatorData struct {
	OHLC       []shared.Bar           `json:"ohlc"`
	Horizontal shared.HorizontalLines `json:"horizontal"`
	Diagonal   shared.DiagonalLines   `json:"diagonal"`
	Fractals   shared.Fractals        `json:"fractals"`
	Metadata   metadata               `json:"metadata"`
}

// getHealth reports the aggregate terminal health.
func (s *Server) getHealth(c *gin.Context) {
	summary := s.cfg.Pool.HealthSummary(c.Request.Context())

	status := http.StatusOK
	if summary.Status == terminal.StatusError {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, summary)
}

// getSymbols lists the symbols accessible to the request tier.
func (s *Server) getSymbols(c *gin.Context) {
	t := requestTier(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tier":    t,
		"symbols": t.Symbols(),
	})
}

// getTimeframes lists the timeframes accessible to the request tier.
func (s *Server) getTimeframes(c *gin.Context) {
	t := requestTier(c)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"tier":       t,
		"timeframes": t.Timeframes(),
	})
}

// getIndicators serves the bars, fractals and lines for a symbol and timeframe.
func (s *Server) getIndicators(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	timeframe := strings.ToUpper(c.Param("timeframe"))
	t := requestTier(c)

	bars, err := strconv.Atoi(c.DefaultQuery("bars", strconv.Itoa(DefaultBars)))
	if err != nil {
		c.JSON(http.StatusBadRequest, failure(fmt.Sprintf("invalid bars parameter %q", c.Query("bars"))))
		return
	}
	bars = clamp(bars, MinBars, MaxBars)

	err = t.ValidateChart(symbol, timeframe)
	if err != nil {
		body := gin.H{
			"success":          false,
			"error":            err.Error(),
			"tier":             t,
			"upgrade_required": true,
		}
		if symbols := t.Symbols(); !slices.Contains(symbols, symbol) {
			body["accessible_symbols"] = symbols
		}
		if timeframes := t.Timeframes(); !slices.Contains(timeframes, timeframe) {
			body["accessible_timeframes"] = timeframes
		}

		c.JSON(http.StatusForbidden, body)
		return
	}

	result, err := s.cfg.Reader.Read(c.Request.Context(), symbol, timeframe, bars)
	if err != nil {
		s.logger.Error().Msgf("reading indicators for %s/%s: %v", symbol, timeframe, err)

		switch {
		case errors.Is(err, shared.ErrSymbolNotConfigured):
			c.JSON(http.StatusInternalServerError,
				failure(fmt.Sprintf("No MT5 terminal configured for symbol %s", symbol)))
		case errors.Is(err, shared.ErrTerminalUnavailable):
			c.JSON(http.StatusServiceUnavailable,
				failure(fmt.Sprintf("MT5 terminal for %s is disconnected", symbol)))
		case errors.Is(err, shared.ErrInvalidTimeframe):
			c.JSON(http.StatusBadRequest, failure(err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, failure("Failed to retrieve indicator data"))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": indicatorData{
			OHLC:       result.Bars,
			Horizontal: result.Horizontal,
			Diagonal:   result.Diagonal,
			Fractals:   result.Fractals,
			Metadata: metadata{
				Symbol:       symbol,
				Timeframe:    timeframe,
				Tier:         string(t),
				BarsReturned: len(result.Bars),
				TerminalID:   result.TerminalID,
			},
		},
	})
}
