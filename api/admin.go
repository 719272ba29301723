package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dnldd/mtbridge/shared"
	"github.com/gin-gonic/gin"
)

const (
	// DefaultLogLines is the default number of journal entries returned.
	DefaultLogLines = 100
	// MaxLogLines is the maximum number of journal entries returned.
	MaxLogLines = 1000
)

// getTerminalsHealth reports the detailed health of every terminal.
func (s *Server) getTerminalsHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Pool.AdminHealthSummary(c.Request.Context()))
}

// restartTerminal reconnects the terminal named by the id path parameter.
func (s *Server) restartTerminal(c *gin.Context) {
	id := c.Param("id")

	result, err := s.cfg.Pool.Restart(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrTerminalNotFound) {
			c.JSON(http.StatusNotFound, failure(fmt.Sprintf("Terminal %s not found", id)))
			return
		}

		c.JSON(http.StatusInternalServerError, failure(fmt.Sprintf("Failed to restart terminal: %v", err)))
		return
	}

	if !result.Success {
		message := result.Error
		if message == "" {
			message = "Restart failed"
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"success":     false,
			"error":       message,
			"terminal_id": result.TerminalID,
			"symbol":      result.Symbol,
			"connected":   false,
		})
		return
	}

	s.logger.Info().Msgf("admin restarted terminal %s", id)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Terminal %s restarted successfully", id),
		"terminal_id": result.TerminalID,
		"symbol":      result.Symbol,
		"connected":   true,
	})
}

// restartAllTerminals reconnects every terminal.
func (s *Server) restartAllTerminals(c *gin.Context) {
	s.logger.Warn().Msg("admin initiated restart of all terminals")
	c.JSON(http.StatusOK, s.cfg.Pool.RestartAll(c.Request.Context()))
}

// getTerminalLogs returns the most recent journal entries of a terminal.
// Unparseable line counts fall back to the default.
func (s *Server) getTerminalLogs(c *gin.Context) {
	id := c.Param("id")

	conn, err := s.cfg.Pool.LookupByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, failure(fmt.Sprintf("Terminal %s not found", id)))
		return
	}

	lines, err := strconv.Atoi(c.Query("lines"))
	if err != nil {
		lines = DefaultLogLines
	}
	lines = clamp(lines, 1, MaxLogLines)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"terminal_id": conn.ID(),
		"symbol":      conn.Symbol(),
		"logs":        conn.Journal().LastN(int32(lines)),
	})
}

// getTerminalStats reports session reconnect statistics.
func (s *Server) getTerminalStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Pool.Stats())
}
