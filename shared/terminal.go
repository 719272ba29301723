package shared

import (
	"context"
)

// Credentials represents the login details for a terminal.
type Credentials struct {
	Server   string
	Login    uint64
	Password string
}

// AccountInfo represents the account details reported by a terminal.
type AccountInfo struct {
	Login    uint64
	Server   string
	Balance  float64
	Currency string
}

// Terminal defines the requirements for an external market data terminal.
//
// Implementations are not required to be safe for concurrent use.
type Terminal interface {
	// Initialize prepares the terminal for use.
	Initialize(ctx context.Context) error
	// Login authenticates the terminal session.
	Login(ctx context.Context, creds Credentials) error
	// AccountInfo returns the active account, used as a liveness probe.
	AccountInfo(ctx context.Context) (*AccountInfo, error)
	// CopyRates returns up to count most recent bars ending at the current time.
	CopyRates(ctx context.Context, symbol string, timeframe Timeframe, count int) ([]Bar, error)
	// Shutdown releases the terminal session.
	Shutdown(ctx context.Context) error
}
