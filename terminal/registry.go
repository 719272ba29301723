package terminal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/mtbridge/shared"
	"github.com/rs/zerolog"
)

const (
	// Version is the reported service version.
	Version = "v5.0.0"
	// maxProblematic is the number of terminals reported as most problematic.
	maxProblematic = 5
)

// Health status labels.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// RegistryConfig represents the configuration for the connection registry.
type RegistryConfig struct {
	// Records are the configured terminals.
	Records []Record
	// NewTerminal creates the external terminal handle for a record.
	NewTerminal func(rec Record) (shared.Terminal, error)
	// CallTimeout is the deadline for a single terminal call.
	CallTimeout time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *RegistryConfig) Validate() error {
	var errs error

	if len(cfg.Records) == 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: no terminals provided for registry", shared.ErrInvalidConfig))
	}
	if cfg.NewTerminal == nil {
		errs = errors.Join(errs, fmt.Errorf("new terminal function cannot be nil"))
	}
	if cfg.CallTimeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("call timeout cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// HealthSummary represents the aggregate health of all terminals.
type HealthSummary struct {
	Status             string            `json:"status"`
	Version            string            `json:"version"`
	TotalTerminals     int               `json:"total_terminals"`
	ConnectedTerminals int               `json:"connected_terminals"`
	Terminals          map[string]Status `json:"terminals"`
}

// AdminHealthSummary represents the detailed aggregate health of all terminals.
type AdminHealthSummary struct {
	Status             string                 `json:"status"`
	Version            string                 `json:"version"`
	TotalTerminals     int                    `json:"total_terminals"`
	ConnectedTerminals int                    `json:"connected_terminals"`
	Terminals          map[string]AdminStatus `json:"terminals"`
}

// RestartResult represents the outcome of restarting a terminal.
type RestartResult struct {
	TerminalID string `json:"terminal_id"`
	Symbol     string `json:"symbol"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// RestartAllResult represents the outcome of restarting every terminal.
type RestartAllResult struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Total      int             `json:"total_terminals"`
	Successful int             `json:"successful_restarts"`
	Failed     int             `json:"failed_restarts"`
	Results    []RestartResult `json:"results"`
}

// ProblematicTerminal represents a terminal ranked by reconnect attempts.
type ProblematicTerminal struct {
	TerminalID     string `json:"terminal_id"`
	Symbol         string `json:"symbol"`
	ReconnectCount uint32 `json:"reconnect_count"`
	Connected      bool   `json:"connected"`
}

// Stats represents aggregate registry statistics.
type Stats struct {
	TotalTerminals    int                   `json:"total_terminals"`
	TotalReconnects   uint64                `json:"total_reconnects_session"`
	TerminalsByStatus map[string]int        `json:"terminals_by_status"`
	MostProblematic   []ProblematicTerminal `json:"most_problematic_terminals"`
}

// Registry owns the terminal connections, indexed by terminal id and symbol.
//
// The indexes are built once and never mutated, lookups need no locking.
type Registry struct {
	cfg         *RegistryConfig
	connections []*Connection
	byID        map[string]*Connection
	bySymbol    map[string]*Connection
	logger      *zerolog.Logger
}

// NewRegistry initializes a new connection registry.
func NewRegistry(cfg *RegistryConfig) (*Registry, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating registry config: %w", err)
	}

	r := &Registry{
		cfg:         cfg,
		connections: make([]*Connection, 0, len(cfg.Records)),
		byID:        make(map[string]*Connection, len(cfg.Records)),
		bySymbol:    make(map[string]*Connection, len(cfg.Records)),
		logger:      cfg.Logger,
	}

	for _, rec := range cfg.Records {
		if _, ok := r.byID[rec.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate terminal id %q", shared.ErrInvalidConfig, rec.ID)
		}
		if _, ok := r.bySymbol[rec.Symbol]; ok {
			return nil, fmt.Errorf("%w: duplicate terminal symbol %q", shared.ErrInvalidConfig, rec.Symbol)
		}

		term, err := cfg.NewTerminal(rec)
		if err != nil {
			return nil, fmt.Errorf("creating terminal %s: %w", rec.ID, err)
		}

		conn, err := NewConnection(&ConnectionConfig{
			Record:      rec,
			Terminal:    term,
			CallTimeout: cfg.CallTimeout,
			Logger:      cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating connection %s: %w", rec.ID, err)
		}

		r.connections = append(r.connections, conn)
		r.byID[rec.ID] = conn
		r.bySymbol[rec.Symbol] = conn
	}

	r.logger.Info().Msgf("loaded configuration for %d terminals", len(r.connections))

	return r, nil
}

// Len returns the number of configured terminals.
func (r *Registry) Len() int {
	return len(r.connections)
}

// Symbols returns the configured symbols in configuration order.
func (r *Registry) Symbols() []string {
	symbols := make([]string, 0, len(r.connections))
	for _, conn := range r.connections {
		symbols = append(symbols, conn.Symbol())
	}

	return symbols
}

// each runs the provided function against every connection concurrently.
func (r *Registry) each(fn func(idx int, conn *Connection)) {
	var wg sync.WaitGroup
	wg.Add(len(r.connections))
	for idx, conn := range r.connections {
		go func(idx int, conn *Connection) {
			defer wg.Done()
			fn(idx, conn)
		}(idx, conn)
	}
	wg.Wait()
}

// ConnectAll connects every terminal, returning the number of successful connections.
func (r *Registry) ConnectAll(ctx context.Context) int {
	r.logger.Info().Msg("connecting to all terminals")

	outcomes := make([]bool, len(r.connections))
	r.each(func(idx int, conn *Connection) {
		outcomes[idx] = conn.Connect(ctx)
	})

	var connected int
	for _, ok := range outcomes {
		if ok {
			connected++
		}
	}

	r.logger.Info().Msgf("connected to %d/%d terminals", connected, len(r.connections))

	return connected
}

// DisconnectAll disconnects every terminal.
func (r *Registry) DisconnectAll(ctx context.Context) {
	r.logger.Info().Msg("disconnecting from all terminals")

	r.each(func(_ int, conn *Connection) {
		conn.Disconnect(ctx)
	})

	r.logger.Info().Msg("all terminals disconnected")
}

// LookupBySymbol returns the connection serving the provided symbol.
//
// A connection that is not connected is reconnected at most once before it is
// returned, a lookup waiting on an in flight reconnect takes its outcome. Unknown symbols return shared.ErrSymbolNotConfigured with no side effects.
func (r *Registry) LookupBySymbol(ctx context.Context, symbol string) (*Connection, error) {
	conn, ok := r.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSymbolNotConfigured, symbol)
	}

	if conn.State() != Connected {
		r.logger.Warn().Msgf("terminal for %s is %s, attempting reconnect", symbol, conn.State())
		conn.EnsureConnected(ctx)
	}

	return conn, nil
}

// LookupByID returns the connection with the provided terminal id.
func (r *Registry) LookupByID(id string) (*Connection, error) {
	conn, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTerminalNotFound, id)
	}

	return conn, nil
}

// aggregateStatus derives the overall health label from connection counts.
func aggregateStatus(connected int, total int) string {
	switch {
	case connected == 0:
		return StatusError
	case connected < total:
		return StatusDegraded
	default:
		return StatusOK
	}
}

// HealthSummary checks the liveness of every terminal and aggregates the results.
func (r *Registry) HealthSummary(ctx context.Context) HealthSummary {
	statuses := make([]Status, len(r.connections))
	r.each(func(idx int, conn *Connection) {
		conn.CheckLiveness(ctx)
		statuses[idx] = conn.Status()
	})

	summary := HealthSummary{
		Version:        Version,
		TotalTerminals: len(r.connections),
		Terminals:      make(map[string]Status, len(statuses)),
	}
	for _, status := range statuses {
		if status.Connected {
			summary.ConnectedTerminals++
		}
		summary.Terminals[status.Symbol] = status
	}
	summary.Status = aggregateStatus(summary.ConnectedTerminals, summary.TotalTerminals)

	return summary
}

// AdminHealthSummary checks the liveness of every terminal and aggregates detailed results.
func (r *Registry) AdminHealthSummary(ctx context.Context) AdminHealthSummary {
	statuses := make([]AdminStatus, len(r.connections))
	r.each(func(idx int, conn *Connection) {
		conn.CheckLiveness(ctx)
		statuses[idx] = conn.AdminStatus()
	})

	summary := AdminHealthSummary{
		Version:        Version,
		TotalTerminals: len(r.connections),
		Terminals:      make(map[string]AdminStatus, len(statuses)),
	}
	for _, status := range statuses {
		if status.Connected {
			summary.ConnectedTerminals++
		}
		summary.Terminals[status.Symbol] = status
	}
	summary.Status = aggregateStatus(summary.ConnectedTerminals, summary.TotalTerminals)

	return summary
}

// AutoReconnectFailed reconnects every terminal that is not connected, returning
// the ids of the terminals that became connected.
func (r *Registry) AutoReconnectFailed(ctx context.Context) []string {
	reconnected := make([]bool, len(r.connections))
	r.each(func(idx int, conn *Connection) {
		if conn.State() == Connected {
			return
		}

		r.logger.Info().Msgf("auto-reconnecting %s (%s)", conn.ID(), conn.Symbol())
		reconnected[idx] = conn.Reconnect(ctx)
		if !reconnected[idx] {
			r.logger.Debug().Msgf("auto-reconnect failed: %s", spew.Sdump(conn.AdminStatus()))
		}
	})

	ids := make([]string, 0)
	for idx, ok := range reconnected {
		if ok {
			ids = append(ids, r.connections[idx].ID())
		}
	}

	return ids
}

// restartResult reconnects the provided connection and reports the outcome.
func restartResult(ctx context.Context, conn *Connection) RestartResult {
	result := RestartResult{
		TerminalID: conn.ID(),
		Symbol:     conn.Symbol(),
		Success:    conn.Reconnect(ctx),
	}
	if !result.Success {
		result.Error = conn.Status().Error
	}

	return result
}

// Restart reconnects the terminal with the provided id.
func (r *Registry) Restart(ctx context.Context, id string) (RestartResult, error) {
	conn, err := r.LookupByID(id)
	if err != nil {
		return RestartResult{TerminalID: id, Error: err.Error()}, err
	}

	result := restartResult(ctx, conn)
	r.logger.Info().Msgf("restart of %s (%s) succeeded: %v", result.TerminalID, result.Symbol, result.Success)

	return result, nil
}

// RestartAll reconnects every terminal, reporting independent per terminal outcomes.
func (r *Registry) RestartAll(ctx context.Context) RestartAllResult {
	results := make([]RestartResult, len(r.connections))
	r.each(func(idx int, conn *Connection) {
		results[idx] = restartResult(ctx, conn)
	})

	outcome := RestartAllResult{
		Total:   len(r.connections),
		Results: results,
	}
	for _, result := range results {
		if result.Success {
			outcome.Successful++
		} else {
			outcome.Failed++
		}
	}
	outcome.Success = outcome.Failed == 0
	outcome.Message = fmt.Sprintf("Restarted %d/%d terminals", outcome.Successful, outcome.Total)

	r.logger.Info().Msg(outcome.Message)

	return outcome
}

// Stats returns aggregate statistics without probing the terminals.
func (r *Registry) Stats() Stats {
	stats := Stats{
		TotalTerminals: len(r.connections),
		TerminalsByStatus: map[string]int{
			Connected.String():    0,
			Disconnected.String(): 0,
			Failed.String():       0,
		},
	}

	problematic := make([]ProblematicTerminal, 0, len(r.connections))
	for _, conn := range r.connections {
		state := conn.State()
		count := conn.ReconnectCount()

		stats.TotalReconnects += uint64(count)
		stats.TerminalsByStatus[state.String()]++
		problematic = append(problematic, ProblematicTerminal{
			TerminalID:     conn.ID(),
			Symbol:         conn.Symbol(),
			ReconnectCount: count,
			Connected:      state == Connected,
		})
	}

	sort.SliceStable(problematic, func(i, j int) bool {
		if problematic[i].ReconnectCount != problematic[j].ReconnectCount {
			return problematic[i].ReconnectCount > problematic[j].ReconnectCount
		}
		return problematic[i].TerminalID < problematic[j].TerminalID
	})
	if len(problematic) > maxProblematic {
		problematic = problematic[:maxProblematic]
	}
	stats.MostProblematic = problematic

	return stats
}
