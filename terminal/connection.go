package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dnldd/mtbridge/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// DefaultCallTimeout is the default deadline for a single terminal call.
	DefaultCallTimeout = time.Second * 10
)

// State represents the lifecycle state of a terminal connection.
type State int

const (
	Disconnected State = iota
	Connected
	Failed
)

// String stringifies the provided state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnectionConfig represents the configuration for a terminal connection.
type ConnectionConfig struct {
	// Record is the terminal record the connection serves.
	Record Record
	// Terminal is the external terminal handle.
	Terminal shared.Terminal
	// CallTimeout is the deadline for a single terminal call.
	CallTimeout time.Duration
	// JournalSize is the number of lifecycle events retained.
	JournalSize int32
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ConnectionConfig) Validate() error {
	var errs error

	if cfg.Record.ID == "" {
		errs = errors.Join(errs, fmt.Errorf("terminal id cannot be an empty string"))
	}
	if cfg.Record.Symbol == "" {
		errs = errors.Join(errs, fmt.Errorf("terminal symbol cannot be an empty string"))
	}
	if cfg.Terminal == nil {
		errs = errors.Join(errs, fmt.Errorf("terminal cannot be nil"))
	}
	if cfg.CallTimeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("call timeout cannot be negative"))
	}
	if cfg.JournalSize < 0 {
		errs = errors.Join(errs, fmt.Errorf("journal size cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Status represents a point in time view of a connection.
type Status struct {
	TerminalID string     `json:"terminal_id"`
	Symbol     string     `json:"symbol"`
	State      State      `json:"state"`
	Connected  bool       `json:"connected"`
	LastCheck  *time.Time `json:"last_check"`
	Error      string     `json:"error,omitempty"`
}

// AdminStatus represents a detailed view of a connection for operators.
type AdminStatus struct {
	Status
	ReconnectCount uint32 `json:"reconnect_count"`
	// LastError is the most recent failure, retained after recovery.
	LastError string `json:"last_error"`
}

// Connection represents a single symbol's terminal connection.
//
// The terminal is not safe for concurrent use, every call into it is issued
// while holding the connection lock.
type Connection struct {
	cfg *ConnectionConfig

	mtx sync.Mutex
	// pending closes when an abandoned timed out call returns, guarded by mtx.
	pending chan struct{}

	statusMtx   sync.RWMutex
	state       State
	lastCheck   time.Time
	lastError   string
	lastFailure string

	reconnectCount atomic.Uint32
	journal        *Journal
	logger         zerolog.Logger
}

// NewConnection initializes a new terminal connection.
func NewConnection(cfg *ConnectionConfig) (*Connection, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating connection config: %w", err)
	}

	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.JournalSize == 0 {
		cfg.JournalSize = JournalSize
	}

	journal, err := NewJournal(cfg.JournalSize)
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}

	conn := &Connection{
		cfg:     cfg,
		state:   Disconnected,
		journal: journal,
		logger: cfg.Logger.With().
			Str("terminal", cfg.Record.ID).
			Str("symbol", cfg.Record.Symbol).
			Logger(),
	}

	return conn, nil
}

// ID returns the terminal id.
func (c *Connection) ID() string {
	return c.cfg.Record.ID
}

// Symbol returns the symbol served by the terminal.
func (c *Connection) Symbol() string {
	return c.cfg.Record.Symbol
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.statusMtx.RLock()
	defer c.statusMtx.RUnlock()

	return c.state
}

// ReconnectCount returns the number of reconnects attempted.
func (c *Connection) ReconnectCount() uint32 {
	return c.reconnectCount.Load()
}

// Journal returns the connection's lifecycle journal.
func (c *Connection) Journal() *Journal {
	return c.journal
}

// Status returns a snapshot of the connection status.
//
// It does not wait on in flight terminal calls.
func (c *Connection) Status() Status {
	c.statusMtx.RLock()
	defer c.statusMtx.RUnlock()

	status := Status{
		TerminalID: c.cfg.Record.ID,
		Symbol:     c.cfg.Record.Symbol,
		State:      c.state,
		Connected:  c.state == Connected,
		Error:      c.lastError,
	}
	if !c.lastCheck.IsZero() {
		lastCheck := c.lastCheck
		status.LastCheck = &lastCheck
	}

	return status
}

// AdminStatus returns a detailed snapshot of the connection status.
func (c *Connection) AdminStatus() AdminStatus {
	status := c.Status()

	c.statusMtx.RLock()
	lastFailure := c.lastFailure
	c.statusMtx.RUnlock()

	return AdminStatus{
		Status:         status,
		ReconnectCount: c.reconnectCount.Load(),
		LastError:      lastFailure,
	}
}

// setConnected marks the connection connected and clears the current error.
func (c *Connection) setConnected(message string) {
	c.statusMtx.Lock()
	c.state = Connected
	c.lastError = ""
	c.lastCheck = time.Now().UTC()
	c.statusMtx.Unlock()

	c.journal.Record(zerolog.InfoLevel, message)
}

// setFailed marks the connection failed and records the provided error.
func (c *Connection) setFailed(err error) {
	c.statusMtx.Lock()
	c.state = Failed
	c.lastError = err.Error()
	c.lastFailure = err.Error()
	c.lastCheck = time.Now().UTC()
	c.statusMtx.Unlock()

	c.journal.Record(zerolog.ErrorLevel, err.Error())
	c.logger.Error().Msgf("%v", err)
}

// setDisconnected marks the connection disconnected.
func (c *Connection) setDisconnected() {
	c.statusMtx.Lock()
	c.state = Disconnected
	c.statusMtx.Unlock()

	c.journal.Record(zerolog.InfoLevel, "disconnected")
}

// abandon tracks a call whose caller stopped waiting until it returns.
// The caller must hold the connection lock.
func (c *Connection) abandon(done <-chan error, cancel context.CancelFunc) {
	pending := make(chan struct{})
	c.pending = pending
	go func() {
		<-done
		cancel()
		close(pending)
	}()
}

// invoke issues a terminal call bounded by the configured call timeout.
//
// The call is detached from the caller's cancellation: a caller that stops
// waiting gets shared.ErrCallAbandoned while the call keeps running. Calls that
// are abandoned or exceed their deadline still occupy the terminal, subsequent
// calls wait for them to return first. The caller must hold the connection lock.
func (c *Connection) invoke(ctx context.Context, name string, call func(ctx context.Context) error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %w", name, shared.ErrCallAbandoned, ctx.Err())
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)

	if c.pending != nil {
		select {
		case <-c.pending:
			c.pending = nil
		case <-callCtx.Done():
			cancel()
			return fmt.Errorf("%s: %w: terminal still busy with an abandoned call", name, shared.ErrTerminalTimeout)
		case <-ctx.Done():
			cancel()
			return fmt.Errorf("%s: %w: %w", name, shared.ErrCallAbandoned, ctx.Err())
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- call(callCtx)
	}()

	select {
	case err := <-done:
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil

	case <-callCtx.Done():
		c.abandon(done, cancel)
		return fmt.Errorf("%s: %w after %s", name, shared.ErrTerminalTimeout, c.cfg.CallTimeout)

	case <-ctx.Done():
		c.abandon(done, cancel)
		return fmt.Errorf("%s: %w: %w", name, shared.ErrCallAbandoned, ctx.Err())
	}
}

// abandoned reports whether the provided call error stems from the caller
// giving up. Such errors say nothing about the terminal and leave the state untouched.
func (c *Connection) abandoned(err error) bool {
	if !errors.Is(err, shared.ErrCallAbandoned) {
		return false
	}

	c.journal.Record(zerolog.WarnLevel, err.Error())
	c.logger.Warn().Msgf("%v", err)

	return true
}

// connect initializes and logs into the terminal. The caller must hold the connection lock.
func (c *Connection) connect(ctx context.Context) bool {
	term := c.cfg.Terminal

	err := c.invoke(ctx, "initialize", term.Initialize)
	if err != nil {
		if c.abandoned(err) {
			return false
		}
		c.setFailed(fmt.Errorf("initializing terminal %s: %w", c.cfg.Record.ID, err))
		return false
	}

	err = c.invoke(ctx, "login", func(ctx context.Context) error {
		return term.Login(ctx, c.cfg.Record.Credentials)
	})
	if err != nil {
		// Release the initialized session before reporting the failure.
		serr := c.invoke(context.WithoutCancel(ctx), "shutdown", term.Shutdown)
		if serr != nil {
			c.logger.Warn().Msgf("releasing terminal after failed login: %v", serr)
		}

		if c.abandoned(err) {
			return false
		}
		c.setFailed(fmt.Errorf("logging into terminal %s: %w", c.cfg.Record.ID, err))
		return false
	}

	c.setConnected("connected")
	c.logger.Info().Msgf("connected to %s", c.cfg.Record.Credentials.Server)

	return true
}

// disconnect shuts the terminal down. The caller must hold the connection lock.
func (c *Connection) disconnect(ctx context.Context) {
	if c.State() == Disconnected {
		return
	}

	err := c.invoke(ctx, "shutdown", c.cfg.Terminal.Shutdown)
	if err != nil {
		c.journal.Record(zerolog.WarnLevel, fmt.Sprintf("shutting down terminal: %v", err))
		c.logger.Warn().Msgf("shutting down terminal: %v", err)
	}

	c.setDisconnected()
	c.logger.Info().Msg("disconnected")
}

// Connect initializes and logs into the terminal.
//
// Failures are recorded in the connection state rather than returned.
func (c *Connection) Connect(ctx context.Context) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.connect(ctx)
}

// Disconnect shuts the terminal down. It is idempotent.
func (c *Connection) Disconnect(ctx context.Context) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.disconnect(ctx)
}

// reconnect disconnects and connects the terminal. The caller must hold the connection lock.
func (c *Connection) reconnect(ctx context.Context) bool {
	c.logger.Info().Msg("reconnecting")
	c.journal.Record(zerolog.InfoLevel, "reconnecting")

	c.disconnect(ctx)
	connected := c.connect(ctx)
	c.reconnectCount.Add(1)

	return connected
}

// Reconnect disconnects and connects the terminal, counting every attempt.
func (c *Connection) Reconnect(ctx context.Context) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.reconnect(ctx)
}

// EnsureConnected reconnects the terminal once if it is not connected.
//
// A caller that waited on a reconnect completing in the meantime takes that
// outcome instead of issuing another reconnect.
func (c *Connection) EnsureConnected(ctx context.Context) bool {
	attempts := c.reconnectCount.Load()

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.State() == Connected {
		return true
	}
	if c.reconnectCount.Load() != attempts {
		return false
	}

	return c.reconnect(ctx)
}

// CheckLiveness probes the terminal with an account query.
func (c *Connection) CheckLiveness(ctx context.Context) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	var info *shared.AccountInfo
	err := c.invoke(ctx, "account info", func(ctx context.Context) error {
		var err error
		info, err = c.cfg.Terminal.AccountInfo(ctx)
		return err
	})
	if err == nil && info == nil {
		err = errors.New("account info returned nothing")
	}
	if err != nil {
		if c.abandoned(err) {
			return c.State() == Connected
		}
		c.setFailed(fmt.Errorf("connection lost: %w", err))
		return false
	}

	if c.State() != Connected {
		c.setConnected("liveness restored")
		return true
	}

	c.statusMtx.Lock()
	c.lastError = ""
	c.lastCheck = time.Now().UTC()
	c.statusMtx.Unlock()

	return true
}

// FetchRates requests the most recent bars from a connected terminal.
//
// A timed out request marks the connection failed, an abandoned one leaves it untouched.
func (c *Connection) FetchRates(ctx context.Context, symbol string, timeframe shared.Timeframe, count int) ([]shared.Bar, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.State() != Connected {
		return nil, fmt.Errorf("%w: %s is %s", shared.ErrTerminalUnavailable, c.cfg.Record.ID, c.State())
	}

	var bars []shared.Bar
	err := c.invoke(ctx, "copy rates", func(ctx context.Context) error {
		var err error
		bars, err = c.cfg.Terminal.CopyRates(ctx, symbol, timeframe, count)
		return err
	})
	if err != nil {
		if errors.Is(err, shared.ErrTerminalTimeout) {
			c.setFailed(fmt.Errorf("fetching rates: %w", err))
		}
		return nil, err
	}

	return bars, nil
}
