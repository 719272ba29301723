package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dnldd/mtbridge/shared"
	"github.com/tidwall/gjson"
)

const (
	// defaultBridgeTimeout is the http client timeout for bridge requests.
	defaultBridgeTimeout = time.Second * 30
)

// BridgeConfig represents the configuration for the terminal bridge client.
type BridgeConfig struct {
	// BaseURL is the terminal bridge base url.
	BaseURL string
	// TerminalID is the bridge side identifier of the terminal.
	TerminalID string
	// Timeout is the http client timeout.
	Timeout time.Duration
}

// Validate asserts the config sane inputs.
func (cfg *BridgeConfig) Validate() error {
	var errs error

	if cfg.BaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("bridge base url cannot be an empty string"))
	}
	if cfg.TerminalID == "" {
		errs = errors.Join(errs, fmt.Errorf("bridge terminal id cannot be an empty string"))
	}
	if cfg.Timeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("bridge timeout cannot be negative"))
	}

	return errs
}

// BridgeClient represents a client for a terminal exposed over an http bridge.
//
// It is not safe for concurrent use, callers serialize access through the
// terminal connection.
type BridgeClient struct {
	cfg   *BridgeConfig
	httpc http.Client
	buf   *bytes.Buffer
}

// Ensure the BridgeClient implements the Terminal interface.
var _ shared.Terminal = (*BridgeClient)(nil)

// NewBridgeClient instantiates a new terminal bridge client.
func NewBridgeClient(cfg *BridgeConfig) (*BridgeClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating bridge config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBridgeTimeout
	}

	return &BridgeClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: timeout},
		buf:   bytes.NewBuffer(make([]byte, 0, 512)),
	}, nil
}

// formURL creates full urls including parameters for the bridge api.
func (c *BridgeClient) formURL(path string, params string) string {
	c.buf.WriteString(strings.TrimSuffix(c.cfg.BaseURL, "/"))
	c.buf.WriteString("/terminals/")
	c.buf.WriteString(url.PathEscape(c.cfg.TerminalID))
	c.buf.WriteString(path)
	if params != "" {
		c.buf.WriteString("?")
		c.buf.WriteString(params)
	}
	formed := c.buf.String()
	c.buf.Reset()

	return formed
}

// do issues a bridge request and returns the parsed response body.
func (c *BridgeClient) do(ctx context.Context, method string, path string, params url.Values, payload any) (gjson.Result, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("encoding request payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.formURL(path, params.Encode()), body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("requesting %s: %w", path, err)
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return gjson.Result{}, fmt.Errorf("bridge %s returned %d: %s", path, resp.StatusCode, msg)
	}

	return gjson.ParseBytes(data), nil
}

// Initialize prepares the bridge terminal for use.
func (c *BridgeClient) Initialize(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/initialize", nil, nil)
	return err
}

// Login authenticates the bridge terminal session.
func (c *BridgeClient) Login(ctx context.Context, creds shared.Credentials) error {
	payload := map[string]any{
		"server":   creds.Server,
		"login":    creds.Login,
		"password": creds.Password,
	}

	resp, err := c.do(ctx, http.MethodPost, "/login", nil, payload)
	if err != nil {
		return err
	}

	authorized := resp.Get("authorized")
	if authorized.Exists() && !authorized.Bool() {
		return fmt.Errorf("login %d on %s was not authorized: %s", creds.Login, creds.Server,
			resp.Get("error").String())
	}

	return nil
}

// AccountInfo returns the active account. A null response returns no account.
func (c *BridgeClient) AccountInfo(ctx context.Context) (*shared.AccountInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/account", nil, nil)
	if err != nil {
		return nil, err
	}

	if resp.Type == gjson.Null || !resp.Get("login").Exists() {
		return nil, nil
	}

	return &shared.AccountInfo{
		Login:    resp.Get("login").Uint(),
		Server:   resp.Get("server").String(),
		Balance:  resp.Get("balance").Float(),
		Currency: resp.Get("currency").String(),
	}, nil
}

// CopyRates returns up to count most recent bars for the provided symbol and timeframe.
func (c *BridgeClient) CopyRates(ctx context.Context, symbol string, timeframe shared.Timeframe, count int) ([]shared.Bar, error) {
	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("timeframe", timeframe.String())
	params.Add("count", strconv.Itoa(count))

	resp, err := c.do(ctx, http.MethodGet, "/rates", params, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s rates: %w", symbol, timeframe, err)
	}

	if resp.Type == gjson.Null {
		return nil, nil
	}
	if !resp.IsArray() {
		return nil, fmt.Errorf("unexpected rates payload for %s %s", symbol, timeframe)
	}

	bars, err := shared.ParseBars(resp.Array())
	if err != nil {
		return nil, fmt.Errorf("parsing %s %s rates: %w", symbol, timeframe, err)
	}

	return bars, nil
}

// Shutdown releases the bridge terminal session.
func (c *BridgeClient) Shutdown(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/shutdown", nil, nil)
	return err
}
