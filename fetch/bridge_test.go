package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dnldd/mtbridge/shared"
	"github.com/peterldowns/testy/assert"
)

// newBridgeServer creates a fake terminal bridge.
func newBridgeServer(t *testing.T, account string, rates string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /terminals/MT5_01/initialize", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("POST /terminals/MT5_01/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil || body["password"] != "secret" {
			w.Write([]byte(`{"authorized":false,"error":"invalid account"}`))
			return
		}
		w.Write([]byte(`{"authorized":true}`))
	})
	mux.HandleFunc("GET /terminals/MT5_01/account", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(account))
	})
	mux.HandleFunc("GET /terminals/MT5_01/rates", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("timeframe") != "H1" || r.URL.Query().Get("count") != "2" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unexpected query"}`))
			return
		}
		w.Write([]byte(rates))
	})
	mux.HandleFunc("POST /terminals/MT5_01/shutdown", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"terminal not initialized"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestBridgeClient(t *testing.T) {
	ctx := context.Background()

	// Ensure the bridge client config is validated.
	_, err := NewBridgeClient(&BridgeConfig{})
	assert.Error(t, err)

	rates := `[
		{"time":1700000000,"open":2000,"high":2010,"low":1995,"close":2005,"tick_volume":1000},
		{"time":1700003600,"open":2005,"high":2015,"low":2000,"close":2010,"tick_volume":1200}
	]`
	srv := newBridgeServer(t, `{"login":5000001,"server":"Broker-Demo","balance":1000.5,"currency":"USD"}`, rates)

	client, err := NewBridgeClient(&BridgeConfig{BaseURL: srv.URL + "/", TerminalID: "MT5_01"})
	assert.NoError(t, err)

	// Ensure urls can be formed accurately.
	params := url.Values{}
	params.Add("a", "bbb")
	assert.Equal(t, client.formURL("/rates", params.Encode()), srv.URL+"/terminals/MT5_01/rates?a=bbb")
	assert.Equal(t, client.formURL("/account", ""), srv.URL+"/terminals/MT5_01/account")

	// Ensure the terminal can be initialized and logged into.
	assert.NoError(t, client.Initialize(ctx))
	assert.NoError(t, client.Login(ctx, shared.Credentials{Server: "Broker-Demo", Login: 5000001, Password: "secret"}))

	// Ensure rejected logins are reported.
	err = client.Login(ctx, shared.Credentials{Server: "Broker-Demo", Login: 5000001, Password: "wrong"})
	assert.Error(t, err)

	// Ensure account info can be fetched.
	info, err := client.AccountInfo(ctx)
	assert.NoError(t, err)
	assert.True(t, info != nil)
	assert.Equal(t, info.Login, uint64(5000001))
	assert.Equal(t, info.Currency, "USD")

	// Ensure rates can be fetched and parsed.
	bars, err := client.CopyRates(ctx, "XAUUSD", shared.H1, 2)
	assert.NoError(t, err)
	assert.Equal(t, len(bars), 2)
	assert.Equal(t, bars[1].Volume, uint64(1200))
	assert.Equal(t, bars[0].Low, float64(1995))

	// Ensure bridge errors carry the bridge message.
	_, err = client.CopyRates(ctx, "XAUUSD", shared.D1, 2)
	assert.Error(t, err)

	err = client.Shutdown(ctx)
	assert.Error(t, err)
}

func TestBridgeClientNullAccount(t *testing.T) {
	ctx := context.Background()
	srv := newBridgeServer(t, `null`, `null`)

	client, err := NewBridgeClient(&BridgeConfig{BaseURL: srv.URL, TerminalID: "MT5_01"})
	assert.NoError(t, err)

	// Ensure a null account is reported as no account.
	info, err := client.AccountInfo(ctx)
	assert.NoError(t, err)
	assert.True(t, info == nil)

	// Ensure null rates are reported as no bars.
	bars, err := client.CopyRates(ctx, "XAUUSD", shared.H1, 2)
	assert.NoError(t, err)
	assert.Equal(t, len(bars), 0)
}
