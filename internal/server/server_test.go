package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/raydium-sniper/internal/metrics"
	"github.com/rovshanmuradov/raydium-sniper/internal/position"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
)

func newTestServer(t *testing.T, journal storage.Journal) (*httptest.Server, *position.Gate, *position.Ledger) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.New(reg).TradeAttempt("buy")

	gate := position.NewGate(true)
	ledger := position.NewLedger(
		position.TakeProfit{AfterGainPct: 50, SellPct: 50},
		position.TakeProfit{AfterGainPct: 100, SellPct: 100},
	)
	s := New(Options{Gatherer: reg, Gate: gate, Ledger: ledger, Journal: journal}, zaptest.NewLogger(t))
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts, gate, ledger
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	resp, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestMetrics(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	resp, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `sniper_trade_attempts_total{side="buy"} 1`)
}

func TestStatus(t *testing.T) {
	ts, gate, ledger := newTestServer(t, nil)
	require.True(t, gate.TryAcquireBuy())
	gate.EnterSell()
	require.True(t, ledger.Claim("mint", position.TrancheFirst))
	require.True(t, ledger.MarkSold("mint", position.TrancheFirst))

	resp, body := get(t, ts.URL+"/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status Status
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.True(t, status.Gate.Held)
	assert.Equal(t, 1, status.Gate.ActiveSells)
	assert.True(t, status.Positions["mint"].SoldFirst)
}

func TestTrades(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	resp, _ := get(t, ts.URL+"/trades")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	journal := storage.NewMemory(10)
	require.NoError(t, journal.Record(context.Background(), storage.Trade{Mint: "a", Side: "buy"}))
	require.NoError(t, journal.Record(context.Background(), storage.Trade{Mint: "b", Side: "sell"}))
	ts, _, _ = newTestServer(t, journal)

	resp, body := get(t, ts.URL+"/trades?limit=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var trades []storage.Trade
	require.NoError(t, json.Unmarshal([]byte(body), &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, "b", trades[0].Mint)

	resp, _ = get(t, ts.URL+"/trades?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTradesExport(t *testing.T) {
	journal := storage.NewMemory(10)
	ctx := context.Background()
	require.NoError(t, journal.Record(ctx, storage.Trade{Mint: "a", Side: "buy", AmountIn: 100, Confirmed: true}))
	require.NoError(t, journal.Record(ctx, storage.Trade{Mint: "a", Side: "sell", Reason: "take_profit", QuotedOut: 160, Confirmed: true}))
	require.NoError(t, journal.Record(ctx, storage.Trade{Mint: "b", Side: "sell", Reason: "stop_loss"}))
	ts, _, _ := newTestServer(t, journal)

	t.Run("csv by default", func(t *testing.T) {
		resp, body := get(t, ts.URL+"/trades/export?side=sell")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
		lines := strings.Split(strings.TrimSpace(body), "\n")
		assert.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "id,created_at,side,mint"))
	})

	t.Run("json summary", func(t *testing.T) {
		resp, body := get(t, ts.URL+"/trades/export?format=json&confirmed=true")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var doc struct {
			TradeCount int `json:"trade_count"`
			Summary    struct {
				TakeProfits   int    `json:"take_profits"`
				QuoteReceived uint64 `json:"quote_received"`
			} `json:"summary"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &doc))
		assert.Equal(t, 2, doc.TradeCount)
		assert.Equal(t, 1, doc.Summary.TakeProfits)
		assert.Equal(t, uint64(160), doc.Summary.QuoteReceived)
	})

	t.Run("bad format", func(t *testing.T) {
		resp, _ := get(t, ts.URL+"/trades/export?format=xml")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
