package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TradeAttempt("buy")
	m.TradeAttempt("buy")
	m.TradeConfirmed("sell")
	m.Exit("take_profit", "first")
	m.FeeTransfer("confirmed")
	m.SellStarted()
	m.SellStarted()
	m.SellFinished()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tradeAttempts.WithLabelValues("buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tradesConfirmed.WithLabelValues("sell")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exits.WithLabelValues("take_profit", "first")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feeTransfers.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSells))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TradeAttempt("buy")
		m.BuySkipped("gate")
		m.PriceCheck("no_sell")
		m.SellStarted()
		m.SellFinished()
	})
}
