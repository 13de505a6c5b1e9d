// internal/metrics/metrics.go
// Package metrics exposes the sniper's Prometheus collectors:
//
//	sniper_trade_attempts_total{side}        transaction attempts per side (buy|sell)
//	sniper_trades_confirmed_total{side}      confirmed swaps
//	sniper_trades_failed_total{side}         workflows that ended without a confirmed swap
//	sniper_buys_skipped_total{reason}        buys dropped before submission
//	sniper_exits_total{reason,tranche}       confirmed exits by trigger and tranche
//	sniper_price_checks_total{result}        price matcher results
//	sniper_fee_transfers_total{status}       fee-skimming transfers
//	sniper_active_sells                      sells currently running
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	tradeAttempts   *prometheus.CounterVec
	tradesConfirmed *prometheus.CounterVec
	tradesFailed    *prometheus.CounterVec
	buysSkipped     *prometheus.CounterVec
	exits           *prometheus.CounterVec
	priceChecks     *prometheus.CounterVec
	feeTransfers    *prometheus.CounterVec
	activeSells     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tradeAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sniper_trade_attempts_total", Help: "Swap transaction attempts"},
			[]string{"side"},
		),
		tradesConfirmed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sniper_trades_confirmed_total", Help: "Confirmed swaps"},
			[]string{"side"},
		),
		tradesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sniper_trades_failed_total", Help: "Workflows that exhausted retries"},
			[]string{"side"},
		),
		buysSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sniper_buys_skipped_total", Help: "Buys dropped before submission"},
			[]string{"reason"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sniper_exits_total", Help: "Confirmed exits by trigger and tranche"},
			[]string{"reason", "tranche"},
		),
		priceChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sniper_price_checks_total", Help: "Price matcher results"},
			[]string{"result"},
		),
		feeTransfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sniper_fee_transfers_total", Help: "Fee transfers after profitable exits"},
			[]string{"status"},
		),
		activeSells: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "sniper_active_sells", Help: "Sell workflows currently running"},
		),
	}

	reg.MustRegister(
		m.tradeAttempts,
		m.tradesConfirmed,
		m.tradesFailed,
		m.buysSkipped,
		m.exits,
		m.priceChecks,
		m.feeTransfers,
		m.activeSells,
	)
	return m
}

func (m *Metrics) TradeAttempt(side string) {
	if m != nil {
		m.tradeAttempts.WithLabelValues(side).Inc()
	}
}

func (m *Metrics) TradeConfirmed(side string) {
	if m != nil {
		m.tradesConfirmed.WithLabelValues(side).Inc()
	}
}

func (m *Metrics) TradeFailed(side string) {
	if m != nil {
		m.tradesFailed.WithLabelValues(side).Inc()
	}
}

func (m *Metrics) BuySkipped(reason string) {
	if m != nil {
		m.buysSkipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Exit(reason, tranche string) {
	if m != nil {
		m.exits.WithLabelValues(reason, tranche).Inc()
	}
}

func (m *Metrics) PriceCheck(result string) {
	if m != nil {
		m.priceChecks.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) FeeTransfer(status string) {
	if m != nil {
		m.feeTransfers.WithLabelValues(status).Inc()
	}
}

// SellStarted and SellFinished track the active sell gauge.
func (m *Metrics) SellStarted() {
	if m != nil {
		m.activeSells.Inc()
	}
}

func (m *Metrics) SellFinished() {
	if m != nil {
		m.activeSells.Dec()
	}
}
