package core

import (
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics counts processor outcomes. A nil *Metrics records nothing.
type Metrics struct {
	actions          *prometheus.CounterVec
	bankruptcyLoss   *prometheus.CounterVec
	liquidationValue *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lendcore",
			Subsystem: "processor",
			Name:      "actions_total",
			Help:      "Processed actions by type and outcome.",
		}, []string{"action", "result"}),
		bankruptcyLoss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lendcore",
			Subsystem: "processor",
			Name:      "bankruptcy_loss_total",
			Help:      "Bad debt resolved by bankruptcy handling, split by who absorbed it.",
		}, []string{"bank", "source"}),
		liquidationValue: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lendcore",
			Subsystem: "processor",
			Name:      "liquidation_value",
			Help:      "Oracle value of collateral seized per liquidation.",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 8),
		}, []string{"asset_bank"}),
	}
	if reg != nil {
		reg.MustRegister(m.actions, m.bankruptcyLoss, m.liquidationValue)
	}
	return m
}

func (m *Metrics) observeAction(action ActionType, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	m.actions.WithLabelValues(action.String(), result).Inc()
}

// observeOutcome records the liquidations and bankruptcies of a committed action.
func (m *Metrics) observeOutcome(banks BankSet, out *Outcome) {
	if m == nil {
		return
	}
	name := func(id uuid.UUID) string {
		if bank, ok := banks[id]; ok {
			return bank.Name
		}
		return id.String()
	}
	for _, l := range out.liquidations {
		m.observeLiquidation(name(l.AssetBankId), l.AssetValue)
	}
	for _, b := range out.bankruptcies {
		m.observeBankruptcy(name(b.BankId), b.Covered, b.Socialized)
	}
}

func (m *Metrics) observeBankruptcy(bank string, covered, socialized decimal.Decimal) {
	if m == nil {
		return
	}
	m.bankruptcyLoss.WithLabelValues(bank, "insurance").Add(covered.InexactFloat64())
	m.bankruptcyLoss.WithLabelValues(bank, "socialized").Add(socialized.InexactFloat64())
}

func (m *Metrics) observeLiquidation(assetBank string, value decimal.Decimal) {
	if m == nil {
		return
	}
	m.liquidationValue.WithLabelValues(assetBank).Observe(value.InexactFloat64())
}
