package core

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	next:
		for _, m := range family.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

func TestProcessorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, WithMetrics(NewMetrics(reg)))
	usdc := f.addBank("USDC", "1", testBankConfig())

	lender := f.newAccount("lender")
	borrower := f.newAccount("borrower")
	f.deposit(lender, usdc, "100")
	f.deposit(lender, usdc, "100")

	_, err := f.p.Borrow(f.env(), borrower, usdc.Id, d("10"))
	require.ErrorIs(t, err, RiskEngineInitRejected)

	ok := findMetric(t, reg, "lendcore_processor_actions_total", map[string]string{"action": "Deposit", "result": "ok"})
	require.NotNil(t, ok)
	assert.Equal(t, 2.0, ok.GetCounter().GetValue())

	rejected := findMetric(t, reg, "lendcore_processor_actions_total", map[string]string{"action": "Borrow", "result": "RiskRejection"})
	require.NotNil(t, rejected)
	assert.Equal(t, 1.0, rejected.GetCounter().GetValue())

	assert.Nil(t, findMetric(t, reg, "lendcore_processor_actions_total", map[string]string{"action": "Borrow", "result": "ok"}))
}

func TestMetricsObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observeBankruptcy("USDC", d("2"), d("3"))
	m.observeLiquidation("SOL", d("9.75"))

	insurance := findMetric(t, reg, "lendcore_processor_bankruptcy_loss_total", map[string]string{"bank": "USDC", "source": "insurance"})
	require.NotNil(t, insurance)
	assert.Equal(t, 2.0, insurance.GetCounter().GetValue())

	socialized := findMetric(t, reg, "lendcore_processor_bankruptcy_loss_total", map[string]string{"bank": "USDC", "source": "socialized"})
	require.NotNil(t, socialized)
	assert.Equal(t, 3.0, socialized.GetCounter().GetValue())

	liquidation := findMetric(t, reg, "lendcore_processor_liquidation_value", map[string]string{"asset_bank": "SOL"})
	require.NotNil(t, liquidation)
	assert.Equal(t, uint64(1), liquidation.GetHistogram().GetSampleCount())
	assert.Equal(t, 9.75, liquidation.GetHistogram().GetSampleSum())
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeAction(ActionDeposit, nil)
		m.observeBankruptcy("USDC", decimal.Zero, decimal.Zero)
		m.observeLiquidation("SOL", decimal.Zero)
	})
}

func TestLiquidationMetricsRecordedOnCommit(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, WithMetrics(NewMetrics(reg)))
	sol := f.addBank("SOL", "10", testBankConfig())
	usdc := f.addBank("USDC", "1", testBankConfig())

	lender := f.newAccount("lender")
	borrower := f.newAccount("borrower")
	liquidator := f.newAccount("liquidator")

	f.deposit(lender, usdc, "2000")
	f.deposit(borrower, sol, "100")
	f.borrow(borrower, usdc, "999")
	f.deposit(liquidator, usdc, "100")

	require.NoError(t, sol.Configure(&BankConfigOpt{
		AssetWeightInit:  decimalPtr(d("0.25")),
		AssetWeightMaint: decimalPtr(d("0.5")),
	}))

	accounts := AccountSet{lender.Id: lender, borrower.Id: borrower, liquidator.Id: liquidator}
	_, err := f.p.ExecuteBatch(f.env(), accounts, []Instruction{
		{
			Action:          ActionLiquidate,
			AccountId:       liquidator.Id,
			LiquidateeId:    borrower.Id,
			AssetBankId:     sol.Id,
			LiabilityBankId: usdc.Id,
			Amount:          d("1"),
		},
		{Action: ActionWithdraw, AccountId: lender.Id, BankId: sol.Id, Amount: d("1")},
	})
	require.Error(t, err)

	assert.True(t, f.assets(borrower, sol).Equal(d("100")))
	assert.Nil(t, findMetric(t, reg, "lendcore_processor_liquidation_value", map[string]string{"asset_bank": "SOL"}))

	_, err = f.p.Liquidate(f.env(), liquidator, borrower, sol.Id, usdc.Id, d("1"))
	require.NoError(t, err)

	liquidation := findMetric(t, reg, "lendcore_processor_liquidation_value", map[string]string{"asset_bank": "SOL"})
	require.NotNil(t, liquidation)
	assert.Equal(t, uint64(1), liquidation.GetHistogram().GetSampleCount())
	assert.Equal(t, 10.0, liquidation.GetHistogram().GetSampleSum())
}
