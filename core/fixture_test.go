package core

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testNow = 1700000000

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testInterestRateConfig() InterestRateConfig {
	return InterestRateConfig{
		OptimalUtilizationRate: d("0.5"),
		PlateauInterestRate:    d("0.5"),
		MaxInterestRate:        d("4"),
		InsuranceFeeFixedApr:   decimal.Zero,
		InsuranceIrFee:         d("0.1"),
		ProtocolFixedFeeApr:    decimal.Zero,
		ProtocolIrFee:          d("0.1"),
	}
}

func testBankConfig() BankConfig {
	return BankConfig{
		AssetWeightInit:      ONE,
		AssetWeightMaint:     ONE,
		LiabilityWeightInit:  ONE,
		LiabilityWeightMaint: ONE,
		DepositLimit:         NoLimit,
		LiabilityLimit:       NoLimit,
		InterestRateConfig:   testInterestRateConfig(),
		OperationalState:     BankOperationalStateOperational,
		RiskTier:             Collateral,
		AssetTag:             AssetTagDefault,
		OracleSetup:          OracleSetupPythEma,
	}
}

type fixture struct {
	t      *testing.T
	clk    *clock.Mock
	p      *Processor
	group  *Group
	banks  BankSet
	prices map[uuid.UUID]decimal.Decimal
}

func newFixture(t *testing.T, opts ...ProcessorOption) *fixture {
	clk := clock.NewMock()
	clk.Add(time.Unix(testNow, 0).Sub(clk.Now()))

	opts = append([]ProcessorOption{WithProcessorClock(clk)}, opts...)
	return &fixture{
		t:      t,
		clk:    clk,
		p:      NewProcessor(NopLog(), DefaultProcessorConfig(), opts...),
		group:  NewGroup(clk, "admin", "test", "test group"),
		banks:  make(BankSet),
		prices: make(map[uuid.UUID]decimal.Decimal),
	}
}

func (f *fixture) addBank(name string, price string, cfg BankConfig) *Bank {
	cfg.OracleKeys = [3]string{name + "-feed"}
	bank := NewBank(f.clk, f.group.Id, name, name+"-mint", 9, cfg)
	f.banks[bank.Id] = bank
	f.prices[bank.Id] = d(price)
	return bank
}

func (f *fixture) setPrice(bank *Bank, price string) {
	f.prices[bank.Id] = d(price)
}

func (f *fixture) newAccount(authority string) *Account {
	return NewAccount(f.clk, f.group.Id, authority, 0)
}

// env publishes a fresh, zero confidence snapshot of every price.
func (f *fixture) env() Env {
	now := f.clk.Now().Unix()
	oracles := make(OracleSnapshots, len(f.prices))
	for id, price := range f.prices {
		oracles[id] = []PriceSnapshot{{
			FeedId:      f.banks[id].OracleKeys[0],
			Price:       price,
			EmaPrice:    price,
			PublishTime: now,
		}}
	}
	return Env{Banks: f.banks, Oracles: oracles}
}

func (f *fixture) deposit(account *Account, bank *Bank, amount string) {
	_, err := f.p.Deposit(f.env(), account, bank.Id, d(amount))
	require.NoError(f.t, err)
}

func (f *fixture) borrow(account *Account, bank *Bank, amount string) {
	_, err := f.p.Borrow(f.env(), account, bank.Id, d(amount))
	require.NoError(f.t, err)
}

func (f *fixture) assets(account *Account, bank *Bank) decimal.Decimal {
	b := account.GetBalance(bank.Id)
	if b == nil {
		return decimal.Zero
	}
	return bank.GetAssetAmount(b.AssetShares)
}

func (f *fixture) liabilities(account *Account, bank *Bank) decimal.Decimal {
	b := account.GetBalance(bank.Id)
	if b == nil {
		return decimal.Zero
	}
	return bank.GetLiabilityAmount(b.LiabilityShares)
}

func (f *fixture) resolve(ids ...uuid.UUID) PriceSet {
	prices, err := ResolvePrices(f.p.Config().Oracle, f.banks, f.env().Oracles, f.clk.Now().Unix(), ids)
	require.NoError(f.t, err)
	return prices
}

func assertClose(t *testing.T, expected, actual, tolerance decimal.Decimal) {
	t.Helper()
	if actual.Sub(expected).Abs().GreaterThan(tolerance) {
		require.Failf(t, "not within tolerance", "expected %s ± %s, got %s", expected, tolerance, actual)
	}
}
