package sim

import (
	"testing"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: parse
start: 1000
stakedSettings:
  oracle: SOL
  assetWeightInit: 0.8
  assetWeightMaint: 0.9
  depositLimit: 1000
feeds:
  - {name: SOL, price: 100, conf: 0.5}
banks:
  - name: USDC
    price: 1
    liabilityWeightInit: 1.25
    interestRate:
      optimalUtilizationRate: 0.8
      plateauInterestRate: 0.1
      maxInterestRate: 1
  - {name: LST, staked: {pool: pool, supply: 10, balance: 11}}
accounts: [alice]
steps:
  - {advance: 1h}
  - {price: {feed: SOL, price: 90, freeze: true}}
  - batch:
      - {action: StartFlashloan, account: alice, end: 1}
      - {action: EndFlashloan, account: alice}
checks:
  - {bank: USDC, field: liquidityVault, equals: 0, tolerance: 0.001}
`))
	require.NoError(t, err)

	assert.Equal(t, "parse", s.Name)
	assert.EqualValues(t, 1000, s.Start)
	require.NotNil(t, s.StakedSettings)
	assert.Equal(t, "0.9", s.StakedSettings.AssetWeightMaint.String())
	require.Len(t, s.Banks, 2)
	assert.Equal(t, "1.25", s.Banks[0].LiabilityWeightInit.String())
	assert.Equal(t, "0.8", s.Banks[0].InterestRate.OptimalUtilizationRate.String())
	assert.Equal(t, "11", s.Banks[1].Staked.Balance.String())
	require.Len(t, s.Steps, 3)
	assert.Equal(t, "Advance 1h", s.Steps[0].label())
	assert.Equal(t, "Price", s.Steps[1].label())
	assert.True(t, s.Steps[1].Price.Freeze)
	assert.Equal(t, 1, s.Steps[2].Batch[0].End)
	assert.Equal(t, "0.001", s.Checks[0].Tolerance.String())
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "unknown key",
			data: "banks:\n  - {name: SOL, prise: 10}\n",
			want: "prise",
		},
		{
			name: "duplicate bank",
			data: "banks:\n  - {name: SOL}\n  - {name: SOL}\n",
			want: "duplicate bank SOL",
		},
		{
			name: "nameless bank",
			data: "banks:\n  - {price: 1}\n",
			want: "bank without name",
		},
		{
			name: "duplicate account",
			data: "accounts: [alice, alice]\n",
			want: "duplicate account alice",
		},
		{
			name: "bad duration",
			data: "steps:\n  - {advance: soon}\n",
			want: "step 0",
		},
		{
			name: "bad decimal",
			data: "steps:\n  - {action: Deposit, amount: lots}\n",
			want: "decode scenario",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.data))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadScenarioMissing(t *testing.T) {
	_, err := LoadScenario("testdata/missing.yaml")
	assert.ErrorContains(t, err, "read scenario")
}

func TestParseEnums(t *testing.T) {
	state, err := parseOperationalState("reduce only")
	require.NoError(t, err)
	assert.Equal(t, core.BankOperationalStateReduceOnly, state)

	state, err = parseOperationalState("")
	require.NoError(t, err)
	assert.Equal(t, core.BankOperationalStateOperational, state)

	tier, err := parseRiskTier("ISOLATED")
	require.NoError(t, err)
	assert.Equal(t, core.Isolated, tier)

	setup, err := parseOracleSetup("multifeed")
	require.NoError(t, err)
	assert.Equal(t, core.OracleSetupMultiFeed, setup)

	flag, err := parseAccountFlag("InFlashloan")
	require.NoError(t, err)
	assert.Equal(t, core.InFlashloanFlag, flag)

	flags, err := parseEmissionsMode("")
	require.NoError(t, err)
	assert.Equal(t, core.BankFlagsEmissionsActive, flags)

	_, err = parseAccountFlag("")
	assert.Error(t, err)
	_, err = parseAssetTag("gold")
	assert.ErrorContains(t, err, `unknown asset tag "gold"`)
	_, err = parseEmissionsMode("sometimes")
	assert.Error(t, err)
	_, err = parseAction("Teleport")
	assert.ErrorIs(t, err, core.InvalidInstruction)
}

func TestUnknownBankOptions(t *testing.T) {
	h := NewHost(core.NopLog(), core.DefaultProcessorConfig(), DefaultStart)
	_, err := h.AddBank(BankSpec{Name: "SOL", Price: decimalPtr("10"), RiskTier: "junior"})
	assert.ErrorContains(t, err, "unknown risk tier")

	_, err = h.AddBank(BankSpec{Name: "USDC", Feeds: []string{"a", "b", "c", "d", "e", "f"}})
	assert.ErrorIs(t, err, core.ErrInvalidOracleKeys)
}
