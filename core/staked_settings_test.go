package core

import (
	"testing"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStakedSettings() StakedSettings {
	return StakedSettings{
		Oracle:                   "sol-usd",
		AssetWeightInit:          d("0.8"),
		AssetWeightMaint:         d("0.9"),
		DepositLimit:             d("1000000"),
		TotalAssetValueInitLimit: d("500000"),
		OracleMaxAge:             120,
		RiskTier:                 Collateral,
	}
}

func TestAddPermissionlessStakedBank(t *testing.T) {
	clk := clock.NewMock()
	group := NewGroup(clk, "admin", "staked", "")

	_, err := group.AddPermissionlessStakedBank(clk, "LST", "lst-mint", "pool", 9, testInterestRateConfig())
	assert.ErrorIs(t, err, InvalidConfig)

	group.SetStakedSettings(clk, testStakedSettings())
	bank, err := group.AddPermissionlessStakedBank(clk, "LST", "lst-mint", "pool", 9, testInterestRateConfig())
	require.NoError(t, err)

	assert.Equal(t, group.Id, bank.GroupId)
	assert.Equal(t, AssetTagStaked, bank.BankConfig.AssetTag)
	assert.Equal(t, OracleSetupStakedWithPythPush, bank.BankConfig.OracleSetup)
	assert.Equal(t, [3]string{"sol-usd", "lst-mint", "pool"}, bank.BankConfig.OracleKeys)
	assert.True(t, bank.BankConfig.LiabilityLimit.IsZero())
	assert.True(t, bank.BankConfig.AssetWeightInit.Equal(d("0.8")))
	assert.Equal(t, int64(120), bank.BankConfig.OracleMaxAge)
}

func TestNewStakedBankRejectsBadWeights(t *testing.T) {
	settings := testStakedSettings()
	settings.AssetWeightInit = d("1.2")

	_, err := NewStakedBank(clock.NewMock(), NewGroup(clock.NewMock(), "admin", "g", "").Id, &settings, "LST", "lst-mint", "pool", 9, testInterestRateConfig())
	assert.ErrorIs(t, err, InvalidConfig)
}

func TestPropagateStakedSettings(t *testing.T) {
	clk := clock.NewMock()
	group := NewGroup(clk, "admin", "staked", "")
	group.SetStakedSettings(clk, testStakedSettings())

	staked, err := group.AddPermissionlessStakedBank(clk, "LST", "lst-mint", "pool", 9, testInterestRateConfig())
	require.NoError(t, err)
	plain := NewBank(clk, group.Id, "USDC", "usdc-mint", 6, testBankConfig())
	other := NewGroup(clk, "admin", "other", "")
	other.SetStakedSettings(clk, testStakedSettings())
	foreign, err := other.AddPermissionlessStakedBank(clk, "LST", "lst-mint", "pool", 9, testInterestRateConfig())
	require.NoError(t, err)

	banks := BankSet{staked.Id: staked, plain.Id: plain, foreign.Id: foreign}

	settings := testStakedSettings()
	settings.Oracle = "sol-usd-v2"
	settings.AssetWeightInit = d("0.5")
	settings.OracleMaxAge = 300
	group.SetStakedSettings(clk, settings)
	require.NoError(t, group.PropagateStakedSettings(banks))

	assert.Equal(t, "sol-usd-v2", staked.BankConfig.OracleKeys[0])
	assert.Equal(t, "lst-mint", staked.BankConfig.OracleKeys[1])
	assert.True(t, staked.BankConfig.AssetWeightInit.Equal(d("0.5")))
	assert.Equal(t, int64(300), staked.BankConfig.OracleMaxAge)

	assert.Equal(t, "sol-usd", foreign.BankConfig.OracleKeys[0])
	assert.Equal(t, testBankConfig().OracleKeys, plain.BankConfig.OracleKeys)

	assert.ErrorIs(t, PropagateStakedSettings(&settings, plain), InvalidConfig)

	bad := settings
	bad.AssetWeightMaint = d("0.1")
	assert.Error(t, PropagateStakedSettings(&bad, staked))
	assert.True(t, staked.BankConfig.AssetWeightMaint.Equal(d("0.9")), "failed propagation leaves the bank untouched")
}
