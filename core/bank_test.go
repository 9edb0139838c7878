package core

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBank(t *testing.T) (*Bank, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Add(time.Unix(testNow, 0).Sub(clk.Now()))
	return NewBank(clk, uuid.Must(uuid.NewV4()), "SOL", "sol-mint", 9, testBankConfig()), clk
}

func TestNewBankIsDeterministic(t *testing.T) {
	clk := clock.NewMock()
	group := uuid.Must(uuid.NewV4())

	a := NewBank(clk, group, "SOL", "sol-mint", 9, testBankConfig())
	b := NewBank(clk, group, "SOL", "sol-mint", 9, testBankConfig())
	c := NewBank(clk, group, "USDC", "usdc-mint", 6, testBankConfig())

	assert.Equal(t, a.Id, b.Id)
	assert.NotEqual(t, a.Id, c.Id)
	assert.True(t, a.AssetShareValue.Equal(ONE))
	assert.True(t, a.LiabilityShareValue.Equal(ONE))
}

func TestInterestRateCurve(t *testing.T) {
	irc := testInterestRateConfig()

	tests := []struct {
		name     string
		ur       string
		expected string
	}{
		{"idle", "0", "0"},
		{"below optimal", "0.25", "0.25"},
		{"optimal", "0.5", "0.5"},
		{"above optimal", "0.75", "2.25"},
		{"full", "1", "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := irc.InterestRateCurve(d(tt.ur))
			assert.NoError(t, err)
			assert.True(t, rate.Equal(d(tt.expected)), "expected %s, got %s", tt.expected, rate)
		})
	}
}

func TestCalcInterestRate(t *testing.T) {
	irc := testInterestRateConfig()
	irc.ProtocolFixedFeeApr = d("0.01")

	lending, borrowing, group, insurance, err := irc.CalcInterestRate(d("0.5"))
	require.NoError(t, err)

	assert.True(t, lending.Equal(d("0.25")), "got %s", lending)
	assert.True(t, borrowing.Equal(d("0.61")), "got %s", borrowing)
	assert.True(t, group.Equal(d("0.06")), "got %s", group)
	assert.True(t, insurance.Equal(d("0.05")), "got %s", insurance)
}

func TestInterestRateConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *InterestRateConfig)
		want   error
	}{
		{"valid", func(c *InterestRateConfig) {}, nil},
		{"optimal zero", func(c *InterestRateConfig) { c.OptimalUtilizationRate = decimal.Zero }, ErrOptimalUr},
		{"optimal one", func(c *InterestRateConfig) { c.OptimalUtilizationRate = ONE }, ErrOptimalUr},
		{"plateau zero", func(c *InterestRateConfig) { c.PlateauInterestRate = decimal.Zero }, ErrPlateauIr},
		{"max zero", func(c *InterestRateConfig) { c.MaxInterestRate = decimal.Zero }, ErrMaxIr},
		{"plateau above max", func(c *InterestRateConfig) { c.PlateauInterestRate = d("5") }, ErrPlateauGreaterThanMax},
		{"negative fee", func(c *InterestRateConfig) { c.ProtocolIrFee = d("-0.1") }, ErrNegativeInterestRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testInterestRateConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
				assert.Equal(t, KindConfigInvalid, KindOf(err))
			}
		})
	}
}

func TestBankConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *BankConfig)
		ok     bool
	}{
		{"valid", func(c *BankConfig) {}, true},
		{"asset weight above one", func(c *BankConfig) { c.AssetWeightInit = d("1.1") }, false},
		{"maint below init", func(c *BankConfig) { c.AssetWeightMaint = d("0.5") }, false},
		{"liability init below one", func(c *BankConfig) { c.LiabilityWeightInit = d("0.9") }, false},
		{"liability maint above init", func(c *BankConfig) { c.LiabilityWeightMaint = d("1.5") }, false},
		{"negative limit", func(c *BankConfig) { c.DepositLimit = d("-1") }, false},
		{"isolated collateral", func(c *BankConfig) { c.RiskTier = Isolated }, false},
		{"isolated", func(c *BankConfig) {
			c.RiskTier = Isolated
			c.AssetWeightInit = decimal.Zero
			c.AssetWeightMaint = decimal.Zero
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testBankConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, InvalidConfig)
			}
		})
	}
}

func TestBankConfigure(t *testing.T) {
	bank, _ := newTestBank(t)

	require.NoError(t, bank.Configure(&BankConfigOpt{
		AssetWeightInit: decimalPtr(d("0.8")),
		DepositLimit:    decimalPtr(d("1000")),
	}))
	assert.True(t, bank.AssetWeightInit.Equal(d("0.8")))
	assert.True(t, bank.AssetWeightMaint.Equal(ONE))
	assert.True(t, bank.IsDepositLimitActive())

	err := bank.Configure(&BankConfigOpt{AssetWeightMaint: decimalPtr(d("0.5"))})
	assert.ErrorIs(t, err, InvalidConfig)
	assert.True(t, bank.AssetWeightMaint.Equal(ONE), "rejected update must not apply")
}

func TestAccrueInterest(t *testing.T) {
	bank, _ := newTestBank(t)
	bank.TotalAssetShares = d("1000")
	bank.TotalLiabilityShares = d("500")

	require.NoError(t, bank.AccrueInterest(NopLog(), testNow))
	assert.True(t, bank.AssetShareValue.Equal(ONE), "same timestamp is a no-op")

	require.NoError(t, bank.AccrueInterest(NopLog(), testNow-100))
	assert.Equal(t, int64(testNow), bank.LastUpdate)

	prevAsset, prevLiab := bank.AssetShareValue, bank.LiabilityShareValue
	for i := 1; i <= 5; i++ {
		require.NoError(t, bank.AccrueInterest(NopLog(), testNow+int64(i)*86400))
		assert.True(t, bank.AssetShareValue.GreaterThan(prevAsset))
		assert.True(t, bank.LiabilityShareValue.GreaterThan(prevLiab))
		assert.True(t, bank.LiabilityShareValue.GreaterThanOrEqual(bank.AssetShareValue))
		prevAsset, prevLiab = bank.AssetShareValue, bank.LiabilityShareValue
	}

	// lenders never earn more than borrowers pay
	earned := bank.GetAssetAmount(bank.TotalAssetShares).Sub(d("1000"))
	paid := bank.GetLiabilityAmount(bank.TotalLiabilityShares).Sub(d("500"))
	fees := bank.CollectedGroupFeesOutstanding.Add(bank.CollectedInsuranceFeesOutstanding)
	assert.True(t, earned.Add(fees).LessThanOrEqual(paid), "earned %s + fees %s > paid %s", earned, fees, paid)
}

func TestAccrueInterestIdleBank(t *testing.T) {
	bank, _ := newTestBank(t)
	bank.TotalAssetShares = d("1000")

	require.NoError(t, bank.AccrueInterest(NopLog(), testNow+SECONDS_PER_YEAR))
	assert.True(t, bank.AssetShareValue.Equal(ONE))
	assert.Equal(t, int64(testNow+SECONDS_PER_YEAR), bank.LastUpdate)
}

func TestShareConversionsRound(t *testing.T) {
	bank, _ := newTestBank(t)
	bank.AssetShareValue = d("3")
	bank.LiabilityShareValue = d("3")

	deposit, _ := bank.GetAssetShares(ONE)
	withdraw, _ := bank.GetAssetSharesRoundUp(ONE)
	assert.True(t, withdraw.GreaterThan(deposit))

	borrow, _ := bank.GetLiabilityShares(ONE)
	repay, _ := bank.GetLiabilitySharesRoundDown(ONE)
	assert.True(t, borrow.GreaterThan(repay))

	assert.True(t, bank.GetAssetAmount(deposit).LessThan(ONE))
	assert.True(t, bank.GetLiabilityAmount(borrow).GreaterThanOrEqual(ONE))
}

func TestSocializeLoss(t *testing.T) {
	tests := []struct {
		name     string
		loss     string
		expected string
		err      error
	}{
		{"no loss", "0", "1", nil},
		{"partial", "250", "0.75", nil},
		{"everything", "1000", "1", MathError},
		{"more than everything", "5000", "1", MathError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank, _ := newTestBank(t)
			bank.TotalAssetShares = d("1000")

			err := bank.SocializeLoss(NopLog(), d(tt.loss))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, bank.AssetShareValue.Equal(d(tt.expected)), "expected %s, got %s", tt.expected, bank.AssetShareValue)
		})
	}
}

func TestDepositAfterLargeLoss(t *testing.T) {
	bank, _ := newTestBank(t)
	bank.TotalAssetShares = d("1000")

	require.NoError(t, bank.SocializeLoss(NopLog(), d("999")))
	assert.True(t, bank.AssetShareValue.IsPositive())

	shares, err := bank.GetAssetShares(d("10"))
	require.NoError(t, err)
	assert.True(t, shares.IsPositive())
}

func TestChangeSharesLimits(t *testing.T) {
	bank, _ := newTestBank(t)
	bank.DepositLimit = d("100")
	bank.LiabilityLimit = d("50")

	assert.NoError(t, bank.ChangeAssetShares(d("100"), false))
	assert.ErrorIs(t, bank.ChangeAssetShares(d("1"), false), BankAssetCapacityExceeded)
	assert.NoError(t, bank.ChangeAssetShares(d("1"), true))

	assert.NoError(t, bank.ChangeLiabilityShares(d("49"), false))
	assert.ErrorIs(t, bank.ChangeLiabilityShares(d("1"), false), BankLiabilityCapacityExceeded)
	assert.NoError(t, bank.ChangeLiabilityShares(d("-10"), false))

	assert.ErrorIs(t, bank.ChangeLiabilityShares(d("-100"), false), MathError)
}

func TestAssetWeightInitDiscount(t *testing.T) {
	bank, _ := newTestBank(t)
	bank.TotalAssetShares = d("100")

	_, ok := bank.MaybeGetAssetWeightInitDiscount(d("10"))
	assert.False(t, ok)

	bank.TotalAssetValueInitLimit = d("500")
	discount, ok := bank.MaybeGetAssetWeightInitDiscount(d("10"))
	assert.True(t, ok)
	assert.True(t, discount.Equal(d("0.5")))

	_, ok = bank.MaybeGetAssetWeightInitDiscount(d("1"))
	assert.False(t, ok)
}

func TestSetupEmissions(t *testing.T) {
	bank, _ := newTestBank(t)

	assert.ErrorIs(t, bank.SetupEmissions(BankFlagsPermissionlessBadDebtSettlement, "R", ONE, ONE), InvalidEmissionsFlags)
	require.NoError(t, bank.SetupEmissions(BankFlagsBorrowActive, "R", ONE, d("10")))
	assert.True(t, bank.GetFlag(BankFlagsBorrowActive))
	assert.False(t, bank.GetFlag(BankFlagsLendingActive))
	assert.True(t, bank.EmissionsVault.Equal(d("10")))
	assert.ErrorIs(t, bank.SetupEmissions(BankFlagsBorrowActive, "R", ONE, d("10")), EmissionsAlreadySetup)
}

func TestComputeRemainingCapacity(t *testing.T) {
	bank, clk := newTestBank(t)
	bank.DepositLimit = d("1000")
	bank.LiabilityLimit = d("500")
	bank.TotalAssetShares = d("400")
	bank.TotalLiabilityShares = d("100")

	deposit, borrow := bank.ComputeRemainingCapacity(clk)
	assert.True(t, deposit.Equal(d("600")))
	assert.True(t, borrow.Equal(d("400")))

	clk.Add(30 * 24 * time.Hour)
	deposit, borrow = bank.ComputeRemainingCapacity(clk)
	assert.True(t, deposit.LessThan(d("600")))
	assert.True(t, borrow.LessThan(d("400")))
}

func TestNativeRounding(t *testing.T) {
	bank, _ := newTestBank(t)
	bank.MintDecimals = 6

	assert.True(t, bank.NativeFloor(d("1.0000019")).Equal(d("1.000001")))
	assert.True(t, bank.NativeCeil(d("1.0000011")).Equal(d("1.000002")))
	assert.True(t, bank.NativeCeil(d("1.000001")).Equal(d("1.000001")))
}

func TestAssertOperationalMode(t *testing.T) {
	bank, _ := newTestBank(t)
	assert.NoError(t, bank.AssertOperationalMode(true))

	bank.OperationalState = BankOperationalStateReduceOnly
	assert.ErrorIs(t, bank.AssertOperationalMode(true), BankReduceOnly)
	assert.NoError(t, bank.AssertOperationalMode(false))

	bank.OperationalState = BankOperationalStatePaused
	assert.ErrorIs(t, bank.AssertOperationalMode(false), BankPaused)
}
