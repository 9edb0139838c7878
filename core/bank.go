package core

import (
	"math"
	"time"

	"github.com/DomeLiquid/lendcore/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	// BankSet is the set of banks supplied for one request, keyed by id.
	BankSet map[uuid.UUID]*Bank

	Bank struct {
		Id      uuid.UUID `json:"id"`
		GroupId uuid.UUID `json:"groupId"`
		Name    string    `json:"name"`

		Mint         string `json:"mint"`
		MintDecimals int32  `json:"mintDecimals"`

		AssetShareValue     decimal.Decimal `json:"assetShareValue"`
		LiabilityShareValue decimal.Decimal `json:"liabilityShareValue"`

		LiquidityVault decimal.Decimal `json:"liquidityVault"`
		InsuranceVault decimal.Decimal `json:"insuranceVault"`
		FeeVault       decimal.Decimal `json:"feeVault"`
		EmissionsVault decimal.Decimal `json:"emissionsVault"`

		CollectedInsuranceFeesOutstanding decimal.Decimal `json:"collectedInsuranceFeesOutstanding"`
		CollectedGroupFeesOutstanding     decimal.Decimal `json:"collectedGroupFeesOutstanding"`

		TotalLiabilityShares decimal.Decimal `json:"totalLiabilityShares"`
		TotalAssetShares     decimal.Decimal `json:"totalAssetShares"`

		Flags BankFlags `json:"flags"`

		BankConfig `json:"bankConfig"`

		EmissionsMint      string          `json:"emissionsMint"`
		EmissionsRate      decimal.Decimal `json:"emissionsRate"`
		EmissionsRemaining decimal.Decimal `json:"emissionsRemaining"`

		CreatedAt  int64 `json:"createdAt"`
		LastUpdate int64 `json:"lastUpdate"`
	}

	BankConfig struct {
		AssetWeightInit  decimal.Decimal `json:"assetWeightInit" yaml:"assetWeightInit"`
		AssetWeightMaint decimal.Decimal `json:"assetWeightMaint" yaml:"assetWeightMaint"`

		LiabilityWeightInit  decimal.Decimal `json:"liabilityWeightInit" yaml:"liabilityWeightInit"`
		LiabilityWeightMaint decimal.Decimal `json:"liabilityWeightMaint" yaml:"liabilityWeightMaint"`

		DepositLimit   decimal.Decimal `json:"depositLimit" yaml:"depositLimit"`
		LiabilityLimit decimal.Decimal `json:"liabilityLimit" yaml:"liabilityLimit"`

		InterestRateConfig `json:"interestRateConfig" yaml:"interestRateConfig"`

		OperationalState BankOperationalState `json:"operationalState" yaml:"operationalState"`

		RiskTier RiskTier `json:"riskTier" yaml:"riskTier"`
		AssetTag AssetTag `json:"assetTag" yaml:"assetTag"`

		// zero disables the cap
		TotalAssetValueInitLimit decimal.Decimal `json:"totalAssetValueInitLimit" yaml:"totalAssetValueInitLimit"`

		OracleSetup  OracleSetup `json:"oracleSetup" yaml:"oracleSetup"`
		OracleKeys   [3]string   `json:"oracleKeys" yaml:"oracleKeys"`
		OracleMaxAge int64       `json:"oracleMaxAge" yaml:"oracleMaxAge"`
	}

	// BankConfigOpt is a partial config update, nil fields are left as they are.
	BankConfigOpt struct {
		AssetWeightInit          *decimal.Decimal
		AssetWeightMaint         *decimal.Decimal
		LiabilityWeightInit      *decimal.Decimal
		LiabilityWeightMaint     *decimal.Decimal
		DepositLimit             *decimal.Decimal
		LiabilityLimit           *decimal.Decimal
		InterestRateConfig       *InterestRateConfig
		OperationalState         *BankOperationalState
		RiskTier                 *RiskTier
		AssetTag                 *AssetTag
		TotalAssetValueInitLimit *decimal.Decimal
		OracleMaxAge             *int64
	}

	InterestRateConfig struct {
		OptimalUtilizationRate decimal.Decimal `json:"optimalUtilizationRate" yaml:"optimalUtilizationRate"`
		PlateauInterestRate    decimal.Decimal `json:"plateauInterestRate" yaml:"plateauInterestRate"`
		MaxInterestRate        decimal.Decimal `json:"maxInterestRate" yaml:"maxInterestRate"`

		InsuranceFeeFixedApr decimal.Decimal `json:"insuranceFeeFixedApr" yaml:"insuranceFeeFixedApr"`
		InsuranceIrFee       decimal.Decimal `json:"insuranceIrFee" yaml:"insuranceIrFee"`
		ProtocolFixedFeeApr  decimal.Decimal `json:"protocolFixedFeeApr" yaml:"protocolFixedFeeApr"`
		ProtocolIrFee        decimal.Decimal `json:"protocolIrFee" yaml:"protocolIrFee"`
	}
)

// NoLimit marks a deposit or borrow limit as inactive.
var NoLimit = decimal.NewFromUint64(math.MaxUint64)

func (i *InterestRateConfig) CalcInterestRate(utilizationRatio decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	protocolIrFee := i.ProtocolIrFee
	insuranceIrFee := i.InsuranceIrFee
	protocolFixedFeeApr := i.ProtocolFixedFeeApr
	insuranceFeeFixedApr := i.InsuranceFeeFixedApr

	rateFee := protocolIrFee.Add(insuranceIrFee)
	totalFixedFeeApr := protocolFixedFeeApr.Add(insuranceFeeFixedApr)

	baseRate, err := i.InterestRateCurve(utilizationRatio)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, err
	}

	lendingRate := baseRate.Mul(utilizationRatio)
	borrowingRate := baseRate.Mul(ONE.Add(rateFee)).Add(totalFixedFeeApr)

	groupFeesApr := i.CalcFeeRate(baseRate, protocolIrFee, protocolFixedFeeApr)
	insuranceFeesApr := i.CalcFeeRate(baseRate, insuranceIrFee, insuranceFeeFixedApr)

	if lendingRate.IsNegative() ||
		borrowingRate.IsNegative() ||
		groupFeesApr.IsNegative() ||
		insuranceFeesApr.IsNegative() {
		return decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, ErrNegativeInterestRate
	}

	return lendingRate, borrowingRate, groupFeesApr, insuranceFeesApr, nil
}

// InterestRateCurve is linear up to the optimal utilization and steeper
// from there to the max rate at full utilization.
func (i *InterestRateConfig) InterestRateCurve(utilizationRatio decimal.Decimal) (decimal.Decimal, error) {
	optimalUr := i.OptimalUtilizationRate
	plateauIr := i.PlateauInterestRate
	maxIr := i.MaxInterestRate

	if utilizationRatio.LessThanOrEqual(optimalUr) {
		// ur / optimal_ur * plateau_ir
		return DivFloor(utilizationRatio.Mul(plateauIr), optimalUr)
	}

	// (ur - optimal_ur) / (1 - optimal_ur) * (max_ir - plateau_ir) + plateau_ir
	oneMinusOptimalUr := ONE.Sub(optimalUr)
	maxIrMinusPlateau := maxIr.Sub(plateauIr)
	utilizationRatioMinusOptimalUr := utilizationRatio.Sub(optimalUr)

	slope, err := DivFloor(utilizationRatioMinusOptimalUr.Mul(maxIrMinusPlateau), oneMinusOptimalUr)
	if err != nil {
		return decimal.Zero, err
	}
	return slope.Add(plateauIr), nil
}

func (i *InterestRateConfig) CalcFeeRate(baseRate, irFee, fixedFeeApr decimal.Decimal) decimal.Decimal {
	return baseRate.Mul(irFee).Add(fixedFeeApr)
}

func (i *InterestRateConfig) Validate() error {
	optimalUr := i.OptimalUtilizationRate
	plateauIr := i.PlateauInterestRate
	maxIr := i.MaxInterestRate

	if !optimalUr.IsPositive() || optimalUr.GreaterThanOrEqual(ONE) {
		return ErrOptimalUr
	}
	if !plateauIr.IsPositive() {
		return ErrPlateauIr
	}
	if !maxIr.IsPositive() {
		return ErrMaxIr
	}
	if plateauIr.GreaterThanOrEqual(maxIr) {
		return ErrPlateauGreaterThanMax
	}
	for _, fee := range []decimal.Decimal{i.InsuranceFeeFixedApr, i.InsuranceIrFee, i.ProtocolFixedFeeApr, i.ProtocolIrFee} {
		if fee.IsNegative() {
			return ErrNegativeInterestRate
		}
	}

	return nil
}

type BankOperationalState uint8

func (bos BankOperationalState) String() string {
	switch bos {
	case BankOperationalStatePaused:
		return "Paused"
	case BankOperationalStateOperational:
		return "Operational"
	case BankOperationalStateReduceOnly:
		return "Reduce Only"
	default:
		return "Unknown"
	}
}

const (
	BankOperationalStatePaused BankOperationalState = iota
	BankOperationalStateOperational
	BankOperationalStateReduceOnly
)

type RiskTier uint8

const (
	Collateral RiskTier = iota
	Isolated
)

func (rt RiskTier) String() string {
	switch rt {
	case Collateral:
		return "Collateral"
	case Isolated:
		return "Isolated"
	default:
		return "Unknown"
	}
}

type BankFlags uint8

const (
	BankFlagsBorrowActive                    BankFlags = 1 << 0
	BankFlagsLendingActive                   BankFlags = 1 << 1
	BankFlagsPermissionlessBadDebtSettlement BankFlags = 1 << 2

	BankFlagsEmissionsActive BankFlags = BankFlagsBorrowActive | BankFlagsLendingActive
	BankFlagsGroupActive     BankFlags = BankFlagsPermissionlessBadDebtSettlement | BankFlagsEmissionsActive
)

func (bf BankFlags) String() string {
	switch bf {
	case BankFlagsBorrowActive:
		return "Borrow Active"
	case BankFlagsLendingActive:
		return "Lending Active"
	case BankFlagsPermissionlessBadDebtSettlement:
		return "Permissionless Bad Debt Settlement"
	case BankFlagsEmissionsActive:
		return "Emissions Active"
	case BankFlagsGroupActive:
		return "Group Active"
	default:
		return "Unknown"
	}
}

type BalanceSide uint8

const (
	BalanceSideAssets BalanceSide = iota
	BalanceSideLiabilities
	BalanceSideEmpty
)

func (bs BalanceSide) String() string {
	switch bs {
	case BalanceSideAssets:
		return "Assets"
	case BalanceSideLiabilities:
		return "Liabilities"
	case BalanceSideEmpty:
		return "Empty"
	default:
		return "Unknown"
	}
}

// ValidateOracleSetup checks that the configured oracle keys fit the setup.
func (bc *BankConfig) ValidateOracleSetup() error {
	lo, hi := bc.OracleSetup.RequiredOracleKeys()
	if hi == 0 {
		return ErrUnknownOracleSetup
	}
	n := len(bc.ActiveOracleKeys())
	if n < lo || n > hi {
		return errors.Wrapf(ErrInvalidOracleKeys, "%s wants %d..%d keys, got %d", bc.OracleSetup, lo, hi, n)
	}
	if bc.OracleMaxAge < 0 {
		return InvalidConfig
	}
	return nil
}

// ActiveOracleKeys returns the leading non-empty oracle keys.
func (bc *BankConfig) ActiveOracleKeys() []string {
	keys := make([]string, 0, len(bc.OracleKeys))
	for _, k := range bc.OracleKeys {
		if k == "" {
			break
		}
		keys = append(keys, k)
	}
	return keys
}

func (bc *BankConfig) GetWeights(requirementType RequirementType) (decimal.Decimal, decimal.Decimal) {
	switch requirementType {
	case Initial:
		return bc.AssetWeightInit, bc.LiabilityWeightInit
	case Maintenance:
		return bc.AssetWeightMaint, bc.LiabilityWeightMaint
	case Equity:
		return ONE, ONE
	default:
		return decimal.Zero, decimal.Zero
	}
}

func (bc *BankConfig) GetWeight(requirementType RequirementType, balanceSide BalanceSide) decimal.Decimal {
	assetWeight, liabilityWeight := bc.GetWeights(requirementType)
	switch balanceSide {
	case BalanceSideAssets:
		return assetWeight
	case BalanceSideLiabilities:
		return liabilityWeight
	default:
		return decimal.Zero
	}
}

func (bc *BankConfig) Validate() error {
	assetInitW := bc.AssetWeightInit
	assetMaintW := bc.AssetWeightMaint

	if assetInitW.IsNegative() || assetInitW.GreaterThan(ONE) {
		return errors.Wrap(InvalidConfig, "asset weight init must be in [0, 1]")
	}

	if assetMaintW.LessThan(assetInitW) {
		return errors.Wrap(InvalidConfig, "asset weight maint below init")
	}

	liabInitW := bc.LiabilityWeightInit
	liabMaintW := bc.LiabilityWeightMaint
	if liabInitW.LessThan(ONE) {
		return errors.Wrap(InvalidConfig, "liability weight init below 1")
	}

	if liabMaintW.GreaterThan(liabInitW) || liabMaintW.LessThan(ONE) {
		return errors.Wrap(InvalidConfig, "liability weight maint must be in [1, init]")
	}

	if bc.DepositLimit.IsNegative() || bc.LiabilityLimit.IsNegative() || bc.TotalAssetValueInitLimit.IsNegative() {
		return errors.Wrap(InvalidConfig, "negative limit")
	}

	if err := bc.InterestRateConfig.Validate(); err != nil {
		return err
	}

	if bc.RiskTier == Isolated {
		if !assetInitW.IsZero() || !assetMaintW.IsZero() {
			return errors.Wrap(InvalidConfig, "isolated banks cannot be collateral")
		}
	}

	return nil
}

func (bc *BankConfig) IsDepositLimitActive() bool {
	return !bc.DepositLimit.Equal(NoLimit)
}

func (bc *BankConfig) IsBorrowLimitActive() bool {
	return !bc.LiabilityLimit.Equal(NoLimit)
}

func (bc *BankConfig) UsdInitLimitActive() bool {
	return !bc.TotalAssetValueInitLimit.IsZero()
}

func NewBank(clk clock.Clock, groupId uuid.UUID, name string, mint string, mintDecimals int32, bankConfig BankConfig) *Bank {
	return NewBankWithCreateTime(groupId, name, mint, mintDecimals, bankConfig, clk.Now())
}

func NewBankWithCreateTime(groupId uuid.UUID, name string, mint string, mintDecimals int32, bankConfig BankConfig, createTime time.Time) *Bank {
	return &Bank{
		Id:                                utils.GenUuid(groupId.String(), name, mint),
		GroupId:                           groupId,
		Name:                              name,
		Mint:                              mint,
		MintDecimals:                      mintDecimals,
		AssetShareValue:                   ONE,
		LiabilityShareValue:               ONE,
		LiquidityVault:                    decimal.Zero,
		InsuranceVault:                    decimal.Zero,
		FeeVault:                          decimal.Zero,
		EmissionsVault:                    decimal.Zero,
		CollectedInsuranceFeesOutstanding: decimal.Zero,
		CollectedGroupFeesOutstanding:     decimal.Zero,
		TotalLiabilityShares:              decimal.Zero,
		TotalAssetShares:                  decimal.Zero,
		Flags:                             BankFlags(0),
		BankConfig:                        bankConfig,
		EmissionsRate:                     decimal.Zero,
		EmissionsRemaining:                decimal.Zero,
		CreatedAt:                         createTime.Unix(),
		LastUpdate:                        createTime.Unix(),
	}
}

// Clone returns a deep copy. Every field is a value type, so a struct copy is enough.
func (b *Bank) Clone() *Bank {
	c := *b
	return &c
}

func (b *Bank) GetFlag(flag BankFlags) bool {
	return b.Flags&flag == flag
}

func (b *Bank) UpdateFlag(value bool, flag BankFlags) {
	if value {
		b.Flags |= flag
	} else {
		b.Flags &= ^flag
	}
}

func (b *Bank) VerifyEmissionsFlags(flags BankFlags) bool {
	return flags&BankFlagsEmissionsActive == flags
}

// SetupEmissions starts a reward stream paid in mint at rate per unit of
// balance per year, funded with total.
func (b *Bank) SetupEmissions(flags BankFlags, mint string, rate, total decimal.Decimal) error {
	if b.EmissionsMint != "" {
		return EmissionsAlreadySetup
	}
	if !b.VerifyEmissionsFlags(flags) {
		return InvalidEmissionsFlags
	}
	if !rate.IsPositive() || !total.IsPositive() {
		return errors.Wrap(InvalidConfig, "emissions rate and total must be positive")
	}

	b.EmissionsMint = mint
	b.EmissionsRate = rate
	b.EmissionsRemaining = total
	b.EmissionsVault = b.EmissionsVault.Add(total)
	b.UpdateFlag(true, flags)
	return nil
}

func (b *Bank) Configure(opt *BankConfigOpt) error {
	config := b.BankConfig

	if opt.AssetWeightInit != nil {
		config.AssetWeightInit = *opt.AssetWeightInit
	}
	if opt.AssetWeightMaint != nil {
		config.AssetWeightMaint = *opt.AssetWeightMaint
	}
	if opt.LiabilityWeightInit != nil {
		config.LiabilityWeightInit = *opt.LiabilityWeightInit
	}
	if opt.LiabilityWeightMaint != nil {
		config.LiabilityWeightMaint = *opt.LiabilityWeightMaint
	}
	if opt.DepositLimit != nil {
		config.DepositLimit = *opt.DepositLimit
	}
	if opt.LiabilityLimit != nil {
		config.LiabilityLimit = *opt.LiabilityLimit
	}
	if opt.InterestRateConfig != nil {
		config.InterestRateConfig = *opt.InterestRateConfig
	}
	if opt.OperationalState != nil {
		config.OperationalState = *opt.OperationalState
	}
	if opt.RiskTier != nil {
		config.RiskTier = *opt.RiskTier
	}
	if opt.AssetTag != nil {
		config.AssetTag = *opt.AssetTag
	}
	if opt.TotalAssetValueInitLimit != nil {
		config.TotalAssetValueInitLimit = *opt.TotalAssetValueInitLimit
	}
	if opt.OracleMaxAge != nil {
		config.OracleMaxAge = *opt.OracleMaxAge
	}

	if err := config.Validate(); err != nil {
		return err
	}

	b.BankConfig = config
	return nil
}

// Liabilities round up and assets round down, so conversions never favor
// the account holder.

func (b *Bank) GetLiabilityAmount(shares decimal.Decimal) decimal.Decimal {
	return MulCeil(shares, b.LiabilityShareValue)
}

func (b *Bank) GetAssetAmount(shares decimal.Decimal) decimal.Decimal {
	return MulFloor(shares, b.AssetShareValue)
}

// GetAssetShares is the number of shares minted for a deposit of value.
func (b *Bank) GetAssetShares(value decimal.Decimal) (decimal.Decimal, error) {
	return DivFloor(value, b.AssetShareValue)
}

// GetAssetSharesRoundUp is the number of shares burned for a withdrawal of value.
func (b *Bank) GetAssetSharesRoundUp(value decimal.Decimal) (decimal.Decimal, error) {
	return DivCeil(value, b.AssetShareValue)
}

// GetLiabilityShares is the number of shares minted for a borrow of value.
func (b *Bank) GetLiabilityShares(value decimal.Decimal) (decimal.Decimal, error) {
	return DivCeil(value, b.LiabilityShareValue)
}

// GetLiabilitySharesRoundDown is the number of shares burned for a repayment of value.
func (b *Bank) GetLiabilitySharesRoundDown(value decimal.Decimal) (decimal.Decimal, error) {
	return DivFloor(value, b.LiabilityShareValue)
}

func (b *Bank) ChangeAssetShares(shares decimal.Decimal, bypassDepositLimit bool) error {
	totalAssetShares := b.TotalAssetShares.Add(shares)
	if totalAssetShares.IsNegative() {
		return errors.Wrap(MathError, "total asset shares below zero")
	}
	b.TotalAssetShares = totalAssetShares

	if shares.IsPositive() && b.BankConfig.IsDepositLimitActive() && !bypassDepositLimit {
		totalDepositsAmount := b.GetAssetAmount(totalAssetShares)
		if totalDepositsAmount.GreaterThan(b.BankConfig.DepositLimit) {
			return errors.Wrapf(BankAssetCapacityExceeded, "deposits %s over limit %s", totalDepositsAmount, b.BankConfig.DepositLimit)
		}
	}

	return nil
}

func (b *Bank) ChangeLiabilityShares(shares decimal.Decimal, bypassBorrowLimit bool) error {
	totalLiabilityShares := b.TotalLiabilityShares.Add(shares)
	if totalLiabilityShares.IsNegative() {
		return errors.Wrap(MathError, "total liability shares below zero")
	}
	b.TotalLiabilityShares = totalLiabilityShares

	if !bypassBorrowLimit && shares.IsPositive() && b.BankConfig.IsBorrowLimitActive() {
		totalLiabilityAmount := b.GetLiabilityAmount(b.TotalLiabilityShares)
		if totalLiabilityAmount.GreaterThanOrEqual(b.BankConfig.LiabilityLimit) {
			return errors.Wrapf(BankLiabilityCapacityExceeded, "liabilities %s over limit %s", totalLiabilityAmount, b.BankConfig.LiabilityLimit)
		}
	}

	return nil
}

// MaybeGetAssetWeightInitDiscount scales the initial asset weight down once
// the bank's total deposits, valued at price, exceed the init value limit.
func (b *Bank) MaybeGetAssetWeightInitDiscount(price decimal.Decimal) (decimal.Decimal, bool) {
	if !b.BankConfig.UsdInitLimitActive() {
		return ONE, false
	}

	bankTotalAssetsValue, _ := CalcValue(b.GetAssetAmount(b.TotalAssetShares), price, nil)
	totalAssetValueInitLimit := b.BankConfig.TotalAssetValueInitLimit
	if bankTotalAssetsValue.GreaterThan(totalAssetValueInitLimit) {
		discount, err := DivFloor(totalAssetValueInitLimit, bankTotalAssetsValue)
		if err != nil {
			return ONE, false
		}
		return discount, true
	}
	return ONE, false
}

func (b *Bank) CheckUtilizationRatio() error {
	totalAssets := b.GetAssetAmount(b.TotalAssetShares)
	totalLiabilities := b.GetLiabilityAmount(b.TotalLiabilityShares)
	if totalAssets.LessThan(totalLiabilities) {
		return errors.Wrapf(IllegalUtilizationRatio, "assets %s, liabilities %s", totalAssets, totalLiabilities)
	}

	return nil
}

// AccrueInterest brings the share values up to currentTimestamp. Calling it
// again with the same or an earlier timestamp is a no-op.
func (b *Bank) AccrueInterest(log Log, currentTimestamp int64) error {
	timeDelta := currentTimestamp - b.LastUpdate

	if timeDelta <= 0 {
		return nil
	}
	b.LastUpdate = currentTimestamp

	totalAssets := b.GetAssetAmount(b.TotalAssetShares)
	totalLiabilities := b.GetLiabilityAmount(b.TotalLiabilityShares)
	if totalAssets.IsZero() || totalLiabilities.IsZero() {
		return nil
	}

	accruedAssetShareValue, accruedLiabilityShareValue, groupFeePaymentForPeriod, insuranceFeePaymentForPeriod, err :=
		CalcInterestRateAccrualStateChanges(log, uint64(timeDelta), totalAssets, totalLiabilities, b.BankConfig.InterestRateConfig, b.AssetShareValue, b.LiabilityShareValue)
	if err != nil {
		return err
	}

	log.Debug().Msgf("Accrued interest on %s over %ds: asset share value %s -> %s, liability share value %s -> %s, fees %s/%s",
		b.Name, timeDelta, b.AssetShareValue, accruedAssetShareValue, b.LiabilityShareValue, accruedLiabilityShareValue, groupFeePaymentForPeriod, insuranceFeePaymentForPeriod)

	b.AssetShareValue = accruedAssetShareValue
	b.LiabilityShareValue = accruedLiabilityShareValue
	b.CollectedGroupFeesOutstanding = b.CollectedGroupFeesOutstanding.Add(groupFeePaymentForPeriod)
	b.CollectedInsuranceFeesOutstanding = b.CollectedInsuranceFeesOutstanding.Add(insuranceFeePaymentForPeriod)

	return nil
}

// SocializeLoss spreads lossAmount over every depositor of the bank by
// lowering the asset share value. This is the only path that lowers it.
// A loss of every deposit or more is refused with MathError.
func (b *Bank) SocializeLoss(log Log, lossAmount decimal.Decimal) error {
	if !lossAmount.IsPositive() {
		return nil
	}
	if b.TotalAssetShares.IsZero() {
		log.Warn().Msgf("Bank %s has no depositors to absorb a loss of %s", b.Name, lossAmount)
		return nil
	}

	totalAssets := b.TotalAssetShares.Mul(b.AssetShareValue)
	if lossAmount.GreaterThanOrEqual(totalAssets) {
		return errors.Wrapf(MathError, "loss %s wipes out all deposits of %s (%s)", lossAmount, b.Name, totalAssets)
	}

	newShareValue, err := DivFloor(totalAssets.Sub(lossAmount), b.TotalAssetShares)
	if err != nil {
		return err
	}
	log.Info().Msgf("Socialized loss %s on %s: asset share value %s -> %s", lossAmount, b.Name, b.AssetShareValue, newShareValue)
	b.AssetShareValue = newShareValue

	return nil
}

func (b *Bank) AssertOperationalMode(isAssetOrLiabilityAmountIncreasing bool) error {
	switch b.BankConfig.OperationalState {
	case BankOperationalStatePaused:
		return BankPaused
	case BankOperationalStateOperational:
		return nil
	case BankOperationalStateReduceOnly:
		if isAssetOrLiabilityAmountIncreasing {
			return BankReduceOnly
		}
		return nil
	default:
		return errors.Wrapf(InvalidConfig, "operational state %d", b.BankConfig.OperationalState)
	}
}

// Vault returns the custody mirror for v.
func (b *Bank) Vault(v VaultType) *decimal.Decimal {
	switch v {
	case VaultLiquidity:
		return &b.LiquidityVault
	case VaultInsurance:
		return &b.InsuranceVault
	case VaultFee:
		return &b.FeeVault
	case VaultEmissions:
		return &b.EmissionsVault
	default:
		return nil
	}
}

func (b *Bank) GetTotalAssetQuantity() decimal.Decimal {
	return b.GetAssetAmount(b.TotalAssetShares)
}

func (b *Bank) GetTotalLiabilityQuantity() decimal.Decimal {
	return b.GetLiabilityAmount(b.TotalLiabilityShares)
}

func (b *Bank) ComputeTvl(oraclePrice decimal.Decimal) decimal.Decimal {
	return b.GetTotalAssetQuantity().Sub(b.GetTotalLiabilityQuantity()).Mul(oraclePrice)
}

func (b *Bank) ComputeUtilizationRate() decimal.Decimal {
	totalDeposits := b.GetTotalAssetQuantity()
	if totalDeposits.IsZero() {
		return decimal.Zero
	}
	ur, _ := DivFloor(b.GetTotalLiabilityQuantity(), totalDeposits)
	return ur
}

// ComputeRemainingCapacity estimates how much more can be deposited and
// borrowed, net of the interest that will accrue on the next touch.
func (b *Bank) ComputeRemainingCapacity(clk clock.Clock) (depositCapacity decimal.Decimal, borrowCapacity decimal.Decimal) {
	totalDeposits := b.GetTotalAssetQuantity()
	remainingCapacity := decimal.Max(decimal.Zero, b.BankConfig.DepositLimit.Sub(totalDeposits))

	totalBorrows := b.GetTotalLiabilityQuantity()
	remainingBorrowCapacity := decimal.Max(decimal.Zero, b.BankConfig.LiabilityLimit.Sub(totalBorrows))

	durationSinceLastAccrual := clk.Now().Unix() - b.LastUpdate
	if durationSinceLastAccrual < 0 {
		durationSinceLastAccrual = 0
	}

	lendingRate, borrowingRate, _, _, err := b.BankConfig.InterestRateConfig.CalcInterestRate(b.ComputeUtilizationRate())
	if err != nil {
		return decimal.Zero, decimal.Zero
	}

	outstandingLendingInterest := CalcInterestPaymentForPeriod(lendingRate, uint64(durationSinceLastAccrual), totalDeposits)
	outstandingBorrowInterest := CalcInterestPaymentForPeriod(borrowingRate, uint64(durationSinceLastAccrual), totalBorrows)

	depositCapacity = decimal.Max(decimal.Zero, remainingCapacity.Sub(outstandingLendingInterest))
	borrowCapacity = decimal.Max(decimal.Zero, remainingBorrowCapacity.Sub(outstandingBorrowInterest))

	return
}

// NativeFloor truncates amount to the mint's precision.
func (b *Bank) NativeFloor(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundFloor(b.MintDecimals)
}

// NativeCeil rounds amount up to the mint's precision.
func (b *Bank) NativeCeil(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundCeil(b.MintDecimals)
}
