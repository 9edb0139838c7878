package core

import (
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BankAccountWrapper pairs one balance of an account with its bank so that
// share changes are applied to both sides together.
type BankAccountWrapper struct {
	clk clock.Clock

	Balance *Balance `json:"balance"`
	Bank    *Bank    `json:"bank"`
}

type OptionFunc func(ba *BankAccountWrapper)

func WithClock(clk clock.Clock) OptionFunc {
	return func(ba *BankAccountWrapper) {
		ba.clk = clk
	}
}

func NewBankAccountWrapper(balance *Balance, bank *Bank, opts ...OptionFunc) *BankAccountWrapper {
	ba := &BankAccountWrapper{
		Balance: balance,
		Bank:    bank,
		clk:     clock.New(),
	}
	for _, opt := range opts {
		opt(ba)
	}
	return ba
}

// only an existing balance
func FindBankAccountWrapper(account *Account, bank *Bank, opts ...OptionFunc) (*BankAccountWrapper, error) {
	balance := account.GetBalance(bank.Id)
	if balance == nil {
		return nil, errors.Wrapf(LendingAccountBalanceNotFound, "bank %s", bank.Name)
	}

	return NewBankAccountWrapper(balance, bank, opts...), nil
}

func FindOrCreateBankAccountWrapper(clk clock.Clock, account *Account, bank *Bank) (*BankAccountWrapper, error) {
	balance, err := account.FindOrCreateBalance(bank, clk.Now().Unix())
	if err != nil {
		return nil, err
	}

	return NewBankAccountWrapper(balance, bank, WithClock(clk)), nil
}

func (ba *BankAccountWrapper) now() int64 {
	return ba.clk.Now().Unix()
}

func (ba *BankAccountWrapper) Deposit(log Log, amount decimal.Decimal) error {
	return ba.IncreaseBalanceInternal(log, amount, BalanceIncreaseTypeAny)
}

func (ba *BankAccountWrapper) Repay(log Log, amount decimal.Decimal) error {
	return ba.IncreaseBalanceInternal(log, amount, BalanceIncreaseTypeRepayOnly)
}

func (ba *BankAccountWrapper) Withdraw(log Log, amount decimal.Decimal) error {
	return ba.DecreaseBalanceInternal(log, amount, BalanceDecreaseTypeWithdrawOnly)
}

func (ba *BankAccountWrapper) Borrow(log Log, amount decimal.Decimal) error {
	return ba.DecreaseBalanceInternal(log, amount, BalanceDecreaseTypeAny)
}

// ------------ Hybrid operations for seamless repay + deposit / withdraw + borrow

func (ba *BankAccountWrapper) IncreaseBalanceInLiquidation(log Log, amount decimal.Decimal) error {
	return ba.IncreaseBalanceInternal(log, amount, BalanceIncreaseTypeBypassDepositLimit)
}

func (ba *BankAccountWrapper) DecreaseBalanceInLiquidation(log Log, amount decimal.Decimal) error {
	return ba.DecreaseBalanceInternal(log, amount, BalanceDecreaseTypeBypassBorrowLimit)
}

// WithdrawAll burns every asset share and returns the amount to pay out,
// truncated to the mint's precision. The truncated dust stays in the
// liquidity vault as insurance fees.
func (ba *BankAccountWrapper) WithdrawAll(log Log) (decimal.Decimal, error) {
	if err := ba.ClaimEmissions(log, ba.now()); err != nil {
		return decimal.Zero, err
	}

	balance := ba.Balance
	bank := ba.Bank

	if err := bank.AssertOperationalMode(false); err != nil {
		return decimal.Zero, err
	}

	totalAssetShares := balance.AssetShares
	currentLiabilityAmount := bank.GetLiabilityAmount(balance.LiabilityShares)
	if !currentLiabilityAmount.LessThan(EMPTY_BALANCE_THRESHOLD) {
		return decimal.Zero, errors.Wrap(NoAssetFound, "balance holds a liability")
	}

	currentAssetAmount := bank.GetAssetAmount(totalAssetShares)

	log.Debug().Msgf("Withdrawing all: %s", currentAssetAmount)

	if !currentAssetAmount.GreaterThan(ZERO_AMOUNT_THRESHOLD) {
		return decimal.Zero, NoAssetFound
	}

	if err := balance.Close(ba.now()); err != nil {
		return decimal.Zero, err
	}

	if err := bank.ChangeAssetShares(totalAssetShares.Neg(), false); err != nil {
		return decimal.Zero, err
	}

	if err := bank.CheckUtilizationRatio(); err != nil {
		return decimal.Zero, err
	}

	withdrawAmount := bank.NativeFloor(currentAssetAmount)
	bank.CollectedInsuranceFeesOutstanding = bank.CollectedInsuranceFeesOutstanding.Add(currentAssetAmount.Sub(withdrawAmount))

	return withdrawAmount, nil
}

// RepayAll burns every liability share and returns the amount the payer owes,
// rounded up to the mint's precision. The rounding surplus goes to insurance.
func (ba *BankAccountWrapper) RepayAll(log Log) (decimal.Decimal, error) {
	if err := ba.ClaimEmissions(log, ba.now()); err != nil {
		return decimal.Zero, err
	}

	balance := ba.Balance
	bank := ba.Bank

	if err := bank.AssertOperationalMode(false); err != nil {
		return decimal.Zero, err
	}

	totalLiabilityShares := balance.LiabilityShares
	currentLiabilityAmount := bank.GetLiabilityAmount(totalLiabilityShares)
	if currentLiabilityAmount.LessThan(EMPTY_BALANCE_THRESHOLD) {
		return decimal.Zero, NoLiabilityFound
	}

	currentAssetAmount := bank.GetAssetAmount(balance.AssetShares)
	if !currentAssetAmount.LessThan(EMPTY_BALANCE_THRESHOLD) {
		return decimal.Zero, errors.Wrap(NoLiabilityFound, "balance holds an asset")
	}

	if err := balance.Close(ba.now()); err != nil {
		return decimal.Zero, err
	}

	if err := bank.ChangeLiabilityShares(totalLiabilityShares.Neg(), true); err != nil {
		return decimal.Zero, err
	}

	repayAmount := bank.NativeCeil(currentLiabilityAmount)
	bank.CollectedInsuranceFeesOutstanding = bank.CollectedInsuranceFeesOutstanding.Add(repayAmount.Sub(currentLiabilityAmount))

	return repayAmount, nil
}

func (ba *BankAccountWrapper) CloseBalance(log Log) error {
	if err := ba.ClaimEmissions(log, ba.now()); err != nil {
		return err
	}

	balance := ba.Balance
	bank := ba.Bank

	currentLiabilityAmount, currentAssetAmount := bank.GetLiabilityAmount(balance.LiabilityShares), bank.GetAssetAmount(balance.AssetShares)

	if !currentLiabilityAmount.LessThan(EMPTY_BALANCE_THRESHOLD) {
		log.Error().Msgf("Balance has existing debt")
		return errors.Wrap(IllegalBalanceState, "balance has existing debt")
	}

	if !currentAssetAmount.LessThan(EMPTY_BALANCE_THRESHOLD) {
		log.Error().Msgf("Balance has existing asset")
		return errors.Wrap(IllegalBalanceState, "balance has existing asset")
	}

	// whatever dust is left leaves the bank totals with the balance
	if err := bank.ChangeAssetShares(balance.AssetShares.Neg(), true); err != nil {
		return err
	}
	if err := bank.ChangeLiabilityShares(balance.LiabilityShares.Neg(), true); err != nil {
		return err
	}

	return balance.Close(ba.now())
}

func (ba *BankAccountWrapper) IncreaseBalanceInternal(log Log, balanceDelta decimal.Decimal, operationType BalanceIncreaseType) error {
	log.Debug().Msgf("Balance increase: %s of (type: %s)", balanceDelta, operationType.String())
	if err := ba.ClaimEmissions(log, ba.now()); err != nil {
		return err
	}

	balance := ba.Balance
	bank := ba.Bank

	currentLiabilityShares := balance.LiabilityShares
	currentLiabilityAmount := bank.GetLiabilityAmount(currentLiabilityShares)
	liabilityAmountDecrease, assetAmountIncrease := decimal.Min(currentLiabilityAmount, balanceDelta), decimal.Max(balanceDelta.Sub(currentLiabilityAmount), decimal.Zero)

	switch operationType {
	case BalanceIncreaseTypeRepayOnly:
		if !assetAmountIncrease.IsZero() {
			return OperationRepayOnly
		}
	case BalanceIncreaseTypeDepositOnly:
		if !liabilityAmountDecrease.IsZero() {
			return OperationDepositOnly
		}
	default:
	}

	if err := bank.AssertOperationalMode(assetAmountIncrease.GreaterThan(ZERO_AMOUNT_THRESHOLD)); err != nil {
		return err
	}

	assetSharesIncrease, err := bank.GetAssetShares(assetAmountIncrease)
	if err != nil {
		return err
	}

	if err := balance.ChangeAssetShares(assetSharesIncrease); err != nil {
		return err
	}
	if err := bank.ChangeAssetShares(assetSharesIncrease, operationType == BalanceIncreaseTypeBypassDepositLimit); err != nil {
		return err
	}

	// paying off the whole debt burns every share so no dust is left behind
	liabilitySharesDecrease := currentLiabilityShares
	if liabilityAmountDecrease.LessThan(currentLiabilityAmount) {
		liabilitySharesDecrease, err = bank.GetLiabilitySharesRoundDown(liabilityAmountDecrease)
		if err != nil {
			return err
		}
	}

	if err := balance.ChangeLiabilityShares(liabilitySharesDecrease.Neg()); err != nil {
		return err
	}
	if err := bank.ChangeLiabilityShares(liabilitySharesDecrease.Neg(), true); err != nil {
		return err
	}

	return bank.CheckUtilizationRatio()
}

func (ba *BankAccountWrapper) DecreaseBalanceInternal(log Log, balanceDelta decimal.Decimal, operationType BalanceDecreaseType) error {
	log.Debug().Msgf("Balance decrease: %s of (type: %s)", balanceDelta, operationType.String())
	if err := ba.ClaimEmissions(log, ba.now()); err != nil {
		return err
	}

	balance := ba.Balance
	bank := ba.Bank

	currentAssetShares := balance.AssetShares
	currentAssetAmount := bank.GetAssetAmount(currentAssetShares)

	assetAmountDecrease, liabilityAmountIncrease := decimal.Min(currentAssetAmount, balanceDelta), decimal.Max(balanceDelta.Sub(currentAssetAmount), decimal.Zero)

	switch operationType {
	case BalanceDecreaseTypeWithdrawOnly:
		if !liabilityAmountIncrease.IsZero() {
			return OperationWithdrawOnly
		}
	case BalanceDecreaseTypeBorrowOnly:
		if !assetAmountDecrease.IsZero() {
			return OperationBorrowOnly
		}
	default:
	}

	if err := bank.AssertOperationalMode(liabilityAmountIncrease.GreaterThan(ZERO_AMOUNT_THRESHOLD)); err != nil {
		return err
	}

	assetSharesDecrease := currentAssetShares
	if assetAmountDecrease.LessThan(currentAssetAmount) {
		shares, err := bank.GetAssetSharesRoundUp(assetAmountDecrease)
		if err != nil {
			return err
		}
		assetSharesDecrease = decimal.Min(shares, currentAssetShares)
	}

	if err := balance.ChangeAssetShares(assetSharesDecrease.Neg()); err != nil {
		return err
	}
	if err := bank.ChangeAssetShares(assetSharesDecrease.Neg(), false); err != nil {
		return err
	}

	liabilitySharesIncrease, err := bank.GetLiabilityShares(liabilityAmountIncrease)
	if err != nil {
		return err
	}

	if err := balance.ChangeLiabilityShares(liabilitySharesIncrease); err != nil {
		return err
	}
	if err := bank.ChangeLiabilityShares(liabilitySharesIncrease, operationType == BalanceDecreaseTypeBypassBorrowLimit); err != nil {
		return err
	}

	return bank.CheckUtilizationRatio()
}

// ClaimEmissions moves whatever the balance earned since its last update
// from the bank's remaining emissions into the balance's outstanding amount.
func (ba *BankAccountWrapper) ClaimEmissions(log Log, currentTimestamp int64) error {
	var balanceAmount decimal.Decimal

	side, err := ba.Balance.GetSide()
	if err != nil {
		return err
	}

	switch {
	case side == BalanceSideAssets && ba.Bank.GetFlag(BankFlagsLendingActive):
		balanceAmount = ba.Bank.GetAssetAmount(ba.Balance.AssetShares)
	case side == BalanceSideLiabilities && ba.Bank.GetFlag(BankFlagsBorrowActive):
		balanceAmount = ba.Bank.GetLiabilityAmount(ba.Balance.LiabilityShares)
	default:
		ba.Balance.LastUpdate = currentTimestamp
		return nil
	}

	lastUpdate := ba.Balance.LastUpdate
	if lastUpdate < MIN_EMISSIONS_START_TIME {
		lastUpdate = currentTimestamp
	}

	period := currentTimestamp - lastUpdate
	ba.Balance.LastUpdate = currentTimestamp
	if period <= 0 {
		return nil
	}

	emissions := CalcEmissions(period, balanceAmount, ba.Bank.EmissionsRate)
	emissionsReal := decimal.Min(emissions, ba.Bank.EmissionsRemaining)

	if !emissions.Equal(emissionsReal) {
		log.Warn().Msgf("Emissions capped: %s (%s calculated) for period %ds", emissionsReal, emissions, period)
	}

	ba.Balance.EmissionsOutstanding = ba.Balance.EmissionsOutstanding.Add(emissionsReal)
	ba.Bank.EmissionsRemaining = ba.Bank.EmissionsRemaining.Sub(emissionsReal)

	return nil
}

// SettleEmissionsAndGetTransferAmount claims, then returns the outstanding
// emissions truncated to the mint's precision. The remainder goes back to
// the bank.
func (ba *BankAccountWrapper) SettleEmissionsAndGetTransferAmount(log Log) (decimal.Decimal, error) {
	if err := ba.ClaimEmissions(log, ba.now()); err != nil {
		return decimal.Zero, err
	}

	emissionsOutstanding := ba.Balance.EmissionsOutstanding
	emissionsOutstandingFloored := ba.Bank.NativeFloor(emissionsOutstanding)

	if remainder := emissionsOutstanding.Sub(emissionsOutstandingFloored); remainder.IsPositive() {
		ba.Bank.EmissionsRemaining = ba.Bank.EmissionsRemaining.Add(remainder)
	}
	ba.Balance.EmissionsOutstanding = decimal.Zero

	return emissionsOutstandingFloored, nil
}

func CalcEmissions(period int64, balanceAmount decimal.Decimal, emissionsRate decimal.Decimal) decimal.Decimal {
	if period <= 0 || !emissionsRate.IsPositive() || !balanceAmount.IsPositive() {
		return decimal.Zero
	}

	return MulFloor(balanceAmount.Mul(emissionsRate), decimal.NewFromInt(period).Div(decimal.NewFromInt(SECONDS_PER_YEAR)))
}

// BankAccountWithPriceFeed is a balance valued against its bank's resolved price.
type BankAccountWithPriceFeed struct {
	Bank      *Bank
	Balance   *Balance
	PriceFeed PriceAdapter
}

func (ba *BankAccountWithPriceFeed) CalcWeightedAssetsAndLiabsValues(requirementType RequirementType) (decimal.Decimal, decimal.Decimal, error) {
	side, err := ba.Balance.GetSide()
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	switch side {
	case BalanceSideAssets:
		assets, err := ba.CalcWeightedAssets(requirementType)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return assets, decimal.Zero, nil
	case BalanceSideLiabilities:
		liabs, err := ba.CalcWeightedLiabs(requirementType)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return decimal.Zero, liabs, nil
	}
	return decimal.Zero, decimal.Zero, nil
}

// CalcWeightedLiabs values the debt at the high price. Isolated debt counts
// like any other.
func (ba *BankAccountWithPriceFeed) CalcWeightedLiabs(requirementType RequirementType) (decimal.Decimal, error) {
	if ba.PriceFeed == nil {
		return decimal.Zero, errors.Wrapf(MissingPrice, "bank %s", ba.Bank.Name)
	}

	liabilityWeight := ba.Bank.BankConfig.GetWeight(requirementType, BalanceSideLiabilities)

	higherPrice, err := ba.PriceFeed.GetPriceOfType(requirementType.GetOraclePriceType(), High)
	if err != nil {
		return decimal.Zero, err
	}

	amount := ba.Bank.GetLiabilityAmount(ba.Balance.LiabilityShares)
	return CalcValue(amount, higherPrice, &liabilityWeight)
}

// CalcWeightedAssets values collateral at the low price. Isolated assets are
// never collateral.
func (ba *BankAccountWithPriceFeed) CalcWeightedAssets(requirementType RequirementType) (decimal.Decimal, error) {
	switch ba.Bank.BankConfig.RiskTier {
	case Collateral:
		if ba.PriceFeed == nil {
			return decimal.Zero, errors.Wrapf(MissingPrice, "bank %s", ba.Bank.Name)
		}

		assetWeight := ba.Bank.BankConfig.GetWeight(requirementType, BalanceSideAssets)

		lowPrice, err := ba.PriceFeed.GetPriceOfType(requirementType.GetOraclePriceType(), Low)
		if err != nil {
			return decimal.Zero, err
		}

		if requirementType == Initial {
			if discount, ok := ba.Bank.MaybeGetAssetWeightInitDiscount(lowPrice); ok {
				assetWeight = assetWeight.Mul(discount)
			}
		}

		amount := ba.Bank.GetAssetAmount(ba.Balance.AssetShares)
		return CalcValue(amount, lowPrice, &assetWeight)
	default:
		return decimal.Zero, nil
	}
}

func (ba *BankAccountWithPriceFeed) IsEmpty(side BalanceSide) bool {
	return ba.Balance.IsEmpty(side)
}
