package core

import (
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type RiskEngine struct {
	MarginfiAccount       *Account
	BankAccountsWithPrice []*BankAccountWithPriceFeed
}

// NewRiskEngine loads every active balance of account with its bank and
// price. A balance whose bank or price is missing fails the load.
func NewRiskEngine(account *Account, banks BankSet, prices PriceSet) (*RiskEngine, error) {
	return NewRiskEngineExcluding(account, banks, prices, uuid.Nil)
}

// NewRiskEngineExcluding is NewRiskEngine without the balance in excludeBankId.
func NewRiskEngineExcluding(account *Account, banks BankSet, prices PriceSet, excludeBankId uuid.UUID) (*RiskEngine, error) {
	balances := account.ActiveBalances()
	bankAccountsWithPrice := make([]*BankAccountWithPriceFeed, 0, len(balances))
	for _, balance := range balances {
		if balance.BankId == excludeBankId {
			continue
		}
		bank, ok := banks[balance.BankId]
		if !ok {
			return nil, errors.Wrapf(MissingPrice, "bank %s not supplied", balance.BankId)
		}
		priceFeed, ok := prices[balance.BankId]
		if !ok || priceFeed == nil {
			return nil, errors.Wrapf(MissingPrice, "bank %s", bank.Name)
		}
		bankAccountsWithPrice = append(bankAccountsWithPrice, &BankAccountWithPriceFeed{
			Bank:      bank,
			Balance:   balance,
			PriceFeed: priceFeed,
		})
	}

	return &RiskEngine{
		MarginfiAccount:       account,
		BankAccountsWithPrice: bankAccountsWithPrice,
	}, nil
}

// CheckAccountInitHealth is skipped while the account is inside a
// flashloan, the closing instruction runs it once instead.
func CheckAccountInitHealth(account *Account, banks BankSet, prices PriceSet) error {
	if account.GetFlag(InFlashloanFlag) {
		return nil
	}

	riskEngine, err := NewRiskEngine(account, banks, prices)
	if err != nil {
		return err
	}

	return riskEngine.CheckAccountHealth(Initial)
}

func (r *RiskEngine) GetAccountHealthComponents(requirementType RequirementType) (decimal.Decimal, decimal.Decimal, error) {
	totalAssets := decimal.Zero
	totalLiabilities := decimal.Zero
	for _, a := range r.BankAccountsWithPrice {
		assets, liabilities, err := a.CalcWeightedAssetsAndLiabsValues(requirementType)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		totalAssets = totalAssets.Add(assets)
		totalLiabilities = totalLiabilities.Add(liabilities)
	}
	return totalAssets, totalLiabilities, nil
}

func (r *RiskEngine) GetAccountHealth(requirementType RequirementType) (decimal.Decimal, error) {
	totalAssets, totalLiabilities, err := r.GetAccountHealthComponents(requirementType)
	if err != nil {
		return decimal.Zero, err
	}
	return totalAssets.Sub(totalLiabilities), nil
}

func (r *RiskEngine) CheckAccountHealth(requirementType RequirementType) error {
	totalAssets, totalLiabilities, err := r.GetAccountHealthComponents(requirementType)
	if err != nil {
		return err
	}
	if totalAssets.LessThan(totalLiabilities) {
		return errors.Wrapf(RiskEngineInitRejected, "%s assets %s, liabilities %s", requirementType, totalAssets, totalLiabilities)
	}
	return r.CheckAccountRiskTiers()
}

func (r *RiskEngine) findBalance(bankId uuid.UUID) *BankAccountWithPriceFeed {
	for _, a := range r.BankAccountsWithPrice {
		if a.Balance.BankId == bankId {
			return a
		}
	}
	return nil
}

// checkLiabilityBalance requires a pure liability position in bankId.
func (r *RiskEngine) checkLiabilityBalance(bankId uuid.UUID) error {
	liabilityBankBalance := r.findBalance(bankId)
	if liabilityBankBalance == nil {
		return LendingAccountBalanceNotFound
	}
	if liabilityBankBalance.IsEmpty(BalanceSideLiabilities) {
		return errors.Wrap(IllegalLiquidation, "no liability to liquidate")
	}
	if !liabilityBankBalance.IsEmpty(BalanceSideAssets) {
		return errors.Wrap(IllegalLiquidation, "liability bank balance holds assets")
	}
	return nil
}

func (r *RiskEngine) CheckPreLiquidationConditionAndGetAccountHealth(bankId uuid.UUID) (decimal.Decimal, error) {
	if r.MarginfiAccount.GetFlag(InFlashloanFlag) {
		return decimal.Zero, AccountInFlashloan
	}

	if err := r.checkLiabilityBalance(bankId); err != nil {
		return decimal.Zero, err
	}

	accountHealth, err := r.GetAccountHealth(Maintenance)
	if err != nil {
		return decimal.Zero, err
	}

	if !accountHealth.IsNegative() {
		return decimal.Zero, errors.Wrapf(IllegalLiquidation, "account is healthy (%s)", accountHealth)
	}
	return accountHealth, nil
}

/*
Checks the liquidatee after the liquidation:
1. The liability being liquidated is not fully repaid.
2. Maintenance health is still at or below zero, so the liquidator did not seize more than needed.
3. Maintenance health went up.
*/
func (r *RiskEngine) CheckPostLiquidationConditionAndGetAccountHealth(bankId uuid.UUID, preLiquidationHealth decimal.Decimal) (decimal.Decimal, error) {
	if r.MarginfiAccount.GetFlag(InFlashloanFlag) {
		return decimal.Zero, AccountInFlashloan
	}

	if err := r.checkLiabilityBalance(bankId); err != nil {
		return decimal.Zero, err
	}

	accountHealth, err := r.GetAccountHealth(Maintenance)
	if err != nil {
		return decimal.Zero, err
	}

	if accountHealth.IsPositive() {
		return decimal.Zero, errors.Wrapf(IllegalLiquidation, "liquidation too severe, health %s", accountHealth)
	}

	if accountHealth.LessThanOrEqual(preLiquidationHealth) {
		return decimal.Zero, errors.Wrapf(IllegalLiquidation, "health did not improve: %s -> %s", preLiquidationHealth, accountHealth)
	}

	return accountHealth, nil
}

// CheckAccountBankrupt succeeds only for an account whose equity assets are
// below both its liabilities and threshold while some debt remains.
func (r *RiskEngine) CheckAccountBankrupt(log Log, threshold decimal.Decimal) error {
	if r.MarginfiAccount.GetFlag(InFlashloanFlag) {
		return AccountInFlashloan
	}

	totalAssets, totalLiabilities, err := r.GetAccountHealthComponents(Equity)
	if err != nil {
		return err
	}

	log.Debug().Msgf("totalAssets: %s, totalLiabilities: %s", totalAssets, totalLiabilities)

	if !totalAssets.LessThan(totalLiabilities) {
		return AccountNotBankrupt
	}

	if !totalAssets.LessThan(threshold) {
		return errors.Wrapf(AccountNotBankrupt, "assets %s above threshold %s", totalAssets, threshold)
	}

	if !totalLiabilities.GreaterThan(ZERO_AMOUNT_THRESHOLD) {
		return AccountNotBankrupt
	}

	return nil
}

func (r *RiskEngine) CheckAccountRiskTiers() error {
	balancesWithLiablities := []*BankAccountWithPriceFeed{}
	for _, a := range r.BankAccountsWithPrice {
		if !a.Balance.IsEmpty(BalanceSideLiabilities) {
			balancesWithLiablities = append(balancesWithLiablities, a)
		}
	}
	nBalancesWithLiablities := len(balancesWithLiablities)

	isInIsolatedRiskTier := false
	for _, a := range balancesWithLiablities {
		if a.Bank.BankConfig.RiskTier == Isolated {
			isInIsolatedRiskTier = true
		}
	}
	if isInIsolatedRiskTier && nBalancesWithLiablities != 1 {
		return IsolatedAccountIllegalState
	}
	return nil
}
