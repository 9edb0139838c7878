package core

import (
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type LiquidationBalances struct {
	LiquidatorAssetBalance     Balance `json:"liquidatorAssetBalance"`
	LiquidatorLiabilityBalance Balance `json:"liquidatorLiabilityBalance"`
	LiquidateeAssetBalance     Balance `json:"liquidateeAssetBalance"`
	LiquidateeLiabilityBalance Balance `json:"liquidateeLiabilityBalance"`
}

type LiquidateResult struct {
	LiquidatorId    uuid.UUID `json:"liquidatorId"`
	LiquidateeId    uuid.UUID `json:"liquidateeId"`
	AssetBankId     uuid.UUID `json:"assetBankId"`
	LiabilityBankId uuid.UUID `json:"liabilityBankId"`

	PreBalances          LiquidationBalances `json:"preBalances"`
	PostBalances         LiquidationBalances `json:"postBalances"`
	LiquidateePreHealth  decimal.Decimal     `json:"liquidateePreHealth"`
	LiquidateePostHealth decimal.Decimal     `json:"liquidateePostHealth"`

	AssetAmount       decimal.Decimal `json:"assetAmount"`
	AssetValue        decimal.Decimal `json:"assetValue"`
	LiquidatorPaid    decimal.Decimal `json:"liquidatorPaid"`
	LiquidateeRepaid  decimal.Decimal `json:"liquidateeRepaid"`
	InsuranceFee      decimal.Decimal `json:"insuranceFee"`
	TriggeredBankrupt bool            `json:"triggeredBankrupt"`
}

// LiquidationAmounts splits the value of the seized collateral. The
// liquidator takes on value*(1-liquidatorFee) of debt, the liquidatee is
// relieved of value*(1-liquidatorFee-insuranceFee), and the difference is the
// insurance fee. All three are in liability bank units.
func LiquidationAmounts(assetAmount, assetPrice, liabPrice, liquidatorFee, insuranceFee decimal.Decimal) (liquidatorPays, liquidateeRepays, insurance decimal.Decimal, err error) {
	value := assetAmount.Mul(assetPrice)

	liquidatorPays, err = DivFloor(value.Mul(ONE.Sub(liquidatorFee)), liabPrice)
	if err != nil {
		return
	}
	liquidateeRepays, err = DivFloor(value.Mul(ONE.Sub(liquidatorFee).Sub(insuranceFee)), liabPrice)
	if err != nil {
		return
	}
	insurance = liquidatorPays.Sub(liquidateeRepays)
	return
}

func snapshotBalance(account *Account, bankId uuid.UUID) Balance {
	if b := account.GetBalance(bankId); b != nil {
		return *b
	}
	return Balance{}
}

func liquidationBalances(liquidator, liquidatee *Account, assetBankId, liabBankId uuid.UUID) LiquidationBalances {
	return LiquidationBalances{
		LiquidatorAssetBalance:     snapshotBalance(liquidator, assetBankId),
		LiquidatorLiabilityBalance: snapshotBalance(liquidator, liabBankId),
		LiquidateeAssetBalance:     snapshotBalance(liquidatee, assetBankId),
		LiquidateeLiabilityBalance: snapshotBalance(liquidatee, liabBankId),
	}
}

// Liquidate lets liquidator buy assetAmount of liquidatee's collateral in
// assetBank by taking over liquidatee's debt in liabBank at a discount.
func (p *Processor) Liquidate(env Env, liquidator, liquidatee *Account, assetBankId, liabBankId uuid.UUID, assetAmount decimal.Decimal) (*Outcome, error) {
	return p.transact(env, ActionLiquidate, liquidator.Id, []*Account{liquidator, liquidatee}, func(out *Outcome) error {
		return p.liquidate(env, out, liquidator, liquidatee, assetBankId, liabBankId, assetAmount)
	})
}

func (p *Processor) liquidate(env Env, out *Outcome, liquidator, liquidatee *Account, assetBankId, liabBankId uuid.UUID, assetAmount decimal.Decimal) error {
	if liquidator == liquidatee || liquidator.Id == liquidatee.Id {
		return errors.Wrap(IllegalLiquidation, "liquidator and liquidatee are the same account")
	}
	if assetBankId == liabBankId {
		return errors.Wrap(IllegalLiquidation, "asset and liability bank are the same")
	}
	if !assetAmount.IsPositive() {
		return errors.Wrap(IllegalLiquidation, "asset amount must be positive")
	}
	for _, a := range []*Account{liquidator, liquidatee} {
		if err := checkAccountUsable(a); err != nil {
			return err
		}
	}

	assetBank, err := env.bank(assetBankId)
	if err != nil {
		return err
	}
	liabBank, err := env.bank(liabBankId)
	if err != nil {
		return err
	}

	now := p.now()
	if err := assetBank.AccrueInterest(p.log, now); err != nil {
		return err
	}
	if err := liabBank.AccrueInterest(p.log, now); err != nil {
		return err
	}

	prices, err := p.resolvePrices(env, []uuid.UUID{assetBankId, liabBankId}, liquidatee)
	if err != nil {
		return err
	}

	preEngine, err := NewRiskEngine(liquidatee, env.Banks, prices)
	if err != nil {
		return err
	}
	preHealth, err := preEngine.CheckPreLiquidationConditionAndGetAccountHealth(liabBankId)
	if err != nil {
		return err
	}

	result := &LiquidateResult{
		LiquidatorId:        liquidator.Id,
		LiquidateeId:        liquidatee.Id,
		AssetBankId:         assetBankId,
		LiabilityBankId:     liabBankId,
		PreBalances:         liquidationBalances(liquidator, liquidatee, assetBankId, liabBankId),
		LiquidateePreHealth: preHealth,
		AssetAmount:         assetAmount,
	}

	assetPrice, err := p.unbiasedPrice(prices, assetBank)
	if err != nil {
		return err
	}
	liabPrice, err := p.unbiasedPrice(prices, liabBank)
	if err != nil {
		return err
	}

	result.AssetValue = assetAmount.Mul(assetPrice)
	result.LiquidatorPaid, result.LiquidateeRepaid, result.InsuranceFee, err = LiquidationAmounts(assetAmount, assetPrice, liabPrice, p.cfg.LiquidatorFee, p.cfg.InsuranceFee)
	if err != nil {
		return err
	}

	// collateral leaves the liquidatee and lands with the liquidator
	liquidateeAsset, err := FindBankAccountWrapper(liquidatee, assetBank, WithClock(p.clk))
	if err != nil {
		return errors.Wrap(IllegalLiquidation, "liquidatee has no collateral in asset bank")
	}
	held := assetBank.GetAssetAmount(liquidateeAsset.Balance.AssetShares)
	if held.LessThan(assetAmount) {
		return errors.Wrapf(IllegalLiquidation, "liquidatee holds %s, asked to seize %s", held, assetAmount)
	}
	if err := liquidateeAsset.Withdraw(p.log, assetAmount); err != nil {
		return err
	}
	closeIfEmpty(liquidateeAsset.Balance, now)

	liquidatorAsset, err := FindOrCreateBankAccountWrapper(p.clk, liquidator, assetBank)
	if err != nil {
		return err
	}
	if err := liquidatorAsset.IncreaseBalanceInLiquidation(p.log, assetAmount); err != nil {
		return err
	}

	// debt moves the other way, minus the fees
	liquidatorLiab, err := FindOrCreateBankAccountWrapper(p.clk, liquidator, liabBank)
	if err != nil {
		return err
	}
	if err := liquidatorLiab.DecreaseBalanceInLiquidation(p.log, result.LiquidatorPaid); err != nil {
		return err
	}

	liquidateeLiab, err := FindBankAccountWrapper(liquidatee, liabBank, WithClock(p.clk))
	if err != nil {
		return err
	}
	if err := liquidateeLiab.Repay(p.log, result.LiquidateeRepaid); err != nil {
		return errors.Wrap(IllegalLiquidation, err.Error())
	}

	if err := out.move(liabBank, VaultLiquidity, VaultInsurance, result.InsuranceFee); err != nil {
		return err
	}

	postEngine, err := NewRiskEngine(liquidatee, env.Banks, prices)
	if err != nil {
		return err
	}
	result.LiquidateePostHealth, err = postEngine.CheckPostLiquidationConditionAndGetAccountHealth(liabBankId, preHealth)
	if err != nil {
		return err
	}

	if err := p.checkInitHealth(env, liquidator); err != nil {
		return err
	}

	out.record(liquidator.Id, ActionLiquidate, assetBankId, assetAmount)
	out.record(liquidatee.Id, ActionRepay, liabBankId, result.LiquidateeRepaid)

	p.log.Info().Msgf("Liquidated %s %s of %s: liquidator paid %s %s, insurance fee %s, health %s -> %s",
		assetAmount, assetBank.Name, liquidatee.Id, result.LiquidatorPaid, liabBank.Name, result.InsuranceFee, preHealth, result.LiquidateePostHealth)
	out.liquidations = append(out.liquidations, result)

	if bankruptEngine, err := NewRiskEngine(liquidatee, env.Banks, prices); err == nil && bankruptEngine.CheckAccountBankrupt(p.log, p.cfg.BankruptThreshold) == nil {
		bankruptcy, err := p.handleBankruptcy(env, out, liquidatee, liabBankId)
		if err != nil {
			return err
		}
		out.Bankruptcy = bankruptcy
		result.TriggeredBankrupt = true
	}

	result.PostBalances = liquidationBalances(liquidator, liquidatee, assetBankId, liabBankId)
	out.Liquidation = result
	return nil
}

func (p *Processor) unbiasedPrice(prices PriceSet, bank *Bank) (decimal.Decimal, error) {
	feed, ok := prices[bank.Id]
	if !ok {
		return decimal.Zero, errors.Wrapf(MissingPrice, "bank %s", bank.Name)
	}
	price, err := feed.GetPriceOfType(Maintenance.GetOraclePriceType(), Original)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(InvalidPrice, "bank %s price %s", bank.Name, price)
	}
	return price, nil
}
