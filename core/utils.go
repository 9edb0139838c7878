package core

import (
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type PriceAdapter interface {
	GetPriceOfType(priceType OraclePriceType, bias PriceBias) (decimal.Decimal, error)
}

// PriceSet maps a bank id to the resolved price feed of that bank.
type PriceSet map[uuid.UUID]PriceAdapter

var shareUnit = decimal.New(1, -SHARE_PRECISION)

// DivFloor divides and truncates to SHARE_PRECISION places. Operands are
// never negative in share math, so truncation is a floor.
func DivFloor(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, errors.Wrap(MathError, "division by zero")
	}
	q, _ := a.QuoRem(b, SHARE_PRECISION)
	return q, nil
}

// DivCeil divides and rounds up to SHARE_PRECISION places.
func DivCeil(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, errors.Wrap(MathError, "division by zero")
	}
	q, r := a.QuoRem(b, SHARE_PRECISION)
	if !r.IsZero() {
		q = q.Add(shareUnit)
	}
	return q, nil
}

func MulFloor(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).RoundFloor(SHARE_PRECISION)
}

func MulCeil(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).RoundCeil(SHARE_PRECISION)
}

func CalcValue(amount decimal.Decimal, price decimal.Decimal, weight *decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, nil
	}

	var weighted_asset_amount decimal.Decimal
	if weight != nil {
		weighted_asset_amount = amount.Mul(*weight)
	} else {
		weighted_asset_amount = amount
	}

	value := weighted_asset_amount.Mul(price)
	return value, nil
}

func CalcAmount(value decimal.Decimal, price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsZero() {
		return decimal.Zero, errors.Wrap(MathError, "price is zero")
	}
	return DivFloor(value, price)
}

// ComputeLiquidationPriceForBank returns the oracle price of bankId at which the
// account reaches zero health for marginReqType, holding every other price
// fixed. Zero means the position cannot be liquidated by moves of this price.
func ComputeLiquidationPriceForBank(account *Account, banks BankSet, prices PriceSet, bankId uuid.UUID, marginReqType RequirementType) (decimal.Decimal, error) {
	bank, ok := banks[bankId]
	if !ok {
		return decimal.Zero, errors.Wrapf(BankAccountNotFound, "bank %s", bankId)
	}

	balance := account.GetBalance(bankId)
	if balance == nil || !balance.Active {
		return decimal.Zero, nil
	}

	others, err := NewRiskEngineExcluding(account, banks, prices, bankId)
	if err != nil {
		return decimal.Zero, err
	}
	assets, liabilities, err := others.GetAccountHealthComponents(marginReqType)
	if err != nil {
		return decimal.Zero, err
	}

	assetsQuantity, liabilitiesQuantity := balance.ComputeQuantity(bank)

	var liquidationPrice decimal.Decimal
	if balance.LiabilityShares.IsZero() {
		if liabilities.IsZero() || assetsQuantity.IsZero() {
			return decimal.Zero, nil
		}
		denominator := assetsQuantity.Mul(bank.BankConfig.GetWeight(marginReqType, BalanceSideAssets))
		if denominator.IsZero() {
			return decimal.Zero, nil
		}
		liquidationPrice = liabilities.Sub(assets).Div(denominator)
	} else {
		if liabilitiesQuantity.IsZero() {
			return decimal.Zero, nil
		}
		denominator := liabilitiesQuantity.Mul(bank.BankConfig.GetWeight(marginReqType, BalanceSideLiabilities))
		if denominator.IsZero() {
			return decimal.Zero, nil
		}
		liquidationPrice = assets.Sub(liabilities).Div(denominator)
	}
	if !liquidationPrice.IsPositive() {
		return decimal.Zero, nil
	}
	return liquidationPrice, nil
}

// ComputeNetApy weights each balance's lending or borrowing apr by its
// equity value and compounds the result hourly.
func ComputeNetApy(account *Account, banks BankSet, prices PriceSet) (decimal.Decimal, error) {
	riskEngine, err := NewRiskEngine(account, banks, prices)
	if err != nil {
		return decimal.Zero, err
	}
	totalAssets, totalLiabilities, err := riskEngine.GetAccountHealthComponents(Equity)
	if err != nil {
		return decimal.Zero, err
	}
	totalValue := totalAssets.Sub(totalLiabilities)
	if !totalValue.IsPositive() {
		return decimal.Zero, nil
	}

	weightedApr := decimal.Zero
	for _, ba := range riskEngine.BankAccountsWithPrice {
		lendingApr, borrowingApr, _, _, err := ba.Bank.BankConfig.InterestRateConfig.CalcInterestRate(ba.Bank.ComputeUtilizationRate())
		if err != nil {
			return decimal.Zero, err
		}

		assetValue, liabilityValue, err := ba.CalcWeightedAssetsAndLiabsValues(Equity)
		if err != nil {
			return decimal.Zero, err
		}

		weightedApr = weightedApr.
			Add(lendingApr.Mul(assetValue).Div(totalValue)).
			Sub(borrowingApr.Mul(liabilityValue).Div(totalValue))
	}

	return AprToApy(weightedApr), nil
}

/*
const aprToApy = (apr: number, compoundingFrequency = HOURS_PER_YEAR) =>

	(1 + apr / compoundingFrequency) ** compoundingFrequency - 1;
*/
func AprToApy(apr decimal.Decimal) decimal.Decimal {
	hoursPerYear := decimal.NewFromInt(HOURS_PER_YEAR)
	return (ONE.Add(apr.Div(hoursPerYear))).Pow(hoursPerYear).Sub(ONE).Round(8)
}

func CalcInterestRateAccrualStateChanges(log Log, timeDelta uint64, totalAssetsAmount decimal.Decimal, totalLiabilitiesAmount decimal.Decimal, interestRateConfig InterestRateConfig, assetShareValue decimal.Decimal, liabilityShareValue decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	utilizationRate, err := DivFloor(totalLiabilitiesAmount, totalAssetsAmount)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, err
	}

	lendingApr, borrowingApr, groupFeeApr, insuranceFeeApr, err := interestRateConfig.CalcInterestRate(utilizationRate)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, err
	}

	log.Debug().Msgf("timeDelta: %d, utilizationRate: %s, lendingApr: %s, borrowingApr: %s, groupFeeApr: %s, insuranceFeeApr: %s", timeDelta, utilizationRate, lendingApr, borrowingApr, groupFeeApr, insuranceFeeApr)

	accruedAssetShareValue := MulFloor(assetShareValue, ONE.Add(irPerPeriod(lendingApr, timeDelta)))
	accruedLiabilityShareValue := MulCeil(liabilityShareValue, ONE.Add(irPerPeriod(borrowingApr, timeDelta)))

	groupFeePaymentForPeriod := CalcInterestPaymentForPeriod(groupFeeApr, timeDelta, totalLiabilitiesAmount)
	insuranceFeePaymentForPeriod := CalcInterestPaymentForPeriod(insuranceFeeApr, timeDelta, totalLiabilitiesAmount)

	return accruedAssetShareValue, accruedLiabilityShareValue, groupFeePaymentForPeriod, insuranceFeePaymentForPeriod, nil
}

func irPerPeriod(apr decimal.Decimal, timeDelta uint64) decimal.Decimal {
	return apr.Mul(decimal.NewFromUint64(timeDelta)).DivRound(decimal.NewFromInt(SECONDS_PER_YEAR), SHARE_PRECISION+6)
}

func CalcInterestPaymentForPeriod(apr decimal.Decimal, timeDelta uint64, value decimal.Decimal) decimal.Decimal {
	return MulFloor(value, irPerPeriod(apr, timeDelta))
}
