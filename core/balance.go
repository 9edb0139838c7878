package core

import (
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Balance is one account's position in one bank, tracked in shares.
type Balance struct {
	BankId  uuid.UUID `json:"bankId" yaml:"bankId"`
	BankTag AssetTag  `json:"bankTag" yaml:"bankTag"`
	Active  bool      `json:"active" yaml:"active"`

	AssetShares          decimal.Decimal `json:"assetShares" yaml:"assetShares"`
	LiabilityShares      decimal.Decimal `json:"liabilityShares" yaml:"liabilityShares"`
	EmissionsOutstanding decimal.Decimal `json:"emissionsOutstanding" yaml:"emissionsOutstanding"`
	LastUpdate           int64           `json:"lastUpdate" yaml:"lastUpdate"`
}

func NewBalance(bankId uuid.UUID, tag AssetTag, now int64) Balance {
	return Balance{
		BankId:               bankId,
		BankTag:              tag,
		Active:               true,
		AssetShares:          decimal.Zero,
		LiabilityShares:      decimal.Zero,
		EmissionsOutstanding: decimal.Zero,
		LastUpdate:           now,
	}
}

func (b *Balance) IsEmpty(side BalanceSide) bool {
	switch side {
	case BalanceSideAssets:
		return b.AssetShares.LessThan(EMPTY_BALANCE_THRESHOLD)
	case BalanceSideLiabilities:
		return b.LiabilityShares.LessThan(EMPTY_BALANCE_THRESHOLD)
	default:
		return true
	}
}

func (b *Balance) ChangeAssetShares(delta decimal.Decimal) error {
	assetShares := b.AssetShares.Add(delta)
	if assetShares.IsNegative() {
		return errors.Wrapf(MathError, "asset shares %s below zero", assetShares)
	}
	b.AssetShares = assetShares
	return nil
}

func (b *Balance) ChangeLiabilityShares(delta decimal.Decimal) error {
	liabilityShares := b.LiabilityShares.Add(delta)
	if liabilityShares.IsNegative() {
		return errors.Wrapf(MathError, "liability shares %s below zero", liabilityShares)
	}
	b.LiabilityShares = liabilityShares
	return nil
}

// Close frees the slot. Unclaimed emissions keep it open.
func (b *Balance) Close(now int64) error {
	if b.EmissionsOutstanding.GreaterThanOrEqual(EMPTY_BALANCE_THRESHOLD) {
		return CannotCloseOutstandingEmissions
	}
	b.EmptyDeactivated(now)
	return nil
}

func (b *Balance) GetSide() (BalanceSide, error) {
	assetShares := b.AssetShares
	liabilityShares := b.LiabilityShares

	if assetShares.GreaterThan(ZERO_AMOUNT_THRESHOLD) && liabilityShares.GreaterThan(ZERO_AMOUNT_THRESHOLD) {
		return BalanceSideEmpty, IllegalBalanceState
	}

	if assetShares.GreaterThanOrEqual(EMPTY_BALANCE_THRESHOLD) {
		return BalanceSideAssets, nil
	}

	if liabilityShares.GreaterThanOrEqual(EMPTY_BALANCE_THRESHOLD) {
		return BalanceSideLiabilities, nil
	}

	return BalanceSideEmpty, nil
}

func (b *Balance) EmptyDeactivated(now int64) {
	b.Active = false
	b.BankId = uuid.Nil
	b.BankTag = AssetTagDefault
	b.AssetShares = decimal.Zero
	b.LiabilityShares = decimal.Zero
	b.EmissionsOutstanding = decimal.Zero
	b.LastUpdate = now
}

func (b *Balance) ComputeQuantity(bank *Bank) (decimal.Decimal, decimal.Decimal) {
	assetsQuantity := bank.GetAssetAmount(b.AssetShares)
	liabilitiesQuantity := bank.GetLiabilityAmount(b.LiabilityShares)
	return assetsQuantity, liabilitiesQuantity
}

type BalanceIncreaseType uint8

const (
	BalanceIncreaseTypeAny                BalanceIncreaseType = 1 << 0
	BalanceIncreaseTypeRepayOnly          BalanceIncreaseType = 1 << 1
	BalanceIncreaseTypeDepositOnly        BalanceIncreaseType = 1 << 2
	BalanceIncreaseTypeBypassDepositLimit BalanceIncreaseType = 1 << 3
)

func (b BalanceIncreaseType) String() string {
	switch b {
	case BalanceIncreaseTypeAny:
		return "Any"
	case BalanceIncreaseTypeRepayOnly:
		return "RepayOnly"
	case BalanceIncreaseTypeDepositOnly:
		return "DepositOnly"
	case BalanceIncreaseTypeBypassDepositLimit:
		return "BypassDepositLimit"
	default:
		return "Unknown"
	}
}

type BalanceDecreaseType uint8

const (
	BalanceDecreaseTypeAny               BalanceDecreaseType = 1 << 0
	BalanceDecreaseTypeWithdrawOnly      BalanceDecreaseType = 1 << 1
	BalanceDecreaseTypeBorrowOnly        BalanceDecreaseType = 1 << 2
	BalanceDecreaseTypeBypassBorrowLimit BalanceDecreaseType = 1 << 3
)

func (b BalanceDecreaseType) String() string {
	switch b {
	case BalanceDecreaseTypeAny:
		return "Any"
	case BalanceDecreaseTypeWithdrawOnly:
		return "WithdrawOnly"
	case BalanceDecreaseTypeBorrowOnly:
		return "BorrowOnly"
	case BalanceDecreaseTypeBypassBorrowLimit:
		return "BypassBorrowLimit"
	default:
		return "Unknown"
	}
}
