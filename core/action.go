package core

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type ActionType uint8

const (
	ActionDeposit ActionType = iota + 1
	ActionBorrow
	ActionRepay
	ActionWithdraw
	ActionLiquidate
	ActionBankruptcy
	ActionWithdrawEmissions
	ActionAccrueBankInterest
	ActionCollectBankFees
	ActionCloseBalance
	ActionSetAccountFlag
	ActionUnsetAccountFlag
	ActionStartFlashloan
	ActionEndFlashloan
	ActionBatch
)

func (m ActionType) String() string {
	switch m {
	case ActionDeposit:
		return "Deposit"
	case ActionBorrow:
		return "Borrow"
	case ActionRepay:
		return "Repay"
	case ActionWithdraw:
		return "Withdraw"
	case ActionLiquidate:
		return "Liquidate"
	case ActionBankruptcy:
		return "Bankruptcy"
	case ActionWithdrawEmissions:
		return "WithdrawEmissions"
	case ActionAccrueBankInterest:
		return "AccrueBankInterest"
	case ActionCollectBankFees:
		return "CollectBankFees"
	case ActionCloseBalance:
		return "CloseBalance"
	case ActionSetAccountFlag:
		return "SetAccountFlag"
	case ActionUnsetAccountFlag:
		return "UnsetAccountFlag"
	case ActionStartFlashloan:
		return "StartFlashloan"
	case ActionEndFlashloan:
		return "EndFlashloan"
	case ActionBatch:
		return "Batch"
	default:
		return "Unknown"
	}
}

func (m ActionType) Valid() bool {
	return m >= ActionDeposit && m <= ActionBatch
}

func ValidActionTypeString(action string) (ActionType, bool) {
	for m := ActionDeposit; m <= ActionBatch; m++ {
		if m.String() == action {
			return m, true
		}
	}
	return 0, false
}

// MarshalText keeps actions readable in scenario files and logs.
func (m ActionType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ActionType) UnmarshalText(text []byte) error {
	action, ok := ValidActionTypeString(string(text))
	if !ok {
		return InvalidInstruction
	}
	*m = action
	return nil
}

// Instruction is one step of an atomic batch.
type Instruction struct {
	Action    ActionType      `json:"action" yaml:"action"`
	AccountId uuid.UUID       `json:"accountId" yaml:"accountId"`
	BankId    uuid.UUID       `json:"bankId,omitempty" yaml:"bankId,omitempty"`
	Amount    decimal.Decimal `json:"amount" yaml:"amount"`
	All       bool            `json:"all,omitempty" yaml:"all,omitempty"`

	// liquidation
	LiquidateeId    uuid.UUID `json:"liquidateeId,omitempty" yaml:"liquidateeId,omitempty"`
	AssetBankId     uuid.UUID `json:"assetBankId,omitempty" yaml:"assetBankId,omitempty"`
	LiabilityBankId uuid.UUID `json:"liabilityBankId,omitempty" yaml:"liabilityBankId,omitempty"`

	// StartFlashloan only
	EndIndex int `json:"endIndex,omitempty" yaml:"endIndex,omitempty"`

	Flag AccountFlags `json:"flag,omitempty" yaml:"flag,omitempty"`
}
