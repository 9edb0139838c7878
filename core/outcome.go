package core

import (
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type VaultType uint8

const (
	VaultLiquidity VaultType = iota
	VaultInsurance
	VaultFee
	VaultEmissions
)

func (v VaultType) String() string {
	switch v {
	case VaultLiquidity:
		return "liquidity"
	case VaultInsurance:
		return "insurance"
	case VaultFee:
		return "fee"
	case VaultEmissions:
		return "emissions"
	default:
		return "unknown"
	}
}

type (
	// Transfer is a custody intent. Positive amounts move into the vault,
	// negative amounts move out of it.
	Transfer struct {
		BankId uuid.UUID       `json:"bankId"`
		Vault  VaultType       `json:"vault"`
		Amount decimal.Decimal `json:"amount"`
	}

	ActionDetail struct {
		AccountId  uuid.UUID       `json:"actor"`
		ActionType ActionType      `json:"actionType"`
		BankId     uuid.UUID       `json:"bankId"`
		Amount     decimal.Decimal `json:"amount"`
	}

	// Outcome is what a successful action hands back to the host.
	Outcome struct {
		Action    ActionType     `json:"action"`
		AccountId uuid.UUID      `json:"accountId"`
		Actions   []ActionDetail `json:"actions"`
		Transfers []Transfer     `json:"transfers"`

		Liquidation *LiquidateResult  `json:"liquidation,omitempty"`
		Bankruptcy  *BankruptcyResult `json:"bankruptcy,omitempty"`

		// every liquidation and bankruptcy of the action, reported to
		// metrics once the action has committed
		liquidations []*LiquidateResult
		bankruptcies []*BankruptcyResult
	}
)

func newOutcome(action ActionType, accountId uuid.UUID) *Outcome {
	return &Outcome{Action: action, AccountId: accountId}
}

func (o *Outcome) record(accountId uuid.UUID, action ActionType, bankId uuid.UUID, amount decimal.Decimal) {
	o.Actions = append(o.Actions, ActionDetail{
		AccountId:  accountId,
		ActionType: action,
		BankId:     bankId,
		Amount:     amount,
	})
}

// credit moves amount into vault v of bank, updating the bank's mirror.
func (o *Outcome) credit(bank *Bank, v VaultType, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	vault := bank.Vault(v)
	*vault = vault.Add(amount)
	o.Transfers = append(o.Transfers, Transfer{BankId: bank.Id, Vault: v, Amount: amount})
}

// debit moves amount out of vault v of bank. The vault must hold it.
func (o *Outcome) debit(bank *Bank, v VaultType, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	vault := bank.Vault(v)
	if vault.LessThan(amount) {
		return errors.Wrapf(ErrBankLiquidityDeficit, "%s %s vault holds %s, need %s", bank.Name, v, vault, amount)
	}
	*vault = vault.Sub(amount)
	o.Transfers = append(o.Transfers, Transfer{BankId: bank.Id, Vault: v, Amount: amount.Neg()})
	return nil
}

// move shifts amount between two vaults of the same bank.
func (o *Outcome) move(bank *Bank, from, to VaultType, amount decimal.Decimal) error {
	if err := o.debit(bank, from, amount); err != nil {
		return err
	}
	o.credit(bank, to, amount)
	return nil
}

// Merge appends the effects of other, a later outcome, to o.
func (o *Outcome) Merge(other *Outcome) {
	o.Actions = append(o.Actions, other.Actions...)
	o.Transfers = append(o.Transfers, other.Transfers...)
	o.liquidations = append(o.liquidations, other.liquidations...)
	o.bankruptcies = append(o.bankruptcies, other.bankruptcies...)
	if other.Liquidation != nil {
		o.Liquidation = other.Liquidation
	}
	if other.Bankruptcy != nil {
		o.Bankruptcy = other.Bankruptcy
	}
}

// Net sums every transfer into vault v of bankId.
func (o *Outcome) Net(bankId uuid.UUID, v VaultType) decimal.Decimal {
	net := decimal.Zero
	for _, t := range o.Transfers {
		if t.BankId == bankId && t.Vault == v {
			net = net.Add(t.Amount)
		}
	}
	return net
}
