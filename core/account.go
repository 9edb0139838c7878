package core

import (
	"strconv"

	"github.com/DomeLiquid/lendcore/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Account struct {
	Id        uuid.UUID    `json:"id" yaml:"id"`
	GroupId   uuid.UUID    `json:"groupId" yaml:"groupId"`
	Authority string       `json:"authority" yaml:"authority"`
	Flags     AccountFlags `json:"flags" yaml:"flags"`

	Balances [MAX_LENDING_ACCOUNT_BALANCES]Balance `json:"balances" yaml:"balances"`

	CreatedAt int64 `json:"createdAt" yaml:"createdAt"`
}

type AccountFlags uint8

const (
	DisabledFlag                 AccountFlags = 1 << 0
	InFlashloanFlag              AccountFlags = 1 << 1
	FlashloanEnabledFlag         AccountFlags = 1 << 2
	TransferAuthorityAllowedFlag AccountFlags = 1 << 3
)

func (f AccountFlags) String() string {
	switch f {
	case DisabledFlag:
		return "Disabled"
	case InFlashloanFlag:
		return "InFlashloan"
	case FlashloanEnabledFlag:
		return "FlashloanEnabled"
	case TransferAuthorityAllowedFlag:
		return "TransferAuthorityAllowed"
	default:
		return "Unknown"
	}
}

// user facing flags, the rest are set by the processor itself
func (f AccountFlags) settable() bool {
	return f == FlashloanEnabledFlag || f == TransferAuthorityAllowedFlag
}

func NewAccount(clk clock.Clock, groupId uuid.UUID, authority string, index uint8) *Account {
	return &Account{
		Id:        utils.GenUuid(groupId.String(), authority, strconv.Itoa(int(index))),
		GroupId:   groupId,
		Authority: authority,
		CreatedAt: clk.Now().Unix(),
	}
}

func (a *Account) Clone() *Account {
	c := *a
	return &c
}

func (a *Account) SetFlag(flag AccountFlags) {
	a.Flags |= flag
}

func (a *Account) UnsetFlag(flag AccountFlags) {
	a.Flags &= ^flag
}

func (a *Account) GetFlag(flag AccountFlags) bool {
	return a.Flags&flag != 0
}

func (a *Account) SetUserFlag(flag AccountFlags) error {
	if !flag.settable() {
		return errors.Wrapf(IllegalFlag, "flag %s", flag)
	}
	a.SetFlag(flag)
	return nil
}

func (a *Account) UnsetUserFlag(flag AccountFlags) error {
	if !flag.settable() {
		return errors.Wrapf(IllegalFlag, "flag %s", flag)
	}
	a.UnsetFlag(flag)
	return nil
}

// GetBalance returns the active balance for bankId, or nil.
func (a *Account) GetBalance(bankId uuid.UUID) *Balance {
	for i := range a.Balances {
		if a.Balances[i].Active && a.Balances[i].BankId == bankId {
			return &a.Balances[i]
		}
	}
	return nil
}

// FindOrCreateBalance returns the balance for bank, claiming the first free
// slot when the account has none yet.
func (a *Account) FindOrCreateBalance(bank *Bank, now int64) (*Balance, error) {
	if b := a.GetBalance(bank.Id); b != nil {
		return b, nil
	}

	if err := CheckAssetTagCompatibility(bank.BankConfig.AssetTag, a.activeTags()); err != nil {
		return nil, err
	}

	for i := range a.Balances {
		if !a.Balances[i].Active {
			a.Balances[i] = NewBalance(bank.Id, bank.BankConfig.AssetTag, now)
			return &a.Balances[i], nil
		}
	}

	return nil, LendingAccountBalanceSlotsFull
}

func (a *Account) ActiveBalances() []*Balance {
	balances := make([]*Balance, 0, len(a.Balances))
	for i := range a.Balances {
		if a.Balances[i].Active {
			balances = append(balances, &a.Balances[i])
		}
	}
	return balances
}

// ActiveBankIds lists the banks the account has a position in, in slot order.
func (a *Account) ActiveBankIds() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.Balances))
	for _, b := range a.ActiveBalances() {
		ids = append(ids, b.BankId)
	}
	return ids
}

func (a *Account) activeTags() []AssetTag {
	tags := []AssetTag{}
	for _, b := range a.ActiveBalances() {
		tags = append(tags, b.BankTag)
	}
	return tags
}

// Health resolves the account's health components for requirementType and
// returns them with the health ratio.
func (a *Account) Health(banks BankSet, prices PriceSet, requirementType RequirementType) (assets, liabilities, health decimal.Decimal, err error) {
	riskEngine, err := NewRiskEngine(a, banks, prices)
	if err != nil {
		return
	}
	assets, liabilities, err = riskEngine.GetAccountHealthComponents(requirementType)
	if err != nil {
		return
	}
	health = GetAccountHealth(assets, liabilities)
	return
}

func GetAccountHealth(totalAssets, totalLiabilities decimal.Decimal) decimal.Decimal {
	health := ONE

	if totalLiabilities.IsZero() {
		return health
	}

	health = decimal.Zero
	if totalAssets.IsPositive() {
		health = (totalAssets.Sub(totalLiabilities)).Div(totalAssets)
	}
	return health
}
