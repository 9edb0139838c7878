package core

import (
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

// ExecuteBatch runs ixs in order as one action. Either every instruction
// succeeds or none of them leaves a trace. A StartFlashloan must name the
// index of a later EndFlashloan for the same account; in between, the
// account skips its per-instruction health checks.
func (p *Processor) ExecuteBatch(env Env, accounts AccountSet, ixs []Instruction) (*Outcome, error) {
	tracked := make([]*Account, 0, len(accounts))
	for _, a := range accounts {
		tracked = append(tracked, a)
	}

	return p.transact(env, ActionBatch, uuid.Nil, tracked, func(out *Outcome) error {
		pending := make(map[int]uuid.UUID)
		for i := range ixs {
			if err := p.dispatch(env, out, accounts, ixs, i, pending); err != nil {
				return errors.Wrapf(err, "instruction %d (%s)", i, ixs[i].Action)
			}
		}

		if len(pending) > 0 {
			return errors.Wrap(IllegalFlashloan, "flashloan left open")
		}
		for _, a := range accounts {
			if a.GetFlag(InFlashloanFlag) {
				return errors.Wrapf(IllegalFlashloan, "account %s still in flashloan", a.Id)
			}
		}
		return nil
	})
}

func (p *Processor) dispatch(env Env, out *Outcome, accounts AccountSet, ixs []Instruction, index int, pending map[int]uuid.UUID) error {
	ix := ixs[index]

	switch ix.Action {
	case ActionAccrueBankInterest:
		bank, err := env.bank(ix.BankId)
		if err != nil {
			return err
		}
		return bank.AccrueInterest(p.log, p.now())
	case ActionCollectBankFees:
		return p.collectBankFees(env, out, ix.BankId)
	}

	account, ok := accounts[ix.AccountId]
	if !ok {
		return errors.Wrapf(InvalidInstruction, "unknown account %s", ix.AccountId)
	}

	switch ix.Action {
	case ActionDeposit:
		return p.deposit(env, out, account, ix.BankId, ix.Amount)
	case ActionWithdraw:
		return p.withdraw(env, out, account, ix.BankId, ix.Amount, ix.All)
	case ActionBorrow:
		return p.borrow(env, out, account, ix.BankId, ix.Amount)
	case ActionRepay:
		return p.repay(env, out, account, ix.BankId, ix.Amount, ix.All)
	case ActionCloseBalance:
		return p.closeBalance(env, out, account, ix.BankId)
	case ActionWithdrawEmissions:
		return p.withdrawEmissions(env, out, account, ix.BankId)
	case ActionLiquidate:
		liquidatee, ok := accounts[ix.LiquidateeId]
		if !ok {
			return errors.Wrapf(InvalidInstruction, "unknown liquidatee %s", ix.LiquidateeId)
		}
		return p.liquidate(env, out, account, liquidatee, ix.AssetBankId, ix.LiabilityBankId, ix.Amount)
	case ActionBankruptcy:
		result, err := p.handleBankruptcy(env, out, account, ix.BankId)
		if err != nil {
			return err
		}
		out.Bankruptcy = result
		return nil
	case ActionSetAccountFlag:
		return account.SetUserFlag(ix.Flag)
	case ActionUnsetAccountFlag:
		return account.UnsetUserFlag(ix.Flag)
	case ActionStartFlashloan:
		return p.startFlashloan(account, ixs, index, pending)
	case ActionEndFlashloan:
		return p.endFlashloan(env, account, index, pending)
	default:
		return errors.Wrapf(InvalidInstruction, "action %d", ix.Action)
	}
}

func (p *Processor) startFlashloan(account *Account, ixs []Instruction, index int, pending map[int]uuid.UUID) error {
	if err := checkAccountUsable(account); err != nil {
		return err
	}
	if account.GetFlag(InFlashloanFlag) {
		return errors.Wrap(IllegalFlashloan, "account already in flashloan")
	}

	end := ixs[index].EndIndex
	if end <= index || end >= len(ixs) {
		return errors.Wrapf(IllegalFlashloan, "end index %d out of range", end)
	}
	if ixs[end].Action != ActionEndFlashloan {
		return errors.Wrapf(IllegalFlashloan, "instruction %d is %s, not EndFlashloan", end, ixs[end].Action)
	}
	if ixs[end].AccountId != account.Id {
		return errors.Wrapf(IllegalFlashloan, "instruction %d ends the flashloan of another account", end)
	}

	account.SetFlag(InFlashloanFlag)
	pending[end] = account.Id
	p.log.Debug().Msgf("Flashloan started for %s, ends at %d", account.Id, end)
	return nil
}

func (p *Processor) endFlashloan(env Env, account *Account, index int, pending map[int]uuid.UUID) error {
	if !account.GetFlag(InFlashloanFlag) {
		return errors.Wrap(IllegalFlashloan, "account not in flashloan")
	}
	if owner, ok := pending[index]; !ok || owner != account.Id {
		return errors.Wrapf(IllegalFlashloan, "no flashloan of %s ends at %d", account.Id, index)
	}
	delete(pending, index)

	account.UnsetFlag(InFlashloanFlag)
	return p.checkInitHealth(env, account)
}
