package core

import (
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type BankruptcyResult struct {
	AccountId  uuid.UUID       `json:"accountId"`
	BankId     uuid.UUID       `json:"bankId"`
	BadDebt    decimal.Decimal `json:"badDebt"`
	Covered    decimal.Decimal `json:"covered"`
	Socialized decimal.Decimal `json:"socialized"`
}

// HandleBankruptcy writes off account's debt in bankId. The insurance vault
// pays what it can and the rest is taken from the bank's depositors.
func (p *Processor) HandleBankruptcy(env Env, account *Account, bankId uuid.UUID) (*Outcome, error) {
	return p.transact(env, ActionBankruptcy, account.Id, []*Account{account}, func(out *Outcome) error {
		result, err := p.handleBankruptcy(env, out, account, bankId)
		if err != nil {
			return err
		}
		out.Bankruptcy = result
		return nil
	})
}

func (p *Processor) handleBankruptcy(env Env, out *Outcome, account *Account, bankId uuid.UUID) (*BankruptcyResult, error) {
	bank, err := env.bank(bankId)
	if err != nil {
		return nil, err
	}
	if err := bank.AccrueInterest(p.log, p.now()); err != nil {
		return nil, err
	}

	prices, err := p.resolvePrices(env, nil, account)
	if err != nil {
		return nil, err
	}
	riskEngine, err := NewRiskEngine(account, env.Banks, prices)
	if err != nil {
		return nil, err
	}
	if err := riskEngine.CheckAccountBankrupt(p.log, p.cfg.BankruptThreshold); err != nil {
		return nil, err
	}

	bankAccount, err := FindBankAccountWrapper(account, bank, WithClock(p.clk))
	if err != nil {
		return nil, err
	}
	if bankAccount.Balance.IsEmpty(BalanceSideLiabilities) {
		return nil, errors.Wrapf(BalanceNotBadDebt, "bank %s", bank.Name)
	}

	badDebt := bank.GetLiabilityAmount(bankAccount.Balance.LiabilityShares)
	covered := decimal.Min(badDebt, bank.InsuranceVault)
	socialized := badDebt.Sub(covered)

	if err := out.move(bank, VaultInsurance, VaultLiquidity, covered); err != nil {
		return nil, err
	}
	if err := bank.SocializeLoss(p.log, socialized); err != nil {
		return nil, err
	}

	// the debt is written off at full value, limits do not apply
	if err := bankAccount.IncreaseBalanceInternal(p.log, badDebt, BalanceIncreaseTypeRepayOnly); err != nil {
		return nil, err
	}
	if !bankAccount.Balance.LiabilityShares.IsZero() {
		return nil, errors.Wrapf(MathError, "bad debt left %s liability shares", bankAccount.Balance.LiabilityShares)
	}
	if bankAccount.Balance.AssetShares.IsZero() {
		bank.EmissionsRemaining = bank.EmissionsRemaining.Add(bankAccount.Balance.EmissionsOutstanding)
		bankAccount.Balance.EmptyDeactivated(p.now())
	}

	out.record(account.Id, ActionBankruptcy, bank.Id, badDebt)
	p.log.Info().Msgf("Bankruptcy of %s on %s: bad debt %s, insurance %s, socialized %s", account.Id, bank.Name, badDebt, covered, socialized)

	result := &BankruptcyResult{
		AccountId:  account.Id,
		BankId:     bank.Id,
		BadDebt:    badDebt,
		Covered:    covered,
		Socialized: socialized,
	}
	out.bankruptcies = append(out.bankruptcies, result)
	return result, nil
}
