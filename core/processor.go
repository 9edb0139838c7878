package core

import (
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	ProcessorConfig struct {
		LiquidatorFee     decimal.Decimal
		InsuranceFee      decimal.Decimal
		BankruptThreshold decimal.Decimal
		Oracle            OracleConfig
	}

	// Env is the state handed in by the host for one request: every bank
	// the request may touch and the raw price snapshots for them.
	Env struct {
		Banks   BankSet
		Oracles OracleSnapshots
	}

	AccountSet map[uuid.UUID]*Account

	Processor struct {
		clk     clock.Clock
		log     Log
		cfg     ProcessorConfig
		metrics *Metrics
	}

	ProcessorOption func(p *Processor)
)

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		LiquidatorFee:     LIQUIDATION_LIQUIDATOR_FEE,
		InsuranceFee:      LIQUIDATION_INSURANCE_FEE,
		BankruptThreshold: BANKRUPT_THRESHOLD,
		Oracle:            DefaultOracleConfig(),
	}
}

func (c ProcessorConfig) Validate() error {
	if c.LiquidatorFee.IsNegative() || c.InsuranceFee.IsNegative() {
		return errors.Wrap(InvalidConfig, "negative liquidation fee")
	}
	if c.LiquidatorFee.Add(c.InsuranceFee).GreaterThanOrEqual(ONE) {
		return errors.Wrap(InvalidConfig, "liquidation fees must sum below 1")
	}
	if c.BankruptThreshold.IsNegative() {
		return errors.Wrap(InvalidConfig, "negative bankruptcy threshold")
	}
	if c.Oracle.DefaultMaxAge <= 0 || !c.Oracle.MaxConfInterval.IsPositive() || c.Oracle.MaxDeviation.IsNegative() {
		return errors.Wrap(InvalidConfig, "oracle config")
	}
	return nil
}

func WithProcessorClock(clk clock.Clock) ProcessorOption {
	return func(p *Processor) {
		p.clk = clk
	}
}

func WithMetrics(m *Metrics) ProcessorOption {
	return func(p *Processor) {
		p.metrics = m
	}
}

func NewProcessor(log Log, cfg ProcessorConfig, opts ...ProcessorOption) *Processor {
	p := &Processor{
		clk: clock.New(),
		log: log,
		cfg: cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Config() ProcessorConfig {
	return p.cfg
}

func (p *Processor) now() int64 {
	return p.clk.Now().Unix()
}

func (e Env) bank(id uuid.UUID) (*Bank, error) {
	bank, ok := e.Banks[id]
	if !ok || bank == nil {
		return nil, errors.Wrapf(BankAccountNotFound, "bank %s", id)
	}
	return bank, nil
}

// transact runs fn against a snapshot of every bank in env and the given
// accounts. Any error restores them exactly as they were.
func (p *Processor) transact(env Env, action ActionType, accountId uuid.UUID, accounts []*Account, fn func(out *Outcome) error) (*Outcome, error) {
	cache := NewEntityCache()
	cache.TrackBankSet(env.Banks)
	cache.TrackAccount(accounts...)

	out := newOutcome(action, accountId)
	err := fn(out)
	p.metrics.observeAction(action, err)
	if err != nil {
		cache.Restore()
		p.log.Warn().Msgf("%s reverted for %s: %v", action, accountId, err)
		return nil, err
	}
	p.metrics.observeOutcome(env.Banks, out)
	return out, nil
}

func (p *Processor) resolvePrices(env Env, extra []uuid.UUID, accounts ...*Account) (PriceSet, error) {
	ids := append([]uuid.UUID{}, extra...)
	for _, a := range accounts {
		ids = append(ids, a.ActiveBankIds()...)
	}
	return ResolvePrices(p.cfg.Oracle, env.Banks, env.Oracles, p.now(), ids)
}

func (p *Processor) checkInitHealth(env Env, account *Account) error {
	if account.GetFlag(InFlashloanFlag) {
		return nil
	}
	prices, err := p.resolvePrices(env, nil, account)
	if err != nil {
		return err
	}
	return CheckAccountInitHealth(account, env.Banks, prices)
}

func checkAccountUsable(account *Account) error {
	if account.GetFlag(DisabledFlag) {
		return errors.Wrapf(AccountDisabled, "account %s", account.Id)
	}
	return nil
}

func checkAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrapf(MathError, "negative amount %s", amount)
	}
	return nil
}

// closeIfEmpty frees the slot once both sides are exactly zero.
func closeIfEmpty(balance *Balance, now int64) {
	if balance.AssetShares.IsZero() && balance.LiabilityShares.IsZero() && balance.EmissionsOutstanding.IsZero() {
		balance.EmptyDeactivated(now)
	}
}

func (p *Processor) Deposit(env Env, account *Account, bankId uuid.UUID, amount decimal.Decimal) (*Outcome, error) {
	return p.transact(env, ActionDeposit, account.Id, []*Account{account}, func(out *Outcome) error {
		return p.deposit(env, out, account, bankId, amount)
	})
}

func (p *Processor) deposit(env Env, out *Outcome, account *Account, bankId uuid.UUID, amount decimal.Decimal) error {
	if err := checkAccountUsable(account); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bank, err := env.bank(bankId)
	if err != nil {
		return err
	}
	if err := bank.AccrueInterest(p.log, p.now()); err != nil {
		return err
	}

	bankAccount, err := FindOrCreateBankAccountWrapper(p.clk, account, bank)
	if err != nil {
		return err
	}
	if err := bankAccount.Deposit(p.log, amount); err != nil {
		return err
	}

	out.credit(bank, VaultLiquidity, amount)
	out.record(account.Id, ActionDeposit, bank.Id, amount)
	p.log.Info().Msgf("Deposit %s %s for %s", amount, bank.Name, account.Id)
	return nil
}

func (p *Processor) Withdraw(env Env, account *Account, bankId uuid.UUID, amount decimal.Decimal, all bool) (*Outcome, error) {
	return p.transact(env, ActionWithdraw, account.Id, []*Account{account}, func(out *Outcome) error {
		return p.withdraw(env, out, account, bankId, amount, all)
	})
}

func (p *Processor) withdraw(env Env, out *Outcome, account *Account, bankId uuid.UUID, amount decimal.Decimal, all bool) error {
	if err := checkAccountUsable(account); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bank, err := env.bank(bankId)
	if err != nil {
		return err
	}
	if err := bank.AccrueInterest(p.log, p.now()); err != nil {
		return err
	}

	bankAccount, err := FindBankAccountWrapper(account, bank, WithClock(p.clk))
	if err != nil {
		return err
	}
	if !bankAccount.Balance.IsEmpty(BalanceSideLiabilities) {
		return errors.Wrap(IllegalBalanceState, "cannot withdraw from a liability balance")
	}

	if all {
		amount, err = bankAccount.WithdrawAll(p.log)
		if err != nil {
			return err
		}
	} else {
		if err := bankAccount.Withdraw(p.log, amount); err != nil {
			return err
		}
		closeIfEmpty(bankAccount.Balance, p.now())
	}

	if err := out.debit(bank, VaultLiquidity, amount); err != nil {
		return err
	}
	out.record(account.Id, ActionWithdraw, bank.Id, amount)
	p.log.Info().Msgf("Withdraw %s %s for %s", amount, bank.Name, account.Id)

	return p.checkInitHealth(env, account)
}

func (p *Processor) Borrow(env Env, account *Account, bankId uuid.UUID, amount decimal.Decimal) (*Outcome, error) {
	return p.transact(env, ActionBorrow, account.Id, []*Account{account}, func(out *Outcome) error {
		return p.borrow(env, out, account, bankId, amount)
	})
}

func (p *Processor) borrow(env Env, out *Outcome, account *Account, bankId uuid.UUID, amount decimal.Decimal) error {
	if err := checkAccountUsable(account); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bank, err := env.bank(bankId)
	if err != nil {
		return err
	}
	if err := bank.AccrueInterest(p.log, p.now()); err != nil {
		return err
	}

	bankAccount, err := FindOrCreateBankAccountWrapper(p.clk, account, bank)
	if err != nil {
		return err
	}
	if err := bankAccount.Borrow(p.log, amount); err != nil {
		return err
	}
	closeIfEmpty(bankAccount.Balance, p.now())

	if err := out.debit(bank, VaultLiquidity, amount); err != nil {
		return err
	}
	out.record(account.Id, ActionBorrow, bank.Id, amount)
	p.log.Info().Msgf("Borrow %s %s for %s", amount, bank.Name, account.Id)

	return p.checkInitHealth(env, account)
}

func (p *Processor) Repay(env Env, account *Account, bankId uuid.UUID, amount decimal.Decimal, all bool) (*Outcome, error) {
	return p.transact(env, ActionRepay, account.Id, []*Account{account}, func(out *Outcome) error {
		return p.repay(env, out, account, bankId, amount, all)
	})
}

func (p *Processor) repay(env Env, out *Outcome, account *Account, bankId uuid.UUID, amount decimal.Decimal, all bool) error {
	if err := checkAccountUsable(account); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bank, err := env.bank(bankId)
	if err != nil {
		return err
	}
	if err := bank.AccrueInterest(p.log, p.now()); err != nil {
		return err
	}

	bankAccount, err := FindBankAccountWrapper(account, bank, WithClock(p.clk))
	if err != nil {
		return err
	}

	if all {
		amount, err = bankAccount.RepayAll(p.log)
		if err != nil {
			return err
		}
	} else {
		owed := bank.GetLiabilityAmount(bankAccount.Balance.LiabilityShares)
		if owed.LessThan(EMPTY_BALANCE_THRESHOLD) {
			return NoLiabilityFound
		}
		amount = decimal.Min(amount, owed)
		if err := bankAccount.Repay(p.log, amount); err != nil {
			return err
		}
		closeIfEmpty(bankAccount.Balance, p.now())
	}

	out.credit(bank, VaultLiquidity, amount)
	out.record(account.Id, ActionRepay, bank.Id, amount)
	p.log.Info().Msgf("Repay %s %s for %s", amount, bank.Name, account.Id)
	return nil
}

func (p *Processor) CloseBalance(env Env, account *Account, bankId uuid.UUID) (*Outcome, error) {
	return p.transact(env, ActionCloseBalance, account.Id, []*Account{account}, func(out *Outcome) error {
		return p.closeBalance(env, out, account, bankId)
	})
}

func (p *Processor) closeBalance(env Env, out *Outcome, account *Account, bankId uuid.UUID) error {
	bank, err := env.bank(bankId)
	if err != nil {
		return err
	}
	if err := bank.AccrueInterest(p.log, p.now()); err != nil {
		return err
	}
	bankAccount, err := FindBankAccountWrapper(account, bank, WithClock(p.clk))
	if err != nil {
		return err
	}
	if err := bankAccount.CloseBalance(p.log); err != nil {
		return err
	}
	out.record(account.Id, ActionCloseBalance, bank.Id, decimal.Zero)
	return nil
}

func (p *Processor) WithdrawEmissions(env Env, account *Account, bankId uuid.UUID) (*Outcome, error) {
	return p.transact(env, ActionWithdrawEmissions, account.Id, []*Account{account}, func(out *Outcome) error {
		return p.withdrawEmissions(env, out, account, bankId)
	})
}

func (p *Processor) withdrawEmissions(env Env, out *Outcome, account *Account, bankId uuid.UUID) error {
	if err := checkAccountUsable(account); err != nil {
		return err
	}
	bank, err := env.bank(bankId)
	if err != nil {
		return err
	}
	if err := bank.AccrueInterest(p.log, p.now()); err != nil {
		return err
	}
	bankAccount, err := FindBankAccountWrapper(account, bank, WithClock(p.clk))
	if err != nil {
		return err
	}
	amount, err := bankAccount.SettleEmissionsAndGetTransferAmount(p.log)
	if err != nil {
		return err
	}
	if err := out.debit(bank, VaultEmissions, amount); err != nil {
		return err
	}
	out.record(account.Id, ActionWithdrawEmissions, bank.Id, amount)
	return nil
}

func (p *Processor) AccrueBankInterest(env Env, bankId uuid.UUID) (*Outcome, error) {
	return p.transact(env, ActionAccrueBankInterest, uuid.Nil, nil, func(out *Outcome) error {
		bank, err := env.bank(bankId)
		if err != nil {
			return err
		}
		return bank.AccrueInterest(p.log, p.now())
	})
}

func (p *Processor) CollectBankFees(env Env, bankId uuid.UUID) (*Outcome, error) {
	return p.transact(env, ActionCollectBankFees, uuid.Nil, nil, func(out *Outcome) error {
		return p.collectBankFees(env, out, bankId)
	})
}

// collectBankFees moves outstanding fees out of the liquidity vault, as far
// as the vault can pay them, truncated to the mint's precision.
func (p *Processor) collectBankFees(env Env, out *Outcome, bankId uuid.UUID) error {
	bank, err := env.bank(bankId)
	if err != nil {
		return err
	}
	if err := bank.AccrueInterest(p.log, p.now()); err != nil {
		return err
	}

	available := bank.LiquidityVault

	insuranceTransfer := bank.NativeFloor(decimal.Min(bank.CollectedInsuranceFeesOutstanding, available))
	if err := out.move(bank, VaultLiquidity, VaultInsurance, insuranceTransfer); err != nil {
		return err
	}
	bank.CollectedInsuranceFeesOutstanding = bank.CollectedInsuranceFeesOutstanding.Sub(insuranceTransfer)
	available = available.Sub(insuranceTransfer)

	groupTransfer := bank.NativeFloor(decimal.Min(bank.CollectedGroupFeesOutstanding, available))
	if err := out.move(bank, VaultLiquidity, VaultFee, groupTransfer); err != nil {
		return err
	}
	bank.CollectedGroupFeesOutstanding = bank.CollectedGroupFeesOutstanding.Sub(groupTransfer)

	p.log.Info().Msgf("Collected fees on %s: insurance %s, group %s", bank.Name, insuranceTransfer, groupTransfer)
	return nil
}

func (p *Processor) SetAccountFlag(account *Account, flag AccountFlags) (*Outcome, error) {
	return p.transact(Env{}, ActionSetAccountFlag, account.Id, []*Account{account}, func(out *Outcome) error {
		return account.SetUserFlag(flag)
	})
}

func (p *Processor) UnsetAccountFlag(account *Account, flag AccountFlags) (*Outcome, error) {
	return p.transact(Env{}, ActionUnsetAccountFlag, account.Id, []*Account{account}, func(out *Outcome) error {
		return account.UnsetUserFlag(flag)
	})
}
