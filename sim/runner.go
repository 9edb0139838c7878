package sim

import (
	"context"
	"strings"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultStart is the clock of a scenario that does not set one.
const DefaultStart = 1_700_000_000

type (
	StepResult struct {
		Index  int
		Name   string
		Expect string
		Err    error
		Passed bool

		Outcome  *core.Outcome
		Outcomes []*core.Outcome
	}

	CheckResult struct {
		Check  Check
		Actual decimal.Decimal
		Err    error
		Passed bool
	}

	Report struct {
		Scenario string
		Steps    []StepResult
		Checks   []CheckResult
		// Total merges the outcomes of every successful step.
		Total *core.Outcome
	}

	Runner struct {
		log       core.Log
		host      *Host
		scheduler *Scheduler
		scenario  *Scenario
	}
)

func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if !s.Passed {
			return true
		}
	}
	for _, c := range r.Checks {
		if !c.Passed {
			return true
		}
	}
	return false
}

// NewRunner sets up the group described by s: staked settings, feeds, banks
// and accounts, in that order.
func NewRunner(log core.Log, cfg core.ProcessorConfig, s *Scenario, opts ...core.ProcessorOption) (*Runner, error) {
	start := s.Start
	if start == 0 {
		start = DefaultStart
	}

	host := NewHost(log, cfg, start, opts...)
	if s.StakedSettings != nil {
		host.SetStakedSettings(*s.StakedSettings)
	}
	for _, f := range s.Feeds {
		host.AddFeed(f)
	}
	for _, b := range s.Banks {
		if _, err := host.AddBank(b); err != nil {
			return nil, err
		}
	}
	for _, a := range s.Accounts {
		if _, err := host.AddAccount(a); err != nil {
			return nil, err
		}
	}

	return &Runner{
		log:       log,
		host:      host,
		scheduler: NewScheduler(host),
		scenario:  s,
	}, nil
}

func (r *Runner) Host() *Host {
	return r.host
}

// Run plays every step, then evaluates the checks. A step whose result does
// not match its expectation is reported, not returned: the run goes on.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Scenario: r.scenario.Name,
		Total:    &core.Outcome{Action: core.ActionBatch},
	}

	for i := range r.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		step := &r.scenario.Steps[i]
		res := StepResult{Index: i, Name: step.label(), Expect: step.Expect}
		res.Outcome, res.Outcomes, res.Err = r.runStep(ctx, step)
		res.Passed = expectationMet(step.Expect, res.Err)

		if res.Err == nil {
			if res.Outcome != nil {
				report.Total.Merge(res.Outcome)
			}
			for _, out := range res.Outcomes {
				report.Total.Merge(out)
			}
		}
		if res.Passed {
			r.log.Debug().Msgf("step %d %s: ok", i, res.Name)
		} else {
			r.log.Warn().Msgf("step %d %s: expected %q, got %v", i, res.Name, step.Expect, res.Err)
		}
		report.Steps = append(report.Steps, res)
	}

	for _, c := range r.scenario.Checks {
		actual, err := r.host.Measure(c)
		report.Checks = append(report.Checks, CheckResult{
			Check:  c,
			Actual: actual,
			Err:    err,
			Passed: err == nil && actual.Sub(c.Equals).Abs().LessThanOrEqual(c.Tolerance),
		})
	}
	return report, nil
}

func expectationMet(expect string, err error) bool {
	if expect == "" || normalize(expect) == "ok" {
		return err == nil
	}
	if err == nil {
		return false
	}
	return core.KindOf(err).String() == expect || strings.Contains(err.Error(), expect)
}

func (r *Runner) runStep(ctx context.Context, step *Step) (*core.Outcome, []*core.Outcome, error) {
	h := r.host

	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return nil, nil, err
		}
		h.Advance(d)
	}
	if step.Price != nil {
		if err := h.SetPrice(step.Price.Feed, step.Price.Price, step.Price.Conf, step.Price.Freeze); err != nil {
			return nil, nil, err
		}
	}
	if step.Pool != nil {
		if err := h.SetPool(step.Pool.Bank, step.Pool.Supply, step.Pool.Balance); err != nil {
			return nil, nil, err
		}
	}
	if step.Configure != nil {
		if err := h.Configure(step.Configure); err != nil {
			return nil, nil, err
		}
	}

	switch {
	case len(step.Parallel) > 0:
		outcomes, err := r.scheduler.RunParallel(ctx, step.Parallel)
		return nil, outcomes, err
	case len(step.Batch) > 0:
		out, err := r.runBatch(step.Batch)
		return out, nil, err
	case step.Action != "":
		out, err := r.runAction(step)
		return out, nil, err
	}
	return nil, nil, nil
}

func (r *Runner) runBatch(steps []Step) (*core.Outcome, error) {
	accounts, ixs, err := r.host.Instructions(steps)
	if err != nil {
		return nil, err
	}
	env, err := r.host.Env()
	if err != nil {
		return nil, err
	}
	return r.host.p.ExecuteBatch(env, accounts, ixs)
}

func (r *Runner) runAction(step *Step) (*core.Outcome, error) {
	h := r.host
	p := h.p

	action, err := parseAction(step.Action)
	if err != nil {
		return nil, err
	}
	env, err := h.Env()
	if err != nil {
		return nil, err
	}

	switch action {
	case core.ActionAccrueBankInterest, core.ActionCollectBankFees:
		bank, err := h.Bank(step.Bank)
		if err != nil {
			return nil, err
		}
		if action == core.ActionAccrueBankInterest {
			return p.AccrueBankInterest(env, bank.Id)
		}
		return p.CollectBankFees(env, bank.Id)
	case core.ActionStartFlashloan, core.ActionEndFlashloan:
		return nil, errors.Wrapf(core.InvalidInstruction, "%s only runs inside a batch", action)
	}

	account, err := h.Account(step.Account)
	if err != nil {
		return nil, err
	}

	switch action {
	case core.ActionSetAccountFlag, core.ActionUnsetAccountFlag:
		flag, err := parseAccountFlag(step.Flag)
		if err != nil {
			return nil, err
		}
		if action == core.ActionSetAccountFlag {
			return p.SetAccountFlag(account, flag)
		}
		return p.UnsetAccountFlag(account, flag)
	case core.ActionLiquidate:
		liquidatee, err := h.Account(step.Liquidatee)
		if err != nil {
			return nil, err
		}
		assetBank, err := h.Bank(step.AssetBank)
		if err != nil {
			return nil, err
		}
		liabBank, err := h.Bank(step.LiabilityBank)
		if err != nil {
			return nil, err
		}
		return p.Liquidate(env, account, liquidatee, assetBank.Id, liabBank.Id, step.Amount)
	}

	bank, err := h.Bank(step.Bank)
	if err != nil {
		return nil, err
	}

	switch action {
	case core.ActionDeposit:
		return p.Deposit(env, account, bank.Id, step.Amount)
	case core.ActionWithdraw:
		return p.Withdraw(env, account, bank.Id, step.Amount, step.All)
	case core.ActionBorrow:
		return p.Borrow(env, account, bank.Id, step.Amount)
	case core.ActionRepay:
		return p.Repay(env, account, bank.Id, step.Amount, step.All)
	case core.ActionCloseBalance:
		return p.CloseBalance(env, account, bank.Id)
	case core.ActionWithdrawEmissions:
		return p.WithdrawEmissions(env, account, bank.Id)
	case core.ActionBankruptcy:
		return p.HandleBankruptcy(env, account, bank.Id)
	default:
		return nil, errors.Wrapf(core.InvalidInstruction, "%s is not a single step action", action)
	}
}

// Instructions translates scenario steps into batch instructions and
// collects every account they name.
func (h *Host) Instructions(steps []Step) (core.AccountSet, []core.Instruction, error) {
	accounts := make(core.AccountSet)
	ixs := make([]core.Instruction, 0, len(steps))

	accountId := func(name string) (uuid.UUID, error) {
		if name == "" {
			return uuid.Nil, nil
		}
		a, err := h.Account(name)
		if err != nil {
			return uuid.Nil, err
		}
		accounts[a.Id] = a
		return a.Id, nil
	}
	bankId := func(name string) (uuid.UUID, error) {
		if name == "" {
			return uuid.Nil, nil
		}
		b, err := h.Bank(name)
		if err != nil {
			return uuid.Nil, err
		}
		return b.Id, nil
	}

	for i := range steps {
		step := &steps[i]
		action, err := parseAction(step.Action)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "instruction %d", i)
		}
		ix := core.Instruction{
			Action:   action,
			Amount:   step.Amount,
			All:      step.All,
			EndIndex: step.End,
		}

		if ix.AccountId, err = accountId(step.Account); err != nil {
			return nil, nil, err
		}
		if ix.LiquidateeId, err = accountId(step.Liquidatee); err != nil {
			return nil, nil, err
		}
		if ix.BankId, err = bankId(step.Bank); err != nil {
			return nil, nil, err
		}
		if ix.AssetBankId, err = bankId(step.AssetBank); err != nil {
			return nil, nil, err
		}
		if ix.LiabilityBankId, err = bankId(step.LiabilityBank); err != nil {
			return nil, nil, err
		}
		if step.Flag != "" {
			if ix.Flag, err = parseAccountFlag(step.Flag); err != nil {
				return nil, nil, err
			}
		}
		ixs = append(ixs, ix)
	}
	return accounts, ixs, nil
}

// Measure reads the number a check compares.
func (h *Host) Measure(c Check) (decimal.Decimal, error) {
	if c.Account != "" {
		return h.measureAccount(c)
	}

	bank, err := h.Bank(c.Bank)
	if err != nil {
		return decimal.Zero, err
	}
	switch c.Field {
	case "liquidityVault":
		return bank.LiquidityVault, nil
	case "insuranceVault":
		return bank.InsuranceVault, nil
	case "feeVault":
		return bank.FeeVault, nil
	case "emissionsVault":
		return bank.EmissionsVault, nil
	case "assetShareValue":
		return bank.AssetShareValue, nil
	case "liabilityShareValue":
		return bank.LiabilityShareValue, nil
	case "insuranceFeesOutstanding":
		return bank.CollectedInsuranceFeesOutstanding, nil
	case "groupFeesOutstanding":
		return bank.CollectedGroupFeesOutstanding, nil
	case "totalAssets":
		return bank.GetTotalAssetQuantity(), nil
	case "totalLiabilities":
		return bank.GetTotalLiabilityQuantity(), nil
	case "tvl":
		price, err := h.price(bank)
		if err != nil {
			return decimal.Zero, err
		}
		return bank.ComputeTvl(price), nil
	default:
		return decimal.Zero, errors.Errorf("unknown bank field %q", c.Field)
	}
}

func (h *Host) measureAccount(c Check) (decimal.Decimal, error) {
	account, err := h.Account(c.Account)
	if err != nil {
		return decimal.Zero, err
	}

	if c.Field == "health" {
		reports, err := h.Health(c.Account)
		if err != nil {
			return decimal.Zero, err
		}
		for _, r := range reports {
			if r.Requirement == core.Maintenance {
				return r.Health, nil
			}
		}
	}

	bank, err := h.Bank(c.Bank)
	if err != nil {
		return decimal.Zero, err
	}
	balance := account.GetBalance(bank.Id)

	switch c.Field {
	case "assets":
		if balance == nil {
			return decimal.Zero, nil
		}
		return bank.GetAssetAmount(balance.AssetShares), nil
	case "liabilities":
		if balance == nil {
			return decimal.Zero, nil
		}
		return bank.GetLiabilityAmount(balance.LiabilityShares), nil
	case "emissionsOutstanding":
		if balance == nil {
			return decimal.Zero, nil
		}
		return balance.EmissionsOutstanding, nil
	default:
		return decimal.Zero, errors.Errorf("unknown account field %q", c.Field)
	}
}
