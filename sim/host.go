package sim

import (
	"sort"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type feed struct {
	price    decimal.Decimal
	conf     decimal.Decimal
	emaPrice decimal.Decimal
	emaConf  decimal.Decimal

	// frozen feeds keep their last publish time instead of republishing on
	// every read
	frozen      bool
	publishedAt int64
}

// Host owns the entities of one simulated group and plays the part of the
// runtime: it hands the processor the banks, accounts and fresh price
// snapshots each request declares.
type Host struct {
	clk   *clock.Mock
	log   core.Log
	p     *core.Processor
	group *core.Group

	feeds    map[string]*feed
	banks    map[string]*core.Bank
	bankSet  core.BankSet
	pools    map[uuid.UUID]*core.StakePoolState
	accounts map[string]*core.Account
	names    map[uuid.UUID]string
}

func NewHost(log core.Log, cfg core.ProcessorConfig, start int64, opts ...core.ProcessorOption) *Host {
	clk := clock.NewMock()
	clk.Add(time.Unix(start, 0).Sub(clk.Now()))

	opts = append([]core.ProcessorOption{core.WithProcessorClock(clk)}, opts...)
	return &Host{
		clk:      clk,
		log:      log,
		p:        core.NewProcessor(log, cfg, opts...),
		group:    core.NewGroup(clk, "sim", "sim", "simulated group"),
		feeds:    make(map[string]*feed),
		banks:    make(map[string]*core.Bank),
		bankSet:  make(core.BankSet),
		pools:    make(map[uuid.UUID]*core.StakePoolState),
		accounts: make(map[string]*core.Account),
		names:    make(map[uuid.UUID]string),
	}
}

func (h *Host) Processor() *core.Processor {
	return h.p
}

func (h *Host) Now() int64 {
	return h.clk.Now().Unix()
}

func (h *Host) Advance(d time.Duration) {
	h.clk.Add(d)
}

func (h *Host) SetStakedSettings(settings core.StakedSettings) {
	h.group.SetStakedSettings(h.clk, settings)
}

func (h *Host) AddFeed(spec FeedSpec) {
	ema := spec.Price
	if spec.EmaPrice != nil {
		ema = *spec.EmaPrice
	}
	h.feeds[spec.Name] = &feed{
		price:    spec.Price,
		conf:     spec.Conf,
		emaPrice: ema,
		emaConf:  spec.EmaConf,
	}
}

// SetPrice republishes feed name. Both the spot and the ema move to price.
func (h *Host) SetPrice(name string, price, conf decimal.Decimal, freeze bool) error {
	f, ok := h.feeds[name]
	if !ok {
		return errors.Errorf("unknown feed %s", name)
	}
	f.price, f.emaPrice = price, price
	f.conf, f.emaConf = conf, conf
	f.frozen = freeze
	f.publishedAt = h.Now()
	return nil
}

func (h *Host) AddBank(spec BankSpec) (*core.Bank, error) {
	if _, ok := h.banks[spec.Name]; ok {
		return nil, errors.Errorf("duplicate bank %s", spec.Name)
	}

	if spec.Price != nil {
		h.AddFeed(FeedSpec{Name: spec.Name, Price: *spec.Price})
	}
	mint := spec.Mint
	if mint == "" {
		mint = spec.Name
	}
	decimals := spec.Decimals
	if decimals == 0 {
		decimals = 9
	}

	var (
		bank *core.Bank
		err  error
	)
	if spec.Staked != nil {
		bank, err = h.addStakedBank(spec, mint, decimals)
	} else {
		bank, err = h.addPlainBank(spec, mint, decimals)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "bank %s", spec.Name)
	}

	if spec.Emissions != nil {
		flags, err := parseEmissionsMode(spec.Emissions.Mode)
		if err != nil {
			return nil, err
		}
		if err := bank.SetupEmissions(flags, spec.Emissions.Mint, spec.Emissions.Rate, spec.Emissions.Total); err != nil {
			return nil, errors.Wrapf(err, "bank %s emissions", spec.Name)
		}
	}

	h.banks[spec.Name] = bank
	h.bankSet[bank.Id] = bank
	h.names[bank.Id] = spec.Name
	h.log.Debug().Msgf("bank %s created with id %s", spec.Name, bank.Id)
	return bank, nil
}

func defaultInterestRate() core.InterestRateConfig {
	return core.InterestRateConfig{
		OptimalUtilizationRate: decimal.RequireFromString("0.8"),
		PlateauInterestRate:    decimal.RequireFromString("0.1"),
		MaxInterestRate:        decimal.RequireFromString("1"),
	}
}

func valueOr(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}

func (h *Host) addPlainBank(spec BankSpec, mint string, decimals int32) (*core.Bank, error) {
	setup, err := parseOracleSetup(spec.OracleSetup)
	if err != nil {
		return nil, err
	}
	state, err := parseOperationalState(spec.OperationalState)
	if err != nil {
		return nil, err
	}
	tier, err := parseRiskTier(spec.RiskTier)
	if err != nil {
		return nil, err
	}
	tag, err := parseAssetTag(spec.AssetTag)
	if err != nil {
		return nil, err
	}

	irc := defaultInterestRate()
	if spec.InterestRate != nil {
		irc = *spec.InterestRate
	}

	defaultWeight := core.ONE
	if tier == core.Isolated {
		defaultWeight = decimal.Zero
	}

	cfg := core.BankConfig{
		AssetWeightInit:          valueOr(spec.AssetWeightInit, defaultWeight),
		AssetWeightMaint:         valueOr(spec.AssetWeightMaint, defaultWeight),
		LiabilityWeightInit:      valueOr(spec.LiabilityWeightInit, core.ONE),
		LiabilityWeightMaint:     valueOr(spec.LiabilityWeightMaint, core.ONE),
		DepositLimit:             valueOr(spec.DepositLimit, core.NoLimit),
		LiabilityLimit:           valueOr(spec.LiabilityLimit, core.NoLimit),
		InterestRateConfig:       irc,
		OperationalState:         state,
		RiskTier:                 tier,
		AssetTag:                 tag,
		TotalAssetValueInitLimit: valueOr(spec.TotalAssetValueInitLimit, decimal.Zero),
		OracleSetup:              setup,
		OracleMaxAge:             spec.OracleMaxAge,
	}

	keys := spec.Feeds
	if len(keys) == 0 {
		keys = []string{spec.Name}
	}
	if len(keys) > len(cfg.OracleKeys) {
		return nil, errors.Wrapf(core.ErrInvalidOracleKeys, "%d feeds", len(keys))
	}
	copy(cfg.OracleKeys[:], keys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateOracleSetup(); err != nil {
		return nil, err
	}
	return core.NewBank(h.clk, h.group.Id, spec.Name, mint, decimals, cfg), nil
}

func (h *Host) addStakedBank(spec BankSpec, mint string, decimals int32) (*core.Bank, error) {
	irc := defaultInterestRate()
	if spec.InterestRate != nil {
		irc = *spec.InterestRate
	}
	bank, err := h.group.AddPermissionlessStakedBank(h.clk, spec.Name, mint, spec.Staked.Pool, decimals, irc)
	if err != nil {
		return nil, err
	}
	h.pools[bank.Id] = &core.StakePoolState{
		Mint:        mint,
		Pool:        spec.Staked.Pool,
		LstSupply:   spec.Staked.Supply,
		PoolBalance: spec.Staked.Balance,
	}
	return bank, nil
}

// SetPool updates the exchange rate of a staked bank's pool.
func (h *Host) SetPool(name string, supply, balance decimal.Decimal) error {
	bank, err := h.Bank(name)
	if err != nil {
		return err
	}
	pool, ok := h.pools[bank.Id]
	if !ok {
		return errors.Errorf("bank %s is not staked", name)
	}
	pool.LstSupply = supply
	pool.PoolBalance = balance
	return nil
}

// PropagateStakedSettings replaces the group template and pushes it to
// every staked bank.
func (h *Host) PropagateStakedSettings(settings core.StakedSettings) error {
	h.group.SetStakedSettings(h.clk, settings)
	return h.group.PropagateStakedSettings(h.bankSet)
}

func (h *Host) Configure(step *ConfigureStep) error {
	bank, err := h.Bank(step.Bank)
	if err != nil {
		return err
	}
	opt := &core.BankConfigOpt{
		AssetWeightInit:      step.AssetWeightInit,
		AssetWeightMaint:     step.AssetWeightMaint,
		LiabilityWeightInit:  step.LiabilityWeightInit,
		LiabilityWeightMaint: step.LiabilityWeightMaint,
		DepositLimit:         step.DepositLimit,
		LiabilityLimit:       step.LiabilityLimit,
		OracleMaxAge:         step.OracleMaxAge,
	}
	if step.OperationalState != "" {
		state, err := parseOperationalState(step.OperationalState)
		if err != nil {
			return err
		}
		opt.OperationalState = &state
	}
	return bank.Configure(opt)
}

func (h *Host) AddAccount(name string) (*core.Account, error) {
	if _, ok := h.accounts[name]; ok {
		return nil, errors.Errorf("duplicate account %s", name)
	}
	account := core.NewAccount(h.clk, h.group.Id, name, 0)
	h.accounts[name] = account
	h.names[account.Id] = name
	return account, nil
}

func (h *Host) Bank(name string) (*core.Bank, error) {
	bank, ok := h.banks[name]
	if !ok {
		return nil, errors.Wrapf(core.BankAccountNotFound, "bank %s", name)
	}
	return bank, nil
}

func (h *Host) Account(name string) (*core.Account, error) {
	account, ok := h.accounts[name]
	if !ok {
		return nil, errors.Errorf("unknown account %s", name)
	}
	return account, nil
}

// Name returns the scenario name of a bank or account id.
func (h *Host) Name(id uuid.UUID) string {
	if name, ok := h.names[id]; ok {
		return name
	}
	return id.String()
}

func (h *Host) AccountNames() []string {
	names := make([]string, 0, len(h.accounts))
	for name := range h.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Host) snapshots(bank *core.Bank, now int64) []core.PriceSnapshot {
	keys := bank.ActiveOracleKeys()
	if bank.OracleSetup == core.OracleSetupStakedWithPythPush && len(keys) > 0 {
		keys = keys[:1]
	}

	snapshots := make([]core.PriceSnapshot, 0, len(keys))
	for _, key := range keys {
		f, ok := h.feeds[key]
		if !ok {
			return nil
		}
		publishTime := now
		if f.frozen {
			publishTime = f.publishedAt
		}
		s := core.PriceSnapshot{
			FeedId:      key,
			Price:       f.price,
			Conf:        f.conf,
			EmaPrice:    f.emaPrice,
			EmaConf:     f.emaConf,
			PublishTime: publishTime,
		}
		if pool, ok := h.pools[bank.Id]; ok {
			p := *pool
			s.StakePool = &p
		}
		snapshots = append(snapshots, s)
	}
	return snapshots
}

// Env builds the request context for the named banks, every bank when no
// name is given.
func (h *Host) Env(bankNames ...string) (core.Env, error) {
	now := h.Now()
	banks := h.bankSet
	if len(bankNames) > 0 {
		banks = make(core.BankSet, len(bankNames))
		for _, name := range bankNames {
			bank, err := h.Bank(name)
			if err != nil {
				return core.Env{}, err
			}
			banks[bank.Id] = bank
		}
	}

	oracles := make(core.OracleSnapshots, len(banks))
	for id, bank := range banks {
		if s := h.snapshots(bank, now); len(s) > 0 {
			oracles[id] = s
		}
	}
	return core.Env{Banks: banks, Oracles: oracles}, nil
}

// price is the real time oracle price of bank, without a confidence bias.
func (h *Host) price(bank *core.Bank) (decimal.Decimal, error) {
	env, err := h.Env(h.Name(bank.Id))
	if err != nil {
		return decimal.Zero, err
	}
	prices, err := core.ResolvePrices(h.p.Config().Oracle, env.Banks, env.Oracles, h.Now(), []uuid.UUID{bank.Id})
	if err != nil {
		return decimal.Zero, err
	}
	feed, ok := prices[bank.Id]
	if !ok {
		return decimal.Zero, errors.Wrapf(core.MissingPrice, "bank %s", h.Name(bank.Id))
	}
	return feed.GetPriceOfType(core.RealTime, core.Original)
}

type HealthReport struct {
	Requirement core.RequirementType
	Assets      decimal.Decimal
	Liabilities decimal.Decimal
	// Health is assets minus liabilities, the figure liquidation acts on.
	Health decimal.Decimal
	// Ratio is (assets - liabilities) / assets.
	Ratio decimal.Decimal
}

// Health values the account under every requirement type.
func (h *Host) Health(name string) ([]HealthReport, error) {
	account, err := h.Account(name)
	if err != nil {
		return nil, err
	}
	env, err := h.Env()
	if err != nil {
		return nil, err
	}
	prices, err := core.ResolvePrices(h.p.Config().Oracle, env.Banks, env.Oracles, h.Now(), account.ActiveBankIds())
	if err != nil {
		return nil, err
	}
	engine, err := core.NewRiskEngine(account, env.Banks, prices)
	if err != nil {
		return nil, err
	}

	reports := make([]HealthReport, 0, 3)
	for _, requirement := range []core.RequirementType{core.Initial, core.Maintenance, core.Equity} {
		assets, liabilities, err := engine.GetAccountHealthComponents(requirement)
		if err != nil {
			return nil, err
		}
		reports = append(reports, HealthReport{
			Requirement: requirement,
			Assets:      assets,
			Liabilities: liabilities,
			Health:      assets.Sub(liabilities),
			Ratio:       core.GetAccountHealth(assets, liabilities),
		})
	}
	return reports, nil
}
