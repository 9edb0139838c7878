package sim

import (
	"bytes"
	"os"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type (
	// Scenario is a scripted run against a fresh group: feeds, banks and
	// accounts are created first, then the steps run in order and the checks
	// are evaluated against the final state.
	Scenario struct {
		Name           string               `yaml:"name"`
		Start          int64                `yaml:"start"`
		StakedSettings *core.StakedSettings `yaml:"stakedSettings"`
		Feeds          []FeedSpec           `yaml:"feeds"`
		Banks          []BankSpec           `yaml:"banks"`
		Accounts       []string             `yaml:"accounts"`
		Steps          []Step               `yaml:"steps"`
		Checks         []Check              `yaml:"checks"`
	}

	FeedSpec struct {
		Name     string           `yaml:"name"`
		Price    decimal.Decimal  `yaml:"price"`
		Conf     decimal.Decimal  `yaml:"conf"`
		EmaPrice *decimal.Decimal `yaml:"emaPrice"`
		EmaConf  decimal.Decimal  `yaml:"emaConf"`
	}

	BankSpec struct {
		Name     string `yaml:"name"`
		Mint     string `yaml:"mint"`
		Decimals int32  `yaml:"decimals"`

		// Price is a shorthand that creates a feed named after the bank.
		Price *decimal.Decimal `yaml:"price"`
		// Feeds are the oracle keys, the bank's own feed when empty.
		Feeds        []string `yaml:"feeds"`
		OracleSetup  string   `yaml:"oracleSetup"`
		OracleMaxAge int64    `yaml:"oracleMaxAge"`

		AssetWeightInit          *decimal.Decimal         `yaml:"assetWeightInit"`
		AssetWeightMaint         *decimal.Decimal         `yaml:"assetWeightMaint"`
		LiabilityWeightInit      *decimal.Decimal         `yaml:"liabilityWeightInit"`
		LiabilityWeightMaint     *decimal.Decimal         `yaml:"liabilityWeightMaint"`
		DepositLimit             *decimal.Decimal         `yaml:"depositLimit"`
		LiabilityLimit           *decimal.Decimal         `yaml:"liabilityLimit"`
		TotalAssetValueInitLimit *decimal.Decimal         `yaml:"totalAssetValueInitLimit"`
		InterestRate             *core.InterestRateConfig `yaml:"interestRate"`
		OperationalState         string                   `yaml:"operationalState"`
		RiskTier                 string                   `yaml:"riskTier"`
		AssetTag                 string                   `yaml:"assetTag"`

		Staked    *StakePoolSpec `yaml:"staked"`
		Emissions *EmissionsSpec `yaml:"emissions"`
	}

	// StakePoolSpec turns a bank into a permissionless staked bank created
	// from the scenario's staked settings.
	StakePoolSpec struct {
		Pool    string          `yaml:"pool"`
		Supply  decimal.Decimal `yaml:"supply"`
		Balance decimal.Decimal `yaml:"balance"`
	}

	EmissionsSpec struct {
		// lending, borrowing or both
		Mode  string          `yaml:"mode"`
		Mint  string          `yaml:"mint"`
		Rate  decimal.Decimal `yaml:"rate"`
		Total decimal.Decimal `yaml:"total"`
	}

	Step struct {
		Name string `yaml:"name"`

		// Advance moves the clock before anything else in the step.
		Advance string `yaml:"advance"`

		Price     *PriceStep     `yaml:"price"`
		Configure *ConfigureStep `yaml:"configure"`
		Pool      *PoolStep      `yaml:"pool"`

		Action        string          `yaml:"action"`
		Account       string          `yaml:"account"`
		Bank          string          `yaml:"bank"`
		Amount        decimal.Decimal `yaml:"amount"`
		All           bool            `yaml:"all"`
		Liquidatee    string          `yaml:"liquidatee"`
		AssetBank     string          `yaml:"assetBank"`
		LiabilityBank string          `yaml:"liabilityBank"`
		Flag          string          `yaml:"flag"`
		// End is the index of the matching EndFlashloan inside Batch.
		End int `yaml:"end"`

		Batch    []Step `yaml:"batch"`
		Parallel []Job  `yaml:"parallel"`

		// Expect is empty or "ok" for success, otherwise an error kind or a
		// fragment of the error message.
		Expect string `yaml:"expect"`
	}

	PriceStep struct {
		Feed  string          `yaml:"feed"`
		Price decimal.Decimal `yaml:"price"`
		Conf  decimal.Decimal `yaml:"conf"`
		// Freeze stops the feed from republishing, so it goes stale.
		Freeze bool `yaml:"freeze"`
	}

	ConfigureStep struct {
		Bank                 string           `yaml:"bank"`
		AssetWeightInit      *decimal.Decimal `yaml:"assetWeightInit"`
		AssetWeightMaint     *decimal.Decimal `yaml:"assetWeightMaint"`
		LiabilityWeightInit  *decimal.Decimal `yaml:"liabilityWeightInit"`
		LiabilityWeightMaint *decimal.Decimal `yaml:"liabilityWeightMaint"`
		DepositLimit         *decimal.Decimal `yaml:"depositLimit"`
		LiabilityLimit       *decimal.Decimal `yaml:"liabilityLimit"`
		OperationalState     string           `yaml:"operationalState"`
		OracleMaxAge         *int64           `yaml:"oracleMaxAge"`
	}

	PoolStep struct {
		Bank    string          `yaml:"bank"`
		Supply  decimal.Decimal `yaml:"supply"`
		Balance decimal.Decimal `yaml:"balance"`
	}

	// Job is one batch of a parallel step. It may only touch the accounts
	// and banks it declares, and no two jobs of a step may share any.
	Job struct {
		Accounts []string `yaml:"accounts"`
		Banks    []string `yaml:"banks"`
		Steps    []Step   `yaml:"steps"`
	}

	// Check compares one number of the final state. Account checks read
	// assets, liabilities or health, bank checks read a vault or a share value.
	Check struct {
		Account   string          `yaml:"account"`
		Bank      string          `yaml:"bank"`
		Field     string          `yaml:"field"`
		Equals    decimal.Decimal `yaml:"equals"`
		Tolerance decimal.Decimal `yaml:"tolerance"`
	}
)

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	return s, nil
}

// ParseScenario decodes a YAML scenario. Unknown keys are rejected so typos
// do not silently drop a step.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decode scenario")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	names := make(map[string]bool)
	for _, b := range s.Banks {
		if b.Name == "" {
			return errors.New("bank without name")
		}
		if names[b.Name] {
			return errors.Errorf("duplicate bank %s", b.Name)
		}
		names[b.Name] = true
	}

	accounts := make(map[string]bool)
	for _, a := range s.Accounts {
		if accounts[a] {
			return errors.Errorf("duplicate account %s", a)
		}
		accounts[a] = true
	}

	for i, step := range s.Steps {
		if step.Advance != "" {
			if _, err := time.ParseDuration(step.Advance); err != nil {
				return errors.Wrapf(err, "step %d", i)
			}
		}
	}
	return nil
}

func (s *Step) label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Action != "" {
		return s.Action
	}
	switch {
	case len(s.Parallel) > 0:
		return "Parallel"
	case s.Price != nil:
		return "Price"
	case s.Configure != nil:
		return "Configure"
	case s.Pool != nil:
		return "Pool"
	case s.Advance != "":
		return "Advance " + s.Advance
	}
	return "step"
}
