package core

import (
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// StakedSettings is the group-wide template every staked collateral bank
// follows. Changes reach existing banks through PropagateStakedSettings.
type StakedSettings struct {
	Oracle                   string          `json:"oracle" yaml:"oracle"`
	AssetWeightInit          decimal.Decimal `json:"assetWeightInit" yaml:"assetWeightInit"`
	AssetWeightMaint         decimal.Decimal `json:"assetWeightMaint" yaml:"assetWeightMaint"`
	DepositLimit             decimal.Decimal `json:"depositLimit" yaml:"depositLimit"`
	TotalAssetValueInitLimit decimal.Decimal `json:"totalAssetValueInitLimit" yaml:"totalAssetValueInitLimit"`
	OracleMaxAge             int64           `json:"oracleMaxAge" yaml:"oracleMaxAge"`
	RiskTier                 RiskTier        `json:"riskTier" yaml:"riskTier"`
}

var (
	stakedLiabilityWeightInit  = decimal.NewFromFloat(1.5)
	stakedLiabilityWeightMaint = decimal.NewFromFloat(1.25)
)

// NewStakedBank creates the bank for one stake pool's LST. Staked banks can
// only be used as collateral, so their borrow limit is zero.
func NewStakedBank(clk clock.Clock, groupId uuid.UUID, settings *StakedSettings, name, lstMint, stakePool string, mintDecimals int32, irc InterestRateConfig) (*Bank, error) {
	config := BankConfig{
		AssetWeightInit:          settings.AssetWeightInit,
		AssetWeightMaint:         settings.AssetWeightMaint,
		LiabilityWeightInit:      stakedLiabilityWeightInit,
		LiabilityWeightMaint:     stakedLiabilityWeightMaint,
		DepositLimit:             settings.DepositLimit,
		LiabilityLimit:           decimal.Zero,
		InterestRateConfig:       irc,
		OperationalState:         BankOperationalStateOperational,
		RiskTier:                 settings.RiskTier,
		AssetTag:                 AssetTagStaked,
		TotalAssetValueInitLimit: settings.TotalAssetValueInitLimit,
		OracleSetup:              OracleSetupStakedWithPythPush,
		OracleKeys:               [3]string{settings.Oracle, lstMint, stakePool},
		OracleMaxAge:             settings.OracleMaxAge,
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := config.ValidateOracleSetup(); err != nil {
		return nil, err
	}

	return NewBank(clk, groupId, name, lstMint, mintDecimals, config), nil
}

// PropagateStakedSettings copies the group template onto an existing staked bank.
func PropagateStakedSettings(settings *StakedSettings, bank *Bank) error {
	if bank.BankConfig.AssetTag != AssetTagStaked {
		return errors.Wrapf(InvalidConfig, "bank %s is not a staked bank", bank.Name)
	}

	config := bank.BankConfig
	config.OracleKeys[0] = settings.Oracle
	config.AssetWeightInit = settings.AssetWeightInit
	config.AssetWeightMaint = settings.AssetWeightMaint
	config.DepositLimit = settings.DepositLimit
	config.TotalAssetValueInitLimit = settings.TotalAssetValueInitLimit
	config.OracleMaxAge = settings.OracleMaxAge
	config.RiskTier = settings.RiskTier

	if err := config.Validate(); err != nil {
		return err
	}

	bank.BankConfig = config
	return nil
}
