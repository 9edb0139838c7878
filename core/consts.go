package core

import (
	"github.com/shopspring/decimal"
)

const (
	SECONDS_PER_YEAR         = 31_536_000
	MIN_EMISSIONS_START_TIME = 1681989983

	HOURS_PER_YEAR = 365.25 * 24

	MAX_LENDING_ACCOUNT_BALANCES = 16

	// decimal places kept by share conversions and share values
	SHARE_PRECISION = 18

	DEFAULT_ORACLE_MAX_AGE = 60
)

var (
	ONE = decimal.NewFromInt(1)

	ZERO_AMOUNT_THRESHOLD   = decimal.Zero
	EMPTY_BALANCE_THRESHOLD = decimal.NewFromFloat(0.00000001)
	BANKRUPT_THRESHOLD      = decimal.NewFromFloat(0.1)

	MAX_CONF_INTERVAL      = decimal.NewFromFloat(0.05)
	CONF_INTERVAL_MULTIPLE = decimal.NewFromFloat(2.12)
	STD_DEV_MULTIPLE       = decimal.NewFromFloat(1.96)

	MAX_ORACLE_DEVIATION = decimal.NewFromFloat(0.01)

	LIQUIDATION_LIQUIDATOR_FEE = decimal.NewFromFloat(0.025)
	LIQUIDATION_INSURANCE_FEE  = decimal.NewFromFloat(0.025)
)
