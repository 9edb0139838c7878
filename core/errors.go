package core

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindCapacity
	KindStateViolation
	KindRiskRejection
	KindOracleFailure
	KindFlashloanProtocolViolation
	KindConfigInvalid
	KindArithmetic
)

func (k ErrorKind) String() string {
	switch k {
	case KindCapacity:
		return "Capacity"
	case KindStateViolation:
		return "StateViolation"
	case KindRiskRejection:
		return "RiskRejection"
	case KindOracleFailure:
		return "OracleFailure"
	case KindFlashloanProtocolViolation:
		return "FlashloanProtocolViolation"
	case KindConfigInvalid:
		return "ConfigInvalid"
	case KindArithmetic:
		return "Arithmetic"
	default:
		return "Unknown"
	}
}

// Error is a ledger failure with a stable code. Sentinels are compared with
// errors.Is, so wrapped errors keep their identity.
type Error struct {
	Code    uint32
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

func newError(code uint32, kind ErrorKind, msg string) *Error {
	return &Error{Code: code, Kind: kind, Message: msg}
}

// KindOf reports the taxonomy bucket of err, KindUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the numeric code of err or 0.
func CodeOf(err error) uint32 {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

var (
	MathError     = newError(6000, KindArithmetic, "math error")
	InvalidConfig = newError(6001, KindConfigInvalid, "invalid bank configuration")

	ErrOptimalUr             = newError(6002, KindConfigInvalid, "optimal utilization rate must be in (0, 1)")
	ErrPlateauIr             = newError(6003, KindConfigInvalid, "plateau interest rate must be positive")
	ErrMaxIr                 = newError(6004, KindConfigInvalid, "max interest rate must be positive")
	ErrPlateauGreaterThanMax = newError(6005, KindConfigInvalid, "plateau interest rate must be below max interest rate")
	ErrNegativeInterestRate  = newError(6006, KindConfigInvalid, "negative interest rate")
	ErrUnknownOracleSetup    = newError(6007, KindConfigInvalid, "unknown oracle setup")
	ErrInvalidOracleKeys     = newError(6008, KindConfigInvalid, "oracle keys do not match oracle setup")

	BankAccountNotFound            = newError(6010, KindStateViolation, "bank not found")
	LendingAccountBalanceNotFound  = newError(6011, KindStateViolation, "lending account balance not found")
	LendingAccountBalanceSlotsFull = newError(6012, KindCapacity, "lending account balance slots are full")
	IllegalBalanceState            = newError(6013, KindStateViolation, "illegal balance state")
	NoAssetFound                   = newError(6014, KindStateViolation, "no asset found")
	NoLiabilityFound               = newError(6015, KindStateViolation, "no liability found")

	OperationRepayOnly    = newError(6020, KindStateViolation, "operation is repay only")
	OperationDepositOnly  = newError(6021, KindStateViolation, "operation is deposit only")
	OperationWithdrawOnly = newError(6022, KindStateViolation, "operation is withdraw only")
	OperationBorrowOnly   = newError(6023, KindStateViolation, "operation is borrow only")

	BankPaused                    = newError(6030, KindStateViolation, "bank is paused")
	BankReduceOnly                = newError(6031, KindStateViolation, "bank is reduce only")
	BankAssetCapacityExceeded     = newError(6032, KindCapacity, "bank asset capacity exceeded")
	BankLiabilityCapacityExceeded = newError(6033, KindCapacity, "bank liability capacity exceeded")
	IllegalUtilizationRatio       = newError(6034, KindCapacity, "illegal utilization ratio")
	ErrBankLiquidityDeficit       = newError(6035, KindCapacity, "bank liquidity deficit")

	CannotCloseOutstandingEmissions = newError(6040, KindStateViolation, "cannot close balance with outstanding emissions")
	EmissionsAlreadySetup           = newError(6041, KindConfigInvalid, "emissions already setup")
	InvalidEmissionsFlags           = newError(6042, KindConfigInvalid, "invalid emissions flags")

	RiskEngineInitRejected      = newError(6050, KindRiskRejection, "risk engine rejected due to failed initial health check")
	IsolatedAccountIllegalState = newError(6051, KindStateViolation, "isolated account illegal state")
	IllegalLiquidation          = newError(6052, KindRiskRejection, "illegal liquidation")
	AccountNotBankrupt          = newError(6053, KindRiskRejection, "account is not bankrupt")
	BalanceNotBadDebt           = newError(6054, KindStateViolation, "balance is not bad debt")

	AccountInFlashloan = newError(6060, KindFlashloanProtocolViolation, "account is in flashloan")
	IllegalFlashloan   = newError(6061, KindFlashloanProtocolViolation, "illegal flashloan")
	IllegalFlag        = newError(6062, KindStateViolation, "illegal flag")
	AccountDisabled    = newError(6063, KindStateViolation, "account disabled")
	AssetTagMismatch   = newError(6064, KindStateViolation, "asset tag mismatch")
	InvalidInstruction = newError(6065, KindStateViolation, "invalid instruction")

	StaleOracle            = newError(6070, KindOracleFailure, "oracle is stale")
	OracleValidationFailed = newError(6071, KindOracleFailure, "oracle validation failed")
	MissingPrice           = newError(6072, KindOracleFailure, "missing price for bank")
	OracleFeedsDisagree    = newError(6073, KindOracleFailure, "oracle feeds disagree")
	InvalidPrice           = newError(6074, KindOracleFailure, "invalid oracle price")
)
