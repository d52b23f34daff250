package domain

import "github.com/fd1az/swap-sentinel/internal/apperror"

// Category is the error taxonomy callers branch on.
type Category string

const (
	CategoryValidation      Category = "validation"
	CategoryConfiguration   Category = "configuration"
	CategoryInsufficient    Category = "insufficient_funds"
	CategoryPreBroadcast    Category = "pre_broadcast"
	CategoryEmergencyStop   Category = "emergency_stop"
	CategoryTradingDisabled Category = "trading_disabled"
	CategoryExecution       Category = "execution"
	CategoryExternal        Category = "external"
)

// Categorize maps an error code to its category. Unknown codes are external.
func Categorize(err error) Category {
	switch apperror.GetCode(err) {
	case apperror.CodeMissingField,
		apperror.CodeInvalidAddress,
		apperror.CodeSameTokenSwap,
		apperror.CodeZeroOrNegativeAmount,
		apperror.CodeInvalidSlippage,
		apperror.CodeValueLimitExceeded:
		return CategoryValidation
	case apperror.CodeConfigurationError, apperror.CodeInvalidSigningKey:
		return CategoryConfiguration
	case apperror.CodeInsufficientBalance, apperror.CodeInsufficientAllowance:
		return CategoryInsufficient
	case apperror.CodeSimulationFailed,
		apperror.CodeGasPriceTooHigh,
		apperror.CodeQuoteUnavailable:
		return CategoryPreBroadcast
	case apperror.CodeEmergencyStop:
		return CategoryEmergencyStop
	case apperror.CodeRealTradingDisabled:
		return CategoryTradingDisabled
	case apperror.CodeExecutionFailed,
		apperror.CodeTransactionReverted,
		apperror.CodeConfirmationTimeout:
		return CategoryExecution
	default:
		return CategoryExternal
	}
}

// IsPostBroadcast reports whether gas may already have been spent.
func IsPostBroadcast(err error) bool {
	switch apperror.GetCode(err) {
	case apperror.CodeTransactionReverted, apperror.CodeConfirmationTimeout:
		return true
	default:
		return false
	}
}
