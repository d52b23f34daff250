package apperror

// messages is the default Message per code. Codes missing here fall back
// to their lowercased name.
var messages = map[Code]string{
	CodeInvalidFormat:        "malformed data",
	CodeInvalidState:         "operation not valid in the current state",
	CodeNotFound:             "not found",
	CodeConfigurationError:   "missing or invalid configuration",
	CodeExternalServiceError: "upstream service failed",
	CodeRateLimitExceeded:    "local rate limit would be exceeded",
	CodeCircuitOpen:          "circuit breaker open",
	CodeInternalError:        "internal error",
	CodeUnknownError:         "unknown error",

	CodeEthereumConnectionFailed: "cannot reach ethereum node",
	CodeEthereumRPCError:         "ethereum rpc call failed",
	CodeBlockNotFound:            "block not found",
	CodeContractCallFailed:       "contract call failed",
	CodeInvalidSigningKey:        "signing key missing or malformed",

	CodeWebSocketSendError:      "websocket write failed",
	CodeBinanceConnectionFailed: "cannot reach binance",
	CodeBinanceAPIError:         "binance api error",
	CodeReferencePriceStale:     "reference price unavailable or stale",
	CodeUniswapQuoteFailed:      "uniswap quote failed",
	CodeUniswapPoolNotFound:     "no uniswap pool for pair",
	CodeInvalidQuote:            "quote is not usable",
	CodePriceDeviation:          "quote deviates from reference price",

	CodeMissingField:         "required swap parameter missing",
	CodeInvalidAddress:       "invalid asset address",
	CodeSameTokenSwap:        "input and output assets are the same",
	CodeZeroOrNegativeAmount: "amount must be positive",
	CodeInvalidSlippage:      "slippage out of range",
	CodeValueLimitExceeded:   "value above configured limit",
	CodeEmergencyStop:        "trading halted by emergency stop",

	CodeInsufficientBalance:   "insufficient balance",
	CodeInsufficientAllowance: "router allowance too low",

	CodeQuoteUnavailable: "no usable quote",
	CodeSimulationFailed: "simulation failed",
	CodeGasPriceTooHigh:  "gas price above configured maximum",

	CodeRealTradingDisabled: "real trading disabled",
	CodeExecutionFailed:     "swap execution failed",
	CodeTransactionReverted: "transaction reverted",
	CodeConfirmationTimeout: "confirmation timed out",

	CodeNotificationFailed:  "notification delivery failed",
	CodeNotificationDropped: "notification queue full",
}
