package apperror

// Code is a stable, log-friendly error identifier.
type Code string

// Generic.
const (
	CodeInvalidFormat        Code = "INVALID_FORMAT"
	CodeInvalidState         Code = "INVALID_STATE"
	CodeNotFound             Code = "NOT_FOUND"
	CodeConfigurationError   Code = "CONFIGURATION_ERROR"
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
	CodeCircuitOpen          Code = "CIRCUIT_OPEN"
	CodeInternalError        Code = "INTERNAL_ERROR"
	CodeUnknownError         Code = "UNKNOWN_ERROR"
)

// Chain access.
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeBlockNotFound            Code = "BLOCK_NOT_FOUND"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeInvalidSigningKey        Code = "INVALID_SIGNING_KEY"
)

// Pricing.
const (
	CodeWebSocketSendError      Code = "WEBSOCKET_SEND_ERROR"
	CodeBinanceConnectionFailed Code = "BINANCE_CONNECTION_FAILED"
	CodeBinanceAPIError         Code = "BINANCE_API_ERROR"
	CodeReferencePriceStale     Code = "REFERENCE_PRICE_STALE"
	CodeUniswapQuoteFailed      Code = "UNISWAP_QUOTE_FAILED"
	CodeUniswapPoolNotFound     Code = "UNISWAP_POOL_NOT_FOUND"
	CodeInvalidQuote            Code = "INVALID_QUOTE"
	CodePriceDeviation          Code = "PRICE_DEVIATION"
)

// Swap pipeline, in stage order.
const (
	CodeMissingField         Code = "MISSING_FIELD"
	CodeInvalidAddress       Code = "INVALID_ADDRESS"
	CodeSameTokenSwap        Code = "SAME_TOKEN_SWAP"
	CodeZeroOrNegativeAmount Code = "ZERO_OR_NEGATIVE_AMOUNT"
	CodeInvalidSlippage      Code = "INVALID_SLIPPAGE"
	CodeValueLimitExceeded   Code = "VALUE_LIMIT_EXCEEDED"
	CodeEmergencyStop        Code = "EMERGENCY_STOP"

	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeInsufficientAllowance Code = "INSUFFICIENT_ALLOWANCE"

	CodeQuoteUnavailable Code = "QUOTE_UNAVAILABLE"
	CodeSimulationFailed Code = "SIMULATION_FAILED"
	CodeGasPriceTooHigh  Code = "GAS_PRICE_TOO_HIGH"

	CodeRealTradingDisabled Code = "REAL_TRADING_DISABLED"
	CodeExecutionFailed     Code = "EXECUTION_FAILED"
	CodeTransactionReverted Code = "TRANSACTION_REVERTED"
	CodeConfirmationTimeout Code = "CONFIRMATION_TIMEOUT"
)

// Notifications.
const (
	CodeNotificationFailed  Code = "NOTIFICATION_FAILED"
	CodeNotificationDropped Code = "NOTIFICATION_DROPPED"
)
