package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Engine error codes
const (
	// Venue adapters
	CodeAdapterUnavailable  Code = "ADAPTER_UNAVAILABLE"
	CodeVenueNotConfigured  Code = "VENUE_NOT_CONFIGURED"
	CodeExchangeAPIError    Code = "EXCHANGE_API_ERROR"
	CodeOrderRejected       Code = "ORDER_REJECTED"
	CodePoolNotFound        Code = "POOL_NOT_FOUND"
	CodeTokenNotFound       Code = "TOKEN_NOT_FOUND"
	CodeContractCallFailed  Code = "CONTRACT_CALL_FAILED"
	CodeRPCConnectionFailed Code = "RPC_CONNECTION_FAILED"
	CodeGasEstimationFailed Code = "GAS_ESTIMATION_FAILED"
	CodeBridgeNotFound      Code = "BRIDGE_NOT_FOUND"
	CodeBridgeTimeout       Code = "BRIDGE_TIMEOUT"
	CodeFlashLoanProvider   Code = "FLASH_LOAN_PROVIDER_NOT_FOUND"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Detection and execution
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeNonPositiveProfit     Code = "NON_POSITIVE_PROFIT"
	CodeInvalidTradeSize      Code = "INVALID_TRADE_SIZE"
	CodeOpportunityNotFound   Code = "OPPORTUNITY_NOT_FOUND"
	CodeStaleOpportunity      Code = "STALE_OPPORTUNITY"
	CodeLegFailure            Code = "LEG_FAILURE"
	CodePositionNotFound      Code = "POSITION_NOT_FOUND"
	CodeStoreFailure          Code = "STORE_FAILURE"

	// Circuit breakers
	CodeCircuitOpen           Code = "CIRCUIT_OPEN"
	CodeCircuitBreakerTripped Code = "CIRCUIT_BREAKER_TRIPPED"
)
