package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeAdapterUnavailable:  "Venue adapter unavailable",
	CodeVenueNotConfigured:  "Venue is not configured",
	CodeExchangeAPIError:    "Exchange API error",
	CodeOrderRejected:       "Order rejected by venue",
	CodePoolNotFound:        "Liquidity pool not found",
	CodeTokenNotFound:       "Token not registered for network",
	CodeContractCallFailed:  "Smart contract call failed",
	CodeRPCConnectionFailed: "Failed to connect to RPC endpoint",
	CodeGasEstimationFailed: "Gas estimation failed",
	CodeBridgeNotFound:      "Bridge not found",
	CodeBridgeTimeout:       "Bridge transfer did not complete in time",
	CodeFlashLoanProvider:   "Flash loan provider not found",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeInsufficientLiquidity: "Insufficient liquidity for trade size",
	CodeNonPositiveProfit:     "Opportunity has no positive profit after fees",
	CodeInvalidTradeSize:      "Invalid trade size",
	CodeOpportunityNotFound:   "Opportunity not found",
	CodeStaleOpportunity:      "Opportunity is no longer active",
	CodeLegFailure:            "Execution leg failed",
	CodePositionNotFound:      "Position not found",
	CodeStoreFailure:          "Opportunity store failure",

	CodeCircuitOpen:           "Circuit breaker is open",
	CodeCircuitBreakerTripped: "Risk circuit breaker tripped",
}
