package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeDatabaseError: "Database operation failed",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Arithmetic
	CodeDivisionByZero:     "Division by zero",
	CodeNegativeSquareRoot: "Square root of a negative number",
	CodeEmptySeries:        "Statistic requested over an empty series",

	// Pricing
	CodeInvalidSymbol:         "Invalid currency pair symbol",
	CodeInvalidSpreadConfig:   "Invalid spread configuration",
	CodeSpreadConfigInactive:  "Spread configuration is not active",
	CodeSpreadConfigNotFound:  "Spread configuration not found",
	CodeConfigUnavailable:     "Spread configuration store unavailable",
	CodeHistoryUnavailable:    "Rate history unavailable",
	CodeSpotRateUnavailable:   "Spot rate unavailable",
	CodeP2PRateUnavailable:    "P2P indicative rate unavailable",
	CodeInsufficientOffers:    "Not enough P2P offers to compute a rate",
	CodePricingUnavailable:    "Pricing unavailable",
	CodeSpotFeedAPIError:      "Spot feed API error",
	CodeP2PFeedAPIError:       "P2P feed API error",
	CodeStaleRate:             "Rate is stale",
	CodePriceCalculationError: "Price calculation failed",

	// Deals
	CodeDealNotFound:             "Deal not found",
	CodePartnerNotFound:          "Partner not found",
	CodeInvalidPartner:           "Partner is missing or inactive",
	CodeInvalidDealState:         "Deal is not in a state that allows this operation",
	CodeRateExceedsMaximum:       "Rate exceeds the requested maximum",
	CodeRateBelowMinimum:         "Rate is below the requested minimum",
	CodeAmountOutOfLimits:        "Amount is outside the partner limits",
	CodeCounterpartyNotFound:     "No suitable counterparty found",
	CodeCounterpartyUnavailable:  "Counterparty matching unavailable",
	CodeP2PGatewayUnavailable:    "P2P gateway unavailable",
	CodeOrderPlacementFailed:     "Failed to place P2P order",
	CodeOrderNotFound:            "P2P order not found",
	CodeOrderFailed:              "P2P order failed",
	CodeExecutionTimeout:         "Execution timeout",
	CodeNotificationFailed:       "Notification delivery failed",
	CodeNotificationQueueFull:    "Notification queue is full",
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
