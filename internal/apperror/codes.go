package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// Persistence
	CodeDatabaseError Code = "DATABASE_ERROR"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Arithmetic error codes
const (
	CodeDivisionByZero     Code = "DIVISION_BY_ZERO"
	CodeNegativeSquareRoot Code = "NEGATIVE_SQUARE_ROOT"
	CodeEmptySeries        Code = "EMPTY_SERIES"
)

// Pricing error codes
const (
	CodeInvalidSymbol         Code = "INVALID_SYMBOL"
	CodeInvalidSpreadConfig   Code = "INVALID_SPREAD_CONFIG"
	CodeSpreadConfigInactive  Code = "SPREAD_CONFIG_INACTIVE"
	CodeSpreadConfigNotFound  Code = "SPREAD_CONFIG_NOT_FOUND"
	CodeConfigUnavailable     Code = "CONFIG_UNAVAILABLE"
	CodeHistoryUnavailable    Code = "HISTORY_UNAVAILABLE"
	CodeSpotRateUnavailable   Code = "SPOT_RATE_UNAVAILABLE"
	CodeP2PRateUnavailable    Code = "P2P_RATE_UNAVAILABLE"
	CodeInsufficientOffers    Code = "INSUFFICIENT_OFFERS"
	CodePricingUnavailable    Code = "PRICING_UNAVAILABLE"
	CodeSpotFeedAPIError      Code = "SPOT_FEED_API_ERROR"
	CodeP2PFeedAPIError       Code = "P2P_FEED_API_ERROR"
	CodeStaleRate             Code = "STALE_RATE"
	CodePriceCalculationError Code = "PRICE_CALCULATION_ERROR"
)

// Deal error codes
const (
	CodeDealNotFound             Code = "DEAL_NOT_FOUND"
	CodePartnerNotFound          Code = "PARTNER_NOT_FOUND"
	CodeInvalidPartner           Code = "INVALID_PARTNER"
	CodeInvalidDealState         Code = "INVALID_DEAL_STATE"
	CodeRateExceedsMaximum       Code = "RATE_EXCEEDS_MAXIMUM"
	CodeRateBelowMinimum         Code = "RATE_BELOW_MINIMUM"
	CodeAmountOutOfLimits        Code = "AMOUNT_OUT_OF_LIMITS"
	CodeCounterpartyNotFound     Code = "COUNTERPARTY_NOT_FOUND"
	CodeCounterpartyUnavailable  Code = "COUNTERPARTY_UNAVAILABLE"
	CodeP2PGatewayUnavailable    Code = "P2P_GATEWAY_UNAVAILABLE"
	CodeOrderPlacementFailed     Code = "ORDER_PLACEMENT_FAILED"
	CodeOrderNotFound            Code = "ORDER_NOT_FOUND"
	CodeOrderFailed              Code = "ORDER_FAILED"
	CodeExecutionTimeout         Code = "EXECUTION_TIMEOUT"
	CodeNotificationFailed       Code = "NOTIFICATION_FAILED"
	CodeNotificationQueueFull    Code = "NOTIFICATION_QUEUE_FULL"
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"
)

// Infrastructure error codes
const (
	// Cache errors
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheExpired Code = "CACHE_EXPIRED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
