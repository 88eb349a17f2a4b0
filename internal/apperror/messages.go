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

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Venue connection errors
	CodeVenueDialFailed:        "Failed to dial venue websocket",
	CodeVenueHandshakeFailed:   "Venue websocket handshake failed",
	CodeVenueSubscribeFailed:   "Failed to send venue subscribe frame",
	CodeVenueSubscribeRejected: "Venue rejected subscription",
	CodeVenueReadTimeout:       "No data received from venue within read timeout",
	CodeVenueSocketClosed:      "Venue websocket closed",

	// Payload / protocol errors
	CodeDecodeFailed:           "Failed to decode venue payload",
	CodeUnknownSubscriptionID:  "Payload referenced an unknown subscription id",
	CodeMissingInitialSnapshot: "Received L2 update before initial snapshot",
	CodeSequenceGap:            "L2 update sequence gap detected",

	// Config errors
	CodeEmptySubscriptionSet: "Subscription set is empty",
	CodeUnsupportedSubKind:   "Unsupported (venue, channel) pair",
	CodeMalformedVenueURL:    "Malformed venue URL",

	// Aggregator / broadcast errors
	CodeAggregatorIngestFailed: "Aggregator failed to ingest market event",
	CodeBroadcastLag:           "Consumer lagged behind the broadcast ring",
	CodeBridgeConnectionFailed: "Failed to connect to futures bridge",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
