package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Exchange feed error codes
const (
	CodeFeedConnectionFailed  Code = "FEED_CONNECTION_FAILED"
	CodeFeedSubscribeRejected Code = "FEED_SUBSCRIBE_REJECTED"
	CodeFeedDecodeFailed      Code = "FEED_DECODE_FAILED"
	CodeFeedConnectionDropped Code = "FEED_CONNECTION_DROPPED"
)

// Aggregation and streaming error codes
const (
	CodeInvalidOrderbook   Code = "INVALID_ORDERBOOK"
	CodeStreamClosed       Code = "STREAM_CLOSED"
	CodeStreamListenFailed Code = "STREAM_LISTEN_FAILED"
	CodeStreamSendError    Code = "STREAM_SEND_ERROR"
)
