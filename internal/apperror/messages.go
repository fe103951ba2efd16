package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:       "Invalid input provided",
	CodeInvalidState:       "Invalid state for this operation",
	CodeNotFound:           "Resource not found",
	CodeConfigurationError: "Configuration error",
	CodeRateLimitExceeded:  "Rate limit exceeded",
	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",

	CodeFeedConnectionFailed:  "Failed to connect to exchange feed",
	CodeFeedSubscribeRejected: "Exchange rejected the stream subscription",
	CodeFeedDecodeFailed:      "Failed to decode exchange message",
	CodeFeedConnectionDropped: "Exchange closed the connection",

	CodeInvalidOrderbook:   "Invalid orderbook data",
	CodeStreamClosed:       "Summary stream closed",
	CodeStreamListenFailed: "Failed to listen on stream address",
	CodeStreamSendError:    "Failed to send summary to subscriber",
}
