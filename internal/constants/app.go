package constants

import (
	"time"
)

// Retry configuration
const (
	// RequestRetries - retryablehttp retries for file-list and download requests.
	// Matches the web client's errorRetryCount of 2.
	RequestRetries = 2

	// ProbeRetries - retries for the latency probe before "Connection error"
	ProbeRetries = 2

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between request retries (5s)
	RetryMaxDelay = 5 * time.Second
)

// Push channel reconnect policy
const (
	// ReconnectInitialDelay - base delay for the first reconnect attempt
	ReconnectInitialDelay = 500 * time.Millisecond

	// ReconnectMaxDelay - exponential backoff with jitter caps at this value
	ReconnectMaxDelay = 30 * time.Second

	// HandshakeTimeout - websocket dial + upgrade timeout
	HandshakeTimeout = 15 * time.Second

	// PushReadLimit - largest accepted push frame (1 MB)
	PushReadLimit = 1 << 20
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000

	// PushEventBuffer - buffer between the websocket reader and the dispatcher
	PushEventBuffer = 256
)

// API Timeouts
const (
	// APIContextTimeout - per-request timeout for file-list/start-download calls
	APIContextTimeout = 30 * time.Second

	// ProbeTimeout - per-attempt timeout for the latency probe
	ProbeTimeout = 10 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue responses
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - TCP dial timeout
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - TCP keep-alive period
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPClientTimeout - overall client timeout for JSON calls
	HTTPClientTimeout = 60 * time.Second
)

// UI Updates
const (
	// ProgressUpdateInterval - interval for progress bar refresh in the CLI (250ms)
	ProgressUpdateInterval = 250 * time.Millisecond

	// SpeedReportInterval - how often 'watch' prints the account download speed
	SpeedReportInterval = 5 * time.Second
)
