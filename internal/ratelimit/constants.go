package ratelimit

// File-list backend request budgets.
//
// The backend does not publish limits. List requests are driven by scrolling
// and filter edits and get the larger budget; download-control requests are
// user actions and rarely burst.
const (
	// ListRatePerSec is the sustained rate for GET .../files
	ListRatePerSec = 10.0

	// ListBurstCapacity allows fast scrolling through several pages
	ListBurstCapacity = 30.0

	// ControlRatePerSec covers start/cancel/pause requests
	ControlRatePerSec = 5.0

	// ControlBurstCapacity is the burst for download-control requests
	ControlBurstCapacity = 10.0

	// ProbeRatePerSec covers the latency probe
	ProbeRatePerSec = 1.0

	// ProbeBurstCapacity lets a probe and its retries through at once
	ProbeBurstCapacity = 3.0
)

// DefaultCooldownSeconds is used for a 429 without a Retry-After header.
const DefaultCooldownSeconds = 5
