package netdiscovery

import "errors"

// Sentinel error kinds, wrapped with fmt.Errorf("%w") at each call site so
// callers can distinguish them with errors.Is without string matching.
var (
	// ErrConfigInvalid marks an Option dropped because its PARAM block is
	// missing or malformed (no PARAM entry, zero PID).
	ErrConfigInvalid = errors.New("netdiscovery: invalid job configuration")

	// ErrRangeInvalid marks a RANGEIP entry dropped because its address
	// bounds don't parse or are out of order.
	ErrRangeInvalid = errors.New("netdiscovery: invalid address range")

	// ErrCredentialMiss marks an SNMP credential trial that exhausted every
	// port/credential/domain combination without a hit.
	ErrCredentialMiss = errors.New("netdiscovery: no SNMP credential matched")

	// ErrTransportSendFailure marks a lifecycle message that failed to
	// reach the server; the job continues regardless.
	ErrTransportSendFailure = errors.New("netdiscovery: failed to send lifecycle message")

	// ErrDeadlineExceeded marks a job run torn down because the computed
	// deadline passed before every address was dispatched.
	ErrDeadlineExceeded = errors.New("netdiscovery: run deadline exceeded")

	// ErrAborted marks a job run torn down by an external signal rather
	// than the deadline.
	ErrAborted = errors.New("netdiscovery: run aborted")
)
