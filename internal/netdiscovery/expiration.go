package netdiscovery

import (
	"fmt"
	"time"
)

// minTargetExpiration is the configured floor for target_expiration: a
// per-address budget that can never be tightened below one minute.
const minTargetExpiration = 60 * time.Second

// expirationLogInterval rate-limits the periodic remaining-time log line.
const expirationLogInterval = 600 * time.Second

// ComputeDeadline derives the scheduler's effective deadline from the
// address count and per-job timeout budgets (C8 / Phase B).
//
// minTimeout = 1s + sum over jobs of (job size * job timeout); minDeadline
// = now + minTimeout. targetExpiration is floored at 60s. The effective
// deadline is the later of minDeadline and now + totalAddresses *
// targetExpiration — totalAddresses being the sum of every job's address
// count, since target_expiration is specified as a per-address budget.
func ComputeDeadline(now time.Time, totalAddresses uint64, jobSizeTimeoutSum time.Duration, targetExpiration time.Duration) (deadline, minDeadline time.Time) {
	if targetExpiration < minTargetExpiration {
		targetExpiration = minTargetExpiration
	}
	minTimeout := time.Second + jobSizeTimeoutSum
	minDeadline = now.Add(minTimeout)

	budget := time.Duration(totalAddresses) * targetExpiration
	candidate := now.Add(budget)
	if candidate.Before(minDeadline) {
		return minDeadline, minDeadline
	}
	return candidate, minDeadline
}

// FormatRemaining renders a duration as the human-readable unit scale from
// §4.6 Phase B, used by the scheduler's periodic expiration log line.
func FormatRemaining(d time.Duration) string {
	if d <= time.Minute {
		return "soon"
	}
	minutes := d.Minutes()
	switch {
	case minutes >= 2 && minutes < 10:
		return "few minutes"
	case minutes >= 10 && minutes < 60:
		return fmt.Sprintf("%d minutes", int(minutes))
	default:
		return fmt.Sprintf("%.1f hour", d.Hours())
	}
}
