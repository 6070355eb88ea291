package netdiscovery

import (
	"testing"
	"time"
)

func TestComputeDeadline_FloorsTargetExpiration(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// targetExpiration below the 60s floor must behave as if it were 60s.
	deadline, _ := ComputeDeadline(now, 10, time.Second, time.Second)
	want := now.Add(10 * minTargetExpiration)
	if !deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", deadline, want)
	}
}

func TestComputeDeadline_HonorsMinDeadlineFloor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// A single address with a huge per-address job timeout sum should push
	// minDeadline above the target-expiration budget.
	deadline, minDeadline := ComputeDeadline(now, 1, time.Hour, time.Minute)
	if !deadline.Equal(minDeadline) {
		t.Errorf("deadline = %v, want minDeadline %v", deadline, minDeadline)
	}
	if !minDeadline.Equal(now.Add(time.Second + time.Hour)) {
		t.Errorf("minDeadline = %v, want now+1h1s", minDeadline)
	}
}

func TestComputeDeadline_BudgetWinsWhenLarger(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline, minDeadline := ComputeDeadline(now, 1000, time.Second, time.Minute)
	wantBudget := now.Add(1000 * time.Minute)
	if !deadline.Equal(wantBudget) {
		t.Errorf("deadline = %v, want %v", deadline, wantBudget)
	}
	if !deadline.After(minDeadline) {
		t.Error("expected the address-count budget to exceed minDeadline here")
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "soon"},
		{time.Minute, "soon"},
		{5 * time.Minute, "few minutes"},
		{30 * time.Minute, "30 minutes"},
		{90 * time.Minute, "1.5 hour"},
		{3 * time.Hour, "3.0 hour"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.d); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
