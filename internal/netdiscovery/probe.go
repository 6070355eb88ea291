package netdiscovery

import (
	"context"
	"net"
	"time"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// ProbeParams carries the per-address parameters a probe needs: the
// range-level SNMP scoping (ports/domains), the job's credentials, the
// per-address timeout budget, and the replay file for walk mode.
type ProbeParams struct {
	Ports       []uint16
	Domains     []string
	Entity      string
	Walk        string
	Credentials []ndmodels.Credential
	Timeout     time.Duration
}

// Prober is a single detection method applied to one address. Implementions
// must be idempotent pure functions of (ip, params): they never mutate
// shared state and never propagate transport errors to the caller — a
// failed probe simply yields a nil/empty result.
type Prober interface {
	Name() string
	Probe(ctx context.Context, ip net.IP, params ProbeParams) ndmodels.DeviceResult
}

// Capabilities enumerates which probes are available in this process. The
// source implementation gates probes on "is the library loaded"; this is
// the explicit, testable replacement the design notes call for: a
// configuration struct populated once at startup from feature detection.
type Capabilities struct {
	ARP     bool
	Ping    bool
	NetBIOS bool
	SNMP    bool
	MDNS    bool
}

// DetectCapabilities reports which live (non-walk) probes this process can
// attempt. ARP capability is the caller's arpAvailable (whether an
// ARP-listing command exists on PATH); every other probe is always reported
// available. SNMP needs no external dependency to probe for (the SNMP probe
// itself does nothing for a range without credentials), and mDNS enrichment
// has no switch to turn it off.
func DetectCapabilities(arpAvailable bool) Capabilities {
	return Capabilities{
		ARP:     arpAvailable,
		Ping:    true,
		NetBIOS: true,
		SNMP:    true,
		MDNS:    true,
	}
}
