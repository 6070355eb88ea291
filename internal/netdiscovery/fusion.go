package netdiscovery

import (
	"context"
	"net"
	"time"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// Fusion runs the four probe methods for one address and merges their
// partial records into a single candidate device record (C3).
type Fusion struct {
	snmp    Prober
	netbios Prober
	ping    Prober
	arp     Prober
	mdns    Prober
	caps    Capabilities
	metrics *Metrics
}

// NewFusion wires the probes against a capability set. Any probe may be
// nil; a nil probe is treated the same as a disabled capability. mdns may
// be nil even when caps.MDNS is set, in which case enrichment is skipped.
func NewFusion(snmp, netbios, ping, arp, mdns Prober, caps Capabilities) *Fusion {
	return &Fusion{snmp: snmp, netbios: netbios, ping: ping, arp: arp, mdns: mdns, caps: caps}
}

// WithMetrics attaches a Metrics instance so every probe invocation's
// wall-clock duration is recorded against the probe's name, and returns f
// for chaining. Passing nil detaches it.
func (f *Fusion) WithMetrics(m *Metrics) *Fusion {
	f.metrics = m
	return f
}

// runProbe invokes p.Probe, timing it for the probe-duration histogram
// when metrics are attached.
func (f *Fusion) runProbe(ctx context.Context, p Prober, ip net.IP, params ProbeParams) ndmodels.DeviceResult {
	if f.metrics == nil {
		return p.Probe(ctx, ip, params)
	}
	start := time.Now()
	result := p.Probe(ctx, ip, params)
	f.metrics.ObserveProbeDuration(p.Name(), time.Since(start))
	return result
}

// Probe merges the available probes' results for ip in priority order
// (SNMP, NetBIOS, Ping, ARP — each later probe overwrites a field set by an
// earlier one on conflict), enforces the acceptance invariant, and on
// success stamps IP and canonicalizes MAC. When params.Walk is set, only
// SNMP runs, matching the replay-mode contract on Range.
func (f *Fusion) Probe(ctx context.Context, ip net.IP, params ProbeParams) (ndmodels.DeviceResult, bool) {
	record := ndmodels.DeviceResult{}

	if f.caps.SNMP && f.snmp != nil {
		record.Merge(f.runProbe(ctx, f.snmp, ip, params))
	}

	if params.Walk == "" {
		if f.caps.NetBIOS && f.netbios != nil {
			record.Merge(f.runProbe(ctx, f.netbios, ip, params))
		}
		if f.caps.Ping && f.ping != nil {
			record.Merge(f.runProbe(ctx, f.ping, ip, params))
		}
		if f.caps.ARP && f.arp != nil {
			record.Merge(f.runProbe(ctx, f.arp, ip, params))
		}
	}

	if !record.HasIdentifyingField() {
		return nil, false
	}

	// mDNS enrichment runs only after acceptance: it can never by itself
	// make an otherwise-unidentified address count as a device, and it
	// never clobbers a hostname a higher-priority probe already set.
	if params.Walk == "" && f.caps.MDNS && f.mdns != nil && record[ndmodels.FieldDNSHostname] == "" {
		if extra := f.runProbe(ctx, f.mdns, ip, params); extra[ndmodels.FieldDNSHostname] != "" {
			record[ndmodels.FieldDNSHostname] = extra[ndmodels.FieldDNSHostname]
		}
	}

	record[ndmodels.FieldIP] = ip.String()
	if mac, ok := record[ndmodels.FieldMAC]; ok {
		record[ndmodels.FieldMAC] = ndmodels.NormalizeMAC(mac)
	}
	return record, true
}
