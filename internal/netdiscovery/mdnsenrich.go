package netdiscovery

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// mdnsLookupTimeout bounds one enrichment query; mDNS is opportunistic, so
// it never gets the job's full probe timeout.
const mdnsLookupTimeout = 500 * time.Millisecond

// MDNSProbe enriches an already-identified device with the hostname
// advertised over multicast DNS. It is deliberately the lowest-priority
// fusion input: Fusion only consults it once a record has already earned
// acceptance from another probe, and the field it sets — DNSHOSTNAME — is
// only filled in when still empty, never overwritten.
type MDNSProbe struct {
	logger *zap.Logger
}

// NewMDNSProbe creates an mDNS enrichment probe.
func NewMDNSProbe(logger *zap.Logger) *MDNSProbe {
	return &MDNSProbe{logger: logger}
}

func (p *MDNSProbe) Name() string { return "mdns" }

// Probe never runs in walk mode and never returns an error to the caller:
// an absent or unresponsive mDNS responder simply yields an empty record.
func (p *MDNSProbe) Probe(ctx context.Context, ip net.IP, params ProbeParams) ndmodels.DeviceResult {
	if params.Walk != "" {
		return nil
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	var name string
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if entry.AddrV4 != nil && entry.AddrV4.Equal(ip) && entry.Host != "" {
				name = strings.TrimSuffix(entry.Host, ".")
			}
		}
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service:             "_services._dns-sd._udp",
		Domain:              "local",
		Timeout:             mdnsLookupTimeout,
		Entries:             entries,
		WantUnicastResponse: false,
	})
	close(entries)
	<-done

	if err != nil || name == "" {
		p.logger.Debug("mdns probe found nothing", zap.String("ip", ip.String()))
		return nil
	}
	return ndmodels.DeviceResult{ndmodels.FieldDNSHostname: name}
}
