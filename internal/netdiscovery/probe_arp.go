package netdiscovery

import (
	"bufio"
	"context"
	"net"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// defaultARPRate bounds how often the probe is willing to fork a subprocess
// when the caller doesn't supply its own limiter — shelling out per address
// across a large range otherwise saturates the process table well before
// any real network limit does.
const defaultARPRate = 50 // per second

// ARPProbe resolves a MAC address (and, opportunistically, a hostname) for
// one address by shelling out to the host's ARP table command. It never
// runs in walk (file-replay) mode.
type ARPProbe struct {
	logger  *zap.Logger
	timeout time.Duration
	limiter *rate.Limiter
}

// NewARPProbe creates an ARP probe. timeout bounds the subprocess run time;
// limiter throttles subprocess fan-out and defaults to defaultARPRate/s
// when nil.
func NewARPProbe(logger *zap.Logger, timeout time.Duration, limiter *rate.Limiter) *ARPProbe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(defaultARPRate), defaultARPRate)
	}
	return &ARPProbe{logger: logger, timeout: timeout, limiter: limiter}
}

func (p *ARPProbe) Name() string { return "arp" }

// Probe never returns an error to the caller: any subprocess or parse
// failure yields an empty result, matching the "probes never throw"
// contract in the spec's fusion step.
func (p *ARPProbe) Probe(ctx context.Context, ip net.IP, params ProbeParams) ndmodels.DeviceResult {
	if params.Walk != "" {
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runARPCommand(ctx, ip.String())
	if err != nil {
		p.logger.Debug("arp probe failed", zap.String("ip", ip.String()), zap.Error(err))
		return nil
	}

	return parseARPProbeOutput(ip.String(), out)
}

// runARPCommand prefers `arp -a <ip>`, falling back to `ip neighbor show
// <ip>` when arp is unavailable (the common case on minimal Linux images).
func (p *ARPProbe) runARPCommand(ctx context.Context, ip string) (string, error) {
	if _, err := exec.LookPath("arp"); err == nil {
		out, err := exec.CommandContext(ctx, "arp", "-a", ip).CombinedOutput()
		if err == nil {
			return string(out), nil
		}
	}
	if _, err := exec.LookPath("ip"); err == nil {
		out, err := exec.CommandContext(ctx, "ip", "neighbor", "show", ip).CombinedOutput()
		return string(out), err
	}
	return "", exec.ErrNotFound
}

var (
	// "hostname (ip) at xx:xx:xx:xx:xx:xx ..." (BSD/Darwin arp -a)
	arpHostAtRE = regexp.MustCompile(`^(\S+)\s+\(([0-9.]+)\)\s+at\s+([0-9a-fA-F:]{17})`)
	// leading whitespace, an address, then a dash-separated MAC (Windows arp -a)
	arpWindowsRE = regexp.MustCompile(`^\s*([0-9.]+)\s+([0-9a-fA-F]{2}(?:-[0-9a-fA-F]{2}){5})`)
	// "... dev IF lladdr xx:xx:xx:xx:xx:xx" (Linux `ip neighbor show`)
	arpLinuxNeighRE = regexp.MustCompile(`lladdr\s+([0-9a-fA-F:]{17})`)
)

// parseARPProbeOutput scans command output for the line matching ip (a
// word-boundary match, so "192.168.1.1" doesn't match "192.168.1.100") and
// extracts a MAC (and, for the Darwin-style shape, a hostname) using the
// three alternative line shapes the probe recognizes.
func parseARPProbeOutput(ip string, output string) ndmodels.DeviceResult {
	ipBoundary := regexp.MustCompile(`(^|[^0-9.])` + regexp.QuoteMeta(ip) + `([^0-9.]|$)`)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !ipBoundary.MatchString(line) {
			continue
		}

		if m := arpHostAtRE.FindStringSubmatch(line); m != nil {
			result := ndmodels.DeviceResult{ndmodels.FieldMAC: ndmodels.NormalizeMAC(m[3])}
			if m[1] != "?" {
				result[ndmodels.FieldDNSHostname] = m[1]
			}
			return result
		}
		if m := arpWindowsRE.FindStringSubmatch(line); m != nil {
			return ndmodels.DeviceResult{ndmodels.FieldMAC: ndmodels.NormalizeMAC(m[2])}
		}
		if m := arpLinuxNeighRE.FindStringSubmatch(line); m != nil {
			return ndmodels.DeviceResult{ndmodels.FieldMAC: ndmodels.NormalizeMAC(m[1])}
		}
	}
	return nil
}
