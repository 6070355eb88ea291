package netdiscovery

import (
	"context"
	"encoding/binary"
	"net"
	"os"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/mod/semver"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// pingLibraryVersion is the version this probe reports to the feature gate
// described in the spec: a timestamp retry is only attempted when the ping
// library is new enough to support it (>= 2.67).
const pingLibraryVersion = "v3.10.0"

const pingMinTimestampVersion = "v2.67.0"

func supportsICMPTimestamp() bool {
	return semver.Compare(pingLibraryVersion, pingMinTimestampVersion) >= 0
}

// PingProbe performs an ICMP liveness check. A successful echo (or, on
// failure, a successful timestamp probe) sets DNSHOSTNAME to the address
// itself — a liveness marker, not a real hostname resolution.
type PingProbe struct {
	logger *zap.Logger
}

// NewPingProbe creates a Ping probe.
func NewPingProbe(logger *zap.Logger) *PingProbe {
	return &PingProbe{logger: logger}
}

func (p *PingProbe) Name() string { return "ping" }

func (p *PingProbe) Probe(ctx context.Context, ip net.IP, params ProbeParams) ndmodels.DeviceResult {
	if params.Walk != "" {
		return nil
	}

	const timeout = time.Second

	alive := p.echo(ctx, ip.String(), timeout)
	if !alive && supportsICMPTimestamp() {
		alive = p.timestamp(ctx, ip, timeout)
	}
	if !alive {
		return nil
	}
	return ndmodels.DeviceResult{ndmodels.FieldDNSHostname: ip.String()}
}

// echo sends a single ICMP echo request via pro-bing.
func (p *PingProbe) echo(ctx context.Context, target string, timeout time.Duration) bool {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		p.logger.Debug("ping probe: create pinger failed", zap.String("ip", target), zap.Error(err))
		return false
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()

	select {
	case err := <-done:
		if err != nil {
			p.logger.Debug("ping probe: echo failed", zap.String("ip", target), zap.Error(err))
			return false
		}
		return pinger.Statistics().PacketsRecv > 0
	case <-ctx.Done():
		pinger.Stop()
		return false
	}
}

// timestamp sends a single ICMP Timestamp request, used as a fallback when
// echo requests are filtered but timestamp requests are not.
func (p *PingProbe) timestamp(ctx context.Context, ip net.IP, timeout time.Duration) bool {
	target := ip.To4()
	if target == nil {
		return false
	}

	conn, network, err := openICMPListenConn()
	if err != nil {
		p.logger.Debug("ping probe: open icmp conn failed", zap.Error(err))
		return false
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	msg := &icmp.Message{
		Type: ipv4.ICMPTypeTimestamp,
		Code: 0,
		Body: &icmpTimestampBody{ID: id, Seq: 1},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return false
	}

	var dst net.Addr
	if network == "udp4" {
		dst = &net.UDPAddr{IP: target}
	} else {
		dst = &net.IPAddr{IP: target}
	}

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return false
	}
	if _, err := conn.WriteTo(wire, dst); err != nil {
		return false
	}

	buf := make([]byte, 512)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return false
		}
		reply, err := icmp.ParseMessage(1, buf[:n])
		if err != nil {
			continue
		}
		if reply.Type == ipv4.ICMPTypeTimestampReply {
			return true
		}
	}
}

// openICMPListenConn opens an ICMP listener, preferring the unprivileged
// "udp4" network and falling back to a raw socket. On Windows only the raw
// socket is used.
func openICMPListenConn() (*icmp.PacketConn, string, error) {
	if runtime.GOOS == "windows" {
		conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
		return conn, "ip4:icmp", err
	}
	conn, err := icmp.ListenPacket("udp4", "")
	if err == nil {
		return conn, "udp4", nil
	}
	conn, err = icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	return conn, "ip4:icmp", err
}

// icmpTimestampBody implements icmp.MessageBody for an ICMP Timestamp
// request (RFC 792): x/net/icmp has no built-in type for it.
type icmpTimestampBody struct {
	ID, Seq                      int
	Originate, Receive, Transmit uint32
}

func (b *icmpTimestampBody) Len(_ int) int { return 20 }

func (b *icmpTimestampBody) Marshal(_ int) ([]byte, error) {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint16(buf[0:2], uint16(b.ID))
	binary.BigEndian.PutUint16(buf[2:4], uint16(b.Seq))
	binary.BigEndian.PutUint32(buf[4:8], b.Originate)
	binary.BigEndian.PutUint32(buf[8:12], b.Receive)
	binary.BigEndian.PutUint32(buf[12:16], b.Transmit)
	return buf, nil
}
