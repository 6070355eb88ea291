package netdiscovery

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

const netbiosPort = 137

// netbiosNameFlagGroup is the GROUP bit (bit 15) of a NetBIOS NAME_FLAGS
// field in a node status response (RFC 1002 §4.2.18).
const netbiosNameFlagGroup = 0x8000

// NetBIOSProbe queries a host's NetBIOS node status (NBSTAT) over UDP/137.
// No off-the-shelf NetBIOS client exists in the module's dependency
// corpus, so the request/response wire format is hand-encoded, in the same
// style as the ping probe's ICMP Timestamp body encoding.
type NetBIOSProbe struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewNetBIOSProbe creates a NetBIOS node status probe.
func NewNetBIOSProbe(logger *zap.Logger, timeout time.Duration) *NetBIOSProbe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NetBIOSProbe{logger: logger, timeout: timeout}
}

func (p *NetBIOSProbe) Name() string { return "netbios" }

func (p *NetBIOSProbe) Probe(ctx context.Context, ip net.IP, params ProbeParams) ndmodels.DeviceResult {
	if params.Walk != "" {
		return nil
	}

	names, mac, err := p.queryNodeStatus(ctx, ip)
	if err != nil {
		p.logger.Debug("netbios probe failed", zap.String("ip", ip.String()), zap.Error(err))
		return nil
	}

	result := ndmodels.DeviceResult{}
	if mac != "" {
		result[ndmodels.FieldMAC] = mac
	}
	for _, n := range names {
		switch {
		case n.suffix == 0x00 && n.group:
			result[ndmodels.FieldWorkgroup] = n.name
		case n.suffix == 0x03 && !n.group:
			result[ndmodels.FieldUserSession] = n.name
		case n.suffix == 0x00 && !n.group && !strings.HasPrefix(n.name, "IS~"):
			result[ndmodels.FieldNetBIOSName] = n.name
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

type netbiosName struct {
	name   string
	suffix byte
	group  bool
}

// queryNodeStatus sends a wildcard NBSTAT query and parses the response's
// name table and adapter MAC address.
func (p *NetBIOSProbe) queryNodeStatus(ctx context.Context, ip net.IP) ([]netbiosName, string, error) {
	conn, err := dialNetBIOS(ip)
	if err != nil {
		return nil, "", err
	}
	defer conn.Close()

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, "", err
	}

	req := encodeNBStatRequest(1)
	if _, err := conn.Write(req); err != nil {
		return nil, "", err
	}

	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, "", err
	}
	return parseNBStatResponse(buf[:n])
}

// encodeNBStatRequest builds a NetBIOS Name Service NBSTAT query for the
// wildcard name "*" (RFC 1002 §4.2.18).
func encodeNBStatRequest(transactionID uint16) []byte {
	buf := make([]byte, 0, 50)
	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[0:2], transactionID)
	// Flags = 0 (standard query, recursion not desired); 1 question.
	binary.BigEndian.PutUint16(header[4:6], 1)
	buf = append(buf, header...)

	// First-level encoded name: 16-byte padded name "*", each byte split
	// into two nibbles mapped onto 'A'-'P'.
	rawName := make([]byte, 16)
	rawName[0] = '*'
	encoded := make([]byte, 32)
	for i, b := range rawName {
		encoded[i*2] = 'A' + (b >> 4)
		encoded[i*2+1] = 'A' + (b & 0x0f)
	}
	buf = append(buf, 0x20) // length prefix (32)
	buf = append(buf, encoded...)
	buf = append(buf, 0x00) // root label terminator

	qtypeClass := make([]byte, 4)
	binary.BigEndian.PutUint16(qtypeClass[0:2], 0x0021) // NBSTAT
	binary.BigEndian.PutUint16(qtypeClass[2:4], 0x0001) // IN
	buf = append(buf, qtypeClass...)
	return buf
}

// parseNBStatResponse extracts the name table and adapter MAC address from
// an NBSTAT response packet.
func parseNBStatResponse(pkt []byte) ([]netbiosName, string, error) {
	if len(pkt) < 12 {
		return nil, "", fmt.Errorf("netbios: short packet (%d bytes)", len(pkt))
	}
	ancount := binary.BigEndian.Uint16(pkt[6:8])
	if ancount == 0 {
		return nil, "", fmt.Errorf("netbios: no answer records")
	}

	off := 12
	// Skip the (encoded) question name.
	off, err := skipNBName(pkt, off)
	if err != nil {
		return nil, "", err
	}
	off += 4 // QTYPE + QCLASS

	// Answer record: name, type, class, ttl, rdlength, rdata.
	off, err = skipNBName(pkt, off)
	if err != nil {
		return nil, "", err
	}
	if off+10 > len(pkt) {
		return nil, "", fmt.Errorf("netbios: truncated answer header")
	}
	off += 8 // TYPE + CLASS + TTL
	rdlength := int(binary.BigEndian.Uint16(pkt[off : off+2]))
	off += 2
	if off+rdlength > len(pkt) || rdlength < 1 {
		return nil, "", fmt.Errorf("netbios: truncated rdata")
	}
	rdata := pkt[off : off+rdlength]

	numNames := int(rdata[0])
	pos := 1
	names := make([]netbiosName, 0, numNames)
	for i := 0; i < numNames && pos+18 <= len(rdata); i++ {
		nameBytes := rdata[pos : pos+15]
		suffix := rdata[pos+15]
		flags := binary.BigEndian.Uint16(rdata[pos+16 : pos+18])
		names = append(names, netbiosName{
			name:   strings.TrimRight(string(nameBytes), " "),
			suffix: suffix,
			group:  flags&netbiosNameFlagGroup != 0,
		})
		pos += 18
	}

	mac := ""
	if pos+6 <= len(rdata) {
		macBytes := rdata[pos : pos+6]
		mac = ndmodels.NormalizeMAC(fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
			macBytes[0], macBytes[1], macBytes[2], macBytes[3], macBytes[4], macBytes[5]))
	}

	return names, mac, nil
}

// skipNBName advances past a (possibly compressed) encoded NetBIOS name
// starting at off, returning the offset just past it.
func skipNBName(pkt []byte, off int) (int, error) {
	if off >= len(pkt) {
		return 0, fmt.Errorf("netbios: name offset out of range")
	}
	if pkt[off]&0xc0 == 0xc0 {
		// Compressed name pointer: 2 bytes.
		return off + 2, nil
	}
	length := int(pkt[off])
	if length == 0 {
		return off + 1, nil
	}
	end := off + 1 + length + 1 // length byte + name + terminator
	if end > len(pkt) {
		return 0, fmt.Errorf("netbios: name extends past packet")
	}
	return end, nil
}
