package netdiscovery

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

var (
	defaultSNMPPorts   = []uint16{161}
	defaultSNMPDomains = []string{"udp/ipv4"}
)

// sysName/sysDescr OIDs queried to identify a device. sysDescr is accepted
// as a fallback identifier when sysName is empty, matching the "any
// structured device info" success criterion from the credential trial.
const (
	oidSysDescr = "1.3.6.1.2.1.1.1.0"
	oidSysName  = "1.3.6.1.2.1.1.5.0"
)

// SNMPTransport performs one (ip, port, domain, credential) SNMP query. The
// live transport talks to the network via gosnmp; the walk transport
// replays a fixture file. Both return a non-nil error on an empty or
// unreachable target so credential trial can treat the failure as
// non-terminal.
type SNMPTransport interface {
	Query(ctx context.Context, ip net.IP, port uint16, domain string, timeout time.Duration, cred ndmodels.Credential) (ndmodels.DeviceResult, error)
}

// SNMPProbe is the C2 SNMP probe. It delegates the actual network exchange
// to an SNMPTransport and the trial ordering to CredentialTrial (C4).
type SNMPProbe struct {
	logger    *zap.Logger
	transport SNMPTransport
}

// NewSNMPProbe creates an SNMP probe backed by the live gosnmp transport.
func NewSNMPProbe(logger *zap.Logger) *SNMPProbe {
	return &SNMPProbe{
		logger:    logger,
		transport: &liveSNMPTransport{logger: logger},
	}
}

func (p *SNMPProbe) Name() string { return "snmp" }

func (p *SNMPProbe) Probe(ctx context.Context, ip net.IP, params ProbeParams) ndmodels.DeviceResult {
	if len(params.Credentials) == 0 {
		return nil
	}
	transport := p.transport
	if params.Walk != "" {
		transport = &fileReplaySNMPTransport{path: params.Walk}
	}
	return CredentialTrial(ctx, p.logger, transport, ip, params)
}

// CredentialTrial iterates the cross-product of (port x credential x
// domain), in that nesting order, against transport until one trial
// returns structured device info. The winning trial is annotated with
// AUTHSNMP, AUTHPORT, and AUTHPROTOCOL. Every other trial's failure is
// logged at debug and does not stop iteration.
func CredentialTrial(ctx context.Context, logger *zap.Logger, transport SNMPTransport, ip net.IP, params ProbeParams) ndmodels.DeviceResult {
	ports := params.Ports
	if len(ports) == 0 {
		ports = defaultSNMPPorts
	}
	domains := params.Domains
	if len(domains) == 0 {
		domains = defaultSNMPDomains
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	for _, port := range ports {
		for _, cred := range params.Credentials {
			for _, domain := range domains {
				result, err := transport.Query(ctx, ip, port, domain, timeout, cred)
				if err != nil {
					logger.Debug("snmp credential trial miss",
						zap.String("ip", ip.String()),
						zap.Uint16("port", port),
						zap.String("credential", cred.ID),
						zap.String("domain", domain),
						zap.Error(err))
					continue
				}
				result[ndmodels.FieldAuthSNMP] = cred.ID
				result[ndmodels.FieldAuthPort] = strconv.Itoa(int(port))
				result[ndmodels.FieldAuthProtocol] = domain
				return result
			}
		}
	}
	logger.Debug("snmp credential trial exhausted",
		zap.String("ip", ip.String()),
		zap.Error(fmt.Errorf("%d port(s) x %d credential(s) x %d domain(s): %w", len(ports), len(params.Credentials), len(domains), ErrCredentialMiss)))
	return nil
}

// liveSNMPTransport queries real devices via gosnmp.
type liveSNMPTransport struct {
	logger *zap.Logger
}

func (t *liveSNMPTransport) Query(ctx context.Context, ip net.IP, port uint16, domain string, timeout time.Duration, cred ndmodels.Credential) (ndmodels.DeviceResult, error) {
	client, err := buildSNMPClient(ip.String(), port, timeout, cred)
	if err != nil {
		return nil, fmt.Errorf("snmp: build client: %w", err)
	}

	client.Context = ctx
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("snmp: connect: %w", err)
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oidSysName, oidSysDescr})
	if err != nil {
		return nil, fmt.Errorf("snmp: get: %w", err)
	}
	if result.Error != gosnmp.NoError {
		return nil, fmt.Errorf("snmp: agent error %s", result.Error)
	}

	record := ndmodels.DeviceResult{}
	for _, pdu := range result.Variables {
		if pdu.Type == gosnmp.NoSuchObject || pdu.Type == gosnmp.NoSuchInstance {
			continue
		}
		name, ok := pdu.Value.([]byte)
		if !ok {
			continue
		}
		switch pdu.Name {
		case "." + oidSysName, oidSysName:
			if len(name) > 0 {
				record[ndmodels.FieldSNMPHostname] = string(name)
			}
		case "." + oidSysDescr, oidSysDescr:
			if record[ndmodels.FieldSNMPHostname] == "" && len(name) > 0 {
				record[ndmodels.FieldSNMPHostname] = string(name)
			}
		}
	}
	if len(record) == 0 {
		return nil, fmt.Errorf("snmp: no structured device info returned")
	}
	return record, nil
}

// buildSNMPClient configures a gosnmp client for the credential's version.
func buildSNMPClient(target string, port uint16, timeout time.Duration, cred ndmodels.Credential) (*gosnmp.GoSNMP, error) {
	client := &gosnmp.GoSNMP{
		Target:  target,
		Port:    port,
		Timeout: timeout,
		Retries: 1,
	}

	switch cred.Version {
	case ndmodels.SNMPv1:
		client.Version = gosnmp.Version1
		client.Community = cred.Community
	case ndmodels.SNMPv2c:
		client.Version = gosnmp.Version2c
		client.Community = cred.Community
	case ndmodels.SNMPv3:
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel
		authProto, privProto := snmpv3Protocols(cred)
		msgFlags := gosnmp.NoAuthNoPriv
		if cred.AuthPassword != "" {
			msgFlags = gosnmp.AuthNoPriv
		}
		if cred.PrivPassword != "" {
			msgFlags = gosnmp.AuthPriv
		}
		client.MsgFlags = msgFlags
		client.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cred.Username,
			AuthenticationProtocol:   authProto,
			AuthenticationPassphrase: cred.AuthPassword,
			PrivacyProtocol:          privProto,
			PrivacyPassphrase:        cred.PrivPassword,
		}
	default:
		return nil, fmt.Errorf("snmp: unsupported credential version %q", cred.Version)
	}
	return client, nil
}

func snmpv3Protocols(cred ndmodels.Credential) (gosnmp.SnmpV3AuthProtocol, gosnmp.SnmpV3PrivProtocol) {
	authProto := gosnmp.NoAuth
	switch strings.ToUpper(cred.AuthProtocol) {
	case "MD5":
		authProto = gosnmp.MD5
	case "SHA":
		authProto = gosnmp.SHA
	case "SHA256":
		authProto = gosnmp.SHA256
	}
	privProto := gosnmp.NoPriv
	switch strings.ToUpper(cred.PrivProtocol) {
	case "DES":
		privProto = gosnmp.DES
	case "AES":
		privProto = gosnmp.AES
	}
	return authProto, privProto
}

// fileReplaySNMPTransport replays a fixture instead of talking to the
// network, for Range.Walk mode. The fixture is a simple KEY=VALUE-per-line
// text file; an empty or unreadable file is treated as a trial miss. The
// trial loop in CredentialTrial still runs identically over it (typically
// with a single credential), so the same file is read once per trial.
type fileReplaySNMPTransport struct {
	path string
}

func (t *fileReplaySNMPTransport) Query(_ context.Context, _ net.IP, _ uint16, _ string, _ time.Duration, _ ndmodels.Credential) (ndmodels.DeviceResult, error) {
	return queryReplayFile(t.path)
}

// queryReplayFile reads a single fixture file for file-replay mode.
func queryReplayFile(path string) (ndmodels.DeviceResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snmp walk: open %s: %w", path, err)
	}
	defer f.Close()

	record := ndmodels.DeviceResult{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		record[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("snmp walk: read %s: %w", path, err)
	}
	if len(record) == 0 {
		return nil, fmt.Errorf("snmp walk: %s: no structured device info returned", path)
	}
	return record, nil
}
