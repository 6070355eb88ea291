package netdiscovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// trialCall records one invocation made against a fakeSNMPTransport.
type trialCall struct {
	port   uint16
	credID string
	domain string
}

type fakeSNMPTransport struct {
	calls []trialCall
	hitAt trialCall
	hit   ndmodels.DeviceResult
}

func (f *fakeSNMPTransport) Query(_ context.Context, _ net.IP, port uint16, domain string, _ time.Duration, cred ndmodels.Credential) (ndmodels.DeviceResult, error) {
	call := trialCall{port: port, credID: cred.ID, domain: domain}
	f.calls = append(f.calls, call)
	if call == f.hitAt {
		return f.hit.Clone(), nil
	}
	return nil, fmt.Errorf("snmp: no structured device info returned")
}

func TestCredentialTrial_OrderAndHit(t *testing.T) {
	// S4: ports [161,1161], credentials [c1,c2], domain [udp/ipv4]; first
	// hit at (1161, c1).
	logger := zap.NewNop()
	transport := &fakeSNMPTransport{
		hitAt: trialCall{port: 1161, credID: "c1", domain: "udp/ipv4"},
		hit:   ndmodels.DeviceResult{ndmodels.FieldSNMPHostname: "switch1"},
	}

	params := ProbeParams{
		Ports:   []uint16{161, 1161},
		Domains: []string{"udp/ipv4"},
		Credentials: []ndmodels.Credential{
			{ID: "c1", Version: ndmodels.SNMPv2c, Community: "public"},
			{ID: "c2", Version: ndmodels.SNMPv2c, Community: "private"},
		},
		Timeout: time.Second,
	}

	result := CredentialTrial(context.Background(), logger, transport, net.ParseIP("10.0.0.5"), params)
	if result == nil {
		t.Fatal("expected a hit, got nil")
	}
	if result[ndmodels.FieldAuthSNMP] != "c1" {
		t.Errorf("AUTHSNMP = %q, want c1", result[ndmodels.FieldAuthSNMP])
	}
	if result[ndmodels.FieldAuthPort] != "1161" {
		t.Errorf("AUTHPORT = %q, want 1161", result[ndmodels.FieldAuthPort])
	}
	if result[ndmodels.FieldAuthProtocol] != "udp/ipv4" {
		t.Errorf("AUTHPROTOCOL = %q, want udp/ipv4", result[ndmodels.FieldAuthProtocol])
	}
	if result[ndmodels.FieldSNMPHostname] != "switch1" {
		t.Errorf("SNMPHOSTNAME = %q, want switch1", result[ndmodels.FieldSNMPHostname])
	}

	wantOrder := []trialCall{
		{161, "c1", "udp/ipv4"},
		{161, "c2", "udp/ipv4"},
		{1161, "c1", "udp/ipv4"},
	}
	if len(transport.calls) != len(wantOrder) {
		t.Fatalf("calls = %v, want %v", transport.calls, wantOrder)
	}
	for i, want := range wantOrder {
		if transport.calls[i] != want {
			t.Errorf("calls[%d] = %+v, want %+v", i, transport.calls[i], want)
		}
	}
}

func TestCredentialTrial_AllMiss(t *testing.T) {
	logger := zap.NewNop()
	transport := &fakeSNMPTransport{hitAt: trialCall{port: 9999}}
	params := ProbeParams{
		Credentials: []ndmodels.Credential{{ID: "c1", Version: ndmodels.SNMPv1, Community: "public"}},
	}
	result := CredentialTrial(context.Background(), logger, transport, net.ParseIP("10.0.0.5"), params)
	if result != nil {
		t.Fatalf("expected nil result on all-miss, got %v", result)
	}
}

func TestSNMPProbe_EmptyCredentialsDisablesProbe(t *testing.T) {
	probe := NewSNMPProbe(zap.NewNop())
	result := probe.Probe(context.Background(), net.ParseIP("10.0.0.1"), ProbeParams{})
	if result != nil {
		t.Fatalf("expected nil result with no credentials, got %v", result)
	}
}

func TestQueryReplayFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/fixture.txt"
	content := "SNMPHOSTNAME=router1\n# comment\n\nENTITY=lab\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	result, err := queryReplayFile(path)
	if err != nil {
		t.Fatalf("queryReplayFile() error = %v", err)
	}
	if result["SNMPHOSTNAME"] != "router1" {
		t.Errorf("SNMPHOSTNAME = %q, want router1", result["SNMPHOSTNAME"])
	}
	if result["ENTITY"] != "lab" {
		t.Errorf("ENTITY = %q, want lab", result["ENTITY"])
	}
}

func TestQueryReplayFile_Missing(t *testing.T) {
	if _, err := queryReplayFile("/nonexistent/path/fixture.txt"); err == nil {
		t.Fatal("expected error for missing fixture file")
	}
}
