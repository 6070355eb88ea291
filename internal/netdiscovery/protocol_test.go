package netdiscovery

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

func TestBuildStart_Shape(t *testing.T) {
	body, err := BuildStart("agent-1", 42, "1.0", "2.0").Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	xmlStr := string(body)
	for _, want := range []string{`deviceid="agent-1"`, "<QUERY>NETDISCOVERY</QUERY>", "<PROCESSNUMBER>42</PROCESSNUMBER>", "<START>1</START>", "<AGENTVERSION>1.0</AGENTVERSION>", "<MODULEVERSION>2.0</MODULEVERSION>"} {
		if !strings.Contains(xmlStr, want) {
			t.Errorf("START envelope missing %q in %s", want, xmlStr)
		}
	}
}

func TestBuildNBIP_ZeroCountRendered(t *testing.T) {
	body, err := BuildNBIP("agent-1", 42, 0).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(body), "<NBIP>0</NBIP>") {
		t.Errorf("expected NBIP(0) to render explicitly, got %s", body)
	}
}

func TestBuildDevice_FieldsPresent(t *testing.T) {
	record := ndmodels.DeviceResult{
		ndmodels.FieldIP:          "192.0.2.5",
		ndmodels.FieldMAC:         "aa:bb:cc:dd:ee:ff",
		ndmodels.FieldDNSHostname: "host",
	}
	body, err := BuildDevice("agent-1", 42, "2.0", record).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	xmlStr := string(body)
	for _, want := range []string{"<IP>192.0.2.5</IP>", "<MAC>aa:bb:cc:dd:ee:ff</MAC>", "<DNSHOSTNAME>host</DNSHOSTNAME>"} {
		if !strings.Contains(xmlStr, want) {
			t.Errorf("DEVICE envelope missing %q in %s", want, xmlStr)
		}
	}
}

func TestBuildEnd_BuildExit_Shape(t *testing.T) {
	end, _ := BuildEnd("a", 1, "v").Marshal()
	if !strings.Contains(string(end), "<END>1</END>") {
		t.Errorf("END envelope missing END marker: %s", end)
	}
	exit, _ := BuildExit("a", 1, "v").Marshal()
	if !strings.Contains(string(exit), "<EXIT>1</EXIT>") {
		t.Errorf("EXIT envelope missing EXIT marker: %s", exit)
	}
}

// recordingSender captures every Send call for assertions on ordering.
type recordingSender struct {
	mu    sync.Mutex
	sent  [][]byte
	fail  bool
}

func (s *recordingSender) Send(_ context.Context, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errSendFailed
	}
	s.sent = append(s.sent, body)
	return nil
}

var errSendFailed = &sendError{}

type sendError struct{}

func (*sendError) Error() string { return "send failed" }

func TestReporter_SendFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{fail: true}
	reporter := NewReporter(sender, zap.NewNop(), "agent-1", "1.0", "2.0")

	// Must not panic and must not propagate an error anywhere: these
	// methods return nothing.
	reporter.SendStart(context.Background(), 1)
	reporter.SendEnd(context.Background(), 1)
}

func TestReporter_EmitsInOrder(t *testing.T) {
	sender := &recordingSender{}
	reporter := NewReporter(sender, zap.NewNop(), "agent-1", "1.0", "2.0")
	ctx := context.Background()

	reporter.SendStart(ctx, 42)
	reporter.SendNBIP(ctx, 42, 2)
	reporter.SendEnd(ctx, 42)
	reporter.SendEnd(ctx, 42)

	if len(sender.sent) != 4 {
		t.Fatalf("len(sent) = %d, want 4", len(sender.sent))
	}
	if !strings.Contains(string(sender.sent[0]), "<START>1</START>") {
		t.Error("message 0 should be START")
	}
	if !strings.Contains(string(sender.sent[1]), "<NBIP>2</NBIP>") {
		t.Error("message 1 should be NBIP(2)")
	}
	if !strings.Contains(string(sender.sent[2]), "<END>1</END>") || !strings.Contains(string(sender.sent[3]), "<END>1</END>") {
		t.Error("messages 2 and 3 should both be END")
	}
}
