package netdiscovery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// Sender posts one serialized envelope to the server. Split out from
// Reporter so tests can substitute a recording fake instead of an HTTP
// round trip.
type Sender interface {
	Send(ctx context.Context, body []byte) error
}

// HTTPSender POSTs envelope bodies to a fixed URL as application/xml.
type HTTPSender struct {
	client *http.Client
	url    string
}

// NewHTTPSender creates a Sender bound to url with the given request
// timeout.
func NewHTTPSender(url string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{client: &http.Client{Timeout: timeout}, url: url}
}

func (s *HTTPSender) Send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("transport: server returned %s", resp.Status)
	}
	return nil
}

// Reporter emits the five NETDISCOVERY lifecycle messages (C7) for a
// single device identifier. Every Send* call is best-effort: failures are
// logged and swallowed, never propagated to the scheduler, matching the
// "reporting failure does not abort the job" error-handling rule.
type Reporter struct {
	sender        Sender
	logger        *zap.Logger
	deviceID      string
	agentVersion  string
	moduleVersion string
	metrics       *Metrics
}

// NewReporter creates a Reporter that sends through sender, tagging every
// envelope with deviceID and the given version strings. An empty deviceID
// falls back to a generated UUID — the agent still needs a stable-enough
// identity for the run even when no device ID was configured.
func NewReporter(sender Sender, logger *zap.Logger, deviceID, agentVersion, moduleVersion string) *Reporter {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	return &Reporter{
		sender:        sender,
		logger:        logger,
		deviceID:      deviceID,
		agentVersion:  agentVersion,
		moduleVersion: moduleVersion,
	}
}

// WithMetrics attaches a Metrics instance for transport-send-failure
// counting and returns r for chaining. Passing nil detaches it.
func (r *Reporter) WithMetrics(m *Metrics) *Reporter {
	r.metrics = m
	return r
}

func (r *Reporter) send(ctx context.Context, pid uint32, kind string, envelope Envelope) {
	body, err := envelope.Marshal()
	if err != nil {
		r.logger.Error("netdiscovery: failed to marshal envelope", zap.String("kind", kind), zap.Uint32("pid", pid), zap.Error(err))
		return
	}
	if err := r.sender.Send(ctx, body); err != nil {
		r.logger.Error("netdiscovery: failed to send envelope", zap.String("kind", kind), zap.Uint32("pid", pid), zap.Error(fmt.Errorf("%w: %v", ErrTransportSendFailure, err)))
		if r.metrics != nil {
			r.metrics.SendError()
		}
	}
}

func (r *Reporter) SendStart(ctx context.Context, pid uint32) {
	r.send(ctx, pid, "START", BuildStart(r.deviceID, pid, r.agentVersion, r.moduleVersion))
}

func (r *Reporter) SendNBIP(ctx context.Context, pid uint32, count int) {
	r.send(ctx, pid, "NBIP", BuildNBIP(r.deviceID, pid, count))
}

func (r *Reporter) SendDevice(ctx context.Context, pid uint32, record ndmodels.DeviceResult) {
	r.send(ctx, pid, "DEVICE", BuildDevice(r.deviceID, pid, r.moduleVersion, record))
}

func (r *Reporter) SendEnd(ctx context.Context, pid uint32) {
	r.send(ctx, pid, "END", BuildEnd(r.deviceID, pid, r.moduleVersion))
}

func (r *Reporter) SendExit(ctx context.Context, pid uint32) {
	r.send(ctx, pid, "EXIT", BuildExit(r.deviceID, pid, r.moduleVersion))
}
