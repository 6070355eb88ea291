package netdiscovery

import (
	"encoding/xml"
	"sort"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// queryType is the XML query type every NETDISCOVERY envelope is tagged
// with.
const queryType = "NETDISCOVERY"

// AgentBlock carries the AGENT sub-message of an envelope. Exactly one of
// Start, NBIP, End, Exit is set per message shape (§4.7); pointers
// distinguish "unset" from the legitimate zero value (NBIP(0)).
type AgentBlock struct {
	Start        *int   `xml:"START,omitempty"`
	AgentVersion string `xml:"AGENTVERSION,omitempty"`
	NBIP         *int   `xml:"NBIP,omitempty"`
	End          *int   `xml:"END,omitempty"`
	Exit         *int   `xml:"EXIT,omitempty"`
}

// deviceElement renders a DeviceResult as a DEVICE element with one child
// element per field, in stable (sorted) key order.
type deviceElement ndmodels.DeviceResult

func (d deviceElement) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "DEVICE"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field := xml.StartElement{Name: xml.Name{Local: k}}
		if err := e.EncodeElement(d[k], field); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Envelope is one outbound NETDISCOVERY XML message. Field names and
// casing match §4.7 of the wire protocol exactly.
type Envelope struct {
	XMLName       xml.Name       `xml:"REQUEST"`
	DeviceID      string         `xml:"deviceid,attr"`
	Query         string         `xml:"QUERY"`
	ProcessNumber uint32         `xml:"PROCESSNUMBER"`
	ModuleVersion string         `xml:"MODULEVERSION,omitempty"`
	Agent         *AgentBlock    `xml:"AGENT,omitempty"`
	Device        *deviceElement `xml:"DEVICE,omitempty"`
}

// Marshal serializes the envelope to its wire XML form.
func (e Envelope) Marshal() ([]byte, error) {
	return xml.Marshal(e)
}

func intPtr(v int) *int { return &v }

// BuildStart constructs the START message: sent once per job before any
// other message.
func BuildStart(deviceID string, pid uint32, agentVersion, moduleVersion string) Envelope {
	return Envelope{
		DeviceID:      deviceID,
		Query:         queryType,
		ProcessNumber: pid,
		ModuleVersion: moduleVersion,
		Agent:         &AgentBlock{Start: intPtr(1), AgentVersion: agentVersion},
	}
}

// BuildNBIP constructs the NBIP message announcing the job's total address
// count.
func BuildNBIP(deviceID string, pid uint32, count int) Envelope {
	return Envelope{
		DeviceID:      deviceID,
		Query:         queryType,
		ProcessNumber: pid,
		Agent:         &AgentBlock{NBIP: intPtr(count)},
	}
}

// BuildDevice constructs a DEVICE message carrying one accepted device
// record.
func BuildDevice(deviceID string, pid uint32, moduleVersion string, record ndmodels.DeviceResult) Envelope {
	d := deviceElement(record)
	return Envelope{
		DeviceID:      deviceID,
		Query:         queryType,
		ProcessNumber: pid,
		ModuleVersion: moduleVersion,
		Device:        &d,
	}
}

// BuildEnd constructs the END message. The scheduler sends this twice on
// normal job completion — see Scheduler.applyResult, not this builder —
// preserving the source's redundant-END wire behavior.
func BuildEnd(deviceID string, pid uint32, moduleVersion string) Envelope {
	return Envelope{
		DeviceID:      deviceID,
		Query:         queryType,
		ProcessNumber: pid,
		ModuleVersion: moduleVersion,
		Agent:         &AgentBlock{End: intPtr(1)},
	}
}

// BuildExit constructs the EXIT message, sent for jobs still resident when
// abort wins.
func BuildExit(deviceID string, pid uint32, moduleVersion string) Envelope {
	return Envelope{
		DeviceID:      deviceID,
		Query:         queryType,
		ProcessNumber: pid,
		ModuleVersion: moduleVersion,
		Agent:         &AgentBlock{Exit: intPtr(1)},
	}
}
