// Package ndmodels holds the wire-level types shared between the
// NetDiscovery engine and the outer task framework that drives it.
package ndmodels

import "strings"

// Fields recognized on a DeviceResult. Only a subset is ever present on a
// given record; callers should treat DeviceResult as a sparse map.
const (
	FieldIP           = "IP"
	FieldMAC          = "MAC"
	FieldDNSHostname  = "DNSHOSTNAME"
	FieldSNMPHostname = "SNMPHOSTNAME"
	FieldNetBIOSName  = "NETBIOSNAME"
	FieldWorkgroup    = "WORKGROUP"
	FieldUserSession  = "USERSESSION"
	FieldAuthSNMP     = "AUTHSNMP"
	FieldAuthPort     = "AUTHPORT"
	FieldAuthProtocol = "AUTHPROTOCOL"
	FieldEntity       = "ENTITY"
)

// DeviceResult is a sparse bag of fields describing one discovered device.
// It is merged from one or more probes (see netdiscovery.Fusion) and, once
// accepted, has the lifetime of a single outbound DEVICE message.
type DeviceResult map[string]string

// Clone returns an independent copy of r.
func (r DeviceResult) Clone() DeviceResult {
	out := make(DeviceResult, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge overwrites r's fields with any non-empty field present in other,
// returning r for chaining. Used by fusion to combine probe outputs; the
// caller controls priority by the order in which Merge is invoked.
func (r DeviceResult) Merge(other DeviceResult) DeviceResult {
	for k, v := range other {
		if v != "" {
			r[k] = v
		}
	}
	return r
}

// HasIdentifyingField reports whether r carries at least one of the four
// fields the acceptance invariant requires: MAC, SNMPHOSTNAME, DNSHOSTNAME,
// or NETBIOSNAME.
func (r DeviceResult) HasIdentifyingField() bool {
	for _, f := range []string{FieldMAC, FieldSNMPHostname, FieldDNSHostname, FieldNetBIOSName} {
		if r[f] != "" {
			return true
		}
	}
	return false
}

// NormalizeMAC canonicalizes a MAC address to lowercase colon-hex
// (xx:xx:xx:xx:xx:xx), accepting dash- or colon-separated input. Returns
// "" if mac cannot be parsed into six octets.
func NormalizeMAC(mac string) string {
	mac = strings.TrimSpace(mac)
	mac = strings.ReplaceAll(mac, "-", ":")
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return ""
	}
	out := make([]string, 6)
	for i, p := range parts {
		if len(p) != 2 {
			return ""
		}
		out[i] = strings.ToLower(p)
		for _, c := range out[i] {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
				return ""
			}
		}
	}
	return strings.Join(out, ":")
}
