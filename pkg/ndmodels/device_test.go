package ndmodels

import "testing"

func TestDeviceResultMerge(t *testing.T) {
	r := DeviceResult{FieldMAC: "aa:bb:cc:dd:ee:ff", FieldSNMPHostname: "router1"}
	r.Merge(DeviceResult{FieldMAC: "11:22:33:44:55:66", FieldDNSHostname: ""})

	if r[FieldMAC] != "11:22:33:44:55:66" {
		t.Errorf("MAC = %q, want overwritten value", r[FieldMAC])
	}
	if r[FieldSNMPHostname] != "router1" {
		t.Errorf("SNMPHOSTNAME = %q, want untouched", r[FieldSNMPHostname])
	}
	if _, present := r[FieldDNSHostname]; present {
		t.Error("an empty-string field in other must not be merged in")
	}
}

func TestDeviceResultClone(t *testing.T) {
	r := DeviceResult{FieldMAC: "aa:bb:cc:dd:ee:ff"}
	clone := r.Clone()
	clone[FieldMAC] = "changed"

	if r[FieldMAC] != "aa:bb:cc:dd:ee:ff" {
		t.Error("mutating the clone must not affect the original")
	}
}
