package netdiscovery

import (
	"net"
	"testing"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

func rangeOf(start, end string) ndmodels.Range {
	return ndmodels.Range{Start: net.ParseIP(start), End: net.ParseIP(end)}
}

func TestAddressIterator_SingleAddress(t *testing.T) {
	it := NewAddressIterator(rangeOf("192.168.1.1", "192.168.1.1"))
	if it.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", it.Size())
	}
	ip, ok := it.Current()
	if !ok || ip.String() != "192.168.1.1" {
		t.Fatalf("Current() = %v, %v; want 192.168.1.1, true", ip, ok)
	}
	it.Advance()
	if _, ok := it.Current(); ok {
		t.Fatal("expected exhaustion after single-address range advances")
	}
}

func TestAddressIterator_Walks(t *testing.T) {
	it := NewAddressIterator(rangeOf("192.168.1.1", "192.168.1.3"))
	if it.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", it.Size())
	}
	var got []string
	for {
		ip, ok := it.Current()
		if !ok {
			break
		}
		got = append(got, ip.String())
		it.Advance()
	}
	want := []string{"192.168.1.1", "192.168.1.2", "192.168.1.3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("addr[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAddressIterator_InvalidRanges(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"end before start", "10.0.0.10", "10.0.0.1"},
		{"unparseable start", "garbage", "10.0.0.1"},
		{"all-zero block", "0.0.0.0", "0.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewAddressIterator(rangeOf(tt.start, tt.end))
			if it.Size() != 0 {
				t.Errorf("Size() = %d, want 0", it.Size())
			}
			if _, ok := it.Current(); ok {
				t.Error("expected no current address")
			}
		})
	}
}
