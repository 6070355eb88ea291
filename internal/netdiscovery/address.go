// Package netdiscovery implements the NetDiscovery scan engine: address
// enumeration, multi-method probing, fusion, scheduling, and the reporting
// protocol that streams results back to a management server.
package netdiscovery

import (
	"net"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// AddressIterator enumerates the IPv4 addresses of an inclusive start-end
// range. A structurally invalid range (unparseable endpoints, end before
// start, or a start address of 0.0.0.0 — the all-zero block the source
// implementation's `binip !~ /1/` check rejects) has Size() == 0 and
// produces no addresses.
type AddressIterator struct {
	valid      bool
	start, end uint32
	cur        uint32
	done       bool
}

// NewAddressIterator builds an iterator over r. It never returns an error;
// an invalid range simply yields a zero-size, exhausted iterator so callers
// can log a warning and move on without special-casing construction.
func NewAddressIterator(r ndmodels.Range) *AddressIterator {
	s, e := r.Start.To4(), r.End.To4()
	if s == nil || e == nil {
		return &AddressIterator{done: true}
	}
	su, eu := ipToUint32(s), ipToUint32(e)
	if su > eu || su == 0 {
		return &AddressIterator{done: true}
	}
	return &AddressIterator{valid: true, start: su, end: eu, cur: su}
}

// Size returns the total number of addresses in the range.
func (it *AddressIterator) Size() uint64 {
	if !it.valid {
		return 0
	}
	return uint64(it.end-it.start) + 1
}

// Current returns the address the iterator is positioned at, and false once
// the range is exhausted.
func (it *AddressIterator) Current() (net.IP, bool) {
	if !it.valid || it.done {
		return nil, false
	}
	return uint32ToIP(it.cur), true
}

// Advance moves the iterator to the next address. Calling it past the end
// of the range is a no-op; subsequent Current calls report exhaustion.
func (it *AddressIterator) Advance() {
	if !it.valid || it.done {
		return
	}
	if it.cur == it.end {
		it.done = true
		return
	}
	it.cur++
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uint32ToIP(u uint32) net.IP {
	return net.IPv4(byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
