//go:build windows

package netdiscovery

import (
	"fmt"
	"net"
)

// dialNetBIOS opens a plain UDP socket connected to ip:137. Windows'
// winsock stack does not need the SO_REUSEADDR workaround the unix variant
// applies, so this is a direct net.Dial.
func dialNetBIOS(ip net.IP) (*net.UDPConn, error) {
	raddr := net.JoinHostPort(ip.String(), fmt.Sprintf("%d", netbiosPort))
	conn, err := net.Dial("udp4", raddr)
	if err != nil {
		return nil, fmt.Errorf("netbios: dial: %w", err)
	}
	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("netbios: unexpected conn type %T", conn)
	}
	return udpConn, nil
}
