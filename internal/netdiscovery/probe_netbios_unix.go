//go:build !windows

package netdiscovery

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// dialNetBIOS opens a UDP socket connected to ip:137 with SO_REUSEADDR set
// on the underlying file descriptor, so the probe can bind an ephemeral
// local port even while another process (a local Samba/nmbd daemon, or a
// concurrent probe against a different target) holds a UDP/137 socket of
// its own open.
func dialNetBIOS(ip net.IP) (*net.UDPConn, error) {
	dialer := net.Dialer{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	raddr := net.JoinHostPort(ip.String(), fmt.Sprintf("%d", netbiosPort))
	c, err := dialer.DialContext(context.Background(), "udp4", raddr)
	if err != nil {
		return nil, fmt.Errorf("netbios: dial: %w", err)
	}
	conn, ok := c.(*net.UDPConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("netbios: unexpected conn type %T", c)
	}
	return conn, nil
}
