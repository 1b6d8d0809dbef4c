//go:build !linux

package transport

import (
	"net"
	"syscall"
)

func setTCPOptions(_, _ string, _ syscall.RawConn) error {
	return nil
}

// SetAdaptiveTCPOptions enables no delay and keepalive on accepted connections.
func SetAdaptiveTCPOptions(conn net.Conn) error {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			return err
		}
		return tcpConn.SetKeepAlive(true)
	}
	return nil
}
