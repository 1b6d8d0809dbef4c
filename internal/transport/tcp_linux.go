//go:build linux

package transport

import (
	"net"
	"syscall"
)

func setTCPOptions(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if sockErr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); sockErr != nil {
			return
		}
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
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
