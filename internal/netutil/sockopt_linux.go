//go:build linux

// Package netutil configures TCP performance options on raw sockets via
// net.Dialer.Control / net.ListenConfig.Control, adapted from the
// reference proxy's platform-specific socket tuning.
package netutil

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// ControlDial tunes an outbound (upstream-connect) socket: disables
// Nagle's algorithm and enables TCP keepalive with a conservative idle
// schedule so idle relay connections are detected and reclaimed.
func ControlDial(network, address string, c syscall.RawConn) error {
	var sysErr error
	err := c.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); e != nil {
			sysErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); e != nil {
			sysErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 30); e != nil {
			sysErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10); e != nil {
			sysErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3); e != nil {
			sysErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return sysErr
}

// ControlListen allows rapid listener restart by setting SO_REUSEADDR
// before bind(2).
func ControlListen(network, address string, c syscall.RawConn) error {
	var sysErr error
	err := c.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
			sysErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return sysErr
}
