//go:build !linux

package netutil

import "syscall"

// ControlDial is a no-op on non-Linux platforms; the Linux build tunes
// TCP_NODELAY and keepalive via sockopt_linux.go.
func ControlDial(network, address string, c syscall.RawConn) error {
	return nil
}

// ControlListen is a no-op on non-Linux platforms.
func ControlListen(network, address string, c syscall.RawConn) error {
	return nil
}
