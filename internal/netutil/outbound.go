package netutil

import (
	"fmt"
	"net"
)

// ParseOutboundIP validates that s is a usable source address for the
// upstream dialer (any IPv4 or IPv6 literal, not a CIDR).
func ParseOutboundIP(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("netutil: invalid outbound IP %q", s)
	}
	return ip, nil
}
