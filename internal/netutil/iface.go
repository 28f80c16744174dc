package netutil

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strings"
)

// EnsureAddress checks ip against the addresses already assigned to iface
// and, if missing, adds it with the host-only prefix length for its
// address family ("ip addr add ip/32" or "/128"). It is idempotent:
// already-assigned addresses, including ones added concurrently by
// another process, are silently skipped. Used to auto-provision the
// outbound source address a Server dials upstream connections from.
func EnsureAddress(ctx context.Context, logger *slog.Logger, iface string, ip net.IP) error {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return fmt.Errorf("netutil: interface %q: %w", iface, err)
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return fmt.Errorf("netutil: list addresses on %q: %w", iface, err)
	}

	normalized := ip.String()
	for _, a := range addrs {
		ipStr := a.String()
		if idx := strings.IndexByte(ipStr, '/'); idx != -1 {
			ipStr = ipStr[:idx]
		}
		if existing := net.ParseIP(ipStr); existing != nil && existing.String() == normalized {
			logger.Debug("outbound address already assigned", slog.String("addr", normalized), slog.String("interface", iface))
			return nil
		}
	}

	prefix := "/32"
	if ip.To4() == nil {
		prefix = "/128"
	}

	cmd := exec.CommandContext(ctx, "ip", "addr", "add", normalized+prefix, "dev", iface)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "RTNETLINK answers: File exists") {
			logger.Debug("outbound address assigned concurrently", slog.String("addr", normalized), slog.String("interface", iface))
			return nil
		}
		return fmt.Errorf("netutil: ip addr add %s dev %s: %s: %w", normalized, iface, strings.TrimSpace(string(output)), err)
	}

	logger.Info("assigned outbound address", slog.String("addr", normalized), slog.String("interface", iface))
	return nil
}
