package netutil

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEnsureAddress_AlreadyAssignedIsNoOp exercises the idempotent path:
// loopback already carries 127.0.0.1, so no "ip addr add" invocation should
// be needed or attempted.
func TestEnsureAddress_AlreadyAssignedIsNoOp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(discardWriter{}, nil))

	err := EnsureAddress(context.Background(), logger, "lo", net.ParseIP("127.0.0.1"))
	require.NoError(t, err)
}

func TestEnsureAddress_UnknownInterface(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(discardWriter{}, nil))

	err := EnsureAddress(context.Background(), logger, "does-not-exist0", net.ParseIP("10.0.0.1"))
	require.Error(t, err)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
