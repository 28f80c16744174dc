package netutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutboundIP(t *testing.T) {
	ip, err := ParseOutboundIP("127.0.0.1")
	require.NoError(t, err)
	assert.True(t, ip.IsLoopback())

	ip, err = ParseOutboundIP("::1")
	require.NoError(t, err)
	assert.True(t, ip.IsLoopback())
}

func TestParseOutboundIP_Invalid(t *testing.T) {
	_, err := ParseOutboundIP("not-an-ip")
	require.Error(t, err)

	_, err = ParseOutboundIP("10.0.0.0/24")
	require.Error(t, err)
}
