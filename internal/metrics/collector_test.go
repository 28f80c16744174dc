package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_SessionsGaugeTracksActiveCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SessionStarted()
	c.SessionStarted()
	c.SessionEnded("relayed")

	var m dto.Metric
	require.NoError(t, c.SessionsActive.Write(&m))
	assert.Equal(t, float64(1), m.GetGauge().GetValue())
}

func TestCollector_RelayBytesCopiedIgnoresZeroAndNegative(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RelayBytesCopied("upstream", 0)
	c.RelayBytesCopied("upstream", -5)
	c.RelayBytesCopied("upstream", 100)

	var m dto.Metric
	require.NoError(t, c.RelayBytes.WithLabelValues("upstream").Write(&m))
	assert.Equal(t, float64(100), m.GetCounter().GetValue())
}

func TestCollector_NilReceiverIsNoOp(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.SessionStarted()
		c.SessionEnded("relayed")
		c.AuthAttempt("noauth", "ok")
		c.ReplySent("succeeded")
		c.RelayBytesCopied("upstream", 10)
	})
}
