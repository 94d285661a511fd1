package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	req := require.New(t)
	m := New(prometheus.NewRegistry())

	m.SetQueueLength(3)
	m.Enqueued()
	m.Enqueued()
	m.Delivered()
	m.Line("chat")
	m.Line("chat")
	m.Line("keepalive")
	m.Pong()
	m.SetConnectionState(2)
	m.AgentReply("ok")

	req.Equal(3.0, testutil.ToFloat64(m.queueLength))
	req.Equal(2.0, testutil.ToFloat64(m.enqueued))
	req.Equal(1.0, testutil.ToFloat64(m.delivered))
	req.Equal(2.0, testutil.ToFloat64(m.lines.WithLabelValues("chat")))
	req.Equal(1.0, testutil.ToFloat64(m.lines.WithLabelValues("keepalive")))
	req.Equal(1.0, testutil.ToFloat64(m.keepalives))
	req.Equal(2.0, testutil.ToFloat64(m.connectionState))
	req.Equal(1.0, testutil.ToFloat64(m.agentReplies.WithLabelValues("ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.SetQueueLength(1)
		m.Enqueued()
		m.Delivered()
		m.ConsumerPanicked()
		m.Line("chat")
		m.Pong()
		m.SetConnectionState(0)
		m.AgentReply("error")
	})
}
