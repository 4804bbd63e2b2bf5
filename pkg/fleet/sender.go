package fleet

import (
	"github.com/focfleet/focfleet-go/pkg/metrics"
	"github.com/focfleet/focfleet-go/pkg/transport"
)

// meteredSender counts link writes as they happen, so broadcast
// counters move during a run rather than when its report lands.
type meteredSender struct {
	pool    *transport.Pool
	metrics *metrics.Metrics
}

var _ transport.Broadcaster = (*meteredSender)(nil)

func (m *meteredSender) Broadcast(data []byte) transport.BroadcastResult {
	result := m.pool.Broadcast(data)
	if m.metrics != nil {
		m.metrics.BroadcastsTotal.Inc()
		m.metrics.LinkWrites.Add(float64(result.Targets))
		m.metrics.LinkWriteFailures.Add(float64(len(result.Errors)))
	}
	return result
}

func (m *meteredSender) SendTo(addr string, data []byte) error {
	err := m.pool.SendTo(addr, data)
	if m.metrics != nil {
		m.metrics.LinkWrites.Inc()
		if err != nil {
			m.metrics.LinkWriteFailures.Inc()
		}
	}
	return err
}
