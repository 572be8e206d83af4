package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Uploads          *prometheus.CounterVec
	FlaggedCases     prometheus.Counter
	DispatchDuration prometheus.Observer
}

func (m *Metrics) IncUpload(status string) {
	if m == nil || m.Uploads == nil {
		return
	}

	m.Uploads.WithLabelValues(status).Inc()
}

func (m *Metrics) AddFlagged(n int) {
	if m == nil || m.FlaggedCases == nil || n <= 0 {
		return
	}

	m.FlaggedCases.Add(float64(n))
}

func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil || m.DispatchDuration == nil {
		return
	}

	m.DispatchDuration.Observe(d.Seconds())
}
