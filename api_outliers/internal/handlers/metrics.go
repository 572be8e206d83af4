package handlers

import "github.com/prometheus/client_golang/prometheus"

type UploadMetrics struct {
	ProcessRequests *prometheus.CounterVec
}

func (m *UploadMetrics) IncProcess(status string) {
	if m == nil || m.ProcessRequests == nil {
		return
	}

	m.ProcessRequests.WithLabelValues(status).Inc()
}
