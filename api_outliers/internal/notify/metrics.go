package notify

import "github.com/prometheus/client_golang/prometheus"

const (
	channelEmail   = "email"
	channelWebhook = "webhook"

	statusSuccess = "success"
	statusFailure = "failure"
)

type Metrics struct {
	Notifications *prometheus.CounterVec
}

func (m *Metrics) IncNotification(channel, status string) {
	if m == nil || m.Notifications == nil {
		return
	}

	m.Notifications.WithLabelValues(channel, status).Inc()
}
