package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindRequest = "request"
	kindNotify  = "notify"
	kindReply   = "reply"
)

const (
	reasonTerminated = "terminated"
	reasonOrigin     = "origin"
	reasonMalformed  = "malformed"
	reasonNoChannel  = "no_channel"
	reasonAbandoned  = "abandoned"
)

type Metrics struct {
	EnvelopesSent     *prometheus.CounterVec
	EnvelopesReceived *prometheus.CounterVec
	EnvelopesRejected *prometheus.CounterVec
	HandlerFailures   *prometheus.CounterVec
	PendingRequests   prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg. nil означает регистр по умолчанию.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		EnvelopesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framebridge_envelopes_sent_total",
				Help: "Total number of envelopes posted to the remote context",
			},
			[]string{"kind"},
		),
		EnvelopesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framebridge_envelopes_received_total",
				Help: "Total number of accepted inbound envelopes",
			},
			[]string{"kind"},
		),
		EnvelopesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framebridge_envelopes_rejected_total",
				Help: "Total number of inbound envelopes dropped before dispatch",
			},
			[]string{"reason"},
		),
		HandlerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framebridge_handler_failures_total",
				Help: "Total number of channel handlers that returned an error",
			},
			[]string{"channel"},
		),
		PendingRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "framebridge_pending_requests",
				Help: "Number of send-and-wait requests awaiting a reply",
			},
		),
	}
}

func (m *Metrics) sent(kind string) {
	if m == nil {
		return
	}
	m.EnvelopesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) received(kind string) {
	if m == nil {
		return
	}
	m.EnvelopesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) rejected(reason string) {
	if m == nil {
		return
	}
	m.EnvelopesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) handlerFailed(channel string) {
	if m == nil {
		return
	}
	m.HandlerFailures.WithLabelValues(channel).Inc()
}

func (m *Metrics) pendingAdd(delta float64) {
	if m == nil {
		return
	}
	m.PendingRequests.Add(delta)
}
