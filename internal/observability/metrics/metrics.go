package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BotMetrics exposes counters/histograms for the booking dialogue.
type BotMetrics struct {
	inboundTotal    *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	handlerLatency  *prometheus.HistogramVec
	bookingsTotal   *prometheus.CounterVec
	nluCallsTotal   *prometheus.CounterVec
	calendarLatency *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barberbot",
			Subsystem: "messaging",
			Name:      "inbound_total",
			Help:      "Total inbound chat messages",
		}, []string{"channel", "outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barberbot",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound chat sends",
		}, []string{"channel", "status"}),
		handlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "barberbot",
			Subsystem: "conversation",
			Name:      "handler_latency_seconds",
			Help:      "Latency of one dialogue turn by state",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barberbot",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Appointment lifecycle outcomes",
		}, []string{"outcome"}),
		nluCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barberbot",
			Subsystem: "nlu",
			Name:      "calls_total",
			Help:      "NLU extraction calls by provider and result",
		}, []string{"provider", "result"}),
		calendarLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "barberbot",
			Subsystem: "calendar",
			Name:      "request_latency_seconds",
			Help:      "Latency of calendar repository calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.handlerLatency, m.bookingsTotal, m.nluCallsTotal, m.calendarLatency)
	return m
}

func (m *BotMetrics) ObserveInbound(channel, outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *BotMetrics) ObserveOutbound(channel, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *BotMetrics) ObserveHandler(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.handlerLatency.WithLabelValues(state).Observe(d.Seconds())
}

// ObserveBooking records created, rescheduled, cancelled or rejected outcomes.
func (m *BotMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BotMetrics) ObserveNLU(provider, result string) {
	if m == nil {
		return
	}
	m.nluCallsTotal.WithLabelValues(provider, result).Inc()
}

func (m *BotMetrics) ObserveCalendar(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.calendarLatency.WithLabelValues(operation, status).Observe(d.Seconds())
}
