package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBotMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBotMetrics(reg)
	m.ObserveInbound("whatsapp", "handled")
	m.ObserveInbound("whatsapp", "handled")
	m.ObserveOutbound("telegram", "sent")
	m.ObserveHandler("SELECTING_TIME", 120*time.Millisecond)
	m.ObserveBooking("created")
	m.ObserveNLU("gemini", "reliable")
	m.ObserveCalendar("list", "ok", 30*time.Millisecond)

	if got := testutil.ToFloat64(m.inboundTotal.WithLabelValues("whatsapp", "handled")); got != 2 {
		t.Fatalf("expected 2 inbound, got %v", got)
	}
	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("created")); got != 1 {
		t.Fatalf("expected 1 booking, got %v", got)
	}
	if n := testutil.CollectAndCount(m.handlerLatency); n != 1 {
		t.Fatalf("expected one handler series, got %d", n)
	}
}

func TestBotMetricsNilSafe(t *testing.T) {
	var m *BotMetrics
	m.ObserveInbound("webchat", "handled")
	m.ObserveOutbound("webchat", "sent")
	m.ObserveHandler("MENU", time.Second)
	m.ObserveBooking("rejected")
	m.ObserveNLU("bedrock", "error")
	m.ObserveCalendar("create", "error", time.Second)
}
