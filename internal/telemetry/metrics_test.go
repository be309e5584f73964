package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRegistersOnFirstUse(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	p := NewPrometheus(reg, "twilight_http_proxy", time.Minute)
	defer p.Close()

	p.GaugeSet(MetricInFlight, 3, map[string]string{"method": "GET", "route": "ChannelsIDMessages"})
	p.HistogramObserve(MetricUpstreamLatency, 0.05, map[string]string{"method": "GET", "route": "ChannelsIDMessages", "status": "200"})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["twilight_http_proxy_in_flight"] {
		t.Error("missing in_flight gauge family")
	}
	if !names["twilight_http_proxy_upstream_latency_seconds"] {
		t.Error("missing upstream_latency_seconds histogram family")
	}
}

func TestPrometheusReapsIdleLabelTuples(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	p := NewPrometheus(reg, "twilight_http_proxy", 10*time.Millisecond)
	defer p.Close()

	p.GaugeSet(MetricCacheSize, 5, map[string]string{"namespace": "users"})
	p.reapOnce(time.Now().Add(time.Hour))

	p.mu.Lock()
	_, stillTracked := p.gauges[MetricCacheSize].lastSeen["users"]
	p.mu.Unlock()
	if stillTracked {
		t.Fatal("expected idle label tuple to be reaped")
	}
}

func TestNoOpDiscardsCalls(t *testing.T) {
	var tel Telemetry = NoOp{}
	tel.GaugeSet("x", 1, nil)
	tel.GaugeInc("x", nil)
	tel.GaugeDec("x", nil)
	tel.HistogramObserve("x", 1, nil)
}
