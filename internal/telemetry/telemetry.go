// Package telemetry implements an abstract gauge/histogram sink the core
// calls into without depending on Prometheus directly. Metrics are keyed
// by name plus a per-call label map rather than fixed struct fields, since
// the proxy's metrics (in-flight by route, upstream latency by
// route/method/status) have label sets that vary per call site.
package telemetry

// Telemetry is the interface the request pipeline calls into. An
// implementation may no-op; labels is a name->value map applied as the
// metric's label set.
type Telemetry interface {
	GaugeSet(name string, value float64, labels map[string]string)
	GaugeInc(name string, labels map[string]string)
	GaugeDec(name string, labels map[string]string)
	HistogramObserve(name string, value float64, labels map[string]string)
}

// Metric name suffixes appended to the configured prefix. Kept here so the
// pipeline and the Prometheus implementation agree on names without
// importing each other's constants.
const (
	MetricCacheSize       = "cache_size"
	MetricInFlight        = "in_flight"
	MetricUpstreamLatency = "upstream_latency_seconds"
)

// NoOp is a Telemetry that discards every call, used when metrics are
// disabled.
type NoOp struct{}

func (NoOp) GaugeSet(string, float64, map[string]string)        {}
func (NoOp) GaugeInc(string, map[string]string)                 {}
func (NoOp) GaugeDec(string, map[string]string)                 {}
func (NoOp) HistogramObserve(string, float64, map[string]string) {}
