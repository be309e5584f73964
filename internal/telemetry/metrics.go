package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is the production Telemetry: it lazily creates a GaugeVec or
// HistogramVec the first time a given metric name is observed, using that
// first call's label keys for every subsequent call with the same name.
// Label-value tuples idle longer than idleTimeout are deleted from their
// vector so routes that go quiet don't hold cardinality forever.
type Prometheus struct {
	prefix      string
	reg         prometheus.Registerer
	idleTimeout time.Duration

	mu         sync.Mutex
	gauges     map[string]*trackedGaugeVec
	histograms map[string]*trackedHistVec

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type trackedGaugeVec struct {
	vec      *prometheus.GaugeVec
	keys     []string
	lastSeen map[string]time.Time // joined label values -> last touch
}

type trackedHistVec struct {
	vec      *prometheus.HistogramVec
	keys     []string
	lastSeen map[string]time.Time
}

// NewPrometheus returns a Prometheus sink registered against reg, with
// metric names prefixed by prefix and idle label-tuples reaped after
// idleTimeout.
func NewPrometheus(reg prometheus.Registerer, prefix string, idleTimeout time.Duration) *Prometheus {
	p := &Prometheus{
		prefix:      prefix,
		reg:         reg,
		idleTimeout: idleTimeout,
		gauges:      make(map[string]*trackedGaugeVec),
		histograms:  make(map[string]*trackedHistVec),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go p.reapLoop()
	return p
}

func (p *Prometheus) reapLoop() {
	defer close(p.done)
	interval := p.idleTimeout / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			p.reapOnce(time.Now())
		case <-p.stop:
			return
		}
	}
}

func (p *Prometheus) reapOnce(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, g := range p.gauges {
		for joined, seen := range g.lastSeen {
			if now.Sub(seen) >= p.idleTimeout {
				g.vec.DeleteLabelValues(strings.Split(joined, "\x00")...)
				delete(g.lastSeen, joined)
			}
		}
	}
	for _, h := range p.histograms {
		for joined, seen := range h.lastSeen {
			if now.Sub(seen) >= p.idleTimeout {
				h.vec.DeleteLabelValues(strings.Split(joined, "\x00")...)
				delete(h.lastSeen, joined)
			}
		}
	}
}

// Close stops the idle-metric reaper.
func (p *Prometheus) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func sortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func valuesInOrder(labels map[string]string, keys []string) []string {
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = labels[k]
	}
	return values
}

func (p *Prometheus) gaugeFor(name string, labels map[string]string) (*trackedGaugeVec, []string) {
	keys := sortedKeys(labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.gauges[name]
	if !ok {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: p.prefix + "_" + name,
		}, keys)
		p.reg.MustRegister(vec)
		g = &trackedGaugeVec{vec: vec, keys: keys, lastSeen: make(map[string]time.Time)}
		p.gauges[name] = g
	}
	return g, valuesInOrder(labels, g.keys)
}

func (p *Prometheus) histFor(name string, labels map[string]string) (*trackedHistVec, []string) {
	keys := sortedKeys(labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.histograms[name]
	if !ok {
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    p.prefix + "_" + name,
			Buckets: prometheus.DefBuckets,
		}, keys)
		p.reg.MustRegister(vec)
		h = &trackedHistVec{vec: vec, keys: keys, lastSeen: make(map[string]time.Time)}
		p.histograms[name] = h
	}
	return h, valuesInOrder(labels, h.keys)
}

func (p *Prometheus) touch(seen map[string]time.Time, values []string) {
	seen[strings.Join(values, "\x00")] = time.Now()
}

func (p *Prometheus) GaugeSet(name string, value float64, labels map[string]string) {
	g, values := p.gaugeFor(name, labels)
	g.vec.WithLabelValues(values...).Set(value)
	p.mu.Lock()
	p.touch(g.lastSeen, values)
	p.mu.Unlock()
}

func (p *Prometheus) GaugeInc(name string, labels map[string]string) {
	g, values := p.gaugeFor(name, labels)
	g.vec.WithLabelValues(values...).Inc()
	p.mu.Lock()
	p.touch(g.lastSeen, values)
	p.mu.Unlock()
}

func (p *Prometheus) GaugeDec(name string, labels map[string]string) {
	g, values := p.gaugeFor(name, labels)
	g.vec.WithLabelValues(values...).Dec()
	p.mu.Lock()
	p.touch(g.lastSeen, values)
	p.mu.Unlock()
}

func (p *Prometheus) HistogramObserve(name string, value float64, labels map[string]string) {
	h, values := p.histFor(name, labels)
	h.vec.WithLabelValues(values...).Observe(value)
	p.mu.Lock()
	p.touch(h.lastSeen, values)
	p.mu.Unlock()
}
