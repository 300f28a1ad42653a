package obs

import (
	"sort"
	"strings"
	"sync"
)

// Label is a key/value pair attached to measurements.
type Label struct {
	Key   string
	Value string
}

// Meter is a very small interface for emitting counters/histograms.
// Implementations may no-op or bridge to a metrics system.
type Meter interface {
	Counter(name string, value float64, labels ...Label)
	Histogram(name string, value float64, labels ...Label)
}

// NopMeter is a Meter that discards all measurements.
type NopMeter struct{}

func (NopMeter) Counter(name string, value float64, labels ...Label)   {}
func (NopMeter) Histogram(name string, value float64, labels ...Label) {}

// CounterMeter keeps measurements in memory. It is safe for concurrent use.
type CounterMeter struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

func NewCounterMeter() *CounterMeter {
	return &CounterMeter{
		counters: make(map[string]float64),
		samples:  make(map[string][]float64),
	}
}

func (m *CounterMeter) Counter(name string, value float64, labels ...Label) {
	k := seriesKey(name, labels)
	m.mu.Lock()
	m.counters[k] += value
	m.mu.Unlock()
}

func (m *CounterMeter) Histogram(name string, value float64, labels ...Label) {
	k := seriesKey(name, labels)
	m.mu.Lock()
	m.samples[k] = append(m.samples[k], value)
	m.mu.Unlock()
}

// Value returns the counter total for name and exactly these labels.
func (m *CounterMeter) Value(name string, labels ...Label) float64 {
	k := seriesKey(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[k]
}

// Samples returns a copy of the histogram observations for name and labels.
func (m *CounterMeter) Samples(name string, labels ...Label) []float64 {
	k := seriesKey(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.samples[k]...)
}

// Snapshot returns every counter series keyed as name{k=v,...}, plus the
// observation count of each histogram series under key+"_count".
func (m *CounterMeter) Snapshot() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.counters)+len(m.samples))
	for k, v := range m.counters {
		out[k] = v
	}
	for k, v := range m.samples {
		out[k+"_count"] = float64(len(v))
	}
	return out
}

// seriesKey renders name{k1=v1,k2=v2} with labels sorted by key.
func seriesKey(name string, labels []Label) string {
	if len(labels) == 0 {
		return name
	}
	ls := append([]Label(nil), labels...)
	sort.Slice(ls, func(i, j int) bool { return ls[i].Key < ls[j].Key })
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, l := range ls {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Key)
		b.WriteByte('=')
		b.WriteString(l.Value)
	}
	b.WriteByte('}')
	return b.String()
}
