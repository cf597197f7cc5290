package observability

import "sync"

// Metrics provides basic in-memory counters for gateway events.
type Metrics struct {
	mu         sync.Mutex
	eventCount map[string]int64
	errorCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		eventCount: make(map[string]int64),
		errorCount: make(map[string]int64),
	}
}

// RecordEvent increments the counter for a handled gateway event.
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[kind]++
}

// RecordError increments the error counter for an event kind and code.
func (m *Metrics) RecordError(kind, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[kind+"|"+code]++
}

// Snapshot returns copies of the counters for the health endpoint.
func (m *Metrics) Snapshot() (events, errors map[string]int64) {
	events = make(map[string]int64)
	errors = make(map[string]int64)
	if m == nil {
		return events, errors
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.eventCount {
		events[k] = v
	}
	for k, v := range m.errorCount {
		errors[k] = v
	}
	return events, errors
}
