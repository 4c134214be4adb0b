package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/deltasim/sim"
)

// ActivityTracer counts the value changes of every signal. It can be read
// from other goroutines while the simulation runs.
type ActivityTracer struct {
	lock        sync.Mutex
	names       []string
	changeCount map[string]uint64
	lastChange  map[string]sim.VTime
	deltaCount  uint64
}

// NewActivityTracer creates a new ActivityTracer
func NewActivityTracer() *ActivityTracer {
	return &ActivityTracer{
		changeCount: make(map[string]uint64),
		lastChange:  make(map[string]sim.VTime),
	}
}

// StartTrace registers the signals.
func (t *ActivityTracer) StartTrace(_ sim.VTime, signals []sim.SignalInfo) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, s := range signals {
		if _, ok := t.changeCount[s.Name()]; ok {
			continue
		}

		t.names = append(t.names, s.Name())
		t.changeCount[s.Name()] = 0
	}
}

// TraceChanges counts the changes.
func (t *ActivityTracer) TraceChanges(
	now sim.VTime,
	_ int,
	changed []sim.SignalInfo,
) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.deltaCount++

	for _, s := range changed {
		t.changeCount[s.Name()]++
		t.lastChange[s.Name()] = now
	}
}

// EndTrace does nothing
func (t *ActivityTracer) EndTrace(_ sim.VTime) {}

// SignalNames returns the traced signal names in creation order.
func (t *ActivityTracer) SignalNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	out := make([]string, len(t.names))
	copy(out, t.names)

	return out
}

// ChangeCount returns the number of changes of a signal.
func (t *ActivityTracer) ChangeCount(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.changeCount[name]
}

// LastChange returns the time of the last change of a signal.
func (t *ActivityTracer) LastChange(name string) (sim.VTime, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	at, ok := t.lastChange[name]

	return at, ok
}

// ActiveDeltas returns the number of deltas that changed at least one
// signal.
func (t *ActivityTracer) ActiveDeltas() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.deltaCount
}

// Busiest returns up to n signal names, the most changed first.
func (t *ActivityTracer) Busiest(n int) []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, len(t.names))
	copy(names, t.names)

	sort.SliceStable(names, func(i, j int) bool {
		return t.changeCount[names[i]] > t.changeCount[names[j]]
	})

	if n < len(names) {
		names = names[:n]
	}

	return names
}
