// Package tracing collects signal activity from a running kernel: value
// change dumps and change counters.
package tracing

import "github.com/sarchlab/deltasim/sim"

// A Tracer can collect signal traces
type Tracer interface {
	// StartTrace is called once before time 0 is simulated, with every
	// signal of the design.
	StartTrace(now sim.VTime, signals []sim.SignalInfo)

	// TraceChanges is called after each delta that changed signals.
	TraceChanges(now sim.VTime, delta int, changed []sim.SignalInfo)

	// EndTrace is called when the simulation finishes.
	EndTrace(now sim.VTime)
}
