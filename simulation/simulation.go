// Package simulation assembles a kernel with the services that surround a
// run: waveform tracing, recording, activity counting and monitoring.
package simulation

import (
	"github.com/pkg/errors"
	"github.com/sarchlab/deltasim/datarecording"
	"github.com/sarchlab/deltasim/monitoring"
	"github.com/sarchlab/deltasim/sim"
	"github.com/sarchlab/deltasim/tracing"
)

// A Simulation provides the services required to run a design.
type Simulation struct {
	id     string
	kernel *sim.Kernel

	vcd       *tracing.VCDTracer
	tracePath string
	activity  *tracing.ActivityTracer

	dataRecorder datarecording.DataRecorder
	recordPath   string

	monitor *monitoring.Monitor
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Kernel returns the kernel the design is elaborated on.
func (s *Simulation) Kernel() *sim.Kernel {
	return s.kernel
}

// TracePath returns the VCD file, if the trace goes to a file.
func (s *Simulation) TracePath() string {
	return s.tracePath
}

// Activity returns the activity tracer, if enabled.
func (s *Simulation) Activity() *tracing.ActivityTracer {
	return s.activity
}

// DataRecorder returns the data recorder, if recording is enabled.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// RecordPath returns the database file of the recording.
func (s *Simulation) RecordPath() string {
	return s.recordPath
}

// Monitor returns the monitor, if monitoring is enabled.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Run runs the kernel. See sim.Kernel.Run.
func (s *Simulation) Run() (sim.Status, error) {
	status, err := s.kernel.Run()
	if err != nil {
		return status, err
	}

	if s.vcd != nil && s.vcd.Err() != nil {
		return status, errors.Wrap(s.vcd.Err(), "writing trace")
	}

	return status, nil
}

// RunFor runs the kernel for d more time units.
func (s *Simulation) RunFor(d sim.VTime) (sim.Status, error) {
	return s.kernel.RunFor(d)
}

// Terminate flushes and closes the trace and the recording.
func (s *Simulation) Terminate() error {
	var first error

	if s.vcd != nil {
		if err := s.vcd.Close(); err != nil {
			first = errors.Wrap(err, "closing trace")
		}
	}

	if s.dataRecorder != nil {
		if err := s.dataRecorder.Close(); err != nil && first == nil {
			first = errors.Wrap(err, "closing recording")
		}
	}

	return first
}
