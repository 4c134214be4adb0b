package datarecording

import (
	"github.com/sarchlab/deltasim/sim"
)

// Table names used by the SignalRecorder.
const (
	SignalTable = "signal_info"
	ChangeTable = "signal_change"
	DeltaTable  = "delta_cycle"
)

// SignalRow describes one signal of the design.
type SignalRow struct {
	ID    int
	Name  string
	Width int
}

// ChangeRow is one committed value change.
type ChangeRow struct {
	Time   uint64
	Delta  int
	Signal string
	Value  string
}

// DeltaRow summarizes one delta cycle.
type DeltaRow struct {
	Time    uint64
	Delta   int
	Changes int
	Resumed int
}

// SignalRecorder is a kernel hook that records every signal change and
// every delta cycle.
type SignalRecorder struct {
	recorder DataRecorder
	started  bool
}

// NewSignalRecorder creates a SignalRecorder that writes into the
// recorder.
func NewSignalRecorder(recorder DataRecorder) *SignalRecorder {
	return &SignalRecorder{recorder: recorder}
}

// Func records the kernel activity.
func (r *SignalRecorder) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosSimStart:
		r.start(ctx.Domain.(sim.Engine))
	case sim.HookPosDeltaEnd:
		r.recordDelta(ctx.Item.(sim.DeltaReport))
	case sim.HookPosSimEnd:
		r.recorder.Flush()
	}
}

func (r *SignalRecorder) start(engine sim.Engine) {
	if r.started {
		return
	}

	r.started = true

	r.recorder.CreateTable(SignalTable, SignalRow{})
	r.recorder.CreateTable(ChangeTable, ChangeRow{})
	r.recorder.CreateTable(DeltaTable, DeltaRow{})

	for _, s := range engine.Signals() {
		r.recorder.InsertData(SignalTable, SignalRow{
			ID:    s.ID(),
			Name:  s.Name(),
			Width: s.Width(),
		})

		r.recorder.InsertData(ChangeTable, ChangeRow{
			Time:   0,
			Delta:  -1,
			Signal: s.Name(),
			Value:  s.String(),
		})
	}
}

func (r *SignalRecorder) recordDelta(report sim.DeltaReport) {
	if !r.started {
		return
	}

	for _, s := range report.Changed {
		r.recorder.InsertData(ChangeTable, ChangeRow{
			Time:   uint64(report.Time),
			Delta:  report.Delta,
			Signal: s.Name(),
			Value:  s.String(),
		})
	}

	r.recorder.InsertData(DeltaTable, DeltaRow{
		Time:    uint64(report.Time),
		Delta:   report.Delta,
		Changes: len(report.Changed),
		Resumed: report.Resumed,
	})
}
