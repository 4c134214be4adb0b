package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/deltasim/sim"
)

// CollectTrace lets the tracer collect the signal activity of the kernel.
func CollectTrace(kernel *sim.Kernel, tracer Tracer) {
	for _, hook := range kernel.Hooks {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf("kernel already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	h := traceHook{t: tracer}
	kernel.AcceptHook(&h)
}

// A traceHook is a hook that forwards the kernel activity to a tracer
type traceHook struct {
	t Tracer
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosSimStart:
		engine := ctx.Domain.(sim.Engine)
		h.t.StartTrace(engine.CurrentTime(), engine.Signals())
	case sim.HookPosDeltaEnd:
		report := ctx.Item.(sim.DeltaReport)
		if len(report.Changed) > 0 {
			h.t.TraceChanges(report.Time, report.Delta, report.Changed)
		}
	case sim.HookPosSimEnd:
		h.t.EndTrace(ctx.Domain.(sim.TimeTeller).CurrentTime())
	}
}
