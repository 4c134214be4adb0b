package sim

import (
	"log"
)

// EventLogger is a hook that prints the activity of the kernel: time
// advances, process resumptions and signal changes.
type EventLogger struct {
	*log.Logger
}

// NewEventLogger returns a new EventLogger which will write in to the logger
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// Func writes the kernel activity into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTimeAdvance:
		h.Printf("%d: time advance", ctx.Item.(VTime))
	case HookPosBeforeResume:
		rec := ctx.Item.(ProcessRecord)
		h.Printf("%d: resume %s", h.now(ctx), rec.Name)
	case HookPosDeltaEnd:
		report := ctx.Item.(DeltaReport)
		for _, s := range report.Changed {
			h.Printf("%d.%d: %s = %s",
				report.Time, report.Delta, s.Name(), s.String())
		}
	case HookPosSimEnd:
		h.Printf("%d: simulation ended, %s", h.now(ctx), ctx.Item.(Status))
	}
}

func (h *EventLogger) now(ctx HookCtx) VTime {
	tt, ok := ctx.Domain.(TimeTeller)
	if !ok {
		return 0
	}

	return tt.CurrentTime()
}
