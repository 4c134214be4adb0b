package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/deltasim/sim"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID        string
	Name      string
	StartTime time.Time
	Total     uint64
	Finished  uint64
}

type progressBarRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

func (b *ProgressBar) snapshot() progressBarRsp {
	b.Lock()
	defer b.Unlock()

	return progressBarRsp{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
	}
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// SetFinished sets the finished amount, capped at the total.
func (b *ProgressBar) SetFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	if b.Total > 0 && amount > b.Total {
		amount = b.Total
	}

	b.Finished = amount
}

// TimeProgress is a kernel hook that moves a progress bar along with
// simulated time. The total of the bar is the simulation duration.
type TimeProgress struct {
	bar *ProgressBar
}

// NewTimeProgress creates a hook that reports simulated time to bar.
func NewTimeProgress(bar *ProgressBar) *TimeProgress {
	return &TimeProgress{bar: bar}
}

// Func updates the bar when time advances.
func (p *TimeProgress) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosTimeAdvance:
		p.bar.SetFinished(uint64(ctx.Item.(sim.VTime)))
	case sim.HookPosSimEnd:
		p.bar.SetFinished(p.bar.Total)
	}
}
