package sim

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"go.uber.org/mock/gomock"
)

type change struct {
	time  VTime
	name  string
	value string
}

type changeRecorder struct {
	changes []change
}

func (r *changeRecorder) Func(ctx HookCtx) {
	if ctx.Pos != HookPosDeltaEnd {
		return
	}

	report := ctx.Item.(DeltaReport)
	for _, s := range report.Changed {
		r.changes = append(r.changes, change{report.Time, s.Name(), s.String()})
	}
}

func (r *changeRecorder) of(name string) []change {
	var out []change
	for _, c := range r.changes {
		if c.name == name {
			out = append(out, c)
		}
	}

	return out
}

type endHandler struct {
	calls int
	at    VTime
}

func (h *endHandler) Handle(now VTime) {
	h.calls++
	h.at = now
}

func newTestKernel() *Kernel {
	return MakeBuilder().
		WithQuiet().
		WithLogger(log.New(GinkgoWriter, "", 0)).
		Build()
}

var _ = Describe("Kernel", func() {
	var (
		mockCtrl *gomock.Controller
		k        *Kernel
		rec      *changeRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		k = newTestKernel()
		rec = &changeRecorder{}
		k.AcceptHook(rec)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should run a flip-flop", func() {
		clk := NewSignal(k, "clk", false)
		d := NewSignal(k, "d", false)
		q := NewSignal(k, "q", false)

		k.Clock(clk, 10)
		k.Process("stim", func(p *Proc) error {
			p.Wait(Delay(5))
			d.Set(true)
			p.Wait(Delay(20))
			d.Set(false)

			return nil
		})
		k.Always("ff", func(p *Proc) error {
			q.Set(d.Value())
			return nil
		}, clk.Posedge())

		status, err := k.RunFor(50)

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusSuspended))
		Expect(k.CurrentTime()).To(Equal(VTime(50)))
		Expect(rec.of("q")).To(Equal([]change{
			{10, "q", "true"},
			{30, "q", "false"},
		}))
	})

	It("should not let a process see writes of the same delta", func() {
		clk := NewSignal(k, "clk", false)
		s := NewSignal(k, "s", 0)

		var seen []int

		k.Always("a", func(p *Proc) error {
			s.Set(1)
			return nil
		}, clk.Posedge())
		k.Process("b", func(p *Proc) error {
			p.Wait(clk.Posedge())
			seen = append(seen, s.Value())
			p.Wait()
			seen = append(seen, s.Value())

			return nil
		})
		k.Process("drv", func(p *Proc) error {
			p.Wait(Delay(1))
			clk.Set(true)

			return nil
		})

		status, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusTerminated))
		Expect(seen).To(Equal([]int{0, 1}))
	})

	It("should resume a join after its last clause", func() {
		var start, resumed VTime

		k.Process("j", func(p *Proc) error {
			p.Wait(Delay(3))
			start = p.Now()
			p.Wait(Join(Delay(5), Delay(10)))
			resumed = p.Now()

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(resumed).To(Equal(start + 10))
	})

	It("should resume a join of edges only when all edges happened", func() {
		a := NewSignal(k, "a", false)
		b := NewSignal(k, "b", false)

		var resumed VTime

		k.Process("j", func(p *Proc) error {
			p.Wait(Join(a.Posedge(), b.Posedge()))
			resumed = p.Now()

			return nil
		})
		k.Process("drv", func(p *Proc) error {
			p.Wait(Delay(2))
			b.Set(true)
			p.Wait(Delay(2))
			b.Set(false)
			p.Wait(Delay(2))
			a.Set(true)

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(resumed).To(Equal(VTime(6)))
	})

	It("should stop when a process returns ErrStopSimulation", func() {
		clk := NewSignal(k, "clk", false)
		k.Clock(clk, 7)
		k.Process("stopper", func(p *Proc) error {
			p.Wait(Delay(100))
			return ErrStopSimulation
		})

		handler := &endHandler{}
		k.RegisterSimulationEndHandler(handler)

		status, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusStopped))
		Expect(k.CurrentTime()).To(Equal(VTime(100)))
		Expect(handler.calls).To(Equal(1))
		Expect(handler.at).To(Equal(VTime(100)))
	})

	It("should stop when a process calls Stop", func() {
		cleaned := false

		k.Process("stopper", func(p *Proc) error {
			p.Wait(Delay(4))
			p.Stop()

			return nil
		})
		k.Process("forever", func(p *Proc) error {
			defer func() { cleaned = true }()

			for {
				p.Wait(Delay(1))
			}
		})

		status, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusStopped))
		Expect(k.CurrentTime()).To(Equal(VTime(4)))
		Expect(cleaned).To(BeTrue())
	})

	It("should not run again after finishing", func() {
		k.Process("p", func(p *Proc) error {
			p.Wait(Delay(3))
			return ErrStopSimulation
		})

		status, err := k.Run()
		Expect(status).To(Equal(StatusStopped))
		Expect(err).NotTo(HaveOccurred())

		status, err = k.RunFor(10)
		Expect(status).To(Equal(StatusStopped))
		Expect(err).NotTo(HaveOccurred())
		Expect(k.CurrentTime()).To(Equal(VTime(3)))
		Expect(k.IsFinished()).To(BeTrue())
	})

	It("should terminate when no event is left", func() {
		a := NewSignal(k, "a", 0)
		k.Process("p", func(p *Proc) error {
			p.Wait(a, Delay(100))
			return nil
		})
		k.Process("drv", func(p *Proc) error {
			p.Wait(Delay(5))
			a.Set(3)

			return nil
		})

		status, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusTerminated))
		Expect(k.CurrentTime()).To(Equal(VTime(5)))
	})

	It("should remove a woken waiter from all its signals", func() {
		a := NewSignal(k, "a", 0)
		b := NewSignal(k, "b", 0)

		var waitersOnB int

		k.Process("p", func(p *Proc) error {
			p.Wait(a, b.Posedge(), b.Negedge())
			waitersOnB = b.NumWaiters()

			return nil
		})
		k.Process("drv", func(p *Proc) error {
			p.Wait(Delay(1))
			a.Set(1)

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(waitersOnB).To(Equal(0))
		Expect(a.NumWaiters()).To(Equal(0))
	})

	It("should suspend at the end of RunFor and resume", func() {
		clk := NewSignal(k, "clk", false)
		k.Clock(clk, 10)

		status, err := k.RunFor(25)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusSuspended))
		Expect(k.CurrentTime()).To(Equal(VTime(25)))
		Expect(clk.Value()).To(BeFalse())

		status, err = k.RunFor(10)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusSuspended))
		Expect(k.CurrentTime()).To(Equal(VTime(35)))
		Expect(clk.Value()).To(BeTrue())
	})

	It("should bound Run with the duration", func() {
		k = MakeBuilder().WithQuiet().WithDuration(42).Build()
		clk := NewSignal(k, "clk", false)
		k.Clock(clk, 5)

		status, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusSuspended))
		Expect(k.CurrentTime()).To(Equal(VTime(42)))
	})

	It("should suspend when requested", func() {
		k.Process("p", func(p *Proc) error {
			p.Wait(Delay(5))
			p.Kernel().RequestSuspend()
			p.Wait(Delay(5))

			return nil
		})

		status, err := k.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusSuspended))
		Expect(k.CurrentTime()).To(Equal(VTime(5)))

		status, err = k.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusTerminated))
		Expect(k.CurrentTime()).To(Equal(VTime(10)))
	})

	It("should fail on a delta loop", func() {
		k = MakeBuilder().WithQuiet().WithMaxDeltas(50).Build()
		a := NewSignal(k, "a", 0)
		k.Process("loop", func(p *Proc) error {
			for {
				a.Set(a.Value() + 1)
				p.Wait(a)
			}
		})

		status, err := k.Run()

		Expect(status).To(Equal(StatusFailed))
		Expect(IsKind(err, DeltaLimitError)).To(BeTrue())
	})

	It("should fail when a process returns an error", func() {
		boom := errors.New("boom")
		k.Process("bad", func(p *Proc) error {
			p.Wait(Delay(2))
			return boom
		})

		status, err := k.Run()

		Expect(status).To(Equal(StatusFailed))
		Expect(IsKind(err, ProcessError)).To(BeTrue())
		Expect(errors.Is(err, boom)).To(BeTrue())

		var se *SimError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Process).To(Equal("bad"))
		Expect(se.Time).To(Equal(VTime(2)))
	})

	It("should fail when a process panics", func() {
		k.Process("bad", func(p *Proc) error {
			panic("oops")
		})

		status, err := k.Run()

		Expect(status).To(Equal(StatusFailed))
		Expect(IsKind(err, ProcessError)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("oops"))
	})

	It("should run a called child before resuming the caller", func() {
		var (
			childDone bool
			resumed   VTime
		)

		k.Process("parent", func(p *Proc) error {
			p.Wait(Call(func(c *Proc) error {
				c.Wait(Delay(4))
				childDone = true

				return nil
			}))
			resumed = p.Now()

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(childDone).To(BeTrue())
		Expect(resumed).To(Equal(VTime(4)))
		Expect(k.Processes()).To(HaveLen(2))
		Expect(k.Processes()[1].Name).To(Equal("parent.call1"))
	})

	It("should fail when a called child fails", func() {
		k.Process("parent", func(p *Proc) error {
			p.Wait(Call(func(c *Proc) error {
				return errors.New("child failed")
			}))

			return nil
		})

		status, err := k.Run()

		Expect(status).To(Equal(StatusFailed))
		Expect(err.Error()).To(ContainSubstring("child failed"))
	})

	It("should run stepper processes", func() {
		a := NewSignal(k, "a", 0)
		step := 0

		k.Stepper("st", StepFunc(func(k *Kernel) ([]Clause, bool, error) {
			step++
			if step > 3 {
				return nil, true, nil
			}

			a.Set(step)

			return []Clause{Delay(10)}, false, nil
		}))

		status, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusTerminated))
		Expect(a.Value()).To(Equal(3))
		Expect(k.CurrentTime()).To(Equal(VTime(30)))
	})

	It("should handle scheduled events in time order", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := NewMockEvent(mockCtrl)
		evt2 := NewMockEvent(mockCtrl)

		evt1.EXPECT().Time().Return(VTime(4)).AnyTimes()
		evt1.EXPECT().Handler().Return(handler).AnyTimes()
		evt1.EXPECT().IsSecondary().Return(false).AnyTimes()
		evt2.EXPECT().Time().Return(VTime(2)).AnyTimes()
		evt2.EXPECT().Handler().Return(handler).AnyTimes()
		evt2.EXPECT().IsSecondary().Return(false).AnyTimes()

		handle2 := handler.EXPECT().Handle(evt2).Return(nil)
		handler.EXPECT().Handle(evt1).Return(nil).After(handle2)

		Expect(k.Schedule(evt1)).To(Succeed())
		Expect(k.Schedule(evt2)).To(Succeed())

		status, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusTerminated))
		Expect(k.CurrentTime()).To(Equal(VTime(4)))
	})

	It("should reject events in the past", func() {
		clk := NewSignal(k, "clk", false)
		k.Clock(clk, 5)
		_, _ = k.RunFor(12)

		evt := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(VTime(3)).AnyTimes()

		err := k.Schedule(evt)

		Expect(IsKind(err, ScheduleError)).To(BeTrue())
	})

	It("should invoke hooks at start, resume and end", func() {
		hook := NewMockHook(mockCtrl)
		k.AcceptHook(hook)

		var positions []*HookPos
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			if ctx.Pos != HookPosDeltaEnd {
				positions = append(positions, ctx.Pos)
			}
		}).AnyTimes()

		k.Process("p", func(p *Proc) error {
			p.Wait(Delay(1))
			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(positions).To(Equal([]*HookPos{
			HookPosSimStart,
			HookPosBeforeResume,
			HookPosAfterResume,
			HookPosTimeAdvance,
			HookPosBeforeResume,
			HookPosAfterResume,
			HookPosSimEnd,
		}))
	})

	It("should pause and continue", func() {
		k.Pause()
		Expect(k.IsPaused()).To(BeTrue())

		k.Pause()
		k.Continue()
		Expect(k.IsPaused()).To(BeFalse())

		k.Continue()
		Expect(k.IsPaused()).To(BeFalse())
	})

	It("should exchange with the cosimulator at stable points", func() {
		cosim := NewMockCosimulator(mockCtrl)
		k = MakeBuilder().WithQuiet().WithCosim(cosim).Build()
		a := NewSignal(k, "a", uint8(0))

		var seen uint8

		k.Process("p", func(p *Proc) error {
			p.Wait(a)
			seen = a.Value()

			return nil
		})

		cosim.EXPECT().Start(k).Return(nil)
		first := cosim.EXPECT().Exchange(VTime(0)).DoAndReturn(
			func(now VTime) (bool, error) {
				return true, a.SetBits(9)
			})
		cosim.EXPECT().Exchange(VTime(0)).Return(false, nil).After(first)
		cosim.EXPECT().Close().Return(nil)

		status, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(StatusTerminated))
		Expect(seen).To(Equal(uint8(9)))
	})

	It("should fail on a cosimulation error", func() {
		cosim := NewMockCosimulator(mockCtrl)
		k = MakeBuilder().WithQuiet().WithCosim(cosim).Build()

		cosim.EXPECT().Start(k).Return(errors.New("broken pipe"))
		cosim.EXPECT().Close().Return(nil)

		status, err := k.Run()

		Expect(status).To(Equal(StatusFailed))
		Expect(IsKind(err, CosimError)).To(BeTrue())
	})

	It("should log kernel activity", func() {
		buf := new(bytes.Buffer)
		clk := NewSignal(k, "clk", false)
		k.Clock(clk, 5)
		k.AcceptHook(NewEventLogger(log.New(buf, "", 0)))

		_, err := k.RunFor(12)

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("5: time advance"))
		Expect(buf.String()).To(ContainSubstring("resume clk.gen"))
		Expect(buf.String()).To(ContainSubstring("clk = true"))
		Expect(buf.String()).To(ContainSubstring("clk = false"))
	})
})
