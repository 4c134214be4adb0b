package sim

import (
	"iter"

	"github.com/pkg/errors"
)

// A routine is what a waiter runs: a coroutine-backed Proc or a Stepper.
type routine interface {
	// resume runs the routine until it waits again or ends.
	resume() (clauses []Clause, done bool, err error)

	// kill ends a suspended routine. Deferred calls of a Proc body run.
	kill()
}

type killSignal struct{}

type stopSignal struct{}

func recoveredError(r interface{}) error {
	switch v := r.(type) {
	case killSignal:
		return nil
	case stopSignal:
		return ErrStopSimulation
	case error:
		return v
	default:
		return errors.Errorf("panic: %v", v)
	}
}

// A Proc is the handle a process body uses to wait and to reach the
// kernel. A body ends by returning; returning ErrStopSimulation stops the
// simulation and returning any other error fails it.
type Proc struct {
	w    *waiter
	body func(p *Proc) error

	next  func() ([]Clause, bool)
	stop  func()
	yield func([]Clause) bool

	err    error
	killed bool
}

func newProc(w *waiter, body func(p *Proc) error) *Proc {
	p := &Proc{w: w, body: body}
	p.next, p.stop = iter.Pull(iter.Seq[[]Clause](p.run))

	return p
}

func (p *Proc) run(yield func([]Clause) bool) {
	p.yield = yield

	defer func() {
		if r := recover(); r != nil {
			p.err = recoveredError(r)
		}
	}()

	p.err = p.body(p)
}

func (p *Proc) resume() ([]Clause, bool, error) {
	clauses, ok := p.next()
	if !ok {
		return nil, true, p.err
	}

	return clauses, false, nil
}

func (p *Proc) kill() {
	p.killed = true
	p.stop()
}

// Wait suspends the process until one of the clauses fires. Wait with no
// clause resumes at the next delta.
func (p *Proc) Wait(clauses ...Clause) {
	if p.killed {
		panic(killSignal{})
	}

	if !p.yield(clauses) {
		p.killed = true
		panic(killSignal{})
	}
}

// Stop ends the simulation normally, as if the body returned
// ErrStopSimulation.
func (p *Proc) Stop() {
	panic(stopSignal{})
}

// Now returns the current simulated time.
func (p *Proc) Now() VTime {
	return p.w.k.now
}

// Name returns the name of the process.
func (p *Proc) Name() string {
	return p.w.name
}

// ID returns the id of the process.
func (p *Proc) ID() int {
	return p.w.id
}

// Kernel returns the kernel running the process.
func (p *Proc) Kernel() *Kernel {
	return p.w.k
}

// A Stepper is a process written as an explicit state machine. Step is
// called once per resumption with the kernel, and returns the clauses to
// wait on next, or done when the process ends.
type Stepper interface {
	Step(k *Kernel) (clauses []Clause, done bool, err error)
}

// StepFunc adapts a function to a Stepper.
type StepFunc func(k *Kernel) ([]Clause, bool, error)

// Step calls f.
func (f StepFunc) Step(k *Kernel) ([]Clause, bool, error) {
	return f(k)
}

type stepRoutine struct {
	w *waiter
	s Stepper
}

func newStepRoutine(w *waiter, s Stepper) *stepRoutine {
	return &stepRoutine{w: w, s: s}
}

func (r *stepRoutine) resume() (clauses []Clause, done bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			clauses, done, err = nil, true, recoveredError(rec)
		}
	}()

	clauses, done, err = r.s.Step(r.w.k)
	if err != nil {
		done = true
	}

	return clauses, done, err
}

func (r *stepRoutine) kill() {}
