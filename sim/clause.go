package sim

import (
	"fmt"
	"log"
)

// A Clause is a condition a process waits on. A wait on several clauses
// resumes on the first one that fires.
//
// The clauses are signals (any change), edges (Signal.Posedge and
// Signal.Negedge), Delay, Join and Call. A nil clause waits for the next
// delta.
type Clause interface {
	subscribe(w *waiter, j *joinState, slot int)
}

type delayClause struct {
	d VTime
}

// Delay fires d time units after the wait starts. Delay(0) fires at the
// current time, after the current delta settles.
func Delay(d VTime) Clause {
	return delayClause{d: d}
}

func (c delayClause) subscribe(w *waiter, j *joinState, slot int) {
	t := w.newTrigger(j, slot)
	evt := newDelayEvent(w.k, w.k.now+c.d, t)
	t.timer = evt
	w.k.pushEvent(evt)
}

type joinClause struct {
	clauses []Clause
}

// Join fires once every one of its clauses has fired, in any order. Join
// with no clause fires at the next delta.
func Join(clauses ...Clause) Clause {
	cs := make([]Clause, len(clauses))
	copy(cs, clauses)

	return joinClause{clauses: cs}
}

func (c joinClause) subscribe(w *waiter, j *joinState, slot int) {
	if len(c.clauses) == 0 {
		nextDelta{}.subscribe(w, j, slot)
		return
	}

	js := &joinState{
		w:         w,
		parent:    j,
		slot:      slot,
		fired:     make([]bool, len(c.clauses)),
		remaining: len(c.clauses),
	}

	for i, inner := range c.clauses {
		subscribeClause(inner, w, js, i)
	}
}

type nextDelta struct{}

func (nextDelta) subscribe(w *waiter, j *joinState, slot int) {
	t := w.newTrigger(j, slot)
	w.k.deferred = append(w.k.deferred, t)
}

type callClause struct {
	name string
	mk   func(w *waiter) routine
}

// Call runs body as a child process and fires when the child returns. The
// child starts in the current delta and the caller resumes in the delta
// after the child ends.
func Call(body func(p *Proc) error) Clause {
	if body == nil {
		log.Panic("calling a nil process body")
	}

	return callClause{
		mk: func(w *waiter) routine { return newProc(w, body) },
	}
}

// CallStepper runs a Stepper as a child process, like Call.
func CallStepper(s Stepper) Clause {
	if s == nil {
		log.Panic("calling a nil stepper")
	}

	return callClause{
		mk: func(w *waiter) routine { return newStepRoutine(w, s) },
	}
}

func (c callClause) subscribe(w *waiter, j *joinState, slot int) {
	t := w.newTrigger(j, slot)

	w.calls++
	name := fmt.Sprintf("%s.call%d", w.name, w.calls)

	child := w.k.spawn(name, c.mk)
	child.parent = w
	child.parentTrig = t
}

func subscribeClause(c Clause, w *waiter, j *joinState, slot int) {
	if c == nil {
		nextDelta{}.subscribe(w, j, slot)
		return
	}

	c.subscribe(w, j, slot)
}
