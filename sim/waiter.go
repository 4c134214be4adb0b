package sim

import "container/list"

// A waiter is the scheduler side of a process. A waiter is armed while it
// is blocked on clauses and is in the ready queue once one of them fires.
type waiter struct {
	k    *Kernel
	id   int
	name string
	proc routine

	parent     *waiter
	parentTrig *trigger

	triggers []*trigger
	armed    bool
	done     bool
	calls    int
}

func (w *waiter) record() ProcessRecord {
	return ProcessRecord{ID: w.id, Name: w.name}
}

func (w *waiter) newTrigger(j *joinState, slot int) *trigger {
	t := &trigger{w: w, join: j, slot: slot, live: true}
	w.triggers = append(w.triggers, t)

	return t
}

func (w *waiter) arm(clauses []Clause) {
	w.armed = true

	if len(clauses) == 0 {
		nextDelta{}.subscribe(w, nil, 0)
		return
	}

	for i, c := range clauses {
		subscribeClause(c, w, nil, i)
	}
}

// disarm detaches the waiter from every signal list and cancels its
// pending delays.
func (w *waiter) disarm() {
	for _, t := range w.triggers {
		t.unlink()
	}

	w.triggers = nil
	w.armed = false
}

// A trigger is one subscription of a waiter: a place in a signal waiter
// list, a delay event, a next-delta slot or a called child.
type trigger struct {
	w    *waiter
	join *joinState
	slot int
	live bool

	sig  *signalBase
	mode edgeMode
	elem *list.Element

	timer *delayEvent
}

func (t *trigger) unlink() {
	t.live = false

	if t.elem != nil {
		t.sig.waiters[t.mode].Remove(t.elem)
		t.elem = nil
	}

	if t.timer != nil {
		t.timer.cancelled = true
		t.timer = nil
	}
}

// joinState counts the clauses of a Join that already fired.
type joinState struct {
	w         *waiter
	parent    *joinState
	slot      int
	fired     []bool
	remaining int
}

func (j *joinState) slotFired(slot int) {
	if j.fired[slot] {
		return
	}

	j.fired[slot] = true
	j.remaining--

	if j.remaining > 0 {
		return
	}

	if j.parent != nil {
		j.parent.slotFired(j.slot)
		return
	}

	j.w.k.wake(j.w)
}

func collectTriggers(l *list.List, out []*trigger) []*trigger {
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*trigger))
	}

	return out
}
