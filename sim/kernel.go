package sim

import (
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// DefaultMaxDeltas bounds the number of delta cycles at a single time step.
const DefaultMaxDeltas = 10000

var (
	// HookPosSimStart fires once, before time 0 is simulated.
	HookPosSimStart = &HookPos{Name: "SimStart"}

	// HookPosDeltaEnd fires at the end of every delta. Item is a DeltaReport.
	HookPosDeltaEnd = &HookPos{Name: "DeltaEnd"}

	// HookPosTimeAdvance fires when time moves forward. Item is the new
	// VTime.
	HookPosTimeAdvance = &HookPos{Name: "TimeAdvance"}

	// HookPosBeforeResume fires before a process is resumed. Item is a
	// ProcessRecord.
	HookPosBeforeResume = &HookPos{Name: "BeforeResume"}

	// HookPosAfterResume fires after a process yields. Item is a
	// ProcessRecord.
	HookPosAfterResume = &HookPos{Name: "AfterResume"}

	// HookPosSimEnd fires once when the simulation finishes. Item is the
	// final Status and Detail the error, if any.
	HookPosSimEnd = &HookPos{Name: "SimEnd"}
)

// DeltaReport describes a finished delta cycle.
type DeltaReport struct {
	Time    VTime
	Delta   int
	Changed []SignalInfo
	Resumed int
}

// ProcessRecord identifies a process.
type ProcessRecord struct {
	ID   int
	Name string
}

// Kernel is the event-driven scheduler. It owns the signals, the processes
// and simulated time. All the design code runs on the goroutine that calls
// Run; Pause, Continue, RequestSuspend and CurrentTime may be called from
// other goroutines.
type Kernel struct {
	HookableBase

	timeLock sync.RWMutex
	now      VTime
	delta    int

	queue          EventQueue
	secondaryQueue EventQueue

	signals     []SignalInfo
	signalIndex map[string]SignalInfo

	procs    []*waiter
	ready    []*waiter
	deferred []*trigger
	current  *waiter

	pending     []*signalBase
	shadowQueue []*signalBase
	changed     []SignalInfo

	duration    VTime
	hasDuration bool
	maxDeltas   int
	driverCheck bool
	quiet       bool
	logger      *log.Logger
	cosim       Cosimulator

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex

	suspendLock sync.Mutex
	suspendReq  bool

	started   bool
	finished  bool
	status    Status
	err       error
	stoppedBy string

	simulationEndHandlers []SimulationEndHandler
}

// NewKernel creates a kernel with the default configuration.
func NewKernel() *Kernel {
	return MakeBuilder().Build()
}

// CurrentTime returns the current simulated time.
func (k *Kernel) CurrentTime() VTime {
	return k.readNow()
}

// Delta returns the index of the current delta cycle within the current
// time step.
func (k *Kernel) Delta() int {
	return k.delta
}

func (k *Kernel) readNow() VTime {
	k.timeLock.RLock()
	t := k.now
	k.timeLock.RUnlock()

	return t
}

func (k *Kernel) writeNow(t VTime) {
	k.timeLock.Lock()
	k.now = t
	k.timeLock.Unlock()
}

// Schedule registers an event to happen in the future. Events in the past
// are rejected with a ScheduleError.
func (k *Kernel) Schedule(evt Event) error {
	now := k.readNow()
	if evt.Time() < now {
		return k.errorf(ScheduleError, "",
			"event at time %d is earlier than the current time %d",
			evt.Time(), now)
	}

	k.pushEvent(evt)

	return nil
}

func (k *Kernel) pushEvent(evt Event) {
	if evt.IsSecondary() {
		k.secondaryQueue.Push(evt)
		return
	}

	k.queue.Push(evt)
}

func (k *Kernel) registerSignal(s SignalInfo) {
	name := s.Name()
	if _, found := k.signalIndex[name]; found {
		log.Panicf("signal %s already exists", name)
	}

	k.signals = append(k.signals, s)
	k.signalIndex[name] = s
}

// Signals lists all the signals in creation order.
func (k *Kernel) Signals() []SignalInfo {
	out := make([]SignalInfo, len(k.signals))
	copy(out, k.signals)

	return out
}

// LookupSignal returns the signal with the given name.
func (k *Kernel) LookupSignal(name string) (SignalInfo, bool) {
	s, ok := k.signalIndex[name]
	return s, ok
}

// Processes lists the processes in creation order, called children
// included.
func (k *Kernel) Processes() []ProcessRecord {
	out := make([]ProcessRecord, 0, len(k.procs))
	for _, w := range k.procs {
		out = append(out, w.record())
	}

	return out
}

func (k *Kernel) markPending(s *signalBase) {
	if s.pending {
		return
	}

	s.pending = true
	k.pending = append(k.pending, s)
}

func (k *Kernel) currentDriver() int {
	if k.current == nil {
		return hostDriver
	}

	return k.current.id
}

// Process registers a coroutine process. The body starts in the first delta
// of the next run.
func (k *Kernel) Process(name string, body func(p *Proc) error) ProcessRecord {
	if body == nil {
		log.Panic("process body is nil")
	}

	w := k.spawn(name, func(w *waiter) routine { return newProc(w, body) })

	return w.record()
}

// Stepper registers a state machine process.
func (k *Kernel) Stepper(name string, s Stepper) ProcessRecord {
	if s == nil {
		log.Panic("stepper is nil")
	}

	w := k.spawn(name, func(w *waiter) routine { return newStepRoutine(w, s) })

	return w.record()
}

// Always registers a process that waits on the clauses and runs body every
// time one of them fires.
func (k *Kernel) Always(
	name string,
	body func(p *Proc) error,
	clauses ...Clause,
) ProcessRecord {
	cs := make([]Clause, len(clauses))
	copy(cs, clauses)

	return k.Process(name, func(p *Proc) error {
		for {
			p.Wait(cs...)

			if err := body(p); err != nil {
				return err
			}
		}
	})
}

func (k *Kernel) spawn(name string, mk func(w *waiter) routine) *waiter {
	w := &waiter{k: k, id: len(k.procs) + 1, name: name}
	if w.name == "" {
		w.name = "proc" + strconv.Itoa(w.id)
	}

	w.proc = mk(w)
	k.procs = append(k.procs, w)
	k.ready = append(k.ready, w)

	return w
}

func (k *Kernel) fire(t *trigger) {
	if !t.live {
		return
	}

	t.unlink()

	if t.join != nil {
		t.join.slotFired(t.slot)
		return
	}

	k.wake(t.w)
}

func (k *Kernel) wake(w *waiter) {
	if !w.armed {
		return
	}

	w.disarm()
	k.ready = append(k.ready, w)
}

// Run runs the simulation until it finishes, or until the duration given
// to the builder is reached.
func (k *Kernel) Run() (Status, error) {
	return k.run(k.duration, k.hasDuration)
}

// RunFor runs the simulation for d more time units.
func (k *Kernel) RunFor(d VTime) (Status, error) {
	return k.run(k.readNow()+d, true)
}

// RequestSuspend makes the running simulation return StatusSuspended at the
// end of the current delta.
func (k *Kernel) RequestSuspend() {
	k.suspendLock.Lock()
	k.suspendReq = true
	k.suspendLock.Unlock()
}

func (k *Kernel) takeSuspendRequest() bool {
	k.suspendLock.Lock()
	defer k.suspendLock.Unlock()

	req := k.suspendReq
	k.suspendReq = false

	return req
}

func (k *Kernel) suspendRequested() bool {
	k.suspendLock.Lock()
	defer k.suspendLock.Unlock()

	return k.suspendReq
}

func (k *Kernel) run(until VTime, bounded bool) (Status, error) {
	k.singleRunLock.Lock()
	defer k.singleRunLock.Unlock()

	if k.finished {
		return k.status, k.err
	}

	if !k.started {
		if err := k.start(); err != nil {
			return k.finish(StatusFailed, err)
		}
	}

	for {
		k.pauseLock.Lock()
		err := k.settle()
		k.pauseLock.Unlock()

		if err != nil {
			return k.finishWithError(err)
		}

		if k.takeSuspendRequest() {
			k.logf("SuspendSimulation: suspended at time %d", k.now)
			return StatusSuspended, nil
		}

		next, ok := k.nextEventTime()
		if !ok {
			k.logf("No more events at time %d", k.now)
			return k.finish(StatusTerminated, nil)
		}

		if bounded && next > until {
			if until > k.now {
				k.advanceTo(until)
			}

			k.logf("SuspendSimulation: simulated until time %d", until)

			return StatusSuspended, nil
		}

		k.pauseLock.Lock()
		err = k.advance(next)
		k.pauseLock.Unlock()

		if err != nil {
			return k.finishWithError(err)
		}
	}
}

func (k *Kernel) start() error {
	k.started = true

	k.InvokeHook(HookCtx{Domain: k, Pos: HookPosSimStart, Item: k.now})

	if k.cosim != nil {
		if err := k.cosim.Start(k); err != nil {
			return k.cosimError(err)
		}
	}

	return nil
}

// settle runs delta cycles, cosimulation exchanges and same-time secondary
// events until the current time step is stable.
func (k *Kernel) settle() error {
	for {
		if err := k.runDeltas(); err != nil {
			return err
		}

		if k.suspendRequested() {
			return nil
		}

		if k.cosim != nil {
			changed, err := k.cosim.Exchange(k.now)
			if err != nil {
				return k.cosimError(err)
			}

			if changed {
				continue
			}
		}

		applied, err := k.applySecondary()
		if err != nil {
			return err
		}

		if !applied {
			return nil
		}
	}
}

func (k *Kernel) hasDeltaWork() bool {
	return len(k.pending) > 0 || len(k.ready) > 0 || len(k.deferred) > 0
}

func (k *Kernel) runDeltas() error {
	for k.hasDeltaWork() {
		if k.delta >= k.maxDeltas {
			return k.errorf(DeltaLimitError, "",
				"no stable state after %d delta cycles", k.maxDeltas)
		}

		if err := k.runDelta(); err != nil {
			return err
		}

		k.delta++

		if k.suspendRequested() {
			return nil
		}
	}

	return nil
}

func (k *Kernel) runDelta() error {
	if err := k.commitPhase(); err != nil {
		return err
	}

	deferred := k.deferred
	k.deferred = nil

	for _, t := range deferred {
		k.fire(t)
	}

	resumed := 0
	for i := 0; i < len(k.ready); i++ {
		resumed++

		if err := k.resume(k.ready[i]); err != nil {
			k.ready = nil
			return err
		}
	}

	k.ready = k.ready[:0]

	report := DeltaReport{
		Time:    k.now,
		Delta:   k.delta,
		Changed: k.changed,
		Resumed: resumed,
	}
	k.changed = nil

	k.InvokeHook(HookCtx{Domain: k, Pos: HookPosDeltaEnd, Item: report})

	return nil
}

func (k *Kernel) commitPhase() error {
	pending := k.pending
	k.pending = nil

	for _, s := range pending {
		s.pending = false

		if err := k.checkDrivers(s); err != nil {
			return err
		}

		if err := k.commitSignal(s); err != nil {
			return err
		}
	}

	for i := 0; i < len(k.shadowQueue); i++ {
		sortByRank(k.shadowQueue[i:])

		s := k.shadowQueue[i]
		s.shadowQueued = false

		if err := k.commitSignal(s); err != nil {
			return err
		}
	}

	k.shadowQueue = k.shadowQueue[:0]

	return nil
}

// sortByRank puts the shadows whose sources are all final first. A shadow
// only queues shadows of a higher rank, so each queued shadow is evaluated
// once, after all of its sources.
func sortByRank(queue []*signalBase) {
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].rank < queue[j].rank
	})
}

func (k *Kernel) commitSignal(s *signalBase) error {
	changed, wasZero, nowZero, err := s.impl.commit()
	if err != nil {
		return err
	}

	if !changed {
		return nil
	}

	k.changed = append(k.changed, s.info)

	for _, sh := range s.shadows {
		if !sh.shadowQueued {
			sh.shadowQueued = true
			k.shadowQueue = append(k.shadowQueue, sh)
		}
	}

	k.notify(s, wasZero, nowZero)

	return nil
}

func (k *Kernel) notify(s *signalBase, wasZero, nowZero bool) {
	trigs := collectTriggers(s.waiters[levelMode], nil)

	if wasZero && !nowZero {
		trigs = collectTriggers(s.waiters[posedgeMode], trigs)
	}

	if !wasZero && nowZero {
		trigs = collectTriggers(s.waiters[negedgeMode], trigs)
	}

	for _, t := range trigs {
		k.fire(t)
	}
}

func (k *Kernel) checkDrivers(s *signalBase) error {
	if !k.driverCheck || s.resolved || len(s.drivers) < 2 {
		return nil
	}

	names := make([]string, 0, len(s.drivers))
	for _, id := range s.drivers {
		names = append(names, k.procs[id-1].name)
	}

	sort.Strings(names)

	return k.errorf(MultiDriverError, s.name,
		"driven by %s", strings.Join(names, ", "))
}

func (k *Kernel) resume(w *waiter) error {
	rec := w.record()

	k.InvokeHook(HookCtx{Domain: k, Pos: HookPosBeforeResume, Item: rec})

	k.current = w
	clauses, done, err := w.proc.resume()
	k.current = nil

	k.InvokeHook(HookCtx{Domain: k, Pos: HookPosAfterResume, Item: rec})

	if err != nil {
		w.done = true
		return k.processError(w, err)
	}

	if done {
		w.done = true

		if w.parentTrig != nil {
			k.deferred = append(k.deferred, w.parentTrig)
		}

		return nil
	}

	w.arm(clauses)

	return nil
}

func (k *Kernel) processError(w *waiter, err error) error {
	if errors.Is(err, ErrStopSimulation) {
		k.stoppedBy = w.name
		return err
	}

	var se *SimError
	if errors.As(err, &se) {
		if se.Process == "" {
			se.Process = w.name
		}

		return se
	}

	return &SimError{
		Kind:    ProcessError,
		Time:    k.now,
		Process: w.name,
		Err:     err,
	}
}

func (k *Kernel) cosimError(err error) error {
	var se *SimError
	if errors.As(err, &se) {
		return se
	}

	return &SimError{Kind: CosimError, Time: k.now, Err: err}
}

func (k *Kernel) applySecondary() (bool, error) {
	k.dropCancelled(k.secondaryQueue)

	t, ok := k.secondaryQueue.PeekTime()
	if !ok || t != k.now {
		return false, nil
	}

	for _, evt := range k.secondaryQueue.PopDue(k.now) {
		if err := k.handle(evt); err != nil {
			return true, err
		}
	}

	return true, nil
}

func (k *Kernel) handle(evt Event) error {
	if c, ok := evt.(cancellable); ok && c.Cancelled() {
		return nil
	}

	return evt.Handler().Handle(evt)
}

func (k *Kernel) dropCancelled(q EventQueue) {
	for q.Len() > 0 {
		c, ok := q.Peek().(cancellable)
		if !ok || !c.Cancelled() {
			return
		}

		q.Pop()
	}
}

func (k *Kernel) nextEventTime() (VTime, bool) {
	k.dropCancelled(k.queue)
	k.dropCancelled(k.secondaryQueue)

	pt, pok := k.queue.PeekTime()
	st, sok := k.secondaryQueue.PeekTime()

	switch {
	case pok && sok:
		if st < pt {
			return st, true
		}

		return pt, true
	case pok:
		return pt, true
	case sok:
		return st, true
	default:
		return 0, false
	}
}

func (k *Kernel) advanceTo(t VTime) {
	if t < k.now {
		log.Panicf("cannot move time back from %d to %d", k.now, t)
	}

	if t == k.now {
		return
	}

	k.writeNow(t)
	k.delta = 0

	k.InvokeHook(HookCtx{Domain: k, Pos: HookPosTimeAdvance, Item: t})
}

func (k *Kernel) advance(t VTime) error {
	k.advanceTo(t)

	for _, evt := range k.queue.PopDue(t) {
		if err := k.handle(evt); err != nil {
			return err
		}
	}

	return nil
}

func (k *Kernel) finishWithError(err error) (Status, error) {
	if errors.Is(err, ErrStopSimulation) {
		return k.finish(StatusStopped, nil)
	}

	return k.finish(StatusFailed, err)
}

func (k *Kernel) finish(status Status, err error) (Status, error) {
	k.finished = true
	k.status = status
	k.err = err

	for _, w := range k.procs {
		if !w.done {
			w.done = true
			w.disarm()
			w.proc.kill()
		}
	}

	switch status {
	case StatusStopped:
		k.logf("StopSimulation: stopped by %s at time %d", k.stoppedBy, k.now)
	case StatusFailed:
		k.logger.Printf("Simulation failed at time %d: %v", k.now, err)
	}

	k.InvokeHook(HookCtx{
		Domain: k,
		Pos:    HookPosSimEnd,
		Item:   status,
		Detail: err,
	})

	if k.cosim != nil {
		if cerr := k.cosim.Close(); cerr != nil {
			k.logger.Printf("closing cosimulation: %v", cerr)
		}
	}

	k.Finished()

	return status, err
}

// IsFinished tells if the simulation ended and can not be run again.
func (k *Kernel) IsFinished() bool {
	return k.finished
}

// Result returns the outcome of the finished simulation.
func (k *Kernel) Result() (Status, error) {
	return k.status, k.err
}

func (k *Kernel) logf(format string, args ...interface{}) {
	if k.quiet {
		return
	}

	k.logger.Printf(format, args...)
}

// Pause prevents the kernel from running more deltas until Continue is
// called.
func (k *Kernel) Pause() {
	k.isPausedLock.Lock()
	defer k.isPausedLock.Unlock()

	if k.isPaused {
		return
	}

	k.pauseLock.Lock()
	k.isPaused = true
}

// Continue allows a paused kernel to run again.
func (k *Kernel) Continue() {
	k.isPausedLock.Lock()
	defer k.isPausedLock.Unlock()

	if !k.isPaused {
		return
	}

	k.pauseLock.Unlock()
	k.isPaused = false
}

// IsPaused tells if the kernel is paused.
func (k *Kernel) IsPaused() bool {
	k.isPausedLock.Lock()
	defer k.isPausedLock.Unlock()

	return k.isPaused
}

// Inspect runs f while no design code runs. It is used by other goroutines
// to read signals and processes of a running kernel.
func (k *Kernel) Inspect(f func()) {
	k.isPausedLock.Lock()
	defer k.isPausedLock.Unlock()

	if k.isPaused {
		f()
		return
	}

	k.pauseLock.Lock()
	defer k.pauseLock.Unlock()

	f()
}

// RegisterSimulationEndHandler registers a handler to be called when the
// simulation finishes.
func (k *Kernel) RegisterSimulationEndHandler(handler SimulationEndHandler) {
	k.simulationEndHandlers = append(k.simulationEndHandlers, handler)
}

// Finished calls all the registered SimulationEndHandlers. The kernel calls
// it when a run finishes.
func (k *Kernel) Finished() {
	now := k.readNow()
	for _, h := range k.simulationEndHandlers {
		h.Handle(now)
	}
}
