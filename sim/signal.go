package sim

import (
	"container/list"
	"fmt"
	"log"

	"github.com/sarchlab/deltasim/bitvec"
)

type edgeMode int

const (
	levelMode edgeMode = iota
	posedgeMode
	negedgeMode
	numModes
)

// Driver ids that are not processes. Neither takes part in driver checking.
const (
	hostDriver  = 0
	cosimDriver = -1
)

// SignalInfo is the type-independent view of a signal. Tracers, recorders,
// monitors and cosimulation bridges work on SignalInfo.
type SignalInfo interface {
	Clause

	ID() int
	Name() string
	Width() int

	// Bits returns the raw bits of the current value, masked to Width. It
	// reports false for undriven and structured values.
	Bits() (uint64, bool)

	// Driven is false only for a resolved signal that no driver drives.
	Driven() bool

	// String formats the current value.
	String() string

	// SetBits assigns the next value from raw bits, outside of any process.
	SetBits(b uint64) error

	base() *signalBase
}

type committer interface {
	commit() (changed, wasZero, nowZero bool, err error)
}

// signalBase holds the part of a signal that does not depend on its value
// type: identity, waiter lists and scheduler bookkeeping.
type signalBase struct {
	k     *Kernel
	id    int
	name  string
	width int

	waiters [numModes]*list.List

	pending      bool
	shadowQueued bool
	resolved     bool
	shadows      []*signalBase
	drivers      []int

	// rank is 0 for assignable signals and 1 + the highest rank of the
	// sources for shadows.
	rank int

	impl committer
	info SignalInfo
}

func (k *Kernel) newSignalBase(name string) *signalBase {
	s := &signalBase{k: k, id: len(k.signals) + 1, name: name}
	if s.name == "" {
		s.name = fmt.Sprintf("sig%d", s.id)
	}

	for i := range s.waiters {
		s.waiters[i] = list.New()
	}

	return s
}

// ID returns the creation index of the signal, starting at 1.
func (s *signalBase) ID() int {
	return s.id
}

// Name returns the hierarchical name of the signal.
func (s *signalBase) Name() string {
	return s.name
}

// Width returns the number of bits of the signal, 0 for structured values.
func (s *signalBase) Width() int {
	return s.width
}

// NumWaiters returns how many subscriptions are currently attached to the
// signal, all edge kinds included.
func (s *signalBase) NumWaiters() int {
	n := 0
	for _, l := range s.waiters {
		n += l.Len()
	}

	return n
}

func (s *signalBase) base() *signalBase {
	return s
}

func (s *signalBase) subscribe(w *waiter, j *joinState, slot int) {
	s.addTrigger(w, j, slot, levelMode)
}

func (s *signalBase) addTrigger(
	w *waiter,
	j *joinState,
	slot int,
	mode edgeMode,
) {
	t := w.newTrigger(j, slot)
	t.sig = s
	t.mode = mode
	t.elem = s.waiters[mode].PushBack(t)
}

func (s *signalBase) noteDriver(id int) {
	if id <= hostDriver {
		return
	}

	for _, d := range s.drivers {
		if d == id {
			return
		}
	}

	s.drivers = append(s.drivers, id)
}

type edge struct {
	sig  *signalBase
	mode edgeMode
}

func (e edge) subscribe(w *waiter, j *joinState, slot int) {
	e.sig.addTrigger(w, j, slot, e.mode)
}

// A SignalOption configures a signal at creation.
type SignalOption func(*signalOptions)

type signalOptions struct {
	hasRange bool
	min, max int64
	width    int
	delay    VTime
}

// WithRange bounds an integer signal to [min, max). The width is inferred
// from the range unless WithWidth is also given.
func WithRange(min, max int64) SignalOption {
	return func(o *signalOptions) {
		if min >= max {
			log.Panicf("invalid signal range [%d, %d)", min, max)
		}

		o.hasRange = true
		o.min = min
		o.max = max
	}
}

// WithWidth sets the number of bits of the signal.
func WithWidth(w int) SignalOption {
	return func(o *signalOptions) {
		if w <= 0 || w > bitvec.MaxWidth {
			log.Panicf("invalid signal width %d", w)
		}

		o.width = w
	}
}

// WithInertialDelay makes assignments take effect d time units later. A
// write rejects the pending deliveries of other values that are due at the
// current time, so a pulse exactly as long as the delay is swallowed. A
// pulse shorter than the delay but longer than zero is delayed, not
// filtered: its two deliveries are due at different times and both happen.
func WithInertialDelay(d VTime) SignalOption {
	return func(o *signalOptions) {
		o.delay = d
	}
}

// Signal is a value shared between processes. Reads see the value committed
// at the end of the previous delta; writes become visible at the next
// commit.
type Signal[T comparable] struct {
	*signalBase

	val    T
	next   T
	driven bool

	hasRange bool
	min, max int64
	signed   bool
	narrow   bool

	delay    VTime
	inflight []*inertialEvent[T]

	readOnly bool
	compute  func() T
	resolve  func() (T, bool, error)
}

// NewSignal creates a signal with an initial value.
func NewSignal[T comparable](
	k *Kernel,
	name string,
	init T,
	opts ...SignalOption,
) *Signal[T] {
	s := newSignal(k, name, init, opts)

	if err := s.checkWidth(init); err != nil {
		log.Panicf("signal %s: initial value %v does not fit in %d bits",
			s.name, init, s.width)
	}

	k.registerSignal(s)

	return s
}

func newSignal[T comparable](
	k *Kernel,
	name string,
	init T,
	opts []SignalOption,
) *Signal[T] {
	o := signalOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Signal[T]{val: init, next: init, driven: true}
	s.signalBase = k.newSignalBase(name)
	s.impl = s
	s.info = s
	s.delay = o.delay

	s.width = typeWidth[T]()

	if o.hasRange {
		if _, ok := toInt64(init); !ok && s.width != 1 {
			log.Panicf("signal %s: a range needs an integer type", s.name)
		}

		s.hasRange = true
		s.min, s.max = o.min, o.max
		s.width = bitvec.WidthFor(o.min, o.max)

		if err := s.checkRange(init); err != nil {
			log.Panicf("signal %s: initial value %v out of range [%d, %d)",
				s.name, init, s.min, s.max)
		}
	}

	if o.width > 0 {
		s.width = o.width
	}

	s.signed = signedKind[T]() && (!s.hasRange || s.min < 0)
	s.narrow = !s.hasRange && s.width > 0 && s.width < typeWidth[T]()

	return s
}

// Value returns the current value.
func (s *Signal[T]) Value() T {
	return s.val
}

// Next returns the value that the next commit will make visible.
func (s *Signal[T]) Next() T {
	return s.next
}

// Driven is false only for a resolved signal that no driver drives.
func (s *Signal[T]) Driven() bool {
	return s.driven
}

// Range returns the bounds of the signal, if it has any.
func (s *Signal[T]) Range() (min, max int64, ok bool) {
	return s.min, s.max, s.hasRange
}

// InertialDelay returns the inertial delay of the signal.
func (s *Signal[T]) InertialDelay() VTime {
	return s.delay
}

// Posedge returns a clause that fires when the signal goes from zero to
// non-zero.
func (s *Signal[T]) Posedge() Clause {
	return edge{sig: s.signalBase, mode: posedgeMode}
}

// Negedge returns a clause that fires when the signal goes from non-zero to
// zero.
func (s *Signal[T]) Negedge() Clause {
	return edge{sig: s.signalBase, mode: negedgeMode}
}

// Bits returns the bits of the current value.
func (s *Signal[T]) Bits() (uint64, bool) {
	if !s.driven {
		return 0, false
	}

	b, ok := toBits(s.val)
	if !ok {
		return 0, false
	}

	return b & bitvec.Mask(s.width), true
}

// String formats the current value. Undriven signals print as Z.
func (s *Signal[T]) String() string {
	if !s.driven {
		return "Z"
	}

	return fmt.Sprint(s.val)
}

// Set assigns the next value of the signal. A rejected assignment panics
// with a *SimError; inside a process this fails the simulation.
func (s *Signal[T]) Set(v T) {
	if err := s.TrySet(v); err != nil {
		panic(err)
	}
}

// TrySet assigns the next value of the signal and reports a rejected
// assignment as an error.
func (s *Signal[T]) TrySet(v T) error {
	if s.readOnly {
		return s.k.errorf(ReadOnlyError, s.name, "signal is not assignable")
	}

	if err := s.checkRange(v); err != nil {
		return err
	}

	if err := s.checkWidth(v); err != nil {
		return err
	}

	s.noteDriver(s.k.currentDriver())

	if s.delay > 0 {
		s.scheduleInertial(v)
		return nil
	}

	s.assign(v)

	return nil
}

// SetBits assigns the next value from raw bits. It is the entry point of
// values coming from outside the kernel; a pending inertial assignment is
// cancelled by it.
func (s *Signal[T]) SetBits(b uint64) error {
	if s.readOnly {
		return s.k.errorf(ReadOnlyError, s.name, "signal is not assignable")
	}

	v, ok := fromBits[T](b, s.width, s.signed)
	if !ok {
		return s.k.errorf(ReadOnlyError, s.name,
			"signal value is not bit-representable")
	}

	if err := s.checkRange(v); err != nil {
		return err
	}

	s.noteDriver(cosimDriver)
	s.cancelInflight()
	s.assign(v)

	return nil
}

func (s *Signal[T]) checkRange(v T) error {
	if !s.hasRange {
		return nil
	}

	i, ok := toInt64(v)
	if !ok {
		if b, isBits := toBits(v); isBits && s.width == 1 {
			i, ok = int64(b), true
		}
	}

	if !ok || i < s.min || i >= s.max {
		return s.k.errorf(RangeError, s.name,
			"value %v out of range [%d, %d)", v, s.min, s.max)
	}

	return nil
}

// checkWidth rejects a value that an explicit WithWidth narrower than the
// type cannot hold, so that the value and its bits always agree.
func (s *Signal[T]) checkWidth(v T) error {
	if !s.narrow {
		return nil
	}

	b, ok := toBits(v)
	if !ok {
		return nil
	}

	if back, _ := fromBits[T](b, s.width, s.signed); back != v {
		return s.k.errorf(RangeError, s.name,
			"value %v does not fit in %d bits", v, s.width)
	}

	return nil
}

func (s *Signal[T]) assign(v T) {
	s.next = v
	if v != s.val {
		s.k.markPending(s.signalBase)
	}
}

// scheduleInertial queues v for delivery after the inertial delay. A pending
// delivery of another value that is due now, and therefore still inside its
// window, is rejected.
func (s *Signal[T]) scheduleInertial(v T) {
	now := s.k.now

	kept := s.inflight[:0]
	for _, e := range s.inflight {
		if e.val != v && e.Time() == now {
			e.cancelled = true
			continue
		}

		kept = append(kept, e)
	}

	for i := len(kept); i < len(s.inflight); i++ {
		s.inflight[i] = nil
	}

	s.inflight = kept

	e := newInertialEvent(s, now+s.delay, v)
	s.inflight = append(s.inflight, e)
	s.k.pushEvent(e)
}

func (s *Signal[T]) cancelInflight() {
	for _, e := range s.inflight {
		e.cancelled = true
	}

	s.inflight = nil
}

func (s *Signal[T]) deliver(e *inertialEvent[T]) {
	for i, p := range s.inflight {
		if p == e {
			s.inflight = append(s.inflight[:i], s.inflight[i+1:]...)
			break
		}
	}

	if e.cancelled {
		return
	}

	s.assign(e.val)
}

func (s *Signal[T]) commit() (changed, wasZero, nowZero bool, err error) {
	old, oldDriven := s.val, s.driven

	if s.compute != nil {
		s.next = s.compute()
	}

	if s.resolve != nil {
		v, driven, rerr := s.resolve()
		if rerr != nil {
			return false, false, false, rerr
		}

		s.next, s.driven = v, driven
	}

	s.val = s.next

	if s.val == old && s.driven == oldDriven {
		return false, false, false, nil
	}

	wasZero = !oldDriven || isZero(old, s.width)
	nowZero = !s.driven || isZero(s.val, s.width)

	return true, wasZero, nowZero, nil
}
