package sim

// VTime defines the time in the simulated space. It counts abstract time
// units; the tracer's timescale gives them a physical meaning.
type VTime uint64

// An Event is something going to happen in the future.
type Event interface {
	// Return the time that the event should happen
	Time() VTime

	// Returns the handler that can should handle the event
	Handler() Handler

	// IsSecondary tells if the event is a secondary event. Secondary event are
	// handled after all same-time primary activity has settled.
	IsSecondary() bool
}

// EventBase provides the basic fields and getters for other events
type EventBase struct {
	ID        string
	time      VTime
	handler   Handler
	secondary bool
}

// NewEventBase creates a new EventBase
func NewEventBase(t VTime, handler Handler) *EventBase {
	e := new(EventBase)
	e.ID = GetIDGenerator().Generate()
	e.time = t
	e.handler = handler
	e.secondary = false

	return e
}

// Time return the time that the event is going to happen
func (e EventBase) Time() VTime {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event is a secondary event.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// A Handler defines a domain for the events.
type Handler interface {
	Handle(e Event) error
}

// cancellable is implemented by kernel events that can be withdrawn after
// they are queued. Cancelled events are dropped when they reach the front
// of the queue.
type cancellable interface {
	Cancelled() bool
}

// delayEvent wakes a waiter that yielded a Delay clause.
type delayEvent struct {
	*EventBase

	k         *Kernel
	trig      *trigger
	cancelled bool
}

func newDelayEvent(k *Kernel, t VTime, trig *trigger) *delayEvent {
	e := &delayEvent{k: k, trig: trig}
	e.EventBase = NewEventBase(t, e)

	return e
}

func (e *delayEvent) Cancelled() bool {
	return e.cancelled
}

func (e *delayEvent) Handle(_ Event) error {
	if e.cancelled {
		return nil
	}

	e.k.fire(e.trig)

	return nil
}

// inertialEvent delivers a value assigned to a signal with an inertial
// delay.
type inertialEvent[T comparable] struct {
	*EventBase

	sig       *Signal[T]
	val       T
	cancelled bool
}

func newInertialEvent[T comparable](
	s *Signal[T],
	t VTime,
	v T,
) *inertialEvent[T] {
	e := &inertialEvent[T]{sig: s, val: v}
	e.EventBase = NewEventBase(t, e)
	e.secondary = true

	return e
}

func (e *inertialEvent[T]) Cancelled() bool {
	return e.cancelled
}

func (e *inertialEvent[T]) Handle(_ Event) error {
	e.sig.deliver(e)
	return nil
}
