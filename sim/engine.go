package sim

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTime
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	Schedule(e Event) error
}

// A SimulationEndHandler is a handler that is called after the simulation ends.
type SimulationEndHandler interface {
	Handle(now VTime)
}

// An Engine is the part of the kernel that outside controllers (monitors,
// command-line drivers) interact with.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run processes all the activity until the simulation finishes, is
	// stopped, fails, or is suspended.
	Run() (Status, error)

	// Pause will pause the simulation until continue is called. It may be
	// called from any goroutine.
	Pause()

	// Continue will continue the paused simulation
	Continue()

	// RequestSuspend asks the scheduler to return at the end of the current
	// delta with StatusSuspended.
	RequestSuspend()

	// RegisterSimulationEndHandler registers a handler that perform some
	// actions after the simulation is finished.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Signals lists all the signals of the design in creation order.
	Signals() []SignalInfo
}

// A Cosimulator exchanges signal values with an external simulator at every
// stable point of the kernel.
type Cosimulator interface {
	// Start performs the startup handshake before time 0 is simulated.
	Start(k *Kernel) error

	// Exchange sends the current snapshot and merges the updates received
	// from the other side into the pending update set. It returns true if
	// any update was merged.
	Exchange(now VTime) (bool, error)

	// Close ends the session.
	Close() error
}
