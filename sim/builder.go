package sim

import (
	"log"
)

// Builder can be used to build a kernel.
type Builder struct {
	duration    VTime
	hasDuration bool
	quiet       bool
	maxDeltas   int
	driverCheck bool
	logger      *log.Logger
	cosim       Cosimulator
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		maxDeltas: DefaultMaxDeltas,
	}
}

// WithDuration bounds Run to the given absolute time.
func (b Builder) WithDuration(d VTime) Builder {
	b.duration = d
	b.hasDuration = true

	return b
}

// WithQuiet suppresses the messages printed when a run ends normally.
func (b Builder) WithQuiet() Builder {
	b.quiet = true
	return b
}

// WithLogger sets the logger the kernel prints to.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithMaxDeltas sets the number of delta cycles allowed at a single time
// step before the simulation fails with a DeltaLimitError.
func (b Builder) WithMaxDeltas(n int) Builder {
	b.maxDeltas = n
	return b
}

// WithDriverCheck makes a plain signal written by more than one process
// fail the simulation with a MultiDriverError. The check is off by default.
func (b Builder) WithDriverCheck() Builder {
	b.driverCheck = true
	return b
}

// WithCosim attaches a cosimulation session to the kernel.
func (b Builder) WithCosim(c Cosimulator) Builder {
	b.cosim = c
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.maxDeltas <= 0 {
		log.Panicf("max deltas must be positive, got %d", b.maxDeltas)
	}
}

// Build creates the kernel.
func (b Builder) Build() *Kernel {
	b.parametersMustBeValid()

	k := &Kernel{
		queue:          NewEventQueue(),
		secondaryQueue: NewEventQueue(),
		signalIndex:    make(map[string]SignalInfo),
		duration:       b.duration,
		hasDuration:    b.hasDuration,
		quiet:          b.quiet,
		maxDeltas:      b.maxDeltas,
		driverCheck:    b.driverCheck,
		logger:         b.logger,
		cosim:          b.cosim,
	}

	if k.logger == nil {
		k.logger = log.Default()
	}

	return k
}
