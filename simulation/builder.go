package simulation

import (
	"io"
	"log"

	"github.com/rs/xid"
	"github.com/sarchlab/deltasim/datarecording"
	"github.com/sarchlab/deltasim/monitoring"
	"github.com/sarchlab/deltasim/sim"
	"github.com/sarchlab/deltasim/tracing"
)

// DefaultTracePath is the trace file used when tracing is enabled without a
// path.
const DefaultTracePath = "deltasim.vcd"

// Builder can be used to build a simulation.
type Builder struct {
	duration    sim.VTime
	hasDuration bool
	quiet       bool
	logger      *log.Logger
	maxDeltas   int
	driverCheck bool
	cosim       sim.Cosimulator

	traceOn       bool
	tracePath     string
	traceWriter   io.Writer
	initialValues bool
	timescale     string

	recordOn   bool
	recordPath string

	activityOn bool
	eventLog   *log.Logger

	monitorOn   bool
	monitorPort int
	openBrowser bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		maxDeltas: sim.DefaultMaxDeltas,
	}
}

// WithDuration stops Run once the given time is reached.
func (b Builder) WithDuration(d sim.VTime) Builder {
	b.duration = d
	b.hasDuration = true

	return b
}

// WithQuiet suppresses the termination messages of the kernel.
func (b Builder) WithQuiet() Builder {
	b.quiet = true
	return b
}

// WithLogger sets the logger of the kernel.
func (b Builder) WithLogger(l *log.Logger) Builder {
	b.logger = l
	return b
}

// WithMaxDeltas bounds the number of delta cycles per time step.
func (b Builder) WithMaxDeltas(n int) Builder {
	b.maxDeltas = n
	return b
}

// WithDriverCheck rejects signals driven by more than one process.
func (b Builder) WithDriverCheck() Builder {
	b.driverCheck = true
	return b
}

// WithCosim connects an external cosimulator.
func (b Builder) WithCosim(c sim.Cosimulator) Builder {
	b.cosim = c
	return b
}

// WithTrace writes a VCD trace to the given path. An empty path means
// DefaultTracePath.
func (b Builder) WithTrace(path string) Builder {
	b.traceOn = true
	b.tracePath = path
	b.traceWriter = nil

	return b
}

// WithTraceWriter writes the VCD trace to w.
func (b Builder) WithTraceWriter(w io.Writer) Builder {
	b.traceOn = true
	b.traceWriter = w

	return b
}

// WithInitialValues dumps the initial value of every signal at the start of
// the trace.
func (b Builder) WithInitialValues() Builder {
	b.initialValues = true
	return b
}

// WithTimescale sets the timescale written in the trace header.
func (b Builder) WithTimescale(ts string) Builder {
	b.timescale = ts
	return b
}

// WithRecording records signal changes into an SQLite database. An empty
// path lets the recorder pick a unique file name.
func (b Builder) WithRecording(path string) Builder {
	b.recordOn = true
	b.recordPath = path

	return b
}

// WithActivity counts signal changes with an ActivityTracer.
func (b Builder) WithActivity() Builder {
	b.activityOn = true
	return b
}

// WithEventLog prints the kernel activity into the given logger.
func (b Builder) WithEventLog(l *log.Logger) Builder {
	b.eventLog = l
	return b
}

// WithMonitor serves the monitoring page on the given port. Port 0 picks a
// random port.
func (b Builder) WithMonitor(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

// WithBrowser opens the monitoring page in a browser.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.openBrowser && !b.monitorOn {
		panic("browser cannot be opened when monitoring is disabled")
	}

	if b.initialValues && !b.traceOn {
		panic("initial values are only written into a trace")
	}
}

func (b Builder) kernelBuilder() sim.Builder {
	kb := sim.MakeBuilder().WithMaxDeltas(b.maxDeltas)

	if b.hasDuration {
		kb = kb.WithDuration(b.duration)
	}

	if b.quiet {
		kb = kb.WithQuiet()
	}

	if b.logger != nil {
		kb = kb.WithLogger(b.logger)
	}

	if b.driverCheck {
		kb = kb.WithDriverCheck()
	}

	if b.cosim != nil {
		kb = kb.WithCosim(b.cosim)
	}

	return kb
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		id:     xid.New().String(),
		kernel: b.kernelBuilder().Build(),
	}

	if b.traceOn {
		if err := b.buildTracer(s); err != nil {
			return nil, err
		}
	}

	if b.activityOn {
		s.activity = tracing.NewActivityTracer()
		tracing.CollectTrace(s.kernel, s.activity)
	}

	if b.eventLog != nil {
		s.kernel.AcceptHook(sim.NewEventLogger(b.eventLog))
	}

	if b.recordOn {
		s.recordPath = datarecording.FileName(b.recordPath)
		s.dataRecorder = datarecording.New(s.recordPath)
		s.kernel.AcceptHook(datarecording.NewSignalRecorder(s.dataRecorder))
	}

	if b.monitorOn {
		b.buildMonitor(s)
	}

	return s, nil
}

func (b Builder) buildTracer(s *Simulation) error {
	var opts []tracing.VCDOption

	if b.initialValues {
		opts = append(opts, tracing.WithInitialValues())
	}

	if b.timescale != "" {
		opts = append(opts, tracing.WithTimescale(b.timescale))
	}

	if b.traceWriter != nil {
		s.vcd = tracing.NewVCDTracer(b.traceWriter, opts...)
	} else {
		path := b.tracePath
		if path == "" {
			path = DefaultTracePath
		}

		vcd, err := tracing.OpenVCD(path, opts...)
		if err != nil {
			return err
		}

		s.vcd = vcd
		s.tracePath = path
	}

	tracing.CollectTrace(s.kernel, s.vcd)

	return nil
}

func (b Builder) buildMonitor(s *Simulation) {
	s.monitor = monitoring.NewMonitor()
	if b.monitorPort > 0 {
		s.monitor.WithPortNumber(b.monitorPort)
	}

	s.monitor.RegisterKernel(s.kernel)

	if b.hasDuration {
		bar := s.monitor.CreateProgressBar("Simulated time", uint64(b.duration))
		s.kernel.AcceptHook(monitoring.NewTimeProgress(bar))
	}

	s.monitor.StartServer()

	if b.openBrowser {
		if err := s.monitor.OpenBrowser(); err != nil {
			log.Printf("cannot open browser: %v", err)
		}
	}
}
