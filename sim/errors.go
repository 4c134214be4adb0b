package sim

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies the fatal errors the kernel reports.
type ErrorKind int

// The kinds of kernel errors.
const (
	RangeError ErrorKind = iota + 1

	// MultiDriverError is only reported by kernels built with
	// Builder.WithDriverCheck. Without it, same-delta writes from several
	// processes resolve to the last write.
	MultiDriverError

	ResolutionConflict
	ScheduleError
	CosimError
	DeltaLimitError
	ProcessError
	ReadOnlyError
)

var errorKindNames = map[ErrorKind]string{
	RangeError:         "RangeError",
	MultiDriverError:   "MultiDriverError",
	ResolutionConflict: "ResolutionConflict",
	ScheduleError:      "ScheduleError",
	CosimError:         "CosimError",
	DeltaLimitError:    "DeltaLimitError",
	ProcessError:       "ProcessError",
	ReadOnlyError:      "ReadOnlyError",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ErrStopSimulation is returned by a process, or raised with Proc.Stop, to
// end the simulation normally.
var ErrStopSimulation = errors.New("stop simulation")

// SimError is a fatal kernel error.
type SimError struct {
	Kind    ErrorKind
	Time    VTime
	Signal  string
	Process string
	Detail  string
	Err     error
}

func (e *SimError) Error() string {
	msg := fmt.Sprintf("%s at time %d", e.Kind, e.Time)
	if e.Process != "" {
		msg += ", process " + e.Process
	}

	if e.Signal != "" {
		msg += ", signal " + e.Signal
	}

	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *SimError) Unwrap() error {
	return e.Err
}

// IsKind tells if err carries a SimError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *SimError
	if !errors.As(err, &se) {
		return false
	}

	return se.Kind == kind
}

// KindOf returns the kind of the SimError carried by err, or 0.
func KindOf(err error) ErrorKind {
	var se *SimError
	if !errors.As(err, &se) {
		return 0
	}

	return se.Kind
}

func (k *Kernel) errorf(
	kind ErrorKind,
	signal string,
	format string,
	args ...interface{},
) *SimError {
	return &SimError{
		Kind:   kind,
		Time:   k.readNow(),
		Signal: signal,
		Detail: fmt.Sprintf(format, args...),
	}
}
