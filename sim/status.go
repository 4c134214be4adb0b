package sim

// Status is the outcome of a call to Run.
type Status int

// The outcomes of a run.
const (
	// StatusTerminated means that no event was left to process.
	StatusTerminated Status = iota

	// StatusSuspended means that the run reached its time bound or that a
	// suspension was requested. The run can be resumed.
	StatusSuspended

	// StatusStopped means that a process stopped the simulation.
	StatusStopped

	// StatusFailed means that the simulation ended with an error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusTerminated:
		return "Terminated"
	case StatusSuspended:
		return "Suspended"
	case StatusStopped:
		return "Stopped"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Finished tells if a run that returned the status can not be resumed.
func (s Status) Finished() bool {
	return s != StatusSuspended
}
