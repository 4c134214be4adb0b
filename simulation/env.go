package simulation

import (
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sarchlab/deltasim/sim"
)

// The environment variables read by FromEnv.
const (
	EnvDuration      = "DELTASIM_DURATION"
	EnvQuiet         = "DELTASIM_QUIET"
	EnvMaxDeltas     = "DELTASIM_MAX_DELTAS"
	EnvTrace         = "DELTASIM_TRACE"
	EnvTracePath     = "DELTASIM_TRACE_PATH"
	EnvInitialValues = "DELTASIM_INITIAL_VALUES"
	EnvTimescale     = "DELTASIM_TIMESCALE"
	EnvRecord        = "DELTASIM_RECORD"
	EnvMonitorPort   = "DELTASIM_MONITOR_PORT"
)

// FromEnv applies the DELTASIM_* environment variables to the builder. The
// given env files, or .env when none is given, are loaded first; a missing
// .env is not an error. Variables already set in the environment win over
// the files.
func (b Builder) FromEnv(files ...string) (Builder, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return b, errors.Wrap(err, "loading env file")
		}
	}

	if v, ok := os.LookupEnv(EnvDuration); ok {
		d, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return b, errors.Wrapf(err, "parsing %s", EnvDuration)
		}

		b = b.WithDuration(sim.VTime(d))
	}

	quiet, err := envBool(EnvQuiet)
	if err != nil {
		return b, err
	}

	if quiet {
		b = b.WithQuiet()
	}

	if v, ok := os.LookupEnv(EnvMaxDeltas); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return b, errors.Errorf("invalid %s %q", EnvMaxDeltas, v)
		}

		b = b.WithMaxDeltas(n)
	}

	b, err = traceFromEnv(b)
	if err != nil {
		return b, err
	}

	if v, ok := os.LookupEnv(EnvRecord); ok && v != "" {
		b = b.WithRecording(v)
	}

	if v, ok := os.LookupEnv(EnvMonitorPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return b, errors.Wrapf(err, "parsing %s", EnvMonitorPort)
		}

		b = b.WithMonitor(port)
	}

	return b, nil
}

func traceFromEnv(b Builder) (Builder, error) {
	trace, err := envBool(EnvTrace)
	if err != nil {
		return b, err
	}

	path := os.Getenv(EnvTracePath)
	if trace || path != "" {
		b = b.WithTrace(path)
	}

	initial, err := envBool(EnvInitialValues)
	if err != nil {
		return b, err
	}

	if initial {
		b = b.WithInitialValues()
	}

	if ts := os.Getenv(EnvTimescale); ts != "" {
		b = b.WithTimescale(ts)
	}

	return b, nil
}

func envBool(name string) (bool, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return false, nil
	}

	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "parsing %s", name)
	}

	return on, nil
}
