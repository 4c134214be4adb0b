package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/deltasim/sim"
	"github.com/sarchlab/deltasim/simulation"
	"github.com/spf13/cobra"
)

// DefaultDuration bounds the benches, whose clocks run forever.
const DefaultDuration = 60

type runOptions struct {
	bench         string
	duration      uint64
	durationSet   bool
	trace         string
	initialValues bool
	timescale     string
	record        string
	monitor       bool
	port          int
	browser       bool
	quiet         bool
	logEvents     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a built-in test bench.",
	Long: "`run` elaborates one of the built-in test benches (" +
		strings.Join(benchNames(), ", ") + ") and runs it, optionally " +
		"writing a VCD trace and an SQLite recording.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.SilenceUsage = true

		o := runOptions{}
		o.bench, _ = cmd.Flags().GetString("bench")
		o.duration, _ = cmd.Flags().GetUint64("duration")
		o.durationSet = cmd.Flags().Changed("duration")
		o.trace, _ = cmd.Flags().GetString("trace")
		o.initialValues, _ = cmd.Flags().GetBool("initial-values")
		o.timescale, _ = cmd.Flags().GetString("timescale")
		o.record, _ = cmd.Flags().GetString("record")
		o.monitor, _ = cmd.Flags().GetBool("monitor")
		o.port, _ = cmd.Flags().GetInt("port")
		o.browser, _ = cmd.Flags().GetBool("browser")
		o.quiet, _ = cmd.Flags().GetBool("quiet")
		o.logEvents, _ = cmd.Flags().GetBool("log-events")

		if err := runBench(o, os.Stdout); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("bench", "flipflop", "Test bench to run")
	runCmd.Flags().Uint64("duration", DefaultDuration, "Time to simulate")
	runCmd.Flags().String("trace", "", "Write a VCD trace to this file")
	runCmd.Flags().Bool("initial-values", false,
		"Dump the initial values in the trace")
	runCmd.Flags().String("timescale", "", "Timescale of the trace")
	runCmd.Flags().String("record", "", "Record signal changes into this database")
	runCmd.Flags().Bool("monitor", false, "Serve the monitoring page")
	runCmd.Flags().Int("port", 0, "Port of the monitoring page")
	runCmd.Flags().Bool("browser", false, "Open the monitoring page")
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress kernel messages")
	runCmd.Flags().Bool("log-events", false,
		"Print time advances, resumptions and signal changes")
}

func (o runOptions) builder() (simulation.Builder, error) {
	b, err := simulation.MakeBuilder().FromEnv()
	if err != nil {
		return b, err
	}

	if o.durationSet || os.Getenv(simulation.EnvDuration) == "" {
		b = b.WithDuration(sim.VTime(o.duration))
	}

	if o.quiet {
		b = b.WithQuiet()
	}

	if o.logEvents {
		b = b.WithEventLog(log.New(os.Stderr, "", 0))
	}

	if o.trace != "" {
		b = b.WithTrace(o.trace)

		if o.initialValues {
			b = b.WithInitialValues()
		}

		if o.timescale != "" {
			b = b.WithTimescale(o.timescale)
		}
	}

	if o.record != "" {
		b = b.WithRecording(o.record)
	}

	if o.monitor {
		b = b.WithMonitor(o.port)

		if o.browser {
			b = b.WithBrowser()
		}
	}

	return b, nil
}

func runBench(o runOptions, out io.Writer) error {
	bn, found := benches[o.bench]
	if !found {
		return errors.Errorf("unknown bench %q, available: %s",
			o.bench, strings.Join(benchNames(), ", "))
	}

	b, err := o.builder()
	if err != nil {
		return err
	}

	s, err := b.Build()
	if err != nil {
		return err
	}

	summary := bn.build(s.Kernel())

	status, runErr := s.Run()
	termErr := s.Terminate()

	fmt.Fprintf(out, "%s: %s at time %d\n",
		o.bench, status, s.Kernel().CurrentTime())
	fmt.Fprintln(out, summary())

	if s.TracePath() != "" {
		fmt.Fprintf(out, "Trace: %s\n", s.TracePath())
	}

	if s.RecordPath() != "" {
		fmt.Fprintf(out, "Recording: %s\n", s.RecordPath())
	}

	if runErr != nil {
		return runErr
	}

	return termErr
}
