package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/sarchlab/deltasim/datarecording"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report PATH",
	Short: "Summarize a recording.",
	Long: "`report PATH` prints the delta cycles of every time step of a " +
		"recording. With `--signal NAME` it prints the history of a signal.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true

		signal, _ := cmd.Flags().GetString("signal")

		if err := report(cmd.Context(), args[0], signal, os.Stdout); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("signal", "s", "", "Print the history of this signal")
}

func report(ctx context.Context, path, signal string, out io.Writer) error {
	r, err := datarecording.OpenRecording(path)
	if err != nil {
		return err
	}
	defer r.Close()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	if signal != "" {
		history, err := r.SignalHistory(ctx, signal)
		if err != nil {
			return err
		}

		fmt.Fprintln(tw, "TIME\tDELTA\tVALUE")

		for _, h := range history {
			delta := fmt.Sprint(h.Delta)
			if h.Delta < 0 {
				delta = "init"
			}

			fmt.Fprintf(tw, "%d\t%s\t%s\n", h.Time, delta, h.Value)
		}

		return tw.Flush()
	}

	stats, err := r.DeltaStats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(tw, "TIME\tDELTAS\tCHANGES\tRESUMED")

	for _, s := range stats {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", s.Time, s.Deltas, s.Changes, s.Resumed)
	}

	return tw.Flush()
}
