package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sable/internal/buildpipeline"
	"sable/internal/observ"
)

// maybePrintTimings prints the phase summary when --timings is set. The
// timer carries per-phase notes; Timings is the fallback when no timer was
// recorded.
func maybePrintTimings(cmd *cobra.Command, timings buildpipeline.Timings, timer *observ.Timer) error {
	show, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if !show {
		return nil
	}
	out := cmd.OutOrStdout()
	if timer != nil {
		fmt.Fprint(out, timer.Summary())
		return nil
	}
	stages := []buildpipeline.Stage{
		buildpipeline.StageLoad,
		buildpipeline.StageBind,
		buildpipeline.StageDiagnose,
		buildpipeline.StageCompile,
		buildpipeline.StageFinalize,
		buildpipeline.StageSerialize,
	}
	fmt.Fprintln(out, "timings:")
	for _, stage := range stages {
		if !timings.Has(stage) {
			continue
		}
		fmt.Fprintf(out, "  %-12s %8.2f ms\n", stage, float64(timings.Duration(stage).Microseconds())/1000.0)
	}
	return nil
}
