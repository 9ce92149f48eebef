package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sable/internal/buildpipeline"
	"sable/internal/diagfmt"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [path...]",
	Short: "Bind and diagnose a sable project",
	Long:  "Load unit documents, bind declarations and report diagnostics without producing output.",
	RunE:  checkExecution,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().String("ui", "auto", "interactive progress (auto|on|off)")
	checkCmd.Flags().Bool("no-analyzers", false, "skip configured analyzers")
}

func checkExecution(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	uiModeValue, err := parseTriState("ui", uiValue)
	if err != nil {
		return err
	}
	noAnalyzers, err := cmd.Flags().GetBool("no-analyzers")
	if err != nil {
		return err
	}

	in, err := resolveInputs(cmd, args, ".")
	if err != nil {
		return err
	}
	if noAnalyzers {
		in.request.Analyzers = nil
	}

	var res buildpipeline.CheckResult
	if uiModeValue.enabled() && format == "pretty" {
		res, err = runCheckWithUI(cmd.Context(), "checking", in.display, &in.request)
	} else {
		res, err = buildpipeline.Check(cmd.Context(), &in.request)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	resolve := pathResolver(in.display)
	if format == "json" {
		if err := diagfmt.JSON(out, res.Bag, resolve, diagfmt.JSONOpts{IncludeNotes: true}); err != nil {
			return err
		}
	} else {
		diagfmt.Pretty(out, res.Bag, resolve, diagfmt.PrettyOpts{
			Color:     useColor(cmd),
			ShowNotes: true,
		})
	}

	if err := maybePrintTimings(cmd, res.Timings, res.Timer); err != nil {
		return err
	}
	if res.Bag.HasErrors() {
		return fmt.Errorf("check failed")
	}
	return nil
}
