package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sable/internal/buildpipeline"
	"sable/internal/diagfmt"
	"sable/internal/emitter"
)

var emitCmd = &cobra.Command{
	Use:   "emit [flags] [path...]",
	Short: "Compile a sable project into a module image",
	Long:  "Run the full pipeline and write the binary module image under target/.",
	RunE:  emitExecution,
}

func init() {
	emitCmd.Flags().StringP("output", "o", "", "output module name (default: package name)")
	emitCmd.Flags().String("debug-info", "", "debug info placement (none|embedded|separate)")
	emitCmd.Flags().Bool("metadata-only", false, "emit the interface image without method bodies")
	emitCmd.Flags().Bool("include-private", false, "include private declarations in the image")
	emitCmd.Flags().Bool("coverage", false, "instrument method bodies with coverage probes")
	emitCmd.Flags().Bool("docs", false, "write extracted documentation alongside the image")
	emitCmd.Flags().Bool("metadata", false, "additionally write a metadata-only stream")
	emitCmd.Flags().Bool("emit-anyway", false, "produce output even when diagnostics report errors")
	emitCmd.Flags().String("ui", "auto", "interactive progress (auto|on|off)")
}

func emitExecution(cmd *cobra.Command, args []string) error {
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	uiModeValue, err := parseTriState("ui", uiValue)
	if err != nil {
		return err
	}

	in, err := resolveInputs(cmd, args, ".")
	if err != nil {
		return err
	}

	opts := emitter.EmitOptions{OutputName: "out"}
	outputRoot := ""
	writeMetadata := false
	if in.manifest != nil {
		opts, err = in.manifest.EmitOptions()
		if err != nil {
			return err
		}
		outputRoot = in.manifest.Dir
		writeMetadata = in.manifest.Emit.Metadata
	}
	if err := applyEmitFlags(cmd, &opts); err != nil {
		return err
	}
	if v, ferr := cmd.Flags().GetBool("metadata"); ferr == nil && cmd.Flags().Changed("metadata") {
		writeMetadata = v
	}

	policy := buildpipeline.FailClosed
	if anyway, ferr := cmd.Flags().GetBool("emit-anyway"); ferr == nil && anyway {
		policy = buildpipeline.EmitAnyway
	}

	req := buildpipeline.EmitRequest{
		CheckRequest:  in.request,
		Emit:          opts,
		Policy:        policy,
		OutputRoot:    outputRoot,
		OutputName:    opts.OutputName,
		WriteMetadata: writeMetadata,
	}

	var res buildpipeline.EmitResult
	if uiModeValue.enabled() {
		res, err = runEmitWithUI(cmd.Context(), "emitting", in.display, &req)
	} else {
		res, err = buildpipeline.Emit(cmd.Context(), &req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	diagfmt.Pretty(out, res.Bag, pathResolver(in.display), diagfmt.PrettyOpts{
		Color:     useColor(cmd),
		ShowNotes: true,
	})
	if err := maybePrintTimings(cmd, res.Timings, res.Timer); err != nil {
		return err
	}

	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	if !res.Success {
		if res.OutputPath != "" && !quiet {
			fmt.Fprintf(out, "wrote %s (with errors)\n", res.OutputPath)
		}
		return fmt.Errorf("emit failed")
	}
	if !quiet {
		fmt.Fprintf(out, "wrote %s\n", res.OutputPath)
	}
	return nil
}

// applyEmitFlags overrides manifest defaults with explicitly set flags.
func applyEmitFlags(cmd *cobra.Command, opts *emitter.EmitOptions) error {
	flags := cmd.Flags()
	if flags.Changed("output") {
		name, err := flags.GetString("output")
		if err != nil {
			return err
		}
		opts.OutputName = name
	}
	if flags.Changed("debug-info") {
		value, err := flags.GetString("debug-info")
		if err != nil {
			return err
		}
		mode, err := emitter.ParseDebugMode(value)
		if err != nil {
			return err
		}
		opts.DebugMode = mode
	}
	boolFlags := []struct {
		name string
		dst  *bool
	}{
		{"metadata-only", &opts.MetadataOnly},
		{"include-private", &opts.IncludePrivate},
		{"coverage", &opts.Coverage},
		{"docs", &opts.Docs},
	}
	for _, f := range boolFlags {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}
