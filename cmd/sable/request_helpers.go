package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"sable/internal/buildpipeline"
	"sable/internal/compile"
	"sable/internal/diagfmt"
	"sable/internal/project"
	"sable/internal/source"
	"sable/internal/unitfile"
)

// checkInputs bundles everything resolved from the manifest and arguments
// before a pipeline run.
type checkInputs struct {
	manifest  *project.Manifest
	unitPaths []string
	display   []string
	request   buildpipeline.CheckRequest
}

// resolveInputs locates the manifest (walking up from startDir), gathers the
// unit documents and assembles a check request. Positional args override the
// manifest's unit directories.
func resolveInputs(cmd *cobra.Command, args []string, startDir string) (*checkInputs, error) {
	in := &checkInputs{}

	manifestPath, found, err := project.FindManifest(startDir)
	if err != nil {
		return nil, err
	}
	if found {
		in.manifest, err = project.Load(manifestPath)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case len(args) > 0:
		for _, arg := range args {
			if strings.HasSuffix(arg, unitfile.UnitSuffix) {
				in.unitPaths = append(in.unitPaths, arg)
				continue
			}
			files, err := unitfile.ListDir(arg)
			if err != nil {
				return nil, fmt.Errorf("failed to scan %q: %w", arg, err)
			}
			in.unitPaths = append(in.unitPaths, files...)
		}
	case in.manifest != nil:
		in.unitPaths, err = in.manifest.UnitPaths()
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no %s found and no unit paths given", project.ManifestName)
	}
	if len(in.unitPaths) == 0 {
		return nil, fmt.Errorf("no %s documents found", unitfile.UnitSuffix)
	}
	sort.Strings(in.unitPaths)

	base := ""
	if in.manifest != nil {
		base = in.manifest.Dir
	}
	in.display = displayPaths(in.unitPaths, base)

	opts, err := compileOptions(cmd)
	if err != nil {
		return nil, err
	}
	if in.manifest != nil {
		opts.OutputKind = in.manifest.OutputKind()
	}

	in.request = buildpipeline.CheckRequest{
		UnitPaths: in.unitPaths,
		Options:   opts,
		Paths:     in.display,
	}
	if in.manifest != nil {
		in.request.Refs = in.manifest.SourceReferences()
		in.request.Analyzers = in.manifest.Analyzers()
		in.request.AnalysisConfig = in.manifest.Analysis.Config
	}
	return in, nil
}

func compileOptions(cmd *cobra.Command) (compile.Options, error) {
	flags := cmd.Root().PersistentFlags()
	maxDiagnostics, err := flags.GetInt("max-diagnostics")
	if err != nil {
		return compile.Options{}, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return compile.Options{}, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	serial, err := flags.GetBool("serial")
	if err != nil {
		return compile.Options{}, fmt.Errorf("failed to get serial flag: %w", err)
	}
	return compile.Options{
		Concurrent:     !serial,
		Jobs:           jobs,
		MaxDiagnostics: maxDiagnostics,
	}, nil
}

// pathResolver maps file IDs back to display paths. IDs follow the sorted
// unit path order, starting at 1.
func pathResolver(display []string) diagfmt.PathResolver {
	return func(id source.FileID) string {
		idx := int(id) - 1
		if idx < 0 || idx >= len(display) {
			return ""
		}
		return display[idx]
	}
}

func displayPaths(paths []string, base string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p
		if base == "" {
			continue
		}
		if rel, err := filepath.Rel(base, p); err == nil && !strings.HasPrefix(rel, "..") {
			out[i] = rel
		}
	}
	return out
}

// useColor resolves the persistent --color flag; unparseable values fall
// back to terminal detection.
func useColor(cmd *cobra.Command) bool {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false
	}
	mode, err := parseTriState("color", value)
	if err != nil {
		mode = triAuto
	}
	return mode.enabled()
}
