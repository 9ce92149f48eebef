package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sable/internal/project"
	"sable/internal/unitfile"
)

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a new sable project",
	Long: `Initialize a new sable project by creating a project manifest (sable.toml)
and a sample unit document under src/. If [path|name] is omitted, initializes
the current directory. If a non-existing name is provided, a directory will be
created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	var target string
	if len(args) == 0 || args[0] == "." {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		target = wd
	} else {
		arg := args[0]
		if !filepath.IsAbs(arg) {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			target = filepath.Join(wd, arg)
		} else {
			target = arg
		}
	}

	if st, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", target, err)
			}
		} else {
			return err
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	name := strings.TrimSpace(filepath.Base(target))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "sable-project"
	}

	manifestPath, err := project.WriteDefault(target, name)
	if err != nil {
		return err
	}

	srcDir := filepath.Join(target, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return fmt.Errorf("failed to create src directory: %w", err)
	}
	unitPath := filepath.Join(srcDir, "main"+unitfile.UnitSuffix)
	createdUnit := false
	if _, err := os.Stat(unitPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(unitPath, []byte(defaultUnitDoc()), 0o600); err != nil {
			return fmt.Errorf("failed to write sample unit: %w", err)
		}
		createdUnit = true
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "created %s\n", manifestPath)
	if createdUnit {
		fmt.Fprintf(out, "created %s\n", unitPath)
	}
	return nil
}

func defaultUnitDoc() string {
	return `unit = "main"

[[funcs]]
name = "greeting"
result = "str"
public = true
doc = "Returns the greeting string."

  [[funcs.body]]
  op = "const"
  args = ["hello, sable"]

  [[funcs.body]]
  op = "ret"
`
}
