package unitfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sable/internal/diag"
)

const sampleUnit = `unit = "geo"

[[imports]]
module = "math"

[[types]]
name = "point"
public = true
doc = "A 2D point."

  [[types.fields]]
  name = "x"
  type = "int"

  [[types.fields]]
  name = "y"
  type = "int"

[[funcs]]
name = "dist"
params = ["a", "b"]
result = "int"
public = true

  [[funcs.body]]
  op = "load"
  args = ["a"]

  [[funcs.body]]
  op = "ret"
`

func writeUnit(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func TestLoadPathsDecodesUnits(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "geo"+UnitSuffix, sampleUnit)

	results, err := LoadPaths(context.Background(), []string{path}, 100, 2)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	units, bag := Units(results, 100)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	u := units[0]
	if u.Name != "geo" || len(u.Imports) != 1 || len(u.Types) != 1 || len(u.Funcs) != 1 {
		t.Fatalf("unit decoded incorrectly: %+v", u)
	}
	if len(u.Types[0].Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(u.Types[0].Fields))
	}
	if len(u.Funcs[0].Body) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(u.Funcs[0].Body))
	}
}

func TestLoadAssignsFileIDsInSortedOrder(t *testing.T) {
	dir := t.TempDir()
	b := writeUnit(t, dir, "b"+UnitSuffix, "unit = \"b\"\n")
	a := writeUnit(t, dir, "a"+UnitSuffix, "unit = \"a\"\n")

	results, err := LoadPaths(context.Background(), []string{b, a}, 100, 4)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if results[0].Unit.Name != "a" || results[1].Unit.Name != "b" {
		t.Fatalf("paths must be processed in sorted order")
	}
	if results[0].Unit.File != 1 || results[1].Unit.File != 2 {
		t.Fatalf("file IDs must follow sorted order: %d, %d", results[0].Unit.File, results[1].Unit.File)
	}
}

func TestLoadFailureBecomesDiagnostic(t *testing.T) {
	results, err := LoadPaths(context.Background(), []string{"/nonexistent/x" + UnitSuffix}, 100, 1)
	if err != nil {
		t.Fatalf("I/O failures must become diagnostics, not errors: %v", err)
	}
	units, bag := Units(results, 100)
	if len(units) != 0 {
		t.Fatalf("failed unit must not be returned")
	}
	if !bag.HasErrors() {
		t.Fatalf("expected an I/O diagnostic")
	}
	if bag.Items()[0].Code != diag.IOLoadUnitError {
		t.Fatalf("unexpected code %s", bag.Items()[0].Code)
	}
}

func TestUnknownKeysAreFlagged(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "odd"+UnitSuffix, "unit = \"odd\"\nmystery = true\n")

	results, err := LoadPaths(context.Background(), []string{path}, 100, 1)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	_, bag := Units(results, 100)
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.IOBadUnitFile {
			found = true
		}
	}
	if !found {
		t.Fatalf("unknown keys should be flagged, got %+v", bag.Items())
	}
}

func TestListDirFindsUnitsSorted(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "z"+UnitSuffix, "unit = \"z\"\n")
	writeUnit(t, dir, "a"+UnitSuffix, "unit = \"a\"\n")
	writeUnit(t, dir, "ignored.toml", "unit = \"no\"\n")

	files, err := ListDir(dir)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 unit files, got %d", len(files))
	}
	if filepath.Base(files[0]) != "a"+UnitSuffix {
		t.Fatalf("files must be sorted")
	}
}
