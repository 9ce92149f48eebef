package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"sable/internal/diag"
	"sable/internal/source"
)

func sampleBag() *diag.Bag {
	bag := diag.NewBag(10)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevWarning,
		Code:     diag.AnalysisNamingStyle,
		Message:  "name should be lower_snake",
		Primary:  source.Span{File: 2, Start: 4, End: 5},
	})
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.BindDuplicateSymbol,
		Message:  "duplicate declaration of dist",
		Primary:  source.Span{File: 1, Start: 7, End: 8},
		Notes: []diag.Note{
			{Msg: "first declared here", Span: source.Span{File: 1, Start: 2, End: 3}},
		},
	})
	return bag
}

func resolver(id source.FileID) string {
	switch id {
	case 1:
		return "src/geo.unit.toml"
	case 2:
		return "src/util.unit.toml"
	}
	return ""
}

func TestPrettySortsAndSummarizes(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleBag(), resolver, PrettyOpts{ShowNotes: true})
	out := buf.String()

	// The file-1 error sorts before the file-2 warning.
	errIdx := strings.Index(out, "duplicate declaration")
	warnIdx := strings.Index(out, "lower_snake")
	if errIdx < 0 || warnIdx < 0 || errIdx > warnIdx {
		t.Fatalf("diagnostics out of order:\n%s", out)
	}
	if !strings.Contains(out, "src/geo.unit.toml:7") {
		t.Fatalf("location missing:\n%s", out)
	}
	if !strings.Contains(out, "note: src/geo.unit.toml:2: first declared here") {
		t.Fatalf("note missing:\n%s", out)
	}
	if !strings.Contains(out, "1 error(s), 1 warning(s)") {
		t.Fatalf("summary missing:\n%s", out)
	}
}

func TestPrettyTruncates(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleBag(), resolver, PrettyOpts{Max: 1})
	if !strings.Contains(buf.String(), "... and 1 more") {
		t.Fatalf("truncation marker missing:\n%s", buf.String())
	}
}

func TestPrettyBasenameMode(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleBag(), resolver, PrettyOpts{PathMode: PathModeBasename})
	if !strings.Contains(buf.String(), "geo.unit.toml:7") {
		t.Fatalf("basename missing:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "src/") {
		t.Fatalf("directory leaked into basename mode:\n%s", buf.String())
	}
}

func TestJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleBag(), resolver, JSONOpts{IncludeNotes: true}); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(out.Diagnostics) != 2 || out.Errors != 1 || out.Warnings != 1 {
		t.Fatalf("unexpected report: %+v", out)
	}
	if out.Diagnostics[0].Severity != "ERROR" {
		t.Fatalf("sorted order wrong: %+v", out.Diagnostics)
	}
	if len(out.Diagnostics[0].Notes) != 1 {
		t.Fatalf("notes missing: %+v", out.Diagnostics[0])
	}
}

func TestJSONEmptyBag(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, nil, nil, JSONOpts{}); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\"diagnostics\": []") {
		t.Fatalf("empty report must keep the array:\n%s", buf.String())
	}
}
