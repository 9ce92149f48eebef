package diagfmt

import (
	"encoding/json"
	"io"
	"path/filepath"

	"sable/internal/diag"
	"sable/internal/source"
)

// LocationJSON is a span in machine-readable form.
type LocationJSON struct {
	File      string `json:"file"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
}

// NoteJSON is a secondary note attached to a diagnostic.
type NoteJSON struct {
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
}

// DiagnosticJSON is one diagnostic in machine-readable form.
type DiagnosticJSON struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
	Notes    []NoteJSON   `json:"notes,omitempty"`
}

// DiagnosticsOutput is the root of the JSON report.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Errors      int              `json:"errors"`
	Warnings    int              `json:"warnings"`
	Truncated   bool             `json:"truncated,omitempty"`
}

// JSON writes the bag as a single JSON document.
func JSON(w io.Writer, bag *diag.Bag, resolve PathResolver, opts JSONOpts) error {
	out := DiagnosticsOutput{Diagnostics: []DiagnosticJSON{}}
	if bag != nil {
		bag.Sort()
		items := bag.Items()
		shown := len(items)
		if opts.Max > 0 && shown > opts.Max {
			shown = opts.Max
			out.Truncated = true
		}
		for _, d := range items[:shown] {
			dj := DiagnosticJSON{
				Severity: d.Severity.String(),
				Code:     d.Code.String(),
				Message:  d.Message,
				Location: locationJSON(d.Primary, resolve, opts.PathMode),
			}
			if opts.IncludeNotes {
				for _, n := range d.Notes {
					dj.Notes = append(dj.Notes, NoteJSON{
						Message:  n.Msg,
						Location: locationJSON(n.Span, resolve, opts.PathMode),
					})
				}
			}
			out.Diagnostics = append(out.Diagnostics, dj)
		}
		for _, d := range items {
			switch d.Severity {
			case diag.SevError:
				out.Errors++
			case diag.SevWarning:
				out.Warnings++
			}
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func locationJSON(span source.Span, resolve PathResolver, mode PathMode) LocationJSON {
	loc := LocationJSON{StartByte: span.Start, EndByte: span.End}
	if span.File == source.NoFile {
		loc.File = ""
		return loc
	}
	if resolve != nil {
		loc.File = resolve(span.File)
	}
	if mode == PathModeBasename && loc.File != "" {
		loc.File = filepath.Base(loc.File)
	}
	return loc
}
