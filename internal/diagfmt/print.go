// Package diagfmt renders diagnostic bags for humans and machines.
package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"sable/internal/diag"
	"sable/internal/source"
)

// PathResolver maps file IDs to display paths. A nil resolver prints the
// numeric ID.
type PathResolver func(source.FileID) string

// Pretty prints each diagnostic as
//
//	<path>:<start>: <SEV> <CODE>: <message>
//
// followed by its notes, then a one-line summary. The bag is sorted first,
// so output order is deterministic.
func Pretty(w io.Writer, bag *diag.Bag, resolve PathResolver, opts PrettyOpts) {
	if bag == nil {
		return
	}
	bag.Sort()

	sevColor := map[diag.Severity]*color.Color{
		diag.SevError:   color.New(color.FgRed, color.Bold),
		diag.SevWarning: color.New(color.FgYellow),
		diag.SevInfo:    color.New(color.FgCyan),
	}
	paint := func(sev diag.Severity, s string) string {
		if !opts.Color {
			return s
		}
		return sevColor[sev].Sprint(s)
	}

	items := bag.Items()
	shown := len(items)
	if opts.Max > 0 && shown > opts.Max {
		shown = opts.Max
	}
	for _, d := range items[:shown] {
		fmt.Fprintf(w, "%s: %s %s: %s\n",
			location(d.Primary, resolve, opts.PathMode),
			paint(d.Severity, d.Severity.String()),
			d.Code, d.Message)
		if opts.ShowNotes {
			for _, n := range d.Notes {
				fmt.Fprintf(w, "  note: %s: %s\n", location(n.Span, resolve, opts.PathMode), n.Msg)
			}
		}
	}
	if hidden := len(items) - shown; hidden > 0 {
		fmt.Fprintf(w, "... and %d more\n", hidden)
	}

	errs, warns := 0, 0
	for _, d := range items {
		switch d.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warns++
		}
	}
	if errs > 0 || warns > 0 {
		fmt.Fprintf(w, "%d error(s), %d warning(s)\n", errs, warns)
	}
}

func location(span source.Span, resolve PathResolver, mode PathMode) string {
	if span.File == source.NoFile {
		return "<module>"
	}
	path := fmt.Sprintf("file#%d", span.File)
	if resolve != nil {
		if p := resolve(span.File); p != "" {
			path = p
		}
	}
	if mode == PathModeBasename {
		path = filepath.Base(path)
	}
	return fmt.Sprintf("%s:%d", path, span.Start)
}
