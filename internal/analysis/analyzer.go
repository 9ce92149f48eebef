// Package analysis drives pluggable analyzers over bound declarations.
package analysis

import (
	"context"

	"sable/internal/binder"
	"sable/internal/diag"
	"sable/internal/source"
)

// Config is the options bundle handed to every analyzer, decoded from the
// project manifest's [analysis] table or built from CLI flags.
type Config struct {
	// AllowCamel relaxes the naming analyzer to accept camelCase.
	AllowCamel bool `toml:"allow_camel"`
	// DocPrivate extends the doccomment analyzer to private declarations.
	DocPrivate bool `toml:"doc_private"`
}

// Analyzer inspects bound declaration state and produces diagnostics.
// Implementations get read-only access, must not mutate shared state and
// must be safe to invoke concurrently with other analyzers. Returning an
// error aborts the whole analysis run; ordinary findings are diagnostics.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, bound *binder.Result, cfg Config) ([]diag.Diagnostic, error)
}

// UnitAnalyzer is implemented by analyzers that declare per-unit analysis
// safe; the engine then fans their work out across source units too.
type UnitAnalyzer interface {
	Analyzer
	AnalyzeUnit(ctx context.Context, bound *binder.Result, unit *source.Unit, cfg Config) ([]diag.Diagnostic, error)
}

// Builtins returns the analyzers shipped with the toolchain, in their
// canonical registration order.
func Builtins() []Analyzer {
	return []Analyzer{Naming{}, DocComment{}}
}

// Select filters Builtins by name, preserving registration order.
// Unknown names are ignored.
func Select(names []string) []Analyzer {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []Analyzer
	for _, a := range Builtins() {
		if wanted[a.Name()] {
			out = append(out, a)
		}
	}
	return out
}
