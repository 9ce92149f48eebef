package emitter

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"sable/internal/binder"
	"sable/internal/diag"
	"sable/internal/source"
	"sable/internal/symbols"
)

// Bytecode opcodes. The encoding is one opcode byte followed by uvarint
// indices into the method's string pool, one per operand.
const (
	opConst byte = iota + 1
	opLoad
	opStore
	opCall
	opAdd
	opSub
	opMul
	opDiv
	opCmp
	opRet
	opCov // coverage probe, injected under EmitOptions.Coverage
)

type opSpec struct {
	code byte
	argc int
}

var opsByName = map[string]opSpec{
	"const": {opConst, 1},
	"load":  {opLoad, 1},
	"store": {opStore, 1},
	"call":  {opCall, 1},
	"add":   {opAdd, 0},
	"sub":   {opSub, 0},
	"mul":   {opMul, 0},
	"div":   {opDiv, 0},
	"cmp":   {opCmp, 0},
	"ret":   {opRet, 0},
}

type methodResult struct {
	method CompiledMethod
	file   source.FileID
	diags  []diag.Diagnostic
	failed bool
}

// CompileMethods lowers every function body in the bound units into the
// module. Bodies are compiled in isolation from each other, so the pass
// runs them in parallel when the concurrency option is set.
//
// The pass is exhaustive, not fail-fast: a failing body records its
// diagnostics and clears success, but sibling methods still compile and
// their bodies are present in the module. Results are sorted by source
// location before they are recorded, since parallel completion order is
// not deterministic. CompileMethods returns a Go error only for pipeline
// misuse (missing bound state, non-open module) or cancellation.
func CompileMethods(ctx context.Context, bound *binder.Result, mod *Module, opts EmitOptions) (bool, *diag.Bag, error) {
	if bound == nil {
		return false, nil, fmt.Errorf("compile methods: declaration binding has not run")
	}
	if mod == nil {
		return false, nil, fmt.Errorf("compile methods: module is required")
	}
	if err := mod.ensure("compile methods", StateOpen); err != nil {
		return false, nil, err
	}

	type task struct {
		unit *source.Unit
		fn   *source.FuncDecl
	}
	var tasks []task
	for i := range bound.Units {
		unit := &bound.Units[i]
		for j := range unit.Funcs {
			tasks = append(tasks, task{unit: unit, fn: &unit.Funcs[j]})
		}
	}

	results := make([]methodResult, len(tasks))
	if opts.Concurrent && len(tasks) > 1 {
		jobs := opts.Jobs
		if jobs <= 0 {
			jobs = runtime.GOMAXPROCS(0)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(jobs, len(tasks)))
		for i, tk := range tasks {
			i, tk := i, tk
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				results[i] = compileBody(bound, tk.unit, tk.fn, opts)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return false, nil, err
		}
	} else {
		for i, tk := range tasks {
			if err := ctx.Err(); err != nil {
				return false, nil, err
			}
			results[i] = compileBody(bound, tk.unit, tk.fn, opts)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].method.Span.Before(results[j].method.Span)
	})

	bag := diag.NewBag(maxDiags(bound))
	success := true
	for _, res := range results {
		for _, d := range res.diags {
			bag.Add(d)
		}
		if res.failed {
			success = false
			continue
		}
		mod.recordMethod(res.method, res.file)
	}
	return success, bag, nil
}

func maxDiags(bound *binder.Result) int {
	if c := int(bound.Bag.Cap()); c > 0 {
		return c
	}
	return 100
}

// compileBody lowers one function body. It touches no shared mutable state;
// the bound state is read-only by contract.
func compileBody(bound *binder.Result, unit *source.Unit, fn *source.FuncDecl, opts EmitOptions) methodResult {
	res := methodResult{
		method: CompiledMethod{Name: fn.Name, Span: fn.Span},
		file:   unit.File,
	}
	enc := newCodeEncoder()
	if opts.Coverage {
		enc.emit(opCov, fn.Name)
	}

	report := func(code diag.Code, span source.Span, msg string) {
		res.diags = append(res.diags, diag.Diagnostic{
			Severity: diag.SevError,
			Code:     code,
			Message:  msg,
			Primary:  span,
		})
		res.failed = true
	}

	locals := make(map[string]bool, len(fn.Params))
	for _, p := range fn.Params {
		locals[p] = true
	}
	imports := make(map[string]bool)
	lastOp := ""

	// Operand depth tracking for arity checks. Calls into referenced
	// modules have unknown arity, so a qualified call stops the tracking
	// for the rest of the body.
	depth := 0
	depthKnown := true

	for _, ins := range fn.Body {
		spec, known := opsByName[ins.Op]
		if !known {
			report(diag.BodyUnknownOp, ins.Span, fmt.Sprintf("unknown instruction %q in func %q", ins.Op, fn.Name))
			continue
		}
		if len(ins.Args) != spec.argc {
			report(diag.BodyBadOperandCount, ins.Span, fmt.Sprintf("instruction %q takes %d operand(s), found %d", ins.Op, spec.argc, len(ins.Args)))
			continue
		}
		lastOp = ins.Op

		switch spec.code {
		case opConst:
			depth++
		case opLoad:
			name := ins.Args[0]
			if !resolveValue(bound, unit, locals, imports, name) {
				report(diag.BodyUndefinedLocal, ins.Span, fmt.Sprintf("undefined name %q in func %q", name, fn.Name))
				continue
			}
			depth++
		case opStore:
			locals[ins.Args[0]] = true
			depth--
		case opAdd, opSub, opMul, opDiv, opCmp:
			depth--
		case opCall:
			callee := ins.Args[0]
			if module, member, ok := binder.SplitQualified(callee); ok {
				if !resolveImported(bound, unit, imports, module, member) {
					report(diag.BodyUnresolvedCallee, ins.Span, fmt.Sprintf("call target %q cannot be resolved", callee))
					continue
				}
				depthKnown = false
				break
			}
			sym, ok := bound.Table.Lookup(callee)
			if !ok || sym.Kind != symbols.KindFunc {
				report(diag.BodyUnresolvedCallee, ins.Span, fmt.Sprintf("call target %q cannot be resolved", callee))
				continue
			}
			if depthKnown && depth < sym.Arity {
				report(diag.BodyArityMismatch, ins.Span, fmt.Sprintf("func %q takes %d argument(s), only %d value(s) available at the call site", callee, sym.Arity, depth))
				continue
			}
			depth -= sym.Arity - 1
		}
		enc.emit(spec.code, ins.Args...)
	}

	if fn.Result != "" && lastOp != "ret" {
		report(diag.BodyMissingReturn, fn.Span, fmt.Sprintf("func %q declares result %q but does not end with ret", fn.Name, fn.Result))
	}

	if res.failed {
		return res
	}
	res.method.Code, res.method.Pool = enc.finish()
	res.method.Modules = sortedKeys(imports)
	return res
}

// resolveValue accepts params, locals defined by a previous store, declared
// constants, and imported module members.
func resolveValue(bound *binder.Result, unit *source.Unit, locals, imports map[string]bool, name string) bool {
	if locals[name] {
		return true
	}
	if module, member, ok := binder.SplitQualified(name); ok {
		return resolveImported(bound, unit, imports, module, member)
	}
	if sym, ok := bound.Table.Lookup(name); ok && sym.Kind == symbols.KindConst {
		return true
	}
	return false
}

func resolveImported(bound *binder.Result, unit *source.Unit, imports map[string]bool, module, member string) bool {
	if _, imported := bound.UnitImports(unit.File)[module]; !imported {
		return false
	}
	if set, known := bound.ModuleExports(module); known && !set[member] {
		return false
	}
	imports[module] = true
	return true
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// codeEncoder assembles bytecode with a deduplicated string pool.
type codeEncoder struct {
	code []byte
	pool []string
	idx  map[string]uint64
}

func newCodeEncoder() *codeEncoder {
	return &codeEncoder{idx: make(map[string]uint64)}
}

func (e *codeEncoder) emit(op byte, args ...string) {
	e.code = append(e.code, op)
	for _, arg := range args {
		e.code = binary.AppendUvarint(e.code, e.intern(arg))
	}
}

func (e *codeEncoder) intern(s string) uint64 {
	if i, ok := e.idx[s]; ok {
		return i
	}
	i := uint64(len(e.pool))
	e.pool = append(e.pool, s)
	e.idx[s] = i
	return i
}

func (e *codeEncoder) finish() ([]byte, []string) {
	return e.code, e.pool
}
