package objfile

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"sable/internal/diag"
	"sable/internal/emitter"
)

// Streams holds the writable sinks supplied by the caller. Image is
// required; the rest are written only when the options ask for them and
// the sink is non-nil. The serializer always writes from the current
// position forward; stream position and ownership stay with the caller.
type Streams struct {
	Image    io.Writer
	Metadata io.Writer
	Debug    io.Writer
	Docs     io.Writer
}

// Result reports a serialization outcome.
type Result struct {
	Success bool
	Bag     *diag.Bag
	Written []StreamKind
}

// Serialize writes a finalized module to the supplied streams. Each call
// performs a full, independent write — rewinding a stream and calling
// Serialize again reproduces the same bytes; nothing is incremental.
// Invoking it on a non-finalized module is a pipeline bug: it fails with
// InvalidStateError and writes no bytes.
func Serialize(mod *emitter.Module, streams Streams, opts emitter.EmitOptions) (Result, error) {
	res := Result{Bag: diag.NewBag(16)}
	if mod == nil {
		return res, fmt.Errorf("serialize: module is required")
	}
	switch mod.State() {
	case emitter.StateFinalized, emitter.StateSerialized:
	default:
		return res, &emitter.InvalidStateError{
			Op: "serialize", State: mod.State(), Required: emitter.StateFinalized,
		}
	}
	if streams.Image == nil {
		return res, fmt.Errorf("serialize: primary image stream is required")
	}
	if opts.DebugMode == emitter.DebugSeparate && streams.Debug == nil {
		res.Bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.EmitMissingStream,
			Message:  "debug-info mode is \"separate\" but no debug stream was supplied",
		})
		return res, nil
	}

	image := buildImage(mod, opts)
	if opts.DebugMode == emitter.DebugEmbedded {
		dbg := buildDebug(mod)
		image.Debug = &dbg
	}
	if err := writeStream(streams.Image, StreamImage, image); err != nil {
		return res, fmt.Errorf("serialize: image stream: %w", err)
	}
	res.Written = append(res.Written, StreamImage)

	if opts.MetadataOnly {
		// The primary image already carries no code; a second metadata
		// stream would duplicate it, so it is skipped.
	} else if streams.Metadata != nil {
		meta := buildImage(mod, opts)
		meta.MetadataOnly = true
		meta.Methods = nil
		meta.Resources = nil
		if err := writeStream(streams.Metadata, StreamMetadata, meta); err != nil {
			return res, fmt.Errorf("serialize: metadata stream: %w", err)
		}
		res.Written = append(res.Written, StreamMetadata)
	}

	if opts.DebugMode == emitter.DebugSeparate {
		if err := writeStream(streams.Debug, StreamDebug, buildDebug(mod)); err != nil {
			return res, fmt.Errorf("serialize: debug stream: %w", err)
		}
		res.Written = append(res.Written, StreamDebug)
	}

	if doc := mod.DocText(); doc != "" && streams.Docs != nil {
		if _, err := io.WriteString(streams.Docs, doc); err != nil {
			return res, fmt.Errorf("serialize: docs stream: %w", err)
		}
		res.Written = append(res.Written, StreamDocs)
	}

	if err := mod.MarkSerialized(); err != nil {
		return res, err
	}
	res.Success = true
	return res, nil
}

func writeStream(w io.Writer, kind StreamKind, payload any) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(Header{Magic: Magic, Schema: Schema, Kind: string(kind)}); err != nil {
		return err
	}
	return enc.Encode(payload)
}

func buildImage(mod *emitter.Module, opts emitter.EmitOptions) ImagePayload {
	bound := mod.Bound()
	payload := ImagePayload{
		Name:         mod.Name(),
		OutputKind:   mod.Kind().String(),
		MetadataOnly: opts.MetadataOnly,
	}

	for i := range bound.Units {
		unit := &bound.Units[i]
		decls := UnitDecls{Unit: unit.Name}
		for _, td := range unit.Types {
			if !td.Public && !opts.IncludePrivate {
				continue
			}
			rec := TypeRecord{Name: td.Name, Public: td.Public, Doc: td.Doc}
			for _, f := range td.Fields {
				rec.Fields = append(rec.Fields, FieldRecord{Name: f.Name, Type: f.Type})
			}
			decls.Types = append(decls.Types, rec)
		}
		for _, cd := range unit.Consts {
			if !cd.Public && !opts.IncludePrivate {
				continue
			}
			decls.Consts = append(decls.Consts, ConstRecord{
				Name: cd.Name, Type: cd.Type, Value: cd.Value, Public: cd.Public, Doc: cd.Doc,
			})
		}
		for _, fd := range unit.Funcs {
			if !fd.Public && !opts.IncludePrivate {
				continue
			}
			decls.Funcs = append(decls.Funcs, FuncRecord{
				Name: fd.Name, Params: fd.Params, Result: fd.Result, Public: fd.Public, Doc: fd.Doc,
			})
		}
		payload.Units = append(payload.Units, decls)
	}

	if !opts.MetadataOnly {
		for _, m := range mod.Methods() {
			payload.Methods = append(payload.Methods, MethodRecord{
				Name: m.Name, Code: m.Code, Pool: m.Pool,
			})
		}
		for _, r := range mod.Resources() {
			payload.Resources = append(payload.Resources, ResourceRecord{Name: r.Name, Data: r.Data})
		}
	}
	return payload
}

func buildDebug(mod *emitter.Module) DebugPayload {
	bound := mod.Bound()
	var dbg DebugPayload
	for i := range bound.Units {
		dbg.Files = append(dbg.Files, FileRecord{
			File: bound.Units[i].File,
			Path: bound.Units[i].Path,
		})
	}
	for _, m := range mod.Methods() {
		dbg.MethodSpans = append(dbg.MethodSpans, MethodSpanRecord{
			Name:  m.Name,
			File:  m.Span.File,
			Start: m.Span.Start,
			End:   m.Span.End,
		})
	}
	return dbg
}
