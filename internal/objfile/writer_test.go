package objfile

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"sable/internal/binder"
	"sable/internal/compile"
	"sable/internal/diag"
	"sable/internal/emitter"
	"sable/internal/source"
)

func finalizedModule(t *testing.T, opts emitter.EmitOptions) *emitter.Module {
	t.Helper()
	units := []source.Unit{{
		Path: "geo.unit.toml", File: 1, Name: "geo",
		Types: []source.TypeDecl{{
			Name: "point", Public: true, Doc: "A point.",
			Fields: []source.Field{
				{Name: "x", Type: "int"},
				{Name: "y", Type: "int"},
			},
			Span: source.Span{File: 1, Start: 0, End: 1},
		}},
		Funcs: []source.FuncDecl{
			{
				Name: "origin", Result: "int", Public: true, Doc: "Returns zero.",
				Body: []source.Instr{
					{Op: "const", Args: []string{"0"}},
					{Op: "ret"},
				},
				Span: source.Span{File: 1, Start: 2, End: 3},
			},
			{
				Name: "hidden",
				Body: []source.Instr{{Op: "ret"}},
				Span: source.Span{File: 1, Start: 4, End: 5},
			},
		},
	}}
	bound, err := binder.Bind(context.Background(), units, nil, binder.Options{})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	mod, err := emitter.NewModule("geo", compile.KindLibrary, bound)
	if err != nil {
		t.Fatalf("new module failed: %v", err)
	}
	success, _, err := emitter.CompileMethods(context.Background(), bound, mod, opts)
	if err != nil || !success {
		t.Fatalf("compile failed: success=%v err=%v", success, err)
	}
	resources := []emitter.Resource{{Name: "manifest", Data: []byte("v1")}}
	if err := emitter.Finalize(mod, resources, opts, diag.NewBag(16)); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	return mod
}

func TestSerializeTwiceIsByteIdentical(t *testing.T) {
	mod := finalizedModule(t, emitter.EmitOptions{})
	var a, b bytes.Buffer

	first, err := Serialize(mod, Streams{Image: &a}, emitter.EmitOptions{})
	if err != nil || !first.Success {
		t.Fatalf("first serialize failed: %+v %v", first, err)
	}
	second, err := Serialize(mod, Streams{Image: &b}, emitter.EmitOptions{})
	if err != nil || !second.Success {
		t.Fatalf("second serialize failed: %+v %v", second, err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("repeated serialization must be byte-identical")
	}
	if a.Len() == 0 {
		t.Fatalf("image stream is empty")
	}
}

func TestSerializeOpenModuleWritesNothing(t *testing.T) {
	units := []source.Unit{{Path: "u.unit.toml", File: 1, Name: "u"}}
	bound, err := binder.Bind(context.Background(), units, nil, binder.Options{})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	mod, err := emitter.NewModule("u", compile.KindLibrary, bound)
	if err != nil {
		t.Fatalf("new module failed: %v", err)
	}

	var buf bytes.Buffer
	_, err = Serialize(mod, Streams{Image: &buf}, emitter.EmitOptions{})
	var ise *emitter.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("invalid-state serialize must write no bytes, wrote %d", buf.Len())
	}
}

func TestSerializeMetadataStreamOmitsCode(t *testing.T) {
	mod := finalizedModule(t, emitter.EmitOptions{})
	var image, meta bytes.Buffer
	res, err := Serialize(mod, Streams{Image: &image, Metadata: &meta}, emitter.EmitOptions{})
	if err != nil || !res.Success {
		t.Fatalf("serialize failed: %+v %v", res, err)
	}
	if len(res.Written) != 2 || res.Written[0] != StreamImage || res.Written[1] != StreamMetadata {
		t.Fatalf("unexpected written streams: %v", res.Written)
	}
	if meta.Len() >= image.Len() {
		t.Fatalf("metadata stream must be a strict subset of the image")
	}
}

func TestSerializeDebugModes(t *testing.T) {
	// Separate mode writes a debug stream.
	mod := finalizedModule(t, emitter.EmitOptions{})
	var image, dbg bytes.Buffer
	opts := emitter.EmitOptions{DebugMode: emitter.DebugSeparate}
	res, err := Serialize(mod, Streams{Image: &image, Debug: &dbg}, opts)
	if err != nil || !res.Success {
		t.Fatalf("serialize failed: %+v %v", res, err)
	}
	if dbg.Len() == 0 {
		t.Fatalf("separate debug mode must write the debug stream")
	}

	// Embedded mode grows the image instead.
	modPlain := finalizedModule(t, emitter.EmitOptions{})
	var plain bytes.Buffer
	if _, err := Serialize(modPlain, Streams{Image: &plain}, emitter.EmitOptions{}); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	modEmbedded := finalizedModule(t, emitter.EmitOptions{})
	var embedded bytes.Buffer
	if _, err := Serialize(modEmbedded, Streams{Image: &embedded}, emitter.EmitOptions{DebugMode: emitter.DebugEmbedded}); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if embedded.Len() <= plain.Len() {
		t.Fatalf("embedded debug info must grow the image")
	}
}

func TestSerializeSeparateDebugRequiresStream(t *testing.T) {
	mod := finalizedModule(t, emitter.EmitOptions{})
	var image bytes.Buffer
	res, err := Serialize(mod, Streams{Image: &image}, emitter.EmitOptions{DebugMode: emitter.DebugSeparate})
	if err != nil {
		t.Fatalf("missing stream is a diagnostic, not a Go error: %v", err)
	}
	if res.Success {
		t.Fatalf("missing debug stream must fail the serialization")
	}
	if image.Len() != 0 {
		t.Fatalf("failed serialization must write no bytes")
	}
	found := false
	for _, d := range res.Bag.Items() {
		if d.Code == diag.EmitMissingStream {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a missing-stream diagnostic")
	}
}

func TestSerializeFlushesDocs(t *testing.T) {
	mod := finalizedModule(t, emitter.EmitOptions{Docs: true})
	var image, docs bytes.Buffer
	res, err := Serialize(mod, Streams{Image: &image, Docs: &docs}, emitter.EmitOptions{Docs: true})
	if err != nil || !res.Success {
		t.Fatalf("serialize failed: %+v %v", res, err)
	}
	if docs.Len() == 0 {
		t.Fatalf("docs stream must receive the generated text")
	}
	if docs.String() != mod.DocText() {
		t.Fatalf("docs stream must flush the generated text verbatim")
	}
}

func TestIncludePrivateWidensImage(t *testing.T) {
	pub := finalizedModule(t, emitter.EmitOptions{})
	var pubBuf bytes.Buffer
	if _, err := Serialize(pub, Streams{Image: &pubBuf}, emitter.EmitOptions{}); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	all := finalizedModule(t, emitter.EmitOptions{IncludePrivate: true})
	var allBuf bytes.Buffer
	if _, err := Serialize(all, Streams{Image: &allBuf}, emitter.EmitOptions{IncludePrivate: true}); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if allBuf.Len() <= pubBuf.Len() {
		t.Fatalf("include-private image must carry more declarations")
	}
}
