package writer

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/VermiIIi0n/scramble-pdf/ir/raw"
)

func sampleDocument() *raw.Document {
	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Version: "1.5",
	}
	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(1, 0))
	doc.Trailer = trailer

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = catalog

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(3, 0)))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(1))
	doc.Objects[raw.ObjectRef{Num: 2}] = pages

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Parent"), raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 3}] = page

	streamDict := raw.Dict()
	doc.Objects[raw.ObjectRef{Num: 4}] = raw.NewStream(streamDict, []byte("BT /F1 12 Tf ET"))
	return doc
}

func TestSerializeRoundTrips(t *testing.T) {
	data, err := Serialize(sampleDocument())
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.5\n")) {
		t.Fatalf("missing header: %q", data[:16])
	}

	parsed, err := raw.NewParser().Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if len(parsed.Objects) != 4 {
		t.Fatalf("got %d objects, want 4", len(parsed.Objects))
	}
	if parsed.Trailer == nil {
		t.Fatalf("trailer missing after round trip")
	}
	root, ok := parsed.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		t.Fatalf("trailer lost Root")
	}
	if ref, ok := root.(raw.RefObj); !ok || ref.Ref().Num != 1 {
		t.Fatalf("Root = %v", root)
	}

	stream, ok := parsed.Objects[raw.ObjectRef{Num: 4}].(raw.Stream)
	if !ok {
		t.Fatalf("object 4 is not a stream")
	}
	if string(stream.RawData()) != "BT /F1 12 Tf ET" {
		t.Fatalf("stream payload changed: %q", stream.RawData())
	}
}

func TestSerializeStreamLengthEnforced(t *testing.T) {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(999))
	out, err := SerializeObject(raw.ObjectRef{Num: 7}, raw.NewStream(dict, []byte("abc")))
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if !bytes.Contains(out, []byte("/Length 3")) {
		t.Fatalf("stale length survived: %s", out)
	}
}

func TestSerializeStartXrefOffset(t *testing.T) {
	data, err := Serialize(sampleDocument())
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	text := string(data)
	idx := strings.LastIndex(text, "startxref\n")
	if idx < 0 {
		t.Fatalf("startxref missing")
	}
	rest := text[idx+len("startxref\n"):]
	end := strings.IndexByte(rest, '\n')
	offset, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil {
		t.Fatalf("bad startxref value: %v", err)
	}
	if !strings.HasPrefix(text[offset:], "xref\n") {
		t.Fatalf("startxref %d does not point at the xref section", offset)
	}
}

func TestSerializeKeepsGenerationInXref(t *testing.T) {
	doc := sampleDocument()
	doc.Objects[raw.ObjectRef{Num: 5, Gen: 1}] = raw.NumberInt(7)

	data, err := Serialize(doc)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	text := string(data)

	marker := "\n5 1 obj\n"
	offset := strings.Index(text, marker)
	if offset < 0 {
		t.Fatalf("object header missing")
	}
	offset++ // the entry records the header's first byte

	xrefIdx := strings.LastIndex(text, "\nxref\n") + 1
	entries := strings.Split(text[xrefIdx:], "\n")
	// entries[0] = "xref", entries[1] = "0 N", entries[2] = object 0.
	entry := entries[2+5]
	want := fmt.Sprintf("%010d 00001 n ", offset)
	if entry != want {
		t.Fatalf("xref entry for 5 1 = %q, want %q", entry, want)
	}
}

func TestSerializeDropsXRefStreams(t *testing.T) {
	doc := sampleDocument()
	xrefDict := raw.Dict()
	xrefDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XRef"))
	doc.Objects[raw.ObjectRef{Num: 9}] = raw.NewStream(xrefDict, []byte{0, 1, 2})

	data, err := Serialize(doc)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	parsed, err := raw.NewParser().Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if _, ok := parsed.Objects[raw.ObjectRef{Num: 9}]; ok {
		t.Fatalf("xref stream should be dropped")
	}
}

func TestSerializeStringEscaping(t *testing.T) {
	doc := &raw.Document{Objects: map[raw.ObjectRef]raw.Object{
		{Num: 1}: raw.Str([]byte(`a(b)c\d`)),
	}}
	data, err := Serialize(doc)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	parsed, err := raw.NewParser().Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	str, ok := parsed.Objects[raw.ObjectRef{Num: 1}].(raw.StringObj)
	if !ok {
		t.Fatalf("object 1 is not a string: %T", parsed.Objects[raw.ObjectRef{Num: 1}])
	}
	if string(str.Value()) != `a(b)c\d` {
		t.Fatalf("string changed: %q", str.Value())
	}
}
