package ir

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"testing"

	"github.com/VermiIIi0n/scramble-pdf/ir/raw"
)

func TestPipelineParsesAndDecodes(t *testing.T) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write([]byte("stream body")); err != nil {
		t.Fatalf("compress fixture: %v", err)
	}
	zw.Close()

	var file bytes.Buffer
	file.WriteString("%PDF-1.6\n")
	file.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	fmt.Fprintf(&file, "2 0 obj\n<< /Length %d /Filter /FlateDecode >>\nstream\n", compressed.Len())
	file.Write(compressed.Bytes())
	file.WriteString("\nendstream\nendobj\n")
	file.WriteString("trailer\n<< /Root 1 0 R /Size 3 >>\n")

	dec, err := NewDefault().Parse(context.Background(), file.Bytes())
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if dec.Raw.Version != "1.6" {
		t.Fatalf("version = %q", dec.Raw.Version)
	}
	if len(dec.Raw.Objects) != 2 {
		t.Fatalf("got %d objects, want 2", len(dec.Raw.Objects))
	}
	stream, ok := dec.Streams[raw.ObjectRef{Num: 2}]
	if !ok {
		t.Fatalf("stream 2 not decoded")
	}
	if string(stream.Data()) != "stream body" {
		t.Fatalf("decoded payload = %q", stream.Data())
	}
}

func TestPipelineRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDefault().Parse(ctx, []byte("%PDF-1.4\n1 0 obj null endobj")); err == nil {
		t.Fatalf("expected context error")
	}
}
