// Package writer serializes a raw document back to PDF bytes with a
// classic cross-reference table.
package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/VermiIIi0n/scramble-pdf/ir/raw"
	"github.com/VermiIIi0n/scramble-pdf/xref"
)

// Serialize writes the document as header, body objects in ascending
// object-number order, a classic xref section, and a trailer. Relics of
// the source file's layout that the new table supersedes (/Type /XRef
// stream objects) are dropped; everything else round-trips.
func Serialize(doc *raw.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("writer: document is required")
	}

	var buf bytes.Buffer
	version := doc.Version
	if version == "" {
		version = "1.7"
	}
	buf.WriteString("%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n")

	ordered := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		if isXRefStream(doc.Objects[ref]) {
			continue
		}
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	table := xref.NewTable()
	for _, ref := range ordered {
		table.Add(ref.Num, ref.Gen, int64(buf.Len()))
		serialized, err := SerializeObject(ref, doc.Objects[ref])
		if err != nil {
			return nil, err
		}
		buf.Write(serialized)
	}

	xrefOffset := buf.Len()
	buf.Write(table.Encode())

	trailer := trailerDict(doc, table)
	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	buf.WriteString(fmt.Sprintf("\nstartxref\n%d\n%%%%EOF\n", xrefOffset))
	return buf.Bytes(), nil
}

// SerializeObject renders one indirect object including its obj/endobj
// frame. Stream dictionaries get their /Length forced to the actual
// payload size.
func SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	switch o := obj.(type) {
	case *raw.StreamObj:
		o.Dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(o.Data))))
		buf.Write(serializePrimitive(o))
	case nil:
		buf.WriteString("null")
	default:
		buf.Write(serializePrimitive(o))
	}
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

// trailerDict builds the final trailer, preserving Root, Info, and ID
// from the source trailer (recovered if the parse never saw one) and
// recomputing Size.
func trailerDict(doc *raw.Document, table *xref.Table) *raw.DictObj {
	trailer := raw.Dict()
	src := doc.Trailer
	if src == nil {
		src = xref.RecoverTrailer(doc)
	}
	if src != nil {
		for _, key := range []string{"Root", "Info", "ID"} {
			if v, ok := src.Get(raw.NameLiteral(key)); ok {
				trailer.Set(raw.NameLiteral(key), v)
			}
		}
	}
	trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(table.MaxObjectNumber()+1)))
	return trailer
}

func isXRefStream(obj raw.Object) bool {
	stream, ok := obj.(raw.Stream)
	if !ok {
		return false
	}
	typ, ok := stream.Dictionary().Get(raw.NameLiteral("Type"))
	if !ok {
		return false
	}
	name, ok := typ.(raw.NameObj)
	return ok && name.Val == "XRef"
}

func serializePrimitive(o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return []byte("/" + v.Value())
	case raw.NumberObj:
		if v.IsInteger() {
			return []byte(fmt.Sprintf("%d", v.Int()))
		}
		return []byte(fmt.Sprintf("%f", v.Float()))
	case raw.BoolObj:
		if v.Value() {
			return []byte("true")
		}
		return []byte("false")
	case raw.NullObj:
		return []byte("null")
	case raw.StringObj:
		return serializeString(v.Value())
	case *raw.ArrayObj:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.Write(serializePrimitive(it))
		}
		b.WriteByte(']')
		return b.Bytes()
	case *raw.DictObj:
		var b bytes.Buffer
		b.WriteString("<<")
		keys := make([]string, 0, len(v.KV))
		for k := range v.KV {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("/" + k + " ")
			b.Write(serializePrimitive(v.KV[k]))
		}
		b.WriteString(">>")
		return b.Bytes()
	case *raw.StreamObj:
		var b bytes.Buffer
		b.Write(serializePrimitive(v.Dict))
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
		return b.Bytes()
	case raw.RefObj:
		return []byte(fmt.Sprintf("%d %d R", v.Ref().Num, v.Ref().Gen))
	default:
		return []byte("null")
	}
}

// serializeString writes a literal string, escaping the delimiters and
// the escape character itself.
func serializeString(data []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, c := range data {
		switch c {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\r':
			b.WriteString("\\r")
		case '\n':
			b.WriteString("\\n")
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}
