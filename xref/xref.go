package xref

import (
	"bytes"
	"fmt"

	"github.com/VermiIIi0n/scramble-pdf/ir/raw"
)

// Table accumulates byte offsets for a classic cross-reference section.
type Table struct {
	entries map[int]tableEntry
}

type tableEntry struct {
	gen    int
	offset int64
}

func NewTable() *Table {
	return &Table{entries: make(map[int]tableEntry)}
}

func (t *Table) Add(objNum, gen int, offset int64) {
	t.entries[objNum] = tableEntry{gen: gen, offset: offset}
}

func (t *Table) Len() int { return len(t.entries) }

// MaxObjectNumber reports the highest object number recorded.
func (t *Table) MaxObjectNumber() int {
	max := 0
	for num := range t.entries {
		if num > max {
			max = num
		}
	}
	return max
}

// Encode renders the table as a single classic xref section covering object
// numbers 0..max. Numbers without an offset are emitted as free entries.
func (t *Table) Encode() []byte {
	var buf bytes.Buffer
	max := t.MaxObjectNumber()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", max+1))
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= max; num++ {
		if e, ok := t.entries[num]; ok {
			buf.WriteString(fmt.Sprintf("%010d %05d n \n", e.offset, e.gen))
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	return buf.Bytes()
}

// RecoverTrailer reconstructs a trailer dictionary for documents whose
// trailer keyword never appeared (xref-stream files, truncated files). It
// prefers an /XRef-typed stream dictionary, then any dictionary carrying a
// /Root entry, and finally synthesizes a minimal trailer pointing at a
// /Catalog object if one exists.
func RecoverTrailer(doc *raw.Document) raw.Dictionary {
	if doc == nil {
		return nil
	}
	if doc.Trailer != nil {
		return doc.Trailer
	}
	var withRoot *raw.DictObj
	for _, obj := range doc.Objects {
		dict := dictOf(obj)
		if dict == nil {
			continue
		}
		if typ, ok := dict.Get(raw.NameLiteral("Type")); ok {
			if name, ok := typ.(raw.NameObj); ok && name.Val == "XRef" {
				return trailerFromXRefDict(dict)
			}
		}
		if _, ok := dict.Get(raw.NameLiteral("Root")); ok && withRoot == nil {
			withRoot = dict
		}
	}
	if withRoot != nil {
		return withRoot
	}
	for ref, obj := range doc.Objects {
		dict := dictOf(obj)
		if dict == nil {
			continue
		}
		if typ, ok := dict.Get(raw.NameLiteral("Type")); ok {
			if name, ok := typ.(raw.NameObj); ok && name.Val == "Catalog" {
				trailer := raw.Dict()
				trailer.Set(raw.NameLiteral("Root"), raw.Ref(ref.Num, ref.Gen))
				return trailer
			}
		}
	}
	return nil
}

// trailerFromXRefDict copies the trailer-relevant keys out of an xref
// stream dictionary, leaving the stream bookkeeping keys behind.
func trailerFromXRefDict(dict *raw.DictObj) raw.Dictionary {
	trailer := raw.Dict()
	for _, key := range []string{"Root", "Info", "ID", "Size"} {
		if v, ok := dict.Get(raw.NameLiteral(key)); ok {
			trailer.Set(raw.NameLiteral(key), v)
		}
	}
	return trailer
}

func dictOf(obj raw.Object) *raw.DictObj {
	switch v := obj.(type) {
	case *raw.DictObj:
		return v
	case raw.Stream:
		if d, ok := v.Dictionary().(*raw.DictObj); ok {
			return d
		}
	}
	return nil
}
