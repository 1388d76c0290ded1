package scramble

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"github.com/VermiIIi0n/scramble-pdf/cmap"
	"github.com/VermiIIi0n/scramble-pdf/ir/decoded"
	"github.com/VermiIIi0n/scramble-pdf/ir/raw"
	"github.com/VermiIIi0n/scramble-pdf/observability"
	"github.com/VermiIIi0n/scramble-pdf/xref"
)

// Report summarizes one document pass.
type Report struct {
	Pages          int
	FontsSeen      int
	FontsScrambled int
	FontsSkipped   int
}

// Run scrambles every ToUnicode mapping reachable from the document's
// page tree, in place. Fonts sharing a BaseFont receive the same
// shuffle through the cache; pre-seeding the cache replays a previous
// run. Fonts whose mapping cannot be parsed are skipped and logged
// unless PropagateErrors is set.
func Run(ctx context.Context, dec *decoded.DecodedDocument, opts Options) (*Report, error) {
	if dec == nil || dec.Raw == nil {
		return nil, fmt.Errorf("scramble: document is required")
	}
	if opts.Ratio < 0.0 || opts.Ratio > 1.0 {
		return nil, ErrRatioRange
	}
	report := &Report{}
	if opts.Ratio == 0.0 {
		return report, nil
	}
	// Every pass carries a cache: fonts sharing a BaseFont must receive
	// the same shuffle even when the caller keeps no store.
	if opts.Cache == nil {
		opts.Cache = NewFontCache()
	}

	log := opts.logger()
	doc := dec.Raw

	inflateObjectStreams(dec)
	if rootCatalog(doc) == nil {
		if trailer := xref.RecoverTrailer(doc); trailer != nil {
			doc.Trailer = trailer
		}
	}

	pages := collectPages(doc)
	report.Pages = len(pages)

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		resources := derefDict(doc, valueFromDict(page, "Resources"))
		if resources == nil {
			continue
		}
		fonts := derefDict(doc, valueFromDict(resources, "Font"))
		if fonts == nil {
			continue
		}
		for _, key := range fonts.Keys() {
			fontObj, _ := fonts.Get(key)
			font := derefDict(doc, fontObj)
			if font == nil {
				continue
			}
			toUnicode := valueFromDict(font, "ToUnicode")
			if toUnicode == nil {
				continue
			}
			report.FontsSeen++

			identity, ok := nameFromDict(font, "BaseFont")
			if !ok {
				identity = key.Value()
			}
			flog := log.With(observability.String("font", identity))

			table, cached := opts.Cache.Lookup(identity)
			if !cached {
				data, _ := streamBytes(dec, toUnicode)
				if len(data) == 0 {
					flog.Warn("tounicode stream missing or empty")
					report.FontsSkipped++
					continue
				}
				parsed, err := cmap.Decode(data)
				if err != nil {
					if opts.PropagateErrors {
						return report, fmt.Errorf("scramble: font %s: %w", identity, err)
					}
					flog.Warn("skipping font", observability.Error("err", err))
					report.FontsSkipped++
					continue
				}
				table, err = ScrambleTable(parsed, opts)
				if err != nil {
					return report, err
				}
				opts.Cache.Store(identity, table)
			}

			encoded, err := cmap.Encode(table)
			if err != nil {
				if opts.PropagateErrors {
					return report, fmt.Errorf("scramble: font %s: %w", identity, err)
				}
				flog.Warn("skipping font", observability.Error("err", err))
				report.FontsSkipped++
				continue
			}
			replaceStream(doc, font, toUnicode, encoded)
			report.FontsScrambled++
			flog.Debug("scrambled font", observability.Int(observability.MetricEntryCount, len(table)))
		}
	}
	log.Info("pass complete",
		observability.Int(observability.MetricFontCount, report.FontsSeen),
		observability.Int(observability.MetricScrambledFonts, report.FontsScrambled),
	)
	return report, nil
}

// replaceStream swaps the ToUnicode stream for freshly encoded,
// unfiltered data. Indirect streams are replaced at their object slot so
// fonts sharing the reference all see the new mapping.
func replaceStream(doc *raw.Document, font *raw.DictObj, toUnicode raw.Object, data []byte) {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
	stream := raw.NewStream(dict, data)
	if ref, ok := toUnicode.(raw.RefObj); ok {
		doc.Objects[ref.Ref()] = stream
		return
	}
	font.Set(raw.NameLiteral("ToUnicode"), stream)
}

// inflateObjectStreams lifts objects embedded in /ObjStm streams into
// the top-level object map, so fonts stored in object streams are
// reachable. Existing entries are never overwritten.
func inflateObjectStreams(dec *decoded.DecodedDocument) {
	doc := dec.Raw
	inflated := make(map[raw.ObjectRef]raw.Object)
	for ref, obj := range doc.Objects {
		stream, ok := obj.(raw.Stream)
		if !ok {
			continue
		}
		if typ, _ := nameFromDict(dictOf(stream.Dictionary()), "Type"); typ != "ObjStm" {
			continue
		}
		objects, err := decodeObjectStream(dec, ref)
		if err != nil {
			continue
		}
		for num, embedded := range objects {
			key := raw.ObjectRef{Num: num, Gen: 0}
			if _, exists := doc.Objects[key]; !exists {
				inflated[key] = embedded
			}
		}
	}
	for ref, obj := range inflated {
		doc.Objects[ref] = obj
	}
}

func decodeObjectStream(dec *decoded.DecodedDocument, ref raw.ObjectRef) (map[int]raw.Object, error) {
	data, dict := streamBytes(dec, raw.RefObj{R: ref})
	if len(data) == 0 || dict == nil {
		return nil, fmt.Errorf("object stream missing data")
	}
	count, ok := intFromObject(valueFromDict(dict, "N"))
	if !ok || count <= 0 {
		return nil, fmt.Errorf("invalid object stream count")
	}
	first, ok := intFromObject(valueFromDict(dict, "First"))
	if !ok || first < 0 || first > len(data) {
		return nil, fmt.Errorf("invalid object stream First")
	}

	type entry struct {
		num int
		off int
	}
	entries := make([]entry, 0, count)
	reader := bufio.NewReader(bytes.NewReader(data[:first]))
	for i := 0; i < count; i++ {
		var objNum, offset int
		if _, err := fmt.Fscan(reader, &objNum, &offset); err != nil {
			return nil, fmt.Errorf("parse objstm header: %w", err)
		}
		entries = append(entries, entry{num: objNum, off: offset})
	}

	body := data[first:]
	objects := make(map[int]raw.Object, len(entries))
	for idx, ent := range entries {
		start := ent.off
		if start < 0 || start > len(body) {
			continue
		}
		end := len(body)
		if idx+1 < len(entries) {
			if next := entries[idx+1].off; next >= 0 && next <= len(body) {
				end = next
			}
		}
		segment := bytes.TrimSpace(body[start:end])
		if len(segment) == 0 {
			continue
		}
		obj, err := raw.ParseObjectBytes(segment)
		if err != nil {
			return nil, fmt.Errorf("parse objstm object %d: %w", ent.num, err)
		}
		objects[ent.num] = obj
	}
	return objects, nil
}

func rootCatalog(doc *raw.Document) *raw.DictObj {
	if doc == nil || doc.Trailer == nil {
		return nil
	}
	rootObj, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil
	}
	return derefDict(doc, rootObj)
}

func collectPages(doc *raw.Document) []*raw.DictObj {
	if doc == nil || doc.Trailer == nil {
		return nil
	}
	rootObj, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil
	}
	var pages []*raw.DictObj
	walkPages(doc, rootObj, make(map[*raw.DictObj]bool), func(page *raw.DictObj) {
		pages = append(pages, page)
	})
	return pages
}

func walkPages(doc *raw.Document, obj raw.Object, seen map[*raw.DictObj]bool, visit func(*raw.DictObj)) {
	dict := derefDict(doc, obj)
	if dict == nil || seen[dict] {
		return
	}
	seen[dict] = true
	if typ, ok := nameFromDict(dict, "Type"); ok {
		switch typ {
		case "Catalog":
			walkPages(doc, valueFromDict(dict, "Pages"), seen, visit)
			return
		case "Pages":
			if kids := derefArray(doc, valueFromDict(dict, "Kids")); kids != nil {
				for _, kid := range kids.Items {
					walkPages(doc, kid, seen, visit)
				}
			}
			return
		case "Page":
			visit(dict)
			return
		}
	}
	if _, ok := dict.Get(raw.NameLiteral("Contents")); ok {
		visit(dict)
	}
}

func valueFromDict(dict raw.Dictionary, key string) raw.Object {
	if dict == nil {
		return nil
	}
	val, _ := dict.Get(raw.NameLiteral(key))
	return val
}

func nameFromDict(dict raw.Dictionary, key string) (string, bool) {
	val, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return "", false
	}
	if name, ok := val.(raw.Name); ok {
		return name.Value(), true
	}
	return "", false
}

func intFromObject(obj raw.Object) (int, bool) {
	if num, ok := obj.(raw.Number); ok {
		return int(num.Int()), true
	}
	return 0, false
}

func deref(doc *raw.Document, obj raw.Object) raw.Object {
	if ref, ok := obj.(raw.RefObj); ok && doc != nil {
		if resolved, ok := doc.Objects[ref.Ref()]; ok {
			return resolved
		}
	}
	return obj
}

func derefDict(doc *raw.Document, obj raw.Object) *raw.DictObj {
	if obj == nil {
		return nil
	}
	resolved := deref(doc, obj)
	if dict, ok := resolved.(*raw.DictObj); ok {
		return dict
	}
	if stream, ok := resolved.(raw.Stream); ok {
		return dictOf(stream.Dictionary())
	}
	return nil
}

func derefArray(doc *raw.Document, obj raw.Object) *raw.ArrayObj {
	if obj == nil {
		return nil
	}
	if arr, ok := deref(doc, obj).(*raw.ArrayObj); ok {
		return arr
	}
	return nil
}

func dictOf(d raw.Dictionary) *raw.DictObj {
	if dict, ok := d.(*raw.DictObj); ok {
		return dict
	}
	return nil
}

// streamBytes returns the decoded payload for a stream value. Indirect
// streams come from the decoded layer; streams embedded directly in a
// dictionary carry no filters and are used as-is.
func streamBytes(dec *decoded.DecodedDocument, obj raw.Object) ([]byte, raw.Dictionary) {
	switch v := obj.(type) {
	case raw.RefObj:
		if stream, ok := dec.Streams[v.Ref()]; ok {
			data := stream.Data()
			out := make([]byte, len(data))
			copy(out, data)
			return out, stream.Dictionary()
		}
		if stream, ok := deref(dec.Raw, v).(raw.Stream); ok {
			data := stream.RawData()
			out := make([]byte, len(data))
			copy(out, data)
			return out, stream.Dictionary()
		}
	case raw.Stream:
		data := v.RawData()
		out := make([]byte, len(data))
		copy(out, data)
		return out, v.Dictionary()
	}
	return nil, nil
}
