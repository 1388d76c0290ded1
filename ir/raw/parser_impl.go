package raw

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/VermiIIi0n/scramble-pdf/scanner"
)

// NewParser constructs a lenient sequential raw.Parser. It scans the whole
// input for "N G obj" headers instead of trusting the cross-reference table,
// which tolerates documents with stale or damaged xref offsets.
func NewParser() Parser {
	return &parserImpl{}
}

type parserImpl struct{}

func (p *parserImpl) Parse(ctx context.Context, data []byte) (*Document, error) {
	doc := &Document{
		Objects: make(map[ObjectRef]Object),
		Version: headerVersion(data),
	}

	tr := &tokenReader{s: scanner.New(data)}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := tr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == "trailer" {
			// The last trailer dictionary in the file wins.
			if dictTok, err := tr.next(); err == nil {
				if dictTok.Type == scanner.TokenDict {
					if trailer, err := parseDict(tr); err == nil {
						doc.Trailer = trailer.(*DictObj)
					}
				} else {
					tr.unread(dictTok)
				}
			}
			continue
		}
		if tok.Type != scanner.TokenNumber {
			continue
		}
		objNum, ok := toInt(tok.Value)
		if !ok {
			continue
		}

		genTok, err := tr.next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if genTok.Type != scanner.TokenNumber {
			tr.unread(genTok)
			continue
		}
		gen, ok := toInt(genTok.Value)
		if !ok {
			continue
		}

		kwTok, err := tr.next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if kwTok.Type != scanner.TokenKeyword || kwTok.Value != "obj" {
			tr.unread(kwTok)
			tr.unread(genTok)
			continue
		}

		obj, err := parseObject(tr)
		if err != nil {
			return nil, fmt.Errorf("parse object %d %d: %w", objNum, gen, err)
		}

		// Streams: a dictionary may be followed by a stream payload.
		if dict, ok := obj.(*DictObj); ok {
			if l, ok := directLength(dict); ok {
				tr.s.SetNextStreamLength(l)
			}
			if streamTok, err := tr.next(); err == nil {
				if streamTok.Type == scanner.TokenStream {
					obj = NewStream(dict, copyBytes(streamTok.Value))
				} else {
					tr.unread(streamTok)
				}
			}
			tr.s.SetNextStreamLength(-1)
		}

		// Consume optional endobj.
		if t, err := tr.next(); err == nil {
			if t.Type != scanner.TokenKeyword || t.Value != "endobj" {
				tr.unread(t)
			}
		}

		doc.Objects[ObjectRef{Num: int(objNum), Gen: int(gen)}] = obj
	}

	return doc, nil
}

func headerVersion(data []byte) string {
	const marker = "%PDF-"
	idx := bytes.Index(data, []byte(marker))
	if idx < 0 {
		return ""
	}
	rest := data[idx+len(marker):]
	end := 0
	for end < len(rest) && end < 8 && rest[end] != '\r' && rest[end] != '\n' {
		end++
	}
	return string(rest[:end])
}

// directLength returns the /Length of a stream dictionary when it is an
// immediate integer. Indirect lengths are left for the scanner's
// endstream search.
func directLength(dict *DictObj) (int64, bool) {
	obj, ok := dict.Get(NameLiteral("Length"))
	if !ok {
		return 0, false
	}
	num, ok := obj.(NumberObj)
	if !ok || !num.IsInteger() {
		return 0, false
	}
	return num.Int(), true
}

// ParseObjectBytes parses a single object from a byte slice, as found
// inside object streams where objects carry no "N G obj" header.
func ParseObjectBytes(data []byte) (Object, error) {
	tr := &tokenReader{s: scanner.New(data)}
	return parseObject(tr)
}

func parseObject(tr *tokenReader) (Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		if v, ok := tok.Value.(string); ok {
			return NameObj{Val: v}, nil
		}
	case scanner.TokenNumber:
		if i, ok := tok.Value.(int64); ok {
			return NumberObj{I: i, IsInt: true}, nil
		}
		if f, ok := tok.Value.(float64); ok {
			return NumberObj{F: f, IsInt: false}, nil
		}
	case scanner.TokenBoolean:
		if v, ok := tok.Value.(bool); ok {
			return BoolObj{V: v}, nil
		}
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		if b, ok := tok.Value.([]byte); ok {
			return StringObj{Bytes: b}, nil
		}
	case scanner.TokenArray:
		return parseArray(tr)
	case scanner.TokenDict:
		return parseDict(tr)
	case scanner.TokenRef:
		if v, ok := tok.Value.(scanner.Ref); ok {
			return RefObj{R: ObjectRef{Num: v.Num, Gen: v.Gen}}, nil
		}
	}
	return nil, fmt.Errorf("unexpected token: %v", tok.Type)
}

func parseArray(tr *tokenReader) (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == "]" {
			break
		}
		tr.unread(tok)
		item, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
	return arr, nil
}

func parseDict(tr *tokenReader) (Object, error) {
	d := Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == ">>" {
			break
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name in dict, got %v", tok.Type)
		}
		key, _ := tok.Value.(string)
		val, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		d.Set(NameObj{Val: key}, val)
	}
	return d, nil
}

type tokenReader struct {
	s   *scanner.Scanner
	buf []scanner.Token
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) {
	r.buf = append(r.buf, tok)
}

func toInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func copyBytes(v interface{}) []byte {
	b, ok := v.([]byte)
	if !ok {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
