// Package cmap decodes and re-encodes ToUnicode CMap streams, the
// text-format reverse lookup a PDF reader uses to turn glyph codes back
// into Unicode text.
package cmap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Entry is one source→destination pair. Both codes are hexadecimal
// strings without angle brackets, as they appear in the bfchar block.
type Entry struct {
	Src string
	Dst string
}

// Table is an ordered sequence of entries. Order is significant: it is
// the appearance order in the stream and downstream consumers rely on it.
type Table []Entry

// Width reports the widest source code in hex digits.
func (t Table) Width() int {
	w := 0
	for _, e := range t {
		if len(e.Src) > w {
			w = len(e.Src)
		}
	}
	return w
}

// Destinations returns the destination codes in table order.
func (t Table) Destinations() []string {
	out := make([]string, len(t))
	for i, e := range t {
		out[i] = e.Dst
	}
	return out
}

var (
	// ErrNoMapping reports that no bfchar entry could be recognized
	// anywhere in the input.
	ErrNoMapping = errors.New("cmap: no bfchar entries found")

	// ErrEmptyTable reports an attempt to encode a table with no entries.
	ErrEmptyTable = errors.New("cmap: cannot encode empty table")
)

// Decode extracts the source→destination pairs from a ToUnicode stream.
//
// Parsing is layered: the bfchar block between the first beginbfchar and
// the endcmap marker is scanned first; when those delimiters are absent
// the whole input is scanned instead. Malformed lines are skipped, and a
// duplicated source code keeps its first occurrence. Decode fails only
// when no entry at all can be recognized.
func Decode(data []byte) (Table, error) {
	text := string(data)
	block := text
	if start := strings.Index(text, "beginbfchar"); start >= 0 {
		rest := text[start+len("beginbfchar"):]
		if end := strings.Index(rest, "endcmap"); end >= 0 {
			block = rest[:end]
		} else {
			block = rest
		}
	}
	table := scanEntries(block)
	if len(table) == 0 && block != text {
		table = scanEntries(text)
	}
	if len(table) == 0 {
		return nil, ErrNoMapping
	}
	return table, nil
}

func scanEntries(block string) Table {
	var table Table
	seen := make(map[string]struct{})
	lines := bufio.NewScanner(strings.NewReader(block))
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		hexes := hexTokens(line)
		for i := 0; i+1 < len(hexes); i += 2 {
			src := hexes[i]
			if _, dup := seen[src]; dup {
				continue
			}
			seen[src] = struct{}{}
			table = append(table, Entry{Src: src, Dst: hexes[i+1]})
		}
	}
	return table
}

// hexTokens pulls every well-formed <hex> token out of a line, skipping
// tokens containing anything but hex digits.
func hexTokens(line string) []string {
	var tokens []string
	for {
		start := strings.IndexByte(line, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(line[start+1:], '>')
		if end < 0 {
			break
		}
		tok := line[start+1 : start+1+end]
		line = line[start+1+end+1:]
		if tok != "" && isHex(tok) {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// maxEntriesPerBlock is the bfchar block limit imposed by the CMap
// format: larger tables must be split into multiple blocks.
const maxEntriesPerBlock = 100

// Encode renders the table as a complete ToUnicode CMap stream.
//
// The codespace range spans the full width of the widest source code and
// entries are emitted in table order, split into bfchar blocks of at most
// 100 entries, each declaring its own count. Output is deterministic:
// the same table always yields the same bytes.
func Encode(table Table) ([]byte, error) {
	if len(table) == 0 {
		return nil, ErrEmptyTable
	}
	byteLen := table.Width() / 2
	if byteLen == 0 {
		byteLen = 1
	}
	minCode := strings.Repeat("0", 2*byteLen)
	maxCode := strings.Repeat("F", 2*byteLen)

	var b bytes.Buffer
	b.WriteString("%!PS-Adobe-3.0 Resource-CMap\n")
	b.WriteString("%%DocumentNeededResources: procset CIDInit\n")
	b.WriteString("%%IncludeResource: procset CIDInit\n")
	b.WriteString("%%BeginResource: CMap Custom\n")
	b.WriteString("%%Title: (Custom Adobe Identity 0)\n")
	b.WriteString("%%Version: 1\n")
	b.WriteString("%%EndComments\n")
	b.WriteString("/CIDInit /ProcSet findresource begin\n")
	b.WriteString("12 dict begin\n")
	b.WriteString("begincmap\n")
	b.WriteString("/CIDSystemInfo 3 dict dup begin\n")
	b.WriteString("    /Registry (Adobe) def\n")
	b.WriteString("    /Ordering (Identity) def\n")
	b.WriteString("    /Supplement 0 def\n")
	b.WriteString("end def\n")
	b.WriteString("/CMapName /Custom def\n")
	b.WriteString("/CMapVersion 1 def\n")
	b.WriteString("/CMapType 0 def\n")
	b.WriteString("/WMode 0 def\n")
	b.WriteString("1 begincodespacerange\n")
	fmt.Fprintf(&b, "<%s> <%s>\n", minCode, maxCode)
	b.WriteString("endcodespacerange\n")

	for start := 0; start < len(table); start += maxEntriesPerBlock {
		end := start + maxEntriesPerBlock
		if end > len(table) {
			end = len(table)
		}
		fmt.Fprintf(&b, "%d beginbfchar\n", end-start)
		for _, e := range table[start:end] {
			fmt.Fprintf(&b, "<%s> <%s>\n", e.Src, e.Dst)
		}
		b.WriteString("endbfchar\n")
	}

	b.WriteString("endcmap\n")
	b.WriteString("CMapName currentdict /CMap defineresource pop\n")
	b.WriteString("end\n")
	b.WriteString("end\n")
	b.WriteString("%%EndResource\n")
	b.WriteString("%%EOF")
	return b.Bytes(), nil
}
