// Package classify decides which mapping-table entries may be scrambled.
// Classification operates on the destination codepoint (the rendered
// character), not the glyph source code: the goal is to perturb which
// character a glyph extracts as, while the glyph index stays untouched.
package classify

import (
	"encoding/hex"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Outcome is the classification result for one destination code.
type Outcome int

const (
	Eligible Outcome = iota
	Protected
)

func (o Outcome) String() string {
	if o == Protected {
		return "protected"
	}
	return "eligible"
}

// ExclusionSet holds destination codes that are always protected,
// regardless of any policy. Matching is case-insensitive.
type ExclusionSet map[string]struct{}

func NewExclusionSet(codes ...string) ExclusionSet {
	s := make(ExclusionSet, len(codes))
	for _, c := range codes {
		s[strings.ToUpper(c)] = struct{}{}
	}
	return s
}

func (s ExclusionSet) Contains(code string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[strings.ToUpper(code)]
	return ok
}

// Range is an inclusive codepoint interval.
type Range struct {
	Lo rune
	Hi rune
}

func (r Range) contains(c rune) bool { return c >= r.Lo && c <= r.Hi }

// Rule is a named bucket of codepoint ranges. ScrambleByDefault decides
// the outcome when the rule matches.
type Rule struct {
	Name              string
	Ranges            []Range
	ScrambleByDefault bool
}

func (r Rule) matches(c rune) bool {
	for _, rg := range r.Ranges {
		if rg.contains(c) {
			return true
		}
	}
	return false
}

// Policy decides the outcome for a destination codepoint. The boolean
// reports whether the policy matched; unmatched codepoints fall through
// to the caller's default polarity.
type Policy interface {
	Decide(c rune) (Outcome, bool)
}

// RuleTable is an ordered Policy: the first matching rule wins.
type RuleTable []Rule

func (t RuleTable) Decide(c rune) (Outcome, bool) {
	for _, rule := range t {
		if rule.matches(c) {
			if rule.ScrambleByDefault {
				return Eligible, true
			}
			return Protected, true
		}
	}
	return Eligible, false
}

// Predicate adapts an ad hoc selector function into a Policy. The
// predicate is total: every codepoint is decided, so the default
// polarity never applies. SelectProtects picks what a true result
// means, mirroring a blacklist (true) versus whitelist (false) selector.
type Predicate struct {
	Fn             func(c rune) bool
	SelectProtects bool
}

func (p Predicate) Decide(c rune) (Outcome, bool) {
	if p.Fn == nil {
		return Eligible, false
	}
	if p.Fn(c) == p.SelectProtects {
		return Protected, true
	}
	return Eligible, true
}

// RuneSet builds a selector function from a container of characters, for
// callers that express their policy as a plain set of accepted runes.
func RuneSet(chars string) func(rune) bool {
	set := make(map[rune]struct{}, len(chars))
	for _, c := range chars {
		set[c] = struct{}{}
	}
	return func(c rune) bool {
		_, ok := set[c]
		return ok
	}
}

// DefaultRules is the built-in rule table. The custom override list is
// evaluated first, then punctuation buckets, then the broad letter and
// ideograph categories.
func DefaultRules() RuleTable {
	return RuleTable{
		{
			Name: "custom-override",
			Ranges: []Range{
				{0x0020, 0x0020}, // space
				{0x00A0, 0x00A0}, // no-break space
				{0x3000, 0x3000}, // ideographic space
				{0xFFFD, 0xFFFD}, // replacement character
			},
			ScrambleByDefault: false,
		},
		{
			Name: "cjk-punctuation",
			Ranges: []Range{
				{0x3001, 0x303F},
				{0xFF01, 0xFF0F},
				{0xFF1A, 0xFF20},
				{0xFF3B, 0xFF40},
				{0xFF5B, 0xFF65},
			},
			ScrambleByDefault: false,
		},
		{
			Name: "ascii-punctuation",
			Ranges: []Range{
				{0x0021, 0x002F},
				{0x003A, 0x0040},
				{0x005B, 0x0060},
				{0x007B, 0x007E},
			},
			ScrambleByDefault: false,
		},
		{
			Name: "latin-alphanumeric",
			Ranges: []Range{
				{0x0030, 0x0039},
				{0x0041, 0x005A},
				{0x0061, 0x007A},
			},
			ScrambleByDefault: true,
		},
		{
			Name: "cjk-ideographs",
			Ranges: []Range{
				{0x3400, 0x4DBF},
				{0x4E00, 0x9FFF},
			},
			ScrambleByDefault: true,
		},
	}
}

// DestRune decodes a destination hex code to its first codepoint.
// ToUnicode destinations are UTF-16BE per the PDF specification
// (9.10.3); surrogate pairs decode to a single supplementary codepoint.
func DestRune(dst string) (rune, bool) {
	raw, err := hex.DecodeString(dst)
	if err != nil || len(raw) == 0 {
		return 0, false
	}
	if len(raw) == 1 {
		// Single-byte destinations appear in simple-font tables.
		return rune(raw[0]), true
	}
	dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	decoded, err := dec.Bytes(raw)
	if err != nil {
		return 0, false
	}
	runes := []rune(string(decoded))
	if len(runes) == 0 {
		return 0, false
	}
	return runes[0], true
}

// Classify resolves the outcome for one destination code. The exclusion
// set has the highest priority; then the policy; undecided codes fall to
// the polarity default (defaultProtect true means "protect unless a rule
// says scramble").
func Classify(dst string, excl ExclusionSet, policy Policy, defaultProtect bool) Outcome {
	if excl.Contains(dst) {
		return Protected
	}
	fallback := Eligible
	if defaultProtect {
		fallback = Protected
	}
	c, ok := DestRune(dst)
	if !ok {
		return fallback
	}
	if policy != nil {
		if outcome, matched := policy.Decide(c); matched {
			return outcome
		}
	}
	return fallback
}
