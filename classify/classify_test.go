package classify

import "testing"

func TestExclusionSetCaseInsensitive(t *testing.T) {
	set := NewExclusionSet("00ab", "0041")
	if !set.Contains("00AB") {
		t.Fatalf("expected 00AB to be excluded")
	}
	if !set.Contains("00ab") {
		t.Fatalf("expected 00ab to be excluded")
	}
	if set.Contains("00AC") {
		t.Fatalf("00AC should not be excluded")
	}
}

func TestDestRune(t *testing.T) {
	tests := []struct {
		dst  string
		want rune
		ok   bool
	}{
		{"0041", 'A', true},
		{"41", 'A', true},
		{"4E2D", '中', true},
		{"D83DDE00", 0x1F600, true}, // surrogate pair
		{"", 0, false},
		{"ZZ", 0, false},
	}
	for _, tt := range tests {
		got, ok := DestRune(tt.dst)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("DestRune(%q) = %q, %v; want %q, %v", tt.dst, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDefaultRulesOutcomes(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		c    rune
		want Outcome
	}{
		{'A', Eligible},
		{'z', Eligible},
		{'7', Eligible},
		{'中', Eligible},
		{' ', Protected},
		{0x00A0, Protected},
		{0x3000, Protected},
		{'.', Protected},
		{',', Protected},
		{'!', Protected},
		{0x3002, Protected}, // 。
		{0xFF0C, Protected}, // ，
	}
	for _, tt := range tests {
		got, matched := rules.Decide(tt.c)
		if !matched {
			t.Fatalf("rule table did not match %q", tt.c)
		}
		if got != tt.want {
			t.Fatalf("Decide(%q) = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestDefaultRulesUnmatched(t *testing.T) {
	rules := DefaultRules()
	if _, matched := rules.Decide(0x0416); matched { // Cyrillic Zhe
		t.Fatalf("cyrillic should not match the built-in table")
	}
}

func TestPredicateBlacklist(t *testing.T) {
	p := Predicate{Fn: RuneSet("aeiou"), SelectProtects: true}
	if got, _ := p.Decide('a'); got != Protected {
		t.Fatalf("selected rune should be protected in blacklist mode")
	}
	if got, _ := p.Decide('b'); got != Eligible {
		t.Fatalf("unselected rune should be eligible in blacklist mode")
	}
}

func TestPredicateWhitelist(t *testing.T) {
	p := Predicate{Fn: RuneSet("aeiou"), SelectProtects: false}
	if got, _ := p.Decide('a'); got != Eligible {
		t.Fatalf("selected rune should be eligible in whitelist mode")
	}
	if got, _ := p.Decide('b'); got != Protected {
		t.Fatalf("unselected rune should be protected in whitelist mode")
	}
}

func TestClassifyPrecedence(t *testing.T) {
	excl := NewExclusionSet("0041")
	rules := DefaultRules()

	// Exclusion wins over an eligible rule.
	if got := Classify("0041", excl, rules, false); got != Protected {
		t.Fatalf("excluded code must be protected, got %v", got)
	}
	// Policy applies when not excluded.
	if got := Classify("0042", excl, rules, false); got != Eligible {
		t.Fatalf("letter B should be eligible, got %v", got)
	}
	if got := Classify("002E", excl, rules, false); got != Protected {
		t.Fatalf("period should be protected, got %v", got)
	}
}

func TestClassifyDefaultPolarity(t *testing.T) {
	// Cyrillic matches no built-in rule; the polarity flag decides.
	if got := Classify("0416", nil, DefaultRules(), false); got != Eligible {
		t.Fatalf("unmatched code with eligible default, got %v", got)
	}
	if got := Classify("0416", nil, DefaultRules(), true); got != Protected {
		t.Fatalf("unmatched code with protect default, got %v", got)
	}
}

func TestClassifyUndecodableDestination(t *testing.T) {
	if got := Classify("ZZZZ", nil, DefaultRules(), true); got != Protected {
		t.Fatalf("undecodable destination should fall to the default, got %v", got)
	}
	if got := Classify("", nil, DefaultRules(), false); got != Eligible {
		t.Fatalf("empty destination should fall to the default, got %v", got)
	}
}
