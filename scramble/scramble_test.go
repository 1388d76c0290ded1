package scramble

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/VermiIIi0n/scramble-pdf/classify"
	"github.com/VermiIIi0n/scramble-pdf/cmap"
)

func letterTable() cmap.Table {
	return cmap.Table{
		{Src: "0000", Dst: "0041"},
		{Src: "0001", Dst: "0042"},
		{Src: "0002", Dst: "0043"},
		{Src: "0003", Dst: "0044"},
	}
}

func sortedDsts(t cmap.Table) []string {
	out := t.Destinations()
	sort.Strings(out)
	return out
}

func TestScrambleTableRatioRange(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1.1, 2.0} {
		_, err := ScrambleTable(letterTable(), Options{Ratio: ratio})
		if !errors.Is(err, ErrRatioRange) {
			t.Fatalf("ratio %v: got %v, want ErrRatioRange", ratio, err)
		}
	}
}

func TestScrambleTableZeroRatioIdentity(t *testing.T) {
	in := letterTable()
	out, err := ScrambleTable(in, Options{Ratio: 0.0})
	if err != nil {
		t.Fatalf("scramble failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("ratio 0 must be identity (-want +got):\n%s", diff)
	}
}

func TestScrambleTableHalfRatioKeepsPrefix(t *testing.T) {
	in := letterTable()
	opts := Options{Ratio: 0.5, Rand: rand.New(rand.NewSource(1))}
	out, err := ScrambleTable(in, opts)
	if err != nil {
		t.Fatalf("scramble failed: %v", err)
	}
	// cutoff = ceil(4 * 0.5) = 2: the first two entries are fixed.
	for i := 0; i < 2; i++ {
		if out[i] != in[i] {
			t.Fatalf("entry %d changed: %+v", i, out[i])
		}
	}
	// The tail destinations permute among themselves.
	got := []string{out[2].Dst, out[3].Dst}
	sort.Strings(got)
	if got[0] != "0043" || got[1] != "0044" {
		t.Fatalf("tail multiset changed: %v", got)
	}
	// Sources never move.
	for i := range in {
		if out[i].Src != in[i].Src {
			t.Fatalf("source %d changed: %q", i, out[i].Src)
		}
	}
}

func TestScrambleTableExclusionPinsEntry(t *testing.T) {
	in := letterTable()
	opts := Options{
		Ratio:      1.0,
		Exclusions: classify.NewExclusionSet("0043"),
		Rand:       rand.New(rand.NewSource(7)),
	}
	out, err := ScrambleTable(in, opts)
	if err != nil {
		t.Fatalf("scramble failed: %v", err)
	}
	if out[2].Dst != "0043" {
		t.Fatalf("excluded destination moved: %+v", out[2])
	}
	if diff := cmp.Diff(sortedDsts(in), sortedDsts(out)); diff != "" {
		t.Fatalf("destination multiset changed (-want +got):\n%s", diff)
	}
}

func TestScrambleTableProtectedByPolicy(t *testing.T) {
	in := cmap.Table{
		{Src: "0000", Dst: "0041"}, // A
		{Src: "0001", Dst: "002E"}, // .
		{Src: "0002", Dst: "0042"}, // B
		{Src: "0003", Dst: "0020"}, // space
		{Src: "0004", Dst: "0043"}, // C
	}
	opts := Options{
		Ratio:  1.0,
		Policy: classify.DefaultRules(),
		Rand:   rand.New(rand.NewSource(3)),
	}
	out, err := ScrambleTable(in, opts)
	if err != nil {
		t.Fatalf("scramble failed: %v", err)
	}
	if out[1].Dst != "002E" || out[3].Dst != "0020" {
		t.Fatalf("protected entries moved: %+v", out)
	}
	got := []string{out[0].Dst, out[2].Dst, out[4].Dst}
	sort.Strings(got)
	if diff := cmp.Diff([]string{"0041", "0042", "0043"}, got); diff != "" {
		t.Fatalf("eligible multiset changed (-want +got):\n%s", diff)
	}
}

func TestScrambleTableSingleMovingEntryIsIdentity(t *testing.T) {
	// cutoff = ceil(4 * 0.75) = 3 leaves one moving entry, which has
	// nothing to trade with.
	in := letterTable()
	out, err := ScrambleTable(in, Options{Ratio: 0.25, Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("scramble failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("single moving entry must not change (-want +got):\n%s", diff)
	}
}

func TestScrambleTableDefaultProtect(t *testing.T) {
	// Cyrillic matches no built-in rule; with protect polarity nothing
	// is eligible.
	in := cmap.Table{
		{Src: "0000", Dst: "0416"},
		{Src: "0001", Dst: "0417"},
	}
	out, err := ScrambleTable(in, Options{
		Ratio:          1.0,
		Policy:         classify.DefaultRules(),
		DefaultProtect: true,
		Rand:           rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("scramble failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("protected table changed (-want +got):\n%s", diff)
	}
}

func TestScrambleTableInputUntouched(t *testing.T) {
	in := letterTable()
	want := letterTable()
	if _, err := ScrambleTable(in, Options{Ratio: 1.0, Rand: rand.New(rand.NewSource(9))}); err != nil {
		t.Fatalf("scramble failed: %v", err)
	}
	if diff := cmp.Diff(want, in); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
}

func TestScrambleTableDeterministicWithSeed(t *testing.T) {
	a, err := ScrambleTable(letterTable(), Options{Ratio: 1.0, Rand: rand.New(rand.NewSource(42))})
	if err != nil {
		t.Fatalf("scramble failed: %v", err)
	}
	b, err := ScrambleTable(letterTable(), Options{Ratio: 1.0, Rand: rand.New(rand.NewSource(42))})
	if err != nil {
		t.Fatalf("scramble failed: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed must reproduce (-want +got):\n%s", diff)
	}
}

func TestFontCacheRoundTrip(t *testing.T) {
	c := NewFontCache()
	if _, ok := c.Lookup("F1"); ok {
		t.Fatalf("empty cache should miss")
	}
	c.Store("F1", letterTable())
	got, ok := c.Lookup("F1")
	if !ok {
		t.Fatalf("expected hit after store")
	}
	if diff := cmp.Diff(letterTable(), got); diff != "" {
		t.Fatalf("cached table mismatch (-want +got):\n%s", diff)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestFontCacheNilSafe(t *testing.T) {
	var c *FontCache
	if _, ok := c.Lookup("F1"); ok {
		t.Fatalf("nil cache should miss")
	}
	c.Store("F1", letterTable()) // must not panic
	if c.Len() != 0 {
		t.Fatalf("nil cache Len = %d", c.Len())
	}
}
