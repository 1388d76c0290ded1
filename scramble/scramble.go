// Package scramble permutes the destination side of text-extraction
// mapping tables. A scrambled table renders identically on screen while
// copy/paste and text extraction produce shuffled characters.
package scramble

import (
	"errors"
	"math"
	"math/rand"

	"github.com/VermiIIi0n/scramble-pdf/classify"
	"github.com/VermiIIi0n/scramble-pdf/cmap"
	"github.com/VermiIIi0n/scramble-pdf/observability"
)

// ErrRatioRange is returned when the scramble ratio falls outside [0, 1].
var ErrRatioRange = errors.New("scramble: ratio must be between 0.0 and 1.0")

// Options configures a scramble pass. The zero value scrambles nothing
// (ratio 0); callers set Ratio explicitly.
type Options struct {
	// Ratio is the fraction of eligible entries to scramble, in [0, 1].
	Ratio float64

	// Exclusions are destination codes that must never be scrambled.
	Exclusions classify.ExclusionSet

	// Policy decides eligibility per destination codepoint. Nil means
	// every non-excluded entry falls to the DefaultProtect polarity.
	Policy classify.Policy

	// DefaultProtect sets the outcome for entries the policy does not
	// decide: true protects them, false leaves them eligible.
	DefaultProtect bool

	// Cache reuses one shuffle per font identity. Run creates a fresh
	// cache per pass when nil; supply one to share shuffles across
	// documents or to replay a persisted mapping store.
	Cache *FontCache

	// Rand supplies the shuffle source; nil uses the global source.
	Rand *rand.Rand

	Logger observability.Logger

	// PropagateErrors turns per-font decode failures into pass errors
	// instead of log-and-skip.
	PropagateErrors bool
}

func (o Options) logger() observability.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return observability.NopLogger{}
}

func (o Options) shuffle(n int, swap func(i, j int)) {
	if o.Rand != nil {
		o.Rand.Shuffle(n, swap)
		return
	}
	rand.Shuffle(n, swap)
}

// ScrambleTable permutes destinations of eligible entries. Entry order
// and the source column are preserved; the destination multiset is
// preserved because scrambled destinations only trade places with each
// other. The first ceil(k*(1-ratio)) eligible entries keep their
// destination, so growing the ratio only ever scrambles more.
func ScrambleTable(table cmap.Table, opts Options) (cmap.Table, error) {
	if opts.Ratio < 0.0 || opts.Ratio > 1.0 {
		return nil, ErrRatioRange
	}

	out := make(cmap.Table, len(table))
	copy(out, table)
	if opts.Ratio == 0.0 || len(table) == 0 {
		return out, nil
	}

	var eligible []int
	for i, e := range table {
		if classify.Classify(e.Dst, opts.Exclusions, opts.Policy, opts.DefaultProtect) == classify.Eligible {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return out, nil
	}

	cutoff := int(math.Ceil(float64(len(eligible)) * (1.0 - opts.Ratio)))
	moving := eligible[cutoff:]
	if len(moving) < 2 {
		return out, nil
	}

	dsts := make([]string, len(moving))
	for i, idx := range moving {
		dsts[i] = table[idx].Dst
	}
	opts.shuffle(len(dsts), func(i, j int) {
		dsts[i], dsts[j] = dsts[j], dsts[i]
	})
	for i, idx := range moving {
		out[idx].Dst = dsts[i]
	}
	return out, nil
}
