// Command scramble rewrites every font's ToUnicode mapping in a PDF so
// the document renders unchanged while text extraction yields shuffled
// characters.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/VermiIIi0n/scramble-pdf/classify"
	"github.com/VermiIIi0n/scramble-pdf/ir"
	"github.com/VermiIIi0n/scramble-pdf/observability"
	"github.com/VermiIIi0n/scramble-pdf/scramble"
	"github.com/VermiIIi0n/scramble-pdf/scripting"
	"github.com/VermiIIi0n/scramble-pdf/writer"
)

type options struct {
	inputPath      string
	outputPath     string
	mappingPath    string
	ratio          float64
	exclude        []string
	letters        bool
	nonLetters     bool
	scriptPath     string
	whitelist      bool
	protectDefault bool
	seed           int64
	verbose        bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scramble: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "scramble: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: scramble [flags] <input.pdf> <output.pdf>\n")
		flag.PrintDefaults()
	}
	mapping := flag.String("mapping", "", "Where to read/write the old-to-new mapping store")
	ratio := flag.Float64("ratio", 1.0, "Fraction of mappings to scramble (0.0-1.0)")
	exclude := flag.String("exclude", "", "Comma-separated destination hex codes that must not move")
	letters := flag.Bool("letters", false, "Scramble letters only")
	nonLetters := flag.Bool("non-letters", false, "Scramble non-letters only")
	script := flag.String("script", "", "JavaScript file defining select(code) to pick characters")
	whitelist := flag.Bool("whitelist", false, "Treat selected characters as the only ones to scramble")
	protectDefault := flag.Bool("protect-default", false, "Protect characters no rule decides (default scrambles them)")
	seed := flag.Int64("seed", 0, "Random seed for a reproducible shuffle (0 uses ambient randomness)")
	verbose := flag.Bool("v", false, "Log skipped fonts and pass statistics to stderr")
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return options{}, fmt.Errorf("need input and output paths")
	}
	opts.inputPath = flag.Arg(0)
	opts.outputPath = flag.Arg(1)
	opts.mappingPath = *mapping
	opts.ratio = clampRatio(*ratio)
	if *exclude != "" {
		for _, code := range strings.Split(*exclude, ",") {
			if code = strings.TrimSpace(code); code != "" {
				opts.exclude = append(opts.exclude, code)
			}
		}
	}
	opts.letters = *letters
	opts.nonLetters = *nonLetters
	opts.scriptPath = *script
	opts.whitelist = *whitelist
	opts.protectDefault = *protectDefault
	opts.seed = *seed
	opts.verbose = *verbose
	if opts.letters && opts.nonLetters {
		return options{}, fmt.Errorf("-letters and -non-letters are mutually exclusive")
	}
	return opts, nil
}

func clampRatio(r float64) float64 {
	if r < 0.0 {
		return 0.0
	}
	if r > 1.0 {
		return 1.0
	}
	return r
}

func buildPolicy(ctx context.Context, opts options) (classify.Policy, error) {
	switch {
	case opts.scriptPath != "":
		code, err := os.ReadFile(opts.scriptPath)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		sel, err := scripting.NewEngine().CompileSelector(ctx, string(code))
		if err != nil {
			return nil, err
		}
		return classify.Predicate{
			Fn: func(c rune) bool {
				ok, err := sel.Select(ctx, c)
				return err == nil && ok
			},
			SelectProtects: !opts.whitelist,
		}, nil
	case opts.letters:
		// Scramble letters: everything else is selected and pinned.
		return classify.Predicate{
			Fn:             func(c rune) bool { return !unicode.IsLetter(c) },
			SelectProtects: true,
		}, nil
	case opts.nonLetters:
		return classify.Predicate{
			Fn:             unicode.IsLetter,
			SelectProtects: true,
		}, nil
	default:
		return classify.DefaultRules(), nil
	}
}

func run(opts options) error {
	ctx := context.Background()

	data, err := os.ReadFile(opts.inputPath)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}

	var log observability.Logger = observability.NopLogger{}
	if opts.verbose {
		log = stderrLogger{}
	}

	parseStart := time.Now()
	doc, err := ir.NewDefault().WithLogger(log).Parse(ctx, data)
	if err != nil {
		return fmt.Errorf("parse pdf: %w", err)
	}
	log.Debug("parsed document",
		observability.Float64(observability.MetricParseTime, time.Since(parseStart).Seconds()))

	policy, err := buildPolicy(ctx, opts)
	if err != nil {
		return err
	}

	cache := scramble.NewFontCache()
	if opts.mappingPath != "" {
		if cache, err = scramble.LoadStore(opts.mappingPath); err != nil {
			return err
		}
	}

	var rng *rand.Rand
	if opts.seed != 0 {
		rng = rand.New(rand.NewSource(opts.seed))
	}

	report, err := scramble.Run(ctx, doc, scramble.Options{
		Ratio:          opts.ratio,
		Exclusions:     classify.NewExclusionSet(opts.exclude...),
		Policy:         policy,
		DefaultProtect: opts.protectDefault,
		Cache:          cache,
		Rand:           rng,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	if opts.mappingPath != "" {
		if err := scramble.SaveStore(opts.mappingPath, cache); err != nil {
			return err
		}
	}

	writeStart := time.Now()
	out, err := writer.Serialize(doc.Raw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.outputPath, out, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	log.Debug("wrote document",
		observability.Float64(observability.MetricWriteTime, time.Since(writeStart).Seconds()))

	fmt.Printf("Written scrambled PDF to %s (%d/%d fonts scrambled across %d pages)\n",
		opts.outputPath, report.FontsScrambled, report.FontsSeen, report.Pages)
	return nil
}

// stderrLogger is a plain line-oriented Logger for -v runs.
type stderrLogger struct {
	fields []observability.Field
}

func (l stderrLogger) log(level, msg string, fields []observability.Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", level, msg)
	for _, f := range append(l.fields, fields...) {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	fmt.Fprintln(os.Stderr, b.String())
}

func (l stderrLogger) Debug(msg string, fields ...observability.Field) { l.log("DEBUG", msg, fields) }
func (l stderrLogger) Info(msg string, fields ...observability.Field)  { l.log("INFO", msg, fields) }
func (l stderrLogger) Warn(msg string, fields ...observability.Field)  { l.log("WARN", msg, fields) }
func (l stderrLogger) Error(msg string, fields ...observability.Field) { l.log("ERROR", msg, fields) }
func (l stderrLogger) With(fields ...observability.Field) observability.Logger {
	return stderrLogger{fields: append(append([]observability.Field{}, l.fields...), fields...)}
}
