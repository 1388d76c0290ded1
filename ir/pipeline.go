// Package ir ties the parsing layers together: raw object parsing
// followed by stream decoding.
package ir

import (
	"context"
	"fmt"

	"github.com/VermiIIi0n/scramble-pdf/filters"
	"github.com/VermiIIi0n/scramble-pdf/ir/decoded"
	"github.com/VermiIIi0n/scramble-pdf/ir/raw"
	"github.com/VermiIIi0n/scramble-pdf/observability"
)

type Pipeline struct {
	rawParser raw.Parser
	decoder   decoded.Decoder
	logger    observability.Logger
}

// NewDefault constructs a pipeline with the lenient raw parser and the
// full filter set.
func NewDefault() *Pipeline {
	return &Pipeline{
		rawParser: raw.NewParser(),
		decoder:   decoded.NewDecoder(filters.Default()),
		logger:    observability.NopLogger{},
	}
}

// WithLogger returns the pipeline with its logger replaced.
func (p *Pipeline) WithLogger(log observability.Logger) *Pipeline {
	p.logger = log
	return p
}

// Parse runs raw parsing and stream decoding over an in-memory file.
func (p *Pipeline) Parse(ctx context.Context, data []byte) (*decoded.DecodedDocument, error) {
	rawDoc, err := p.rawParser.Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("raw parsing failed: %w", err)
	}
	p.logger.Debug("parsed document",
		observability.Int("objects", len(rawDoc.Objects)),
		observability.String("version", rawDoc.Version))

	decodedDoc, err := p.decoder.Decode(ctx, rawDoc)
	if err != nil {
		return nil, fmt.Errorf("decoding failed: %w", err)
	}
	return decodedDoc, nil
}
