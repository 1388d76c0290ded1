package decoded

import (
	"context"

	"github.com/VermiIIi0n/scramble-pdf/ir/raw"
)

// Object wraps a raw object after decoding.
type Object interface {
	Raw() raw.Object
	Type() string
}

// Stream represents a decoded PDF stream (filters applied).
type Stream interface {
	Object
	Dictionary() raw.Dictionary
	Data() []byte
	Filters() []string
}

// DecodedDocument contains decoded streams plus a back-reference to the raw doc.
type DecodedDocument struct {
	Raw     *raw.Document
	Streams map[raw.ObjectRef]Stream
}

// Decoder transforms raw IR into decoded IR by applying stream filters.
type Decoder interface {
	Decode(ctx context.Context, rawDoc *raw.Document) (*DecodedDocument, error)
}
