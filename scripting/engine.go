package scripting

import (
	"context"
)

// Engine compiles user scripts into character selectors.
type Engine interface {
	// CompileSelector loads a script that defines a global function
	//
	//	function select(code) { ... }
	//
	// where code is the destination codepoint as an integer. The
	// returned Selector reports whether a codepoint is selected.
	CompileSelector(ctx context.Context, script string) (Selector, error)
}

// Selector evaluates one codepoint against a compiled script.
type Selector interface {
	Select(ctx context.Context, code rune) (bool, error)
}
