package scramble

import (
	"fmt"
	"os"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"

	"github.com/VermiIIi0n/scramble-pdf/cmap"
)

// The mapping store is a JSON object of font identity to src/dst pairs:
//
//	{"/FontName": {"0001": "0042", ...}, ...}
//
// Entry order inside each font is significant: it is the table order, so
// a reloaded store re-encodes byte-identical CMap streams. Saving and
// reloading a store replays the same scramble on another document.

// MarshalStore serializes the cache to the mapping-store format. Fonts
// are ordered by name; entries keep their table order.
func MarshalStore(c *FontCache) ([]byte, error) {
	names := c.Fonts()
	sort.Strings(names)

	fonts := make([]ast.Pair, 0, len(names))
	for _, font := range names {
		table, _ := c.Lookup(font)
		pairs := make([]ast.Pair, 0, len(table))
		for _, e := range table {
			pairs = append(pairs, ast.NewPair(e.Src, ast.NewString(e.Dst)))
		}
		fonts = append(fonts, ast.NewPair(font, ast.NewObject(pairs)))
	}

	root := ast.NewObject(fonts)
	data, err := root.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("scramble: marshal mapping store: %w", err)
	}
	return data, nil
}

// UnmarshalStore parses a mapping store into a cache, keeping each
// font's entries in document order.
func UnmarshalStore(data []byte) (*FontCache, error) {
	root, err := sonic.Get(data)
	if err != nil {
		return nil, fmt.Errorf("scramble: parse mapping store: %w", err)
	}
	if err := root.LoadAll(); err != nil {
		return nil, fmt.Errorf("scramble: parse mapping store: %w", err)
	}

	c := NewFontCache()
	var walkErr error
	err = root.ForEach(func(path ast.Sequence, fontNode *ast.Node) bool {
		if path.Key == nil {
			walkErr = fmt.Errorf("scramble: mapping store must be a JSON object")
			return false
		}
		font := *path.Key
		var table cmap.Table
		if err := fontNode.ForEach(func(p ast.Sequence, dstNode *ast.Node) bool {
			if p.Key == nil {
				walkErr = fmt.Errorf("scramble: font %s: mappings must be a JSON object", font)
				return false
			}
			dst, err := dstNode.String()
			if err != nil {
				walkErr = fmt.Errorf("scramble: font %s: destination for %s: %w", font, *p.Key, err)
				return false
			}
			table = append(table, cmap.Entry{Src: *p.Key, Dst: dst})
			return true
		}); err != nil {
			walkErr = fmt.Errorf("scramble: font %s: %w", font, err)
			return false
		}
		if walkErr != nil {
			return false
		}
		c.tables[font] = table
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if err != nil {
		return nil, fmt.Errorf("scramble: parse mapping store: %w", err)
	}
	return c, nil
}

// LoadStore reads a mapping store file. A missing file yields an empty
// cache so first runs need no setup.
func LoadStore(path string) (*FontCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewFontCache(), nil
		}
		return nil, fmt.Errorf("scramble: read mapping store: %w", err)
	}
	return UnmarshalStore(data)
}

// SaveStore writes the cache to a mapping store file.
func SaveStore(path string, c *FontCache) error {
	data, err := MarshalStore(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scramble: write mapping store: %w", err)
	}
	return nil
}
