package scramble

import "github.com/VermiIIi0n/scramble-pdf/cmap"

// FontCache remembers the scrambled table per font identity so that
// every font with the same BaseFont receives the same shuffle, within a
// pass and across documents when the cache is persisted.
type FontCache struct {
	tables map[string]cmap.Table
}

func NewFontCache() *FontCache {
	return &FontCache{tables: make(map[string]cmap.Table)}
}

func (c *FontCache) Lookup(font string) (cmap.Table, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.tables[font]
	return t, ok
}

func (c *FontCache) Store(font string, table cmap.Table) {
	if c == nil {
		return
	}
	if c.tables == nil {
		c.tables = make(map[string]cmap.Table)
	}
	stored := make(cmap.Table, len(table))
	copy(stored, table)
	c.tables[font] = stored
}

func (c *FontCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tables)
}

// Fonts returns the cached font identities in unspecified order.
func (c *FontCache) Fonts() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.tables))
	for f := range c.tables {
		out = append(out, f)
	}
	return out
}
