package selector

import (
	"sync"
	"sync/atomic"

	"cssopt/analysis"
)

type slot struct {
	once  sync.Once
	entry *Entry
	err   error
}

// Cache memoizes selector entries for the duration of one optimization run.
// Entries are computed once per normalized selector text, even when the same
// key is queried concurrently, and are never evicted or invalidated. Parse
// errors are memoized as well.
type Cache struct {
	mu    sync.Mutex
	slots map[string]*slot

	hits     atomic.Int64
	computed atomic.Int64
}

func NewCache() *Cache {
	return &Cache{slots: make(map[string]*slot)}
}

// Query returns entry for the selector text. Returned entry is shared and
// must not be modified.
func (c *Cache) Query(text string) (*Entry, error) {
	key := Normalize(text)

	c.mu.Lock()
	s, ok := c.slots[key]
	if !ok {
		s = &slot{}
		c.slots[key] = s
	}
	c.mu.Unlock()

	if ok {
		c.hits.Add(1)
	}
	s.once.Do(func() {
		c.computed.Add(1)
		s.entry, s.err = Parse(key)
	})
	return s.entry, s.err
}

// Len returns number of distinct selectors seen.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Stats returns number of queries answered from cache and number of entries
// actually computed.
func (c *Cache) Stats() (hits, computed int64) {
	return c.hits.Load(), c.computed.Load()
}

// Exclusive reports whether two selectors can never match the same element,
// so relative order of rules using them does not matter. Selectors which
// cannot be parsed are never exclusive.
func (c *Cache) Exclusive(a, b string, facts *analysis.Set) bool {
	ea, err := c.Query(a)
	if err != nil {
		return false
	}
	eb, err := c.Query(b)
	if err != nil {
		return false
	}
	return Exclusive(ea, eb, facts)
}

// Exclusive is the entry level version of (*Cache).Exclusive. Structural
// reasons (different pseudo-elements, different tags, different ids) are
// checked first, then template facts are consulted.
func Exclusive(a, b *Entry, facts *analysis.Set) bool {
	if a.PseudoElement != b.PseudoElement {
		return true
	}
	ka, kb := a.Key(), b.Key()
	if ka.Tag != "" && kb.Tag != "" && ka.Tag != kb.Tag {
		return true
	}
	if len(ka.IDs) > 0 && len(kb.IDs) > 0 {
		// element has a single id
		for _, id := range kb.IDs {
			if id != ka.IDs[0] {
				return true
			}
		}
	}
	if facts.Empty() {
		return false
	}
	ra, rb := ka.Requirement(), kb.Requirement()
	if !facts.CanMatch(ra) || !facts.CanMatch(rb) {
		return true
	}
	return !facts.CanCoOccur(ra, rb)
}
