package verify

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/APTlantis/ROM-Verify/internal/catalog"
)

// ErrEmptyCategory is reported for a category that selects no catalog entries.
var ErrEmptyCategory = errors.New("empty category")

type consumeResult int

const (
	consumeMiss consumeResult = iota
	consumeHit
	consumeDuplicate
)

// Category is the verification state of one category: the catalog entries not
// yet seen and the checksums confirmed present. Both live under one mutex so
// len(expected)+len(confirmed) always equals the original count.
type Category struct {
	Name string

	mu        sync.Mutex
	expected  catalog.Shard
	confirmed map[uint32]struct{}
	original  int
}

// NewCategory takes ownership of shard; it must not be used by the caller
// afterwards.
func NewCategory(name string, shard catalog.Shard) *Category {
	if shard == nil {
		shard = catalog.Shard{}
	}
	return &Category{
		Name:      name,
		expected:  shard,
		confirmed: make(map[uint32]struct{}, len(shard)),
		original:  len(shard),
	}
}

// NewCategories builds categories in the given order from Partition output.
// A repeated name is dropped: Partition holds one shard per name, and two
// categories must never own the same shard.
func NewCategories(names []string, shards map[string]catalog.Shard) []*Category {
	cats := make([]*Category, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cats = append(cats, NewCategory(name, shards[name]))
	}
	return cats
}

// consume moves crc from expected to confirmed. A checksum already confirmed
// reports consumeDuplicate and changes nothing.
func (c *Category) consume(crc uint32) consumeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.expected[crc]; ok {
		delete(c.expected, crc)
		c.confirmed[crc] = struct{}{}
		return consumeHit
	}
	if _, ok := c.confirmed[crc]; ok {
		return consumeDuplicate
	}
	return consumeMiss
}

// Counts returns the remaining, confirmed and original entry counts.
func (c *Category) Counts() (remaining, confirmed, original int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expected), len(c.confirmed), c.original
}

// Confirmed returns the confirmed checksums in ascending order.
func (c *Category) Confirmed() []uint32 {
	c.mu.Lock()
	out := make([]uint32, 0, len(c.confirmed))
	for crc := range c.confirmed {
		out = append(out, crc)
	}
	c.mu.Unlock()
	slices.Sort(out)
	return out
}

// Remaining returns a copy of the entries not yet confirmed.
func (c *Category) Remaining() catalog.Shard {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(catalog.Shard, len(c.expected))
	for crc, name := range c.expected {
		out[crc] = name
	}
	return out
}

// Report is the outcome for one category.
type Report struct {
	Category  string
	Confirmed int
	Original  int
	// Percent is Confirmed/Original*100, or 0 for an empty category.
	Percent float64
	// Missing are the entries never matched, sorted by name.
	Missing []catalog.Entry
}

// Empty reports whether the category selected no catalog entries.
func (r Report) Empty() bool { return r.Original == 0 }

// Err returns ErrEmptyCategory for an empty category, else nil.
func (r Report) Err() error {
	if r.Empty() {
		return fmt.Errorf("%w: %q matches no catalog entries", ErrEmptyCategory, r.Category)
	}
	return nil
}

// Report summarizes the category. Call it once every task for the category
// has finished.
func (c *Category) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := Report{
		Category:  c.Name,
		Confirmed: len(c.confirmed),
		Original:  c.original,
		Missing:   make([]catalog.Entry, 0, len(c.expected)),
	}
	if c.original > 0 {
		r.Percent = float64(len(c.confirmed)) / float64(c.original) * 100
	}
	for crc, name := range c.expected {
		r.Missing = append(r.Missing, catalog.Entry{Name: name, CRC: crc})
	}
	slices.SortFunc(r.Missing, func(a, b catalog.Entry) int {
		if n := cmp.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return cmp.Compare(a.CRC, b.CRC)
	})
	return r
}
