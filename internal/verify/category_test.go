package verify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/APTlantis/ROM-Verify/internal/catalog"
)

func TestCategoryConsume(t *testing.T) {
	c := NewCategory("USA", catalog.Shard{1: "a (USA)", 2: "b (USA)"})

	assert.Equal(t, consumeHit, c.consume(1))
	assert.Equal(t, consumeDuplicate, c.consume(1))
	assert.Equal(t, consumeMiss, c.consume(3))

	remaining, confirmed, original := c.Counts()
	assert.Equal(t, 1, remaining)
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 2, original)
}

func TestCategoryConcurrentConsumeCountsOnce(t *testing.T) {
	c := NewCategory("USA", catalog.Shard{7: "g (USA)"})
	var wg sync.WaitGroup
	hits := make(chan consumeResult, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits <- c.consume(7)
		}()
	}
	wg.Wait()
	close(hits)

	n := 0
	for r := range hits {
		if r == consumeHit {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint32{7}, c.Confirmed())
}

func TestCategoryReport(t *testing.T) {
	c := NewCategory("Japan", catalog.Shard{
		3: "Zelda (Japan)",
		1: "Adventure (Japan)",
		2: "Mario (Japan)",
		4: "Adventure (Japan)",
	})
	c.consume(2)

	r := c.Report()
	assert.Equal(t, "Japan", r.Category)
	assert.Equal(t, 1, r.Confirmed)
	assert.Equal(t, 4, r.Original)
	assert.InDelta(t, 25.0, r.Percent, 1e-9)
	assert.Equal(t, []catalog.Entry{
		{Name: "Adventure (Japan)", CRC: 1},
		{Name: "Adventure (Japan)", CRC: 4},
		{Name: "Zelda (Japan)", CRC: 3},
	}, r.Missing)
	assert.NoError(t, r.Err())
}

func TestCategoryRemainingIsCopy(t *testing.T) {
	c := NewCategory("USA", catalog.Shard{1: "a (USA)"})
	rem := c.Remaining()
	delete(rem, 1)
	remaining, _, _ := c.Counts()
	assert.Equal(t, 1, remaining)
}

func TestNewCategoriesKeepsOrder(t *testing.T) {
	shards := map[string]catalog.Shard{"USA": {1: "a (USA)"}, "Japan": {}}
	cats := NewCategories([]string{"Japan", "USA", "Europe"}, shards)
	assert.Equal(t, "Japan", cats[0].Name)
	assert.Equal(t, "USA", cats[1].Name)
	assert.Equal(t, "Europe", cats[2].Name)
	_, _, original := cats[2].Counts()
	assert.Zero(t, original)
}

func TestNewCategoriesDropsRepeats(t *testing.T) {
	shards := map[string]catalog.Shard{"USA": {1: "a (USA)"}, "Japan": {2: "b (Japan)"}}
	cats := NewCategories([]string{"USA", "Japan", "USA"}, shards)
	require.Len(t, cats, 2)
	assert.Equal(t, "USA", cats[0].Name)
	assert.Equal(t, "Japan", cats[1].Name)
}
