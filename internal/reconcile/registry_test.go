package reconcile

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_ExchangeReturnsPrevious(t *testing.T) {
	r := NewRegistry()

	first := r.Exchange(42, []Trade{openTrade(1)})
	assert.Nil(t, first)

	second := r.Exchange(42, []Trade{closedTrade(1, 5, 1.1)})
	assert.Len(t, second, 1)
	assert.True(t, second[0].IsOpen)

	snap := r.Snapshot(42)
	assert.Len(t, snap, 1)
	assert.False(t, snap[0].IsOpen)
}

func TestRegistry_AccountsAreIndependent(t *testing.T) {
	r := NewRegistry()

	r.Exchange(1, []Trade{openTrade(10)})
	r.Exchange(2, []Trade{openTrade(20)})

	assert.Equal(t, int64(10), r.Snapshot(1)[0].LogicalTradeID)
	assert.Equal(t, int64(20), r.Snapshot(2)[0].LogicalTradeID)
	assert.Empty(t, r.Snapshot(3))
}

func TestRegistry_ConcurrentExchange(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for login := int64(1); login <= 8; login++ {
		wg.Add(1)
		go func(login int64) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r.Exchange(login, []Trade{openTrade(login)})
			}
		}(login)
	}
	wg.Wait()

	for login := int64(1); login <= 8; login++ {
		snap := r.Snapshot(login)
		assert.Len(t, snap, 1)
		assert.Equal(t, login, snap[0].LogicalTradeID)
	}
}
