package nonce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	count uint64
	err   error
}

func (f *fakeChain) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	return f.count, f.err
}

func TestReserveIsMonotonic(t *testing.T) {
	c := New(&fakeChain{}, time.Millisecond)
	h1 := c.Reserve("w0", 1)
	h2 := c.Reserve("w0", 1)
	h3 := c.Reserve("w0", 3)
	require.Equal(t, uint64(0), h1.Lowest())
	require.Equal(t, uint64(1), h2.Lowest())
	require.Equal(t, []uint64{2, 3, 4}, h3.Nonces)
}

func TestAbandonWithoutLaterSubmitLeavesCachedNextUnchanged(t *testing.T) {
	c := New(&fakeChain{}, time.Millisecond)
	h := c.Reserve("w0", 1)
	before := c.CachedNext("w0")
	c.Abandon(h)
	require.Equal(t, before, c.CachedNext("w0"))
}

func TestAbandonRecyclesNonceForNextReserve(t *testing.T) {
	c := New(&fakeChain{}, time.Millisecond)
	h := c.Reserve("w0", 1)
	c.Abandon(h)
	h2 := c.Reserve("w0", 1)
	require.Equal(t, h.Lowest(), h2.Lowest(), "abandoned nonce should be recycled")
}

func TestAbandonDoesNotRecycleWhenLaterNonceSubmitted(t *testing.T) {
	c := New(&fakeChain{}, time.Millisecond)
	h1 := c.Reserve("w0", 1)
	h2 := c.Reserve("w0", 1)
	c.MarkSubmitted(h2)
	c.Abandon(h1)

	h3 := c.Reserve("w0", 1)
	require.NotEqual(t, h1.Lowest(), h3.Lowest(), "gap should be intentional, not recycled")
}

func TestMarkConfirmedNeverDecreases(t *testing.T) {
	c := New(&fakeChain{}, time.Millisecond)
	h1 := c.Reserve("w0", 1)
	h2 := c.Reserve("w0", 1)
	c.MarkSubmitted(h1)
	c.MarkSubmitted(h2)
	c.MarkConfirmed(h2)
	require.Equal(t, h2.Highest(), c.Confirmed("w0"))
	c.MarkConfirmed(h1)
	require.Equal(t, h2.Highest(), c.Confirmed("w0"), "confirmed must never decrease")
}

func TestResyncAdvancesCachedNextFromChain(t *testing.T) {
	chain := &fakeChain{count: 10}
	c := New(chain, time.Millisecond)
	c.Reserve("w0", 1)
	c.Resync(context.Background(), "w0", "0xabc")
	require.Equal(t, uint64(10), c.CachedNext("w0"))
}

func TestResyncIsDebounced(t *testing.T) {
	chain := &fakeChain{count: 10}
	c := New(chain, time.Hour)
	c.Resync(context.Background(), "w0", "0xabc")
	require.Equal(t, uint64(10), c.CachedNext("w0"))

	chain.count = 20
	c.Resync(context.Background(), "w0", "0xabc")
	require.Equal(t, uint64(10), c.CachedNext("w0"), "second resync within the debounce window should be a no-op")
}

func TestResyncLeavesCacheUntouchedOnRPCError(t *testing.T) {
	chain := &fakeChain{count: 10, err: context.DeadlineExceeded}
	c := New(chain, time.Millisecond)
	before := c.CachedNext("w0")
	c.Resync(context.Background(), "w0", "0xabc")
	require.Equal(t, before, c.CachedNext("w0"))
}

func TestConcurrentReservesAreDistinct(t *testing.T) {
	c := New(&fakeChain{}, time.Millisecond)
	const n = 200
	results := make(chan uint64, n)
	for i := 0; i < n; i++ {
		go func() {
			results <- c.Reserve("w0", 1).Lowest()
		}()
	}
	seen := make(map[uint64]bool)
	for i := 0; i < n; i++ {
		v := <-results
		require.False(t, seen[v], "nonce %d handed out twice", v)
		seen[v] = true
	}
}

func TestDifferentWalletsAreIndependent(t *testing.T) {
	c := New(&fakeChain{}, time.Millisecond)
	c.Reserve("w0", 5)
	h := c.Reserve("w1", 1)
	require.Equal(t, uint64(0), h.Lowest(), "w1 must not be affected by w0's reservations")
}
