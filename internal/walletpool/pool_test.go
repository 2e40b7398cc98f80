package walletpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kardelitaitu/testnet-spammer/internal/banlist"
	"github.com/kardelitaitu/testnet-spammer/internal/rpcclient"
	"github.com/kardelitaitu/testnet-spammer/internal/wallet"
)

// stubClient is a minimal rpcclient.Client stand-in: pool tests exercise
// lease bookkeeping, never the RPC surface itself.
type stubClient struct{}

func (stubClient) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	return 0, nil
}
func (stubClient) SendRawTransaction(ctx context.Context, signedTxHex string) (string, error) {
	return "", nil
}
func (stubClient) EstimateGas(ctx context.Context, callMsg map[string]interface{}) (uint64, error) {
	return 0, nil
}
func (stubClient) GasPrice(ctx context.Context) (uint64, error) { return 0, nil }
func (stubClient) ChainID(ctx context.Context) (uint64, error)  { return 0, nil }
func (stubClient) Close()                                       {}

func testWallets(n int) []wallet.Identity {
	out := make([]wallet.Identity, n)
	for i := 0; i < n; i++ {
		out[i] = wallet.Identity{Index: i, Address: "0xwallet"}
	}
	return out
}

func alwaysSucceedsFactory(callCount *int, mu *sync.Mutex) ClientFactory {
	return func(w wallet.Identity, proxy *banlist.ProxyEndpoint) (rpcclient.Client, error) {
		mu.Lock()
		*callCount++
		mu.Unlock()
		return stubClient{}, nil
	}
}

func TestPool_LeaseExclusivity(t *testing.T) {
	bl := banlist.New(3, time.Minute)
	var mu sync.Mutex
	calls := 0
	p := New(testWallets(2), nil, bl, alwaysSucceedsFactory(&calls, &mu), time.Hour)

	l1, err := p.TryAcquire()
	require.NoError(t, err)
	require.NotNil(t, l1)

	l2, err := p.TryAcquire()
	require.NoError(t, err)
	require.NotNil(t, l2)

	assert.NotEqual(t, l1.WalletIndex, l2.WalletIndex)

	l3, err := p.TryAcquire()
	require.NoError(t, err)
	assert.Nil(t, l3, "both wallets are locked, try_acquire must return none")
}

func TestPool_ReleaseReturnsAfterCooldown(t *testing.T) {
	bl := banlist.New(3, time.Minute)
	var mu sync.Mutex
	calls := 0
	p := New(testWallets(1), nil, bl, alwaysSucceedsFactory(&calls, &mu), 20*time.Millisecond)

	lease, err := p.TryAcquire()
	require.NoError(t, err)
	require.NotNil(t, lease)

	none, err := p.TryAcquire()
	require.NoError(t, err)
	assert.Nil(t, none)

	lease.Release()

	assert.Eventually(t, func() bool {
		l, err := p.TryAcquire()
		return err == nil && l != nil
	}, time.Second, 5*time.Millisecond)
}

func TestPool_ClientCachedAcrossLeases(t *testing.T) {
	bl := banlist.New(3, time.Minute)
	var mu sync.Mutex
	calls := 0
	p := New(testWallets(1), nil, bl, alwaysSucceedsFactory(&calls, &mu), time.Millisecond)

	lease, err := p.TryAcquire()
	require.NoError(t, err)
	lease.Release()

	require.Eventually(t, func() bool { return p.LockedCount() == 0 }, time.Second, 2*time.Millisecond)

	_, err = p.TryAcquire()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "client must be materialized once and cached, not rebuilt per lease")
}

func TestPool_ClientMaterializationFailureReportsProxyAndReleasesLease(t *testing.T) {
	bl := banlist.New(1, time.Minute)
	proxies := []banlist.ProxyEndpoint{{Index: 0, Scheme: "http", Host: "h", Port: "1"}}
	failing := func(w wallet.Identity, proxy *banlist.ProxyEndpoint) (rpcclient.Client, error) {
		return nil, errors.New("unparseable proxy url")
	}
	p := New(testWallets(1), proxies, bl, failing, time.Minute)

	lease, err := p.TryAcquire()
	assert.Error(t, err)
	assert.Nil(t, lease)
	assert.Equal(t, 0, p.LockedCount(), "a failed materialization must not leave the wallet locked")
	assert.False(t, bl.IsHealthy(0), "the proxy must be reported unhealthy on materialization failure")
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	bl := banlist.New(3, time.Minute)
	var mu sync.Mutex
	calls := 0
	p := New(testWallets(1), nil, bl, alwaysSucceedsFactory(&calls, &mu), time.Millisecond)

	lease, err := p.TryAcquire()
	require.NoError(t, err)

	lease.Release()
	lease.Release() // must not panic or double-schedule
}
