// Package nonce implements C2, the per-wallet nonce coordinator from
// spec.md §4.2: strictly monotonic nonce reservation with recovery from
// "nonce too low" and nonce-gap conditions on EVM-compatible chains.
package nonce

import (
	"context"
	"sync"
	"time"

	"github.com/aristanetworks/goarista/monotime"
	gometrics "github.com/rcrowley/go-metrics"
	"go.uber.org/atomic"

	"github.com/kardelitaitu/testnet-spammer/ids"
	"github.com/kardelitaitu/testnet-spammer/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleNonce)

var resyncCounter = gometrics.NewRegisteredCounter("nonce/resyncs", nil)

// ReservationState is a nonce reservation's lifecycle stage, per the Data
// Model in spec.md §3.
type ReservationState int

const (
	Reserved ReservationState = iota
	Submitted
	Abandoned
	Confirmed
	Failed
)

// ChainClient is the slice of the RPC collaborator interface (spec.md §6)
// the coordinator needs: reading the chain's view of an account's next
// nonce.
type ChainClient interface {
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
}

// Handle is a reservation of one or more consecutive nonces for a
// wallet, returned by Reserve.
type Handle struct {
	Wallet    string
	RequestID string
	Nonces    []uint64
}

// Lowest returns the smallest reserved nonce.
func (h Handle) Lowest() uint64 { return h.Nonces[0] }

// Highest returns the largest reserved nonce.
func (h Handle) Highest() uint64 { return h.Nonces[len(h.Nonces)-1] }

type reservation struct {
	requestID string
	state     ReservationState
}

// walletState is the per-wallet bookkeeping from spec.md §4.2.
type walletState struct {
	mu sync.Mutex

	cachedNext atomic.Uint64
	confirmed  atomic.Uint64

	reservations    map[uint64]*reservation
	failedRecyclable []uint64

	// lastSyncMono is the monotime.Now() reading at the last completed
	// resync, used to debounce without exposure to wall-clock jumps.
	lastSyncMono   time.Duration
	haveSynced     bool
	syncInProgress bool
}

// Coordinator holds per-wallet nonce state. Different wallets never
// serialize through a shared lock (spec.md §5); each walletState owns its
// own mutex.
type Coordinator struct {
	chain ChainClient

	minResyncInterval time.Duration

	mu       sync.RWMutex
	wallets  map[string]*walletState
}

// New constructs a Coordinator. minResyncInterval corresponds to
// spec.md §4.2's min_resync_interval (default 500ms).
func New(chain ChainClient, minResyncInterval time.Duration) *Coordinator {
	if minResyncInterval <= 0 {
		minResyncInterval = 500 * time.Millisecond
	}
	return &Coordinator{
		chain:             chain,
		minResyncInterval: minResyncInterval,
		wallets:           make(map[string]*walletState),
	}
}

func (c *Coordinator) stateFor(wallet string) *walletState {
	c.mu.RLock()
	ws, ok := c.wallets[wallet]
	c.mu.RUnlock()
	if ok {
		return ws
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ws, ok = c.wallets[wallet]; ok {
		return ws
	}
	ws = &walletState{reservations: make(map[uint64]*reservation)}
	c.wallets[wallet] = ws
	return ws
}

// Reserve hands out count consecutive nonces for wallet. Safe to call
// from many goroutines concurrently against the same wallet (spec.md
// §4.2's concurrency contract), though in normal operation C4 ensures at
// most one task runs per wallet at a time.
func (c *Coordinator) Reserve(wallet string, count int) Handle {
	if count <= 0 {
		count = 1
	}
	ws := c.stateFor(wallet)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	nonces := make([]uint64, 0, count)

	// Prefer recycling a single abandoned nonce sitting just behind
	// cached_next, per spec.md §4.2 and the design note in §9: recycling
	// is a best-effort hint, never a ledger, so we only ever recycle one
	// value per Reserve call and only when it sits at most 4 below the
	// next fresh nonce (k small).
	if count == 1 && len(ws.failedRecyclable) > 0 {
		head := ws.failedRecyclable[0]
		next := ws.cachedNext.Load()
		if head < next && next-head <= 4 {
			ws.failedRecyclable = ws.failedRecyclable[1:]
			ws.reservations[head] = &reservation{requestID: ids.NewReservationID(), state: Reserved}
			return Handle{Wallet: wallet, RequestID: ws.reservations[head].requestID, Nonces: []uint64{head}}
		}
	}

	reqID := ids.NewReservationID()
	start := ws.cachedNext.Add(uint64(count)) - uint64(count)
	for i := 0; i < count; i++ {
		n := start + uint64(i)
		nonces = append(nonces, n)
		ws.reservations[n] = &reservation{requestID: reqID, state: Reserved}
	}
	return Handle{Wallet: wallet, RequestID: reqID, Nonces: nonces}
}

// MarkSubmitted records that h's nonces have been placed on the wire.
func (c *Coordinator) MarkSubmitted(h Handle) {
	ws := c.stateFor(h.Wallet)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for _, n := range h.Nonces {
		if r, ok := ws.reservations[n]; ok {
			r.state = Submitted
		}
	}
}

// MarkConfirmed updates confirmed if h's highest nonce exceeds the
// current value. confirmed is advisory, for diagnostics only.
func (c *Coordinator) MarkConfirmed(h Handle) {
	ws := c.stateFor(h.Wallet)
	ws.mu.Lock()
	for _, n := range h.Nonces {
		if r, ok := ws.reservations[n]; ok {
			r.state = Confirmed
		}
	}
	ws.mu.Unlock()

	for {
		cur := ws.confirmed.Load()
		if h.Highest() <= cur {
			return
		}
		if ws.confirmed.CAS(cur, h.Highest()) {
			return
		}
	}
}

// Abandon marks h's nonces as Abandoned. They are pushed onto the
// recycle queue only if no later nonce has been Submitted for this
// wallet (spec.md §4.2); otherwise a gap is now intentional and the
// cache stays ahead, to be closed by a future resync.
func (c *Coordinator) Abandon(h Handle) {
	ws := c.stateFor(h.Wallet)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	laterSubmitted := false
	for n, r := range ws.reservations {
		if n > h.Highest() && (r.state == Submitted || r.state == Confirmed) {
			laterSubmitted = true
			break
		}
	}

	for _, n := range h.Nonces {
		if r, ok := ws.reservations[n]; ok {
			r.state = Abandoned
		}
	}

	if !laterSubmitted {
		ws.failedRecyclable = append(ws.failedRecyclable, h.Nonces...)
	}
}

// Resync forces cached_next = max(cached_next, chain's reported next
// nonce). Debounced by minResyncInterval; a call within the debounce
// window is a no-op. RPC errors are logged and the cache is left
// untouched (spec.md §4.2's failure semantics: persistent RPC outages
// must be visible at the task layer, not silently stalled on).
func (c *Coordinator) Resync(ctx context.Context, wallet string, address string) {
	ws := c.stateFor(wallet)

	ws.mu.Lock()
	now := monotime.Now()
	if ws.syncInProgress {
		ws.mu.Unlock()
		return
	}
	if ws.haveSynced && now-ws.lastSyncMono < c.minResyncInterval {
		ws.mu.Unlock()
		return
	}
	ws.syncInProgress = true
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		ws.syncInProgress = false
		ws.lastSyncMono = monotime.Now()
		ws.haveSynced = true
		ws.mu.Unlock()
	}()

	chainNext, err := c.chain.GetTransactionCount(ctx, address)
	if err != nil {
		logger.Warnw("resync failed, leaving cache untouched", "wallet", wallet, "err", err)
		return
	}
	resyncCounter.Inc(1)

	for {
		cur := ws.cachedNext.Load()
		if chainNext <= cur {
			return
		}
		if ws.cachedNext.CAS(cur, chainNext) {
			logger.Infow("nonce resynced", "wallet", wallet, "cached_next", chainNext)
			return
		}
	}
}

// CachedNext returns the wallet's current cached_next, for tests and
// diagnostics.
func (c *Coordinator) CachedNext(wallet string) uint64 {
	return c.stateFor(wallet).cachedNext.Load()
}

// Confirmed returns the wallet's advisory confirmed high-water mark.
func (c *Coordinator) Confirmed(wallet string) uint64 {
	return c.stateFor(wallet).confirmed.Load()
}
