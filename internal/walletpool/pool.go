// Package walletpool implements C4, the client/lease pool from spec.md
// §4.4: binds wallets to proxies on demand, enforces a single
// outstanding lease per wallet index, and returns released wallets to
// the available set only after a cooldown. Grounded on the teacher's
// work/worker.go for its gopkg.in/fatih/set.v0 locked-set idiom and on
// common/cache.go for the lazily-populated, size-capped client cache.
package walletpool

import (
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	set "gopkg.in/fatih/set.v0"

	"github.com/kardelitaitu/testnet-spammer/internal/banlist"
	"github.com/kardelitaitu/testnet-spammer/internal/errclass"
	"github.com/kardelitaitu/testnet-spammer/internal/rpcclient"
	"github.com/kardelitaitu/testnet-spammer/internal/xlog"
	"github.com/kardelitaitu/testnet-spammer/internal/wallet"
)

var logger = xlog.NewModuleLogger(xlog.ModulePool)

// ClientFactory materializes the HTTP transport for a wallet, optionally
// routed through proxy. Exists as an interface so tests can substitute a
// fake without dialing real sockets.
type ClientFactory func(w wallet.Identity, proxy *banlist.ProxyEndpoint) (rpcclient.Client, error)

// Lease is the scoped capability from spec.md §3: proof the holder has
// exclusive use of one wallet index until Release is called.
type Lease struct {
	WalletIndex int
	Address     string
	Client      rpcclient.Client
	pool        *Pool
	released    bool
}

// Release returns the wallet to the available set after the pool's
// configured cooldown. Safe to call more than once; only the first call
// has effect, so a deferred Release alongside an explicit early-path
// Release never double-schedules a cooldown.
func (l *Lease) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	l.pool.release(l.WalletIndex)
}

// Pool is C4's state: the wallet registry, the locked set, the
// per-wallet proxy assignment, and the client cache.
type Pool struct {
	wallets []wallet.Identity
	proxies []banlist.ProxyEndpoint
	banlist *banlist.Banlist
	factory ClientFactory
	cooldown time.Duration

	mu                sync.Mutex
	locked            *set.Set
	proxyAssignments  map[int]int // wallet index -> proxy index
	clients           *lru.Cache  // wallet index -> rpcclient.Client

	rng *rand.Rand
}

// New constructs a Pool. proxies may be empty (spec.md §8's empty-proxy
// boundary case: all wallets operate without a proxy, the banlist
// effectively inert). cooldown corresponds to spec.md §4.4's D_cool
// (default 4s, per the resolved Open Question in spec.md §9).
func New(wallets []wallet.Identity, proxies []banlist.ProxyEndpoint, bl *banlist.Banlist, factory ClientFactory, cooldown time.Duration) *Pool {
	if cooldown <= 0 {
		cooldown = 4 * time.Second
	}
	// Capacity is sized to the full wallet fleet: the invariant from
	// spec.md §3 ("exactly one Client per wallet index for the process
	// lifetime") means this cache should never actually evict in normal
	// operation; golang-lru is used for its concurrent-safe Add/Get, not
	// for its eviction policy.
	cache, err := lru.New(len(wallets) + 1)
	if err != nil {
		// Only returns an error for a non-positive size, which can't
		// happen given the +1 above.
		cache, _ = lru.New(1)
	}
	return &Pool{
		wallets:          wallets,
		proxies:          proxies,
		banlist:          bl,
		factory:          factory,
		cooldown:         cooldown,
		locked:           set.New(),
		proxyAssignments: make(map[int]int),
		clients:          cache,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Pool) endpoint(idx int) (*banlist.ProxyEndpoint, bool) {
	for i := range p.proxies {
		if p.proxies[i].Index == idx {
			return &p.proxies[i], true
		}
	}
	return nil, false
}

func (p *Pool) allProxyIndices() []int {
	out := make([]int, len(p.proxies))
	for i, ep := range p.proxies {
		out[i] = ep.Index
	}
	return out
}

// TryAcquire implements spec.md §4.4's try_acquire: finds an unlocked
// wallet whose assigned proxy (if any) is currently healthy, chosen
// uniformly at random among candidates, materializes its client if
// absent, and returns a Lease. Returns nil, nil if no wallet is
// currently acquirable (spec.md's "none" outcome — not an error).
func (p *Pool) TryAcquire() (*Lease, error) {
	p.mu.Lock()

	candidates := p.candidateIndices()
	if len(candidates) == 0 {
		p.mu.Unlock()
		return nil, nil
	}
	idx := candidates[p.rng.Intn(len(candidates))]
	p.locked.Add(idx)

	w := p.wallets[idx]
	proxyIdx, hasProxy := p.assignedProxy(idx)
	p.mu.Unlock()

	client, err := p.materializeClient(idx, w, proxyIdx, hasProxy)
	if err != nil {
		p.mu.Lock()
		p.locked.Remove(idx)
		p.mu.Unlock()
		return nil, err
	}

	return &Lease{WalletIndex: idx, Address: w.Address, Client: client, pool: p}, nil
}

// candidateIndices returns unlocked wallet indices whose assigned proxy
// (if any) is currently healthy. Caller must hold p.mu.
func (p *Pool) candidateIndices() []int {
	var candidates []int
	for i := range p.wallets {
		if p.locked.Has(i) {
			continue
		}
		if proxyIdx, ok := p.proxyAssignments[i]; ok {
			if !p.banlist.IsHealthy(proxyIdx) {
				continue
			}
		}
		candidates = append(candidates, i)
	}
	return candidates
}

func (p *Pool) assignedProxy(idx int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	proxyIdx, ok := p.proxyAssignments[idx]
	return proxyIdx, ok
}

// materializeClient returns the cached client for idx if present,
// otherwise builds one, assigning a healthy proxy on first use if none
// is assigned yet (spec.md §4.4's proxy assignment policy).
func (p *Pool) materializeClient(idx int, w wallet.Identity, proxyIdx int, hasProxy bool) (rpcclient.Client, error) {
	if cached, ok := p.clients.Get(idx); ok {
		return cached.(rpcclient.Client), nil
	}

	var proxyEndpoint *banlist.ProxyEndpoint
	if !hasProxy {
		if candidate, ok := p.pickHealthyProxy(); ok {
			p.mu.Lock()
			p.proxyAssignments[idx] = candidate.Index
			p.mu.Unlock()
			proxyEndpoint = candidate
		}
	} else {
		if ep, ok := p.endpoint(proxyIdx); ok {
			proxyEndpoint = ep
		}
	}

	client, err := p.factory(w, proxyEndpoint)
	if err != nil {
		if proxyEndpoint != nil {
			p.banlist.ReportFailure(proxyEndpoint.Index)
		}
		return nil, errclass.Wrap(errclass.Configuration, err)
	}
	p.clients.Add(idx, client)
	return client, nil
}

func (p *Pool) pickHealthyProxy() (*banlist.ProxyEndpoint, bool) {
	healthy := p.banlist.HealthyIndices(p.allProxyIndices())
	if len(healthy) == 0 {
		return nil, false
	}
	idx := healthy[p.rng.Intn(len(healthy))]
	return p.endpoint(idx)
}

// release schedules idx's return to the available set after cooldown,
// per spec.md §4.4's "Guaranteed release" contract: this call itself
// never blocks on the cooldown. No dedicated per-lease thread is used,
// matching the "Scheduled cooldown without background threads" design
// note — a single short-lived goroutine per release is the cheapest
// equivalent Go offers to a one-shot timer task.
func (p *Pool) release(idx int) {
	go func() {
		time.Sleep(p.cooldown)
		p.mu.Lock()
		p.locked.Remove(idx)
		p.mu.Unlock()
	}()
}

// LockedCount reports the current number of outstanding leases, for
// tests and the status API.
func (p *Pool) LockedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked.Size()
}
