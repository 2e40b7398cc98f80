// Package banlist implements C1, the proxy health tracker described in
// spec.md §4.1: a time-bounded exclusion set of proxy indices, with lazy
// (check-on-read) expiry and no background goroutine.
package banlist

import (
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	set "gopkg.in/fatih/set.v0"

	"github.com/kardelitaitu/testnet-spammer/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleBanlist)

var (
	bansCounter   = gometrics.NewRegisteredCounter("banlist/bans", nil)
	unbansCounter = gometrics.NewRegisteredCounter("banlist/unbans", nil)
)

// entry is the per-proxy health state from spec.md §4.1's state machine.
type entry struct {
	banUntil          time.Time
	consecutiveFailures uint32
}

func (e *entry) banned(now time.Time) bool {
	return !e.banUntil.IsZero() && now.Before(e.banUntil)
}

// Persister is an optional hook a Banlist notifies on every ban/unban
// transition, so an implementation can persist state across restarts or
// mirror it to peers. Both persist.go (goleveldb) and redissync.go
// (go-redis pub/sub) implement it.
type Persister interface {
	OnBan(idx int, until time.Time)
	OnUnban(idx int)
}

// Banlist tracks proxy health. The zero value is not usable; use New.
type Banlist struct {
	mu  sync.RWMutex
	m   map[int]*entry

	maxFailures uint32
	banDuration time.Duration

	persisters []Persister
}

// New constructs a Banlist. maxFailures and banDuration correspond to
// spec.md §4.1's max_failures (default 3) and ban_duration (default 30m).
func New(maxFailures int, banDuration time.Duration) *Banlist {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &Banlist{
		m:           make(map[int]*entry),
		maxFailures: uint32(maxFailures),
		banDuration: banDuration,
	}
}

// AddPersister registers a Persister to be notified of ban/unban
// transitions going forward. Not retroactive.
func (b *Banlist) AddPersister(p Persister) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.persisters = append(b.persisters, p)
}

// Restore seeds the in-memory state from a previously persisted snapshot,
// e.g. at startup from goleveldb. It does not re-notify persisters.
func (b *Banlist) Restore(idx int, banUntil time.Time, consecutiveFailures uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[idx] = &entry{banUntil: banUntil, consecutiveFailures: consecutiveFailures}
}

// IsHealthy returns true iff idx is not currently banned. A ban whose
// expiry has passed is silently cleared (lazy unban, per spec.md §4.1).
func (b *Banlist) IsHealthy(idx int) bool {
	now := time.Now()

	b.mu.RLock()
	e, ok := b.m[idx]
	if !ok {
		b.mu.RUnlock()
		return true
	}
	expired := !e.banned(now)
	b.mu.RUnlock()
	if expired {
		return true
	}

	// Re-check under the write lock before mutating; another goroutine
	// may have already unbanned it, or reported a new failure.
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok = b.m[idx]
	if !ok {
		return true
	}
	if !e.banned(now) {
		wasBanned := !e.banUntil.IsZero()
		e.banUntil = time.Time{}
		e.consecutiveFailures = 0
		if wasBanned {
			unbansCounter.Inc(1)
			logger.Infow("proxy ban expired", "proxy", idx)
			for _, p := range b.persisters {
				p.OnUnban(idx)
			}
		}
		return true
	}
	return false
}

// ReportSuccess clears any active ban and resets the failure streak.
func (b *Banlist) ReportSuccess(idx int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.m[idx]
	if !ok {
		b.m[idx] = &entry{}
		return
	}
	wasBanned := e.banned(time.Now())
	e.banUntil = time.Time{}
	e.consecutiveFailures = 0
	if wasBanned {
		unbansCounter.Inc(1)
		for _, p := range b.persisters {
			p.OnUnban(idx)
		}
	}
}

// ReportFailure increments idx's failure streak, banning it once the
// streak reaches maxFailures (spec.md §4.1). Reporting against an
// unknown index creates tracking state for it; the banlist itself never
// errors.
func (b *Banlist) ReportFailure(idx int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.m[idx]
	if !ok {
		e = &entry{}
		b.m[idx] = e
	}
	e.consecutiveFailures++
	if e.consecutiveFailures >= b.maxFailures {
		until := time.Now().Add(b.banDuration)
		e.banUntil = until
		e.consecutiveFailures = 0
		bansCounter.Inc(1)
		logger.Warnw("proxy banned", "proxy", idx, "until", until)
		for _, p := range b.persisters {
			p.OnBan(idx, until)
		}
	}
}

// HealthyIndices returns a snapshot of currently-usable proxy indices.
// Order is unspecified.
func (b *Banlist) HealthyIndices(universe []int) []int {
	s := set.New()
	for _, idx := range universe {
		if b.IsHealthy(idx) {
			s.Add(idx)
		}
	}
	out := make([]int, 0, s.Size())
	for _, v := range s.List() {
		out = append(out, v.(int))
	}
	return out
}
