package rpcclient

import (
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/VictoriaMetrics/fastcache"
)

// gasCache is a cache of eth_estimateGas results keyed by the call
// message's structural shape; entries have no time-based expiry and stay
// until fastcache evicts them for space, grounded on the teacher's
// common/cache.go cache-wrapping pattern but backed by
// VictoriaMetrics/fastcache (a zero-GC-pressure byte-keyed cache) since
// gas estimates are a high-churn, purely advisory dataset rather than
// the identity-keyed long-lived entries common/cache.go's golang-lru
// wrapper targets.
type gasCache struct {
	c *fastcache.Cache
}

const gasCacheSizeBytes = 8 * 1024 * 1024 // 8MiB, plenty for a fleet's worth of call shapes

func newGasCache() *gasCache {
	return &gasCache{c: fastcache.New(gasCacheSizeBytes)}
}

// gasCacheKey canonicalizes callMsg into a stable byte key: map key
// order is sorted before marshaling so structurally-identical calls
// collide regardless of field insertion order.
func gasCacheKey(callMsg map[string]interface{}) []byte {
	keys := make([]string, 0, len(callMsg))
	for k := range callMsg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, callMsg[k])
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return nil
	}
	return b
}

func (g *gasCache) get(key []byte) (uint64, bool) {
	if key == nil {
		return 0, false
	}
	v, ok := g.c.HasGet(nil, key)
	if !ok || len(v) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(v), true
}

func (g *gasCache) set(key []byte, gas uint64) {
	if key == nil {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], gas)
	g.c.Set(key, buf[:])
}
