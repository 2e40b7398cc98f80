package metricsink

import (
	"fmt"
	"hash"
	"hash/fnv"
	"sync"

	"github.com/steakknife/bloomfilter"
)

// dedupFilter gives a soft (best-effort, never authoritative) hint that
// a row looks like a recent duplicate submission. It never blocks a
// submission and never causes a row to be silently dropped on its own;
// it only logs, leaving the invariant from spec.md §4.3 ("a row, once
// submitted... is either persisted or counted as lost, never silently
// vanished") to the rest of the pipeline.
type dedupFilter struct {
	mu     sync.Mutex
	filter *bloomfilter.Filter
	seen   uint64
}

const dedupCapacity = 1 << 20 // rows tracked before the filter is rebuilt
const dedupFalsePositive = 0.001

func newDedupFilter() *dedupFilter {
	f, err := bloomfilter.NewOptimal(dedupCapacity, dedupFalsePositive)
	if err != nil {
		// Degrade to a no-op filter rather than fail sink construction
		// over a diagnostics-only feature.
		return &dedupFilter{}
	}
	return &dedupFilter{filter: f}
}

func hashOf(r Row) hash.Hash64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d", r.WalletAddress, r.TaskName, r.Status, r.DurationMS)
	return h
}

// seenRecently reports whether an equivalent row has likely been
// submitted before, and records this one. False positives are expected
// and acceptable given the filter's purpose.
func (d *dedupFilter) seenRecently(r Row) bool {
	if d == nil || d.filter == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen++
	if d.seen > dedupCapacity {
		// Rebuild periodically so the filter's false-positive rate
		// doesn't grow unbounded over a long-running process.
		f, err := bloomfilter.NewOptimal(dedupCapacity, dedupFalsePositive)
		if err == nil {
			d.filter = f
		}
		d.seen = 0
	}

	h := hashOf(r)
	existed := d.filter.Contains(h)
	d.filter.Add(h)
	return existed
}
