package task

import (
	"fmt"
	"math/rand"
)

// Catalog is the ordered, weighted task_catalog from spec.md §4.5.
type Catalog struct {
	entries     []Entry
	totalWeight int
}

// NewCatalog validates and builds a Catalog. Every weight must be >= 1
// per spec.md §4.5; an empty catalog is rejected since the scheduler
// would otherwise spin forever unable to sample a task.
func NewCatalog(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("task catalog must not be empty")
	}
	total := 0
	for _, e := range entries {
		if e.Weight < 1 {
			return nil, fmt.Errorf("task %q has weight %d, must be >= 1", e.Task.Name(), e.Weight)
		}
		total += e.Weight
	}
	return &Catalog{entries: entries, totalWeight: total}, nil
}

// Sample performs one independent weighted draw (spec.md §4.5: "An
// independent weighted draw on each iteration (stateless); no attempt
// to equalize execution counts over time").
func (c *Catalog) Sample(rng *rand.Rand) Task {
	r := rng.Intn(c.totalWeight)
	for _, e := range c.entries {
		if r < e.Weight {
			return e.Task
		}
		r -= e.Weight
	}
	// Unreachable given totalWeight's construction, but ties are broken
	// deterministically (spec.md §4.5) by falling back to the last entry.
	return c.entries[len(c.entries)-1].Task
}

// Names returns every task name in the catalog, for the status API and
// diagnostics.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Task.Name()
	}
	return out
}
