package debugutil

import (
	"github.com/fjl/memsize"
)

// Report is a point-in-time memory footprint of an arbitrary live
// object graph, surfaced by the status API's diagnostics endpoint.
type Report struct {
	TotalBytes uint64
	Summary    string
}

// Scan walks v (typically the scheduler or wallet pool's root struct)
// and reports its retained heap size. Intended for occasional
// diagnostics calls, not the hot path: a full graph walk is not cheap.
func Scan(v interface{}) Report {
	sizes := memsize.Scan(v)
	return Report{
		TotalBytes: sizes.Total,
		Summary:    sizes.Report(),
	}
}
