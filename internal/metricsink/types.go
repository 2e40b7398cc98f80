// Package metricsink implements C3, the buffered metrics persistence
// layer from spec.md §4.3: a soft-capped queue drained by a dedicated
// batch-writer goroutine into a row-oriented store.
package metricsink

import "time"

// Status is a metric row's outcome, rendered uppercase per the resolved
// Open Question in spec.md §9.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Row is one task_metrics row (spec.md §3's Metric row entity).
type Row struct {
	ID            string
	WorkerID      string
	WalletAddress string
	TaskName      string
	Status        Status
	Message       string
	DurationMS    uint64
	Timestamp     time.Time
}

// CreatedAsset is an append_created_asset row (spec.md §6).
type CreatedAsset struct {
	ID            string
	WalletAddress string
	AssetAddress  string
	Kind          string
	Name          string
	Symbol        string
	Timestamp     time.Time
}

// CreatedCounterContract is the third append-only table spec.md §6 names.
type CreatedCounterContract struct {
	ID              string
	WalletAddress   string
	ContractAddress string
	Timestamp       time.Time
}
