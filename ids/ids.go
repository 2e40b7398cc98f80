// Package ids generates the three distinct identifier domains used across
// the core: nonce-reservation request ids (idempotency tokens within a
// wallet, per the Data Model in spec.md §3), worker ids (C5), and metric
// row correlation ids (C3). Each domain uses a different real uuid
// provider, matching the mixed uuid usage that real chain-tooling repos
// accumulate over time rather than standardizing on one.
package ids

import (
	hashiuuid "github.com/hashicorp/go-uuid"
	"github.com/pborman/uuid"
	satoriuuid "github.com/satori/go.uuid"
)

// NewReservationID returns an idempotency token for a nonce reservation.
func NewReservationID() string {
	return satoriuuid.NewV4().String()
}

// NewWorkerID returns a stable-format identifier for a scheduler worker.
func NewWorkerID() string {
	return uuid.NewRandom().String()
}

// NewMetricRowID returns a correlation id stamped onto a metric row.
func NewMetricRowID() string {
	id, err := hashiuuid.GenerateUUID()
	if err != nil {
		// GenerateUUID only fails if the system CSPRNG is broken; fall
		// back to the worker-id generator rather than panicking in a
		// metrics hot path.
		return NewWorkerID()
	}
	return id
}
