package metricsink

import "context"

// RowStore is the durable row-oriented store C3 flushes batches into
// (spec.md §6's Row store interface). sqlstore.go and badgerstore.go are
// the two concrete implementations.
type RowStore interface {
	AppendMetricBatch(ctx context.Context, rows []Row) error
	AppendCreatedAsset(ctx context.Context, asset CreatedAsset) error
	AppendCreatedCounterContract(ctx context.Context, c CreatedCounterContract) error
	Close() error
}
