package metricsink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory RowStore stub for exercising Sink without a
// real database backend.
type memStore struct {
	mu               sync.Mutex
	batches          [][]Row
	failNextN        int
	closed           bool
}

func (m *memStore) AppendMetricBatch(ctx context.Context, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNextN > 0 {
		m.failNextN--
		return assert.AnError
	}
	cp := make([]Row, len(rows))
	copy(cp, rows)
	m.batches = append(m.batches, cp)
	return nil
}

func (m *memStore) AppendCreatedAsset(ctx context.Context, a CreatedAsset) error { return nil }

func (m *memStore) AppendCreatedCounterContract(ctx context.Context, c CreatedCounterContract) error {
	return nil
}

func (m *memStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memStore) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func sampleRow(i int) Row {
	return Row{
		ID:            "row",
		WalletAddress: "0xabc",
		TaskName:      "simple_transfer",
		Status:        StatusSuccess,
		DurationMS:    uint64(i),
		Timestamp:     time.Now(),
	}
}

func TestSink_FlushesOnBatchSize(t *testing.T) {
	store := &memStore{}
	s := NewSink(store, Config{BatchSize: 5, BatchInterval: time.Hour, SoftCap: 100})
	defer s.Close()

	for i := 0; i < 5; i++ {
		require.True(t, s.Submit(sampleRow(i)))
	}

	require.Eventually(t, func() bool { return store.rowCount() == 5 }, time.Second, 5*time.Millisecond)
}

func TestSink_FlushesOnInterval(t *testing.T) {
	store := &memStore{}
	s := NewSink(store, Config{BatchSize: 1000, BatchInterval: 20 * time.Millisecond, SoftCap: 100})
	defer s.Close()

	require.True(t, s.Submit(sampleRow(1)))

	require.Eventually(t, func() bool { return store.rowCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSink_DropNewestRejectsWhenFull(t *testing.T) {
	store := &memStore{}
	s := NewSink(store, Config{BatchSize: 1000, BatchInterval: time.Hour, SoftCap: 2, Fallback: DropNewest})
	defer s.Close()

	require.True(t, s.Submit(sampleRow(1)))
	require.True(t, s.Submit(sampleRow(2)))
	require.False(t, s.Submit(sampleRow(3)))

	assert.Equal(t, uint64(1), s.DroppedCount())
	assert.Equal(t, 2, s.QueueDepth())
}

func TestSink_DropOldestEvictsFront(t *testing.T) {
	store := &memStore{}
	s := NewSink(store, Config{BatchSize: 1000, BatchInterval: time.Hour, SoftCap: 2, Fallback: DropOldest})
	defer s.Close()

	require.True(t, s.Submit(sampleRow(1)))
	require.True(t, s.Submit(sampleRow(2)))
	require.True(t, s.Submit(sampleRow(3)))

	assert.Equal(t, uint64(1), s.DroppedCount())
	assert.Equal(t, 2, s.QueueDepth())
}

func TestSink_BlockModeUnblocksAfterDrain(t *testing.T) {
	store := &memStore{}
	s := NewSink(store, Config{BatchSize: 1, BatchInterval: 5 * time.Millisecond, SoftCap: 1, Fallback: Block})
	defer s.Close()

	require.True(t, s.Submit(sampleRow(1)))

	done := make(chan struct{})
	go func() {
		s.Submit(sampleRow(2))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit under Block fallback never returned once the queue drained")
	}
}

func TestSink_FlushFailureDropsBatchButKeepsRunning(t *testing.T) {
	store := &memStore{failNextN: 1}
	s := NewSink(store, Config{BatchSize: 2, BatchInterval: time.Hour, SoftCap: 100})
	defer s.Close()

	require.True(t, s.Submit(sampleRow(1)))
	require.True(t, s.Submit(sampleRow(2)))

	require.Eventually(t, func() bool { return s.DroppedCount() == 2 }, time.Second, 5*time.Millisecond)

	require.True(t, s.Submit(sampleRow(3)))
	require.True(t, s.Submit(sampleRow(4)))
	require.Eventually(t, func() bool { return store.rowCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSink_CloseFlushesRemainder(t *testing.T) {
	store := &memStore{}
	s := NewSink(store, Config{BatchSize: 1000, BatchInterval: time.Hour, SoftCap: 100})

	require.True(t, s.Submit(sampleRow(1)))
	require.True(t, s.Submit(sampleRow(2)))

	require.NoError(t, s.Close())
	assert.Equal(t, 2, store.rowCount())
	assert.True(t, store.closed)
}
