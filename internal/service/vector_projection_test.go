package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestVectorProjectionSync_ProbesOnce(t *testing.T) {
	store := newMockProjectionStore()
	s := NewVectorProjectionSync(VectorProjectionSyncParams{Store: store})

	assert.Equal(t, ProjectionUnknown, s.State())

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.True(t, s.IsAvailable(context.Background()))
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, store.probeCount())
	assert.Equal(t, ProjectionAvailable, s.State())
}

func TestVectorProjectionSync_ProbeErrorMeansUnavailable(t *testing.T) {
	store := newMockProjectionStore()
	store.probeFn = func() (bool, error) { return false, errStorage }
	retrieval := &recordingRetrievalMetrics{}

	s := NewVectorProjectionSync(VectorProjectionSyncParams{Store: store, Retrieval: retrieval})

	assert.False(t, s.IsAvailable(context.Background()))
	assert.False(t, s.IsAvailable(context.Background()))
	assert.Equal(t, 1, store.probeCount())
	assert.Equal(t, []string{"probe_failed"}, retrieval.failures)
}

func TestVectorProjectionSync_NilStoreUnavailable(t *testing.T) {
	s := NewVectorProjectionSync(VectorProjectionSyncParams{})

	assert.Equal(t, ProjectionUnavailable, s.State())
	assert.False(t, s.IsAvailable(context.Background()))

	s.Reprobe(context.Background())
	assert.Equal(t, ProjectionUnavailable, s.State())

	s.Sync(context.Background(), uuid.New(), []float64{1})
	s.Delete(context.Background(), uuid.New())
}

func TestVectorProjectionSync_SyncNoopWhenUnavailable(t *testing.T) {
	store := newMockProjectionStore()
	store.probeFn = func() (bool, error) { return false, nil }
	s := NewVectorProjectionSync(VectorProjectionSyncParams{Store: store})

	s.Sync(context.Background(), uuid.New(), []float64{1, 0})
	s.Delete(context.Background(), uuid.New())

	assert.Empty(t, store.upserts)
	assert.Empty(t, store.deletes)
}

func TestVectorProjectionSync_WriteFailureDegradesOnce(t *testing.T) {
	store := newMockProjectionStore()
	retrieval := &recordingRetrievalMetrics{}
	s := NewVectorProjectionSync(VectorProjectionSyncParams{Store: store, Retrieval: retrieval})

	s.Sync(context.Background(), uuid.New(), []float64{1})
	assert.Len(t, store.upserts, 1)

	store.upsertErr = errStorage
	s.Sync(context.Background(), uuid.New(), []float64{1})
	assert.Equal(t, ProjectionUnavailable, s.State())

	store.upsertErr = nil
	s.Sync(context.Background(), uuid.New(), []float64{1})
	assert.Len(t, store.upserts, 1, "no writes after degrading")
	assert.Equal(t, []string{"write_failed"}, retrieval.failures)
	assert.Equal(t, 1, store.probeCount(), "degrading never re-probes")
}

func TestVectorProjectionSync_DeleteFailureKeepsAvailable(t *testing.T) {
	store := newMockProjectionStore()
	store.deleteErr = errStorage
	s := NewVectorProjectionSync(VectorProjectionSyncParams{Store: store})

	s.Delete(context.Background(), uuid.New())

	assert.Equal(t, ProjectionAvailable, s.State())
	assert.Len(t, store.deletes, 1)
}

func TestVectorProjectionSync_Reprobe(t *testing.T) {
	store := newMockProjectionStore()
	store.probeFn = func() (bool, error) { return false, nil }
	s := NewVectorProjectionSync(VectorProjectionSyncParams{Store: store})

	assert.False(t, s.IsAvailable(context.Background()))

	store.probeFn = nil
	s.Reprobe(context.Background())
	assert.Equal(t, ProjectionUnknown, s.State())

	assert.True(t, s.IsAvailable(context.Background()))
	assert.Equal(t, 2, store.probeCount())
}

func TestProjectionState_String(t *testing.T) {
	assert.Equal(t, "unknown", ProjectionUnknown.String())
	assert.Equal(t, "available", ProjectionAvailable.String())
	assert.Equal(t, "unavailable", ProjectionUnavailable.String())
}
