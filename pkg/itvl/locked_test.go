package itvl_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

const (
	lockedWorkers    = 8
	lockedPerWorker  = 500
	lockedSmallLimit = 3
	lockedTotal      = lockedWorkers * lockedPerWorker
)

func TestLocked_ConcurrentAcquireRelease(t *testing.T) {
	t.Parallel()

	locked := itvl.NewLocked(itvl.New())
	results := make([][]itvl.ID, lockedWorkers)

	var wg sync.WaitGroup

	for worker := range lockedWorkers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range lockedPerWorker {
				id, ok := locked.Acquire()
				if ok {
					results[worker] = append(results[worker], id)
				}
			}
		}()
	}

	wg.Wait()

	seen := make(map[itvl.ID]struct{}, lockedTotal)

	for _, ids := range results {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	// Acquisitions hand out 0..N-1 exactly once.
	require.Len(t, seen, lockedTotal)

	next, ok := locked.AvailNum()
	require.True(t, ok)
	assert.Equal(t, itvl.ID(lockedTotal), next)

	for worker := range lockedWorkers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for _, id := range results[worker] {
				assert.NoError(t, locked.Add(id))
			}
		}()
	}

	wg.Wait()

	err := locked.Do(func(mgr *itvl.Manager) error {
		assert.Equal(t, []itvl.Interval{{Start: 0, End: itvl.MaxID}}, mgr.Intervals())

		return mgr.Verify()
	})
	require.NoError(t, err)
}

func TestLocked_Exhaustion(t *testing.T) {
	t.Parallel()

	locked := itvl.NewLocked(itvl.NewWithLimit(lockedSmallLimit))

	for want := range itvl.ID(lockedSmallLimit + 1) {
		id, ok := locked.Acquire()
		require.True(t, ok)
		assert.Equal(t, want, id)
	}

	_, ok := locked.Acquire()
	assert.False(t, ok)

	assert.False(t, locked.Check(0, 0))
	require.ErrorIs(t, locked.Erase(0), itvl.ErrNotAvailable)
	require.NoError(t, locked.AddRange(1, 2))
	require.ErrorIs(t, locked.Add(1), itvl.ErrAlreadyAvailable)
	require.NoError(t, locked.EraseRange(2, 1))

	var buf bytes.Buffer
	require.NoError(t, locked.Dump(&buf))
	assert.Equal(t, []byte{0x80}, buf.Bytes())
	assert.Equal(t, uint64(0), locked.Stats().Available)
}
