package itvl_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

const (
	oracleLimit      = 2047
	oracleSteps      = 20000
	oracleMaxSpan    = 8
	oracleCheckEvery = 97

	scaleLimit      = 1000000
	scalePairs      = 100000
	scaleCheckEvery = 5000
)

// oracle mirrors a manager with one bit per identifier; a set bit is a used identifier.
type oracle struct {
	used  *bitset.BitSet
	limit uint
}

func newOracle(limit uint) *oracle {
	return &oracle{used: bitset.New(limit + 1), limit: limit}
}

func (o *oracle) allFree(lo, hi uint) bool {
	for d := lo; d <= hi; d++ {
		if o.used.Test(d) {
			return false
		}
	}

	return true
}

func (o *oracle) allUsed(lo, hi uint) bool {
	for d := lo; d <= hi; d++ {
		if !o.used.Test(d) {
			return false
		}
	}

	return true
}

func (o *oracle) intervals() []itvl.Interval {
	result := []itvl.Interval{}
	start := -1

	for d := uint(0); d <= o.limit; d++ {
		switch {
		case !o.used.Test(d) && start < 0:
			start = int(d)
		case o.used.Test(d) && start >= 0:
			result = append(result, itvl.Interval{Start: itvl.ID(start), End: itvl.ID(d - 1)})
			start = -1
		}
	}

	if start >= 0 {
		result = append(result, itvl.Interval{Start: itvl.ID(start), End: itvl.ID(o.limit)})
	}

	return result
}

func heightBound(intervals int) float64 {
	return 1.44 * math.Log2(float64(intervals+2))
}

func TestManager_AgreesWithBitsetOracle(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic test data.
	mgr := itvl.NewWithLimit(oracleLimit)
	ref := newOracle(oracleLimit)

	for step := range oracleSteps {
		lo := uint(rng.Intn(oracleLimit + 1))
		hi := min(lo+uint(rng.Intn(oracleMaxSpan)), oracleLimit)

		if rng.Intn(2) == 0 {
			err := mgr.EraseRange(itvl.ID(hi), itvl.ID(lo))
			if ref.allFree(lo, hi) {
				require.NoError(t, err)

				for d := lo; d <= hi; d++ {
					ref.used.Set(d)
				}
			} else {
				require.ErrorIs(t, err, itvl.ErrNotAvailable)
			}
		} else {
			err := mgr.AddRange(itvl.ID(lo), itvl.ID(hi))
			if ref.allUsed(lo, hi) {
				require.NoError(t, err)

				for d := lo; d <= hi; d++ {
					ref.used.Clear(d)
				}
			} else {
				require.ErrorIs(t, err, itvl.ErrAlreadyAvailable)
			}
		}

		assert.Equal(t, ref.allFree(lo, hi), mgr.Check(itvl.ID(lo), itvl.ID(hi)))

		if step%oracleCheckEvery != 0 {
			continue
		}

		require.Equal(t, ref.intervals(), mgr.Intervals(), "step %d", step)
		require.NoError(t, mgr.Verify())

		stats := mgr.Stats()
		assert.Equal(t, uint64(oracleLimit+1)-uint64(ref.used.Count()), stats.Available)
		assert.LessOrEqual(t, float64(stats.Height), heightBound(stats.Intervals))

		first, ok := ref.used.NextClear(0)
		avail, availOK := mgr.AvailNum()

		if ok && first <= oracleLimit {
			require.True(t, availOK)
			assert.Equal(t, itvl.ID(first), avail)
		} else {
			assert.False(t, availOK)
		}
	}
}

func TestManager_ScaleReserveRelease(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping scale test in short mode")
	}

	rng := rand.New(rand.NewSource(2)) //nolint:gosec // deterministic test data.
	mgr := itvl.NewWithLimit(scaleLimit)
	reserved := make([]itvl.ID, 0, scalePairs)

	for step := range scalePairs {
		// Reserve a random available identifier.
		for {
			d := itvl.ID(rng.Intn(scaleLimit + 1))
			if !mgr.Check(d, d) {
				continue
			}

			require.NoError(t, mgr.Erase(d))

			reserved = append(reserved, d)

			break
		}

		// Release a random reserved one every other step.
		if step%2 == 1 {
			pick := rng.Intn(len(reserved))
			d := reserved[pick]
			reserved[pick] = reserved[len(reserved)-1]
			reserved = reserved[:len(reserved)-1]

			require.NoError(t, mgr.Add(d))
			require.ErrorIs(t, mgr.Add(d), itvl.ErrAlreadyAvailable)
		}

		if step%scaleCheckEvery == 0 {
			mgr.SanityCheck()
			assert.LessOrEqual(t, float64(mgr.Height()), heightBound(mgr.Len()))
		}
	}

	stats := mgr.Stats()
	assert.Equal(t, uint64(scaleLimit+1-len(reserved)), stats.Available)

	for _, d := range reserved {
		require.NoError(t, mgr.Add(d))
	}

	mgr.SanityCheck()
	assert.Equal(t, []itvl.Interval{{Start: 0, End: scaleLimit}}, mgr.Intervals())
	assert.Equal(t, 1, mgr.PoolStats().Live)
}
