package itvl //nolint:testpackage // tests compare pool statistics around failed restores.

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDeepChain   = maxDepth + 6
	testRandomOps   = 2000
	testRandomLimit = 4096
	testRandomSeed  = 42
)

// splitTreeDump is the dump of [0, 39] with a right child [46, 100].
var splitTreeDump = []byte{
	0x01, 0, 0, 0, 0, 39, 0, 0, 0,
	endMarkByte,
	0x00, 46, 0, 0, 0, 100, 0, 0, 0,
	endMarkByte, endMarkByte,
}

func appendRecord(buf []byte, balance int8, start, end uint32) []byte {
	buf = append(buf, byte(balance))
	buf = binary.LittleEndian.AppendUint32(buf, start)

	return binary.LittleEndian.AppendUint32(buf, end)
}

func dumpBytes(tb testing.TB, mgr *Manager) []byte {
	tb.Helper()

	var buf bytes.Buffer
	require.NoError(tb, mgr.Dump(&buf))

	return buf.Bytes()
}

func treeShape(mgr *Manager) []Node {
	var shape []Node

	mgr.WalkTree(func(nd Node) {
		shape = append(shape, nd)
	})

	return shape
}

func TestDump_FreshManager(t *testing.T) {
	t.Parallel()

	mgr := testNewManager(t)
	expected := []byte{0x00, 0, 0, 0, 0, 100, 0, 0, 0, endMarkByte, endMarkByte}
	assert.Equal(t, expected, dumpBytes(t, mgr))
}

func TestDump_Split(t *testing.T) {
	t.Parallel()

	mgr := testNewManager(t)
	require.NoError(t, mgr.EraseRange(testID40, testID45))
	assert.Equal(t, splitTreeDump, dumpBytes(t, mgr))
}

func TestEndMarkByte_MatchesEndMark(t *testing.T) {
	t.Parallel()

	markByte := endMarkByte
	assert.Equal(t, EndMark, int8(markByte))

	mgr := NewWithLimit(0)
	require.NoError(t, mgr.Erase(0))
	assert.Equal(t, []byte{0x80}, dumpBytes(t, mgr))
}

func TestDump_Empty(t *testing.T) {
	t.Parallel()

	mgr := testNewManager(t)
	require.NoError(t, mgr.EraseRange(0, testLimit100))
	assert.Equal(t, []byte{endMarkByte}, dumpBytes(t, mgr))

	restored := testNewManager(t)
	require.NoError(t, restored.Restore(bytes.NewReader([]byte{endMarkByte})))
	assert.Equal(t, 0, restored.Len())

	_, ok := restored.AvailNum()
	assert.False(t, ok)
}

func TestRestore_RoundTripKeepsShape(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(testRandomSeed)) //nolint:gosec // deterministic test data.
	mgr := NewWithLimit(testRandomLimit)

	for range testRandomOps {
		d := ID(rng.Intn(testRandomLimit + 1))
		if mgr.Check(d, d) {
			require.NoError(t, mgr.Erase(d))
		} else {
			require.NoError(t, mgr.Add(d))
		}
	}

	data := dumpBytes(t, mgr)

	restored := NewWithLimit(testRandomLimit)
	require.NoError(t, restored.Restore(bytes.NewReader(data)))
	require.NoError(t, restored.Verify())

	assert.Equal(t, mgr.Intervals(), restored.Intervals())
	assert.Equal(t, treeShape(mgr), treeShape(restored))
	assert.Equal(t, mgr.Len(), restored.Len())
	assert.Equal(t, data, dumpBytes(t, restored))
}

func TestRestore_NonByteReader(t *testing.T) {
	t.Parallel()

	mgr := testNewManager(t)
	reader := struct{ io.Reader }{bytes.NewReader(splitTreeDump)}

	require.NoError(t, mgr.Restore(reader))
	assertIntervals(t, mgr, Interval{Start: 0, End: 39}, Interval{Start: 46, End: testLimit100})
}

func TestRestore_StopsAtTreeEnd(t *testing.T) {
	t.Parallel()

	const trailing = 3

	data := append(bytes.Clone(splitTreeDump), make([]byte, trailing)...)
	reader := bytes.NewReader(data)

	mgr := testNewManager(t)
	require.NoError(t, mgr.Restore(reader))
	assert.Equal(t, trailing, reader.Len())
}

func TestRestore_ReusesPoolNodes(t *testing.T) {
	t.Parallel()

	mgr := testNewManager(t)
	require.NoError(t, mgr.Restore(bytes.NewReader(splitTreeDump)))

	// The new tree is built before the old root is retired.
	assert.Equal(t, PoolStats{Allocated: 3, Live: 2, Free: 1}, mgr.PoolStats())

	// One free slot covers half of the next tree, then both old nodes are retired.
	require.NoError(t, mgr.Restore(bytes.NewReader(splitTreeDump)))
	assert.Equal(t, PoolStats{Allocated: 4, Live: 2, Free: 2}, mgr.PoolStats())

	// From here on every restore is served by the free list.
	for range 3 {
		require.NoError(t, mgr.Restore(bytes.NewReader(splitTreeDump)))
		assert.Equal(t, PoolStats{Allocated: 4, Live: 2, Free: 2}, mgr.PoolStats())
	}

	assert.Equal(t, splitTreeDump, dumpBytes(t, mgr))
}

func TestRestore_Errors(t *testing.T) {
	t.Parallel()

	deep := make([]byte, 0, testDeepChain*recordSize+testDeepChain+1)
	for idx := range testDeepChain {
		deep = appendRecord(deep, 1, uint32(2*idx), uint32(2*idx))
		deep = append(deep, endMarkByte)
	}

	deep = append(deep, endMarkByte)

	tests := []struct {
		name   string
		data   []byte
		target error
	}{
		{name: "empty input", data: nil, target: io.ErrUnexpectedEOF},
		{name: "truncated record", data: splitTreeDump[:4], target: io.ErrUnexpectedEOF},
		{name: "missing end mark", data: splitTreeDump[:len(splitTreeDump)-1], target: io.ErrUnexpectedEOF},
		{name: "bad balance tag", data: []byte{0x05}, target: ErrCorrupt},
		{
			name:   "wrong order",
			data:   append(appendRecord(appendRecord(nil, -1, 50, 60), 0, 70, 80), endMarkByte, endMarkByte, endMarkByte),
			target: ErrCorrupt,
		},
		{
			name:   "adjacent intervals",
			data:   append(appendRecord(append(appendRecord(nil, 1, 0, 9), endMarkByte), 0, 10, 20), endMarkByte, endMarkByte),
			target: ErrCorrupt,
		},
		{
			name:   "beyond limit",
			data:   append(appendRecord(nil, 0, 0, 200), endMarkByte, endMarkByte),
			target: ErrCorrupt,
		},
		{
			name:   "start after end",
			data:   append(appendRecord(nil, 0, 20, 10), endMarkByte, endMarkByte),
			target: ErrCorrupt,
		},
		{
			name:   "wrong balance",
			data:   append(appendRecord(nil, 1, 0, 10), endMarkByte, endMarkByte),
			target: ErrCorrupt,
		},
		{name: "too deep", data: deep, target: ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mgr := testNewManager(t)
			require.NoError(t, mgr.Erase(testID50))

			before := mgr.Intervals()
			live := mgr.PoolStats().Live

			err := mgr.Restore(bytes.NewReader(tt.data))
			require.ErrorIs(t, err, tt.target)

			assertIntervals(t, mgr, before...)
			assert.Equal(t, live, mgr.PoolStats().Live, "partially restored nodes must be retired")
		})
	}
}
