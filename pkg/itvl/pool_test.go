package itvl //nolint:testpackage // tests exercise the unexported pool and column codec.

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testColumnLen   = 1000
	testColumnValue = 7
)

func TestCompressColumn_Repetitive(t *testing.T) {
	t.Parallel()

	data := make([]uint32, testColumnLen)
	for idx := range data {
		data[idx] = testColumnValue
	}

	packed := compressColumn(data)
	assert.Less(t, len(packed), testColumnLen*uint32ByteSize)

	restored := make([]uint32, testColumnLen)
	decompressColumn(packed, restored)
	assert.Equal(t, data, restored)
}

func TestCompressColumn_Incompressible(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(testRandomSeed)) //nolint:gosec // deterministic test data.

	data := make([]uint32, testColumnLen)
	for idx := range data {
		data[idx] = rng.Uint32()
	}

	packed := compressColumn(data)
	assert.Len(t, packed, testColumnLen*uint32ByteSize, "random data is stored raw")

	restored := make([]uint32, testColumnLen)
	decompressColumn(packed, restored)
	assert.Equal(t, data, restored)
}

func TestCompressColumn_Empty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, compressColumn(nil))
	decompressColumn(nil, nil)
}

func TestPool_AllocRelease(t *testing.T) {
	t.Parallel()

	p := newPool()
	first := p.alloc(1, 2)
	second := p.alloc(3, 4)

	assert.Equal(t, uint32(1), first)
	assert.Equal(t, uint32(2), second)

	p.release(first)
	assert.Equal(t, PoolStats{Allocated: 2, Live: 1, Free: 1}, p.stats())
	assert.Equal(t, node{}, p.nodes()[first])

	assert.Equal(t, first, p.alloc(5, 6))
	assert.Equal(t, node{start: 5, end: 6}, p.nodes()[first])

	assert.PanicsWithValue(t, "node #0 is special and cannot be released", func() {
		p.release(nilNode)
	})
}

func TestPool_RetireSubtree(t *testing.T) {
	t.Parallel()

	p := newPool()
	root := p.alloc(10, 10)
	left := p.alloc(0, 0)
	right := p.alloc(20, 20)
	grand := p.alloc(30, 30)

	nodes := p.nodes()
	nodes[root].left = left
	nodes[root].right = right
	nodes[right].right = grand

	p.retire(root)
	assert.Equal(t, PoolStats{Allocated: 4, Live: 0, Free: 4}, p.stats())

	p.retire(nilNode)
	assert.Equal(t, 4, p.stats().Free)
}

func TestPool_HibernateTwicePanics(t *testing.T) {
	t.Parallel()

	p := newPool()
	p.alloc(0, 1)
	p.hibernate()

	assert.PanicsWithValue(t, "cannot hibernate an already hibernated pool", p.hibernate)

	p.boot()
	assert.Equal(t, node{start: 0, end: 1}, p.nodes()[1])
}

func TestPool_HibernateKeepsNegativeBalance(t *testing.T) {
	t.Parallel()

	p := newPool()
	idx := p.alloc(0, 1)
	p.nodes()[idx].balance = -1

	p.hibernate()
	p.boot()

	assert.Equal(t, int8(-1), p.nodes()[idx].balance)
}
