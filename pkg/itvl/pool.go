package itvl

import (
	"sync"

	"github.com/Sumatoshi-tech/idspan/pkg/safeconv"
)

// nilNode is the reserved index standing for "no node".
const nilNode uint32 = 0

// growCapacityNumerator and growCapacityDenominator define the 3/2 growth factor for storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// hibernatedColumns is the number of de-interleaved node columns kept while hibernated.
const hibernatedColumns = 5

type node struct {
	start, end  ID
	left, right uint32
	balance     int8 // Right subtree height minus left subtree height.
}

// PoolStats describes the node pool backing a Manager.
type PoolStats struct {
	// Allocated is the number of node slots ever handed out, excluding the reserved nil slot.
	Allocated int
	// Live is the number of slots currently holding tree nodes.
	Live int
	// Free is the number of retired slots waiting for reuse.
	Free int
	// Hibernated reports whether the pool is compressed.
	Hibernated bool
}

// pool is a free-list recycling allocator for tree nodes.
// Slot 0 is reserved so that a zero index means "no child".
type pool struct {
	storage []node
	free    []uint32

	hibernatedData    [hibernatedColumns + 1][]byte
	hibernatedLen     int
	hibernatedFreeLen int
}

func newPool() *pool {
	return &pool{storage: make([]node, 1), free: []uint32{}}
}

func (p *pool) nodes() []node {
	if p.storage == nil {
		panic("hibernated pools cannot be used")
	}

	return p.storage
}

// alloc returns the index of a node holding [start, end] with no children.
func (p *pool) alloc(start, end ID) uint32 {
	storage := p.nodes()

	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		storage[idx] = node{start: start, end: end}

		return idx
	}

	size := len(storage)
	if size == int(safeconv.MaxUint32) {
		panic("the interval node pool has reached the maximum value for uint32")
	}

	p.storage = append(storage, node{start: start, end: end})

	return safeconv.MustIntToUint32(size)
}

// release pushes a single node onto the free list. Its children are left alone.
func (p *pool) release(idx uint32) {
	storage := p.nodes()

	if idx == nilNode {
		panic("node #0 is special and cannot be released")
	}

	storage[idx] = node{}
	p.free = append(p.free, idx)
}

// retire releases the whole subtree rooted at idx.
func (p *pool) retire(idx uint32) {
	if idx == nilNode {
		return
	}

	storage := p.nodes()
	pending := []uint32{idx}

	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if left := storage[cur].left; left != nilNode {
			pending = append(pending, left)
		}

		if right := storage[cur].right; right != nilNode {
			pending = append(pending, right)
		}

		p.release(cur)
	}
}

func (p *pool) clone() *pool {
	storage := p.nodes()

	dup := &pool{
		storage: make([]node, len(storage), cap(storage)),
		free:    make([]uint32, len(p.free)),
	}
	copy(dup.storage, storage)
	copy(dup.free, p.free)

	return dup
}

func (p *pool) stats() PoolStats {
	if p.storage == nil {
		allocated := max(p.hibernatedLen-1, 0)

		return PoolStats{
			Allocated:  allocated,
			Live:       allocated - p.hibernatedFreeLen,
			Free:       p.hibernatedFreeLen,
			Hibernated: true,
		}
	}

	allocated := len(p.storage) - 1

	return PoolStats{Allocated: allocated, Live: allocated - len(p.free), Free: len(p.free)}
}

// hibernate compresses the arena. The pool cannot be used until boot is called.
func (p *pool) hibernate() {
	if p.storage == nil {
		panic("cannot hibernate an already hibernated pool")
	}

	p.hibernatedLen = len(p.storage)
	p.hibernatedFreeLen = len(p.free)

	columns := [hibernatedColumns][]uint32{}
	for idx := range columns {
		columns[idx] = make([]uint32, len(p.storage))
	}

	// We deinterleave to achieve a better compression ratio.
	for idx, nd := range p.storage {
		columns[0][idx] = uint32(nd.start)
		columns[1][idx] = uint32(nd.end)
		columns[2][idx] = nd.left
		columns[3][idx] = nd.right
		columns[4][idx] = uint32(uint8(nd.balance))
	}

	free := p.free
	p.storage = nil
	p.free = nil

	wg := &sync.WaitGroup{}
	wg.Add(len(columns) + 1)

	for idx, column := range columns {
		go func(colIdx int, col []uint32) {
			defer wg.Done()

			p.hibernatedData[colIdx] = compressColumn(col)
		}(idx, column)
	}

	go func() {
		defer wg.Done()

		p.hibernatedData[hibernatedColumns] = compressColumn(free)
	}()

	wg.Wait()
}

// boot performs the opposite of hibernate.
func (p *pool) boot() {
	if p.storage != nil {
		return
	}

	columns := [hibernatedColumns][]uint32{}
	free := make([]uint32, p.hibernatedFreeLen)

	wg := &sync.WaitGroup{}
	wg.Add(len(columns) + 1)

	for idx := range columns {
		go func(colIdx int) {
			defer wg.Done()

			columns[colIdx] = make([]uint32, p.hibernatedLen)
			decompressColumn(p.hibernatedData[colIdx], columns[colIdx])
		}(idx)
	}

	go func() {
		defer wg.Done()

		decompressColumn(p.hibernatedData[hibernatedColumns], free)
	}()

	wg.Wait()

	capSize := (p.hibernatedLen * growCapacityNumerator) / growCapacityDenominator
	storage := make([]node, p.hibernatedLen, max(capSize, 1))

	for idx := range storage {
		nd := &storage[idx]
		nd.start = ID(columns[0][idx])
		nd.end = ID(columns[1][idx])
		nd.left = columns[2][idx]
		nd.right = columns[3][idx]
		nd.balance = int8(uint8(columns[4][idx]))
	}

	p.storage = storage
	p.free = free
	p.hibernatedData = [hibernatedColumns + 1][]byte{}
	p.hibernatedLen = 0
	p.hibernatedFreeLen = 0
}
