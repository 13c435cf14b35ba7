// Package itvl tracks the set of available identifiers in [0, limit] as maximal,
// pairwise disjoint and non-adjacent intervals stored in an AVL tree.
//
// A new Manager has every identifier available. Erase marks identifiers used,
// Add makes them available again, and adjacent intervals are merged back as
// soon as they touch. Nodes live in an index-addressed arena and retired nodes
// are recycled through a free list, so heavy churn does not hit the allocator.
//
// A Manager is not safe for concurrent use; see Locked.
package itvl

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

// ID is an identifier tracked by a Manager.
type ID uint32

// MaxID is the default upper bound of the identifier space.
const MaxID ID = math.MaxUint32

// Sentinel errors returned by mutating operations. The manager is left
// unchanged whenever one of them is returned.
var (
	// ErrOutOfRange is returned when an identifier lies above the manager's limit.
	ErrOutOfRange = errors.New("identifier out of range")
	// ErrNotAvailable is returned by Erase when some identifiers are already used.
	ErrNotAvailable = errors.New("identifiers are not available")
	// ErrAlreadyAvailable is returned by Add when some identifiers are already available.
	ErrAlreadyAvailable = errors.New("identifiers are already available")
)

// Interval is a closed range [Start, End] of identifiers.
type Interval struct {
	Start ID `json:"start"`
	End   ID `json:"end"`
}

// Len returns the number of identifiers in the interval.
func (iv Interval) Len() uint64 {
	return uint64(iv.End) - uint64(iv.Start) + 1
}

// Contains reports whether d lies inside the interval.
func (iv Interval) Contains(d ID) bool {
	return iv.Start <= d && d <= iv.End
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d, %d]", iv.Start, iv.End)
}

// Manager is an interval-set manager of available identifiers.
type Manager struct {
	// Nodes allocator.
	pool *pool

	// Root of the tree.
	root uint32

	// Upper bound of the identifier space, inclusive.
	limit ID

	// Number of stored intervals.
	count int
}

// New creates a manager with [0, MaxID] available.
func New() *Manager {
	return NewWithLimit(MaxID)
}

// NewWithLimit creates a manager with [0, limit] available.
func NewWithLimit(limit ID) *Manager {
	mgr := &Manager{pool: newPool(), limit: limit}
	mgr.root = mgr.pool.alloc(0, limit)
	mgr.count = 1

	return mgr
}

func (m *Manager) nodes() []node {
	return m.pool.nodes()
}

// Limit returns the largest identifier the manager tracks.
func (m *Manager) Limit() ID {
	return m.limit
}

// Len returns the number of stored intervals.
func (m *Manager) Len() int {
	return m.count
}

// Clear makes every identifier available again.
func (m *Manager) Clear() {
	m.Reset(m.limit)
}

// Reset discards the tree and makes [0, limit] available.
func (m *Manager) Reset(limit ID) {
	m.pool.retire(m.root)
	m.limit = limit
	m.root = m.pool.alloc(0, limit)
	m.count = 1
}

// Clone returns a deep copy of the manager with its own node pool.
func (m *Manager) Clone() *Manager {
	return &Manager{pool: m.pool.clone(), root: m.root, limit: m.limit, count: m.count}
}

// AvailNum returns the smallest available identifier without changing the state.
// ok is false when no identifier is available.
func (m *Manager) AvailNum() (ID, bool) {
	idx := m.leftmost()
	if idx == nilNode {
		return 0, false
	}

	return m.nodes()[idx].start, true
}

// Check reports whether every identifier in [min(d1,d2), max(d1,d2)] is available.
func (m *Manager) Check(d1, d2 ID) bool {
	d1, d2 = ordered(d1, d2)

	idx := m.find(d1)
	if idx == nilNode {
		return false
	}

	return m.nodes()[idx].end >= d2
}

// MinID returns the smallest used identifier. ok is false when every identifier is available.
func (m *Manager) MinID() (ID, bool) {
	idx := m.leftmost()
	if idx == nilNode {
		return 0, true
	}

	cell := m.nodes()[idx]

	switch {
	case cell.start > 0:
		return 0, true
	case cell.end < m.limit:
		return cell.end + 1, true
	default:
		return 0, false
	}
}

// MaxID returns the largest used identifier. ok is false when every identifier is available.
func (m *Manager) MaxID() (ID, bool) {
	idx := m.rightmost()
	if idx == nilNode {
		return m.limit, true
	}

	cell := m.nodes()[idx]

	switch {
	case cell.end < m.limit:
		return m.limit, true
	case cell.start > 0:
		return cell.start - 1, true
	default:
		return 0, false
	}
}

// Erase marks d as used.
func (m *Manager) Erase(d ID) error {
	return m.EraseRange(d, d)
}

// EraseRange marks every identifier of [min(d1,d2), max(d1,d2)] as used.
// The whole range must be available and lie inside a single stored interval,
// which is the same thing since stored intervals are maximal.
func (m *Manager) EraseRange(d1, d2 ID) error {
	d1, d2 = ordered(d1, d2)

	if d2 > m.limit {
		return fmt.Errorf("%w: %d > %d", ErrOutOfRange, d2, m.limit)
	}

	idx := m.find(d1)
	if idx == nilNode || m.nodes()[idx].end < d2 {
		return fmt.Errorf("%w: %v", ErrNotAvailable, Interval{Start: d1, End: d2})
	}

	nodes := m.nodes()
	cell := &nodes[idx]

	switch {
	case cell.start == d1 && cell.end == d2:
		m.remove(idx)
	case cell.start == d1:
		cell.start = d2 + 1
	case cell.end == d2:
		cell.end = d1 - 1
	default:
		// Split: idx keeps the lower half, a new node takes the upper one.
		upper := cell.end
		cell.end = d1 - 1
		m.insert(d2+1, upper)
	}

	return nil
}

// Add marks d as available.
func (m *Manager) Add(d ID) error {
	return m.AddRange(d, d)
}

// AddRange marks every identifier of [min(d1,d2), max(d1,d2)] as available.
// None of them may be available already.
func (m *Manager) AddRange(d1, d2 ID) error {
	d1, d2 = ordered(d1, d2)

	if d2 > m.limit {
		return fmt.Errorf("%w: %d > %d", ErrOutOfRange, d2, m.limit)
	}

	if ceil := m.findCeil(d1); ceil != nilNode && m.nodes()[ceil].start <= d2 {
		return fmt.Errorf("%w: %v overlaps %v", ErrAlreadyAvailable,
			Interval{Start: d1, End: d2}, m.interval(ceil))
	}

	left := m.findLeft(d1)
	right := m.findRight(d2)
	nodes := m.nodes()

	leftAdjacent := left != nilNode && nodes[left].end+1 == d1
	rightAdjacent := right != nilNode && nodes[right].start-1 == d2

	switch {
	case leftAdjacent && rightAdjacent:
		upper := nodes[right].end
		m.remove(right)
		// Removing right may have moved left's contents into another node.
		left = m.findLeft(d1)
		m.nodes()[left].end = upper
	case leftAdjacent:
		nodes[left].end = d2
	case rightAdjacent:
		nodes[right].start = d1
	default:
		m.insert(d1, d2)
	}

	return nil
}

// Walk calls fn for every stored interval in ascending order until fn returns false.
func (m *Manager) Walk(fn func(Interval) bool) {
	nodes := m.nodes()
	stack := make([]uint32, 0, maxDepth)
	cur := m.root

	for cur != nilNode || len(stack) > 0 {
		for cur != nilNode {
			stack = append(stack, cur)
			cur = nodes[cur].left
		}

		cur = stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(Interval{Start: nodes[cur].start, End: nodes[cur].end}) {
			return
		}

		cur = nodes[cur].right
	}
}

// All returns an iterator over the stored intervals in ascending order.
func (m *Manager) All() iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		m.Walk(yield)
	}
}

// Intervals returns the stored intervals in ascending order.
func (m *Manager) Intervals() []Interval {
	result := make([]Interval, 0, m.count)

	m.Walk(func(iv Interval) bool {
		result = append(result, iv)

		return true
	})

	return result
}

// Stats summarises the manager and its node pool.
type Stats struct {
	Pool PoolStats
	// Available is the number of available identifiers.
	Available uint64
	// Intervals is the number of stored intervals.
	Intervals int
	// Height is the height of the tree; zero when empty.
	Height int
	// Limit is the upper bound of the identifier space.
	Limit ID
}

// Stats computes the current statistics. It walks the whole tree.
func (m *Manager) Stats() Stats {
	var available uint64

	m.Walk(func(iv Interval) bool {
		available += iv.Len()

		return true
	})

	return Stats{
		Pool:      m.pool.stats(),
		Available: available,
		Intervals: m.count,
		Height:    m.Height(),
		Limit:     m.limit,
	}
}

// PoolStats returns the node pool statistics. Safe to call while hibernated.
func (m *Manager) PoolStats() PoolStats {
	return m.pool.stats()
}

// Hibernate compresses the node pool. Every other method except PoolStats and
// Boot panics until Boot is called.
func (m *Manager) Hibernate() {
	m.pool.hibernate()
}

// Boot restores a hibernated node pool. It is a no-op otherwise.
func (m *Manager) Boot() {
	m.pool.boot()
}

func ordered(d1, d2 ID) (ID, ID) {
	if d1 > d2 {
		return d2, d1
	}

	return d1, d2
}

func (m *Manager) interval(idx uint32) Interval {
	cell := m.nodes()[idx]

	return Interval{Start: cell.start, End: cell.end}
}

func doAssert(condition bool) {
	if !condition {
		panic("itvl internal assertion failed")
	}
}
