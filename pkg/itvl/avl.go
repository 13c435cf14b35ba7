package itvl

// maxDepth bounds the height of any valid tree: an AVL tree with fewer than
// 2^32 nodes is at most 1.44*log2(2^32+2) levels deep.
const maxDepth = 64

// find returns the node whose interval contains d.
func (m *Manager) find(d ID) uint32 {
	nodes := m.nodes()
	cur := m.root

	for cur != nilNode {
		switch {
		case nodes[cur].start > d:
			cur = nodes[cur].left
		case nodes[cur].end < d:
			cur = nodes[cur].right
		default:
			return cur
		}
	}

	return nilNode
}

// findLeft returns the rightmost node lying entirely below d.
func (m *Manager) findLeft(d ID) uint32 {
	nodes := m.nodes()
	best := nilNode

	for cur := m.root; cur != nilNode; {
		if nodes[cur].end < d {
			best = cur
			cur = nodes[cur].right
		} else {
			cur = nodes[cur].left
		}
	}

	return best
}

// findRight returns the leftmost node lying entirely above d.
func (m *Manager) findRight(d ID) uint32 {
	nodes := m.nodes()
	best := nilNode

	for cur := m.root; cur != nilNode; {
		if nodes[cur].start > d {
			best = cur
			cur = nodes[cur].left
		} else {
			cur = nodes[cur].right
		}
	}

	return best
}

// findCeil returns the leftmost node that does not lie entirely below d.
func (m *Manager) findCeil(d ID) uint32 {
	nodes := m.nodes()
	best := nilNode

	for cur := m.root; cur != nilNode; {
		if nodes[cur].end >= d {
			best = cur
			cur = nodes[cur].left
		} else {
			cur = nodes[cur].right
		}
	}

	return best
}

func (m *Manager) leftmost() uint32 {
	nodes := m.nodes()
	cur := m.root

	if cur == nilNode {
		return nilNode
	}

	for nodes[cur].left != nilNode {
		cur = nodes[cur].left
	}

	return cur
}

func (m *Manager) rightmost() uint32 {
	nodes := m.nodes()
	cur := m.root

	if cur == nilNode {
		return nilNode
	}

	for nodes[cur].right != nilNode {
		cur = nodes[cur].right
	}

	return cur
}

// Height returns the height of the tree; zero when no interval is stored.
func (m *Manager) Height() int {
	return subtreeHeight(m.nodes(), m.root)
}

func subtreeHeight(nodes []node, idx uint32) int {
	height := 0

	// The balance tags tell which side is taller, so one descent suffices.
	for idx != nilNode {
		height++

		if nodes[idx].balance > 0 {
			idx = nodes[idx].right
		} else {
			idx = nodes[idx].left
		}
	}

	return height
}

// insert stores a new interval [start, end]; it must not touch any stored interval.
func (m *Manager) insert(start, end ID) {
	cell := m.pool.alloc(start, end)
	m.root, _ = m.insertNode(m.root, cell)
	m.count++
}

// insertNode adds cell under the subtree rooted at ptr.
// It returns the new subtree root and whether the subtree got taller.
func (m *Manager) insertNode(ptr, cell uint32) (uint32, bool) {
	nodes := m.nodes()

	if ptr == nilNode {
		nodes[cell].balance = 0

		return cell, true
	}

	switch {
	case nodes[cell].end < nodes[ptr].start:
		child, grew := m.insertNode(nodes[ptr].left, cell)
		nodes[ptr].left = child

		if !grew {
			return ptr, false
		}

		return m.leftGrew(ptr)
	case nodes[ptr].end < nodes[cell].start:
		child, grew := m.insertNode(nodes[ptr].right, cell)
		nodes[ptr].right = child

		if !grew {
			return ptr, false
		}

		return m.rightGrew(ptr)
	default:
		panic("itvl: overlapping interval inserted")
	}
}

// leftGrew rebalances ptr after its left subtree got taller on insertion.
func (m *Manager) leftGrew(ptr uint32) (uint32, bool) {
	nodes := m.nodes()

	switch nodes[ptr].balance {
	case 1:
		nodes[ptr].balance = 0

		return ptr, false
	case 0:
		nodes[ptr].balance = -1

		return ptr, true
	}

	left := nodes[ptr].left

	if nodes[left].balance == -1 {
		// LL.
		ptr = m.rotateRight(ptr)
		nodes[nodes[ptr].right].balance = 0
	} else {
		// LR.
		pivot := nodes[left].right
		nodes[ptr].left = m.rotateLeft(left)
		root := m.rotateRight(ptr)
		doAssert(root == pivot)

		nodes[ptr].balance = 0
		if nodes[pivot].balance == -1 {
			nodes[ptr].balance = 1
		}

		nodes[left].balance = 0
		if nodes[pivot].balance == 1 {
			nodes[left].balance = -1
		}

		ptr = pivot
	}

	nodes[ptr].balance = 0

	return ptr, false
}

// rightGrew rebalances ptr after its right subtree got taller on insertion.
func (m *Manager) rightGrew(ptr uint32) (uint32, bool) {
	nodes := m.nodes()

	switch nodes[ptr].balance {
	case -1:
		nodes[ptr].balance = 0

		return ptr, false
	case 0:
		nodes[ptr].balance = 1

		return ptr, true
	}

	right := nodes[ptr].right

	if nodes[right].balance == 1 {
		// RR.
		ptr = m.rotateLeft(ptr)
		nodes[nodes[ptr].left].balance = 0
	} else {
		// RL.
		pivot := nodes[right].left
		nodes[ptr].right = m.rotateRight(right)
		root := m.rotateLeft(ptr)
		doAssert(root == pivot)

		nodes[ptr].balance = 0
		if nodes[pivot].balance == 1 {
			nodes[ptr].balance = -1
		}

		nodes[right].balance = 0
		if nodes[pivot].balance == -1 {
			nodes[right].balance = 1
		}

		ptr = pivot
	}

	nodes[ptr].balance = 0

	return ptr, false
}

// remove deletes the node at idx from the tree.
func (m *Manager) remove(idx uint32) {
	m.root, _ = m.removeNode(idx, m.root)
	m.count--
}

// removeNode deletes target from the subtree rooted at ptr.
// It returns the new subtree root and whether the subtree got shorter.
func (m *Manager) removeNode(target, ptr uint32) (uint32, bool) {
	doAssert(ptr != nilNode)

	nodes := m.nodes()

	switch {
	case nodes[target].end < nodes[ptr].start:
		child, shrank := m.removeNode(target, nodes[ptr].left)
		nodes[ptr].left = child

		if !shrank {
			return ptr, false
		}

		return m.leftShrank(ptr)
	case nodes[ptr].end < nodes[target].start:
		child, shrank := m.removeNode(target, nodes[ptr].right)
		nodes[ptr].right = child

		if !shrank {
			return ptr, false
		}

		return m.rightShrank(ptr)
	}

	// Overlapping intervals in a valid tree are the same node.
	doAssert(ptr == target)

	switch {
	case nodes[ptr].left == nilNode:
		next := nodes[ptr].right
		m.pool.release(ptr)

		return next, true
	case nodes[ptr].right == nilNode:
		next := nodes[ptr].left
		m.pool.release(ptr)

		return next, true
	}

	// Two children: take over the rightmost interval of the left subtree.
	child, shrank := m.removeRightmost(ptr, nodes[ptr].left)
	nodes[ptr].left = child

	if !shrank {
		return ptr, false
	}

	return m.leftShrank(ptr)
}

// removeRightmost copies the rightmost interval under ptr into target and
// releases the node that held it.
func (m *Manager) removeRightmost(target, ptr uint32) (uint32, bool) {
	nodes := m.nodes()

	if nodes[ptr].right != nilNode {
		child, shrank := m.removeRightmost(target, nodes[ptr].right)
		nodes[ptr].right = child

		if !shrank {
			return ptr, false
		}

		return m.rightShrank(ptr)
	}

	nodes[target].start = nodes[ptr].start
	nodes[target].end = nodes[ptr].end

	next := nodes[ptr].left
	m.pool.release(ptr)

	return next, true
}

// leftShrank rebalances ptr after its left subtree got shorter on removal.
// It reports whether ptr's subtree got shorter as well.
func (m *Manager) leftShrank(ptr uint32) (uint32, bool) {
	nodes := m.nodes()

	switch nodes[ptr].balance {
	case -1:
		nodes[ptr].balance = 0

		return ptr, true
	case 0:
		nodes[ptr].balance = 1

		return ptr, false
	}

	right := nodes[ptr].right
	rightBalance := nodes[right].balance

	if rightBalance >= 0 {
		// RR.
		root := m.rotateLeft(ptr)

		if rightBalance == 0 {
			nodes[ptr].balance = 1
			nodes[root].balance = -1

			return root, false
		}

		nodes[ptr].balance = 0
		nodes[root].balance = 0

		return root, true
	}

	// RL.
	pivot := nodes[right].left
	pivotBalance := nodes[pivot].balance
	nodes[ptr].right = m.rotateRight(right)
	root := m.rotateLeft(ptr)
	doAssert(root == pivot)

	nodes[ptr].balance = 0
	if pivotBalance == 1 {
		nodes[ptr].balance = -1
	}

	nodes[right].balance = 0
	if pivotBalance == -1 {
		nodes[right].balance = 1
	}

	nodes[pivot].balance = 0

	return pivot, true
}

// rightShrank rebalances ptr after its right subtree got shorter on removal.
// It reports whether ptr's subtree got shorter as well.
func (m *Manager) rightShrank(ptr uint32) (uint32, bool) {
	nodes := m.nodes()

	switch nodes[ptr].balance {
	case 1:
		nodes[ptr].balance = 0

		return ptr, true
	case 0:
		nodes[ptr].balance = -1

		return ptr, false
	}

	left := nodes[ptr].left
	leftBalance := nodes[left].balance

	if leftBalance <= 0 {
		// LL.
		root := m.rotateRight(ptr)

		if leftBalance == 0 {
			nodes[ptr].balance = -1
			nodes[root].balance = 1

			return root, false
		}

		nodes[ptr].balance = 0
		nodes[root].balance = 0

		return root, true
	}

	// LR.
	pivot := nodes[left].right
	pivotBalance := nodes[pivot].balance
	nodes[ptr].left = m.rotateLeft(left)
	root := m.rotateRight(ptr)
	doAssert(root == pivot)

	nodes[ptr].balance = 0
	if pivotBalance == -1 {
		nodes[ptr].balance = 1
	}

	nodes[left].balance = 0
	if pivotBalance == 1 {
		nodes[left].balance = -1
	}

	nodes[pivot].balance = 0

	return pivot, true
}

// rotateLeft lifts the right child of pivot and returns it as the new subtree root.
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Balance tags are left to the caller.
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (m *Manager) rotateLeft(pivot uint32) uint32 {
	nodes := m.nodes()
	child := nodes[pivot].right
	nodes[pivot].right = nodes[child].left
	nodes[child].left = pivot

	return child
}

// rotateRight lifts the left child of pivot and returns it as the new subtree root.
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (m *Manager) rotateRight(pivot uint32) uint32 {
	nodes := m.nodes()
	child := nodes[pivot].left
	nodes[pivot].left = nodes[child].right
	nodes[child].right = pivot

	return child
}
