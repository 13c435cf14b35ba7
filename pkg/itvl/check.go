package itvl

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Structural violations reported by Verify.
var (
	errBadInterval  = errors.New("interval start after end")
	errOutOfLimit   = errors.New("interval beyond limit")
	errBadOrder     = errors.New("intervals out of order or adjacent")
	errBadBalance   = errors.New("balance tag does not match subtree heights")
	errCountChanged = errors.New("interval count mismatch")
)

// SanityCheck panics if the tree breaks any structural invariant.
func (m *Manager) SanityCheck() {
	err := m.Verify()
	if err != nil {
		panic(fmt.Sprintf("itvl sanity check failed: %v", err))
	}
}

// Verify checks ordering, non-overlap, non-adjacency, limits and balance tags.
func (m *Manager) Verify() error {
	count, err := verifyTree(m.nodes(), m.root, m.limit)
	if err != nil {
		return err
	}

	if count != m.count {
		return fmt.Errorf("%w: %d stored, %d counted", errCountChanged, m.count, count)
	}

	return nil
}

// subtreeSummary is what verifySubtree learns about a subtree.
type subtreeSummary struct {
	low, high ID
	height    int
	count     int
}

func verifyTree(nodes []node, root uint32, limit ID) (int, error) {
	if root == nilNode {
		return 0, nil
	}

	summary, err := verifySubtree(nodes, root, limit)
	if err != nil {
		return 0, err
	}

	return summary.count, nil
}

func verifySubtree(nodes []node, idx uint32, limit ID) (subtreeSummary, error) {
	cell := nodes[idx]

	if cell.start > cell.end {
		return subtreeSummary{}, fmt.Errorf("%w: [%d, %d]", errBadInterval, cell.start, cell.end)
	}

	if cell.end > limit {
		return subtreeSummary{}, fmt.Errorf("%w: [%d, %d] > %d", errOutOfLimit, cell.start, cell.end, limit)
	}

	summary := subtreeSummary{low: cell.start, high: cell.end, count: 1}
	leftHeight, rightHeight := 0, 0

	if cell.left != nilNode {
		left, err := verifySubtree(nodes, cell.left, limit)
		if err != nil {
			return subtreeSummary{}, err
		}

		// left.high + 1 < start, written so that it cannot overflow.
		if left.high >= cell.start || cell.start-left.high < 2 {
			return subtreeSummary{}, fmt.Errorf("%w: %d then [%d, %d]", errBadOrder, left.high, cell.start, cell.end)
		}

		summary.low = left.low
		summary.count += left.count
		leftHeight = left.height
	}

	if cell.right != nilNode {
		right, err := verifySubtree(nodes, cell.right, limit)
		if err != nil {
			return subtreeSummary{}, err
		}

		if right.low <= cell.end || right.low-cell.end < 2 {
			return subtreeSummary{}, fmt.Errorf("%w: [%d, %d] then %d", errBadOrder, cell.start, cell.end, right.low)
		}

		summary.high = right.high
		summary.count += right.count
		rightHeight = right.height
	}

	if rightHeight-leftHeight != int(cell.balance) {
		return subtreeSummary{}, fmt.Errorf("%w: [%d, %d] tagged %d, heights %d/%d",
			errBadBalance, cell.start, cell.end, cell.balance, leftHeight, rightHeight)
	}

	summary.height = max(leftHeight, rightHeight) + 1

	return summary, nil
}

// Print writes the stored intervals in ascending order, one per line.
func (m *Manager) Print(w io.Writer) error {
	var err error

	m.Walk(func(iv Interval) bool {
		_, err = fmt.Fprintf(w, " %d - %d\n", iv.Start, iv.End)

		return err == nil
	})

	if err != nil {
		return fmt.Errorf("print intervals: %w", err)
	}

	return nil
}

// PrintTree writes the tree sideways, left subtree first, one node per line
// indented by depth. Each node is followed by its balance marker:
// ">" when the left subtree is taller, "=" when balanced, "<" otherwise.
func (m *Manager) PrintTree(w io.Writer) error {
	var sb strings.Builder

	m.WalkTree(func(nd Node) {
		sb.WriteString(strings.Repeat("    ", nd.Depth))
		fmt.Fprintf(&sb, " [%d - %d]%s\n", nd.Start, nd.End, BalanceMarker(nd.Balance))
	})

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("print tree: %w", err)
	}

	return nil
}

// Node is a tree node as reported by WalkTree.
type Node struct {
	Interval

	// Balance is the right subtree height minus the left subtree height.
	Balance int8
	// Depth is zero at the root.
	Depth int
}

// WalkTree calls fn for every node in ascending order, with its shape information.
func (m *Manager) WalkTree(fn func(Node)) {
	walkSubtree(m.nodes(), m.root, 0, fn)
}

func walkSubtree(nodes []node, idx uint32, depth int, fn func(Node)) {
	if idx == nilNode {
		return
	}

	cell := nodes[idx]

	walkSubtree(nodes, cell.left, depth+1, fn)
	fn(Node{Interval: Interval{Start: cell.start, End: cell.end}, Balance: cell.balance, Depth: depth})
	walkSubtree(nodes, cell.right, depth+1, fn)
}

// BalanceMarker returns the PrintTree marker of a balance tag.
func BalanceMarker(balance int8) string {
	switch balance {
	case -1:
		return ">"
	case 0:
		return "="
	default:
		return "<"
	}
}
