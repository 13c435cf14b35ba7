package itvl

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// EndMark is the balance tag standing for an absent subtree in a dump.
const EndMark int8 = -128

// endMarkByte is EndMark as written to the stream.
const endMarkByte byte = 0x80

// recordSize is the size of a node record: balance tag, start and end.
const recordSize = 1 + 2*uint32ByteSize

// ErrCorrupt is returned by Restore when the input does not describe a valid tree.
var ErrCorrupt = errors.New("corrupt interval dump")

// Dump writes the tree in pre-order. Each node is written as its balance tag
// (one signed byte) followed by start and end as little-endian uint32-s; an
// absent child is the single byte EndMark. A tree without intervals is a lone EndMark.
func (m *Manager) Dump(w io.Writer) error {
	nodes := m.nodes()
	bw := bufio.NewWriter(w)
	record := make([]byte, 0, recordSize)
	stack := make([]uint32, 1, maxDepth)
	stack[0] = m.root

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		record = record[:0]

		if idx == nilNode {
			record = append(record, endMarkByte)
		} else {
			cell := nodes[idx]
			record = append(record, byte(cell.balance))
			record = binary.LittleEndian.AppendUint32(record, uint32(cell.start))
			record = binary.LittleEndian.AppendUint32(record, uint32(cell.end))
			// Right goes first so that the left subtree is written first.
			stack = append(stack, cell.right, cell.left)
		}

		_, err := bw.Write(record)
		if err != nil {
			return fmt.Errorf("write node record: %w", err)
		}
	}

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("flush dump: %w", err)
	}

	return nil
}

// restoreSlot is a child link waiting to be filled while restoring.
type restoreSlot struct {
	parent uint32
	depth  int
	right  bool
}

// Restore replaces the tree with one previously written by Dump. The input is
// consumed up to the end of the tree; when r is not an io.ByteReader it is
// buffered and may be read past that point. The manager keeps its limit and is
// left unchanged on error.
func (m *Manager) Restore(r io.Reader) error {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	root, err := m.restoreTree(br)
	if err != nil {
		m.pool.retire(root)

		return err
	}

	count, err := verifyTree(m.nodes(), root, m.limit)
	if err != nil {
		m.pool.retire(root)

		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	m.pool.retire(m.root)
	m.root = root
	m.count = count

	return nil
}

// restoreTree builds the nodes and returns the root even on error, so that the
// caller can retire whatever was built.
func (m *Manager) restoreTree(br io.ByteReader) (uint32, error) {
	var (
		root    = nilNode
		payload [2 * uint32ByteSize]byte
	)

	stack := []restoreSlot{{parent: nilNode}}

	for len(stack) > 0 {
		slot := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tag, err := br.ReadByte()
		if err != nil {
			return root, fmt.Errorf("read balance tag: %w", eofIsUnexpected(err))
		}

		balance := int8(tag)
		if balance == EndMark {
			continue
		}

		if balance < -1 || balance > 1 {
			return root, fmt.Errorf("%w: balance tag %d", ErrCorrupt, balance)
		}

		if slot.depth >= maxDepth {
			return root, fmt.Errorf("%w: tree deeper than %d", ErrCorrupt, maxDepth)
		}

		for idx := range payload {
			payload[idx], err = br.ReadByte()
			if err != nil {
				return root, fmt.Errorf("read interval: %w", eofIsUnexpected(err))
			}
		}

		start := ID(binary.LittleEndian.Uint32(payload[:uint32ByteSize]))
		end := ID(binary.LittleEndian.Uint32(payload[uint32ByteSize:]))

		idx := m.pool.alloc(start, end)
		nodes := m.nodes()
		nodes[idx].balance = balance

		switch {
		case slot.parent == nilNode:
			root = idx
		case slot.right:
			nodes[slot.parent].right = idx
		default:
			nodes[slot.parent].left = idx
		}

		stack = append(stack,
			restoreSlot{parent: idx, depth: slot.depth + 1, right: true},
			restoreSlot{parent: idx, depth: slot.depth + 1, right: false},
		)
	}

	return root, nil
}

func eofIsUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err
}
