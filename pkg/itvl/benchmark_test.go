package itvl_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

const (
	benchLimit = 1_000_000
	benchHoles = 100_000
)

// newFragmentedManager returns a manager with every tenth identifier used.
func newFragmentedManager(b *testing.B) *itvl.Manager {
	b.Helper()

	mgr := itvl.NewWithLimit(benchLimit)

	for idx := range benchHoles {
		err := mgr.Erase(itvl.ID(idx * 10))
		if err != nil {
			b.Fatal(err)
		}
	}

	return mgr
}

// BenchmarkAcquireRelease measures reserving and releasing the smallest free identifier.
func BenchmarkAcquireRelease(b *testing.B) {
	mgr := itvl.New()

	b.ResetTimer()

	for range b.N {
		d, _ := mgr.AvailNum()
		_ = mgr.Erase(d)
		_ = mgr.Add(d)
	}
}

// BenchmarkEraseAddFragmented measures splits and merges in a tree with many intervals.
func BenchmarkEraseAddFragmented(b *testing.B) {
	mgr := newFragmentedManager(b)
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic benchmark data.

	b.ResetTimer()

	for range b.N {
		d := itvl.ID(rng.Intn(benchHoles)*10 + 5)
		_ = mgr.Erase(d)
		_ = mgr.Add(d)
	}
}

// BenchmarkCheck measures lookups in a fragmented tree.
func BenchmarkCheck(b *testing.B) {
	mgr := newFragmentedManager(b)

	b.ResetTimer()

	for i := range b.N {
		mgr.Check(itvl.ID(i%benchLimit), itvl.ID(i%benchLimit))
	}
}

// BenchmarkDump measures serialising a fragmented tree.
func BenchmarkDump(b *testing.B) {
	mgr := newFragmentedManager(b)

	var buf bytes.Buffer

	b.ResetTimer()

	for range b.N {
		buf.Reset()

		err := mgr.Dump(&buf)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRestore measures rebuilding a fragmented tree from its dump.
func BenchmarkRestore(b *testing.B) {
	mgr := newFragmentedManager(b)

	var buf bytes.Buffer

	err := mgr.Dump(&buf)
	if err != nil {
		b.Fatal(err)
	}

	data := buf.Bytes()
	target := itvl.NewWithLimit(benchLimit)

	b.ResetTimer()

	for range b.N {
		err = target.Restore(bytes.NewReader(data))
		if err != nil {
			b.Fatal(err)
		}
	}
}
