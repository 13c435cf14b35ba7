// bench-hibernation measures heap memory before and after Hibernate() calls
// on interval managers fragmented by random reservations.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --managers 64 --holes 50000 --rounds 4 \
//	  --profile-dir docs/profiles/hibernation
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	heapIdle  uint64
}

func main() {
	managerCount := flag.Int("managers", 64, "Number of managers kept alive")
	holes := flag.Int("holes", 50000, "Random reservations per manager and round")
	rounds := flag.Int("rounds", 4, "Fragment, hibernate and boot rounds")
	seed := flag.Uint64("seed", 1, "Random seed")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles (optional)")

	flag.Parse()

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))

	managers := make([]*itvl.Manager, *managerCount)
	for i := range managers {
		managers[i] = itvl.New()
	}

	var snapshots []heapSnapshot

	takeSnapshot := func(label string) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			heapIdle:  m.HeapIdle,
		})
		log.Printf("  [heap] %-36s inuse=%9s  sys=%9s  idle=%9s",
			label, humanize.Bytes(m.HeapInuse), humanize.Bytes(m.HeapSys), humanize.Bytes(m.HeapIdle))
	}

	writeHeapProfile := func(name string) {
		if *profileDir == "" {
			return
		}

		runtime.GC()

		path := filepath.Join(*profileDir, name)

		f, ferr := os.Create(path)
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", path, ferr)

			return
		}
		defer f.Close()

		if perr := pprof.WriteHeapProfile(f); perr != nil {
			log.Printf("warning: write heap profile %s: %v", path, perr)
		}
	}

	takeSnapshot("before_fragmenting")

	for round := 1; round <= *rounds; round++ {
		for _, mgr := range managers {
			fragment(mgr, rng, *holes)
		}

		log.Printf("round %d/%d: %d intervals per manager", round, *rounds, managers[0].Len())

		takeSnapshot(fmt.Sprintf("round_%d_before_hibernate", round))
		writeHeapProfile(fmt.Sprintf("heap_round_%d_before_hibernate.prof", round))

		for _, mgr := range managers {
			mgr.Hibernate()
		}

		takeSnapshot(fmt.Sprintf("round_%d_after_hibernate", round))
		writeHeapProfile(fmt.Sprintf("heap_round_%d_after_hibernate.prof", round))

		for _, mgr := range managers {
			mgr.Boot()
			mgr.SanityCheck()
		}

		takeSnapshot(fmt.Sprintf("round_%d_after_boot", round))
	}

	fmt.Println()
	fmt.Println("=== Heap Memory Timeline ===")
	fmt.Printf("%-40s %10s %10s %10s\n", "Phase", "InUse", "Sys", "Idle")
	fmt.Println("----------------------------------------+----------+----------+----------")

	for _, s := range snapshots {
		fmt.Printf("%-40s %10s %10s %10s\n",
			s.label, humanize.Bytes(s.heapInUse), humanize.Bytes(s.heapSys), humanize.Bytes(s.heapIdle))
	}

	fmt.Println()
	fmt.Println("=== Hibernation Memory Deltas ===")

	for i := 0; i+1 < len(snapshots); i++ {
		curr := snapshots[i]
		next := snapshots[i+1]

		if strings.HasSuffix(curr.label, "before_hibernate") && strings.HasSuffix(next.label, "after_hibernate") {
			delta := float64(curr.heapInUse) - float64(next.heapInUse)
			pct := (delta / float64(curr.heapInUse)) * 100
			fmt.Printf("  %s -> %s: %.1f MB freed (%.1f%%)\n",
				curr.label, next.label, delta/1e6, pct)
		}
	}
}

// fragment reserves random single identifiers, skipping those already taken.
func fragment(mgr *itvl.Manager, rng *rand.Rand, holes int) {
	for range holes {
		d := itvl.ID(rng.Uint32())
		if mgr.Check(d, d) {
			if err := mgr.Erase(d); err != nil {
				log.Fatalf("erase %d: %v", d, err)
			}
		}
	}
}
