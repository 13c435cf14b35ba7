package itvl

import (
	"io"
	"sync"
)

// Locked serialises every call to a Manager behind a mutex. Reads are locked
// as well, since they walk nodes that a concurrent rebalance may be moving.
type Locked struct {
	mu  sync.Mutex
	mgr *Manager
}

// NewLocked wraps mgr. mgr must not be used directly afterwards.
func NewLocked(mgr *Manager) *Locked {
	return &Locked{mgr: mgr}
}

// Do runs fn with exclusive access to the underlying manager.
func (l *Locked) Do(fn func(*Manager) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return fn(l.mgr)
}

// Acquire reserves the smallest available identifier and returns it.
// ok is false when no identifier is available.
func (l *Locked) Acquire() (ID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.mgr.AvailNum()
	if !ok {
		return 0, false
	}

	doAssert(l.mgr.Erase(d) == nil)

	return d, true
}

// AvailNum is the locked form of Manager.AvailNum.
func (l *Locked) AvailNum() (ID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mgr.AvailNum()
}

// Check is the locked form of Manager.Check.
func (l *Locked) Check(d1, d2 ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mgr.Check(d1, d2)
}

// Erase is the locked form of Manager.Erase.
func (l *Locked) Erase(d ID) error {
	return l.EraseRange(d, d)
}

// EraseRange is the locked form of Manager.EraseRange.
func (l *Locked) EraseRange(d1, d2 ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mgr.EraseRange(d1, d2)
}

// Add is the locked form of Manager.Add.
func (l *Locked) Add(d ID) error {
	return l.AddRange(d, d)
}

// AddRange is the locked form of Manager.AddRange.
func (l *Locked) AddRange(d1, d2 ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mgr.AddRange(d1, d2)
}

// Dump is the locked form of Manager.Dump.
func (l *Locked) Dump(w io.Writer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mgr.Dump(w)
}

// Stats is the locked form of Manager.Stats.
func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mgr.Stats()
}
