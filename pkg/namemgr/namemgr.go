// Package namemgr generates unique names of the form <prefix><number><suffix>.
//
// Numbers are handed out smallest first, and names registered from elsewhere
// are taken into account so that a generated name never collides with them.
package namemgr

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

// ErrExhausted is returned by NewName when every number is taken.
var ErrExhausted = errors.New("no name available")

// Manager hands out names backed by an interval manager of free numbers.
type Manager struct {
	ids     *itvl.Manager
	prefix  string
	suffix  string
	lastNum itvl.ID
}

// New creates a manager for names "<prefix><n><suffix>" with n in [0, itvl.MaxID].
func New(prefix, suffix string) *Manager {
	return NewWithLimit(prefix, suffix, itvl.MaxID)
}

// NewWithLimit creates a manager for names whose number lies in [0, limit].
func NewWithLimit(prefix, suffix string, limit itvl.ID) *Manager {
	return &Manager{ids: itvl.NewWithLimit(limit), prefix: prefix, suffix: suffix}
}

// Prefix returns the name prefix.
func (m *Manager) Prefix() string { return m.prefix }

// Suffix returns the name suffix.
func (m *Manager) Suffix() string { return m.suffix }

// LastNum returns the number of the last name generated by NewName.
func (m *Manager) LastNum() itvl.ID { return m.lastNum }

// Change switches to a new prefix and suffix. Every registration is dropped.
func (m *Manager) Change(prefix, suffix string) {
	m.Clear()
	m.prefix = prefix
	m.suffix = suffix
}

// Clear drops every registration.
func (m *Manager) Clear() {
	m.ids.Clear()
}

// NewName returns the name with the smallest free number. When register is
// true the name is registered and will not be returned again until erased.
func (m *Manager) NewName(register bool) (string, error) {
	d, ok := m.ids.AvailNum()
	if !ok {
		return "", ErrExhausted
	}

	if register {
		err := m.ids.Erase(d)
		if err != nil {
			return "", fmt.Errorf("register %d: %w", d, err)
		}
	}

	m.lastNum = d

	return m.format(d), nil
}

// Add registers name. Names not of the form <prefix><digits><suffix> are
// ignored and reported with ok=false. Registering a name twice fails with
// itvl.ErrNotAvailable.
func (m *Manager) Add(name string) (bool, error) {
	d, ok := m.Parse(name)
	if !ok {
		return false, nil
	}

	err := m.ids.Erase(d)
	if err != nil {
		return true, fmt.Errorf("add %q: %w", name, err)
	}

	return true, nil
}

// Erase unregisters name so that its number can be handed out again.
// Names not of the form <prefix><digits><suffix> are ignored and reported with
// ok=false. Erasing an unregistered name fails with itvl.ErrAlreadyAvailable.
func (m *Manager) Erase(name string) (bool, error) {
	d, ok := m.Parse(name)
	if !ok {
		return false, nil
	}

	err := m.ids.Add(d)
	if err != nil {
		return true, fmt.Errorf("erase %q: %w", name, err)
	}

	return true, nil
}

// Registered reports whether name is registered.
func (m *Manager) Registered(name string) bool {
	d, ok := m.Parse(name)

	return ok && !m.ids.Check(d, d)
}

// Parse extracts the number of a name of the form <prefix><digits><suffix>.
// At least one digit is required, and numbers above the limit are rejected.
func (m *Manager) Parse(name string) (itvl.ID, bool) {
	plen, slen := len(m.prefix), len(m.suffix)

	if plen+slen >= len(name) || name[:plen] != m.prefix || name[len(name)-slen:] != m.suffix {
		return 0, false
	}

	digits := name[plen : len(name)-slen]

	for idx := range len(digits) {
		if digits[idx] < '0' || digits[idx] > '9' {
			return 0, false
		}
	}

	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil || itvl.ID(n) > m.ids.Limit() {
		return 0, false
	}

	return itvl.ID(n), true
}

// Print writes the prefix, the suffix and the free number intervals.
func (m *Manager) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Prefix: '%s'\nSuffix: '%s'\n", m.prefix, m.suffix)
	if err != nil {
		return fmt.Errorf("print name manager: %w", err)
	}

	return m.ids.Print(w)
}

func (m *Manager) format(d itvl.ID) string {
	return m.prefix + strconv.FormatUint(uint64(d), 10) + m.suffix
}
