package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

// Persister handles I/O for one named state file using a Codec.
type Persister struct {
	dir      string
	basename string
	codec    Codec
}

// NewPersister creates a persister for basename in dir with the given codec.
func NewPersister(dir, basename string, codec Codec) *Persister {
	return &Persister{
		dir:      dir,
		basename: basename,
		codec:    codec,
	}
}

// Path returns the state file path.
func (p *Persister) Path() string {
	return StatePath(p.dir, p.basename, p.codec)
}

// Codec returns the persister's codec.
func (p *Persister) Codec() Codec {
	return p.codec
}

// Exists reports whether the state file is present.
func (p *Persister) Exists() bool {
	_, err := os.Stat(p.Path())

	return err == nil
}

// Save writes the manager to the state file.
func (p *Persister) Save(mgr *itvl.Manager) error {
	return SaveState(p.dir, p.basename, p.codec, mgr)
}

// Load replaces the manager with the state file contents.
func (p *Persister) Load(mgr *itvl.Manager) error {
	return LoadState(p.dir, p.basename, p.codec, mgr)
}

// Remove deletes the state file. A missing file is not an error.
func (p *Persister) Remove() error {
	err := os.Remove(p.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}

	return nil
}
