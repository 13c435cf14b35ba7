// Package store keeps a named interval state on disk and applies operations
// to it as load, mutate, save transactions.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
	"github.com/Sumatoshi-tech/idspan/pkg/observability"
	"github.com/Sumatoshi-tech/idspan/pkg/persist"
)

// MetadataVersion is the current metadata format version.
const MetadataVersion = 1

// Sentinel errors for store operations.
var (
	ErrNotInitialized     = errors.New("state not initialized")
	ErrAlreadyInitialized = errors.New("state already initialized")
	ErrVersionMismatch    = errors.New("metadata version mismatch")
	ErrCodecMismatch      = errors.New("codec mismatch")
	ErrChecksumMismatch   = errors.New("state checksum mismatch")
)

const (
	dirPerm      = 0o750
	filePerm     = 0o600
	metaSuffix   = ".meta.json"
	spanPrefix   = "idspan.store."
	attrState    = "idspan.state"
	attrCodec    = "idspan.codec"
	opInit       = "init"
	opLoad       = "load"
	opRemove     = "remove"
	metaIndent   = "  "
	metaTimeForm = time.RFC3339
)

// Metadata describes the state file it sits next to.
type Metadata struct {
	Version   int     `json:"version"`
	Codec     string  `json:"codec"`
	Limit     itvl.ID `json:"limit"`
	Intervals int     `json:"intervals"`
	Available uint64  `json:"available"`
	Checksum  string  `json:"checksum"`
	UpdatedAt string  `json:"updated_at"`
}

// Options configure a Store. Zero Logger, Tracer and Metrics fall back to
// slog.Default, a no-op tracer and no metrics.
type Options struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.OpMetrics
	Dir     string
	Name    string
	Codec   string
	Limit   itvl.ID
}

// Store owns the state and metadata files of one named interval state.
type Store struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *observability.OpMetrics
	persister *persist.Persister
	dir       string
	name      string
	codecName string
	limit     itvl.ID
}

// New creates a store. No file is touched until the first operation.
func New(opts Options) (*Store, error) {
	codec, err := persist.CodecByName(opts.Codec)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	return &Store{
		logger:    logger,
		tracer:    tracer,
		metrics:   opts.Metrics,
		persister: persist.NewPersister(opts.Dir, opts.Name, codec),
		dir:       opts.Dir,
		name:      opts.Name,
		codecName: opts.Codec,
		limit:     opts.Limit,
	}, nil
}

// StatePath returns the path of the state file.
func (s *Store) StatePath() string {
	return s.persister.Path()
}

// MetadataPath returns the path of the metadata file.
func (s *Store) MetadataPath() string {
	return filepath.Join(s.dir, s.name+metaSuffix)
}

// Exists reports whether the state has been initialized.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.MetadataPath())

	return err == nil
}

// Init creates a fresh state with every identifier up to the configured limit
// available. An existing state is kept unless force is set.
func (s *Store) Init(ctx context.Context, force bool) (*itvl.Manager, error) {
	var mgr *itvl.Manager

	err := s.run(ctx, opInit, func(context.Context) error {
		if !force && s.Exists() {
			return fmt.Errorf("%w: %s", ErrAlreadyInitialized, s.MetadataPath())
		}

		mkdirErr := os.MkdirAll(s.dir, dirPerm)
		if mkdirErr != nil {
			return fmt.Errorf("create state dir: %w", mkdirErr)
		}

		mgr = itvl.NewWithLimit(s.limit)

		return s.save(mgr)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "state initialized",
		"name", s.name, "codec", s.codecName, "limit", s.limit, "path", s.StatePath())

	return mgr, nil
}

// Load reads the state. The identifier limit is taken from the metadata.
func (s *Store) Load(ctx context.Context) (*itvl.Manager, error) {
	var mgr *itvl.Manager

	err := s.run(ctx, opLoad, func(context.Context) error {
		var loadErr error

		mgr, _, loadErr = s.load()

		return loadErr
	})
	if err != nil {
		return nil, err
	}

	return mgr, nil
}

// View loads the state and passes it to fn. Nothing is written back.
func (s *Store) View(ctx context.Context, op string, fn func(*itvl.Manager) error) error {
	return s.run(ctx, op, func(context.Context) error {
		mgr, _, err := s.load()
		if err != nil {
			return err
		}

		return fn(mgr)
	})
}

// Update loads the state, applies fn and saves the result. The files are left
// untouched when fn fails.
func (s *Store) Update(ctx context.Context, op string, fn func(*itvl.Manager) error) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		mgr, _, err := s.load()
		if err != nil {
			return err
		}

		err = fn(mgr)
		if err != nil {
			return err
		}

		err = s.save(mgr)
		if err != nil {
			return err
		}

		s.logger.DebugContext(ctx, "state updated", "name", s.name, "op", op, "intervals", mgr.Len())

		return nil
	})
}

// Remove deletes the state and metadata files. A missing state is not an error.
func (s *Store) Remove(ctx context.Context) error {
	err := s.run(ctx, opRemove, func(context.Context) error {
		err := s.persister.Remove()
		if err != nil {
			return err
		}

		err = os.Remove(s.MetadataPath())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove metadata: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "state removed", "name", s.name)

	return nil
}

// LoadMetadata reads the metadata file.
func (s *Store) LoadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(s.MetadataPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotInitialized, s.MetadataPath())
		}

		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta Metadata

	unmarshalErr := json.Unmarshal(data, &meta)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", unmarshalErr)
	}

	return &meta, nil
}

// run wraps fn in a span and records its outcome.
func (s *Store) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, spanPrefix+op, trace.WithAttributes(
		attribute.String(attrState, s.name),
		attribute.String(attrCodec, s.codecName),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	s.metrics.Record(ctx, op, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (s *Store) load() (*itvl.Manager, *Metadata, error) {
	meta, err := s.LoadMetadata()
	if err != nil {
		return nil, nil, err
	}

	if meta.Version != MetadataVersion {
		return nil, nil, fmt.Errorf("%w: file has %d, want %d", ErrVersionMismatch, meta.Version, MetadataVersion)
	}

	if meta.Codec != s.codecName {
		return nil, nil, fmt.Errorf("%w: state written as %q, opened as %q", ErrCodecMismatch, meta.Codec, s.codecName)
	}

	data, err := os.ReadFile(s.StatePath())
	if err != nil {
		return nil, nil, fmt.Errorf("read state file: %w", err)
	}

	if sum := checksum(data); sum != meta.Checksum {
		return nil, nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, s.StatePath())
	}

	mgr := itvl.NewWithLimit(meta.Limit)

	err = s.persister.Codec().Decode(bytes.NewReader(data), mgr)
	if err != nil {
		return nil, nil, fmt.Errorf("decode state: %w", err)
	}

	return mgr, meta, nil
}

// save writes the state file first and the metadata second. The metadata
// carries the state checksum, so a crash between the two is detected on load.
func (s *Store) save(mgr *itvl.Manager) error {
	err := s.persister.Save(mgr)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(s.StatePath())
	if err != nil {
		return fmt.Errorf("read back state file: %w", err)
	}

	stats := mgr.Stats()

	meta := Metadata{
		Version:   MetadataVersion,
		Codec:     s.codecName,
		Limit:     mgr.Limit(),
		Intervals: stats.Intervals,
		Available: stats.Available,
		Checksum:  checksum(data),
		UpdatedAt: time.Now().UTC().Format(metaTimeForm),
	}

	metaData, err := json.MarshalIndent(meta, "", metaIndent)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	writeErr := os.WriteFile(s.MetadataPath(), metaData, filePerm)
	if writeErr != nil {
		return fmt.Errorf("write metadata: %w", writeErr)
	}

	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}
