// Package persist saves and loads interval managers through pluggable file codecs.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

// File extensions for supported codecs.
const (
	rawExtension  = ".itvl"
	lz4Extension  = ".itvl.lz4"
	jsonExtension = ".json"
)

// Codec names accepted by CodecByName.
const (
	CodecRaw  = "raw"
	CodecLZ4  = "lz4"
	CodecJSON = "json"
)

// Default indentation for pretty-printed JSON.
const defaultIndent = "  "

// File permissions for state files.
const filePerm = 0o600

// tmpSuffix marks a state file that is still being written.
const tmpSuffix = ".tmp"

// ErrUnknownCodec is returned by CodecByName for an unsupported name.
var ErrUnknownCodec = errors.New("unknown codec")

// Codec defines how a manager is serialized and deserialized.
type Codec interface {
	// Encode writes the manager to the writer.
	Encode(w io.Writer, mgr *itvl.Manager) error
	// Decode replaces the manager with the state read from the reader.
	// The manager is left unchanged on error.
	Decode(r io.Reader, mgr *itvl.Manager) error
	// Extension returns the file extension for this codec (e.g., ".itvl", ".json").
	Extension() string
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case CodecRaw:
		return NewRawCodec(), nil
	case CodecLZ4:
		return NewLZ4Codec(), nil
	case CodecJSON:
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// RawCodec writes the binary tree dump as is.
type RawCodec struct{}

// NewRawCodec creates a raw dump codec.
func NewRawCodec() *RawCodec {
	return &RawCodec{}
}

// Encode implements Codec.Encode using Manager.Dump.
func (c *RawCodec) Encode(w io.Writer, mgr *itvl.Manager) error {
	err := mgr.Dump(w)
	if err != nil {
		return fmt.Errorf("raw encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using Manager.Restore.
func (c *RawCodec) Decode(r io.Reader, mgr *itvl.Manager) error {
	err := mgr.Restore(r)
	if err != nil {
		return fmt.Errorf("raw decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for raw dumps.
func (c *RawCodec) Extension() string {
	return rawExtension
}

// LZ4Codec wraps the binary tree dump in an LZ4 frame.
type LZ4Codec struct {
	// Level is the compression level; zero means lz4.Fast.
	Level lz4.CompressionLevel
}

// NewLZ4Codec creates an LZ4 codec with the fastest compression level.
func NewLZ4Codec() *LZ4Codec {
	return &LZ4Codec{Level: lz4.Fast}
}

// Encode implements Codec.Encode by compressing the dump.
func (c *LZ4Codec) Encode(w io.Writer, mgr *itvl.Manager) error {
	zw := lz4.NewWriter(w)

	err := zw.Apply(lz4.CompressionLevelOption(c.Level))
	if err != nil {
		return fmt.Errorf("lz4 options: %w", err)
	}

	err = mgr.Dump(zw)
	if err != nil {
		return fmt.Errorf("lz4 encode: %w", err)
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("lz4 close: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode by decompressing the dump.
func (c *LZ4Codec) Decode(r io.Reader, mgr *itvl.Manager) error {
	err := mgr.Restore(lz4.NewReader(r))
	if err != nil {
		return fmt.Errorf("lz4 decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for compressed dumps.
func (c *LZ4Codec) Extension() string {
	return lz4Extension
}

// Snapshot is the JSON document written by JSONCodec.
type Snapshot struct {
	Limit     itvl.ID         `json:"limit"`
	Available []itvl.Interval `json:"available"`
}

// JSONCodec implements Codec as a human-readable list of available intervals.
// Unlike the binary codecs it carries the limit, which Decode adopts.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty string means compact JSON.
	Indent string
}

// NewJSONCodec creates a JSON codec with pretty-printing (2-space indent).
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode implements Codec.Encode using JSON encoding.
func (c *JSONCodec) Encode(w io.Writer, mgr *itvl.Manager) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(Snapshot{Limit: mgr.Limit(), Available: mgr.Intervals()})
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using JSON decoding. Intervals may come in
// any order; overlapping intervals are rejected and adjacent ones merged.
func (c *JSONCodec) Decode(r io.Reader, mgr *itvl.Manager) error {
	var snap Snapshot

	err := json.NewDecoder(r).Decode(&snap)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	rebuilt := itvl.NewWithLimit(snap.Limit)

	err = rebuilt.EraseRange(0, snap.Limit)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	for _, iv := range snap.Available {
		err = rebuilt.AddRange(iv.Start, iv.End)
		if err != nil {
			return fmt.Errorf("json decode %v: %w", iv, err)
		}
	}

	*mgr = *rebuilt

	return nil
}

// Extension implements Codec.Extension for JSON files.
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// StatePath returns the file a codec reads and writes for basename in dir.
func StatePath(dir, basename string, codec Codec) string {
	return filepath.Join(dir, basename+codec.Extension())
}

// SaveState saves the manager to a file in the specified directory.
// The file is written next to its final path and renamed over it, so readers
// never see a partial state.
func SaveState(dir, basename string, codec Codec, mgr *itvl.Manager) error {
	path := StatePath(dir, basename, codec)
	tmpPath := path + tmpSuffix

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	err = codec.Encode(file, mgr)
	if err != nil {
		file.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("encode state: %w", err)
	}

	err = file.Sync()
	if err != nil {
		file.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("sync state file: %w", err)
	}

	err = file.Close()
	if err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("close state file: %w", err)
	}

	err = os.Rename(tmpPath, path)
	if err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// LoadState loads the manager from a file in the specified directory.
// The manager is left unchanged on error.
func LoadState(dir, basename string, codec Codec, mgr *itvl.Manager) error {
	file, err := os.Open(StatePath(dir, basename, codec))
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, mgr)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}
