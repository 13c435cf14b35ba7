package itvl

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// compressColumn packs a slice of uint32-s little-endian and compresses it with LZ4.
// Incompressible input is kept as is; the two cases are told apart by length,
// since a compressed block is always shorter than its source.
func compressColumn(data []uint32) []byte {
	if len(data) == 0 {
		return nil
	}

	raw := make([]byte, 0, len(data)*uint32ByteSize)
	for _, value := range data {
		raw = binary.LittleEndian.AppendUint32(raw, value)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil || written == 0 || written >= len(raw) {
		return raw
	}

	return compressed[:written]
}

// decompressColumn reverses compressColumn. `result` must be preallocated.
func decompressColumn(data []byte, result []uint32) {
	if len(result) == 0 {
		return
	}

	raw := data
	if len(data) != len(result)*uint32ByteSize {
		raw = make([]byte, len(result)*uint32ByteSize)

		_, err := lz4.UncompressBlock(data, raw)
		doAssert(err == nil)
	}

	for idx := range result {
		result[idx] = binary.LittleEndian.Uint32(raw[idx*uint32ByteSize:])
	}
}
