// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm of a record
// payload. The tag is the first byte of a record file. These values
// are format constants — changing them breaks existing records.
type CompressionTag uint8

const (
	// CompressionNone indicates an uncompressed payload. Chosen when
	// compression would not shrink the payload (tiny records).
	CompressionNone CompressionTag = 0

	// CompressionLZ4 indicates LZ4 block compression. The writer
	// never emits it, but readers accept it so the write policy can
	// change without stranding records.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd indicates zstd at the default level. Record
	// payloads are repetitive CBOR (paths, category names), which
	// zstd handles well.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a compression tag from its string
// representation.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// frameHeaderSize is one tag byte plus a big-endian uint32 holding the
// uncompressed payload length.
const frameHeaderSize = 5

// maxPayloadSize bounds record payloads. Records hold file lists, not
// file contents; anything near this limit is corruption, and the bound
// keeps a mangled length header from forcing a huge allocation on
// read.
const maxPayloadSize = 64 << 20

// zstdEncoder and zstdDecoder are reused across calls. Both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("record: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("record: zstd decoder initialization failed: " + err.Error())
	}
}

// EncodeFrame wraps a record payload in the on-disk frame: compression
// tag, big-endian uncompressed length, then the (possibly compressed)
// payload. The payload is zstd-compressed when that wins, stored raw
// otherwise.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("record payload is %d bytes, limit %d", len(payload), maxPayloadSize)
	}

	tag, body := CompressionZstd, zstdEncoder.EncodeAll(payload, nil)
	if len(body) >= len(payload) {
		tag, body = CompressionNone, payload
	}

	frame := make([]byte, 0, frameHeaderSize+len(body))
	frame = append(frame, byte(tag))
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(payload)))
	return append(frame, body...), nil
}

// DecodeFrame unwraps an on-disk frame and returns the uncompressed
// payload. The declared length must match what decompression yields.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("record frame is %d bytes, want at least %d", len(frame), frameHeaderSize)
	}

	tag := CompressionTag(frame[0])
	size := int(binary.BigEndian.Uint32(frame[1:frameHeaderSize]))
	body := frame[frameHeaderSize:]

	if size > maxPayloadSize {
		return nil, fmt.Errorf("record frame declares %d bytes, limit %d", size, maxPayloadSize)
	}

	switch tag {
	case CompressionNone:
		if len(body) != size {
			return nil, fmt.Errorf("uncompressed payload is %d bytes, frame declares %d", len(body), size)
		}
		return body, nil

	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(body, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, frame declares %d", read, size)
		}
		return destination, nil

	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, frame declares %d", len(result), size)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unknown compression tag %d", tag)
	}
}

// encodeFrameLZ4 builds an LZ4-compressed frame. Only tests use it,
// to cover the reader's LZ4 path; the production writer emits zstd or
// none.
func encodeFrameLZ4(payload []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(payload))
	destination := make([]byte, bound)
	written, err := lz4.CompressBlock(payload, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if written == 0 {
		return nil, fmt.Errorf("lz4 compress: payload is incompressible")
	}

	frame := make([]byte, 0, frameHeaderSize+written)
	frame = append(frame, byte(CompressionLZ4))
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(payload)))
	return append(frame, destination[:written]...), nil
}
