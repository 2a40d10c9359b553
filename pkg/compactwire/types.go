// Package compactwire wraps an encoded payload in a small checked frame:
//
//	magic(2) type(1) length(4) flags(1) body(n) crc(4)
//
// Integers are little-endian. length covers the whole frame and the CRC32
// (IEEE) is computed over bytes [3, end-of-body).
package compactwire

import (
	"errors"
	"io"
)

const (
	Magic0 byte = 0xAC
	Magic1 byte = 0x50

	TypeData byte = 0x01

	// FlagZstd marks a body compressed with zstd.
	FlagZstd byte = 1 << 0

	headerSize  = 8 // magic + type + length + flags
	trailerSize = 4
	// MinFrameSize is the size of a frame with an empty body.
	MinFrameSize = headerSize + trailerSize

	// MaxDecodedSize bounds the output of a compressed body.
	MaxDecodedSize = 1 << 30
)

var (
	ErrNotFrame       = errors.New("compactwire: not a data frame")
	ErrShortFrame     = errors.New("compactwire: frame too short")
	ErrLengthMismatch = errors.New("compactwire: length mismatch")
	ErrChecksum       = errors.New("compactwire: crc mismatch")
	ErrUnknownFlags   = errors.New("compactwire: unknown flags")
	ErrFrameTooLarge  = errors.New("compactwire: frame too large")
)

const knownFlags = FlagZstd

func writePreamble(w io.ByteWriter, typ byte) {
	_ = w.WriteByte(Magic0)
	_ = w.WriteByte(Magic1)
	_ = w.WriteByte(typ)
}

func readPreamble(r io.ByteReader) (byte, error) {
	m0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	m1, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if m0 != Magic0 || m1 != Magic1 {
		return 0, ErrNotFrame
	}
	return r.ReadByte()
}
