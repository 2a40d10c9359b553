// Package common holds the wire constants shared by the encoder and the value
// bridge.
package common

import (
	"math"
	"reflect"
)

// Tag bytes.
const (
	TagNil     byte = 0xc0
	TagFalse   byte = 0xc2
	TagTrue    byte = 0xc3
	TagBin8    byte = 0xc4
	TagBin16   byte = 0xc5
	TagBin32   byte = 0xc6
	TagFloat64 byte = 0xcb
	TagUint8   byte = 0xcc
	TagUint16  byte = 0xcd
	TagUint32  byte = 0xce
	TagUint64  byte = 0xcf
	TagInt8    byte = 0xd0
	TagInt16   byte = 0xd1
	TagInt32   byte = 0xd2
	TagInt64   byte = 0xd3
	TagStr8    byte = 0xd9
	TagStr16   byte = 0xda
	TagStr32   byte = 0xdb
	TagArray16 byte = 0xdc
	TagArray32 byte = 0xdd
	TagMap16   byte = 0xde
	TagMap32   byte = 0xdf

	FixMapPrefix   byte = 0x80
	FixArrayPrefix byte = 0x90
	FixStrPrefix   byte = 0xa0
)

// Tier limits. A value belongs to the first tier whose limit it is below.
const (
	FourBits       = 16
	FiveBits       = 32
	SevenBits      = 128
	EightBits      = 256
	FifteenBits    = 32768
	SixteenBits    = 65536
	ThirtyOneBits  = 1 << 31
	ThirtyTwoBits  = 1 << 32
	MaxLength      = math.MaxUint32
	MaxSafeInteger = 1 << 53
)

// IsIntegral reports whether f is finite and has no fractional part.
func IsIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && math.Trunc(f) == f
}

// IsIntKind reports whether k is a signed integer kind.
func IsIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

// IsUintKind reports whether k is an unsigned integer kind, uintptr excluded.
func IsUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}
