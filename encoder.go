// Package accpack encodes values into a compact MessagePack-compatible binary
// form. Only the encode direction is provided.
package accpack

import (
	"encoding/binary"
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rawbytedev/accpack/internal/common"
	"github.com/rawbytedev/accpack/pkg/accumulator"
	"go.uber.org/zap"
)

const DefaultMaxDepth = 1024

// maxLength bounds str/bin/array/map lengths; tests lower it.
var maxLength uint64 = common.MaxLength

var (
	minInt64  = big.NewInt(math.MinInt64)
	maxUint64 = new(big.Int).SetUint64(math.MaxUint64)
)

type Options struct {
	BaseSize    int // accumulator size and growth step; <= 0 means accumulator.DefaultSize
	MaxCapacity int // 0 means unbounded
	MaxDepth    int // <= 0 means DefaultMaxDepth
	Logger      *zap.Logger
}

// Encoder reuses one accumulator across calls. It is not safe for concurrent
// use; the package-level Encode and Marshal are.
type Encoder struct {
	Opts    Options
	acc     *accumulator.Accumulator
	log     *zap.Logger
	scratch [9]byte
	depth   int
}

func NewEncoder(opts Options) *Encoder {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Encoder{Opts: opts, log: log}
}

// Encode encodes v into a freshly allocated buffer.
func Encode(v Value) ([]byte, error) {
	return NewEncoder(Options{}).Encode(v)
}

// Marshal converts v with FromAny and encodes the result.
func Marshal(v any) ([]byte, error) {
	return NewEncoder(Options{}).Marshal(v)
}

// Encode returns the encoding of v. The result is a copy and stays valid
// across later calls. On error nothing is returned.
func (e *Encoder) Encode(v Value) ([]byte, error) {
	if e.acc == nil {
		e.acc = accumulator.NewWithOptions(accumulator.Options{
			Size:        e.Opts.BaseSize,
			MaxCapacity: e.Opts.MaxCapacity,
			Logger:      e.log,
		})
	}
	e.acc.Reset()
	if err := e.EncodeTo(v, e.acc); err != nil {
		e.acc.Reset()
		return nil, err
	}
	return e.acc.Extract(), nil
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	val, err := FromAny(v)
	if err != nil {
		return nil, err
	}
	return e.Encode(val)
}

// EncodeTo appends the encoding of v to acc. On error acc may hold a partial
// encoding and should be reset by the caller.
func (e *Encoder) EncodeTo(v Value, acc *accumulator.Accumulator) error {
	e.depth = 0
	if err := e.encodeValue(v, acc); err != nil {
		e.log.Debug("encode failed", zap.Error(err))
		return err
	}
	if err := acc.Err(); err != nil {
		return &EncodeError{Kind: KindOutOfMemory, Detail: "buffer growth failed", Cause: err}
	}
	return nil
}

// Reset drops the retained accumulator.
func (e *Encoder) Reset() {
	e.acc = nil
}

func (e *Encoder) encodeValue(v Value, acc *accumulator.Accumulator) error {
	if err := acc.Err(); err != nil {
		return &EncodeError{Kind: KindOutOfMemory, Detail: "buffer growth failed", Cause: err}
	}
	switch v := v.(type) {
	case nil, Null:
		acc.AppendByte(common.TagNil)
	case Bool:
		if v {
			acc.AppendByte(common.TagTrue)
		} else {
			acc.AppendByte(common.TagFalse)
		}
	case Number:
		e.encodeNumber(float64(v), acc)
	case BigInt:
		return e.encodeBigInt(v, acc)
	case Text:
		return e.encodeText(string(v), acc)
	case Bytes:
		return e.encodeBytes(v, acc)
	case Seq:
		return e.encodeSeq(v, acc)
	case Map:
		return e.encodeMap(v, acc)
	default:
		return newError(KindUnsupported, "value of type %T", v)
	}
	return nil
}

func (e *Encoder) encodeNumber(n float64, acc *accumulator.Accumulator) {
	if !common.IsIntegral(n) {
		e.putFloat64(n, acc)
		return
	}
	if n < 0 {
		switch {
		case n >= -common.FiveBits: // negative fixint
			acc.AppendByte(byte(int8(n)))
		case n >= -common.SevenBits:
			e.put8(common.TagInt8, byte(int8(n)), acc)
		case n >= -common.FifteenBits:
			e.put16(common.TagInt16, uint16(int16(n)), acc)
		case n >= -common.ThirtyOneBits:
			e.put32(common.TagInt32, uint32(int32(n)), acc)
		default:
			e.putFloat64(n, acc)
		}
		return
	}
	switch {
	case n < common.SevenBits: // positive fixint
		acc.AppendByte(byte(n))
	case n < common.EightBits:
		e.put8(common.TagUint8, byte(n), acc)
	case n < common.SixteenBits:
		e.put16(common.TagUint16, uint16(n), acc)
	case n < common.ThirtyTwoBits:
		e.put32(common.TagUint32, uint32(n), acc)
	default:
		e.putFloat64(n, acc)
	}
}

func (e *Encoder) encodeBigInt(v BigInt, acc *accumulator.Accumulator) error {
	if v.Int == nil {
		acc.AppendByte(common.TagNil)
		return nil
	}
	if v.Int.Sign() < 0 {
		if v.Int.Cmp(minInt64) < 0 {
			return newError(KindRange, "%s is below -2^63", v.Int)
		}
		e.put64(common.TagInt64, uint64(v.Int.Int64()), acc)
		return nil
	}
	if v.Int.Cmp(maxUint64) > 0 {
		return newError(KindRange, "%s is not below 2^64", v.Int)
	}
	e.put64(common.TagUint64, v.Int.Uint64(), acc)
	return nil
}

// encodeText writes s as UTF-8; invalid sequences become U+FFFD.
func (e *Encoder) encodeText(s string, acc *accumulator.Accumulator) error {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	l := len(s)
	switch {
	case uint64(l) > maxLength:
		return newError(KindSizeLimit, "text of %d bytes", l)
	case l < common.FiveBits:
		acc.AppendByte(common.FixStrPrefix | byte(l))
	case l < common.EightBits:
		e.put8(common.TagStr8, byte(l), acc)
	case l < common.SixteenBits:
		e.put16(common.TagStr16, uint16(l), acc)
	default:
		e.put32(common.TagStr32, uint32(l), acc)
	}
	acc.AppendBytes([]byte(s))
	return nil
}

func (e *Encoder) encodeBytes(b []byte, acc *accumulator.Accumulator) error {
	l := len(b)
	switch {
	case uint64(l) > maxLength:
		return newError(KindSizeLimit, "byte string of %d bytes", l)
	case l < common.EightBits:
		e.put8(common.TagBin8, byte(l), acc)
	case l < common.SixteenBits:
		e.put16(common.TagBin16, uint16(l), acc)
	default:
		e.put32(common.TagBin32, uint32(l), acc)
	}
	acc.AppendBytes(b)
	return nil
}

func (e *Encoder) encodeSeq(s Seq, acc *accumulator.Accumulator) error {
	n := len(s)
	switch {
	case uint64(n) > maxLength:
		return newError(KindSizeLimit, "sequence of %d elements", n)
	case n < common.FourBits:
		acc.AppendByte(common.FixArrayPrefix | byte(n))
	case n < common.SixteenBits:
		e.put16(common.TagArray16, uint16(n), acc)
	default:
		e.put32(common.TagArray32, uint32(n), acc)
	}
	if err := e.enter(); err != nil {
		return err
	}
	for i, item := range s {
		if err := e.encodeValue(item, acc); err != nil {
			return withPath(err, "["+strconv.Itoa(i)+"]")
		}
	}
	e.depth--
	return nil
}

func (e *Encoder) encodeMap(m Map, acc *accumulator.Accumulator) error {
	n := len(m)
	switch {
	case uint64(n) > maxLength:
		return newError(KindSizeLimit, "mapping of %d entries", n)
	case n < common.FourBits:
		acc.AppendByte(common.FixMapPrefix | byte(n))
	case n < common.SixteenBits:
		e.put16(common.TagMap16, uint16(n), acc)
	default:
		e.put32(common.TagMap32, uint32(n), acc)
	}
	if err := e.enter(); err != nil {
		return err
	}
	for i, entry := range m {
		if err := e.encodeValue(entry.Key, acc); err != nil {
			return withPath(err, "key["+strconv.Itoa(i)+"]")
		}
		if err := e.encodeValue(entry.Value, acc); err != nil {
			return withPath(err, pathSegment(entry.Key, i))
		}
	}
	e.depth--
	return nil
}

func (e *Encoder) enter() error {
	e.depth++
	if e.depth > e.Opts.MaxDepth {
		return newError(KindCyclic, "depth limit of %d exceeded, the value may be cyclic", e.Opts.MaxDepth)
	}
	return nil
}

func pathSegment(key Value, i int) string {
	if k, ok := key.(Text); ok {
		return string(k)
	}
	return "[" + strconv.Itoa(i) + "]"
}

func (e *Encoder) put8(tag, v byte, acc *accumulator.Accumulator) {
	e.scratch[0] = tag
	e.scratch[1] = v
	acc.AppendBytes(e.scratch[:2])
}

func (e *Encoder) put16(tag byte, v uint16, acc *accumulator.Accumulator) {
	e.scratch[0] = tag
	binary.BigEndian.PutUint16(e.scratch[1:], v)
	acc.AppendBytes(e.scratch[:3])
}

func (e *Encoder) put32(tag byte, v uint32, acc *accumulator.Accumulator) {
	e.scratch[0] = tag
	binary.BigEndian.PutUint32(e.scratch[1:], v)
	acc.AppendBytes(e.scratch[:5])
}

func (e *Encoder) put64(tag byte, v uint64, acc *accumulator.Accumulator) {
	e.scratch[0] = tag
	binary.BigEndian.PutUint64(e.scratch[1:], v)
	acc.AppendBytes(e.scratch[:9])
}

func (e *Encoder) putFloat64(f float64, acc *accumulator.Accumulator) {
	e.put64(common.TagFloat64, math.Float64bits(f), acc)
}

// IsOutOfMemory reports whether err came from buffer growth rather than from
// the value itself.
func IsOutOfMemory(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}
