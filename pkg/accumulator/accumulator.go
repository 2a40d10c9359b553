// Package accumulator implements a single-writer growable byte buffer.
//
// An Accumulator owns one contiguous region and a write cursor. Capacity grows
// by repeatedly adding the construction-time step size until the pending write
// fits, copying everything written so far into the new region. It never shrinks.
package accumulator

import (
	"errors"
	"io"
	"math"

	"go.uber.org/zap"
)

// DefaultSize is the base size (and growth step) used when none is given.
const DefaultSize = 32768

var ErrCapacityExceeded = errors.New("accumulator: capacity exceeded")

var (
	_ io.Writer     = (*Accumulator)(nil)
	_ io.ByteWriter = (*Accumulator)(nil)
)

type Options struct {
	Size        int // initial capacity and growth step; <= 0 means DefaultSize
	MaxCapacity int // 0 means bounded only by int
	Logger      *zap.Logger
}

type Accumulator struct {
	buf  []byte // len(buf) is the capacity
	head int    // read head, advanced by Consume
	p    int    // next byte
	step int
	max  int
	err  error
	log  *zap.Logger
}

func New(size int) *Accumulator {
	return NewWithOptions(Options{Size: size})
}

func NewWithOptions(opts Options) *Accumulator {
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Accumulator{
		buf:  make([]byte, size),
		step: size,
		max:  opts.MaxCapacity,
		log:  log,
	}
}

// AppendByte writes b at the cursor. If growth fails the byte is dropped and
// the failure is kept in Err.
func (a *Accumulator) AppendByte(b byte) {
	if a.Ensure(1) != nil {
		return
	}
	a.buf[a.p] = b
	a.p++
}

// AppendBytes copies data at the cursor.
func (a *Accumulator) AppendBytes(data []byte) {
	if a.Ensure(len(data)) != nil {
		return
	}
	a.p += copy(a.buf[a.p:], data)
}

// Ensure makes room for n more bytes.
func (a *Accumulator) Ensure(n int) error {
	if a.err != nil {
		return a.err
	}
	if len(a.buf)-a.p >= n {
		return nil
	}
	if n > math.MaxInt-a.p {
		a.err = ErrCapacityExceeded
		return a.err
	}
	need := a.p + n
	newCap := len(a.buf)
	for newCap < need {
		if newCap > math.MaxInt-a.step {
			a.err = ErrCapacityExceeded
			return a.err
		}
		newCap += a.step
	}
	if a.max > 0 && newCap > a.max {
		a.log.Debug("accumulator growth refused",
			zap.Int("capacity", len(a.buf)),
			zap.Int("requested", newCap),
			zap.Int("max", a.max))
		a.err = ErrCapacityExceeded
		return a.err
	}
	grown := make([]byte, newCap)
	copy(grown, a.buf[:a.p])
	a.log.Debug("accumulator grown", zap.Int("from", len(a.buf)), zap.Int("to", newCap))
	a.buf = grown
	return nil
}

// Extract returns a copy of the unconsumed bytes.
func (a *Accumulator) Extract() []byte {
	out := make([]byte, a.p-a.head)
	copy(out, a.buf[a.head:a.p])
	return out
}

// Bytes returns the unconsumed bytes without copying. The slice is only valid
// until the next append or Reset.
func (a *Accumulator) Bytes() []byte {
	return a.buf[a.head:a.p:a.p]
}

// Consume drops n bytes from the front of the accumulated output.
func (a *Accumulator) Consume(n int) {
	if n <= 0 {
		return
	}
	a.head = min(a.head+n, a.p)
}

// Reset empties the accumulator keeping its storage. Bytes previously returned
// by Bytes are invalidated.
func (a *Accumulator) Reset() {
	a.head = 0
	a.p = 0
	a.err = nil
}

func (a *Accumulator) Len() int   { return a.p - a.head }
func (a *Accumulator) Cap() int   { return len(a.buf) }
func (a *Accumulator) Err() error { return a.err }

func (a *Accumulator) Write(data []byte) (int, error) {
	a.AppendBytes(data)
	if a.err != nil {
		return 0, a.err
	}
	return len(data), nil
}

func (a *Accumulator) WriteByte(c byte) error {
	a.AppendByte(c)
	return a.err
}
