package accpack

import "math/big"

// Value is one of Null, Bool, Number, BigInt, Text, Bytes, Seq or Map.
type Value interface {
	isValue()
}

type (
	Null   struct{}
	Bool   bool
	Number float64 // integral values take the compact integer tiers
	Text   string
	Bytes  []byte
	Seq    []Value
	Map    []Entry // encoded in slice order
)

// BigInt is a signed integer encoded as a full 64-bit value. It must lie in
// [-2^63, 2^64).
type BigInt struct {
	Int *big.Int
}

type Entry struct {
	Key   Value
	Value Value
}

func (Null) isValue()   {}
func (Bool) isValue()   {}
func (Number) isValue() {}
func (BigInt) isValue() {}
func (Text) isValue()   {}
func (Bytes) isValue()  {}
func (Seq) isValue()    {}
func (Map) isValue()    {}

func NewBigInt(n int64) BigInt   { return BigInt{Int: big.NewInt(n)} }
func NewBigUint(n uint64) BigInt { return BigInt{Int: new(big.Int).SetUint64(n)} }

// KV builds an entry with a text key.
func KV(key string, v Value) Entry {
	return Entry{Key: Text(key), Value: v}
}

func (m Map) Len() int { return len(m) }

// Get returns the value stored under the text key.
func (m Map) Get(key string) (Value, bool) {
	for _, e := range m {
		if k, ok := e.Key.(Text); ok && string(k) == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key in place, or appends a new entry. The
// entry keeps its first insertion position.
func (m Map) Set(key string, v Value) Map {
	for i, e := range m {
		if k, ok := e.Key.(Text); ok && string(k) == key {
			m[i].Value = v
			return m
		}
	}
	return append(m, KV(key, v))
}
