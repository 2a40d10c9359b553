package accpack

import (
	"bytes"
	"math"
	"math/big"
	"strings"
	"testing"
	"testing/quick"
	"unicode/utf8"

	"github.com/rawbytedev/accpack/pkg/accumulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alien struct{}

func (alien) isValue() {}

func mustEncode(t *testing.T, v Value) []byte {
	t.Helper()
	data, err := Encode(v)
	require.NoError(t, err)
	return data
}

func TestVectors(t *testing.T) {
	cases := []struct {
		name string
		in   Value
		want []byte
	}{
		{"one", Number(1), []byte{0x01}},
		{"uint8", Number(255), []byte{0xcc, 0xff}},
		{"minus one", Number(-1), []byte{0xff}},
		{"empty text", Text(""), []byte{0xa0}},
		{"empty seq", Seq{}, []byte{0x90}},
		{"empty map", Map{}, []byte{0x80}},
		{"seq", Seq{Number(1), Number(2), Number(3), Number(4), Number(5), Number(6)},
			[]byte{0x96, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}},
		{"map", Map{KV("a", Number(0))}, []byte{0x81, 0xa1, 0x61, 0x00}},
		{"null", Null{}, []byte{0xc0}},
		{"nil", nil, []byte{0xc0}},
		{"false", Bool(false), []byte{0xc2}},
		{"true", Bool(true), []byte{0xc3}},
		{"hello world", Text("hello world"),
			[]byte{171, 104, 101, 108, 108, 111, 32, 119, 111, 114, 108, 100}},
		{"nested seq", Seq{Seq{Number(1), Number(2), Number(3)}, Seq{Number(1), Number(2)}, Number(5)},
			[]byte{147, 147, 1, 2, 3, 146, 1, 2, 5}},
		{"nine zeros", make(Seq, 9), []byte{153, 192, 192, 192, 192, 192, 192, 192, 192, 192}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mustEncode(t, tc.in))
		})
	}
}

func TestPositiveNumbers(t *testing.T) {
	cases := []struct {
		in   float64
		want []byte
	}{
		{127, []byte{0x7f}},
		{128, []byte{0xcc, 0x80}},
		{256, []byte{0xcd, 0x01, 0x00}},
		{2000, []byte{0xcd, 7, 208}},
		{65535, []byte{0xcd, 0xff, 0xff}},
		{65536, []byte{0xce, 0x00, 0x01, 0x00, 0x00}},
		{70000, []byte{0xce, 0, 1, 17, 112}},
		{math.MaxUint32, []byte{0xce, 0xff, 0xff, 0xff, 0xff}},
		{20000000000, []byte{0xcb, 66, 18, 160, 95, 32, 0, 0, 0}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mustEncode(t, Number(tc.in)), "encode(%v)", tc.in)
	}
}

func TestNegativeNumbers(t *testing.T) {
	cases := []struct {
		in   float64
		want []byte
	}{
		{-32, []byte{0xe0}},
		{-33, []byte{0xd0, 0xdf}},
		{-127, []byte{0xd0, 129}},
		{-128, []byte{0xd0, 0x80}},
		{-129, []byte{0xd1, 0xff, 0x7f}},
		{-1000, []byte{0xd1, 252, 24}},
		{-32768, []byte{0xd1, 0x80, 0x00}},
		{-32769, []byte{0xd2, 0xff, 0xff, 0x7f, 0xff}},
		{-60000, []byte{0xd2, 255, 255, 21, 160}},
		{math.MinInt32, []byte{0xd2, 0x80, 0x00, 0x00, 0x00}},
		{-600000000000, []byte{0xcb, 194, 97, 118, 89, 46, 0, 0, 0}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mustEncode(t, Number(tc.in)), "encode(%v)", tc.in)
	}
	data := mustEncode(t, Number(math.MinInt32-1))
	require.Len(t, data, 9)
	require.Equal(t, byte(0xcb), data[0])
}

func TestFloats(t *testing.T) {
	assert.Equal(t, []byte{0xcb, 63, 211, 51, 51, 51, 51, 51, 51}, mustEncode(t, Number(0.3)))
	for _, f := range []float64{math.Inf(1), math.Inf(-1), math.NaN(), 1.5, -0.5} {
		data := mustEncode(t, Number(f))
		require.Len(t, data, 9)
		require.Equal(t, byte(0xcb), data[0])
	}
	assert.Equal(t, []byte{0x00}, mustEncode(t, Number(math.Copysign(0, -1))))
}

func TestFixints(t *testing.T) {
	for n := 0; n <= 127; n++ {
		require.Equal(t, []byte{byte(n)}, mustEncode(t, Number(n)))
	}
	for n := -32; n <= -1; n++ {
		require.Equal(t, []byte{byte(int8(n))}, mustEncode(t, Number(n)))
	}
}

func TestBigInts(t *testing.T) {
	assert.Equal(t, []byte{0xcf, 0, 0, 0, 0, 0, 0, 0, 0}, mustEncode(t, NewBigInt(0)))
	assert.Equal(t, []byte{0xd3, 255, 255, 255, 255, 255, 255, 255, 246}, mustEncode(t, NewBigInt(-10)))
	assert.Equal(t, []byte{0xcf, 0, 0, 0, 0, 0, 0, 0, 10}, mustEncode(t, NewBigInt(10)))
	assert.Equal(t, []byte{0xcf, 138, 199, 35, 4, 137, 231, 255, 255}, mustEncode(t, NewBigUint(9999999999999999999)))
	assert.Equal(t, []byte{0xcf, 255, 255, 255, 255, 255, 255, 255, 255}, mustEncode(t, NewBigUint(math.MaxUint64)))
	assert.Equal(t, []byte{0xd3, 0x80, 0, 0, 0, 0, 0, 0, 0}, mustEncode(t, NewBigInt(math.MinInt64)))
	assert.Equal(t, []byte{0xc0}, mustEncode(t, BigInt{}))

	tooBig, _ := new(big.Int).SetString("1000000000000000000000000000000", 10)
	for _, n := range []*big.Int{
		tooBig,
		new(big.Int).Neg(tooBig),
		new(big.Int).Lsh(big.NewInt(1), 64),
		new(big.Int).Sub(big.NewInt(math.MinInt64), big.NewInt(1)),
	} {
		data, err := Encode(BigInt{Int: n})
		require.ErrorIs(t, err, ErrRange, n.String())
		require.Nil(t, data)
	}
}

func TestTextTiers(t *testing.T) {
	cases := []struct {
		n      int
		header []byte
	}{
		{31, []byte{0xbf}},
		{32, []byte{0xd9, 32}},
		{255, []byte{0xd9, 0xff}},
		{256, []byte{0xda, 0x01, 0x00}},
		{65535, []byte{0xda, 0xff, 0xff}},
		{65536, []byte{0xdb, 0x00, 0x01, 0x00, 0x00}},
	}
	for _, tc := range cases {
		s := strings.Repeat("a", tc.n)
		data := mustEncode(t, Text(s))
		require.Equal(t, tc.header, data[:len(tc.header)], "length %d", tc.n)
		require.Equal(t, []byte(s), data[len(tc.header):])
	}
	// byte length, not rune count
	assert.Equal(t, []byte{0xa2, 0xc3, 0xa9}, mustEncode(t, Text("é")))
}

func TestTextInvalidUTF8(t *testing.T) {
	data := mustEncode(t, Text("a\xffb"))
	assert.Equal(t, []byte{0xa5, 'a', 0xef, 0xbf, 0xbd, 'b'}, data)
	assert.True(t, utf8.Valid(data[1:]))

	// a run of bad bytes collapses into one replacement character
	data = mustEncode(t, Text("\xff\xfe("))
	assert.Equal(t, []byte{0xa4, 0xef, 0xbf, 0xbd, '('}, data)
	assert.True(t, utf8.Valid(data[1:]))
}

func TestBytesTiers(t *testing.T) {
	cases := []struct {
		n      int
		header []byte
	}{
		{0, []byte{0xc4, 0x00}},
		{255, []byte{0xc4, 0xff}},
		{256, []byte{0xc5, 0x01, 0x00}},
		{65535, []byte{0xc5, 0xff, 0xff}},
		{65536, []byte{0xc6, 0x00, 0x01, 0x00, 0x00}},
	}
	for _, tc := range cases {
		b := bytes.Repeat([]byte{7}, tc.n)
		data := mustEncode(t, Bytes(b))
		require.Equal(t, tc.header, data[:len(tc.header)], "length %d", tc.n)
		require.Equal(t, b, data[len(tc.header):])
	}
}

func TestSeqTiers(t *testing.T) {
	cases := []struct {
		n      int
		header []byte
	}{
		{15, []byte{0x9f}},
		{16, []byte{0xdc, 0x00, 0x10}},
		{65535, []byte{0xdc, 0xff, 0xff}},
		{65536, []byte{0xdd, 0x00, 0x01, 0x00, 0x00}},
	}
	for _, tc := range cases {
		s := make(Seq, tc.n)
		for i := range s {
			s[i] = Bool(true)
		}
		data := mustEncode(t, s)
		require.Equal(t, tc.header, data[:len(tc.header)], "length %d", tc.n)
		require.Len(t, data, len(tc.header)+tc.n)
	}
}

func TestMapTiers(t *testing.T) {
	m := make(Map, 0, 16)
	for i := 0; i < 15; i++ {
		m = append(m, Entry{Key: Number(i), Value: Null{}})
	}
	data := mustEncode(t, m)
	require.Equal(t, byte(0x8f), data[0])

	m = append(m, Entry{Key: Number(15), Value: Null{}})
	data = mustEncode(t, m)
	require.Equal(t, []byte{0xde, 0x00, 0x10}, data[:3])
	require.Len(t, data, 3+16*2)

	large := make(Map, 65536)
	for i := range large {
		large[i] = Entry{Key: Null{}, Value: Null{}}
	}
	data = mustEncode(t, large)
	require.Equal(t, []byte{0xdf, 0x00, 0x01, 0x00, 0x00}, data[:5])
}

func TestMaps(t *testing.T) {
	map1 := Map{KV("a", Number(0)), KV("b", Number(2)), KV("c", Text("three")), KV("d", Null{})}
	assert.Equal(t,
		[]byte{132, 161, 97, 0, 161, 98, 2, 161, 99, 165, 116, 104, 114, 101, 101, 161, 100, 192},
		mustEncode(t, map1))

	nested := Map{KV("a", Number(-1)), KV("b", Number(2)), KV("c", Text("three")), KV("d", Null{}), KV("e", map1)}
	assert.Equal(t,
		[]byte{133, 161, 97, 255, 161, 98, 2, 161, 99, 165, 116, 104, 114, 101, 101, 161, 100, 192,
			161, 101, 132, 161, 97, 0, 161, 98, 2, 161, 99, 165, 116, 104, 114, 101, 101, 161, 100, 192},
		mustEncode(t, nested))

	// keys are values too
	assert.Equal(t, []byte{0x82, 0x01, 0xc3, 0xc0, 0xc2}, mustEncode(t, Map{
		{Key: Number(1), Value: Bool(true)},
		{Key: Null{}, Value: Bool(false)},
	}))
}

func TestMapHelpers(t *testing.T) {
	var m Map
	m = m.Set("b", Number(1))
	m = m.Set("a", Number(2))
	m = m.Set("b", Number(3))
	require.Equal(t, 2, m.Len())
	v, ok := m.Get("b")
	require.True(t, ok)
	require.Equal(t, Number(3), v)
	_, ok = m.Get("z")
	require.False(t, ok)
	require.Equal(t, []byte{0x82, 0xa1, 'b', 0x03, 0xa1, 'a', 0x02}, mustEncode(t, m))
}

func TestUnsupportedValue(t *testing.T) {
	data, err := Encode(Seq{Number(1), alien{}})
	require.ErrorIs(t, err, ErrUnsupportedValue)
	require.Nil(t, data)
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, []string{"[1]"}, ee.Path)
}

func TestErrorPath(t *testing.T) {
	tooBig, _ := new(big.Int).SetString("1000000000000000000000000000000", 10)
	_, err := Encode(Seq{Number(1), Map{KV("x", Seq{BigInt{Int: tooBig}})}})
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, KindRange, ee.Kind)
	require.Equal(t, []string{"[1]", "x", "[0]"}, ee.Path)
	require.Contains(t, err.Error(), "range at [1].x.[0]")
}

func TestSizeLimit(t *testing.T) {
	saved := maxLength
	maxLength = 40
	t.Cleanup(func() { maxLength = saved })

	_, err := Encode(Text(strings.Repeat("x", 40)))
	require.NoError(t, err)
	for _, v := range []Value{
		Text(strings.Repeat("x", 41)),
		Bytes(make([]byte, 41)),
		make(Seq, 41),
		make(Map, 41),
	} {
		data, err := Encode(Seq{v})
		require.ErrorIs(t, err, ErrSizeLimit)
		require.Nil(t, data)
	}
}

func TestDepthGuard(t *testing.T) {
	s := make(Seq, 1)
	s[0] = s
	data, err := Encode(s)
	require.ErrorIs(t, err, ErrCyclicStructure)
	require.Nil(t, data)

	m := make(Map, 1)
	m[0] = KV("self", m)
	_, err = Encode(m)
	require.ErrorIs(t, err, ErrCyclicStructure)

	e := NewEncoder(Options{MaxDepth: 2})
	_, err = e.Encode(Seq{Seq{Number(1)}})
	require.NoError(t, err)
	_, err = e.Encode(Seq{Seq{Seq{}}})
	require.ErrorIs(t, err, ErrCyclicStructure)
	// acyclic but too deep: the message names the limit
	require.ErrorContains(t, err, "depth limit of 2 exceeded")
}

func TestMapKeyErrorPath(t *testing.T) {
	_, err := Encode(Map{KV("a", Null{}), {Key: alien{}, Value: Null{}}})
	require.ErrorIs(t, err, ErrUnsupportedValue)
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, []string{"key[1]"}, ee.Path)
}

func TestOutOfMemory(t *testing.T) {
	e := NewEncoder(Options{BaseSize: 4, MaxCapacity: 8})
	data, err := e.Encode(Text("hello world"))
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.ErrorIs(t, err, accumulator.ErrCapacityExceeded)
	require.True(t, IsOutOfMemory(err))
	require.Nil(t, data)

	// the encoder recovers on the next call
	data, err = e.Encode(Text("hi"))
	require.NoError(t, err)
	require.Equal(t, []byte{0xa2, 'h', 'i'}, data)
}

func TestEncoderReuse(t *testing.T) {
	v := Map{KV("list", Seq{Number(1), Text("two"), Bytes{3}}), KV("n", Number(-70000))}
	fresh := mustEncode(t, v)

	e := NewEncoder(Options{BaseSize: 8})
	first, err := e.Encode(v)
	require.NoError(t, err)
	second, err := e.Encode(Text(strings.Repeat("z", 100)))
	require.NoError(t, err)
	third, err := e.Encode(v)
	require.NoError(t, err)

	require.Equal(t, fresh, first)
	require.Equal(t, fresh, third)
	require.Len(t, second, 102)

	e.Reset()
	fourth, err := e.Encode(v)
	require.NoError(t, err)
	require.Equal(t, fresh, fourth)
}

func TestEncodeToAppends(t *testing.T) {
	acc := accumulator.New(16)
	e := NewEncoder(Options{})
	require.NoError(t, e.EncodeTo(Number(1), acc))
	require.NoError(t, e.EncodeTo(Text("a"), acc))
	require.Equal(t, []byte{0x01, 0xa1, 'a'}, acc.Extract())
}

func TestGrowthIsTransparent(t *testing.T) {
	condition := func(items []string) bool {
		s := make(Seq, len(items))
		for i, it := range items {
			s[i] = Text(it)
		}
		small, err := NewEncoder(Options{BaseSize: 1}).Encode(s)
		if err != nil {
			return false
		}
		large, err := NewEncoder(Options{BaseSize: 1 << 20}).Encode(s)
		if err != nil {
			return false
		}
		return bytes.Equal(small, large)
	}
	require.NoError(t, quick.Check(condition, &quick.Config{}))
}

func TestIntegralNumbersUseShortestForm(t *testing.T) {
	condition := func(n int32) bool {
		data, err := Encode(Number(n))
		if err != nil {
			return false
		}
		switch {
		case n >= -32 && n <= 127:
			return len(data) == 1
		case n >= -128 && n < 256:
			return len(data) == 2
		case n >= -32768 && n < 65536:
			return len(data) == 3
		default:
			return len(data) == 5
		}
	}
	require.NoError(t, quick.Check(condition, &quick.Config{}))
}
