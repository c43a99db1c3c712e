package derefmap

import (
	"bytes"
	"testing"

	"github.com/rsms/go-testutil"
)

func TestTerminatedBytesRoundTrip(t *testing.T) {
	assert := testutil.NewAssert(t)

	cases := [][]byte{
		{},
		{1, 2, 3},
		{0x00},
		{0x00, 0x00, 0x00},
		{0xFF, 0x00, 0xFF},
		[]byte("hello world"),
	}
	for _, c := range cases {
		encoded := appendTerminatedBytes(nil, c)
		decoded, rest, err := readTerminatedBytes(encoded)
		assert.Ok("no error", err == nil)
		assert.Ok("full consumption", len(rest) == 0)
		assert.Ok("round-trip", bytes.Equal(decoded, c))
	}
}

func TestTerminatedBytesPreservesOrder(t *testing.T) {
	assert := testutil.NewAssert(t)

	pairs := [][2][]byte{
		{{1, 2}, {1, 3}},
		{{0x00}, {0x00, 0x00}},
		{{1}, {1, 0x00}},
		{{}, {0x00}},
	}
	for _, p := range pairs {
		a := appendTerminatedBytes(nil, p[0])
		b := appendTerminatedBytes(nil, p[1])
		assert.Ok("order preserved", bytes.Compare(a, b) < 0)
	}
}

func TestVarBytesPrefixedRoundTrip(t *testing.T) {
	assert := testutil.NewAssert(t)

	data := []byte{0x01, 0x02, 0x03, 0x00, 0x04, 0x05}
	encoded, err := appendVarBytesPrefixed(nil, data, 2)
	assert.Ok("no error", err == nil)

	decoded, rest, err := readVarBytesPrefixed(encoded, 2)
	assert.Ok("no error", err == nil)
	assert.Ok("full consumption", len(rest) == 0)
	assert.Ok("round-trip", bytes.Equal(decoded, data))
}

func TestForwardKeyRoundTrip(t *testing.T) {
	assert := testutil.NewAssert(t)

	id := []byte{0x01, 0x02, 0x03, 0x04, 0x00, 0xFF}
	var vtag SchemaId
	copy(vtag[:], bytes.Repeat([]byte{0x42}, 16))

	key, err := encodeForwardKey(id, vtag)
	assert.Ok("no error", err == nil)

	gotId, gotVTag, err := decodeForwardKey(key)
	assert.Ok("no error", err == nil)
	assert.Ok("id round-trip", bytes.Equal(gotId, id))
	assert.Ok("vtag round-trip", gotVTag == vtag)
}

func TestForwardKeyTooShortForPrefix(t *testing.T) {
	assert := testutil.NewAssert(t)

	var vtag SchemaId
	_, err := encodeForwardKey([]byte{0x01}, vtag)
	assert.Ok("rejects id shorter than prefix", err != nil)
}
