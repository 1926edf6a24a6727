package buf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestU32RoundTrip(t *testing.T) {
	b := make([]byte, 8)
	PutU32(b, 0, 0xDEADBEEF)
	PutU32(b, 4, 1)
	require.Equal(t, uint32(0xDEADBEEF), U32(b, 0))
	require.Equal(t, uint32(1), U32(b, 4))
}

func TestU64RoundTrip(t *testing.T) {
	b := make([]byte, 16)
	PutU64(b, 0, 0x0102030405060708)
	PutU64(b, 8, ^uint64(0))
	require.Equal(t, uint64(0x0102030405060708), U64(b, 0))
	require.Equal(t, ^uint64(0), U64(b, 8))
}

func TestReadShortBuffer(t *testing.T) {
	b := []byte{1, 2, 3}
	require.Equal(t, uint32(0), U32(b, 0))
	require.Equal(t, uint32(0), U32(b, -1))
	require.Equal(t, uint64(0), U64(b, 0))
}

func TestSlice(t *testing.T) {
	b := []byte{0, 1, 2, 3, 4}

	s, ok := Slice(b, 1, 3)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, s)

	_, ok = Slice(b, 4, 2)
	require.False(t, ok)
	_, ok = Slice(b, -1, 1)
	require.False(t, ok)
	_, ok = Slice(b, 0, -1)
	require.False(t, ok)

	require.True(t, Has(b, 0, 5))
	require.False(t, Has(b, 0, 6))
}
