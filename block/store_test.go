package block

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T, opts StoreOptions) *Store {
	t.Helper()
	s, err := Create(filepath.Join(t.TempDir(), "test.strata"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.strata")

	s, err := Create(path, StoreOptions{})
	require.NoError(t, err)
	require.Equal(t, DefaultBlockSize, s.BlockSize())
	require.Equal(t, 1+growBlocks, s.Count())

	payload := []byte("the quick brown fox")
	require.NoError(t, s.WriteBlock(1, payload))
	require.NoError(t, s.Sync(context.Background()))
	salt := s.salt
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, DefaultBlockSize, s.BlockSize())
	require.Equal(t, salt, s.salt)

	area, err := s.ReadBlock(1)
	require.NoError(t, err)
	require.Equal(t, payload, area[:len(payload)])
}

func TestStoreCreateExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.strata")
	s, err := Create(path, StoreOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Create(path, StoreOptions{})
	require.Error(t, err)
}

func TestStoreBadBlockSize(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(filepath.Join(dir, "a"), StoreOptions{BlockSize: 1000})
	require.Error(t, err)
	_, err = Create(filepath.Join(dir, "b"), StoreOptions{BlockSize: 256})
	require.Error(t, err)
}

func TestStoreOpenNotAStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestStoreBounds(t *testing.T) {
	s := createTestStore(t, StoreOptions{})

	// The superblock is not addressable as data.
	require.ErrorIs(t, s.WriteBlock(0, []byte("x")), ErrBadAddr)
	require.ErrorIs(t, s.WriteBlock(Addr(s.Count()), []byte("x")), ErrBadAddr)
	_, err := s.ReadBlock(Addr(s.Count()))
	require.ErrorIs(t, err, ErrBadAddr)

	big := make([]byte, s.BlockSize()) // payload area is blockSize-trailer
	require.ErrorIs(t, s.WriteBlock(1, big), ErrTooLarge)
}

func TestStoreReadUnwritten(t *testing.T) {
	s := createTestStore(t, StoreOptions{})
	_, err := s.ReadBlock(2)
	require.ErrorIs(t, err, ErrChecksum)

	// CheckBlock accepts untouched blocks.
	require.NoError(t, s.CheckBlock(2))
}

func TestStoreChecksumCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.strata")
	s, err := Create(path, StoreOptions{})
	require.NoError(t, err)
	require.NoError(t, s.WriteBlock(1, []byte("payload")))
	require.NoError(t, s.Sync(context.Background()))
	require.NoError(t, s.Close())

	// Flip one payload byte on disk.
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF}, int64(DefaultBlockSize)+2)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadBlock(1)
	require.ErrorIs(t, err, ErrChecksum)
	require.ErrorIs(t, s.CheckBlock(1), ErrChecksum)
}

func TestStoreGrow(t *testing.T) {
	s := createTestStore(t, StoreOptions{})
	before := s.Count()

	run, err := s.Grow(1)
	require.NoError(t, err)
	require.Equal(t, Addr(before), run.Start)
	require.Equal(t, growBlocks, run.Count) // rounded up to the chunk
	require.Equal(t, before+growBlocks, s.Count())

	// Blocks on both sides of the boundary stay usable after the remap.
	require.NoError(t, s.WriteBlock(1, []byte("old side")))
	require.NoError(t, s.WriteBlock(run.Start, []byte("new side")))
	area, err := s.ReadBlock(run.Start)
	require.NoError(t, err)
	require.Equal(t, []byte("new side"), area[:8])

	// A request beyond the chunk is honored exactly.
	run, err = s.Grow(growBlocks * 3)
	require.NoError(t, err)
	require.Equal(t, growBlocks*3, run.Count)
}

func TestStoreSyncCancelled(t *testing.T) {
	s := createTestStore(t, StoreOptions{})
	require.NoError(t, s.WriteBlock(1, []byte("x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Sync(ctx), context.Canceled)

	// A later sync with a live context completes the flush.
	require.NoError(t, s.Sync(context.Background()))
}

func TestStoreClosed(t *testing.T) {
	s := createTestStore(t, StoreOptions{})
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.WriteBlock(1, []byte("x")), ErrClosed)
	_, err := s.ReadBlock(1)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.Sync(context.Background()), ErrClosed)
	require.NoError(t, s.Close()) // idempotent
}
