package storage

import (
	"bytes"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maplebus/maple.go/pkg/maple/sim"
)

func tempStore(t *testing.T) (string, func()) {
	dbfile, err := ioutil.TempFile("", "flash.db")
	require.NoError(t, err)
	require.NoError(t, dbfile.Close())
	return dbfile.Name(), func() { os.Remove(dbfile.Name()) }
}

func TestFlashFreshReadsErased(t *testing.T) {
	path, cleanup := tempStore(t)
	defer cleanup()
	f, err := Open(path, 2*SectorSize, &sim.ManualClock{})
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, uint32(2*SectorSize), f.Size())
	require.Equal(t, bytes.Repeat([]byte{0xff}, 16), f.Read(0, 16))
	require.Equal(t, 0, f.PendingSectors())
}

func TestFlashWriteReadBack(t *testing.T) {
	path, cleanup := tempStore(t)
	defer cleanup()
	f, err := Open(path, 2*SectorSize, &sim.ManualClock{})
	require.NoError(t, err)
	defer f.Close()

	require.True(t, f.Write(100, []byte{1, 2, 3, 4}))
	require.Equal(t, []byte{1, 2, 3, 4}, f.Read(100, 4))

	require.False(t, f.Write(2*SectorSize-2, []byte{9, 9, 9}))
	require.Equal(t, []byte{0xff, 0xff}, f.Read(2*SectorSize-2, 2))

	require.Nil(t, f.Read(2*SectorSize, 4))
	require.Len(t, f.Read(2*SectorSize-2, 100), 2)
}

func TestFlashProgramsAfterDelay(t *testing.T) {
	path, cleanup := tempStore(t)
	defer cleanup()
	clock := &sim.ManualClock{}
	f, err := Open(path, 2*SectorSize, clock)
	require.NoError(t, err)
	defer f.Close()

	require.True(t, f.Write(0, []byte{0xaa, 0xbb}))
	require.Equal(t, 1, f.PendingSectors())

	// First step erases, second lands in the coalescing window.
	require.NoError(t, f.Process())
	require.NoError(t, f.Process())
	require.Equal(t, 1, f.PendingSectors())

	clock.Advance(DefaultWriteDelayUs + 1)
	require.NoError(t, f.Process())
	require.Equal(t, 0, f.PendingSectors())
}

func TestFlashFrontRewritePushesDelay(t *testing.T) {
	path, cleanup := tempStore(t)
	defer cleanup()
	clock := &sim.ManualClock{}
	f, err := Open(path, 2*SectorSize, clock)
	require.NoError(t, err)
	defer f.Close()

	require.True(t, f.Write(0, []byte{1}))
	require.NoError(t, f.Process())
	require.NoError(t, f.Process())

	// Rewriting the sector under programming restarts its window.
	clock.Set(100000)
	require.True(t, f.Write(0, []byte{2}))
	clock.Set(DefaultWriteDelayUs + 1)
	require.NoError(t, f.Process())
	require.Equal(t, 1, f.PendingSectors())

	clock.Set(100000 + DefaultWriteDelayUs)
	require.NoError(t, f.Process())
	require.Equal(t, 0, f.PendingSectors())
}

func TestFlashNewSectorFlushesPromptly(t *testing.T) {
	path, cleanup := tempStore(t)
	defer cleanup()
	clock := &sim.ManualClock{}
	f, err := Open(path, 2*SectorSize, clock)
	require.NoError(t, err)
	defer f.Close()

	require.True(t, f.Write(0, []byte{1}))
	require.NoError(t, f.Process())

	// Writing a different sector drops the window for the queued one.
	require.True(t, f.Write(SectorSize, []byte{2}))
	require.NoError(t, f.Process())
	require.Equal(t, 1, f.PendingSectors())
}

func TestFlashCloseFlushesAndReopens(t *testing.T) {
	path, cleanup := tempStore(t)
	defer cleanup()
	clock := &sim.ManualClock{}
	f, err := Open(path, 2*SectorSize, clock)
	require.NoError(t, err)

	span := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.True(t, f.Write(SectorSize-4, span))
	require.Equal(t, 2, f.PendingSectors())
	require.NoError(t, f.Close())

	f, err = Open(path, 2*SectorSize, clock)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, span, f.Read(SectorSize-4, 8))
	require.Equal(t, bytes.Repeat([]byte{0xff}, 4), f.Read(0, 4))
}

func TestFlashPartialTailSector(t *testing.T) {
	path, cleanup := tempStore(t)
	defer cleanup()
	const size = SectorSize + 1904
	f, err := Open(path, size, &sim.ManualClock{})
	require.NoError(t, err)

	require.True(t, f.Write(size-4, []byte{0xde, 0xad, 0xbe, 0xef}))
	require.NoError(t, f.Close())

	f, err = Open(path, size, &sim.ManualClock{})
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, f.Read(size-4, 4))
}
