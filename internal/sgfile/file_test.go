package sgfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfa-haystack/vdifsg/internal/constants"
)

const testPacketSize = 8224

func frameBuf(t *testing.T, n int, secs uint32, startFrame uint32) []byte {
	t.Helper()
	buf := make([]byte, n*testPacketSize)
	for i := 0; i < n; i++ {
		off := i * testPacketSize
		putU32LE(buf[off:off+4], secs)
		putU32LE(buf[off+4:off+8], startFrame+uint32(i))
		putU32LE(buf[off+8:off+12], uint32(testPacketSize/8))
	}
	return buf
}

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestCreateAppendAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard0.sg")

	wf, err := Create(path)
	require.NoError(t, err)

	h := FileHeaderTag{
		SyncWord:     constants.SyncWord,
		Version:      constants.FileVersion,
		PacketFormat: constants.PacketFormatVDIF,
		PacketSize:   testPacketSize,
		BlockSize:    testPacketSize*10 + constants.WBlockHeaderTagSize,
	}
	require.NoError(t, wf.WriteFileHeader(h))

	payload := frameBuf(t, 10, 100, 0)
	require.NoError(t, wf.AppendBlock(0, payload))
	require.Equal(t, 1, wf.BlockCount())
	require.NoError(t, wf.Finalize())
	require.NoError(t, wf.Close())

	rf, err := Open(path)
	require.NoError(t, err)
	defer rf.Close()

	require.Equal(t, 1, rf.BlockCount())
	require.Equal(t, testPacketSize, rf.PacketSize())

	got, err := rf.BlockRange(0)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	ts, err := rf.FirstTimestamp()
	require.NoError(t, err)
	require.Equal(t, uint32(100), ts.Secs)
	require.Equal(t, uint32(0), ts.Frame)
}

func TestCreateAppendsManyBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard1.sg")

	wf, err := Create(path)
	require.NoError(t, err)

	h := FileHeaderTag{
		SyncWord:     constants.SyncWord,
		Version:      constants.FileVersion,
		PacketFormat: constants.PacketFormatVDIF,
		PacketSize:   testPacketSize,
		BlockSize:    testPacketSize*10 + constants.WBlockHeaderTagSize,
	}
	require.NoError(t, wf.WriteFileHeader(h))

	for i := 0; i < 50; i++ {
		payload := frameBuf(t, 10, 100, uint32(i*10))
		require.NoError(t, wf.AppendBlock(uint32(i), payload))
	}
	require.NoError(t, wf.Finalize())
	require.NoError(t, wf.Close())

	rf, err := Open(path)
	require.NoError(t, err)
	defer rf.Close()
	require.Equal(t, 50, rf.BlockCount())

	last, err := rf.BlockRange(49)
	require.NoError(t, err)
	require.Len(t, last, 10*testPacketSize)
}

func TestRestoreSizeAndUnlinkRemovesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sg")

	wf, err := Create(path)
	require.NoError(t, err)
	require.Equal(t, int64(0), wf.Offset())
	require.NoError(t, wf.RestoreSizeAndUnlink())

	_, err = Open(path)
	require.Error(t, err)
}

func TestCreateMakesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m0", "d1", "data.sg")

	wf, err := Create(path)
	require.NoError(t, err)
	defer wf.Close()

	st, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, st.IsDir())
}
