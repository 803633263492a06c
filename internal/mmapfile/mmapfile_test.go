package mmapfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mm.bin")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0664)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestNewAndWriteWithinCapacity(t *testing.T) {
	f := tempFile(t)
	require.NoError(t, f.Truncate(4096))

	m, err := New(f, 4096)
	require.NoError(t, err)

	require.NoError(t, m.Write([]byte("hello"), 4096))
	require.Equal(t, int64(5), m.Offset())
	require.Equal(t, int64(4096), m.Len())
	require.Equal(t, []byte("hello"), m.Bytes()[:5])
}

func TestEnsureCapacityGrowsInFixedIncrements(t *testing.T) {
	f := tempFile(t)
	require.NoError(t, f.Truncate(1024))

	m, err := New(f, 1024)
	require.NoError(t, err)

	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, m.Write(payload, 1024))

	require.True(t, m.Len() >= int64(len(payload)))
	require.Equal(t, int64(0), m.Len()%1024, "mapped length must stay a multiple of the growth increment")
	require.Equal(t, payload, m.Bytes()[:len(payload)])
}

func TestFinalizeShrinksToExactOffset(t *testing.T) {
	f := tempFile(t)
	require.NoError(t, f.Truncate(4096))

	m, err := New(f, 4096)
	require.NoError(t, err)
	require.NoError(t, m.Write([]byte("abc"), 4096))
	require.NoError(t, m.Finalize())

	st, err := f.Stat()
	require.NoError(t, err)
	require.Equal(t, int64(3), st.Size())
}

func TestUnmapIsIdempotent(t *testing.T) {
	f := tempFile(t)
	require.NoError(t, f.Truncate(4096))
	m, err := New(f, 4096)
	require.NoError(t, err)

	require.NoError(t, m.Unmap())
	require.NoError(t, m.Unmap())
}
