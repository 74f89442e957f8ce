package mdx

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		hdr := &zip.FileHeader{Name: name, Method: zip.Store}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestArchiveDirectoryReadsStoredEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, path, map[string]string{
		"index/meta.json": `{"a":1}`,
		"segment/0.dat":   "0123456789",
	})

	dir := OpenArchiveDirectory(path)

	ok, err := dir.Exists("index/meta.json")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = dir.Exists("nope")
	require.NoError(t, err)
	require.False(t, ok)

	full, err := dir.AtomicRead("segment/0.dat")
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(full))

	partial, err := dir.ReadBytes("segment/0.dat", 3, 4)
	require.NoError(t, err)
	require.Equal(t, "3456", string(partial))
}

func TestArchiveDirectoryReadBytesOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, path, map[string]string{"f": "abc"})

	dir := OpenArchiveDirectory(path)
	_, err := dir.ReadBytes("f", 1, 10)
	require.Error(t, err)
}

func TestArchiveDirectoryIsReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, path, map[string]string{"f": "abc"})

	dir := OpenArchiveDirectory(path)
	require.Error(t, dir.Delete("f"))
	require.Error(t, dir.Write("f", []byte("x")))

	release, err := dir.AcquireLock()
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}
