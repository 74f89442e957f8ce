package mdx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryLoaderLoadsRegisteredKey(t *testing.T) {
	loader := NewInMemoryLoader(map[string][]byte{
		"hello": []byte("world"),
	})
	data, err := loader.LoadData(&BuildRecord{Key: "hello"})
	require.NoError(t, err)
	require.Equal(t, []byte("world"), data)
}

func TestInMemoryLoaderMissingKeyErrors(t *testing.T) {
	loader := NewInMemoryLoader(map[string][]byte{})
	_, err := loader.LoadData(&BuildRecord{Key: "missing"})
	require.Error(t, err)
}

func TestNewDirectoryLoaderScansTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("BB"), 0o644))

	loader, records, err := NewDirectoryLoader(root)
	require.NoError(t, err)
	require.Len(t, records, 2)

	keys := map[string]*BuildRecord{}
	for _, r := range records {
		keys[r.Key] = r
	}
	require.Contains(t, keys, "/a.txt")
	require.Contains(t, keys, "/sub/b.txt")

	data, err := loader.LoadData(keys["/a.txt"])
	require.NoError(t, err)
	require.Equal(t, []byte("A"), data)

	data, err = loader.LoadData(keys["/sub/b.txt"])
	require.NoError(t, err)
	require.Equal(t, []byte("BB"), data)
}

func TestWindowsPathToUnixPath(t *testing.T) {
	require.Equal(t, "a/b/c", windowsPathToUnixPath(`a\b\c`))
}
