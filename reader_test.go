package mdx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestContainer(t *testing.T, records []*BuildRecord, content map[string][]byte, opts ...Option) *Reader {
	t.Helper()
	cfg := NewBuilderConfig(append([]Option{
		WithCompression(CompressionNone),
		WithEncryption(EncryptionNone),
		WithContentType("Html"),
	}, opts...)...)
	cfg.PreferredKeyBlockSize = 64
	cfg.PreferredContentBlockSize = 64

	b := NewBuilder(cfg)
	require.NoError(t, b.AddRecords(records))

	path := filepath.Join(t.TempDir(), "test.zdb")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, b.Build(f, NewInMemoryLoader(content), nil))
	require.NoError(t, f.Close())

	rf, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { rf.Close() })

	rd, err := OpenReader(rf, "", "")
	require.NoError(t, err)
	return rd
}

func TestReaderGetDataByKeyFollowsLink(t *testing.T) {
	records := []*BuildRecord{{Key: "apple"}, {Key: "see-also"}}
	content := map[string][]byte{
		"apple":    []byte("<p>a fruit</p>"),
		"see-also": []byte("@@@LINK=apple"),
	}
	rd := buildTestContainer(t, records, content)

	data, err := rd.GetDataByKey("see-also")
	require.NoError(t, err)
	require.Equal(t, content["apple"], data)
}

func TestReaderGetDataWithoutLinkResolutionReturnsRawLinkText(t *testing.T) {
	records := []*BuildRecord{{Key: "apple"}, {Key: "see-also"}}
	content := map[string][]byte{
		"apple":    []byte("<p>a fruit</p>"),
		"see-also": []byte("@@@LINK=apple"),
	}
	rd := buildTestContainer(t, records, content)

	idx, err := rd.FindFirstMatch("see-also", false, false, false)
	require.NoError(t, err)
	require.NotNil(t, idx)

	data, err := rd.GetData(idx, false)
	require.NoError(t, err)
	require.Equal(t, content["see-also"], data)
}

func TestReaderDetectsSelfLink(t *testing.T) {
	records := []*BuildRecord{{Key: "selfie"}}
	content := map[string][]byte{
		"selfie": []byte("@@@LINK=selfie"),
	}
	rd := buildTestContainer(t, records, content)

	_, err := rd.GetDataByKey("selfie")
	require.Error(t, err)
}

func TestReaderDetectsCyclicLink(t *testing.T) {
	records := []*BuildRecord{{Key: "loopA"}, {Key: "loopB"}}
	content := map[string][]byte{
		"loopA": []byte("@@@LINK=loopB"),
		"loopB": []byte("@@@LINK=loopA"),
	}
	rd := buildTestContainer(t, records, content)

	_, err := rd.GetDataByKey("loopA")
	require.Error(t, err)
	require.Contains(t, strings.ToLower(err.Error()), "cyclic")
}

func TestReaderFindFirstMatchExact(t *testing.T) {
	records := []*BuildRecord{{Key: "apple"}, {Key: "banana"}, {Key: "cherry"}}
	content := map[string][]byte{
		"apple":  []byte("a"),
		"banana": []byte("b"),
		"cherry": []byte("c"),
	}
	rd := buildTestContainer(t, records, content)

	idx, err := rd.FindFirstMatch("banana", false, false, false)
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Equal(t, "banana", idx.Key)
}

func TestReaderFindFirstMatchPrefixMatch(t *testing.T) {
	records := []*BuildRecord{{Key: "application"}, {Key: "apply"}, {Key: "banana"}}
	content := map[string][]byte{
		"application": []byte("1"),
		"apply":       []byte("2"),
		"banana":      []byte("3"),
	}
	rd := buildTestContainer(t, records, content)

	idx, err := rd.FindFirstMatch("app", true, false, false)
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Equal(t, "application", idx.Key, "prefix match returns the leftmost covering entry")
}

func TestReaderFindFirstMatchPartialMatchShrinksKey(t *testing.T) {
	records := []*BuildRecord{{Key: "cat"}, {Key: "catnip"}, {Key: "dog"}}
	content := map[string][]byte{
		"cat":    []byte("1"),
		"catnip": []byte("2"),
		"dog":    []byte("3"),
	}
	rd := buildTestContainer(t, records, content)

	idx, err := rd.FindFirstMatch("catnipped", false, false, false)
	require.NoError(t, err)
	require.Nil(t, idx, "without partial_match an unmatched key returns nothing")

	idx, err = rd.FindFirstMatch("catnipped", false, true, false)
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Equal(t, "catnip", idx.Key)
}

func TestReaderFindFirstMatchBestMatchReturnsExactKey(t *testing.T) {
	records := []*BuildRecord{{Key: "cat"}, {Key: "catalog"}, {Key: "catnip"}}
	content := map[string][]byte{
		"cat":     []byte("1"),
		"catalog": []byte("2"),
		"catnip":  []byte("3"),
	}
	rd := buildTestContainer(t, records, content)

	idx, err := rd.FindFirstMatch("catnip", false, false, true)
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Equal(t, "catnip", idx.Key, "best_match returns the entry whose key equals the probe")
}

func TestReaderGetSimilarIndexes(t *testing.T) {
	records := []*BuildRecord{{Key: "cat"}, {Key: "cat"}, {Key: "cat"}, {Key: "dog"}}
	content := map[string][]byte{
		"cat": []byte("c"),
		"dog": []byte("d"),
	}
	rd := buildTestContainer(t, records, content)

	idx, err := rd.FindFirstMatch("cat", false, false, false)
	require.NoError(t, err)
	require.NotNil(t, idx)

	similar, err := rd.GetSimilarIndexes(idx, false, 10)
	require.NoError(t, err)
	require.Len(t, similar, 3)
	for _, s := range similar {
		require.Equal(t, "cat", s.Key)
	}
}

func TestReaderGetIndexesAndContentLength(t *testing.T) {
	records := []*BuildRecord{{Key: "apple"}, {Key: "banana"}, {Key: "cherry"}}
	content := map[string][]byte{
		"apple":  []byte("<p>a fruit</p>"),
		"banana": []byte("<p>a yellow fruit</p>"),
		"cherry": []byte("<p>a small fruit</p>"),
	}
	rd := buildTestContainer(t, records, content)
	require.Equal(t, uint64(3), rd.EntryCount())

	indexes, err := rd.GetIndexes(0, 10)
	require.NoError(t, err)
	require.Len(t, indexes, 3)

	for _, idx := range indexes {
		length, err := rd.GetContentLength(idx.EntryNo)
		require.NoError(t, err)
		require.Equal(t, uint64(len(content[idx.Key])), length)
	}
}

func TestReaderGetContentBlockIsCached(t *testing.T) {
	records := []*BuildRecord{{Key: "apple"}, {Key: "banana"}}
	content := map[string][]byte{
		"apple":  []byte("<p>a fruit</p>"),
		"banana": []byte("<p>a yellow fruit</p>"),
	}
	rd := buildTestContainer(t, records, content)

	idx, err := rd.FindFirstMatch("apple", false, false, false)
	require.NoError(t, err)
	require.NotNil(t, idx)

	block1, err := rd.GetContentBlock(idx)
	require.NoError(t, err)
	block2, err := rd.GetContentBlock(idx)
	require.NoError(t, err)
	require.Same(t, block1, block2, "repeated lookups within a block hit the LRU cache")
}

func TestReaderGetString(t *testing.T) {
	records := []*BuildRecord{{Key: "apple"}}
	content := map[string][]byte{
		"apple": []byte("<p>a fruit</p>"),
	}
	rd := buildTestContainer(t, records, content)

	idx, err := rd.FindFirstMatch("apple", false, false, false)
	require.NoError(t, err)
	require.NotNil(t, idx)

	s, err := rd.GetString(idx, false)
	require.NoError(t, err)
	require.Equal(t, "<p>a fruit</p>", s)
}

func TestReaderGetDataByKeyMissingKeyReturnsNil(t *testing.T) {
	records := []*BuildRecord{{Key: "apple"}}
	content := map[string][]byte{"apple": []byte("a")}
	rd := buildTestContainer(t, records, content)

	data, err := rd.GetDataByKey("does-not-exist")
	require.NoError(t, err)
	require.Nil(t, data)
}
