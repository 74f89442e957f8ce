package mdx

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderRoundTrip(t *testing.T) {
	cfg := NewBuilderConfig(
		WithCompression(CompressionNone),
		WithEncryption(EncryptionNone),
		WithContentType("Html"),
	)
	cfg.PreferredKeyBlockSize = 64
	cfg.PreferredContentBlockSize = 64

	records := []*BuildRecord{
		{Key: "apple"},
		{Key: "banana"},
		{Key: "cherry"},
	}
	content := map[string][]byte{
		"apple":  []byte("<p>a fruit</p>"),
		"banana": []byte("<p>a yellow fruit</p>"),
		"cherry": []byte("<p>a small fruit</p>"),
	}
	loader := NewInMemoryLoader(content)

	b := NewBuilder(cfg)
	require.NoError(t, b.AddRecords(records))

	path := filepath.Join(t.TempDir(), "test.zdb")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, b.Build(f, loader, nil))
	require.NoError(t, f.Close())

	rf, err := os.Open(path)
	require.NoError(t, err)
	defer rf.Close()

	rd, err := OpenReader(rf, "", "")
	require.NoError(t, err)
	defer rd.Close()

	require.Equal(t, uint64(3), rd.EntryCount())

	for key, want := range content {
		data, err := rd.GetDataByKey(key)
		require.NoError(t, err)
		require.Equal(t, want, data)
	}

	_, err = rd.GetDataByKey("does-not-exist")
	require.NoError(t, err)
}

func TestBuilderRejectsOverlongKey(t *testing.T) {
	b := NewBuilder(DefaultBuilderConfig())
	longKey := make([]byte, maxKeywordLength+1)
	for i := range longKey {
		longKey[i] = 'a'
	}
	err := b.AddRecords([]*BuildRecord{{Key: string(longKey)}})
	require.Error(t, err)
}

func TestBuilderRoundTripEncrypted(t *testing.T) {
	cfg := NewBuilderConfig(
		WithCompression(CompressionDeflate),
		WithEncryption(EncryptionSalsa20),
		WithContentType("Html"),
	)
	cfg.PreferredKeyBlockSize = 64
	cfg.PreferredContentBlockSize = 64

	records := []*BuildRecord{{Key: "apple"}, {Key: "banana"}}
	content := map[string][]byte{
		"apple":  []byte("<p>a fruit</p>"),
		"banana": bytes.Repeat([]byte("<p>a yellow fruit, long enough to cross the encrypted prefix</p>"), 2),
	}
	loader := NewInMemoryLoader(content)

	b := NewBuilder(cfg)
	require.NoError(t, b.AddRecords(records))

	path := filepath.Join(t.TempDir(), "test.zdb")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, b.Build(f, loader, nil))
	require.NoError(t, f.Close())

	rf, err := os.Open(path)
	require.NoError(t, err)
	defer rf.Close()

	// Salsa20 encryption with no WithPassword() derives the crypto key
	// from the dictionary's own UUID, which OpenReader recomputes from
	// the header it just parsed, so no out-of-band key material is
	// needed here.
	rd, err := OpenReader(rf, "", "")
	require.NoError(t, err)
	defer rd.Close()

	for key, want := range content {
		data, err := rd.GetDataByKey(key)
		require.NoError(t, err)
		require.Equal(t, want, data)
	}
}

func TestBuilderKeysAreOrderedByLocaleCollation(t *testing.T) {
	cfg := NewBuilderConfig(
		WithCompression(CompressionNone),
		WithEncryption(EncryptionNone),
		WithLocale("root"),
	)
	records := []*BuildRecord{
		{Key: "banana"}, {Key: "Apple"}, {Key: "cherry"}, {Key: "apple"},
	}
	content := map[string][]byte{
		"banana": []byte("1"), "Apple": []byte("2"), "cherry": []byte("3"), "apple": []byte("4"),
	}
	loader := NewInMemoryLoader(content)

	b := NewBuilder(cfg)
	require.NoError(t, b.AddRecords(records))
	require.NoError(t, b.prepareKeyIndex())

	collator := newLocaleCollator("root")
	for i := 1; i < len(b.entries); i++ {
		cmp := localeCompareStrings(collator, b.entries[i-1].Key, b.entries[i].Key, false)
		require.LessOrEqual(t, cmp, 0, "entries must be non-decreasing under the configured locale's collation")
	}

	path := filepath.Join(t.TempDir(), "test.zdb")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, b.Build(f, loader, nil))
	require.NoError(t, f.Close())

	rf, err := os.Open(path)
	require.NoError(t, err)
	defer rf.Close()
	rd, err := OpenReader(rf, "", "")
	require.NoError(t, err)
	defer rd.Close()

	indexes, err := rd.GetIndexes(0, rd.EntryCount())
	require.NoError(t, err)
	for i := 1; i < len(indexes); i++ {
		cmp := localeCompareStrings(collator, indexes[i-1].Key, indexes[i].Key, false)
		require.LessOrEqual(t, cmp, 0)
	}
}

func TestBuilderDetectsContentCorruption(t *testing.T) {
	cfg := NewBuilderConfig(
		WithCompression(CompressionNone),
		WithEncryption(EncryptionNone),
	)
	records := []*BuildRecord{{Key: "apple"}}
	content := map[string][]byte{"apple": []byte("<p>a fruit</p>")}
	loader := NewInMemoryLoader(content)

	b := NewBuilder(cfg)
	require.NoError(t, b.AddRecords(records))

	path := filepath.Join(t.TempDir(), "test.zdb")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, b.Build(f, loader, nil))
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip the file's last byte, inside the key-block-index unit's
	// DataInfo storage block body, without touching the meta header.
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	rf, err := os.Open(path)
	require.NoError(t, err)
	defer rf.Close()

	_, err = OpenReader(rf, "", "")
	require.Error(t, err)
}

func TestPrepareKeyBlockIndexUnitPartitions(t *testing.T) {
	b := NewBuilder(DefaultBuilderConfig())
	require.NoError(t, b.AddRecords([]*BuildRecord{
		{Key: "a"}, {Key: "b"}, {Key: "c"}, {Key: "d"},
	}))
	require.NoError(t, b.prepareKeyIndex())
	require.NoError(t, b.prepareKeyBlockIndexUnit(8, nil))
	require.NotEmpty(t, b.keyBlockIndexes)

	var total uint64
	for _, blk := range b.keyBlockIndexes {
		total += blk.EntryCountInBlock
	}
	require.Equal(t, uint64(4), total)
}
