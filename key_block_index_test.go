package mdx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newV3TestMeta() *MetaUnit {
	return &MetaUnit{
		Version:  VersionV3,
		Collator: newLocaleCollator("root"),
		DBInfo:   &DBInfo{},
	}
}

func TestKeyBlockIndexEntryCompareWith(t *testing.T) {
	meta := newV3TestMeta()
	entry := &KeyBlockIndexEntry{FirstKey: "cat", LastKey: "dog"}

	cmp, err := entry.compareWith("apple", nil, false, meta)
	require.NoError(t, err)
	require.Greater(t, cmp, 0, "probe before first key means the entry's range lies entirely after it")

	cmp, err = entry.compareWith("fox", nil, false, meta)
	require.NoError(t, err)
	require.Less(t, cmp, 0, "probe after last key means the entry's range lies entirely before it")

	cmp, err = entry.compareWith("cow", nil, false, meta)
	require.NoError(t, err)
	require.Equal(t, 0, cmp, "probe within [first,last] compares Equal")

	cmp, err = entry.compareWith("cat", nil, false, meta)
	require.NoError(t, err)
	require.Equal(t, 0, cmp)

	cmp, err = entry.compareWith("dog", nil, false, meta)
	require.NoError(t, err)
	require.Equal(t, 0, cmp)
}

func threeRangeUnit(meta *MetaUnit) *KeyBlockIndexUnit {
	return &KeyBlockIndexUnit{
		Meta: meta,
		BlockIndexes: []*KeyBlockIndexEntry{
			{FirstKey: "apple", LastKey: "banana", FirstEntryNoInBlock: 0, EntryCountInBlock: 2},
			{FirstKey: "cat", LastKey: "dog", FirstEntryNoInBlock: 2, EntryCountInBlock: 2},
			{FirstKey: "elephant", LastKey: "fox", FirstEntryNoInBlock: 4, EntryCountInBlock: 2},
		},
	}
}

func TestKeyBlockIndexUnitFindIndexExact(t *testing.T) {
	meta := newV3TestMeta()
	unit := threeRangeUnit(meta)

	entry, err := unit.findIndex("cheetah", false, false)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "cat", entry.FirstKey)
}

func TestKeyBlockIndexUnitFindIndexOutOfRangeWithoutPartialMatch(t *testing.T) {
	meta := newV3TestMeta()
	unit := threeRangeUnit(meta)

	// "zzz" falls after every block's range and isn't covered by any
	// entry; without partial_match this must report no match rather
	// than retrying with a shorter key.
	entry, err := unit.findIndex("zzz", false, false)
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestKeyBlockIndexUnitFindIndexPartialMatchShrinksKey(t *testing.T) {
	meta := newV3TestMeta()
	unit := threeRangeUnit(meta)

	// "foxglove" falls after the last block's range ("elephant".."fox");
	// dropping trailing characters eventually reaches "fox", which is
	// covered by the third block.
	entry, err := unit.findIndex("foxglove", false, true)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "elephant", entry.FirstKey)
}

func TestKeyBlockFindIndexExact(t *testing.T) {
	meta := newV3TestMeta()
	block := &KeyBlock{
		Meta: meta,
		KeyIndexes: []*KeyIndex{
			{Key: "cat", EntryNo: 0},
			{Key: "catnip", EntryNo: 1},
			{Key: "dog", EntryNo: 2},
		},
	}

	idx, err := block.findIndex("catnip", false, false)
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Equal(t, EntryNo(1), idx.EntryNo)
}

func TestKeyBlockFindIndexNoMatchWithoutPartialMatch(t *testing.T) {
	meta := newV3TestMeta()
	block := &KeyBlock{
		Meta: meta,
		KeyIndexes: []*KeyIndex{
			{Key: "cat", EntryNo: 0},
			{Key: "catnip", EntryNo: 1},
			{Key: "dog", EntryNo: 2},
		},
	}

	idx, err := block.findIndex("catnipped", false, false)
	require.NoError(t, err)
	require.Nil(t, idx)
}

func TestKeyBlockFindIndexPartialMatchDropsTrailingCharacters(t *testing.T) {
	meta := newV3TestMeta()
	block := &KeyBlock{
		Meta: meta,
		KeyIndexes: []*KeyIndex{
			{Key: "cat", EntryNo: 0},
			{Key: "catnip", EntryNo: 1},
			{Key: "dog", EntryNo: 2},
		},
	}

	idx, err := block.findIndex("catnipped", false, true)
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Equal(t, EntryNo(1), idx.EntryNo, "should shrink catnipped -> catnip and match")
}

func TestKeyBlockFindIndexPartialMatchExhaustsToEmptyKey(t *testing.T) {
	meta := newV3TestMeta()
	block := &KeyBlock{
		Meta: meta,
		KeyIndexes: []*KeyIndex{
			{Key: "cat", EntryNo: 0},
		},
	}

	// No prefix of "xyz" ever matches "cat", so the retry loop must
	// terminate (key exhausted) rather than loop forever or panic.
	idx, err := block.findIndex("xyz", false, true)
	require.NoError(t, err)
	require.Nil(t, idx)
}

func TestKeyBlockFindIndexPrefixMatch(t *testing.T) {
	meta := newV3TestMeta()
	block := &KeyBlock{
		Meta: meta,
		KeyIndexes: []*KeyIndex{
			{Key: "application", EntryNo: 0},
			{Key: "apply", EntryNo: 1},
		},
	}

	idx, err := block.findIndex("app", true, false)
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Equal(t, EntryNo(0), idx.EntryNo, "prefix match returns the leftmost covering entry")
}
