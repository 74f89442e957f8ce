package mdx

import (
	"bytes"
	"encoding/binary"
	"io"
)

// KeyIndex is one entry of a key block's sorted key array: a key plus
// the logical offset of its content record in the source stream.
// Grounded on original_source's storage::key_block::KeyIndex.
type KeyIndex struct {
	Key                  string
	KeyRaw               []byte
	SortKey              []byte
	ContentOffsetInSource uint64
	EntryNo              EntryNo
}

// compareWith implements keyComparable for a single key entry.
func (k *KeyIndex) compareWith(probe string, probeSortKey []byte, prefixMatch bool, meta *MetaUnit) (int, error) {
	return keyCompare(k.Key, k.SortKey, probe, probeSortKey, prefixMatch, meta)
}

// keyStrFromCursor reads a null-terminated (or double-null-terminated,
// for UTF-16) key string starting at the cursor's current position,
// without knowing its length up front. Grounded on
// key_block::key_str_from_cursor.
func keyStrFromCursor(data []byte, isUTF16 bool) []byte {
	if isUTF16 {
		for i := 0; i+1 < len(data); i += 2 {
			if data[i] == 0 && data[i+1] == 0 {
				return data[:i]
			}
		}
		return data
	}
	if idx := bytes.IndexByte(data, 0); idx >= 0 {
		return data[:idx]
	}
	return data
}

// KeyBlock is one decoded key block: a sorted array of KeyIndex
// entries. Grounded on original_source's storage::key_block::KeyBlock.
type KeyBlock struct {
	KeyBlockIndex *KeyBlockIndexEntry
	KeyIndexes    []*KeyIndex
	Meta          *MetaUnit
}

func (b *KeyBlock) length() int { return len(b.KeyIndexes) }

func (b *KeyBlock) itemCompare(i int, probe string, probeSortKey []byte, prefixMatch bool, meta *MetaUnit) (int, error) {
	return b.KeyIndexes[i].compareWith(probe, probeSortKey, prefixMatch, meta)
}

// readKeyBlock decodes a key block's raw (already decompressed) byte
// stream into its sorted KeyIndex array. The content-offset field's
// width (u32 vs u64) is version-dependent; entry numbers are assigned
// sequentially starting at the index's first_entry_no_in_block.
// Grounded on key_block::KeyBlock::from_reader.
func readKeyBlock(data []byte, index *KeyBlockIndexEntry, meta *MetaUnit) (*KeyBlock, error) {
	r := bytes.NewReader(data)
	entries := make([]*KeyIndex, 0, index.EntryCountInBlock)
	entryNo := index.FirstEntryNoInBlock

	for i := uint64(0); i < index.EntryCountInBlock; i++ {
		var contentOffset uint64
		if meta.Version == VersionV1 {
			var v32 uint32
			if err := binary.Read(r, binary.BigEndian, &v32); err != nil {
				return nil, newIoErr(err)
			}
			contentOffset = uint64(v32)
		} else {
			if err := binary.Read(r, binary.BigEndian, &contentOffset); err != nil {
				return nil, newIoErr(err)
			}
		}

		remaining := make([]byte, r.Len())
		if _, err := io.ReadFull(r, remaining); err != nil {
			return nil, newIoErr(err)
		}
		keyRaw := keyStrFromCursor(remaining, meta.DBInfo.IsUTF16)
		terminatorLen := 1
		if meta.DBInfo.IsUTF16 {
			terminatorLen = 2
		}
		consumed := len(keyRaw) + terminatorLen
		if consumed > len(remaining) {
			consumed = len(remaining)
		}
		if _, err := r.Seek(int64(consumed-len(remaining)), io.SeekCurrent); err != nil {
			return nil, newIoErr(err)
		}

		sortKey, err := getSortKey(keyRaw, meta)
		if err != nil {
			return nil, err
		}
		key, err := decodeBytesToString(keyRaw, meta.DBInfo.EncodingLabel)
		if err != nil {
			return nil, err
		}

		entries = append(entries, &KeyIndex{
			Key:                   key,
			KeyRaw:                keyRaw,
			SortKey:               sortKey,
			ContentOffsetInSource: contentOffset,
			EntryNo:               entryNo,
		})
		entryNo++
	}

	return &KeyBlock{KeyBlockIndex: index, KeyIndexes: entries, Meta: meta}, nil
}

// loadKeyBlock fetches and decodes the storage block backing a key
// block directory entry, then parses its KeyIndex array. Grounded on
// key_block::KeyBlock::from_reader.
func loadKeyBlock(r io.ReadSeeker, meta *MetaUnit, index *KeyBlockIndexEntry) (*KeyBlock, error) {
	var block *StorageBlock
	var err error
	if meta.Version == VersionV3 {
		block, err = readStorageBlockV3(r, meta)
	} else {
		block, err = readStorageBlockV1V2(r, meta, meta.CryptoKey, uint32(index.BlockLength), uint32(index.RawDataLength))
	}
	if err != nil {
		return nil, err
	}
	return readKeyBlock(block.Data, index, meta)
}

// findIndex locates the leftmost KeyIndex entry equal to key under the
// block's comparator, per key_block::find_index/get_index. When
// partialMatch is set and no full match is found, the key is
// progressively shortened (dropping its last character) and retried.
func (b *KeyBlock) findIndex(key string, prefixMatch, partialMatch bool) (*KeyIndex, error) {
	sortKey, err := getSortKey([]byte(key), b.Meta)
	if err != nil {
		return nil, err
	}
	idx, err := binarySearchFirst(b, key, sortKey, b.Meta, prefixMatch, partialMatch)
	if err != nil || idx < 0 {
		return nil, err
	}
	return b.KeyIndexes[idx], nil
}

// getIndex returns the KeyIndex at the given position within the block.
func (b *KeyBlock) getIndex(i int) (*KeyIndex, error) {
	if i < 0 || i >= len(b.KeyIndexes) {
		return nil, newInvalidParameter("key index %d out of range", i)
	}
	return b.KeyIndexes[i], nil
}
