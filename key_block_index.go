package mdx

import (
	"bytes"
	"encoding/binary"
	"io"
)

// EntryNo numbers keys across the whole key unit, assigned sequentially
// as key-block-index entries are parsed. Grounded on
// original_source's storage::key_block::EntryNo.
type EntryNo int64

const (
	invalidEntryNo EntryNo = -1
	unionEntryNo   EntryNo = -2
)

// KeyBlockIndexEntry is one row of the unit-level key directory: the
// first/last key of a key block plus enough metadata to binary-search
// across blocks without decoding any of them. Grounded on
// original_source's storage::key_block_index::KeyBlockIndex.
type KeyBlockIndexEntry struct {
	EntryCountInBlock   uint64
	FirstKey            string
	LastKey             string
	FirstSortKey        []byte
	LastSortKey         []byte
	BlockLength         uint64
	RawDataLength       uint64
	BlockOffsetInKeyUnit uint64
	FirstEntryNoInBlock EntryNo
}

// compareWith implements keyComparable: an entry matches the probe if
// the probe falls within [first_key, last_key]. It reports the entry's
// order relative to the probe: 1 when the probe sorts before first_key,
// -1 when the probe sorts after last_key, else 0.
func (e *KeyBlockIndexEntry) compareWith(probe string, probeSortKey []byte, prefixMatch bool, meta *MetaUnit) (int, error) {
	cmpFirst, err := keyCompare(e.FirstKey, e.FirstSortKey, probe, probeSortKey, prefixMatch, meta)
	if err != nil {
		return 0, err
	}
	switch {
	case cmpFirst < 0:
		cmpLast, err := keyCompare(e.LastKey, e.LastSortKey, probe, probeSortKey, prefixMatch, meta)
		if err != nil {
			return 0, err
		}
		if cmpLast >= 0 {
			return 0, nil
		}
		return -1, nil
	case cmpFirst > 0:
		return 1, nil
	default:
		return 0, nil
	}
}

// readKeyBlockIndexKey reads one length-prefixed key (first_key or
// last_key) from a key-block-index entry, accounting for the
// per-version length-prefix width, UTF-16 char-to-byte scaling, and the
// terminating-zero rule (V1 keys have none; V2/V3 do). Grounded on
// key_block_index::read_key.
func readKeyBlockIndexKey(r io.Reader, meta *MetaUnit) ([]byte, error) {
	var length int
	switch meta.Version {
	case VersionV3, VersionV2:
		var v uint16
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, newIoErr(err)
		}
		length = int(v)
	case VersionV1:
		var v uint8
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, newIoErr(err)
		}
		length = int(v)
	}

	hasTerminatingZero := 0
	if !meta.isV1() {
		if meta.DBInfo.IsUTF16 {
			hasTerminatingZero = 2
		} else {
			hasTerminatingZero = 1
		}
	}

	if meta.DBInfo.IsUTF16 {
		length *= 2
	}

	buf, err := readExact(r, length+hasTerminatingZero)
	if err != nil {
		return nil, err
	}
	return buf[:length], nil
}

// readKeyBlockIndexEntry parses one KeyBlockIndexEntry, per
// KeyBlockIndex::from_reader: field widths differ between V2 (u64) and
// V1/V3 (u32), but the key-reading and sort-key-derivation steps are
// shared across all three.
func readKeyBlockIndexEntry(r io.Reader, meta *MetaUnit) (*KeyBlockIndexEntry, error) {
	var entryCount, blockLength, rawDataLength uint64
	var firstKeyRaw, lastKeyRaw []byte
	var err error

	switch meta.Version {
	case VersionV3, VersionV1:
		var v32 uint32
		if err = binary.Read(r, binary.BigEndian, &v32); err != nil {
			return nil, newIoErr(err)
		}
		entryCount = uint64(v32)
		if firstKeyRaw, err = readKeyBlockIndexKey(r, meta); err != nil {
			return nil, err
		}
		if lastKeyRaw, err = readKeyBlockIndexKey(r, meta); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.BigEndian, &v32); err != nil {
			return nil, newIoErr(err)
		}
		blockLength = uint64(v32)
		if err = binary.Read(r, binary.BigEndian, &v32); err != nil {
			return nil, newIoErr(err)
		}
		rawDataLength = uint64(v32)
	case VersionV2:
		if err = binary.Read(r, binary.BigEndian, &entryCount); err != nil {
			return nil, newIoErr(err)
		}
		if firstKeyRaw, err = readKeyBlockIndexKey(r, meta); err != nil {
			return nil, err
		}
		if lastKeyRaw, err = readKeyBlockIndexKey(r, meta); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.BigEndian, &blockLength); err != nil {
			return nil, newIoErr(err)
		}
		if err = binary.Read(r, binary.BigEndian, &rawDataLength); err != nil {
			return nil, newIoErr(err)
		}
	}

	firstSortKey, err := getSortKey(firstKeyRaw, meta)
	if err != nil {
		return nil, err
	}
	lastSortKey, err := getSortKey(lastKeyRaw, meta)
	if err != nil {
		return nil, err
	}
	firstKey, err := decodeBytesToString(firstKeyRaw, meta.DBInfo.EncodingLabel)
	if err != nil {
		return nil, err
	}
	lastKey, err := decodeBytesToString(lastKeyRaw, meta.DBInfo.EncodingLabel)
	if err != nil {
		return nil, err
	}

	return &KeyBlockIndexEntry{
		EntryCountInBlock: entryCount,
		FirstKey:          firstKey,
		LastKey:           lastKey,
		FirstSortKey:      firstSortKey,
		LastSortKey:       lastSortKey,
		BlockLength:       blockLength,
		RawDataLength:     rawDataLength,
	}, nil
}

// KeyBlockIndexUnit is the parsed unit-level key directory: an ordered
// array of KeyBlockIndexEntry plus enough bookkeeping to locate the
// key-block-data unit that follows. Grounded on
// original_source's storage::key_block_index_unit::KeyBlockIndexUnit.
type KeyBlockIndexUnit struct {
	BlockIndexes   []*KeyBlockIndexEntry
	Meta           *MetaUnit
	TotalKeyCount  uint64
	KeyDataUnitSize uint64 // only meaningful for V1/V2
}

func (u *KeyBlockIndexUnit) length() int { return len(u.BlockIndexes) }

func (u *KeyBlockIndexUnit) itemCompare(i int, probe string, probeSortKey []byte, prefixMatch bool, meta *MetaUnit) (int, error) {
	return u.BlockIndexes[i].compareWith(probe, probeSortKey, prefixMatch, meta)
}

// findIndex locates the key-block-index entry whose range covers key,
// or returns nil if no block could contain it. When partialMatch is
// set and no block covers the full key, the key is progressively
// shortened (dropping its last character) and retried, per
// KeyBlockIndexUnit::find_index.
func (u *KeyBlockIndexUnit) findIndex(key string, prefixMatch, partialMatch bool) (*KeyBlockIndexEntry, error) {
	sortKey, err := getSortKey([]byte(key), u.Meta)
	if err != nil {
		return nil, err
	}
	idx, err := binarySearchFirst(u, key, sortKey, u.Meta, prefixMatch, partialMatch)
	if err != nil || idx < 0 {
		return nil, err
	}
	return u.BlockIndexes[idx], nil
}

// getIndexByEntryNo locates the key-block-index entry containing the
// given global entry number, via binary search on each block's
// [first_entry_no, first_entry_no+count) range.
func (u *KeyBlockIndexUnit) getIndexByEntryNo(entryNo EntryNo) (*KeyBlockIndexEntry, error) {
	left, right := 0, len(u.BlockIndexes)
	for left < right {
		mid := (left + right) / 2
		block := u.BlockIndexes[mid]
		start := block.FirstEntryNoInBlock
		end := start + EntryNo(block.EntryCountInBlock) - 1
		switch {
		case entryNo < start:
			right = mid
		case entryNo > end:
			left = mid + 1
		default:
			return block, nil
		}
	}
	return nil, newInvalidParameter("entry number %d out of range", entryNo)
}

// readIdxParaV1V2 reads and, for V2, CRC-checks and optionally
// Salsa20-decrypts the fixed-size idx_para header preceding the key
// block index's compressed data. Grounded on
// KeyBlockIndexUnit::read_idx_para_v1_v2.
func readIdxParaV1V2(r io.Reader, meta *MetaUnit) ([]byte, error) {
	size := 4 * 4
	if meta.isV2() {
		size = 8 * 5
	}
	idxPara, err := readExact(r, size)
	if err != nil {
		return nil, err
	}
	if meta.isV2() {
		if len(meta.CryptoKey) > 0 && meta.DBInfo.EncryptionType.isParaEncrypted() {
			enc := newSalsa20Encryptor(meta.CryptoKey, zeroNonce8)
			decrypted := make([]byte, len(idxPara))
			enc.decrypt(idxPara, decrypted)
			idxPara = decrypted
		}
		var crc uint32
		if err := binary.Read(r, binary.BigEndian, &crc); err != nil {
			return nil, newIoErr(err)
		}
		if got := checksum(idxPara); got != crc {
			return nil, newCrcMismatch(crc, got)
		}
	}
	return idxPara, nil
}

// readBlockIndexData reads the (possibly compressed, possibly
// aux-encrypted) key-block-index data section. For V2 with data
// encryption enabled, an 8-byte key is derived from 4 bytes carried in
// the block itself plus a fixed constant and RIPEMD-128-hashed, then
// used to decrypt everything past the first 8 bytes with the Simple
// cipher, before the whole thing is run through the normal storage
// block decode. Grounded on
// KeyBlockIndexUnit::read_block_index_data.
func readBlockIndexData(r io.Reader, meta *MetaUnit, blockDataSize, originalDataLength uint64) ([]byte, error) {
	raw, err := readExact(r, int(blockDataSize))
	if err != nil {
		return nil, err
	}
	if !meta.isV2() {
		return raw, nil
	}
	if meta.DBInfo.EncryptionType.isDataEncrypted() {
		if len(raw) < 8 {
			return nil, newInvalidDataFormat("key block index data too short for aux decryption")
		}
		encKey := make([]byte, 8)
		copy(encKey[0:4], raw[4:8])
		binary.LittleEndian.PutUint32(encKey[4:8], 0x3695)
		derivedKey := ripemd128Key(encKey)
		enc := newSimpleEncryptor(derivedKey)
		decrypted := make([]byte, len(raw)-8)
		enc.decrypt(raw[8:], decrypted)
		copy(raw[8:], decrypted)
	}
	block, err := decodeBlock(raw, uint32(originalDataLength), meta, meta.CryptoKey)
	if err != nil {
		return nil, err
	}
	return block.Data, nil
}

// readBlockIndexEntries parses blockCount consecutive KeyBlockIndexEntry
// records out of decoded block data and assigns each one's running
// first_entry_no / block_offset_in_key_unit, returning the total number
// of keys covered. Grounded on
// KeyBlockIndexUnit::read_block_index_entries.
func readBlockIndexEntries(blockData []byte, meta *MetaUnit, blockCount uint32) ([]*KeyBlockIndexEntry, uint64, error) {
	r := bytes.NewReader(blockData)
	entries := make([]*KeyBlockIndexEntry, 0, blockCount)
	for i := uint32(0); i < blockCount; i++ {
		entry, err := readKeyBlockIndexEntry(r, meta)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	var blockOffsetInUnit uint64
	var firstEntryNoInBlock EntryNo
	for _, entry := range entries {
		entry.FirstEntryNoInBlock = firstEntryNoInBlock
		firstEntryNoInBlock += EntryNo(entry.EntryCountInBlock)
		entry.BlockOffsetInKeyUnit = blockOffsetInUnit
		blockOffsetInUnit += entry.BlockLength
	}
	return entries, uint64(firstEntryNoInBlock), nil
}

// readKeyBlockIndexUnitV1V2 parses the whole key-block-index unit for
// legacy generations: a fixed idx_para header gives block/record
// counts and section sizes, then one storage-block-shaped data section
// holds every KeyBlockIndexEntry back to back.
func readKeyBlockIndexUnitV1V2(r io.Reader, meta *MetaUnit) (*KeyBlockIndexUnit, error) {
	idxPara, err := readIdxParaV1V2(r, meta)
	if err != nil {
		return nil, err
	}
	pr := newUintReader(bytes.NewReader(idxPara), meta.Version)
	keyBlockCount, err := pr.readUint()
	if err != nil {
		return nil, err
	}
	recordCount, err := pr.readUint()
	if err != nil {
		return nil, err
	}
	keyIndexSectionOrigSize, err := pr.readUint()
	if err != nil {
		return nil, err
	}
	keyIndexSectionCompSize := keyIndexSectionOrigSize
	if !meta.isV1() {
		if keyIndexSectionCompSize, err = pr.readUint(); err != nil {
			return nil, err
		}
	}
	keyDataSectionCompSize, err := pr.readUint()
	if err != nil {
		return nil, err
	}

	blockIndexData, err := readBlockIndexData(r, meta, keyIndexSectionCompSize, keyIndexSectionOrigSize)
	if err != nil {
		return nil, err
	}
	entries, totalKeyCount, err := readBlockIndexEntries(blockIndexData, meta, uint32(keyBlockCount))
	if err != nil {
		return nil, err
	}
	if totalKeyCount != recordCount {
		return nil, newInvalidDataFormat("total key count %d does not match record count %d", totalKeyCount, recordCount)
	}

	return &KeyBlockIndexUnit{
		BlockIndexes:    entries,
		Meta:            meta,
		TotalKeyCount:   totalKeyCount,
		KeyDataUnitSize: keyDataSectionCompSize,
	}, nil
}

// readKeyBlockIndexUnitV3 parses the V3 key-block-index unit: a
// UnitInfoSection, then (read-ahead, then rewound) the trailing
// DataInfo descriptor for block count/encoding/locale, then the single
// storage block holding every entry. Requires a seekable reader since
// the DataInfo descriptor trails the data section it describes.
// Grounded on KeyBlockIndexUnit::from_reader_v3.
func readKeyBlockIndexUnitV3(r io.ReadSeeker, meta *MetaUnit) (*KeyBlockIndexUnit, error) {
	unitInfo, err := readUnitInfoSection(r)
	if err != nil {
		return nil, err
	}
	dataStart, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, newIoErr(err)
	}
	if _, err := r.Seek(int64(unitInfo.DataSectionLength), io.SeekCurrent); err != nil {
		return nil, newIoErr(err)
	}
	dataInfo, err := readKeyBlockIndexDataInfo(r, meta)
	if err != nil {
		return nil, err
	}
	endOfUnit, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, newIoErr(err)
	}
	if dataInfo.LocaleID == "" {
		dataInfo.LocaleID = meta.DBInfo.LocaleID
	}

	if _, err := r.Seek(dataStart, io.SeekStart); err != nil {
		return nil, newIoErr(err)
	}
	block, err := readStorageBlockV3(r, meta)
	if err != nil {
		return nil, err
	}
	entries, totalKeyCount, err := readBlockIndexEntries(block.Data, meta, uint32(dataInfo.BlockCount))
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(endOfUnit, io.SeekStart); err != nil {
		return nil, newIoErr(err)
	}

	return &KeyBlockIndexUnit{
		BlockIndexes:  entries,
		Meta:          meta,
		TotalKeyCount: totalKeyCount,
	}, nil
}
