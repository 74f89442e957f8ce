package mdx

import (
	"bytes"
	"encoding/binary"
	"io"
)

// ContentBlockIndexEntry describes one content block's placement: its
// compressed/original lengths and its running offsets both within the
// logical (decompressed) content stream and within the unit's own
// on-disk layout. Grounded on original_source's
// storage::content_block_index_unit::ContentBlockIndex.
type ContentBlockIndexEntry struct {
	BlockOriginalLength   uint64
	BlockCompressedLength uint64
	BlockOffsetInSource   uint64
	BlockOffsetInUnit     uint64
}

func readContentBlockIndexEntry(r io.Reader, version ZdbVersion) (*ContentBlockIndexEntry, error) {
	readLen := func() (uint64, error) {
		if version == VersionV1 {
			var v32 uint32
			if err := binary.Read(r, binary.BigEndian, &v32); err != nil {
				return 0, newIoErr(err)
			}
			return uint64(v32), nil
		}
		var v64 uint64
		if err := binary.Read(r, binary.BigEndian, &v64); err != nil {
			return 0, newIoErr(err)
		}
		return v64, nil
	}
	compressedLength, err := readLen()
	if err != nil {
		return nil, err
	}
	originalLength, err := readLen()
	if err != nil {
		return nil, err
	}
	return &ContentBlockIndexEntry{
		BlockOriginalLength:   originalLength,
		BlockCompressedLength: compressedLength,
	}, nil
}

// ContentBlockIndexUnit is the parsed content-block directory: a flat
// array of entries ordered by logical offset, searchable by binary
// search. Grounded on
// storage::content_block_index_unit::ContentBlockIndexUnit.
type ContentBlockIndexUnit struct {
	RecordCount            uint64
	BlockIndexEntries      []*ContentBlockIndexEntry
	TotalOriginalDataLength uint64
}

// readContentBlockIndexEntries parses blockCount entries and fills in
// each one's running block_offset_in_source/block_offset_in_unit via
// prefix sums over the preceding entries' lengths.
func readContentBlockIndexEntries(blockData []byte, version ZdbVersion, blockCount uint32) ([]*ContentBlockIndexEntry, uint64, error) {
	r := bytes.NewReader(blockData)
	entries := make([]*ContentBlockIndexEntry, 0, blockCount)
	for i := uint32(0); i < blockCount; i++ {
		entry, err := readContentBlockIndexEntry(r, version)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	var offsetInUnit, offsetInSource uint64
	for _, entry := range entries {
		entry.BlockOffsetInSource = offsetInSource
		offsetInSource += entry.BlockOriginalLength
		entry.BlockOffsetInUnit = offsetInUnit
		offsetInUnit += entry.BlockCompressedLength
	}
	return entries, offsetInSource, nil
}

// readContentBlockIndexUnitV3 parses the V3 content-block-index unit:
// a UnitInfoSection, a trailing DataInfo descriptor (read ahead, then
// rewound), and a single storage block holding all entries. Requires a
// seekable reader, mirroring
// ContentBlockIndexUnit::from_reader_v3.
func readContentBlockIndexUnitV3(r io.ReadSeeker, meta *MetaUnit, blockIndexCount uint32) (*ContentBlockIndexUnit, error) {
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
	dataInfo, err := readContentBlockIndexDataInfo(r, meta)
	if err != nil {
		return nil, err
	}
	endOfUnit, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, newIoErr(err)
	}

	if _, err := r.Seek(dataStart, io.SeekStart); err != nil {
		return nil, newIoErr(err)
	}
	block, err := readStorageBlockV3(r, meta)
	if err != nil {
		return nil, err
	}
	entries, totalOriginalDataLength, err := readContentBlockIndexEntries(block.Data, meta.Version, blockIndexCount)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(endOfUnit, io.SeekStart); err != nil {
		return nil, newIoErr(err)
	}

	return &ContentBlockIndexUnit{
		RecordCount:             uint64(dataInfo.RecordCount),
		BlockIndexEntries:       entries,
		TotalOriginalDataLength: totalOriginalDataLength,
	}, nil
}

// readContentBlockIndexUnitV1V2 parses the legacy content-block-index
// unit: a fixed idx_para header (block/record counts, uncompressed
// index size) followed by the raw (never compressed in V1/V2) entry
// array.
func readContentBlockIndexUnitV1V2(r io.Reader, meta *MetaUnit) (*ContentBlockIndexUnit, error) {
	size := 4 * 4
	if !meta.isV1() {
		size = 8 * 4
	}
	idxPara, err := readExact(r, size)
	if err != nil {
		return nil, err
	}
	pr := newUintReader(bytes.NewReader(idxPara), meta.Version)
	blockCount, err := pr.readUint()
	if err != nil {
		return nil, err
	}
	recordCount, err := pr.readUint()
	if err != nil {
		return nil, err
	}
	contentBlockIndexSize, err := pr.readUint()
	if err != nil {
		return nil, err
	}
	if _, err := pr.readUint(); err != nil { // content_data_block_comp_size, unused
		return nil, err
	}

	blockIndexData, err := readExact(r, int(contentBlockIndexSize))
	if err != nil {
		return nil, err
	}
	entries, totalOriginalDataLength, err := readContentBlockIndexEntries(blockIndexData, meta.Version, uint32(blockCount))
	if err != nil {
		return nil, err
	}

	return &ContentBlockIndexUnit{
		RecordCount:             recordCount,
		BlockIndexEntries:       entries,
		TotalOriginalDataLength: totalOriginalDataLength,
	}, nil
}

// getIndex binary-searches for the entry whose [offset_in_source,
// offset_in_source+original_length) range contains offset. Grounded on
// ContentBlockIndexUnit::get_index.
func (u *ContentBlockIndexUnit) getIndex(offset uint64) (*ContentBlockIndexEntry, error) {
	entries := u.BlockIndexEntries
	left, right := 0, len(entries)
	for left < right {
		mid := left + (right-left)/2
		entry := entries[mid]
		start := entry.BlockOffsetInSource
		end := start + entry.BlockOriginalLength
		switch {
		case offset < start:
			if mid == 0 {
				return nil, newInvalidParameter("offset %d not found in any block index entry", offset)
			}
			right = mid
		case offset >= end:
			left = mid + 1
		default:
			return entry, nil
		}
	}
	return nil, newInvalidParameter("offset %d not found in any block index entry", offset)
}
