package mdx

import "io"

// ContentUnit locates the content data section and dispatches block
// reads against it; it holds no decoded data itself, only the offset
// where the section begins and the record/block counts needed by the
// reader. Grounded on original_source's
// storage::content_unit::ContentUnit.
type ContentUnit struct {
	TotalRecordCount       uint64
	ContentDataOffsetInFile int64
	BlockCount             uint32
}

// readContentUnitV3 parses the V3 content unit header (UnitInfoSection
// + trailing ContentDataInfo descriptor) and records the offset of the
// data section that follows, without reading any block data yet.
func readContentUnitV3(r io.ReadSeeker, meta *MetaUnit) (*ContentUnit, error) {
	info, err := readUnitInfoSection(r)
	if err != nil {
		return nil, err
	}
	contentDataOffset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, newIoErr(err)
	}
	if _, err := r.Seek(int64(info.DataSectionLength), io.SeekCurrent); err != nil {
		return nil, newIoErr(err)
	}
	dataInfo, err := readContentDataInfo(r, meta)
	if err != nil {
		return nil, err
	}
	return &ContentUnit{
		TotalRecordCount:        uint64(dataInfo.RecordCount),
		ContentDataOffsetInFile: contentDataOffset,
		BlockCount:              info.BlockCount,
	}, nil
}

// readContentUnitV1V2 records the current reader position as the start
// of the (header-less) content data section that follows the legacy
// content-block-index unit.
func readContentUnitV1V2(r io.ReadSeeker, contentBlockIndex *ContentBlockIndexUnit) (*ContentUnit, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, newIoErr(err)
	}
	return &ContentUnit{
		TotalRecordCount:        contentBlockIndex.RecordCount,
		ContentDataOffsetInFile: pos,
		BlockCount:              uint32(len(contentBlockIndex.BlockIndexEntries)),
	}, nil
}

// getContentBlock seeks to and decodes the content block described by
// index. Grounded on ContentUnit::get_content_block.
func (u *ContentUnit) getContentBlock(r io.ReadSeeker, meta *MetaUnit, index *ContentBlockIndexEntry) (*ContentBlock, error) {
	if _, err := r.Seek(int64(index.BlockOffsetInUnit)+u.ContentDataOffsetInFile, io.SeekStart); err != nil {
		return nil, newIoErr(err)
	}
	return loadContentBlock(r, meta, index)
}
