package mdx

import "io"

// ContentBlock is one decoded content block: the decompressed bytes for
// a contiguous run of records, addressable by their logical offset in
// the overall content stream. Grounded on original_source's
// storage::content_block::ContentBlock.
type ContentBlock struct {
	BlockIndex *ContentBlockIndexEntry
	Data       []byte
}

// loadContentBlock reads and decodes the storage block backing index,
// at the reader's current position. Grounded on
// ContentBlock::from_reader.
func loadContentBlock(r io.ReadSeeker, meta *MetaUnit, index *ContentBlockIndexEntry) (*ContentBlock, error) {
	var block *StorageBlock
	var err error
	if meta.Version == VersionV3 {
		block, err = readStorageBlockV3(r, meta)
	} else {
		block, err = readStorageBlockV1V2(r, meta, meta.CryptoKey, uint32(index.BlockCompressedLength), uint32(index.BlockOriginalLength))
	}
	if err != nil {
		return nil, err
	}
	return &ContentBlock{BlockIndex: index, Data: block.Data}, nil
}

// contentAsSlice returns the bytes of this block covering
// [offset, offset+length) in the overall (logical) content stream.
// Grounded on ContentBlock::get_content_as_slice.
func (b *ContentBlock) contentAsSlice(offset, length uint64) ([]byte, error) {
	start := b.BlockIndex.BlockOffsetInSource
	end := start + b.BlockIndex.BlockOriginalLength
	if offset < start || offset+length > end {
		return nil, newInvalidParameter(
			"offset out of range: offset=%d, length=%d, block_offset_in_source=%d, block_original_length=%d",
			offset, length, start, b.BlockIndex.BlockOriginalLength)
	}
	blockOffset := offset - start
	return b.Data[blockOffset : blockOffset+length], nil
}

// contentAsString decodes the requested slice as a string per the
// declared encoding label.
func (b *ContentBlock) contentAsString(offset, length uint64, encodingLabel string) (string, error) {
	content, err := b.contentAsSlice(offset, length)
	if err != nil {
		return "", err
	}
	return decodeBytesToString(content, encodingLabel)
}
