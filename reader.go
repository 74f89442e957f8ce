package mdx

import (
	"io"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// contentBlockCacheCapacity matches the original engine's single LRU
// cache size (zdb_reader.rs hard-codes NonZeroUsize::new(10)).
const contentBlockCacheCapacity = 10

var (
	linkPrefix  = []byte("@@@LINK=")
	linkPrefixW = []byte{
		0x40, 0x00, 0x40, 0x00, 0x40, 0x00,
		0x4C, 0x00, 0x49, 0x00, 0x4E, 0x00, 0x4B, 0x00, 0x3D, 0x00,
	}
)

// Reader is the read-only handle over one dictionary container: it
// composes the four units plus the meta unit and exposes key lookup,
// entry-number iteration, and link-resolved content retrieval.
// Grounded on original_source's readers::zdb_reader::ZdbReader.
type Reader struct {
	Meta              *MetaUnit
	content           *ContentUnit
	contentBlockIndex *ContentBlockIndexUnit
	keyBlocks         *KeyUnit
	keyBlockIndexes   *KeyBlockIndexUnit
	r                 io.ReadSeeker
	blockCache        *lru.Cache[uint64, *ContentBlock]
}

// OpenReader parses a complete container from r and returns a ready
// Reader. deviceID/licenseData feed the meta unit's licensed-crypto-key
// path; pass "" for both against unregistered-by-password containers.
// Grounded on ZdbReader::from_reader.
func OpenReader(r io.ReadSeeker, deviceID, licenseData string) (*Reader, error) {
	meta, err := readMetaUnit(r, deviceID, licenseData, 0)
	if err != nil {
		return nil, err
	}
	if meta.isV3() {
		return openReaderV3(r, meta)
	}
	return openReaderV1V2(r, meta)
}

func openReaderV1V2(r io.ReadSeeker, meta *MetaUnit) (*Reader, error) {
	keyBlockIndexes, err := readKeyBlockIndexUnitV1V2(r, meta)
	if err != nil {
		return nil, err
	}
	keyBlocks, err := readKeyUnitV1V2(r, keyBlockIndexes)
	if err != nil {
		return nil, err
	}
	contentBlockIndexes, err := readContentBlockIndexUnitV1V2(r, meta)
	if err != nil {
		return nil, err
	}
	content, err := readContentUnitV1V2(r, contentBlockIndexes)
	if err != nil {
		return nil, err
	}
	meta.ContentDataTotalLength = contentBlockIndexes.TotalOriginalDataLength

	cache, _ := lru.New[uint64, *ContentBlock](contentBlockCacheCapacity)
	return &Reader{
		Meta:              meta,
		content:           content,
		contentBlockIndex: contentBlockIndexes,
		keyBlocks:         keyBlocks,
		keyBlockIndexes:   keyBlockIndexes,
		r:                 r,
		blockCache:        cache,
	}, nil
}

func openReaderV3(r io.ReadSeeker, meta *MetaUnit) (*Reader, error) {
	content, err := readContentUnitV3(r, meta)
	if err != nil {
		return nil, err
	}
	contentBlockIndex, err := readContentBlockIndexUnitV3(r, meta, content.BlockCount)
	if err != nil {
		return nil, err
	}
	meta.ContentDataTotalLength = contentBlockIndex.TotalOriginalDataLength

	keyBlocks, err := readKeyUnitV3(r, meta)
	if err != nil {
		return nil, err
	}
	keyBlockIndexes, err := readKeyBlockIndexUnitV3(r, meta)
	if err != nil {
		return nil, err
	}

	if content.TotalRecordCount != keyBlockIndexes.TotalKeyCount || keyBlocks.TotalKeyCount != content.TotalRecordCount {
		return nil, newInvalidDataFormat("record count mismatch")
	}

	cache, _ := lru.New[uint64, *ContentBlock](contentBlockCacheCapacity)
	return &Reader{
		Meta:              meta,
		content:           content,
		contentBlockIndex: contentBlockIndex,
		keyBlocks:         keyBlocks,
		keyBlockIndexes:   keyBlockIndexes,
		r:                 r,
		blockCache:        cache,
	}, nil
}

// EntryCount returns the total number of dictionary records.
func (rd *Reader) EntryCount() uint64 { return rd.content.TotalRecordCount }

// IsBinaryContent reports whether this container's declared content
// type is Binary (typically an MDD resource sidecar).
func (rd *Reader) IsBinaryContent() bool { return rd.Meta.DBInfo.ContentType == ContentBinary }

// FindFirstMatch looks up key in the two-level key index, per spec.md
// §4.6/§6.4's lookup algorithm. When partialMatch is set and no block
// (or no entry within the matched block) covers the full key, the key
// is progressively shortened from its end and retried until a match is
// found or the key runs out. When bestMatch is set and the
// leftmost-equal hit isn't an exact string match, the search continues
// forward across entry numbers for an exact match before giving up and
// returning the leftmost-equal hit. Grounded on
// ZdbReader::find_first_match.
func (rd *Reader) FindFirstMatch(key string, prefixMatch, partialMatch, bestMatch bool) (*KeyIndex, error) {
	blockIndex, err := rd.keyBlockIndexes.findIndex(key, prefixMatch, partialMatch)
	if err != nil {
		return nil, err
	}
	if blockIndex == nil {
		return nil, nil
	}
	keyBlock, err := rd.keyBlocks.getKeyBlock(rd.r, rd.Meta, blockIndex)
	if err != nil {
		return nil, err
	}
	keyIndex, err := keyBlock.findIndex(key, prefixMatch, partialMatch)
	if err != nil || keyIndex == nil {
		return keyIndex, err
	}
	if bestMatch && keyIndex.Key != key {
		sortKey, err := getSortKey([]byte(key), rd.Meta)
		if err != nil {
			return nil, err
		}
		for entryNo := keyIndex.EntryNo + 1; entryNo < EntryNo(rd.EntryCount()); entryNo++ {
			index, err := rd.GetIndex(entryNo)
			if err != nil {
				return nil, err
			}
			if index.Key == key {
				return index, nil
			}
			cmp, err := index.compareWith(key, sortKey, false, rd.Meta)
			if err != nil {
				return nil, err
			}
			if cmp != 0 {
				break
			}
		}
	}
	return keyIndex, nil
}

// GetSimilarIndexes returns keyIndex followed by every subsequent entry
// (by entry number) that still compares Equal to it under the
// comparator, up to maxCount entries total. When startWith is set, the
// comparison is a prefix match instead of exact equality. Grounded on
// ZdbReader::get_similar_indexes.
func (rd *Reader) GetSimilarIndexes(keyIndex *KeyIndex, startWith bool, maxCount uint64) ([]*KeyIndex, error) {
	result := []*KeyIndex{keyIndex}
	remaining := rd.EntryCount() - uint64(keyIndex.EntryNo)
	if maxCount > remaining {
		maxCount = remaining
	}
	searchSortKey, err := getSortKey([]byte(keyIndex.Key), rd.Meta)
	if err != nil {
		return nil, err
	}
	for i := uint64(1); i < maxCount; i++ {
		index, err := rd.GetIndex(keyIndex.EntryNo + EntryNo(i))
		if err != nil {
			return nil, err
		}
		cmp, err := index.compareWith(keyIndex.Key, searchSortKey, startWith, rd.Meta)
		if err != nil {
			return nil, err
		}
		if cmp != 0 {
			break
		}
		result = append(result, index)
	}
	return result, nil
}

// GetContentLength returns the byte length of the record at entryNo,
// derived from the gap to the next entry's content offset (or to the
// total content length, for the last entry). Grounded on
// ZdbReader::get_content_length.
func (rd *Reader) GetContentLength(entryNo EntryNo) (uint64, error) {
	index, err := rd.GetIndex(entryNo)
	if err != nil {
		return 0, err
	}
	offset1 := index.ContentOffsetInSource
	var offset2 uint64
	if uint64(entryNo) < rd.keyBlockIndexes.TotalKeyCount-1 {
		next, err := rd.GetIndex(entryNo + 1)
		if err != nil {
			return 0, err
		}
		offset2 = next.ContentOffsetInSource
	} else {
		offset2 = rd.Meta.ContentDataTotalLength
	}
	return offset2 - offset1, nil
}

// GetContentBlock returns the content block covering keyIndex's
// logical offset, consulting (and populating) the content block cache.
// Grounded on ZdbReader::get_content_block.
func (rd *Reader) GetContentBlock(keyIndex *KeyIndex) (*ContentBlock, error) {
	blockEntry, err := rd.contentBlockIndex.getIndex(keyIndex.ContentOffsetInSource)
	if err != nil {
		return nil, err
	}
	if block, ok := rd.blockCache.Get(blockEntry.BlockOffsetInUnit); ok {
		return block, nil
	}
	block, err := rd.content.getContentBlock(rd.r, rd.Meta, blockEntry)
	if err != nil {
		return nil, err
	}
	rd.blockCache.Add(blockEntry.BlockOffsetInUnit, block)
	return block, nil
}

// resolveLinkTarget follows @@@LINK= redirection chains starting at
// start, detecting self-links and cycles via a visited-entry-number
// set. Grounded on ZdbReader::resolve_link_target_with_visited.
func (rd *Reader) resolveLinkTarget(start *KeyIndex) (*KeyIndex, error) {
	visited := map[EntryNo]struct{}{}
	current := start
	for {
		if _, seen := visited[current.EntryNo]; seen {
			return nil, newInvalidDataFormat("cyclic link detected at entry %d: %s", current.EntryNo, current.Key)
		}
		visited[current.EntryNo] = struct{}{}

		binContent, err := rd.getDataNoLinkResolution(current)
		if err != nil {
			return nil, err
		}
		if bytesHasPrefix(binContent, linkPrefix) || bytesHasPrefix(binContent, linkPrefixW) {
			content, err := decodeBytesToString(binContent, rd.Meta.DBInfo.EncodingLabel)
			if err != nil {
				return nil, err
			}
			targetKey := strings.TrimRight(content[len(linkPrefix):], " \t\r\n\x00")
			target, err := rd.FindFirstMatch(targetKey, false, false, true)
			if err != nil {
				return nil, err
			}
			if target == nil {
				return nil, newInvalidDataFormat("can't resolve link target: %s", targetKey)
			}
			if target.EntryNo == current.EntryNo {
				return nil, newInvalidDataFormat("link to self, entry: %s, target: %s", current.Key, targetKey)
			}
			current = target
			continue
		}
		return current, nil
	}
}

func bytesHasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (rd *Reader) getDataNoLinkResolution(keyIndex *KeyIndex) ([]byte, error) {
	block, err := rd.GetContentBlock(keyIndex)
	if err != nil {
		return nil, err
	}
	length, err := rd.GetContentLength(keyIndex.EntryNo)
	if err != nil {
		return nil, err
	}
	return block.contentAsSlice(keyIndex.ContentOffsetInSource, length)
}

// GetDataByKey looks up key and returns its (link-resolved) content, or
// nil if the key doesn't exist. Grounded on ZdbReader::get_data_by_key.
func (rd *Reader) GetDataByKey(key string) ([]byte, error) {
	keyIndex, err := rd.FindFirstMatch(key, false, false, true)
	if err != nil {
		return nil, err
	}
	if keyIndex == nil {
		return nil, nil
	}
	return rd.GetData(keyIndex, true)
}

// GetData returns keyIndex's content, following @@@LINK= redirection
// first when resolveLink is set. Grounded on ZdbReader::get_data.
func (rd *Reader) GetData(keyIndex *KeyIndex, resolveLink bool) ([]byte, error) {
	resolved := keyIndex
	if resolveLink {
		target, err := rd.resolveLinkTarget(keyIndex)
		if err != nil {
			return nil, err
		}
		resolved = target
	}
	content, err := rd.getDataNoLinkResolution(resolved)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

// GetString returns keyIndex's content decoded as a string, following
// @@@LINK= redirection first when resolveLink is set. Compact-stylesheet
// expansion is not applied here; callers that need it call DecompactStyle
// themselves with the dictionary's StyleSheet. Grounded on
// ZdbReader::get_string.
func (rd *Reader) GetString(keyIndex *KeyIndex, resolveLink bool) (string, error) {
	resolved := keyIndex
	if resolveLink {
		target, err := rd.resolveLinkTarget(keyIndex)
		if err != nil {
			return "", err
		}
		resolved = target
	}
	block, err := rd.GetContentBlock(resolved)
	if err != nil {
		return "", err
	}
	length, err := rd.GetContentLength(resolved.EntryNo)
	if err != nil {
		return "", err
	}
	return block.contentAsString(resolved.ContentOffsetInSource, length, rd.Meta.DBInfo.EncodingLabel)
}

// GetIndex returns the KeyIndex for a global entry number. Grounded on
// ZdbReader::get_index.
func (rd *Reader) GetIndex(entryNo EntryNo) (*KeyIndex, error) {
	blockIndex, err := rd.keyBlockIndexes.getIndexByEntryNo(entryNo)
	if err != nil {
		return nil, err
	}
	keyBlock, err := rd.keyBlocks.getKeyBlock(rd.r, rd.Meta, blockIndex)
	if err != nil {
		return nil, err
	}
	localIdx := int(entryNo - blockIndex.FirstEntryNoInBlock)
	return keyBlock.getIndex(localIdx)
}

// GetIndexes returns up to maxCount consecutive KeyIndex entries
// starting at startEntryNo. Grounded on ZdbReader::get_indexes.
func (rd *Reader) GetIndexes(startEntryNo EntryNo, maxCount uint64) ([]*KeyIndex, error) {
	if uint64(startEntryNo) >= rd.EntryCount() {
		return nil, nil
	}
	end := startEntryNo + EntryNo(maxCount)
	if uint64(end) > rd.EntryCount() {
		end = EntryNo(rd.EntryCount())
	}
	result := make([]*KeyIndex, 0, end-startEntryNo)
	for i := startEntryNo; i < end; i++ {
		index, err := rd.GetIndex(i)
		if err != nil {
			return nil, err
		}
		result = append(result, index)
	}
	return result, nil
}

// Close releases the underlying reader if it implements io.Closer.
func (rd *Reader) Close() error {
	if c, ok := rd.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
