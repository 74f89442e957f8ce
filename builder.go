package mdx

import (
	"io"
	"sort"

	"github.com/google/uuid"
)

// Builder assembles a complete V3 container from a set of BuildRecords
// plus a DataLoader, following the seven-phase pipeline spec.md §4.7
// describes: sort keys, size key blocks, write content, write the
// content index, write key blocks, write the key index, and (first,
// in practice) the header. Grounded on original_source's
// builder::zdb_builder::ZDBBuilder.
type Builder struct {
	Config  *BuilderConfig
	entries []*BuildRecord

	keyBlockIndexes     []*KeyBlockIndexEntry
	contentBlockIndexes []*ContentBlockIndexEntry
}

// NewBuilder creates a Builder from cfg; cfg.CryptoKey is overwritten
// during Build once the dictionary's UUID or password is known.
func NewBuilder(cfg *BuilderConfig) *Builder {
	return &Builder{Config: cfg}
}

// AddRecords appends records to be packed. Keys longer than 255 bytes
// are rejected up front, mirroring data_loader::ZDB_MAX_KEYWORD_LENGTH.
func (b *Builder) AddRecords(records []*BuildRecord) error {
	for _, r := range records {
		if len(r.Key) > maxKeywordLength {
			return newInvalidParameter("key exceeds maximum length of %d bytes: %s", maxKeywordLength, r.Key)
		}
	}
	b.entries = append(b.entries, records...)
	return nil
}

// prepareKeyIndex sorts entries by the configured locale's collation
// order. Grounded on ZDBBuilder::prepare_key_index.
func (b *Builder) prepareKeyIndex() error {
	collator := newLocaleCollator(b.Config.DefaultSortingLocale)
	sort.SliceStable(b.entries, func(i, j int) bool {
		return localeCompareStrings(collator, b.entries[i].Key, b.entries[j].Key, false) < 0
	})
	return nil
}

// prepareKeyBlockIndexUnit partitions sorted entries into key blocks no
// larger than preferredBlockSize (in raw, pre-compression bytes),
// recording each block's key range and entry-number span. Grounded on
// ZDBBuilder::prepare_key_block_index_unit.
func (b *Builder) prepareKeyBlockIndexUnit(preferredBlockSize uint64, reporter ProgressReportFunc) error {
	const extraSize = uint64(1 + 8) // ending zero + 8-byte content offset
	total := len(b.entries)
	state := newProgressState("prepareKeyBlockIndexUnit", uint64(total), 10, reporter)

	var blocks []*KeyBlockIndexEntry
	i := 0
	for i < total {
		start := i
		var blockSize uint64
		for i < total {
			keyLen := uint64(len(b.entries[i].Key)) + extraSize
			if i > start && blockSize+keyLen > preferredBlockSize {
				break
			}
			blockSize += keyLen
			i++
		}
		blocks = append(blocks, &KeyBlockIndexEntry{
			FirstKey:            b.entries[start].Key,
			LastKey:             b.entries[i-1].Key,
			FirstEntryNoInBlock: EntryNo(start),
			EntryCountInBlock:   uint64(i - start),
			BlockLength:         blockSize,
		})
		if state.report(uint64(i)) {
			return newUserInterrupted()
		}
	}
	b.keyBlockIndexes = blocks
	return nil
}

// buildHeader writes the meta unit, deriving the dictionary's crypto
// key from its UUID (or from the configured password, when set).
// Grounded on ZDBBuilder::build_db_header.
func (b *Builder) buildHeader(w io.Writer) error {
	id := uuid.New().String()
	var err error
	if b.Config.Password == "" {
		b.Config.CryptoKey, err = FastHash([]byte(id))
	} else {
		b.Config.CryptoKey, err = FastHash([]byte(b.Config.Password))
	}
	if err != nil {
		return err
	}
	return writeMetaUnit(w, buildHeaderXML(b.Config, id))
}

// buildKeyBlockIndexUnit writes the unit-level key directory built by
// prepareKeyBlockIndexUnit. Grounded on
// ZDBBuilder::build_key_block_index_unit.
func (b *Builder) buildKeyBlockIndexUnit(w io.WriteSeeker, reporter ProgressReportFunc) error {
	if len(b.entries) == 0 {
		return newInvalidParameter("no entries")
	}
	uw, err := beginUnit(w, UnitKeyBlockIndex)
	if err != nil {
		return err
	}

	state := newProgressState("buildKeyBlockIndexUnit", uint64(len(b.keyBlockIndexes)), 10, reporter)
	var buf []byte
	for n, entry := range b.keyBlockIndexes {
		buf = appendKeyBlockIndexEntry(buf, entry)
		if state.report(uint64(n)) {
			return newUserInterrupted()
		}
	}
	if err := uw.outputBlock(w, buf, b.Config.CryptoKey, b.Config.CompressionMethod, b.Config.EncryptionMethod); err != nil {
		return err
	}
	return uw.endUnit(w, uint64(len(b.keyBlockIndexes)), b.Config)
}

// appendKeyBlockIndexEntry appends one directory entry's wire encoding
// (always built in V3 field widths: u32 entry count/lengths, u16-
// length-prefixed, zero-terminated keys). Grounded on
// zdb_builder::write_key_block_index/write_key.
func appendKeyBlockIndexEntry(buf []byte, entry *KeyBlockIndexEntry) []byte {
	buf = appendUint32BE(buf, uint32(entry.EntryCountInBlock))
	buf = appendKeyWithTerminator(buf, entry.FirstKey)
	buf = appendKeyWithTerminator(buf, entry.LastKey)
	buf = appendUint32BE(buf, uint32(entry.BlockLength))
	buf = appendUint32BE(buf, uint32(entry.RawDataLength))
	return buf
}

func appendKeyWithTerminator(buf []byte, key string) []byte {
	k := []byte(key)
	buf = appendUint16BE(buf, uint16(len(k)))
	buf = append(buf, k...)
	buf = append(buf, 0)
	return buf
}

func appendUint32BE(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint16BE(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

// buildKeyBlockUnit writes each key block's entry data (content offset
// + key bytes), patching raw/compressed lengths back onto
// b.keyBlockIndexes as each block is emitted. Grounded on
// ZDBBuilder::build_key_block_unit.
func (b *Builder) buildKeyBlockUnit(w io.WriteSeeker, reporter ProgressReportFunc) error {
	uw, err := beginUnit(w, UnitKey)
	if err != nil {
		return err
	}

	state := newProgressState("buildKeyBlockUnit", uint64(len(b.keyBlockIndexes)), 10, reporter)
	for i, blockIndex := range b.keyBlockIndexes {
		var data []byte
		for j := uint64(0); j < blockIndex.EntryCountInBlock; j++ {
			entry := b.entries[uint64(blockIndex.FirstEntryNoInBlock)+j]
			data = appendUint64BE(data, entry.ContentOffsetInSource)
			data = append(data, []byte(entry.Key)...)
			data = append(data, 0)
		}

		if state.report(uint64(i)) {
			return newUserInterrupted()
		}

		before := uw.dataSectionLength
		if err := uw.outputBlock(w, data, b.Config.CryptoKey, b.Config.CompressionMethod, b.Config.EncryptionMethod); err != nil {
			return err
		}
		blockIndex.RawDataLength = uint64(len(data))
		blockIndex.BlockLength = uw.dataSectionLength - before
	}
	return uw.endUnit(w, uint64(len(b.entries)), b.Config)
}

func appendUint64BE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// buildContentBlockIndexUnit writes the content-block directory
// accumulated by buildContentUnit. Grounded on
// ZDBBuilder::build_content_block_index_unit.
func (b *Builder) buildContentBlockIndexUnit(w io.WriteSeeker, reporter ProgressReportFunc) error {
	uw, err := beginUnit(w, UnitContentBlockIndex)
	if err != nil {
		return err
	}

	state := newProgressState("buildContentBlockIndexUnit", uint64(len(b.contentBlockIndexes)), 10, reporter)
	var buf []byte
	for n, entry := range b.contentBlockIndexes {
		buf = appendUint64BE(buf, entry.BlockCompressedLength)
		buf = appendUint64BE(buf, entry.BlockOriginalLength)
		if state.report(uint64(n)) {
			return newUserInterrupted()
		}
	}
	if err := uw.outputBlock(w, buf, b.Config.CryptoKey, b.Config.CompressionMethod, b.Config.EncryptionMethod); err != nil {
		return err
	}
	return uw.endUnit(w, uint64(len(b.contentBlockIndexes)), b.Config)
}

// buildContentUnit streams every entry's content through loader,
// packing it into preferredContentBlockSize-bounded blocks and
// recording each entry's logical content offset as it's assigned.
// Grounded on ZDBBuilder::build_content_unit.
func (b *Builder) buildContentUnit(w io.WriteSeeker, loader DataLoader, reporter ProgressReportFunc) error {
	uw, err := beginUnit(w, UnitContent)
	if err != nil {
		return err
	}
	b.contentBlockIndexes = nil

	state := newProgressState("buildContentUnit", uint64(len(b.entries)), 10, reporter)
	var offsetInSource, offsetInUnit uint64
	var contentOffsetInSource uint64
	total := len(b.entries)

	i := 0
	for i < total {
		var contentData []byte
		for i < total {
			entry := b.entries[i]
			content, err := loader.LoadData(entry)
			if err != nil {
				return err
			}
			if uint64(len(content)) > maxEntryLength {
				return newInvalidParameter("entry %q exceeds maximum content length", entry.Key)
			}
			entry.ContentOffsetInSource = contentOffsetInSource
			contentOffsetInSource += uint64(len(content))
			contentData = append(contentData, content...)
			i++
			if uint64(len(contentData)) > uint64(b.Config.PreferredContentBlockSize) {
				break
			}
		}

		beforeLen := uw.dataSectionLength
		if err := uw.outputBlock(w, contentData, b.Config.CryptoKey, b.Config.CompressionMethod, b.Config.EncryptionMethod); err != nil {
			return err
		}
		dataBlockSize := uw.dataSectionLength - beforeLen

		if state.report(uint64(i)) {
			return newUserInterrupted()
		}

		b.contentBlockIndexes = append(b.contentBlockIndexes, &ContentBlockIndexEntry{
			BlockOffsetInSource:   offsetInSource,
			BlockOffsetInUnit:     offsetInUnit,
			BlockOriginalLength:   uint64(len(contentData)),
			BlockCompressedLength: dataBlockSize,
		})
		offsetInSource += uint64(len(contentData))
		offsetInUnit += dataBlockSize
	}
	return uw.endUnit(w, uint64(len(b.entries)), b.Config)
}

// Build writes a complete V3 container to w: header, content unit,
// content block index, key block unit, key block index, in that order
// (matching the on-disk V3 layout original_source's
// build_with_data_loader writes). Entries must have been added via
// AddRecords before calling Build.
func (b *Builder) Build(w io.WriteSeeker, loader DataLoader, reporter ProgressReportFunc) error {
	if err := b.buildHeader(w); err != nil {
		return err
	}
	if err := b.prepareKeyIndex(); err != nil {
		return err
	}
	if err := b.prepareKeyBlockIndexUnit(uint64(b.Config.PreferredKeyBlockSize), reporter); err != nil {
		return err
	}
	if err := b.buildContentUnit(w, loader, reporter); err != nil {
		return err
	}
	if err := b.buildContentBlockIndexUnit(w, reporter); err != nil {
		return err
	}
	if err := b.buildKeyBlockUnit(w, reporter); err != nil {
		return err
	}
	if err := b.buildKeyBlockIndexUnit(w, reporter); err != nil {
		return err
	}
	return nil
}
