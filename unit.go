package mdx

import (
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
)

// UnitType identifies which of the four top-level units a UnitInfoSection
// precedes. Grounded on original_source's storage::unit_base::UnitType.
type UnitType uint8

const (
	UnitInvalid           UnitType = 0
	UnitContent            UnitType = 1
	UnitContentBlockIndex  UnitType = 2
	UnitKey                UnitType = 3
	UnitKeyBlockIndex      UnitType = 4
)

func unitTypeFromByte(b byte) (UnitType, error) {
	switch UnitType(b) {
	case UnitContent, UnitContentBlockIndex, UnitKey, UnitKeyBlockIndex:
		return UnitType(b), nil
	default:
		return UnitInvalid, newInvalidDataFormat("invalid unit type: %d", b)
	}
}

// UnitInfoSection is the fixed-size header written immediately before
// each unit's storage blocks, giving the reader enough information to
// skip the whole unit without decoding every block. Grounded on
// original_source's storage::unit_base::UnitInfoSection.
type UnitInfoSection struct {
	UnitType                UnitType
	BlockCount              uint32
	DataSectionLength        uint64
	OrigDataSectionLength    uint64
}

const unitInfoSectionSize = 1 + 3 + 8 + 4 + 8 + 8 // type, reserved1, reserved2, block_count, data_len, orig_data_len

func readUnitInfoSection(r io.Reader) (*UnitInfoSection, error) {
	buf, err := readExact(r, unitInfoSectionSize)
	if err != nil {
		return nil, err
	}
	unitType, err := unitTypeFromByte(buf[0])
	if err != nil {
		return nil, err
	}
	return &UnitInfoSection{
		UnitType:             unitType,
		BlockCount:           binary.BigEndian.Uint32(buf[12:16]),
		DataSectionLength:     binary.BigEndian.Uint64(buf[16:24]),
		OrigDataSectionLength: binary.BigEndian.Uint64(buf[24:32]),
	}, nil
}

func writeUnitInfoSection(w io.Writer, info *UnitInfoSection) error {
	buf := make([]byte, unitInfoSectionSize)
	buf[0] = byte(info.UnitType)
	// buf[1:4] reserved1, buf[4:12] reserved2 stay zero
	binary.BigEndian.PutUint32(buf[12:16], info.BlockCount)
	binary.BigEndian.PutUint64(buf[16:24], info.DataSectionLength)
	binary.BigEndian.PutUint64(buf[24:32], info.OrigDataSectionLength)
	_, err := w.Write(buf)
	if err != nil {
		return newIoErr(err)
	}
	return nil
}

// unitWriter tracks the back-patching state for one unit while the
// builder streams its storage blocks: it records where the
// UnitInfoSection placeholder was written, accumulates block/length
// counters as blocks are emitted, then seeks back to fill in the real
// values once the unit is complete. Grounded on original_source's
// builder::zdb_unit_builder::ZdbUnitBuilder.
type unitWriter struct {
	unitType              UnitType
	infoSectionPos        int64
	blockCount            uint32
	dataSectionLength     uint64
	origDataSectionLength uint64
}

// beginUnit writes a placeholder UnitInfoSection and returns a
// unitWriter positioned to accumulate the unit's blocks.
func beginUnit(w io.WriteSeeker, unitType UnitType) (*unitWriter, error) {
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, newIoErr(err)
	}
	uw := &unitWriter{unitType: unitType, infoSectionPos: pos}
	if err := writeUnitInfoSection(w, &UnitInfoSection{UnitType: unitType}); err != nil {
		return nil, err
	}
	return uw, nil
}

// outputBlock writes one storage block and folds its sizes into the
// running totals.
func (uw *unitWriter) outputBlock(w io.Writer, plaintext []byte, cryptoKey []byte, compressionMethod CompressionMethod, encryptionMethod EncryptionMethod) error {
	written, err := writeStorageBlock(w, plaintext, cryptoKey, compressionMethod, encryptionMethod)
	if err != nil {
		return err
	}
	uw.blockCount++
	uw.dataSectionLength += written
	uw.origDataSectionLength += uint64(len(plaintext))
	return nil
}

// endUnit seeks back to the unit's UnitInfoSection placeholder, rewrites
// it with the accumulated totals, seeks forward again, then writes the
// unit-type-specific DataInfo trailer (count, encoding, and for
// key-indexed units, the sorting locale). Grounded on
// ZdbUnitBuilder::write_unit_end.
func (uw *unitWriter) endUnit(w io.WriteSeeker, count uint64, cfg *BuilderConfig) error {
	endPos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return newIoErr(err)
	}
	if _, err := w.Seek(uw.infoSectionPos, io.SeekStart); err != nil {
		return newIoErr(err)
	}
	if err := writeUnitInfoSection(w, &UnitInfoSection{
		UnitType:              uw.unitType,
		BlockCount:            uw.blockCount,
		DataSectionLength:     uw.dataSectionLength,
		OrigDataSectionLength: uw.origDataSectionLength,
	}); err != nil {
		return err
	}
	if _, err := w.Seek(endPos, io.SeekStart); err != nil {
		return newIoErr(err)
	}

	const encoding = "utf-8"
	switch uw.unitType {
	case UnitKeyBlockIndex:
		return writeKeyBlockIndexDataInfo(w, &KeyBlockIndexDataInfo{
			BlockCount: int(count),
			Encoding:   encoding,
			LocaleID:   cfg.DefaultSortingLocale,
		}, cfg.CryptoKey, cfg.CompressionMethod, cfg.EncryptionMethod)
	case UnitKey:
		return writeKeyDataInfo(w, &KeyDataInfo{
			KeyCount: int(count),
			Encoding: encoding,
			LocaleID: cfg.DefaultSortingLocale,
		}, cfg.CryptoKey, cfg.CompressionMethod, cfg.EncryptionMethod)
	case UnitContentBlockIndex:
		return writeContentBlockIndexDataInfo(w, &ContentBlockIndexDataInfo{
			RecordCount: int(count),
			Encoding:    encoding,
		}, cfg.CryptoKey, cfg.CompressionMethod, cfg.EncryptionMethod)
	case UnitContent:
		return writeContentDataInfo(w, &ContentDataInfo{
			RecordCount: int(count),
			Encoding:    encoding,
		}, cfg.CryptoKey, cfg.CompressionMethod, cfg.EncryptionMethod)
	}
	return nil
}

// KeyBlockIndexDataInfo is the per-unit XML descriptor trailing a
// KeyBlockIndex unit's UnitInfoSection in V3, describing how its blocks
// should be interpreted.
type KeyBlockIndexDataInfo struct {
	BlockCount int    `xml:"BlockCount,attr"`
	Encoding   string `xml:"Encoding,attr"`
	LocaleID   string `xml:"LocaleID,attr"`
}

// KeyDataInfo is the per-unit XML descriptor trailing a Key unit's
// UnitInfoSection in V3.
type KeyDataInfo struct {
	KeyCount int    `xml:"KeyCount,attr"`
	Encoding string `xml:"Encoding,attr"`
	LocaleID string `xml:"LocaleID,attr"`
}

// ContentBlockIndexDataInfo is the per-unit XML descriptor trailing a
// ContentBlockIndex unit's UnitInfoSection in V3.
type ContentBlockIndexDataInfo struct {
	RecordCount int    `xml:"RecordCount,attr"`
	Encoding    string `xml:"Encoding,attr"`
}

// ContentDataInfo is the per-unit XML descriptor trailing a Content
// unit's UnitInfoSection in V3.
type ContentDataInfo struct {
	RecordCount int    `xml:"RecordCount,attr"`
	Encoding    string `xml:"Encoding,attr"`
}

// A unit's DataInfo descriptor is framed as an ordinary V3 storage
// block (so it goes through the same compression/encryption path as
// any other block), holding a null-terminated XML fragment. Grounded
// on unit_base::{read_data_info_section, write_data_info_section}.
// encoding/xml.Unmarshal fills a struct's attr-tagged fields from the
// root element regardless of its tag name when the struct has no
// XMLName field, so one reader suffices for all four DataInfo shapes;
// writing needs the tag name spelled out explicitly since Go's xml
// encoder otherwise names the element after the Go type.

func trimCstrNull(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == 0 {
		return b[:len(b)-1]
	}
	return b
}

func readDataInfoXML(r io.Reader, meta *MetaUnit) ([]byte, error) {
	block, err := readStorageBlockV3(r, meta)
	if err != nil {
		return nil, err
	}
	return trimCstrNull(block.Data), nil
}

func writeDataInfoXML(w io.Writer, raw string, cryptoKey []byte, compressionMethod CompressionMethod, encryptionMethod EncryptionMethod) error {
	data := append([]byte(raw), 0)
	_, err := writeStorageBlock(w, data, cryptoKey, compressionMethod, encryptionMethod)
	return err
}

func readKeyBlockIndexDataInfo(r io.Reader, meta *MetaUnit) (*KeyBlockIndexDataInfo, error) {
	raw, err := readDataInfoXML(r, meta)
	if err != nil {
		return nil, err
	}
	info := &KeyBlockIndexDataInfo{}
	if err := xml.Unmarshal(raw, info); err != nil {
		return nil, newInvalidDataFormat("failed to parse KeyBlockIndexDataInfo: %v", err)
	}
	return info, nil
}

func writeKeyBlockIndexDataInfo(w io.Writer, info *KeyBlockIndexDataInfo, cryptoKey []byte, compressionMethod CompressionMethod, encryptionMethod EncryptionMethod) error {
	raw := fmt.Sprintf(`<RecordIndex BlockCount="%d" Encoding="%s" LocaleID="%s"/>`,
		info.BlockCount, info.Encoding, info.LocaleID)
	return writeDataInfoXML(w, raw, cryptoKey, compressionMethod, encryptionMethod)
}

func readKeyDataInfo(r io.Reader, meta *MetaUnit) (*KeyDataInfo, error) {
	raw, err := readDataInfoXML(r, meta)
	if err != nil {
		return nil, err
	}
	info := &KeyDataInfo{}
	if err := xml.Unmarshal(raw, info); err != nil {
		return nil, newInvalidDataFormat("failed to parse KeyDataInfo: %v", err)
	}
	return info, nil
}

func writeKeyDataInfo(w io.Writer, info *KeyDataInfo, cryptoKey []byte, compressionMethod CompressionMethod, encryptionMethod EncryptionMethod) error {
	raw := fmt.Sprintf(`<KeyIndex KeyCount="%d" Encoding="%s" LocaleID="%s"/>`,
		info.KeyCount, info.Encoding, info.LocaleID)
	return writeDataInfoXML(w, raw, cryptoKey, compressionMethod, encryptionMethod)
}

func readContentBlockIndexDataInfo(r io.Reader, meta *MetaUnit) (*ContentBlockIndexDataInfo, error) {
	raw, err := readDataInfoXML(r, meta)
	if err != nil {
		return nil, err
	}
	info := &ContentBlockIndexDataInfo{}
	if err := xml.Unmarshal(raw, info); err != nil {
		return nil, newInvalidDataFormat("failed to parse ContentBlockIndexDataInfo: %v", err)
	}
	return info, nil
}

func writeContentBlockIndexDataInfo(w io.Writer, info *ContentBlockIndexDataInfo, cryptoKey []byte, compressionMethod CompressionMethod, encryptionMethod EncryptionMethod) error {
	raw := fmt.Sprintf(`<RecordIndex RecordCount="%d" Encoding="%s"/>`, info.RecordCount, info.Encoding)
	return writeDataInfoXML(w, raw, cryptoKey, compressionMethod, encryptionMethod)
}

func readContentDataInfo(r io.Reader, meta *MetaUnit) (*ContentDataInfo, error) {
	raw, err := readDataInfoXML(r, meta)
	if err != nil {
		return nil, err
	}
	info := &ContentDataInfo{}
	if err := xml.Unmarshal(raw, info); err != nil {
		return nil, newInvalidDataFormat("failed to parse ContentDataInfo: %v", err)
	}
	return info, nil
}

func writeContentDataInfo(w io.Writer, info *ContentDataInfo, cryptoKey []byte, compressionMethod CompressionMethod, encryptionMethod EncryptionMethod) error {
	raw := fmt.Sprintf(`<RecordIndex RecordCount="%d" Encoding="%s"/>`, info.RecordCount, info.Encoding)
	return writeDataInfoXML(w, raw, cryptoKey, compressionMethod, encryptionMethod)
}
