package mdx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ZdbVersion identifies which of the three on-disk format generations a
// container uses. Grounded on original_source's meta_unit::ZdbVersion.
type ZdbVersion int

const (
	VersionV1 ZdbVersion = 1
	VersionV2 ZdbVersion = 2
	VersionV3 ZdbVersion = 3
)

// zdbVersionFromNumber maps the XML-declared engine version (e.g. 300,
// 200, 100) down to its major generation, per
// ZdbVersion::from_version_number.
func zdbVersionFromNumber(version uint32) (ZdbVersion, error) {
	switch version / 100 {
	case 1:
		return VersionV1, nil
	case 2:
		return VersionV2, nil
	case 3:
		return VersionV3, nil
	default:
		return 0, newInvalidDataFormat("unsupported engine version: %d", version)
	}
}

// ContentType classifies the payload carried by content records.
type ContentType int

const (
	ContentText ContentType = iota
	ContentHTML
	ContentBinary
)

func contentTypeFromString(s string) (ContentType, error) {
	switch strings.ToLower(s) {
	case "text":
		return ContentText, nil
	case "html":
		return ContentHTML, nil
	case "binary":
		return ContentBinary, nil
	default:
		return 0, newInvalidDataFormat("unsupported content type: %s", s)
	}
}

func (c ContentType) String() string {
	switch c {
	case ContentText:
		return "Text"
	case ContentHTML:
		return "Html"
	case ContentBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// KeyBlockIndexEncryptionType controls which parts of a legacy
// key-block-index unit are encrypted, per
// meta_unit::KeyBlockIndexEncrytionType.
type KeyBlockIndexEncryptionType int

const (
	KeyBlockIndexEncryptionNone KeyBlockIndexEncryptionType = iota
	KeyBlockIndexEncryptionIndexPara
	KeyBlockIndexEncryptionIndexData
	KeyBlockIndexEncryptionParaAndData
)

func keyBlockIndexEncryptionTypeFromUint(v uint32) (KeyBlockIndexEncryptionType, error) {
	switch v {
	case 0:
		return KeyBlockIndexEncryptionNone, nil
	case 1:
		return KeyBlockIndexEncryptionIndexPara, nil
	case 2:
		return KeyBlockIndexEncryptionIndexData, nil
	case 3:
		return KeyBlockIndexEncryptionParaAndData, nil
	default:
		return 0, newInvalidDataFormat("invalid value for encryption type: %d", v)
	}
}

func (t KeyBlockIndexEncryptionType) isEncrypted() bool {
	return t != KeyBlockIndexEncryptionNone
}

func (t KeyBlockIndexEncryptionType) isParaEncrypted() bool {
	return t == KeyBlockIndexEncryptionIndexPara || t == KeyBlockIndexEncryptionParaAndData
}

func (t KeyBlockIndexEncryptionType) isDataEncrypted() bool {
	return t == KeyBlockIndexEncryptionIndexData || t == KeyBlockIndexEncryptionParaAndData
}

// DBInfo holds the parsed fields of the meta unit's root XML element
// (<ZDB ...> for V3, <Dictionary ...> for V1/V2, <library_data ...> for
// legacy MDD sidecars). Grounded on meta_unit::DbInfo::from_xml.
type DBInfo struct {
	Tag string

	Version          ZdbVersion
	Description      string
	Title            string
	IsCompactFormat  bool
	RegisterBy       string
	CreationDate     string
	DataSourceFormat uint32
	StyleSheet       string

	UUID        string
	LocaleID    string
	ContentType ContentType

	EncryptionType   KeyBlockIndexEncryptionType
	KeyCaseSensitive bool
	StripKey         bool
	EmbeddedRegCode  string
	LibSN            string
	EncodingLabel    string
	leftToRight      bool

	IsMDD   bool
	IsUTF16 bool
}

func attrString(attrs []xml.Attr, key string) string {
	for _, a := range attrs {
		if a.Name.Local == key {
			return a.Value
		}
	}
	return ""
}

func attrBool(attrs []xml.Attr, key string, def bool) bool {
	switch strings.ToLower(attrString(attrs, key)) {
	case "yes":
		return true
	case "no":
		return false
	default:
		return def
	}
}

func attrUint32(attrs []xml.Attr, key string) uint32 {
	v, err := strconv.ParseUint(attrString(attrs, key), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// generateLocaleID synthesizes a BCP-47-with-Unicode-extension locale
// id for legacy generations that don't declare DefaultSortingLocale,
// per meta_unit::generate_locale_id.
func generateLocaleID(encodingLabel string, keyCaseSensitive, stripKey bool) string {
	var b strings.Builder
	switch strings.ToLower(encodingLabel) {
	case "gbk":
		b.WriteString("zh-Hans-u-co-pinyin")
	case "big5":
		b.WriteString("zh-Hant-u-co-pinyin")
	default:
		b.WriteString("en-u")
	}
	if !keyCaseSensitive {
		b.WriteString("-ks-level2")
	} else {
		b.WriteString("-ks-level3")
	}
	if stripKey {
		b.WriteString("-ka-shifted")
	}
	return b.String()
}

// parseDBInfo parses the meta unit's root XML element into a DBInfo,
// per meta_unit::DbInfo::from_xml. Only the root element's attributes
// matter; nested elements (if any) are ignored.
func parseDBInfo(rawXML string) (*DBInfo, error) {
	dec := xml.NewDecoder(strings.NewReader(rawXML))
	var rootName string
	var attrs []xml.Attr
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, newInvalidDataFormat("no root element found in XML")
		}
		if err != nil {
			return nil, newInvalidDataFormat("failed to parse XML: %v", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			rootName = start.Name.Local
			attrs = start.Attr
			break
		}
	}

	info := &DBInfo{}
	info.Tag = strings.ToLower(rootName)
	info.IsMDD = info.Tag == "library_data"

	reqVersion, _ := strconv.ParseFloat(attrString(attrs, "RequiredEngineVersion"), 32)
	version, err := zdbVersionFromNumber(uint32(reqVersion * 100.0))
	if err != nil {
		return nil, err
	}
	info.Version = version

	encType, err := keyBlockIndexEncryptionTypeFromUint(attrUint32(attrs, "Encrypted"))
	if err != nil {
		encType = KeyBlockIndexEncryptionNone
	}
	info.EncryptionType = encType
	info.UUID = attrString(attrs, "UUID")

	contentTypeStr := attrString(attrs, "Format")
	if info.Version == VersionV3 {
		contentTypeStr = attrString(attrs, "ContentType")
	}
	if contentTypeStr == "" {
		contentTypeStr = "binary"
	}
	ct, err := contentTypeFromString(contentTypeStr)
	if err != nil {
		return nil, err
	}
	info.ContentType = ct
	info.IsMDD = ct == ContentBinary

	info.LocaleID = attrString(attrs, "DefaultSortingLocale")
	info.EmbeddedRegCode = attrString(attrs, "RegCode")
	info.LibSN = attrString(attrs, "LibSN")
	info.EncodingLabel = strings.ToLower(attrString(attrs, "Encoding"))
	if info.EncodingLabel == "" {
		if info.Version == VersionV3 {
			info.EncodingLabel = "utf-8"
		} else {
			info.EncodingLabel = "utf-16le"
		}
	}
	info.IsUTF16 = strings.HasPrefix(info.EncodingLabel, "utf-16")

	isV1V2MDD := info.IsMDD && info.Version != VersionV3
	info.KeyCaseSensitive = attrBool(attrs, "KeyCaseSensitive", isV1V2MDD)
	info.StripKey = attrBool(attrs, "StripKey", !isV1V2MDD)
	info.leftToRight = attrBool(attrs, "Left2Right", true)

	info.Description = attrString(attrs, "Description")
	info.Title = attrString(attrs, "Title")
	info.StyleSheet = attrString(attrs, "StyleSheet")
	info.RegisterBy = attrString(attrs, "RegisterBy")
	info.DataSourceFormat = attrUint32(attrs, "DataSourceFormat")
	info.CreationDate = attrString(attrs, "CreationDate")

	// "Compat" is a historical typo for "Compact"; both are honored,
	// and the format is compact when either attribute is set to Yes.
	info.IsCompactFormat = attrBool(attrs, "Compat", false)
	if !info.IsCompactFormat {
		info.IsCompactFormat = attrBool(attrs, "Compact", info.IsCompactFormat)
	}

	if info.LocaleID == "" && !info.IsMDD {
		info.LocaleID = generateLocaleID(info.EncodingLabel, info.KeyCaseSensitive, info.StripKey)
	}

	return info, nil
}

// MetaUnit is the first unit of every container: a CRC-checked XML
// header plus the derived crypto key and collator used by every other
// unit. Grounded on original_source's meta_unit::MetaUnit.
type MetaUnit struct {
	DBInfo                  *DBInfo
	CryptoKey               []byte
	ContentDataTotalLength  uint64
	Version                 ZdbVersion
	Collator                *localeCollator
	RawHeaderXML            string
}

func (m *MetaUnit) isV1() bool { return m.Version == VersionV1 }
func (m *MetaUnit) isV2() bool { return m.Version == VersionV2 }
func (m *MetaUnit) isV3() bool { return m.Version == VersionV3 }

// readCstrWithCRC reads a (length-prefixed bytes, Adler-32 checksum)
// pair and decodes it as UTF-16LE (legacy headers starting with a BOM
// like '<'+0x00) or UTF-8 otherwise. The length prefix is big-endian but
// the trailing checksum (spec.md's `adler32_le`) is little-endian,
// matching the original's write_u32::<LittleEndian> / read_u32::<BigEndian>
// + to_be() round trip. Grounded on meta_unit::read_cstr_with_crc.
func readCstrWithCRC(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", newIoErr(err)
	}
	data, err := readExact(r, int(length))
	if err != nil {
		return "", err
	}
	var crc uint32
	if err := binary.Read(r, binary.LittleEndian, &crc); err != nil {
		return "", newIoErr(err)
	}
	if got := checksum(data); got != crc {
		return "", newCrcMismatch(crc, got)
	}
	if len(data) > 1 && data[0] == '<' && data[1] == 0 {
		return utf16LEToString(bytesFromCstr(data, true)), nil
	}
	return string(bytesFromCstr(data, false)), nil
}

// readMetaUnit parses the meta unit at the reader's current position.
// deviceID and licenseData feed the licensed-crypto-key derivation path
// (Salsa20-decrypting an embedded registration code); most readers
// operating on unregistered-by-password containers pass "" for both and
// fall back to the UUID-derived fast_hash key. Grounded on
// meta_unit::MetaUnit::from_reader.
func readMetaUnit(r io.Reader, deviceID, licenseData string, contentDataTotalLength uint64) (*MetaUnit, error) {
	rawXML, err := readCstrWithCRC(r)
	if err != nil {
		return nil, err
	}
	dbInfo, err := parseDBInfo(rawXML)
	if err != nil {
		return nil, err
	}

	regCode := licenseData
	if regCode == "" {
		regCode = dbInfo.EmbeddedRegCode
	}
	if regCode == "" && dbInfo.EncryptionType.isParaEncrypted() {
		return nil, newInvalidDataFormat("DB needs registration but no license data is provided")
	}

	var cryptoKey []byte
	if regCode != "" {
		encryptedKey, err := hex.DecodeString(regCode)
		if err != nil {
			return nil, newInvalidDataFormat("failed to convert hex str: %v", err)
		}
		deviceKey := ripemd128Key([]byte(deviceID))
		cryptoKey = decryptSalsa20(encryptedKey, deviceKey)
	} else if dbInfo.Version == VersionV3 {
		cryptoKey, err = FastHash([]byte(dbInfo.UUID))
		if err != nil {
			return nil, err
		}
	}

	collator := newLocaleCollator(dbInfo.LocaleID)

	return &MetaUnit{
		DBInfo:                 dbInfo,
		CryptoKey:              cryptoKey,
		ContentDataTotalLength: contentDataTotalLength,
		Version:                dbInfo.Version,
		Collator:               collator,
		RawHeaderXML:           rawXML,
	}, nil
}

// writeMetaUnit serializes a meta unit header from db info fields using
// the same length-prefixed + Adler-32-checksummed framing read above.
// The length prefix is big-endian but, per spec.md's `adler32_le` field,
// the checksum itself is stored little-endian — distinct from
// storage_block.go's big-endian block checksum. Used by the builder;
// always emits UTF-8 (V3-only build target).
func writeMetaUnit(w io.Writer, rawXML string) error {
	data := append([]byte(removeXMLDeclaration(rawXML)), 0)
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return newIoErr(err)
	}
	if _, err := w.Write(data); err != nil {
		return newIoErr(err)
	}
	if err := binary.Write(w, binary.LittleEndian, checksum(data)); err != nil {
		return newIoErr(err)
	}
	return nil
}

// buildHeaderXML renders a V3 <ZDB ...> header element from a
// BuilderConfig, mirroring ZdbHeader::from_config's attribute set.
func buildHeaderXML(cfg *BuilderConfig, uuid string) string {
	return fmt.Sprintf(
		`<ZDB GeneratedByEngineVersion="3.0" RequiredEngineVersion="3.0" ContentType="%s" RegisterBy="EMail" Description="" Title="" DefaultSortingLocale="%s" UUID="%s" Compact="No" DataSourceFormat="0" StyleSheet=""/>`,
		cfg.ContentType, cfg.DefaultSortingLocale, uuid,
	)
}
