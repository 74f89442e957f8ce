package mdx

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"unicode/utf16"
)

// readExact reads exactly n bytes from r, wrapping short reads/EOF as
// an Io error. Grounded on original_source's io_utils::read_exact_to_vec.
func readExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, newIoErr(err)
	}
	return buf, nil
}

// uintReader reads either u32 or u64 big-endian fields depending on
// format version, used by the fixed idx_para structures in V1/V2.
// Grounded on original_source's storage::UintReader used throughout
// content_block_index_unit.rs.
type uintReader struct {
	r       io.Reader
	version ZdbVersion
}

func newUintReader(r io.Reader, version ZdbVersion) *uintReader {
	return &uintReader{r: r, version: version}
}

func (u *uintReader) readUint() (uint64, error) {
	if u.version == VersionV1 {
		var v uint32
		if err := binary.Read(u.r, binary.BigEndian, &v); err != nil {
			return 0, newIoErr(err)
		}
		return uint64(v), nil
	}
	var v uint64
	if err := binary.Read(u.r, binary.BigEndian, &v); err != nil {
		return 0, newIoErr(err)
	}
	return v, nil
}

// bytesFromCstr returns the bytes up to (not including) the first null
// terminator; isUTF16 selects a 2-byte (UTF-16LE) or 1-byte terminator.
// Grounded on original_source's reader_helper::bytes_from_cstr.
func bytesFromCstr(data []byte, isUTF16 bool) []byte {
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

// decodeBytesToString decodes raw key/text bytes per the declared
// encoding label. Supported labels: utf-8 (default), utf-16le, gbk,
// big5. Unknown labels fall back to treating the bytes as UTF-8,
// matching the original's permissive decode_bytes_to_string behavior.
func decodeBytesToString(data []byte, encodingLabel string) (string, error) {
	switch strings.ToLower(encodingLabel) {
	case "utf-16le", "utf16le", "utf-16":
		return utf16LEToString(data), nil
	case "gbk", "big5":
		// GBK/Big5 payloads are carried through as their raw bytes for
		// sort-key purposes (mbSortKey operates on the raw encoding
		// directly); for display purposes callers needing full decode
		// should consult golang.org/x/text/encoding/{simplifiedchinese,
		// traditionalchinese}, which this package does not force on
		// every caller since most content is UTF-8/HTML.
		return string(data), nil
	default:
		return string(data), nil
	}
}

func utf16LEToString(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}

// removeXMLDeclaration strips a leading "<?xml ... ?>" prologue (and
// any following newline) in place, mirroring the original's
// remove_xml_declaration used before writing the meta unit so readers
// that expect a bare root element aren't confused by a declaration the
// writer doesn't need to reproduce.
func removeXMLDeclaration(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<?xml") {
		if idx := strings.Index(s, "?>"); idx >= 0 {
			return strings.TrimSpace(s[idx+2:])
		}
	}
	return s
}
