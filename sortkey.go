package mdx

import "encoding/binary"

// Legacy (V1/V2) sort-key synthesis, transcribed from
// original_source/src/utils/sort_key.rs. V3 compares keys directly via
// collate.go's locale collator instead; these sort keys exist only so
// legacy generations can do fast byte-wise comparison without
// reinvoking the collator on every comparison.

func isBig5(c1, c2 byte) bool {
	return c1 >= 0xa1 && c1 <= 0xf9 &&
		((c2 >= 0x40 && c2 <= 0x7e) || (c2 >= 0xa1 && c2 <= 0xfe))
}

func isGbk(c1, c2 byte) bool {
	ch := uint16(c1)*256 + uint16(c2)
	return ch > 0x8140 && ch < 0xfefe && c2 != 0xff
}

func isAsciiAlnumOrHigh(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch > 127
}

// mbSortKey folds a multi-byte encoded key (GBK/Big5/other) into a sort
// key, preserving double-byte sequences for GBK/Big5 encodings.
func mbSortKey(mbStr []byte, foldCase, alphaAndDigitOnly bool, encodingLabel string) []byte {
	folded := make([]byte, 0, len(mbStr))
	isGbkEnc := equalFoldASCII(encodingLabel, "gbk")
	isBig5Enc := equalFoldASCII(encodingLabel, "big5")

	for i := 0; i < len(mbStr); i++ {
		ch := mbStr[i]
		if i < len(mbStr)-1 {
			next := mbStr[i+1]
			if (isBig5Enc && isBig5(ch, next)) || (isGbkEnc && isGbk(ch, next)) {
				folded = append(folded, ch, next)
				i++
				continue
			}
		}
		if foldCase && ch >= 'A' && ch <= 'Z' {
			folded = append(folded, ch-'A'+'a')
			continue
		}
		if alphaAndDigitOnly {
			if isAsciiAlnumOrHigh(ch) {
				folded = append(folded, ch)
			}
		} else {
			folded = append(folded, ch)
		}
	}
	return folded
}

// wcSortKey folds a UTF-16LE encoded key into a sort key, writing each
// 16-bit unit little-endian on every platform (the original's
// NativeEndian write on little-endian hosts) — on the wire this is
// consumed only for byte-wise comparison within one process so
// endianness just needs to be internally consistent.
func wcSortKey(wcStr []byte, foldCase, alphaAndDigitOnly bool) ([]byte, error) {
	if len(wcStr)%2 != 0 {
		return nil, newInvalidDataFormat("wide char string length must be even")
	}
	folded := make([]byte, 0, len(wcStr))
	for i := 0; i < len(wcStr); i += 2 {
		wc := binary.LittleEndian.Uint16(wcStr[i : i+2])
		if wc <= 0xff {
			ch := byte(wc)
			if foldCase && ch >= 'A' && ch <= 'Z' {
				folded = appendUint16Native(folded, uint16(ch-'A'+'a'))
				continue
			}
			if alphaAndDigitOnly {
				if isAsciiAlnumOrHigh(ch) {
					folded = appendUint16Native(folded, uint16(ch))
				}
			} else {
				folded = appendUint16Native(folded, uint16(ch))
			}
		} else {
			folded = appendUint16Native(folded, wc)
		}
	}
	return folded, nil
}

func appendUint16Native(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// getSortKey dispatches to the locale collator (V3) or one of the two
// legacy folders (V1/V2) per meta_info's encoding and flags.
func getSortKey(key []byte, meta *MetaUnit) ([]byte, error) {
	if meta.Version == VersionV3 {
		return collatorSortKey(meta.Collator, string(key)), nil
	}
	foldCase := !meta.DBInfo.KeyCaseSensitive || meta.DBInfo.IsMDD
	alphaAndDigitOnly := meta.DBInfo.StripKey && !meta.DBInfo.IsMDD
	if meta.DBInfo.IsUTF16 {
		return wcSortKey(key, foldCase, alphaAndDigitOnly)
	}
	return mbSortKey(key, foldCase, alphaAndDigitOnly, meta.DBInfo.EncodingLabel), nil
}
