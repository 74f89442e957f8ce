package mdx

import (
	"bytes"
	"encoding/binary"
	"io"
)

// StorageBlock is the universal framed payload used by every unit.
// Grounded on original_source/src/storage/storage_block.rs's
// StorageBlock::{from_reader_v1_v2, from_reader_v3, to_writer,
// decode_block}. See spec.md §4.1 for the exact wire format.
type StorageBlock struct {
	Data []byte
}

const maxEncryptedPrefix = 32

// legacyBlockFallbackKey derives the per-block decryption key used when
// no crypto key is configured but the block is still encrypted (the
// legacy embedded-key path, permitted when the para-encryption flag is
// clear): RIPEMD128 of the 4-byte data_crc checksum's big-endian bytes.
// Grounded on StorageBlock::decode_block's
// `ripemd_digest(&data_crc.to_be_bytes())`.
func legacyBlockFallbackKey(dataCRC uint32) []byte {
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], dataCRC)
	return ripemd128Key(crcBuf[:])
}

// readStorageBlockV3 parses one V3 storage block: the self-describing
// 8-byte outer header (original length, payload length) followed by
// the inner header and body.
func readStorageBlockV3(r io.Reader, meta *MetaUnit) (*StorageBlock, error) {
	var originalLength, payloadLength uint32
	if err := binary.Read(r, binary.BigEndian, &originalLength); err != nil {
		return nil, newIoErr(err)
	}
	if err := binary.Read(r, binary.BigEndian, &payloadLength); err != nil {
		return nil, newIoErr(err)
	}
	body, err := readExact(r, int(payloadLength))
	if err != nil {
		return nil, err
	}
	return decodeBlock(body, originalLength, meta, meta.CryptoKey)
}

// readStorageBlockV1V2 parses a V1/V2 storage block whose
// original/compressed lengths come from the enclosing index rather
// than a self-describing header.
func readStorageBlockV1V2(r io.Reader, meta *MetaUnit, cryptoKey []byte, compressedLength, originalLength uint32) (*StorageBlock, error) {
	body, err := readExact(r, int(compressedLength))
	if err != nil {
		return nil, err
	}
	key := cryptoKey
	if meta.Version == VersionV2 {
		key = ripemd128Key(ripemd128Key(cryptoKey))
	}
	return decodeBlock(body, originalLength, meta, key)
}

// decodeBlock implements the inner-header parse + checksum + decrypt +
// decompress pipeline shared by V1/V2/V3, per spec.md §4.1's read
// algorithm (inverse of the write algorithm below).
func decodeBlock(body []byte, originalLength uint32, meta *MetaUnit, cryptoKey []byte) (*StorageBlock, error) {
	if len(body) < 8 {
		return nil, newInvalidDataFormat("storage block body too short: %d bytes", len(body))
	}
	methodByte := body[0]
	encryptedPrefixLength := int(body[1])
	// body[2:4] reserved
	expectedChecksum := binary.BigEndian.Uint32(body[4:8])
	payload := append([]byte(nil), body[8:]...)

	compressionMethod := CompressionMethod(methodByte & 0x0f)
	encryptionMethod := EncryptionMethod((methodByte >> 4) & 0x0f)
	if !compressionMethod.valid() {
		return nil, newInvalidDataFormat("unknown compression method %d", compressionMethod)
	}
	if !encryptionMethod.valid() {
		return nil, newInvalidDataFormat("unknown encryption method %d", encryptionMethod)
	}

	checksumOverCompressed := encryptionMethod != EncryptionNone
	if checksumOverCompressed {
		if got := checksum(payload); got != expectedChecksum {
			return nil, newCrcMismatch(expectedChecksum, got)
		}
		if encryptedPrefixLength > 0 && encryptedPrefixLength <= len(payload) {
			key := cryptoKey
			if len(key) == 0 {
				key = legacyBlockFallbackKey(expectedChecksum)
			}
			enc, err := getEncryptor(encryptionMethod, key, zeroNonce8)
			if err != nil {
				return nil, err
			}
			decryptedPrefix := make([]byte, encryptedPrefixLength)
			enc.decrypt(payload[:encryptedPrefixLength], decryptedPrefix)
			copy(payload[:encryptedPrefixLength], decryptedPrefix)
		}
	}

	comp, err := getCompressor(compressionMethod)
	if err != nil {
		return nil, err
	}
	plaintext, err := comp.decompress(payload, int(originalLength))
	if err != nil {
		return nil, err
	}

	if !checksumOverCompressed {
		if got := checksum(plaintext); got != expectedChecksum {
			return nil, newCrcMismatch(expectedChecksum, got)
		}
	}

	return &StorageBlock{Data: plaintext}, nil
}

// writeStorageBlock implements spec.md §4.1's write algorithm: compress,
// selectively encrypt the leading bytes, checksum (over compressed
// bytes if encrypted, else over plaintext), emit header+body. Returns
// the total number of bytes written (the V3 payload_length plus its
// own 8-byte outer header, matching block_length bookkeeping used by
// the builder). Grounded on StorageBlock::to_writer.
func writeStorageBlock(w io.Writer, plaintext []byte, cryptoKey []byte, compressionMethod CompressionMethod, encryptionMethod EncryptionMethod) (uint64, error) {
	comp, err := getCompressor(compressionMethod)
	if err != nil {
		return 0, err
	}
	compressed, err := comp.compress(plaintext)
	if err != nil {
		return 0, err
	}

	prefix := maxEncryptedPrefix
	if prefix > len(compressed) {
		prefix = len(compressed)
	}
	effectiveMethod := encryptionMethod
	encryptedPrefixLength := 0
	if effectiveMethod != EncryptionNone && len(cryptoKey) > 0 && len(plaintext) >= prefix && prefix > 0 {
		enc, err := getEncryptor(effectiveMethod, cryptoKey, zeroNonce8)
		if err != nil {
			return 0, err
		}
		encryptedBytes := make([]byte, prefix)
		enc.encrypt(compressed[:prefix], encryptedBytes)
		copy(compressed[:prefix], encryptedBytes)
		encryptedPrefixLength = prefix
	} else {
		effectiveMethod = EncryptionNone
	}

	var cksum uint32
	if effectiveMethod != EncryptionNone {
		cksum = checksum(compressed)
	} else {
		cksum = checksum(plaintext)
	}

	var header bytes.Buffer
	header.WriteByte(byte(compressionMethod) | byte(effectiveMethod)<<4)
	header.WriteByte(byte(encryptedPrefixLength))
	header.Write([]byte{0, 0}) // reserved
	var cksumBuf [4]byte
	binary.BigEndian.PutUint32(cksumBuf[:], cksum)
	header.Write(cksumBuf[:])

	payloadLength := uint32(header.Len() + len(compressed))

	if err := binary.Write(w, binary.BigEndian, uint32(len(plaintext))); err != nil {
		return 0, newIoErr(err)
	}
	if err := binary.Write(w, binary.BigEndian, payloadLength); err != nil {
		return 0, newIoErr(err)
	}
	if _, err := w.Write(header.Bytes()); err != nil {
		return 0, newIoErr(err)
	}
	if _, err := w.Write(compressed); err != nil {
		return 0, newIoErr(err)
	}
	return uint64(8 + payloadLength), nil
}
