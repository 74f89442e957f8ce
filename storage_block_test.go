package mdx

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteStorageBlockRoundTripPlain(t *testing.T) {
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	var buf bytes.Buffer
	n, err := writeStorageBlock(&buf, plaintext, nil, CompressionNone, EncryptionNone)
	require.NoError(t, err)
	require.Equal(t, uint64(buf.Len()), n)

	meta := &MetaUnit{Version: VersionV3}
	block, err := readStorageBlockV3(&buf, meta)
	require.NoError(t, err)
	require.Equal(t, plaintext, block.Data)
}

func TestWriteStorageBlockRoundTripCompressedEncrypted(t *testing.T) {
	plaintext := bytes.Repeat([]byte("encrypted payload needs to be long enough to exceed the prefix length, "), 4)
	cryptoKey := []byte("0123456789abcdef")

	var buf bytes.Buffer
	_, err := writeStorageBlock(&buf, plaintext, cryptoKey, CompressionDeflate, EncryptionSalsa20)
	require.NoError(t, err)

	meta := &MetaUnit{Version: VersionV3, CryptoKey: cryptoKey}
	block, err := readStorageBlockV3(&buf, meta)
	require.NoError(t, err)
	require.Equal(t, plaintext, block.Data)
}

func TestWriteStorageBlockNoEncryptionWithoutCryptoKey(t *testing.T) {
	plaintext := bytes.Repeat([]byte("x"), 64)

	var buf bytes.Buffer
	_, err := writeStorageBlock(&buf, plaintext, nil, CompressionNone, EncryptionSalsa20)
	require.NoError(t, err)

	// With no crypto key supplied, the block must fall back to no
	// encryption rather than inventing a key from the compressed bytes.
	raw := buf.Bytes()
	methodByte := raw[8]
	require.Equal(t, byte(EncryptionNone), (methodByte>>4)&0x0f)

	meta := &MetaUnit{Version: VersionV3}
	block, err := readStorageBlockV3(&buf, meta)
	require.NoError(t, err)
	require.Equal(t, plaintext, block.Data)
}

func TestReadStorageBlockDetectsChecksumCorruption(t *testing.T) {
	plaintext := []byte("corruption should be detected on read")

	var buf bytes.Buffer
	_, err := writeStorageBlock(&buf, plaintext, nil, CompressionNone, EncryptionNone)
	require.NoError(t, err)

	raw := buf.Bytes()
	// Flip every bit of the payload's last byte, past the 8-byte outer
	// header and 8-byte inner header.
	raw[len(raw)-1] ^= 0xff

	meta := &MetaUnit{Version: VersionV3}
	_, err = readStorageBlockV3(bytes.NewReader(raw), meta)
	require.Error(t, err)
}

func TestLegacyBlockFallbackKeyDerivesFromChecksumBigEndianBytes(t *testing.T) {
	key1 := legacyBlockFallbackKey(0x11E60398)
	require.Len(t, key1, 16)

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], 0x11E60398)
	require.Equal(t, ripemd128Key(crcBuf[:]), key1, "must hash the big-endian checksum bytes, not raw payload bytes")

	key2 := legacyBlockFallbackKey(0xDEADBEEF)
	require.NotEqual(t, key1, key2, "different checksums must derive different keys")
}

func TestDecodeBlockUsesLegacyFallbackKeyWhenCryptoKeyEmpty(t *testing.T) {
	// Pick the on-wire ciphertext bytes directly (rather than deriving
	// them from a key, which would make the stored checksum depend on
	// the very key it's used to derive): the checksum gate and the
	// fallback-key derivation both read straight off these fixed bytes,
	// so there's no circularity to resolve. Decrypting the encrypted
	// prefix with the expected fallback key tells us what plaintext
	// decodeBlock must produce when given an empty cryptoKey.
	wireBytes := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x12}, 10) // 40 bytes
	prefix := len(wireBytes)
	if prefix > maxEncryptedPrefix {
		prefix = maxEncryptedPrefix
	}

	finalChecksum := checksum(wireBytes)
	fallbackKey := legacyBlockFallbackKey(finalChecksum)
	enc, err := getEncryptor(EncryptionSimple, fallbackKey, zeroNonce8)
	require.NoError(t, err)
	decryptedPrefix := make([]byte, prefix)
	enc.decrypt(wireBytes[:prefix], decryptedPrefix)
	expectedPlaintext := append(append([]byte{}, decryptedPrefix...), wireBytes[prefix:]...)

	var header bytes.Buffer
	header.WriteByte(byte(CompressionNone) | byte(EncryptionSimple)<<4)
	header.WriteByte(byte(prefix))
	header.Write([]byte{0, 0})
	var cksumBuf [4]byte
	binary.BigEndian.PutUint32(cksumBuf[:], finalChecksum)
	header.Write(cksumBuf[:])

	body := append(header.Bytes(), wireBytes...)

	block, err := decodeBlock(body, uint32(len(expectedPlaintext)), &MetaUnit{Version: VersionV3}, nil)
	require.NoError(t, err)
	require.Equal(t, expectedPlaintext, block.Data)
}
