package mdx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoneEncryptorIsIdentity(t *testing.T) {
	input := []byte("hello world")
	output := make([]byte, len(input))
	var e noneEncryptor
	e.encrypt(input, output)
	require.Equal(t, input, output)
	e.decrypt(output, output)
	require.Equal(t, input, output)
}

func TestSimpleEncryptorRoundTrip(t *testing.T) {
	key := []byte{0x01, 0x02, 0x03, 0x04}
	input := []byte("the quick brown fox jumps over the lazy dog")

	enc := newSimpleEncryptor(key)
	ciphertext := make([]byte, len(input))
	enc.encrypt(input, ciphertext)
	require.NotEqual(t, input, ciphertext)

	dec := newSimpleEncryptor(key)
	plaintext := make([]byte, len(ciphertext))
	dec.decrypt(ciphertext, plaintext)
	require.Equal(t, input, plaintext)
}

func TestSalsa20EncryptorRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x7}, 32)
	nonce := make([]byte, 8)
	input := []byte("the quick brown fox jumps over the lazy dog")

	enc := newSalsa20Encryptor(key, nonce)
	ciphertext := make([]byte, len(input))
	enc.encrypt(input, ciphertext)
	require.NotEqual(t, input, ciphertext)

	dec := newSalsa20Encryptor(key, nonce)
	plaintext := make([]byte, len(ciphertext))
	dec.decrypt(ciphertext, plaintext)
	require.Equal(t, input, plaintext)
}

func TestDecryptSalsa20MatchesManualRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x9}, 32)
	input := []byte("0123456789abcdef")

	enc := newSalsa20Encryptor(key, zeroNonce8)
	ciphertext := make([]byte, len(input))
	enc.encrypt(input, ciphertext)

	plaintext := decryptSalsa20(ciphertext, key)
	require.Equal(t, input, plaintext)
}

func TestEncryptionMethodValid(t *testing.T) {
	require.True(t, EncryptionSalsa20.valid())
	require.False(t, EncryptionMethod(99).valid())
}

func TestGetEncryptorInvalidMethod(t *testing.T) {
	_, err := getEncryptor(EncryptionMethod(99), nil, nil)
	require.Error(t, err)
}
