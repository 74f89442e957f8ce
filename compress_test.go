package mdx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressorsRoundTrip(t *testing.T) {
	methods := []CompressionMethod{
		CompressionNone,
		CompressionLzo,
		CompressionDeflate,
		CompressionLzma,
		CompressionBzip2,
		CompressionLz4,
	}
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 64)

	for _, method := range methods {
		c, err := getCompressor(method)
		require.NoError(t, err)

		compressed, err := c.compress(payload)
		require.NoError(t, err)

		decompressed, err := c.decompress(compressed, len(payload))
		require.NoError(t, err)
		require.Equal(t, payload, decompressed)
	}
}

func TestCompressionMethodValid(t *testing.T) {
	require.True(t, CompressionLz4.valid())
	require.False(t, CompressionMethod(99).valid())
}

func TestGetCompressorInvalidMethod(t *testing.T) {
	_, err := getCompressor(CompressionMethod(99))
	require.Error(t, err)
}
