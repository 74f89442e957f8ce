package mdx

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
	"github.com/woozymasta/lzo"
)

// CompressionMethod selects the codec used to frame a storage block's
// payload. Values match the wire encoding in storage_block.go's low
// nibble of the method byte.
type CompressionMethod uint8

const (
	CompressionNone CompressionMethod = iota
	CompressionLzo
	CompressionDeflate
	CompressionLzma
	CompressionBzip2
	CompressionLz4
)

func (m CompressionMethod) valid() bool { return m <= CompressionLz4 }

// compressor is the capability object every codec implements;
// grounded on original_source/src/utils/compression.rs's Compressor
// trait and arloliu-mebo/compress/codec.go's Compressor/Decompressor
// interface split.
type compressor interface {
	compress(data []byte) ([]byte, error)
	decompress(data []byte, originalSize int) ([]byte, error)
}

func getCompressor(method CompressionMethod) (compressor, error) {
	switch method {
	case CompressionNone:
		return noneCompressor{}, nil
	case CompressionLzo:
		return lzoCompressor{}, nil
	case CompressionDeflate:
		return deflateCompressor{}, nil
	case CompressionLzma:
		return lzmaCompressor{}, nil
	case CompressionBzip2:
		return bzip2Compressor{}, nil
	case CompressionLz4:
		return lz4Compressor{}, nil
	default:
		return nil, newInvalidParameter("invalid compression method: %d", method)
	}
}

type noneCompressor struct{}

func (noneCompressor) compress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) decompress(data []byte, _ int) ([]byte, error) {
	return data, nil
}

type lzoCompressor struct{}

func (lzoCompressor) compress(data []byte) ([]byte, error) {
	out, err := lzo.Compress1X999(data)
	if err != nil {
		return nil, newCompressionError("lzo compress: %v", err)
	}
	return out, nil
}

func (lzoCompressor) decompress(data []byte, originalSize int) ([]byte, error) {
	out, err := lzo.Decompress1X(bytes.NewReader(data), len(data), originalSize)
	if err != nil {
		return nil, newCompressionError("lzo decompress: %v", err)
	}
	return out, nil
}

type deflateCompressor struct{}

func (deflateCompressor) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, newCompressionError("deflate writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, newCompressionError("deflate write: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, newCompressionError("deflate close: %v", err)
	}
	return buf.Bytes(), nil
}

func (deflateCompressor) decompress(data []byte, originalSize int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out := make([]byte, originalSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, newCompressionError("deflate read: %v", err)
	}
	return out, nil
}

type lzmaCompressor struct{}

func (lzmaCompressor) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, newCompressionError("lzma writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, newCompressionError("lzma write: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, newCompressionError("lzma close: %v", err)
	}
	return buf.Bytes(), nil
}

func (lzmaCompressor) decompress(data []byte, originalSize int) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, newCompressionError("lzma reader: %v", err)
	}
	out := make([]byte, originalSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, newCompressionError("lzma read: %v", err)
	}
	return out, nil
}

type bzip2Compressor struct{}

func (bzip2Compressor) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: 6})
	if err != nil {
		return nil, newCompressionError("bzip2 writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, newCompressionError("bzip2 write: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, newCompressionError("bzip2 close: %v", err)
	}
	return buf.Bytes(), nil
}

func (bzip2Compressor) decompress(data []byte, originalSize int) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, newCompressionError("bzip2 reader: %v", err)
	}
	defer r.Close()
	out := make([]byte, originalSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, newCompressionError("bzip2 read: %v", err)
	}
	return out, nil
}

type lz4Compressor struct{}

func (lz4Compressor) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, newCompressionError("lz4 write: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, newCompressionError("lz4 close: %v", err)
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) decompress(data []byte, originalSize int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out := make([]byte, originalSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, newCompressionError("lz4 read: %v", err)
	}
	return out, nil
}
