package mdx

import (
	"encoding/binary"
	"hash/adler32"

	"github.com/cespare/xxhash/v2"
)

// checksum computes the Adler-32 of data per storage_block.go's framing
// rule. Stdlib hash/adler32 is used directly: Adler-32 is a small fixed
// checksum with no meaningful third-party alternative anywhere in the
// example pack or ecosystem worth depending on (see DESIGN.md).
func checksum(data []byte) uint32 {
	return adler32.Checksum(data)
}

// FastHash computes the 128-bit (or 64-bit, for single-byte input)
// digest used to derive a crypto key from a UUID or password. It splits
// input into two halves at (len+1)/2 (integer division, i.e. ceil(len/2)), XXH64-hashes each half with
// seed 0, and concatenates the big-endian bytes. Transcribed from
// original_source/src/crypto/digest.rs's fast_hash_digest, including
// the len==1 special case noted as an open question in spec.md §9: a
// single-byte input yields only the first 8-byte half.
func FastHash(input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, newInvalidParameter("fast hash input is empty")
	}
	firstPartLen := (len(input) + 1) / 2

	out := make([]byte, 0, 16)
	h1 := xxhash.Sum64(input[:firstPartLen])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h1)
	out = append(out, buf[:]...)

	if len(input) > 1 {
		h2 := xxhash.Sum64(input[firstPartLen:])
		binary.BigEndian.PutUint64(buf[:], h2)
		out = append(out, buf[:]...)
	}
	return out, nil
}
