package mdx

import "math/bits"

// RIPEMD-128 implementation, transcribed from the reference algorithm
// (Bosselaers' public-domain reference compress function). No Go
// library for RIPEMD-128 specifically exists in the example pack or the
// wider ecosystem (golang.org/x/crypto ships only RIPEMD-160); the
// algorithm is pinned bit-for-bit by the original engine's ripemd128
// crate usage (original_source/src/crypto/digest.rs's ripemd_digest),
// so this is a from-specification internal implementation rather than
// a third-party dependency. See DESIGN.md for the full justification.

const ripemd128BlockSize = 64

type ripemd128Digest struct {
	s   [4]uint32
	x   [ripemd128BlockSize]byte
	nx  int
	len uint64
}

func newRipemd128() *ripemd128Digest {
	d := &ripemd128Digest{}
	d.reset()
	return d
}

func (d *ripemd128Digest) reset() {
	d.s[0] = 0x67452301
	d.s[1] = 0xefcdab89
	d.s[2] = 0x98badcfe
	d.s[3] = 0x10325476
	d.nx = 0
	d.len = 0
}

func (d *ripemd128Digest) write(p []byte) {
	d.len += uint64(len(p))
	if d.nx > 0 {
		n := copy(d.x[d.nx:], p)
		d.nx += n
		if d.nx == ripemd128BlockSize {
			ripemd128Block(d, d.x[:])
			d.nx = 0
		}
		p = p[n:]
	}
	for len(p) >= ripemd128BlockSize {
		ripemd128Block(d, p[:ripemd128BlockSize])
		p = p[ripemd128BlockSize:]
	}
	if len(p) > 0 {
		d.nx = copy(d.x[:], p)
	}
}

func (d *ripemd128Digest) sum() []byte {
	length := d.len
	var tmp [64]byte
	tmp[0] = 0x80
	if length%64 < 56 {
		d.write(tmp[0 : 56-length%64])
	} else {
		d.write(tmp[0 : 64+56-length%64])
	}
	lenBits := length << 3
	for i := uint(0); i < 8; i++ {
		tmp[i] = byte(lenBits >> (8 * i))
	}
	d.write(tmp[0:8])
	if d.nx != 0 {
		panic("ripemd128: buffer not empty after padding")
	}
	out := make([]byte, 16)
	for i, s := range d.s {
		out[i*4] = byte(s)
		out[i*4+1] = byte(s >> 8)
		out[i*4+2] = byte(s >> 16)
		out[i*4+3] = byte(s >> 24)
	}
	return out
}

func ripemd128F1(x, y, z uint32) uint32 { return x ^ y ^ z }
func ripemd128F2(x, y, z uint32) uint32 { return (x & y) | (^x & z) }
func ripemd128F3(x, y, z uint32) uint32 { return (x | ^y) ^ z }
func ripemd128F4(x, y, z uint32) uint32 { return (x & z) | (y &^ z) }

func rol(x uint32, n int) uint32 { return bits.RotateLeft32(x, n) }

// ripemd128Block runs the RIPEMD-128 compression function over one or
// more 64-byte blocks, following the reference dual-line construction.
func ripemd128Block(md *ripemd128Digest, p []byte) {
	var x [16]uint32
	for len(p) >= ripemd128BlockSize {
		for i := 0; i < 16; i++ {
			x[i] = uint32(p[i*4]) | uint32(p[i*4+1])<<8 | uint32(p[i*4+2])<<16 | uint32(p[i*4+3])<<24
		}

		a, b, c, d := md.s[0], md.s[1], md.s[2], md.s[3]
		aa, bb, cc, dd := md.s[0], md.s[1], md.s[2], md.s[3]

		// round 1
		a = rol(a+ripemd128F1(b, c, d)+x[0], 11)
		d = rol(d+ripemd128F1(a, b, c)+x[1], 14)
		c = rol(c+ripemd128F1(d, a, b)+x[2], 15)
		b = rol(b+ripemd128F1(c, d, a)+x[3], 12)
		a = rol(a+ripemd128F1(b, c, d)+x[4], 5)
		d = rol(d+ripemd128F1(a, b, c)+x[5], 8)
		c = rol(c+ripemd128F1(d, a, b)+x[6], 7)
		b = rol(b+ripemd128F1(c, d, a)+x[7], 9)
		a = rol(a+ripemd128F1(b, c, d)+x[8], 11)
		d = rol(d+ripemd128F1(a, b, c)+x[9], 13)
		c = rol(c+ripemd128F1(d, a, b)+x[10], 14)
		b = rol(b+ripemd128F1(c, d, a)+x[11], 15)
		a = rol(a+ripemd128F1(b, c, d)+x[12], 6)
		d = rol(d+ripemd128F1(a, b, c)+x[13], 7)
		c = rol(c+ripemd128F1(d, a, b)+x[14], 9)
		b = rol(b+ripemd128F1(c, d, a)+x[15], 8)

		// round 2
		a = rol(a+ripemd128F2(b, c, d)+x[7]+0x5a827999, 7)
		d = rol(d+ripemd128F2(a, b, c)+x[4]+0x5a827999, 6)
		c = rol(c+ripemd128F2(d, a, b)+x[13]+0x5a827999, 8)
		b = rol(b+ripemd128F2(c, d, a)+x[1]+0x5a827999, 13)
		a = rol(a+ripemd128F2(b, c, d)+x[10]+0x5a827999, 11)
		d = rol(d+ripemd128F2(a, b, c)+x[6]+0x5a827999, 9)
		c = rol(c+ripemd128F2(d, a, b)+x[15]+0x5a827999, 7)
		b = rol(b+ripemd128F2(c, d, a)+x[3]+0x5a827999, 15)
		a = rol(a+ripemd128F2(b, c, d)+x[12]+0x5a827999, 7)
		d = rol(d+ripemd128F2(a, b, c)+x[0]+0x5a827999, 12)
		c = rol(c+ripemd128F2(d, a, b)+x[9]+0x5a827999, 15)
		b = rol(b+ripemd128F2(c, d, a)+x[5]+0x5a827999, 9)
		a = rol(a+ripemd128F2(b, c, d)+x[2]+0x5a827999, 11)
		d = rol(d+ripemd128F2(a, b, c)+x[14]+0x5a827999, 7)
		c = rol(c+ripemd128F2(d, a, b)+x[11]+0x5a827999, 13)
		b = rol(b+ripemd128F2(c, d, a)+x[8]+0x5a827999, 12)

		// round 3
		a = rol(a+ripemd128F3(b, c, d)+x[3]+0x6ed9eba1, 11)
		d = rol(d+ripemd128F3(a, b, c)+x[10]+0x6ed9eba1, 13)
		c = rol(c+ripemd128F3(d, a, b)+x[14]+0x6ed9eba1, 6)
		b = rol(b+ripemd128F3(c, d, a)+x[4]+0x6ed9eba1, 7)
		a = rol(a+ripemd128F3(b, c, d)+x[9]+0x6ed9eba1, 14)
		d = rol(d+ripemd128F3(a, b, c)+x[15]+0x6ed9eba1, 9)
		c = rol(c+ripemd128F3(d, a, b)+x[8]+0x6ed9eba1, 13)
		b = rol(b+ripemd128F3(c, d, a)+x[1]+0x6ed9eba1, 15)
		a = rol(a+ripemd128F3(b, c, d)+x[2]+0x6ed9eba1, 14)
		d = rol(d+ripemd128F3(a, b, c)+x[7]+0x6ed9eba1, 8)
		c = rol(c+ripemd128F3(d, a, b)+x[0]+0x6ed9eba1, 13)
		b = rol(b+ripemd128F3(c, d, a)+x[6]+0x6ed9eba1, 6)
		a = rol(a+ripemd128F3(b, c, d)+x[13]+0x6ed9eba1, 5)
		d = rol(d+ripemd128F3(a, b, c)+x[11]+0x6ed9eba1, 12)
		c = rol(c+ripemd128F3(d, a, b)+x[5]+0x6ed9eba1, 7)
		b = rol(b+ripemd128F3(c, d, a)+x[12]+0x6ed9eba1, 5)

		// round 4
		a = rol(a+ripemd128F4(b, c, d)+x[1]+0x8f1bbcdc, 11)
		d = rol(d+ripemd128F4(a, b, c)+x[9]+0x8f1bbcdc, 12)
		c = rol(c+ripemd128F4(d, a, b)+x[11]+0x8f1bbcdc, 14)
		b = rol(b+ripemd128F4(c, d, a)+x[10]+0x8f1bbcdc, 15)
		a = rol(a+ripemd128F4(b, c, d)+x[0]+0x8f1bbcdc, 14)
		d = rol(d+ripemd128F4(a, b, c)+x[8]+0x8f1bbcdc, 15)
		c = rol(c+ripemd128F4(d, a, b)+x[12]+0x8f1bbcdc, 9)
		b = rol(b+ripemd128F4(c, d, a)+x[4]+0x8f1bbcdc, 8)
		a = rol(a+ripemd128F4(b, c, d)+x[13]+0x8f1bbcdc, 9)
		d = rol(d+ripemd128F4(a, b, c)+x[3]+0x8f1bbcdc, 14)
		c = rol(c+ripemd128F4(d, a, b)+x[7]+0x8f1bbcdc, 5)
		b = rol(b+ripemd128F4(c, d, a)+x[15]+0x8f1bbcdc, 6)
		a = rol(a+ripemd128F4(b, c, d)+x[14]+0x8f1bbcdc, 8)
		d = rol(d+ripemd128F4(a, b, c)+x[5]+0x8f1bbcdc, 6)
		c = rol(c+ripemd128F4(d, a, b)+x[6]+0x8f1bbcdc, 5)
		b = rol(b+ripemd128F4(c, d, a)+x[2]+0x8f1bbcdc, 12)

		// parallel round 1
		aa = rol(aa+ripemd128F4(bb, cc, dd)+x[5]+0x50a28be6, 8)
		dd = rol(dd+ripemd128F4(aa, bb, cc)+x[14]+0x50a28be6, 9)
		cc = rol(cc+ripemd128F4(dd, aa, bb)+x[7]+0x50a28be6, 9)
		bb = rol(bb+ripemd128F4(cc, dd, aa)+x[0]+0x50a28be6, 11)
		aa = rol(aa+ripemd128F4(bb, cc, dd)+x[9]+0x50a28be6, 13)
		dd = rol(dd+ripemd128F4(aa, bb, cc)+x[2]+0x50a28be6, 15)
		cc = rol(cc+ripemd128F4(dd, aa, bb)+x[11]+0x50a28be6, 15)
		bb = rol(bb+ripemd128F4(cc, dd, aa)+x[4]+0x50a28be6, 5)
		aa = rol(aa+ripemd128F4(bb, cc, dd)+x[13]+0x50a28be6, 7)
		dd = rol(dd+ripemd128F4(aa, bb, cc)+x[6]+0x50a28be6, 7)
		cc = rol(cc+ripemd128F4(dd, aa, bb)+x[15]+0x50a28be6, 8)
		bb = rol(bb+ripemd128F4(cc, dd, aa)+x[8]+0x50a28be6, 11)
		aa = rol(aa+ripemd128F4(bb, cc, dd)+x[1]+0x50a28be6, 14)
		dd = rol(dd+ripemd128F4(aa, bb, cc)+x[10]+0x50a28be6, 14)
		cc = rol(cc+ripemd128F4(dd, aa, bb)+x[3]+0x50a28be6, 12)
		bb = rol(bb+ripemd128F4(cc, dd, aa)+x[12]+0x50a28be6, 6)

		// parallel round 2
		aa = rol(aa+ripemd128F3(bb, cc, dd)+x[6]+0x5c4dd124, 9)
		dd = rol(dd+ripemd128F3(aa, bb, cc)+x[11]+0x5c4dd124, 13)
		cc = rol(cc+ripemd128F3(dd, aa, bb)+x[3]+0x5c4dd124, 15)
		bb = rol(bb+ripemd128F3(cc, dd, aa)+x[7]+0x5c4dd124, 7)
		aa = rol(aa+ripemd128F3(bb, cc, dd)+x[0]+0x5c4dd124, 12)
		dd = rol(dd+ripemd128F3(aa, bb, cc)+x[13]+0x5c4dd124, 8)
		cc = rol(cc+ripemd128F3(dd, aa, bb)+x[5]+0x5c4dd124, 9)
		bb = rol(bb+ripemd128F3(cc, dd, aa)+x[10]+0x5c4dd124, 11)
		aa = rol(aa+ripemd128F3(bb, cc, dd)+x[14]+0x5c4dd124, 7)
		dd = rol(dd+ripemd128F3(aa, bb, cc)+x[15]+0x5c4dd124, 7)
		cc = rol(cc+ripemd128F3(dd, aa, bb)+x[8]+0x5c4dd124, 12)
		bb = rol(bb+ripemd128F3(cc, dd, aa)+x[12]+0x5c4dd124, 7)
		aa = rol(aa+ripemd128F3(bb, cc, dd)+x[4]+0x5c4dd124, 6)
		dd = rol(dd+ripemd128F3(aa, bb, cc)+x[9]+0x5c4dd124, 15)
		cc = rol(cc+ripemd128F3(dd, aa, bb)+x[1]+0x5c4dd124, 13)
		bb = rol(bb+ripemd128F3(cc, dd, aa)+x[2]+0x5c4dd124, 11)

		// parallel round 3
		aa = rol(aa+ripemd128F2(bb, cc, dd)+x[15]+0x6d703ef3, 9)
		dd = rol(dd+ripemd128F2(aa, bb, cc)+x[5]+0x6d703ef3, 7)
		cc = rol(cc+ripemd128F2(dd, aa, bb)+x[1]+0x6d703ef3, 15)
		bb = rol(bb+ripemd128F2(cc, dd, aa)+x[3]+0x6d703ef3, 11)
		aa = rol(aa+ripemd128F2(bb, cc, dd)+x[7]+0x6d703ef3, 8)
		dd = rol(dd+ripemd128F2(aa, bb, cc)+x[14]+0x6d703ef3, 6)
		cc = rol(cc+ripemd128F2(dd, aa, bb)+x[6]+0x6d703ef3, 6)
		bb = rol(bb+ripemd128F2(cc, dd, aa)+x[9]+0x6d703ef3, 14)
		aa = rol(aa+ripemd128F2(bb, cc, dd)+x[11]+0x6d703ef3, 12)
		dd = rol(dd+ripemd128F2(aa, bb, cc)+x[8]+0x6d703ef3, 13)
		cc = rol(cc+ripemd128F2(dd, aa, bb)+x[12]+0x6d703ef3, 5)
		bb = rol(bb+ripemd128F2(cc, dd, aa)+x[2]+0x6d703ef3, 14)
		aa = rol(aa+ripemd128F2(bb, cc, dd)+x[10]+0x6d703ef3, 13)
		dd = rol(dd+ripemd128F2(aa, bb, cc)+x[0]+0x6d703ef3, 13)
		cc = rol(cc+ripemd128F2(dd, aa, bb)+x[4]+0x6d703ef3, 7)
		bb = rol(bb+ripemd128F2(cc, dd, aa)+x[13]+0x6d703ef3, 5)

		// parallel round 4
		aa = rol(aa+ripemd128F1(bb, cc, dd)+x[8], 15)
		dd = rol(dd+ripemd128F1(aa, bb, cc)+x[6], 5)
		cc = rol(cc+ripemd128F1(dd, aa, bb)+x[4], 8)
		bb = rol(bb+ripemd128F1(cc, dd, aa)+x[1], 11)
		aa = rol(aa+ripemd128F1(bb, cc, dd)+x[10], 14)
		dd = rol(dd+ripemd128F1(aa, bb, cc)+x[3], 14)
		cc = rol(cc+ripemd128F1(dd, aa, bb)+x[15], 6)
		bb = rol(bb+ripemd128F1(cc, dd, aa)+x[12], 14)
		aa = rol(aa+ripemd128F1(bb, cc, dd)+x[0], 6)
		dd = rol(dd+ripemd128F1(aa, bb, cc)+x[9], 9)
		cc = rol(cc+ripemd128F1(dd, aa, bb)+x[5], 12)
		bb = rol(bb+ripemd128F1(cc, dd, aa)+x[2], 9)
		aa = rol(aa+ripemd128F1(bb, cc, dd)+x[14], 12)
		dd = rol(dd+ripemd128F1(aa, bb, cc)+x[11], 5)
		cc = rol(cc+ripemd128F1(dd, aa, bb)+x[8], 15)
		bb = rol(bb+ripemd128F1(cc, dd, aa)+x[7], 8)

		// combine results
		dd += c + md.s[1]
		md.s[1] = md.s[2] + d + aa
		md.s[2] = md.s[3] + a + bb
		md.s[3] = md.s[0] + b + cc
		md.s[0] = dd

		p = p[ripemd128BlockSize:]
	}
}

// ripemd128Key computes the RIPEMD-128 digest of data — the one
// function the rest of the package uses (V2 storage-block key
// derivation, key-block-index aux cipher key, device-id derived
// registration key).
func ripemd128Key(data []byte) []byte {
	d := newRipemd128()
	d.write(data)
	return d.sum()
}
