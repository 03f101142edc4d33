// Package checksum implements the CRC-32 variant the JH7110 boot ROM uses to
// validate the SPL image that follows its boot header.
//
// The algorithm is computed MSB first with every input byte bit-reversed into
// the top of a 32-bit word, and the final value reversed again. It must stay
// bit-exact with the StarFive spl_tool reference.
package checksum

import "hash"

const (
	// Init is the initial accumulator value.
	Init uint32 = 0xFFFFFFFF
	// Poly is the generator polynomial in normal (MSB first) form.
	Poly uint32 = 0x04C11DB7

	// Size of a checksum in bytes.
	Size = 4
)

// Reverse32 reverses the bit order of x.
func Reverse32(x uint32) uint32 {
	x = (x&0x55555555)<<1 | (x>>1)&0x55555555
	x = (x&0x33333333)<<2 | (x>>2)&0x33333333
	x = (x&0x0F0F0F0F)<<4 | (x>>4)&0x0F0F0F0F
	x = x<<24 | (x&0xFF00)<<8 | (x>>8)&0xFF00 | x>>24
	return x
}

// Update feeds data into the accumulator iv using polynomial poly and returns
// the new accumulator. The result still needs Final before it can be stored.
func Update(iv, poly uint32, data []byte) uint32 {
	crc := iv
	for _, b := range data {
		sum := Reverse32(uint32(b))
		for i := 0; i < 8; i++ {
			if i != 0 {
				sum <<= 1
			}
			if (crc^sum)&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Final performs the last round on an accumulator returned by Update.
func Final(acc uint32) uint32 {
	return Reverse32(acc ^ 0xFFFFFFFF)
}

// Sum returns the boot ROM checksum of data.
func Sum(data []byte) uint32 {
	return Final(Update(Init, Poly, data))
}

type digest struct {
	crc uint32
}

// New returns a hash.Hash32 computing the boot ROM checksum. Sum32 matches
// Sum over everything written so far.
func New() hash.Hash32 {
	return &digest{crc: Init}
}

func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return 1 }
func (d *digest) Reset()         { d.crc = Init }

func (d *digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, Poly, p)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return Final(d.crc) }

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}
