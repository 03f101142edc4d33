// Package spl encodes and repairs the 1 KiB boot header the JH7110 boot ROM
// reads in front of the U-Boot SPL image.
//
// All words are little endian at fixed offsets:
//
//	0x000  start offset       0x284  version
//	0x004  backup offset      0x288  image size
//	0x008  reserved (636)     0x28c  result offset
//	                          0x290  checksum
//	                          0x294  reserved (364)
package spl

import (
	"encoding/binary"
	"fmt"

	"spltool/internal/common"
)

const (
	// DefStartOffset is the header offset: 64+256+256.
	DefStartOffset uint32 = 0x240
	// DefBackupOffset is SBL_BAK_OFFSET, where the boot ROM finds the backup SPL.
	DefBackupOffset uint32 = 0x200000
	DefVersion      uint32 = 0x01010101
	// DefResultOffset is the offset from the header to the SPL image.
	DefResultOffset uint32 = 0x400

	// CRCFailed is written as checksum to force the boot ROM onto the backup offset.
	CRCFailed uint32 = 0x5A5A5A5A

	HeaderLen = 1024
	MaxSPLLen = 180048

	DefSPLFile = "u-boot-spl.bin"
	// PathMax matches PATH_MAX in linux/limits.h, terminator included.
	PathMax = 4096

	reservedALen = 636
	reservedBLen = 364
)

type field struct {
	name  string
	off   int
	width int
}

// Byte layout. Order here is the order on disk.
var (
	fStartOffset  = field{"start offset", 0x000, 4}
	fBackupOffset = field{"backup offset", 0x004, 4}
	fReservedA    = field{"reserved", 0x008, reservedALen}
	fVersion      = field{"version", 0x284, 4}
	fImageSize    = field{"image size", 0x288, 4}
	fResultOffset = field{"result offset", 0x28c, 4}
	fChecksum     = field{"checksum", 0x290, 4}
	fReservedB    = field{"reserved", 0x294, reservedBLen}
)

func (f field) slice(b []byte) ([]byte, error) {
	end := f.off + f.width
	if f.off < 0 || end > len(b) {
		return nil, fmt.Errorf("%s [%d:%d] of %d bytes: %w", f.name, f.off, end, len(b), common.ErrInvalidSlice)
	}
	return b[f.off:end], nil
}

func (f field) get(b []byte) (uint32, error) {
	s, err := f.slice(b)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

func (f field) put(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b[f.off:f.off+f.width], v)
}

// Header is the decoded boot header. The zero value is not a valid header,
// use New or Parse.
type Header struct {
	startOffset  uint32
	backupOffset uint32
	reservedA    [reservedALen]byte
	version      uint32
	imageSize    uint32
	resultOffset uint32
	checksum     uint32
	reservedB    [reservedBLen]byte
}

// New returns a header with the default offsets and version and zeroed
// reserved regions.
func New() *Header {
	return &Header{
		startOffset:  DefStartOffset,
		backupOffset: DefBackupOffset,
		version:      DefVersion,
		resultOffset: DefResultOffset,
	}
}

func (h *Header) StartOffset() uint32 { return h.startOffset }

// BackupOffset is SBL_BAK_OFFSET: offset of the backup SBL from the flash
// info start.
func (h *Header) BackupOffset() uint32     { return h.backupOffset }
func (h *Header) SetBackupOffset(v uint32) { h.backupOffset = v }

func (h *Header) Version() uint32     { return h.version }
func (h *Header) SetVersion(v uint32) { h.version = v }

// ImageSize is the size of u-boot-spl.bin in bytes.
func (h *Header) ImageSize() uint32     { return h.imageSize }
func (h *Header) SetImageSize(v uint32) { h.imageSize = v }

func (h *Header) ResultOffset() uint32     { return h.resultOffset }
func (h *Header) SetResultOffset(v uint32) { h.resultOffset = v }

// Checksum is the boot ROM CRC-32 of the SPL image.
func (h *Header) Checksum() uint32     { return h.checksum }
func (h *Header) SetChecksum(v uint32) { h.checksum = v }

// ReservedA returns a copy of the padding between backup offset and version.
func (h *Header) ReservedA() [reservedALen]byte { return h.reservedA }

// ReservedB returns a copy of the padding after the checksum.
func (h *Header) ReservedB() [reservedBLen]byte { return h.reservedB }

func (h *Header) String() string {
	return fmt.Sprintf("SPL header sofs=0x%x bofs=0x%x vers=0x%08x fsiz=%d resl=0x%x crcs=0x%08x",
		h.startOffset, h.backupOffset, h.version, h.imageSize, h.resultOffset, h.checksum)
}

// Bytes serializes h. Reserved regions are copied as they are held in h.
func (h *Header) Bytes() [HeaderLen]byte {
	var b [HeaderLen]byte
	fStartOffset.put(b[:], h.startOffset)
	fBackupOffset.put(b[:], h.backupOffset)
	copy(b[fReservedA.off:], h.reservedA[:])
	fVersion.put(b[:], h.version)
	fImageSize.put(b[:], h.imageSize)
	fResultOffset.put(b[:], h.resultOffset)
	fChecksum.put(b[:], h.checksum)
	copy(b[fReservedB.off:], h.reservedB[:])
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h *Header) MarshalBinary() ([]byte, error) {
	b := h.Bytes()
	return b[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Trailing bytes past
// HeaderLen are ignored. Reserved regions are taken verbatim: a header is
// accepted by the boot ROM on its checksum alone, not on padding content.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderLen {
		return &common.HeaderLenError{Actual: len(b), Expected: HeaderLen}
	}
	var (
		d   Header
		err error
	)
	words := []struct {
		f   field
		dst *uint32
	}{
		{fStartOffset, &d.startOffset},
		{fBackupOffset, &d.backupOffset},
		{fVersion, &d.version},
		{fImageSize, &d.imageSize},
		{fResultOffset, &d.resultOffset},
		{fChecksum, &d.checksum},
	}
	for _, w := range words {
		if *w.dst, err = w.f.get(b); err != nil {
			return err
		}
	}
	ra, err := fReservedA.slice(b)
	if err != nil {
		return err
	}
	copy(d.reservedA[:], ra)
	rb, err := fReservedB.slice(b)
	if err != nil {
		return err
	}
	copy(d.reservedB[:], rb)

	*h = d
	return nil
}

// Parse decodes the header at the start of b.
func Parse(b []byte) (*Header, error) {
	var h Header
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &h, nil
}
