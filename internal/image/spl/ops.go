package spl

import (
	"fmt"

	"spltool/internal/checksum"
	"spltool/internal/common"
)

// Options override header defaults. A zero field keeps the default, so zero
// can never be requested explicitly.
type Options struct {
	Version      uint32
	BackupOffset uint32
}

// Create builds the header for payload and returns it serialized along with
// its decoded form.
func Create(payload []byte, opts Options) ([HeaderLen]byte, *Header, error) {
	if len(payload) == 0 || len(payload) >= MaxSPLLen {
		return [HeaderLen]byte{}, nil, &common.SPLLenError{Actual: len(payload), Max: MaxSPLLen}
	}
	h := New()
	if opts.BackupOffset != 0 {
		h.SetBackupOffset(opts.BackupOffset)
	}
	if opts.Version != 0 {
		h.SetVersion(opts.Version)
	}
	h.SetImageSize(uint32(len(payload)))
	h.SetChecksum(checksum.Sum(payload))
	return h.Bytes(), h, nil
}

// Fix rewrites an existing header so the boot ROM rejects it and jumps to the
// backup offset instead.
//
// When booting from eMMC the boot ROM reads offset 0 rather than partition 0,
// which lands on the GPT protective MBR and header. Fix stores the backup
// address at 0x4 and a bad checksum at 0x290; everything else is kept.
func Fix(hdr []byte, backupOffset uint32) ([HeaderLen]byte, error) {
	h, err := Parse(hdr)
	if err != nil {
		return [HeaderLen]byte{}, err
	}
	if backupOffset == 0 {
		backupOffset = DefBackupOffset
	}
	h.SetBackupOffset(backupOffset)
	h.SetChecksum(CRCFailed)
	return h.Bytes(), nil
}

// Verify checks payload against the size and checksum recorded in h.
func Verify(h *Header, payload []byte) error {
	if uint32(len(payload)) != h.ImageSize() {
		return fmt.Errorf("payload is %d bytes, header records %d: %w", len(payload), h.ImageSize(), common.ErrCorrupt)
	}
	if h.Checksum() == CRCFailed {
		return common.ErrCRCFailed
	}
	if got := checksum.Sum(payload); got != h.Checksum() {
		return &common.ChecksumError{Want: h.Checksum(), Got: got}
	}
	return nil
}
