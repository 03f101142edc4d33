package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"spltool/internal/checksum"
	"spltool/internal/common"
	"spltool/internal/image/spl"
)

// Header check outcomes.
const (
	StatusOK        = "ok"
	StatusCRCFailed = "crc-failed"
	StatusMismatch  = "checksum-mismatch"
	StatusTruncated = "truncated"
	StatusBadSize   = "bad-size"
)

// Report describes the header found at the start of a file and whether the
// payload it points at checks out.
type Report struct {
	Path         string `json:"path"`
	FileSize     int64  `json:"file_size"`
	StartOffset  uint32 `json:"start_offset"`
	BackupOffset uint32 `json:"backup_offset"`
	Version      uint32 `json:"version"`
	ImageSize    uint32 `json:"image_size"`
	ResultOffset uint32 `json:"result_offset"`
	Checksum     uint32 `json:"checksum"`
	Computed     uint32 `json:"computed,omitempty"`
	ReservedZero bool   `json:"reserved_zero"`
	Status       string `json:"status"`
	Detail       string `json:"detail,omitempty"`
}

func (r *Report) Valid() bool { return r.Status == StatusOK }

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File:          %s (%d bytes)\n", r.Path, r.FileSize)
	fmt.Fprintf(&b, "Start offset:  0x%x\n", r.StartOffset)
	fmt.Fprintf(&b, "Backup offset: 0x%x\n", r.BackupOffset)
	fmt.Fprintf(&b, "Version:       0x%08x\n", r.Version)
	fmt.Fprintf(&b, "Image size:    %d\n", r.ImageSize)
	fmt.Fprintf(&b, "Result offset: 0x%x\n", r.ResultOffset)
	fmt.Fprintf(&b, "Checksum:      0x%08x\n", r.Checksum)
	fmt.Fprintf(&b, "Reserved zero: %v\n", r.ReservedZero)
	fmt.Fprintf(&b, "Status:        %s", r.Status)
	if r.Detail != "" {
		fmt.Fprintf(&b, " (%s)", r.Detail)
	}
	return b.String()
}

// WriteJSON encodes r as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Inspect decodes the header at the start of path and checks the payload at
// its result offset. Problems with the payload are reported in the Status,
// only unreadable files and short headers are errors.
func Inspect(path string) (*Report, *spl.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, common.ErrInvalidSplFile)
	}
	defer f.Close()
	size, err := FileSize(path)
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", path, common.ErrInvalidSplFile)
	}

	buf := make([]byte, spl.HeaderLen)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("read %s: %w", path, common.ErrInvalidSplFile)
	}
	h, err := spl.Parse(buf[:n])
	if err != nil {
		return nil, nil, err
	}
	ra, rb := h.ReservedA(), h.ReservedB()
	r := &Report{
		Path:         path,
		FileSize:     size,
		StartOffset:  h.StartOffset(),
		BackupOffset: h.BackupOffset(),
		Version:      h.Version(),
		ImageSize:    h.ImageSize(),
		ResultOffset: h.ResultOffset(),
		Checksum:     h.Checksum(),
		ReservedZero: allZero(ra[:]) && allZero(rb[:]),
	}

	if h.ImageSize() == 0 || h.ImageSize() >= spl.MaxSPLLen {
		r.Status = StatusBadSize
		r.Detail = (&common.SPLLenError{Actual: int(h.ImageSize()), Max: spl.MaxSPLLen}).Error()
		return r, h, nil
	}
	end := int64(h.ResultOffset()) + int64(h.ImageSize())
	if end > size {
		r.Status = StatusTruncated
		r.Detail = fmt.Sprintf("payload ends at %d, file has %d bytes", end, size)
		return r, h, nil
	}
	payload := make([]byte, h.ImageSize())
	if _, err := f.ReadAt(payload, int64(h.ResultOffset())); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, common.ErrInvalidSplFile)
	}
	r.Computed = checksum.Sum(payload)

	var cerr *common.ChecksumError
	switch err := spl.Verify(h, payload); {
	case err == nil:
		r.Status = StatusOK
	case errors.Is(err, common.ErrCRCFailed):
		r.Status = StatusCRCFailed
		r.Detail = fmt.Sprintf("boot ROM falls back to 0x%x", h.BackupOffset())
	case errors.As(err, &cerr):
		r.Status = StatusMismatch
		r.Detail = err.Error()
	default:
		return nil, nil, err
	}
	return r, h, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
