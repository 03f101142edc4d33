// Package partition finds and fills named GPT partitions of SD card and eMMC
// images, where the JH7110 boot ROM looks for the SPL and its backup copy.
package partition

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	ptable "github.com/diskfs/go-diskfs/partition"
	"github.com/diskfs/go-diskfs/partition/gpt"

	"spltool/internal/common"
)

const (
	SectorSize = 512

	// DefName is the partition label StarFive images use for the SPL.
	DefName = "spl"
)

type Entry struct {
	Index int // 1-based, as go-diskfs counts
	Name  string
	Type  string
	Start int64 // bytes
	Size  int64 // bytes
}

func (e Entry) String() string {
	return fmt.Sprintf("#%d %q type=%s start=0x%x size=%d", e.Index, e.Name, e.Type, e.Start, e.Size)
}

// List returns the used partitions of the GPT disk image at path.
func List(path string) ([]Entry, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return entries(d.GetPartitionTable())
}

func entries(tbl ptable.Table, err error) ([]Entry, error) {
	if err != nil {
		return nil, err
	}
	t, ok := tbl.(*gpt.Table)
	if !ok {
		return nil, fmt.Errorf("partition table is not GPT: %w", common.ErrUnsupported)
	}
	var out []Entry
	for i, p := range t.Partitions {
		if p == nil || p.Type == gpt.Unused || p.Start == 0 {
			continue
		}
		out = append(out, Entry{
			Index: i + 1,
			Name:  p.Name,
			Type:  string(p.Type),
			Start: p.GetStart(),
			Size:  p.GetSize(),
		})
	}
	return out, nil
}

func find(ents []Entry, name string) (*Entry, error) {
	for i := range ents {
		if strings.EqualFold(ents[i].Name, name) {
			return &ents[i], nil
		}
	}
	return nil, fmt.Errorf("partition %q: %w", name, common.ErrNotFound)
}

// Find looks a partition up by name, ignoring case.
func Find(path, name string) (*Entry, error) {
	ents, err := List(path)
	if err != nil {
		return nil, err
	}
	return find(ents, name)
}

// Install writes data at the start of the named partition. The remainder of
// the partition is left as it was.
func Install(path, name string, data []byte) (*Entry, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadWriteExclusive))
	if err != nil {
		return nil, err
	}
	defer d.Close()

	ents, err := entries(d.GetPartitionTable())
	if err != nil {
		return nil, err
	}
	e, err := find(ents, name)
	if err != nil {
		return nil, err
	}
	need := common.AlignUp(uint64(len(data)), SectorSize)
	if need > uint64(e.Size) {
		return nil, fmt.Errorf("%d bytes (%d sectors) do not fit partition %q of %d bytes",
			len(data), common.Blocks(uint64(len(data)), SectorSize), e.Name, e.Size)
	}
	n, err := d.WritePartitionContents(e.Index, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if n != int64(len(data)) {
		return nil, fmt.Errorf("partition %q: short write %d of %d bytes", e.Name, n, len(data))
	}
	return e, nil
}

// IsProtectiveMBR reports whether sec (the first sector of a disk) is a GPT
// protective MBR.
func IsProtectiveMBR(sec []byte) bool {
	if len(sec) < SectorSize {
		return false
	}
	if sec[510] != 0x55 || sec[511] != 0xAA {
		return false
	}
	for i := 0; i < 4; i++ {
		if sec[446+i*16+4] == 0xEE {
			return true
		}
	}
	return false
}

// HasProtectiveMBR reads the first sector of r.
func HasProtectiveMBR(r io.ReaderAt) bool {
	sec := make([]byte, SectorSize)
	if _, err := r.ReadAt(sec, 0); err != nil {
		return false
	}
	return IsProtectiveMBR(sec)
}

// IsDiskImage reports whether path starts with a protective MBR.
func IsDiskImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return HasProtectiveMBR(f)
}
