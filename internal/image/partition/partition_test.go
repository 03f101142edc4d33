package partition

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/google/go-cmp/cmp"

	"spltool/internal/common"
)

// newImage lays out an SD card image the way StarFive's genimage config does:
// spl at 2 MiB, uboot at 4 MiB.
func newImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sdcard.img")
	d, err := diskfs.Create(path, 16*1024*1024, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	tbl := &gpt.Table{
		LogicalSectorSize:  SectorSize,
		PhysicalSectorSize: SectorSize,
		ProtectiveMBR:      true,
		Partitions: []*gpt.Partition{
			{Start: 4096, End: 8191, Type: gpt.LinuxFilesystem, Name: "spl"},
			{Start: 8192, End: 16383, Type: gpt.LinuxFilesystem, Name: "uboot"},
		},
	}
	if err := d.Partition(tbl); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestList(t *testing.T) {
	path := newImage(t)
	got, err := List(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{Index: 1, Name: "spl", Type: string(gpt.LinuxFilesystem), Start: 0x200000, Size: 4096 * SectorSize},
		{Index: 2, Name: "uboot", Type: string(gpt.LinuxFilesystem), Start: 0x400000, Size: 8192 * SectorSize},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected partitions: diff (-want +got):\n%s", diff)
	}
}

func TestFind(t *testing.T) {
	path := newImage(t)
	e, err := Find(path, "SPL")
	if err != nil {
		t.Fatal(err)
	}
	if e.Start != 0x200000 {
		t.Errorf("start = 0x%x, want 0x200000", e.Start)
	}
	if _, err := Find(path, "rootfs"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Find(rootfs) = %v, want ErrNotFound", err)
	}
}

func TestInstall(t *testing.T) {
	path := newImage(t)
	data := bytes.Repeat([]byte{0xAB, 0xCD}, 3000)
	e, err := Install(path, DefName, data)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got := make([]byte, len(data))
	if _, err := f.ReadAt(got, e.Start); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("partition contents differ from installed data")
	}
	if !HasProtectiveMBR(f) {
		t.Errorf("image lost its protective MBR")
	}
}

func TestInstallTooLarge(t *testing.T) {
	path := newImage(t)
	if _, err := Install(path, DefName, make([]byte, 4096*SectorSize+1)); err == nil {
		t.Errorf("Install of an oversized payload succeeded")
	}
}

func TestIsProtectiveMBR(t *testing.T) {
	sec := make([]byte, SectorSize)
	if IsProtectiveMBR(sec) {
		t.Errorf("zero sector reported as protective MBR")
	}
	sec[510], sec[511] = 0x55, 0xAA
	if IsProtectiveMBR(sec) {
		t.Errorf("plain MBR without 0xEE entry reported as protective")
	}
	sec[446+4] = 0xEE
	if !IsProtectiveMBR(sec) {
		t.Errorf("protective MBR not detected")
	}
	if IsProtectiveMBR(sec[:100]) {
		t.Errorf("short buffer reported as protective MBR")
	}
	if IsDiskImage(filepath.Join(t.TempDir(), "missing")) {
		t.Errorf("missing file reported as disk image")
	}
}
