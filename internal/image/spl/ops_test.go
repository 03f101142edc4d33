package spl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"spltool/internal/checksum"
	"spltool/internal/common"
)

func TestCreateSizeBoundary(t *testing.T) {
	for _, tt := range []struct {
		n       int
		wantErr bool
	}{
		{0, true},
		{1, false},
		{MaxSPLLen - 1, false},
		{MaxSPLLen, true},
		{MaxSPLLen + 1, true},
	} {
		_, h, err := Create(make([]byte, tt.n), Options{})
		if tt.wantErr {
			var lerr *common.SPLLenError
			if !errors.As(err, &lerr) {
				t.Errorf("Create(%d bytes) = %v, want SPLLenError", tt.n, err)
				continue
			}
			if lerr.Actual != tt.n || lerr.Max != MaxSPLLen {
				t.Errorf("Create(%d bytes) error = %+v", tt.n, lerr)
			}
			continue
		}
		if err != nil {
			t.Errorf("Create(%d bytes): %v", tt.n, err)
			continue
		}
		if h.ImageSize() != uint32(tt.n) {
			t.Errorf("Create(%d bytes) image size = %d", tt.n, h.ImageSize())
		}
	}
}

func TestCreate(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x02, 0x03}
	b, h, err := Create(payload, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := h.Checksum(), uint32(0x8BB98613); got != want {
		t.Errorf("checksum = 0x%08x, want 0x%08x", got, want)
	}
	if got := binary.LittleEndian.Uint32(b[0x290:]); got != 0x8BB98613 {
		t.Errorf("checksum on the wire = 0x%08x", got)
	}
	if got := binary.LittleEndian.Uint32(b[0x288:]); got != 4 {
		t.Errorf("image size on the wire = %d, want 4", got)
	}
	if b != h.Bytes() {
		t.Errorf("returned bytes do not match returned header")
	}
	if err := Verify(h, payload); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestCreateOverrides(t *testing.T) {
	payload := bytes.Repeat([]byte{0xA5}, 512)
	_, def, err := Create(payload, Options{})
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		desc       string
		opts       Options
		wantVers   uint32
		wantBackup uint32
	}{
		{
			desc:       "zero means default",
			opts:       Options{Version: 0, BackupOffset: 0},
			wantVers:   DefVersion,
			wantBackup: DefBackupOffset,
		},
		{
			desc:       "version",
			opts:       Options{Version: 0x02020202},
			wantVers:   0x02020202,
			wantBackup: DefBackupOffset,
		},
		{
			desc:       "backup offset",
			opts:       Options{BackupOffset: 0x100000},
			wantVers:   DefVersion,
			wantBackup: 0x100000,
		},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			_, h, err := Create(payload, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if h.Version() != tt.wantVers {
				t.Errorf("version = 0x%x, want 0x%x", h.Version(), tt.wantVers)
			}
			if h.BackupOffset() != tt.wantBackup {
				t.Errorf("backup offset = 0x%x, want 0x%x", h.BackupOffset(), tt.wantBackup)
			}
			if tt.opts == (Options{}) {
				if diff := cmp.Diff(def, h, allowHeader); diff != "" {
					t.Errorf("zero overrides differ from defaults: diff (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestFix(t *testing.T) {
	orig := New()
	orig.SetChecksum(0x12345678)
	orig.SetImageSize(777)
	in := orig.Bytes()
	in[100] = 0x42 // padding must survive

	for _, tt := range []struct {
		desc       string
		backup     uint32
		wantBackup uint32
	}{
		{"default backup", 0, DefBackupOffset},
		{"custom backup", 0x300000, 0x300000},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			out, err := Fix(in[:], tt.backup)
			if err != nil {
				t.Fatal(err)
			}
			h, err := Parse(out[:])
			if err != nil {
				t.Fatal(err)
			}
			if h.Checksum() != CRCFailed {
				t.Errorf("checksum = 0x%08x, want 0x%08x", h.Checksum(), CRCFailed)
			}
			if h.BackupOffset() != tt.wantBackup {
				t.Errorf("backup offset = 0x%x, want 0x%x", h.BackupOffset(), tt.wantBackup)
			}
			want := in
			binary.LittleEndian.PutUint32(want[4:], tt.wantBackup)
			binary.LittleEndian.PutUint32(want[0x290:], CRCFailed)
			if diff := cmp.Diff(want[:], out[:]); diff != "" {
				t.Errorf("unexpected bytes: diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFixAlwaysMarksFailed(t *testing.T) {
	for _, crc := range []uint32{0, CRCFailed, 0xFFFFFFFF, 0x8BB98613} {
		h := New()
		h.SetChecksum(crc)
		b := h.Bytes()
		out, err := Fix(b[:], 0)
		if err != nil {
			t.Fatal(err)
		}
		if got := binary.LittleEndian.Uint32(out[0x290:]); got != CRCFailed {
			t.Errorf("prior checksum 0x%08x: got 0x%08x, want 0x%08x", crc, got, CRCFailed)
		}
	}
}

func TestFixShort(t *testing.T) {
	_, err := Fix(make([]byte, 512), 0)
	var lerr *common.HeaderLenError
	if !errors.As(err, &lerr) {
		t.Fatalf("Fix(512 bytes) = %v, want HeaderLenError", err)
	}
	if lerr.Actual != 512 {
		t.Errorf("Actual = %d, want 512", lerr.Actual)
	}
}

func TestVerify(t *testing.T) {
	payload := []byte("spl payload")
	_, h, err := Create(payload, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if err := Verify(h, payload[:4]); !errors.Is(err, common.ErrCorrupt) {
		t.Errorf("Verify(short payload) = %v, want ErrCorrupt", err)
	}

	bad := append([]byte(nil), payload...)
	bad[0] ^= 0xFF
	err = Verify(h, bad)
	var cerr *common.ChecksumError
	if !errors.As(err, &cerr) {
		t.Fatalf("Verify(corrupted) = %v, want ChecksumError", err)
	}
	if cerr.Want != h.Checksum() || cerr.Got != checksum.Sum(bad) {
		t.Errorf("ChecksumError = %+v", cerr)
	}

	b := h.Bytes()
	fixed, err := Fix(b[:], 0)
	if err != nil {
		t.Fatal(err)
	}
	fh, err := Parse(fixed[:])
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(fh, payload); !errors.Is(err, common.ErrCRCFailed) {
		t.Errorf("Verify(fixed header) = %v, want ErrCRCFailed", err)
	}
}
