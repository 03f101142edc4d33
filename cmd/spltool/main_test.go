package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"spltool/internal/core"
	"spltool/internal/image/spl"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestNumberFlag(t *testing.T) {
	var f flags
	fs := newFlagSet(&f)
	if err := fs.Parse([]string{"-b", "2M", "--version=0x01020304", "-ci"}); err != nil {
		t.Fatal(err)
	}
	if f.backup != 0x200000 || f.version != 0x01020304 || !f.create || !f.fix {
		t.Errorf("parsed flags = %+v", f)
	}
	if got := f.backup.String(); got != "0x200000" {
		t.Errorf("String() = %q", got)
	}
	if err := fs.Parse([]string{"-b", "lots"}); err == nil {
		t.Errorf("Parse(-b lots) succeeded")
	}
}

func TestConfig(t *testing.T) {
	f := flags{create: true, backup: 0x300000}
	conf := f.config()
	if conf.Path() != spl.DefSPLFile {
		t.Errorf("Path() = %q, want %q", conf.Path(), spl.DefSPLFile)
	}
	if !conf.CreateHeader || conf.FixImageHeader || conf.BackupOffset != 0x300000 || conf.Version != 0 {
		t.Errorf("config = %+v", conf)
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "u-boot-spl.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x5A}, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		desc string
		args []string
		want int
	}{
		{"no operation", []string{"-f", path}, 1},
		{"bad number", []string{"-c", "-b", "0xZZ"}, 1},
		{"bad log level", []string{"-c", "--log-level", "loud"}, 1},
		{"stray argument", []string{"-c", "extra"}, 1},
		{"empty spl", []string{"-c", "-f", empty}, 2},
		{"create", []string{"-c", "-f", path}, 0},
		{"create and info", []string{"-c", "--info", "--json", "-f", path}, 0},
		{"info after fix", []string{"-i", "--info", "-f", path + core.OutSuffix}, 2},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Errorf("run(%q) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}
