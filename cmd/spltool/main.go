// spltool creates and fixes the boot header the StarFive JH7110 boot ROM
// expects in front of u-boot-spl.bin.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"spltool/internal/core"
	"spltool/internal/image/partition"
	"spltool/internal/image/spl"
	"spltool/internal/tui/inspect"
)

// number is a pflag.Value for header words: 0x hex, decimal, K/M suffixes.
type number uint32

func (n *number) String() string { return fmt.Sprintf("%#x", uint32(*n)) }
func (n *number) Type() string   { return "uint32" }

func (n *number) Set(s string) error {
	v, err := core.ParseNumber(s)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}

type flags struct {
	create   bool
	fix      bool
	backup   number
	version  number
	file     string
	decomp   string
	comp     string
	disk     string
	part     string
	info     bool
	json     bool
	tui      bool
	logLevel string
}

func newFlagSet(f *flags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("spltool", pflag.ContinueOnError)
	fs.BoolVarP(&f.create, "create-splhdr", "c", false, "create the SPL header")
	fs.BoolVarP(&f.fix, "fix-imghdr", "i", false, "fix the IMG header")
	fs.VarP(&f.backup, "sbl-bak-addr", "b", "custom SBL_BAK_OFFSET address, default value: 0x200000")
	fs.VarP(&f.version, "version", "v", "custom version, default value: 0x01010101")
	fs.StringVarP(&f.file, "file", "f", "", "SPL filename (default "+spl.DefSPLFile+")")
	fs.StringVarP(&f.decomp, "decompress", "z", "none", "codec of the SPL file: none|auto|gzip|zstd|lz4|xz|lzma|bzip2")
	fs.StringVar(&f.comp, "compress", "", "also write a copy of the output compressed with this codec")
	fs.StringVar(&f.disk, "disk", "", "GPT disk image to install the created output into")
	fs.StringVar(&f.part, "partition", partition.DefName, "partition name used with --disk")
	fs.BoolVar(&f.info, "info", false, "print and verify the header of the file")
	fs.BoolVar(&f.json, "json", false, "with --info, print the report as JSON")
	fs.BoolVar(&f.tui, "tui", false, "with --info, browse the header interactively")
	fs.StringVar(&f.logLevel, "log-level", envOr("SPLTOOL_LOG", "info"), "log level: debug|info|warn|error")
	return fs
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (f *flags) config() *spl.Config {
	conf := spl.NewConfig()
	if f.file != "" {
		conf.SetPath(f.file)
	} else {
		logrus.Debugf("no SPL file provided, trying %s", spl.DefSPLFile)
	}
	conf.Version = uint32(f.version)
	conf.BackupOffset = uint32(f.backup)
	conf.CreateHeader = f.create
	conf.FixImageHeader = f.fix
	return conf
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var f flags
	fs := newFlagSet(&f)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "unexpected arguments:", fs.Args())
		fs.Usage()
		return 1
	}
	lvl, err := logrus.ParseLevel(f.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logrus.SetLevel(lvl)

	if !f.create && !f.fix && !f.info {
		fs.Usage()
		return 1
	}

	conf := f.config()
	logrus.Infof("Using SPL file: %s", conf.Path())

	out, err := core.CreateHeader(conf, core.CreateOptions{
		Decompress: f.decomp,
		Compress:   f.comp,
		Disk:       f.disk,
		Partition:  f.part,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "create:", err)
		return 2
	}
	if err := core.FixImageHeader(conf); err != nil {
		fmt.Fprintln(os.Stderr, "fix:", err)
		return 2
	}
	if f.info {
		if out == "" {
			out = conf.Path()
		}
		return info(out, f.json, f.tui)
	}
	return 0
}

func info(path string, asJSON, tui bool) int {
	r, h, err := core.Inspect(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "info:", err)
		return 2
	}
	switch {
	case tui:
		if err := inspect.Run(r, h); err != nil {
			fmt.Fprintln(os.Stderr, "tui:", err)
			return 2
		}
	case asJSON:
		if err := r.WriteJSON(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	default:
		fmt.Println(r)
	}
	if !r.Valid() {
		return 2
	}
	return 0
}
