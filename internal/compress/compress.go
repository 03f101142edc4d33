// Package compress decodes compressed SPL inputs and encodes distribution
// copies of the finished image.
//
// RW: gzip, zstd, lz4, xz, lzma, bzip2
// Names: none|auto|gzip|gz|zstd|zst|lz4|xz|lzma|bzip2|bz2
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"spltool/internal/common"
)

// Normalize maps aliases to canonical codec names.
func Normalize(name string) string {
	switch name {
	case "", "none", "raw":
		return "none"
	case "gz":
		return "gzip"
	case "zst":
		return "zstd"
	case "bz2":
		return "bzip2"
	default:
		return name
	}
}

// Ext returns the file name extension for a codec, without the dot.
func Ext(name string) string {
	switch n := Normalize(name); n {
	case "gzip":
		return "gz"
	case "zstd":
		return "zst"
	case "bzip2":
		return "bz2"
	case "none":
		return ""
	default:
		return n
	}
}

// Detect guesses the codec from magic bytes. lzma "alone" streams carry no
// reliable signature and are reported as none.
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		return "gzip"
	case bytes.HasPrefix(data, []byte{0x28, 0xB5, 0x2F, 0xFD}):
		return "zstd"
	case bytes.HasPrefix(data, []byte{0x04, 0x22, 0x4D, 0x18}):
		return "lz4"
	case bytes.HasPrefix(data, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}):
		return "xz"
	case bytes.HasPrefix(data, []byte("BZh")):
		return "bzip2"
	}
	return "none"
}

func newReader(name string, r io.Reader) (io.Reader, func() error, error) {
	nop := func() error { return nil }
	switch name {
	case "gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gr, gr.Close, nil
	case "zstd":
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return d, func() error { d.Close(); return nil }, nil
	case "lz4":
		return lz4.NewReader(r), nop, nil
	case "xz":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, nop, nil
	case "lzma":
		lr, err := lzma.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return lr, nop, nil
	case "bzip2":
		br, err := bzip2.NewReader(r, &bzip2.ReaderConfig{})
		if err != nil {
			return nil, nil, err
		}
		return br, br.Close, nil
	}
	return nil, nil, fmt.Errorf("decompress %q: %w", name, common.ErrUnsupported)
}

// Decompress decodes in with the named codec and returns at most limit bytes
// of output; a result of exactly limit bytes means the input was truncated.
// A limit <= 0 reads everything. "auto" detects the codec and returns the
// one it used.
func Decompress(in []byte, name string, limit int64) ([]byte, string, error) {
	name = Normalize(name)
	if name == "auto" {
		name = Detect(in)
	}
	if name == "none" {
		if limit > 0 && int64(len(in)) > limit {
			in = in[:limit]
		}
		return in, name, nil
	}
	r, closeFn, err := newReader(name, bytes.NewReader(in))
	if err != nil {
		return nil, name, err
	}
	defer closeFn()
	if limit > 0 {
		r = io.LimitReader(r, limit)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, name, fmt.Errorf("decompress %s: %v: %w", name, err, common.ErrCorrupt)
	}
	return out, name, nil
}

type flusher interface {
	io.Writer
	Close() error
}

func newWriter(name string, w io.Writer) (flusher, error) {
	switch name {
	case "gzip":
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case "zstd":
		return zstd.NewWriter(w)
	case "lz4":
		return lz4.NewWriter(w), nil
	case "xz":
		return xz.NewWriter(w)
	case "lzma":
		return lzma.NewWriter(w)
	case "bzip2":
		return bzip2.NewWriter(w, &bzip2.WriterConfig{})
	}
	return nil, fmt.Errorf("compress %q: %w", name, common.ErrUnsupported)
}

// Compress encodes in with the named codec. "none" returns in unchanged.
func Compress(in []byte, name string) ([]byte, error) {
	name = Normalize(name)
	if name == "none" {
		return in, nil
	}
	var buf bytes.Buffer
	cw, err := newWriter(name, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := cw.Write(in); err != nil {
		cw.Close()
		return nil, err
	}
	if err := cw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
