package core

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"spltool/internal/common"
	"spltool/internal/compress"
	"spltool/internal/image/partition"
	"spltool/internal/image/spl"
)

// OutSuffix is appended to the SPL file name to form the created image name.
const OutSuffix = ".normal.out"

// CreateOptions extend header creation beyond writing <file>.normal.out.
type CreateOptions struct {
	// Decompress names the codec of the input file ("", none, auto, gzip, ...).
	Decompress string
	// Compress, when set, also writes a compressed copy of the output.
	Compress string
	// Disk, when set, is a GPT disk image whose Partition receives the output.
	Disk      string
	Partition string
}

// ReadSPL reads at most spl.MaxSPLLen bytes of the SPL at path, decoding it
// first when codec names a compression format. A result of spl.MaxSPLLen
// bytes means the input is too large.
func ReadSPL(path, codec string) ([]byte, error) {
	log := logrus.WithField("file", path)
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("Error opening SPL image file: %v", err)
		return nil, fmt.Errorf("open %s: %w", path, common.ErrInvalidSplFile)
	}
	defer f.Close()

	if compress.Normalize(codec) == "none" {
		buf := make([]byte, spl.MaxSPLLen)
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			log.Errorf("Error reading from SPL image file: %v", err)
			return nil, fmt.Errorf("read %s: %w", path, common.ErrInvalidSplFile)
		}
		return buf[:n], nil
	}

	raw, err := io.ReadAll(f)
	if err != nil {
		log.Errorf("Error reading from SPL image file: %v", err)
		return nil, fmt.Errorf("read %s: %w", path, common.ErrInvalidSplFile)
	}
	out, used, err := compress.Decompress(raw, codec, spl.MaxSPLLen)
	if err != nil {
		log.Errorf("Error decompressing SPL image file: %v", err)
		return nil, err
	}
	log.Debugf("decoded %d bytes of %s into %d bytes", len(raw), used, len(out))
	return out, nil
}

// CreateHeader writes <path>.normal.out, the SPL prefixed by its boot
// header, and returns the output path. It does nothing unless
// conf.CreateHeader is set.
//
// The header and the payload are written separately; a failure between the
// two leaves a partial output file behind.
func CreateHeader(conf *spl.Config, opts CreateOptions) (string, error) {
	if !conf.CreateHeader {
		return "", nil
	}
	name := conf.Path()
	log := logrus.WithField("file", name)

	payload, err := ReadSPL(name, opts.Decompress)
	if err != nil {
		return "", err
	}
	hdr, h, err := spl.Create(payload, conf.Options())
	if err != nil {
		var lerr *common.SPLLenError
		if errors.As(err, &lerr) {
			if lerr.Actual == 0 {
				log.Error("Empty SPL file.")
			} else {
				log.Errorf("File too large! Please rebuild your SPL with -Os. Maximum allowed size is %d bytes.", spl.MaxSPLLen)
			}
		}
		return "", err
	}
	log.Infof("ubsplhdr.sofs: %#x, ubsplhdr.bofs: %#x, ubsplhdr.vers: %#x, ubsplhdr.fsiz: %d, ubsplhdr.crcs: %#08x",
		h.StartOffset(), h.BackupOffset(), h.Version(), h.ImageSize(), h.Checksum())

	outpath := name + OutSuffix
	out, err := os.Create(outpath)
	if err != nil {
		log.Errorf("Error creating %s file: %v", outpath, err)
		return "", fmt.Errorf("create %s: %w", outpath, common.ErrInvalidHeaderFile)
	}
	defer out.Close()
	if _, err := out.Write(hdr[:]); err != nil {
		log.Errorf("Error writing SPL header to %s file: %v", outpath, err)
		return "", fmt.Errorf("write %s: %w", outpath, common.ErrInvalidHeaderFile)
	}
	if _, err := out.Write(payload); err != nil {
		log.Errorf("Error writing SPL image to %s file: %v", outpath, err)
		return "", fmt.Errorf("write %s: %w", outpath, common.ErrInvalidSplFile)
	}
	if err := out.Close(); err != nil {
		log.Errorf("Error closing %s file: %v", outpath, err)
		return "", fmt.Errorf("close %s: %w", outpath, common.ErrInvalidSplFile)
	}
	log.Infof("SPL written to %s successfully.", outpath)

	if compress.Normalize(opts.Compress) == "none" && opts.Disk == "" {
		return outpath, nil
	}
	image := make([]byte, 0, len(hdr)+len(payload))
	image = append(append(image, hdr[:]...), payload...)

	if compress.Normalize(opts.Compress) != "none" {
		if err := writeCompressed(outpath, image, opts.Compress); err != nil {
			return "", err
		}
	}
	if opts.Disk != "" {
		pname := opts.Partition
		if pname == "" {
			pname = partition.DefName
		}
		e, err := partition.Install(opts.Disk, pname, image)
		if err != nil {
			log.Errorf("Error installing SPL into %s: %v", opts.Disk, err)
			return "", err
		}
		log.Infof("SPL installed into %s partition %s.", opts.Disk, e)
	}
	return outpath, nil
}

func writeCompressed(outpath string, image []byte, codec string) error {
	enc, err := compress.Compress(image, codec)
	if err != nil {
		return err
	}
	dst := outpath + "." + compress.Ext(codec)
	if err := os.WriteFile(dst, enc, 0o644); err != nil {
		logrus.Errorf("Error writing %s: %v", dst, err)
		return fmt.Errorf("write %s: %w", dst, common.ErrInvalidHeaderFile)
	}
	logrus.Infof("Compressed copy written to %s (%d bytes).", dst, len(enc))
	return nil
}

// FixImageHeader patches the header at the start of conf.Path() in place so
// the boot ROM fails its checksum and loads the SPL from the backup offset.
// It does nothing unless conf.FixImageHeader is set.
func FixImageHeader(conf *spl.Config) error {
	if !conf.FixImageHeader {
		return nil
	}
	name := conf.Path()
	log := logrus.WithField("file", name)

	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		log.Errorf("Error opening SPL image: %v", err)
		return fmt.Errorf("open %s: %w", name, common.ErrInvalidSplFile)
	}
	defer f.Close()

	var buf [spl.HeaderLen]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		log.Errorf("Error reading header from SPL image: %v", err)
		return fmt.Errorf("read %s: %w", name, common.ErrInvalidSplFile)
	}
	fixed, err := spl.Fix(buf[:n], conf.BackupOffset)
	if err != nil {
		return err
	}
	if partition.IsProtectiveMBR(buf[:partition.SectorSize]) {
		checkBackupPartition(log, name, fixed)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		log.Errorf("Error seeking to beginning of SPL image: %v", err)
		return fmt.Errorf("seek %s: %w", name, common.ErrInvalidSplFile)
	}
	if _, err := f.Write(fixed[:]); err != nil {
		log.Errorf("Error writing fixed header back to SPL image: %v", err)
		return fmt.Errorf("write %s: %w", name, common.ErrInvalidSplFile)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, common.ErrInvalidSplFile)
	}
	log.Infof("IMG %s fixed header successfully.", name)
	return nil
}

// checkBackupPartition warns when a GPT image has an SPL partition that does
// not start where the fixed header sends the boot ROM.
func checkBackupPartition(log logrus.FieldLogger, name string, fixed [spl.HeaderLen]byte) {
	h, err := spl.Parse(fixed[:])
	if err != nil {
		return
	}
	e, err := partition.Find(name, partition.DefName)
	if err != nil {
		log.Debugf("GPT image without %q partition: %v", partition.DefName, err)
		return
	}
	if e.Start != int64(h.BackupOffset()) {
		log.Warnf("backup offset %#x does not match %s partition start %#x", h.BackupOffset(), e.Name, e.Start)
		return
	}
	log.Debugf("backup offset matches partition %s", e)
}
