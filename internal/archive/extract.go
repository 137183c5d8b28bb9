package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// Recognised archive suffixes, longest first so ".tar.gz" wins over ".gz".
var archiveSuffixes = []string{".tar.gz", ".tar.zst", ".tgz", ".tzst", ".tar", ".gz", ".zst"}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	tarMagic  = []byte("ustar")
)

const tarMagicOffset = 257

// StudentName derives the submission identity from an archive file name:
// the archive suffix is stripped and the part before the first delimiter kept.
// "ruanegavin_123_456_project.tar.gz" -> "ruanegavin".
func StudentName(archivePath, delimiter string) string {
	name := filepath.Base(archivePath)
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	if delimiter != "" {
		if i := strings.Index(name, delimiter); i > 0 {
			name = name[:i]
		}
	}
	return name
}

// Extraction describes what Extract did for one archive.
type Extraction struct {
	Dir       string
	Existed   bool // Directory was already there; nothing was extracted
	Archive   bool // Input was recognised as a tar archive
	Entries   int  // Files and directories written
	Skipped   int  // Entries dropped by the safety filter
	Collapsed bool
}

// Extractor unpacks submission archives into per-student directories.
type Extractor struct {
	ignore map[string]bool
}

// NewExtractor creates an extractor. Names in ignore are not counted when
// deciding whether a directory only wraps another directory.
func NewExtractor(ignore []string) *Extractor {
	m := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		m[name] = true
	}
	return &Extractor{ignore: m}
}

// Extract creates root/<name> and unpacks archivePath into it. An existing
// directory means the submission was already extracted and is left alone.
// Input that is not a tar archive (plain, gzip or zstd), including compressed
// data that does not hold one, is logged and leaves the directory empty.
func (e *Extractor) Extract(ctx context.Context, archivePath, root, name string) (*Extraction, error) {
	dir := filepath.Join(root, name)
	logger := log.With().Str("student", name).Str("archive", filepath.Base(archivePath)).Logger()

	res := &Extraction{Dir: dir}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			logger.Info().Str("dir", dir).Msg("directory already exists, skipping extraction")
			res.Existed = true
			return res, nil
		}
		return nil, &ExtractError{Archive: archivePath, Op: "create_dir", Err: err}
	}
	logger.Info().Str("dir", dir).Msg("created submission directory")

	if err := ctx.Err(); err != nil {
		return res, err
	}

	f, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return res, &ExtractError{Archive: archivePath, Op: "open", Err: err}
	}
	defer f.Close()

	tr, closeFn, err := openTar(f)
	if err != nil {
		logger.Warn().Err(err).Msg("not a tar archive, leaving directory empty")
		return res, nil
	}
	defer closeFn()
	res.Archive = true

	if err := e.unpack(ctx, tr, dir, res); err != nil {
		if errors.Is(err, ErrArchiveInvalid) {
			logger.Warn().Err(err).Msg("not a tar archive, leaving directory empty")
			res.Archive = false
			return res, nil
		}
		return res, &ExtractError{Archive: archivePath, Op: "unpack", Err: err}
	}

	logger.Info().Int("entries", res.Entries).Int("skipped", res.Skipped).Msg("archive extracted")

	collapsed, err := e.Collapse(dir)
	if err != nil {
		return res, &ExtractError{Archive: archivePath, Op: "collapse", Err: err}
	}
	res.Collapsed = collapsed
	return res, nil
}

// openTar sniffs the compression format and returns a tar reader over it.
// Every error wraps ErrArchiveInvalid: a stream that cannot be decompressed
// is not an archive.
func openTar(r io.Reader) (*tar.Reader, func(), error) {
	br := bufio.NewReaderSize(r, 4096)
	head, _ := br.Peek(tarMagicOffset + len(tarMagic))

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: gzip: %w", ErrArchiveInvalid, err)
		}
		return tar.NewReader(zr), func() { _ = zr.Close() }, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: zstd: %w", ErrArchiveInvalid, err)
		}
		return tar.NewReader(zr), zr.Close, nil
	case isTarHeader(head):
		return tar.NewReader(br), func() {}, nil
	default:
		return nil, nil, ErrArchiveInvalid
	}
}

func isTarHeader(head []byte) bool {
	if len(head) < tarMagicOffset+len(tarMagic) {
		return false
	}
	return bytes.Equal(head[tarMagicOffset:tarMagicOffset+len(tarMagic)], tarMagic)
}

// unpack writes every entry of tr under dir. A stream that fails before its
// first header is reported as ErrArchiveInvalid: compressed data that is not a
// tarball looks exactly like that.
func (e *Extractor) unpack(ctx context.Context, tr *tar.Reader, dir string, res *Extraction) error {
	root := filepath.Clean(dir)
	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		// ErrInsecurePath still carries the header; safeTarget rejects it below.
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			if first {
				return fmt.Errorf("%w: %w", ErrArchiveInvalid, err)
			}
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := safeTarget(root, hdr.Name)
		if err != nil {
			return err
		}
		if target == root {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", hdr.Name, err)
			}
			res.Entries++
		case tar.TypeReg, tar.TypeRegA: //nolint:staticcheck // old archivers still emit TypeRegA
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("writing %s: %w", hdr.Name, err)
			}
			res.Entries++
		default:
			log.Warn().
				Str("entry", hdr.Name).
				Str("type", string(hdr.Typeflag)).
				Msg("skipping non-regular archive entry")
			res.Skipped++
		}
	}
}

// safeTarget resolves an entry name under root, rejecting absolute paths and
// anything that would land outside root.
func safeTarget(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrUnsafeEntry, name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the target directory", ErrUnsafeEntry, name)
	}
	target := filepath.Join(root, clean)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the target directory", ErrUnsafeEntry, name)
	}
	return target, nil
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm) // #nosec G304 -- target checked by safeTarget
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil { // #nosec G110 -- student archives are trusted for size
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile applies the umask; restore the archived permission bits.
	return os.Chmod(target, perm)
}
