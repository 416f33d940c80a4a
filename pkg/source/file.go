package source

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

var gzipMagic = []byte{0x1f, 0x8b}

// File is a local file. Gzip files, recognised by a .gz suffix or by their
// magic bytes, are decompressed transparently.
type File struct {
	path string
	info os.FileInfo
}

// NewFile creates a file source.
func NewFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, openError(err, path)
	}
	if info.IsDir() {
		return nil, lferrors.New(lferrors.CodeInvalidLocation, "location is a directory").
			WithContext("location", path)
	}
	return &File{path: path, info: info}, nil
}

func (f *File) ID() string         { return f.path }
func (f *File) Location() string   { return f.path }
func (f *File) Size() int64        { return f.info.Size() }
func (f *File) ModTime() time.Time { return f.info.ModTime() }

// Compressed reports whether the path carries a gzip suffix.
func (f *File) Compressed() bool {
	return IsGzipPath(f.path)
}

// Open returns the file contents. Uncompressed files are returned as
// *os.File, which callers may seek.
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, lferrors.ContextCanceled("open")
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, openError(err, f.path)
	}

	gz := f.Compressed()
	var br *bufio.Reader
	if !gz {
		br = bufio.NewReader(file)
		head, _ := br.Peek(len(gzipMagic))
		gz = bytes.Equal(head, gzipMagic)
	}
	if !gz {
		// Hand back the file itself, rewound past the peek.
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, openError(err, f.path)
		}
		return file, nil
	}

	var src io.Reader = file
	if br != nil {
		src = br
	}
	zr, err := gzip.NewReader(src)
	if err != nil {
		file.Close()
		return nil, lferrors.Wrap(err, lferrors.CodeSourceOpen, "open gzip stream").
			WithContext("location", f.path)
	}
	return &gzipReadCloser{Reader: zr, file: file}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	g.Reader.Close()
	return g.file.Close()
}

// IsGzipPath returns true if the path indicates gzip compression.
func IsGzipPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// StripCompression removes a .gz extension from a path.
func StripCompression(path string) string {
	if IsGzipPath(path) {
		return path[:len(path)-3]
	}
	return path
}
