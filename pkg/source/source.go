// Package source provides re-openable byte sources for detection and decoding.
//
// Detection reads a bounded prefix and closes the source; decoding opens it
// again. A source must therefore yield the same bytes on every Open.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// Source is a re-openable stream of raw bytes.
type Source interface {
	// ID returns a unique identifier for this source.
	ID() string

	// Location returns the source location (path, URL, etc.).
	Location() string

	// Size returns the size in bytes, or -1 if unknown.
	Size() int64

	// ModTime returns the last modification time.
	ModTime() time.Time

	// Open returns a reader positioned at the first byte.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// StdinLocation names standard input on the command line.
const StdinLocation = "-"

// Options configures Parse and Expand.
type Options struct {
	// S3 configures clients for s3:// locations.
	S3 S3Config

	// Stdin replaces os.Stdin, mainly for tests.
	Stdin io.Reader
}

// Parse returns the source for a single location: "-" for standard input,
// s3://bucket/key for an S3 object, anything else for a local file.
func Parse(ctx context.Context, location string, opts Options) (Source, error) {
	switch {
	case location == StdinLocation:
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		src, err := NewStdin(in)
		if err != nil {
			return nil, err
		}
		return src, nil
	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := ParseS3URL(location)
		if err != nil {
			return nil, err
		}
		client, err := NewS3Client(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		src, err := NewS3(ctx, client, bucket, key)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		src, err := NewFile(location)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

// Expand resolves locations into sources. Local paths are treated as glob
// patterns; matches are sorted and directories skipped. A pattern matching
// nothing is an error, as is a missing file.
func Expand(ctx context.Context, locations []string, opts Options) ([]Source, error) {
	var out []Source
	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return nil, lferrors.ContextCanceled("expand")
		}
		if loc == StdinLocation || strings.HasPrefix(loc, "s3://") || !hasMeta(loc) {
			src, err := Parse(ctx, loc, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, src)
			continue
		}

		matches, err := filepath.Glob(loc)
		if err != nil {
			return nil, lferrors.Wrap(err, lferrors.CodeInvalidLocation, "invalid glob pattern").
				WithContext("pattern", loc)
		}
		sort.Strings(matches)

		n := 0
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			src, err := NewFile(path)
			if err != nil {
				continue
			}
			out = append(out, src)
			n++
		}
		if n == 0 {
			return nil, lferrors.SourceNotFound(loc).WithContext("pattern", true)
		}
	}
	return out, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}

// ReadPrefix reads at most n bytes from the start of src. The source is
// closed before returning. A source shorter than n yields all its bytes.
func ReadPrefix(ctx context.Context, src Source, n int) ([]byte, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(rc, buf)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return buf[:read], nil
	default:
		return nil, lferrors.Wrap(err, lferrors.CodeSourceRead, "read prefix").
			WithContext("location", src.Location())
	}
}

// openError classifies an open failure.
func openError(err error, location string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return lferrors.Wrap(err, lferrors.CodeSourceNotFound, "source not found").
			WithContext("location", location)
	case errors.Is(err, fs.ErrPermission):
		return lferrors.Wrap(err, lferrors.CodeSourcePermission, "permission denied").
			WithContext("location", location)
	default:
		return lferrors.Wrap(err, lferrors.CodeSourceOpen, fmt.Sprintf("open %s", location))
	}
}
