package decode

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/logflow/textsniff/pkg/charset"
	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// DefaultBufferSize is the size of the decoded rune buffer.
const DefaultBufferSize = 64 * 1024

// NewReader returns a buffered reader producing the decoded text of r as
// UTF-8. Malformed UTF-8 or UTF-16 input surfaces as an error satisfying
// IsDecodeError once the valid prefix has been read.
func NewReader(r io.Reader, cfg Config) (*bufio.Reader, error) {
	return NewReaderSize(r, cfg, DefaultBufferSize)
}

// NewReaderSize is NewReader with an explicit buffer size.
func NewReaderSize(r io.Reader, cfg Config, size int) (*bufio.Reader, error) {
	if size <= 0 {
		size = DefaultBufferSize
	}

	var t transform.Transformer
	switch cfg.Encoding {
	case charset.UTF8:
		if cfg.ConsumeBOM {
			r = skipBOM(r, charset.BOMUTF8)
		}
		t = encoding.UTF8Validator
	case charset.UTF16LE, charset.UTF16BE:
		policy := unicode.IgnoreBOM
		if cfg.ConsumeBOM {
			policy = unicode.UseBOM
		}
		r = transform.NewReader(r, newStrictUTF16(cfg.byteOrder()))
		t = unicode.UTF16(cfg.byteOrder(), policy).NewDecoder()
	case charset.Ansi:
		t = cfg.legacy().Encoding.NewDecoder()
	default:
		return nil, lferrors.UnsupportedEncoding(cfg.Encoding.String())
	}

	return bufio.NewReaderSize(transform.NewReader(r, t), size), nil
}

// Decode decodes a whole buffer. On a decode error the valid prefix is
// returned together with the error.
func Decode(b []byte, cfg Config) (string, error) {
	r, err := NewReader(bytes.NewReader(b), cfg)
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	return string(out), err
}

// IsDecodeError reports whether err came from malformed input rather than
// from the underlying reader.
func IsDecodeError(err error) bool {
	return errors.Is(err, encoding.ErrInvalidUTF8) || lferrors.IsCode(err, lferrors.CodeDecodeFailed)
}

// skipBOM drops a leading mark when the stream starts with one.
func skipBOM(r io.Reader, bom charset.BOM) io.Reader {
	br := bufio.NewReader(r)
	sig := bom.Bytes()
	if head, _ := br.Peek(len(sig)); bytes.Equal(head, sig) {
		br.Discard(len(sig))
	}
	return br
}
