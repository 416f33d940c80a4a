// Package lines splits a decoded text stream into logical lines.
//
// The Reader recognises LF, CR and CRLF terminators, drops stray byte order
// mark scalars, and recovers once from a decode failure on the first line
// by rewinding the source and switching to the legacy decoder.
package lines

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"unicode/utf16"

	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/textsniff/pkg/charset"
	"github.com/logflow/textsniff/pkg/decode"
	lferrors "github.com/logflow/textsniff/pkg/errors"
	"github.com/logflow/textsniff/pkg/source"
	"github.com/logflow/textsniff/pkg/telemetry"
)

// State is the reader's position in its line sequence.
type State uint8

const (
	// Reading is the state before the first line and between lines.
	Reading State = iota
	// LineReady means Line holds the most recent line.
	LineReady
	// EndOfFile is the terminal state after a clean end of input.
	EndOfFile
	// DecodeError is the terminal state after a failure; Err reports it.
	DecodeError
)

func (s State) String() string {
	switch s {
	case Reading:
		return "reading"
	case LineReady:
		return "line-ready"
	case EndOfFile:
		return "eof"
	case DecodeError:
		return "decode-error"
	default:
		return "unknown"
	}
}

// Line is one logical line without its terminator.
type Line struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Units returns the line as UTF-16 code units.
func (l Line) Units() []uint16 {
	return utf16.Encode([]rune(l.Text))
}

// Byte order mark scalars, as leaked by decoders that do not consume them.
const (
	bomRune        = '\uFEFF'
	swappedBOMRune = '\uFFFE'
)

// Options configures a Reader.
type Options struct {
	// BufferSize is the decoded buffer size. Zero means decode.DefaultBufferSize.
	BufferSize int

	// DisableFallback turns a first-line decode failure into a terminal error.
	DisableFallback bool

	Logger *slog.Logger
}

// Reader produces lines lazily from one stream. It is owned by a single
// goroutine.
type Reader struct {
	ctx    context.Context
	src    source.Source
	rc     io.ReadCloser
	dec    *bufio.Reader
	cfg    decode.Config
	opts   Options
	logger *slog.Logger

	state    State
	line     Line
	err      error
	count    int
	fellBack bool
	buf      strings.Builder
}

// Open opens src and binds the decoder described by cfg. On a first-line
// decode failure the stream is rewound, or reopened through src when it
// cannot seek.
func Open(ctx context.Context, src source.Source, cfg decode.Config, opts Options) (*Reader, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	r, err := newReader(ctx, src, rc, cfg, opts)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads an already open stream. Without a source to reopen, the
// fallback is only possible when rc implements io.Seeker.
func NewReader(ctx context.Context, rc io.ReadCloser, cfg decode.Config, opts Options) (*Reader, error) {
	return newReader(ctx, nil, rc, cfg, opts)
}

func newReader(ctx context.Context, src source.Source, rc io.ReadCloser, cfg decode.Config, opts Options) (*Reader, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = decode.DefaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reader{
		ctx:    ctx,
		src:    src,
		rc:     rc,
		cfg:    cfg,
		opts:   opts,
		logger: logger.With("component", "lines"),
	}
	if src != nil {
		r.logger = r.logger.With("source", src.Location())
	}

	dec, err := decode.NewReaderSize(rc, cfg, opts.BufferSize)
	if err != nil {
		return nil, err
	}
	r.dec = dec
	return r, nil
}

// Next advances to the next line. It returns false at the end of input or
// after a failure; State and Err tell the two apart.
func (r *Reader) Next() bool {
	if r.state == EndOfFile || r.state == DecodeError {
		return false
	}

	text, err := r.readLine()
	if err != nil && r.canFallBack(err) {
		if ferr := r.fallBack(err); ferr != nil {
			r.fail(ferr)
			return false
		}
		text, err = r.readLine()
	}

	switch {
	case err == nil:
		r.count++
		r.line = Line{Number: r.count, Text: text}
		r.state = LineReady
		return true
	case errors.Is(err, io.EOF):
		r.state = EndOfFile
		return false
	default:
		r.fail(err)
		return false
	}
}

// Line returns the current line. It is only meaningful after Next returned true.
func (r *Reader) Line() Line { return r.line }

// Err returns the error that ended the sequence, or nil after a clean end.
func (r *Reader) Err() error { return r.err }

// State returns the reader state.
func (r *Reader) State() State { return r.state }

// FellBack reports whether the legacy decoder replaced the initial one.
func (r *Reader) FellBack() bool { return r.fellBack }

// Config returns the decoder configuration currently bound.
func (r *Reader) Config() decode.Config { return r.cfg }

// Count returns the number of lines produced so far.
func (r *Reader) Count() int { return r.count }

// Close releases the underlying stream.
func (r *Reader) Close() error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	return err
}

// All returns an iterator over the remaining lines.
func (r *Reader) All() iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for r.Next() {
			if !yield(r.Line()) {
				return
			}
		}
	}
}

// readLine returns the next line. io.EOF is returned only when the input
// ended with nothing pending.
func (r *Reader) readLine() (string, error) {
	r.buf.Reset()
	for {
		c, _, err := r.dec.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) && r.buf.Len() > 0 {
				return r.buf.String(), nil
			}
			return "", err
		}

		switch c {
		case bomRune, swappedBOMRune:
			continue
		case '\n':
			return r.buf.String(), nil
		case '\r':
			next, _, err := r.dec.ReadRune()
			if err == nil && next != '\n' {
				r.dec.UnreadRune()
			}
			return r.buf.String(), nil
		default:
			r.buf.WriteRune(c)
		}
	}
}

func (r *Reader) canFallBack(err error) bool {
	return decode.IsDecodeError(err) &&
		r.count == 0 &&
		!r.fellBack &&
		!r.opts.DisableFallback &&
		r.cfg.Encoding != charset.Ansi
}

// fallBack rewinds the stream and rebinds it to the legacy decoder.
func (r *Reader) fallBack(cause error) error {
	rc, err := r.rewind()
	if err != nil {
		return err
	}
	from := r.cfg.Name()
	cfg := r.cfg.WithLegacy()

	dec, err := decode.NewReaderSize(rc, cfg, r.opts.BufferSize)
	if err != nil {
		return err
	}
	r.rc, r.dec, r.cfg = rc, dec, cfg
	r.fellBack = true

	r.logger.Info("falling back to legacy decoder", "from", from, "to", cfg.Name(), "cause", cause)
	telemetry.AddSpanEvent(r.ctx, "reader.fallback",
		attribute.String("from", from),
		attribute.String("to", cfg.Name()),
	)
	return nil
}

// rewind positions a stream at the first byte, seeking when possible and
// otherwise reopening the source.
func (r *Reader) rewind() (io.ReadCloser, error) {
	if s, ok := r.rc.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err == nil {
			return r.rc, nil
		}
	}
	if r.src == nil {
		return nil, lferrors.New(lferrors.CodeFallbackExhausted, "stream cannot be rewound")
	}

	r.rc.Close()
	r.rc = nil
	rc, err := r.src.Open(r.ctx)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (r *Reader) fail(err error) {
	r.state = DecodeError
	switch {
	case decode.IsDecodeError(err) && r.fellBack && r.count == 0:
		r.err = lferrors.Wrap(err, lferrors.CodeFallbackExhausted, "legacy decoder failed").
			WithContext("encoding", r.cfg.Name())
	case decode.IsDecodeError(err):
		r.err = lferrors.DecodeFailed(r.cfg.Name(), r.count+1, err)
	case lferrors.GetCode(err) != lferrors.CodeUnknown:
		r.err = err
	default:
		r.err = lferrors.Wrap(err, lferrors.CodeSourceRead, "read").WithContext("line", r.count+1)
	}
	r.logger.Debug("line sequence ended", "state", r.state, "lines", r.count, "error", r.err)
}
