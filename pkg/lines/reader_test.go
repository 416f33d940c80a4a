package lines

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding"

	"github.com/logflow/textsniff/pkg/charset"
	"github.com/logflow/textsniff/pkg/decode"
	lferrors "github.com/logflow/textsniff/pkg/errors"
	"github.com/logflow/textsniff/pkg/source"
)

func config(t *testing.T, enc charset.TextEncoding) decode.Config {
	t.Helper()
	cfg, err := decode.ForEncoding(enc, nil)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func open(t *testing.T, data []byte, cfg decode.Config, opts Options) *Reader {
	t.Helper()
	r, err := Open(context.Background(), source.NewMemory("test", data), cfg, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func collect(r *Reader) []string {
	var out []string
	for line := range r.All() {
		out = append(out, line.Text)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// onceSource hands out streams that cannot seek and counts opens.
type onceSource struct {
	data  []byte
	opens int
}

func (s *onceSource) ID() string         { return "once" }
func (s *onceSource) Location() string   { return "once://" }
func (s *onceSource) Size() int64        { return int64(len(s.data)) }
func (s *onceSource) ModTime() time.Time { return time.Time{} }
func (s *onceSource) Open(ctx context.Context) (io.ReadCloser, error) {
	s.opens++
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func TestReader_Split(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"hello world", "Hello\nWorld", []string{"Hello", "World"}},
		{"empty", "", nil},
		{"single newline", "\n", []string{""}},
		{"no terminator", "x", []string{"x"}},
		{"trailing newline", "a\n", []string{"a"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"lone cr", "a\rb\rc", []string{"a", "b", "c"}},
		{"mixed", "a\r\nb\rc\nd", []string{"a", "b", "c", "d"}},
		{"blank lines", "a\n\nb", []string{"a", "", "b"}},
		{"cr then crlf", "\r\r\n", []string{"", ""}},
		{"lf cr is two terminators", "a\n\rb", []string{"a", "", "b"}},
		{"bom mid stream", "a\uFEFFb\n\uFEFF", []string{"ab"}},
		{"swapped bom", "\uFFFEx", []string{"x"}},
		{"utf8 bom consumed", "\xef\xbb\xbfHi\n", []string{"Hi"}},
		{"multibyte", "café\n中文", []string{"café", "中文"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := open(t, []byte(tt.input), config(t, charset.UTF8), Options{})
			got := collect(r)
			if !equal(got, tt.want) {
				t.Errorf("lines(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if r.State() != EndOfFile || r.Err() != nil {
				t.Errorf("final state = %s, err = %v", r.State(), r.Err())
			}
			if r.FellBack() {
				t.Error("valid input should not fall back")
			}
		})
	}
}

func TestReader_UTF16(t *testing.T) {
	tests := []struct {
		name  string
		cfg   decode.Config
		input []byte
		want  []string
	}{
		{
			name:  "utf16le bom",
			cfg:   config(t, charset.UTF16LE),
			input: []byte{0xFF, 0xFE, 'H', 0x00, 'i', 0x00},
			want:  []string{"Hi"},
		},
		{
			name:  "utf16le leaked bom is dropped",
			cfg:   decode.Config{Encoding: charset.UTF16LE},
			input: []byte{0xFF, 0xFE, 'H', 0x00, 'i', 0x00},
			want:  []string{"Hi"},
		},
		{
			name:  "utf16be crlf",
			cfg:   config(t, charset.UTF16BE),
			input: []byte{0xFE, 0xFF, 0x00, 'a', 0x00, '\r', 0x00, '\n', 0x00, 'b'},
			want:  []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(open(t, tt.input, tt.cfg, Options{}))
			if !equal(got, tt.want) {
				t.Errorf("lines(% x) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestReader_FirstLineFallback(t *testing.T) {
	r := open(t, []byte("caf\xe9\nnext\n"), config(t, charset.UTF8), Options{})

	got := collect(r)
	if want := []string{"café", "next"}; !equal(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
	if !r.FellBack() {
		t.Error("expected a fallback")
	}
	if r.Config().Encoding != charset.Ansi {
		t.Errorf("bound encoding = %s, want ansi", r.Config().Encoding)
	}
	if r.State() != EndOfFile || r.Err() != nil {
		t.Errorf("final state = %s, err = %v", r.State(), r.Err())
	}
}

func TestReader_FallbackReopensSource(t *testing.T) {
	src := &onceSource{data: []byte("\xe9t\xe9\r\n")}
	r, err := Open(context.Background(), src, config(t, charset.UTF8), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if got := collect(r); !equal(got, []string{"été"}) {
		t.Errorf("lines = %q", got)
	}
	if src.opens != 2 {
		t.Errorf("opens = %d, want 2", src.opens)
	}
}

// invalidOnly decodes as strict UTF-8, so it fails on the same input.
type invalidOnly struct{ encoding.Encoding }

func (invalidOnly) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: encoding.UTF8Validator}
}

func TestReader_FallbackHappensOnce(t *testing.T) {
	src := &onceSource{data: []byte("bad\xff\n")}
	cfg := config(t, charset.UTF8)
	cfg.Legacy = &decode.Legacy{Name: "strict", Encoding: invalidOnly{}}

	r, err := Open(context.Background(), src, cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Next() {
		t.Fatalf("Next() = true, line %q", r.Line().Text)
	}
	if r.Next() {
		t.Fatal("Next() after a terminal failure should stay false")
	}
	if r.State() != DecodeError {
		t.Errorf("State() = %s, want decode-error", r.State())
	}
	if !lferrors.IsCode(r.Err(), lferrors.CodeFallbackExhausted) {
		t.Errorf("Err() = %v, want fallback exhausted", r.Err())
	}
	if src.opens != 2 {
		t.Errorf("opens = %d, want exactly one reopen", src.opens)
	}
}

func TestReader_LaterLineFailureIsTerminal(t *testing.T) {
	r := open(t, []byte("ok\nbad\xe9\nnever\n"), config(t, charset.UTF8), Options{})

	if !r.Next() || r.Line().Text != "ok" {
		t.Fatalf("first line = %q", r.Line().Text)
	}
	if r.Next() {
		t.Fatalf("Next() = true, line %q", r.Line().Text)
	}
	if r.State() != DecodeError {
		t.Errorf("State() = %s, want decode-error", r.State())
	}
	if !errors.Is(r.Err(), lferrors.ErrDecodeFailed) || !decode.IsDecodeError(r.Err()) {
		t.Errorf("Err() = %v, want decode failure", r.Err())
	}
	if r.FellBack() {
		t.Error("failure after the first line must not fall back")
	}
}

func TestReader_UTF16FirstLineFallback(t *testing.T) {
	// A lone high surrogate on line 1 cannot be UTF-16; the bytes are
	// re-read with windows-1252.
	input := []byte{0xFF, 0xFE, 0x00, 0xD8, 'a', 0x00, '\n', 0x00}
	r := open(t, input, config(t, charset.UTF16LE), Options{})

	got := collect(r)
	if want := []string{"ÿþ\x00Øa\x00", "\x00"}; !equal(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
	if !r.FellBack() || r.Config().Encoding != charset.Ansi {
		t.Errorf("FellBack() = %v, bound %s", r.FellBack(), r.Config().Encoding)
	}
	if r.State() != EndOfFile || r.Err() != nil {
		t.Errorf("final state = %s, err = %v", r.State(), r.Err())
	}
}

func TestReader_UTF16LaterLineFailureIsTerminal(t *testing.T) {
	input := []byte{0xFF, 0xFE, 'o', 0x00, 'k', 0x00, '\n', 0x00, 'b', 0x00, 0x00, 0xDC, '\n', 0x00}
	r := open(t, input, config(t, charset.UTF16LE), Options{})

	if !r.Next() || r.Line().Text != "ok" {
		t.Fatalf("first line = %q, err = %v", r.Line().Text, r.Err())
	}
	if r.Next() {
		t.Fatalf("Next() = true, line %q", r.Line().Text)
	}
	if r.State() != DecodeError || !decode.IsDecodeError(r.Err()) {
		t.Errorf("State() = %s, Err() = %v, want decode-error", r.State(), r.Err())
	}
	if r.FellBack() {
		t.Error("failure after the first line must not fall back")
	}
}

func TestReader_UTF16OddTrailingByte(t *testing.T) {
	r := open(t, []byte{0xFF, 0xFE, 'a', 0x00, '\n', 0x00, 'b'}, config(t, charset.UTF16LE), Options{})

	if got := collect(r); !equal(got, []string{"a"}) {
		t.Errorf("lines = %q, want [a]", got)
	}
	if r.State() != DecodeError {
		t.Errorf("State() = %s, want decode-error", r.State())
	}
}

func TestReader_DisableFallback(t *testing.T) {
	r := open(t, []byte("\xff"), config(t, charset.UTF8), Options{DisableFallback: true})
	if r.Next() {
		t.Fatal("Next() = true")
	}
	var e *lferrors.Error
	if !errors.As(r.Err(), &e) || e.Code != lferrors.CodeDecodeFailed || e.Context["line"] != 1 {
		t.Errorf("Err() = %v, want decode failure on line 1", r.Err())
	}
}

func TestReader_UnseekableWithoutSource(t *testing.T) {
	rc := io.NopCloser(strings.NewReader("\xff\n"))
	r, err := NewReader(context.Background(), rc, config(t, charset.UTF8), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Next() {
		t.Fatal("Next() = true")
	}
	if !lferrors.IsCode(r.Err(), lferrors.CodeFallbackExhausted) {
		t.Errorf("Err() = %v, want fallback exhausted", r.Err())
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestReader_IOErrorIsNotADecodeError(t *testing.T) {
	boom := errors.New("disk on fire")
	rc := io.NopCloser(&failingReader{data: []byte("partial"), err: boom})
	r, err := NewReader(context.Background(), rc, config(t, charset.UTF8), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Next() {
		t.Fatalf("Next() = true, line %q", r.Line().Text)
	}
	if !errors.Is(r.Err(), boom) || !lferrors.IsCode(r.Err(), lferrors.CodeSourceRead) {
		t.Errorf("Err() = %v", r.Err())
	}
	if r.FellBack() {
		t.Error("I/O errors must not trigger the fallback")
	}
}

func TestReader_SplitIsIdempotent(t *testing.T) {
	inputs := []string{
		"Hello\nWorld",
		"a\r\nb\rc\n\n",
		"\r\r\n\n",
		"x\uFEFFy\r\n\r\n",
		"",
	}
	for _, in := range inputs {
		first := collect(open(t, []byte(in), config(t, charset.UTF8), Options{}))

		var joined strings.Builder
		for _, l := range first {
			joined.WriteString(l)
			joined.WriteByte('\n')
		}
		second := collect(open(t, []byte(joined.String()), config(t, charset.UTF8), Options{}))
		if !equal(first, second) {
			t.Errorf("split(join(split(%q))) = %q, want %q", in, second, first)
		}
	}
}

func TestReader_BOMRoundTrip(t *testing.T) {
	body := []byte("line one\r\nline two\n")
	withBOM := append(append([]byte{}, charset.BOMUTF8.Bytes()...), body...)

	plain := collect(open(t, body, config(t, charset.UTF8), Options{}))
	marked := collect(open(t, withBOM, config(t, charset.UTF8), Options{}))
	if !equal(plain, marked) {
		t.Errorf("with BOM = %q, without = %q", marked, plain)
	}
}

func TestReader_AllStopsEarly(t *testing.T) {
	r := open(t, []byte("1\n2\n3\n"), config(t, charset.UTF8), Options{})
	for line := range r.All() {
		if line.Number == 2 {
			break
		}
	}
	if r.State() != LineReady || r.Line().Text != "2" {
		t.Errorf("after break: state %s, line %q", r.State(), r.Line().Text)
	}
	if !r.Next() || r.Line().Text != "3" || r.Line().Number != 3 {
		t.Errorf("resume = %+v", r.Line())
	}
}

func TestLine_Units(t *testing.T) {
	tests := []struct {
		text string
		want []uint16
	}{
		{"Hi", []uint16{0x48, 0x69}},
		{"é", []uint16{0xE9}},
		{"\U0001F600", []uint16{0xD83D, 0xDE00}},
		{"", []uint16{}},
	}
	for _, tt := range tests {
		got := Line{Text: tt.text}.Units()
		if len(got) != len(tt.want) {
			t.Errorf("Units(%q) = %x, want %x", tt.text, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Units(%q) = %x, want %x", tt.text, got, tt.want)
				break
			}
		}
	}
}
