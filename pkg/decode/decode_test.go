package decode

import (
	"errors"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"github.com/logflow/textsniff/pkg/charset"
	lferrors "github.com/logflow/textsniff/pkg/errors"
)

func mustConfig(t *testing.T, enc charset.TextEncoding) Config {
	t.Helper()
	cfg, err := ForEncoding(enc, nil)
	if err != nil {
		t.Fatalf("ForEncoding(%s) error = %v", enc, err)
	}
	return cfg
}

func TestForEncoding(t *testing.T) {
	tests := []struct {
		enc     charset.TextEncoding
		order   unicode.Endianness
		consume bool
		wantErr bool
	}{
		{charset.UTF8, unicode.BigEndian, true, false},
		{charset.UTF16LE, unicode.LittleEndian, true, false},
		{charset.UTF16BE, unicode.BigEndian, true, false},
		{charset.Ansi, unicode.BigEndian, false, false},
		{charset.UTF32LE, unicode.BigEndian, false, true},
		{charset.UTF32BE, unicode.BigEndian, false, true},
	}

	for _, tt := range tests {
		cfg, err := ForEncoding(tt.enc, nil)
		if tt.wantErr {
			if !errors.Is(err, lferrors.ErrUnsupportedEncoding) {
				t.Errorf("ForEncoding(%s) error = %v, want unsupported encoding", tt.enc, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ForEncoding(%s) error = %v", tt.enc, err)
		}
		if cfg.ByteOrder != tt.order || cfg.ConsumeBOM != tt.consume {
			t.Errorf("ForEncoding(%s) = %+v", tt.enc, cfg)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		enc   charset.TextEncoding
		input []byte
		want  string
	}{
		{"utf8 plain", charset.UTF8, []byte("Hello\nWorld"), "Hello\nWorld"},
		{"utf8 bom consumed", charset.UTF8, []byte("\xef\xbb\xbfHi"), "Hi"},
		{"utf16le bom", charset.UTF16LE, []byte{0xFF, 0xFE, 'H', 0x00, 'i', 0x00}, "Hi"},
		{"utf16le no bom", charset.UTF16LE, []byte{'H', 0x00, 'i', 0x00}, "Hi"},
		{"utf16be bom", charset.UTF16BE, []byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i'}, "Hi"},
		{"utf16be surrogate pair", charset.UTF16BE, []byte{0xD8, 0x3D, 0xDE, 0x00}, "\U0001F600"},
		{"ansi windows-1252", charset.Ansi, []byte("caf\xe9 \x80"), "café €"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input, mustConfig(t, tt.enc))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode(% x) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeInvalidUTF8(t *testing.T) {
	got, err := Decode([]byte("ok\ncaf\xe9"), mustConfig(t, charset.UTF8))
	if !IsDecodeError(err) {
		t.Fatalf("Decode() error = %v, want decode error", err)
	}
	if got != "ok\ncaf" {
		t.Errorf("valid prefix = %q, want %q", got, "ok\ncaf")
	}
}

func TestDecodeMalformedUTF16(t *testing.T) {
	tests := []struct {
		name   string
		enc    charset.TextEncoding
		input  []byte
		prefix string
	}{
		{"lone high surrogate", charset.UTF16LE, []byte{0xFF, 0xFE, 'o', 0x00, 'k', 0x00, 0x00, 0xD8, 'a', 0x00}, "ok"},
		{"lone low surrogate", charset.UTF16BE, []byte{0x00, 'x', 0xDC, 0x00}, "x"},
		{"high surrogate at end", charset.UTF16LE, []byte{'a', 0x00, 0x3D, 0xD8}, "a"},
		{"odd trailing byte", charset.UTF16LE, []byte{0xFF, 0xFE, 'a', 0x00, 'b'}, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input, mustConfig(t, tt.enc))
			if !IsDecodeError(err) || !lferrors.IsCode(err, lferrors.CodeDecodeFailed) {
				t.Fatalf("Decode(% x) error = %v, want decode failure", tt.input, err)
			}
			if got != tt.prefix {
				t.Errorf("valid prefix = %q, want %q", got, tt.prefix)
			}
		})
	}
}

func TestDecodeUTF32Rejected(t *testing.T) {
	_, err := NewReader(nil, Config{Encoding: charset.UTF32LE})
	if !errors.Is(err, lferrors.ErrUnsupportedEncoding) {
		t.Errorf("NewReader(UTF-32) error = %v", err)
	}
}

func TestWithLegacy(t *testing.T) {
	latin1, err := LegacyByName("ISO-8859-1")
	if err != nil {
		t.Fatalf("LegacyByName() error = %v", err)
	}
	cfg := mustConfig(t, charset.UTF8)
	cfg.Legacy = latin1

	fb := cfg.WithLegacy()
	if fb.Encoding != charset.Ansi || fb.Legacy != latin1 {
		t.Errorf("WithLegacy() = %+v", fb)
	}
	if fb.Name() != "ISO-8859-1" {
		t.Errorf("Name() = %q", fb.Name())
	}

	got, err := Decode([]byte("na\xefve"), fb)
	if err != nil || got != "naïve" {
		t.Errorf("Decode() = %q, %v", got, err)
	}
}

func TestLegacyByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"windows-1252", "windows-1252", false},
		{"WINDOWS-1252", "windows-1252", false},
		{"Shift_JIS", "Shift_JIS", false},
		{"ISO-8859-1", "ISO-8859-1", false},
		{"latin1", "ISO-8859-1", false},
		{"no-such-charset", "", true},
	}
	for _, tt := range tests {
		l, err := LegacyByName(tt.name)
		if tt.wantErr {
			if !lferrors.IsCode(err, lferrors.CodeUnknownCharset) {
				t.Errorf("LegacyByName(%q) error = %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("LegacyByName(%q) error = %v", tt.name, err)
		}
		if l.Name != tt.want {
			t.Errorf("LegacyByName(%q).Name = %q, want %q", tt.name, l.Name, tt.want)
		}
	}
}

func TestLocaleLegacy(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{}, DefaultLegacyCharset},
		{map[string]string{"LANG": "en_US.UTF-8"}, DefaultLegacyCharset},
		{map[string]string{"LANG": "de_DE.ISO-8859-15@euro"}, "ISO-8859-15"},
		{map[string]string{"LC_ALL": "ru_RU.KOI8-R", "LANG": "de_DE.ISO-8859-1"}, "KOI8-R"},
		{map[string]string{"LC_CTYPE": "C"}, DefaultLegacyCharset},
	}
	for _, tt := range tests {
		got := localeLegacy(func(k string) string { return tt.env[k] })
		if got.Name != tt.want {
			t.Errorf("localeLegacy(%v) = %q, want %q", tt.env, got.Name, tt.want)
		}
	}
}

func TestResolveLegacy(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_CTYPE", "")
	t.Setenv("LANG", "fr_FR.ISO-8859-1")

	l, err := ResolveLegacy("locale")
	if err != nil || l.Name != "ISO-8859-1" {
		t.Errorf("ResolveLegacy(locale) = %v, %v", l, err)
	}
	if _, err := ResolveLegacy("bogus-charset"); err == nil {
		t.Error("ResolveLegacy(bogus) should fail")
	}
}
