// Package charset identifies the character encoding of raw text.
//
// It holds the pure, dependency-free parts of detection: the TextEncoding
// verdict type with its codepage identifiers, the byte-order-mark sniffer,
// and the table-driven UTF-8 validity classifier.
package charset

import (
	"fmt"
	"strings"
)

// Windows codepage identifiers used by detectors and by TextEncoding values.
const (
	CodepageACP     = 0
	CodepageASCII   = 20127
	CodepageUTF8    = 65001
	CodepageUTF16LE = 1200
	CodepageUTF16BE = 1201
	CodepageUTF32LE = 12000
	CodepageUTF32BE = 12001
)

// TextEncoding is the resolved encoding verdict for a buffer.
// Its value is the matching Windows codepage identifier.
type TextEncoding int

const (
	// Ansi is the locale-bound legacy multi-byte encoding.
	Ansi    TextEncoding = CodepageACP
	UTF8    TextEncoding = CodepageUTF8
	UTF16LE TextEncoding = CodepageUTF16LE
	UTF16BE TextEncoding = CodepageUTF16BE
	UTF32LE TextEncoding = CodepageUTF32LE
	UTF32BE TextEncoding = CodepageUTF32BE
)

// String returns the encoding name.
func (e TextEncoding) String() string {
	switch e {
	case Ansi:
		return "ansi"
	case UTF8:
		return "utf-8"
	case UTF16LE:
		return "utf-16le"
	case UTF16BE:
		return "utf-16be"
	case UTF32LE:
		return "utf-32le"
	case UTF32BE:
		return "utf-32be"
	default:
		return "unknown"
	}
}

// MarshalText encodes the encoding by name.
func (e TextEncoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText accepts any name ParseEncoding accepts.
func (e *TextEncoding) UnmarshalText(b []byte) error {
	v, ok := ParseEncoding(string(b))
	if !ok {
		return fmt.Errorf("unknown encoding %q", b)
	}
	*e = v
	return nil
}

// Codepage returns the Windows codepage identifier.
func (e TextEncoding) Codepage() int { return int(e) }

// Supported reports whether a decoder exists for the encoding.
// UTF-32 is recognised but never decoded.
func (e TextEncoding) Supported() bool {
	switch e {
	case Ansi, UTF8, UTF16LE, UTF16BE:
		return true
	default:
		return false
	}
}

// IsUTF16 reports whether the encoding is one of the UTF-16 byte orders.
func (e TextEncoding) IsUTF16() bool {
	return e == UTF16LE || e == UTF16BE
}

// FromCodepage maps a detector codepage to a verdict.
// ok is false for codepages outside the recognised set, which callers skip.
func FromCodepage(cp int) (TextEncoding, bool) {
	switch cp {
	case CodepageASCII, CodepageUTF8:
		return UTF8, true
	case CodepageUTF16LE:
		return UTF16LE, true
	case CodepageUTF16BE:
		return UTF16BE, true
	case CodepageUTF32LE:
		return UTF32LE, true
	case CodepageUTF32BE:
		return UTF32BE, true
	default:
		return 0, false
	}
}

// ParseEncoding parses an encoding name as accepted on the command line
// and in configuration files.
func ParseEncoding(s string) (TextEncoding, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ansi", "mbcs", "legacy", "acp":
		return Ansi, true
	case "utf-8", "utf8", "ascii", "us-ascii":
		return UTF8, true
	case "utf-16le", "utf16le", "utf-16", "ucs-2", "ucs2":
		return UTF16LE, true
	case "utf-16be", "utf16be":
		return UTF16BE, true
	case "utf-32le", "utf32le", "utf-32":
		return UTF32LE, true
	case "utf-32be", "utf32be":
		return UTF32BE, true
	default:
		return 0, false
	}
}
