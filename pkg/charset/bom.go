package charset

import "bytes"

// BOM identifies a byte-order-mark signature found at the start of a buffer.
type BOM uint8

const (
	BOMNone BOM = iota
	BOMUTF8
	BOMUTF16LE
	BOMUTF16BE
	BOMUTF32LE
	BOMUTF32BE
)

// BOM signatures.
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF32LE = []byte{0xFF, 0xFE, 0x00, 0x00}
	bomUTF32BE = []byte{0x00, 0x00, 0xFE, 0xFF}
)

// SniffBOM inspects the first bytes of b for a byte order mark.
// Signatures longer than b never match. The UTF-32 little-endian mark is
// tested before UTF-16 little-endian because it begins with the same two
// bytes; it only matches when b holds whole 4-byte units, so FF FE 00 00
// followed by an odd number of 16-bit units is UTF-16LE with a leading NUL.
// Callers sniffing a truncated prefix must cut it at a multiple of 4.
func SniffBOM(b []byte) BOM {
	switch {
	case bytes.HasPrefix(b, bomUTF32LE) && len(b)%4 == 0:
		return BOMUTF32LE
	case bytes.HasPrefix(b, bomUTF32BE):
		return BOMUTF32BE
	case bytes.HasPrefix(b, bomUTF8):
		return BOMUTF8
	case bytes.HasPrefix(b, bomUTF16LE):
		return BOMUTF16LE
	case bytes.HasPrefix(b, bomUTF16BE):
		return BOMUTF16BE
	default:
		return BOMNone
	}
}

// Len returns the signature length in bytes.
func (b BOM) Len() int {
	switch b {
	case BOMUTF8:
		return len(bomUTF8)
	case BOMUTF16LE, BOMUTF16BE:
		return 2
	case BOMUTF32LE, BOMUTF32BE:
		return 4
	default:
		return 0
	}
}

// Bytes returns the signature, or nil for BOMNone.
func (b BOM) Bytes() []byte {
	switch b {
	case BOMUTF8:
		return bomUTF8
	case BOMUTF16LE:
		return bomUTF16LE
	case BOMUTF16BE:
		return bomUTF16BE
	case BOMUTF32LE:
		return bomUTF32LE
	case BOMUTF32BE:
		return bomUTF32BE
	default:
		return nil
	}
}

// Encoding returns the encoding the mark announces.
// ok is false for BOMNone.
func (b BOM) Encoding() (TextEncoding, bool) {
	switch b {
	case BOMUTF8:
		return UTF8, true
	case BOMUTF16LE:
		return UTF16LE, true
	case BOMUTF16BE:
		return UTF16BE, true
	case BOMUTF32LE:
		return UTF32LE, true
	case BOMUTF32BE:
		return UTF32BE, true
	default:
		return 0, false
	}
}

func (b BOM) String() string {
	switch b {
	case BOMUTF8:
		return "utf-8-bom"
	case BOMUTF16LE:
		return "utf-16le-bom"
	case BOMUTF16BE:
		return "utf-16be-bom"
	case BOMUTF32LE:
		return "utf-32le-bom"
	case BOMUTF32BE:
		return "utf-32be-bom"
	default:
		return "none"
	}
}

// StripBOM removes a recognised mark from content.
func StripBOM(content []byte) ([]byte, BOM) {
	bom := SniffBOM(content)
	return content[bom.Len():], bom
}
