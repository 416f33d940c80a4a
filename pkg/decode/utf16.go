package decode

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// strictUTF16 passes UTF-16 bytes through unchanged and fails on an
// unpaired surrogate or a dangling odd byte at the end of input. The x/text
// decoder replaces both with U+FFFD, which would hide malformed input from
// the line reader.
type strictUTF16 struct {
	transform.NopResetter
	bigEndian bool
}

func newStrictUTF16(order unicode.Endianness) strictUTF16 {
	return strictUTF16{bigEndian: order == unicode.BigEndian}
}

func (s strictUTF16) unit(b []byte) uint16 {
	if s.bigEndian {
		return uint16(b[0])<<8 | uint16(b[1])
	}
	return uint16(b[1])<<8 | uint16(b[0])
}

func isHighSurrogate(u uint16) bool { return u >= 0xD800 && u < 0xDC00 }
func isLowSurrogate(u uint16) bool  { return u >= 0xDC00 && u < 0xE000 }

func (s strictUTF16) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc+2 <= len(src) {
		u := s.unit(src[nSrc:])
		size := 2
		switch {
		case isHighSurrogate(u):
			if nSrc+4 > len(src) {
				if !atEOF {
					return nDst, nSrc, transform.ErrShortSrc
				}
				return nDst, nSrc, lferrors.Newf(lferrors.CodeDecodeFailed, "unpaired UTF-16 surrogate %#04x", u)
			}
			if lo := s.unit(src[nSrc+2:]); !isLowSurrogate(lo) {
				return nDst, nSrc, lferrors.Newf(lferrors.CodeDecodeFailed, "unpaired UTF-16 surrogate %#04x", u)
			}
			size = 4
		case isLowSurrogate(u):
			return nDst, nSrc, lferrors.Newf(lferrors.CodeDecodeFailed, "unpaired UTF-16 surrogate %#04x", u)
		}

		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], src[nSrc:nSrc+size])
		nSrc += size
	}

	if nSrc < len(src) {
		if !atEOF {
			return nDst, nSrc, transform.ErrShortSrc
		}
		return nDst, nSrc, lferrors.New(lferrors.CodeDecodeFailed, "truncated UTF-16 code unit")
	}
	return nDst, nSrc, nil
}
