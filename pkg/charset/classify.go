package charset

// Class is the classifier's verdict for a buffer without a byte order mark.
type Class uint8

const (
	// ClassMBCS is legacy multi-byte content for the locale decoder.
	ClassMBCS Class = iota
	// ClassUTF8 is content the automaton never rejected.
	ClassUTF8
	// ClassUCS2 is content shaped like little-endian UTF-16 without a mark.
	ClassUCS2
)

func (c Class) String() string {
	switch c {
	case ClassUTF8:
		return "utf8"
	case ClassUCS2:
		return "ucs2"
	default:
		return "mbcs"
	}
}

// Encoding maps the class to a verdict.
func (c Class) Encoding() TextEncoding {
	switch c {
	case ClassUTF8:
		return UTF8
	case ClassUCS2:
		return UTF16LE
	default:
		return Ansi
	}
}

// Automaton states.
const (
	stateAccept = 0
	stateReject = 1
)

// utf8d is Bjoern Hoehrmann's UTF-8 DFA (http://bjoern.hoehrmann.de/utf-8/decoder/dfa/).
// The first 256 entries map a byte to its class, the rest is the transition
// table indexed by 256 + state*16 + class.
var utf8d = [...]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 00..1f
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 20..3f
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 40..5f
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 60..7f
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, // 80..9f
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, // a0..bf
	8, 8, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, // c0..df
	0xa, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x4, 0x3, 0x3, // e0..ef
	0xb, 0x6, 0x6, 0x6, 0x5, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, // f0..ff
	0x0, 0x1, 0x2, 0x3, 0x5, 0x8, 0x7, 0x1, 0x1, 0x1, 0x4, 0x6, 0x1, 0x1, 0x1, 0x1, // s0..s0
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 0, 1, 0, 1, 1, 1, 1, 1, 1, // s1..s2
	1, 2, 1, 1, 1, 1, 1, 2, 1, 2, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 1, 1, 1, 1, 1, 1, 1, 1, // s3..s4
	1, 2, 1, 1, 1, 1, 1, 1, 1, 2, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 3, 1, 3, 1, 1, 1, 1, 1, 1, // s5..s6
	1, 3, 1, 1, 1, 1, 1, 3, 1, 3, 1, 1, 1, 1, 1, 1, 1, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, // s7..s8
}

func step(state uint8, b byte) uint8 {
	return utf8d[256+int(state)*16+int(utf8d[b])]
}

// Validator runs the UTF-8 automaton incrementally over chunks of a stream.
// The zero value is ready to use.
type Validator struct {
	state  uint8
	offset int64
	bad    byte
}

// Write feeds p to the automaton. It never fails; once rejected the
// validator ignores further input until Reset.
func (v *Validator) Write(p []byte) (int, error) {
	if v.state == stateReject {
		return len(p), nil
	}
	for i, b := range p {
		v.state = step(v.state, b)
		if v.state == stateReject {
			v.offset += int64(i)
			v.bad = b
			return len(p), nil
		}
	}
	v.offset += int64(len(p))
	return len(p), nil
}

// Valid reports whether all input so far forms complete UTF-8 sequences.
func (v *Validator) Valid() bool { return v.state == stateAccept }

// Rejected reports whether the automaton reached the reject state.
func (v *Validator) Rejected() bool { return v.state == stateReject }

// Pending reports whether input ended inside a multi-byte sequence.
func (v *Validator) Pending() bool {
	return v.state != stateAccept && v.state != stateReject
}

// Offset returns the number of bytes consumed, or the offset of the rejecting
// byte after a rejection.
func (v *Validator) Offset() int64 { return v.offset }

// RejectedByte returns the byte that drove the automaton to reject.
func (v *Validator) RejectedByte() (byte, bool) {
	return v.bad, v.state == stateReject
}

// Reset returns the validator to its initial state.
func (v *Validator) Reset() { *v = Validator{} }

// ValidUTF8 reports whether b is complete, well-formed UTF-8.
func ValidUTF8(b []byte) bool {
	var v Validator
	v.Write(b)
	return v.Valid()
}

// ClassifyUTF8 is the two-way classifier: ClassUTF8 unless the automaton
// rejects, then ClassMBCS. A buffer ending inside a sequence is not rejected,
// since detection usually runs on a truncated prefix.
func ClassifyUTF8(b []byte) Class {
	var v Validator
	v.Write(b)
	if v.Rejected() {
		return ClassMBCS
	}
	return ClassUTF8
}

// Classify is the three-way classifier. Rejected content is ClassUCS2 when
// the rejecting byte is not printable text and the buffer looks like
// little-endian UTF-16: even length with control bytes in at least a quarter
// of the odd positions. Otherwise rejected content is ClassMBCS.
func Classify(b []byte) Class {
	var v Validator
	v.Write(b)
	bad, rejected := v.RejectedByte()
	if !rejected {
		return ClassUTF8
	}
	if !printable(bad) && wideShape(b) {
		return ClassUCS2
	}
	return ClassMBCS
}

func printable(c byte) bool {
	return c == '\t' || c == '\n' || c == '\r' || (c >= 0x20 && c <= 0x7E)
}

func wideShape(b []byte) bool {
	if len(b) < 2 || len(b)%2 != 0 {
		return false
	}
	odd, ctrl := 0, 0
	for i := 1; i < len(b); i += 2 {
		odd++
		if c := b[i]; c < 0x20 && c != '\t' && c != '\n' && c != '\r' {
			ctrl++
		}
	}
	return ctrl*4 >= odd
}
