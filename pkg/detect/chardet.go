package detect

import (
	"context"
	"errors"
	"strings"

	"github.com/saintfish/chardet"

	"github.com/logflow/textsniff/pkg/charset"
	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// UnknownCodepage marks a chardet result with no codepage mapping.
const UnknownCodepage = -1

// codepages maps chardet charset names to Windows codepage identifiers.
var codepages = map[string]int{
	"utf-8":        charset.CodepageUTF8,
	"utf-16le":     charset.CodepageUTF16LE,
	"utf-16be":     charset.CodepageUTF16BE,
	"utf-32le":     charset.CodepageUTF32LE,
	"utf-32be":     charset.CodepageUTF32BE,
	"us-ascii":     charset.CodepageASCII,
	"iso-8859-1":   28591,
	"iso-8859-2":   28592,
	"iso-8859-5":   28595,
	"iso-8859-6":   28596,
	"iso-8859-7":   28597,
	"iso-8859-8":   28598,
	"iso-8859-8-i": 38598,
	"iso-8859-9":   28599,
	"windows-1250": 1250,
	"windows-1251": 1251,
	"windows-1252": 1252,
	"windows-1253": 1253,
	"windows-1254": 1254,
	"windows-1255": 1255,
	"windows-1256": 1256,
	"koi8-r":       20866,
	"shift_jis":    932,
	"euc-jp":       20932,
	"euc-kr":       51949,
	"gb-18030":     54936,
	"big5":         950,
	"iso-2022-jp":  50220,
	"iso-2022-kr":  50225,
	"iso-2022-cn":  50227,
	"ibm420_rtl":   20420,
	"ibm420_ltr":   20420,
	"ibm424_rtl":   20424,
	"ibm424_ltr":   20424,
}

// CodepageFor returns the codepage for a chardet charset name.
func CodepageFor(name string) int {
	if cp, ok := codepages[strings.ToLower(name)]; ok {
		return cp
	}
	return UnknownCodepage
}

// Chardet ranks candidates with github.com/saintfish/chardet.
// The underlying detector is not safe for concurrent use, so one session
// is handed out at a time.
type Chardet struct {
	sem chan struct{}
	det *chardet.Detector
}

// NewChardet returns a text-mode chardet detector.
func NewChardet() *Chardet {
	return &Chardet{
		sem: make(chan struct{}, 1),
		det: chardet.NewTextDetector(),
	}
}

func (c *Chardet) Name() string { return "chardet" }

// Acquire waits for exclusive use of the detector.
func (c *Chardet) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeDetectorUnavailable, "acquire detector")
	}
	select {
	case c.sem <- struct{}{}:
		return &chardetSession{c: c}, nil
	case <-ctx.Done():
		return nil, lferrors.Wrap(ctx.Err(), lferrors.CodeDetectorUnavailable, "acquire detector")
	}
}

type chardetSession struct {
	c        *Chardet
	released bool
}

func (s *chardetSession) Detect(sample []byte) ([]Candidate, error) {
	if s.released {
		return nil, lferrors.New(lferrors.CodeDetectorUnavailable, "session released")
	}
	results, err := s.c.det.DetectAll(sample)
	if err != nil {
		if errors.Is(err, chardet.NotDetectedError) {
			return nil, nil
		}
		return nil, lferrors.Wrap(err, lferrors.CodeDetectionFailed, "chardet")
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		// Zero confidence means the recogniser ruled the charset out.
		if r.Confidence <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Codepage:   CodepageFor(r.Charset),
			Charset:    r.Charset,
			Language:   r.Language,
			Confidence: r.Confidence,
		})
	}
	return candidates, nil
}

func (s *chardetSession) Release() {
	if s.released {
		return
	}
	s.released = true
	<-s.c.sem
}
