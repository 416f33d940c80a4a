// Package detect resolves the encoding of a byte buffer.
//
// Resolution is ordered: a byte order mark is authoritative, then a ranked
// codepage detector is consulted, and the UTF-8 classifier decides whenever
// the detector cannot.
package detect

import (
	"context"
	"sync"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// Candidate is one ranked answer from a Detector.
type Candidate struct {
	Codepage   int    `json:"codepage"`
	Charset    string `json:"charset,omitempty"`
	Language   string `json:"language,omitempty"`
	Confidence int    `json:"confidence"`
}

// Detector is a ranked codepage detection capability. Access is scoped:
// callers Acquire a Session and must Release it on every path.
type Detector interface {
	Name() string
	Acquire(ctx context.Context) (Session, error)
}

// Session is an acquired detector.
type Session interface {
	// Detect returns candidates ordered from most to least likely.
	Detect(sample []byte) ([]Candidate, error)
	Release()
}

// None is a detector that is never available.
type None struct{}

func (None) Name() string { return "none" }

func (None) Acquire(context.Context) (Session, error) {
	return nil, lferrors.New(lferrors.CodeDetectorUnavailable, "no detector configured")
}

// Static returns fixed answers. It is used to force verdicts and in tests.
type Static struct {
	Candidates []Candidate
	Err        error

	// AcquireErr makes Acquire fail, simulating an unavailable detector.
	AcquireErr error

	mu       sync.Mutex
	acquired int
	released int
	samples  [][]byte
}

func (s *Static) Name() string { return "static" }

func (s *Static) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	s.mu.Lock()
	s.acquired++
	s.mu.Unlock()
	return staticSession{s}, nil
}

// Calls reports how many sessions were acquired and released.
func (s *Static) Calls() (acquired, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired, s.released
}

// Samples returns the samples passed to Detect.
func (s *Static) Samples() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.samples...)
}

type staticSession struct{ s *Static }

func (ss staticSession) Detect(sample []byte) ([]Candidate, error) {
	ss.s.mu.Lock()
	ss.s.samples = append(ss.s.samples, append([]byte(nil), sample...))
	ss.s.mu.Unlock()
	if ss.s.Err != nil {
		return nil, ss.s.Err
	}
	return ss.s.Candidates, nil
}

func (ss staticSession) Release() {
	ss.s.mu.Lock()
	ss.s.released++
	ss.s.mu.Unlock()
}
