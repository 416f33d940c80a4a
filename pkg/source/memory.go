package source

import (
	"bytes"
	"context"
	"io"
	"time"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// Memory serves bytes held in memory.
type Memory struct {
	id      string
	data    []byte
	modTime time.Time
}

// NewMemory creates a source from bytes. data is not copied and must not
// be modified afterwards.
func NewMemory(id string, data []byte) *Memory {
	return &Memory{id: id, data: data, modTime: time.Now()}
}

func (m *Memory) ID() string         { return m.id }
func (m *Memory) Location() string   { return "memory://" + m.id }
func (m *Memory) Size() int64        { return int64(len(m.data)) }
func (m *Memory) ModTime() time.Time { return m.modTime }

// Bytes returns the underlying data.
func (m *Memory) Bytes() []byte { return m.data }

// Open returns a reader over the data. The reader implements io.Seeker.
func (m *Memory) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, lferrors.ContextCanceled("open")
	}
	return &memoryReader{Reader: bytes.NewReader(m.data)}, nil
}

type memoryReader struct {
	*bytes.Reader
}

func (*memoryReader) Close() error { return nil }

// Stdin is a snapshot of a one-shot stream such as standard input. The
// stream is drained once so the source can be reopened.
type Stdin struct {
	*Memory
}

// NewStdin drains r into memory.
func NewStdin(r io.Reader) (*Stdin, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeSourceRead, "read standard input")
	}
	return &Stdin{Memory: NewMemory("stdin", data)}, nil
}

func (s *Stdin) Location() string { return StdinLocation }
