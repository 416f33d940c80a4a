// Package cache remembers encoding verdicts keyed by the sampled bytes.
//
// A verdict depends only on the sample and the resolver settings, so the key
// is a BLAKE3 digest over both. Backends: in-process memory and Redis.
package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// Entry is a cached verdict.
type Entry struct {
	Encoding   string `json:"encoding"`
	Origin     string `json:"origin"`
	Class      string `json:"class,omitempty"`
	BOM        string `json:"bom,omitempty"`
	Codepage   int    `json:"codepage,omitempty"`
	Charset    string `json:"charset,omitempty"`
	Language   string `json:"language,omitempty"`
	Confidence int    `json:"confidence,omitempty"`
	Candidate  bool   `json:"candidate,omitempty"`
}

// Cache stores verdicts. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
	Close() error
}

// Key derives the cache key for a sample under the given settings. Settings
// are rendered in order, so callers must pass them consistently.
func Key(sample []byte, settings ...string) string {
	h := blake3.New()
	h.Write([]byte(strings.Join(settings, "\x1f")))
	h.Write([]byte{0})
	h.Write(sample)
	return hex.EncodeToString(h.Sum(nil))
}

// Backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Size    int
	Redis   RedisConfig
}

// New returns the configured cache, or nil for the none backend.
func New(cfg Config) (Cache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemory(cfg.Size), nil
	case BackendRedis:
		r, err := NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, lferrors.New(lferrors.CodeConfig, fmt.Sprintf("unknown cache backend %q", cfg.Backend))
	}
}
