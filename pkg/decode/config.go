// Package decode binds a resolved encoding verdict to a streaming decoder.
package decode

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/logflow/textsniff/pkg/charset"
	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// Config describes the decoder bound to one stream. It is not modified once
// created.
type Config struct {
	Encoding charset.TextEncoding

	// ByteOrder is only meaningful for UTF-16.
	ByteOrder unicode.Endianness

	// ConsumeBOM strips a leading byte order mark instead of decoding it.
	ConsumeBOM bool

	// Legacy is the decoder for Ansi content. Nil selects DefaultLegacy.
	Legacy *Legacy
}

// ForEncoding returns the decoder configuration for a verdict.
// UTF-32 verdicts are rejected with an unsupported encoding error.
func ForEncoding(enc charset.TextEncoding, legacy *Legacy) (Config, error) {
	cfg := Config{Encoding: enc, Legacy: legacy}

	switch enc {
	case charset.UTF8:
		cfg.ConsumeBOM = true
	case charset.UTF16LE:
		cfg.ByteOrder = unicode.LittleEndian
		cfg.ConsumeBOM = true
	case charset.UTF16BE:
		cfg.ByteOrder = unicode.BigEndian
		cfg.ConsumeBOM = true
	case charset.Ansi:
	default:
		return Config{}, lferrors.UnsupportedEncoding(enc.String())
	}
	return cfg, nil
}

// WithLegacy returns a copy of c that decodes with the legacy decoder.
func (c Config) WithLegacy() Config {
	return Config{Encoding: charset.Ansi, Legacy: c.legacy()}
}

// Name returns a display name for the bound decoder.
func (c Config) Name() string {
	if c.Encoding == charset.Ansi {
		return c.legacy().Name
	}
	return c.Encoding.String()
}

// byteOrder follows the encoding, since the zero Endianness is big-endian.
func (c Config) byteOrder() unicode.Endianness {
	if c.Encoding == charset.UTF16BE {
		return unicode.BigEndian
	}
	return unicode.LittleEndian
}

func (c Config) legacy() *Legacy {
	if c.Legacy != nil {
		return c.Legacy
	}
	return DefaultLegacy()
}
