package decode

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// DefaultLegacyCharset is used when neither configuration nor the locale
// names a usable 8-bit charset.
const DefaultLegacyCharset = "windows-1252"

// Legacy is the locale-bound decoder used for content that is not Unicode.
type Legacy struct {
	Name     string
	Encoding encoding.Encoding
}

// DefaultLegacy returns the windows-1252 decoder.
func DefaultLegacy() *Legacy {
	return &Legacy{Name: DefaultLegacyCharset, Encoding: charmap.Windows1252}
}

// LegacyByName looks a charset up by its IANA name or alias.
func LegacyByName(name string) (*Legacy, error) {
	enc, err := ianaindex.IANA.Encoding(strings.TrimSpace(name))
	if err != nil {
		return nil, lferrors.Wrapf(err, lferrors.CodeUnknownCharset, "unknown charset %q", name)
	}
	if enc == nil {
		return nil, lferrors.New(lferrors.CodeUnknownCharset, "charset has no decoder").
			WithContext("charset", name)
	}

	return &Legacy{Name: displayName(enc, name), Encoding: enc}, nil
}

// displayName prefers the MIME name ("ISO-8859-1") over the IANA primary
// name ("ISO_8859-1:1987").
func displayName(enc encoding.Encoding, fallback string) string {
	for _, idx := range []*ianaindex.Index{ianaindex.MIME, ianaindex.IANA} {
		if n, err := idx.Name(enc); err == nil && n != "" {
			return n
		}
	}
	return fallback
}

// LocaleLegacy derives the legacy decoder from the locale environment
// (LC_ALL, LC_CTYPE, LANG in that order). Unicode and unknown locale
// charsets give DefaultLegacy, since legacy content is by definition not
// UTF-8.
func LocaleLegacy() *Legacy {
	return localeLegacy(os.Getenv)
}

func localeLegacy(getenv func(string) string) *Legacy {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		value := getenv(key)
		if value == "" {
			continue
		}
		cs := localeCharset(value)
		if cs == "" || isUnicodeCharset(cs) {
			return DefaultLegacy()
		}
		if l, err := LegacyByName(cs); err == nil {
			return l
		}
		return DefaultLegacy()
	}
	return DefaultLegacy()
}

// ResolveLegacy returns the configured legacy decoder, or the locale one
// when name is empty or "locale".
func ResolveLegacy(name string) (*Legacy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "locale":
		return LocaleLegacy(), nil
	default:
		l, err := LegacyByName(name)
		if err != nil {
			return nil, fmt.Errorf("legacy charset: %w", err)
		}
		return l, nil
	}
}

// localeCharset extracts the charset from a POSIX locale such as
// "de_DE.ISO-8859-15@euro".
func localeCharset(locale string) string {
	dot := strings.IndexByte(locale, '.')
	if dot < 0 {
		return ""
	}
	cs := locale[dot+1:]
	if at := strings.IndexByte(cs, '@'); at >= 0 {
		cs = cs[:at]
	}
	return cs
}

func isUnicodeCharset(cs string) bool {
	switch strings.ToLower(strings.ReplaceAll(cs, "-", "")) {
	case "utf8", "utf16", "utf16le", "utf16be":
		return true
	default:
		return false
	}
}
