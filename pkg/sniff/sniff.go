// Package sniff ties sources, the encoding resolver, the verdict cache and
// the line reader together.
//
// Detect reads a bounded prefix of a source and resolves its encoding.
// Open does the same and returns a line reader bound to the verdict.
package sniff

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/textsniff/pkg/cache"
	"github.com/logflow/textsniff/pkg/charset"
	"github.com/logflow/textsniff/pkg/decode"
	"github.com/logflow/textsniff/pkg/detect"
	lferrors "github.com/logflow/textsniff/pkg/errors"
	"github.com/logflow/textsniff/pkg/lines"
	"github.com/logflow/textsniff/pkg/source"
	"github.com/logflow/textsniff/pkg/telemetry"
)

// Options configures a Sniffer.
type Options struct {
	// Resolver decides encodings. Nil builds one from detect.Options{}.
	Resolver *detect.Resolver

	// PrefixSize bounds the bytes read for detection. Zero means the
	// resolver's sample size.
	PrefixSize int

	// Cache stores verdicts. Nil disables caching.
	Cache cache.Cache

	// Reader configures readers returned by Open.
	Reader lines.Options

	Logger *slog.Logger
}

// Result is the detection outcome for one source.
type Result struct {
	Source   string               `json:"source"`
	Size     int64                `json:"size"`
	Encoding charset.TextEncoding `json:"encoding"`
	Origin   detect.Origin        `json:"origin"`

	// Decoder names the decoder bound to the verdict, e.g. "windows-1252"
	// for Ansi.
	Decoder string `json:"decoder,omitempty"`

	Candidate *detect.Candidate `json:"candidate,omitempty"`
	Class     string            `json:"class,omitempty"`
	BOM       string            `json:"bom,omitempty"`

	SampleBytes int                `json:"sample_bytes"`
	Empty       bool               `json:"empty"`
	LineEnding  lines.Ending       `json:"line_ending"`
	Endings     lines.EndingCounts `json:"endings"`
	Cached      bool               `json:"cached"`

	// Degraded is the detector failure absorbed by the classifier.
	Degraded string `json:"degraded,omitempty"`

	// Config is the decoder configuration; zero when the verdict is
	// unsupported.
	Config decode.Config `json:"-"`

	// Prefix is the sampled prefix.
	Prefix []byte `json:"-"`
}

// Sniffer detects source encodings. It is safe for concurrent use when its
// resolver and cache are.
type Sniffer struct {
	resolver *detect.Resolver
	cache    cache.Cache
	prefix   int
	settings []string
	reader   lines.Options
	logger   *slog.Logger
}

// New creates a Sniffer.
func New(opts Options) *Sniffer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := opts.Resolver
	if r == nil {
		r = detect.NewResolver(detect.Options{Logger: logger})
	}
	prefix := opts.PrefixSize
	if prefix <= 0 {
		prefix = r.SampleSize()
	}
	// Whole UTF-32 units, so a truncated prefix still sniffs as UTF-32.
	prefix = (prefix + 3) &^ 3
	if opts.Reader.Logger == nil {
		opts.Reader.Logger = logger
	}

	ro := r.Options()
	return &Sniffer{
		resolver: r,
		cache:    opts.Cache,
		prefix:   prefix,
		settings: []string{
			"prefix=" + strconv.Itoa(prefix),
			"sample=" + strconv.Itoa(ro.SampleSize),
			"wide=" + strconv.FormatBool(ro.WideHeuristic),
			"detector=" + ro.Detector.Name(),
		},
		reader: opts.Reader,
		logger: logger.With("component", "sniffer"),
	}
}

// PrefixSize returns the detection prefix bound.
func (s *Sniffer) PrefixSize() int { return s.prefix }

// Detect resolves the encoding of src. An unsupported verdict returns the
// Result together with the error.
func (s *Sniffer) Detect(ctx context.Context, src source.Source) (*Result, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanDetect,
		attribute.String(telemetry.AttrSource, src.Location()))
	defer span.End()

	prefix, err := source.ReadPrefix(ctx, src, s.prefix)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	res, err := s.detect(ctx, prefix)
	res.Source = src.Location()
	res.Size = src.Size()
	span.SetAttributes(
		attribute.String(telemetry.AttrEncoding, res.Encoding.String()),
		attribute.String(telemetry.AttrOrigin, string(res.Origin)),
		attribute.Bool(telemetry.AttrCached, res.Cached),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return res, lferrors.Wrap(err, lferrors.GetCode(err), "detect").WithContext("source", res.Source)
	}

	s.logger.Debug("detected",
		"source", res.Source,
		"encoding", res.Encoding,
		"origin", res.Origin,
		"cached", res.Cached,
	)
	return res, nil
}

// DetectBytes resolves the encoding of an in-memory buffer. Only the first
// PrefixSize bytes are examined.
func (s *Sniffer) DetectBytes(ctx context.Context, b []byte) (*Result, error) {
	if len(b) > s.prefix {
		b = b[:s.prefix]
	}
	return s.detect(ctx, b)
}

func (s *Sniffer) detect(ctx context.Context, prefix []byte) (*Result, error) {
	key := ""
	if s.cache != nil {
		key = cache.Key(prefix, s.settings...)
		if res, ok := s.cached(ctx, key); ok {
			return s.finish(res, prefix)
		}
	}

	rctx, span := telemetry.Start(ctx, telemetry.SpanResolve)
	resolution, err := s.resolver.Resolve(rctx, prefix)
	span.End()

	res := fromResolution(resolution)
	if err == nil && resolution.Degraded == nil && s.cache != nil {
		if perr := s.cache.Put(ctx, key, toEntry(res)); perr != nil {
			s.logger.Warn("cache put failed", "error", perr)
		}
	}
	return s.finish(res, prefix)
}

// finish binds a decoder and fills in the prefix-derived fields.
func (s *Sniffer) finish(res *Result, prefix []byte) (*Result, error) {
	res.Prefix = prefix
	res.SampleBytes = len(prefix)
	res.Empty = len(prefix) == 0

	cfg, err := decode.ForEncoding(res.Encoding, s.resolver.Options().Legacy)
	if err != nil {
		return res, err
	}
	res.Config = cfg
	res.Decoder = cfg.Name()

	// A truncated trailing sequence only costs the tail of the summary.
	text, _ := decode.Decode(prefix, cfg)
	res.Endings = lines.CountEndings(text)
	res.LineEnding = res.Endings.Ending()
	return res, nil
}

func (s *Sniffer) cached(ctx context.Context, key string) (*Result, bool) {
	e, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache get failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	res, err := fromEntry(e)
	if err != nil {
		s.logger.Warn("discarding cached verdict", "error", err)
		return nil, false
	}
	return res, true
}

// Open detects the encoding of src and returns a line reader bound to it.
// The caller closes the reader.
func (s *Sniffer) Open(ctx context.Context, src source.Source) (*lines.Reader, *Result, error) {
	res, err := s.Detect(ctx, src)
	if err != nil {
		return nil, res, err
	}
	r, err := lines.Open(ctx, src, res.Config, s.reader)
	if err != nil {
		return nil, res, err
	}
	return r, res, nil
}

func fromResolution(r detect.Resolution) *Result {
	res := &Result{
		Encoding:  r.Encoding,
		Origin:    r.Origin,
		Candidate: r.Candidate,
	}
	if r.BOM != charset.BOMNone {
		res.BOM = r.BOM.String()
	}
	if r.Classified {
		res.Class = r.Class.String()
	}
	if r.Degraded != nil {
		res.Degraded = r.Degraded.Error()
	}
	return res
}

func toEntry(r *Result) cache.Entry {
	e := cache.Entry{
		Encoding: r.Encoding.String(),
		Origin:   string(r.Origin),
		Class:    r.Class,
		BOM:      r.BOM,
	}
	if c := r.Candidate; c != nil {
		e.Candidate = true
		e.Codepage = c.Codepage
		e.Charset = c.Charset
		e.Language = c.Language
		e.Confidence = c.Confidence
	}
	return e
}

func fromEntry(e cache.Entry) (*Result, error) {
	var enc charset.TextEncoding
	if err := enc.UnmarshalText([]byte(e.Encoding)); err != nil {
		return nil, err
	}
	res := &Result{
		Encoding: enc,
		Origin:   detect.Origin(e.Origin),
		Class:    e.Class,
		BOM:      e.BOM,
		Cached:   true,
	}
	switch res.Origin {
	case detect.OriginBOM, detect.OriginDetector, detect.OriginClassifier:
	default:
		return nil, fmt.Errorf("unknown origin %q", e.Origin)
	}
	if e.Candidate {
		res.Candidate = &detect.Candidate{
			Codepage:   e.Codepage,
			Charset:    e.Charset,
			Language:   e.Language,
			Confidence: e.Confidence,
		}
	}
	return res, nil
}
