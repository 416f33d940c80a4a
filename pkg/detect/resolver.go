package detect

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/textsniff/pkg/charset"
	"github.com/logflow/textsniff/pkg/decode"
	lferrors "github.com/logflow/textsniff/pkg/errors"
	"github.com/logflow/textsniff/pkg/telemetry"
)

// DefaultSampleSize bounds the prefix handed to the detector.
const DefaultSampleSize = 1024

// Origin records which stage produced a verdict.
type Origin string

const (
	OriginBOM        Origin = "bom"
	OriginDetector   Origin = "detector"
	OriginClassifier Origin = "classifier"
)

// Options configures a Resolver.
type Options struct {
	// SampleSize bounds the bytes passed to the detector. Zero means DefaultSampleSize.
	SampleSize int

	// WideHeuristic selects the three-way classifier, which can answer
	// UTF-16LE for BOM-less wide text. The two-way classifier is the default.
	WideHeuristic bool

	// Detector is the ranked detector. Nil behaves like None.
	Detector Detector

	// Legacy is bound into Ansi verdicts. Nil selects decode.DefaultLegacy.
	Legacy *decode.Legacy

	Logger *slog.Logger
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Encoding charset.TextEncoding `json:"encoding"`
	Origin   Origin               `json:"origin"`
	BOM      charset.BOM          `json:"-"`

	// Candidate is the detector answer that decided, if any.
	Candidate *Candidate `json:"candidate,omitempty"`

	// Class is the classifier verdict when the classifier was consulted.
	Class      charset.Class `json:"-"`
	Classified bool          `json:"classified"`

	// Degraded is the detector error absorbed by the classifier fallback.
	Degraded error `json:"-"`

	Config decode.Config `json:"-"`
}

// Resolver picks one TextEncoding per buffer. It is safe for concurrent use
// when its Detector is.
type Resolver struct {
	opts   Options
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(opts Options) *Resolver {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.Detector == nil {
		opts.Detector = None{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{opts: opts, logger: logger.With("component", "resolver")}
}

// SampleSize returns the detector sample bound.
func (r *Resolver) SampleSize() int { return r.opts.SampleSize }

// Options returns the effective options.
func (r *Resolver) Options() Options { return r.opts }

// Resolve determines the encoding of buf and binds a decoder configuration.
// The only error is an unsupported (UTF-32) verdict; the returned Resolution
// still records what was found.
func (r *Resolver) Resolve(ctx context.Context, buf []byte) (Resolution, error) {
	res := r.verdict(ctx, buf)
	telemetry.SetSpanAttributes(ctx,
		attribute.String(telemetry.AttrEncoding, res.Encoding.String()),
		attribute.String(telemetry.AttrOrigin, string(res.Origin)),
	)

	cfg, err := decode.ForEncoding(res.Encoding, r.opts.Legacy)
	if err != nil {
		r.logger.Debug("unsupported encoding", "encoding", res.Encoding, "origin", res.Origin)
		return res, err
	}
	res.Config = cfg
	return res, nil
}

func (r *Resolver) verdict(ctx context.Context, buf []byte) Resolution {
	if bom := charset.SniffBOM(buf); bom != charset.BOMNone {
		enc, _ := bom.Encoding()
		return Resolution{Encoding: enc, Origin: OriginBOM, BOM: bom}
	}

	sample := buf
	if len(sample) > r.opts.SampleSize {
		sample = sample[:r.opts.SampleSize]
	}

	candidates, err := r.detect(ctx, sample)
	if err != nil {
		r.logger.Debug("detector degraded", "detector", r.opts.Detector.Name(), "error", err)
		telemetry.AddSpanEvent(ctx, "detector.degraded",
			attribute.String("detector", r.opts.Detector.Name()),
			attribute.String("error", err.Error()),
		)
		res := r.classify(buf)
		res.Degraded = err
		return res
	}

	for i := range candidates {
		if enc, ok := charset.FromCodepage(candidates[i].Codepage); ok {
			c := candidates[i]
			return Resolution{Encoding: enc, Origin: OriginDetector, Candidate: &c}
		}
	}

	r.logger.Debug("no recognized candidate", "detector", r.opts.Detector.Name(), "candidates", len(candidates))
	return r.classify(buf)
}

// detect runs the detector inside a scoped session.
func (r *Resolver) detect(ctx context.Context, sample []byte) ([]Candidate, error) {
	sess, err := r.opts.Detector.Acquire(ctx)
	if err != nil {
		if lferrors.GetCode(err) == lferrors.CodeUnknown {
			err = lferrors.Wrap(err, lferrors.CodeDetectorUnavailable, "acquire detector")
		}
		return nil, err
	}
	defer sess.Release()

	candidates, err := sess.Detect(sample)
	if err != nil {
		if lferrors.GetCode(err) == lferrors.CodeUnknown {
			err = lferrors.Wrap(err, lferrors.CodeDetectionFailed, "detect")
		}
		return nil, err
	}
	return candidates, nil
}

func (r *Resolver) classify(buf []byte) Resolution {
	class := charset.ClassifyUTF8(buf)
	if r.opts.WideHeuristic {
		class = charset.Classify(buf)
	}
	return Resolution{
		Encoding:   class.Encoding(),
		Origin:     OriginClassifier,
		Class:      class,
		Classified: true,
	}
}
