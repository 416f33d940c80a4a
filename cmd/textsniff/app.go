package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/logflow/textsniff/pkg/cache"
	"github.com/logflow/textsniff/pkg/config"
	"github.com/logflow/textsniff/pkg/decode"
	"github.com/logflow/textsniff/pkg/detect"
	lferrors "github.com/logflow/textsniff/pkg/errors"
	"github.com/logflow/textsniff/pkg/lines"
	"github.com/logflow/textsniff/pkg/sniff"
	"github.com/logflow/textsniff/pkg/source"
	"github.com/logflow/textsniff/pkg/telemetry"
)

// globalFlags are the persistent flags; each overrides its config key only
// when set on the command line.
type globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
	legacy     string
	sampleSize int
	detector   string
	wide       bool
	cache      string
}

// app carries the state shared by all commands.
type app struct {
	flags   globalFlags
	manager *config.Manager
	cfg     *config.Config
	logger  *slog.Logger

	cache    cache.Cache
	shutdown func(context.Context) error
}

// setup loads configuration, applies flags, and configures logging and
// trace export.
func (a *app) setup(cmd *cobra.Command) error {
	a.manager = config.NewManager()
	if err := a.manager.Load(); err != nil {
		return err
	}
	if a.flags.configFile != "" {
		if err := a.manager.LoadFile(a.flags.configFile); err != nil {
			return err
		}
	}
	a.cfg = a.manager.Get()
	a.applyFlags(cmd)
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), a.cfg.Log.Level, a.cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitOTLP(cmd.Context(), a.cfg.OTLPConfig(version))
	if err != nil {
		a.logger.Warn("trace export disabled", "error", err)
		return nil
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("log-level") {
		a.cfg.Log.Level = a.flags.logLevel
	}
	if f.Changed("log-format") {
		a.cfg.Log.Format = a.flags.logFormat
	}
	if f.Changed("legacy") {
		a.cfg.Legacy.Charset = a.flags.legacy
	}
	if f.Changed("sample-size") {
		a.cfg.Detect.SampleSize = a.flags.sampleSize
	}
	if f.Changed("detector") {
		a.cfg.Detect.Detector = a.flags.detector
	}
	if f.Changed("wide") {
		a.cfg.Detect.WideHeuristic = a.flags.wide
	}
	if f.Changed("cache") {
		a.cfg.Cache.Backend = a.flags.cache
	}
}

// newLogger builds the process logger writing to w.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, lferrors.Wrap(err, lferrors.CodeConfig, "invalid log level")
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, lferrors.New(lferrors.CodeConfig, fmt.Sprintf("unknown log format %q", format))
	}
}

// newDetector returns the configured ranked detector.
func newDetector(name string) (detect.Detector, error) {
	switch strings.ToLower(name) {
	case "", "chardet":
		return detect.NewChardet(), nil
	case "none":
		return detect.None{}, nil
	default:
		return nil, lferrors.New(lferrors.CodeConfig, fmt.Sprintf("unknown detector %q", name))
	}
}

// newSniffer builds a sniffer from the effective configuration. A cache
// that cannot be reached is skipped with a warning.
func (a *app) newSniffer(disableFallback bool) (*sniff.Sniffer, error) {
	det, err := newDetector(a.cfg.Detect.Detector)
	if err != nil {
		return nil, err
	}
	legacy, err := decode.ResolveLegacy(a.cfg.Legacy.Charset)
	if err != nil {
		return nil, err
	}

	if a.cache == nil {
		c, err := cache.New(a.cfg.CacheConfig())
		switch {
		case err == nil:
			a.cache = c
		case lferrors.IsRecoverable(err):
			a.logger.Warn("verdict cache unavailable", "backend", a.cfg.Cache.Backend, "error", err)
		default:
			return nil, err
		}
	}

	resolver := detect.NewResolver(detect.Options{
		SampleSize:    a.cfg.Detect.SampleSize,
		WideHeuristic: a.cfg.Detect.WideHeuristic,
		Detector:      det,
		Legacy:        legacy,
		Logger:        a.logger,
	})
	return sniff.New(sniff.Options{
		Resolver:   resolver,
		PrefixSize: a.cfg.Detect.PrefixSize,
		Cache:      a.cache,
		Reader: lines.Options{
			BufferSize:      a.cfg.Reader.BufferSize,
			DisableFallback: disableFallback || !a.cfg.Reader.Fallback,
			Logger:          a.logger,
		},
		Logger: a.logger,
	}), nil
}

func (a *app) sourceOptions(cmd *cobra.Command) source.Options {
	return source.Options{S3: a.cfg.S3Config(), Stdin: cmd.InOrStdin()}
}

// close flushes traces and releases the cache.
func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
		a.cache = nil
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Warn("trace flush failed", "error", err)
		}
		a.shutdown = nil
	}
}
