package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/textsniff/pkg/source"
	"github.com/logflow/textsniff/pkg/telemetry"
	"github.com/logflow/textsniff/pkg/tui"
)

type linesOptions struct {
	units      bool
	bytes      bool
	number     bool
	info       bool
	noFallback bool
}

func newLinesCmd(a *app) *cobra.Command {
	var opts linesOptions

	cmd := &cobra.Command{
		Use:   "lines <path|s3://bucket/key|->",
		Short: "Print the lines of a source in its detected encoding",
		Long: `Detect the encoding of a source and print its lines decoded.

--bytes prints the raw detection prefix before decoding; --units prints each
line as UTF-16 code units instead of text.

Examples:
  textsniff lines notes.txt
  textsniff lines --units --bytes legacy.txt
  textsniff lines --legacy koi8-r russian.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLines(cmd, a, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.units, "units", false, "Print UTF-16 code units (U+XXXX) per line")
	cmd.Flags().BoolVar(&opts.bytes, "bytes", false, "Print the raw prefix in hex before the lines")
	cmd.Flags().BoolVarP(&opts.number, "number", "n", false, "Number the lines")
	cmd.Flags().BoolVar(&opts.info, "info", false, "Print the detected encoding before the lines")
	cmd.Flags().BoolVar(&opts.noFallback, "no-fallback", false, "Fail instead of retrying the first line with the legacy decoder")
	return cmd
}

func runLines(cmd *cobra.Command, a *app, location string, opts linesOptions) error {
	out := cmd.OutOrStdout()

	ctx, span := telemetry.Start(cmd.Context(), telemetry.SpanLines,
		attribute.String(telemetry.AttrSource, location))
	defer span.End()

	src, err := source.Parse(ctx, location, a.sourceOptions(cmd))
	if err != nil {
		return err
	}
	sn, err := a.newSniffer(opts.noFallback)
	if err != nil {
		return err
	}

	r, res, err := sn.Open(ctx, src)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	defer r.Close()

	if opts.info {
		tui.PrintResult(out, res)
		fmt.Fprintln(out)
	}
	if opts.bytes {
		tui.PrintBytes(out, "bytes before convert", res.Prefix)
		fmt.Fprintln(out)
	}

	for l := range r.All() {
		switch {
		case opts.units:
			tui.PrintUnits(out, l.Number, l.Units())
		case opts.number:
			tui.PrintLine(out, l.Number, l.Text)
		default:
			fmt.Fprintln(out, l.Text)
		}
	}

	span.SetAttributes(
		attribute.Int("textsniff.lines", r.Count()),
		attribute.Bool("textsniff.fallback", r.FellBack()),
	)
	if r.FellBack() {
		a.logger.Info("decoded with legacy decoder", "source", src.Location(), "decoder", r.Config().Name())
	}
	if err := r.Err(); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}
