package main

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/logflow/textsniff/pkg/sniff"
	"github.com/logflow/textsniff/pkg/source"
	"github.com/logflow/textsniff/pkg/tui"
)

type detectOptions struct {
	json       bool
	workers    int
	noProgress bool
}

func newDetectCmd(a *app) *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:   "detect <path|glob|s3://bucket/key|-> ...",
		Short: "Detect the encoding of one or more sources",
		Long: `Detect the character encoding of files, glob matches, S3 objects or standard input.

Examples:
  textsniff detect notes.txt
  textsniff detect 'logs/*.log' --workers 8
  textsniff detect s3://bucket/export.csv --json
  cat legacy.txt | textsniff detect -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, a, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "Write one JSON object per source")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Concurrent detections (default batch.workers, then GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Hide the progress bar")
	return cmd
}

// detectOutcome is one source's result in a batch.
type detectOutcome struct {
	location string
	result   *sniff.Result
	err      error
}

// detectRecord is the JSON form of an outcome.
type detectRecord struct {
	RunID    string `json:"run_id"`
	Location string `json:"location"`
	*sniff.Result
	Error string `json:"error,omitempty"`
}

func runDetect(cmd *cobra.Command, a *app, args []string, opts detectOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sources, err := source.Expand(ctx, args, a.sourceOptions(cmd))
	if err != nil {
		return err
	}
	sn, err := a.newSniffer(false)
	if err != nil {
		return err
	}

	workers := opts.workers
	if workers <= 0 {
		workers = a.cfg.Batch.Workers
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	runID := uuid.New().String()
	a.logger.Debug("detect run", "run_id", runID, "sources", len(sources), "workers", workers)

	showProgress := !opts.json && !opts.noProgress && len(sources) > 1
	start := time.Now()
	outcomes, stats := detectAll(ctx, a, sn, sources, workers, showProgress, cmd)

	if opts.json {
		enc := json.NewEncoder(out)
		for _, o := range outcomes {
			rec := detectRecord{RunID: runID, Location: o.location, Result: o.result}
			if o.err != nil {
				rec.Error = o.err.Error()
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
	} else {
		rows := make([]tui.Row, len(outcomes))
		for i, o := range outcomes {
			rows[i] = tui.NewRow(o.location, o.result, o.err)
		}
		tui.RenderTable(out, rows)
		if len(outcomes) > 1 {
			stats.RunID = runID
			stats.Duration = time.Since(start)
			tui.PrintSummary(out, stats)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d sources failed", stats.Failed, stats.Total)
	}
	return nil
}

// detectAll runs detections with bounded concurrency. Outcomes keep the
// order of sources.
func detectAll(ctx context.Context, a *app, sn *sniff.Sniffer, sources []source.Source, workers int, showProgress bool, cmd *cobra.Command) ([]detectOutcome, tui.Summary) {
	outcomes := make([]detectOutcome, len(sources))

	var completed, failed, cached, sampled atomic.Int64

	var bar interface{ Add(int) error }
	if showProgress {
		pb := tui.ShowProgress(cmd.ErrOrStderr(), int64(len(sources)), "detecting")
		defer pb.Finish()
		bar = pb
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, src := range sources {
		g.Go(func() error {
			res, err := sn.Detect(gctx, src)
			outcomes[i] = detectOutcome{location: src.Location(), result: res, err: err}

			completed.Add(1)
			if err != nil {
				failed.Add(1)
				a.logger.Warn("detection failed", "source", src.Location(), "error", err)
			}
			if res != nil {
				sampled.Add(int64(res.SampleBytes))
				if res.Cached {
					cached.Add(1)
				}
			}
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	stats := tui.Summary{
		Total:      completed.Load(),
		Failed:     failed.Load(),
		Cached:     cached.Load(),
		Bytes:      sampled.Load(),
		ByEncoding: map[string]int64{},
	}
	for _, o := range outcomes {
		if o.err == nil && o.result != nil {
			stats.ByEncoding[o.result.Encoding.String()]++
		}
	}
	return outcomes, stats
}
