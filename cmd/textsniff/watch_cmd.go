package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/logflow/textsniff/pkg/sniff"
	"github.com/logflow/textsniff/pkg/source"
	"github.com/logflow/textsniff/pkg/tui"
	"github.com/logflow/textsniff/pkg/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <path|glob> ...",
		Short: "Re-detect files whenever they change",
		Long: `Watch local files and print a new verdict each time one changes.
A verdict that differs from the previous one for the same file is flagged.

Examples:
  textsniff watch app.log
  textsniff watch 'inbox/*.csv' --debounce 2s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, a, args, debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a change is reported")
	return cmd
}

// verdictLog prints verdicts and remembers the last encoding per file.
type verdictLog struct {
	mu   sync.Mutex
	out  io.Writer
	last map[string]string
	now  func() time.Time
}

func newVerdictLog(out io.Writer) *verdictLog {
	return &verdictLog{out: out, last: make(map[string]string), now: time.Now}
}

// record prints one outcome and reports whether the encoding changed since
// the previous verdict for the same path.
func (v *verdictLog) record(path string, res *sniff.Result, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	stamp := v.now().Format("15:04:05")
	if err != nil {
		fmt.Fprintf(v.out, "[%s] ", stamp)
		tui.PrintError(v.out, path, err)
		return false
	}

	enc := res.Encoding.String()
	prev, seen := v.last[path]
	v.last[path] = enc
	changed := seen && prev != enc

	marker := ""
	if changed {
		marker = fmt.Sprintf("  (was %s)", prev)
	}
	fmt.Fprintf(v.out, "[%s] %s %s %s %s%s\n", stamp, path, enc, res.Origin, res.LineEnding, marker)
	return changed
}

func runWatch(cmd *cobra.Command, a *app, args []string, debounce time.Duration) error {
	ctx := cmd.Context()

	sources, err := source.Expand(ctx, args, source.Options{})
	if err != nil {
		return err
	}
	sn, err := a.newSniffer(false)
	if err != nil {
		return err
	}

	w, err := watch.NewWatcher(watch.Options{Debounce: debounce, Logger: a.logger})
	if err != nil {
		return err
	}
	defer w.Close()

	log := newVerdictLog(cmd.OutOrStdout())
	redetect := func(path string) error {
		src, err := source.NewFile(path)
		if err != nil {
			return err
		}
		res, err := sn.Detect(ctx, src)
		log.record(path, res, err)
		return nil
	}
	w.OnChange = redetect
	w.OnError = func(path string, err error) {
		a.logger.Warn("watch error", "path", path, "error", err)
	}

	for _, src := range sources {
		if _, ok := src.(*source.File); !ok {
			return fmt.Errorf("cannot watch %s: only local files can be watched", src.Location())
		}
		if err := w.Watch(src.Location()); err != nil {
			return err
		}
	}
	for _, path := range w.Paths() {
		redetect(path)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Watching", len(w.Paths()), "files. Press Ctrl+C to stop")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
