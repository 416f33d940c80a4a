// textsniff - detect text encodings and read lines in the detected encoding.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree around a fresh app.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "textsniff",
		Short: "textsniff - detect text encodings",
		Long: `textsniff determines the character encoding of text files and decodes them line by line.

A byte order mark decides when present. Otherwise a ranked detector is
consulted, and a UTF-8 validity classifier settles what the detector cannot.
Lines that fail to decode on the first line are retried once with the
legacy decoder.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.configFile, "config", "", "Configuration file (merged over the default search path)")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&a.flags.logFormat, "log-format", "", "Log format (text, json)")
	f.StringVar(&a.flags.legacy, "legacy", "", `Legacy charset for non-Unicode text (IANA name or "locale")`)
	f.IntVar(&a.flags.sampleSize, "sample-size", 0, "Bytes handed to the detector")
	f.StringVar(&a.flags.detector, "detector", "", "Ranked detector (chardet, none)")
	f.BoolVar(&a.flags.wide, "wide", false, "Let the classifier answer UTF-16LE for BOM-less wide text")
	f.StringVar(&a.flags.cache, "cache", "", "Verdict cache backend (none, memory, redis)")

	root.AddCommand(
		newDetectCmd(a),
		newLinesCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
	)
	return root, a
}
