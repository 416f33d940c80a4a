// Package tui renders detection results for the terminal.
// Plain streaming output: styled tables, summaries and a progress bar.
package tui

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/logflow/textsniff/pkg/sniff"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// Row is one line of the detection table.
type Row struct {
	Source   string
	Encoding string
	Origin   string
	Decoder  string
	Ending   string
	Detail   string
	Failed   bool
}

// NewRow builds a table row from a detection outcome. res may be nil when
// err is set.
func NewRow(location string, res *sniff.Result, err error) Row {
	row := Row{Source: location}
	if res != nil {
		row.Encoding = res.Encoding.String()
		row.Origin = string(res.Origin)
		row.Decoder = res.Decoder
		row.Ending = string(res.LineEnding)
		row.Detail = detail(res)
	}
	if err != nil {
		row.Failed = true
		row.Detail = err.Error()
	}
	return row
}

func detail(res *sniff.Result) string {
	var parts []string
	switch {
	case res.Empty:
		parts = append(parts, "empty")
	case res.Candidate != nil:
		c := res.Candidate
		parts = append(parts, fmt.Sprintf("%s %d%%", c.Charset, c.Confidence))
	case res.BOM != "":
		parts = append(parts, res.BOM)
	case res.Class != "":
		parts = append(parts, "class "+res.Class)
	}
	if res.Degraded != "" {
		parts = append(parts, "detector degraded")
	}
	if res.Cached {
		parts = append(parts, "cached")
	}
	return strings.Join(parts, ", ")
}

var tableHeader = []string{"SOURCE", "ENCODING", "ORIGIN", "DECODER", "EOL", "DETAIL"}

// RenderTable writes rows as an aligned table.
func RenderTable(w io.Writer, rows []Row) {
	widths := make([]int, len(tableHeader))
	for i, h := range tableHeader {
		widths[i] = len(h)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = []string{row.Source, row.Encoding, row.Origin, row.Decoder, row.Ending, row.Detail}
		for i, c := range cells[r] {
			if n := lipgloss.Width(c); n > widths[i] && i < len(widths)-1 {
				widths[i] = n
			}
		}
	}

	line := func(style lipgloss.Style, values []string) string {
		out := make([]string, len(values))
		for i, v := range values {
			s := style
			if i < len(values)-1 {
				s = s.Width(widths[i] + 2)
			}
			out[i] = s.Render(v)
		}
		return strings.TrimRight(strings.Join(out, ""), " ")
	}

	fmt.Fprintln(w, line(mutedStyle, tableHeader))
	for r, row := range rows {
		style := titleStyle.Bold(false)
		if row.Failed {
			style = accentStyle.Bold(false)
		}
		fmt.Fprintln(w, line(style, cells[r]))
	}
}

// Summary totals a batch run.
type Summary struct {
	RunID      string
	Total      int64
	Failed     int64
	Cached     int64
	Bytes      int64
	Duration   time.Duration
	ByEncoding map[string]int64
}

// PrintSummary prints totals after a batch run.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	if s.Failed == 0 {
		fmt.Fprintln(w, successStyle.Render("  ✓ DETECTION COMPLETE"))
	} else {
		fmt.Fprintln(w, accentStyle.Render(fmt.Sprintf("  ✗ DETECTION COMPLETE WITH %d FAILURES", s.Failed)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Sources:"), titleStyle.Render(formatNumber(s.Total)))
	if s.Cached > 0 {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Cached:"), titleStyle.Render(formatNumber(s.Cached)))
	}

	if len(s.ByEncoding) > 0 {
		names := make([]string, 0, len(s.ByEncoding))
		for name := range s.ByEncoding {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s %d", name, s.ByEncoding[name])
		}
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Encodings:"), titleStyle.Render(strings.Join(parts, ", ")))
	}

	if s.Duration > 0 {
		fmt.Fprintf(w, "  %s %s %s\n",
			mutedStyle.Render("Time:"),
			titleStyle.Render(formatDuration(s.Duration)),
			mutedStyle.Render(fmt.Sprintf("(%s sampled)", formatBytes(s.Bytes))))
	}
	if s.RunID != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Run:"), mutedStyle.Render(s.RunID))
	}
	fmt.Fprintln(w)
}

// PrintResult prints one verdict in detail, as the lines command does
// before the text.
func PrintResult(w io.Writer, res *sniff.Result) {
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("source:  "), titleStyle.Render(res.Source))
	fmt.Fprintf(w, "%s %s %s\n", mutedStyle.Render("encoding:"), titleStyle.Render(res.Encoding.String()),
		mutedStyle.Render("("+string(res.Origin)+")"))
	if res.Decoder != "" {
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("decoder: "), res.Decoder)
	}
	if d := detail(res); d != "" {
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("detail:  "), d)
	}
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("eol:     "), res.LineEnding)
}

// PrintBytes prints a hex dump of raw bytes.
func PrintBytes(w io.Writer, title string, b []byte) {
	fmt.Fprintln(w, accentStyle.Render("▸ "+strings.ToUpper(title)))
	if len(b) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  (none)"))
		return
	}
	fmt.Fprint(w, hex.Dump(b))
}

// PrintLine prints a numbered line.
func PrintLine(w io.Writer, number int, text string) {
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render(fmt.Sprintf("%6d", number)), text)
}

// FormatUnits renders UTF-16 code units as U+XXXX.
func FormatUnits(units []uint16) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = fmt.Sprintf("U+%04X", u)
	}
	return strings.Join(parts, " ")
}

// PrintUnits prints a numbered line's code units.
func PrintUnits(w io.Writer, number int, units []uint16) {
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render(fmt.Sprintf("%6d", number)), FormatUnits(units))
}

// PrintError prints a failure for one source.
func PrintError(w io.Writer, location string, err error) {
	fmt.Fprintf(w, "%s %s %s\n", accentStyle.Render("✗"), location, mutedStyle.Render(err.Error()))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// ShowProgress creates a progress bar counting processed sources.
func ShowProgress(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
