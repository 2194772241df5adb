package replay

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/tagforge/internal/progress"
	"github.com/vinayprograms/tagforge/internal/session"
)

// Replayer formats stored runs for inspection.
type Replayer struct {
	output         io.Writer
	verbose        bool
	maxContentSize int // content fields longer than this are truncated (0 = unlimited)
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithMaxContentSize limits content field size to avoid flooding the
// terminal on runs with large prompts.
func WithMaxContentSize(size int) Option {
	return func(r *Replayer) {
		r.maxContentSize = size
	}
}

// New creates a Replayer writing to output. Verbose includes prompt and
// response bodies in the timeline.
func New(output io.Writer, verbose bool, opts ...Option) *Replayer {
	r := &Replayer{
		output:         output,
		verbose:        verbose,
		maxContentSize: 50 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replay writes the run's full timeline.
func (r *Replayer) Replay(run *session.Run) error {
	r.printHeader(run)
	r.printTimeline(run)
	if run.Mode == session.ModeTag && len(run.RowTags) > 0 {
		r.printRowTags(run)
	}
	r.printSummary(run)
	return nil
}

// ReplayInteractive renders the run into the pager.
func (r *Replayer) ReplayInteractive(run *session.Run) error {
	var buf strings.Builder
	saved := r.output
	r.output = &buf
	err := r.Replay(run)
	r.output = saved
	if err != nil {
		return err
	}
	return runPager(fmt.Sprintf("Run: %s", shortID(run.ID)), buf.String())
}

// ReplayLive renders through the pager and re-renders whenever the backing
// file changes, so a run can be watched while it is still being written.
func (r *Replayer) ReplayLive(path string, load func() (*session.Run, error)) error {
	render := func() (string, error) {
		run, err := load()
		if err != nil {
			return "", err
		}
		var buf strings.Builder
		saved := r.output
		r.output = &buf
		err = r.Replay(run)
		r.output = saved
		if err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	run, err := load()
	if err != nil {
		return err
	}
	return runPagerLive(fmt.Sprintf("Run: %s (LIVE)", shortID(run.ID)), path, render)
}

func (r *Replayer) printHeader(run *session.Run) {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("RUN"), valueStyle.Render(run.ID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Mode:    "), valueStyle.Render(run.Mode))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Model:   "),
		valueStyle.Render(run.Provider+"/"+run.Model))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Dataset: "), valueStyle.Render(run.Dataset))
	if run.Output != "" {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Output:  "), valueStyle.Render(run.Output))
	}
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status:  "),
		r.statusStyle(run.Status).Render(run.Status))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created: "),
		valueStyle.Render(run.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintln(r.output)
}

func (r *Replayer) printTimeline(run *session.Run) {
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"),
		dimStyle.Render(fmt.Sprintf("(%d events)", len(run.Events))))
	fmt.Fprintln(r.output, divider)

	for i := range run.Events {
		r.formatEvent(i+1, &run.Events[i])
	}
}

func (r *Replayer) formatEvent(seq int, event *session.Event) {
	ts := timeStyle.Render(event.Timestamp.Format("15:04:05"))
	seqNum := seqStyle.Render(fmt.Sprintf("%d", seq))

	switch event.Type {
	case session.EventSystem:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, flowStyle.Render("SYSTEM PROMPT"))
		if r.verbose {
			r.printContent(event.Content)
		}
	case session.EventUser:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, flowStyle.Render("USER PROMPT"))
		if r.verbose {
			r.printContent(event.Content)
		}
	case session.EventAssistant:
		label := "ASSISTANT"
		if event.Step > 0 {
			label = fmt.Sprintf("ASSISTANT (step %d)", event.Step)
		}
		if event.Error != "" {
			fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, errorStyle.Render(label+" ERROR"))
			r.printError(event.Error)
			return
		}
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, flowStyle.Render(label))
		if r.verbose {
			r.printContent(event.Content)
		}
	case session.EventToolCall:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			toolStyle.Render("TOOL CALL:"), valueStyle.Render(event.Tool))
		if r.verbose {
			r.printArgs(event.Args)
		}
	case session.EventToolResult:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
			toolStyle.Render("TOOL RESULT:"), valueStyle.Render(event.Tool),
			dimStyle.Render(fmt.Sprintf("(%dms)", event.DurationMs)))
		if r.verbose {
			r.printContent(event.Content)
		}
	case session.EventRowStart:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			rowStyle.Render("ROW START:"), valueStyle.Render(fmt.Sprintf("%d", event.Row)))
	case session.EventRowEnd:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
			rowStyle.Render("ROW END:"), valueStyle.Render(fmt.Sprintf("%d", event.Row)),
			dimStyle.Render(event.Content))
	default:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, dimStyle.Render(event.Type))
	}
}

// printRowTags summarizes the per-row assignments as a tag distribution.
func (r *Replayer) printRowTags(run *session.Run) {
	counts := make(map[string]int)
	for _, tags := range run.RowTags {
		counts[tags]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("ROW TAGS"),
		dimStyle.Render(fmt.Sprintf("(%d rows)", len(run.RowTags))))
	fmt.Fprintln(r.output, divider)
	for _, name := range names {
		pct := float64(counts[name]) * 100 / float64(len(run.RowTags))
		fmt.Fprintf(r.output, "  %s %s\n",
			valueStyle.Render(name),
			dimStyle.Render(fmt.Sprintf("%d (%.1f%%)", counts[name], pct)))
	}
}

func (r *Replayer) printSummary(run *session.Run) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)

	switch run.Status {
	case session.StatusComplete:
		fmt.Fprintf(r.output, "%s %s\n", successStyle.Render("COMPLETED:"), valueStyle.Render(run.Result))
	case session.StatusFailed:
		fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("FAILED:"), valueStyle.Render(run.Error))
	default:
		fmt.Fprintln(r.output, warnStyle.Render("RUNNING"))
	}

	stats := ComputeStats(run)
	fmt.Fprintf(r.output, "%s %s in, %s out",
		labelStyle.Render("Tokens:"),
		valueStyle.Render(progress.FormatTokenCount(run.InputTokens)),
		valueStyle.Render(progress.FormatTokenCount(run.OutputTokens)))
	if run.Cost > 0 {
		fmt.Fprintf(r.output, "  %s $%.4f", labelStyle.Render("cost:"), run.Cost)
	}
	fmt.Fprintln(r.output)
	if stats.ToolCalls > 0 {
		fmt.Fprintf(r.output, "%s %d calls, %dms total\n",
			labelStyle.Render("Tools: "), stats.ToolCalls, stats.ToolTotalMs)
	}
	if stats.WallClock > 0 {
		fmt.Fprintf(r.output, "%s %s\n",
			labelStyle.Render("Time:  "), stats.WallClock.Round(time.Millisecond))
	}
}

func (r *Replayer) printContent(content string) {
	if content == "" {
		return
	}
	if r.maxContentSize > 0 && len(content) > r.maxContentSize {
		content = content[:r.maxContentSize] + "\n... (truncated)"
	}
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(r.output, "      │          │   %s\n", line)
	}
}

func (r *Replayer) printArgs(args map[string]interface{}) {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(r.output, "      │          │   %s %v\n",
			labelStyle.Render(k+":"), args[k])
	}
}

func (r *Replayer) printError(msg string) {
	fmt.Fprintf(r.output, "      │          │   %s\n", errorStyle.Render(msg))
}

func (r *Replayer) statusStyle(status string) lipgloss.Style {
	switch status {
	case session.StatusComplete:
		return successStyle
	case session.StatusFailed:
		return errorStyle
	default:
		return warnStyle
	}
}

// Stats aggregates timings out of a run's event log.
type Stats struct {
	Steps       int
	ToolCalls   int
	ToolTotalMs int64
	RowsTagged  int
	WallClock   time.Duration
}

// ComputeStats walks the event log once.
func ComputeStats(run *session.Run) *Stats {
	stats := &Stats{RowsTagged: len(run.RowTags)}

	var first, last time.Time
	for _, event := range run.Events {
		if first.IsZero() || event.Timestamp.Before(first) {
			first = event.Timestamp
		}
		if last.IsZero() || event.Timestamp.After(last) {
			last = event.Timestamp
		}
		switch event.Type {
		case session.EventAssistant:
			if event.Step > stats.Steps {
				stats.Steps = event.Step
			}
		case session.EventToolResult:
			stats.ToolCalls++
			stats.ToolTotalMs += event.DurationMs
		}
	}
	if !first.IsZero() && !last.IsZero() {
		stats.WallClock = last.Sub(first)
	}
	return stats
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
