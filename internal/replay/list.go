package replay

import (
	"fmt"
	"strings"

	"github.com/vinayprograms/tagforge/internal/progress"
	"github.com/vinayprograms/tagforge/internal/session"
)

// RenderList formats runs as a table, one line per run, newest first as
// provided by the store.
func RenderList(runs []*session.Run) string {
	var b strings.Builder

	if len(runs) == 0 {
		return dimStyle.Render("no recorded runs") + "\n"
	}

	header := fmt.Sprintf("%-10s %-9s %-22s %-9s %-12s %-10s %s",
		"ID", "MODE", "MODEL", "STATUS", "TOKENS", "COST", "CREATED")
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(divider))
	b.WriteString("\n")

	for _, run := range runs {
		tokens := progress.FormatTokenCount(run.InputTokens + run.OutputTokens)
		cost := "-"
		if run.Cost > 0 {
			cost = fmt.Sprintf("$%.4f", run.Cost)
		}
		status := statusCell(run.Status)
		line := fmt.Sprintf("%-10s %-9s %-22s %s %-12s %-10s %s",
			shortID(run.ID),
			run.Mode,
			truncateCell(run.Model, 22),
			status,
			tokens,
			cost,
			run.CreatedAt.Format("2006-01-02 15:04"))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// statusCell pads to the column width before styling so ANSI codes do not
// break the alignment.
func statusCell(status string) string {
	padded := fmt.Sprintf("%-9s", status)
	switch status {
	case session.StatusComplete:
		return successStyle.Render(padded)
	case session.StatusFailed:
		return errorStyle.Render(padded)
	default:
		return warnStyle.Render(padded)
	}
}

func truncateCell(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 1 {
		return s[:width]
	}
	return s[:width-1] + "…"
}
