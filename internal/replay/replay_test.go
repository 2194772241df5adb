package replay

import (
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/tagforge/internal/session"
)

func sampleRun() *session.Run {
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	run := session.NewRun(session.ModeOntology, "anthropic", "claude-sonnet-4-20250514", "reviews.csv", "tags.json")
	run.Status = session.StatusComplete
	run.Result = "forged 3 tags: complaint, neutral, praise"
	run.InputTokens = 12400
	run.OutputTokens = 860
	run.Cost = 0.0501
	run.Events = []session.Event{
		{Type: session.EventSystem, Content: "You are a botanist.", Timestamp: base},
		{Type: session.EventUser, Content: "Study this garden.", Timestamp: base.Add(time.Second)},
		{Type: session.EventToolCall, Step: 1, Tool: "run_code",
			Args: map[string]interface{}{"code": "func Run() any { return 1 }"}, Timestamp: base.Add(2 * time.Second)},
		{Type: session.EventToolResult, Step: 1, Tool: "run_code", Content: "1",
			DurationMs: 42, Timestamp: base.Add(3 * time.Second)},
		{Type: session.EventToolCall, Step: 2, Tool: "final_answer",
			Args: map[string]interface{}{"tags": map[string]interface{}{"praise": "p"}},
			Timestamp: base.Add(4 * time.Second)},
	}
	return run
}

func TestReplayTimeline(t *testing.T) {
	run := sampleRun()

	var buf strings.Builder
	if err := New(&buf, false).Replay(run); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		run.ID,
		"TIMELINE",
		"(5 events)",
		"SYSTEM PROMPT",
		"TOOL CALL:",
		"run_code",
		"final_answer",
		"COMPLETED:",
		"12.4k",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// Non-verbose output omits prompt bodies.
	if strings.Contains(out, "You are a botanist.") {
		t.Errorf("prompt body shown without verbose flag")
	}
}

func TestReplayVerboseShowsContent(t *testing.T) {
	run := sampleRun()

	var buf strings.Builder
	if err := New(&buf, true).Replay(run); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "You are a botanist.") {
		t.Errorf("verbose output missing system prompt body")
	}
	if !strings.Contains(out, "code:") {
		t.Errorf("verbose output missing tool args")
	}
}

func TestReplayContentTruncation(t *testing.T) {
	run := sampleRun()
	run.Events[0].Content = strings.Repeat("x", 200)

	var buf strings.Builder
	if err := New(&buf, true, WithMaxContentSize(50)).Replay(run); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(truncated)") {
		t.Errorf("long content not truncated")
	}
}

func TestReplayRowTags(t *testing.T) {
	run := session.NewRun(session.ModeTag, "openai", "gpt-4o", "data.csv", "tagged.csv")
	run.Status = session.StatusComplete
	run.SetRowTag(0, "praise")
	run.SetRowTag(1, "praise")
	run.SetRowTag(2, "complaint")

	var buf strings.Builder
	if err := New(&buf, false).Replay(run); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "ROW TAGS") {
		t.Fatalf("row tag section missing:\n%s", out)
	}
	if !strings.Contains(out, "2 (66.7%)") {
		t.Errorf("distribution not rendered: %s", out)
	}
	// Most frequent tag first.
	if strings.Index(out, "praise") > strings.Index(out, "complaint") {
		t.Errorf("distribution not sorted by count")
	}
}

func TestComputeStats(t *testing.T) {
	run := sampleRun()
	stats := ComputeStats(run)

	if stats.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d", stats.ToolCalls)
	}
	if stats.ToolTotalMs != 42 {
		t.Errorf("ToolTotalMs = %d", stats.ToolTotalMs)
	}
	if stats.WallClock != 4*time.Second {
		t.Errorf("WallClock = %s", stats.WallClock)
	}
}

func TestRenderList(t *testing.T) {
	runs := []*session.Run{sampleRun()}
	out := RenderList(runs)

	if !strings.Contains(out, shortID(runs[0].ID)) {
		t.Errorf("list missing run ID: %s", out)
	}
	if !strings.Contains(out, "ontology") {
		t.Errorf("list missing mode: %s", out)
	}
	if !strings.Contains(out, "$0.0501") {
		t.Errorf("list missing cost: %s", out)
	}
}

func TestRenderListEmpty(t *testing.T) {
	if out := RenderList(nil); !strings.Contains(out, "no recorded runs") {
		t.Errorf("unexpected empty list output: %q", out)
	}
}

func TestWrapToWidthKeepsColumns(t *testing.T) {
	line := "    1 │ 09:30:00 │ " + strings.Repeat("word ", 30)
	wrapped := wrapToWidth(line, 60)
	lines := strings.Split(wrapped, "\n")
	if len(lines) < 2 {
		t.Fatalf("long line not wrapped: %q", wrapped)
	}
	if !strings.HasPrefix(lines[1], " ") {
		t.Errorf("continuation line not indented: %q", lines[1])
	}
	if strings.Contains(lines[1], "│") {
		t.Errorf("continuation line repeats column separators: %q", lines[1])
	}
}
