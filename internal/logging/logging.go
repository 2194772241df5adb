// Package logging provides structured, leveled logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger provides structured logging. Output goes to stderr by default
// because stdout is reserved for the machine-readable result.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	runID     string
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		runID:     l.runID,
	}
}

// WithRun returns a new logger tagged with a run identifier.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		runID:     runID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.runID != "" {
		fieldStr += " run=" + l.runID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// RunStart logs the start of a workflow run.
func (l *Logger) RunStart(mode, model, dataset string) {
	l.Info("run_start", map[string]interface{}{
		"mode":    mode,
		"model":   model,
		"dataset": dataset,
	})
}

// RunComplete logs the completion of a workflow run.
func (l *Logger) RunComplete(mode string, duration time.Duration, status string) {
	l.Info("run_complete", map[string]interface{}{
		"mode":     mode,
		"duration": duration.String(),
		"status":   status,
	})
}

// StepStart logs the start of one agent step.
func (l *Logger) StepStart(step, budget int) {
	l.Debug("step_start", map[string]interface{}{
		"step":   step,
		"budget": budget,
	})
}

// StepComplete logs one agent step with cumulative usage.
func (l *Logger) StepComplete(step int, inputTokens, outputTokens int64, stop string) {
	l.Debug("step_complete", map[string]interface{}{
		"step":          step,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
		"stop":          stop,
	})
}

// ToolCall logs a tool invocation. Arguments are not logged to keep
// row data out of the log stream.
func (l *Logger) ToolCall(tool string) {
	l.Info("tool_call", map[string]interface{}{
		"tool": tool,
	})
}

// ToolResult logs a tool result.
func (l *Logger) ToolResult(tool string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"tool":     tool,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("tool_error", fields)
	} else {
		l.Debug("tool_result", fields)
	}
}

// RowTagged logs one tagged row.
func (l *Logger) RowTagged(idx int, assignment string) {
	l.Debug("row_tagged", map[string]interface{}{
		"row": idx,
		"tag": assignment,
	})
}

// RowDegraded logs a row that fell back to the sentinel.
func (l *Logger) RowDegraded(idx int, reason string) {
	l.Warn("row_degraded", map[string]interface{}{
		"row":    idx,
		"reason": reason,
	})
}

// TagDropped logs a proposed tag discarded during validation.
func (l *Logger) TagDropped(tag, reason string) {
	l.Debug("tag_dropped", map[string]interface{}{
		"tag":    tag,
		"reason": reason,
	})
}

// ExtractionFailed logs a structured-output recovery failure.
func (l *Logger) ExtractionFailed(rawLen int, err error) {
	l.Error("extraction_failed", map[string]interface{}{
		"raw_len": rawLen,
		"error":   err.Error(),
	})
}
