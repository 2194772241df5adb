package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	line := buf.String()
	if !strings.HasPrefix(line, "INFO") {
		t.Errorf("expected line to start with INFO, got %q", line)
	}
	if !strings.Contains(line, "info message") {
		t.Errorf("expected message in line, got %q", line)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("executor")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "[executor]") {
		t.Errorf("expected component in line, got %q", buf.String())
	}
}

func TestLogger_WithRun(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithRun("run-123")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "run=run-123") {
		t.Errorf("expected run id in line, got %q", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("tool call", map[string]interface{}{
		"tool": "run_code",
	})

	if !strings.Contains(buf.String(), "tool=run_code") {
		t.Errorf("expected field in line, got %q", buf.String())
	}
}

func TestLogger_ErrorAlwaysPasses(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelError)

	logger.Warn("warn message")
	if buf.Len() > 0 {
		t.Error("warn should be filtered at ERROR level")
	}

	logger.Error("error message")
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("expected ERROR line, got %q", buf.String())
	}
}

func TestLogger_ToolResult(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.ToolResult("run_code", 5*time.Millisecond, nil)
	if !strings.Contains(buf.String(), "tool_result") {
		t.Errorf("expected tool_result line, got %q", buf.String())
	}
}
