package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecuteSimple(t *testing.T) {
	s := New(nil, 0)
	result := s.Execute(context.Background(), `
import "strings"

func Run() any {
	return strings.ToUpper("hello")
}
`)
	if result != "HELLO" {
		t.Errorf("expected HELLO, got %q", result)
	}
}

func TestExecuteCompositeResult(t *testing.T) {
	s := New(nil, 0)
	result := s.Execute(context.Background(), `
func Run() any {
	return map[string]int{"rows": 3}
}
`)
	if result != `{"rows":3}` {
		t.Errorf("expected JSON map, got %q", result)
	}
}

func TestExecuteForbiddenImport(t *testing.T) {
	s := New(nil, 0)
	result := s.Execute(context.Background(), `
import "os"

func Run() any {
	return os.Getenv("HOME")
}
`)
	if !strings.Contains(result, "code rejected") || !strings.Contains(result, "os") {
		t.Errorf("expected rejection mentioning os, got %q", result)
	}
}

func TestExecuteForbiddenImportBlock(t *testing.T) {
	s := New(nil, 0)
	result := s.Execute(context.Background(), `
import (
	"fmt"
	"net/http"
)

func Run() any {
	return fmt.Sprint(http.StatusOK)
}
`)
	if !strings.Contains(result, "code rejected") || !strings.Contains(result, "net/http") {
		t.Errorf("expected rejection mentioning net/http, got %q", result)
	}
}

func TestExecuteMissingRun(t *testing.T) {
	s := New(nil, 0)
	result := s.Execute(context.Background(), `
func Helper() int { return 1 }
`)
	if !strings.Contains(result, "func Run() any") {
		t.Errorf("expected missing Run message, got %q", result)
	}
}

func TestExecuteSyntaxError(t *testing.T) {
	s := New(nil, 0)
	result := s.Execute(context.Background(), `func Run() any { return`)
	if !strings.Contains(result, "code evaluation failed") {
		t.Errorf("expected evaluation failure, got %q", result)
	}
}

func TestExecuteTimeout(t *testing.T) {
	s := New(nil, 100*time.Millisecond)
	result := s.Execute(context.Background(), `
func Run() any {
	for {
	}
}
`)
	if !strings.Contains(result, "timed out") {
		t.Errorf("expected timeout, got %q", result)
	}
}

func TestExecuteNilResult(t *testing.T) {
	s := New(nil, 0)
	result := s.Execute(context.Background(), `
func Run() any {
	return nil
}
`)
	if result != "(no result)" {
		t.Errorf("expected placeholder for nil, got %q", result)
	}
}

func TestCustomAllowList(t *testing.T) {
	s := New([]string{"strconv"}, 0)
	result := s.Execute(context.Background(), `
import "strings"

func Run() any {
	return strings.ToUpper("x")
}
`)
	if !strings.Contains(result, "code rejected") {
		t.Errorf("expected rejection under narrowed allow-list, got %q", result)
	}
}
