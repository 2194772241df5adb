// Package sandbox executes model-written Go snippets in an embedded
// interpreter. Snippets run against an import allow-list, with a wall-clock
// timeout. Every failure mode is returned as a string so callers can hand
// the outcome straight back to the model as conversation data.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultTimeout bounds a single snippet execution.
const DefaultTimeout = 30 * time.Second

// DefaultImports is the stdlib allow-list for model code. Anything touching
// the filesystem, network, or process state stays out.
var DefaultImports = []string{
	"strings",
	"strconv",
	"fmt",
	"math",
	"regexp",
	"sort",
	"unicode",
	"encoding/json",
	"encoding/csv",
	"time",
}

// Sandbox interprets Go snippets with restricted imports.
type Sandbox struct {
	allowed map[string]bool
	timeout time.Duration
}

// New creates a sandbox with the given import allow-list and timeout.
// Empty imports or a non-positive timeout fall back to the defaults.
func New(imports []string, timeout time.Duration) *Sandbox {
	if len(imports) == 0 {
		imports = DefaultImports
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	allowed := make(map[string]bool, len(imports))
	for _, pkg := range imports {
		allowed[pkg] = true
	}
	return &Sandbox{allowed: allowed, timeout: timeout}
}

// Execute runs a snippet that defines `func Run() any` and returns the
// result rendered as a string. Rejected imports, evaluation errors, panics,
// and timeouts are all reported in the returned string, never as an error.
func (s *Sandbox) Execute(ctx context.Context, code string) string {
	if err := s.validateImports(code); err != nil {
		return fmt.Sprintf("code rejected: %v", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Sprintf("interpreter setup failed: %v", err)
	}

	if _, err := i.Eval(wrapCode(code)); err != nil {
		return fmt.Sprintf("code evaluation failed: %v", err)
	}

	run, err := i.Eval("main.Run")
	if err != nil {
		return "code must define `func Run() any`"
	}
	runFunc, ok := run.Interface().(func() any)
	if !ok {
		return "Run has wrong signature (expected: func Run() any)"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resultCh := make(chan string, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- fmt.Sprintf("code panicked: %v", r)
			}
		}()
		resultCh <- renderResult(runFunc())
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return fmt.Sprintf("code execution timed out after %s", s.timeout)
	}
}

// renderResult turns a Run() value into text the model can read. Composite
// values go through JSON so the model gets structure, not Go syntax.
func renderResult(v any) string {
	switch val := v.(type) {
	case nil:
		return "(no result)"
	case string:
		return val
	case error:
		return fmt.Sprintf("code returned error: %v", val)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// validateImports scans import declarations and rejects anything off the
// allow-list before the interpreter sees the code.
func (s *Sandbox) validateImports(code string) error {
	var forbidden []string
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			if pkg := importPath(trimmed); pkg != "" && !s.allowed[pkg] {
				forbidden = append(forbidden, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			if pkg := importPath(strings.TrimPrefix(trimmed, "import ")); pkg != "" && !s.allowed[pkg] {
				forbidden = append(forbidden, pkg)
			}
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports %v (allowed: %s)", forbidden, strings.Join(s.allowedList(), ", "))
	}
	return nil
}

// importPath strips an optional alias and quotes from one import spec line.
func importPath(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.HasPrefix(spec, "//") {
		return ""
	}
	if idx := strings.Index(spec, `"`); idx >= 0 {
		spec = spec[idx:]
	}
	return strings.Trim(spec, `"`)
}

func (s *Sandbox) allowedList() []string {
	pkgs := make([]string, 0, len(s.allowed))
	for pkg := range s.allowed {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}

// wrapCode prepends a package clause when the snippet omits one.
func wrapCode(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return "package main\n\n" + code
}
