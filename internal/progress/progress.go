// Package progress implements the out-of-band progress channel.
//
// Events are advisory and carry no result data. On the wire each event is a
// single line with a distinguishing prefix so a line-oriented supervisor can
// demultiplex progress (prefixed, stderr) from the machine-readable result
// (bare, stdout).
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Prefix marks progress lines on the wire.
const Prefix = "TAGFORGE_PROGRESS:"

// Kind classifies a progress event.
type Kind string

const (
	KindStatus   Kind = "status"
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Event is one self-contained progress record.
type Event struct {
	Kind       Kind   `json:"type"`
	Message    string `json:"message"`
	Percentage *int   `json:"percentage,omitempty"`
	Glyph      string `json:"glyph,omitempty"`
}

// WithPercent returns a copy of the event carrying a completion percentage.
func (e Event) WithPercent(p int) Event {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	e.Percentage = &p
	return e
}

// WithGlyph returns a copy of the event with a display hint.
func (e Event) WithGlyph(g string) Event {
	e.Glyph = g
	return e
}

// Status builds a status event.
func Status(msg string) Event { return Event{Kind: KindStatus, Message: msg} }

// Working builds a progress event.
func Working(msg string) Event { return Event{Kind: KindProgress, Message: msg} }

// Complete builds a completion event.
func Complete(msg string) Event { return Event{Kind: KindComplete, Message: msg} }

// Error builds an error event.
func Error(msg string) Event { return Event{Kind: KindError, Message: msg} }

// Emitter is a fire-and-forget sink for progress events. Emit must not
// block on a consumer and must not fail the caller.
type Emitter interface {
	Emit(Event)
}

// defaultGlyphs decorate events that carry no explicit hint.
var defaultGlyphs = map[Kind]string{
	KindStatus:   "▶",
	KindProgress: "→",
	KindComplete: "✓",
	KindError:    "✗",
}

type flusher interface {
	Flush() error
}

// LineEmitter writes prefixed, line-framed JSON events. Each event is one
// Write call, flushed immediately when the writer supports it.
type LineEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineEmitter creates a LineEmitter on w (normally stderr).
func NewLineEmitter(w io.Writer) *LineEmitter {
	return &LineEmitter{w: w}
}

// Emit writes the event as one prefixed line. Marshal and write errors are
// dropped: the channel is advisory.
func (l *LineEmitter) Emit(e Event) {
	if e.Glyph == "" {
		e.Glyph = defaultGlyphs[e.Kind]
	}
	if e.Percentage != nil {
		clamped := *e.Percentage
		if clamped < 0 {
			clamped = 0
		}
		if clamped > 100 {
			clamped = 100
		}
		e.Percentage = &clamped
	}

	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s%s\n", Prefix, data)
	if f, ok := l.w.(flusher); ok {
		f.Flush()
	}
}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

// Emit sends the event to every emitter.
func (m Multi) Emit(e Event) {
	for _, em := range m {
		em.Emit(e)
	}
}

// Nop is an emitter that discards everything.
type Nop struct{}

// Emit discards the event.
func (Nop) Emit(Event) {}

// FormatTokenCount renders a token count for progress messages,
// abbreviating thousands: 999 -> "999", 1234 -> "1.2k".
func FormatTokenCount(count int64) string {
	if count >= 1000 {
		return fmt.Sprintf("%.1fk", float64(count)/1000)
	}
	return fmt.Sprintf("%d", count)
}
