// Package session persists agent runs: what was asked, every model and
// tool turn, per-row tag assignments, and the final outcome. Stored runs
// back the `runs` and `replay` commands and let interrupted tagging runs
// resume where they stopped.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run status values.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run modes.
const (
	ModeOntology = "ontology"
	ModeTag      = "tag"
)

// Event types for the run log.
const (
	EventSystem     = "system"      // system prompt sent to the model
	EventUser       = "user"        // task prompt or follow-up sent to the model
	EventAssistant  = "assistant"   // model response text
	EventToolCall   = "tool_call"   // tool invocation requested by the model
	EventToolResult = "tool_result" // tool output fed back to the model
	EventRowStart   = "row_start"   // start of one row's tagging pass
	EventRowEnd     = "row_end"     // end of one row's tagging pass
)

// Run is one agent execution, either an ontology generation or a dataset
// tagging pass.
type Run struct {
	ID           string         `json:"id"`
	Mode         string         `json:"mode"`
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	Dataset      string         `json:"dataset"`
	Output       string         `json:"output,omitempty"`
	Status       string         `json:"status"`
	Result       string         `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	InputTokens  int64          `json:"input_tokens"`
	OutputTokens int64          `json:"output_tokens"`
	Cost         float64        `json:"cost"`
	Events       []Event        `json:"events"`
	RowTags      map[int]string `json:"row_tags,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Event is one entry in a run's chronological log.
type Event struct {
	Type       string                 `json:"type"`
	Step       int                    `json:"step,omitempty"`
	Row        int                    `json:"row,omitempty"`
	Content    string                 `json:"content,omitempty"`
	Tool       string                 `json:"tool,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Store is the interface for run persistence.
type Store interface {
	Save(run *Run) error
	Load(id string) (*Run, error)
	List() ([]*Run, error)
	Delete(id string) error
}

// NewRun creates a run in the running state.
func NewRun(mode, provider, model, dataset, output string) *Run {
	now := time.Now()
	return &Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Provider:  provider,
		Model:     model,
		Dataset:   dataset,
		Output:    output,
		Status:    StatusRunning,
		Events:    []Event{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetRowTag records one row's final tag assignment.
func (r *Run) SetRowTag(row int, tags string) {
	if r.RowTags == nil {
		r.RowTags = make(map[int]string)
	}
	r.RowTags[row] = tags
}

// AddEvent appends an event, stamping the timestamp if unset.
func (r *Run) AddEvent(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	r.Events = append(r.Events, ev)
}

// Manager serializes updates to a run store.
type Manager struct {
	store Store
	mu    sync.Mutex
}

// NewManager creates a manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create persists a fresh run and returns it.
func (m *Manager) Create(mode, provider, model, dataset, output string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := NewRun(mode, provider, model, dataset, output)
	if err := m.store.Save(run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	return run, nil
}

// Update persists the run's current state.
func (m *Manager) Update(run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run.UpdatedAt = time.Now()
	return m.store.Save(run)
}

// Complete marks the run complete with its result summary.
func (m *Manager) Complete(run *Run, result string) error {
	run.Status = StatusComplete
	run.Result = result
	return m.Update(run)
}

// Fail marks the run failed.
func (m *Manager) Fail(run *Run, errMsg string) error {
	run.Status = StatusFailed
	run.Error = errMsg
	return m.Update(run)
}

// AppendEvent adds an event to the run's log and persists it. Safe for
// concurrent use across workers sharing one run.
func (m *Manager) AppendEvent(run *Run, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run.AddEvent(ev)
	run.UpdatedAt = time.Now()
	return m.store.Save(run)
}

// SaveRowTag records one row's assignment and persists it.
func (m *Manager) SaveRowTag(run *Run, row int, tags string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run.SetRowTag(row, tags)
	run.UpdatedAt = time.Now()
	return m.store.Save(run)
}

// SaveRowResult records one row's assignment together with its start/end
// log events, in a single persisted update.
func (m *Manager) SaveRowResult(run *Run, row int, tags string, started time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run.SetRowTag(row, tags)
	run.AddEvent(Event{Type: EventRowStart, Row: row, Timestamp: started})
	run.AddEvent(Event{Type: EventRowEnd, Row: row, Content: tags,
		DurationMs: time.Since(started).Milliseconds()})
	run.UpdatedAt = time.Now()
	return m.store.Save(run)
}

// Get retrieves a run by ID. A unique ID prefix of at least 4 characters
// also matches, so `tagforge replay 3f2a` works.
func (m *Manager) Get(id string) (*Run, error) {
	run, err := m.store.Load(id)
	if err == nil {
		return run, nil
	}
	if len(id) < 4 {
		return nil, err
	}
	runs, listErr := m.store.List()
	if listErr != nil {
		return nil, err
	}
	var match *Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = r
		}
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

// List returns all runs, newest first.
func (m *Manager) List() ([]*Run, error) {
	runs, err := m.store.List()
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// Delete removes a run.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(id)
}

// --- FileStore ---

// FileStore stores runs as JSON files, one per run.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// RunPath returns the file backing a run, for callers that watch it.
func (s *FileStore) RunPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the run atomically (temp file then rename).
func (s *FileStore) Save(run *Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	filename := filepath.Join(s.dir, run.ID+".json")
	tmpFile := filename + ".tmp"

	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, filename); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Load reads a run by ID.
func (s *FileStore) Load(id string) (*Run, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// List reads every stored run. Unreadable files are skipped.
func (s *FileStore) List() ([]*Run, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}

	var runs []*Run
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		run, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Delete removes a run file.
func (s *FileStore) Delete(id string) error {
	err := os.Remove(filepath.Join(s.dir, id+".json"))
	if os.IsNotExist(err) {
		return fmt.Errorf("run not found: %s", id)
	}
	return err
}
