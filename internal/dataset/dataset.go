// Package dataset provides CSV loading, sampling, and output for tagging runs.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muesli/reflow/indent"
)

// Table is an in-memory CSV: a header plus rectangular rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Load reads a CSV file. The first record is the header; ragged rows are
// a load error (encoding/csv enforces the field count).
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv is empty: %s", path)
	}

	return &Table{Columns: records[0], Rows: records[1:]}, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Shape renders the table dimensions as "R x C".
func (t *Table) Shape() string {
	return fmt.Sprintf("%d x %d", len(t.Rows), len(t.Columns))
}

// Sample returns a deterministic sample of at most n rows. With the same
// seed the same rows come back, in their original relative order. Tables
// at or under the ceiling are returned whole.
func (t *Table) Sample(n int, seed int64) *Table {
	if n <= 0 || len(t.Rows) <= n {
		return t
	}

	rng := rand.New(rand.NewSource(seed))
	picked := rng.Perm(len(t.Rows))[:n]
	sort.Ints(picked)

	rows := make([][]string, 0, n)
	for _, idx := range picked {
		rows = append(rows, t.Rows[idx])
	}
	return &Table{Columns: t.Columns, Rows: rows}
}

// Focus restricts the table to the named columns. Unknown names produce a
// warning and are skipped; if nothing matches, the full table is returned
// so a bad hint never empties the data.
func (t *Table) Focus(columns []string) (*Table, []string) {
	if len(columns) == 0 {
		return t, nil
	}

	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		index[c] = i
	}

	var keep []int
	var kept []string
	var warnings []string
	for _, c := range columns {
		name := strings.TrimSpace(c)
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			keep = append(keep, i)
			kept = append(kept, name)
		} else {
			warnings = append(warnings, fmt.Sprintf("column %q not found", name))
		}
	}
	if len(keep) == 0 {
		warnings = append(warnings, "no requested columns found, using all columns")
		return t, warnings
	}

	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		projected := make([]string, len(keep))
		for j, i := range keep {
			projected[j] = row[i]
		}
		rows[r] = projected
	}
	return &Table{Columns: kept, Rows: rows}, warnings
}

// Record returns row i as a column->value map.
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.Columns))
	for j, col := range t.Columns {
		if j < len(t.Rows[i]) {
			rec[col] = t.Rows[i][j]
		}
	}
	return rec
}

// RecordJSON renders row i as indented JSON for prompt embedding.
func (t *Table) RecordJSON(i int) (string, error) {
	data, err := json.MarshalIndent(t.Record(i), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode row %d: %w", i, err)
	}
	return string(data), nil
}

// Head returns the first n rows as records for prompt embedding.
func (t *Table) Head(n int) []map[string]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	records := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, t.Record(i))
	}
	return records
}

// HeadJSON renders Head(n) as indented JSON.
func (t *Table) HeadJSON(n int) (string, error) {
	data, err := json.MarshalIndent(t.Head(n), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sample records: %w", err)
	}
	return string(data), nil
}

// WithColumn returns a copy of the table with one appended column. The
// value count must match the row count; row order is preserved.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if len(values) != len(t.Rows) {
		return nil, fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}

	columns := append(append([]string{}, t.Columns...), name)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append(append([]string{}, row...), values[i])
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// Write saves the table as CSV, atomically (temp file + rename).
func (t *Table) Write(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	w := csv.NewWriter(f)
	w.Write(t.Columns)
	for _, row := range t.Rows {
		w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize output: %w", err)
	}
	return nil
}

// TagCount is one entry of a tag distribution.
type TagCount struct {
	Tag     string
	Count   int
	Percent float64
}

// Distribution counts assignment values, sorted by count descending then
// name ascending.
func Distribution(values []string) []TagCount {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}

	out := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		out = append(out, TagCount{
			Tag:     tag,
			Count:   count,
			Percent: float64(count) / float64(len(values)) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// FormatDistribution renders a distribution block for the log stream.
func FormatDistribution(counts []TagCount) string {
	var b strings.Builder
	for _, c := range counts {
		fmt.Fprintf(&b, "%s: %d (%.1f%%)\n", c.Tag, c.Count, c.Percent)
	}
	return indent.String(strings.TrimRight(b.String(), "\n"), 2)
}
