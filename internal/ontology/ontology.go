// Package ontology defines the tag ontology artifact and its validation rules.
package ontology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel is the reserved assignment for "no applicable tag survived".
const Sentinel = "untagged"

// MaxSerializedSize is the soft ceiling on the serialized artifact.
// Oversize ontologies are flagged, never truncated: chopping JSON would
// produce a corrupt artifact.
const MaxSerializedSize = 16 * 1024

// Ontology is a closed set of named, described tags.
type Ontology struct {
	Tags  map[string]string
	Notes string
}

// artifact is the on-disk JSON shape. The "ontology" key is the contract
// between the generation and tagging workflows.
type artifact struct {
	Ontology map[string]interface{} `json:"ontology"`
	Tags     map[string]interface{} `json:"tags,omitempty"`
	Notes    string                 `json:"notes,omitempty"`
}

// Normalize canonicalizes a tag name: trimmed, lower-cased, internal
// whitespace replaced with dashes. Idempotent.
func Normalize(tag string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(tag)))
	return strings.Join(fields, "-")
}

// ValidateOntology normalizes a proposed tag mapping into an Ontology.
// The payload may carry the mapping under "ontology", under "tags", or be
// the bare mapping itself. Names still containing commas after
// normalization are dropped with a warning. Oversize results are flagged
// in the warnings, not truncated. Zero surviving tags is an error: no
// artifact is better than a corrupt one.
func ValidateOntology(proposed map[string]interface{}) (*Ontology, []string, error) {
	if proposed == nil {
		return nil, nil, fmt.Errorf("no ontology payload")
	}

	raw := tagMapping(proposed)
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("payload contains no tag mapping")
	}

	var warnings []string
	tags := make(map[string]string, len(raw))
	for name, desc := range raw {
		normalized := Normalize(name)
		if normalized == "" {
			warnings = append(warnings, fmt.Sprintf("dropped empty tag name %q", name))
			continue
		}
		if strings.Contains(normalized, ",") {
			warnings = append(warnings, fmt.Sprintf("dropped tag %q: contains comma", normalized))
			continue
		}
		tags[normalized] = describe(desc)
	}

	if len(tags) == 0 {
		return nil, warnings, fmt.Errorf("no tags survived validation")
	}

	o := &Ontology{Tags: tags, Notes: notesField(proposed)}
	if size := o.serializedSize(); size > MaxSerializedSize {
		warnings = append(warnings, fmt.Sprintf("ontology serialization is %d bytes (ceiling %d)", size, MaxSerializedSize))
	}
	return o, warnings, nil
}

// tagMapping locates the name->description mapping inside a decoded payload.
func tagMapping(payload map[string]interface{}) map[string]interface{} {
	for _, key := range []string{"ontology", "tags"} {
		if inner, ok := payload[key].(map[string]interface{}); ok && len(inner) > 0 {
			return inner
		}
	}
	// Bare mapping: every value is a plain description.
	bare := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return nil
		}
		if k == "notes" {
			continue
		}
		bare[k] = v
	}
	return bare
}

func notesField(payload map[string]interface{}) string {
	if notes, ok := payload["notes"].(string); ok {
		return notes
	}
	return ""
}

// describe coerces a description value to text.
func describe(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// ValidateAssignment normalizes a proposed tag list against an optional
// authoritative ontology. With no ontology (free-form editorial mode) any
// normalized, non-empty list passes verbatim. With an ontology, tags that
// are not members are dropped individually and reported in the second
// return; zero survivors degrades to the sentinel. Never fails: row
// tagging must complete for every row.
func ValidateAssignment(proposed []string, auth *Ontology) (survivors, dropped []string) {
	seen := make(map[string]bool)
	for _, tag := range proposed {
		normalized := Normalize(tag)
		if normalized == "" || normalized == Sentinel || seen[normalized] {
			continue
		}
		if auth != nil && !auth.Has(normalized) {
			dropped = append(dropped, normalized)
			continue
		}
		seen[normalized] = true
		survivors = append(survivors, normalized)
	}
	if len(survivors) == 0 {
		return []string{Sentinel}, dropped
	}
	return survivors, dropped
}

// JoinAssignment serializes an assignment for the output column.
func JoinAssignment(tags []string) string {
	return strings.Join(tags, ",")
}

// Has reports whether tag is a member of the ontology.
func (o *Ontology) Has(tag string) bool {
	_, ok := o.Tags[tag]
	return ok
}

// Names returns the tag names in sorted order.
func (o *Ontology) Names() []string {
	names := make([]string, 0, len(o.Tags))
	for name := range o.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *Ontology) serializedSize() int {
	data, err := json.Marshal(o.doc())
	if err != nil {
		return 0
	}
	return len(data)
}

func (o *Ontology) doc() artifact {
	tags := make(map[string]interface{}, len(o.Tags))
	for name, desc := range o.Tags {
		tags[name] = desc
	}
	return artifact{Ontology: tags, Notes: o.Notes}
}

// Save writes the artifact atomically (temp file + rename), always under
// the "ontology" key.
func (o *Ontology) Save(path string) error {
	data, err := json.MarshalIndent(o.doc(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ontology: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write ontology: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize ontology: %w", err)
	}
	return nil
}

// Load reads an artifact. The mapping is read from the "ontology" key,
// falling back to a legacy top-level "tags" key or a bare name->description
// object; names are normalized on the way in so both workflows always agree
// on the member set.
func Load(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology: %w", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse ontology: %w", err)
	}

	raw := tagMapping(doc)
	if len(raw) == 0 {
		return nil, fmt.Errorf("ontology file has no tag mapping")
	}

	tags := make(map[string]string, len(raw))
	for name, desc := range raw {
		normalized := Normalize(name)
		if normalized == "" {
			continue
		}
		tags[normalized] = describe(desc)
	}
	return &Ontology{Tags: tags, Notes: notesField(doc)}, nil
}
