package ontology

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Urgent", "urgent"},
		{"  Billing Issue  ", "billing-issue"},
		{"multi   space", "multi-space"},
		{"already-normal", "already-normal"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Urgent Request", "billing", "A B C", "x-y-z"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestValidateOntology_NormalizesNames(t *testing.T) {
	ont, warnings, err := ValidateOntology(map[string]interface{}{
		"ontology": map[string]interface{}{
			"Urgent Request": "needs attention now",
			"billing":        "money things",
		},
	})
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if _, ok := ont.Tags["urgent-request"]; !ok {
		t.Errorf("expected normalized name urgent-request, got %v", ont.Names())
	}
}

func TestValidateOntology_DropsCommaTags(t *testing.T) {
	ont, warnings, err := ValidateOntology(map[string]interface{}{
		"tags": map[string]interface{}{
			"good":     "fine",
			"bad,name": "has a comma",
		},
	})
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if ont.Has("bad,name") {
		t.Error("comma tag should have been dropped")
	}
	if !ont.Has("good") {
		t.Error("clean tag should survive")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "comma") {
		t.Errorf("expected a comma warning, got %v", warnings)
	}
}

func TestValidateOntology_BareMapping(t *testing.T) {
	ont, _, err := ValidateOntology(map[string]interface{}{
		"spam": "unwanted mail",
		"ham":  "wanted mail",
	})
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if len(ont.Tags) != 2 {
		t.Errorf("expected 2 tags, got %d", len(ont.Tags))
	}
}

func TestValidateOntology_NothingSurvives(t *testing.T) {
	_, _, err := ValidateOntology(map[string]interface{}{
		"tags": map[string]interface{}{
			"a,b": "only a comma tag",
		},
	})
	if err == nil {
		t.Error("expected error when no tags survive")
	}
}

func TestValidateOntology_OversizeFlaggedNotTruncated(t *testing.T) {
	big := strings.Repeat("x", MaxSerializedSize)
	ont, warnings, err := ValidateOntology(map[string]interface{}{
		"ontology": map[string]interface{}{"huge": big},
	})
	if err != nil {
		t.Fatalf("oversize ontology must still be accepted: %v", err)
	}
	if ont.Tags["huge"] != big {
		t.Error("oversize description must not be truncated")
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "ceiling") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an oversize warning, got %v", warnings)
	}
}

func TestValidateAssignment_FiltersAgainstOntology(t *testing.T) {
	auth := &Ontology{Tags: map[string]string{
		"urgent":  "needs attention",
		"billing": "money",
	}}

	got, dropped := ValidateAssignment([]string{"Urgent", "spam"}, auth)
	if len(got) != 1 || got[0] != "urgent" {
		t.Errorf("expected [urgent], got %v", got)
	}
	if len(dropped) != 1 || dropped[0] != "spam" {
		t.Errorf("expected spam reported as dropped, got %v", dropped)
	}
}

func TestValidateAssignment_ZeroSurvivorsDegrades(t *testing.T) {
	auth := &Ontology{Tags: map[string]string{
		"urgent":  "needs attention",
		"billing": "money",
	}}

	got, dropped := ValidateAssignment([]string{"spam"}, auth)
	if len(dropped) != 1 {
		t.Errorf("expected one dropped tag, got %v", dropped)
	}
	if len(got) != 1 || got[0] != Sentinel {
		t.Errorf("expected [%s], got %v", Sentinel, got)
	}
}

func TestValidateAssignment_FreeForm(t *testing.T) {
	got, dropped := ValidateAssignment([]string{"Breaking News", "opinion"}, nil)
	if len(dropped) != 0 {
		t.Errorf("free-form mode should drop nothing, got %v", dropped)
	}
	if len(got) != 2 || got[0] != "breaking-news" || got[1] != "opinion" {
		t.Errorf("expected normalized verbatim list, got %v", got)
	}
}

func TestValidateAssignment_EmptyDegrades(t *testing.T) {
	got, _ := ValidateAssignment(nil, nil)
	if len(got) != 1 || got[0] != Sentinel {
		t.Errorf("expected sentinel for empty proposal, got %v", got)
	}
}

func TestValidateAssignment_DedupPreservesOrder(t *testing.T) {
	got, _ := ValidateAssignment([]string{"b", "a", "B"}, nil)
	if JoinAssignment(got) != "b,a" {
		t.Errorf("expected b,a, got %v", got)
	}
}

func TestValidateAssignment_SentinelMentionIgnored(t *testing.T) {
	auth := &Ontology{Tags: map[string]string{"urgent": ""}}
	got, _ := ValidateAssignment([]string{"untagged", "urgent"}, auth)
	if JoinAssignment(got) != "urgent" {
		t.Errorf("expected urgent, got %v", got)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ontology.json")

	orig := &Ontology{
		Tags:  map[string]string{"urgent": "needs attention", "billing": "money"},
		Notes: "two tags",
	}
	if err := orig.Save(path); err != nil {
		t.Fatalf("save error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(loaded.Tags) != 2 || loaded.Tags["urgent"] != "needs attention" {
		t.Errorf("round trip mismatch: %v", loaded.Tags)
	}
	if loaded.Notes != "two tags" {
		t.Errorf("notes lost: %q", loaded.Notes)
	}
}

func TestSave_WritesOntologyKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ontology.json")

	o := &Ontology{Tags: map[string]string{"a": "b"}}
	if err := o.Save(path); err != nil {
		t.Fatalf("save error: %v", err)
	}

	data, _ := os.ReadFile(path)
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("artifact is not JSON: %v", err)
	}
	if _, ok := doc["ontology"]; !ok {
		t.Errorf("artifact must use the ontology key: %v", doc)
	}
}

func TestLoad_LegacyTagsKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.json")
	os.WriteFile(path, []byte(`{"tags": {"Urgent": "hot"}, "notes": "old shape"}`), 0644)

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if !loaded.Has("urgent") {
		t.Errorf("expected normalized urgent from legacy key, got %v", loaded.Names())
	}
}

func TestLoad_BareMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bare.json")
	os.WriteFile(path, []byte(`{"Urgent": "hot", "billing": "money", "notes": "flat shape"}`), 0644)

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if !loaded.Has("urgent") || !loaded.Has("billing") {
		t.Errorf("expected bare mapping members, got %v", loaded.Names())
	}
	if loaded.Notes != "flat shape" {
		t.Errorf("notes lost: %q", loaded.Notes)
	}
}

func TestLoad_NoMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.json")
	os.WriteFile(path, []byte(`{"notes": "nothing here"}`), 0644)

	if _, err := Load(path); err == nil {
		t.Error("expected error for artifact without a tag mapping")
	}
}
