package executor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ExtractionError reports that no JSON object could be recovered from model
// text. Raw carries the full text so the caller can surface it for
// diagnosis instead of losing the model's work.
type ExtractionError struct {
	Raw string
	Err error
}

// rawErrorCap bounds how much raw text Error embeds; the full text stays
// available on Raw.
const rawErrorCap = 2048

func (e *ExtractionError) Error() string {
	raw := e.Raw
	note := ""
	if len(raw) > rawErrorCap {
		raw = raw[:rawErrorCap]
		note = fmt.Sprintf("\n… (%d bytes total)", len(e.Raw))
	}
	return fmt.Sprintf("could not extract JSON from model output: %v\n--- RAW ---\n%s%s", e.Err, raw, note)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var jsonFenceRe = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)\\n?```")

// Extract recovers a JSON object from free-form model text. Candidates are
// tried in order: a ```json fence, a leading bare fence, then the span from
// the first "{" to the last "}". The result of the first matching locator
// is parsed; there is no second-chance scan, so the outcome is
// deterministic for a given input.
func Extract(content string) (map[string]interface{}, error) {
	candidate := locate(content)
	if candidate == "" {
		return nil, &ExtractionError{Raw: content, Err: fmt.Errorf("no JSON object found")}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, &ExtractionError{Raw: content, Err: err}
	}
	return parsed, nil
}

func locate(content string) string {
	if m := jsonFenceRe.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.Trim(s, "` \n")
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		return strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
