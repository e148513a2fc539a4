package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnparsable marks model output that failed strict JSON parsing or schema
// validation. Callers use it to distinguish "couldn't understand" from generic
// processing failures.
var ErrUnparsable = errors.New("model output is not a valid extraction result")

// Parse strictly decodes the raw model output into a Result. The output is
// first cleaned of Markdown fences the model sometimes emits despite
// instructions, then validated against the extraction schema. No partial
// recovery is attempted.
func Parse(raw string) (*Result, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("%w: empty output", ErrUnparsable)
	}

	if err := validateResult([]byte(clean)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	var res Result
	dec := json.NewDecoder(strings.NewReader(clean))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return &res, nil
}

// cleanModelJSON strips Markdown code fences and surrounding junk, keeping the
// first top-level JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
