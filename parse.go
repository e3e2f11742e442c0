package ankigen

import (
	"encoding/json"
	"strings"
)

// stripFences removes markdown code fences and surrounding whitespace often
// produced by LLMs. Very defensive, yet fast.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSON locates the JSON object or array inside a raw model
// completion, tolerating leading/trailing prose and code-fence wrapping.
// It performs no semantic repair: if no structurally valid JSON value can be
// decoded, the failure is reported as MalformedResponseError.
func ExtractJSON(raw string) (any, error) {
	s := stripFences(raw)
	if s == "" {
		return nil, &MalformedResponseError{Reason: "empty response"}
	}

	// Try each candidate start; the first decodable object/array wins and
	// trailing prose is ignored.
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var v any
		if err := dec.Decode(&v); err != nil {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			return v, nil
		}
	}
	return nil, &MalformedResponseError{Reason: "no JSON object or array found"}
}
